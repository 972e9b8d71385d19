package hub

import (
	"fmt"
	"sort"

	"github.com/spaghettifunk/dawn/engine/assets/ir"
	"github.com/spaghettifunk/dawn/engine/core"
)

type AssetState uint8

const (
	// mounted, nothing loaded
	AssetIdle AssetState = iota
	AssetLoading
	AssetLoaded
)

func (s AssetState) String() string {
	switch s {
	case AssetIdle:
		return "idle"
	case AssetLoading:
		return "loading"
	case AssetLoaded:
		return "loaded"
	}
	return fmt.Sprintf("state(%d)", uint8(s))
}

// AssetInfo describes one asset as the hub sees it.
type AssetInfo struct {
	ID     core.AssetID
	Kind   ir.Kind
	Source string
	State  AssetState
	// resident bytes, loaded assets only
	Size int64
	// unreleased handles; Dependents counts the cached assets and loads holding it
	Refs       int
	Dependents int
	Pinned     bool
	// false for cached assets whose source was unmounted or shadowed
	Visible bool
}

func (h *Hub) infos() []AssetInfo {
	var infos []AssetInfo
	reported := make(map[assetKey]bool)

	for _, id := range h.visible() {
		src, meta, _ := h.lookup(id)
		key := assetKey{src: src, id: id}
		reported[key] = true
		info := AssetInfo{
			ID:      id,
			Kind:    meta.Kind,
			Source:  sourceName(src),
			Pinned:  h.pins[id] > 0,
			Visible: true,
		}
		if e, ok := h.cache.Peek(key); ok {
			info.State = AssetLoaded
			info.Size, info.Refs, info.Dependents = e.size, e.refs, e.dependents
		} else if f, ok := h.flights[key]; ok {
			info.State = AssetLoading
			info.Refs = len(f.handles)
		}
		infos = append(infos, info)
	}

	for _, key := range h.cache.Oldest() {
		if reported[key] {
			continue
		}
		e, _ := h.cache.Peek(key)
		infos = append(infos, AssetInfo{
			ID:         e.id,
			Kind:       e.loaded.Kind,
			Source:     sourceName(key.src),
			State:      AssetLoaded,
			Size:       e.size,
			Refs:       e.refs,
			Dependents: e.dependents,
			Pinned:     h.pins[e.id] > 0,
		})
	}

	sort.SliceStable(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
	return infos
}
