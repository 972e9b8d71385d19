package hub

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/spaghettifunk/dawn/engine/assets/dac"
	"github.com/spaghettifunk/dawn/engine/assets/ir"
	"github.com/spaghettifunk/dawn/engine/core"
	"github.com/spaghettifunk/dawn/engine/systems"
)

// assetKey names an asset inside the source it was found in. Dependencies
// resolve in the same source, so ids only need to be unique per container.
type assetKey struct {
	src Source
	id  core.AssetID
}

// entry is a cached asset.
type entry struct {
	key    assetKey
	id     core.AssetID
	loaded *dac.LoadedAsset
	size   int64
	// cached dependencies this entry keeps resident
	deps []*entry
	// resolved handles not yet released
	refs int
	// cached entries and flights holding this one as a dependency
	dependents int
}

// flight is a load in progress. It completes once its own decode finished
// and every dependency is cached.
type flight struct {
	key     assetKey
	id      core.AssetID
	src     Source
	meta    dac.Entry
	handles []*LoadHandle

	// dependencies by id once cached, held through entry.dependents
	resolved map[core.AssetID]*entry
	held     []*entry
	waiting  map[core.AssetID]bool
	// flights waiting for this one
	dependents []*flight

	asset   ir.Asset
	decoded bool
	done    bool
	failure error
	started time.Time

	// the decode job has been handed to the job system and not reported back
	running bool
	// flight for the same key waiting for this one's decode to return
	next *flight
}

func (h *Hub) flightList() []*flight {
	list := make([]*flight, 0, len(h.flights))
	for _, f := range h.flights {
		list = append(list, f)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].id < list[j].id })
	return list
}

func (h *Hub) request(handle *LoadHandle) {
	id := handle.id
	src, meta, ok := h.lookup(id)
	if !ok {
		h.metrics.Miss()
		h.reject(handle, core.NewAssetError(core.ErrNotFound, id, nil))
		return
	}
	key := assetKey{src: src, id: id}
	handle.key = key

	if e, ok := h.cache.Get(key); ok {
		h.metrics.Hit()
		e.refs++
		handle.entry = e
		handle.complete(e.loaded, nil)
		h.out.resolved(id)
		return
	}
	if f, ok := h.flights[key]; ok {
		h.metrics.Hit()
		f.handles = append(f.handles, handle)
		return
	}

	h.metrics.Miss()
	if err := h.checkGraph(key); err != nil {
		h.reject(handle, err)
		return
	}
	h.start(key, meta, handle)
}

// reject fails a request that never got a flight.
func (h *Hub) reject(handle *LoadHandle, err error) {
	h.metrics.Failure()
	handle.complete(nil, err)
	h.out.publish(Event{Kind: EventFailed, ID: handle.id, Err: err})
}

// checkGraph walks the metadata below root inside its source and rejects
// cycles and dangling dependencies before anything is decoded. Cached
// subtrees were checked when they were loaded.
func (h *Hub) checkGraph(root assetKey) error {
	const (
		visiting = 1
		checked  = 2
	)
	state := make(map[core.AssetID]uint8)
	var path []core.AssetID

	var visit func(id core.AssetID) error
	visit = func(id core.AssetID) error {
		switch state[id] {
		case checked:
			return nil
		case visiting:
			cycle := append([]core.AssetID(nil), path...)
			for len(cycle) > 0 && cycle[0] != id {
				cycle = cycle[1:]
			}
			return core.Errorf(core.ErrBuildGraph, root.id, "dependency cycle %s", formatPath(append(cycle, id)))
		}
		if _, ok := h.cache.Peek(assetKey{src: root.src, id: id}); ok {
			state[id] = checked
			return nil
		}
		meta, ok := root.src.Entry(id)
		if !ok {
			return core.Errorf(core.ErrBuildGraph, path[len(path)-1], "dangling dependency %q", id)
		}
		state[id] = visiting
		path = append(path, id)
		for _, d := range meta.Dependencies {
			if err := visit(d); err != nil {
				return err
			}
		}
		path = path[:len(path)-1]
		state[id] = checked
		return nil
	}
	return visit(root.id)
}

func formatPath(ids []core.AssetID) string {
	s := ""
	for i, id := range ids {
		if i > 0 {
			s += " -> "
		}
		s += string(id)
	}
	return s
}

// start creates the flight for key, schedules its decode and makes sure
// every dependency is cached or in flight. While a failed flight for the same
// key still has its decode running, the new decode waits for it.
func (h *Hub) start(key assetKey, meta dac.Entry, handles ...*LoadHandle) *flight {
	f := &flight{
		key:      key,
		id:       key.id,
		src:      key.src,
		meta:     meta,
		handles:  handles,
		resolved: make(map[core.AssetID]*entry),
		waiting:  make(map[core.AssetID]bool),
	}
	h.flights[key] = f
	if prev, ok := h.draining[key]; ok {
		prev.next = f
	} else {
		h.schedule(f)
	}

	for _, d := range meta.Dependencies {
		if f.done {
			break
		}
		if _, ok := f.resolved[d]; ok || f.waiting[d] {
			continue
		}
		dkey := assetKey{src: f.src, id: d}
		if e, ok := h.cache.Get(dkey); ok {
			h.hold(f, e)
			continue
		}
		df, ok := h.flights[dkey]
		if !ok {
			h.metrics.Miss()
			dmeta, found := f.src.Entry(d)
			if !found {
				h.fail(f, core.Errorf(core.ErrBuildGraph, f.id, "dangling dependency %q", d))
				break
			}
			df = h.start(dkey, dmeta)
		}
		if df.done {
			// failed before f could wait for it
			h.fail(f, dependencyError(f.id, d, df.failure))
			break
		}
		f.waiting[d] = true
		df.dependents = append(df.dependents, f)
	}
	return f
}

func (h *Hub) schedule(f *flight) {
	f.started = time.Now()
	f.running = true
	err := h.jobs.AddWorkNonBlocking(systems.Job{
		Name: "decode " + string(f.id),
		Run: func(ctx context.Context) error {
			asset, err := f.src.Decode(f.id)
			h.post(decodedCmd{flight: f, asset: asset, err: err})
			return nil
		},
		OnFailure: func(err error) {
			h.post(decodedCmd{flight: f, err: err})
		},
	})
	if err != nil {
		f.running = false
		h.fail(f, core.NewAssetError(core.ErrHubClosed, f.id, err))
	}
}

func (h *Hub) hold(f *flight, e *entry) {
	e.dependents++
	f.resolved[e.id] = e
	f.held = append(f.held, e)
}

func (h *Hub) decoded(f *flight, asset ir.Asset, err error) {
	f.running = false
	if h.draining[f.key] == f {
		delete(h.draining, f.key)
		if next := f.next; next != nil && !next.done {
			h.schedule(next)
		}
	}
	if f.done {
		return
	}
	if err != nil {
		if errors.Is(err, context.Canceled) {
			err = core.NewAssetError(core.ErrHubClosed, f.id, err)
		}
		h.fail(f, err)
		return
	}
	h.metrics.DecodeFinished(time.Since(f.started))
	f.asset = asset
	f.decoded = true
	h.tryComplete(f)
}

func (h *Hub) tryComplete(f *flight) {
	if f.done || !f.decoded || len(f.waiting) > 0 {
		return
	}
	f.done = true
	delete(h.flights, f.key)

	deps := make([]*dac.LoadedAsset, len(f.meta.Dependencies))
	for i, d := range f.meta.Dependencies {
		deps[i] = f.resolved[d].loaded
	}
	e := &entry{
		key: f.key,
		id:  f.id,
		loaded: &dac.LoadedAsset{
			ID:           f.id,
			Kind:         f.meta.Kind,
			Asset:        f.asset,
			Dependencies: deps,
		},
		size: int64(f.asset.MemoryUsage()),
		deps: f.held,
		refs: len(f.handles),
	}
	h.cache.Put(f.key, e)
	h.used += e.size

	for _, handle := range f.handles {
		handle.entry = e
		handle.complete(e.loaded, nil)
	}
	h.out.publish(Event{Kind: EventLoaded, ID: f.id})

	for _, df := range f.dependents {
		if df.done {
			continue
		}
		delete(df.waiting, f.id)
		h.hold(df, e)
		h.tryComplete(df)
	}
	h.evict()
}

// fail resolves every handle of f with err and fails the flights waiting
// for it. A decode that is still running keeps the key draining until it
// reports back.
func (h *Hub) fail(f *flight, err error) {
	if f.done {
		return
	}
	f.done = true
	f.failure = err
	delete(h.flights, f.key)
	if f.running {
		h.draining[f.key] = f
	}
	for _, e := range f.held {
		e.dependents--
	}
	f.held = nil

	h.metrics.Failure()
	if errors.Is(err, core.ErrIntegrity) {
		core.Logger().Error("integrity check failed", "asset", f.id, "source", sourceName(f.src), "err", err)
	} else {
		core.LogDebug("asset %s failed to load: %s", f.id, err)
	}
	for _, handle := range f.handles {
		handle.complete(nil, err)
	}
	h.out.publish(Event{Kind: EventFailed, ID: f.id, Err: err})

	for _, df := range f.dependents {
		h.fail(df, dependencyError(df.id, f.id, err))
	}
	h.evict()
}

func sourceName(src Source) string {
	if p, ok := src.(interface{ Path() string }); ok {
		return p.Path()
	}
	return fmt.Sprintf("%T", src)
}

func dependencyError(id, dep core.AssetID, err error) error {
	kind := core.KindOf(err)
	if kind == nil {
		kind = core.ErrDecode
	}
	return core.NewAssetError(kind, id, fmt.Errorf("dependency %q: %w", dep, err))
}

func (h *Hub) release(handle *LoadHandle) {
	if e := handle.entry; e != nil {
		handle.entry = nil
		e.refs--
		h.evict()
		return
	}
	if f, ok := h.flights[handle.key]; ok {
		for i, other := range f.handles {
			if other == handle {
				f.handles = append(f.handles[:i], f.handles[i+1:]...)
				break
			}
		}
	}
}

func (h *Hub) evictable(e *entry) bool {
	return e.refs == 0 && e.dependents == 0 && h.pins[e.id] == 0
}

func (h *Hub) overBudget() bool {
	if h.cfg.MaxEntries > 0 && h.cache.Len() > h.cfg.MaxEntries {
		return true
	}
	return h.cfg.MaxBytes > 0 && h.used > h.cfg.MaxBytes
}

// evict drops least recently used entries while the cache is over budget.
// Entries that are referenced, pinned or depended upon stay.
func (h *Hub) evict() {
	for h.overBudget() {
		var victim *entry
		for _, key := range h.cache.Oldest() {
			if e, _ := h.cache.Peek(key); h.evictable(e) {
				victim = e
				break
			}
		}
		if victim == nil {
			return
		}
		h.cache.Remove(victim.key)
		h.used -= victim.size
		for _, d := range victim.deps {
			d.dependents--
		}
		h.metrics.Eviction()
		h.out.publish(Event{Kind: EventEvicted, ID: victim.id})
		core.LogDebug("evicted asset %s", victim.id)
	}
}
