package dac

import (
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/spaghettifunk/dawn/engine/assets/codec"
	"github.com/spaghettifunk/dawn/engine/core"
)

// Manifest describes a container as a whole. It carries no wall clock time:
// building the same inputs twice produces the same bytes.
type Manifest struct {
	Author      string `cbor:"author,omitempty" yaml:"author"`
	Description string `cbor:"description,omitempty" yaml:"description"`
	Version     string `cbor:"version,omitempty" yaml:"version"`
	License     string `cbor:"license,omitempty" yaml:"license"`
	Tool        string `cbor:"tool,omitempty" yaml:"-"`
	ToolVersion string `cbor:"tool_version,omitempty" yaml:"-"`
	Compression string `cbor:"compression,omitempty" yaml:"-"`
	// UUID v5 derived from ids and checksums of all entries
	BuildID string `cbor:"build_id,omitempty" yaml:"-"`
	// free-form per-asset metadata (tags, author, license) keyed by asset id
	Assets map[core.AssetID]AssetInfo `cbor:"assets,omitempty" yaml:"-"`
}

type AssetInfo struct {
	Tags    []string `cbor:"tags,omitempty"`
	Author  string   `cbor:"author,omitempty"`
	License string   `cbor:"license,omitempty"`
}

func (i AssetInfo) empty() bool {
	return len(i.Tags) == 0 && i.Author == "" && i.License == ""
}

// buildID hashes the table of contents in layout order.
func buildID(entries []Entry) string {
	parts := make([][]byte, 0, len(entries)*2)
	for i := range entries {
		parts = append(parts, []byte(entries[i].ID), binary.LittleEndian.AppendUint64(nil, entries[i].Checksum))
	}
	digest := codec.Digest(parts...)
	return core.ContentID(digest[:]).String()
}

func marshalManifest(m *Manifest) ([]byte, error) {
	for id, info := range m.Assets {
		if info.empty() {
			delete(m.Assets, id)
			continue
		}
		info.Tags = append([]string(nil), info.Tags...)
		sort.Strings(info.Tags)
		m.Assets[id] = info
	}
	data, err := codec.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encoding manifest: %w", err)
	}
	return data, nil
}

func unmarshalManifest(data []byte) (*Manifest, error) {
	m := &Manifest{}
	if len(data) == 0 {
		return m, nil
	}
	if err := codec.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("%w: manifest: %v", core.ErrFormat, err)
	}
	return m, nil
}
