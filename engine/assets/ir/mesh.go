package ir

import (
	"fmt"

	"github.com/spaghettifunk/dawn/engine/core"
)

// VertexStride is the number of float32 per interleaved vertex:
// position (3), normal (3), texture coordinate (2).
const VertexStride = 8

type Extents struct {
	Min [3]float32 `cbor:"min"`
	Max [3]float32 `cbor:"max"`
}

/**
 * @brief A group of triangles sharing one material.
 */
type Submesh struct {
	Name string `cbor:"name"`
	/** @brief The material asset used to draw this submesh. Empty means default. */
	Material core.AssetID `cbor:"material"`
	/** @brief Interleaved pos3/normal3/uv2 vertices. */
	Vertices []float32 `cbor:"vertices"`
	Indices  []uint32  `cbor:"indices"`
}

func (s *Submesh) VertexCount() int {
	return len(s.Vertices) / VertexStride
}

type Mesh struct {
	Bounds    Extents   `cbor:"bounds"`
	Submeshes []Submesh `cbor:"submeshes"`
}

func (m *Mesh) Kind() Kind { return KindMesh }

func (m *Mesh) MemoryUsage() int {
	n := 0
	for i := range m.Submeshes {
		n += len(m.Submeshes[i].Vertices)*4 + len(m.Submeshes[i].Indices)*4
	}
	return n
}

// Validate checks vertex layout and that every index references a vertex.
func (m *Mesh) Validate() error {
	for i := range m.Submeshes {
		s := &m.Submeshes[i]
		if len(s.Vertices)%VertexStride != 0 {
			return fmt.Errorf("submesh %q: vertex data is not a multiple of %d floats", s.Name, VertexStride)
		}
		count := uint32(s.VertexCount())
		for _, idx := range s.Indices {
			if idx >= count {
				return fmt.Errorf("submesh %q: index %d out of range (%d vertices)", s.Name, idx, count)
			}
		}
	}
	return nil
}

// ComputeBounds recalculates the axis aligned bounds from the vertices.
func (m *Mesh) ComputeBounds() {
	first := true
	var b Extents
	for i := range m.Submeshes {
		v := m.Submeshes[i].Vertices
		for off := 0; off+VertexStride <= len(v); off += VertexStride {
			for axis := 0; axis < 3; axis++ {
				p := v[off+axis]
				if first || p < b.Min[axis] {
					b.Min[axis] = p
				}
				if first || p > b.Max[axis] {
					b.Max[axis] = p
				}
			}
			first = false
		}
	}
	m.Bounds = b
}

// Dependencies returns the distinct material ids referenced by submeshes, in
// first-use order.
func (m *Mesh) Dependencies() []core.AssetID {
	var deps []core.AssetID
	seen := make(map[core.AssetID]struct{})
	for _, s := range m.Submeshes {
		if s.Material == "" {
			continue
		}
		if _, ok := seen[s.Material]; ok {
			continue
		}
		seen[s.Material] = struct{}{}
		deps = append(deps, s.Material)
	}
	return deps
}
