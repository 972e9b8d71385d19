package loaders

import (
	"bufio"
	"bytes"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/spaghettifunk/dawn/engine/assets/codec"
	"github.com/spaghettifunk/dawn/engine/assets/ir"
	"github.com/spaghettifunk/dawn/engine/core"
)

// ModelLoader imports Wavefront OBJ meshes. Every `usemtl` starts a new
// submesh; the material name resolves to the asset id given by the
// "material.<name>" param, or to the normalised name, and is kept only when it
// is a declared dependency of the mesh.
type ModelLoader struct{}

type objIndex struct {
	v, vt, vn int
}

type objBuilder struct {
	positions [][3]float32
	texcoords [][2]float32
	normals   [][3]float32

	submeshes []ir.Submesh
	current   *ir.Submesh
	lookup    map[objIndex]uint32
	// vertices that need a generated normal
	generated map[uint32]bool
}

func (ml *ModelLoader) Import(src codec.Source) (ir.Asset, error) {
	b := &objBuilder{}
	scanner := bufio.NewScanner(bytes.NewReader(src.Data))
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		var err error
		switch fields[0] {
		case "v":
			var p [3]float32
			p, err = parseFloats3(fields[1:])
			b.positions = append(b.positions, p)
		case "vn":
			var n [3]float32
			n, err = parseFloats3(fields[1:])
			b.normals = append(b.normals, n)
		case "vt":
			var uv [2]float32
			uv, err = parseFloats2(fields[1:])
			b.texcoords = append(b.texcoords, uv)
		case "f":
			err = b.face(fields[1:])
		case "usemtl":
			name := strings.TrimSpace(strings.TrimPrefix(line, "usemtl"))
			b.begin(name, resolveMaterial(src, name))
		case "o", "g":
			if b.current == nil || len(b.current.Indices) > 0 {
				b.begin(strings.Join(fields[1:], " "), currentMaterial(b))
			} else {
				b.current.Name = strings.Join(fields[1:], " ")
			}
		case "mtllib", "s", "l", "p":
			// materials come from the asset graph, smoothing groups and
			// non-triangle primitives are ignored
		default:
			core.LogDebug("obj %s:%d: skipping unknown statement %q", src.Path, lineNo, fields[0])
		}
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %w", src.Path, lineNo, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	mesh := b.finish()
	if len(mesh.Submeshes) == 0 {
		return nil, fmt.Errorf("%s: no faces found", src.Path)
	}
	if err := mesh.Validate(); err != nil {
		return nil, err
	}
	return mesh, nil
}

func resolveMaterial(src codec.Source, name string) core.AssetID {
	if name == "" {
		return ""
	}
	id := core.AssetID(src.Param("material."+name, string(core.NormalizeAssetID(name))))
	if !src.HasDependency(id) {
		core.LogWarn("mesh %s uses material %q which is not a declared dependency, using default", src.ID, id)
		return ""
	}
	return id
}

func currentMaterial(b *objBuilder) core.AssetID {
	if b.current == nil {
		return ""
	}
	return b.current.Material
}

func (b *objBuilder) begin(name string, material core.AssetID) {
	if b.current != nil && len(b.current.Indices) == 0 {
		// nothing was emitted, reuse
		b.current.Name = name
		b.current.Material = material
		return
	}
	b.flush()
	b.current = &ir.Submesh{Name: name, Material: material}
	b.lookup = make(map[objIndex]uint32)
	b.generated = make(map[uint32]bool)
}

func (b *objBuilder) flush() {
	if b.current == nil || len(b.current.Indices) == 0 {
		return
	}
	b.generateNormals()
	b.submeshes = append(b.submeshes, *b.current)
}

func (b *objBuilder) finish() *ir.Mesh {
	b.flush()
	b.current = nil
	m := &ir.Mesh{Submeshes: b.submeshes}
	m.ComputeBounds()
	return m
}

func (b *objBuilder) face(refs []string) error {
	if len(refs) < 3 {
		return fmt.Errorf("face with %d vertices", len(refs))
	}
	if b.current == nil {
		b.begin("default", "")
	}
	idx := make([]uint32, len(refs))
	for i, ref := range refs {
		oi, err := b.parseRef(ref)
		if err != nil {
			return err
		}
		idx[i] = b.vertex(oi)
	}
	// fan triangulation
	for i := 1; i+1 < len(idx); i++ {
		b.current.Indices = append(b.current.Indices, idx[0], idx[i], idx[i+1])
	}
	return nil
}

func (b *objBuilder) parseRef(ref string) (objIndex, error) {
	parts := strings.Split(ref, "/")
	oi := objIndex{v: -1, vt: -1, vn: -1}
	resolve := func(s string, n int) (int, error) {
		i, err := strconv.Atoi(s)
		if err != nil {
			return 0, fmt.Errorf("invalid face index %q", s)
		}
		if i < 0 {
			i += n
		} else {
			i--
		}
		if i < 0 || i >= n {
			return 0, fmt.Errorf("face index %s out of range", s)
		}
		return i, nil
	}
	var err error
	if oi.v, err = resolve(parts[0], len(b.positions)); err != nil {
		return oi, err
	}
	if len(parts) > 1 && parts[1] != "" {
		if oi.vt, err = resolve(parts[1], len(b.texcoords)); err != nil {
			return oi, err
		}
	}
	if len(parts) > 2 && parts[2] != "" {
		if oi.vn, err = resolve(parts[2], len(b.normals)); err != nil {
			return oi, err
		}
	}
	return oi, nil
}

func (b *objBuilder) vertex(oi objIndex) uint32 {
	if i, ok := b.lookup[oi]; ok {
		return i
	}
	p := b.positions[oi.v]
	var n [3]float32
	if oi.vn >= 0 {
		n = b.normals[oi.vn]
	}
	var uv [2]float32
	if oi.vt >= 0 {
		uv = b.texcoords[oi.vt]
	}
	i := uint32(b.current.VertexCount())
	b.current.Vertices = append(b.current.Vertices, p[0], p[1], p[2], n[0], n[1], n[2], uv[0], uv[1])
	b.lookup[oi] = i
	if oi.vn < 0 {
		b.generated[i] = true
	}
	return i
}

// generateNormals fills missing normals with the area weighted average of the
// adjacent face normals.
func (b *objBuilder) generateNormals() {
	if len(b.generated) == 0 {
		return
	}
	v := b.current.Vertices
	pos := func(i uint32) [3]float32 {
		o := int(i) * ir.VertexStride
		return [3]float32{v[o], v[o+1], v[o+2]}
	}
	for t := 0; t+2 < len(b.current.Indices); t += 3 {
		i0, i1, i2 := b.current.Indices[t], b.current.Indices[t+1], b.current.Indices[t+2]
		p0, p1, p2 := pos(i0), pos(i1), pos(i2)
		e1 := [3]float32{p1[0] - p0[0], p1[1] - p0[1], p1[2] - p0[2]}
		e2 := [3]float32{p2[0] - p0[0], p2[1] - p0[1], p2[2] - p0[2]}
		fn := [3]float32{
			e1[1]*e2[2] - e1[2]*e2[1],
			e1[2]*e2[0] - e1[0]*e2[2],
			e1[0]*e2[1] - e1[1]*e2[0],
		}
		for _, i := range []uint32{i0, i1, i2} {
			if b.generated[i] {
				o := int(i)*ir.VertexStride + 3
				v[o] += fn[0]
				v[o+1] += fn[1]
				v[o+2] += fn[2]
			}
		}
	}
	for i := range b.generated {
		o := int(i)*ir.VertexStride + 3
		l := float32(math.Sqrt(float64(v[o]*v[o] + v[o+1]*v[o+1] + v[o+2]*v[o+2])))
		if l > 0 {
			v[o] /= l
			v[o+1] /= l
			v[o+2] /= l
		}
	}
}

func parseFloats3(fields []string) ([3]float32, error) {
	var out [3]float32
	if len(fields) < 3 {
		return out, fmt.Errorf("expected 3 components, got %d", len(fields))
	}
	for i := 0; i < 3; i++ {
		f, err := strconv.ParseFloat(fields[i], 32)
		if err != nil {
			return out, fmt.Errorf("invalid number %q", fields[i])
		}
		out[i] = float32(f)
	}
	return out, nil
}

func parseFloats2(fields []string) ([2]float32, error) {
	var out [2]float32
	if len(fields) < 1 {
		return out, fmt.Errorf("expected at least 1 component")
	}
	for i := 0; i < 2 && i < len(fields); i++ {
		f, err := strconv.ParseFloat(fields[i], 32)
		if err != nil {
			return out, fmt.Errorf("invalid number %q", fields[i])
		}
		out[i] = float32(f)
	}
	return out, nil
}
