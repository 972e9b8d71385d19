package loaders

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"golang.org/x/image/font/gofont/goregular"

	"github.com/spaghettifunk/dawn/engine/assets/codec"
	"github.com/spaghettifunk/dawn/engine/assets/ir"
	"github.com/spaghettifunk/dawn/engine/core"
)

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode: %v", err)
	}
	return buf.Bytes()
}

func TestTextureLoader(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	img.SetNRGBA(0, 0, color.NRGBA{R: 255, A: 255})
	img.SetNRGBA(1, 0, color.NRGBA{G: 255, A: 255})
	img.SetNRGBA(0, 1, color.NRGBA{B: 255, A: 255})
	img.SetNRGBA(1, 1, color.NRGBA{R: 10, G: 20, B: 30, A: 128})
	data := encodePNG(t, img)

	t.Run("rgba", func(t *testing.T) {
		asset, err := (&TextureLoader{}).Import(codec.Source{ID: "tex", Path: "tex.png", Data: data})
		if err != nil {
			t.Fatalf("Import: %v", err)
		}
		tex := asset.(*ir.Texture)
		if tex.Width != 2 || tex.Height != 2 || tex.Format != ir.PixelFormatRGBA8 {
			t.Fatalf("unexpected texture header %+v", tex)
		}
		want := []byte{255, 0, 0, 255, 0, 255, 0, 255, 0, 0, 255, 255, 10, 20, 30, 128}
		if !bytes.Equal(tex.Pixels, want) {
			t.Fatalf("pixels = %v, want %v", tex.Pixels, want)
		}
		if !tex.UseMipmaps || tex.RepeatU != ir.TextureRepeatRepeat {
			t.Fatalf("defaults not applied: %+v", tex)
		}
	})

	t.Run("flip and rgb", func(t *testing.T) {
		asset, err := (&TextureLoader{}).Import(codec.Source{
			ID: "tex", Path: "tex.png", Data: data,
			Params: map[string]string{"flip_y": "true", "pixel_format": "rgb8", "wrap_s": "clamp_to_edge", "mipmaps": "false"},
		})
		if err != nil {
			t.Fatalf("Import: %v", err)
		}
		tex := asset.(*ir.Texture)
		want := []byte{0, 0, 255, 10, 20, 30, 255, 0, 0, 0, 255, 0}
		if !bytes.Equal(tex.Pixels, want) {
			t.Fatalf("pixels = %v, want %v", tex.Pixels, want)
		}
		if tex.UseMipmaps || tex.RepeatU != ir.TextureRepeatClampToEdge {
			t.Fatalf("params not applied: %+v", tex)
		}
	})

	t.Run("opaque defaults to rgb", func(t *testing.T) {
		opaque := image.NewNRGBA(image.Rect(0, 0, 1, 1))
		opaque.SetNRGBA(0, 0, color.NRGBA{R: 1, G: 2, B: 3, A: 255})
		asset, err := (&TextureLoader{}).Import(codec.Source{ID: "o", Data: encodePNG(t, opaque)})
		if err != nil {
			t.Fatal(err)
		}
		if f := asset.(*ir.Texture).Format; f != ir.PixelFormatRGB8 {
			t.Fatalf("format = %s, want rgb8", f)
		}
	})

	t.Run("garbage", func(t *testing.T) {
		if _, err := (&TextureLoader{}).Import(codec.Source{ID: "bad", Data: []byte("not an image")}); err == nil {
			t.Fatal("expected error")
		}
	})
}

func makeWav(channels, rate, bits int, frames []int16) []byte {
	var data bytes.Buffer
	for _, s := range frames {
		_ = binary.Write(&data, binary.LittleEndian, s)
	}
	var buf bytes.Buffer
	buf.WriteString("RIFF")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(4+8+16+8+data.Len()))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(16))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(wavFormatPCM))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(channels))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(rate))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(rate*channels*bits/8))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(channels*bits/8))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(bits))
	buf.WriteString("data")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(data.Len()))
	buf.Write(data.Bytes())
	return buf.Bytes()
}

func TestAudioLoader(t *testing.T) {
	wav := makeWav(2, 22050, 16, []int16{0, 16384, -32768, 32767})
	asset, err := (&AudioLoader{}).Import(codec.Source{ID: "snd", Data: wav})
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	a := asset.(*ir.Audio)
	if a.SampleRate != 22050 || a.Channels != 2 || a.Frames() != 2 {
		t.Fatalf("unexpected audio header %+v", a)
	}
	want := []float32{0, 0.5, -1, float32(32767) / 32768}
	if !reflect.DeepEqual(a.Samples, want) {
		t.Fatalf("samples = %v, want %v", a.Samples, want)
	}

	if _, err := (&AudioLoader{}).Import(codec.Source{ID: "snd", Data: []byte("RIFF0000WAVE")}); err == nil {
		t.Fatal("expected error for wav without chunks")
	}
	if _, err := (&AudioLoader{}).Import(codec.Source{ID: "snd", Data: []byte("OggS")}); err == nil {
		t.Fatal("expected error for non-wav data")
	}
}

const quadOBJ = `# quad
o quad
v -1 -1 0
v  1 -1 0
v  1  1 0
v -1  1 0
vt 0 0
vt 1 0
vt 1 1
vt 0 1
vn 0 0 1
usemtl Brick Wall
f 1/1/1 2/2/1 3/3/1 4/4/1
`

func TestModelLoader(t *testing.T) {
	src := codec.Source{
		ID: "mesh_a", Path: "quad.obj", Data: []byte(quadOBJ),
		Dependencies: []core.AssetID{"brick_wall"},
	}
	asset, err := (&ModelLoader{}).Import(src)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	m := asset.(*ir.Mesh)
	if len(m.Submeshes) != 1 {
		t.Fatalf("submeshes = %d, want 1", len(m.Submeshes))
	}
	s := m.Submeshes[0]
	if s.Material != "brick_wall" {
		t.Fatalf("material = %q", s.Material)
	}
	if s.VertexCount() != 4 || !reflect.DeepEqual(s.Indices, []uint32{0, 1, 2, 0, 2, 3}) {
		t.Fatalf("vertices=%d indices=%v", s.VertexCount(), s.Indices)
	}
	if m.Bounds.Min != [3]float32{-1, -1, 0} || m.Bounds.Max != [3]float32{1, 1, 0} {
		t.Fatalf("bounds = %+v", m.Bounds)
	}

	t.Run("undeclared material", func(t *testing.T) {
		src.Dependencies = nil
		asset, err := (&ModelLoader{}).Import(src)
		if err != nil {
			t.Fatal(err)
		}
		if got := asset.(*ir.Mesh).Submeshes[0].Material; got != "" {
			t.Fatalf("material = %q, want default", got)
		}
	})

	t.Run("generated normals", func(t *testing.T) {
		obj := "v 0 0 0\nv 1 0 0\nv 0 1 0\nf 1 2 3\n"
		asset, err := (&ModelLoader{}).Import(codec.Source{ID: "tri", Data: []byte(obj)})
		if err != nil {
			t.Fatal(err)
		}
		v := asset.(*ir.Mesh).Submeshes[0].Vertices
		if v[3] != 0 || v[4] != 0 || v[5] != 1 {
			t.Fatalf("normal = %v, want +Z", v[3:6])
		}
	})

	t.Run("bad index", func(t *testing.T) {
		if _, err := (&ModelLoader{}).Import(codec.Source{ID: "bad", Data: []byte("v 0 0 0\nf 1 2 3\n")}); err == nil {
			t.Fatal("expected out of range error")
		}
	})
}

func TestShaderLoaderIncludes(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "lib"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "lib", "common.glsl"), []byte("float gamma = 2.2;\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	source := "#type vertex\nvoid main() {}\n#type fragment\n#include \"lib/common.glsl\"\nvoid main() {}\n"
	asset, err := (&ShaderLoader{}).Import(codec.Source{
		ID: "sh", Path: filepath.Join(dir, "basic.glsl"), Data: []byte(source),
		Params: map[string]string{"option.target": "spirv1.3"},
	})
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	sh := asset.(*ir.Shader)
	if got := string(sh.Sources[ir.ShaderStageVertex]); got != "void main() {}\n" {
		t.Fatalf("vertex source = %q", got)
	}
	wantFrag := "float gamma = 2.2;\n#line 2\nvoid main() {}\n"
	if got := string(sh.Sources[ir.ShaderStageFragment]); got != wantFrag {
		t.Fatalf("fragment source = %q, want %q", got, wantFrag)
	}
	if sh.CompileOptions["target"] != "spirv1.3" {
		t.Fatalf("options = %v", sh.CompileOptions)
	}

	t.Run("missing include", func(t *testing.T) {
		_, err := (&ShaderLoader{}).Import(codec.Source{ID: "sh", Path: filepath.Join(dir, "x.glsl"), Data: []byte("#include \"nope.glsl\"\n")})
		if err == nil {
			t.Fatal("expected error")
		}
	})

	t.Run("recursive include", func(t *testing.T) {
		self := filepath.Join(dir, "self.glsl")
		if err := os.WriteFile(self, []byte("#include \"self.glsl\"\n"), 0o644); err != nil {
			t.Fatal(err)
		}
		_, err := (&ShaderLoader{}).Import(codec.Source{ID: "sh", Path: self, Data: []byte("#include \"self.glsl\"\n")})
		if err == nil || !strings.Contains(err.Error(), "nested") {
			t.Fatalf("got %v, want nesting error", err)
		}
	})
}

func TestMaterialLoader(t *testing.T) {
	amt := `# material
name = brick
shader = builtin_shader
diffuse_colour = 1.0 0.5 0.25 1.0
shininess = 16
diffuse_map_name = tex_a
`
	src := codec.Source{ID: "brick", Data: []byte(amt), Dependencies: []core.AssetID{"builtin_shader", "tex_a"}}
	asset, err := (&MaterialLoader{}).Import(src)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	want := &ir.Material{
		Shader:        "builtin_shader",
		DiffuseColour: [4]float32{1, 0.5, 0.25, 1},
		Shininess:     16,
		DiffuseMap:    "tex_a",
	}
	if !reflect.DeepEqual(asset, want) {
		t.Fatalf("got %+v, want %+v", asset, want)
	}

	src.Dependencies = []core.AssetID{"builtin_shader"}
	if _, err := (&MaterialLoader{}).Import(src); err == nil {
		t.Fatal("expected error for undeclared texture dependency")
	}

	bad := codec.Source{ID: "bad", Data: []byte("shader = s\ndiffuse_colour = 2 0 0 1\n"), Dependencies: []core.AssetID{"s"}}
	if _, err := (&MaterialLoader{}).Import(bad); err == nil {
		t.Fatal("expected range error")
	}
}

func TestDictionaryLoader(t *testing.T) {
	doc := `
name = "orc"
hp = 12
speed = 1.5
hostile = true
tags = ["green", "loud"]

[stats]
str = 7
dex = 3
`
	asset, err := (&DictionaryLoader{}).Import(codec.Source{ID: "orc", Data: []byte(doc)})
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	d := asset.(*ir.Dictionary)
	var keys []string
	for _, e := range d.Entries {
		keys = append(keys, e.Key)
	}
	if !reflect.DeepEqual(keys, []string{"hostile", "hp", "name", "speed", "stats", "tags"}) {
		t.Fatalf("keys = %v", keys)
	}
	if v, ok := d.Lookup("stats", "dex"); !ok || v.Type != ir.ValueInt || v.Int != 3 {
		t.Fatalf("stats.dex = %+v, %v", v, ok)
	}
	if v, _ := d.Lookup("tags"); v.Type != ir.ValueArray || len(v.Array) != 2 || v.Array[1].String != "loud" {
		t.Fatalf("tags = %+v", v)
	}
	if _, err := (&DictionaryLoader{}).Import(codec.Source{ID: "bad", Data: []byte("= nope")}); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestBinaryLoader(t *testing.T) {
	asset, err := (&BinaryLoader{}).Import(codec.Source{ID: "b", Data: []byte{1, 2, 3, 4}, Params: map[string]string{"align": "4"}})
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(asset.(*ir.Blob).Data, []byte{1, 2, 3, 4}) {
		t.Fatal("blob data changed")
	}
	if _, err := (&BinaryLoader{}).Import(codec.Source{ID: "b", Data: []byte{1, 2, 3}, Params: map[string]string{"align": "4"}}); err == nil {
		t.Fatal("expected alignment error")
	}
}

func TestSystemFontLoader(t *testing.T) {
	asset, err := (&SystemFontLoader{}).Import(codec.Source{
		ID: "go_regular", Data: goregular.TTF,
		Params: map[string]string{"size": "16", "first": "65", "last": "90"},
	})
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	f := asset.(*ir.Font)
	if f.Size != 16 || len(f.Glyphs) != 26 {
		t.Fatalf("size=%d glyphs=%d", f.Size, len(f.Glyphs))
	}
	g, ok := f.Glyph('A')
	if !ok || g.XAdvance <= 0 || g.Width == 0 {
		t.Fatalf("glyph A = %+v, %v", g, ok)
	}
	if f.LineHeight <= 0 || f.Baseline <= 0 || f.AtlasHeight == 0 {
		t.Fatalf("metrics not set: %+v", f)
	}
}

func TestCubemapLoader(t *testing.T) {
	// one texel per face, the red channel names the face
	shade := func(f ir.CubeFace) color.NRGBA { return color.NRGBA{R: uint8(f+1) * 10, A: 255} }

	t.Run("cross", func(t *testing.T) {
		cross := image.NewNRGBA(image.Rect(0, 0, 4, 3))
		for f, off := range crossOffsets {
			cross.SetNRGBA(off.X, off.Y, shade(ir.CubeFace(f)))
		}
		asset, err := (&CubemapLoader{}).Import(codec.Source{
			ID: "sky", Path: "sky.png", Data: encodePNG(t, cross),
			Params: map[string]string{"pixel_format": "r8"},
		})
		if err != nil {
			t.Fatalf("Import: %v", err)
		}
		cube := asset.(*ir.Cubemap)
		if cube.Size != 1 || cube.RepeatW != ir.TextureRepeatClampToEdge {
			t.Fatalf("unexpected cubemap header %+v", cube)
		}
		for f := ir.CubeFace(0); f < ir.CubeFaceCount; f++ {
			want := luminance([]byte{shade(f).R, 0, 0, 255})
			if got := cube.Face(f); len(got) != 1 || got[0] != want {
				t.Fatalf("face %s = %v, want [%d]", f, got, want)
			}
		}
	})

	t.Run("faces", func(t *testing.T) {
		files := map[string][]byte{}
		var names []string
		for f := ir.CubeFace(0); f < ir.CubeFaceCount; f++ {
			img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
			for i := 0; i < 4; i++ {
				img.SetNRGBA(i%2, i/2, shade(f))
			}
			name := fmt.Sprintf("face%d.png", f)
			files[filepath.Join("sky", name)] = encodePNG(t, img)
			names = append(names, name)
		}
		loader := &CubemapLoader{ReadFile: func(path string) ([]byte, error) {
			if data, ok := files[path]; ok {
				return data, nil
			}
			return nil, os.ErrNotExist
		}}
		asset, err := loader.Import(codec.Source{
			ID: "sky", Path: filepath.Join("sky", "sky.cube"),
			Params: map[string]string{"layout": "faces", "faces": strings.Join(names, ","), "wrap_s": "repeat"},
		})
		if err != nil {
			t.Fatalf("Import: %v", err)
		}
		cube := asset.(*ir.Cubemap)
		if cube.Size != 2 || cube.Format != ir.PixelFormatRGB8 || cube.RepeatU != ir.TextureRepeatRepeat {
			t.Fatalf("unexpected cubemap header %+v", cube)
		}
		if px := cube.Face(ir.CubeFaceNegativeZ); len(px) != 12 || px[0] != shade(ir.CubeFaceNegativeZ).R {
			t.Fatalf("-z face = %v", px)
		}
	})

	t.Run("errors", func(t *testing.T) {
		tests := map[string]codec.Source{
			"not 4:3":    {ID: "c", Data: encodePNG(t, image.NewNRGBA(image.Rect(0, 0, 4, 4)))},
			"bad layout": {ID: "c", Params: map[string]string{"layout": "strip"}},
			"five faces": {ID: "c", Params: map[string]string{"layout": "faces", "faces": "a,b,c,d,e"}},
		}
		for name, src := range tests {
			if _, err := (&CubemapLoader{}).Import(src); err == nil {
				t.Errorf("%s: expected an error", name)
			}
		}
	})
}

func TestNotesLoader(t *testing.T) {
	src := "# intro\non 0 60 100\nidle 250.5\noff 0 60 # release\n\nidle 250\n"
	asset, err := (&NotesLoader{}).Import(codec.Source{ID: "tune", Path: "tune.notes", Data: []byte(src)})
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	notes := asset.(*ir.Notes)
	want := []ir.NoteEvent{
		{Type: ir.NoteOn, Channel: 0, Note: 60, Velocity: 100},
		{Type: ir.NoteIdle, Idle: 250.5},
		{Type: ir.NoteOff, Channel: 0, Note: 60},
		{Type: ir.NoteIdle, Idle: 250},
	}
	if !reflect.DeepEqual(notes.Events, want) {
		t.Fatalf("events = %+v", notes.Events)
	}
	if notes.Duration().Milliseconds() != 500 {
		t.Fatalf("duration = %s", notes.Duration())
	}

	for _, bad := range []string{"on 0 60", "on 0 200 1", "idle -1", "hum 1"} {
		if _, err := (&NotesLoader{}).Import(codec.Source{ID: "tune", Data: []byte(bad)}); err == nil {
			t.Errorf("%q: expected an error", bad)
		}
	}
}

func TestRegisterDefaults(t *testing.T) {
	r := codec.NewRegistry()
	if err := RegisterDefaults(r); err != nil {
		t.Fatalf("RegisterDefaults: %v", err)
	}
	r.Freeze()
	for _, raw := range []string{"png", "obj", "wav", "glsl", "amt", "fnt", "ttf", "toml", "bin", "cube", "notes"} {
		if _, err := r.Importer(raw); err != nil {
			t.Fatalf("importer %q missing: %v", raw, err)
		}
	}
	if k, ok := DefaultKind("webp"); !ok || k != ir.KindTexture {
		t.Fatalf("DefaultKind(webp) = %v, %v", k, ok)
	}
}
