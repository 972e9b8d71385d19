package codec

import (
	"bytes"
	"errors"
	"reflect"
	"testing"

	"github.com/spaghettifunk/dawn/engine/assets/ir"
	"github.com/spaghettifunk/dawn/engine/core"
)

func builtinRegistry(t *testing.T) *Registry {
	t.Helper()
	r := NewRegistry()
	if err := RegisterBuiltinCodecs(r); err != nil {
		t.Fatalf("RegisterBuiltinCodecs: %v", err)
	}
	r.Freeze()
	return r
}

func TestRegistryUnknownKind(t *testing.T) {
	r := NewRegistry()
	r.Freeze()

	if _, err := r.Codec(ir.KindTexture); !errors.Is(err, core.ErrConfig) {
		t.Fatalf("Codec on empty registry: got %v, want ErrConfig", err)
	}
	if _, err := r.Importer("png"); !errors.Is(err, core.ErrConfig) {
		t.Fatalf("Importer on empty registry: got %v, want ErrConfig", err)
	}
}

func TestRegistryDuplicateAndFrozen(t *testing.T) {
	r := NewRegistry()
	noop := func(Source) (ir.Asset, error) { return &ir.Blob{}, nil }

	if err := r.RegisterImporter("bin", noop); err != nil {
		t.Fatalf("first registration: %v", err)
	}
	if err := r.RegisterImporter("bin", noop); !errors.Is(err, core.ErrConfig) {
		t.Fatalf("duplicate importer: got %v, want ErrConfig", err)
	}
	if err := RegisterBuiltinCodecs(r); err != nil {
		t.Fatalf("RegisterBuiltinCodecs: %v", err)
	}
	if err := RegisterBuiltinCodecs(r); !errors.Is(err, core.ErrConfig) {
		t.Fatalf("duplicate codecs: got %v, want ErrConfig", err)
	}

	r.Freeze()
	if err := r.RegisterImporter("raw", noop); !errors.Is(err, core.ErrConfig) {
		t.Fatalf("register after freeze: got %v, want ErrConfig", err)
	}
	if got := r.Importers(); !reflect.DeepEqual(got, []string{"bin"}) {
		t.Fatalf("Importers() = %v", got)
	}
	if got := r.Kinds(); !reflect.DeepEqual(got, ir.Kinds()) {
		t.Fatalf("Kinds() = %v, want %v", got, ir.Kinds())
	}
}

func TestRegistryRejectsUnknownKindCodec(t *testing.T) {
	r := NewRegistry()
	enc := func(ir.Asset) ([]byte, error) { return nil, nil }
	dec := func([]byte) (ir.Asset, error) { return nil, nil }
	if err := r.RegisterCodec(ir.KindUnknown, enc, dec); !errors.Is(err, core.ErrConfig) {
		t.Fatalf("got %v, want ErrConfig", err)
	}
}

func sampleAssets() []ir.Asset {
	return []ir.Asset{
		&ir.Texture{
			Width: 2, Height: 1, Format: ir.PixelFormatRGBA8, UseMipmaps: true,
			FilterMinify: ir.TextureFilterModeLinear, FilterMagnify: ir.TextureFilterModeNearest,
			RepeatU: ir.TextureRepeatRepeat, RepeatV: ir.TextureRepeatClampToEdge,
			Pixels: []byte{1, 2, 3, 4, 5, 6, 7, 8},
		},
		&ir.Mesh{
			Bounds: ir.Extents{Min: [3]float32{-1, 0, 0}, Max: [3]float32{1, 1, 0}},
			Submeshes: []ir.Submesh{{
				Name:     "quad",
				Material: "mat_a",
				Vertices: []float32{
					-1, 0, 0, 0, 0, 1, 0, 0,
					1, 0, 0, 0, 0, 1, 1, 0,
					1, 1, 0, 0, 0, 1, 1, 1,
				},
				Indices: []uint32{0, 1, 2},
			}},
		},
		&ir.Audio{SampleRate: 44100, Channels: 2, Samples: []float32{0, 0.5, -0.5, 1}},
		&ir.Shader{
			CompileOptions: map[string]string{"target": "spirv"},
			Sources: map[ir.ShaderStage][]byte{
				ir.ShaderStageVertex:   []byte("void main() {}"),
				ir.ShaderStageFragment: []byte("void main() { }"),
			},
		},
		&ir.Material{
			Shader:        "builtin_shader",
			DiffuseColour: [4]float32{1, 0.5, 0.25, 1},
			Shininess:     32,
			DiffuseMap:    "tex_a",
		},
		&ir.Font{
			Face: "Mono", Size: 16, LineHeight: 18, Baseline: 14, AtlasWidth: 256, AtlasHeight: 256,
			Glyphs:   []ir.FontGlyph{{Codepoint: 65, X: 1, Y: 2, Width: 8, Height: 12, XAdvance: 9, YOffset: -2}},
			Kernings: []ir.FontKerning{{Codepoint0: 65, Codepoint1: 86, Amount: -1}},
			Pages:    []ir.FontPage{{ID: 0, Texture: "font_page0"}},
		},
		&ir.Dictionary{Entries: []ir.DictEntry{
			{Key: "name", Value: ir.StringValue("orc")},
			{Key: "hp", Value: ir.IntValue(-3)},
			{Key: "speed", Value: ir.FloatValue(1.5)},
			{Key: "tags", Value: ir.ArrayValue(ir.StringValue("a"), ir.BoolValue(true))},
			{Key: "stats", Value: ir.MapValue(ir.DictEntry{Key: "str", Value: ir.UintValue(7)})},
		}},
		&ir.Blob{Data: []byte("opaque")},
		&ir.Cubemap{
			Size: 1, Format: ir.PixelFormatR8, FilterMinify: ir.TextureFilterModeLinear,
			RepeatU: ir.TextureRepeatClampToEdge, RepeatV: ir.TextureRepeatClampToEdge, RepeatW: ir.TextureRepeatClampToEdge,
			Faces: [ir.CubeFaceCount][]byte{{1}, {2}, {3}, {4}, {5}, {6}},
		},
		&ir.Notes{Events: []ir.NoteEvent{
			{Type: ir.NoteOn, Channel: 1, Note: 60, Velocity: 100},
			{Type: ir.NoteIdle, Idle: 250},
			{Type: ir.NoteOff, Channel: 1, Note: 60},
		}},
	}
}

func TestBuiltinCodecsRoundTrip(t *testing.T) {
	r := builtinRegistry(t)
	for _, asset := range sampleAssets() {
		t.Run(asset.Kind().String(), func(t *testing.T) {
			data, err := r.Encode(asset)
			if err != nil {
				t.Fatalf("Encode: %v", err)
			}
			again, err := r.Encode(asset)
			if err != nil {
				t.Fatalf("Encode: %v", err)
			}
			if !bytes.Equal(data, again) {
				t.Fatal("encoding is not deterministic")
			}
			decoded, err := r.Decode(asset.Kind(), data)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if !reflect.DeepEqual(decoded, asset) {
				t.Fatalf("round trip mismatch:\n got %#v\nwant %#v", decoded, asset)
			}
		})
	}
}

func TestCodecRejectsWrongKind(t *testing.T) {
	r := builtinRegistry(t)
	c, err := r.Codec(ir.KindTexture)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.Encode(&ir.Blob{}); err == nil {
		t.Fatal("texture codec encoded a blob")
	}
	if _, err := c.Decode([]byte{0xff, 0x00}); err == nil {
		t.Fatal("texture codec decoded garbage")
	}
}
