package loaders

import (
	"github.com/spaghettifunk/dawn/engine/assets/codec"
	"github.com/spaghettifunk/dawn/engine/assets/ir"
)

// Importer is implemented by every loader of this package.
type Importer interface {
	Import(src codec.Source) (ir.Asset, error)
}

type binding struct {
	rawKinds []string
	importer Importer
	kind     ir.Kind
}

var defaults = []binding{
	{[]string{"png", "jpg", "jpeg", "gif", "bmp", "tif", "tiff", "webp"}, &TextureLoader{}, ir.KindTexture},
	{[]string{"obj"}, &ModelLoader{}, ir.KindMesh},
	{[]string{"wav", "wave"}, &AudioLoader{}, ir.KindAudio},
	{[]string{"glsl", "shader", "vert", "frag"}, &ShaderLoader{}, ir.KindShader},
	{[]string{"amt", "material"}, &MaterialLoader{}, ir.KindMaterial},
	{[]string{"fnt"}, &BitmapFontLoader{}, ir.KindFont},
	{[]string{"ttf", "otf"}, &SystemFontLoader{}, ir.KindFont},
	{[]string{"toml", "dict"}, &DictionaryLoader{}, ir.KindDictionary},
	{[]string{"bin", "blob", "spv"}, &BinaryLoader{}, ir.KindBlob},
	{[]string{"cube", "cubemap"}, &CubemapLoader{}, ir.KindCubemap},
	{[]string{"notes"}, &NotesLoader{}, ir.KindNotes},
}

// RegisterDefaults registers every built-in importer under its raw kinds.
func RegisterDefaults(r *codec.Registry) error {
	for _, b := range defaults {
		for _, raw := range b.rawKinds {
			if err := r.RegisterImporter(raw, b.importer.Import); err != nil {
				return err
			}
		}
	}
	return nil
}

// DefaultKind returns the IR kind the built-in importer of rawKind produces.
func DefaultKind(rawKind string) (ir.Kind, bool) {
	for _, b := range defaults {
		for _, raw := range b.rawKinds {
			if raw == rawKind {
				return b.kind, true
			}
		}
	}
	return ir.KindUnknown, false
}
