package loaders

import (
	"fmt"
	"sort"

	"github.com/fzipp/bmfont"

	"github.com/spaghettifunk/dawn/engine/assets/codec"
	"github.com/spaghettifunk/dawn/engine/assets/ir"
	"github.com/spaghettifunk/dawn/engine/core"
)

// BitmapFontLoader imports AngelCode .fnt descriptors. Page images are
// separate texture assets: page N resolves to the "page<N>" param, or to the
// normalised page file name, and has to be a declared dependency.
type BitmapFontLoader struct{}

func (fl *BitmapFontLoader) Import(src codec.Source) (ir.Asset, error) {
	if src.Path == "" {
		return nil, fmt.Errorf("bitmap fonts are read from disk, source path is empty")
	}
	font, err := bmfont.Load(src.Path)
	if err != nil {
		return nil, err
	}
	d := font.Descriptor

	out := &ir.Font{
		Face:        d.Info.Face,
		Size:        uint32(d.Info.Size),
		LineHeight:  int32(d.Common.LineHeight),
		Baseline:    int32(d.Common.Base),
		AtlasWidth:  uint32(d.Common.ScaleW),
		AtlasHeight: uint32(d.Common.ScaleH),
		Glyphs:      make([]ir.FontGlyph, 0, len(d.Chars)),
		Kernings:    make([]ir.FontKerning, 0, len(d.Kerning)),
		Pages:       make([]ir.FontPage, 0, len(d.Pages)),
	}

	for _, p := range d.Pages {
		texture := core.AssetID(src.Param(fmt.Sprintf("page%d", p.ID), string(core.NormalizeAssetID(p.File))))
		if !src.HasDependency(texture) {
			return nil, fmt.Errorf("font page %d (%s) resolves to %q which is not a declared dependency", p.ID, p.File, texture)
		}
		out.Pages = append(out.Pages, ir.FontPage{ID: uint8(p.ID), Texture: texture})
	}

	for _, g := range d.Chars {
		out.Glyphs = append(out.Glyphs, ir.FontGlyph{
			Codepoint: int32(g.ID),
			X:         uint16(g.X),
			Y:         uint16(g.Y),
			Width:     uint16(g.Width),
			Height:    uint16(g.Height),
			XOffset:   int16(g.XOffset),
			YOffset:   int16(g.YOffset),
			XAdvance:  int16(g.XAdvance),
			PageID:    uint8(g.Page),
		})
	}

	for p, k := range d.Kerning {
		out.Kernings = append(out.Kernings, ir.FontKerning{
			Codepoint0: int32(p.First),
			Codepoint1: int32(p.Second),
			Amount:     int16(k.Amount),
		})
	}

	sortFont(out)
	return out, nil
}

// sortFont orders glyphs, kernings and pages so the encoded font does not
// depend on map iteration order.
func sortFont(f *ir.Font) {
	sort.Slice(f.Glyphs, func(i, j int) bool { return f.Glyphs[i].Codepoint < f.Glyphs[j].Codepoint })
	sort.Slice(f.Kernings, func(i, j int) bool {
		a, b := f.Kernings[i], f.Kernings[j]
		if a.Codepoint0 != b.Codepoint0 {
			return a.Codepoint0 < b.Codepoint0
		}
		return a.Codepoint1 < b.Codepoint1
	})
	sort.Slice(f.Pages, func(i, j int) bool { return f.Pages[i].ID < f.Pages[j].ID })
}
