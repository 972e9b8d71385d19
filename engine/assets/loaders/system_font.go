package loaders

import (
	"errors"
	"fmt"
	"strconv"

	"golang.org/x/image/font"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/font/sfnt"
	"golang.org/x/image/math/fixed"

	"github.com/spaghettifunk/dawn/engine/assets/codec"
	"github.com/spaghettifunk/dawn/engine/assets/ir"
)

// SystemFontLoader imports TrueType/OpenType fonts. It measures glyph metrics
// and lays the glyph boxes out on an atlas of the given width; rasterising
// the atlas is left to the renderer.
//
// Params: size (pixels, default 32), first / last (codepoint range, default
// 32..126), atlas_width (default 512), padding (default 1).
type SystemFontLoader struct{}

func (fl *SystemFontLoader) Import(src codec.Source) (ir.Asset, error) {
	f, err := opentype.Parse(src.Data)
	if err != nil {
		return nil, fmt.Errorf("parsing font %s: %w", src.Path, err)
	}

	size, err := intParam(src, "size", 32)
	if err != nil {
		return nil, err
	}
	first, err := intParam(src, "first", 32)
	if err != nil {
		return nil, err
	}
	last, err := intParam(src, "last", 126)
	if err != nil {
		return nil, err
	}
	atlasWidth, err := intParam(src, "atlas_width", 512)
	if err != nil {
		return nil, err
	}
	padding, err := intParam(src, "padding", 1)
	if err != nil {
		return nil, err
	}
	if size <= 0 || first < 0 || last < first || atlasWidth <= 0 || padding < 0 {
		return nil, fmt.Errorf("invalid font parameters")
	}

	var buf sfnt.Buffer
	ppem := fixed.I(size)

	face, err := f.Name(&buf, sfnt.NameIDFamily)
	if err != nil || face == "" {
		face = src.ID.String()
	}
	metrics, err := f.Metrics(&buf, ppem, font.HintingNone)
	if err != nil {
		return nil, err
	}

	out := &ir.Font{
		Face:       face,
		Size:       uint32(size),
		LineHeight: int32(metrics.Height.Ceil()),
		Baseline:   int32(metrics.Ascent.Ceil()),
		AtlasWidth: uint32(atlasWidth),
	}

	type measured struct {
		r     rune
		index sfnt.GlyphIndex
	}
	var glyphs []measured

	// shelf packing, one row per line height
	x, y, rowHeight := padding, padding, 0
	for r := rune(first); r <= rune(last); r++ {
		gi, err := f.GlyphIndex(&buf, r)
		if err != nil {
			return nil, err
		}
		if gi == 0 {
			continue
		}
		bounds, advance, err := f.GlyphBounds(&buf, gi, ppem, font.HintingNone)
		if err != nil {
			return nil, err
		}
		w := (bounds.Max.X - bounds.Min.X).Ceil()
		h := (bounds.Max.Y - bounds.Min.Y).Ceil()
		if x+w+padding > atlasWidth {
			x = padding
			y += rowHeight + padding
			rowHeight = 0
		}
		out.Glyphs = append(out.Glyphs, ir.FontGlyph{
			Codepoint: int32(r),
			X:         uint16(x),
			Y:         uint16(y),
			Width:     uint16(w),
			Height:    uint16(h),
			XOffset:   int16(bounds.Min.X.Floor()),
			// distance from the baseline, y grows downwards in sfnt
			YOffset:  int16(bounds.Min.Y.Floor() + metrics.Ascent.Ceil()),
			XAdvance: int16(advance.Round()),
		})
		glyphs = append(glyphs, measured{r: r, index: gi})
		x += w + padding
		if h > rowHeight {
			rowHeight = h
		}
	}
	if len(out.Glyphs) == 0 {
		return nil, fmt.Errorf("font %s has no glyphs in range %d..%d", src.Path, first, last)
	}
	out.AtlasHeight = uint32(nextPowerOfTwo(y + rowHeight + padding))

	for _, a := range glyphs {
		for _, b := range glyphs {
			k, err := f.Kern(&buf, a.index, b.index, ppem, font.HintingNone)
			if errors.Is(err, sfnt.ErrNotFound) {
				// no kern table
				sortFont(out)
				return out, nil
			}
			if err != nil || k == 0 {
				continue
			}
			out.Kernings = append(out.Kernings, ir.FontKerning{
				Codepoint0: int32(a.r),
				Codepoint1: int32(b.r),
				Amount:     int16(k.Round()),
			})
		}
	}
	sortFont(out)
	return out, nil
}

func intParam(src codec.Source, key string, def int) (int, error) {
	v, ok := src.Params[key]
	if !ok {
		return def, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q", key, v)
	}
	return i, nil
}

func nextPowerOfTwo(v int) int {
	p := 1
	for p < v {
		p <<= 1
	}
	return p
}
