package ir

import "github.com/spaghettifunk/dawn/engine/core"

type FontGlyph struct {
	Codepoint int32  `cbor:"codepoint"`
	X         uint16 `cbor:"x"`
	Y         uint16 `cbor:"y"`
	Width     uint16 `cbor:"width"`
	Height    uint16 `cbor:"height"`
	XOffset   int16  `cbor:"x_offset"`
	YOffset   int16  `cbor:"y_offset"`
	XAdvance  int16  `cbor:"x_advance"`
	PageID    uint8  `cbor:"page"`
}

type FontKerning struct {
	Codepoint0 int32 `cbor:"first"`
	Codepoint1 int32 `cbor:"second"`
	Amount     int16 `cbor:"amount"`
}

type FontPage struct {
	ID uint8 `cbor:"id"`
	// atlas texture, a dependency of the font
	Texture core.AssetID `cbor:"texture"`
}

/**
 * @brief Font metrics and glyph atlas layout. Glyphs are sorted by codepoint,
 * kernings by (first, second).
 */
type Font struct {
	Face        string        `cbor:"face"`
	Size        uint32        `cbor:"size"`
	LineHeight  int32         `cbor:"line_height"`
	Baseline    int32         `cbor:"baseline"`
	AtlasWidth  uint32        `cbor:"atlas_width"`
	AtlasHeight uint32        `cbor:"atlas_height"`
	Glyphs      []FontGlyph   `cbor:"glyphs"`
	Kernings    []FontKerning `cbor:"kernings"`
	Pages       []FontPage    `cbor:"pages"`
}

func (f *Font) Kind() Kind { return KindFont }

func (f *Font) MemoryUsage() int {
	return len(f.Face) + len(f.Glyphs)*20 + len(f.Kernings)*10 + len(f.Pages)*16
}

// Glyph looks a glyph up by codepoint.
func (f *Font) Glyph(codepoint int32) (FontGlyph, bool) {
	lo, hi := 0, len(f.Glyphs)
	for lo < hi {
		mid := (lo + hi) / 2
		switch c := f.Glyphs[mid].Codepoint; {
		case c == codepoint:
			return f.Glyphs[mid], true
		case c < codepoint:
			lo = mid + 1
		default:
			hi = mid
		}
	}
	return FontGlyph{}, false
}
