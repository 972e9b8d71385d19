package ir

import (
	"fmt"
	"strings"

	"github.com/spaghettifunk/dawn/engine/core"
)

/** @brief Layout of one texel. */
type PixelFormat uint8

const (
	PixelFormatR8    PixelFormat = 1
	PixelFormatRG8   PixelFormat = 2
	PixelFormatRGB8  PixelFormat = 3
	PixelFormatRGBA8 PixelFormat = 4
)

// Channels is the number of bytes per texel.
func (f PixelFormat) Channels() int {
	switch f {
	case PixelFormatR8, PixelFormatRG8, PixelFormatRGB8, PixelFormatRGBA8:
		return int(f)
	}
	return 0
}

func (f PixelFormat) String() string {
	switch f {
	case PixelFormatR8:
		return "r8"
	case PixelFormatRG8:
		return "rg8"
	case PixelFormatRGB8:
		return "rgb8"
	case PixelFormatRGBA8:
		return "rgba8"
	}
	return fmt.Sprintf("format(%d)", uint8(f))
}

func ParsePixelFormat(s string) (PixelFormat, error) {
	switch strings.ToLower(s) {
	case "r8", "r":
		return PixelFormatR8, nil
	case "rg8", "rg":
		return PixelFormatRG8, nil
	case "rgb8", "rgb":
		return PixelFormatRGB8, nil
	case "rgba8", "rgba", "":
		return PixelFormatRGBA8, nil
	}
	return 0, fmt.Errorf("unknown pixel format %q", s)
}

type TextureFilter uint8

const (
	/** @brief Nearest-neighbor filtering. */
	TextureFilterModeNearest TextureFilter = 0x0
	/** @brief Linear (i.e. bilinear) filtering.*/
	TextureFilterModeLinear TextureFilter = 0x1
)

func ParseTextureFilter(s string) (TextureFilter, error) {
	switch strings.ToLower(s) {
	case "nearest":
		return TextureFilterModeNearest, nil
	case "linear", "":
		return TextureFilterModeLinear, nil
	}
	return 0, fmt.Errorf("unknown texture filter %q", s)
}

type TextureRepeat uint8

const (
	TextureRepeatRepeat         TextureRepeat = 0x1
	TextureRepeatMirroredRepeat TextureRepeat = 0x2
	TextureRepeatClampToEdge    TextureRepeat = 0x3
	TextureRepeatClampToBorder  TextureRepeat = 0x4
)

func ParseTextureRepeat(s string) (TextureRepeat, error) {
	switch strings.ToLower(s) {
	case "repeat", "":
		return TextureRepeatRepeat, nil
	case "mirrored_repeat", "mirror":
		return TextureRepeatMirroredRepeat, nil
	case "clamp_to_edge", "clamp":
		return TextureRepeatClampToEdge, nil
	case "clamp_to_border", "border":
		return TextureRepeatClampToBorder, nil
	}
	return 0, fmt.Errorf("unknown texture repeat mode %q", s)
}

/**
 * @brief A decoded image ready for upload. Pixels are tightly packed rows,
 * top row first, Format.Channels() bytes per texel.
 */
type Texture struct {
	/** @brief The texture Width. */
	Width uint32 `cbor:"width"`
	/** @brief The texture Height. */
	Height uint32      `cbor:"height"`
	Format PixelFormat `cbor:"format"`
	/** @brief Whether mip levels are generated at upload time. */
	UseMipmaps bool `cbor:"mipmaps"`
	/** @brief Texture filtering mode for minification. */
	FilterMinify TextureFilter `cbor:"min_filter"`
	/** @brief Texture filtering mode for magnification. */
	FilterMagnify TextureFilter `cbor:"mag_filter"`
	/** @brief The repeat mode on the U axis (or X, or S) */
	RepeatU TextureRepeat `cbor:"wrap_s"`
	/** @brief The repeat mode on the V axis (or Y, or T) */
	RepeatV TextureRepeat `cbor:"wrap_t"`
	Pixels  []byte        `cbor:"pixels"`
}

func (t *Texture) Kind() Kind { return KindTexture }

func (t *Texture) MemoryUsage() int { return len(t.Pixels) }

// Validate checks that the pixel buffer matches the declared dimensions.
func (t *Texture) Validate() error {
	ch := t.Format.Channels()
	if ch == 0 {
		return fmt.Errorf("invalid pixel format %d", t.Format)
	}
	size, err := core.MulSize(int(t.Width), int(t.Height), ch)
	if err != nil {
		return fmt.Errorf("texture %dx%d: %w", t.Width, t.Height, err)
	}
	if size != len(t.Pixels) {
		return fmt.Errorf("texture %dx%d %s expects %d bytes, got %d", t.Width, t.Height, t.Format, size, len(t.Pixels))
	}
	return nil
}
