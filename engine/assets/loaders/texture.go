package loaders

import (
	"bytes"
	"fmt"
	"image"
	"strconv"

	// decoders register themselves with image.Decode
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/spaghettifunk/dawn/engine/assets/codec"
	"github.com/spaghettifunk/dawn/engine/assets/ir"
	"github.com/spaghettifunk/dawn/engine/core"
)

// TextureLoader imports png, jpeg, gif, bmp, tiff and webp images.
//
// Params:
//
//	pixel_format  r8 | rg8 | rgb8 | rgba8 (default: rgb8 for opaque images, rgba8 otherwise)
//	mipmaps       bool, default true
//	min_filter    nearest | linear
//	mag_filter    nearest | linear
//	wrap_s        repeat | mirrored_repeat | clamp_to_edge | clamp_to_border
//	wrap_t        same as wrap_s
//	flip_y        bool, default false
type TextureLoader struct{}

func (tl *TextureLoader) Import(src codec.Source) (ir.Asset, error) {
	img, format, err := image.Decode(bytes.NewReader(src.Data))
	if err != nil {
		return nil, fmt.Errorf("decoding image %s: %w", src.Path, err)
	}
	core.LogDebug("decoded %s image %s (%dx%d)", format, src.ID, img.Bounds().Dx(), img.Bounds().Dy())

	tex := &ir.Texture{}
	defaultFormat := "rgba8"
	if !hasTransparency(img) {
		defaultFormat = "rgb8"
	}
	if tex.Format, err = ir.ParsePixelFormat(src.Param("pixel_format", defaultFormat)); err != nil {
		return nil, err
	}
	smp, err := parseSampling(src, "repeat")
	if err != nil {
		return nil, err
	}
	tex.UseMipmaps = smp.mipmaps
	tex.FilterMinify, tex.FilterMagnify = smp.minify, smp.magnify
	tex.RepeatU, tex.RepeatV = smp.wrapS, smp.wrapT
	flip, err := strconv.ParseBool(src.Param("flip_y", "false"))
	if err != nil {
		return nil, fmt.Errorf("invalid flip_y value: %w", err)
	}

	b := img.Bounds()
	if _, err := core.MulSize(b.Dx(), b.Dy(), 4); err != nil {
		return nil, fmt.Errorf("image %dx%d is too large: %w", b.Dx(), b.Dy(), err)
	}
	tex.Width = uint32(b.Dx())
	tex.Height = uint32(b.Dy())
	tex.Pixels = imagePixels(img, tex.Format, flip)

	if err := tex.Validate(); err != nil {
		return nil, err
	}
	return tex, nil
}

// sampling holds the sampler settings shared by textures and cubemaps.
type sampling struct {
	mipmaps         bool
	minify, magnify ir.TextureFilter
	wrapS, wrapT    ir.TextureRepeat
	wrapR           ir.TextureRepeat
}

func parseSampling(src codec.Source, wrapDefault string) (sampling, error) {
	var (
		s   sampling
		err error
	)
	if s.mipmaps, err = strconv.ParseBool(src.Param("mipmaps", "true")); err != nil {
		return s, fmt.Errorf("invalid mipmaps value: %w", err)
	}
	if s.minify, err = ir.ParseTextureFilter(src.Param("min_filter", "linear")); err != nil {
		return s, err
	}
	if s.magnify, err = ir.ParseTextureFilter(src.Param("mag_filter", "linear")); err != nil {
		return s, err
	}
	if s.wrapS, err = ir.ParseTextureRepeat(src.Param("wrap_s", wrapDefault)); err != nil {
		return s, err
	}
	if s.wrapT, err = ir.ParseTextureRepeat(src.Param("wrap_t", wrapDefault)); err != nil {
		return s, err
	}
	if s.wrapR, err = ir.ParseTextureRepeat(src.Param("wrap_r", wrapDefault)); err != nil {
		return s, err
	}
	return s, nil
}
