package loaders

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/spaghettifunk/dawn/engine/assets/ir"
)

// imagePixels converts any decoded image into tightly packed texels of the
// requested format. flip reverses the row order.
func imagePixels(img image.Image, format ir.PixelFormat, flip bool) []byte {
	b := img.Bounds()
	width, height := b.Dx(), b.Dy()

	rgba, ok := img.(*image.NRGBA)
	if !ok || rgba.Rect.Min != (image.Point{}) || rgba.Stride != width*4 {
		rgba = image.NewNRGBA(image.Rect(0, 0, width, height))
		draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	}

	ch := format.Channels()
	out := make([]byte, width*height*ch)
	for y := 0; y < height; y++ {
		srcY := y
		if flip {
			srcY = height - 1 - y
		}
		row := rgba.Pix[srcY*rgba.Stride : srcY*rgba.Stride+width*4]
		dst := out[y*width*ch : (y+1)*width*ch]
		for x := 0; x < width; x++ {
			px := row[x*4 : x*4+4]
			switch format {
			case ir.PixelFormatR8:
				dst[x] = luminance(px)
			case ir.PixelFormatRG8:
				dst[x*2] = luminance(px)
				dst[x*2+1] = px[3]
			case ir.PixelFormatRGB8:
				copy(dst[x*3:x*3+3], px[:3])
			case ir.PixelFormatRGBA8:
				copy(dst[x*4:x*4+4], px)
			}
		}
	}
	return out
}

func luminance(px []byte) uint8 {
	return color.GrayModel.Convert(color.NRGBA{R: px[0], G: px[1], B: px[2], A: 255}).(color.Gray).Y
}

// hasTransparency reports whether any texel is not fully opaque.
func hasTransparency(img image.Image) bool {
	if o, ok := img.(interface{ Opaque() bool }); ok {
		return !o.Opaque()
	}
	return true
}
