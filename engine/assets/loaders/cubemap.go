package loaders

import (
	"bytes"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spaghettifunk/dawn/engine/assets/codec"
	"github.com/spaghettifunk/dawn/engine/assets/ir"
)

// cross layout, in face units:
//
//	    +y
//	-x  +z  +x  -z
//	    -y
var crossOffsets = [ir.CubeFaceCount]image.Point{
	ir.CubeFacePositiveX: {2, 1},
	ir.CubeFaceNegativeX: {0, 1},
	ir.CubeFacePositiveY: {1, 0},
	ir.CubeFaceNegativeY: {1, 2},
	ir.CubeFacePositiveZ: {1, 1},
	ir.CubeFaceNegativeZ: {3, 1},
}

// CubemapLoader imports a cube texture either from one horizontal cross
// image (layout = "cross", the default) or from six separate images
// (layout = "faces", faces = "+x,-x,+y,-y,+z,-z" paths relative to the
// source). Sampler params are the same as TextureLoader's plus wrap_r; wraps
// default to clamp_to_edge.
type CubemapLoader struct {
	// ReadFile loads face images; defaults to os.ReadFile.
	ReadFile func(path string) ([]byte, error)
}

func (cl *CubemapLoader) Import(src codec.Source) (ir.Asset, error) {
	var (
		faces [ir.CubeFaceCount]image.Image
		err   error
	)
	switch layout := src.Param("layout", "cross"); layout {
	case "cross":
		faces, err = crossFaces(src)
	case "faces":
		faces, err = cl.fileFaces(src)
	default:
		return nil, fmt.Errorf("unknown cubemap layout %q", layout)
	}
	if err != nil {
		return nil, err
	}

	size := faces[0].Bounds().Dx()
	opaque := true
	for i, f := range faces {
		b := f.Bounds()
		if b.Dx() != b.Dy() {
			return nil, fmt.Errorf("cube face %s is not square (%dx%d)", ir.CubeFace(i), b.Dx(), b.Dy())
		}
		if b.Dx() != size {
			return nil, fmt.Errorf("cube face %s is %dpx, expected %dpx", ir.CubeFace(i), b.Dx(), size)
		}
		opaque = opaque && !hasTransparency(f)
	}
	if size == 0 {
		return nil, fmt.Errorf("cube faces are empty")
	}

	defaultFormat := "rgba8"
	if opaque {
		defaultFormat = "rgb8"
	}
	cube := &ir.Cubemap{Size: uint32(size)}
	if cube.Format, err = ir.ParsePixelFormat(src.Param("pixel_format", defaultFormat)); err != nil {
		return nil, err
	}
	smp, err := parseSampling(src, "clamp_to_edge")
	if err != nil {
		return nil, err
	}
	cube.UseMipmaps = smp.mipmaps
	cube.FilterMinify, cube.FilterMagnify = smp.minify, smp.magnify
	cube.RepeatU, cube.RepeatV, cube.RepeatW = smp.wrapS, smp.wrapT, smp.wrapR

	for i, f := range faces {
		cube.Faces[i] = imagePixels(f, cube.Format, false)
	}
	if err := cube.Validate(); err != nil {
		return nil, err
	}
	return cube, nil
}

func crossFaces(src codec.Source) ([ir.CubeFaceCount]image.Image, error) {
	var faces [ir.CubeFaceCount]image.Image
	img, _, err := image.Decode(bytes.NewReader(src.Data))
	if err != nil {
		return faces, fmt.Errorf("decoding cross image %s: %w", src.Path, err)
	}
	b := img.Bounds()
	side := b.Dx() / 4
	if side == 0 || side*4 != b.Dx() || side*3 != b.Dy() {
		return faces, fmt.Errorf("cross image must be 4:3 with square faces, got %dx%d", b.Dx(), b.Dy())
	}
	sub, ok := img.(interface {
		SubImage(r image.Rectangle) image.Image
	})
	if !ok {
		return faces, fmt.Errorf("cross image %s cannot be sliced (%T)", src.Path, img)
	}
	for i, off := range crossOffsets {
		origin := b.Min.Add(off.Mul(side))
		faces[i] = sub.SubImage(image.Rectangle{Min: origin, Max: origin.Add(image.Pt(side, side))})
	}
	return faces, nil
}

func (cl *CubemapLoader) fileFaces(src codec.Source) ([ir.CubeFaceCount]image.Image, error) {
	var faces [ir.CubeFaceCount]image.Image
	readFile := cl.ReadFile
	if readFile == nil {
		readFile = os.ReadFile
	}

	names := strings.Split(src.Param("faces", ""), ",")
	if len(names) != ir.CubeFaceCount {
		return faces, fmt.Errorf("faces must list %d images, got %s", ir.CubeFaceCount, strconv.Quote(src.Param("faces", "")))
	}
	for i, name := range names {
		path := filepath.Join(filepath.Dir(src.Path), strings.TrimSpace(name))
		data, err := readFile(path)
		if err != nil {
			return faces, fmt.Errorf("reading cube face %s: %w", ir.CubeFace(i), err)
		}
		if faces[i], _, err = image.Decode(bytes.NewReader(data)); err != nil {
			return faces, fmt.Errorf("decoding cube face %s (%s): %w", ir.CubeFace(i), path, err)
		}
	}
	return faces, nil
}
