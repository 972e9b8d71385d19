package ir

import "fmt"

/** @brief Face of a cube texture, in upload order. */
type CubeFace uint8

const (
	CubeFacePositiveX CubeFace = iota
	CubeFaceNegativeX
	CubeFacePositiveY
	CubeFaceNegativeY
	CubeFacePositiveZ
	CubeFaceNegativeZ

	CubeFaceCount = 6
)

var cubeFaceNames = [CubeFaceCount]string{"+x", "-x", "+y", "-y", "+z", "-z"}

func (f CubeFace) String() string {
	if int(f) < CubeFaceCount {
		return cubeFaceNames[f]
	}
	return fmt.Sprintf("face(%d)", uint8(f))
}

/**
 * @brief Six square faces of the same size and format, ordered +X, -X, +Y,
 * -Y, +Z, -Z. Each face holds tightly packed rows like Texture.Pixels.
 */
type Cubemap struct {
	Size          uint32                `cbor:"size"`
	Format        PixelFormat           `cbor:"format"`
	UseMipmaps    bool                  `cbor:"mipmaps"`
	FilterMinify  TextureFilter         `cbor:"min_filter"`
	FilterMagnify TextureFilter         `cbor:"mag_filter"`
	RepeatU       TextureRepeat         `cbor:"wrap_s"`
	RepeatV       TextureRepeat         `cbor:"wrap_t"`
	RepeatW       TextureRepeat         `cbor:"wrap_r"`
	Faces         [CubeFaceCount][]byte `cbor:"faces"`
}

func (c *Cubemap) Kind() Kind { return KindCubemap }

func (c *Cubemap) MemoryUsage() int {
	n := 0
	for _, face := range c.Faces {
		n += len(face)
	}
	return n
}

// Face returns the texels of one face.
func (c *Cubemap) Face(f CubeFace) []byte {
	if int(f) >= CubeFaceCount {
		return nil
	}
	return c.Faces[f]
}

// Validate checks every face against the declared size and format.
func (c *Cubemap) Validate() error {
	for i, face := range c.Faces {
		t := Texture{Width: c.Size, Height: c.Size, Format: c.Format, Pixels: face}
		if err := t.Validate(); err != nil {
			return fmt.Errorf("cube face %s: %w", CubeFace(i), err)
		}
	}
	return nil
}
