package codec

import (
	"errors"
	"fmt"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression is the per-entry tag stored in the table of contents. The values
// are format constants.
type Compression uint8

const (
	CompressionNone Compression = 0
	CompressionLZ4  Compression = 1
	CompressionZstd Compression = 2
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZstd:
		return "zstd"
	}
	return fmt.Sprintf("unknown(%d)", uint8(c))
}

func (c Compression) Valid() bool {
	return c <= CompressionZstd
}

// Level selects how hard the writer tries to shrink payloads.
type Level uint8

const (
	LevelNone Level = iota
	// lz4 block compression
	LevelFast
	// zstd, default speed
	LevelDefault
	// zstd, best compression
	LevelBest
)

func (l Level) String() string {
	switch l {
	case LevelNone:
		return "none"
	case LevelFast:
		return "fast"
	case LevelDefault:
		return "default"
	case LevelBest:
		return "best"
	}
	return fmt.Sprintf("level(%d)", uint8(l))
}

func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "none", "off":
		return LevelNone, nil
	case "fast", "lz4":
		return LevelFast, nil
	case "default", "zstd", "":
		return LevelDefault, nil
	case "best", "max":
		return LevelBest, nil
	}
	return 0, fmt.Errorf("unknown compression level %q", s)
}

func (l Level) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

func (l *Level) UnmarshalText(text []byte) error {
	parsed, err := ParseLevel(string(text))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

var errIncompressible = errors.New("data is incompressible")

// encoders and decoders are safe for concurrent use
var (
	zstdEncoder     *zstd.Encoder
	zstdBestEncoder *zstd.Encoder
	zstdDecoder     *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("codec: zstd encoder initialization failed: " + err.Error())
	}
	zstdBestEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBestCompression))
	if err != nil {
		panic("codec: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("codec: zstd decoder initialization failed: " + err.Error())
	}
}

// Compress shrinks data according to level. The returned bytes are the input
// itself, tagged CompressionNone, whenever compression would not make them
// smaller.
func Compress(data []byte, level Level) ([]byte, Compression, error) {
	var (
		out []byte
		tag Compression
		err error
	)
	switch level {
	case LevelNone:
		return data, CompressionNone, nil
	case LevelFast:
		out, err = compressLZ4(data)
		tag = CompressionLZ4
	case LevelDefault:
		out, err = compressZstd(zstdEncoder, data)
		tag = CompressionZstd
	case LevelBest:
		out, err = compressZstd(zstdBestEncoder, data)
		tag = CompressionZstd
	default:
		return nil, 0, fmt.Errorf("unsupported compression level %d", level)
	}
	if errors.Is(err, errIncompressible) {
		return data, CompressionNone, nil
	}
	if err != nil {
		return nil, 0, err
	}
	return out, tag, nil
}

// Decompress restores the encoded payload. The result must be exactly
// uncompressedSize bytes long.
func Decompress(data []byte, tag Compression, uncompressedSize int) ([]byte, error) {
	switch tag {
	case CompressionNone:
		if len(data) != uncompressedSize {
			return nil, fmt.Errorf("uncompressed payload: size %d does not match expected %d", len(data), uncompressedSize)
		}
		return data, nil
	case CompressionLZ4:
		return decompressLZ4(data, uncompressedSize)
	case CompressionZstd:
		return decompressZstd(data, uncompressedSize)
	}
	return nil, fmt.Errorf("unsupported compression tag %d", tag)
}

func compressLZ4(data []byte) ([]byte, error) {
	dst := make([]byte, lz4.CompressBlockBound(len(data)))
	n, err := lz4.CompressBlock(data, dst, nil)
	if err != nil {
		return nil, fmt.Errorf("lz4 compress: %w", err)
	}
	// 0 means lz4 gave up on the block
	if n == 0 || n >= len(data) {
		return nil, errIncompressible
	}
	return dst[:n], nil
}

func decompressLZ4(data []byte, uncompressedSize int) ([]byte, error) {
	dst := make([]byte, uncompressedSize)
	n, err := lz4.UncompressBlock(data, dst)
	if err != nil {
		return nil, fmt.Errorf("lz4 decompress: %w", err)
	}
	if n != uncompressedSize {
		return nil, fmt.Errorf("lz4 decompress: got %d bytes, expected %d", n, uncompressedSize)
	}
	return dst, nil
}

func compressZstd(enc *zstd.Encoder, data []byte) ([]byte, error) {
	out := enc.EncodeAll(data, nil)
	if len(out) >= len(data) {
		return nil, errIncompressible
	}
	return out, nil
}

func decompressZstd(data []byte, uncompressedSize int) ([]byte, error) {
	out, err := zstdDecoder.DecodeAll(data, make([]byte, 0, uncompressedSize))
	if err != nil {
		return nil, fmt.Errorf("zstd decompress: %w", err)
	}
	if len(out) != uncompressedSize {
		return nil, fmt.Errorf("zstd decompress: got %d bytes, expected %d", len(out), uncompressedSize)
	}
	return out, nil
}
