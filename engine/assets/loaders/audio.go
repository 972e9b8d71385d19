package loaders

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/spaghettifunk/dawn/engine/assets/codec"
	"github.com/spaghettifunk/dawn/engine/assets/ir"
)

const (
	wavFormatPCM        = 1
	wavFormatFloat      = 3
	wavFormatExtensible = 0xFFFE
)

var errNotWav = errors.New("not a RIFF/WAVE file")

// AudioLoader imports RIFF/WAVE files holding integer PCM (8, 16, 24 or 32
// bit) or 32-bit float samples.
type AudioLoader struct{}

type wavFormat struct {
	audioFormat   uint16
	channels      uint16
	sampleRate    uint32
	bitsPerSample uint16
}

func (al *AudioLoader) Import(src codec.Source) (ir.Asset, error) {
	data := src.Data
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, errNotWav
	}

	var (
		format  *wavFormat
		samples []byte
	)
	for off := 12; off+8 <= len(data); {
		id := string(data[off : off+4])
		size := int(binary.LittleEndian.Uint32(data[off+4 : off+8]))
		off += 8
		if size < 0 || off+size > len(data) {
			return nil, fmt.Errorf("chunk %q overruns the file", id)
		}
		body := data[off : off+size]
		switch id {
		case "fmt ":
			if size < 16 {
				return nil, fmt.Errorf("fmt chunk too short (%d bytes)", size)
			}
			format = &wavFormat{
				audioFormat:   binary.LittleEndian.Uint16(body[0:2]),
				channels:      binary.LittleEndian.Uint16(body[2:4]),
				sampleRate:    binary.LittleEndian.Uint32(body[4:8]),
				bitsPerSample: binary.LittleEndian.Uint16(body[14:16]),
			}
			if format.audioFormat == wavFormatExtensible && size >= 26 {
				// first two bytes of the sub-format GUID carry the real format tag
				format.audioFormat = binary.LittleEndian.Uint16(body[24:26])
			}
		case "data":
			samples = body
		}
		// chunks are word aligned
		off += size + size&1
	}

	if format == nil {
		return nil, errors.New("missing fmt chunk")
	}
	if samples == nil {
		return nil, errors.New("missing data chunk")
	}
	if format.channels == 0 || format.channels > math.MaxUint8 {
		return nil, fmt.Errorf("unsupported channel count %d", format.channels)
	}
	if format.sampleRate == 0 {
		return nil, errors.New("sample rate is zero")
	}

	decoded, err := decodeSamples(format, samples)
	if err != nil {
		return nil, err
	}
	return &ir.Audio{
		SampleRate: format.sampleRate,
		Channels:   uint8(format.channels),
		Samples:    decoded,
	}, nil
}

func decodeSamples(f *wavFormat, data []byte) ([]float32, error) {
	width := int(f.bitsPerSample) / 8
	if width == 0 || int(f.bitsPerSample)%8 != 0 {
		return nil, fmt.Errorf("unsupported bits per sample %d", f.bitsPerSample)
	}
	count := len(data) / width
	// drop a trailing partial frame
	count -= count % int(f.channels)
	out := make([]float32, count)

	switch {
	case f.audioFormat == wavFormatFloat && width == 4:
		for i := range out {
			out[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
		}
	case f.audioFormat == wavFormatPCM && width == 1:
		for i := range out {
			out[i] = (float32(data[i]) - 128) / 128
		}
	case f.audioFormat == wavFormatPCM && width == 2:
		for i := range out {
			out[i] = float32(int16(binary.LittleEndian.Uint16(data[i*2:]))) / 32768
		}
	case f.audioFormat == wavFormatPCM && width == 3:
		for i := range out {
			b := data[i*3:]
			v := int32(uint32(b[0])<<8|uint32(b[1])<<16|uint32(b[2])<<24) >> 8
			out[i] = float32(v) / 8388608
		}
	case f.audioFormat == wavFormatPCM && width == 4:
		for i := range out {
			out[i] = float32(float64(int32(binary.LittleEndian.Uint32(data[i*4:]))) / 2147483648)
		}
	default:
		return nil, fmt.Errorf("unsupported wav encoding (format %d, %d bits)", f.audioFormat, f.bitsPerSample)
	}
	return out, nil
}
