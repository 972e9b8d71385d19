package dac

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/spaghettifunk/dawn/engine/assets/codec"
	"github.com/spaghettifunk/dawn/engine/assets/ir"
	"github.com/spaghettifunk/dawn/engine/core"
)

// Container layout, all integers little endian:
//
//	header   magic "DACF" | version u32 | entry count u32 | toc offset u64
//	payloads [24, toc offset)
//	toc      entry count records
//	manifest length u32 | deterministic CBOR
//	trailer  u64 checksum over toc and manifest
const (
	HeaderSize = 24
	Version    = 1

	trailerSize = 8
	// fixed part of a toc record without id and dependencies
	recordFixedSize = 2 + 2 + 1 + 1 + 8*4 + 4
)

var Magic = [4]byte{'D', 'A', 'C', 'F'}

// compatible lists the container versions this reader understands.
var compatible = map[uint32]bool{
	1: true,
}

type Header struct {
	Magic      [4]byte
	Version    uint32
	EntryCount uint32
	TOCOffset  uint64
}

func (h Header) marshal() []byte {
	buf := make([]byte, HeaderSize)
	copy(buf[0:4], h.Magic[:])
	binary.LittleEndian.PutUint32(buf[4:8], h.Version)
	binary.LittleEndian.PutUint32(buf[8:12], h.EntryCount)
	binary.LittleEndian.PutUint64(buf[12:20], h.TOCOffset)
	// bytes 20..24 are reserved
	return buf
}

func parseHeader(buf []byte) (Header, error) {
	if len(buf) < HeaderSize {
		return Header{}, fmt.Errorf("%w: file shorter than header (%d bytes)", core.ErrFormat, len(buf))
	}
	var h Header
	copy(h.Magic[:], buf[0:4])
	if h.Magic != Magic {
		return h, fmt.Errorf("%w: bad magic %q", core.ErrFormat, h.Magic[:])
	}
	h.Version = binary.LittleEndian.Uint32(buf[4:8])
	if !compatible[h.Version] {
		return h, fmt.Errorf("%w: unsupported version %d", core.ErrFormat, h.Version)
	}
	h.EntryCount = binary.LittleEndian.Uint32(buf[8:12])
	h.TOCOffset = binary.LittleEndian.Uint64(buf[12:20])
	return h, nil
}

// Entry is one table of contents record.
type Entry struct {
	ID          core.AssetID
	Kind        ir.Kind
	Compression codec.Compression
	// absolute file offset of the stored payload
	PayloadOffset      uint64
	PayloadLength      uint64
	UncompressedLength uint64
	// Checksum of the stored (possibly compressed) payload bytes
	Checksum     uint64
	Dependencies []core.AssetID
}

func (e *Entry) recordSize() int {
	n := recordFixedSize + len(e.ID)
	for _, d := range e.Dependencies {
		n += 2 + len(d)
	}
	return n
}

func (e *Entry) validate() error {
	if e.ID == "" {
		return fmt.Errorf("%w: empty asset id", core.ErrFormat)
	}
	if len(e.ID) > math.MaxUint16 {
		return fmt.Errorf("%w: asset id longer than %d bytes", core.ErrFormat, math.MaxUint16)
	}
	if uint64(len(e.Dependencies)) > math.MaxUint32 {
		return fmt.Errorf("%w: too many dependencies for %q", core.ErrFormat, e.ID)
	}
	for _, d := range e.Dependencies {
		if d == "" || len(d) > math.MaxUint16 {
			return fmt.Errorf("%w: invalid dependency id on %q", core.ErrFormat, e.ID)
		}
	}
	return nil
}

func appendRecord(buf []byte, e *Entry) []byte {
	buf = binary.LittleEndian.AppendUint16(buf, uint16(len(e.ID)))
	buf = append(buf, e.ID...)
	buf = binary.LittleEndian.AppendUint16(buf, uint16(e.Kind))
	buf = append(buf, byte(e.Compression), 0)
	buf = binary.LittleEndian.AppendUint64(buf, e.PayloadOffset)
	buf = binary.LittleEndian.AppendUint64(buf, e.PayloadLength)
	buf = binary.LittleEndian.AppendUint64(buf, e.UncompressedLength)
	buf = binary.LittleEndian.AppendUint64(buf, e.Checksum)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(e.Dependencies)))
	for _, d := range e.Dependencies {
		buf = binary.LittleEndian.AppendUint16(buf, uint16(len(d)))
		buf = append(buf, d...)
	}
	return buf
}

// tocReader walks toc bytes, failing with ErrFormat on truncation.
type tocReader struct {
	buf []byte
	off int
	err error
}

func (r *tocReader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || r.off+n > len(r.buf) {
		r.err = fmt.Errorf("%w: table of contents truncated at byte %d", core.ErrFormat, r.off)
		return nil
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b
}

func (r *tocReader) u8() uint8 {
	if b := r.take(1); b != nil {
		return b[0]
	}
	return 0
}

func (r *tocReader) u16() uint16 {
	if b := r.take(2); b != nil {
		return binary.LittleEndian.Uint16(b)
	}
	return 0
}

func (r *tocReader) u32() uint32 {
	if b := r.take(4); b != nil {
		return binary.LittleEndian.Uint32(b)
	}
	return 0
}

func (r *tocReader) u64() uint64 {
	if b := r.take(8); b != nil {
		return binary.LittleEndian.Uint64(b)
	}
	return 0
}

func (r *tocReader) str() string {
	n := r.u16()
	return string(r.take(int(n)))
}

func (r *tocReader) record() Entry {
	var e Entry
	e.ID = core.AssetID(r.str())
	e.Kind = ir.Kind(r.u16())
	e.Compression = codec.Compression(r.u8())
	if reserved := r.u8(); reserved != 0 && r.err == nil {
		r.err = fmt.Errorf("%w: reserved byte of %q is %d", core.ErrFormat, e.ID, reserved)
	}
	e.PayloadOffset = r.u64()
	e.PayloadLength = r.u64()
	e.UncompressedLength = r.u64()
	e.Checksum = r.u64()
	n := r.u32()
	if r.err != nil {
		return e
	}
	// every dependency needs at least its length prefix
	if uint64(n)*2 > uint64(len(r.buf)-r.off) {
		r.err = fmt.Errorf("%w: dependency count %d of %q exceeds table size", core.ErrFormat, n, e.ID)
		return e
	}
	if n > 0 {
		e.Dependencies = make([]core.AssetID, 0, n)
	}
	for i := uint32(0); i < n && r.err == nil; i++ {
		e.Dependencies = append(e.Dependencies, core.AssetID(r.str()))
	}
	return e
}
