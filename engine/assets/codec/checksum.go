package codec

import (
	"encoding/binary"

	"github.com/zeebo/blake3"
)

// Checksum is the 64-bit entry checksum: the first eight bytes, little
// endian, of the BLAKE3-256 digest of data.
func Checksum(data []byte) uint64 {
	sum := blake3.Sum256(data)
	return binary.LittleEndian.Uint64(sum[:8])
}

// Digest returns the full BLAKE3-256 digest over the concatenated parts.
func Digest(parts ...[]byte) [32]byte {
	h := blake3.New()
	var lenBuf [8]byte
	for _, p := range parts {
		// length prefix keeps ("ab","c") and ("a","bc") apart
		binary.LittleEndian.PutUint64(lenBuf[:], uint64(len(p)))
		_, _ = h.Write(lenBuf[:])
		_, _ = h.Write(p)
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}
