package dacgen

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spaghettifunk/dawn/engine/assets/codec"
	"github.com/spaghettifunk/dawn/engine/assets/ir"
	"github.com/spaghettifunk/dawn/engine/core"
)

// bumped whenever the payload encoding changes, so stale entries miss
const cacheVersion = "dacgen-cache-1"

// Cache stores encoded payloads keyed by everything that influences them.
// A hit skips both import and encode.
type Cache struct {
	dir string
}

type cachedPayload struct {
	Kind               ir.Kind           `cbor:"1,keyasint"`
	Compression        codec.Compression `cbor:"2,keyasint"`
	UncompressedLength uint64            `cbor:"3,keyasint"`
	Data               []byte            `cbor:"4,keyasint"`
}

func OpenCache(dir string) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	return &Cache{dir: dir}, nil
}

// Key hashes the entry settings, the raw source bytes and the compression
// level.
func (c *Cache) Key(e *ManifestEntry, raw []byte, level codec.Level) string {
	parts := [][]byte{
		[]byte(cacheVersion),
		[]byte(e.ID),
		binary.LittleEndian.AppendUint16(nil, uint16(e.Kind)),
		[]byte(e.Importer),
		{byte(level)},
	}
	keys := make([]string, 0, len(e.Params))
	for k := range e.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		parts = append(parts, []byte(k), []byte(e.Params[k]))
	}
	for _, d := range e.Dependencies {
		parts = append(parts, []byte(d))
	}
	parts = append(parts, raw)
	sum := codec.Digest(parts...)
	return hex.EncodeToString(sum[:])
}

func (c *Cache) path(key string) string {
	return filepath.Join(c.dir, key[:2], key)
}

// Get returns the cached payload. Unreadable or mismatching entries count as
// a miss.
func (c *Cache) Get(key string, kind ir.Kind) (stored []byte, tag codec.Compression, ulen uint64, ok bool) {
	data, err := os.ReadFile(c.path(key))
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			core.LogWarn("failed to read cache entry %s: %s", key, err)
		}
		return nil, 0, 0, false
	}
	var p cachedPayload
	if err := codec.Unmarshal(data, &p); err != nil {
		core.LogWarn("discarding corrupted cache entry %s: %s", key, err)
		return nil, 0, 0, false
	}
	if p.Kind != kind || !p.Compression.Valid() {
		return nil, 0, 0, false
	}
	if p.Compression == codec.CompressionNone && uint64(len(p.Data)) != p.UncompressedLength {
		return nil, 0, 0, false
	}
	return p.Data, p.Compression, p.UncompressedLength, true
}

// Put stores a payload. The entry appears atomically.
func (c *Cache) Put(key string, kind ir.Kind, stored []byte, tag codec.Compression, ulen uint64) error {
	data, err := codec.Marshal(cachedPayload{Kind: kind, Compression: tag, UncompressedLength: ulen, Data: stored})
	if err != nil {
		return err
	}
	path := c.path(key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return err
	}
	if err := os.Rename(f.Name(), path); err != nil {
		os.Remove(f.Name())
		return err
	}
	return nil
}
