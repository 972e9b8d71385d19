package dac

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/spaghettifunk/dawn/engine/assets/codec"
	"github.com/spaghettifunk/dawn/engine/assets/ir"
	"github.com/spaghettifunk/dawn/engine/core"
)

// LoadedAsset is a decoded asset together with its resolved dependencies,
// in declaration order.
type LoadedAsset struct {
	ID           core.AssetID
	Kind         ir.Kind
	Asset        ir.Asset
	Dependencies []*LoadedAsset
}

// Container gives read access to a container file. Only positional reads are
// used, so every method is safe for concurrent use.
type Container struct {
	r        io.ReaderAt
	closer   io.Closer
	size     int64
	path     string
	registry *codec.Registry

	header   Header
	entries  []Entry
	index    map[core.AssetID]int
	manifest *Manifest
}

type Option func(*Container)

// WithRegistry decodes payloads with the given registry instead of the
// built-in codecs.
func WithRegistry(r *codec.Registry) Option {
	return func(c *Container) {
		c.registry = r
	}
}

// Open opens and validates the container at path.
func Open(path string, opts ...Option) (*Container, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	c, err := NewContainer(f, info.Size(), opts...)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	c.closer = f
	c.path = path
	return c, nil
}

// NewContainer validates the header and table of contents read from r.
// Structural problems fail with ErrFormat, a table checksum mismatch with
// ErrIntegrity.
func NewContainer(r io.ReaderAt, size int64, opts ...Option) (*Container, error) {
	c := &Container{r: r, size: size, registry: codec.Builtin()}
	for _, opt := range opts {
		opt(c)
	}

	if size < HeaderSize {
		return nil, fmt.Errorf("%w: file shorter than header (%d bytes)", core.ErrFormat, size)
	}
	hbuf := make([]byte, HeaderSize)
	if err := readAt(r, hbuf, 0); err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	h, err := parseHeader(hbuf)
	if err != nil {
		return nil, err
	}
	c.header = h

	usize := uint64(size)
	if h.TOCOffset < HeaderSize || h.TOCOffset > usize || usize-h.TOCOffset < 4+trailerSize {
		return nil, fmt.Errorf("%w: table of contents offset %d out of bounds (file is %d bytes)", core.ErrFormat, h.TOCOffset, size)
	}
	tail := make([]byte, usize-h.TOCOffset)
	if err := readAt(r, tail, int64(h.TOCOffset)); err != nil {
		return nil, fmt.Errorf("reading table of contents: %w", err)
	}
	body, trailer := tail[:len(tail)-trailerSize], tail[len(tail)-trailerSize:]
	if codec.Checksum(body) != binary.LittleEndian.Uint64(trailer) {
		core.LogError("table of contents checksum mismatch in container")
		return nil, fmt.Errorf("%w: table of contents checksum mismatch", core.ErrIntegrity)
	}

	tr := &tocReader{buf: body}
	// the smallest possible record has a one byte id
	if uint64(h.EntryCount)*(recordFixedSize+1) > uint64(len(body)) {
		return nil, fmt.Errorf("%w: entry count %d exceeds table size", core.ErrFormat, h.EntryCount)
	}
	c.entries = make([]Entry, 0, h.EntryCount)
	c.index = make(map[core.AssetID]int, h.EntryCount)
	for i := uint32(0); i < h.EntryCount; i++ {
		e := tr.record()
		if tr.err != nil {
			return nil, tr.err
		}
		if err := c.checkEntry(&e); err != nil {
			return nil, err
		}
		c.index[e.ID] = len(c.entries)
		c.entries = append(c.entries, e)
	}
	manifestBytes := tr.take(int(tr.u32()))
	if tr.err != nil {
		return nil, tr.err
	}
	if tr.off != len(body) {
		return nil, fmt.Errorf("%w: %d unexpected bytes after manifest", core.ErrFormat, len(body)-tr.off)
	}
	if c.manifest, err = unmarshalManifest(manifestBytes); err != nil {
		return nil, err
	}
	if err := c.checkOverlaps(); err != nil {
		return nil, err
	}
	return c, nil
}

// readAt fills buf, accepting io.EOF when the read ends exactly at the end
// of the source.
func readAt(r io.ReaderAt, buf []byte, off int64) error {
	n, err := r.ReadAt(buf, off)
	if n == len(buf) && (err == nil || errors.Is(err, io.EOF)) {
		return nil
	}
	if err == nil {
		err = io.ErrUnexpectedEOF
	}
	return err
}

func (c *Container) checkEntry(e *Entry) error {
	if err := e.validate(); err != nil {
		return err
	}
	if _, dup := c.index[e.ID]; dup {
		return fmt.Errorf("%w: duplicate asset id %q", core.ErrFormat, e.ID)
	}
	if !e.Compression.Valid() {
		return fmt.Errorf("%w: unknown compression %d on %q", core.ErrFormat, e.Compression, e.ID)
	}
	if !core.InRange(e.PayloadOffset, e.PayloadLength, HeaderSize, c.header.TOCOffset) {
		return fmt.Errorf("%w: payload of %q [%d,+%d) outside payload region", core.ErrFormat, e.ID, e.PayloadOffset, e.PayloadLength)
	}
	if e.Compression == codec.CompressionNone && e.UncompressedLength != e.PayloadLength {
		return fmt.Errorf("%w: uncompressed payload of %q has mismatching lengths", core.ErrFormat, e.ID)
	}
	return nil
}

func (c *Container) checkOverlaps() error {
	byOffset := make([]*Entry, len(c.entries))
	for i := range c.entries {
		byOffset[i] = &c.entries[i]
	}
	sort.Slice(byOffset, func(i, j int) bool { return byOffset[i].PayloadOffset < byOffset[j].PayloadOffset })
	for i := 1; i < len(byOffset); i++ {
		prev, cur := byOffset[i-1], byOffset[i]
		if prev.PayloadLength == 0 || cur.PayloadLength == 0 {
			continue
		}
		if prev.PayloadOffset+prev.PayloadLength > cur.PayloadOffset {
			return fmt.Errorf("%w: payloads of %q and %q overlap", core.ErrFormat, prev.ID, cur.ID)
		}
	}
	return nil
}

func (c *Container) Header() Header {
	return c.header
}

func (c *Container) Path() string {
	return c.path
}

func (c *Container) Size() int64 {
	return c.size
}

// Entries returns the table of contents in layout order.
func (c *Container) Entries() []Entry {
	out := make([]Entry, len(c.entries))
	copy(out, c.entries)
	return out
}

func (c *Container) Entry(id core.AssetID) (Entry, bool) {
	i, ok := c.index[id]
	if !ok {
		return Entry{}, false
	}
	return c.entries[i], true
}

func (c *Container) Manifest() Manifest {
	return *c.manifest
}

func (c *Container) Close() error {
	if c.closer == nil {
		return nil
	}
	return c.closer.Close()
}

// Validate checks the dependency graph and the checksum of every payload.
func (c *Container) Validate() error {
	nodes := make([]Node, len(c.entries))
	for i, e := range c.entries {
		nodes[i] = Node{ID: e.ID, Dependencies: e.Dependencies}
	}
	if err := ValidateGraph(nodes); err != nil {
		return err
	}
	for i := range c.entries {
		if _, err := c.readPayload(&c.entries[i]); err != nil {
			return err
		}
	}
	return nil
}

func (c *Container) readPayload(e *Entry) ([]byte, error) {
	buf := make([]byte, e.PayloadLength)
	if err := readAt(c.r, buf, int64(e.PayloadOffset)); err != nil {
		return nil, core.NewAssetError(core.ErrIntegrity, e.ID, fmt.Errorf("reading payload: %w", err))
	}
	if sum := codec.Checksum(buf); sum != e.Checksum {
		core.LogError("checksum mismatch for asset %s in %s: stored %016x, computed %016x", e.ID, c.path, e.Checksum, sum)
		return nil, core.Errorf(core.ErrIntegrity, e.ID, "checksum mismatch")
	}
	return buf, nil
}

// Decode reads, verifies and decodes a single entry without its
// dependencies.
func (c *Container) Decode(id core.AssetID) (ir.Asset, error) {
	i, ok := c.index[id]
	if !ok {
		return nil, core.NewAssetError(core.ErrNotFound, id, nil)
	}
	e := &c.entries[i]

	stored, err := c.readPayload(e)
	if err != nil {
		return nil, err
	}
	ulen, err := core.MulSize(e.UncompressedLength)
	if err != nil {
		return nil, core.Errorf(core.ErrDecode, id, "uncompressed length %d too large", e.UncompressedLength)
	}
	raw, err := codec.Decompress(stored, e.Compression, ulen)
	if err != nil {
		return nil, core.NewAssetError(core.ErrDecode, id, err)
	}
	cd, err := c.registry.Codec(e.Kind)
	if err != nil {
		return nil, core.NewAssetError(core.ErrConfig, id, err)
	}
	asset, err := cd.Decode(raw)
	if err != nil {
		return nil, core.NewAssetError(core.ErrDecode, id, err)
	}
	if asset == nil || asset.Kind() != e.Kind {
		return nil, core.Errorf(core.ErrDecode, id, "codec for %s returned %T", e.Kind, asset)
	}
	return asset, nil
}

// Load decodes id and, recursively, all of its dependencies. A dependency
// shared by several assets is decoded once per call.
func (c *Container) Load(id core.AssetID) (*LoadedAsset, error) {
	l := &loader{
		c:        c,
		done:     make(map[core.AssetID]*LoadedAsset),
		visiting: make(map[core.AssetID]bool),
	}
	return l.load(id, "")
}

type loader struct {
	c        *Container
	done     map[core.AssetID]*LoadedAsset
	visiting map[core.AssetID]bool
}

func (l *loader) load(id, parent core.AssetID) (*LoadedAsset, error) {
	if la, ok := l.done[id]; ok {
		return la, nil
	}
	if l.visiting[id] {
		return nil, core.Errorf(core.ErrBuildGraph, id, "dependency cycle through %q", parent)
	}
	e, ok := l.c.Entry(id)
	if !ok {
		if parent != "" {
			return nil, core.Errorf(core.ErrBuildGraph, parent, "dangling dependency %q", id)
		}
		return nil, core.NewAssetError(core.ErrNotFound, id, nil)
	}

	l.visiting[id] = true
	deps := make([]*LoadedAsset, 0, len(e.Dependencies))
	for _, d := range e.Dependencies {
		la, err := l.load(d, id)
		if err != nil {
			return nil, err
		}
		deps = append(deps, la)
	}
	delete(l.visiting, id)

	asset, err := l.c.Decode(id)
	if err != nil {
		return nil, err
	}
	la := &LoadedAsset{ID: id, Kind: e.Kind, Asset: asset, Dependencies: deps}
	l.done[id] = la
	return la, nil
}
