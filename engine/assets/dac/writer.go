package dac

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/spaghettifunk/dawn/engine/assets/codec"
	"github.com/spaghettifunk/dawn/engine/assets/ir"
	"github.com/spaghettifunk/dawn/engine/core"
)

// Payload is an encoded asset ready to be laid out in a container.
type Payload struct {
	ID           core.AssetID
	Kind         ir.Kind
	Dependencies []core.AssetID
	Compression  codec.Compression
	// stored bytes, compressed when Compression is not none
	Data               []byte
	UncompressedLength uint64
}

// Writer collects payloads and commits them to a container file in one
// atomic step. Nothing is visible at the target path until Commit succeeds.
type Writer struct {
	path     string
	manifest Manifest
	payloads []Payload
}

func NewWriter(path string) *Writer {
	return &Writer{path: path}
}

func (w *Writer) SetManifest(m Manifest) {
	w.manifest = m
}

// Add queues a payload. Declaration order breaks ties in the layout.
func (w *Writer) Add(p Payload) error {
	e := Entry{ID: p.ID, Kind: p.Kind, Dependencies: p.Dependencies}
	if err := e.validate(); err != nil {
		return err
	}
	if !p.Compression.Valid() {
		return fmt.Errorf("%w: unknown compression %d for %q", core.ErrFormat, p.Compression, p.ID)
	}
	if len(p.Dependencies) == 0 {
		p.Dependencies = nil
	}
	w.payloads = append(w.payloads, p)
	return nil
}

// Commit lays the payloads out in dependency order and writes the container.
// The returned entries are in layout order.
func (w *Writer) Commit() ([]Entry, error) {
	nodes := make([]Node, len(w.payloads))
	for i, p := range w.payloads {
		nodes[i] = Node{ID: p.ID, Dependencies: p.Dependencies}
	}
	order, err := TopoOrder(nodes)
	if err != nil {
		return nil, err
	}
	if uint64(len(order)) > math.MaxUint32 {
		return nil, fmt.Errorf("%w: too many entries", core.ErrFormat)
	}

	entries := make([]Entry, 0, len(order))
	offset := uint64(HeaderSize)
	for _, i := range order {
		p := &w.payloads[i]
		entries = append(entries, Entry{
			ID:                 p.ID,
			Kind:               p.Kind,
			Compression:        p.Compression,
			PayloadOffset:      offset,
			PayloadLength:      uint64(len(p.Data)),
			UncompressedLength: p.UncompressedLength,
			Checksum:           codec.Checksum(p.Data),
			Dependencies:       p.Dependencies,
		})
		if offset, err = core.CheckedAdd(offset, uint64(len(p.Data))); err != nil {
			return nil, fmt.Errorf("%w: payload region too large", core.ErrFormat)
		}
	}
	tocOffset := offset

	manifest := w.manifest
	manifest.BuildID = buildID(entries)
	manifestBytes, err := marshalManifest(&manifest)
	if err != nil {
		return nil, err
	}

	tail := make([]byte, 0, 1024)
	for i := range entries {
		tail = appendRecord(tail, &entries[i])
	}
	tail = binary.LittleEndian.AppendUint32(tail, uint32(len(manifestBytes)))
	tail = append(tail, manifestBytes...)
	tail = binary.LittleEndian.AppendUint64(tail, codec.Checksum(tail))

	header := Header{
		Magic:      Magic,
		Version:    Version,
		EntryCount: uint32(len(entries)),
		TOCOffset:  tocOffset,
	}
	if err := w.writeFile(header, order, tail); err != nil {
		return nil, err
	}
	core.LogDebug("committed container %s: %d entries, toc at %d", w.path, len(entries), tocOffset)
	return entries, nil
}

func (w *Writer) writeFile(header Header, order []int, tail []byte) (err error) {
	dir := filepath.Dir(w.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	f, err := os.CreateTemp(dir, "."+filepath.Base(w.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := f.Name()
	defer func() {
		if err != nil {
			f.Close()
			os.Remove(tmpPath)
		}
	}()

	// the magic stays zeroed until everything else is on disk
	unfinished := header
	unfinished.Magic = [4]byte{}

	bw := bufio.NewWriterSize(f, 1<<20)
	if _, err = bw.Write(unfinished.marshal()); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, i := range order {
		if _, err = bw.Write(w.payloads[i].Data); err != nil {
			return fmt.Errorf("failed to write payload %q: %w", w.payloads[i].ID, err)
		}
	}
	if _, err = bw.Write(tail); err != nil {
		return fmt.Errorf("failed to write table of contents: %w", err)
	}
	if err = bw.Flush(); err != nil {
		return fmt.Errorf("failed to flush container: %w", err)
	}
	if _, err = f.WriteAt(header.marshal(), 0); err != nil {
		return fmt.Errorf("failed to patch header: %w", err)
	}
	if err = f.Sync(); err != nil {
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err = f.Chmod(0o644); err != nil {
		return fmt.Errorf("failed to set permissions: %w", err)
	}
	if err = f.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err = os.Rename(tmpPath, w.path); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	if serr := syncDir(dir); serr != nil {
		core.LogWarn("failed to sync directory %s: %s", dir, serr)
	}
	return nil
}

func syncDir(dir string) error {
	f, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}
