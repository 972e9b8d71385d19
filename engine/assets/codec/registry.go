package codec

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/spaghettifunk/dawn/engine/assets/ir"
	"github.com/spaghettifunk/dawn/engine/core"
)

// Source is the raw input handed to an importer.
type Source struct {
	ID core.AssetID
	// original file path, used for diagnostics and relative includes
	Path string
	Data []byte
	// importer specific settings (pixel_format, flip_y, ...)
	Params map[string]string
	// declared dependencies of the asset, in manifest order
	Dependencies []core.AssetID
}

// Param returns the parameter or def when it is not set.
func (s Source) Param(key, def string) string {
	if v, ok := s.Params[key]; ok {
		return v
	}
	return def
}

// HasDependency reports whether id is a declared dependency.
func (s Source) HasDependency(id core.AssetID) bool {
	for _, d := range s.Dependencies {
		if d == id {
			return true
		}
	}
	return false
}

type ImportFunc func(src Source) (ir.Asset, error)
type EncodeFunc func(asset ir.Asset) ([]byte, error)
type DecodeFunc func(data []byte) (ir.Asset, error)

// Codec converts one IR kind to and from its payload bytes.
type Codec struct {
	Kind   ir.Kind
	Encode EncodeFunc
	Decode DecodeFunc
}

type tables struct {
	importers map[string]ImportFunc
	codecs    map[ir.Kind]Codec
}

// Registry maps raw kinds to importers and IR kinds to codecs. It is filled
// at startup and frozen before use; lookups after Freeze do not lock.
type Registry struct {
	mu     sync.Mutex
	frozen atomic.Bool
	t      tables
}

func NewRegistry() *Registry {
	return &Registry{
		t: tables{
			importers: make(map[string]ImportFunc),
			codecs:    make(map[ir.Kind]Codec),
		},
	}
}

// RegisterImporter binds an importer to a raw kind such as "png" or "obj".
func (r *Registry) RegisterImporter(rawKind string, fn ImportFunc) error {
	if rawKind == "" || fn == nil {
		return fmt.Errorf("%w: importer registration needs a raw kind and a function", core.ErrConfig)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frozen.Load() {
		return fmt.Errorf("%w: registry is frozen, cannot register importer %q", core.ErrConfig, rawKind)
	}
	if _, ok := r.t.importers[rawKind]; ok {
		return fmt.Errorf("%w: importer %q already registered", core.ErrConfig, rawKind)
	}
	r.t.importers[rawKind] = fn
	return nil
}

// RegisterCodec binds the encoder/decoder pair of an IR kind.
func (r *Registry) RegisterCodec(kind ir.Kind, enc EncodeFunc, dec DecodeFunc) error {
	if !kind.Valid() || enc == nil || dec == nil {
		return fmt.Errorf("%w: invalid codec registration for %s", core.ErrConfig, kind)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frozen.Load() {
		return fmt.Errorf("%w: registry is frozen, cannot register codec %s", core.ErrConfig, kind)
	}
	if _, ok := r.t.codecs[kind]; ok {
		return fmt.Errorf("%w: codec %s already registered", core.ErrConfig, kind)
	}
	r.t.codecs[kind] = Codec{Kind: kind, Encode: enc, Decode: dec}
	return nil
}

// Freeze ends the registration phase.
func (r *Registry) Freeze() {
	r.mu.Lock()
	r.frozen.Store(true)
	r.mu.Unlock()
}

func (r *Registry) Frozen() bool {
	return r.frozen.Load()
}

func (r *Registry) Importer(rawKind string) (ImportFunc, error) {
	if !r.frozen.Load() {
		r.mu.Lock()
		defer r.mu.Unlock()
	}
	fn, ok := r.t.importers[rawKind]
	if !ok {
		return nil, fmt.Errorf("%w: no importer registered for %q", core.ErrConfig, rawKind)
	}
	return fn, nil
}

func (r *Registry) Codec(kind ir.Kind) (Codec, error) {
	if !r.frozen.Load() {
		r.mu.Lock()
		defer r.mu.Unlock()
	}
	c, ok := r.t.codecs[kind]
	if !ok {
		return Codec{}, fmt.Errorf("%w: no codec registered for %s", core.ErrConfig, kind)
	}
	return c, nil
}

// Importers lists the registered raw kinds, sorted.
func (r *Registry) Importers() []string {
	if !r.frozen.Load() {
		r.mu.Lock()
		defer r.mu.Unlock()
	}
	out := make([]string, 0, len(r.t.importers))
	for k := range r.t.importers {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Kinds lists the IR kinds with a codec, sorted.
func (r *Registry) Kinds() []ir.Kind {
	if !r.frozen.Load() {
		r.mu.Lock()
		defer r.mu.Unlock()
	}
	out := make([]ir.Kind, 0, len(r.t.codecs))
	for k := range r.t.codecs {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Encode runs the codec of the asset's kind.
func (r *Registry) Encode(asset ir.Asset) ([]byte, error) {
	c, err := r.Codec(asset.Kind())
	if err != nil {
		return nil, err
	}
	return c.Encode(asset)
}

// Decode runs the codec registered for kind.
func (r *Registry) Decode(kind ir.Kind, data []byte) (ir.Asset, error) {
	c, err := r.Codec(kind)
	if err != nil {
		return nil, err
	}
	return c.Decode(data)
}
