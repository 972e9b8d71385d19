package dacgen

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/spaghettifunk/dawn/engine/assets"
	"github.com/spaghettifunk/dawn/engine/assets/codec"
	"github.com/spaghettifunk/dawn/engine/assets/dac"
	"github.com/spaghettifunk/dawn/engine/assets/ir"
	"github.com/spaghettifunk/dawn/engine/core"
	"github.com/spaghettifunk/dawn/engine/systems"
)

const (
	Tool        = "dacgen"
	ToolVersion = "0.1.0"
)

// ManifestEntry is one asset to build: where its raw bytes come from, which
// importer converts them and what it depends on.
type ManifestEntry struct {
	ID   core.AssetID
	Kind ir.Kind
	// raw kind looked up in the registry
	Importer string
	// read when Data is nil
	Path         string
	Data         []byte
	Params       map[string]string
	Dependencies []core.AssetID
	Info         dac.AssetInfo
}

type Options struct {
	// defaults to assets.NewRegistry()
	Registry    *codec.Registry
	Compression codec.Level
	// empty disables the build cache
	CacheDir string
	// defaults to the number of CPUs
	Workers int
	// descriptive fields; tool, compression and build id are filled in
	Manifest dac.Manifest
}

// Result summarizes a successful build.
type Result struct {
	Output    string
	Entries   []dac.Entry
	Manifest  dac.Manifest
	CacheHits int
	Bytes     uint64
	Duration  time.Duration
}

type built struct {
	payload  dac.Payload
	cacheHit bool
}

type validator interface {
	Validate() error
}

// Build imports, encodes and compresses every entry and commits them to a
// container at out. Any failure aborts the build and leaves no output.
func Build(ctx context.Context, entries []ManifestEntry, out string, opts Options) (*Result, error) {
	start := time.Now()
	if opts.Registry == nil {
		r, err := assets.NewRegistry()
		if err != nil {
			return nil, err
		}
		opts.Registry = r
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}

	// the graph is known before anything is imported
	nodes := make([]dac.Node, len(entries))
	for i := range entries {
		if !entries[i].Kind.Valid() {
			return nil, core.Errorf(core.ErrConfig, entries[i].ID, "invalid kind %s", entries[i].Kind)
		}
		nodes[i] = dac.Node{ID: entries[i].ID, Dependencies: entries[i].Dependencies}
	}
	if err := dac.ValidateGraph(nodes); err != nil {
		return nil, err
	}

	var cache *Cache
	if opts.CacheDir != "" {
		c, err := OpenCache(opts.CacheDir)
		if err != nil {
			return nil, err
		}
		cache = c
	}

	results, err := importAll(ctx, entries, opts, cache)
	if err != nil {
		return nil, err
	}

	manifest := opts.Manifest
	manifest.Tool = Tool
	manifest.ToolVersion = ToolVersion
	manifest.Compression = opts.Compression.String()
	manifest.Assets = make(map[core.AssetID]dac.AssetInfo)
	for i := range entries {
		manifest.Assets[entries[i].ID] = entries[i].Info
	}

	w := dac.NewWriter(out)
	w.SetManifest(manifest)
	res := &Result{Output: out}
	for _, b := range results {
		if err := w.Add(b.payload); err != nil {
			return nil, err
		}
		if b.cacheHit {
			res.CacheHits++
		}
		res.Bytes += uint64(len(b.payload.Data))
	}
	if res.Entries, err = w.Commit(); err != nil {
		return nil, err
	}

	c, err := dac.Open(out, dac.WithRegistry(opts.Registry))
	if err != nil {
		return nil, fmt.Errorf("reopening committed container: %w", err)
	}
	res.Manifest = c.Manifest()
	c.Close()

	res.Duration = time.Since(start)
	core.LogInfo("built %s: %d assets, %s payload, %d cached, took %s",
		out, len(res.Entries), humanize.IBytes(res.Bytes), res.CacheHits, res.Duration.Round(time.Millisecond))
	return res, nil
}

// importAll runs one job per entry. Results keep declaration order; on
// failure the error of the first failing entry in that order is returned.
func importAll(ctx context.Context, entries []ManifestEntry, opts Options, cache *Cache) ([]built, error) {
	js, err := systems.NewJobSystem(opts.Workers, len(entries))
	if err != nil {
		return nil, err
	}
	defer js.Shutdown()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make([]built, len(entries))
	errs := make([]error, len(entries))
	var wg sync.WaitGroup
	for i := range entries {
		i := i
		wg.Add(1)
		err := js.Submit(systems.Job{
			Name: "import " + string(entries[i].ID),
			Run: func(context.Context) error {
				if err := ctx.Err(); err != nil {
					return err
				}
				b, err := buildEntry(&entries[i], opts, cache)
				if err != nil {
					return err
				}
				results[i] = b
				return nil
			},
			OnComplete: wg.Done,
			OnFailure: func(err error) {
				errs[i] = err
				cancel()
				wg.Done()
			},
		})
		if err != nil {
			wg.Done()
			errs[i] = err
			cancel()
			break
		}
	}
	wg.Wait()

	for _, err := range errs {
		// skipped entries only report the cancellation
		if err != nil && !errors.Is(err, context.Canceled) {
			return nil, err
		}
	}
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return results, nil
}

func buildEntry(e *ManifestEntry, opts Options, cache *Cache) (built, error) {
	raw := e.Data
	if raw == nil {
		data, err := os.ReadFile(e.Path)
		if err != nil {
			return built{}, core.NewAssetError(core.ErrImport, e.ID, err)
		}
		raw = data
	}

	var key string
	// shader includes are read from disk and not part of the key
	if cache != nil && e.Kind != ir.KindShader {
		key = cache.Key(e, raw, opts.Compression)
		if stored, tag, ulen, ok := cache.Get(key, e.Kind); ok {
			core.LogDebug("cache hit for %s", e.ID)
			return built{payload: payload(e, stored, tag, ulen), cacheHit: true}, nil
		}
	}

	importer, err := opts.Registry.Importer(e.Importer)
	if err != nil {
		return built{}, core.NewAssetError(core.ErrConfig, e.ID, err)
	}
	asset, err := importer(codec.Source{
		ID:           e.ID,
		Path:         e.Path,
		Data:         raw,
		Params:       e.Params,
		Dependencies: e.Dependencies,
	})
	if err != nil {
		var ae *core.AssetError
		if errors.As(err, &ae) {
			return built{}, err
		}
		return built{}, core.NewAssetError(core.ErrImport, e.ID, err)
	}
	if asset == nil || asset.Kind() != e.Kind {
		return built{}, core.Errorf(core.ErrImport, e.ID, "importer %q produced %v, declared kind is %s", e.Importer, kindOf(asset), e.Kind)
	}
	if v, ok := asset.(validator); ok {
		if err := v.Validate(); err != nil {
			return built{}, core.NewAssetError(core.ErrImport, e.ID, err)
		}
	}

	encoded, err := opts.Registry.Encode(asset)
	if err != nil {
		if errors.Is(err, core.ErrConfig) {
			return built{}, core.NewAssetError(core.ErrConfig, e.ID, err)
		}
		return built{}, core.NewAssetError(core.ErrImport, e.ID, fmt.Errorf("encoding: %w", err))
	}
	stored, tag, err := codec.Compress(encoded, opts.Compression)
	if err != nil {
		return built{}, core.NewAssetError(core.ErrImport, e.ID, fmt.Errorf("compressing: %w", err))
	}
	core.LogDebug("imported %s (%s): %s encoded, %s stored as %s",
		e.ID, e.Kind, humanize.IBytes(uint64(len(encoded))), humanize.IBytes(uint64(len(stored))), tag)

	if key != "" {
		if err := cache.Put(key, e.Kind, stored, tag, uint64(len(encoded))); err != nil {
			core.LogWarn("failed to store %s in the build cache: %s", e.ID, err)
		}
	}
	return built{payload: payload(e, stored, tag, uint64(len(encoded)))}, nil
}

func payload(e *ManifestEntry, stored []byte, tag codec.Compression, ulen uint64) dac.Payload {
	return dac.Payload{
		ID:                 e.ID,
		Kind:               e.Kind,
		Dependencies:       e.Dependencies,
		Compression:        tag,
		Data:               stored,
		UncompressedLength: ulen,
	}
}

func kindOf(a ir.Asset) ir.Kind {
	if a == nil {
		return ir.KindUnknown
	}
	return a.Kind()
}

// BuildConfig collects the descriptors of a configuration and builds its
// container.
func BuildConfig(ctx context.Context, cfg *Config, registry *codec.Registry) (*Result, error) {
	entries, err := Collect(cfg.Input, cfg.ReadMode)
	if err != nil {
		return nil, err
	}
	opts, err := cfg.Options(registry)
	if err != nil {
		return nil, err
	}
	return Build(ctx, entries, cfg.Output, opts)
}
