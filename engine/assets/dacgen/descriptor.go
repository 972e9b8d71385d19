package dacgen

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/spaghettifunk/dawn/engine/assets/dac"
	"github.com/spaghettifunk/dawn/engine/assets/ir"
	"github.com/spaghettifunk/dawn/engine/assets/loaders"
	"github.com/spaghettifunk/dawn/engine/core"
)

// DescriptorSuffix marks the asset descriptor files.
const DescriptorSuffix = ".asset.toml"

// Descriptor is the on-disk description of one asset:
//
//	id = "brick_diffuse"
//	kind = "texture"
//	source = "textures/brick.png"
//	dependencies = []
//	tags = ["level1"]
//
//	[params]
//	pixel_format = "rgba8"
//	mipmaps = true
type Descriptor struct {
	// defaults to the normalized descriptor file name
	ID core.AssetID `toml:"id"`
	// defaults to the kind produced by the importer
	Kind string `toml:"kind"`
	// raw kind; defaults to the source file extension
	Importer string `toml:"importer"`
	// relative to the descriptor
	Source       string         `toml:"source"`
	Dependencies []core.AssetID `toml:"dependencies"`
	Tags         []string       `toml:"tags"`
	Author       string         `toml:"author"`
	License      string         `toml:"license"`
	Params       map[string]any `toml:"params"`
}

// ParseDescriptor decodes a descriptor and turns it into a manifest entry.
// path is only used to resolve defaults and the relative source.
func ParseDescriptor(path string, data []byte) (ManifestEntry, error) {
	var d Descriptor
	if err := toml.Unmarshal(data, &d); err != nil {
		return ManifestEntry{}, fmt.Errorf("%w: failed to parse descriptor %s: %v", core.ErrConfig, path, err)
	}

	id := d.ID
	if id == "" {
		id = core.NormalizeAssetID(path)
	}
	if d.Source == "" {
		return ManifestEntry{}, core.Errorf(core.ErrConfig, id, "descriptor %s has no source", path)
	}
	source := d.Source
	if !filepath.IsAbs(source) {
		source = filepath.Join(filepath.Dir(path), source)
	}

	importer := strings.ToLower(d.Importer)
	if importer == "" {
		importer = strings.TrimPrefix(strings.ToLower(filepath.Ext(source)), ".")
	}

	var kind ir.Kind
	if d.Kind != "" {
		k, err := ir.ParseKind(d.Kind)
		if err != nil {
			return ManifestEntry{}, core.NewAssetError(core.ErrConfig, id, err)
		}
		kind = k
	} else if k, ok := loaders.DefaultKind(importer); ok {
		kind = k
	} else {
		return ManifestEntry{}, core.Errorf(core.ErrConfig, id, "cannot infer the kind of importer %q, set kind explicitly", importer)
	}

	params := make(map[string]string, len(d.Params))
	for k, v := range d.Params {
		params[k] = paramString(v)
	}

	return ManifestEntry{
		ID:           id,
		Kind:         kind,
		Importer:     importer,
		Path:         source,
		Params:       params,
		Dependencies: d.Dependencies,
		Info: dac.AssetInfo{
			Tags:    d.Tags,
			Author:  d.Author,
			License: d.License,
		},
	}, nil
}

// paramString flattens a TOML value into the string form importers read.
func paramString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []any:
		parts := make([]string, len(t))
		for i, e := range t {
			parts[i] = paramString(e)
		}
		return strings.Join(parts, ",")
	default:
		return fmt.Sprint(t)
	}
}

// Collect reads every descriptor under dir. Entries are ordered by
// descriptor path, which keeps builds of the same tree reproducible.
func Collect(dir string, mode ReadMode) ([]ManifestEntry, error) {
	var paths []string
	switch mode {
	case ReadModeFlat:
		des, err := os.ReadDir(dir)
		if err != nil {
			return nil, fmt.Errorf("failed to read input directory: %w", err)
		}
		for _, de := range des {
			if !de.IsDir() && strings.HasSuffix(de.Name(), DescriptorSuffix) {
				paths = append(paths, filepath.Join(dir, de.Name()))
			}
		}
	case ReadModeRecursive, "":
		err := filepath.WalkDir(dir, func(p string, de os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if de.IsDir() && p != dir && strings.HasPrefix(de.Name(), ".") {
				return filepath.SkipDir
			}
			if !de.IsDir() && strings.HasSuffix(de.Name(), DescriptorSuffix) {
				paths = append(paths, p)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to walk input directory: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: unknown read mode %q", core.ErrConfig, mode)
	}
	sort.Strings(paths)

	entries := make([]ManifestEntry, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("failed to read descriptor: %w", err)
		}
		e, err := ParseDescriptor(p, data)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	core.LogDebug("collected %d descriptors from %s (%s)", len(entries), dir, mode)
	return entries, nil
}
