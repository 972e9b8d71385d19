package dacgen

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"

	"github.com/spaghettifunk/dawn/engine/assets/codec"
	"github.com/spaghettifunk/dawn/engine/assets/dac"
	"github.com/spaghettifunk/dawn/engine/core"
)

// ReadMode selects how descriptors are collected from the input directory.
type ReadMode string

const (
	// only the input directory itself
	ReadModeFlat ReadMode = "flat"
	// the input directory and every subdirectory
	ReadModeRecursive ReadMode = "recursive"
)

// Config is the build configuration of a container, usually read from a
// dacgen.yaml next to the assets.
type Config struct {
	// Input is the directory holding the *.asset.toml descriptors.
	Input string `yaml:"input"`

	// Output is the container file to write.
	Output string `yaml:"output"`

	// ReadMode is "flat" or "recursive". Defaults to recursive.
	ReadMode ReadMode `yaml:"read_mode"`

	// Compression is one of none, fast, default, best.
	Compression string `yaml:"compression"`

	// CacheDir enables the build cache when set.
	CacheDir string `yaml:"cache_dir"`

	// Workers is the number of parallel importers. Defaults to the number
	// of CPUs.
	Workers int `yaml:"workers"`

	LogLevel string `yaml:"log_level"`

	Author      string `yaml:"author"`
	Description string `yaml:"description"`
	Version     string `yaml:"version"`
	License     string `yaml:"license"`
}

// DefaultConfig returns the settings used for anything a config file leaves
// empty.
func DefaultConfig() Config {
	return Config{
		Input:       ".",
		Output:      "assets.dac",
		ReadMode:    ReadModeRecursive,
		Compression: codec.LevelDefault.String(),
		Workers:     runtime.NumCPU(),
		LogLevel:    "info",
	}
}

// LoadConfig reads a YAML configuration. Relative paths are resolved against
// the directory of the config file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config file %s: %v", core.ErrConfig, path, err)
	}

	base := filepath.Dir(path)
	for _, p := range []*string{&config.Input, &config.Output, &config.CacheDir} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(base, *p)
		}
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Input == "" {
		return fmt.Errorf("%w: input is required", core.ErrConfig)
	}
	if c.Output == "" {
		return fmt.Errorf("%w: output is required", core.ErrConfig)
	}
	switch c.ReadMode {
	case ReadModeFlat, ReadModeRecursive:
	case "":
		c.ReadMode = ReadModeRecursive
	default:
		return fmt.Errorf("%w: unknown read_mode %q", core.ErrConfig, c.ReadMode)
	}
	if _, err := codec.ParseLevel(c.Compression); err != nil {
		return fmt.Errorf("%w: %v", core.ErrConfig, err)
	}
	if c.Workers < 0 {
		return fmt.Errorf("%w: workers must not be negative", core.ErrConfig)
	}
	return nil
}

// Options converts the configuration into build options.
func (c *Config) Options(registry *codec.Registry) (Options, error) {
	level, err := codec.ParseLevel(c.Compression)
	if err != nil {
		return Options{}, fmt.Errorf("%w: %v", core.ErrConfig, err)
	}
	return Options{
		Registry:    registry,
		Compression: level,
		CacheDir:    c.CacheDir,
		Workers:     c.Workers,
		Manifest: dac.Manifest{
			Author:      c.Author,
			Description: c.Description,
			Version:     c.Version,
			License:     c.License,
		},
	}, nil
}
