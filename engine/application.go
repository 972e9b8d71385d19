package engine

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
	"github.com/spaghettifunk/dawn/engine/assets/hub"
	"github.com/spaghettifunk/dawn/engine/core"
)

type ApplicationConfig struct {
	// The application name, used in logs.
	Name     string `toml:"name"`
	LogLevel string `toml:"log_level"`
	// Directory scanned and watched for containers.
	AssetsDir string `toml:"assets_dir"`
	// Ticks per second of the main loop.
	TickRate int        `toml:"tick_rate"`
	Hub      hub.Config `toml:"hub"`
}

func DefaultApplicationConfig() *ApplicationConfig {
	return &ApplicationConfig{
		Name:      "dawn",
		LogLevel:  "info",
		AssetsDir: "assets",
		TickRate:  60,
		Hub:       hub.DefaultConfig(),
	}
}

// LoadApplicationConfig reads a TOML file on top of the defaults. A relative
// assets_dir is resolved against the directory of the file.
func LoadApplicationConfig(path string) (*ApplicationConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, core.NewAssetError(core.ErrConfig, "", err)
	}
	cfg := DefaultApplicationConfig()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, core.NewAssetError(core.ErrConfig, "", fmt.Errorf("%s: %w", path, err))
	}
	if !filepath.IsAbs(cfg.AssetsDir) {
		cfg.AssetsDir = filepath.Join(filepath.Dir(path), cfg.AssetsDir)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *ApplicationConfig) Validate() error {
	if c.AssetsDir == "" {
		return core.Errorf(core.ErrConfig, "", "assets_dir is required")
	}
	if c.TickRate <= 0 {
		return core.Errorf(core.ErrConfig, "", "tick_rate must be positive, got %d", c.TickRate)
	}
	return c.Hub.Validate()
}
