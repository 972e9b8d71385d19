package hub

import (
	"fmt"
	"runtime"

	"github.com/spaghettifunk/dawn/engine/core"
)

// Config sizes the hub. It is the [hub] section of the application config.
type Config struct {
	// decode workers, defaults to the number of CPUs
	Workers int `toml:"workers"`
	// decode jobs buffered before submissions spill into goroutines
	QueueSize int `toml:"queue_size"`
	// cached assets kept before eviction starts, 0 for no limit
	MaxEntries int `toml:"max_entries"`
	// sum of MemoryUsage kept before eviction starts, 0 for no limit
	MaxBytes int64 `toml:"max_bytes"`
	// events kept for PollEvents; the oldest are dropped when full
	EventQueueSize int `toml:"event_queue_size"`
}

func DefaultConfig() Config {
	return Config{
		Workers:        runtime.NumCPU(),
		QueueSize:      64,
		EventQueueSize: 1024,
	}
}

func (c *Config) withDefaults() Config {
	out := *c
	def := DefaultConfig()
	if out.Workers == 0 {
		out.Workers = def.Workers
	}
	if out.QueueSize == 0 {
		out.QueueSize = def.QueueSize
	}
	if out.EventQueueSize == 0 {
		out.EventQueueSize = def.EventQueueSize
	}
	return out
}

func (c *Config) Validate() error {
	if c.Workers < 0 || c.QueueSize < 0 || c.EventQueueSize < 0 {
		return fmt.Errorf("%w: hub sizes must not be negative", core.ErrConfig)
	}
	if c.MaxEntries < 0 || c.MaxBytes < 0 {
		return fmt.Errorf("%w: hub cache limits must not be negative", core.ErrConfig)
	}
	return nil
}
