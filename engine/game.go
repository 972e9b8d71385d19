package engine

import (
	"github.com/spaghettifunk/dawn/engine/assets"
	"github.com/spaghettifunk/dawn/engine/core"
)

type Game struct {
	ApplicationConfig *ApplicationConfig
	// Set by the engine before FnInitialize runs.
	Assets       *assets.Dispatcher
	Events       *core.EventBus
	State        interface{}
	FnInitialize Initialize
	FnUpdate     Update
	FnShutdown   Shutdown
}

type Initialize func() error
type Update func(deltaTime float64) error
type Shutdown func() error
