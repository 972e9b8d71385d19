package engine

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spaghettifunk/dawn/engine/assets"
	"github.com/spaghettifunk/dawn/engine/assets/codec"
	"github.com/spaghettifunk/dawn/engine/assets/hub"
	"github.com/spaghettifunk/dawn/engine/core"
)

type Stage uint8

const (
	// Engine is in an uninitialized state
	EngineStageUninitialized Stage = iota
	// Engine is currently initializing
	EngineStageInitializing
	// Engine initialization is complete
	EngineStageInitialized
	// Engine is currently running
	EngineStageRunning
	// Engine is in the process of shutting down
	EngineStageShuttingDown
	// Engine released everything
	EngineStageStopped
)

var ErrAlreadyRunning = fmt.Errorf("engine is already running")
var ErrEngineStopped = fmt.Errorf("engine is stopped")

type Engine struct {
	mu           sync.Mutex
	currentStage Stage
	gameInstance *Game
	isRunning    atomic.Bool

	registry     *codec.Registry
	hub          *hub.Hub
	assetManager *assets.AssetManager
	dispatcher   *assets.Dispatcher
	bus          *core.EventBus

	clock *core.Clock

	teardown sync.Once
	stopped  chan struct{}
}

func New(g *Game) (*Engine, error) {
	if g.ApplicationConfig == nil {
		g.ApplicationConfig = DefaultApplicationConfig()
	}
	cfg := g.ApplicationConfig
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := core.SetLogLevel(cfg.LogLevel); err != nil {
		return nil, core.NewAssetError(core.ErrConfig, "", err)
	}

	registry, err := assets.NewRegistry()
	if err != nil {
		core.LogError(err.Error())
		return nil, err
	}
	h, err := hub.New(cfg.Hub)
	if err != nil {
		core.LogError(err.Error())
		return nil, err
	}
	bus := core.NewEventBus()

	e := &Engine{
		currentStage: EngineStageUninitialized,
		gameInstance: g,
		registry:     registry,
		hub:          h,
		assetManager: assets.NewAssetManager(h, registry, bus),
		dispatcher:   assets.NewDispatcher(h),
		bus:          bus,
		clock:        core.NewClock(),
		stopped:      make(chan struct{}),
	}
	g.Assets = e.dispatcher
	g.Events = bus
	return e, nil
}

func (e *Engine) Initialize() error {
	e.setStage(EngineStageInitializing)

	e.bus.Register(core.EVENT_CODE_APPLICATION_QUIT, e, e.onEvent)

	if err := e.assetManager.Initialize(e.gameInstance.ApplicationConfig.AssetsDir); err != nil {
		return err
	}

	if e.gameInstance.FnInitialize != nil {
		if err := e.gameInstance.FnInitialize(); err != nil {
			return err
		}
	}
	e.setStage(EngineStageInitialized)
	core.LogInfo("%s initialized, %d containers mounted", e.gameInstance.ApplicationConfig.Name, len(e.assetManager.Containers()))
	return nil
}

// Run ticks until the application quits or Shutdown is called, then releases
// everything the engine owns.
func (e *Engine) Run() error {
	e.mu.Lock()
	switch {
	case e.currentStage == EngineStageRunning:
		e.mu.Unlock()
		return ErrAlreadyRunning
	case e.currentStage > EngineStageRunning:
		e.mu.Unlock()
		return ErrEngineStopped
	}
	e.currentStage = EngineStageRunning
	e.isRunning.Store(true)
	e.mu.Unlock()
	defer close(e.stopped)

	e.clock.Start()

	ticker := time.NewTicker(time.Second / time.Duration(e.gameInstance.ApplicationConfig.TickRate))
	defer ticker.Stop()

	var runErr error
	for e.isRunning.Load() {
		delta := e.clock.Tick().Seconds()

		e.tickAssets()

		if e.gameInstance.FnUpdate != nil {
			if err := e.gameInstance.FnUpdate(delta); err != nil {
				core.LogError("game update failed, shutting down: %s", err)
				runErr = err
				break
			}
		}

		if !e.isRunning.Load() {
			break
		}
		<-ticker.C
	}

	return errors.Join(runErr, e.release())
}

// tickAssets hands resolved loads to the game and fires the asset events.
func (e *Engine) tickAssets() {
	if ids := e.hub.PollPending(); len(ids) > 0 {
		e.dispatcher.Dispatch(ids)
	}
	e.assetManager.Update()
}

/**
 * @brief Stops the main loop and waits for the engine to release its
 * resources. Safe to call from any goroutine and more than once.
 */
func (e *Engine) Shutdown() error {
	e.mu.Lock()
	stage := e.currentStage
	e.mu.Unlock()

	if stage == EngineStageRunning {
		e.isRunning.Store(false)
		<-e.stopped
		return nil
	}
	return e.release()
}

func (e *Engine) release() error {
	var err error
	e.teardown.Do(func() {
		e.setStage(EngineStageShuttingDown)
		var errs []error
		if e.gameInstance.FnShutdown != nil {
			errs = append(errs, e.gameInstance.FnShutdown())
		}
		stats := e.hub.Stats()
		e.dispatcher.ReleaseAll()
		errs = append(errs, e.hub.Shutdown())
		errs = append(errs, e.assetManager.Shutdown())
		e.bus.Shutdown()
		e.setStage(EngineStageStopped)

		core.LogInfo("engine stopped: %d loads, %d hits, %d failures, %s cached at exit",
			stats.Metrics.Decodes, stats.Metrics.Hits, stats.Metrics.Failures, humanize.IBytes(uint64(stats.Bytes)))
		err = errors.Join(errs...)
	})
	return err
}

func (e *Engine) Stage() Stage {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.currentStage
}

func (e *Engine) setStage(s Stage) {
	e.mu.Lock()
	e.currentStage = s
	e.mu.Unlock()
}

// Hub exposes the asset hub for direct requests.
func (e *Engine) Hub() *hub.Hub {
	return e.hub
}

func (e *Engine) onEvent(code core.SystemEventCode, sender interface{}, listenerInst interface{}, context core.EventContext) bool {
	switch code {
	case core.EVENT_CODE_APPLICATION_QUIT:
		core.LogInfo("EVENT_CODE_APPLICATION_QUIT received, shutting down.")
		e.isRunning.Store(false)
		return true
	}
	return false
}
