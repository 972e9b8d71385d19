package testbed

import (
	"github.com/dustin/go-humanize"
	"github.com/spaghettifunk/dawn/engine"
	"github.com/spaghettifunk/dawn/engine/assets/dac"
	"github.com/spaghettifunk/dawn/engine/assets/ir"
	"github.com/spaghettifunk/dawn/engine/core"
)

type TestGame struct {
	*engine.Game
}

type gameState struct {
	// assets requested at startup
	startup []core.AssetID
	loaded  map[core.AssetID]*dac.LoadedAsset
	failed  map[core.AssetID]error

	elapsed   float64
	announced bool
}

func NewTestGame(cfg *engine.ApplicationConfig, startup ...core.AssetID) *TestGame {
	tg := &TestGame{
		Game: &engine.Game{
			ApplicationConfig: cfg,
			State: &gameState{
				startup: startup,
				loaded:  make(map[core.AssetID]*dac.LoadedAsset),
				failed:  make(map[core.AssetID]error),
			},
		},
	}

	tg.FnInitialize = tg.Initialize
	tg.FnUpdate = tg.Update
	tg.FnShutdown = tg.Shutdown

	return tg
}

func (g *TestGame) state() *gameState {
	return g.State.(*gameState)
}

func (g *TestGame) Initialize() error {
	core.LogDebug("TestGame Initialize fn....")

	g.Assets.Register(g)
	g.Events.Register(core.EVENT_CODE_CONTAINER_MOUNTED, g, g.onContainer)
	g.Events.Register(core.EVENT_CODE_CONTAINER_FAILED, g, g.onContainer)
	g.Events.Register(core.EVENT_CODE_ASSET_EVICTED, g, g.onEvicted)

	for _, id := range g.state().startup {
		g.Assets.Request(id)
	}
	return nil
}

func (g *TestGame) Update(deltaTime float64) error {
	s := g.state()
	s.elapsed += deltaTime
	if !s.announced && len(s.loaded)+len(s.failed) == len(s.startup) && len(s.startup) > 0 {
		s.announced = true
		core.LogInfo("startup assets settled after %.2fs: %d loaded, %d failed", s.elapsed, len(s.loaded), len(s.failed))
	}
	return nil
}

func (g *TestGame) Shutdown() error {
	core.LogDebug("TestGame Shutdown fn....")
	return nil
}

func (g *TestGame) Kinds() []ir.Kind {
	return ir.Kinds()
}

func (g *TestGame) AssetResolved(asset *dac.LoadedAsset) {
	g.state().loaded[asset.ID] = asset
	core.LogInfo("%s %s ready: %s, %d dependencies", asset.Kind, asset.ID, describe(asset.Asset), len(asset.Dependencies))
}

func (g *TestGame) AssetFailed(id core.AssetID, err error) {
	g.state().failed[id] = err
	core.LogWarn("asset %s failed: %s", id, err)
}

func (g *TestGame) onContainer(code core.SystemEventCode, sender interface{}, listenerInst interface{}, context core.EventContext) bool {
	if code == core.EVENT_CODE_CONTAINER_FAILED {
		core.LogWarn("container %s unavailable: %s", context.Path, context.Err)
		return false
	}
	core.LogInfo("container %s mounted", context.Path)
	return false
}

func (g *TestGame) onEvicted(code core.SystemEventCode, sender interface{}, listenerInst interface{}, context core.EventContext) bool {
	core.LogDebug("asset %s evicted", context.AssetID)
	return false
}

func describe(a ir.Asset) string {
	size := humanize.IBytes(uint64(a.MemoryUsage()))
	switch v := a.(type) {
	case *ir.Texture:
		return humanize.Comma(int64(v.Width)) + "x" + humanize.Comma(int64(v.Height)) + " " + size
	case *ir.Mesh:
		return humanize.Comma(int64(len(v.Submeshes))) + " submeshes " + size
	case *ir.Audio:
		return v.Duration().String() + " " + size
	case *ir.Cubemap:
		return humanize.Comma(int64(v.Size)) + " cube " + size
	case *ir.Notes:
		return humanize.Comma(int64(len(v.Events))) + " notes, " + v.Duration().String()
	}
	return size
}
