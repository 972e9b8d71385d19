package hub

import (
	"context"
	"errors"

	"github.com/spaghettifunk/dawn/engine/assets/dac"
	"github.com/spaghettifunk/dawn/engine/core"
)

// LoadGroup is the result of RequestAll: one handle per visible asset, in id
// order.
type LoadGroup struct {
	ready   chan struct{}
	handles []*LoadHandle
	err     error
}

func newLoadGroup() *LoadGroup {
	return &LoadGroup{ready: make(chan struct{})}
}

// Ready is closed once the hub created the handles.
func (g *LoadGroup) Ready() <-chan struct{} {
	return g.ready
}

// Handles returns nil until Ready is closed.
func (g *LoadGroup) Handles() []*LoadHandle {
	select {
	case <-g.ready:
		return g.handles
	default:
		return nil
	}
}

// Wait blocks until every handle resolved. Failed loads leave a nil asset at
// their position and are joined into the returned error.
func (g *LoadGroup) Wait(ctx context.Context) ([]*dac.LoadedAsset, error) {
	select {
	case <-g.ready:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if g.err != nil {
		return nil, g.err
	}
	assets := make([]*dac.LoadedAsset, len(g.handles))
	var errs []error
	for i, handle := range g.handles {
		la, err := handle.Wait(ctx)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if err != nil {
			errs = append(errs, err)
			continue
		}
		assets[i] = la
	}
	return assets, errors.Join(errs...)
}

// Release releases every handle of the group once it is ready.
func (g *LoadGroup) Release() {
	<-g.ready
	for _, handle := range g.handles {
		handle.Release()
	}
}

func (h *Hub) requestAll(g *LoadGroup) {
	ids := h.visible()
	g.handles = make([]*LoadHandle, len(ids))
	for i, id := range ids {
		handle := newHandle(h, id)
		h.request(handle)
		g.handles[i] = handle
	}
	core.LogDebug("requested all %d visible assets", len(ids))
	close(g.ready)
}
