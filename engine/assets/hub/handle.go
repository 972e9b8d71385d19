package hub

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/spaghettifunk/dawn/engine/assets/dac"
	"github.com/spaghettifunk/dawn/engine/core"
)

// LoadHandle is the caller's side of a request. It resolves exactly once,
// either with the loaded asset or with an error. A resolved handle keeps its
// asset resident until Release.
type LoadHandle struct {
	id  core.AssetID
	hub *Hub

	done    chan struct{}
	resolve sync.Once
	asset   *dac.LoadedAsset
	err     error

	// owned by the actor
	key   assetKey
	entry *entry

	released atomic.Bool
}

func newHandle(h *Hub, id core.AssetID) *LoadHandle {
	return &LoadHandle{id: id, hub: h, done: make(chan struct{})}
}

func (h *LoadHandle) ID() core.AssetID {
	return h.id
}

// Done is closed once the handle is resolved.
func (h *LoadHandle) Done() <-chan struct{} {
	return h.done
}

func (h *LoadHandle) Ready() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

// Result returns core.ErrPending until the handle is resolved.
func (h *LoadHandle) Result() (*dac.LoadedAsset, error) {
	select {
	case <-h.done:
		return h.asset, h.err
	default:
		return nil, core.ErrPending
	}
}

// Wait blocks until the handle resolves or ctx is done.
func (h *LoadHandle) Wait(ctx context.Context) (*dac.LoadedAsset, error) {
	select {
	case <-h.done:
		return h.asset, h.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Release gives the handle back. A pending handle stops waiting without
// affecting other requests for the same asset; a resolved one drops its
// residency reference. Calling it again does nothing.
func (h *LoadHandle) Release() {
	if h.released.Swap(true) {
		return
	}
	h.hub.post(releaseCmd{handle: h})
}

func (h *LoadHandle) complete(asset *dac.LoadedAsset, err error) {
	h.resolve.Do(func() {
		h.asset, h.err = asset, err
		close(h.done)
	})
}
