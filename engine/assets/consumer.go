package assets

import (
	"github.com/spaghettifunk/dawn/engine/assets/dac"
	"github.com/spaghettifunk/dawn/engine/assets/hub"
	"github.com/spaghettifunk/dawn/engine/assets/ir"
	"github.com/spaghettifunk/dawn/engine/core"
)

// AssetConsumer is implemented by the runtime systems that use loaded assets
// (renderer, audio, gameplay).
type AssetConsumer interface {
	// Kinds lists the asset kinds the consumer wants to receive.
	Kinds() []ir.Kind
	AssetResolved(asset *dac.LoadedAsset)
	AssetFailed(id core.AssetID, err error)
}

type request struct {
	handle *hub.LoadHandle
	// nil routes by kind
	target AssetConsumer
}

// Dispatcher hands resolved requests to consumers. It is driven from the
// main loop and is not safe for concurrent use.
type Dispatcher struct {
	hub       *hub.Hub
	consumers []AssetConsumer
	pending   map[core.AssetID][]request
	// delivered handles keep their assets resident until Release
	held map[core.AssetID][]*hub.LoadHandle
}

func NewDispatcher(h *hub.Hub) *Dispatcher {
	return &Dispatcher{
		hub:     h,
		pending: make(map[core.AssetID][]request),
		held:    make(map[core.AssetID][]*hub.LoadHandle),
	}
}

func (d *Dispatcher) Register(c AssetConsumer) {
	d.consumers = append(d.consumers, c)
}

// Request loads id and delivers it to every consumer of its kind. Failures
// go to every registered consumer.
func (d *Dispatcher) Request(id core.AssetID) *hub.LoadHandle {
	return d.add(id, nil)
}

// RequestFor loads id and delivers it to c only.
func (d *Dispatcher) RequestFor(c AssetConsumer, id core.AssetID) *hub.LoadHandle {
	return d.add(id, c)
}

func (d *Dispatcher) add(id core.AssetID, target AssetConsumer) *hub.LoadHandle {
	handle := d.hub.Request(id)
	d.pending[id] = append(d.pending[id], request{handle: handle, target: target})
	return handle
}

// Pending is the number of requests not delivered yet.
func (d *Dispatcher) Pending() int {
	n := 0
	for _, reqs := range d.pending {
		n += len(reqs)
	}
	return n
}

// Dispatch delivers the resolved requests among ids, as returned by
// Hub.PollPending, and returns how many were delivered.
func (d *Dispatcher) Dispatch(ids []core.AssetID) int {
	delivered := 0
	for _, id := range ids {
		reqs := d.pending[id]
		// consumers may request again while being called
		delete(d.pending, id)
		var remaining []request
		for _, r := range reqs {
			if !r.handle.Ready() {
				remaining = append(remaining, r)
				continue
			}
			d.deliver(id, r)
			delivered++
		}
		if len(remaining) > 0 {
			d.pending[id] = append(remaining, d.pending[id]...)
		}
	}
	return delivered
}

func (d *Dispatcher) deliver(id core.AssetID, r request) {
	asset, err := r.handle.Result()
	if err != nil {
		r.handle.Release()
		if r.target != nil {
			r.target.AssetFailed(id, err)
			return
		}
		for _, c := range d.consumers {
			c.AssetFailed(id, err)
		}
		return
	}

	d.held[id] = append(d.held[id], r.handle)
	if r.target != nil {
		r.target.AssetResolved(asset)
		return
	}
	for _, c := range d.consumers {
		if wants(c, asset.Kind) {
			c.AssetResolved(asset)
		}
	}
}

func wants(c AssetConsumer, kind ir.Kind) bool {
	for _, k := range c.Kinds() {
		if k == kind {
			return true
		}
	}
	return false
}

// Release drops the residency of every delivered request for id and
// abandons the ones still pending.
func (d *Dispatcher) Release(id core.AssetID) {
	for _, handle := range d.held[id] {
		handle.Release()
	}
	delete(d.held, id)
	for _, r := range d.pending[id] {
		r.handle.Release()
	}
	delete(d.pending, id)
}

// ReleaseAll releases everything the dispatcher holds.
func (d *Dispatcher) ReleaseAll() {
	for id := range d.held {
		d.Release(id)
	}
	for id := range d.pending {
		d.Release(id)
	}
}
