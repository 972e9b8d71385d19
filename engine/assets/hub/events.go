package hub

import (
	"fmt"
	"sync"

	"github.com/spaghettifunk/dawn/engine/containers"
	"github.com/spaghettifunk/dawn/engine/core"
)

type EventKind uint8

const (
	EventLoaded EventKind = iota + 1
	EventFailed
	EventEvicted
)

func (k EventKind) String() string {
	switch k {
	case EventLoaded:
		return "loaded"
	case EventFailed:
		return "failed"
	case EventEvicted:
		return "evicted"
	}
	return fmt.Sprintf("event(%d)", uint8(k))
}

// Event reports a change of an asset's residency.
type Event struct {
	Kind EventKind
	ID   core.AssetID
	// set for EventFailed
	Err error
}

// outbox holds what the actor publishes for the polling side: a bounded
// event queue and the set of ids resolved since the last PollPending.
type outbox struct {
	mu      sync.Mutex
	events  *containers.RingQueue[Event]
	dropped uint64
	pending *containers.RingQueue[core.AssetID]
	queued  map[core.AssetID]struct{}
}

func newOutbox(size int) *outbox {
	return &outbox{
		events:  containers.NewRingQueue[Event](size, false),
		pending: containers.NewRingQueue[core.AssetID](64, true),
		queued:  make(map[core.AssetID]struct{}),
	}
}

func (o *outbox) publish(ev Event) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.events.IsFull() {
		o.events.Dequeue()
		o.dropped++
		if o.dropped&(o.dropped-1) == 0 {
			core.LogWarn("hub event queue full, %d events dropped so far", o.dropped)
		}
	}
	o.events.Enqueue(ev)

	if ev.Kind != EventEvicted {
		o.markResolved(ev.ID)
	}
}

// resolved reports a handle resolution that has no event of its own, such
// as a cache hit.
func (o *outbox) resolved(id core.AssetID) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.markResolved(id)
}

func (o *outbox) markResolved(id core.AssetID) {
	if _, ok := o.queued[id]; !ok {
		o.queued[id] = struct{}{}
		o.pending.Enqueue(id)
	}
}

func (o *outbox) drainEvents() []Event {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.events.Drain()
}

func (o *outbox) drainPending() []core.AssetID {
	o.mu.Lock()
	defer o.mu.Unlock()
	ids := o.pending.Drain()
	for _, id := range ids {
		delete(o.queued, id)
	}
	return ids
}
