package hub

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/spaghettifunk/dawn/engine/assets/dac"
	"github.com/spaghettifunk/dawn/engine/assets/ir"
	"github.com/spaghettifunk/dawn/engine/containers"
	"github.com/spaghettifunk/dawn/engine/core"
	"github.com/spaghettifunk/dawn/engine/systems"
)

// Source is a mounted set of assets. *dac.Container satisfies it.
type Source interface {
	Entries() []dac.Entry
	Entry(id core.AssetID) (dac.Entry, bool)
	Decode(id core.AssetID) (ir.Asset, error)
}

// Stats is a point-in-time view of the hub.
type Stats struct {
	Cached   int
	Bytes    int64
	InFlight int
	Pinned   int
	Metrics  core.MetricsSnapshot
}

// Hub loads assets asynchronously and caches them by id. A single goroutine
// owns the cache and the in-flight table; every public method posts a
// command to it and returns without waiting. Decodes run on a job system.
type Hub struct {
	cfg     Config
	jobs    *systems.JobSystem
	metrics *core.LoadMetrics
	out     *outbox

	// mailbox
	mu     sync.Mutex
	inbox  *containers.RingQueue[command]
	closed bool
	wake   chan struct{}
	done   chan struct{}

	shutdown sync.Once

	// published by the actor for Stats
	cached   atomic.Int64
	bytes    atomic.Int64
	inFlight atomic.Int64
	pinned   atomic.Int64

	// actor state, never touched from other goroutines
	mounts  []Source
	cache   *containers.LRU[assetKey, *entry]
	used    int64
	flights map[assetKey]*flight
	// failed flights whose decode has not returned yet
	draining map[assetKey]*flight
	pins     map[core.AssetID]int
}

type command interface{}

type (
	mountCmd      struct{ src Source }
	unmountCmd    struct{ src Source }
	requestCmd    struct{ handle *LoadHandle }
	requestAllCmd struct{ group *LoadGroup }
	releaseCmd    struct{ handle *LoadHandle }
	pinCmd        struct{ id core.AssetID }
	unpinCmd      struct{ id core.AssetID }
	infosCmd      struct{ reply chan []AssetInfo }
	shutdownCmd   struct{}
	decodedCmd    struct {
		flight *flight
		asset  ir.Asset
		err    error
	}
)

func New(cfg Config) (*Hub, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()

	jobs, err := systems.NewJobSystem(cfg.Workers, cfg.QueueSize)
	if err != nil {
		return nil, err
	}
	h := &Hub{
		cfg:      cfg,
		jobs:     jobs,
		metrics:  core.NewLoadMetrics(),
		out:      newOutbox(cfg.EventQueueSize),
		inbox:    containers.NewRingQueue[command](64, true),
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
		cache:    containers.NewLRU[assetKey, *entry](),
		flights:  make(map[assetKey]*flight),
		draining: make(map[assetKey]*flight),
		pins:     make(map[core.AssetID]int),
	}
	go h.run()
	core.LogDebug("asset hub started with %d workers", cfg.Workers)
	return h, nil
}

// post hands a command to the actor. It never blocks and reports false once
// the hub is shut down.
func (h *Hub) post(cmd command) bool {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return false
	}
	h.inbox.Enqueue(cmd)
	h.mu.Unlock()

	select {
	case h.wake <- struct{}{}:
	default:
	}
	return true
}

// Mount adds a source. Sources mounted later shadow earlier ones.
func (h *Hub) Mount(src Source) error {
	if !h.post(mountCmd{src: src}) {
		return core.ErrHubClosed
	}
	return nil
}

// Unmount removes a source. New requests no longer reach it; assets already
// loaded from it stay valid for their holders until released.
func (h *Hub) Unmount(src Source) {
	h.post(unmountCmd{src: src})
}

// Request starts loading id, or joins the load already running, and returns
// a handle for the result.
func (h *Hub) Request(id core.AssetID) *LoadHandle {
	handle := newHandle(h, id)
	if !h.post(requestCmd{handle: handle}) {
		handle.complete(nil, core.NewAssetError(core.ErrHubClosed, id, nil))
	}
	return handle
}

// RequestAll requests every asset visible through the mounted sources. The
// returned group is filled by the hub; it never waits for decodes.
func (h *Hub) RequestAll() *LoadGroup {
	g := newLoadGroup()
	if !h.post(requestAllCmd{group: g}) {
		g.err = core.ErrHubClosed
		close(g.ready)
	}
	return g
}

// Infos lists the state of every visible asset and of every cached one,
// ordered by id. It waits for the hub goroutine to answer, never for a
// decode.
func (h *Hub) Infos(ctx context.Context) ([]AssetInfo, error) {
	reply := make(chan []AssetInfo, 1)
	if !h.post(infosCmd{reply: reply}) {
		return nil, core.ErrHubClosed
	}
	select {
	case infos := <-reply:
		return infos, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Pin keeps id resident until a matching Unpin, whether or not it is loaded
// yet.
func (h *Hub) Pin(id core.AssetID) {
	h.post(pinCmd{id: id})
}

func (h *Hub) Unpin(id core.AssetID) {
	h.post(unpinCmd{id: id})
}

// PollPending returns the ids resolved (loaded or failed) since the last
// call, each at most once.
func (h *Hub) PollPending() []core.AssetID {
	return h.out.drainPending()
}

// PollEvents returns the events published since the last call, oldest first.
func (h *Hub) PollEvents() []Event {
	return h.out.drainEvents()
}

func (h *Hub) Stats() Stats {
	return Stats{
		Cached:   int(h.cached.Load()),
		Bytes:    h.bytes.Load(),
		InFlight: int(h.inFlight.Load()),
		Pinned:   int(h.pinned.Load()),
		Metrics:  h.metrics.Snapshot(),
	}
}

/**
 * @brief Stops the hub. Queued decodes are canceled, running ones are waited
 * for, pending handles fail with ErrHubClosed and the cache is released.
 * Safe to call more than once.
 */
func (h *Hub) Shutdown() error {
	h.shutdown.Do(func() {
		h.mu.Lock()
		h.inbox.Enqueue(shutdownCmd{})
		h.closed = true
		h.mu.Unlock()
		select {
		case h.wake <- struct{}{}:
		default:
		}

		<-h.done
		h.jobs.Shutdown()
		core.LogDebug("asset hub stopped")
	})
	return nil
}

func (h *Hub) run() {
	defer close(h.done)
	for range h.wake {
		h.mu.Lock()
		batch := h.inbox.Drain()
		h.mu.Unlock()

		for _, cmd := range batch {
			if _, ok := cmd.(shutdownCmd); ok {
				h.stop()
				return
			}
			h.handle(cmd)
		}
		h.publishStats()
	}
}

func (h *Hub) handle(cmd command) {
	switch c := cmd.(type) {
	case mountCmd:
		h.mounts = append(h.mounts, c.src)
	case unmountCmd:
		for i, m := range h.mounts {
			if m == c.src {
				h.mounts = append(h.mounts[:i], h.mounts[i+1:]...)
				break
			}
		}
	case requestCmd:
		h.request(c.handle)
	case releaseCmd:
		h.release(c.handle)
	case pinCmd:
		h.pins[c.id]++
	case unpinCmd:
		if n := h.pins[c.id]; n > 1 {
			h.pins[c.id] = n - 1
		} else if n == 1 {
			delete(h.pins, c.id)
			h.evict()
		}
	case decodedCmd:
		h.decoded(c.flight, c.asset, c.err)
	case requestAllCmd:
		h.requestAll(c.group)
	case infosCmd:
		c.reply <- h.infos()
	}
}

func (h *Hub) stop() {
	for _, f := range h.flightList() {
		h.fail(f, core.NewAssetError(core.ErrHubClosed, f.id, nil))
	}
	h.cache.Clear()
	h.used = 0
	h.mounts = nil
	h.publishStats()
}

func (h *Hub) publishStats() {
	h.cached.Store(int64(h.cache.Len()))
	h.bytes.Store(h.used)
	h.inFlight.Store(int64(len(h.flights)))
	h.pinned.Store(int64(len(h.pins)))
}

// visible returns the ids reachable through the mounts, sorted.
func (h *Hub) visible() []core.AssetID {
	seen := make(map[core.AssetID]bool)
	var ids []core.AssetID
	for _, m := range h.mounts {
		for _, e := range m.Entries() {
			if !seen[e.ID] {
				seen[e.ID] = true
				ids = append(ids, e.ID)
			}
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// lookup finds the newest mount that holds id.
func (h *Hub) lookup(id core.AssetID) (Source, dac.Entry, bool) {
	for i := len(h.mounts) - 1; i >= 0; i-- {
		if e, ok := h.mounts[i].Entry(id); ok {
			return h.mounts[i], e, true
		}
	}
	return nil, dac.Entry{}, false
}
