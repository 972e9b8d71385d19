package assets

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/spaghettifunk/dawn/engine/assets/codec"
	"github.com/spaghettifunk/dawn/engine/assets/dac"
	"github.com/spaghettifunk/dawn/engine/assets/hub"
	"github.com/spaghettifunk/dawn/engine/assets/ir"
	"github.com/spaghettifunk/dawn/engine/core"
)

// writeContainer writes a container of blobs. Each blob holds its own id.
func writeContainer(t *testing.T, path string, ids ...core.AssetID) {
	t.Helper()
	w := dac.NewWriter(path)
	for _, id := range ids {
		raw, err := codec.Builtin().Encode(&ir.Blob{Data: []byte(id)})
		if err != nil {
			t.Fatal(err)
		}
		err = w.Add(dac.Payload{
			ID:                 id,
			Kind:               ir.KindBlob,
			Compression:        codec.CompressionNone,
			Data:               raw,
			UncompressedLength: uint64(len(raw)),
		})
		if err != nil {
			t.Fatal(err)
		}
	}
	if _, err := w.Commit(); err != nil {
		t.Fatal(err)
	}
}

func newHub(t *testing.T) *hub.Hub {
	t.Helper()
	h, err := hub.New(hub.Config{Workers: 2})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { h.Shutdown() })
	return h
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

type recorder struct {
	kinds    []ir.Kind
	resolved []core.AssetID
	failed   map[core.AssetID]error
}

func newRecorder(kinds ...ir.Kind) *recorder {
	return &recorder{kinds: kinds, failed: make(map[core.AssetID]error)}
}

func (r *recorder) Kinds() []ir.Kind { return r.kinds }

func (r *recorder) AssetResolved(asset *dac.LoadedAsset) {
	r.resolved = append(r.resolved, asset.ID)
}

func (r *recorder) AssetFailed(id core.AssetID, err error) {
	r.failed[id] = err
}

func mountBlobs(t *testing.T, h *hub.Hub, ids ...core.AssetID) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "blobs.dac")
	writeContainer(t, path, ids...)
	c, err := dac.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { c.Close() })
	if err := h.Mount(c); err != nil {
		t.Fatal(err)
	}
}

// pump runs the dispatch loop the way the engine tick does until every
// request was delivered.
func pump(t *testing.T, h *hub.Hub, d *Dispatcher) {
	t.Helper()
	eventually(t, "dispatch", func() bool {
		d.Dispatch(h.PollPending())
		return d.Pending() == 0
	})
}

func TestDispatcherRoutesByKind(t *testing.T) {
	h := newHub(t)
	mountBlobs(t, h, "a", "b")

	blobs := newRecorder(ir.KindBlob)
	textures := newRecorder(ir.KindTexture)
	d := NewDispatcher(h)
	d.Register(blobs)
	d.Register(textures)

	d.Request("a")
	d.Request("b")
	d.Request("missing")
	pump(t, h, d)

	if len(blobs.resolved) != 2 {
		t.Errorf("blob consumer got %v", blobs.resolved)
	}
	if len(textures.resolved) != 0 {
		t.Errorf("texture consumer got %v", textures.resolved)
	}
	for _, r := range []*recorder{blobs, textures} {
		if err := r.failed["missing"]; !errors.Is(err, core.ErrNotFound) {
			t.Errorf("failure = %v, want not found for every consumer", err)
		}
	}

	// delivered assets stay resident until released
	if got := h.Stats().Cached; got != 2 {
		t.Fatalf("cached = %d", got)
	}
}

func TestDispatcherRequestFor(t *testing.T) {
	h := newHub(t)
	mountBlobs(t, h, "a")

	first := newRecorder(ir.KindBlob)
	second := newRecorder(ir.KindBlob)
	d := NewDispatcher(h)
	d.Register(first)
	d.Register(second)

	d.RequestFor(second, "a")
	d.RequestFor(second, "nope")
	pump(t, h, d)

	if len(first.resolved) != 0 || len(first.failed) != 0 {
		t.Errorf("untargeted consumer was called: %v %v", first.resolved, first.failed)
	}
	if !reflect.DeepEqual(second.resolved, []core.AssetID{"a"}) {
		t.Errorf("resolved = %v", second.resolved)
	}
	if _, ok := second.failed["nope"]; !ok {
		t.Error("targeted failure not delivered")
	}

	// a second request is a cache hit and still gets delivered
	d.RequestFor(second, "a")
	pump(t, h, d)
	if len(second.resolved) != 2 {
		t.Errorf("resolved = %v", second.resolved)
	}
}

func TestDispatcherRelease(t *testing.T) {
	h, err := hub.New(hub.Config{Workers: 1, MaxEntries: 1})
	if err != nil {
		t.Fatal(err)
	}
	defer h.Shutdown()
	mountBlobs(t, h, "a", "b")

	r := newRecorder(ir.KindBlob)
	d := NewDispatcher(h)
	d.Register(r)
	d.Request("a")
	d.Request("b")
	pump(t, h, d)

	// both are held, so the budget of one cannot be met yet
	eventually(t, "two cached", func() bool { return h.Stats().Cached == 2 })

	d.Release("a")
	eventually(t, "eviction", func() bool { return h.Stats().Cached == 1 })

	d.ReleaseAll()
	if d.Pending() != 0 {
		t.Errorf("pending = %d", d.Pending())
	}
}

type busRecorder struct {
	mu     sync.Mutex
	events map[core.SystemEventCode][]core.EventContext
}

func listen(bus *core.EventBus, codes ...core.SystemEventCode) *busRecorder {
	r := &busRecorder{events: make(map[core.SystemEventCode][]core.EventContext)}
	for _, code := range codes {
		bus.Register(code, r, func(code core.SystemEventCode, sender, listener interface{}, data core.EventContext) bool {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.events[code] = append(r.events[code], data)
			return false
		})
	}
	return r
}

func (r *busRecorder) count(code core.SystemEventCode) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events[code])
}

func TestAssetManager(t *testing.T) {
	dir := t.TempDir()
	writeContainer(t, filepath.Join(dir, "base.dac"), "a")
	if err := os.MkdirAll(filepath.Join(dir, "levels"), 0o755); err != nil {
		t.Fatal(err)
	}
	writeContainer(t, filepath.Join(dir, "levels", "one.dac"), "b")
	// not a container, ignored
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	registry, err := NewRegistry()
	if err != nil {
		t.Fatal(err)
	}
	h := newHub(t)
	bus := core.NewEventBus()
	events := listen(bus,
		core.EVENT_CODE_CONTAINER_MOUNTED,
		core.EVENT_CODE_CONTAINER_FAILED,
		core.EVENT_CODE_ASSET_LOADED,
		core.EVENT_CODE_ASSET_FAILED,
	)

	am := NewAssetManager(h, registry, bus)
	if err := am.Initialize(dir); err != nil {
		t.Fatal(err)
	}
	defer func() {
		h.Shutdown()
		if err := am.Shutdown(); err != nil {
			t.Error(err)
		}
	}()

	if got := len(am.Containers()); got != 2 {
		t.Fatalf("containers = %v", am.Containers())
	}
	// nothing fires before Update
	if events.count(core.EVENT_CODE_CONTAINER_MOUNTED) != 0 {
		t.Fatal("event fired outside Update")
	}
	am.Update()
	if got := events.count(core.EVENT_CODE_CONTAINER_MOUNTED); got != 2 {
		t.Fatalf("mounted events = %d", got)
	}

	handle := h.Request("b")
	<-handle.Done()
	if _, err := handle.Result(); err != nil {
		t.Fatal(err)
	}
	handle.Release()
	eventually(t, "loaded event", func() bool {
		am.Update()
		return events.count(core.EVENT_CODE_ASSET_LOADED) == 1
	})

	t.Run("new container is mounted", func(t *testing.T) {
		writeContainer(t, filepath.Join(dir, "levels", "two.dac"), "c")
		eventually(t, "mount", func() bool { return len(am.Containers()) == 3 })

		handle := h.Request("c")
		<-handle.Done()
		if _, err := handle.Result(); err != nil {
			t.Fatal(err)
		}
		handle.Release()
	})

	t.Run("removed container is unmounted", func(t *testing.T) {
		if err := os.Remove(filepath.Join(dir, "base.dac")); err != nil {
			t.Fatal(err)
		}
		eventually(t, "unmount", func() bool { return len(am.Containers()) == 2 })
		eventually(t, "failed event", func() bool {
			am.Update()
			return events.count(core.EVENT_CODE_CONTAINER_FAILED) == 1
		})

		handle := h.Request("a")
		<-handle.Done()
		if _, err := handle.Result(); !errors.Is(err, core.ErrNotFound) {
			t.Fatalf("err = %v, want not found", err)
		}
	})

	t.Run("corrupt container is reported", func(t *testing.T) {
		bad := filepath.Join(dir, "bad.dac")
		if err := os.WriteFile(bad, []byte("not a container"), 0o644); err != nil {
			t.Fatal(err)
		}
		eventually(t, "failure", func() bool {
			am.Update()
			return events.count(core.EVENT_CODE_CONTAINER_FAILED) >= 2
		})
		for _, p := range am.Containers() {
			if p == bad {
				t.Fatal("corrupt container was mounted")
			}
		}
	})
}

func TestMountFileReplaces(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pack.dac")
	writeContainer(t, path, "a")

	h := newHub(t)
	am := NewAssetManager(h, codec.Builtin(), core.NewEventBus())
	defer am.Shutdown()

	if err := am.MountFile(path); err != nil {
		t.Fatal(err)
	}
	writeContainer(t, path, "b")
	if err := am.MountFile(path); err != nil {
		t.Fatal(err)
	}
	if got := am.Containers(); !reflect.DeepEqual(got, []string{path}) {
		t.Fatalf("containers = %v", got)
	}

	handle := h.Request("b")
	<-handle.Done()
	if _, err := handle.Result(); err != nil {
		t.Fatal(err)
	}
	handle = h.Request("a")
	<-handle.Done()
	if _, err := handle.Result(); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("replaced container still served a: %v", err)
	}

	if err := am.MountFile(filepath.Join(dir, "missing.dac")); err == nil {
		t.Fatal("mounting a missing file succeeded")
	}
}
