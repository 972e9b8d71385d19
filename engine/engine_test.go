package engine

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spaghettifunk/dawn/engine/assets/codec"
	"github.com/spaghettifunk/dawn/engine/assets/dac"
	"github.com/spaghettifunk/dawn/engine/assets/ir"
	"github.com/spaghettifunk/dawn/engine/core"
)

func writeBlobContainer(t *testing.T, path string, ids ...core.AssetID) {
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

func TestLoadApplicationConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.toml")
	data := `
name = "demo"
log_level = "debug"
assets_dir = "packs"
tick_rate = 30

[hub]
workers = 3
max_entries = 10
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadApplicationConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Name != "demo" || cfg.TickRate != 30 || cfg.LogLevel != "debug" {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.AssetsDir != filepath.Join(dir, "packs") {
		t.Errorf("assets dir = %s", cfg.AssetsDir)
	}
	if cfg.Hub.Workers != 3 || cfg.Hub.MaxEntries != 10 {
		t.Errorf("hub = %+v", cfg.Hub)
	}
	// untouched keys keep their defaults
	if cfg.Hub.EventQueueSize != 1024 {
		t.Errorf("event queue size = %d", cfg.Hub.EventQueueSize)
	}

	tests := []struct {
		name string
		data string
	}{
		{"bad toml", "name = "},
		{"zero tick rate", "tick_rate = 0"},
		{"negative workers", "[hub]\nworkers = -1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := filepath.Join(t.TempDir(), "app.toml")
			if err := os.WriteFile(p, []byte(tt.data), 0o644); err != nil {
				t.Fatal(err)
			}
			if _, err := LoadApplicationConfig(p); !errors.Is(err, core.ErrConfig) {
				t.Fatalf("err = %v, want config error", err)
			}
		})
	}
}

type blobConsumer struct {
	got  map[core.AssetID]string
	fail map[core.AssetID]error
}

func (c *blobConsumer) Kinds() []ir.Kind { return []ir.Kind{ir.KindBlob} }

func (c *blobConsumer) AssetResolved(asset *dac.LoadedAsset) {
	c.got[asset.ID] = string(asset.Asset.(*ir.Blob).Data)
}

func (c *blobConsumer) AssetFailed(id core.AssetID, err error) {
	c.fail[id] = err
}

func TestEngineDeliversAssets(t *testing.T) {
	dir := t.TempDir()
	writeBlobContainer(t, filepath.Join(dir, "main.dac"), "hello", "world")

	cfg := DefaultApplicationConfig()
	cfg.AssetsDir = dir
	cfg.TickRate = 200
	cfg.Hub.Workers = 2

	consumer := &blobConsumer{got: make(map[core.AssetID]string), fail: make(map[core.AssetID]error)}
	loaded := 0
	shutdownCalled := false
	g := &Game{ApplicationConfig: cfg}
	g.FnInitialize = func() error {
		g.Assets.Register(consumer)
		g.Events.Register(core.EVENT_CODE_ASSET_LOADED, consumer, func(code core.SystemEventCode, sender, listener interface{}, data core.EventContext) bool {
			loaded++
			return false
		})
		g.Assets.Request("hello")
		g.Assets.Request("world")
		g.Assets.Request("absent")
		return nil
	}
	start := time.Now()
	g.FnUpdate = func(delta float64) error {
		if len(consumer.got) == 2 && len(consumer.fail) == 1 && loaded == 2 {
			g.Events.Fire(core.EVENT_CODE_APPLICATION_QUIT, nil, core.EventContext{})
		}
		if time.Since(start) > 5*time.Second {
			return errors.New("assets never arrived")
		}
		return nil
	}
	g.FnShutdown = func() error {
		shutdownCalled = true
		return nil
	}

	e, err := New(g)
	if err != nil {
		t.Fatal(err)
	}
	if err := e.Initialize(); err != nil {
		t.Fatal(err)
	}
	if err := e.Run(); err != nil {
		t.Fatal(err)
	}

	if consumer.got["hello"] != "hello" || consumer.got["world"] != "world" {
		t.Errorf("got = %v", consumer.got)
	}
	if !errors.Is(consumer.fail["absent"], core.ErrNotFound) {
		t.Errorf("absent = %v", consumer.fail["absent"])
	}
	if !shutdownCalled {
		t.Error("game shutdown not called")
	}
	if e.Stage() != EngineStageStopped {
		t.Errorf("stage = %d", e.Stage())
	}
	// a second shutdown is a no-op
	if err := e.Shutdown(); err != nil {
		t.Fatal(err)
	}
}

func TestShutdownStopsRun(t *testing.T) {
	cfg := DefaultApplicationConfig()
	cfg.AssetsDir = t.TempDir()
	cfg.Hub.Workers = 1

	ticks := make(chan struct{}, 1)
	g := &Game{ApplicationConfig: cfg, FnUpdate: func(float64) error {
		select {
		case ticks <- struct{}{}:
		default:
		}
		return nil
	}}
	e, err := New(g)
	if err != nil {
		t.Fatal(err)
	}
	if err := e.Initialize(); err != nil {
		t.Fatal(err)
	}

	done := make(chan error, 1)
	go func() { done <- e.Run() }()
	<-ticks
	if err := e.Run(); !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("second Run = %v, want ErrAlreadyRunning", err)
	}

	if err := e.Shutdown(); err != nil {
		t.Fatal(err)
	}
	select {
	case err := <-done:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return")
	}
	if err := e.Run(); !errors.Is(err, ErrEngineStopped) {
		t.Fatalf("Run after shutdown = %v, want ErrEngineStopped", err)
	}
}
