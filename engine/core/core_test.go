package core

import (
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
	"testing"
	"time"
)

func TestAssetError(t *testing.T) {
	err := Errorf(ErrIntegrity, "tex_a", "checksum %x", 0xbeef)
	if !errors.Is(err, ErrIntegrity) {
		t.Fatal("kind not matched")
	}
	if errors.Is(err, ErrDecode) {
		t.Fatal("matched the wrong kind")
	}
	if !strings.Contains(err.Error(), `"tex_a"`) || !strings.Contains(err.Error(), "beef") {
		t.Fatalf("message = %q", err.Error())
	}

	wrapped := fmt.Errorf("loading: %w", NewAssetError(ErrDecode, "mesh_a", io.ErrUnexpectedEOF))
	if !errors.Is(wrapped, io.ErrUnexpectedEOF) {
		t.Fatal("cause lost")
	}
	var ae *AssetError
	if !errors.As(wrapped, &ae) || ae.ID != "mesh_a" {
		t.Fatalf("as = %+v", ae)
	}

	tests := []struct {
		err  error
		want error
	}{
		{nil, nil},
		{io.EOF, nil},
		{wrapped, ErrDecode},
		{fmt.Errorf("%w: bad level", ErrConfig), ErrConfig},
		{NewAssetError(ErrNotFound, "x", nil), ErrNotFound},
	}
	for _, tt := range tests {
		if got := KindOf(tt.err); got != tt.want {
			t.Errorf("KindOf(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestChecked(t *testing.T) {
	if _, err := CheckedAdd(uint64(math.MaxUint64), 1); !errors.Is(err, ErrOverflow) {
		t.Error("add overflow not detected")
	}
	if v, err := CheckedAdd(uint32(2), 3); err != nil || v != 5 {
		t.Errorf("add = %d, %v", v, err)
	}
	if _, err := CheckedMul(uint32(1<<16), 1<<16); !errors.Is(err, ErrOverflow) {
		t.Error("mul overflow not detected")
	}
	if v, err := MulSize(64, 64, 4); err != nil || v != 16384 {
		t.Errorf("mul size = %d, %v", v, err)
	}
	if _, err := MulSize(-1, 4); err == nil {
		t.Error("negative size accepted")
	}
	if _, err := MulSize(uint64(1)<<40, uint64(1)<<40); err == nil {
		t.Error("huge size accepted")
	}

	if !InRange[uint64](24, 10, 24, 34) {
		t.Error("exact fit rejected")
	}
	if InRange[uint64](30, 10, 24, 34) {
		t.Error("overhang accepted")
	}
	if InRange[uint64](math.MaxUint64, 2, 0, math.MaxUint64) {
		t.Error("wrapping range accepted")
	}
}

func TestNormalizeAssetID(t *testing.T) {
	tests := map[string]AssetID{
		"textures/Tex A.png":       "tex_a",
		"models/mesh_a.asset.toml": "mesh_a",
		"sounds/boom.v2.wav":       "boom_v2",
		"ui/fönt-bold!.fnt":        "fnt-bold",
		"noext":                    "noext",
		"dir.with.dots/file.obj":   "file",
	}
	for in, want := range tests {
		if got := NormalizeAssetID(in); got != want {
			t.Errorf("NormalizeAssetID(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestContentID(t *testing.T) {
	a := ContentID([]byte("tex_a"), []byte{1, 2})
	b := ContentID([]byte("tex_a"), []byte{1, 2})
	c := ContentID([]byte("tex_b"))
	if a != b {
		t.Error("equal inputs produced different ids")
	}
	if a == c {
		t.Error("different inputs produced the same id")
	}
	if a.Version() != 5 {
		t.Errorf("version = %d", a.Version())
	}
}

func TestEventBus(t *testing.T) {
	bus := NewEventBus()
	var calls []string
	first := func(code SystemEventCode, sender, listener interface{}, data EventContext) bool {
		calls = append(calls, "first:"+string(data.AssetID))
		return data.AssetID == "stop"
	}
	second := func(code SystemEventCode, sender, listener interface{}, data EventContext) bool {
		calls = append(calls, "second")
		return false
	}
	l1, l2 := new(int), new(int)
	if !bus.Register(EVENT_CODE_ASSET_LOADED, l1, first) {
		t.Fatal("register failed")
	}
	if bus.Register(EVENT_CODE_ASSET_LOADED, l1, second) {
		t.Fatal("duplicate listener registered")
	}
	bus.Register(EVENT_CODE_ASSET_LOADED, l2, second)

	bus.Fire(EVENT_CODE_ASSET_LOADED, nil, EventContext{AssetID: "a"})
	if !bus.Fire(EVENT_CODE_ASSET_LOADED, nil, EventContext{AssetID: "stop"}) {
		t.Fatal("handled event reported unhandled")
	}
	want := []string{"first:a", "second", "first:stop"}
	if fmt.Sprint(calls) != fmt.Sprint(want) {
		t.Fatalf("calls = %v, want %v", calls, want)
	}

	if !bus.Unregister(EVENT_CODE_ASSET_LOADED, l1) || bus.Unregister(EVENT_CODE_ASSET_LOADED, l1) {
		t.Fatal("unregister")
	}
	calls = nil
	bus.Fire(EVENT_CODE_ASSET_LOADED, nil, EventContext{})
	if fmt.Sprint(calls) != "[second]" {
		t.Fatalf("calls after unregister = %v", calls)
	}
}

func TestLoadMetrics(t *testing.T) {
	m := NewLoadMetrics()
	m.Hit()
	m.Miss()
	m.Miss()
	m.Failure()
	m.Eviction()
	m.DecodeFinished(2 * time.Millisecond)
	m.DecodeFinished(4 * time.Millisecond)

	s := m.Snapshot()
	if s.Hits != 1 || s.Misses != 2 || s.Failures != 1 || s.Evictions != 1 || s.Decodes != 2 {
		t.Fatalf("snapshot = %+v", s)
	}
	if s.AvgDecodeTime != 3*time.Millisecond {
		t.Fatalf("average = %s", s.AvgDecodeTime)
	}
}

func TestClock(t *testing.T) {
	now := time.Unix(1000, 0)
	c := &Clock{now: func() time.Time { return now }}
	if c.Tick() != 0 || c.Running() {
		t.Fatal("stopped clock ticked")
	}

	c.Start()
	now = now.Add(16 * time.Millisecond)
	if d := c.Tick(); d != 16*time.Millisecond {
		t.Fatalf("first tick = %s", d)
	}
	now = now.Add(20 * time.Millisecond)
	if d := c.Tick(); d != 20*time.Millisecond {
		t.Fatalf("second tick = %s", d)
	}
	if c.Elapsed() != 36*time.Millisecond {
		t.Fatalf("elapsed = %s", c.Elapsed())
	}

	c.Stop()
	now = now.Add(time.Second)
	c.Tick()
	if c.Elapsed() != 36*time.Millisecond {
		t.Fatalf("elapsed after stop = %s", c.Elapsed())
	}
}
