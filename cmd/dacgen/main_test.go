package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func sourceTree(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"data/blob.bin":        "\x00\x01\x02\x03payload",
		"data/blob.asset.toml": `source = "blob.bin"`,
		"settings.toml":        "[window]\nwidth = 1280\n",
		"settings.asset.toml":  "source = \"settings.toml\"\ndependencies = [\"blob\"]\n",
	}
	for name, data := range files {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func TestBuildInspectVerify(t *testing.T) {
	src := sourceTree(t)
	out := filepath.Join(t.TempDir(), "game.dac")

	var buf bytes.Buffer
	if err := run([]string{"build", "-i", src, "-o", out, "--compression", "best", "-j", "2"}, &buf); err != nil {
		t.Fatalf("build: %v\n%s", err, buf.String())
	}
	if !strings.Contains(buf.String(), "2 assets") {
		t.Errorf("build output = %q", buf.String())
	}

	buf.Reset()
	if err := run([]string{"inspect", out}, &buf); err != nil {
		t.Fatalf("inspect: %v", err)
	}
	for _, want := range []string{"blob", "settings", "dictionary", "dacgen"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("inspect output misses %q:\n%s", want, buf.String())
		}
	}

	buf.Reset()
	if err := run([]string{"verify", out}, &buf); err != nil {
		t.Fatalf("verify: %v\n%s", err, buf.String())
	}

	// flip the last payload byte before the table of contents
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	data[24] ^= 0xff
	corrupt := filepath.Join(t.TempDir(), "corrupt.dac")
	if err := os.WriteFile(corrupt, data, 0o644); err != nil {
		t.Fatal(err)
	}
	buf.Reset()
	err = run([]string{"verify", out, corrupt}, &buf)
	var exit exitError
	if !errors.As(err, &exit) || exit.ExitCode() != 2 {
		t.Fatalf("verify of a corrupt container = %v", err)
	}
	if !strings.Contains(buf.String(), "FAIL "+corrupt) {
		t.Errorf("verify output = %q", buf.String())
	}
}

func TestBuildWithConfig(t *testing.T) {
	src := sourceTree(t)
	cfg := filepath.Join(src, "dacgen.yaml")
	yaml := "input: .\noutput: out/pack.dac\ncompression: none\nauthor: tester\n"
	if err := os.WriteFile(cfg, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := run([]string{"build", "--config", cfg}, &buf); err != nil {
		t.Fatalf("build: %v", err)
	}
	if _, err := os.Stat(filepath.Join(src, "out", "pack.dac")); err != nil {
		t.Fatal(err)
	}
	buf.Reset()
	if err := run([]string{"inspect", filepath.Join(src, "out", "pack.dac")}, &buf); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "tester") {
		t.Errorf("author missing from manifest:\n%s", buf.String())
	}
}

func TestUsage(t *testing.T) {
	var buf bytes.Buffer
	if err := run(nil, &buf); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "inspect") {
		t.Errorf("usage = %q", buf.String())
	}
	if err := run([]string{"frobnicate"}, &buf); err == nil {
		t.Fatal("unknown command accepted")
	}
	if err := run([]string{"build", "--compression", "extreme", "-i", t.TempDir()}, &buf); err == nil {
		t.Fatal("bad compression accepted")
	}
	if err := run([]string{"inspect"}, &buf); err == nil {
		t.Fatal("inspect without a container accepted")
	}
}
