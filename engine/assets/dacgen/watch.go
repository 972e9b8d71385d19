package dacgen

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/spaghettifunk/dawn/engine/assets/codec"
	"github.com/spaghettifunk/dawn/engine/core"
)

// DefaultDebounce is how long Watch waits for the file system to settle
// before rebuilding.
const DefaultDebounce = 250 * time.Millisecond

// Watch rebuilds the container whenever a file below the input directory
// changes, until ctx is canceled. An initial build runs right away. Build
// failures are reported to onBuild and do not stop watching.
func Watch(ctx context.Context, cfg *Config, registry *codec.Registry, debounce time.Duration, onBuild func(*Result, error)) error {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watchTree(watcher, cfg.Input, cfg.ReadMode); err != nil {
		return err
	}
	output, _ := filepath.Abs(cfg.Output)
	cacheDir := ""
	if cfg.CacheDir != "" {
		cacheDir, _ = filepath.Abs(cfg.CacheDir)
	}

	rebuild := func() {
		res, err := BuildConfig(ctx, cfg, registry)
		if err != nil {
			core.LogError("build failed: %s", err)
		}
		if onBuild != nil {
			onBuild(res, err)
		}
	}
	rebuild()

	timer := time.NewTimer(debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case e, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ignored(e.Name, output, cacheDir) {
				continue
			}
			if e.Op&fsnotify.Create != 0 && cfg.ReadMode != ReadModeFlat {
				if s, err := os.Stat(e.Name); err == nil && s.IsDir() {
					if err := watchTree(watcher, e.Name, cfg.ReadMode); err != nil {
						core.LogWarn("failed to watch %s: %s", e.Name, err)
					}
				}
			}
			core.LogDebug("change detected: %s %s", e.Op, e.Name)
			timer.Reset(debounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			core.LogError(err.Error())

		case <-timer.C:
			rebuild()

		case <-ctx.Done():
			return nil
		}
	}
}

func watchTree(w *fsnotify.Watcher, root string, mode ReadMode) error {
	if mode == ReadModeFlat {
		return w.Add(root)
	}
	return filepath.WalkDir(root, func(p string, de fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !de.IsDir() {
			return nil
		}
		if p != root && strings.HasPrefix(de.Name(), ".") {
			return filepath.SkipDir
		}
		return w.Add(p)
	})
}

// ignored filters out the build's own writes.
func ignored(name, output, cacheDir string) bool {
	if strings.HasPrefix(filepath.Base(name), ".") {
		return true
	}
	abs, err := filepath.Abs(name)
	if err != nil {
		return false
	}
	if abs == output {
		return true
	}
	return cacheDir != "" && (abs == cacheDir || strings.HasPrefix(abs, cacheDir+string(filepath.Separator)))
}
