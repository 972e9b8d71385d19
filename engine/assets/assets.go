package assets

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spaghettifunk/dawn/engine/assets/codec"
	"github.com/spaghettifunk/dawn/engine/assets/dac"
	"github.com/spaghettifunk/dawn/engine/assets/hub"
	"github.com/spaghettifunk/dawn/engine/core"
)

// ContainerExt is the file extension of asset containers.
const ContainerExt = ".dac"

type notice struct {
	code core.SystemEventCode
	ctx  core.EventContext
}

// AssetManager keeps the containers of a directory mounted on a hub. A
// container rewritten on disk is remounted, one removed is unmounted.
// Notifications are queued and fired on the event bus from Update.
type AssetManager struct {
	hub      *hub.Hub
	registry *codec.Registry
	bus      *core.EventBus

	mutex   sync.Mutex
	mounted map[string]*dac.Container
	// replaced containers stay open until Shutdown, decodes may still read them
	retired  []*dac.Container
	notices  []notice
	isClosed bool

	fsnotify *fsnotify.Watcher
	done     chan struct{}
	wg       sync.WaitGroup
}

func NewAssetManager(h *hub.Hub, registry *codec.Registry, bus *core.EventBus) *AssetManager {
	return &AssetManager{
		hub:      h,
		registry: registry,
		bus:      bus,
		mounted:  make(map[string]*dac.Container),
		done:     make(chan struct{}),
	}
}

// Initialize mounts every container under assetsDir and starts watching it.
// Containers that fail to open are reported and skipped.
func (am *AssetManager) Initialize(assetsDir string) error {
	fsWatch, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	am.fsnotify = fsWatch

	if err := am.watchRecursive(assetsDir); err != nil {
		fsWatch.Close()
		return err
	}

	am.wg.Add(1)
	go am.start()
	core.LogInfo("asset manager watching %s, %d containers mounted", assetsDir, len(am.Containers()))
	return nil
}

// MountFile opens the container at path and mounts it, replacing the one
// previously mounted from the same path.
func (am *AssetManager) MountFile(path string) error {
	path = filepath.Clean(path)
	c, err := dac.Open(path, dac.WithRegistry(am.registry))
	if err != nil {
		core.LogError("failed to open container %s: %s", path, err)
		am.queue(core.EVENT_CODE_CONTAINER_FAILED, core.EventContext{Path: path, Err: err})
		return err
	}

	am.mutex.Lock()
	if am.isClosed {
		am.mutex.Unlock()
		c.Close()
		return core.ErrHubClosed
	}
	old := am.mounted[path]
	am.mounted[path] = c
	if old != nil {
		am.retired = append(am.retired, old)
	}
	am.mutex.Unlock()

	if old != nil {
		am.hub.Unmount(old)
	}
	if err := am.hub.Mount(c); err != nil {
		return err
	}
	core.LogDebug("mounted container %s (%d entries)", path, len(c.Entries()))
	am.queue(core.EVENT_CODE_CONTAINER_MOUNTED, core.EventContext{Path: path})
	return nil
}

func (am *AssetManager) unmountFile(path string) {
	path = filepath.Clean(path)
	am.mutex.Lock()
	c, ok := am.mounted[path]
	if ok {
		delete(am.mounted, path)
		am.retired = append(am.retired, c)
	}
	am.mutex.Unlock()
	if !ok {
		return
	}
	am.hub.Unmount(c)
	core.LogDebug("unmounted container %s", path)
	am.queue(core.EVENT_CODE_CONTAINER_FAILED, core.EventContext{Path: path, Err: fs.ErrNotExist})
}

// Containers returns the paths of the mounted containers, sorted.
func (am *AssetManager) Containers() []string {
	am.mutex.Lock()
	defer am.mutex.Unlock()
	paths := make([]string, 0, len(am.mounted))
	for p := range am.mounted {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

func (am *AssetManager) queue(code core.SystemEventCode, ctx core.EventContext) {
	am.mutex.Lock()
	am.notices = append(am.notices, notice{code: code, ctx: ctx})
	am.mutex.Unlock()
}

// Update fires the queued container notifications and the hub events on the
// bus. It must be called from the thread that owns the listeners.
func (am *AssetManager) Update() {
	am.mutex.Lock()
	notices := am.notices
	am.notices = nil
	am.mutex.Unlock()

	for _, n := range notices {
		am.bus.Fire(n.code, am, n.ctx)
	}
	for _, ev := range am.hub.PollEvents() {
		ctx := core.EventContext{AssetID: ev.ID, Err: ev.Err}
		switch ev.Kind {
		case hub.EventLoaded:
			am.bus.Fire(core.EVENT_CODE_ASSET_LOADED, am, ctx)
		case hub.EventFailed:
			am.bus.Fire(core.EVENT_CODE_ASSET_FAILED, am, ctx)
		case hub.EventEvicted:
			am.bus.Fire(core.EVENT_CODE_ASSET_EVICTED, am, ctx)
		}
	}
}

/**
 * @brief Stops watching and closes every container. The hub must be shut down
 * first, its decodes read from these containers.
 */
func (am *AssetManager) Shutdown() error {
	am.mutex.Lock()
	if am.isClosed {
		am.mutex.Unlock()
		return nil
	}
	am.isClosed = true
	am.mutex.Unlock()

	if am.fsnotify != nil {
		close(am.done)
		am.wg.Wait()
	}

	am.mutex.Lock()
	defer am.mutex.Unlock()
	var errs []error
	for _, c := range am.mounted {
		errs = append(errs, c.Close())
	}
	for _, c := range am.retired {
		errs = append(errs, c.Close())
	}
	am.mounted = make(map[string]*dac.Container)
	am.retired = nil
	return errors.Join(errs...)
}

func (am *AssetManager) start() {
	defer am.wg.Done()
	for {
		select {
		case e, ok := <-am.fsnotify.Events:
			if !ok {
				return
			}
			am.handleFileEvent(e)

		case err, ok := <-am.fsnotify.Errors:
			if !ok {
				return
			}
			core.LogError("asset watcher: %s", err)

		case <-am.done:
			am.fsnotify.Close()
			return
		}
	}
}

func (am *AssetManager) handleFileEvent(e fsnotify.Event) {
	if hidden(e.Name) {
		return
	}
	if e.Op&fsnotify.Create != 0 {
		if s, err := os.Stat(e.Name); err == nil && s.IsDir() {
			if err := am.watchRecursive(e.Name); err != nil {
				core.LogError("failed to watch %s: %s", e.Name, err)
			}
			return
		}
	}
	if filepath.Ext(e.Name) != ContainerExt {
		return
	}
	switch {
	case e.Op&(fsnotify.Create|fsnotify.Write) != 0:
		// errors were queued as notifications
		_ = am.MountFile(e.Name)
	case e.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		am.unmountFile(e.Name)
	}
}

// watchRecursive watches dir and its subdirectories and mounts the
// containers found in them.
func (am *AssetManager) watchRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path != dir && hidden(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return am.fsnotify.Add(path)
		}
		if filepath.Ext(path) == ContainerExt {
			_ = am.MountFile(path)
		}
		return nil
	})
}

func hidden(path string) bool {
	return strings.HasPrefix(filepath.Base(path), ".")
}
