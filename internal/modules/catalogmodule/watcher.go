package catalogmodule

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/hashicorp/go-hclog"
	"github.com/mantonx/mediatags/internal/logger"
	"github.com/mantonx/mediatags/internal/utils"
)

const defaultWatchDebounce = time.Second

// DirectoryWatcher catalogs media files as they appear under watched
// directories and forgets files that are removed. Writes are debounced so a
// file is imported once it has stopped changing.
type DirectoryWatcher struct {
	catalog  *Catalog
	watcher  *fsnotify.Watcher
	onAdded  func(Asset)
	logger   hclog.Logger
	Debounce time.Duration

	mu      sync.Mutex
	pending map[string]time.Time
}

// NewDirectoryWatcher creates a watcher. onAdded, when set, is called for every
// asset the watcher catalogs.
func NewDirectoryWatcher(c *Catalog, onAdded func(Asset), log hclog.Logger) (*DirectoryWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	return &DirectoryWatcher{
		catalog:  c,
		watcher:  w,
		onAdded:  onAdded,
		logger:   logger.OrNull(log).Named("catalog-watcher"),
		Debounce: defaultWatchDebounce,
		pending:  make(map[string]time.Time),
	}, nil
}

// Add watches root and every non-hidden directory below it
func (w *DirectoryWatcher) Add(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
		w.logger.Debug("watching directory", "path", path)
		return nil
	})
}

// Run processes file system events until ctx is done, then closes the watcher
func (w *DirectoryWatcher) Run(ctx context.Context) {
	defer w.watcher.Close()

	debounce := w.Debounce
	if debounce <= 0 {
		debounce = defaultWatchDebounce
	}
	tick := debounce / 4
	if tick < 10*time.Millisecond {
		tick = 10 * time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(ctx, event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("file watcher error", "error", err)

		case now := <-ticker.C:
			w.flush(ctx, now, debounce)
		}
	}
}

func (w *DirectoryWatcher) handleEvent(ctx context.Context, event fsnotify.Event) {
	switch {
	case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		w.mu.Lock()
		delete(w.pending, event.Name)
		w.mu.Unlock()

		if utils.IsMediaFile(event.Name) {
			if id, err := w.catalog.RemoveByPath(ctx, event.Name); err == nil {
				w.logger.Info("media file removed", "path", event.Name, "asset", id)
			}
		}

	case event.Op&(fsnotify.Create|fsnotify.Write) != 0:
		info, err := os.Stat(event.Name)
		if err != nil {
			return
		}
		if info.IsDir() {
			if event.Op&fsnotify.Create != 0 {
				if err := w.Add(event.Name); err != nil {
					w.logger.Warn("failed to watch new directory", "path", event.Name, "error", err)
				}
			}
			return
		}
		if !utils.IsMediaFile(event.Name) {
			return
		}
		w.mu.Lock()
		w.pending[event.Name] = time.Now()
		w.mu.Unlock()
	}
}

// flush catalogs pending files that have been quiet for the debounce interval
func (w *DirectoryWatcher) flush(ctx context.Context, now time.Time, debounce time.Duration) {
	w.mu.Lock()
	var ready []string
	for path, last := range w.pending {
		if now.Sub(last) >= debounce {
			ready = append(ready, path)
			delete(w.pending, path)
		}
	}
	w.mu.Unlock()

	for _, path := range ready {
		asset, err := w.catalog.AddPath(ctx, path)
		if err != nil {
			w.logger.Warn("failed to catalog new file", "path", path, "error", err)
			continue
		}
		w.logger.Info("media file cataloged", "path", path, "asset", asset.ID)
		if w.onAdded != nil {
			w.onAdded(*asset)
		}
	}
}
