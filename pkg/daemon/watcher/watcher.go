// Package watcher turns raw filesystem notifications under the library root
// into coalesced change batches for the sync engine.
package watcher

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/jamesainslie/curator/pkg/curator/logging"
	"github.com/jamesainslie/curator/pkg/curator/types"
)

// Watcher watches the library root recursively and classifies events into a
// Batcher. Directory watches follow creations and removals; symlinks are
// never followed.
type Watcher struct {
	root    string
	fsw     *fsnotify.Watcher
	batcher *Batcher

	mu     sync.Mutex
	paths  map[string]bool
	closed bool
}

// New creates a watcher over root delivering coalesced batches to deliver
// after the given quiet window.
func New(root string, window time.Duration, deliver func(types.ChangeBatch)) (*Watcher, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &Watcher{
		root:    absRoot,
		fsw:     fsw,
		batcher: NewBatcher(window, deliver),
		paths:   make(map[string]bool),
	}, nil
}

// Start adds watches for the root and every subdirectory.
func (w *Watcher) Start() error {
	return filepath.WalkDir(w.root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return nil //nolint:nilerr // skip unreadable entries
		}
		if d.Type()&fs.ModeSymlink != 0 {
			return nil
		}
		if d.IsDir() {
			return w.addWatch(path)
		}
		return nil
	})
}

func (w *Watcher) addWatch(path string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed || w.paths[path] {
		return nil
	}
	if err := w.fsw.Add(path); err != nil {
		logging.Get("watcher").Warn("failed to add watch", "path", path, "error", err)
		return err
	}
	w.paths[path] = true
	return nil
}

// Run processes events until the context is cancelled, then flushes any
// pending batch.
func (w *Watcher) Run(ctx context.Context) {
	defer w.batcher.Flush()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			logging.Get("watcher").Error("watcher error", "error", err)
		}
	}
}

// handleEvent classifies one raw event into the pending batch and keeps the
// recursive watch set in step with directory churn.
func (w *Watcher) handleEvent(event fsnotify.Event) {
	rel := w.relPath(event.Name)
	if rel == "" {
		return
	}

	switch {
	case event.Op&fsnotify.Create != 0:
		w.handleCreate(event.Name, rel)
	case event.Op&fsnotify.Write != 0:
		w.batcher.Imported(rel)
	case event.Op&fsnotify.Remove != 0:
		w.dropWatches(event.Name)
		w.batcher.Deleted(rel)
	case event.Op&fsnotify.Rename != 0:
		// The destination arrives as a separate Create and is paired with
		// this entry by the batcher.
		w.dropWatches(event.Name)
		w.batcher.MovedFrom(rel)
	}
}

func (w *Watcher) handleCreate(abs, rel string) {
	info, err := os.Lstat(abs)
	if err != nil {
		return // vanished before we could look
	}
	if info.Mode()&fs.ModeSymlink != 0 {
		return
	}

	if info.IsDir() {
		_ = w.addWatch(abs)
		_ = filepath.WalkDir(abs, func(sub string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return nil //nolint:nilerr // skip unreadable entries
			}
			if d.Type()&fs.ModeSymlink != 0 {
				return nil
			}
			if d.IsDir() && sub != abs {
				_ = w.addWatch(sub)
			}
			return nil
		})
	}

	if !w.batcher.MovedTo(rel) {
		w.batcher.Imported(rel)
	}
}

// dropWatches removes the watch on path and any watches underneath it.
func (w *Watcher) dropWatches(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for p := range w.paths {
		if p == path || isSubPath(p, path) {
			_ = w.fsw.Remove(p)
			delete(w.paths, p)
		}
	}
}

// relPath converts an absolute event path into library form, or "" when the
// path falls outside the root.
func (w *Watcher) relPath(abs string) string {
	rel, err := filepath.Rel(w.root, abs)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return ""
	}
	return types.NormalizePath(rel)
}

// Flush forces immediate delivery of the pending batch.
func (w *Watcher) Flush() {
	w.batcher.Flush()
}

// Close stops watching and releases resources.
func (w *Watcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true
	w.paths = make(map[string]bool)
	return w.fsw.Close()
}

func isSubPath(path, parent string) bool {
	return len(path) > len(parent) && path[:len(parent)+1] == parent+string(filepath.Separator)
}
