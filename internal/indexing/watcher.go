package indexing

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/standardbeagle/phpintel/internal/debug"
)

// Watcher reindexes files as they change on disk. Filesystem events are
// coalesced over a debounce window so editor save bursts trigger one
// reindex per file.
type Watcher struct {
	ix       *Indexer
	fs       *fsnotify.Watcher
	debounce time.Duration

	mu      sync.Mutex
	pending map[string]fsnotify.Op
}

// NewWatcher creates a watcher over every non-excluded directory in the
// workspace.
func NewWatcher(ix *Indexer) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		ix:       ix,
		fs:       fsw,
		debounce: time.Duration(ix.cfg.Index.WatchDebounceMs) * time.Millisecond,
		pending:  make(map[string]fsnotify.Op),
	}
	if w.debounce <= 0 {
		w.debounce = 100 * time.Millisecond
	}

	err = filepath.WalkDir(ix.cfg.Project.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		if ix.excludedDir(path) {
			return filepath.SkipDir
		}
		return w.fs.Add(path)
	})
	if err != nil {
		fsw.Close()
		return nil, err
	}
	return w, nil
}

// Run processes events until the context is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fs.Close()

	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if !w.record(event) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			debug.LogIndexing("watch error: %v\n", err)

		case <-fire:
			fire = nil
			w.flush()
		}
	}
}

// record notes an event for the next flush. New directories are added to
// the watch set immediately; irrelevant paths are dropped.
func (w *Watcher) record(event fsnotify.Event) bool {
	if event.Op.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if !w.ix.excludedDir(event.Name) {
				if err := w.fs.Add(event.Name); err != nil {
					debug.LogIndexing("watch add %s: %v\n", event.Name, err)
				}
			}
			return false
		}
	}

	if !w.ix.Matches(event.Name) {
		return false
	}

	w.mu.Lock()
	w.pending[event.Name] |= event.Op
	w.mu.Unlock()
	return true
}

func (w *Watcher) flush() {
	w.mu.Lock()
	batch := w.pending
	w.pending = make(map[string]fsnotify.Op)
	w.mu.Unlock()

	for path, op := range batch {
		if op.Has(fsnotify.Remove) || op.Has(fsnotify.Rename) {
			w.ix.RemoveFile(path)
			debug.LogIndexing("removed %s\n", path)
			continue
		}
		if _, err := w.ix.IndexFile(path); err != nil {
			debug.LogIndexing("reindex %s: %v\n", path, err)
		}
	}
}
