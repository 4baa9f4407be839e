// Package indexing scans the workspace and keeps the symbol store current:
// a parallel full scan plus an optional filesystem watcher with debounced
// incremental reindexing.
package indexing

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/cespare/xxhash/v2"
	"golang.org/x/sync/errgroup"

	"github.com/standardbeagle/phpintel/internal/config"
	"github.com/standardbeagle/phpintel/internal/debug"
	"github.com/standardbeagle/phpintel/internal/symbolstore"
)

// Stats summarizes one workspace scan.
type Stats struct {
	Scanned   int
	Indexed   int
	Unchanged int
	Failed    int
}

// Indexer feeds workspace files into the symbol store. Content hashes make
// reindexing an unchanged file a no-op.
type Indexer struct {
	cfg   *config.Config
	store *symbolstore.Store

	mu     sync.Mutex
	hashes map[string]uint64
}

// NewIndexer creates an indexer over the configured workspace.
func NewIndexer(cfg *config.Config, store *symbolstore.Store) *Indexer {
	return &Indexer{
		cfg:    cfg,
		store:  store,
		hashes: make(map[string]uint64),
	}
}

// Store returns the symbol store the indexer feeds.
func (ix *Indexer) Store() *symbolstore.Store {
	return ix.store
}

// IndexWorkspace scans the workspace and indexes every matching file in
// parallel. Per-file failures are counted, not fatal; a broken file must
// never take down the rest of the scan.
func (ix *Indexer) IndexWorkspace(ctx context.Context) (Stats, error) {
	files, err := ix.scan()
	if err != nil {
		return Stats{}, err
	}

	stats := Stats{Scanned: len(files)}
	var statsMu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(ix.workers())

	for _, path := range files {
		path := path
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			changed, err := ix.IndexFile(path)
			statsMu.Lock()
			defer statsMu.Unlock()
			switch {
			case err != nil:
				stats.Failed++
				debug.LogIndexing("failed %s: %v\n", path, err)
			case changed:
				stats.Indexed++
			default:
				stats.Unchanged++
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return stats, err
	}
	return stats, nil
}

// IndexFile reads and indexes one file. Returns false when the content
// hash matches the last indexed version.
func (ix *Indexer) IndexFile(path string) (bool, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return false, err
	}

	sum := xxhash.Sum64(content)
	ix.mu.Lock()
	if ix.hashes[path] == sum {
		ix.mu.Unlock()
		return false, nil
	}
	ix.mu.Unlock()

	if err := ix.store.IndexSource(path, content); err != nil {
		return false, err
	}

	ix.mu.Lock()
	ix.hashes[path] = sum
	ix.mu.Unlock()
	return true, nil
}

// RemoveFile drops a deleted file from the store.
func (ix *Indexer) RemoveFile(path string) {
	ix.store.RemoveDocument(path)
	ix.mu.Lock()
	delete(ix.hashes, path)
	ix.mu.Unlock()
}

// Matches reports whether a path inside the workspace is indexable under
// the include/exclude patterns.
func (ix *Indexer) Matches(path string) bool {
	rel := ix.relPath(path)
	if rel == "" {
		return false
	}
	for _, pattern := range ix.cfg.Index.Exclude {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return false
		}
	}
	for _, pattern := range ix.cfg.Index.Include {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}

func (ix *Indexer) relPath(path string) string {
	rel, err := filepath.Rel(ix.cfg.Project.Root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return ""
	}
	return filepath.ToSlash(rel)
}

func (ix *Indexer) excludedDir(path string) bool {
	rel := ix.relPath(path)
	if rel == "" || rel == "." {
		return false
	}
	// Directory patterns like **/vendor/** must prune the walk at the
	// directory itself, so match with a trailing element appended.
	probe := rel + "/x"
	for _, pattern := range ix.cfg.Index.Exclude {
		if ok, _ := doublestar.Match(pattern, probe); ok {
			return true
		}
	}
	return false
}

func (ix *Indexer) scan() ([]string, error) {
	var files []string
	err := filepath.WalkDir(ix.cfg.Project.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable subtrees are skipped, not fatal.
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if ix.excludedDir(path) {
				return filepath.SkipDir
			}
			return nil
		}
		if !ix.Matches(path) {
			return nil
		}
		if info, err := d.Info(); err == nil && ix.cfg.Index.MaxFileSize > 0 && info.Size() > ix.cfg.Index.MaxFileSize {
			debug.LogIndexing("skipping oversize file %s\n", path)
			return nil
		}
		files = append(files, path)
		return nil
	})
	return files, err
}

func (ix *Indexer) workers() int {
	if w := ix.cfg.Performance.Workers; w > 0 {
		return w
	}
	return 4
}
