package rewrite

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
)

// Store holds the current catalog snapshot and swaps it atomically on
// reload. Readers always see a complete, immutable catalog; in-flight
// rewrites finish against the snapshot they started with.
type Store struct {
	cur atomic.Pointer[Catalog]
}

// NewStore creates a store seeded with an initial snapshot.
func NewStore(cat *Catalog) *Store {
	s := &Store{}
	s.cur.Store(cat)
	return s
}

// Current returns the active catalog snapshot.
func (s *Store) Current() *Catalog { return s.cur.Load() }

// Replace installs a new snapshot.
func (s *Store) Replace(cat *Catalog) { s.cur.Store(cat) }

// Watch reloads the catalog file whenever it changes, until ctx is done.
// A reload that fails validation keeps the current snapshot; a bad edit to
// the file must never take down running assessments.
//
// The parent directory is watched rather than the file itself, because most
// editors replace files by rename.
func (s *Store) Watch(ctx context.Context, path string, logger *slog.Logger) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(filepath.Dir(path)); err != nil {
		return err
	}
	logger.Info("watching rule catalog", "path", path)

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != filepath.Clean(path) {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			cat, err := LoadCatalog(path)
			if err != nil {
				logger.Warn("rule catalog reload failed, keeping current snapshot",
					"path", path, "error", err)
				continue
			}
			prev := s.Current()
			s.Replace(cat)
			logger.Info("rule catalog reloaded",
				"version", cat.Version, "previous_version", prev.Version)
		case werr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Warn("rule catalog watcher error", "error", werr)
		}
	}
}
