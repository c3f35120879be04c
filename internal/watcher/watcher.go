// Package watcher rebuilds the AOT cache whenever the packaged archive changes
package watcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/leyden/aotctl/internal/engine"
	"github.com/leyden/aotctl/pkg/logger"
	"github.com/leyden/aotctl/pkg/utils"
)

// Event is a settled change to an archive
type Event struct {
	Path    string
	Size    int64
	ModTime time.Time
}

// RebuildFunc is run once per batch of settled archive changes
type RebuildFunc func(ctx context.Context, ev Event) error

// ArchiveWatcher watches one directory for archive writes
type ArchiveWatcher struct {
	dir    string
	match  func(name string) bool
	settle time.Duration
	logger logger.Logger

	watcher *fsnotify.Watcher
	mu      sync.Mutex
	pending map[string]*time.Timer
}

// New creates a watcher for dir. match selects the file names that count as
// archives. The directory is created when missing.
func New(dir string, match func(name string) bool, settle time.Duration, log logger.Logger) (*ArchiveWatcher, error) {
	if log == nil {
		log = logger.Discard()
	}
	if err := utils.EnsureDirectory(dir); err != nil {
		return nil, fmt.Errorf("failed to create watched directory: %w", err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	if err := w.Add(dir); err != nil {
		w.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	return &ArchiveWatcher{
		dir:     dir,
		match:   match,
		settle:  settle,
		logger:  log,
		watcher: w,
		pending: make(map[string]*time.Timer),
	}, nil
}

// Run dispatches settled archive changes to rebuild until ctx is cancelled.
// Rebuilds never overlap; changes arriving during a rebuild are coalesced
// into one follow-up rebuild. A failed rebuild is logged and watching goes on.
func (a *ArchiveWatcher) Run(ctx context.Context, rebuild RebuildFunc) error {
	defer a.watcher.Close()

	group, ctx := engine.NewSafeGroup(ctx, a.logger)
	settled := make(chan Event, 1)

	group.Go(func() error {
		return a.watchLoop(ctx, settled)
	})

	group.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case ev := <-settled:
				a.logger.Info("Archive changed, rebuilding AOT cache",
					logger.WithField("archive", filepath.Base(ev.Path)),
					logger.WithField("size", utils.FormatBytes(ev.Size)))
				if err := rebuild(ctx, ev); err != nil {
					if ctx.Err() != nil {
						return nil
					}
					a.logger.Error("Rebuild failed, waiting for the next change", logger.WithField("error", err))
				}
			}
		}
	})

	err := group.Wait()
	a.stopTimers()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (a *ArchiveWatcher) watchLoop(ctx context.Context, settled chan<- Event) error {
	a.logger.Info("Watching for archive changes", logger.WithField("dir", a.dir))
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-a.watcher.Events:
			if !ok {
				return nil
			}
			if !a.match(filepath.Base(event.Name)) {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			a.schedule(ctx, event.Name, settled)
		case err, ok := <-a.watcher.Errors:
			if !ok {
				return nil
			}
			a.logger.Warn("Watcher error", logger.WithField("error", err))
		}
	}
}

// schedule restarts the settle timer for path
func (a *ArchiveWatcher) schedule(ctx context.Context, path string, settled chan<- Event) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if t, ok := a.pending[path]; ok {
		t.Stop()
	}
	a.pending[path] = time.AfterFunc(a.settle, func() {
		a.mu.Lock()
		delete(a.pending, path)
		a.mu.Unlock()

		info, err := os.Stat(path)
		if err != nil || info.IsDir() || info.Size() == 0 {
			return
		}
		ev := Event{Path: path, Size: info.Size(), ModTime: info.ModTime()}

		select {
		case settled <- ev:
		case <-ctx.Done():
		default:
			// a rebuild is already queued and will pick up this archive
			a.logger.Debug("Rebuild already queued", logger.WithField("archive", path))
		}
	})
}

func (a *ArchiveWatcher) stopTimers() {
	a.mu.Lock()
	defer a.mu.Unlock()
	for path, t := range a.pending {
		t.Stop()
		delete(a.pending, path)
	}
}
