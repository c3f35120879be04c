package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/leyden/aotctl/pkg/logger"
	"github.com/leyden/aotctl/pkg/types"
)

// DefaultReloadDelay is how long aotctl.yaml must stay untouched before it is re-read
const DefaultReloadDelay = 500 * time.Millisecond

// ReloadFunc receives the re-read configuration, or the reason it could not be used
type ReloadFunc func(*types.Config, error)

// Reloader re-reads aotctl.yaml whenever it is edited
type Reloader struct {
	path    string
	manager *Manager
	logger  logger.Logger
	delay   time.Duration
}

// NewReloader creates a Reloader for the configuration at path
func NewReloader(path string, manager *Manager, log logger.Logger) *Reloader {
	if log == nil {
		log = logger.Discard()
	}
	return &Reloader{path: path, manager: manager, logger: log, delay: DefaultReloadDelay}
}

// WithDelay overrides the quiet period before a reload
func (r *Reloader) WithDelay(d time.Duration) *Reloader {
	r.delay = d
	return r
}

// Run watches the configuration until ctx is done, calling fn once per settled edit
func (r *Reloader) Run(ctx context.Context, fn ReloadFunc) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create config watcher: %w", err)
	}
	defer w.Close()

	// editors write a new file and rename it over the old one
	if err := w.Add(filepath.Dir(r.path)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(r.path), err)
	}
	r.logger.Debug("Watching configuration", logger.WithField("path", r.path))

	var lastMod time.Time
	if info, err := os.Stat(r.path); err == nil {
		lastMod = info.ModTime()
	}

	timer := time.NewTimer(r.delay)
	timer.Stop()
	pending := false

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !r.touches(ev.Name) {
				continue
			}
			if pending && !timer.Stop() {
				<-timer.C
			}
			timer.Reset(r.delay)
			pending = true

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			r.logger.Warn("Config watcher error", logger.WithField("error", err))

		case <-timer.C:
			pending = false
			lastMod = r.reload(lastMod, fn)
		}
	}
}

// touches reports whether an event path is the config file or an editor's temp copy of it
func (r *Reloader) touches(eventPath string) bool {
	name := filepath.Base(r.path)
	base := filepath.Base(eventPath)
	return base == name || (strings.HasPrefix(base, name) && strings.HasSuffix(base, ".tmp"))
}

func (r *Reloader) reload(lastMod time.Time, fn ReloadFunc) time.Time {
	info, err := os.Stat(r.path)
	if err != nil {
		deliver(r.logger, fn, nil, fmt.Errorf("configuration file is gone: %s", r.path))
		return lastMod
	}
	if !info.ModTime().After(lastMod) {
		return lastMod
	}

	cfg, _, err := r.manager.Load(r.path)
	if err != nil {
		r.logger.Error("Failed to reload configuration", logger.WithField("error", err))
		deliver(r.logger, fn, nil, err)
		return info.ModTime()
	}
	r.logger.Info("Configuration reloaded", logger.WithField("path", r.path))
	deliver(r.logger, fn, cfg, nil)
	return info.ModTime()
}

func deliver(log logger.Logger, fn ReloadFunc, cfg *types.Config, err error) {
	defer func() {
		if p := recover(); p != nil {
			log.Error("Reload handler panicked", logger.WithField("panic", p))
		}
	}()
	fn(cfg, err)
}
