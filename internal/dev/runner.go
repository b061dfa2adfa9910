// Package dev regenerates the configured targets whenever a source file
// changes.
package dev

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/okra-platform/dtogen/internal/config"
	"github.com/okra-platform/dtogen/internal/errors"
)

// Regenerator runs the pipeline once.
type Regenerator func(ctx context.Context) error

// Runner watches the source paths and calls a Regenerator after changes
// have been quiet for the debounce interval. Runs never overlap.
type Runner struct {
	cfg      *config.Config
	regen    Regenerator
	debounce time.Duration

	mu      sync.Mutex
	timer   *time.Timer
	pending chan struct{}
}

// NewRunner creates a runner for cfg.
func NewRunner(cfg *config.Config, regen Regenerator) *Runner {
	return &Runner{
		cfg:      cfg,
		regen:    regen,
		debounce: cfg.Dev.Debounce,
		pending:  make(chan struct{}, 1),
	}
}

// Start generates once, then watches until ctx is done. A failing initial
// run is returned; later failures are logged and watching continues.
func (r *Runner) Start(ctx context.Context) error {
	log := zerolog.Ctx(ctx).With().Str("component", "dev").Logger()

	if err := r.regen(ctx); err != nil {
		return errors.Wrap(err, "initial generation failed")
	}

	watcher, err := NewFileWatcher(r.cfg.Dev.Watch, r.cfg.Dev.Exclude, r.onChange(log))
	if err != nil {
		return err
	}
	defer watcher.Close()

	for _, dir := range r.watchDirs() {
		if err := watcher.AddDirectory(dir); err != nil {
			return err
		}
		log.Debug().Str("dir", dir).Msg("watching")
	}
	log.Info().Strs("patterns", r.cfg.Dev.Watch).Msg("watching for changes")

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		return watcher.Start(ctx)
	})
	eg.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-r.pending:
				start := time.Now()
				if err := r.regen(ctx); err != nil {
					log.Error().Err(err).Str("category", errors.Category(err)).Msg("generation failed")
					continue
				}
				log.Info().Dur("duration", time.Since(start)).Msg("regenerated")
			}
		}
	})

	err = eg.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (r *Runner) onChange(log zerolog.Logger) func(path string, op fsnotify.Op) {
	return func(path string, op fsnotify.Op) {
		if op == fsnotify.Chmod || r.isOutput(path) {
			return
		}
		log.Debug().Str("path", path).Str("op", op.String()).Msg("file changed")
		r.trigger()
	}
}

// trigger schedules a run once the debounce interval passes without
// another trigger.
func (r *Runner) trigger() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.timer != nil {
		r.timer.Stop()
	}
	r.timer = time.AfterFunc(r.debounce, func() {
		select {
		case r.pending <- struct{}{}:
		default:
		}
	})
}

// isOutput reports whether path lies under a target output path, so the
// runner does not react to its own writes.
func (r *Runner) isOutput(path string) bool {
	for _, t := range r.cfg.Targets {
		for _, out := range t.Paths {
			rel, err := filepath.Rel(out, path)
			if err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
				return true
			}
		}
	}
	return false
}

// watchDirs lists the directories holding the source paths, without
// duplicates. A "/..." suffix is dropped; files contribute their directory.
func (r *Runner) watchDirs() []string {
	seen := make(map[string]bool)
	var dirs []string
	for _, p := range r.cfg.Source.Paths {
		p = strings.TrimSuffix(p, "/...")
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			p = filepath.Dir(p)
		}
		p = filepath.Clean(p)
		if !seen[p] {
			seen[p] = true
			dirs = append(dirs, p)
		}
	}
	return dirs
}
