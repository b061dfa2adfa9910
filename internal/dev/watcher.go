package dev

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/okra-platform/dtogen/internal/errors"
)

// FileWatcher reports changes to files matching its patterns. Patterns and
// excludes are globs on the base name; "**/*.ext" matches the extension at
// any depth and an exclude ending in "/" names a directory.
type FileWatcher struct {
	watcher  *fsnotify.Watcher
	patterns []string
	exclude  []string
	onChange func(path string, op fsnotify.Op)
}

// NewFileWatcher creates a new file watcher
func NewFileWatcher(patterns []string, exclude []string, onChange func(path string, op fsnotify.Op)) (*FileWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.WrapIO(err, "failed to create watcher")
	}

	return &FileWatcher{
		watcher:  watcher,
		patterns: patterns,
		exclude:  exclude,
		onChange: onChange,
	}, nil
}

// AddDirectory watches dir and every directory below it that is not
// excluded.
func (fw *FileWatcher) AddDirectory(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && fw.excludedDir(filepath.Base(path)) {
			return filepath.SkipDir
		}
		if err := fw.watcher.Add(path); err != nil {
			return errors.WrapIO(err, "failed to watch directory %s", path)
		}
		return nil
	})
}

// Start delivers events until ctx is done.
func (fw *FileWatcher) Start(ctx context.Context) error {
	log := zerolog.Ctx(ctx).With().Str("component", "watcher").Logger()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-fw.watcher.Events:
			if !ok {
				return errors.New("watcher channel closed")
			}

			if fw.shouldWatch(event.Name) {
				fw.onChange(event.Name, event.Op)
			}

			// new directories are watched as they appear
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() && !fw.excludedDir(info.Name()) {
					if err := fw.AddDirectory(event.Name); err != nil {
						log.Warn().Err(err).Str("path", event.Name).Msg("failed to watch new directory")
					}
				}
			}

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return errors.New("watcher error channel closed")
			}
			if err != nil {
				log.Warn().Err(err).Msg("watcher error")
			}
		}
	}
}

func (fw *FileWatcher) excludedDir(base string) bool {
	for _, pattern := range fw.exclude {
		pattern = strings.TrimSuffix(pattern, "/")
		if matched, _ := filepath.Match(pattern, base); matched {
			return true
		}
	}
	return false
}

// shouldWatch checks if a file should trigger a change event based on patterns
func (fw *FileWatcher) shouldWatch(path string) bool {
	base := filepath.Base(path)

	for _, pattern := range fw.exclude {
		if dir, ok := strings.CutSuffix(pattern, "/"); ok {
			for _, seg := range strings.Split(filepath.ToSlash(filepath.Dir(path)), "/") {
				if matched, _ := filepath.Match(dir, seg); matched {
					return false
				}
			}
			continue
		}
		if matched, _ := filepath.Match(pattern, base); matched {
			return false
		}
	}

	for _, pattern := range fw.patterns {
		if rest, ok := strings.CutPrefix(pattern, "**/"); ok {
			if ext, isExt := strings.CutPrefix(rest, "*"); isExt && !strings.ContainsAny(ext, "*?[") {
				if strings.HasSuffix(base, ext) {
					return true
				}
				continue
			}
			pattern = rest
		}
		if matched, _ := filepath.Match(pattern, base); matched {
			return true
		}
	}

	return false
}

// Close stops the watcher
func (fw *FileWatcher) Close() error {
	return fw.watcher.Close()
}
