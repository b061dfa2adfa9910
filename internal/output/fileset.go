// Package output stages generated files and commits them in one step.
package output

import (
	"bytes"
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/rs/zerolog"

	"github.com/okra-platform/dtogen/internal/errors"
)

// File is one planned output file.
type File struct {
	Path    string
	Content []byte
}

// DriftStatus describes how a committed file differs from the planned one.
type DriftStatus string

const (
	DriftMissing DriftStatus = "missing"
	DriftChanged DriftStatus = "changed"
)

// Drift is one out-of-date file.
type Drift struct {
	Path   string
	Status DriftStatus
}

// CommitResult lists what Commit did, by absolute path.
type CommitResult struct {
	Written   []string
	Unchanged []string
}

// FileSet collects the files of one run. Nothing touches the disk until
// Commit.
type FileSet struct {
	files map[string][]byte
}

// NewFileSet creates an empty file set.
func NewFileSet() *FileSet {
	return &FileSet{files: make(map[string][]byte)}
}

// Add plans path with content. Adding the same path twice with different
// content is a configuration error.
func (s *FileSet) Add(path string, content []byte) error {
	path = filepath.Clean(path)
	if existing, ok := s.files[path]; ok {
		if bytes.Equal(existing, content) {
			return nil
		}
		return errors.Configurationf("two artifacts render to %s with different content", path)
	}
	s.files[path] = content
	return nil
}

// Len returns the number of planned files.
func (s *FileSet) Len() int {
	return len(s.files)
}

// Files returns the planned files sorted by path.
func (s *FileSet) Files() []File {
	out := make([]File, 0, len(s.files))
	for path, content := range s.files {
		out = append(out, File{Path: path, Content: content})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// Check compares the planned files with what is on disk.
func (s *FileSet) Check(ctx context.Context) ([]Drift, error) {
	var drift []Drift
	for _, f := range s.Files() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		existing, err := os.ReadFile(f.Path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			drift = append(drift, Drift{Path: f.Path, Status: DriftMissing})
		case err != nil:
			return nil, errors.WrapIO(err, "failed to read %s", f.Path)
		case !bytes.Equal(existing, f.Content):
			drift = append(drift, Drift{Path: f.Path, Status: DriftChanged})
		}
	}
	return drift, nil
}

type staged struct {
	temp    string
	target  string
	backup  string
	swapped bool
}

// swap moves an existing target aside and renames the temp into its place.
func (p *staged) swap() error {
	if _, err := os.Lstat(p.target); err == nil {
		backup, err := reserve(p.target, ".bak-*")
		if err != nil {
			return err
		}
		if err := os.Rename(p.target, backup); err != nil {
			_ = os.Remove(backup)
			return err
		}
		p.backup = backup
	}
	if err := os.Rename(p.temp, p.target); err != nil {
		return err
	}
	p.swapped = true
	return nil
}

// restore undoes swap, putting the previous target back.
func (p *staged) restore() {
	if p.swapped && p.backup == "" {
		_ = os.Remove(p.target)
	}
	if p.backup != "" {
		_ = os.Rename(p.backup, p.target)
	}
	_ = os.Remove(p.temp)
}

// Commit writes every changed file. All of them are staged as temp siblings
// first; if any staging step fails the temps are removed and nothing is
// replaced. Replaced targets are kept as backups until every rename
// succeeded, so a failed rename puts the earlier files back.
func (s *FileSet) Commit(ctx context.Context) (*CommitResult, error) {
	log := zerolog.Ctx(ctx).With().Str("component", "output").Logger()
	result := &CommitResult{}

	var pending []staged
	cleanup := func() {
		for _, p := range pending {
			_ = os.Remove(p.temp)
		}
	}

	for _, f := range s.Files() {
		if err := ctx.Err(); err != nil {
			cleanup()
			return nil, err
		}
		if existing, err := os.ReadFile(f.Path); err == nil && bytes.Equal(existing, f.Content) {
			result.Unchanged = append(result.Unchanged, f.Path)
			continue
		}
		temp, err := stage(f)
		if err != nil {
			cleanup()
			return nil, err
		}
		pending = append(pending, staged{temp: temp, target: f.Path})
	}

	for i := range pending {
		p := &pending[i]
		if err := p.swap(); err != nil {
			for j := i; j >= 0; j-- {
				pending[j].restore()
			}
			cleanup()
			log.Warn().Str("path", p.target).Int("restored", i).Msg("commit rolled back")
			return nil, errors.WrapIO(err, "failed to commit %s", p.target)
		}
	}
	for _, p := range pending {
		if p.backup != "" {
			_ = os.Remove(p.backup)
		}
		result.Written = append(result.Written, p.target)
		log.Debug().Str("path", p.target).Msg("file written")
	}

	log.Info().Int("written", len(result.Written)).Int("unchanged", len(result.Unchanged)).Msg("output committed")
	return result, nil
}

func stage(f File) (string, error) {
	dir := filepath.Dir(f.Path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", errors.WrapIO(err, "failed to create directory %s", dir)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(f.Path)+".tmp-*")
	if err != nil {
		return "", errors.WrapIO(err, "failed to stage %s", f.Path)
	}
	if _, err := tmp.Write(f.Content); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", errors.WrapIO(err, "failed to stage %s", f.Path)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", errors.WrapIO(err, "failed to stage %s", f.Path)
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		os.Remove(tmp.Name())
		return "", errors.WrapIO(err, "failed to stage %s", f.Path)
	}
	return tmp.Name(), nil
}

// reserve creates an empty hidden sibling of path and returns its name.
func reserve(path, pattern string) (string, error) {
	f, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+pattern)
	if err != nil {
		return "", err
	}
	name := f.Name()
	if err := f.Close(); err != nil {
		_ = os.Remove(name)
		return "", err
	}
	return name, nil
}
