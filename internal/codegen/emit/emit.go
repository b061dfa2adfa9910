// Package emit holds the pieces every code generation back end shares:
// artifacts, options and import bookkeeping.
package emit

import (
	"path"
	"sort"
	"strings"
)

// Artifact is one generated file. Path is slash-separated and relative to
// the output root of a target.
type Artifact struct {
	Path    string
	Content []byte
}

// SortArtifacts orders artifacts by path.
func SortArtifacts(a []Artifact) {
	sort.SliceStable(a, func(i, j int) bool { return a[i].Path < a[j].Path })
}

// Options configures a back end.
type Options struct {
	// Package is the package or module name of the generated code (Go and
	// protobuf package, Python root package). Back ends that need none
	// ignore it.
	Package string

	// Comments enables documentation comments from the source model.
	Comments bool
}

// ImportSet collects imported names grouped by source module.
type ImportSet struct {
	modules map[string]map[string]bool
}

// NewImportSet creates an empty set.
func NewImportSet() *ImportSet {
	return &ImportSet{modules: make(map[string]map[string]bool)}
}

// Add records name as imported from module.
func (s *ImportSet) Add(module, name string) {
	names, ok := s.modules[module]
	if !ok {
		names = make(map[string]bool)
		s.modules[module] = names
	}
	if name != "" {
		names[name] = true
	}
}

// AddModule records a module imported as a whole.
func (s *ImportSet) AddModule(module string) {
	s.Add(module, "")
}

// Len returns the number of modules.
func (s *ImportSet) Len() int {
	return len(s.modules)
}

// Modules returns the module keys sorted lexically.
func (s *ImportSet) Modules() []string {
	out := make([]string, 0, len(s.modules))
	for m := range s.modules {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

// Names returns the names imported from module, sorted case-insensitively.
func (s *ImportSet) Names(module string) []string {
	out := make([]string, 0, len(s.modules[module]))
	for n := range s.modules[module] {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool {
		li, lj := strings.ToLower(out[i]), strings.ToLower(out[j])
		if li != lj {
			return li < lj
		}
		return out[i] < out[j]
	})
	return out
}

// RelativeImport returns the import specifier that reaches target from the
// file at from. Both are slash-separated paths without extension relative
// to the same root; the result always starts with "./" or "../".
func RelativeImport(from, target string) string {
	fromDir := splitPath(path.Dir(from))
	to := splitPath(target)

	common := 0
	for common < len(fromDir) && common < len(to)-1 && fromDir[common] == to[common] {
		common++
	}

	var parts []string
	for range fromDir[common:] {
		parts = append(parts, "..")
	}
	parts = append(parts, to[common:]...)
	rel := strings.Join(parts, "/")
	if !strings.HasPrefix(rel, "..") {
		rel = "./" + rel
	}
	return rel
}

func splitPath(p string) []string {
	var out []string
	for _, s := range strings.Split(path.Clean(p), "/") {
		if s != "" && s != "." {
			out = append(out, s)
		}
	}
	return out
}
