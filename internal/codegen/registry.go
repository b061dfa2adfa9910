package codegen

import (
	"sort"
	"strings"

	"github.com/okra-platform/dtogen/internal/errors"
)

// Factory builds a generator for one target.
type Factory func(opts Options) Generator

// Registry manages available code generators
type Registry struct {
	generators map[string]Factory
	aliases    map[string]string
}

// NewRegistry creates a new generator registry
func NewRegistry() *Registry {
	return &Registry{
		generators: make(map[string]Factory),
		aliases:    make(map[string]string),
	}
}

// Register adds a generator factory under language and any aliases.
func (r *Registry) Register(language string, factory Factory, aliases ...string) {
	language = strings.ToLower(language)
	r.generators[language] = factory
	for _, a := range aliases {
		r.aliases[strings.ToLower(a)] = language
	}
}

// Canonical maps a language name or alias to its registered name.
func (r *Registry) Canonical(language string) (string, bool) {
	language = strings.ToLower(language)
	if _, ok := r.generators[language]; ok {
		return language, true
	}
	if target, ok := r.aliases[language]; ok {
		return target, true
	}
	return "", false
}

// Get returns a generator for the specified language
func (r *Registry) Get(language string, opts Options) (Generator, error) {
	name, ok := r.Canonical(language)
	if !ok {
		return nil, errors.Configurationf("unsupported language: %s", language)
	}
	return r.generators[name](opts), nil
}

// Languages returns the registered language names, sorted.
func (r *Registry) Languages() []string {
	languages := make([]string, 0, len(r.generators))
	for lang := range r.generators {
		languages = append(languages, lang)
	}
	sort.Strings(languages)
	return languages
}
