// Package generate runs the whole pipeline: load the source declarations,
// solve the type graph, extract handler contracts, render every target in
// parallel and collect the artifacts in one file set.
package generate

import (
	"context"
	"path/filepath"
	"runtime"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/okra-platform/dtogen/internal/codegen"
	"github.com/okra-platform/dtogen/internal/codegen/emit"
	"github.com/okra-platform/dtogen/internal/config"
	"github.com/okra-platform/dtogen/internal/contract"
	"github.com/okra-platform/dtogen/internal/errors"
	"github.com/okra-platform/dtogen/internal/gosource"
	"github.com/okra-platform/dtogen/internal/manifest"
	"github.com/okra-platform/dtogen/internal/metadata"
	"github.com/okra-platform/dtogen/internal/naming"
	"github.com/okra-platform/dtogen/internal/output"
	"github.com/okra-platform/dtogen/internal/protodesc"
	"github.com/okra-platform/dtogen/internal/schema"
	"github.com/okra-platform/dtogen/internal/typegraph"
)

// Loader reads the declarations of one source kind.
type Loader func(ctx context.Context, paths []string) (*metadata.Catalog, error)

// Loaders maps source kinds to front ends.
var Loaders = map[string]Loader{
	config.SourceManifest: manifest.Load,
	config.SourceGraphQL:  schema.Load,
	config.SourceGo:       gosource.Load,
	config.SourceProto:    protodesc.Load,
}

// Options controls one pipeline run.
type Options struct {
	// Targets limits rendering to the named targets. Empty means all.
	Targets []string
	// Registry resolves target languages. Nil means codegen.DefaultRegistry.
	Registry *codegen.Registry
}

// TargetResult is what one target rendered.
type TargetResult struct {
	Name      string
	Groups    []*typegraph.DtoGroup
	Handlers  []*contract.HandlerSpec
	Artifacts []codegen.Artifact
}

// Result is the outcome of a run. Files holds every artifact under every
// output path of its target; nothing has been written yet.
type Result struct {
	Graph    *typegraph.Graph
	Handlers []*contract.HandlerSpec
	Targets  []TargetResult
	Files    *output.FileSet
}

// Run loads the configured sources and plans every file.
func Run(ctx context.Context, cfg *config.Config, opts Options) (*Result, error) {
	load, ok := Loaders[cfg.Source.Kind]
	if !ok {
		return nil, errors.Configurationf("unsupported source kind: %s", cfg.Source.Kind)
	}
	catalog, err := load(ctx, cfg.Source.Paths)
	if err != nil {
		return nil, err
	}
	return Plan(ctx, cfg, catalog, opts)
}

// Plan solves provider and renders the targets of cfg.
func Plan(ctx context.Context, cfg *config.Config, provider metadata.Provider, opts Options) (*Result, error) {
	log := zerolog.Ctx(ctx).With().Str("component", "generate").Logger()
	start := time.Now()

	registry := opts.Registry
	if registry == nil {
		registry = codegen.DefaultRegistry
	}
	targets, err := selectTargets(cfg, opts.Targets)
	if err != nil {
		return nil, err
	}

	graph, err := typegraph.Build(ctx, provider, typegraph.Options{MaxIdentifierLength: cfg.MaxIdentifierLength})
	if err != nil {
		return nil, err
	}
	handlers, err := contract.Extract(ctx, graph, provider.GetHandlerDeclarations())
	if err != nil {
		return nil, err
	}
	routes, err := Route(cfg, graph)
	if err != nil {
		return nil, err
	}
	log.Debug().
		Int("groups", len(graph.Groups)).
		Int("enums", len(graph.Enums)).
		Int("handlers", len(handlers)).
		Msg("graph solved")

	res := &Result{Graph: graph, Handlers: handlers, Files: output.NewFileSet()}
	for _, target := range targets {
		groups := routes[target.Name]
		targetHandlers := contract.ForGroups(handlers, groups)
		if err := checkHandlers(target.Name, targetHandlers, groups); err != nil {
			return nil, err
		}
		gen, err := registry.Get(target.Language, codegen.Options{Package: target.Package, Comments: target.Comments})
		if err != nil {
			return nil, errors.Wrapf(err, "target %s", target.Name)
		}
		artifacts, err := render(ctx, gen, graph, groups, targetHandlers)
		if err != nil {
			return nil, errors.Wrapf(err, "target %s", target.Name)
		}
		for _, a := range artifacts {
			for _, dir := range target.Paths {
				if err := res.Files.Add(filepath.Join(dir, filepath.FromSlash(a.Path)), a.Content); err != nil {
					return nil, err
				}
			}
		}
		res.Targets = append(res.Targets, TargetResult{
			Name:      target.Name,
			Groups:    groups,
			Handlers:  targetHandlers,
			Artifacts: artifacts,
		})
		log.Info().
			Str("target", target.Name).
			Str("language", gen.Language()).
			Int("artifacts", len(artifacts)).
			Msg("target rendered")
	}

	log.Info().
		Int("files", res.Files.Len()).
		Dur("duration", time.Since(start)).
		Msg("generation planned")
	return res, nil
}

func selectTargets(cfg *config.Config, names []string) ([]config.TargetConfig, error) {
	if len(names) == 0 {
		return cfg.Targets, nil
	}
	var out []config.TargetConfig
	for _, name := range names {
		t, ok := cfg.Target(name)
		if !ok {
			return nil, errors.Configurationf("unknown target: %s", name)
		}
		out = append(out, *t)
	}
	return out, nil
}

// render fans the groups of one target out over the CPUs. Enum and
// contract rendering run as two more jobs. The result is sorted by path.
func render(ctx context.Context, gen codegen.Generator, graph *typegraph.Graph, groups []*typegraph.DtoGroup, handlers []*contract.HandlerSpec) ([]codegen.Artifact, error) {
	results := make([][]codegen.Artifact, len(groups)+2)
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(runtime.GOMAXPROCS(0))

	for i, group := range groups {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			artifacts, err := gen.RenderGroup(ctx, graph, group)
			if err != nil {
				return errors.Wrapf(err, "group %s", group.Name)
			}
			results[i] = artifacts
			return nil
		})
	}
	eg.Go(func() error {
		artifacts, err := gen.RenderEnums(ctx, graph.Enums)
		if err != nil {
			return errors.Wrap(err, "enums")
		}
		results[len(groups)] = artifacts
		return nil
	})
	eg.Go(func() error {
		artifacts, err := gen.RenderContracts(ctx, graph, handlers)
		if err != nil {
			return errors.Wrap(err, "contracts")
		}
		results[len(groups)+1] = artifacts
		return nil
	})
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	var out []codegen.Artifact
	for _, r := range results {
		out = append(out, r...)
	}
	emit.SortArtifacts(out)
	return out, nil
}

// Route assigns every group to targets. A group with a project hint goes
// only to the target of that name; any other group goes to every target
// whose namespaces contain it, or that lists no namespaces. A group must
// land next to every group it references.
func Route(cfg *config.Config, graph *typegraph.Graph) (map[string][]*typegraph.DtoGroup, error) {
	routes := make(map[string][]*typegraph.DtoGroup, len(cfg.Targets))
	in := make(map[string]map[*typegraph.DtoGroup]bool, len(cfg.Targets))
	for _, t := range cfg.Targets {
		in[t.Name] = make(map[*typegraph.DtoGroup]bool)
	}

	for _, group := range graph.Groups {
		if group.Project != "" {
			if _, ok := cfg.Target(group.Project); !ok {
				return nil, errors.Configurationf("group %s names unknown project %q", group.Name, group.Project)
			}
			routes[group.Project] = append(routes[group.Project], group)
			in[group.Project][group] = true
			continue
		}
		for _, t := range cfg.Targets {
			if matchesNamespaces(group.Namespace, t.Namespaces) {
				routes[t.Name] = append(routes[t.Name], group)
				in[t.Name][group] = true
			}
		}
	}

	for _, t := range cfg.Targets {
		for _, group := range routes[t.Name] {
			models, _, _ := graph.References(group)
			for _, m := range models {
				if !in[t.Name][m.Group] {
					return nil, errors.Configurationf("group %s references %s of group %s, which target %s does not generate",
						group.Name, m.DisplayName, m.Group.Name, t.Name)
				}
			}
		}
	}
	return routes, nil
}

func matchesNamespaces(ns naming.Namespace, prefixes []string) bool {
	if len(prefixes) == 0 {
		return true
	}
	for _, p := range prefixes {
		if ns.HasPrefix(naming.ParseNamespace(p)) {
			return true
		}
	}
	return false
}

// checkHandlers makes sure the query and response models of a target's
// handlers are rendered by the same target. A group hint can move a handler
// away from its response group, so both are checked.
func checkHandlers(target string, handlers []*contract.HandlerSpec, groups []*typegraph.DtoGroup) error {
	in := make(map[*typegraph.DtoGroup]bool, len(groups))
	for _, g := range groups {
		in[g] = true
	}
	for _, h := range handlers {
		if !in[h.Query.Group] {
			return errors.Configurationf("handler %s takes %s of group %s, which target %s does not generate",
				h.ID(), h.Query.DisplayName, h.Query.Group.Name, target)
		}
		if !in[h.Response.Group] {
			return errors.Configurationf("handler %s returns %s of group %s, which target %s does not generate",
				h.ID(), h.Response.DisplayName, h.Response.Group.Name, target)
		}
	}
	return nil
}
