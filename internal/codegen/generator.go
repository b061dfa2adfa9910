package codegen

import (
	"context"

	"github.com/okra-platform/dtogen/internal/codegen/emit"
	"github.com/okra-platform/dtogen/internal/contract"
	"github.com/okra-platform/dtogen/internal/typegraph"
)

// Artifact is one generated file.
type Artifact = emit.Artifact

// Options contains common options for code generation.
type Options = emit.Options

// Generator is the interface that all language back ends implement. Every
// method receives a solved graph and must not modify it; the pipeline calls
// them concurrently for different groups.
type Generator interface {
	// Language returns the name of the target language (e.g., "go", "typescript")
	Language() string

	// FileExtension returns the file extension for generated files (e.g., ".go", ".ts")
	FileExtension() string

	// RenderGroup renders the models of one group, in discovery order.
	RenderGroup(ctx context.Context, g *typegraph.Graph, group *typegraph.DtoGroup) ([]Artifact, error)

	// RenderEnums renders the shared enum declarations and, for enums that
	// ask for them, the derived value list and value set artifacts.
	RenderEnums(ctx context.Context, enums []*typegraph.EnumSpec) ([]Artifact, error)

	// RenderContracts renders the handler contract and the per-verb route
	// maps. It returns nothing when handlers is empty.
	RenderContracts(ctx context.Context, g *typegraph.Graph, handlers []*contract.HandlerSpec) ([]Artifact, error)
}
