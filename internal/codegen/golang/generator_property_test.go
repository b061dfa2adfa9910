package golang

import (
	"bytes"
	"fmt"
	"go/format"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okra-platform/dtogen/internal/codegen/emit"
	"github.com/okra-platform/dtogen/internal/contract"
	"github.com/okra-platform/dtogen/internal/metadata"
	"github.com/okra-platform/dtogen/internal/testutil"
	"github.com/okra-platform/dtogen/internal/typegraph"
)

// Test plan for property-based testing:
// 1. Every artifact of a random catalog is syntactically valid Go
// 2. Rendering the same graph twice yields identical bytes
// 3. Every reachable model is declared exactly once

func TestGenerator_PropertyBasedValidGo(t *testing.T) {
	// Test: all generated code parses as Go
	for i := 0; i < 50; i++ {
		t.Run(fmt.Sprintf("random_catalog_%d", i), func(t *testing.T) {
			rng := rand.New(rand.NewSource(int64(i)))
			artifacts := renderAll(t, randomCatalog(t, rng))
			for _, a := range artifacts {
				if _, err := format.Source(a.Content); err != nil {
					t.Logf("Generated %s:\n%s", a.Path, a.Content)
					t.Fatalf("Generated code is not valid Go: %v", err)
				}
			}
		})
	}
}

func TestGenerator_PropertyBasedDeterminism(t *testing.T) {
	// Test: two renders of the same catalog are byte-identical
	for i := 0; i < 20; i++ {
		t.Run(fmt.Sprintf("random_catalog_%d", i), func(t *testing.T) {
			first := renderAll(t, randomCatalog(t, rand.New(rand.NewSource(int64(i)))))
			second := renderAll(t, randomCatalog(t, rand.New(rand.NewSource(int64(i)))))
			require.Equal(t, len(first), len(second))
			for j := range first {
				assert.Equal(t, first[j].Path, second[j].Path)
				assert.True(t, bytes.Equal(first[j].Content, second[j].Content), first[j].Path)
			}
		})
	}
}

func TestGenerator_PropertyBasedDeclarations(t *testing.T) {
	// Test: each model of the graph is declared once across all group files
	for i := 0; i < 20; i++ {
		t.Run(fmt.Sprintf("random_catalog_%d", i), func(t *testing.T) {
			c := randomCatalog(t, rand.New(rand.NewSource(int64(i))))
			graph, err := typegraph.Build(testutil.Context(), c, typegraph.Options{})
			require.NoError(t, err)

			var all bytes.Buffer
			g := NewGenerator(emit.Options{Package: "testpkg"})
			for _, group := range graph.Groups {
				artifacts, err := g.RenderGroup(testutil.Context(), graph, group)
				require.NoError(t, err)
				all.Write(artifacts[0].Content)
			}
			for _, m := range graph.Models() {
				decl := "type " + m.DisplayName + " struct"
				assert.Equal(t, 1, bytes.Count(all.Bytes(), []byte(decl)), decl)
			}
		})
	}
}

func renderAll(t *testing.T, c *metadata.Catalog) []emit.Artifact {
	t.Helper()
	ctx := testutil.Context()
	graph, err := typegraph.Build(ctx, c, typegraph.Options{})
	require.NoError(t, err)
	handlers, err := contract.Extract(ctx, graph, c.GetHandlerDeclarations())
	require.NoError(t, err)

	g := NewGenerator(emit.Options{Package: "testpkg"})
	var out []emit.Artifact
	for _, group := range graph.Groups {
		artifacts, err := g.RenderGroup(ctx, graph, group)
		require.NoError(t, err)
		out = append(out, artifacts...)
	}
	enums, err := g.RenderEnums(ctx, graph.Enums)
	require.NoError(t, err)
	contracts, err := g.RenderContracts(ctx, graph, handlers)
	require.NoError(t, err)
	out = append(out, enums...)
	out = append(out, contracts...)
	emit.SortArtifacts(out)
	return out
}

// Helper functions

func randomCatalog(t *testing.T, rng *rand.Rand) *metadata.Catalog {
	t.Helper()
	c := metadata.NewCatalog()

	numEnums := rng.Intn(3)
	for i := 0; i < numEnums; i++ {
		var members []metadata.EnumMemberDecl
		for j := 0; j < rng.Intn(4)+1; j++ {
			members = append(members, metadata.EnumMemberDecl{Name: fmt.Sprintf("Value%d", j)})
		}
		info := metadata.TypeInfo{ID: metadata.TypeID(fmt.Sprintf("Enum%d", i))}
		if rng.Intn(2) == 0 {
			info.Annotations = metadata.Annotations{metadata.AnnStringEnum: true, metadata.AnnEnumValues: true}
		}
		require.NoError(t, c.AddEnum(info, members...))
	}

	numTypes := rng.Intn(5) + 1
	for i := 0; i < numTypes; i++ {
		var fields []metadata.FieldDecl
		for j := 0; j < rng.Intn(5)+1; j++ {
			fields = append(fields, metadata.FieldDecl{
				Name: fmt.Sprintf("Field%d", j),
				Type: randomType(rng, numTypes, numEnums),
			})
		}
		require.NoError(t, c.AddModel(metadata.TypeInfo{ID: metadata.TypeID(fmt.Sprintf("Type%d", i))}, fields...))
	}
	require.NoError(t, c.AddRoot("Type0"))
	for i := 1; i < numTypes; i++ {
		if rng.Intn(3) == 0 {
			require.NoError(t, c.AddRoot(metadata.TypeID(fmt.Sprintf("Type%d", i))))
		}
	}

	if rng.Intn(2) == 0 {
		for i := 0; i < rng.Intn(3)+1; i++ {
			verb := metadata.VerbGet
			if rng.Intn(2) == 0 {
				verb = metadata.VerbPost
			}
			c.AddHandler(metadata.HandlerDecl{
				Controller: "TestController",
				Action:     fmt.Sprintf("Method%d", i),
				Verb:       verb,
				Params:     []metadata.TypeRef{metadata.Named("Type0")},
				Returns:    metadata.Named(metadata.BuiltinTask, metadata.Named("Type0")),
			})
		}
	}
	return c
}

var scalars = []metadata.TypeID{
	metadata.BuiltinInt32, metadata.BuiltinInt64, metadata.BuiltinFloat64, metadata.BuiltinDecimal,
	metadata.BuiltinBool, metadata.BuiltinString, metadata.BuiltinDateTime, metadata.BuiltinGUID,
	metadata.BuiltinBlob, metadata.BuiltinObject,
}

func randomType(rng *rand.Rand, numTypes, numEnums int) metadata.TypeRef {
	scalar := metadata.Named(scalars[rng.Intn(len(scalars))])
	model := metadata.Named(metadata.TypeID(fmt.Sprintf("Type%d", rng.Intn(numTypes))))
	switch rng.Intn(8) {
	case 0:
		return metadata.NullableOf(scalar)
	case 1:
		return metadata.ListOf(model)
	case 2:
		return metadata.ArrayOf(scalar, rng.Intn(2)+1)
	case 3:
		return metadata.Named(metadata.BuiltinDictionary, metadata.Named(metadata.BuiltinString), scalar)
	case 4:
		return metadata.NullableOf(model)
	case 5:
		if numEnums > 0 {
			return metadata.Named(metadata.TypeID(fmt.Sprintf("Enum%d", rng.Intn(numEnums))))
		}
	case 6:
		return model
	}
	return scalar
}
