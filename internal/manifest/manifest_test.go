package manifest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okra-platform/dtogen/internal/errors"
	"github.com/okra-platform/dtogen/internal/metadata"
	"github.com/okra-platform/dtogen/internal/testutil"
	"github.com/okra-platform/dtogen/internal/typegraph"
)

const shopManifest = `namespace: Shop.Orders
enums:
  - name: OrderStatus
    values: true
    members: [Open, {name: Closed, value: 5, doc: Done.}]
opaque:
  - name: Money
    from: "@lib/money"
models:
  - name: Order
    doc: An order.
    fields:
      - {name: Id, type: guid}
      - {name: Items, type: "List<LineItem>"}
      - {name: Note, type: "string?", ignore: whenNull}
      - {name: Status, type: OrderStatus}
      - {name: Customer, type: Customer}
      - {name: Tags, type: "Map<string, int>"}
      - {name: Secret, type: string, ignore: true}
    nested:
      - name: Customer
        fields:
          - {name: Name, type: string, required: true, maxLength: 80}
  - name: LineItem
    fields:
      - {name: Price, type: Money}
      - {name: Grid, type: "int?[,]"}
  - name: Page
    root: false
    generic: [T]
    fields:
      - {name: Items, type: "T[]"}
handlers:
  - controller: OrderController
    action: Get
    area: Shop
    params: [Order]
    returns: Task<Order>
  - controller: OrderController
    action: Import
    verb: post
    form: true
    params: [LineItem]
    returns: LineItem
`

func TestParse_UnknownKey(t *testing.T) {
	// Test: unknown keys are rejected as configuration errors
	_, err := Parse(strings.NewReader("models:\n  - name: A\n    colour: red\n"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrConfiguration))
}

func TestParse_Empty(t *testing.T) {
	// Test: an empty document is valid and declares nothing
	doc, err := Parse(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, doc.Models)
}

func TestBuild(t *testing.T) {
	// Test: declarations, roots, nested parents, annotations and handlers land in the catalog
	doc, err := Parse(strings.NewReader(shopManifest))
	require.NoError(t, err)
	c, err := Build(doc)
	require.NoError(t, err)

	assert.Equal(t, []metadata.TypeID{"Shop.Orders.Order", "Shop.Orders.LineItem"}, c.ListRootDeclarations())

	info, ok := c.Describe("Shop.Orders.Order.Customer")
	require.True(t, ok)
	assert.Equal(t, metadata.TypeID("Shop.Orders.Order"), info.Parent)
	assert.Equal(t, "Shop.Orders", info.Namespace)

	fields := c.GetFields("Shop.Orders.Order")
	require.Len(t, fields, 7)
	assert.Equal(t, metadata.Named(metadata.BuiltinGUID), fields[0].Type)
	assert.Equal(t, metadata.ListOf(metadata.Named("Shop.Orders.LineItem")), fields[1].Type)
	assert.Equal(t, metadata.NullableOf(metadata.Named(metadata.BuiltinString)), fields[2].Type)
	assert.Equal(t, metadata.IgnoreWhenNull, fields[2].Annotations.Ignore())
	assert.Equal(t, metadata.Named(metadata.BuiltinDictionary, metadata.Named(metadata.BuiltinString), metadata.Named(metadata.BuiltinInt32)), fields[5].Type)
	assert.Equal(t, metadata.IgnoreAlways, fields[6].Annotations.Ignore())

	customer := c.GetFields("Shop.Orders.Order.Customer")
	require.Len(t, customer, 1)
	assert.True(t, customer[0].Annotations.Bool(metadata.AnnRequired))
	max, ok := customer[0].Annotations.Int(metadata.AnnMaxLength)
	require.True(t, ok)
	assert.Equal(t, 80, max)

	grid := c.GetFields("Shop.Orders.LineItem")[1].Type
	assert.Equal(t, metadata.ArrayOf(metadata.NullableOf(metadata.Named(metadata.BuiltinInt32)), 2), grid)

	page := c.GetFields("Shop.Orders.Page")
	assert.Equal(t, metadata.ArrayOf(metadata.Param("T"), 1), page[0].Type)

	members := c.GetEnumMembers("Shop.Orders.OrderStatus")
	require.Len(t, members, 2)
	assert.Nil(t, members[0].Value)
	require.NotNil(t, members[1].Value)
	assert.Equal(t, int64(5), *members[1].Value)
	assert.Equal(t, "Done.", members[1].Doc)

	redirect, ok := c.GetOpaqueRedirect("Shop.Orders.Money")
	require.True(t, ok)
	assert.Equal(t, metadata.OpaqueRedirect{Name: "Money", ImportFrom: "@lib/money"}, redirect)

	handlers := c.GetHandlerDeclarations()
	require.Len(t, handlers, 2)
	assert.Equal(t, metadata.VerbGet, handlers[0].Verb)
	assert.Equal(t, metadata.Named(metadata.BuiltinTask, metadata.Named("Shop.Orders.Order")), handlers[0].Returns)
	assert.Equal(t, metadata.VerbPost, handlers[1].Verb)
	assert.True(t, handlers[1].Form)
}

func TestBuild_ResolvesIntoGraph(t *testing.T) {
	// Test: a manifest catalog solves into groups with nested models owned by their root
	doc, err := Parse(strings.NewReader(shopManifest))
	require.NoError(t, err)
	c, err := Build(doc)
	require.NoError(t, err)

	graph, err := typegraph.Build(testutil.Context(), c, typegraph.Options{})
	require.NoError(t, err)

	order, ok := graph.Group("Order")
	require.True(t, ok)
	var names []string
	for _, m := range order.Models {
		names = append(names, m.DisplayName)
	}
	assert.Equal(t, []string{"Order", "Order_Customer"}, names)
}

func TestBuild_Errors(t *testing.T) {
	tests := []struct {
		name        string
		doc         string
		errContains string
	}{
		{"unknown type", "models:\n  - name: A\n    fields: [{name: B, type: Missing}]\n", "unknown type Missing"},
		{"bad expression", "models:\n  - name: A\n    fields: [{name: B, type: \"List<int\"}]\n", "expected ',' or '>'"},
		{"bad ignore", "models:\n  - name: A\n    fields: [{name: B, type: int, ignore: sometimes}]\n", "unknown ignore condition"},
		{"two generic params", "models:\n  - name: A\n    generic: [K, V]\n", "at most one"},
		{"duplicate model", "models:\n  - name: A\n  - name: A\n", "declared twice"},
		{"bad verb", "models:\n  - name: A\nhandlers:\n  - {controller: C, action: X, verb: PUT, params: [A], returns: A}\n", "unsupported verb"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Test: malformed manifests fail as configuration errors
			doc, err := Parse(strings.NewReader(tt.doc))
			require.NoError(t, err)
			_, err = Build(doc)
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.ErrConfiguration))
			assert.Contains(t, err.Error(), tt.errContains)
		})
	}
}

func TestLoad_Directory(t *testing.T) {
	// Test: directories are scanned for manifests and cross-file references bind
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.dtogen.yaml"),
		[]byte("namespace: App\nmodels:\n  - name: User\n    fields: [{name: Role, type: Role}]\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sub", "b.dtogen.yaml"),
		[]byte("namespace: App\nenums:\n  - name: Role\n    members: [Admin]\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ignored.yaml"), []byte("not: [a manifest"), 0644))

	c, err := Load(testutil.Context(), []string{dir})
	require.NoError(t, err)
	assert.True(t, c.IsEnum("App.Role"))
	assert.Equal(t, metadata.Named("App.Role"), c.GetFields("App.User")[0].Type)
}

func TestLoad_MissingPath(t *testing.T) {
	// Test: a missing source path is an i/o error
	_, err := Load(testutil.Context(), []string{filepath.Join(t.TempDir(), "nope.dtogen.yaml")})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrIO))
}
