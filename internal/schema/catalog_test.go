package schema

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okra-platform/dtogen/internal/contract"
	"github.com/okra-platform/dtogen/internal/errors"
	"github.com/okra-platform/dtogen/internal/metadata"
	"github.com/okra-platform/dtogen/internal/testutil"
	"github.com/okra-platform/dtogen/internal/typegraph"
)

const shopSDL = `@dtogen(namespace: "Shop.Orders")

scalar Money @opaque(from: "@lib/money")

enum OrderStatus @enum(values: true) {
  OPEN
  CLOSED @value(is: 9)
}

"An order."
type Order @root {
  id: ID!
  items: [LineItem!]!
  note: String @ignore(when: "whenNull")
  status: OrderStatus!
  tags: JSON! @dictionary(key: "String", value: "Int!")
  legacy: String! @deprecated
  code: String! @minLength(n: 2) @maxLength(n: 8) @pattern(regex: "^[A-Z]+$")
  secret: String! @ignore(when: "always")
}

type LineItem @root {
  sku: String! @name(display: "SKU")
  price: Money!
}

input GetOrderQuery @root {
  id: ID!
}

service Orders @controller(name: "OrderController") @area(name: "Shop") {
  get(request: GetOrderQuery!): Order! @get
  save(request: GetOrderQuery!): Order! @post @route(template: "api/[controller]/[action]")
}
`

func TestToCatalog(t *testing.T) {
	// Test: SDL declarations map onto catalog declarations and annotations
	s, err := ParseSchema(shopSDL)
	require.NoError(t, err)
	c, err := ToCatalog(s)
	require.NoError(t, err)

	assert.Equal(t, []metadata.TypeID{"Shop.Orders.Order", "Shop.Orders.LineItem", "Shop.Orders.GetOrderQuery"},
		c.ListRootDeclarations())

	info, ok := c.Describe("Shop.Orders.Order")
	require.True(t, ok)
	assert.Equal(t, "An order.", info.Doc)

	fields := c.GetFields("Shop.Orders.Order")
	require.Len(t, fields, 8)
	assert.Equal(t, metadata.Named(metadata.BuiltinGUID), fields[0].Type)
	assert.Equal(t, metadata.ListOf(metadata.Named("Shop.Orders.LineItem")), fields[1].Type)
	assert.Equal(t, metadata.NullableOf(metadata.Named(metadata.BuiltinString)), fields[2].Type)
	assert.Equal(t, metadata.IgnoreWhenNull, fields[2].Annotations.Ignore())
	assert.Equal(t, metadata.Named(metadata.BuiltinDictionary,
		metadata.Named(metadata.BuiltinString), metadata.Named(metadata.BuiltinInt32)), fields[4].Type)
	assert.True(t, fields[5].Annotations.Bool(metadata.AnnDeprecated))

	code := fields[6].Annotations
	min, _ := code.Int(metadata.AnnMinLength)
	max, _ := code.Int(metadata.AnnMaxLength)
	assert.Equal(t, 2, min)
	assert.Equal(t, 8, max)
	assert.Equal(t, "^[A-Z]+$", code.String(metadata.AnnPattern))
	assert.Equal(t, metadata.IgnoreAlways, fields[7].Annotations.Ignore())

	assert.Equal(t, "SKU", c.GetFields("Shop.Orders.LineItem")[0].Annotations.String(metadata.AnnName))

	redirect, ok := c.GetOpaqueRedirect("Shop.Orders.Money")
	require.True(t, ok)
	assert.Equal(t, "@lib/money", redirect.ImportFrom)

	members := c.GetEnumMembers("Shop.Orders.OrderStatus")
	require.Len(t, members, 2)
	require.NotNil(t, members[1].Value)
	assert.Equal(t, int64(9), *members[1].Value)

	handlers := c.GetHandlerDeclarations()
	require.Len(t, handlers, 2)
	assert.Equal(t, "OrderController", handlers[0].Controller)
	assert.Equal(t, "Get", handlers[0].Action)
	assert.Equal(t, "Shop", handlers[0].Area)
	assert.Equal(t, metadata.VerbGet, handlers[0].Verb)
	assert.Equal(t, []metadata.TypeRef{metadata.Named("Shop.Orders.GetOrderQuery")}, handlers[0].Params)
	assert.Equal(t, metadata.VerbPost, handlers[1].Verb)
	assert.Equal(t, "api/[controller]/[action]", handlers[1].RouteTemplate)
}

func TestToCatalog_ThroughContracts(t *testing.T) {
	// Test: the SDL catalog solves and its services become contracts with substituted routes
	s, err := ParseSchema(shopSDL)
	require.NoError(t, err)
	c, err := ToCatalog(s)
	require.NoError(t, err)

	ctx := testutil.Context()
	graph, err := typegraph.Build(ctx, c, typegraph.Options{})
	require.NoError(t, err)
	handlers, err := contract.Extract(ctx, graph, c.GetHandlerDeclarations())
	require.NoError(t, err)
	require.Len(t, handlers, 2)

	routes := map[string]string{}
	for _, h := range handlers {
		routes[h.Name.Camel()] = h.Route
	}
	assert.Equal(t, map[string]string{
		"orderGet":  "Shop/Order/Get",
		"orderSave": "api/Order/Save",
	}, routes)
}

func TestToCatalog_ImplicitRoots(t *testing.T) {
	// Test: without @root every object type is a root
	s, err := ParseSchema("type A { b: B! }\ntype B { c: Int }\n")
	require.NoError(t, err)
	c, err := ToCatalog(s)
	require.NoError(t, err)
	assert.Equal(t, []metadata.TypeID{"A", "B"}, c.ListRootDeclarations())
}

func TestToCatalog_Errors(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		errContains string
	}{
		{"unknown type", "type A { b: Missing }", "unknown type Missing"},
		{"unmapped scalar", "scalar Weird\ntype A { b: Weird }", "no builtin mapping"},
		{"bad length", "type A { b: String @maxLength(n: \"x\") }", "must be an integer"},
		{"bad ignore", "type A { b: String @ignore(when: \"sometimes\") }", "unknown ignore condition"},
		{"bad enum value", "enum E { A @value(is: \"x\") }", "must be an integer"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Test: unsupported declarations are configuration errors
			s, err := ParseSchema(tt.input)
			require.NoError(t, err)
			_, err = ToCatalog(s)
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.ErrConfiguration))
			assert.Contains(t, err.Error(), tt.errContains)
		})
	}
}

func TestLoad(t *testing.T) {
	// Test: files are read, parsed and merged
	dir := t.TempDir()
	a := filepath.Join(dir, "a.graphql")
	b := filepath.Join(dir, "b.graphql")
	require.NoError(t, os.WriteFile(a, []byte("type A @root { e: E! }"), 0644))
	require.NoError(t, os.WriteFile(b, []byte("enum E { X }"), 0644))

	c, err := Load(testutil.Context(), []string{a, b})
	require.NoError(t, err)
	assert.True(t, c.IsEnum("E"))
	assert.Equal(t, []metadata.TypeID{"A"}, c.ListRootDeclarations())

	_, err = Load(testutil.Context(), []string{filepath.Join(dir, "missing.graphql")})
	assert.True(t, errors.Is(err, errors.ErrIO))
}

func TestToCatalog_PropertyRandomSchemas(t *testing.T) {
	// Test: randomly generated valid schemas convert and solve without errors
	scalars := []string{"Int", "Float", "String", "Boolean", "ID", "DateTime", "Long"}
	rng := rand.New(rand.NewSource(42))

	for i := range 50 {
		t.Run(fmt.Sprintf("random_schema_%d", i), func(t *testing.T) {
			var b strings.Builder
			types := 1 + rng.Intn(6)
			for ti := range types {
				fmt.Fprintf(&b, "type T%d {\n", ti)
				for fi := range 1 + rng.Intn(5) {
					base := scalars[rng.Intn(len(scalars))]
					if ti+1 < types && rng.Intn(3) == 0 {
						base = fmt.Sprintf("T%d", ti+1+rng.Intn(types-ti-1))
					}
					if rng.Intn(2) == 0 {
						base += "!"
					}
					if rng.Intn(3) == 0 {
						base = "[" + base + "]"
					}
					fmt.Fprintf(&b, "  f%d: %s\n", fi, base)
				}
				b.WriteString("}\n")
			}

			s, err := ParseSchema(b.String())
			require.NoError(t, err, b.String())
			c, err := ToCatalog(s)
			require.NoError(t, err, b.String())
			_, err = typegraph.Build(testutil.Context(), c, typegraph.Options{})
			assert.NoError(t, err, b.String())
		})
	}
}
