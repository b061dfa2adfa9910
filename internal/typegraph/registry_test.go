package typegraph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okra-platform/dtogen/internal/errors"
	"github.com/okra-platform/dtogen/internal/metadata"
)

func displayNames(models []*ModelSpec) []string {
	out := make([]string, len(models))
	for i, m := range models {
		out[i] = m.DisplayName
	}
	return out
}

func orderCatalog(t *testing.T) *metadata.Catalog {
	t.Helper()
	c := metadata.NewCatalog()
	addModel(t, c, "Shop.Order", "Shop", true,
		fld("Id", metadata.Named(metadata.BuiltinGUID), ann(metadata.AnnKey, true)),
		fld("Items", metadata.ListOf(named("Shop.LineItem"))),
		fld("Note", metadata.NullableOf(metadata.Named(metadata.BuiltinString)), ann(metadata.AnnIgnore, metadata.IgnoreWhenNull)),
		fld("Customer", named("Shop.Customer")),
		fld("Secret", named("Shop.Missing"), ann(metadata.AnnIgnore, metadata.IgnoreAlways)),
	)
	addModel(t, c, "Shop.LineItem", "Shop", true,
		fld("Sku", metadata.Named(metadata.BuiltinString)),
		fld("Order", named("Shop.Order")),
		fld("Status", named("Shop.Status")),
	)
	addModel(t, c, "Shop.Customer", "Shop", false,
		fld("Name", metadata.Named(metadata.BuiltinString)),
		fld("Orders", metadata.ListOf(named("Shop.Order"))),
		fld("Address", named("Shop.Address")),
	)
	addModel(t, c, "Shop.Address", "Shop", false,
		fld("Street", metadata.Named(metadata.BuiltinString)),
	)
	require.NoError(t, c.AddEnum(metadata.TypeInfo{ID: "Shop.Status", Annotations: ann(metadata.AnnEnumValues, true)},
		metadata.EnumMemberDecl{Name: "Open"}, metadata.EnumMemberDecl{Name: "Closed"}))
	return c
}

func TestSolve_OrderExample(t *testing.T) {
	// Test: closure discovery, ownership and lazy ref replacement over a small shop model
	g, err := Build(context.Background(), orderCatalog(t), Options{MaxIdentifierLength: DefaultMaxIdentifierLength})
	require.NoError(t, err)

	require.Len(t, g.Groups, 2)
	order, line := g.Groups[0], g.Groups[1]
	assert.Equal(t, "shop/order", order.Path())
	assert.Equal(t, []string{"Order", "Order_Customer", "Order_Address"}, displayNames(order.Models))
	assert.Equal(t, []string{"LineItem"}, displayNames(line.Models))
	assert.Same(t, order.Root, order.Models[0])

	root := order.Root
	id := root.Fields[0]
	assert.True(t, id.Options.Key)
	assert.True(t, id.Options.Required)

	items := root.Fields[1]
	assert.Equal(t, "list<model LineItem>", items.Type.String())
	assert.Equal(t, 1, items.Options.EnumerableDepth)
	assert.Equal(t, ShapeList, items.Options.Shape)

	note := root.Fields[2]
	assert.True(t, note.Optional())
	assert.True(t, note.Options.Nullable)

	secret := root.Fields[4]
	assert.True(t, secret.Omitted())
	assert.Equal(t, "object", secret.Type.String())

	require.Len(t, g.Enums, 1)
	assert.Equal(t, "Status", g.Enums[0].DisplayName)
	assert.True(t, g.Enums[0].EmitValues)

	for _, m := range g.Models() {
		for _, f := range m.Fields {
			Walk(f.Type, func(n Node) bool {
				assert.NotEqual(t, KindLazy, n.Kind(), "lazy ref left in %s", f.Path())
				return true
			})
		}
	}

	models, enums, _ := g.References(order)
	assert.Equal(t, []string{"LineItem"}, displayNames(models))
	assert.Empty(t, enums)
}

func TestSolve_Cycle(t *testing.T) {
	// Test: a model pair referencing each other resolves once each without recursion
	c := metadata.NewCatalog()
	addModel(t, c, "A", "", true, fld("B", named("B")))
	addModel(t, c, "B", "", false, fld("A", named("A")), fld("Self", metadata.NullableOf(named("B"))))

	g, err := Build(context.Background(), c, Options{})
	require.NoError(t, err)

	require.Len(t, g.Groups, 1)
	assert.Equal(t, []string{"A", "A_B"}, displayNames(g.Groups[0].Models))

	a, _ := g.Model("A")
	b, _ := g.Model("B")
	assert.Same(t, b, a.Fields[0].Type.(*ModelRef).Model)
	assert.Same(t, a, b.Fields[0].Type.(*ModelRef).Model)
	assert.Equal(t, "model A_B?", b.Fields[1].Type.String())
}

func TestSolve_MissingModel(t *testing.T) {
	// Test: an unresolvable reference aborts naming the field and owning model
	c := metadata.NewCatalog()
	addModel(t, c, "Shop.Order", "Shop", true, fld("Coupon", named("Shop.Coupon")))

	_, err := Build(context.Background(), c, Options{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrResolution))
	assert.Contains(t, err.Error(), "model not found for Shop.Coupon in Order.Coupon")
}

func TestSolve_GetOrCreateIsIdempotent(t *testing.T) {
	// Test: the same type id always yields the same model instance
	r := NewRegistry(orderCatalog(t), Options{})
	ctx := context.Background()
	require.NoError(t, r.AddRoots(ctx))

	group, _ := r.GroupByName("Order")
	first, err := r.GetOrCreate(ctx, "Shop.Customer", group)
	require.NoError(t, err)
	second, err := r.GetOrCreate(ctx, "Shop.Customer", nil)
	require.NoError(t, err)
	assert.Same(t, first, second)
}

func TestSolve_ExplicitGroupOverride(t *testing.T) {
	// Test: an explicit group annotation wins over discovery order
	c := metadata.NewCatalog()
	addModel(t, c, "Order", "", true, fld("Shared", named("Shared")))
	addModel(t, c, "Invoice", "", true, fld("Total", metadata.Named(metadata.BuiltinDecimal)))
	addModelInfo(t, c, metadata.TypeInfo{ID: "Shared", Annotations: ann(metadata.AnnGroup, "Invoice")}, false)

	g, err := Build(context.Background(), c, Options{})
	require.NoError(t, err)

	assert.Equal(t, []string{"Order"}, displayNames(g.Groups[0].Models))
	assert.Equal(t, []string{"Invoice", "Invoice_Shared"}, displayNames(g.Groups[1].Models))
}

func TestSolve_ContainerGroups(t *testing.T) {
	// Test: nested declarations of a container root share its group and name prefix
	c := metadata.NewCatalog()
	addModelInfo(t, c, metadata.TypeInfo{ID: "Billing.GetInvoice", Namespace: "Billing", Container: true}, true)
	addModelInfo(t, c, metadata.TypeInfo{ID: "Billing.GetInvoice.Query", Name: "Query", Namespace: "Billing", Parent: "Billing.GetInvoice"}, true,
		fld("InvoiceId", metadata.Named(metadata.BuiltinGUID)))
	addModelInfo(t, c, metadata.TypeInfo{ID: "Billing.GetInvoice.Response", Name: "Response", Namespace: "Billing", Parent: "Billing.GetInvoice"}, true,
		fld("Lines", metadata.ListOf(named("Billing.GetInvoice.Line"))))
	addModelInfo(t, c, metadata.TypeInfo{ID: "Billing.GetInvoice.Line", Name: "Line", Namespace: "Billing", Parent: "Billing.GetInvoice"}, false,
		fld("Amount", metadata.Named(metadata.BuiltinDecimal)))

	g, err := Build(context.Background(), c, Options{})
	require.NoError(t, err)

	require.Len(t, g.Groups, 1)
	group := g.Groups[0]
	assert.Nil(t, group.Root)
	assert.Equal(t, "billing/get-invoice", group.Path())
	assert.Equal(t, []string{"GetInvoice_Query", "GetInvoice_Response", "GetInvoice_Line"}, displayNames(group.Models))
}

func TestSolve_ConfigurationErrors(t *testing.T) {
	// Test: inconsistent group setups are configuration errors
	tests := []struct {
		name  string
		build func(t *testing.T, c *metadata.Catalog)
	}{
		{
			name: "unknown group",
			build: func(t *testing.T, c *metadata.Catalog) {
				addModel(t, c, "Order", "", true, fld("Shared", named("Shared")))
				addModelInfo(t, c, metadata.TypeInfo{ID: "Shared", Annotations: ann(metadata.AnnGroup, "Nowhere")}, false)
			},
		},
		{
			name: "root registered under another group",
			build: func(t *testing.T, c *metadata.Catalog) {
				addModel(t, c, "Order", "", true)
				addModelInfo(t, c, metadata.TypeInfo{ID: "Invoice", Annotations: ann(metadata.AnnGroup, "Order")}, true)
			},
		},
		{
			name: "duplicate display names",
			build: func(t *testing.T, c *metadata.Catalog) {
				addModel(t, c, "Order", "", true, fld("Item", named("Item")))
				addModelInfo(t, c, metadata.TypeInfo{ID: "Item", Annotations: ann(metadata.AnnName, "Order")}, false)
			},
		},
		{
			name: "duplicate group paths",
			build: func(t *testing.T, c *metadata.Catalog) {
				addModelInfo(t, c, metadata.TypeInfo{ID: "A.Order", Name: "Order", Namespace: "Shop"}, true)
				addModelInfo(t, c, metadata.TypeInfo{ID: "B.Order", Name: "Order", Namespace: "Shop"}, true)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := metadata.NewCatalog()
			tt.build(t, c)
			_, err := Build(context.Background(), c, Options{})
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.ErrConfiguration), err.Error())
		})
	}
}

func TestSolve_IdentifierLength(t *testing.T) {
	// Test: overlong generated names fail unless an override is supplied
	c := metadata.NewCatalog()
	addModel(t, c, "Order", "", true, fld("Adjustment", named("PriceAdjustment")))
	addModel(t, c, "PriceAdjustment", "", false)

	_, err := Build(context.Background(), c, Options{MaxIdentifierLength: 12})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrResolution))
	assert.Contains(t, err.Error(), "Order_PriceAdjustment")

	c = metadata.NewCatalog()
	addModel(t, c, "Order", "", true, fld("Adjustment", named("PriceAdjustment")))
	addModelInfo(t, c, metadata.TypeInfo{ID: "PriceAdjustment", Annotations: ann(metadata.AnnName, "OrderAdj")}, false)

	g, err := Build(context.Background(), c, Options{MaxIdentifierLength: 12})
	require.NoError(t, err)
	assert.Equal(t, []string{"Order", "OrderAdj"}, displayNames(g.Groups[0].Models))
}

func TestSolve_FieldOptions(t *testing.T) {
	// Test: depth, shape, nullable elements and key/required normalization
	c := metadata.NewCatalog()
	intRef := metadata.Named(metadata.BuiltinInt32)
	addModelInfo(t, c, metadata.TypeInfo{ID: "Grid", Annotations: ann(metadata.AnnNullableBool, true)}, true,
		fld("ID", intRef),
		fld("Matrix", metadata.ArrayOf(intRef, 2)),
		fld("Nested", metadata.ListOf(metadata.NullableOf(metadata.ListOf(intRef)))),
		fld("Tags", metadata.ListOf(metadata.Named(metadata.BuiltinString)), ann(metadata.AnnNullableElement, true)),
		fld("Active", metadata.Named(metadata.BuiltinBool)),
		fld("Code", metadata.Named(metadata.BuiltinString), ann(metadata.AnnMaxLength, 8, metadata.AnnMinLength, 2, metadata.AnnPattern, "^[A-Z]+$")),
		fld("Values", metadata.NullableOf(metadata.ListOf(intRef))),
	)

	g, err := Build(context.Background(), c, Options{})
	require.NoError(t, err)
	f := g.Groups[0].Root.Fields

	assert.True(t, f[0].Options.Key, "Id is a key by convention")
	assert.True(t, f[0].Options.Required)

	assert.Equal(t, 2, f[1].Options.EnumerableDepth)
	assert.Equal(t, ShapeArray, f[1].Options.Shape)

	assert.Equal(t, 2, f[2].Options.EnumerableDepth)
	assert.False(t, f[2].Options.NullableElement)

	assert.Equal(t, "list<string?>", f[3].Type.String())
	assert.True(t, f[3].Options.NullableElement)

	assert.Equal(t, "bool?", f[4].Type.String())

	require.NotNil(t, f[5].Options.MaxLength)
	assert.Equal(t, 8, *f[5].Options.MaxLength)
	assert.Equal(t, 2, *f[5].Options.MinLength)
	assert.Equal(t, "^[A-Z]+$", f[5].Options.Pattern)

	assert.Equal(t, "list<int32>?", f[6].Type.String())
	assert.True(t, f[6].Options.Nullable)
	assert.Equal(t, 1, f[6].Options.EnumerableDepth)
}

func TestSolve_GenericModels(t *testing.T) {
	// Test: a generic container resolves to a generic model reference
	c := metadata.NewCatalog()
	addModel(t, c, "Search", "", true, fld("Results", named("Page", named("Hit"))))
	addModelInfo(t, c, metadata.TypeInfo{ID: "Page", GenericParams: []string{"T"}}, false,
		fld("Items", metadata.ListOf(metadata.Param("T"))),
		fld("Total", metadata.Named(metadata.BuiltinInt32)))
	addModel(t, c, "Hit", "", false, fld("Score", metadata.Named(metadata.BuiltinFloat64)))

	g, err := Build(context.Background(), c, Options{})
	require.NoError(t, err)

	page, ok := g.Model("Page")
	require.True(t, ok)
	assert.Equal(t, "T", page.GenericParam)
	assert.Equal(t, "list<T>", page.Fields[0].Type.String())
	assert.Equal(t, "model Search_Page<model Search_Hit>", g.Groups[0].Root.Fields[0].Type.String())
}

func TestEnum_Ordinals(t *testing.T) {
	// Test: members without explicit values continue from the previous value
	ten := int64(10)
	e := &EnumSpec{Members: []EnumMember{{}, {Value: &ten}, {}}}
	assert.Equal(t, []int64{0, 10, 11}, e.Ordinals())
}
