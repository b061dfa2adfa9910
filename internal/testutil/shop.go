// Package testutil builds the sample object model shared by the back-end
// and pipeline tests.
package testutil

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/okra-platform/dtogen/internal/contract"
	"github.com/okra-platform/dtogen/internal/metadata"
	"github.com/okra-platform/dtogen/internal/typegraph"
)

// Type ids of the sample model.
const (
	OrderID         metadata.TypeID = "Shop.Orders.Order"
	CustomerID      metadata.TypeID = "Shop.Orders.Order.Customer"
	LineItemID      metadata.TypeID = "Shop.Orders.LineItem"
	GetOrderQueryID metadata.TypeID = "Shop.Orders.GetOrderQuery"
	OrderStatusID   metadata.TypeID = "Shop.Orders.OrderStatus"
	ColorID         metadata.TypeID = "Shop.Color"
	MoneyID         metadata.TypeID = "Shop.Money"
)

// Context returns a context carrying a disabled logger.
func Context() context.Context {
	logger := zerolog.Nop()
	return logger.WithContext(context.Background())
}

func named(id metadata.TypeID, args ...metadata.TypeRef) metadata.TypeRef {
	return metadata.Named(id, args...)
}

func field(name string, ref metadata.TypeRef, ann metadata.Annotations) metadata.FieldDecl {
	return metadata.FieldDecl{Name: name, Type: ref, Annotations: ann}
}

// ShopCatalog declares three root models (Order, LineItem, GetOrderQuery),
// one nested model (Order.Customer), two enums and one opaque type, plus a
// GET and a deprecated POST form handler.
func ShopCatalog(t testing.TB) *metadata.Catalog {
	t.Helper()
	c := metadata.NewCatalog()

	require.NoError(t, c.AddEnum(metadata.TypeInfo{
		ID: OrderStatusID, Name: "OrderStatus", Namespace: "Shop.Orders",
		Annotations: metadata.Annotations{metadata.AnnEnumValues: true},
	}, metadata.EnumMemberDecl{Name: "Open"}, metadata.EnumMemberDecl{Name: "Closed"}))
	require.NoError(t, c.AddEnum(metadata.TypeInfo{
		ID: ColorID, Name: "Color", Namespace: "Shop",
		Annotations: metadata.Annotations{metadata.AnnStringEnum: true},
	}, metadata.EnumMemberDecl{Name: "Red"}, metadata.EnumMemberDecl{Name: "Green"}))
	require.NoError(t, c.AddOpaque(metadata.TypeInfo{ID: MoneyID, Name: "Money", Namespace: "Shop"},
		metadata.OpaqueRedirect{ImportFrom: "@lib/money"}))

	require.NoError(t, c.AddModel(metadata.TypeInfo{ID: OrderID, Name: "Order", Namespace: "Shop.Orders"},
		field("Id", named(metadata.BuiltinGUID), nil),
		field("Items", metadata.ListOf(named(LineItemID)), nil),
		field("Note", metadata.NullableOf(named(metadata.BuiltinString)),
			metadata.Annotations{metadata.AnnIgnore: "whenNull"}),
		field("Status", named(OrderStatusID), nil),
		field("Customer", named(CustomerID), nil),
		field("Tags", named(metadata.BuiltinDictionary, named(metadata.BuiltinString), named(metadata.BuiltinInt32)), nil),
		field("Legacy", named(metadata.BuiltinString), metadata.Annotations{metadata.AnnDeprecated: true}),
		field("Secret", named(metadata.BuiltinString), metadata.Annotations{metadata.AnnIgnore: "always"}),
	))
	require.NoError(t, c.AddModel(metadata.TypeInfo{ID: CustomerID, Name: "Customer", Namespace: "Shop.Orders", Parent: OrderID},
		field("Name", named(metadata.BuiltinString), metadata.Annotations{metadata.AnnRequired: true}),
		field("Email", metadata.NullableOf(named(metadata.BuiltinString)), nil),
	))
	require.NoError(t, c.AddModel(metadata.TypeInfo{ID: LineItemID, Name: "LineItem", Namespace: "Shop.Orders"},
		field("Sku", named(metadata.BuiltinString), nil),
		field("Quantity", named(metadata.BuiltinInt32), nil),
		field("Price", named(MoneyID), nil),
		field("Color", named(ColorID), nil),
		field("Values", metadata.ArrayOf(named(metadata.BuiltinInt32), 1),
			metadata.Annotations{metadata.AnnNullable: true}),
	))
	require.NoError(t, c.AddModel(metadata.TypeInfo{ID: GetOrderQueryID, Name: "GetOrderQuery", Namespace: "Shop.Orders"},
		field("Id", named(metadata.BuiltinGUID), nil),
	))

	for _, id := range []metadata.TypeID{OrderID, LineItemID, GetOrderQueryID} {
		require.NoError(t, c.AddRoot(id))
	}

	c.AddHandler(metadata.HandlerDecl{
		Controller: "OrderController",
		Action:     "Get",
		Area:       "Shop",
		Verb:       metadata.VerbGet,
		Params:     []metadata.TypeRef{named(GetOrderQueryID)},
		Returns:    named(metadata.BuiltinTask, named(OrderID)),
	})
	c.AddHandler(metadata.HandlerDecl{
		Controller: "OrderController",
		Action:     "Import",
		Area:       "Shop",
		Verb:       metadata.VerbPost,
		Form:       true,
		Deprecated: true,
		Params:     []metadata.TypeRef{named(GetOrderQueryID)},
		Returns:    named(OrderID),
	})
	return c
}

// Shop solves ShopCatalog and extracts its handlers.
func Shop(t testing.TB) (*typegraph.Graph, []*contract.HandlerSpec) {
	t.Helper()
	ctx := Context()
	c := ShopCatalog(t)
	g, err := typegraph.Build(ctx, c, typegraph.Options{})
	require.NoError(t, err)
	handlers, err := contract.Extract(ctx, g, c.GetHandlerDeclarations())
	require.NoError(t, err)
	return g, handlers
}

// Group returns the named group of g or fails the test.
func Group(t testing.TB, g *typegraph.Graph, name string) *typegraph.DtoGroup {
	t.Helper()
	group, ok := g.Group(name)
	require.True(t, ok, "group %s", name)
	return group
}
