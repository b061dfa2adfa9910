package metadata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okra-platform/dtogen/internal/errors"
)

func TestCatalog_DeclareAndDescribe(t *testing.T) {
	// Test: declared models, enums and opaque types are reported by kind
	c := NewCatalog()
	require.NoError(t, c.AddModel(TypeInfo{ID: "Shop.Order", Namespace: "Shop"},
		FieldDecl{Name: "Id", Type: Named(BuiltinGUID)},
	))
	require.NoError(t, c.AddEnum(TypeInfo{ID: "Shop.Status", Namespace: "Shop"},
		EnumMemberDecl{Name: "Open"},
	))
	require.NoError(t, c.AddOpaque(TypeInfo{ID: "Shop.Money"}, OpaqueRedirect{ImportFrom: "@lib/money"}))
	require.NoError(t, c.AddRoot("Shop.Order"))
	require.NoError(t, c.Validate())

	info, ok := c.Describe("Shop.Order")
	require.True(t, ok)
	assert.Equal(t, "Order", info.Name)
	assert.Len(t, c.GetFields("Shop.Order"), 1)
	assert.True(t, c.IsEnum("Shop.Status"))
	assert.False(t, c.IsEnum("Shop.Order"))
	assert.True(t, c.IsModel("Shop.Order"))

	redirect, ok := c.GetOpaqueRedirect("Shop.Money")
	require.True(t, ok)
	assert.Equal(t, "Money", redirect.Name)
	assert.Equal(t, []TypeID{"Shop.Order"}, c.ListRootDeclarations())
}

func TestCatalog_Errors(t *testing.T) {
	// Test: duplicate ids, reserved ids and non-model roots are configuration errors
	c := NewCatalog()
	require.NoError(t, c.AddModel(TypeInfo{ID: "A"}))

	err := c.AddModel(TypeInfo{ID: "A"})
	assert.True(t, errors.Is(err, errors.ErrConfiguration))

	err = c.AddModel(TypeInfo{ID: BuiltinList})
	assert.True(t, errors.Is(err, errors.ErrConfiguration))

	require.NoError(t, c.AddEnum(TypeInfo{ID: "E"}))
	require.NoError(t, c.AddRoot("E"))
	assert.True(t, errors.Is(c.Validate(), errors.ErrConfiguration))

	assert.Error(t, c.AddRoot("E"))
}

func TestCatalog_Lookup(t *testing.T) {
	// Test: names resolve through the enclosing namespaces before short names
	c := NewCatalog()
	require.NoError(t, c.AddModel(TypeInfo{ID: "Shop.Item", Name: "Item", Namespace: "Shop"}))
	require.NoError(t, c.AddModel(TypeInfo{ID: "Shop.Orders.Item", Name: "Item", Namespace: "Shop.Orders"}))
	require.NoError(t, c.AddModel(TypeInfo{ID: "Billing.Invoice", Name: "Invoice", Namespace: "Billing"}))

	id, ok := c.Lookup("Item", "Shop.Orders")
	require.True(t, ok)
	assert.Equal(t, TypeID("Shop.Orders.Item"), id)

	id, ok = c.Lookup("Item", "Shop")
	require.True(t, ok)
	assert.Equal(t, TypeID("Shop.Item"), id)

	id, ok = c.Lookup("Invoice", "Shop")
	require.True(t, ok)
	assert.Equal(t, TypeID("Billing.Invoice"), id)

	_, ok = c.Lookup("Item", "Other")
	assert.False(t, ok, "ambiguous short names do not resolve")
}

func TestTypeRef_EqualAndString(t *testing.T) {
	// Test: structural equality and diagnostic rendering of type refs
	a := ListOf(NullableOf(Named("Shop.Item")))
	b := ListOf(NullableOf(Named("Shop.Item")))
	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(ListOf(Named("Shop.Item"))))
	assert.Equal(t, "builtin:list<builtin:nullable<Shop.Item>>", a.String())
	assert.Equal(t, "builtin:int32[,]", ArrayOf(Named(BuiltinInt32), 2).String())
	assert.Equal(t, "T", Param("T").String())
	assert.Equal(t, "Item", TypeID("Shop.Item").ShortName())
}

func TestAnnotations(t *testing.T) {
	// Test: typed accessors over the annotation bag
	var a Annotations
	a = a.Set(AnnKey, true).Set(AnnMaxLength, 20).Set(AnnIgnore, "whenNull").Set(AnnName, "Total")

	assert.True(t, a.Bool(AnnKey))
	assert.False(t, a.Bool(AnnRequired))
	n, ok := a.Int(AnnMaxLength)
	assert.True(t, ok)
	assert.Equal(t, 20, n)
	assert.Equal(t, IgnoreWhenNull, a.Ignore())
	assert.Equal(t, "Total", a.String(AnnName))

	cond, ok := ParseIgnoreCondition("when-default")
	assert.True(t, ok)
	assert.Equal(t, IgnoreWhenDefault, cond)
	_, ok = ParseIgnoreCondition("sometimes")
	assert.False(t, ok)
}
