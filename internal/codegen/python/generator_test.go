package python

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okra-platform/dtogen/internal/codegen/emit"
	"github.com/okra-platform/dtogen/internal/metadata"
	"github.com/okra-platform/dtogen/internal/testutil"
	"github.com/okra-platform/dtogen/internal/typegraph"
)

func TestGenerator_RenderGroup(t *testing.T) {
	// Test: dataclasses with absolute imports under the package root
	graph, _ := testutil.Shop(t)
	g := NewGenerator(emit.Options{Package: "shop_api"})

	artifacts, err := g.RenderGroup(testutil.Context(), graph, testutil.Group(t, graph, "Order"))
	require.NoError(t, err)
	require.Len(t, artifacts, 1)

	want := `# <auto-generated />

from __future__ import annotations

from dataclasses import dataclass
from uuid import UUID

from shop_api.enums import OrderStatus
from shop_api.shop.orders.line_item import LineItem


@dataclass(kw_only=True)
class Order:
    id: UUID
    items: list[LineItem]
    note: str | None = None
    status: OrderStatus
    customer: Order_Customer
    tags: dict[str, int]
    # deprecated
    legacy: str


@dataclass(kw_only=True)
class Order_Customer:
    name: str
    email: str | None = None
`
	assert.Equal(t, "shop/orders/order.py", artifacts[0].Path)
	assert.Equal(t, want, string(artifacts[0].Content))
}

func TestGenerator_RenderGroup_Opaque(t *testing.T) {
	// Test: opaque import sources become dotted modules
	graph, _ := testutil.Shop(t)
	g := NewGenerator(emit.Options{Package: "shop_api"})

	artifacts, err := g.RenderGroup(testutil.Context(), graph, testutil.Group(t, graph, "LineItem"))
	require.NoError(t, err)

	want := `# <auto-generated />

from __future__ import annotations

from dataclasses import dataclass

from lib.money import Money
from shop_api.enums import Color


@dataclass(kw_only=True)
class LineItem:
    sku: str
    quantity: int
    price: Money
    color: Color
    values: list[int] | None = None
`
	assert.Equal(t, want, string(artifacts[0].Content))
}

func TestGenerator_RenderEnums(t *testing.T) {
	// Test: IntEnum and StrEnum classes plus the names and name-set modules for flagged enums
	graph, _ := testutil.Shop(t)
	g := NewGenerator(emit.Options{Package: "shop_api"})

	artifacts, err := g.RenderEnums(testutil.Context(), graph.Enums)
	require.NoError(t, err)
	require.Len(t, artifacts, 3)

	assert.Equal(t, "enums.py", artifacts[0].Path)
	assert.Equal(t, `# <auto-generated />

from __future__ import annotations

from enum import IntEnum, StrEnum


class Color(StrEnum):
    Red = "Red"
    Green = "Green"


class OrderStatus(IntEnum):
    Open = 0
    Closed = 1
`, string(artifacts[0].Content))

	assert.Equal(t, "enum_names.py", artifacts[1].Path)
	assert.Equal(t, `# <auto-generated />

from __future__ import annotations

from shop_api.enums import OrderStatus


ORDER_STATUS_NAMES: tuple[OrderStatus, ...] = (
    OrderStatus.Open,
    OrderStatus.Closed,
)
`, string(artifacts[1].Content))

	assert.Equal(t, "enum_sets.py", artifacts[2].Path)
	assert.Equal(t, `# <auto-generated />

from __future__ import annotations

from shop_api.enum_names import ORDER_STATUS_NAMES
from shop_api.enums import OrderStatus


ORDER_STATUS_NAME_SET: frozenset[OrderStatus] = frozenset(ORDER_STATUS_NAMES)
`, string(artifacts[2].Content))
}

func TestGenerator_RenderContracts(t *testing.T) {
	// Test: an Api protocol and per-verb route tables
	graph, handlers := testutil.Shop(t)
	g := NewGenerator(emit.Options{Package: "shop_api"})

	artifacts, err := g.RenderContracts(testutil.Context(), graph, handlers)
	require.NoError(t, err)
	require.Len(t, artifacts, 1)

	want := `# <auto-generated />

from __future__ import annotations

from typing import Protocol

from shop_api.shop.orders.get_order_query import GetOrderQuery
from shop_api.shop.orders.order import Order


class Api(Protocol):
    async def order_get(self, query: GetOrderQuery) -> Order: ...

    # deprecated
    async def order_import(self, query: GetOrderQuery) -> Order: ...


GET: dict[str, str] = {
    "order_get": "Shop/Order/Get",
}


POST: dict[str, str] = {
    "order_import": "Shop/Order/Import",
}
`
	assert.Equal(t, "api.py", artifacts[0].Path)
	assert.Equal(t, want, string(artifacts[0].Content))
}

func TestGenerator_GenericAndKeywords(t *testing.T) {
	// Test: generic models subclass Generic[T], keywords get a trailing underscore, sequences use Sequence
	c := metadata.NewCatalog()
	require.NoError(t, c.AddModel(metadata.TypeInfo{ID: "Page", GenericParams: []string{"T"}},
		metadata.FieldDecl{Name: "Items", Type: metadata.Named(metadata.BuiltinSequence, metadata.Param("T"))}))
	require.NoError(t, c.AddModel(metadata.TypeInfo{ID: "Item"}))
	require.NoError(t, c.AddModel(metadata.TypeInfo{ID: "Feed"},
		metadata.FieldDecl{Name: "From", Type: metadata.Named(metadata.BuiltinDateTime)},
		metadata.FieldDecl{Name: "Amount", Type: metadata.Named(metadata.BuiltinDecimal)},
		metadata.FieldDecl{Name: "Page", Type: metadata.Named("Page", metadata.Named("Item"))}))
	require.NoError(t, c.AddRoot("Feed"))
	graph, err := typegraph.Build(testutil.Context(), c, typegraph.Options{})
	require.NoError(t, err)

	artifacts, err := NewGenerator(emit.Options{}).RenderGroup(testutil.Context(), graph, graph.Groups[0])
	require.NoError(t, err)
	assert.Equal(t, `# <auto-generated />

from __future__ import annotations

from collections.abc import Sequence
from dataclasses import dataclass
from datetime import datetime
from decimal import Decimal
from typing import Generic, TypeVar

T = TypeVar("T")


@dataclass(kw_only=True)
class Feed:
    from_: datetime
    amount: Decimal
    page: Feed_Page[Feed_Item]


@dataclass(kw_only=True)
class Feed_Item:
    pass


@dataclass(kw_only=True)
class Feed_Page(Generic[T]):
    items: Sequence[T]
`, string(artifacts[0].Content))
}

func TestIdentifier(t *testing.T) {
	// Test: only reserved words are changed
	assert.Equal(t, "class_", Identifier("class"))
	assert.Equal(t, "None_", Identifier("None"))
	assert.Equal(t, "klass", Identifier("klass"))
}

func TestOpaqueModule(t *testing.T) {
	// Test: path-like import sources become dotted module names
	tests := map[string]string{
		"@lib/money":    "lib.money",
		"./model":       "model",
		"../../shared":  "shared",
		"pkg.sub":       "pkg.sub",
		"my-lib/values": "my_lib.values",
	}
	for in, want := range tests {
		t.Run(in, func(t *testing.T) {
			assert.Equal(t, want, opaqueModule(in))
		})
	}
}
