package typegraph

import (
	"fmt"
	"strings"

	"github.com/okra-platform/dtogen/internal/metadata"
)

// Kind tags the variants of Node.
type Kind int

const (
	KindPrimitive Kind = iota
	KindNullable
	KindArray
	KindEnumerable
	KindDictionary
	KindEnum
	KindModel
	KindOpaque
	KindGenericParam
	KindGeneric
	KindLazy
)

// PrimitiveType enumerates the builtin scalar types.
type PrimitiveType int

const (
	Int32 PrimitiveType = iota
	Int64
	Float32
	Float64
	Decimal
	Bool
	String
	DateTime
	GUID
	FullTextVector
	Object
	Blob
)

var primitiveNames = map[PrimitiveType]string{
	Int32:          "int32",
	Int64:          "int64",
	Float32:        "float32",
	Float64:        "float64",
	Decimal:        "decimal",
	Bool:           "bool",
	String:         "string",
	DateTime:       "datetime",
	GUID:           "guid",
	FullTextVector: "fulltext",
	Object:         "object",
	Blob:           "blob",
}

func (p PrimitiveType) String() string {
	return primitiveNames[p]
}

// IsNumeric reports whether p belongs to the numeric family.
func (p PrimitiveType) IsNumeric() bool {
	switch p {
	case Int32, Int64, Float32, Float64, Decimal:
		return true
	}
	return false
}

// primitives is the fixed primitive table, keyed by builtin identity.
var primitives = map[metadata.TypeID]PrimitiveType{
	metadata.BuiltinInt32:          Int32,
	metadata.BuiltinInt64:          Int64,
	metadata.BuiltinFloat32:        Float32,
	metadata.BuiltinFloat64:        Float64,
	metadata.BuiltinDecimal:        Decimal,
	metadata.BuiltinBool:           Bool,
	metadata.BuiltinString:         String,
	metadata.BuiltinDateTime:       DateTime,
	metadata.BuiltinGUID:           GUID,
	metadata.BuiltinFullTextVector: FullTextVector,
	metadata.BuiltinObject:         Object,
	metadata.BuiltinBlob:           Blob,
}

// Shape classifies a container layer.
type Shape int

const (
	ShapeNone Shape = iota
	ShapeSequence
	ShapeCollection
	ShapeList
	// ShapeArray is only used when checking nesting consistency.
	ShapeArray
)

func (s Shape) String() string {
	switch s {
	case ShapeSequence:
		return "sequence"
	case ShapeCollection:
		return "collection"
	case ShapeList:
		return "list"
	case ShapeArray:
		return "array"
	}
	return "none"
}

// Node is a resolved type shape.
type Node interface {
	Kind() Kind
	String() string
}

// Primitive is a builtin scalar.
type Primitive struct {
	Type PrimitiveType
}

// Nullable marks a value that may be absent.
type Nullable struct {
	Inner Node
}

// Array is a fixed-size array; Rank counts dimensions.
type Array struct {
	Inner Node
	Rank  int
}

// Enumerable is a generic container of one element type.
type Enumerable struct {
	Shape Shape
	Inner Node
}

// Dictionary is a keyed map.
type Dictionary struct {
	Key   Node
	Value Node
}

// EnumRef points at a registered enum.
type EnumRef struct {
	Enum *EnumSpec
}

// ModelRef points at a registered model.
type ModelRef struct {
	Model *ModelSpec
}

// OpaqueRef is a target type supplied by annotation.
type OpaqueRef struct {
	Name       string
	ImportFrom string
}

// GenericParameter is the enclosing model's type parameter.
type GenericParameter struct {
	Name string
}

// Generic is a single-argument generic whose container is itself a model
// (or opaque type), e.g. Page<Item>.
type Generic struct {
	Container Node
	Argument  Node
}

// LazyRef stands in for a model that has not been created yet. It is queued
// on the registry and resolved by Solve.
type LazyRef struct {
	Declared metadata.TypeRef
	Field    *FieldSpec
	Target   *ModelSpec
}

func (*Primitive) Kind() Kind        { return KindPrimitive }
func (*Nullable) Kind() Kind         { return KindNullable }
func (*Array) Kind() Kind            { return KindArray }
func (*Enumerable) Kind() Kind       { return KindEnumerable }
func (*Dictionary) Kind() Kind       { return KindDictionary }
func (*EnumRef) Kind() Kind          { return KindEnum }
func (*ModelRef) Kind() Kind         { return KindModel }
func (*OpaqueRef) Kind() Kind        { return KindOpaque }
func (*GenericParameter) Kind() Kind { return KindGenericParam }
func (*Generic) Kind() Kind          { return KindGeneric }
func (*LazyRef) Kind() Kind          { return KindLazy }

func (n *Primitive) String() string { return n.Type.String() }
func (n *Nullable) String() string  { return n.Inner.String() + "?" }
func (n *Array) String() string {
	return n.Inner.String() + "[" + strings.Repeat(",", n.Rank-1) + "]"
}
func (n *Enumerable) String() string {
	return fmt.Sprintf("%s<%s>", n.Shape, n.Inner)
}
func (n *Dictionary) String() string {
	return fmt.Sprintf("dictionary<%s, %s>", n.Key, n.Value)
}
func (n *EnumRef) String() string          { return "enum " + n.Enum.DisplayName }
func (n *ModelRef) String() string         { return "model " + n.Model.DisplayName }
func (n *OpaqueRef) String() string        { return "opaque " + n.Name }
func (n *GenericParameter) String() string { return n.Name }
func (n *Generic) String() string {
	return fmt.Sprintf("%s<%s>", n.Container, n.Argument)
}
func (n *LazyRef) String() string { return "lazy " + n.Declared.String() }

// StripNullable removes one Nullable layer, reporting whether there was one.
func StripNullable(n Node) (Node, bool) {
	if nn, ok := n.(*Nullable); ok {
		return nn.Inner, true
	}
	return n, false
}

// IsContainer reports whether n is an Array or Enumerable.
func IsContainer(n Node) bool {
	switch n.(type) {
	case *Array, *Enumerable:
		return true
	}
	return false
}

// Equal compares two nodes structurally. Model and enum references compare
// by identity of the referenced spec; lazy references by declared type.
func Equal(a, b Node) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.Kind() != b.Kind() {
		return false
	}
	switch x := a.(type) {
	case *Primitive:
		return x.Type == b.(*Primitive).Type
	case *Nullable:
		return Equal(x.Inner, b.(*Nullable).Inner)
	case *Array:
		y := b.(*Array)
		return x.Rank == y.Rank && Equal(x.Inner, y.Inner)
	case *Enumerable:
		y := b.(*Enumerable)
		return x.Shape == y.Shape && Equal(x.Inner, y.Inner)
	case *Dictionary:
		y := b.(*Dictionary)
		return Equal(x.Key, y.Key) && Equal(x.Value, y.Value)
	case *EnumRef:
		return x.Enum == b.(*EnumRef).Enum
	case *ModelRef:
		return x.Model == b.(*ModelRef).Model
	case *OpaqueRef:
		y := b.(*OpaqueRef)
		return x.Name == y.Name && x.ImportFrom == y.ImportFrom
	case *GenericParameter:
		return x.Name == b.(*GenericParameter).Name
	case *Generic:
		y := b.(*Generic)
		return Equal(x.Container, y.Container) && Equal(x.Argument, y.Argument)
	case *LazyRef:
		return x.Declared.Equal(b.(*LazyRef).Declared)
	}
	return false
}

// Walk calls fn for n and every node below it, depth first. Returning false
// from fn skips the children.
func Walk(n Node, fn func(Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	switch x := n.(type) {
	case *Nullable:
		Walk(x.Inner, fn)
	case *Array:
		Walk(x.Inner, fn)
	case *Enumerable:
		Walk(x.Inner, fn)
	case *Dictionary:
		Walk(x.Key, fn)
		Walk(x.Value, fn)
	case *Generic:
		Walk(x.Container, fn)
		Walk(x.Argument, fn)
	}
}

// replace rebuilds n bottom-up, substituting each node through fn.
func replace(n Node, fn func(Node) Node) Node {
	switch x := n.(type) {
	case *Nullable:
		x.Inner = replace(x.Inner, fn)
	case *Array:
		x.Inner = replace(x.Inner, fn)
	case *Enumerable:
		x.Inner = replace(x.Inner, fn)
	case *Dictionary:
		x.Key = replace(x.Key, fn)
		x.Value = replace(x.Value, fn)
	case *Generic:
		x.Container = replace(x.Container, fn)
		x.Argument = replace(x.Argument, fn)
	}
	return fn(n)
}
