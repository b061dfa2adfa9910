package typegraph

import (
	"context"

	"github.com/okra-platform/dtogen/internal/errors"
	"github.com/okra-platform/dtogen/internal/metadata"
)

// DefaultOpaqueImport is the import source of an opaque type that names none.
const DefaultOpaqueImport = "./model"

// containerShapes lists the shapes each builtin container satisfies.
var containerShapes = map[metadata.TypeID][]Shape{
	metadata.BuiltinList:       {ShapeList, ShapeCollection, ShapeSequence},
	metadata.BuiltinCollection: {ShapeCollection, ShapeSequence},
	metadata.BuiltinSet:        {ShapeCollection, ShapeSequence},
	metadata.BuiltinSequence:   {ShapeSequence},
}

// shapePriority breaks ties when a container satisfies several shapes.
var shapePriority = []Shape{ShapeList, ShapeCollection, ShapeSequence}

func classify(id metadata.TypeID) (Shape, bool) {
	supported, ok := containerShapes[id]
	if !ok {
		return ShapeNone, false
	}
	for _, want := range shapePriority {
		for _, s := range supported {
			if s == want {
				return want, true
			}
		}
	}
	return ShapeNone, false
}

// Resolver turns declared type descriptors into Nodes. It never creates
// models itself; model references are queued on the registry as LazyRefs.
type Resolver struct {
	provider metadata.Provider
	enqueue  func(*LazyRef)
	enum     func(ctx context.Context, id metadata.TypeID) (*EnumSpec, error)
}

// Resolve maps ref to a Node. hint marks the value as possibly absent and
// only applies at this top level.
func (r *Resolver) Resolve(ctx context.Context, ref metadata.TypeRef, hint bool, field *FieldSpec) (Node, error) {
	return r.resolve(ctx, ref, hint, field)
}

func (r *Resolver) resolve(ctx context.Context, ref metadata.TypeRef, hint bool, field *FieldSpec) (Node, error) {
	if hint || isBoxedNullable(ref) {
		inner := ref
		for isBoxedNullable(inner) {
			if len(inner.Args) != 1 {
				return nil, errors.Resolutionf("nullable wrapper in %s must have exactly one argument", fieldPath(field))
			}
			inner = inner.Args[0]
		}
		n, err := r.resolve(ctx, inner, false, field)
		if err != nil {
			return nil, err
		}
		if _, ok := n.(*Nullable); ok {
			return n, nil
		}
		return &Nullable{Inner: n}, nil
	}

	switch ref.Kind {
	case metadata.RefArray:
		return r.resolveArray(ctx, ref, field)
	case metadata.RefGenericParam:
		if field != nil && field.Model != nil && field.Model.GenericParam == ref.Param {
			return &GenericParameter{Name: ref.Param}, nil
		}
		return nil, errors.Resolutionf("generic parameter %s in %s is not bound by the enclosing model", ref.Param, fieldPath(field))
	}

	if shape, ok := classify(ref.ID); ok {
		if len(ref.Args) != 1 {
			return nil, errors.Resolutionf("%s container in %s needs exactly one element type", shape, fieldPath(field))
		}
		inner, err := r.resolve(ctx, ref.Args[0], false, field)
		if err != nil {
			return nil, err
		}
		if err := checkNesting(shape, inner, field); err != nil {
			return nil, err
		}
		return &Enumerable{Shape: shape, Inner: inner}, nil
	}

	if ref.ID == metadata.BuiltinDictionary {
		if len(ref.Args) != 2 {
			return nil, errors.Resolutionf("dictionary in %s needs a key and a value type", fieldPath(field))
		}
		key, err := r.resolve(ctx, ref.Args[0], false, field)
		if err != nil {
			return nil, err
		}
		value, err := r.resolve(ctx, ref.Args[1], false, field)
		if err != nil {
			return nil, err
		}
		return &Dictionary{Key: key, Value: value}, nil
	}

	switch {
	case len(ref.Args) == 1:
		arg, err := r.resolve(ctx, ref.Args[0], false, field)
		if err != nil {
			return nil, err
		}
		container, err := r.resolveNamed(ctx, metadata.Named(ref.ID), field)
		if err != nil {
			return nil, err
		}
		return &Generic{Container: container, Argument: arg}, nil
	case len(ref.Args) > 1:
		return nil, errors.Resolutionf("generic type %s in %s has %d arguments; only single-argument generics are supported",
			ref.ID, fieldPath(field), len(ref.Args))
	}

	if p, ok := primitives[ref.ID]; ok {
		return &Primitive{Type: p}, nil
	}

	return r.resolveNamed(ctx, ref, field)
}

func (r *Resolver) resolveArray(ctx context.Context, ref metadata.TypeRef, field *FieldSpec) (Node, error) {
	if ref.Elem == nil {
		return nil, errors.Resolutionf("array in %s has no element type", fieldPath(field))
	}
	rank := ref.Rank
	if rank < 1 {
		rank = 1
	}
	elem, err := r.resolve(ctx, *ref.Elem, false, field)
	if err != nil {
		return nil, err
	}
	switch e := elem.(type) {
	case *Array:
		return &Array{Inner: e.Inner, Rank: rank + e.Rank}, nil
	case *Enumerable:
		return nil, inconsistent(field, ShapeArray, e.Shape)
	case *Nullable:
		if IsContainer(e.Inner) {
			return nil, inconsistent(field, ShapeArray, shapeOf(e.Inner))
		}
	}
	return &Array{Inner: elem, Rank: rank}, nil
}

// resolveNamed covers the tail of the algorithm: opaque redirect, enum,
// then a deferred model reference.
func (r *Resolver) resolveNamed(ctx context.Context, ref metadata.TypeRef, field *FieldSpec) (Node, error) {
	if redirect, ok := r.provider.GetOpaqueRedirect(ref.ID); ok {
		from := redirect.ImportFrom
		if from == "" {
			from = DefaultOpaqueImport
		}
		return &OpaqueRef{Name: redirect.Name, ImportFrom: from}, nil
	}
	if r.provider.IsEnum(ref.ID) {
		e, err := r.enum(ctx, ref.ID)
		if err != nil {
			return nil, err
		}
		return &EnumRef{Enum: e}, nil
	}
	if ref.ID.IsBuiltin() {
		return nil, errors.Resolutionf("builtin %s cannot be used as a type in %s", ref.ID, fieldPath(field))
	}
	lazy := &LazyRef{Declared: ref, Field: field}
	r.enqueue(lazy)
	return lazy, nil
}

// checkNesting rejects a container whose element is a container of another
// shape.
func checkNesting(outer Shape, inner Node, field *FieldSpec) error {
	n, _ := StripNullable(inner)
	switch e := n.(type) {
	case *Array:
		return inconsistent(field, outer, ShapeArray)
	case *Enumerable:
		if e.Shape != outer {
			return inconsistent(field, outer, e.Shape)
		}
	}
	return nil
}

func shapeOf(n Node) Shape {
	switch x := n.(type) {
	case *Array:
		return ShapeArray
	case *Enumerable:
		return x.Shape
	}
	return ShapeNone
}

func inconsistent(field *FieldSpec, outer, inner Shape) error {
	return errors.Resolutionf("inconsistent enumerable nesting in %s: %s of %s", fieldPath(field), outer, inner)
}

func isBoxedNullable(ref metadata.TypeRef) bool {
	return ref.Kind == metadata.RefNamed && ref.ID == metadata.BuiltinNullable
}

func fieldPath(field *FieldSpec) string {
	if field == nil {
		return "<signature>"
	}
	return field.Path()
}

// measure walks the container layers of a field type. It returns the
// number of layers (array ranks count individually), the single shape they
// share and whether the innermost element is nullable.
func measure(n Node, field *FieldSpec) (depth int, shape Shape, nullableElem bool, err error) {
	n, _ = StripNullable(n)
	for {
		var layer Shape
		switch x := n.(type) {
		case *Array:
			depth += x.Rank
			layer = ShapeArray
			n = x.Inner
		case *Enumerable:
			depth++
			layer = x.Shape
			n = x.Inner
		default:
			return depth, shape, nullableElem, nil
		}
		if shape != ShapeNone && shape != layer {
			return 0, ShapeNone, false, inconsistent(field, shape, layer)
		}
		shape = layer
		inner, isNull := StripNullable(n)
		nullableElem = isNull
		n = inner
	}
}

// markElementNullable wraps the innermost element of the container layers
// in Nullable.
func markElementNullable(n Node) Node {
	switch x := n.(type) {
	case *Nullable:
		x.Inner = markElementNullable(x.Inner)
		return x
	case *Array:
		x.Inner = wrapElement(x.Inner)
		return x
	case *Enumerable:
		x.Inner = wrapElement(x.Inner)
		return x
	}
	return n
}

func wrapElement(n Node) Node {
	inner, isNull := StripNullable(n)
	if IsContainer(inner) {
		return markElementNullable(n)
	}
	if isNull {
		return n
	}
	return &Nullable{Inner: n}
}
