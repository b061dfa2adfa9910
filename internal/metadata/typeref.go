package metadata

import (
	"strings"
)

// TypeID identifies a declared type across the whole run. Front ends choose
// the spelling for user types (usually the qualified name); builtin
// identities are reserved below.
type TypeID string

// Builtin identities. Front ends map their own spellings (List, []T,
// repeated, Sequence<T>, ...) onto these so that the resolver matches
// containers and primitives by identity, never by a user-visible name.
const (
	BuiltinInt32          TypeID = "builtin:int32"
	BuiltinInt64          TypeID = "builtin:int64"
	BuiltinFloat32        TypeID = "builtin:float32"
	BuiltinFloat64        TypeID = "builtin:float64"
	BuiltinDecimal        TypeID = "builtin:decimal"
	BuiltinBool           TypeID = "builtin:bool"
	BuiltinString         TypeID = "builtin:string"
	BuiltinDateTime       TypeID = "builtin:datetime"
	BuiltinGUID           TypeID = "builtin:guid"
	BuiltinFullTextVector TypeID = "builtin:fulltext"
	BuiltinObject         TypeID = "builtin:object"
	BuiltinBlob           TypeID = "builtin:blob"

	BuiltinNullable   TypeID = "builtin:nullable"
	BuiltinList       TypeID = "builtin:list"
	BuiltinCollection TypeID = "builtin:collection"
	BuiltinSet        TypeID = "builtin:set"
	BuiltinSequence   TypeID = "builtin:sequence"
	BuiltinDictionary TypeID = "builtin:dictionary"
	BuiltinTask       TypeID = "builtin:task"
	BuiltinResult     TypeID = "builtin:result"
)

const builtinPrefix = "builtin:"

// IsBuiltin reports whether id is one of the reserved identities.
func (id TypeID) IsBuiltin() bool {
	return strings.HasPrefix(string(id), builtinPrefix)
}

// RefKind distinguishes the three shapes of a declared type descriptor.
type RefKind int

const (
	// RefNamed is a named type, optionally with generic arguments.
	RefNamed RefKind = iota
	// RefArray is a fixed-size array of Elem with the given Rank.
	RefArray
	// RefGenericParam is a generic parameter placeholder such as T.
	RefGenericParam
)

// TypeRef is the raw declared type of a field, parameter or return value.
type TypeRef struct {
	Kind  RefKind
	ID    TypeID
	Args  []TypeRef
	Elem  *TypeRef
	Rank  int
	Param string
}

// Named builds a named reference.
func Named(id TypeID, args ...TypeRef) TypeRef {
	return TypeRef{Kind: RefNamed, ID: id, Args: args}
}

// ArrayOf builds an array reference of the given rank.
func ArrayOf(elem TypeRef, rank int) TypeRef {
	if rank < 1 {
		rank = 1
	}
	return TypeRef{Kind: RefArray, Elem: &elem, Rank: rank}
}

// Param builds a generic parameter reference.
func Param(name string) TypeRef {
	return TypeRef{Kind: RefGenericParam, Param: name}
}

// NullableOf wraps ref in the boxed nullable builtin.
func NullableOf(ref TypeRef) TypeRef {
	return Named(BuiltinNullable, ref)
}

// ListOf wraps ref in the list builtin.
func ListOf(ref TypeRef) TypeRef {
	return Named(BuiltinList, ref)
}

// IsGeneric reports whether the reference carries generic arguments.
func (r TypeRef) IsGeneric() bool {
	return r.Kind == RefNamed && len(r.Args) > 0
}

// Equal compares two references structurally.
func (r TypeRef) Equal(o TypeRef) bool {
	if r.Kind != o.Kind || r.ID != o.ID || r.Rank != o.Rank || r.Param != o.Param || len(r.Args) != len(o.Args) {
		return false
	}
	for i := range r.Args {
		if !r.Args[i].Equal(o.Args[i]) {
			return false
		}
	}
	if (r.Elem == nil) != (o.Elem == nil) {
		return false
	}
	return r.Elem == nil || r.Elem.Equal(*o.Elem)
}

// String renders the reference for diagnostics, e.g. "builtin:list<Shop.Item>".
func (r TypeRef) String() string {
	switch r.Kind {
	case RefArray:
		if r.Elem == nil {
			return "[]"
		}
		return r.Elem.String() + "[" + strings.Repeat(",", r.Rank-1) + "]"
	case RefGenericParam:
		return r.Param
	}
	if len(r.Args) == 0 {
		return string(r.ID)
	}
	args := make([]string, len(r.Args))
	for i, a := range r.Args {
		args[i] = a.String()
	}
	return string(r.ID) + "<" + strings.Join(args, ", ") + ">"
}

// ShortName is the last dotted segment of a user type id, or the builtin
// name without its prefix.
func (id TypeID) ShortName() string {
	s := strings.TrimPrefix(string(id), builtinPrefix)
	if i := strings.LastIndexAny(s, "./"); i >= 0 {
		return s[i+1:]
	}
	return s
}
