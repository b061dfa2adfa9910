package typegraph

import (
	"path"

	"github.com/okra-platform/dtogen/internal/metadata"
	"github.com/okra-platform/dtogen/internal/naming"
)

// FieldOptions carries the per-field annotations after normalization.
type FieldOptions struct {
	Nullable        bool
	NullableElement bool
	Key             bool
	Required        bool
	MinLength       *int
	MaxLength       *int
	Pattern         string
	EnumerableDepth int
	Shape           Shape
	Ignore          metadata.IgnoreCondition
	Deprecated      bool
	URL             bool
	Storage         string
	CustomName      string
	Doc             string
}

// FieldSpec is one resolved field of a model.
type FieldSpec struct {
	Name    naming.Name
	Model   *ModelSpec
	Type    Node
	Options FieldOptions
}

// Path names the field as "Model.Field" for diagnostics.
func (f *FieldSpec) Path() string {
	if f.Model == nil {
		return f.Name.String()
	}
	return f.Model.Name.String() + "." + f.Name.String()
}

// Omitted reports whether the field is never serialized.
func (f *FieldSpec) Omitted() bool {
	return f.Options.Ignore == metadata.IgnoreAlways
}

// Optional reports whether the field may be absent from a payload: it is
// nullable, or it is skipped when default or null.
func (f *FieldSpec) Optional() bool {
	if _, ok := f.Type.(*Nullable); ok {
		return true
	}
	return f.Options.Ignore == metadata.IgnoreWhenDefault || f.Options.Ignore == metadata.IgnoreWhenNull
}

// WireName is the serialized name: the custom name or the camel form.
func (f *FieldSpec) WireName() string {
	if f.Options.CustomName != "" {
		return f.Options.CustomName
	}
	return f.Name.Camel()
}

// ModelSpec is a model reached from a root declaration.
type ModelSpec struct {
	ID           metadata.TypeID
	Name         naming.Name
	DisplayName  string
	Group        *DtoGroup
	Fields       []*FieldSpec
	GenericParam string
	Override     string
	Doc          string
	Deprecated   bool
	NullableBool bool
}

// RenderedFields returns the fields that are not ignored always, in
// declaration order.
func (m *ModelSpec) RenderedFields() []*FieldSpec {
	out := make([]*FieldSpec, 0, len(m.Fields))
	for _, f := range m.Fields {
		if !f.Omitted() {
			out = append(out, f)
		}
	}
	return out
}

// EnumMember is one enum member in declaration order.
type EnumMember struct {
	Name  naming.Name
	Value *int64
	Doc   string
}

// EnumSpec is a registered enum.
type EnumSpec struct {
	ID          metadata.TypeID
	Name        naming.Name
	DisplayName string
	Members     []EnumMember
	StringKeyed bool
	EmitValues  bool
	Doc         string
	Deprecated  bool
}

// Ordinals returns the member values, numbering members without an explicit
// value from the previous value plus one.
func (e *EnumSpec) Ordinals() []int64 {
	out := make([]int64, len(e.Members))
	next := int64(0)
	for i, m := range e.Members {
		if m.Value != nil {
			next = *m.Value
		}
		out[i] = next
		next++
	}
	return out
}

// DtoGroup is a root declaration and the models it owns.
type DtoGroup struct {
	ID        metadata.TypeID
	Name      naming.Name
	Namespace naming.Namespace
	// Root is nil when the declaration only groups nested models.
	Root    *ModelSpec
	Models  []*ModelSpec
	Project string
}

// Path is the group's output location without extension, e.g.
// "shop/orders/order".
func (g *DtoGroup) Path() string {
	return path.Join(g.Namespace.KebabPath(), g.Name.Kebab())
}
