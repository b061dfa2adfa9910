package schema

// Schema is the root of a parsed .graphql file
type Schema struct {
	Types    []ObjectType `json:"types"`
	Enums    []EnumType   `json:"enums"`
	Scalars  []ScalarType `json:"scalars"`
	Services []Service    `json:"services"`
	Meta     Metadata     `json:"meta"`
}

// Metadata represents global metadata for the SDL file
type Metadata struct {
	Namespace string `json:"namespace"`
}

// ObjectType represents a top-level "type" or "input" block
type ObjectType struct {
	Name       string      `json:"name"`
	Doc        string      `json:"doc"`
	Input      bool        `json:"input"`
	Fields     []Field     `json:"fields"`
	Directives []Directive `json:"directives"`
}

// TypeExpr is a GraphQL type reference: a named type or a list, either of
// which may be non-null.
type TypeExpr struct {
	Name    string    `json:"name,omitempty"`
	Elem    *TypeExpr `json:"elem,omitempty"`
	NonNull bool      `json:"nonNull"`
}

// String renders the reference in SDL spelling, e.g. "[String!]!".
func (t *TypeExpr) String() string {
	s := t.Name
	if t.Elem != nil {
		s = "[" + t.Elem.String() + "]"
	}
	if t.NonNull {
		s += "!"
	}
	return s
}

// Field represents a field inside a type or input object
type Field struct {
	Name       string      `json:"name"`
	Type       *TypeExpr   `json:"type"`
	Directives []Directive `json:"directives"`
	Doc        string      `json:"doc"`
}

// EnumType represents an enum definition
type EnumType struct {
	Name       string      `json:"name"`
	Doc        string      `json:"doc"`
	Values     []EnumValue `json:"values"`
	Directives []Directive `json:"directives"`
}

// EnumValue represents a single value inside an enum
type EnumValue struct {
	Name       string      `json:"name"`
	Doc        string      `json:"doc"`
	Directives []Directive `json:"directives"`
}

// ScalarType is a custom scalar declaration.
type ScalarType struct {
	Name       string      `json:"name"`
	Directives []Directive `json:"directives"`
}

// Service represents a "service" block (transformed from type Service_*)
type Service struct {
	Name       string      `json:"name"`
	Doc        string      `json:"doc"`
	Methods    []Method    `json:"methods"`
	Directives []Directive `json:"directives"`
}

// Method represents a single service method
type Method struct {
	Name       string      `json:"name"`
	Inputs     []*TypeExpr `json:"inputs"`
	OutputType *TypeExpr   `json:"outputType"`
	Directives []Directive `json:"directives"`
	Doc        string      `json:"doc"`
}

// Directive represents an attached directive (e.g. @key, @maxLength)
type Directive struct {
	Name string            `json:"name"`
	Args map[string]string `json:"args"`
}

// Directives is a lookup helper over a directive list.
type Directives []Directive

// Get returns the first directive named name.
func (ds Directives) Get(name string) (Directive, bool) {
	for _, d := range ds {
		if d.Name == name {
			return d, true
		}
	}
	return Directive{}, false
}

// Has reports whether a directive named name is attached.
func (ds Directives) Has(name string) bool {
	_, ok := ds.Get(name)
	return ok
}
