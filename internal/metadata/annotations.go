package metadata

import (
	"strings"
)

// AnnotationKind names one capability in an annotation bag.
type AnnotationKind string

// Field annotations.
const (
	AnnNullable        AnnotationKind = "nullable"
	AnnNullableElement AnnotationKind = "nullableElement"
	AnnRequired        AnnotationKind = "required"
	AnnKey             AnnotationKind = "key"
	AnnMinLength       AnnotationKind = "minLength"
	AnnMaxLength       AnnotationKind = "maxLength"
	AnnPattern         AnnotationKind = "pattern"
	AnnIgnore          AnnotationKind = "ignore"
	AnnDeprecated      AnnotationKind = "deprecated"
	AnnURL             AnnotationKind = "url"
	AnnStorage         AnnotationKind = "storage"
	AnnName            AnnotationKind = "name"
	AnnDoc             AnnotationKind = "doc"
)

// Type annotations.
const (
	AnnGroup        AnnotationKind = "group"
	AnnProject      AnnotationKind = "project"
	AnnStringEnum   AnnotationKind = "stringEnum"
	AnnEnumValues   AnnotationKind = "enumValues"
	AnnNullableBool AnnotationKind = "nullableBool"
)

// IgnoreCondition says when a field is left out of a serialized payload.
type IgnoreCondition int

const (
	IgnoreNever IgnoreCondition = iota
	IgnoreAlways
	IgnoreWhenDefault
	IgnoreWhenNull
)

func (c IgnoreCondition) String() string {
	switch c {
	case IgnoreAlways:
		return "always"
	case IgnoreWhenDefault:
		return "whenDefault"
	case IgnoreWhenNull:
		return "whenNull"
	default:
		return "never"
	}
}

// ParseIgnoreCondition accepts "never", "always", "whenDefault"/"when-default"/
// "when_default" and the same spellings of "whenNull". An empty string is
// "always", matching a bare ignore marker.
func ParseIgnoreCondition(s string) (IgnoreCondition, bool) {
	norm := strings.ToLower(strings.NewReplacer("-", "", "_", "", " ", "").Replace(s))
	switch norm {
	case "", "always", "true":
		return IgnoreAlways, true
	case "never", "false":
		return IgnoreNever, true
	case "whendefault", "whenwritingdefault", "omitempty":
		return IgnoreWhenDefault, true
	case "whennull", "whenwritingnull":
		return IgnoreWhenNull, true
	}
	return IgnoreNever, false
}

// Annotations is the capability bag a front end attaches to a type or field.
type Annotations map[AnnotationKind]any

// Set stores v under k and returns the bag for chaining. A nil bag is
// allocated.
func (a Annotations) Set(k AnnotationKind, v any) Annotations {
	if a == nil {
		a = Annotations{}
	}
	a[k] = v
	return a
}

// Has reports whether k is present.
func (a Annotations) Has(k AnnotationKind) bool {
	_, ok := a[k]
	return ok
}

// Bool returns a boolean capability; presence without a bool value counts
// as true.
func (a Annotations) Bool(k AnnotationKind) bool {
	v, ok := a[k]
	if !ok {
		return false
	}
	if b, isBool := v.(bool); isBool {
		return b
	}
	return true
}

// String returns a string capability or "".
func (a Annotations) String(k AnnotationKind) string {
	if s, ok := a[k].(string); ok {
		return s
	}
	return ""
}

// Int returns an integer capability.
func (a Annotations) Int(k AnnotationKind) (int, bool) {
	switch v := a[k].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case int32:
		return int(v), true
	case float64:
		return int(v), true
	}
	return 0, false
}

// Ignore returns the ignore condition, IgnoreNever when absent.
func (a Annotations) Ignore() IgnoreCondition {
	switch v := a[AnnIgnore].(type) {
	case IgnoreCondition:
		return v
	case string:
		c, _ := ParseIgnoreCondition(v)
		return c
	case bool:
		if v {
			return IgnoreAlways
		}
	}
	return IgnoreNever
}

// Clone returns a shallow copy.
func (a Annotations) Clone() Annotations {
	out := make(Annotations, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}
