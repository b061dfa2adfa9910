package naming

import (
	"path"
	"strings"
)

// Namespace is a dotted module path such as "Shop.Orders".
type Namespace struct {
	names []Name
}

// ParseNamespace splits s on '.' and parses every segment.
func ParseNamespace(s string) Namespace {
	var ns Namespace
	for _, seg := range strings.Split(s, ".") {
		seg = strings.TrimSpace(seg)
		if seg == "" {
			continue
		}
		ns.names = append(ns.names, Parse(seg))
	}
	return ns
}

// Names returns the segments.
func (ns Namespace) Names() []Name {
	return append([]Name(nil), ns.names...)
}

// IsZero reports whether the namespace is empty.
func (ns Namespace) IsZero() bool {
	return len(ns.names) == 0
}

// String joins the original segments with '.'.
func (ns Namespace) String() string {
	segs := make([]string, len(ns.names))
	for i, n := range ns.names {
		segs[i] = n.String()
	}
	return strings.Join(segs, ".")
}

// KebabPath renders "shop/orders".
func (ns Namespace) KebabPath() string {
	segs := make([]string, len(ns.names))
	for i, n := range ns.names {
		segs[i] = n.Kebab()
	}
	return path.Join(segs...)
}

// SnakePath renders "shop/orders".
func (ns Namespace) SnakePath() string {
	segs := make([]string, len(ns.names))
	for i, n := range ns.names {
		segs[i] = n.Snake()
	}
	return path.Join(segs...)
}

// Dotted joins the snake form of each segment with '.', for module imports.
func (ns Namespace) Dotted() string {
	segs := make([]string, len(ns.names))
	for i, n := range ns.names {
		segs[i] = n.Snake()
	}
	return strings.Join(segs, ".")
}

// HasPrefix reports whether prefix matches the leading segments of ns.
func (ns Namespace) HasPrefix(prefix Namespace) bool {
	if len(prefix.names) > len(ns.names) {
		return false
	}
	for i := range prefix.names {
		if !ns.names[i].Equal(prefix.names[i]) {
			return false
		}
	}
	return true
}
