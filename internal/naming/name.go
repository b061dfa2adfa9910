package naming

import (
	"strings"
	"unicode"

	lru "github.com/hashicorp/golang-lru/v2"
)

// parseCacheSize bounds the memoized Parse results.
const parseCacheSize = 4096

var parseCache *lru.Cache[string, Name]

func init() {
	c, err := lru.New[string, Name](parseCacheSize)
	if err != nil {
		panic(err)
	}
	parseCache = c
}

// Name is an identifier broken into case-insensitive parts. Parts are stored
// lower-case; the original spelling is kept for diagnostics.
type Name struct {
	original string
	parts    []string
}

// Parse splits s into parts on whitespace, '_', '-', '.' and on case
// transitions ("HTTPServer" -> http, server). Digits stay with the part
// before them.
func Parse(s string) Name {
	if n, ok := parseCache.Get(s); ok {
		return n
	}
	n := Name{original: s, parts: split(s)}
	parseCache.Add(s, n)
	return n
}

// FromParts builds a Name from already separated parts.
func FromParts(parts ...string) Name {
	var out []string
	for _, p := range parts {
		out = append(out, split(p)...)
	}
	return Name{original: strings.Join(parts, ""), parts: out}
}

func split(s string) []string {
	runes := []rune(s)
	var parts []string
	var cur []rune

	flush := func() {
		if len(cur) > 0 {
			parts = append(parts, strings.ToLower(string(cur)))
			cur = cur[:0]
		}
	}

	for i, r := range runes {
		switch {
		case unicode.IsSpace(r) || r == '_' || r == '-' || r == '.':
			flush()
		case unicode.IsUpper(r):
			if len(cur) > 0 {
				prev := runes[i-1]
				nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
				if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
					flush()
				}
			}
			cur = append(cur, r)
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			cur = append(cur, r)
		default:
			flush()
		}
	}
	flush()
	return parts
}

// Parts returns a copy of the lower-case parts.
func (n Name) Parts() []string {
	return append([]string(nil), n.parts...)
}

// IsZero reports whether the name has no parts.
func (n Name) IsZero() bool {
	return len(n.parts) == 0
}

// String returns the spelling the name was parsed from.
func (n Name) String() string {
	if n.original == "" {
		return n.Capital()
	}
	return n.original
}

// Capital renders "OrderItem". The tail of every part is lower-cased, so
// "ID" becomes "Id".
func (n Name) Capital() string {
	var sb strings.Builder
	for _, p := range n.parts {
		sb.WriteString(capitalize(p))
	}
	return sb.String()
}

// Camel renders "orderItem".
func (n Name) Camel() string {
	var sb strings.Builder
	for i, p := range n.parts {
		if i == 0 {
			sb.WriteString(p)
			continue
		}
		sb.WriteString(capitalize(p))
	}
	return sb.String()
}

// Kebab renders "order-item".
func (n Name) Kebab() string {
	return strings.Join(n.parts, "-")
}

// Snake renders "order_item".
func (n Name) Snake() string {
	return strings.Join(n.parts, "_")
}

// ScreamingSnake renders "ORDER_ITEM".
func (n Name) ScreamingSnake() string {
	return strings.ToUpper(n.Snake())
}

// Append returns a name made of n's parts followed by other's.
func (n Name) Append(other Name) Name {
	parts := make([]string, 0, len(n.parts)+len(other.parts))
	parts = append(parts, n.parts...)
	parts = append(parts, other.parts...)
	return Name{original: n.String() + other.String(), parts: parts}
}

// RemoveSuffix drops trailing parts equal to suffix. It reports whether
// anything was removed; a name is never reduced to nothing. The remaining
// parts keep their original spelling, so "HRReportsController" becomes
// "HRReports".
func (n Name) RemoveSuffix(suffix string) (Name, bool) {
	s := split(suffix)
	if len(s) == 0 || len(s) >= len(n.parts) {
		return n, false
	}
	tail := n.parts[len(n.parts)-len(s):]
	for i := range s {
		if tail[i] != s[i] {
			return n, false
		}
	}
	parts := append([]string(nil), n.parts[:len(n.parts)-len(s)]...)
	return Name{original: trimOriginal(n.original, parts), parts: parts}, true
}

// trimOriginal returns the longest prefix of original that splits into
// exactly keep, or "" when there is none.
func trimOriginal(original string, keep []string) string {
	runes := []rune(original)
	for i := len(runes); i > 0; i-- {
		if equalParts(split(string(runes[:i])), keep) {
			return strings.TrimRightFunc(string(runes[:i]), func(r rune) bool {
				return !unicode.IsLetter(r) && !unicode.IsDigit(r)
			})
		}
	}
	return ""
}

func equalParts(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Equal compares names part by part, ignoring case.
func (n Name) Equal(other Name) bool {
	if len(n.parts) != len(other.parts) {
		return false
	}
	for i := range n.parts {
		if n.parts[i] != other.parts[i] {
			return false
		}
	}
	return true
}

func capitalize(p string) string {
	if p == "" {
		return p
	}
	r := []rune(p)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}
