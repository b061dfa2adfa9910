package gosource

import (
	"go/ast"
	"reflect"
	"strconv"
	"strings"

	"github.com/okra-platform/dtogen/internal/errors"
	"github.com/okra-platform/dtogen/internal/metadata"
)

// DirectivePrefix starts a doc-comment directive line.
const DirectivePrefix = "//dtogen:"

// Directives are the parsed //dtogen: lines of one doc comment, e.g.
// "//dtogen:root" or "//dtogen:group=Order".
type Directives map[string]string

// Has reports whether the directive is present.
func (d Directives) Has(name string) bool {
	_, ok := d[name]
	return ok
}

// parseDoc splits a comment group into directives and plain doc text.
// A "Deprecated:" paragraph marks the declaration deprecated.
func parseDoc(groups ...*ast.CommentGroup) (Directives, string) {
	d := Directives{}
	var text []string
	for _, g := range groups {
		if g == nil {
			continue
		}
		for _, c := range g.List {
			if rest, ok := strings.CutPrefix(c.Text, DirectivePrefix); ok {
				name, value, _ := strings.Cut(strings.TrimSpace(rest), "=")
				d[strings.TrimSpace(name)] = strings.TrimSpace(value)
			}
		}
		for _, line := range strings.Split(strings.TrimSpace(g.Text()), "\n") {
			if strings.HasPrefix(line, "dtogen:") {
				continue
			}
			if strings.HasPrefix(line, "Deprecated:") {
				d["deprecated"] = ""
				continue
			}
			text = append(text, line)
		}
	}
	return d, strings.TrimSpace(strings.Join(text, "\n"))
}

// tagInfo is what the json, validate and dto struct tags say about a field.
type tagInfo struct {
	annotations metadata.Annotations
	skip        bool
}

// parseTags reads struct tags.
//
// Supported tags:
//   - json:"name,omitempty" - wire name; omitempty skips default values
//   - json:"-" - never serialized
//   - validate:"required,url,min=1,max=10" - field constraints
//   - dto:"key,nullable,nullableElement,deprecated,ignore=whenNull,pattern=^a+$,storage=idx"
//
// Example:
//
//	Email string `json:"email,omitempty" validate:"required" dto:"max=80"`
func parseTags(raw string) (tagInfo, error) {
	info := tagInfo{annotations: metadata.Annotations{}}
	st := reflect.StructTag(raw)
	ann := info.annotations

	if jsonTag, ok := st.Lookup("json"); ok {
		parts := strings.Split(jsonTag, ",")
		if parts[0] == "-" && len(parts) == 1 {
			ann.Set(metadata.AnnIgnore, metadata.IgnoreAlways)
		} else if parts[0] != "" {
			ann.Set(metadata.AnnName, parts[0])
		}
		for _, opt := range parts[1:] {
			if opt == "omitempty" || opt == "omitzero" {
				ann.Set(metadata.AnnIgnore, metadata.IgnoreWhenDefault)
			}
		}
	}

	var opts []string
	if v := st.Get("validate"); v != "" {
		opts = append(opts, strings.Split(v, ",")...)
	}
	if v := st.Get("dto"); v != "" {
		if v == "-" {
			info.skip = true
			return info, nil
		}
		opts = append(opts, strings.Split(v, ",")...)
	}

	for _, opt := range opts {
		name, value, hasValue := strings.Cut(strings.TrimSpace(opt), "=")
		switch name {
		case "":
		case "required":
			ann.Set(metadata.AnnRequired, true)
		case "key":
			ann.Set(metadata.AnnKey, true)
		case "nullable":
			ann.Set(metadata.AnnNullable, true)
		case "nullableElement":
			ann.Set(metadata.AnnNullableElement, true)
		case "deprecated":
			ann.Set(metadata.AnnDeprecated, true)
		case "url", "uri", "http_url":
			ann.Set(metadata.AnnURL, true)
		case "min", "max":
			n, err := strconv.Atoi(value)
			if !hasValue || err != nil {
				return info, errors.Configurationf("tag option %s needs an integer value", opt)
			}
			kind := metadata.AnnMinLength
			if name == "max" {
				kind = metadata.AnnMaxLength
			}
			ann.Set(kind, n)
		case "pattern":
			ann.Set(metadata.AnnPattern, value)
		case "storage":
			ann.Set(metadata.AnnStorage, value)
		case "ignore":
			cond, ok := metadata.ParseIgnoreCondition(value)
			if !ok {
				return info, errors.Configurationf("unknown ignore condition %q", value)
			}
			ann.Set(metadata.AnnIgnore, cond)
		}
	}
	return info, nil
}
