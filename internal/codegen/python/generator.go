// Package python renders the type graph as Python dataclasses.
package python

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/okra-platform/dtogen/internal/codegen/emit"
	"github.com/okra-platform/dtogen/internal/codegen/writer"
	"github.com/okra-platform/dtogen/internal/contract"
	"github.com/okra-platform/dtogen/internal/errors"
	"github.com/okra-platform/dtogen/internal/metadata"
	"github.com/okra-platform/dtogen/internal/naming"
	"github.com/okra-platform/dtogen/internal/typegraph"
)

const (
	header = "# <auto-generated />"
	indent = "    "

	enumModule     = "enums"
	namesModule    = "enum_names"
	setsModule     = "enum_sets"
	contractModule = "api"
)

var keywords = map[string]bool{
	"False": true, "None": true, "True": true, "and": true, "as": true, "assert": true,
	"async": true, "await": true, "break": true, "class": true, "continue": true,
	"def": true, "del": true, "elif": true, "else": true, "except": true, "finally": true,
	"for": true, "from": true, "global": true, "if": true, "import": true, "in": true,
	"is": true, "lambda": true, "nonlocal": true, "not": true, "or": true, "pass": true,
	"raise": true, "return": true, "try": true, "while": true, "with": true, "yield": true,
}

// Identifier makes s safe as a Python identifier by suffixing keywords
// with an underscore.
func Identifier(s string) string {
	if keywords[s] {
		return s + "_"
	}
	return s
}

// Generator generates Python dataclasses
type Generator struct {
	opts emit.Options
}

// NewGenerator creates a new Python code generator
func NewGenerator(opts emit.Options) *Generator {
	return &Generator{opts: opts}
}

// Language returns the name of the target language
func (g *Generator) Language() string {
	return "python"
}

// FileExtension returns the file extension for generated files
func (g *Generator) FileExtension() string {
	return ".py"
}

// module returns the absolute import path of a module below the package
// root, e.g. "shop_api.shop.orders.order".
func (g *Generator) module(parts ...string) string {
	var kept []string
	if g.opts.Package != "" {
		kept = append(kept, g.opts.Package)
	}
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, ".")
}

func (g *Generator) groupModule(group *typegraph.DtoGroup) string {
	return g.module(group.Namespace.Dotted(), group.Name.Snake())
}

// opaqueModule turns a path-like import source into a dotted module.
func opaqueModule(from string) string {
	from = strings.TrimPrefix(from, "@")
	for strings.HasPrefix(from, "./") || strings.HasPrefix(from, "../") {
		from = from[strings.Index(from, "/")+1:]
	}
	from = strings.ReplaceAll(from, "-", "_")
	return strings.ReplaceAll(from, "/", ".")
}

type scope struct {
	group    *typegraph.DtoGroup
	stdlib   *emit.ImportSet
	local    *emit.ImportSet
	typeVars map[string]bool
}

func newScope(group *typegraph.DtoGroup) *scope {
	return &scope{
		group:    group,
		stdlib:   emit.NewImportSet(),
		local:    emit.NewImportSet(),
		typeVars: map[string]bool{},
	}
}

// RenderGroup renders one dataclass per model of the group.
func (g *Generator) RenderGroup(ctx context.Context, graph *typegraph.Graph, group *typegraph.DtoGroup) ([]emit.Artifact, error) {
	sc := newScope(group)
	sc.stdlib.Add("dataclasses", "dataclass")
	body := writer.NewWriter(indent)

	for _, m := range group.Models {
		if err := g.writeModel(body, sc, m); err != nil {
			return nil, err
		}
	}

	w := writer.NewWriter(indent)
	writePreamble(w, sc)
	w.Write(body.String())

	file := group.Name.Snake() + g.FileExtension()
	if ns := group.Namespace.SnakePath(); ns != "" {
		file = ns + "/" + file
	}
	zerolog.Ctx(ctx).Debug().Str("target", g.Language()).Str("group", group.Name.String()).Msg("group rendered")
	return []emit.Artifact{{Path: file, Content: w.Bytes()}}, nil
}

// topLevel separates top-level statements with two blank lines.
func topLevel(w *writer.Writer) {
	if w.String() == "" {
		return
	}
	w.BlankLine()
	w.Newline()
}

func (g *Generator) writeModel(w *writer.Writer, sc *scope, m *typegraph.ModelSpec) error {
	topLevel(w)
	if m.Deprecated {
		w.WriteLine("# deprecated")
	}
	w.WriteLine("@dataclass(kw_only=True)")
	if m.GenericParam != "" {
		sc.stdlib.Add("typing", "Generic")
		sc.stdlib.Add("typing", "TypeVar")
		sc.typeVars[m.GenericParam] = true
		w.WriteLinef("class %s(Generic[%s]):", m.DisplayName, m.GenericParam)
	} else {
		w.WriteLinef("class %s:", m.DisplayName)
	}
	w.Indent()
	defer w.Dedent()

	if g.opts.Comments && strings.TrimSpace(m.Doc) != "" {
		w.WriteLinef(`"""%s"""`, strings.TrimSpace(m.Doc))
	}

	fields := m.RenderedFields()
	if len(fields) == 0 {
		w.WriteLine("pass")
		return nil
	}
	for _, f := range fields {
		if g.opts.Comments {
			w.Comment("#", f.Options.Doc)
		}
		if f.Options.Deprecated {
			w.WriteLine("# deprecated")
		}
		inner, _ := typegraph.StripNullable(f.Type)
		expr, err := g.typeExpr(sc, inner)
		if err != nil {
			return errors.Wrapf(err, "field %s", f.Path())
		}
		name := Identifier(naming.Parse(f.WireName()).Snake())
		if f.Optional() {
			w.WriteLinef("%s: %s | None = None", name, expr)
		} else {
			w.WriteLinef("%s: %s", name, expr)
		}
	}
	return nil
}

func (g *Generator) typeExpr(sc *scope, n typegraph.Node) (string, error) {
	switch x := n.(type) {
	case *typegraph.Primitive:
		return primitiveType(sc, x.Type), nil
	case *typegraph.Nullable:
		inner, err := g.typeExpr(sc, x.Inner)
		if err != nil {
			return "", err
		}
		return inner + " | None", nil
	case *typegraph.Array:
		inner, err := g.typeExpr(sc, x.Inner)
		if err != nil {
			return "", err
		}
		for i := 0; i < x.Rank; i++ {
			inner = "list[" + inner + "]"
		}
		return inner, nil
	case *typegraph.Enumerable:
		inner, err := g.typeExpr(sc, x.Inner)
		if err != nil {
			return "", err
		}
		if x.Shape == typegraph.ShapeSequence {
			sc.stdlib.Add("collections.abc", "Sequence")
			return "Sequence[" + inner + "]", nil
		}
		return "list[" + inner + "]", nil
	case *typegraph.Dictionary:
		key, _ := typegraph.StripNullable(x.Key)
		k, err := g.typeExpr(sc, key)
		if err != nil {
			return "", err
		}
		v, err := g.typeExpr(sc, x.Value)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("dict[%s, %s]", k, v), nil
	case *typegraph.EnumRef:
		sc.local.Add(g.module(enumModule), x.Enum.DisplayName)
		return x.Enum.DisplayName, nil
	case *typegraph.ModelRef:
		name := g.modelName(sc, x.Model)
		if x.Model.GenericParam != "" {
			sc.stdlib.Add("typing", "Any")
			name += "[Any]"
		}
		return name, nil
	case *typegraph.OpaqueRef:
		sc.local.Add(opaqueModule(x.ImportFrom), x.Name)
		return x.Name, nil
	case *typegraph.GenericParameter:
		return x.Name, nil
	case *typegraph.Generic:
		var container string
		switch c := x.Container.(type) {
		case *typegraph.ModelRef:
			container = g.modelName(sc, c.Model)
		case *typegraph.OpaqueRef:
			sc.local.Add(opaqueModule(c.ImportFrom), c.Name)
			container = c.Name
		default:
			return "", errors.Renderingf("generic container %s is neither a model nor an opaque type", x.Container)
		}
		arg, err := g.typeExpr(sc, x.Argument)
		if err != nil {
			return "", err
		}
		return container + "[" + arg + "]", nil
	}
	return "", errors.Renderingf("cannot render %s as a Python type", n)
}

func (g *Generator) modelName(sc *scope, m *typegraph.ModelSpec) string {
	if m.Group != sc.group {
		sc.local.Add(g.groupModule(m.Group), m.DisplayName)
	}
	return m.DisplayName
}

func primitiveType(sc *scope, p typegraph.PrimitiveType) string {
	switch p {
	case typegraph.Int32, typegraph.Int64:
		return "int"
	case typegraph.Float32, typegraph.Float64:
		return "float"
	case typegraph.Decimal:
		sc.stdlib.Add("decimal", "Decimal")
		return "Decimal"
	case typegraph.Bool:
		return "bool"
	case typegraph.DateTime:
		sc.stdlib.Add("datetime", "datetime")
		return "datetime"
	case typegraph.GUID:
		sc.stdlib.Add("uuid", "UUID")
		return "UUID"
	case typegraph.Blob:
		return "bytes"
	case typegraph.String, typegraph.FullTextVector:
		return "str"
	default:
		sc.stdlib.Add("typing", "Any")
		return "Any"
	}
}

// writePreamble writes the header, the future import, the standard library
// and local import blocks, then the type variables. It leaves the writer
// ready for the first top-level statement.
func writePreamble(w *writer.Writer, sc *scope) {
	w.WriteLine(header)
	w.BlankLine()
	w.WriteLine("from __future__ import annotations")
	for _, set := range []*emit.ImportSet{sc.stdlib, sc.local} {
		if set.Len() == 0 {
			continue
		}
		w.BlankLine()
		for _, module := range set.Modules() {
			w.WriteLinef("from %s import %s", module, strings.Join(set.Names(module), ", "))
		}
	}
	if len(sc.typeVars) > 0 {
		names := make([]string, 0, len(sc.typeVars))
		for name := range sc.typeVars {
			names = append(names, name)
		}
		sort.Strings(names)
		w.BlankLine()
		for _, name := range names {
			w.WriteLinef("%s = TypeVar(%q)", name, name)
		}
	}
	topLevel(w)
}

func constName(e *typegraph.EnumSpec, suffix string) string {
	return naming.Parse(e.DisplayName).ScreamingSnake() + "_" + suffix
}

// RenderEnums renders enums.py and, when any enum asks for them, the names
// and name-set modules.
func (g *Generator) RenderEnums(ctx context.Context, enums []*typegraph.EnumSpec) ([]emit.Artifact, error) {
	if len(enums) == 0 {
		return nil, nil
	}

	sc := newScope(nil)
	body := writer.NewWriter(indent)
	var flagged []*typegraph.EnumSpec
	for _, e := range enums {
		topLevel(body)
		if e.Deprecated {
			body.WriteLine("# deprecated")
		}
		base := "IntEnum"
		if e.StringKeyed {
			base = "StrEnum"
		}
		sc.stdlib.Add("enum", base)
		body.WriteLinef("class %s(%s):", e.DisplayName, base)
		body.Indent()
		if g.opts.Comments && strings.TrimSpace(e.Doc) != "" {
			body.WriteLinef(`"""%s"""`, strings.TrimSpace(e.Doc))
		}
		ordinals := e.Ordinals()
		for i, m := range e.Members {
			if g.opts.Comments {
				body.Comment("#", m.Doc)
			}
			name := Identifier(m.Name.String())
			if e.StringKeyed {
				body.WriteLinef("%s = %q", name, m.Name.String())
			} else {
				body.WriteLinef("%s = %d", name, ordinals[i])
			}
		}
		if len(e.Members) == 0 {
			body.WriteLine("pass")
		}
		body.Dedent()
		if e.EmitValues {
			flagged = append(flagged, e)
		}
	}

	w := writer.NewWriter(indent)
	writePreamble(w, sc)
	w.Write(body.String())
	artifacts := []emit.Artifact{{Path: enumModule + g.FileExtension(), Content: w.Bytes()}}

	if len(flagged) > 0 {
		artifacts = append(artifacts,
			emit.Artifact{Path: namesModule + g.FileExtension(), Content: g.renderNames(flagged)},
			emit.Artifact{Path: setsModule + g.FileExtension(), Content: g.renderSets(flagged)},
		)
	}
	zerolog.Ctx(ctx).Debug().Str("target", g.Language()).Int("enums", len(enums)).Msg("enums rendered")
	return artifacts, nil
}

func (g *Generator) renderNames(enums []*typegraph.EnumSpec) []byte {
	sc := newScope(nil)
	body := writer.NewWriter(indent)
	for _, e := range enums {
		sc.local.Add(g.module(enumModule), e.DisplayName)
		topLevel(body)
		body.Linef("%s: tuple[%s, ...] = (", constName(e, "NAMES"), e.DisplayName)
		for _, m := range e.Members {
			body.Linef("%s.%s,", e.DisplayName, Identifier(m.Name.String()))
		}
		body.Line(")")
	}
	w := writer.NewWriter(indent)
	writePreamble(w, sc)
	w.Write(body.String())
	return w.Bytes()
}

func (g *Generator) renderSets(enums []*typegraph.EnumSpec) []byte {
	sc := newScope(nil)
	body := writer.NewWriter(indent)
	for _, e := range enums {
		sc.local.Add(g.module(enumModule), e.DisplayName)
		sc.local.Add(g.module(namesModule), constName(e, "NAMES"))
		topLevel(body)
		body.WriteLinef("%s: frozenset[%s] = frozenset(%s)", constName(e, "NAME_SET"), e.DisplayName, constName(e, "NAMES"))
	}
	w := writer.NewWriter(indent)
	writePreamble(w, sc)
	w.Write(body.String())
	return w.Bytes()
}

// RenderContracts renders api.py: an Api protocol with one coroutine per
// handler and the GET and POST route tables.
func (g *Generator) RenderContracts(ctx context.Context, graph *typegraph.Graph, handlers []*contract.HandlerSpec) ([]emit.Artifact, error) {
	if len(handlers) == 0 {
		return nil, nil
	}
	sc := newScope(nil)
	sc.stdlib.Add("typing", "Protocol")
	body := writer.NewWriter(indent)

	topLevel(body)
	body.WriteLine("class Api(Protocol):")
	body.Indent()
	for i, h := range handlers {
		if i > 0 {
			body.BlankLine()
		}
		if h.Deprecated {
			body.WriteLine("# deprecated")
		}
		body.WriteLinef("async def %s(self, query: %s) -> %s: ...",
			Identifier(h.Name.Snake()), g.modelName(sc, h.Query), g.modelName(sc, h.Response))
	}
	body.Dedent()

	for _, verb := range []metadata.Verb{metadata.VerbGet, metadata.VerbPost} {
		topLevel(body)
		body.Linef("%s: dict[str, str] = {", verb)
		for _, h := range handlers {
			if h.Verb == verb {
				body.Linef("%q: %q,", h.Name.Snake(), h.Route)
			}
		}
		body.Line("}")
	}

	w := writer.NewWriter(indent)
	writePreamble(w, sc)
	w.Write(body.String())

	zerolog.Ctx(ctx).Debug().Str("target", g.Language()).Int("handlers", len(handlers)).Msg("contracts rendered")
	return []emit.Artifact{{Path: contractModule + g.FileExtension(), Content: w.Bytes()}}, nil
}
