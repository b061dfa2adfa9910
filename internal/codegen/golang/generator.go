package golang

import (
	"context"
	"fmt"
	"path"
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

// Header opens every generated Go file.
const Header = "// Code generated by dtogen. DO NOT EDIT."

// DefaultPackage is used when no package name is configured.
const DefaultPackage = "types"

const deprecatedNote = "// Deprecated: no longer supported."

var initialisms = map[string]string{
	"id":   "ID",
	"url":  "URL",
	"uri":  "URI",
	"api":  "API",
	"http": "HTTP",
	"json": "JSON",
	"uuid": "UUID",
	"guid": "GUID",
	"sku":  "SKU",
}

// ExportedName renders n as an exported Go identifier, upper-casing common
// initialisms: "order_id" becomes "OrderID".
func ExportedName(n naming.Name) string {
	var sb strings.Builder
	for _, p := range n.Parts() {
		if up, ok := initialisms[p]; ok {
			sb.WriteString(up)
			continue
		}
		sb.WriteString(strings.ToUpper(p[:1]) + p[1:])
	}
	return sb.String()
}

// Generator generates Go code from a solved type graph
type Generator struct {
	packageName string
	comments    bool
}

// NewGenerator creates a new Go code generator
func NewGenerator(opts emit.Options) *Generator {
	pkg := opts.Package
	if pkg == "" {
		pkg = DefaultPackage
	}
	return &Generator{packageName: pkg, comments: opts.Comments}
}

// Language returns the name of the target language
func (g *Generator) Language() string {
	return "go"
}

// FileExtension returns the file extension for generated files
func (g *Generator) FileExtension() string {
	return ".go"
}

type scope struct {
	imports *emit.ImportSet
}

// RenderGroup renders one struct per model of the group. Every group shares
// one package, so references to other groups need no import.
func (g *Generator) RenderGroup(ctx context.Context, graph *typegraph.Graph, group *typegraph.DtoGroup) ([]emit.Artifact, error) {
	sc := &scope{imports: emit.NewImportSet()}
	body := writer.NewWriter("\t")

	for _, m := range group.Models {
		if err := g.generateType(body, sc, m); err != nil {
			return nil, err
		}
		body.BlankLine()
	}

	file := group.Name.Snake()
	if ns := group.Namespace.Dotted(); ns != "" {
		file = strings.ReplaceAll(ns, ".", "_") + "_" + file
	}
	zerolog.Ctx(ctx).Debug().Str("target", g.Language()).Str("group", group.Name.String()).Msg("group rendered")
	return []emit.Artifact{{Path: file + ".gen" + g.FileExtension(), Content: g.file(sc.imports, body)}}, nil
}

// file assembles header, package clause, imports and body.
func (g *Generator) file(imports *emit.ImportSet, body *writer.Writer) []byte {
	w := writer.NewWriter("\t")
	w.WriteLine(Header)
	w.BlankLine()
	w.WriteLinef("package %s", g.packageName)
	w.BlankLine()
	writeImports(w, imports)
	w.Write(body.String())
	return w.Bytes()
}

// writeImports writes the standard library block, then the rest.
func writeImports(w *writer.Writer, imports *emit.ImportSet) {
	if imports.Len() == 0 {
		return
	}
	var std, other []string
	for _, module := range imports.Modules() {
		if strings.Contains(strings.SplitN(module, "/", 2)[0], ".") {
			other = append(other, module)
		} else {
			std = append(std, module)
		}
	}
	if imports.Len() == 1 {
		w.WriteLinef("import %q", imports.Modules()[0])
		w.BlankLine()
		return
	}
	w.WriteLine("import (")
	w.Indent()
	for _, m := range std {
		w.WriteLinef("%q", m)
	}
	if len(std) > 0 && len(other) > 0 {
		w.Newline()
	}
	for _, m := range other {
		w.WriteLinef("%q", m)
	}
	w.Dedent()
	w.WriteLine(")")
	w.BlankLine()
}

type structField struct {
	comments []string
	name     string
	typ      string
	tag      string
}

// generateType generates a Go struct for a model
func (g *Generator) generateType(w *writer.Writer, sc *scope, m *typegraph.ModelSpec) error {
	doc := g.comments && m.Doc != ""
	if doc {
		w.Comment("//", m.Doc)
	}
	if m.Deprecated {
		if doc {
			w.WriteLine("//")
		}
		w.WriteLine(deprecatedNote)
	}

	name := m.DisplayName
	if m.GenericParam != "" {
		name += "[" + m.GenericParam + " any]"
	}

	fields := m.RenderedFields()
	if len(fields) == 0 {
		w.WriteLinef("type %s struct{}", name)
		return nil
	}

	rows := make([]structField, 0, len(fields))
	for _, f := range fields {
		typ, err := g.mapToGoType(sc, f.Type)
		if err != nil {
			return errors.Wrapf(err, "field %s", f.Path())
		}
		row := structField{
			name: ExportedName(f.Name),
			typ:  typ,
			tag:  structTag(f),
		}
		if g.comments && f.Options.Doc != "" {
			row.comments = append(row.comments, commentLines(f.Options.Doc)...)
		}
		if f.Options.Deprecated {
			row.comments = append(row.comments, deprecatedNote)
		}
		rows = append(rows, row)
	}

	w.WriteLinef("type %s struct {", name)
	w.Indent()
	writeAligned(w, rows)
	w.Dedent()
	w.WriteLine("}")
	return nil
}

func commentLines(text string) []string {
	var out []string
	for _, l := range strings.Split(strings.TrimSpace(text), "\n") {
		if l = strings.TrimSpace(l); l == "" {
			out = append(out, "//")
		} else {
			out = append(out, "// "+l)
		}
	}
	return out
}

// writeAligned writes struct fields in gofmt layout: name, type and tag
// columns align within each run of fields not broken by a comment.
func writeAligned(w *writer.Writer, rows []structField) {
	for start := 0; start < len(rows); {
		end := start + 1
		for end < len(rows) && len(rows[end].comments) == 0 {
			end++
		}
		nameWidth, typeWidth := 0, 0
		for _, r := range rows[start:end] {
			nameWidth = max(nameWidth, len(r.name))
			typeWidth = max(typeWidth, len(r.typ))
		}
		for _, r := range rows[start:end] {
			for _, c := range r.comments {
				w.WriteLine(c)
			}
			w.WriteLinef("%-*s %-*s %s", nameWidth, r.name, typeWidth, r.typ, r.tag)
		}
		start = end
	}
}

// structTag builds the json tag and, when the field carries constraints,
// a validate tag.
func structTag(f *typegraph.FieldSpec) string {
	jsonTag := f.WireName()
	if f.Optional() {
		jsonTag += ",omitempty"
	}
	tag := fmt.Sprintf("json:%q", jsonTag)

	var rules []string
	if f.Options.Required && !f.Optional() {
		rules = append(rules, "required")
	}
	if f.Options.MinLength != nil {
		rules = append(rules, fmt.Sprintf("min=%d", *f.Options.MinLength))
	}
	if f.Options.MaxLength != nil {
		rules = append(rules, fmt.Sprintf("max=%d", *f.Options.MaxLength))
	}
	if f.Options.URL {
		rules = append(rules, "url")
	}
	if len(rules) > 0 {
		tag += fmt.Sprintf(" validate:%q", strings.Join(rules, ","))
	}
	return "`" + tag + "`"
}

// mapToGoType maps a resolved node to a Go type expression
func (g *Generator) mapToGoType(sc *scope, n typegraph.Node) (string, error) {
	switch x := n.(type) {
	case *typegraph.Primitive:
		return g.primitiveType(sc, x.Type), nil
	case *typegraph.Nullable:
		inner, err := g.mapToGoType(sc, x.Inner)
		if err != nil {
			return "", err
		}
		// Slices and maps already have a nil value.
		if strings.HasPrefix(inner, "[]") || strings.HasPrefix(inner, "map[") || inner == "any" {
			return inner, nil
		}
		return "*" + inner, nil
	case *typegraph.Array:
		inner, err := g.mapToGoType(sc, x.Inner)
		if err != nil {
			return "", err
		}
		return strings.Repeat("[]", x.Rank) + inner, nil
	case *typegraph.Enumerable:
		inner, err := g.mapToGoType(sc, x.Inner)
		if err != nil {
			return "", err
		}
		return "[]" + inner, nil
	case *typegraph.Dictionary:
		key, _ := typegraph.StripNullable(x.Key)
		if !comparableKey(key) {
			return "", errors.Renderingf("dictionary key %s cannot be a Go map key", x.Key)
		}
		k, err := g.mapToGoType(sc, key)
		if err != nil {
			return "", err
		}
		v, err := g.mapToGoType(sc, x.Value)
		if err != nil {
			return "", err
		}
		return "map[" + k + "]" + v, nil
	case *typegraph.EnumRef:
		return x.Enum.DisplayName, nil
	case *typegraph.ModelRef:
		if x.Model.GenericParam != "" {
			return x.Model.DisplayName + "[any]", nil
		}
		return x.Model.DisplayName, nil
	case *typegraph.OpaqueRef:
		return g.opaqueType(sc, x), nil
	case *typegraph.GenericParameter:
		return x.Name, nil
	case *typegraph.Generic:
		var container string
		switch c := x.Container.(type) {
		case *typegraph.ModelRef:
			container = c.Model.DisplayName
		case *typegraph.OpaqueRef:
			container = g.opaqueType(sc, c)
		default:
			return "", errors.Renderingf("generic container %s is neither a model nor an opaque type", x.Container)
		}
		arg, err := g.mapToGoType(sc, x.Argument)
		if err != nil {
			return "", err
		}
		return container + "[" + arg + "]", nil
	}
	return "", errors.Renderingf("cannot render %s as a Go type", n)
}

func comparableKey(n typegraph.Node) bool {
	switch k := n.(type) {
	case *typegraph.Primitive:
		return k.Type != typegraph.Blob && k.Type != typegraph.Object
	case *typegraph.EnumRef:
		return true
	}
	return false
}

// opaqueType qualifies an opaque type by the last element of its import
// path when the source is a Go import path; any other source means the type
// lives in the generated package itself.
func (g *Generator) opaqueType(sc *scope, o *typegraph.OpaqueRef) string {
	from := o.ImportFrom
	if strings.HasPrefix(from, ".") || strings.HasPrefix(from, "@") || from == "" {
		return o.Name
	}
	sc.imports.AddModule(from)
	return path.Base(from) + "." + o.Name
}

func (g *Generator) primitiveType(sc *scope, p typegraph.PrimitiveType) string {
	switch p {
	case typegraph.Int32:
		return "int32"
	case typegraph.Int64:
		return "int64"
	case typegraph.Float32:
		return "float32"
	case typegraph.Float64, typegraph.Decimal:
		return "float64"
	case typegraph.Bool:
		return "bool"
	case typegraph.DateTime:
		sc.imports.AddModule("time")
		return "time.Time"
	case typegraph.Blob:
		return "[]byte"
	case typegraph.String, typegraph.GUID, typegraph.FullTextVector:
		return "string"
	default:
		return "any"
	}
}

func memberConst(e *typegraph.EnumSpec, m typegraph.EnumMember) string {
	return e.DisplayName + ExportedName(m.Name)
}

// RenderEnums renders enums.gen.go with a Valid method per enum, and the
// names and name-set files for flagged enums.
func (g *Generator) RenderEnums(ctx context.Context, enums []*typegraph.EnumSpec) ([]emit.Artifact, error) {
	if len(enums) == 0 {
		return nil, nil
	}
	body := writer.NewWriter("\t")
	var flagged []*typegraph.EnumSpec
	for _, e := range enums {
		g.generateEnum(body, e)
		body.BlankLine()
		if e.EmitValues {
			flagged = append(flagged, e)
		}
	}
	none := emit.NewImportSet()
	artifacts := []emit.Artifact{{Path: "enums.gen" + g.FileExtension(), Content: g.file(none, body)}}

	if len(flagged) > 0 {
		names := writer.NewWriter("\t")
		sets := writer.NewWriter("\t")
		for _, e := range flagged {
			names.WriteLinef("// %sNames lists the members of %s in declaration order.", e.DisplayName, e.DisplayName)
			names.Linef("var %sNames = []%s{", e.DisplayName, e.DisplayName)
			for _, m := range e.Members {
				names.Linef("%s,", memberConst(e, m))
			}
			names.Line("}")
			names.BlankLine()

			width := 0
			for _, m := range e.Members {
				width = max(width, len(memberConst(e, m))+1)
			}
			sets.WriteLinef("// %sNameSet holds the members of %s.", e.DisplayName, e.DisplayName)
			sets.Linef("var %sNameSet = map[%s]struct{}{", e.DisplayName, e.DisplayName)
			for _, m := range e.Members {
				sets.Linef("%-*s {},", width, memberConst(e, m)+":")
			}
			sets.Line("}")
			sets.BlankLine()
		}
		artifacts = append(artifacts,
			emit.Artifact{Path: "enum_names.gen" + g.FileExtension(), Content: g.file(none, names)},
			emit.Artifact{Path: "enum_sets.gen" + g.FileExtension(), Content: g.file(none, sets)},
		)
	}
	zerolog.Ctx(ctx).Debug().Str("target", g.Language()).Int("enums", len(enums)).Msg("enums rendered")
	return artifacts, nil
}

// generateEnum generates Go code for an enum type
func (g *Generator) generateEnum(w *writer.Writer, e *typegraph.EnumSpec) {
	if g.comments && e.Doc != "" {
		w.Comment("//", e.Doc)
	}
	if e.Deprecated {
		w.WriteLine(deprecatedNote)
	}
	base := "int"
	if e.StringKeyed {
		base = "string"
	}
	w.WriteLinef("type %s %s", e.DisplayName, base)
	if len(e.Members) == 0 {
		return
	}
	w.BlankLine()

	width := 0
	for _, m := range e.Members {
		width = max(width, len(memberConst(e, m)))
	}
	ordinals := e.Ordinals()
	w.WriteLine("const (")
	w.Indent()
	for i, m := range e.Members {
		if g.comments && m.Doc != "" {
			w.Comment("//", m.Doc)
		}
		if e.StringKeyed {
			w.WriteLinef("%-*s %s = %q", width, memberConst(e, m), e.DisplayName, m.Name.String())
		} else {
			w.WriteLinef("%-*s %s = %d", width, memberConst(e, m), e.DisplayName, ordinals[i])
		}
	}
	w.Dedent()
	w.WriteLine(")")

	w.BlankLine()
	w.WriteLinef("// Valid reports whether e is a declared %s.", e.DisplayName)
	w.WriteLinef("func (e %s) Valid() bool {", e.DisplayName)
	w.Indent()
	w.WriteLine("switch e {")
	consts := make([]string, len(e.Members))
	for i, m := range e.Members {
		consts[i] = memberConst(e, m)
	}
	w.WriteLinef("case %s:", strings.Join(consts, ", "))
	w.Indent()
	w.WriteLine("return true")
	w.Dedent()
	w.WriteLine("default:")
	w.Indent()
	w.WriteLine("return false")
	w.Dedent()
	w.WriteLine("}")
	w.Dedent()
	w.WriteLine("}")
}

// RenderContracts renders api.gen.go: the API interface and the per-verb
// route maps.
func (g *Generator) RenderContracts(ctx context.Context, graph *typegraph.Graph, handlers []*contract.HandlerSpec) ([]emit.Artifact, error) {
	if len(handlers) == 0 {
		return nil, nil
	}
	imports := emit.NewImportSet()
	imports.AddModule("context")
	body := writer.NewWriter("\t")

	body.WriteLine("// API is implemented by the request handlers.")
	body.WriteLine("type API interface {")
	body.Indent()
	for _, h := range handlers {
		if h.Deprecated {
			body.WriteLine(deprecatedNote)
		}
		body.WriteLinef("%s(ctx context.Context, query *%s) (*%s, error)",
			ExportedName(h.Name), h.Query.DisplayName, h.Response.DisplayName)
	}
	body.Dedent()
	body.WriteLine("}")

	for _, verb := range []metadata.Verb{metadata.VerbGet, metadata.VerbPost} {
		var routes []*contract.HandlerSpec
		width := 0
		for _, h := range handlers {
			if h.Verb == verb {
				routes = append(routes, h)
				width = max(width, len(ExportedName(h.Name))+3)
			}
		}
		sort.SliceStable(routes, func(i, j int) bool {
			return ExportedName(routes[i].Name) < ExportedName(routes[j].Name)
		})

		body.BlankLine()
		body.WriteLinef("// %sRoutes maps handler names to their %s routes.", verb, verb)
		body.Linef("var %sRoutes = map[string]string{", verb)
		for _, h := range routes {
			body.Linef("%-*s %q,", width, fmt.Sprintf("%q:", ExportedName(h.Name)), h.Route)
		}
		body.Line("}")
	}

	zerolog.Ctx(ctx).Debug().Str("target", g.Language()).Int("handlers", len(handlers)).Msg("contracts rendered")
	return []emit.Artifact{{Path: "api.gen" + g.FileExtension(), Content: g.file(imports, body)}}, nil
}
