package typescript

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/okra-platform/dtogen/internal/codegen/emit"
	"github.com/okra-platform/dtogen/internal/codegen/writer"
	"github.com/okra-platform/dtogen/internal/contract"
	"github.com/okra-platform/dtogen/internal/errors"
	"github.com/okra-platform/dtogen/internal/metadata"
	"github.com/okra-platform/dtogen/internal/typegraph"
)

// Header opens every generated file.
const Header = "// <auto-generated />"

// Module names of the shared files, relative to the output root.
const (
	EnumModule     = "enum.gen"
	NamesModule    = "enum-names.gen"
	SetsModule     = "enum-sets.gen"
	ContractModule = "api.gen"
)

// Generator generates TypeScript declarations from a solved type graph
type Generator struct {
	opts emit.Options
}

// NewGenerator creates a new TypeScript code generator
func NewGenerator(opts emit.Options) *Generator {
	return &Generator{opts: opts}
}

// Language returns the name of the target language
func (g *Generator) Language() string {
	return "typescript"
}

// FileExtension returns the file extension for generated files
func (g *Generator) FileExtension() string {
	return ".ts"
}

// scope is the per-file state of a render: where the file lives, which
// group it belongs to and what it has to import.
type scope struct {
	module  string
	group   *typegraph.DtoGroup
	imports *emit.ImportSet
}

func newScope(module string, group *typegraph.DtoGroup) *scope {
	return &scope{module: module, group: group, imports: emit.NewImportSet()}
}

func (s *scope) importFrom(module, name string) {
	s.imports.Add(emit.RelativeImport(s.module, module), name)
}

// RenderGroup renders one interface per model of the group, in discovery
// order.
func (g *Generator) RenderGroup(ctx context.Context, graph *typegraph.Graph, group *typegraph.DtoGroup) ([]emit.Artifact, error) {
	module := group.Path() + ".gen"
	sc := newScope(module, group)
	body := writer.NewWriter("  ")

	for _, m := range group.Models {
		if err := g.writeModel(body, sc, m); err != nil {
			return nil, err
		}
	}

	w := writer.NewWriter("  ")
	w.WriteLine(Header)
	w.BlankLine()
	writeImports(w, sc.imports)
	w.Write(body.String())

	zerolog.Ctx(ctx).Debug().Str("target", g.Language()).Str("group", group.Name.String()).Msg("group rendered")
	return []emit.Artifact{{Path: module + g.FileExtension(), Content: w.Bytes()}}, nil
}

func (g *Generator) writeModel(w *writer.Writer, sc *scope, m *typegraph.ModelSpec) error {
	var doc []string
	if g.opts.Comments {
		doc = append(doc, m.Doc)
	}
	if m.Deprecated {
		doc = append(doc, "@deprecated")
	}
	w.DocBlock(doc...)

	name := m.DisplayName
	if m.GenericParam != "" {
		name += "<" + m.GenericParam + ">"
	}
	w.Linef("export interface %s {", name)

	for _, f := range m.RenderedFields() {
		var fieldDoc []string
		if g.opts.Comments {
			fieldDoc = append(fieldDoc, f.Options.Doc)
		}
		if f.Options.Deprecated {
			fieldDoc = append(fieldDoc, "@deprecated")
		}
		w.DocBlock(fieldDoc...)

		inner, _ := typegraph.StripNullable(f.Type)
		expr, err := g.typeExpr(sc, inner)
		if err != nil {
			return errors.Wrapf(err, "field %s", f.Path())
		}
		if f.Optional() {
			w.Linef("%s?: %s | null | undefined", f.WireName(), expr)
		} else {
			w.Linef("%s: %s", f.WireName(), expr)
		}
	}

	w.Line("}")
	w.BlankLine()
	return nil
}

// typeExpr maps a node to a TypeScript type expression and records the
// imports it needs.
func (g *Generator) typeExpr(sc *scope, n typegraph.Node) (string, error) {
	switch x := n.(type) {
	case *typegraph.Primitive:
		return primitiveType(x.Type), nil
	case *typegraph.Nullable:
		inner, err := g.typeExpr(sc, x.Inner)
		if err != nil {
			return "", err
		}
		return "(" + inner + " | null | undefined)", nil
	case *typegraph.Array:
		inner, err := g.typeExpr(sc, x.Inner)
		if err != nil {
			return "", err
		}
		return inner + strings.Repeat("[]", x.Rank), nil
	case *typegraph.Enumerable:
		inner, err := g.typeExpr(sc, x.Inner)
		if err != nil {
			return "", err
		}
		return inner + "[]", nil
	case *typegraph.Dictionary:
		return g.dictionaryExpr(sc, x)
	case *typegraph.EnumRef:
		sc.importFrom(EnumModule, x.Enum.DisplayName)
		return x.Enum.DisplayName, nil
	case *typegraph.ModelRef:
		name := g.modelName(sc, x.Model)
		if x.Model.GenericParam != "" {
			name += "<unknown>"
		}
		return name, nil
	case *typegraph.OpaqueRef:
		sc.imports.Add(x.ImportFrom, x.Name)
		return x.Name, nil
	case *typegraph.GenericParameter:
		return x.Name, nil
	case *typegraph.Generic:
		container, err := g.containerName(sc, x.Container)
		if err != nil {
			return "", err
		}
		arg, err := g.typeExpr(sc, x.Argument)
		if err != nil {
			return "", err
		}
		return container + "<" + arg + ">", nil
	}
	return "", errors.Renderingf("cannot render %s as a TypeScript type", n)
}

func (g *Generator) modelName(sc *scope, m *typegraph.ModelSpec) string {
	if m.Group != sc.group {
		sc.importFrom(m.Group.Path()+".gen", m.DisplayName)
	}
	return m.DisplayName
}

func (g *Generator) containerName(sc *scope, n typegraph.Node) (string, error) {
	switch c := n.(type) {
	case *typegraph.ModelRef:
		return g.modelName(sc, c.Model), nil
	case *typegraph.OpaqueRef:
		sc.imports.Add(c.ImportFrom, c.Name)
		return c.Name, nil
	}
	return "", errors.Renderingf("generic container %s is neither a model nor an opaque type", n)
}

func (g *Generator) dictionaryExpr(sc *scope, d *typegraph.Dictionary) (string, error) {
	value, err := g.typeExpr(sc, d.Value)
	if err != nil {
		return "", err
	}
	key, _ := typegraph.StripNullable(d.Key)
	switch k := key.(type) {
	case *typegraph.Primitive:
		switch {
		case k.Type.IsNumeric():
			return fmt.Sprintf("{ [key: number]: %s }", value), nil
		case k.Type == typegraph.String || k.Type == typegraph.GUID || k.Type == typegraph.DateTime:
			return fmt.Sprintf("{ [key: string]: %s }", value), nil
		}
	case *typegraph.EnumRef:
		sc.importFrom(EnumModule, k.Enum.DisplayName)
		return fmt.Sprintf("Partial<Record<%s, %s>>", k.Enum.DisplayName, value), nil
	}
	return "", errors.Renderingf("dictionary key %s cannot be rendered as a TypeScript index type", d.Key)
}

func primitiveType(p typegraph.PrimitiveType) string {
	switch p {
	case typegraph.Int32, typegraph.Int64, typegraph.Float32, typegraph.Float64, typegraph.Decimal:
		return "number"
	case typegraph.Bool:
		return "boolean"
	case typegraph.String, typegraph.DateTime, typegraph.GUID, typegraph.FullTextVector:
		return "string"
	case typegraph.Blob:
		return "Blob"
	default:
		return "unknown"
	}
}

func writeImports(w *writer.Writer, imports *emit.ImportSet) {
	if imports.Len() == 0 {
		return
	}
	for _, module := range imports.Modules() {
		w.Line("import {")
		for _, name := range imports.Names(module) {
			w.Linef("%s,", name)
		}
		w.Linef("} from '%s'", module)
	}
	w.BlankLine()
}

// RenderEnums renders enum.gen.ts with every enum and, when any enum asks
// for them, the names and name-set files.
func (g *Generator) RenderEnums(ctx context.Context, enums []*typegraph.EnumSpec) ([]emit.Artifact, error) {
	if len(enums) == 0 {
		return nil, nil
	}

	w := writer.NewWriter("  ")
	w.WriteLine(Header)
	w.BlankLine()

	var flagged []*typegraph.EnumSpec
	for _, e := range enums {
		g.writeEnum(w, e)
		if e.EmitValues {
			flagged = append(flagged, e)
		}
	}
	artifacts := []emit.Artifact{{Path: EnumModule + g.FileExtension(), Content: w.Bytes()}}

	if len(flagged) > 0 {
		artifacts = append(artifacts,
			emit.Artifact{Path: NamesModule + g.FileExtension(), Content: renderNames(flagged)},
			emit.Artifact{Path: SetsModule + g.FileExtension(), Content: renderSets(flagged)},
		)
	}
	zerolog.Ctx(ctx).Debug().Str("target", g.Language()).Int("enums", len(enums)).Msg("enums rendered")
	return artifacts, nil
}

func (g *Generator) writeEnum(w *writer.Writer, e *typegraph.EnumSpec) {
	var doc []string
	if g.opts.Comments {
		doc = append(doc, e.Doc)
	}
	if e.Deprecated {
		doc = append(doc, "@deprecated")
	}
	w.DocBlock(doc...)

	w.Linef("export enum %s {", e.DisplayName)
	ordinals := e.Ordinals()
	for i, m := range e.Members {
		if g.opts.Comments {
			w.DocBlock(m.Doc)
		}
		if e.StringKeyed {
			w.Linef("%s = '%s',", m.Name.String(), m.Name.String())
		} else {
			w.Linef("%s = %d,", m.Name.String(), ordinals[i])
		}
	}
	w.Line("}")
	w.BlankLine()
}

func renderNames(enums []*typegraph.EnumSpec) []byte {
	imports := emit.NewImportSet()
	body := writer.NewWriter("  ")
	for _, e := range enums {
		imports.Add(emit.RelativeImport(NamesModule, EnumModule), e.DisplayName)
		body.Linef("export const %sNames: %s[] = [", e.DisplayName, e.DisplayName)
		for _, m := range e.Members {
			body.Linef("%s.%s,", e.DisplayName, m.Name.String())
		}
		body.Line("]")
		body.BlankLine()
	}

	w := writer.NewWriter("  ")
	w.WriteLine(Header)
	w.BlankLine()
	writeImports(w, imports)
	w.Write(body.String())
	return w.Bytes()
}

func renderSets(enums []*typegraph.EnumSpec) []byte {
	imports := emit.NewImportSet()
	body := writer.NewWriter("  ")
	for _, e := range enums {
		imports.Add(emit.RelativeImport(SetsModule, EnumModule), e.DisplayName)
		imports.Add(emit.RelativeImport(SetsModule, NamesModule), e.DisplayName+"Names")
		body.Linef("export const %sNameSet: Set<%s> = new Set(%sNames)", e.DisplayName, e.DisplayName, e.DisplayName)
		body.BlankLine()
	}

	w := writer.NewWriter("  ")
	w.WriteLine(Header)
	w.BlankLine()
	writeImports(w, imports)
	w.Write(body.String())
	return w.Bytes()
}

// RenderContracts renders api.gen.ts: one Api interface with a method per
// handler and the GET and POST route maps.
func (g *Generator) RenderContracts(ctx context.Context, graph *typegraph.Graph, handlers []*contract.HandlerSpec) ([]emit.Artifact, error) {
	if len(handlers) == 0 {
		return nil, nil
	}
	sc := newScope(ContractModule, nil)
	body := writer.NewWriter("  ")

	body.Line("export interface Api {")
	for _, h := range handlers {
		query := g.modelName(sc, h.Query)
		response := g.modelName(sc, h.Response)
		if h.Form {
			query += " | FormData"
		}
		if h.Deprecated {
			body.DocBlock("@deprecated")
		}
		body.Linef("%s(query: %s): Promise<%s>", h.Name.Camel(), query, response)
	}
	body.Line("}")

	for _, verb := range []metadata.Verb{metadata.VerbGet, metadata.VerbPost} {
		body.BlankLine()
		body.Linef("export const %s = {", verb)
		for _, h := range handlers {
			if h.Verb == verb {
				body.Linef("%s: '%s',", h.Name.Camel(), h.Route)
			}
		}
		body.Line("} as const")
	}

	w := writer.NewWriter("  ")
	w.WriteLine(Header)
	w.BlankLine()
	writeImports(w, sc.imports)
	w.Write(body.String())

	zerolog.Ctx(ctx).Debug().Str("target", g.Language()).Int("handlers", len(handlers)).Msg("contracts rendered")
	return []emit.Artifact{{Path: ContractModule + g.FileExtension(), Content: w.Bytes()}}, nil
}
