package protobuf

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/okra-platform/dtogen/internal/codegen/emit"
	"github.com/okra-platform/dtogen/internal/contract"
	"github.com/okra-platform/dtogen/internal/errors"
	"github.com/okra-platform/dtogen/internal/naming"
	"github.com/okra-platform/dtogen/internal/typegraph"
)

const (
	header        = "// Code generated by dtogen. DO NOT EDIT."
	enumFile      = "enums.proto"
	contractFile  = "api.proto"
	timestampFile = "google/protobuf/timestamp.proto"
	structFile    = "google/protobuf/struct.proto"
)

// Generator generates protobuf definitions from a solved type graph
type Generator struct {
	packageName string
	comments    bool
}

// NewGenerator creates a new protobuf generator
func NewGenerator(opts emit.Options) *Generator {
	return &Generator{
		packageName: opts.Package,
		comments:    opts.Comments,
	}
}

// Language returns the name of the target language
func (g *Generator) Language() string {
	return "proto"
}

// FileExtension returns the file extension for generated files
func (g *Generator) FileExtension() string {
	return ".proto"
}

func groupFile(group *typegraph.DtoGroup) string {
	file := group.Name.Snake() + ".proto"
	if ns := group.Namespace.SnakePath(); ns != "" {
		file = ns + "/" + file
	}
	return file
}

// writeHeader writes the generated marker, syntax, package and imports.
func (g *Generator) writeHeader(buf *bytes.Buffer, imports *emit.ImportSet) {
	buf.WriteString(header + "\n\n")
	buf.WriteString("syntax = \"proto3\";\n\n")
	if g.packageName != "" {
		buf.WriteString(fmt.Sprintf("package %s;\n\n", g.packageName))
	}
	if imports.Len() > 0 {
		for _, m := range imports.Modules() {
			buf.WriteString(fmt.Sprintf("import %q;\n", m))
		}
		buf.WriteString("\n")
	}
}

func (g *Generator) writeDoc(buf *bytes.Buffer, indent, doc string) {
	if !g.comments || strings.TrimSpace(doc) == "" {
		return
	}
	for _, line := range strings.Split(strings.TrimSpace(doc), "\n") {
		buf.WriteString(strings.TrimRight(fmt.Sprintf("%s// %s", indent, strings.TrimSpace(line)), " ") + "\n")
	}
}

// finish trims the trailing blank line left by the last block.
func finish(buf *bytes.Buffer) []byte {
	return append(bytes.TrimRight(buf.Bytes(), "\n"), '\n')
}

// RenderGroup renders one message per model of the group
func (g *Generator) RenderGroup(ctx context.Context, graph *typegraph.Graph, group *typegraph.DtoGroup) ([]emit.Artifact, error) {
	var body bytes.Buffer
	imports := emit.NewImportSet()
	for _, m := range group.Models {
		if err := g.generateMessage(&body, imports, group, m); err != nil {
			return nil, err
		}
	}

	var buf bytes.Buffer
	g.writeHeader(&buf, imports)
	buf.Write(body.Bytes())

	zerolog.Ctx(ctx).Debug().Str("target", g.Language()).Str("group", group.Name.String()).Msg("group rendered")
	return []emit.Artifact{{Path: groupFile(group), Content: finish(&buf)}}, nil
}

// generateMessage generates a protobuf message definition
func (g *Generator) generateMessage(buf *bytes.Buffer, imports *emit.ImportSet, group *typegraph.DtoGroup, m *typegraph.ModelSpec) error {
	if m.GenericParam != "" {
		return errors.Renderingf("generic model %s cannot be rendered as a protobuf message", m.DisplayName)
	}
	g.writeDoc(buf, "", m.Doc)
	buf.WriteString(fmt.Sprintf("message %s {\n", m.DisplayName))
	if m.Deprecated {
		buf.WriteString("  option deprecated = true;\n")
	}

	for i, f := range m.RenderedFields() {
		decl, err := g.fieldType(imports, group, f)
		if err != nil {
			return errors.Wrapf(err, "field %s", f.Path())
		}
		g.writeDoc(buf, "  ", f.Options.Doc)
		options := ""
		if f.Options.Deprecated {
			options = " [deprecated = true]"
		}
		buf.WriteString(fmt.Sprintf("  %s %s = %d%s;\n", decl, naming.Parse(f.WireName()).Snake(), i+1, options))
	}
	buf.WriteString("}\n\n")
	return nil
}

// fieldType returns the type part of a field declaration including its
// label: "repeated LineItem", "optional string", "map<string, int32>".
func (g *Generator) fieldType(imports *emit.ImportSet, group *typegraph.DtoGroup, f *typegraph.FieldSpec) (string, error) {
	inner, nullable := typegraph.StripNullable(f.Type)

	switch x := inner.(type) {
	case *typegraph.Array, *typegraph.Enumerable:
		elem, err := g.repeatedElement(x)
		if err != nil {
			return "", err
		}
		t, err := g.mapToProtoType(imports, group, elem)
		if err != nil {
			return "", err
		}
		return "repeated " + t, nil
	case *typegraph.Dictionary:
		return g.mapType(imports, group, x)
	}

	t, err := g.mapToProtoType(imports, group, inner)
	if err != nil {
		return "", err
	}
	if nullable || f.Optional() {
		return "optional " + t, nil
	}
	return t, nil
}

// repeatedElement returns the element of a one-level container. Element
// nullability has no protobuf equivalent and is dropped.
func (g *Generator) repeatedElement(n typegraph.Node) (typegraph.Node, error) {
	var elem typegraph.Node
	switch x := n.(type) {
	case *typegraph.Array:
		if x.Rank > 1 {
			return nil, errors.Renderingf("array of rank %d cannot be rendered as a repeated field", x.Rank)
		}
		elem = x.Inner
	case *typegraph.Enumerable:
		elem = x.Inner
	}
	elem, _ = typegraph.StripNullable(elem)
	switch elem.(type) {
	case *typegraph.Array, *typegraph.Enumerable, *typegraph.Dictionary:
		return nil, errors.Renderingf("nested container %s cannot be rendered as a repeated field", n)
	}
	return elem, nil
}

func (g *Generator) mapType(imports *emit.ImportSet, group *typegraph.DtoGroup, d *typegraph.Dictionary) (string, error) {
	key, _ := typegraph.StripNullable(d.Key)
	k, ok := key.(*typegraph.Primitive)
	if !ok {
		return "", errors.Renderingf("map key %s must be an integer, bool or string scalar", d.Key)
	}
	var keyType string
	switch k.Type {
	case typegraph.Int32:
		keyType = "int32"
	case typegraph.Int64:
		keyType = "int64"
	case typegraph.Bool:
		keyType = "bool"
	case typegraph.String, typegraph.GUID, typegraph.FullTextVector:
		keyType = "string"
	default:
		return "", errors.Renderingf("map key %s must be an integer, bool or string scalar", d.Key)
	}

	value, _ := typegraph.StripNullable(d.Value)
	switch value.(type) {
	case *typegraph.Array, *typegraph.Enumerable, *typegraph.Dictionary:
		return "", errors.Renderingf("map value %s cannot be a container", d.Value)
	}
	v, err := g.mapToProtoType(imports, group, value)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("map<%s, %s>", keyType, v), nil
}

// mapToProtoType maps a scalar, enum, message or opaque node to a protobuf type
func (g *Generator) mapToProtoType(imports *emit.ImportSet, group *typegraph.DtoGroup, n typegraph.Node) (string, error) {
	switch x := n.(type) {
	case *typegraph.Primitive:
		switch x.Type {
		case typegraph.Int32:
			return "int32", nil
		case typegraph.Int64:
			return "int64", nil
		case typegraph.Float32:
			return "float", nil
		case typegraph.Float64, typegraph.Decimal:
			return "double", nil
		case typegraph.Bool:
			return "bool", nil
		case typegraph.Blob:
			return "bytes", nil
		case typegraph.DateTime:
			imports.AddModule(timestampFile)
			return "google.protobuf.Timestamp", nil
		case typegraph.Object:
			imports.AddModule(structFile)
			return "google.protobuf.Value", nil
		default:
			return "string", nil
		}
	case *typegraph.EnumRef:
		imports.AddModule(enumFile)
		return x.Enum.DisplayName, nil
	case *typegraph.ModelRef:
		if x.Model.GenericParam != "" {
			return "", errors.Renderingf("generic model %s cannot be rendered as a protobuf message", x.Model.DisplayName)
		}
		if x.Model.Group != group {
			imports.AddModule(groupFile(x.Model.Group))
		}
		return x.Model.DisplayName, nil
	case *typegraph.OpaqueRef:
		if strings.HasSuffix(x.ImportFrom, ".proto") {
			imports.AddModule(x.ImportFrom)
		}
		return x.Name, nil
	case *typegraph.Generic, *typegraph.GenericParameter:
		return "", errors.Renderingf("generic type %s has no protobuf equivalent", n)
	}
	return "", errors.Renderingf("cannot render %s as a protobuf type", n)
}

// RenderEnums renders enums.proto. Value names carry the enum prefix since
// protobuf enum values share the package scope.
func (g *Generator) RenderEnums(ctx context.Context, enums []*typegraph.EnumSpec) ([]emit.Artifact, error) {
	if len(enums) == 0 {
		return nil, nil
	}
	var buf bytes.Buffer
	g.writeHeader(&buf, emit.NewImportSet())
	for _, e := range enums {
		g.generateEnum(&buf, e)
	}
	zerolog.Ctx(ctx).Debug().Str("target", g.Language()).Int("enums", len(enums)).Msg("enums rendered")
	return []emit.Artifact{{Path: enumFile, Content: finish(&buf)}}, nil
}

// generateEnum generates a protobuf enum definition
func (g *Generator) generateEnum(buf *bytes.Buffer, e *typegraph.EnumSpec) {
	prefix := naming.Parse(e.DisplayName).ScreamingSnake()
	ordinals := e.Ordinals()

	g.writeDoc(buf, "", e.Doc)
	buf.WriteString(fmt.Sprintf("enum %s {\n", e.DisplayName))

	// proto3 requires the first value to be zero.
	sentinel := len(ordinals) == 0 || ordinals[0] != 0
	if sentinel {
		for _, o := range ordinals {
			if o == 0 {
				buf.WriteString("  option allow_alias = true;\n")
				break
			}
		}
	}
	if e.Deprecated {
		buf.WriteString("  option deprecated = true;\n")
	}
	if sentinel {
		buf.WriteString(fmt.Sprintf("  %s_UNSPECIFIED = 0;\n", prefix))
	}
	for i, m := range e.Members {
		g.writeDoc(buf, "  ", m.Doc)
		buf.WriteString(fmt.Sprintf("  %s_%s = %d;\n", prefix, m.Name.ScreamingSnake(), ordinals[i]))
	}
	buf.WriteString("}\n\n")
}

// RenderContracts renders api.proto with one service per controller. The
// HTTP verb and route of each rpc are kept in a comment.
func (g *Generator) RenderContracts(ctx context.Context, graph *typegraph.Graph, handlers []*contract.HandlerSpec) ([]emit.Artifact, error) {
	if len(handlers) == 0 {
		return nil, nil
	}
	imports := emit.NewImportSet()
	var controllers []string
	byController := map[string][]*contract.HandlerSpec{}
	for _, h := range handlers {
		for _, m := range []*typegraph.ModelSpec{h.Query, h.Response} {
			if m.GenericParam != "" {
				return nil, errors.Renderingf("handler %s uses generic model %s", h.ID(), m.DisplayName)
			}
			imports.AddModule(groupFile(m.Group))
		}
		name := h.Controller.Capital()
		if _, seen := byController[name]; !seen {
			controllers = append(controllers, name)
		}
		byController[name] = append(byController[name], h)
	}

	var buf bytes.Buffer
	g.writeHeader(&buf, imports)
	for _, name := range controllers {
		g.generateService(&buf, name, byController[name])
	}

	zerolog.Ctx(ctx).Debug().Str("target", g.Language()).Int("handlers", len(handlers)).Msg("contracts rendered")
	return []emit.Artifact{{Path: contractFile, Content: finish(&buf)}}, nil
}

// generateService generates a protobuf service definition
func (g *Generator) generateService(buf *bytes.Buffer, controller string, handlers []*contract.HandlerSpec) {
	buf.WriteString(fmt.Sprintf("service %sService {\n", controller))
	for _, h := range handlers {
		buf.WriteString(fmt.Sprintf("  // %s %s\n", h.Verb, h.Route))
		rpc := fmt.Sprintf("  rpc %s(%s) returns (%s)", h.Action.Capital(), h.Query.DisplayName, h.Response.DisplayName)
		if h.Deprecated {
			buf.WriteString(rpc + " {\n    option deprecated = true;\n  }\n")
		} else {
			buf.WriteString(rpc + ";\n")
		}
	}
	buf.WriteString("}\n\n")
}
