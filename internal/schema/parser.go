package schema

import (
	"strconv"
	"strings"

	"github.com/wundergraph/graphql-go-tools/v2/pkg/ast"
	"github.com/wundergraph/graphql-go-tools/v2/pkg/astparser"

	"github.com/okra-platform/dtogen/internal/errors"
)

// ParseSchema parses a GraphQL schema (after preprocessing) into our Schema model
func ParseSchema(input string) (*Schema, error) {
	// First preprocess the input
	preprocessed := PreprocessGraphQL(input)

	// Parse the GraphQL document
	doc, report := astparser.ParseGraphqlDocumentString(preprocessed)
	if report.HasErrors() {
		return nil, errors.Configurationf("failed to parse GraphQL: %s", report.Error())
	}

	schema := &Schema{}

	// Walk through definitions
	for i := range doc.RootNodes {
		node := &doc.RootNodes[i]
		switch node.Kind {
		case ast.NodeKindObjectTypeDefinition:
			parseObjectType(&doc, node.Ref, schema)
		case ast.NodeKindInputObjectTypeDefinition:
			parseInputObjectType(&doc, node.Ref, schema)
		case ast.NodeKindEnumTypeDefinition:
			parseEnumType(&doc, node.Ref, schema)
		case ast.NodeKindScalarTypeDefinition:
			scalarDef := doc.ScalarTypeDefinitions[node.Ref]
			schema.Scalars = append(schema.Scalars, ScalarType{
				Name:       doc.Input.ByteSliceString(scalarDef.Name),
				Directives: parseDirectives(&doc, scalarDef.Directives),
			})
		}
	}

	return schema, nil
}

func parseObjectType(doc *ast.Document, ref int, schema *Schema) {
	typeDef := doc.ObjectTypeDefinitions[ref]
	typeName := doc.Input.ByteSliceString(typeDef.Name)

	// The _Schema type carries the @dtogen metadata
	if typeName == MetaTypeName {
		parseMetadata(doc, typeDef, schema)
		return
	}

	// Check if this is a service (type Service_*)
	if strings.HasPrefix(typeName, ServicePrefix) {
		parseService(doc, typeDef, strings.TrimPrefix(typeName, ServicePrefix), schema)
		return
	}

	objType := ObjectType{
		Name:       typeName,
		Doc:        getDescription(doc, typeDef.Description),
		Directives: parseDirectives(doc, typeDef.Directives),
	}
	for _, fieldRef := range typeDef.FieldsDefinition.Refs {
		fieldDef := doc.FieldDefinitions[fieldRef]
		objType.Fields = append(objType.Fields, Field{
			Name:       doc.Input.ByteSliceString(fieldDef.Name),
			Doc:        getDescription(doc, fieldDef.Description),
			Type:       parseType(doc, fieldDef.Type),
			Directives: parseDirectives(doc, fieldDef.Directives),
		})
	}
	schema.Types = append(schema.Types, objType)
}

func parseInputObjectType(doc *ast.Document, ref int, schema *Schema) {
	typeDef := doc.InputObjectTypeDefinitions[ref]
	objType := ObjectType{
		Name:       doc.Input.ByteSliceString(typeDef.Name),
		Doc:        getDescription(doc, typeDef.Description),
		Input:      true,
		Directives: parseDirectives(doc, typeDef.Directives),
	}
	for _, valueRef := range typeDef.InputFieldsDefinition.Refs {
		valueDef := doc.InputValueDefinitions[valueRef]
		objType.Fields = append(objType.Fields, Field{
			Name:       doc.Input.ByteSliceString(valueDef.Name),
			Doc:        getDescription(doc, valueDef.Description),
			Type:       parseType(doc, valueDef.Type),
			Directives: parseDirectives(doc, valueDef.Directives),
		})
	}
	schema.Types = append(schema.Types, objType)
}

func parseEnumType(doc *ast.Document, ref int, schema *Schema) {
	enumDef := doc.EnumTypeDefinitions[ref]

	enumType := EnumType{
		Name:       doc.Input.ByteSliceString(enumDef.Name),
		Doc:        getDescription(doc, enumDef.Description),
		Directives: parseDirectives(doc, enumDef.Directives),
	}
	for _, valueRef := range enumDef.EnumValuesDefinition.Refs {
		valueDef := doc.EnumValueDefinitions[valueRef]
		enumType.Values = append(enumType.Values, EnumValue{
			Name:       doc.Input.ByteSliceString(valueDef.EnumValue),
			Doc:        getDescription(doc, valueDef.Description),
			Directives: parseDirectives(doc, valueDef.Directives),
		})
	}

	schema.Enums = append(schema.Enums, enumType)
}

func parseMetadata(doc *ast.Document, typeDef ast.ObjectTypeDefinition, schema *Schema) {
	// Find the field with the @dtogen directive
	for _, fieldRef := range typeDef.FieldsDefinition.Refs {
		fieldDef := doc.FieldDefinitions[fieldRef]
		for _, d := range parseDirectives(doc, fieldDef.Directives) {
			if d.Name == "dtogen" {
				schema.Meta.Namespace = d.Args["namespace"]
				return
			}
		}
	}
}

func parseService(doc *ast.Document, typeDef ast.ObjectTypeDefinition, serviceName string, schema *Schema) {
	service := Service{
		Name:       serviceName,
		Doc:        getDescription(doc, typeDef.Description),
		Directives: parseDirectives(doc, typeDef.Directives),
	}

	// Methods are the fields of the service type
	for _, fieldRef := range typeDef.FieldsDefinition.Refs {
		fieldDef := doc.FieldDefinitions[fieldRef]
		method := Method{
			Name:       doc.Input.ByteSliceString(fieldDef.Name),
			Doc:        getDescription(doc, fieldDef.Description),
			OutputType: parseType(doc, fieldDef.Type),
			Directives: parseDirectives(doc, fieldDef.Directives),
		}
		for _, argRef := range fieldDef.ArgumentsDefinition.Refs {
			argDef := doc.InputValueDefinitions[argRef]
			method.Inputs = append(method.Inputs, parseType(doc, argDef.Type))
		}
		service.Methods = append(service.Methods, method)
	}

	schema.Services = append(schema.Services, service)
}

func parseType(doc *ast.Document, typeRef int) *TypeExpr {
	t := doc.Types[typeRef]
	switch t.TypeKind {
	case ast.TypeKindNonNull:
		inner := parseType(doc, t.OfType)
		inner.NonNull = true
		return inner
	case ast.TypeKindList:
		return &TypeExpr{Elem: parseType(doc, t.OfType)}
	default:
		return &TypeExpr{Name: doc.Input.ByteSliceString(t.Name)}
	}
}

func parseDirectives(doc *ast.Document, directives ast.DirectiveList) []Directive {
	var result []Directive
	for _, directiveRef := range directives.Refs {
		directive := doc.Directives[directiveRef]
		result = append(result, Directive{
			Name: doc.Input.ByteSliceString(directive.Name),
			Args: parseDirectiveArgs(doc, directive),
		})
	}
	return result
}

func parseDirectiveArgs(doc *ast.Document, directive ast.Directive) map[string]string {
	args := make(map[string]string)
	for _, argRef := range directive.Arguments.Refs {
		arg := doc.Arguments[argRef]
		args[doc.Input.ByteSliceString(arg.Name)] = parseValue(doc, doc.ArgumentValue(argRef))
	}
	return args
}

func parseValue(doc *ast.Document, value ast.Value) string {
	switch value.Kind {
	case ast.ValueKindString:
		return doc.StringValueContentString(value.Ref)

	case ast.ValueKindEnum:
		// For enum values, the Ref points to the EnumValue
		if value.Ref >= 0 && value.Ref < len(doc.EnumValues) {
			return doc.Input.ByteSliceString(doc.EnumValues[value.Ref].Name)
		}

	case ast.ValueKindBoolean:
		// The Ref is either 0 (false) or 1 (true)
		if value.Ref >= 0 && value.Ref < len(doc.BooleanValues) {
			return strconv.FormatBool(bool(doc.BooleanValues[value.Ref]))
		}

	case ast.ValueKindInteger:
		return strconv.FormatInt(doc.IntValueAsInt(value.Ref), 10)
	}

	return ""
}

func getDescription(doc *ast.Document, desc ast.Description) string {
	if !desc.IsDefined {
		return ""
	}
	return strings.TrimSpace(doc.Input.ByteSliceString(desc.Content))
}
