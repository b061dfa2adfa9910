package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okra-platform/dtogen/internal/errors"
)

func TestParseSchema_BasicTypes(t *testing.T) {
	// Test plan:
	// - Parse object, input, enum and scalar definitions
	// - Verify nullability and list nesting of field types
	// - Verify descriptions and directives are captured

	input := `
"A user."
type User @root {
  id: ID!
  name: String! @maxLength(n: 80)
  email: String
  tags: [String!]!
  matrix: [[Int]]
}

input UserQuery {
  id: ID!
}

enum UserRole @enum(strings: true) {
  ADMIN
  "Default."
  USER @value(is: 5)
}

scalar Money @opaque(from: "@lib/money")
`

	schema, err := ParseSchema(input)
	require.NoError(t, err)

	require.Len(t, schema.Types, 2)
	require.Len(t, schema.Enums, 1)
	require.Len(t, schema.Scalars, 1)
	assert.Empty(t, schema.Services)

	user := schema.Types[0]
	assert.Equal(t, "User", user.Name)
	assert.Equal(t, "A user.", user.Doc)
	assert.False(t, user.Input)
	assert.True(t, Directives(user.Directives).Has("root"))
	require.Len(t, user.Fields, 5)

	assert.Equal(t, "ID!", user.Fields[0].Type.String())
	assert.Equal(t, "String", user.Fields[2].Type.String())
	assert.Equal(t, "[String!]!", user.Fields[3].Type.String())
	assert.Equal(t, "[[Int]]", user.Fields[4].Type.String())

	max, ok := Directives(user.Fields[1].Directives).Get("maxLength")
	require.True(t, ok)
	assert.Equal(t, "80", max.Args["n"])

	assert.True(t, schema.Types[1].Input)
	assert.Equal(t, "UserQuery", schema.Types[1].Name)

	role := schema.Enums[0]
	assert.Equal(t, []string{"ADMIN", "USER"}, []string{role.Values[0].Name, role.Values[1].Name})
	assert.Equal(t, "Default.", role.Values[1].Doc)
	enumDirective, ok := Directives(role.Directives).Get("enum")
	require.True(t, ok)
	assert.Equal(t, "true", enumDirective.Args["strings"])

	assert.Equal(t, "Money", schema.Scalars[0].Name)
}

func TestParseSchema_ServicesAndMeta(t *testing.T) {
	// Test: service blocks and @dtogen metadata
	input := `@dtogen(namespace: "Shop.Orders")

service Orders @controller(name: "Order") @area(name: "Shop") {
  "Reads one order."
  get(request: GetOrderQuery!): Order! @get
  importOrder(upload: ImportForm!): Order @post @form @deprecated
}
`
	schema, err := ParseSchema(input)
	require.NoError(t, err)

	assert.Equal(t, "Shop.Orders", schema.Meta.Namespace)
	assert.Empty(t, schema.Types)
	require.Len(t, schema.Services, 1)

	svc := schema.Services[0]
	assert.Equal(t, "Orders", svc.Name)
	controller, ok := Directives(svc.Directives).Get("controller")
	require.True(t, ok)
	assert.Equal(t, "Order", controller.Args["name"])

	require.Len(t, svc.Methods, 2)
	get := svc.Methods[0]
	assert.Equal(t, "get", get.Name)
	assert.Equal(t, "Reads one order.", get.Doc)
	require.Len(t, get.Inputs, 1)
	assert.Equal(t, "GetOrderQuery!", get.Inputs[0].String())
	assert.Equal(t, "Order!", get.OutputType.String())

	imp := svc.Methods[1]
	assert.True(t, Directives(imp.Directives).Has("post"))
	assert.True(t, Directives(imp.Directives).Has("form"))
	assert.True(t, Directives(imp.Directives).Has("deprecated"))
}

func TestParseSchema_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"unclosed type", "type User {\n  id: ID!\n"},
		{"missing field type", "type User { id: }"},
		{"bad list", "type User { ids: [ID! }"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Test: syntax errors are configuration errors
			_, err := ParseSchema(tt.input)
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.ErrConfiguration))
		})
	}
}
