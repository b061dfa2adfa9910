package schema

import (
	"regexp"
)

// metaDirectiveRegex matches @dtogen(...) at the start of a line.
// Uses a more robust pattern that handles nested parentheses better by matching
// balanced content or escaping after a reasonable depth.
var metaDirectiveRegex = regexp.MustCompile(`(?m)^@dtogen\s*\(((?:[^()]*|\([^)]*\))*)\)`)

// serviceStartRegex matches service declarations at the start of a line,
// with optional directives before the opening brace.
var serviceStartRegex = regexp.MustCompile(`(?m)^service\s+(\w+)([^{\n]*){`)

// MetaTypeName is the synthetic type carrying schema-level metadata.
const MetaTypeName = "_Schema"

// ServicePrefix prefixes the synthetic types that carry service blocks.
const ServicePrefix = "Service_"

// PreprocessGraphQL rewrites `@dtogen(...)` and `service` blocks into valid GraphQL `type` definitions.
func PreprocessGraphQL(input string) string {
	// 1. Rewrite @dtogen(...) to a _Schema type with a properly typed field
	// The field needs a type to be valid GraphQL
	input = metaDirectiveRegex.ReplaceAllStringFunc(input, func(match string) string {
		args := metaDirectiveRegex.FindStringSubmatch(match)[1]
		return `type ` + MetaTypeName + ` {
  _: String @dtogen(` + args + `)
}`
	})

	// 2. Rewrite service blocks to type Service_X {
	input = serviceStartRegex.ReplaceAllStringFunc(input, func(match string) string {
		groups := serviceStartRegex.FindStringSubmatch(match)
		return `type ` + ServicePrefix + groups[1] + groups[2] + `{`
	})

	return input
}
