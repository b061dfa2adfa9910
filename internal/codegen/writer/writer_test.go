package writer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriter_Indentation(t *testing.T) {
	// Test: explicit indentation around block content
	w := NewWriter("\t")

	w.WriteLine("type Order struct {")
	w.Indent()
	w.WriteLine("ID string")
	w.Dedent()
	w.WriteLine("}")

	assert.Equal(t, "type Order struct {\n\tID string\n}\n", w.String())
}

func TestWriter_LineAutoIndent(t *testing.T) {
	// Test: lines ending with an opener indent, lines starting with a closer dedent
	w := NewWriter("  ")

	w.Line("export interface Order {")
	w.Line("id: string")
	w.Line("items: {")
	w.Line("[key: string]: number")
	w.Line("}")
	w.Line("}")
	w.Line("export const GET = {")
	w.Line("} as const")

	expected := "export interface Order {\n" +
		"  id: string\n" +
		"  items: {\n" +
		"    [key: string]: number\n" +
		"  }\n" +
		"}\n" +
		"export const GET = {\n" +
		"} as const\n"
	assert.Equal(t, expected, w.String())

	w.Line("next")
	assert.True(t, strings.HasSuffix(w.String(), "} as const\nnext\n"), "closers return to column zero")
}

func TestWriter_BlankLine(t *testing.T) {
	// Test: BlankLine never stacks empty lines or leads the file
	w := NewWriter("\t")

	w.BlankLine()
	w.WriteLine("line1")
	w.BlankLine()
	w.BlankLine()
	w.Write("line2")
	w.BlankLine()
	w.WriteLine("line3")

	lines := strings.Split(w.String(), "\n")
	require.Len(t, lines, 6)
	assert.Equal(t, []string{"line1", "", "line2", "", "line3", ""}, lines)
}

func TestWriter_Comment(t *testing.T) {
	// Test: multi-line comments keep the marker on every line
	w := NewWriter("\t")

	w.Comment("#", "First line\n\nthird line")
	w.Comment("//", "   ")

	assert.Equal(t, "# First line\n#\n# third line\n", w.String())
}

func TestWriter_DocBlock(t *testing.T) {
	// Test: single-line and multi-line doc blocks
	w := NewWriter("  ")

	w.DocBlock("@deprecated")
	w.DocBlock("Order placed by a customer", "@deprecated")
	w.DocBlock("", " ")

	expected := "/** @deprecated */\n" +
		"/**\n" +
		" * Order placed by a customer\n" +
		" * @deprecated\n" +
		" */\n"
	assert.Equal(t, expected, w.String())
}

func TestWriter_BytesEndsWithSingleNewline(t *testing.T) {
	// Test: Bytes normalizes the trailing newlines
	w := NewWriter("\t")
	w.WriteLine("a")
	w.BlankLine()

	assert.Equal(t, []byte("a\n"), w.Bytes())
}

func TestWriter_Bounds(t *testing.T) {
	// Test: Dedent never goes below zero and formatted lines keep the current indent
	tests := []struct {
		name     string
		indents  int
		dedents  int
		expected string
	}{
		{name: "dedent at zero", indents: 0, dedents: 2, expected: "var count = 42\n"},
		{name: "balanced", indents: 2, dedents: 2, expected: "var count = 42\n"},
		{name: "one level deeper", indents: 2, dedents: 1, expected: "\tvar count = 42\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := NewWriter("\t")
			for range tt.indents {
				w.Indent()
			}
			for range tt.dedents {
				w.Dedent()
			}
			w.WriteLinef("var %s = %d", "count", 42)
			assert.Equal(t, tt.expected, w.String())
		})
	}
}
