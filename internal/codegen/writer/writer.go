package writer

import (
	"fmt"
	"strings"
)

// Writer builds generated source text line by line with indentation
// tracking. Lines passed to Line are auto-indented: a line starting with a
// closing bracket dedents before it is written and a line ending with an
// opening bracket indents the lines after it.
type Writer struct {
	sb           strings.Builder
	indentLevel  int
	indentString string
	linePrefix   string
	needsIndent  bool
}

// NewWriter creates a writer that indents with indentString.
func NewWriter(indentString string) *Writer {
	return &Writer{
		indentString: indentString,
		needsIndent:  true,
	}
}

// Indent increases the indentation level.
func (w *Writer) Indent() {
	w.indentLevel++
	w.updatePrefix()
}

// Dedent decreases the indentation level.
func (w *Writer) Dedent() {
	if w.indentLevel > 0 {
		w.indentLevel--
		w.updatePrefix()
	}
}

// Write writes s without a newline.
func (w *Writer) Write(s string) {
	if w.needsIndent && s != "" {
		w.sb.WriteString(w.linePrefix)
		w.needsIndent = false
	}
	w.sb.WriteString(s)
}

// WriteLine writes s and a newline without auto-indent.
func (w *Writer) WriteLine(s string) {
	w.Write(s)
	w.Newline()
}

// WriteLinef writes a formatted line without auto-indent.
func (w *Writer) WriteLinef(format string, args ...interface{}) {
	w.Write(fmt.Sprintf(format, args...))
	w.Newline()
}

// Line writes s as a full line with bracket auto-indent.
func (w *Writer) Line(s string) {
	trimmed := strings.TrimSpace(s)
	if trimmed != "" && strings.ContainsRune("}])", rune(trimmed[0])) {
		w.Dedent()
	}
	w.WriteLine(s)
	if trimmed != "" && strings.ContainsRune("{[(", rune(trimmed[len(trimmed)-1])) {
		w.Indent()
	}
}

// Linef formats and writes a line with bracket auto-indent.
func (w *Writer) Linef(format string, args ...interface{}) {
	w.Line(fmt.Sprintf(format, args...))
}

// Newline ends the current line.
func (w *Writer) Newline() {
	w.sb.WriteString("\n")
	w.needsIndent = true
}

// BlankLine ends the current paragraph with one empty line. It never
// produces two empty lines in a row or an empty line at the start.
func (w *Writer) BlankLine() {
	s := w.sb.String()
	if len(s) > 0 && !strings.HasSuffix(s, "\n\n") {
		if !strings.HasSuffix(s, "\n") {
			w.Newline()
		}
		w.Newline()
	}
}

// String returns the text written so far.
func (w *Writer) String() string {
	return w.sb.String()
}

// Bytes returns the text written so far, trimmed to end with exactly one
// newline.
func (w *Writer) Bytes() []byte {
	return []byte(strings.TrimRight(w.sb.String(), "\n") + "\n")
}

func (w *Writer) updatePrefix() {
	w.linePrefix = strings.Repeat(w.indentString, w.indentLevel)
}

// Comment writes every line of text behind marker ("//", "#"). Blank lines
// keep the bare marker.
func (w *Writer) Comment(marker, text string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	for _, line := range strings.Split(strings.TrimSpace(text), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			w.WriteLine(marker)
			continue
		}
		w.WriteLine(marker + " " + line)
	}
}

// DocBlock writes a /** ... */ block. A single line stays on one line.
func (w *Writer) DocBlock(lines ...string) {
	var kept []string
	for _, l := range lines {
		for _, part := range strings.Split(strings.TrimSpace(l), "\n") {
			if part = strings.TrimSpace(part); part != "" {
				kept = append(kept, part)
			}
		}
	}
	switch len(kept) {
	case 0:
		return
	case 1:
		w.WriteLine("/** " + kept[0] + " */")
	default:
		w.WriteLine("/**")
		for _, l := range kept {
			w.WriteLine(" * " + l)
		}
		w.WriteLine(" */")
	}
}
