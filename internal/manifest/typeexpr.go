package manifest

import (
	"strings"
	"unicode"

	"github.com/okra-platform/dtogen/internal/errors"
	"github.com/okra-platform/dtogen/internal/metadata"
)

// Expr is a parsed type expression before names are bound to type ids.
//
//	expr   := base suffix*
//	base   := ident ( "<" expr ( "," expr )* ">" )?
//	suffix := "?" | "[" ","* "]"
type Expr struct {
	Name     string
	Args     []*Expr
	Nullable bool
	// Elem and Rank are set for arrays.
	Elem *Expr
	Rank int
}

// String renders the expression in canonical spelling.
func (e *Expr) String() string {
	var b strings.Builder
	switch {
	case e.Elem != nil:
		b.WriteString(e.Elem.String())
		b.WriteString("[" + strings.Repeat(",", e.Rank-1) + "]")
	default:
		b.WriteString(e.Name)
		if len(e.Args) > 0 {
			args := make([]string, len(e.Args))
			for i, a := range e.Args {
				args[i] = a.String()
			}
			b.WriteString("<" + strings.Join(args, ", ") + ">")
		}
	}
	if e.Nullable {
		b.WriteString("?")
	}
	return b.String()
}

var builtinNames = map[string]metadata.TypeID{
	"int":      metadata.BuiltinInt32,
	"int32":    metadata.BuiltinInt32,
	"long":     metadata.BuiltinInt64,
	"int64":    metadata.BuiltinInt64,
	"float":    metadata.BuiltinFloat32,
	"float32":  metadata.BuiltinFloat32,
	"double":   metadata.BuiltinFloat64,
	"float64":  metadata.BuiltinFloat64,
	"decimal":  metadata.BuiltinDecimal,
	"bool":     metadata.BuiltinBool,
	"boolean":  metadata.BuiltinBool,
	"string":   metadata.BuiltinString,
	"datetime": metadata.BuiltinDateTime,
	"guid":     metadata.BuiltinGUID,
	"uuid":     metadata.BuiltinGUID,
	"object":   metadata.BuiltinObject,
	"any":      metadata.BuiltinObject,
	"blob":     metadata.BuiltinBlob,
	"bytes":    metadata.BuiltinBlob,
	"fulltext": metadata.BuiltinFullTextVector,
}

var containerNames = map[string]metadata.TypeID{
	"List":       metadata.BuiltinList,
	"Set":        metadata.BuiltinSet,
	"Seq":        metadata.BuiltinSequence,
	"Sequence":   metadata.BuiltinSequence,
	"Collection": metadata.BuiltinCollection,
	"Map":        metadata.BuiltinDictionary,
	"Dictionary": metadata.BuiltinDictionary,
	"Task":       metadata.BuiltinTask,
	"Result":     metadata.BuiltinResult,
	"Nullable":   metadata.BuiltinNullable,
}

// ParseExpr parses a type expression such as "Map<string, List<Item>>?".
func ParseExpr(src string) (*Expr, error) {
	p := &exprParser{src: src}
	e, err := p.expr()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.pos < len(p.src) {
		return nil, p.errorf("unexpected %q", p.src[p.pos])
	}
	return e, nil
}

type exprParser struct {
	src string
	pos int
}

func (p *exprParser) errorf(format string, args ...any) error {
	return errors.WithDetailf(errors.Configurationf("type expression %q: "+format, append([]any{p.src}, args...)...),
		"at offset %d", p.pos)
}

func (p *exprParser) skipSpace() {
	for p.pos < len(p.src) && p.src[p.pos] == ' ' {
		p.pos++
	}
}

func (p *exprParser) peek() byte {
	p.skipSpace()
	if p.pos >= len(p.src) {
		return 0
	}
	return p.src[p.pos]
}

func (p *exprParser) expr() (*Expr, error) {
	e, err := p.base()
	if err != nil {
		return nil, err
	}
	for {
		switch p.peek() {
		case '?':
			p.pos++
			if e.Nullable {
				return nil, p.errorf("duplicate '?'")
			}
			e.Nullable = true
		case '[':
			p.pos++
			rank := 1
			for p.peek() == ',' {
				p.pos++
				rank++
			}
			if p.peek() != ']' {
				return nil, p.errorf("expected ']'")
			}
			p.pos++
			e = &Expr{Elem: e, Rank: rank}
		default:
			return e, nil
		}
	}
}

func (p *exprParser) base() (*Expr, error) {
	p.skipSpace()
	start := p.pos
	for p.pos < len(p.src) {
		r := rune(p.src[p.pos])
		if !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '.') {
			break
		}
		p.pos++
	}
	if start == p.pos {
		if p.pos >= len(p.src) {
			return nil, p.errorf("expected a type name")
		}
		return nil, p.errorf("expected a type name, found %q", p.src[p.pos])
	}
	e := &Expr{Name: p.src[start:p.pos]}
	if p.peek() != '<' {
		return e, nil
	}
	p.pos++
	for {
		arg, err := p.expr()
		if err != nil {
			return nil, err
		}
		e.Args = append(e.Args, arg)
		switch p.peek() {
		case ',':
			p.pos++
		case '>':
			p.pos++
			return e, nil
		default:
			return nil, p.errorf("expected ',' or '>'")
		}
	}
}

// binder turns expressions into type references for one declaration scope.
type binder struct {
	catalog   *metadata.Catalog
	namespace string
	params    map[string]bool
}

func (b *binder) bind(e *Expr) (metadata.TypeRef, error) {
	ref, err := b.bindBare(e)
	if err != nil {
		return metadata.TypeRef{}, err
	}
	if e.Nullable {
		ref = metadata.NullableOf(ref)
	}
	return ref, nil
}

func (b *binder) bindBare(e *Expr) (metadata.TypeRef, error) {
	if e.Elem != nil {
		elem, err := b.bind(e.Elem)
		if err != nil {
			return metadata.TypeRef{}, err
		}
		return metadata.ArrayOf(elem, e.Rank), nil
	}

	var args []metadata.TypeRef
	for _, a := range e.Args {
		ref, err := b.bind(a)
		if err != nil {
			return metadata.TypeRef{}, err
		}
		args = append(args, ref)
	}

	if id, ok := containerNames[e.Name]; ok && len(args) > 0 {
		return metadata.Named(id, args...), nil
	}
	if len(args) == 0 {
		if b.params[e.Name] {
			return metadata.Param(e.Name), nil
		}
		if id, ok := builtinNames[e.Name]; ok {
			return metadata.Named(id), nil
		}
	}
	id, ok := b.catalog.Lookup(e.Name, b.namespace)
	if !ok {
		return metadata.TypeRef{}, errors.Configurationf("unknown type %s in namespace %q", e.Name, b.namespace)
	}
	return metadata.Named(id, args...), nil
}
