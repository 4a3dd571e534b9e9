package tree

import (
	"errors"
	"fmt"
	"strconv"
	"unicode"
)

var ErrParse = errors.New("parse program")

// Parse reads a program in the form printed by Node.String, resolving names
// against syntax. Names missing from the pool are read as bool, int or double
// literals.
func Parse(src string, syntax *Syntax) (*Node, error) {
	p := &parser{src: []rune(src), syntax: syntax}
	node, err := p.expr()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.pos != len(p.src) {
		return nil, p.errorf("unexpected %q", string(p.src[p.pos]))
	}
	return node, nil
}

// MustParse is Parse for fixtures; it panics on error.
func MustParse(src string, syntax *Syntax) *Node {
	n, err := Parse(src, syntax)
	if err != nil {
		panic(err)
	}
	return n
}

type parser struct {
	src    []rune
	pos    int
	syntax *Syntax
}

func (p *parser) errorf(format string, args ...any) error {
	return fmt.Errorf("%w: at %d: %s", ErrParse, p.pos, fmt.Sprintf(format, args...))
}

func (p *parser) skipSpace() {
	for p.pos < len(p.src) && unicode.IsSpace(p.src[p.pos]) {
		p.pos++
	}
}

func isNameRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '.' || r == '-' || r == '+'
}

func (p *parser) name() string {
	p.skipSpace()
	start := p.pos
	for p.pos < len(p.src) && isNameRune(p.src[p.pos]) {
		p.pos++
	}
	return string(p.src[start:p.pos])
}

func (p *parser) expr() (*Node, error) {
	name := p.name()
	if name == "" {
		if p.pos >= len(p.src) {
			return nil, p.errorf("unexpected end of input")
		}
		return nil, p.errorf("expected name, found %q", string(p.src[p.pos]))
	}
	kind, err := p.resolve(name)
	if err != nil {
		return nil, err
	}

	var children []*Node
	p.skipSpace()
	if p.pos < len(p.src) && p.src[p.pos] == '(' {
		p.pos++
		for {
			child, err := p.expr()
			if err != nil {
				return nil, err
			}
			children = append(children, child)
			p.skipSpace()
			if p.pos >= len(p.src) {
				return nil, p.errorf("unterminated argument list for %s", name)
			}
			if p.src[p.pos] == ',' {
				p.pos++
				continue
			}
			if p.src[p.pos] == ')' {
				p.pos++
				break
			}
			return nil, p.errorf("expected ',' or ')', found %q", string(p.src[p.pos]))
		}
	}
	if len(children) != kind.Arity() {
		return nil, p.errorf("%s takes %d arguments, got %d", name, kind.Arity(), len(children))
	}
	return New(kind, children...), nil
}

func (p *parser) resolve(name string) (Kind, error) {
	if p.syntax != nil {
		if k, ok := p.syntax.Lookup(name); ok {
			return k, nil
		}
	}
	switch name {
	case "true":
		return BoolLiteral(true), nil
	case "false":
		return BoolLiteral(false), nil
	}
	if i, err := strconv.ParseInt(name, 10, 64); err == nil {
		return IntLiteral(i), nil
	}
	if f, err := strconv.ParseFloat(name, 64); err == nil {
		return DoubleLiteral(f), nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownKind, name)
}
