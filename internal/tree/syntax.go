package tree

import (
	"errors"
	"fmt"
)

var ErrUnknownKind = errors.New("unknown node kind")

// Syntax is the ordered pool of kinds available to the grower and parser.
type Syntax struct {
	kinds     []Kind
	terminals []Kind
	functions []Kind
	byName    map[string]Kind
}

func NewSyntax(kinds ...Kind) (*Syntax, error) {
	if len(kinds) == 0 {
		return nil, errors.New("syntax requires at least one kind")
	}
	s := &Syntax{byName: make(map[string]Kind, len(kinds))}
	for i, k := range kinds {
		if k == nil {
			return nil, fmt.Errorf("syntax kind is nil at index %d", i)
		}
		if _, dup := s.byName[k.Name()]; dup {
			return nil, fmt.Errorf("duplicate syntax kind: %s", k.Name())
		}
		s.byName[k.Name()] = k
		s.kinds = append(s.kinds, k)
		if k.Arity() == 0 {
			s.terminals = append(s.terminals, k)
		} else {
			s.functions = append(s.functions, k)
		}
	}
	if len(s.terminals) == 0 {
		return nil, errors.New("syntax requires at least one terminal")
	}
	return s, nil
}

// MustSyntax is NewSyntax for static pools; it panics on error.
func MustSyntax(kinds ...Kind) *Syntax {
	s, err := NewSyntax(kinds...)
	if err != nil {
		panic(err)
	}
	return s
}

func (s *Syntax) Kinds() []Kind     { return append([]Kind(nil), s.kinds...) }
func (s *Syntax) Terminals() []Kind { return append([]Kind(nil), s.terminals...) }
func (s *Syntax) Functions() []Kind { return append([]Kind(nil), s.functions...) }
func (s *Syntax) Len() int          { return len(s.kinds) }

func (s *Syntax) Lookup(name string) (Kind, bool) {
	k, ok := s.byName[name]
	return k, ok
}

// Contains reports whether every kind in the tree comes from the pool.
// Literals are accepted regardless since the grower may produce them from
// generators.
func (s *Syntax) Contains(n *Node) error {
	var err error
	n.Walk(func(_, _ int, node *Node) bool {
		if _, ok := node.kind.(*literal); ok {
			return true
		}
		if _, ok := s.byName[node.Name()]; !ok {
			err = fmt.Errorf("%w: %s", ErrUnknownKind, node.Name())
			return false
		}
		return true
	})
	return err
}
