package tree

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrIndexOutOfRange = errors.New("node index out of range")
	ErrReplaceRoot     = errors.New("cannot replace the root from within the tree")
	ErrIllTyped        = errors.New("ill-typed program")
)

// Node is a vertex of a program tree. It owns its child slots; the number of
// slots is fixed by the kind's arity.
type Node struct {
	kind     Kind
	children []*Node
}

// New builds a node of kind with the given children filling the leading
// slots. Passing more children than the arity is a programming error.
func New(kind Kind, children ...*Node) *Node {
	arity := kind.Arity()
	if len(children) > arity {
		panic(fmt.Sprintf("tree: %s takes %d children, got %d", kind.Name(), arity, len(children)))
	}
	n := &Node{kind: kind}
	if arity > 0 {
		n.children = make([]*Node, arity)
		copy(n.children, children)
	}
	return n
}

func (n *Node) Kind() Kind { return n.kind }

func (n *Node) Name() string { return n.kind.Name() }

func (n *Node) Arity() int { return len(n.children) }

func (n *Node) IsTerminal() bool { return len(n.children) == 0 }

// Child returns the node in slot i, which may be nil for an unfilled slot.
func (n *Node) Child(i int) *Node { return n.children[i] }

// SetChild stores child in slot i.
func (n *Node) SetChild(i int, child *Node) error {
	if i < 0 || i >= len(n.children) {
		return fmt.Errorf("%w: child slot %d of %s (arity %d)", ErrIndexOutOfRange, i, n.kind.Name(), len(n.children))
	}
	n.children[i] = child
	return nil
}

// DataType infers the node's type bottom-up. It is TypeNone when a slot is
// empty or any descendant is ill-typed.
func (n *Node) DataType() DataType {
	if len(n.children) == 0 {
		return n.kind.DataType()
	}
	inputs := make([]DataType, len(n.children))
	for i, c := range n.children {
		if c == nil {
			return TypeNone
		}
		t := c.DataType()
		if t == TypeNone {
			return TypeNone
		}
		inputs[i] = t
	}
	return n.kind.DataType(inputs...)
}

// PreOrderTypes returns the data type of every node in the subtree, indexed
// by pre-order position.
func (n *Node) PreOrderTypes() []DataType {
	out := make([]DataType, 0, n.Length())
	var rec func(node *Node) DataType
	rec = func(node *Node) DataType {
		idx := len(out)
		out = append(out, TypeNone)
		complete := true
		inputs := make([]DataType, len(node.children))
		for i, c := range node.children {
			if c == nil {
				complete = false
				continue
			}
			inputs[i] = rec(c)
			if inputs[i] == TypeNone {
				complete = false
			}
		}
		t := TypeNone
		if complete {
			t = node.kind.DataType(inputs...)
		}
		out[idx] = t
		return t
	}
	rec(n)
	return out
}

// Length is the number of nodes in the subtree.
func (n *Node) Length() int {
	total := 1
	for _, c := range n.children {
		if c != nil {
			total += c.Length()
		}
	}
	return total
}

// Depth is the longest root-to-leaf edge count; a leaf has depth 0.
func (n *Node) Depth() int {
	deepest := -1
	for _, c := range n.children {
		if c == nil {
			continue
		}
		if d := c.Depth(); d > deepest {
			deepest = d
		}
	}
	return deepest + 1
}

func (n *Node) CountTerminals() int {
	if len(n.children) == 0 {
		return 1
	}
	total := 0
	for _, c := range n.children {
		if c != nil {
			total += c.CountTerminals()
		}
	}
	return total
}

func (n *Node) CountNonTerminals() int {
	if len(n.children) == 0 {
		return 0
	}
	total := 1
	for _, c := range n.children {
		if c != nil {
			total += c.CountNonTerminals()
		}
	}
	return total
}

// Walk visits the subtree in pre-order, passing each node's pre-order index
// and depth relative to n. Returning false stops the walk.
func (n *Node) Walk(fn func(index, depth int, node *Node) bool) {
	n.walk(func(index, depth int, _ *Node, _ int, node *Node) bool {
		return fn(index, depth, node)
	})
}

type visitor func(index, depth int, parent *Node, slot int, node *Node) bool

func (n *Node) walk(fn visitor) {
	index := 0
	var rec func(parent *Node, slot int, node *Node, depth int) bool
	rec = func(parent *Node, slot int, node *Node, depth int) bool {
		if !fn(index, depth, parent, slot, node) {
			return false
		}
		index++
		for i, c := range node.children {
			if c == nil {
				continue
			}
			if !rec(node, i, c, depth+1) {
				return false
			}
		}
		return true
	}
	rec(nil, -1, n, 0)
}

type location struct {
	parent *Node
	slot   int
	node   *Node
	depth  int
}

func (n *Node) locate(index int) (location, error) {
	if index < 0 {
		return location{}, fmt.Errorf("%w: %d", ErrIndexOutOfRange, index)
	}
	var found location
	ok := false
	n.walk(func(i, depth int, parent *Node, slot int, node *Node) bool {
		if i == index {
			found = location{parent: parent, slot: slot, node: node, depth: depth}
			ok = true
			return false
		}
		return true
	})
	if !ok {
		return location{}, fmt.Errorf("%w: %d (length %d)", ErrIndexOutOfRange, index, n.Length())
	}
	return found, nil
}

// GetNode returns the node at the pre-order index; the root is 0.
func (n *Node) GetNode(index int) (*Node, error) {
	loc, err := n.locate(index)
	if err != nil {
		return nil, err
	}
	return loc.node, nil
}

// SetNode replaces the node at the pre-order index by rewriting its parent's
// slot. Index 0 is the receiver itself and cannot be replaced here.
func (n *Node) SetNode(index int, replacement *Node) error {
	if index == 0 {
		return ErrReplaceRoot
	}
	loc, err := n.locate(index)
	if err != nil {
		return err
	}
	loc.parent.children[loc.slot] = replacement
	return nil
}

// DepthOf returns the depth of the node at the pre-order index.
func (n *Node) DepthOf(index int) (int, error) {
	loc, err := n.locate(index)
	if err != nil {
		return 0, err
	}
	return loc.depth, nil
}

// NthTerminalIndex maps the t-th terminal in pre-order to its pre-order index.
func (n *Node) NthTerminalIndex(t int) (int, error) {
	return n.nthIndex(t, true)
}

// NthNonTerminalIndex maps the f-th non-terminal in pre-order to its pre-order index.
func (n *Node) NthNonTerminalIndex(f int) (int, error) {
	return n.nthIndex(f, false)
}

func (n *Node) nthIndex(target int, terminal bool) (int, error) {
	if target < 0 {
		return 0, fmt.Errorf("%w: %d", ErrIndexOutOfRange, target)
	}
	seen := 0
	result := -1
	n.walk(func(i, _ int, _ *Node, _ int, node *Node) bool {
		if node.IsTerminal() != terminal {
			return true
		}
		if seen == target {
			result = i
			return false
		}
		seen++
		return true
	})
	if result < 0 {
		return 0, fmt.Errorf("%w: %d (count %d)", ErrIndexOutOfRange, target, seen)
	}
	return result, nil
}

// TerminalIndices lists the pre-order indices of all terminals.
func (n *Node) TerminalIndices() []int {
	return n.indices(true)
}

// NonTerminalIndices lists the pre-order indices of all non-terminals.
func (n *Node) NonTerminalIndices() []int {
	return n.indices(false)
}

func (n *Node) indices(terminal bool) []int {
	var out []int
	n.walk(func(i, _ int, _ *Node, _ int, node *Node) bool {
		if node.IsTerminal() == terminal {
			out = append(out, i)
		}
		return true
	})
	return out
}

// Clone deep-copies the subtree. Variable cells stay shared.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	out := &Node{kind: n.kind}
	if len(n.children) > 0 {
		out.children = make([]*Node, len(n.children))
		for i, c := range n.children {
			out.children[i] = c.Clone()
		}
	}
	return out
}

// Equal reports deep structural equality by kind name and arity.
func (n *Node) Equal(other *Node) bool {
	if n == nil || other == nil {
		return n == other
	}
	if n.kind.Name() != other.kind.Name() || len(n.children) != len(other.children) {
		return false
	}
	for i := range n.children {
		if !n.children[i].Equal(other.children[i]) {
			return false
		}
	}
	return true
}

// Evaluate computes the program's value. Ill-typed trees are rejected before
// any kind is invoked.
func (n *Node) Evaluate() (any, error) {
	if n.DataType() == TypeNone {
		return nil, fmt.Errorf("%w: %s", ErrIllTyped, n)
	}
	return n.eval(), nil
}

func (n *Node) eval() any {
	if len(n.children) == 0 {
		return n.kind.Evaluate()
	}
	args := make([]any, len(n.children))
	for i, c := range n.children {
		args[i] = c.eval()
	}
	return n.kind.Evaluate(args...)
}

// String renders the tree as NAME(child, child).
func (n *Node) String() string {
	var b strings.Builder
	n.format(&b)
	return b.String()
}

func (n *Node) format(b *strings.Builder) {
	b.WriteString(n.kind.Name())
	if len(n.children) == 0 {
		return
	}
	b.WriteByte('(')
	for i, c := range n.children {
		if i > 0 {
			b.WriteString(", ")
		}
		if c == nil {
			b.WriteByte('_')
			continue
		}
		c.format(b)
	}
	b.WriteByte(')')
}
