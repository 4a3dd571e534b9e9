package tree

import (
	"errors"
	"fmt"
	"slices"
)

// Random is the uniform randomness consumed by tree construction and the
// genetic operators. *math/rand.Rand satisfies it.
type Random interface {
	Intn(n int) int
	Float64() float64
}

var ErrNoCompatibleNode = errors.New("no compatible node in syntax")

// Grower builds random, type-correct, depth-bounded trees from a syntax pool.
type Grower struct {
	syntax *Syntax
	// levels[d] holds the types a tree of depth <= d can have. The last entry
	// is a fixpoint and applies to every greater depth.
	levels [][]DataType
}

func NewGrower(syntax *Syntax) (*Grower, error) {
	if syntax == nil {
		return nil, errors.New("grower requires a syntax")
	}
	g := &Grower{syntax: syntax}

	var base []DataType
	for _, k := range syntax.terminals {
		if t := k.DataType(); t.Valid() && !slices.Contains(base, t) {
			base = append(base, t)
		}
	}
	slices.Sort(base)
	if len(base) == 0 {
		return nil, fmt.Errorf("%w: no typed terminals", ErrNoCompatibleNode)
	}
	g.levels = append(g.levels, base)

	for {
		prev := g.levels[len(g.levels)-1]
		next := append([]DataType(nil), base...)
		for _, f := range syntax.functions {
			forEachCombo(prev, f.Arity(), func(combo []DataType) {
				if t := f.DataType(combo...); t.Valid() && !slices.Contains(next, t) {
					next = append(next, t)
				}
			})
		}
		slices.Sort(next)
		if slices.Equal(next, prev) {
			break
		}
		g.levels = append(g.levels, next)
	}
	return g, nil
}

func (g *Grower) Syntax() *Syntax { return g.syntax }

// Producible lists the types a tree of depth at most depth can have.
func (g *Grower) Producible(depth int) []DataType {
	if depth < 0 {
		return nil
	}
	if depth >= len(g.levels) {
		depth = len(g.levels) - 1
	}
	return append([]DataType(nil), g.levels[depth]...)
}

// CanProduce reports whether a tree of type t fits within depth.
func (g *Grower) CanProduce(t DataType, depth int) bool {
	return slices.Contains(g.Producible(depth), t)
}

// Grow builds a tree of type t whose depth is at most maxDepth, choosing
// uniformly among all compatible kinds at each slot.
func (g *Grower) Grow(rng Random, t DataType, maxDepth int) (*Node, error) {
	return g.construct(rng, t, maxDepth, false)
}

// Full builds a tree of type t that uses functions wherever the depth budget
// and the type system allow, so most branches reach maxDepth.
func (g *Grower) Full(rng Random, t DataType, maxDepth int) (*Node, error) {
	return g.construct(rng, t, maxDepth, true)
}

func (g *Grower) construct(rng Random, t DataType, maxDepth int, full bool) (*Node, error) {
	if rng == nil {
		return nil, errors.New("random source is required")
	}
	if maxDepth < 0 {
		return nil, fmt.Errorf("max depth must be >= 0, got %d", maxDepth)
	}
	if !g.CanProduce(t, maxDepth) {
		return nil, fmt.Errorf("%w: type %s within depth %d", ErrNoCompatibleNode, t, maxDepth)
	}
	return g.build(rng, t, maxDepth, full), nil
}

type candidate struct {
	kind   Kind
	combos [][]DataType
}

// build assumes t is producible within budget, which candidates guarantees
// for every recursive call.
func (g *Grower) build(rng Random, t DataType, budget int, full bool) *Node {
	terminals, functions := g.candidates(t, budget)

	pool := append(terminals, functions...)
	if full && len(functions) > 0 {
		pool = functions
	}
	pick := pool[rng.Intn(len(pool))]

	if pick.kind.Arity() == 0 {
		if gen, ok := pick.kind.(Generator); ok {
			return gen.Generate(rng)
		}
		return New(pick.kind)
	}

	combo := pick.combos[rng.Intn(len(pick.combos))]
	node := New(pick.kind)
	for i, childType := range combo {
		node.children[i] = g.build(rng, childType, budget-1, full)
	}
	return node
}

func (g *Grower) candidates(t DataType, budget int) (terminals, functions []candidate) {
	for _, k := range g.syntax.terminals {
		if k.DataType() == t {
			terminals = append(terminals, candidate{kind: k})
		}
	}
	if budget <= 0 {
		return terminals, nil
	}
	inputs := g.Producible(budget - 1)
	for _, f := range g.syntax.functions {
		var combos [][]DataType
		forEachCombo(inputs, f.Arity(), func(combo []DataType) {
			if f.DataType(combo...) == t {
				combos = append(combos, append([]DataType(nil), combo...))
			}
		})
		if len(combos) > 0 {
			functions = append(functions, candidate{kind: f, combos: combos})
		}
	}
	return terminals, functions
}

// forEachCombo calls fn with every length-n tuple over types, in
// lexicographic order. The slice passed to fn is reused between calls.
func forEachCombo(types []DataType, n int, fn func([]DataType)) {
	if len(types) == 0 || n <= 0 {
		return
	}
	combo := make([]DataType, n)
	idx := make([]int, n)
	for {
		for i, j := range idx {
			combo[i] = types[j]
		}
		fn(combo)
		pos := n - 1
		for pos >= 0 {
			idx[pos]++
			if idx[pos] < len(types) {
				break
			}
			idx[pos] = 0
			pos--
		}
		if pos < 0 {
			return
		}
	}
}
