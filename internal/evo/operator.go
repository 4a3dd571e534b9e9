package evo

import (
	"gpforge/internal/tree"
)

// Operator turns Arity() parents into zero or more offspring. Implementations
// work on clones, so the parents are never modified.
type Operator interface {
	Name() string
	Arity() int
	Apply(parents []*Individual) ([]*Individual, error)
}

// TerminalProbability returns a pointer for the crossover point bias option.
func TerminalProbability(p float64) *float64 {
	return &p
}

// pickPoint chooses one index from candidates. With a bias, terminals are
// chosen with probability *bias and non-terminals otherwise; an empty class
// falls back to the other one. Without a bias the choice is uniform.
func pickPoint(rng tree.Random, candidates []int, isTerminal func(int) bool, bias *float64) int {
	if bias == nil {
		return candidates[rng.Intn(len(candidates))]
	}
	var terminals, functions []int
	for _, idx := range candidates {
		if isTerminal(idx) {
			terminals = append(terminals, idx)
		} else {
			functions = append(functions, idx)
		}
	}
	pool := functions
	if rng.Float64() < *bias {
		pool = terminals
	}
	if len(pool) == 0 {
		pool = candidates
	}
	return pool[rng.Intn(len(pool))]
}

func allIndices(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

func terminalMask(root *tree.Node) []bool {
	mask := make([]bool, 0, root.Length())
	root.Walk(func(_, _ int, n *tree.Node) bool {
		mask = append(mask, n.IsTerminal())
		return true
	})
	return mask
}
