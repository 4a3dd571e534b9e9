package evo

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gpforge/internal/tree"
)

func TestSubtreeCrossoverSwapsMatchingSubtrees(t *testing.T) {
	s := booleanSyntax(t)
	a := individual(t, "AND(X, Y)", s)
	b := individual(t, "OR(NOT(Z), true)", s)

	// Point 1 is X at index 1. Every node of B is boolean, so the match list
	// is [0 1 2 3] and draw 2 picks Z.
	rng := &scriptedRandom{t: t, ints: []int{1, 2}}
	var events []OperatorEvent
	op, err := NewSubtreeCrossover(CrossoverConfig{
		Random:   rng,
		MaxDepth: 17,
		Hooks:    &Hooks{OnOperator: func(ev OperatorEvent) { events = append(events, ev) }},
	})
	require.NoError(t, err)

	offspring, err := op.Apply([]*Individual{a, b})
	require.NoError(t, err)
	require.Len(t, offspring, 2)
	assert.Equal(t, "AND(Z, Y)", offspring[0].String())
	assert.Equal(t, "OR(NOT(X), true)", offspring[1].String())
	assert.True(t, rng.exhausted())

	assert.Equal(t, "AND(X, Y)", a.String(), "parents are left untouched")
	assert.Equal(t, "OR(NOT(Z), true)", b.String())

	require.Len(t, events, 1)
	assert.Equal(t, []int{1, 2}, events[0].Points)
	assert.False(t, events[0].NoMatch)
}

func TestSubtreeCrossoverClearsOffspringFitness(t *testing.T) {
	s := booleanSyntax(t)
	a := individual(t, "AND(X, Y)", s)
	b := individual(t, "OR(NOT(Z), true)", s)
	a.SetFitness(Maximising(3))
	b.SetFitness(Maximising(4))

	op, err := NewSubtreeCrossover(CrossoverConfig{Random: &scriptedRandom{t: t, ints: []int{0, 0}}, MaxDepth: 5})
	require.NoError(t, err)
	offspring, err := op.Apply([]*Individual{a, b})
	require.NoError(t, err)
	require.Len(t, offspring, 2)
	for _, child := range offspring {
		assert.False(t, child.Fitness().Evaluated())
	}
	assert.Equal(t, Maximising(3), a.Fitness())
}

func TestSubtreeCrossoverTerminalBias(t *testing.T) {
	s := booleanSyntax(t)
	a := individual(t, "AND(X, Y)", s)
	b := individual(t, "OR(NOT(Z), true)", s)

	// Terminals of A are [1 2]; terminal matches in B are [2 3].
	rng := &scriptedRandom{t: t, ints: []int{0, 1}, floats: []float64{0.5, 0.5}}
	op, err := NewSubtreeCrossover(CrossoverConfig{
		Random:              rng,
		MaxDepth:            5,
		TerminalProbability: TerminalProbability(1),
	})
	require.NoError(t, err)

	offspring, err := op.Apply([]*Individual{a, b})
	require.NoError(t, err)
	require.Len(t, offspring, 2)
	assert.Equal(t, "AND(true, Y)", offspring[0].String())
	assert.Equal(t, "OR(NOT(Z), X)", offspring[1].String())
}

func TestSubtreeCrossoverBiasFallsBackWhenClassIsEmpty(t *testing.T) {
	s := booleanSyntax(t)
	a := individual(t, "X", s)
	b := individual(t, "NOT(Y)", s)

	// No non-terminals in A: the function class is empty and falls back to
	// all candidates.
	rng := &scriptedRandom{t: t, ints: []int{0, 0}, floats: []float64{0.9, 0.9}}
	op, err := NewSubtreeCrossover(CrossoverConfig{
		Random:              rng,
		MaxDepth:            5,
		TerminalProbability: TerminalProbability(0.1),
	})
	require.NoError(t, err)

	offspring, err := op.Apply([]*Individual{a, b})
	require.NoError(t, err)
	require.Len(t, offspring, 2)
	assert.Equal(t, "NOT(Y)", offspring[0].String())
	assert.Equal(t, "X", offspring[1].String())
}

func TestSubtreeCrossoverNoMatchYieldsNothing(t *testing.T) {
	s := mixedSyntax(t)
	a := individual(t, "GT(N, 3)", s)
	b := individual(t, "AND(X, X)", s)

	var events []OperatorEvent
	op, err := NewSubtreeCrossover(CrossoverConfig{
		Random:   &scriptedRandom{t: t, ints: []int{1}},
		MaxDepth: 5,
		Hooks:    &Hooks{OnOperator: func(ev OperatorEvent) { events = append(events, ev) }},
	})
	require.NoError(t, err)

	offspring, err := op.Apply([]*Individual{a, b})
	require.NoError(t, err)
	assert.Empty(t, offspring)
	assert.Equal(t, "GT(N, 3)", a.String())
	assert.Equal(t, "AND(X, X)", b.String())
	require.Len(t, events, 1)
	assert.True(t, events[0].NoMatch)
}

func TestSubtreeCrossoverChecksEachSideDepth(t *testing.T) {
	s := booleanSyntax(t)
	a := individual(t, "AND(X, Y)", s)
	b := individual(t, "OR(NOT(Z), true)", s)

	// X swaps with NOT(Z): A' = AND(NOT(Z), Y) has depth 2, B' = OR(X, true)
	// has depth 1.
	op, err := NewSubtreeCrossover(CrossoverConfig{Random: &scriptedRandom{t: t, ints: []int{1, 1}}, MaxDepth: 1})
	require.NoError(t, err)

	offspring, err := op.Apply([]*Individual{a, b})
	require.NoError(t, err)
	require.Len(t, offspring, 1)
	assert.Equal(t, "OR(X, true)", offspring[0].String())
}

func TestSubtreeCrossoverPreservesTypesAndDepth(t *testing.T) {
	s := mixedSyntax(t)
	g, err := tree.NewGrower(s)
	require.NoError(t, err)
	rng := rand.New(rand.NewSource(42))

	const maxDepth = 5
	var points []int
	op, err := NewSubtreeCrossover(CrossoverConfig{
		Random:   rng,
		MaxDepth: maxDepth,
		Hooks:    &Hooks{OnOperator: func(ev OperatorEvent) { points = ev.Points }},
	})
	require.NoError(t, err)
	unbounded, err := NewSubtreeCrossover(CrossoverConfig{
		Random:   rng,
		MaxDepth: 1000,
		Hooks:    &Hooks{OnOperator: func(ev OperatorEvent) { points = ev.Points }},
	})
	require.NoError(t, err)

	for i := 0; i < 300; i++ {
		ra, err := g.Grow(rng, tree.TypeBool, 4)
		require.NoError(t, err)
		rb, err := g.Grow(rng, tree.TypeBool, 4)
		require.NoError(t, err)
		a, b := NewIndividual(ra), NewIndividual(rb)

		offspring, err := op.Apply([]*Individual{a, b})
		require.NoError(t, err)
		for _, child := range offspring {
			assert.LessOrEqual(t, child.Depth(), maxDepth, child.String())
			assert.Equal(t, tree.TypeBool, child.DataType(), child.String())
		}

		offspring, err = unbounded.Apply([]*Individual{a, b})
		require.NoError(t, err)
		if len(offspring) == 0 {
			continue
		}
		require.Len(t, offspring, 2)
		require.Len(t, points, 2)
		before1, err := a.GetNode(points[0])
		require.NoError(t, err)
		before2, err := b.GetNode(points[1])
		require.NoError(t, err)
		after1, err := offspring[0].GetNode(points[0])
		require.NoError(t, err)
		after2, err := offspring[1].GetNode(points[1])
		require.NoError(t, err)
		assert.Equal(t, before2.DataType(), after1.DataType())
		assert.Equal(t, before1.DataType(), after2.DataType())
		assert.True(t, before2.Equal(after1))
		assert.True(t, before1.Equal(after2))
	}
}

func TestSubtreeCrossoverValidation(t *testing.T) {
	_, err := NewSubtreeCrossover(CrossoverConfig{MaxDepth: 3})
	require.Error(t, err)
	_, err = NewSubtreeCrossover(CrossoverConfig{Random: rand.New(rand.NewSource(1)), MaxDepth: -1})
	require.Error(t, err)
	_, err = NewSubtreeCrossover(CrossoverConfig{
		Random:              rand.New(rand.NewSource(1)),
		TerminalProbability: TerminalProbability(1.5),
	})
	require.Error(t, err)

	op, err := NewSubtreeCrossover(CrossoverConfig{Random: rand.New(rand.NewSource(1)), MaxDepth: 3})
	require.NoError(t, err)
	assert.Equal(t, 2, op.Arity())
	_, err = op.Apply([]*Individual{individual(t, "X", booleanSyntax(t))})
	require.Error(t, err)
}
