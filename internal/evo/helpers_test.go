package evo

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"gpforge/internal/tree"
)

// scriptedRandom replays fixed draws and fails the test when a draw is out of
// script or out of range.
type scriptedRandom struct {
	t      *testing.T
	ints   []int
	floats []float64
}

func (r *scriptedRandom) Intn(n int) int {
	r.t.Helper()
	require.NotEmpty(r.t, r.ints, "unexpected Intn(%d)", n)
	v := r.ints[0]
	r.ints = r.ints[1:]
	require.True(r.t, v >= 0 && v < n, "scripted Intn value %d out of range [0, %d)", v, n)
	return v
}

func (r *scriptedRandom) Float64() float64 {
	r.t.Helper()
	require.NotEmpty(r.t, r.floats, "unexpected Float64()")
	v := r.floats[0]
	r.floats = r.floats[1:]
	return v
}

func (r *scriptedRandom) exhausted() bool {
	return len(r.ints) == 0 && len(r.floats) == 0
}

func booleanSyntax(t *testing.T) *tree.Syntax {
	t.Helper()
	s, err := tree.NewSyntax(
		tree.And, tree.Or, tree.Not,
		tree.NewVariable("X", tree.TypeBool).Kind(),
		tree.NewVariable("Y", tree.TypeBool).Kind(),
		tree.NewVariable("Z", tree.TypeBool).Kind(),
		tree.BoolLiteral(true),
	)
	require.NoError(t, err)
	return s
}

func mixedSyntax(t *testing.T) *tree.Syntax {
	t.Helper()
	s, err := tree.NewSyntax(
		tree.And, tree.Or, tree.Not, tree.If, tree.Add, tree.Mul, tree.GreaterThan,
		tree.NewVariable("X", tree.TypeBool).Kind(),
		tree.NewVariable("N", tree.TypeInt).Kind(),
		tree.ERC{Type: tree.TypeInt, Min: 0, Max: 10},
	)
	require.NoError(t, err)
	return s
}

func individual(t *testing.T, src string, s *tree.Syntax) *Individual {
	t.Helper()
	n, err := tree.Parse(src, s)
	require.NoError(t, err)
	return NewIndividual(n)
}

// scoredPopulation builds a population of terminal programs whose fitness
// values are given in order.
func scoredPopulation(t *testing.T, values ...float64) *Population {
	t.Helper()
	pop := NewPopulation(len(values))
	for i, v := range values {
		ind := NewIndividual(tree.Int(int64(i)))
		ind.SetFitness(Maximising(v))
		require.NoError(t, pop.Add(ind))
	}
	return pop
}

// lengthEvaluator rewards shorter programs; the shortest possible scores 1.
var lengthEvaluator = EvaluatorFunc(func(_ context.Context, program *tree.Node) (Fitness, error) {
	return Maximising(1 / float64(program.Length())), nil
})

func names(inds []*Individual) []string {
	out := make([]string, len(inds))
	for i, ind := range inds {
		out[i] = fmt.Sprint(ind)
	}
	return out
}
