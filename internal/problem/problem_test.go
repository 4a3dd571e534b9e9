package problem

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gpforge/internal/evo"
	"gpforge/internal/tree"
)

func score(t *testing.T, p Problem, src string) (evo.Fitness, Trace) {
	t.Helper()
	program, err := tree.Parse(src, p.Syntax())
	require.NoError(t, err)
	f, trace, err := p.Evaluate(context.Background(), program)
	require.NoError(t, err)
	return f, trace
}

func solved(t *testing.T, p Problem, f evo.Fitness) bool {
	t.Helper()
	ok, err := f.AtLeast(p.Target())
	require.NoError(t, err)
	return ok
}

func TestEvenParitySolution(t *testing.T) {
	p := NewEvenParity(3)
	assert.Equal(t, "even-parity-3", p.Name())
	assert.Equal(t, 8, p.Cases())

	xor01 := "NOR(AND(D0, D1), NOR(D0, D1))"
	f, trace := score(t, p, "OR(AND("+xor01+", D2), NOR("+xor01+", D2))")
	assert.Equal(t, evo.Minimising(0), f)
	assert.Equal(t, 8, trace["hits"])
	assert.True(t, solved(t, p, f))

	f, trace = score(t, p, "D0")
	assert.Equal(t, evo.Minimising(4), f)
	assert.Equal(t, 4, trace["misses"])
	assert.False(t, solved(t, p, f))
}

func TestMultiplexerSolution(t *testing.T) {
	p := NewMultiplexer(2)
	assert.Equal(t, "multiplexer-6", p.Name())
	assert.Equal(t, 64, p.Cases())
	assert.Len(t, p.Inputs(), 6)

	f, _ := score(t, p, "IF(A0, IF(A1, D3, D1), IF(A1, D2, D0))")
	assert.Equal(t, evo.Minimising(0), f)

	// Swapping the address bits selects D1 and D2 the wrong way round.
	f, _ = score(t, p, "IF(A1, IF(A0, D3, D1), IF(A0, D2, D0))")
	assert.Greater(t, f.Value, 0.0)
}

func TestMajoritySolution(t *testing.T) {
	p := NewMajority(3)
	f, _ := score(t, p, "OR(AND(D0, D1), AND(D2, OR(D0, D1)))")
	assert.Equal(t, evo.Minimising(0), f)

	f, _ = score(t, p, "AND(D0, AND(D1, D2))")
	assert.Equal(t, evo.Minimising(3), f)
}

func TestQuarticSolution(t *testing.T) {
	p := NewQuarticRegression()
	assert.Len(t, p.Samples(), 20)

	f, trace := score(t, p, "ADD(x, MUL(x, ADD(x, MUL(x, ADD(x, MUL(x, x))))))")
	assert.InDelta(t, 0, f.Value, 1e-12)
	assert.Equal(t, 20, trace["hits"])
	assert.True(t, solved(t, p, f))

	f, _ = score(t, p, "x")
	assert.Greater(t, f.Value, 0.1)
	assert.False(t, solved(t, p, f))
}

func TestPiecewiseSolutionNeedsTypedCondition(t *testing.T) {
	p := NewPiecewiseRegression()
	f, trace := score(t, p, "IF(GT(x, 0), MUL(x, x), SUB(ADD(x, x), 1))")
	assert.Equal(t, evo.Minimising(0), f)
	assert.Equal(t, 21, trace["hits"])

	g, err := tree.NewGrower(p.Syntax())
	require.NoError(t, err)
	assert.True(t, g.CanProduce(tree.TypeDouble, 0))
	assert.False(t, g.CanProduce(tree.TypeBool, 0))
	assert.True(t, g.CanProduce(tree.TypeBool, 1))
}

func TestEvaluateRejectsWrongReturnType(t *testing.T) {
	p := NewPiecewiseRegression()
	program, err := tree.Parse("GT(x, 0)", p.Syntax())
	require.NoError(t, err)
	_, _, err = p.Evaluate(context.Background(), program)
	require.ErrorIs(t, err, tree.ErrIllTyped)

	_, _, err = NewMajority(3).Evaluate(context.Background(), nil)
	require.Error(t, err)
}

func TestEvaluateHonoursCancellation(t *testing.T) {
	p := NewEvenParity(3)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := p.Evaluate(ctx, tree.MustParse("D0", p.Syntax()))
	require.ErrorIs(t, err, context.Canceled)
}

func TestLookupAndNormalize(t *testing.T) {
	for alias, want := range map[string]string{
		"Parity_3":             "even-parity-3",
		"even parity 5":        "even-parity-5",
		"mux6":                 "multiplexer-6",
		"11-MUX":               "multiplexer-11",
		"quartic":              "quartic",
		"piecewise_regression": "piecewise",
	} {
		assert.Equal(t, want, Normalize(alias), alias)
		p, err := Lookup(alias)
		require.NoError(t, err, alias)
		assert.Equal(t, want, p.Name())
	}

	_, err := Lookup("sudoku")
	require.ErrorIs(t, err, ErrUnknownProblem)

	assert.Equal(t, []string{
		"even-parity-3", "even-parity-4", "even-parity-5",
		"majority-5", "multiplexer-11", "multiplexer-6",
		"piecewise", "quartic",
	}, Names())
}

func TestLookupBuildsIndependentInstances(t *testing.T) {
	a, err := Lookup("quartic")
	require.NoError(t, err)
	b, err := Lookup("quartic")
	require.NoError(t, err)
	va := a.(*RegressionProblem).Variable()
	vb := b.(*RegressionProblem).Variable()
	require.NoError(t, va.Set(0.5))
	assert.Equal(t, 0.0, vb.Value())
}

func TestProblemsEvolveUnderStrategy(t *testing.T) {
	p := NewMajority(3)
	rng := rand.New(rand.NewSource(21))
	g, err := tree.NewGrower(p.Syntax())
	require.NoError(t, err)

	crossover, err := evo.NewSubtreeCrossover(evo.CrossoverConfig{Random: rng, MaxDepth: 6})
	require.NoError(t, err)
	mutation, err := evo.NewSubtreeMutation(evo.MutationConfig{Random: rng, MaxDepth: 6, Grower: g})
	require.NoError(t, err)
	breeder, err := evo.NewBreeder(evo.BreederConfig{
		Operators: []evo.WeightedOperator{
			{Operator: crossover, Probability: 0.8},
			{Operator: mutation, Probability: 0.2},
		},
		Selector:       evo.TournamentSelector{Size: 4},
		Random:         rng,
		PopulationSize: 60,
		Elites:         1,
	})
	require.NoError(t, err)
	strategy, err := evo.NewGenerationalStrategy(evo.StrategyConfig{
		Breeder:   breeder,
		Evaluator: Evaluator(p),
		Termination: []evo.TerminationCriterion{
			evo.MaxGenerations{Limit: 10},
			evo.TargetFitness{Target: p.Target()},
		},
	})
	require.NoError(t, err)
	pop, err := evo.InitialPopulation(evo.InitConfig{
		Grower: g, Random: rng, Type: p.ReturnType(), MinDepth: 1, MaxDepth: 4, Size: 60,
	})
	require.NoError(t, err)

	result, err := strategy.Run(context.Background(), pop)
	require.NoError(t, err)
	first := result.History[0].BestFitness
	assert.LessOrEqual(t, result.Best.Fitness().Value, first)
	assert.LessOrEqual(t, result.Generations, 10)
}
