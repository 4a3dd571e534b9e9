package platform

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"gpforge/internal/evo"
	"gpforge/internal/model"
	"gpforge/internal/problem"
	"gpforge/internal/storage"
	"gpforge/internal/tree"
)

// constantProblem scores every program the same.
type constantProblem struct {
	syntax *tree.Syntax
	score  float64
}

func newConstantProblem(score float64) *constantProblem {
	x := tree.NewVariable("X", tree.TypeBool)
	return &constantProblem{
		syntax: tree.MustSyntax(tree.And, tree.Or, tree.Not, x.Kind(), tree.BoolLiteral(true)),
		score:  score,
	}
}

func (p *constantProblem) Name() string              { return "constant" }
func (p *constantProblem) Description() string       { return "every program scores the same" }
func (p *constantProblem) Syntax() *tree.Syntax      { return p.syntax }
func (p *constantProblem) ReturnType() tree.DataType { return tree.TypeBool }
func (p *constantProblem) Target() evo.Fitness       { return evo.Minimising(0) }

func (p *constantProblem) Evaluate(_ context.Context, _ *tree.Node) (evo.Fitness, problem.Trace, error) {
	return evo.Minimising(p.score), problem.Trace{}, nil
}

func newTestPolis(t *testing.T) *Polis {
	t.Helper()
	p := NewPolis(Config{Store: storage.NewMemoryStore()})
	if err := p.Init(context.Background()); err != nil {
		t.Fatalf("init: %v", err)
	}
	return p
}

func TestPolisInitRegistersCatalogue(t *testing.T) {
	p := newTestPolis(t)
	if !p.Started() {
		t.Fatal("expected polis to be started")
	}
	got := strings.Join(p.RegisteredProblems(), ",")
	if got != strings.Join(problem.Names(), ",") {
		t.Fatalf("unexpected problems: %s", got)
	}

	prob, err := p.Problem("mux6")
	if err != nil {
		t.Fatalf("resolve alias: %v", err)
	}
	if prob.Name() != "multiplexer-6" {
		t.Fatalf("unexpected problem: %s", prob.Name())
	}
	if _, err := p.Problem("tic-tac-toe"); !errors.Is(err, problem.ErrUnknownProblem) {
		t.Fatalf("expected unknown problem, got %v", err)
	}
}

func TestPolisRequiresStoreAndInit(t *testing.T) {
	if err := NewPolis(Config{}).Init(context.Background()); err == nil {
		t.Fatal("expected missing store error")
	}
	p := NewPolis(Config{Store: storage.NewMemoryStore()})
	if _, err := p.Problem("quartic"); err == nil {
		t.Fatal("expected uninitialized polis error")
	}
	if err := p.RegisterProblem("constant", func() (problem.Problem, error) { return newConstantProblem(0), nil }); err == nil {
		t.Fatal("expected uninitialized polis error")
	}
}

func TestPolisRunEvolutionPersistsRun(t *testing.T) {
	ctx := context.Background()
	p := newTestPolis(t)

	var generations []int
	result, err := p.RunEvolution(ctx, EvolutionConfig{
		Problem:        "majority-5",
		Seed:           11,
		PopulationSize: 30,
		Generations:    4,
		MaxDepth:       6,
		Elites:         1,
		IgnoreTarget:   true,
		Hooks: &evo.Hooks{OnGeneration: func(s evo.GenerationStats) {
			generations = append(generations, s.Generation)
		}},
	})
	if err != nil {
		t.Fatalf("run evolution: %v", err)
	}

	run := result.Run
	if !strings.HasPrefix(run.ID, "majority-5-11-") || len(run.ID) != len("majority-5-11-")+8 {
		t.Fatalf("unexpected run id: %s", run.ID)
	}
	if run.Generations != 4 || run.StoppedBy != "max_generations(4)" {
		t.Fatalf("unexpected termination: generations=%d stopped_by=%s", run.Generations, run.StoppedBy)
	}
	if run.Evaluations != 5*30 {
		t.Fatalf("unexpected evaluations: %d", run.Evaluations)
	}
	if len(generations) != 5 || len(result.BestByGeneration) != 5 || len(result.GenerationDiagnostics) != 5 {
		t.Fatalf("unexpected history lengths: hooks=%d history=%d diagnostics=%d",
			len(generations), len(result.BestByGeneration), len(result.GenerationDiagnostics))
	}
	for i := 1; i < len(result.BestByGeneration); i++ {
		if result.BestByGeneration[i] > result.BestByGeneration[i-1] {
			t.Fatalf("elitist best fitness regressed: %v", result.BestByGeneration)
		}
	}
	if run.Direction != "minimise" || run.InitMethod != "ramped" || run.Selector != "tournament" {
		t.Fatalf("unexpected resolved defaults: %+v", run)
	}

	stored, ok, err := p.store.GetRun(ctx, run.ID)
	if err != nil || !ok {
		t.Fatalf("get run: ok=%t err=%v", ok, err)
	}
	if stored.BestProgram != run.BestProgram || stored.SchemaVersion != storage.CurrentSchemaVersion {
		t.Fatalf("unexpected stored run: %+v", stored)
	}
	if _, ok, err := p.store.GetFitnessHistory(ctx, run.ID); err != nil || !ok {
		t.Fatalf("get history: ok=%t err=%v", ok, err)
	}

	top, ok, err := p.store.GetTopPrograms(ctx, run.ID)
	if err != nil || !ok {
		t.Fatalf("get top programs: ok=%t err=%v", ok, err)
	}
	if len(top) != DefaultTopCount || top[0].Rank != 1 || top[0].Fingerprint == "" {
		t.Fatalf("unexpected top programs: %+v", top)
	}
	if top[0].Fitness != run.BestFitness {
		t.Fatalf("top program fitness %f does not match best %f", top[0].Fitness, run.BestFitness)
	}

	summary, ok, err := p.ProblemSummary(ctx, "majority_5")
	if err != nil || !ok {
		t.Fatalf("get summary: ok=%t err=%v", ok, err)
	}
	if summary.Runs != 1 || summary.BestRunID != run.ID || summary.BestFitness != run.BestFitness {
		t.Fatalf("unexpected summary: %+v", summary)
	}
}

func TestPolisRunEvolutionIsReproducible(t *testing.T) {
	cfg := EvolutionConfig{
		Problem:        "quartic",
		Seed:           5,
		PopulationSize: 25,
		Generations:    3,
		Elites:         1,
		Postprocessor:  "size_proportional",
	}
	a, err := newTestPolis(t).RunEvolution(context.Background(), cfg)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	b, err := newTestPolis(t).RunEvolution(context.Background(), cfg)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if a.Run.BestProgram != b.Run.BestProgram || a.Run.BestFitness != b.Run.BestFitness {
		t.Fatalf("runs diverged: %s (%f) vs %s (%f)", a.Run.BestProgram, a.Run.BestFitness, b.Run.BestProgram, b.Run.BestFitness)
	}
	for i := range a.BestByGeneration {
		if a.BestByGeneration[i] != b.BestByGeneration[i] {
			t.Fatalf("histories diverged: %v vs %v", a.BestByGeneration, b.BestByGeneration)
		}
	}
	if math.IsNaN(a.Run.BestFitness) {
		t.Fatal("best fitness is NaN")
	}
}

func TestPolisRunEvolutionStopsAtTarget(t *testing.T) {
	ctx := context.Background()
	p := newTestPolis(t)
	if err := p.RegisterProblem("constant", func() (problem.Problem, error) { return newConstantProblem(0), nil }); err != nil {
		t.Fatalf("register: %v", err)
	}

	result, err := p.RunEvolution(ctx, EvolutionConfig{Problem: "constant", PopulationSize: 10, Generations: 20})
	if err != nil {
		t.Fatalf("run evolution: %v", err)
	}
	if !result.Run.Solved || result.Run.Generations != 0 || result.Run.StoppedBy != "target_fitness(0)" {
		t.Fatalf("expected immediate solve, got %+v", result.Run)
	}
}

func TestPolisRunEvolutionMaxEvaluations(t *testing.T) {
	p := newTestPolis(t)
	if err := p.RegisterProblem("constant", func() (problem.Problem, error) { return newConstantProblem(1), nil }); err != nil {
		t.Fatalf("register: %v", err)
	}
	result, err := p.RunEvolution(context.Background(), EvolutionConfig{
		Problem:        "constant",
		PopulationSize: 10,
		MaxEvaluations: 25,
	})
	if err != nil {
		t.Fatalf("run evolution: %v", err)
	}
	if result.Run.Evaluations != 30 || result.Run.StoppedBy != "max_evaluations(25)" {
		t.Fatalf("unexpected stop: evaluations=%d stopped_by=%s", result.Run.Evaluations, result.Run.StoppedBy)
	}
}

func TestPolisStopRunPersistsPartialRun(t *testing.T) {
	ctx := context.Background()
	p := newTestPolis(t)

	const runID = "stoppable"
	result, err := p.RunEvolution(ctx, EvolutionConfig{
		RunID:          runID,
		Problem:        "even-parity-3",
		PopulationSize: 20,
		Generations:    50,
		IgnoreTarget:   true,
		Hooks: &evo.Hooks{OnGeneration: func(s evo.GenerationStats) {
			if active := p.ActiveRuns(); len(active) != 1 || active[0] != runID {
				t.Errorf("unexpected active runs: %v", active)
			}
			if s.Generation == 2 {
				if err := p.StopRun(runID); err != nil {
					t.Errorf("stop run: %v", err)
				}
			}
		}},
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected canceled run, got %v", err)
	}
	if result.Run.StoppedBy != "canceled" || result.Run.Generations != 2 {
		t.Fatalf("unexpected partial run: %+v", result.Run)
	}
	if _, ok, err := p.store.GetRun(ctx, runID); err != nil || !ok {
		t.Fatalf("expected persisted partial run: ok=%t err=%v", ok, err)
	}
	if len(p.ActiveRuns()) != 0 {
		t.Fatalf("expected no active runs, got %v", p.ActiveRuns())
	}
	if err := p.StopRun(runID); err == nil {
		t.Fatal("expected inactive run error")
	}
}

func TestPolisRunEvolutionValidation(t *testing.T) {
	p := newTestPolis(t)
	ctx := context.Background()

	cases := []EvolutionConfig{
		{},
		{Problem: "unknown"},
		{Problem: "quartic", PopulationSize: 4, Elites: 4},
		{Problem: "quartic", MaxDepth: 4, InitMaxDepth: 6},
		{Problem: "quartic", Selector: "roulette"},
		{Problem: "quartic", Postprocessor: "lexicase"},
		{Problem: "quartic", Operators: []model.OperatorWeight{{Name: "inversion", Probability: 1}}},
	}
	for i, cfg := range cases {
		if _, err := p.RunEvolution(ctx, cfg); err == nil {
			t.Fatalf("case %d: expected error for %+v", i, cfg)
		}
	}
}

func TestPolisRunEvolutionChecksDepthsAfterDefaults(t *testing.T) {
	p := newTestPolis(t)
	ctx := context.Background()
	mutationOnly := []model.OperatorWeight{{Name: "subtree_mutation", Probability: 1}}

	_, err := p.RunEvolution(ctx, EvolutionConfig{
		Problem:      "mux6",
		InitMinDepth: 10,
		InitMaxDepth: 10,
		Operators:    mutationOnly,
	})
	if err == nil {
		t.Fatal("expected init depth beyond the default max depth to be rejected")
	}
	if _, err := p.RunEvolution(ctx, EvolutionConfig{Problem: "mux6", MaxDepth: 3, InitMinDepth: 5}); err == nil {
		t.Fatal("expected init min depth beyond init max depth to be rejected")
	}

	deepest := 0
	result, err := p.RunEvolution(ctx, EvolutionConfig{
		Problem:        "mux6",
		Seed:           5,
		PopulationSize: 20,
		Generations:    3,
		InitMinDepth:   DefaultMaxDepth,
		InitMaxDepth:   DefaultMaxDepth,
		Operators:      mutationOnly,
		IgnoreTarget:   true,
		Hooks: &evo.Hooks{OnOperator: func(ev evo.OperatorEvent) {
			for _, child := range ev.Offspring {
				deepest = max(deepest, child.Depth())
			}
		}},
	})
	if err != nil {
		t.Fatalf("run evolution: %v", err)
	}
	if result.Config.MaxDepth != DefaultMaxDepth {
		t.Fatalf("unexpected max depth: %d", result.Config.MaxDepth)
	}
	if deepest == 0 || deepest > DefaultMaxDepth {
		t.Fatalf("mutation offspring depth %d outside (0, %d]", deepest, DefaultMaxDepth)
	}
}

func TestPolisEvaluateProgram(t *testing.T) {
	p := newTestPolis(t)
	f, trace, err := p.EvaluateProgram(context.Background(), "quartic", "ADD(x, MUL(x, ADD(x, MUL(x, ADD(x, MUL(x, x))))))")
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if f.Value > 1e-12 || trace["hits"] != 20 {
		t.Fatalf("unexpected evaluation: %v %v", f, trace)
	}
	if _, _, err := p.EvaluateProgram(context.Background(), "quartic", "ADD(x"); !errors.Is(err, tree.ErrParse) {
		t.Fatalf("expected parse error, got %v", err)
	}
}

func TestPolisResetDropsRuns(t *testing.T) {
	ctx := context.Background()
	p := newTestPolis(t)
	if _, err := p.RunEvolution(ctx, EvolutionConfig{Problem: "majority-5", PopulationSize: 10, Generations: 1}); err != nil {
		t.Fatalf("run evolution: %v", err)
	}
	if err := p.Reset(ctx); err != nil {
		t.Fatalf("reset: %v", err)
	}
	runs, err := p.store.ListRuns(ctx)
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(runs) != 0 {
		t.Fatalf("expected no runs after reset, got %d", len(runs))
	}
	if !p.Started() {
		t.Fatal("expected polis to restart after reset")
	}
}
