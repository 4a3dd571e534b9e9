package platform

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"gpforge/internal/evo"
	"gpforge/internal/model"
	"gpforge/internal/problem"
	"gpforge/internal/storage"
	"gpforge/internal/tree"
)

const (
	DefaultPopulationSize = 100
	DefaultGenerations    = 50
	DefaultMaxDepth       = 8
	DefaultInitMinDepth   = 2
	DefaultInitMaxDepth   = 6
	DefaultSelector       = "tournament"
	DefaultTournamentSize = 7
	DefaultTopCount       = 5
)

// DefaultOperators is the classic 90/10 crossover/mutation split.
func DefaultOperators() []model.OperatorWeight {
	return []model.OperatorWeight{
		{Name: "subtree_crossover", Probability: 0.9},
		{Name: "subtree_mutation", Probability: 0.1},
	}
}

type Config struct {
	Store storage.Store
}

// ProblemFactory builds a fresh problem instance. Problems own variable cells,
// so concurrent runs must not share one.
type ProblemFactory func() (problem.Problem, error)

type EvolutionConfig struct {
	RunID               string
	Problem             string
	Seed                int64
	PopulationSize      int
	Generations         int
	MaxEvaluations      int
	MaxDepth            int
	InitMethod          evo.InitMethod
	InitMinDepth        int
	InitMaxDepth        int
	Selector            string
	SelectorParam       int
	Operators           []model.OperatorWeight
	Elites              int
	Postprocessor       string
	TerminalProbability *float64
	// IgnoreTarget keeps evolving after the problem's target fitness is met.
	IgnoreTarget bool
	TopCount     int
	Hooks        *evo.Hooks
}

type EvolutionResult struct {
	Config                EvolutionConfig
	Run                   model.RunRecord
	BestByGeneration      []float64
	GenerationDiagnostics []model.GenerationDiagnostics
	TopFinal              []model.TopProgramRecord
	Best                  *evo.Individual
}

type Polis struct {
	store storage.Store

	mu       sync.RWMutex
	problems map[string]ProblemFactory
	started  bool
	runs     map[string]context.CancelFunc
}

func NewPolis(cfg Config) *Polis {
	return &Polis{
		store:    cfg.Store,
		problems: make(map[string]ProblemFactory),
		runs:     make(map[string]context.CancelFunc),
	}
}

// Init prepares the store and registers the built-in problem catalogue.
// Calling it on a started polis is a no-op.
func (p *Polis) Init(ctx context.Context) error {
	if p.store == nil {
		return fmt.Errorf("store is required")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return nil
	}
	if err := p.store.Init(ctx); err != nil {
		return err
	}
	for _, name := range problem.Names() {
		p.problems[name] = func() (problem.Problem, error) { return problem.Lookup(name) }
	}
	p.started = true
	return nil
}

// Reset cancels active runs and drops every stored record.
func (p *Polis) Reset(ctx context.Context) error {
	p.Stop()
	if err := p.Init(ctx); err != nil {
		return err
	}
	return p.store.Reset(ctx)
}

// Stop cancels active runs. Registered problems are kept until the next Init.
func (p *Polis) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, cancel := range p.runs {
		cancel()
	}
	p.runs = make(map[string]context.CancelFunc)
	p.problems = make(map[string]ProblemFactory)
	p.started = false
}

func (p *Polis) Started() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.started
}

func (p *Polis) RegisterProblem(name string, factory ProblemFactory) error {
	if name == "" {
		return fmt.Errorf("problem name is required")
	}
	if factory == nil {
		return fmt.Errorf("problem factory is required")
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.started {
		return fmt.Errorf("polis is not initialized")
	}
	p.problems[name] = factory
	return nil
}

// Problem builds a fresh instance of a registered problem. Catalogue aliases
// are accepted.
func (p *Polis) Problem(name string) (problem.Problem, error) {
	p.mu.RLock()
	factory, ok := p.problems[name]
	if !ok {
		factory, ok = p.problems[problem.Normalize(name)]
	}
	started := p.started
	p.mu.RUnlock()

	if !started {
		return nil, fmt.Errorf("polis is not initialized")
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", problem.ErrUnknownProblem, name)
	}
	return factory()
}

func (p *Polis) RegisteredProblems() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	names := make([]string, 0, len(p.problems))
	for name := range p.problems {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewRunID returns <problem>-<seed>-<8 hex chars>.
func NewRunID(problemName string, seed int64) string {
	return fmt.Sprintf("%s-%d-%s", problemName, seed, uuid.NewString()[:8])
}

func withDefaults(cfg EvolutionConfig) EvolutionConfig {
	if cfg.PopulationSize <= 0 {
		cfg.PopulationSize = DefaultPopulationSize
	}
	if cfg.Generations <= 0 && cfg.MaxEvaluations <= 0 {
		cfg.Generations = DefaultGenerations
	}
	if cfg.MaxDepth <= 0 {
		cfg.MaxDepth = DefaultMaxDepth
	}
	if cfg.InitMethod == 0 {
		cfg.InitMethod = evo.InitRampedHalfAndHalf
	}
	if cfg.InitMaxDepth <= 0 {
		cfg.InitMaxDepth = min(DefaultInitMaxDepth, cfg.MaxDepth)
	}
	if cfg.InitMinDepth <= 0 {
		cfg.InitMinDepth = min(DefaultInitMinDepth, cfg.InitMaxDepth)
	}
	if cfg.Selector == "" {
		cfg.Selector = DefaultSelector
	}
	if cfg.Selector == "tournament" && cfg.SelectorParam <= 0 {
		cfg.SelectorParam = DefaultTournamentSize
	}
	if len(cfg.Operators) == 0 {
		cfg.Operators = DefaultOperators()
	}
	if cfg.Postprocessor == "" {
		cfg.Postprocessor = evo.NoopFitnessPostprocessor{}.Name()
	}
	if cfg.TopCount <= 0 {
		cfg.TopCount = DefaultTopCount
	}
	return cfg
}

// RunEvolution runs one seeded evolution of a registered problem and persists
// its run record, fitness history, diagnostics and top programs. A canceled
// run is persisted with what it reached and returned with the context error.
func (p *Polis) RunEvolution(ctx context.Context, cfg EvolutionConfig) (EvolutionResult, error) {
	if cfg.Problem == "" {
		return EvolutionResult{}, fmt.Errorf("problem name is required")
	}
	cfg = withDefaults(cfg)
	if cfg.InitMaxDepth > cfg.MaxDepth {
		return EvolutionResult{}, fmt.Errorf("init max depth %d exceeds max depth %d", cfg.InitMaxDepth, cfg.MaxDepth)
	}
	if cfg.InitMinDepth > cfg.InitMaxDepth {
		return EvolutionResult{}, fmt.Errorf("init min depth %d exceeds init max depth %d", cfg.InitMinDepth, cfg.InitMaxDepth)
	}
	if cfg.Elites < 0 || cfg.Elites >= cfg.PopulationSize {
		return EvolutionResult{}, fmt.Errorf("elites must be in [0, %d), got %d", cfg.PopulationSize, cfg.Elites)
	}

	prob, err := p.Problem(cfg.Problem)
	if err != nil {
		return EvolutionResult{}, err
	}
	cfg.Problem = prob.Name()
	if cfg.RunID == "" {
		cfg.RunID = NewRunID(cfg.Problem, cfg.Seed)
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	grower, err := tree.NewGrower(prob.Syntax())
	if err != nil {
		return EvolutionResult{}, err
	}
	breeder, err := buildBreeder(cfg, rng, grower)
	if err != nil {
		return EvolutionResult{}, err
	}
	postprocessor, err := evo.ResolvePostprocessor(cfg.Postprocessor)
	if err != nil {
		return EvolutionResult{}, err
	}
	strategy, err := evo.NewGenerationalStrategy(evo.StrategyConfig{
		Breeder:       breeder,
		Evaluator:     problem.Evaluator(prob),
		Postprocessor: postprocessor,
		Termination:   terminationCriteria(cfg, prob),
		Hooks:         cfg.Hooks,
	})
	if err != nil {
		return EvolutionResult{}, err
	}
	initial, err := evo.InitialPopulation(evo.InitConfig{
		Grower:   grower,
		Random:   rng,
		Method:   cfg.InitMethod,
		Type:     prob.ReturnType(),
		MinDepth: cfg.InitMinDepth,
		MaxDepth: cfg.InitMaxDepth,
		Size:     cfg.PopulationSize,
	})
	if err != nil {
		return EvolutionResult{}, err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if err := p.registerRun(cfg.RunID, cancel); err != nil {
		return EvolutionResult{}, err
	}
	defer p.unregisterRun(cfg.RunID)

	startedAt := time.Now().UTC()
	result, runErr := strategy.Run(runCtx, initial)
	if runErr != nil && (result == nil || result.Best == nil || !errors.Is(runErr, context.Canceled)) {
		return EvolutionResult{}, runErr
	}

	out, err := p.persist(context.WithoutCancel(ctx), cfg, prob, result, startedAt)
	if err != nil {
		return EvolutionResult{}, err
	}
	return out, runErr
}

func buildBreeder(cfg EvolutionConfig, rng *rand.Rand, grower *tree.Grower) (*evo.Breeder, error) {
	env := evo.OperatorEnv{
		Random:              rng,
		MaxDepth:            cfg.MaxDepth,
		Grower:              grower,
		TerminalProbability: cfg.TerminalProbability,
		Hooks:               cfg.Hooks,
	}
	operators := make([]evo.WeightedOperator, 0, len(cfg.Operators))
	for _, w := range cfg.Operators {
		op, err := evo.ResolveOperator(w.Name, env)
		if err != nil {
			return nil, err
		}
		operators = append(operators, evo.WeightedOperator{Operator: op, Probability: w.Probability})
	}
	selector, err := evo.ResolveSelector(cfg.Selector, cfg.SelectorParam)
	if err != nil {
		return nil, err
	}
	return evo.NewBreeder(evo.BreederConfig{
		Operators:      operators,
		Selector:       selector,
		Random:         rng,
		PopulationSize: cfg.PopulationSize,
		Elites:         cfg.Elites,
		Hooks:          cfg.Hooks,
	})
}

func terminationCriteria(cfg EvolutionConfig, prob problem.Problem) []evo.TerminationCriterion {
	var criteria []evo.TerminationCriterion
	if !cfg.IgnoreTarget {
		criteria = append(criteria, evo.TargetFitness{Target: prob.Target()})
	}
	if cfg.Generations > 0 {
		criteria = append(criteria, evo.MaxGenerations{Limit: cfg.Generations})
	}
	if cfg.MaxEvaluations > 0 {
		criteria = append(criteria, evo.MaxEvaluations{Limit: cfg.MaxEvaluations})
	}
	return criteria
}

func (p *Polis) persist(ctx context.Context, cfg EvolutionConfig, prob problem.Problem, result *evo.RunResult, startedAt time.Time) (EvolutionResult, error) {
	best := result.Best
	solved, err := best.Fitness().AtLeast(prob.Target())
	if err != nil {
		return EvolutionResult{}, err
	}
	top, err := topPrograms(ctx, prob, result.Final, cfg.TopCount)
	if err != nil {
		return EvolutionResult{}, err
	}

	history := make([]float64, len(result.History))
	for i, g := range result.History {
		history[i] = g.BestFitness
	}
	diagnostics := toModelDiagnostics(result.History)

	run := model.RunRecord{
		VersionedRecord:     storage.Versioned(),
		ID:                  cfg.RunID,
		Problem:             cfg.Problem,
		Seed:                cfg.Seed,
		PopulationSize:      cfg.PopulationSize,
		MaxDepth:            cfg.MaxDepth,
		InitMethod:          cfg.InitMethod.String(),
		Selector:            cfg.Selector,
		Operators:           append([]model.OperatorWeight(nil), cfg.Operators...),
		Elites:              cfg.Elites,
		Postprocessor:       cfg.Postprocessor,
		Direction:           best.Fitness().Direction.String(),
		Generations:         result.Generations,
		Evaluations:         result.Evaluations,
		StoppedBy:           result.StoppedBy,
		BestFitness:         best.Fitness().Value,
		BestProgram:         best.String(),
		Solved:              solved,
		CreatedAtUTC:        startedAt.Format(time.RFC3339Nano),
		DurationMillis:      time.Since(startedAt).Milliseconds(),
		TerminalProbability: cfg.TerminalProbability,
	}

	if err := p.store.SaveRun(ctx, run); err != nil {
		return EvolutionResult{}, err
	}
	if err := p.store.SaveFitnessHistory(ctx, run.ID, history); err != nil {
		return EvolutionResult{}, err
	}
	if err := p.store.SaveGenerationDiagnostics(ctx, run.ID, diagnostics); err != nil {
		return EvolutionResult{}, err
	}
	if err := p.store.SaveTopPrograms(ctx, run.ID, top); err != nil {
		return EvolutionResult{}, err
	}
	if err := p.updateProblemSummary(ctx, prob, run.ID, best.Fitness()); err != nil {
		return EvolutionResult{}, err
	}

	return EvolutionResult{
		Config:                cfg,
		Run:                   run,
		BestByGeneration:      history,
		GenerationDiagnostics: diagnostics,
		TopFinal:              top,
		Best:                  best,
	}, nil
}

// topPrograms ranks the final population and re-scores the leaders so the
// reported fitness is the raw score rather than a postprocessed one.
func topPrograms(ctx context.Context, prob problem.Problem, final *evo.Population, count int) ([]model.TopProgramRecord, error) {
	ranked, err := final.Ranked()
	if err != nil {
		return nil, err
	}
	if len(ranked) > count {
		ranked = ranked[:count]
	}
	out := make([]model.TopProgramRecord, 0, len(ranked))
	for i, ind := range ranked {
		f, _, err := prob.Evaluate(ctx, ind.Root())
		if err != nil {
			return nil, err
		}
		sig := evo.ComputeProgramSignature(ind.Root())
		out = append(out, model.TopProgramRecord{
			VersionedRecord: storage.Versioned(),
			Rank:            i + 1,
			Program:         ind.String(),
			Fitness:         f.Value,
			Length:          sig.Summary.Length,
			Depth:           sig.Summary.Depth,
			Fingerprint:     sig.Fingerprint,
		})
	}
	return out, nil
}

func toModelDiagnostics(history []evo.GenerationStats) []model.GenerationDiagnostics {
	out := make([]model.GenerationDiagnostics, 0, len(history))
	for _, g := range history {
		out = append(out, model.GenerationDiagnostics{
			Generation:   g.Generation,
			Evaluations:  g.Evaluations,
			BestFitness:  g.BestFitness,
			MeanFitness:  g.MeanFitness,
			WorstFitness: g.WorstFitness,
			MeanLength:   g.MeanLength,
			MeanDepth:    g.MeanDepth,
			MaxDepth:     g.MaxDepth,
			Diversity:    g.Diversity,
			BestProgram:  g.BestProgram,
		})
	}
	return out
}

func (p *Polis) updateProblemSummary(ctx context.Context, prob problem.Problem, runID string, best evo.Fitness) error {
	summary, ok, err := p.store.GetProblemSummary(ctx, prob.Name())
	if err != nil {
		return err
	}
	if !ok {
		summary = model.ProblemSummary{
			VersionedRecord: storage.Versioned(),
			Name:            prob.Name(),
			Description:     prob.Description(),
			BestFitness:     best.Value,
			BestRunID:       runID,
		}
	} else if better, err := best.Better(evo.Fitness{Value: summary.BestFitness, Direction: best.Direction}); err != nil {
		return err
	} else if better {
		summary.BestFitness = best.Value
		summary.BestRunID = runID
	}
	summary.Runs++
	return p.store.SaveProblemSummary(ctx, summary)
}

// ProblemSummary returns the aggregate of every run recorded for name.
func (p *Polis) ProblemSummary(ctx context.Context, name string) (model.ProblemSummary, bool, error) {
	return p.store.GetProblemSummary(ctx, problem.Normalize(name))
}

// EvaluateProgram parses an s-expression against a problem's syntax and scores
// it once.
func (p *Polis) EvaluateProgram(ctx context.Context, problemName, source string) (evo.Fitness, problem.Trace, error) {
	prob, err := p.Problem(problemName)
	if err != nil {
		return evo.Fitness{}, nil, err
	}
	program, err := tree.Parse(source, prob.Syntax())
	if err != nil {
		return evo.Fitness{}, nil, err
	}
	return prob.Evaluate(ctx, program)
}

func (p *Polis) StopRun(runID string) error {
	if runID == "" {
		return fmt.Errorf("run id is required")
	}
	p.mu.RLock()
	cancel, ok := p.runs[runID]
	p.mu.RUnlock()
	if !ok {
		return fmt.Errorf("run not active: %s", runID)
	}
	cancel()
	return nil
}

func (p *Polis) ActiveRuns() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	ids := make([]string, 0, len(p.runs))
	for id := range p.runs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (p *Polis) registerRun(runID string, cancel context.CancelFunc) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.started {
		return fmt.Errorf("polis is not initialized")
	}
	if _, exists := p.runs[runID]; exists {
		return fmt.Errorf("run already active: %s", runID)
	}
	p.runs[runID] = cancel
	return nil
}

func (p *Polis) unregisterRun(runID string) {
	p.mu.Lock()
	delete(p.runs, runID)
	p.mu.Unlock()
}
