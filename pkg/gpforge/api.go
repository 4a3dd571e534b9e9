package gpforge

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"gpforge/internal/evo"
	"gpforge/internal/model"
	"gpforge/internal/platform"
	"gpforge/internal/stats"
	"gpforge/internal/storage"
)

const (
	defaultArtifactsDir = "runs"
	defaultExportsDir   = "exports"
	defaultDBPath       = "gpforge.db"
)

type Options struct {
	StoreKind    string
	DBPath       string
	ArtifactsDir string
	ExportsDir   string
}

type Client struct {
	store storage.Store
	polis *platform.Polis

	artifactsDir string
	exportsDir   string
}

type RunRequest struct {
	Problem             string
	Population          int
	Generations         int
	MaxEvaluations      int
	Seed                int64
	MaxDepth            int
	InitMethod          string
	InitMinDepth        int
	InitMaxDepth        int
	Selection           string
	SelectionParam      int
	Elites              int
	CrossoverRate       float64
	MutationRate        float64
	TerminalProbability *float64
	Postprocessor       string
	IgnoreTarget        bool
	TopCount            int
	// Progress receives the statistics of every generation.
	Progress func(evo.GenerationStats)
}

type RunSummary struct {
	RunID            string
	ArtifactsDir     string
	BestByGeneration []float64
	FinalBestFitness float64
	BestProgram      string
	Generations      int
	Evaluations      int
	StoppedBy        string
	Solved           bool
}

type RunsRequest struct {
	Limit   int
	Problem string
}

type RunItem struct {
	RunID            string
	CreatedAtUTC     string
	Problem          string
	Seed             int64
	Population       int
	Generations      int
	Evaluations      int
	FinalBestFitness float64
	Solved           bool
}

// RunRef names a run either by id or as the most recent one.
type RunRef struct {
	RunID  string
	Latest bool
	Limit  int
}

type ExportRequest struct {
	RunID  string
	Latest bool
	OutDir string
}

type ExportSummary struct {
	RunID     string
	Directory string
}

type ProblemItem struct {
	Name        string
	Description string
	ReturnType  string
	Functions   []string
	Terminals   []string
	Runs        int
	BestFitness *float64
	BestRunID   string
}

type EvalRequest struct {
	Problem string
	Program string
}

type EvalSummary struct {
	Problem   string
	Program   string
	Fitness   float64
	Direction string
	Solved    bool
	Trace     map[string]any
}

type BenchmarkRequest struct {
	ID   string
	Runs int
	Run  RunRequest
	// OnRun is called after each completed run.
	OnRun func(index int, run RunSummary)
}

type BenchmarkSummary struct {
	ID         string
	Directory  string
	Summary    stats.BenchmarkSummary
	MeanSeries []float64
}

func New(opts Options) (*Client, error) {
	storeKind := opts.StoreKind
	if storeKind == "" {
		storeKind = storage.DefaultStoreKind
	}
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = defaultDBPath
	}
	artifactsDir := opts.ArtifactsDir
	if artifactsDir == "" {
		artifactsDir = defaultArtifactsDir
	}
	exportsDir := opts.ExportsDir
	if exportsDir == "" {
		exportsDir = defaultExportsDir
	}

	store, err := storage.NewStore(storeKind, dbPath)
	if err != nil {
		return nil, err
	}

	return &Client{
		store:        store,
		artifactsDir: artifactsDir,
		exportsDir:   exportsDir,
	}, nil
}

func (c *Client) Close() error {
	if c.polis != nil {
		c.polis.Stop()
	}
	return storage.CloseIfSupported(c.store)
}

func (c *Client) Init(ctx context.Context) error {
	_, err := c.ensurePolis(ctx)
	return err
}

// Reset drops stored runs. Artifact directories are left in place.
func (c *Client) Reset(ctx context.Context) error {
	p, err := c.ensurePolis(ctx)
	if err != nil {
		return err
	}
	return p.Reset(ctx)
}

func (c *Client) Problems(ctx context.Context) ([]ProblemItem, error) {
	p, err := c.ensurePolis(ctx)
	if err != nil {
		return nil, err
	}
	names := p.RegisteredProblems()
	out := make([]ProblemItem, 0, len(names))
	for _, name := range names {
		prob, err := p.Problem(name)
		if err != nil {
			return nil, err
		}
		item := ProblemItem{
			Name:        prob.Name(),
			Description: prob.Description(),
			ReturnType:  prob.ReturnType().String(),
		}
		for _, k := range prob.Syntax().Functions() {
			item.Functions = append(item.Functions, k.Name())
		}
		for _, k := range prob.Syntax().Terminals() {
			item.Terminals = append(item.Terminals, k.Name())
		}
		summary, ok, err := p.ProblemSummary(ctx, name)
		if err != nil {
			return nil, err
		}
		if ok {
			best := summary.BestFitness
			item.Runs = summary.Runs
			item.BestFitness = &best
			item.BestRunID = summary.BestRunID
		}
		out = append(out, item)
	}
	return out, nil
}

func (r RunRequest) evolutionConfig() (platform.EvolutionConfig, error) {
	if strings.TrimSpace(r.Problem) == "" {
		return platform.EvolutionConfig{}, errors.New("problem is required")
	}
	if r.CrossoverRate < 0 || r.MutationRate < 0 {
		return platform.EvolutionConfig{}, errors.New("operator rates must be >= 0")
	}
	cfg := platform.EvolutionConfig{
		Problem:             r.Problem,
		Seed:                r.Seed,
		PopulationSize:      r.Population,
		Generations:         r.Generations,
		MaxEvaluations:      r.MaxEvaluations,
		MaxDepth:            r.MaxDepth,
		InitMinDepth:        r.InitMinDepth,
		InitMaxDepth:        r.InitMaxDepth,
		Selector:            r.Selection,
		SelectorParam:       r.SelectionParam,
		Elites:              r.Elites,
		Postprocessor:       r.Postprocessor,
		TerminalProbability: r.TerminalProbability,
		IgnoreTarget:        r.IgnoreTarget,
		TopCount:            r.TopCount,
	}
	if r.InitMethod != "" {
		method, err := evo.ParseInitMethod(r.InitMethod)
		if err != nil {
			return platform.EvolutionConfig{}, err
		}
		cfg.InitMethod = method
	}
	if r.CrossoverRate > 0 {
		cfg.Operators = append(cfg.Operators, model.OperatorWeight{Name: "subtree_crossover", Probability: r.CrossoverRate})
	}
	if r.MutationRate > 0 {
		cfg.Operators = append(cfg.Operators, model.OperatorWeight{Name: "subtree_mutation", Probability: r.MutationRate})
	}
	if r.Progress != nil {
		cfg.Hooks = &evo.Hooks{OnGeneration: r.Progress}
	}
	return cfg, nil
}

// Run evolves one problem, persists the run and writes its artifacts.
func (c *Client) Run(ctx context.Context, req RunRequest) (RunSummary, error) {
	cfg, err := req.evolutionConfig()
	if err != nil {
		return RunSummary{}, err
	}
	p, err := c.ensurePolis(ctx)
	if err != nil {
		return RunSummary{}, err
	}
	result, runErr := p.RunEvolution(ctx, cfg)
	if runErr != nil && result.Run.ID == "" {
		return RunSummary{}, runErr
	}
	summary, err := c.recordRun(result)
	if err != nil {
		return RunSummary{}, err
	}
	return summary, runErr
}

func (c *Client) recordRun(result platform.EvolutionResult) (RunSummary, error) {
	cfg, run := result.Config, result.Run
	runConfig := stats.RunConfig{
		RunID:               run.ID,
		Problem:             run.Problem,
		Seed:                run.Seed,
		PopulationSize:      cfg.PopulationSize,
		Generations:         cfg.Generations,
		MaxEvaluations:      cfg.MaxEvaluations,
		MinDepth:            cfg.InitMinDepth,
		MaxDepth:            cfg.MaxDepth,
		InitMethod:          cfg.InitMethod.String(),
		Selector:            cfg.Selector,
		SelectorParam:       cfg.SelectorParam,
		Operators:           cfg.Operators,
		Elites:              cfg.Elites,
		Postprocessor:       cfg.Postprocessor,
		TerminalProbability: cfg.TerminalProbability,
	}
	if !cfg.IgnoreTarget {
		runConfig.TargetFitness = c.targetFor(run.Problem)
	}

	runDir, err := stats.WriteRunArtifacts(c.artifactsDir, stats.RunArtifacts{
		Config:                runConfig,
		BestByGeneration:      result.BestByGeneration,
		GenerationDiagnostics: result.GenerationDiagnostics,
		FinalBestFitness:      run.BestFitness,
		BestProgram:           run.BestProgram,
		StoppedBy:             run.StoppedBy,
		TopPrograms:           result.TopFinal,
	})
	if err != nil {
		return RunSummary{}, err
	}
	if err := stats.AppendRunIndex(c.artifactsDir, stats.RunIndexEntry{
		RunID:            run.ID,
		Problem:          run.Problem,
		PopulationSize:   run.PopulationSize,
		Generations:      run.Generations,
		Evaluations:      run.Evaluations,
		Seed:             run.Seed,
		Selector:         run.Selector,
		Elites:           run.Elites,
		FinalBestFitness: run.BestFitness,
		Solved:           run.Solved,
		CreatedAtUTC:     run.CreatedAtUTC,
	}); err != nil {
		return RunSummary{}, err
	}

	return RunSummary{
		RunID:            run.ID,
		ArtifactsDir:     filepath.Clean(runDir),
		BestByGeneration: append([]float64(nil), result.BestByGeneration...),
		FinalBestFitness: run.BestFitness,
		BestProgram:      run.BestProgram,
		Generations:      run.Generations,
		Evaluations:      run.Evaluations,
		StoppedBy:        run.StoppedBy,
		Solved:           run.Solved,
	}, nil
}

func (c *Client) targetFor(problemName string) *float64 {
	prob, err := c.polis.Problem(problemName)
	if err != nil {
		return nil
	}
	v := prob.Target().Value
	return &v
}

func (c *Client) Runs(_ context.Context, req RunsRequest) ([]RunItem, error) {
	if req.Limit <= 0 {
		req.Limit = 20
	}

	entries, err := stats.ListRunIndex(c.artifactsDir)
	if err != nil {
		return nil, err
	}

	out := make([]RunItem, 0, min(len(entries), req.Limit))
	for _, e := range entries {
		if req.Problem != "" && e.Problem != req.Problem {
			continue
		}
		if len(out) == req.Limit {
			break
		}
		out = append(out, RunItem{
			RunID:            e.RunID,
			CreatedAtUTC:     e.CreatedAtUTC,
			Problem:          e.Problem,
			Seed:             e.Seed,
			Population:       e.PopulationSize,
			Generations:      e.Generations,
			Evaluations:      e.Evaluations,
			FinalBestFitness: e.FinalBestFitness,
			Solved:           e.Solved,
		})
	}
	return out, nil
}

func (c *Client) Export(_ context.Context, req ExportRequest) (ExportSummary, error) {
	runID, err := c.resolveRunID(RunRef{RunID: req.RunID, Latest: req.Latest}, "export")
	if err != nil {
		return ExportSummary{}, err
	}
	if req.OutDir == "" {
		req.OutDir = c.exportsDir
	}

	exportedDir, err := stats.ExportRunArtifacts(c.artifactsDir, runID, req.OutDir)
	if err != nil {
		return ExportSummary{}, err
	}
	return ExportSummary{RunID: runID, Directory: filepath.Clean(exportedDir)}, nil
}

// FitnessHistory returns the best fitness of every generation. Runs recorded
// by another process fall back to their artifacts when the store lacks them.
func (c *Client) FitnessHistory(ctx context.Context, req RunRef) ([]float64, error) {
	runID, err := c.resolveRunID(req, "fitness history")
	if err != nil {
		return nil, err
	}
	if _, err := c.ensurePolis(ctx); err != nil {
		return nil, err
	}
	history, ok, err := c.store.GetFitnessHistory(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		history, ok, err = stats.ReadFitnessHistory(c.artifactsDir, runID)
		if err != nil {
			return nil, err
		}
	}
	if !ok {
		return nil, fmt.Errorf("fitness history not found for run id: %s", runID)
	}
	if req.Limit > 0 && len(history) > req.Limit {
		history = history[:req.Limit]
	}
	return append([]float64(nil), history...), nil
}

func (c *Client) Diagnostics(ctx context.Context, req RunRef) ([]model.GenerationDiagnostics, error) {
	runID, err := c.resolveRunID(req, "diagnostics")
	if err != nil {
		return nil, err
	}
	if _, err := c.ensurePolis(ctx); err != nil {
		return nil, err
	}
	diagnostics, ok, err := c.store.GetGenerationDiagnostics(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		diagnostics, ok, err = stats.ReadGenerationDiagnostics(c.artifactsDir, runID)
		if err != nil {
			return nil, err
		}
	}
	if !ok {
		return nil, fmt.Errorf("diagnostics not found for run id: %s", runID)
	}
	if req.Limit > 0 && len(diagnostics) > req.Limit {
		diagnostics = diagnostics[:req.Limit]
	}
	out := make([]model.GenerationDiagnostics, len(diagnostics))
	copy(out, diagnostics)
	return out, nil
}

func (c *Client) TopPrograms(ctx context.Context, req RunRef) ([]model.TopProgramRecord, error) {
	runID, err := c.resolveRunID(req, "top programs")
	if err != nil {
		return nil, err
	}
	if _, err := c.ensurePolis(ctx); err != nil {
		return nil, err
	}
	top, ok, err := c.store.GetTopPrograms(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		top, ok, err = stats.ReadTopPrograms(c.artifactsDir, runID)
		if err != nil {
			return nil, err
		}
	}
	if !ok {
		return nil, fmt.Errorf("top programs not found for run id: %s", runID)
	}
	sort.SliceStable(top, func(i, j int) bool { return top[i].Rank < top[j].Rank })
	if req.Limit > 0 && len(top) > req.Limit {
		top = top[:req.Limit]
	}
	out := make([]model.TopProgramRecord, len(top))
	copy(out, top)
	return out, nil
}

// Eval scores a single s-expression program against a problem.
func (c *Client) Eval(ctx context.Context, req EvalRequest) (EvalSummary, error) {
	if strings.TrimSpace(req.Program) == "" {
		return EvalSummary{}, errors.New("program is required")
	}
	p, err := c.ensurePolis(ctx)
	if err != nil {
		return EvalSummary{}, err
	}
	prob, err := p.Problem(req.Problem)
	if err != nil {
		return EvalSummary{}, err
	}
	f, trace, err := p.EvaluateProgram(ctx, prob.Name(), req.Program)
	if err != nil {
		return EvalSummary{}, err
	}
	solved, err := f.AtLeast(prob.Target())
	if err != nil {
		return EvalSummary{}, err
	}
	return EvalSummary{
		Problem:   prob.Name(),
		Program:   req.Program,
		Fitness:   f.Value,
		Direction: f.Direction.String(),
		Solved:    solved,
		Trace:     trace,
	}, nil
}

// Benchmark repeats a run request over consecutive seeds and writes the
// aggregated report under the artifacts directory.
func (c *Client) Benchmark(ctx context.Context, req BenchmarkRequest) (BenchmarkSummary, error) {
	cfg, err := req.Run.evolutionConfig()
	if err != nil {
		return BenchmarkSummary{}, err
	}
	p, err := c.ensurePolis(ctx)
	if err != nil {
		return BenchmarkSummary{}, err
	}

	var recordErr error
	result, err := p.RunBenchmark(ctx, platform.BenchmarkConfig{
		ID:        req.ID,
		Runs:      req.Runs,
		Evolution: cfg,
		OnRun: func(i int, r platform.EvolutionResult) {
			summary, err := c.recordRun(r)
			if err != nil {
				if recordErr == nil {
					recordErr = err
				}
				return
			}
			if req.OnRun != nil {
				req.OnRun(i, summary)
			}
		},
	})
	if err != nil {
		return BenchmarkSummary{}, err
	}
	if recordErr != nil {
		return BenchmarkSummary{}, recordErr
	}

	dir, err := stats.WriteBenchmark(c.artifactsDir, result.Summary, result.MeanSeries)
	if err != nil {
		return BenchmarkSummary{}, err
	}
	return BenchmarkSummary{
		ID:         result.Summary.ID,
		Directory:  filepath.Clean(dir),
		Summary:    result.Summary,
		MeanSeries: result.MeanSeries,
	}, nil
}

func (c *Client) resolveRunID(ref RunRef, what string) (string, error) {
	if ref.RunID != "" && ref.Latest {
		return "", errors.New("use either run id or latest")
	}
	if ref.Limit < 0 {
		return "", errors.New("limit must be >= 0")
	}
	if ref.Latest {
		entries, err := stats.ListRunIndex(c.artifactsDir)
		if err != nil {
			return "", err
		}
		if len(entries) == 0 {
			return "", errors.New("no runs available")
		}
		return entries[0].RunID, nil
	}
	if ref.RunID == "" {
		return "", fmt.Errorf("%s requires run id or latest", what)
	}
	return ref.RunID, nil
}

func (c *Client) ensurePolis(ctx context.Context) (*platform.Polis, error) {
	if c.polis != nil {
		return c.polis, nil
	}
	p := platform.NewPolis(platform.Config{Store: c.store})
	if err := p.Init(ctx); err != nil {
		return nil, err
	}
	c.polis = p
	return c.polis, nil
}
