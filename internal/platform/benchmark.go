package platform

import (
	"context"
	"fmt"
	"time"

	"gpforge/internal/stats"
)

type BenchmarkConfig struct {
	ID        string
	Runs      int
	Evolution EvolutionConfig
	// OnRun is called after every completed run.
	OnRun func(index int, result EvolutionResult)
}

type BenchmarkResult struct {
	Summary    stats.BenchmarkSummary
	MeanSeries []float64
	Results    []EvolutionResult
}

// RunBenchmark repeats one configuration over consecutive seeds starting at
// Evolution.Seed. Every run is persisted like a regular run.
func (p *Polis) RunBenchmark(ctx context.Context, cfg BenchmarkConfig) (BenchmarkResult, error) {
	if cfg.Runs <= 0 {
		return BenchmarkResult{}, fmt.Errorf("benchmark runs must be > 0, got %d", cfg.Runs)
	}
	if cfg.Evolution.RunID != "" {
		return BenchmarkResult{}, fmt.Errorf("benchmark runs get generated run ids")
	}
	prob, err := p.Problem(cfg.Evolution.Problem)
	if err != nil {
		return BenchmarkResult{}, err
	}
	if cfg.ID == "" {
		cfg.ID = NewRunID("bench-"+prob.Name(), cfg.Evolution.Seed)
	}

	createdAt := time.Now().UTC().Format(time.RFC3339Nano)
	runs := make([]stats.BenchmarkRun, 0, cfg.Runs)
	series := make([][]float64, 0, cfg.Runs)
	results := make([]EvolutionResult, 0, cfg.Runs)
	for i := 0; i < cfg.Runs; i++ {
		evoCfg := cfg.Evolution
		evoCfg.Seed = cfg.Evolution.Seed + int64(i)
		result, err := p.RunEvolution(ctx, evoCfg)
		if err != nil {
			return BenchmarkResult{}, fmt.Errorf("benchmark run %d (seed %d): %w", i, evoCfg.Seed, err)
		}
		runs = append(runs, stats.BenchmarkRun{
			RunID:       result.Run.ID,
			Seed:        result.Run.Seed,
			Solved:      result.Run.Solved,
			Generations: result.Run.Generations,
			Evaluations: result.Run.Evaluations,
			FinalBest:   result.Run.BestFitness,
		})
		series = append(series, result.BestByGeneration)
		results = append(results, result)
		if cfg.OnRun != nil {
			cfg.OnRun(i, result)
		}
	}

	return BenchmarkResult{
		Summary:    stats.BuildBenchmarkSummary(cfg.ID, prob.Name(), createdAt, runs),
		MeanSeries: stats.MeanSeries(series),
		Results:    results,
	}, nil
}
