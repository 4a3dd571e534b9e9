package evo

import (
	"context"
	"errors"
	"fmt"

	"gpforge/internal/tree"
)

// State is a phase of the generational loop.
type State int

const (
	StateInitializing State = iota
	StateEvaluating
	StateCheckTermination
	StateBreeding
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateEvaluating:
		return "evaluating"
	case StateCheckTermination:
		return "check_termination"
	case StateBreeding:
		return "breeding"
	case StateTerminated:
		return "terminated"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Evaluator scores one program.
type Evaluator interface {
	Evaluate(ctx context.Context, program *tree.Node) (Fitness, error)
}

type EvaluatorFunc func(ctx context.Context, program *tree.Node) (Fitness, error)

func (f EvaluatorFunc) Evaluate(ctx context.Context, program *tree.Node) (Fitness, error) {
	return f(ctx, program)
}

// GenerationStats summarizes one evaluated generation. Fitness figures are
// raw evaluator scores, before any postprocessing.
type GenerationStats struct {
	Generation   int       `json:"generation"`
	Evaluations  int       `json:"evaluations"`
	Direction    Direction `json:"direction"`
	BestFitness  float64   `json:"best_fitness"`
	MeanFitness  float64   `json:"mean_fitness"`
	WorstFitness float64   `json:"worst_fitness"`
	MeanLength   float64   `json:"mean_length"`
	MeanDepth    float64   `json:"mean_depth"`
	MaxDepth     int       `json:"max_depth"`
	// Diversity is the share of distinct program fingerprints.
	Diversity   float64 `json:"diversity"`
	BestProgram string  `json:"best_program"`
}

type StrategyConfig struct {
	Breeder   *Breeder
	Evaluator Evaluator
	// Postprocessor adjusts fitness after each evaluation pass. Nil means none.
	Postprocessor FitnessPostprocessor
	Termination   []TerminationCriterion
	Hooks         *Hooks
}

type RunResult struct {
	// Final is the last evaluated population.
	Final *Population
	// Best is a copy of the best individual seen in any generation, carrying
	// its raw fitness.
	Best        *Individual
	Generations int
	Evaluations int
	History     []GenerationStats
	// StoppedBy names the criterion that ended the run.
	StoppedBy string
}

// GenerationalStrategy drives evaluate, check and breed phases until a
// termination criterion fires.
type GenerationalStrategy struct {
	cfg StrategyConfig
}

func NewGenerationalStrategy(cfg StrategyConfig) (*GenerationalStrategy, error) {
	if cfg.Breeder == nil {
		return nil, errors.New("strategy: breeder is required")
	}
	if cfg.Evaluator == nil {
		return nil, errors.New("strategy: evaluator is required")
	}
	if len(cfg.Termination) == 0 {
		return nil, errors.New("strategy: at least one termination criterion is required")
	}
	for i, c := range cfg.Termination {
		if c == nil {
			return nil, fmt.Errorf("strategy: termination criterion is required at index %d", i)
		}
	}
	if cfg.Postprocessor == nil {
		cfg.Postprocessor = NoopFitnessPostprocessor{}
	}
	return &GenerationalStrategy{cfg: cfg}, nil
}

// Run evolves initial until a criterion fires. The initial population is
// evaluated in place. On context cancellation the partial result is returned
// together with the context error.
func (s *GenerationalStrategy) Run(ctx context.Context, initial *Population) (*RunResult, error) {
	if initial == nil || initial.Size() == 0 {
		return nil, errors.New("strategy: initial population is empty")
	}
	if initial.Size() != s.cfg.Breeder.PopulationSize() {
		return nil, fmt.Errorf("strategy: initial population has %d individuals, breeder expects %d",
			initial.Size(), s.cfg.Breeder.PopulationSize())
	}

	result := &RunResult{}
	s.cfg.Hooks.state(StateInitializing, 0)

	pop := initial
	var bestFitness Fitness
	for generation := 0; ; generation++ {
		if err := ctx.Err(); err != nil {
			result.StoppedBy = "canceled"
			return result, err
		}
		s.cfg.Hooks.state(StateEvaluating, generation)
		stats, genBest, err := s.evaluate(ctx, pop, generation, result.Evaluations)
		if err != nil {
			return result, err
		}
		result.Final = pop
		result.Evaluations = stats.Evaluations
		result.Generations = generation
		result.History = append(result.History, stats)
		if result.Best == nil {
			result.Best, bestFitness = genBest, genBest.fitness
		} else if better, _ := genBest.fitness.Better(bestFitness); better {
			result.Best, bestFitness = genBest, genBest.fitness
		}
		s.cfg.Hooks.generation(stats)

		if err := ctx.Err(); err != nil {
			result.StoppedBy = "canceled"
			return result, err
		}
		s.cfg.Hooks.state(StateCheckTermination, generation)
		runState := RunState{
			Generation:  generation,
			Evaluations: result.Evaluations,
			Best:        result.Best,
			BestFitness: bestFitness,
		}
		if c := firstSatisfied(s.cfg.Termination, runState); c != nil {
			result.StoppedBy = c.Name()
			s.cfg.Hooks.state(StateTerminated, generation)
			return result, nil
		}

		s.cfg.Hooks.state(StateBreeding, generation)
		next, err := s.cfg.Breeder.Process(pop)
		if err != nil {
			return result, fmt.Errorf("breed generation %d: %w", generation+1, err)
		}
		pop = next
	}
}

func firstSatisfied(criteria []TerminationCriterion, state RunState) TerminationCriterion {
	for _, c := range criteria {
		if c.Terminate(state) {
			return c
		}
	}
	return nil
}

// evaluate scores every member, records the raw statistics and a copy of the
// generation's best, then hands the population to the postprocessor.
func (s *GenerationalStrategy) evaluate(ctx context.Context, pop *Population, generation, evaluations int) (GenerationStats, *Individual, error) {
	stats := GenerationStats{Generation: generation}
	var (
		best        *Individual
		sumFitness  float64
		sumLength   int
		sumDepth    int
		fingerprint = make(map[string]struct{}, pop.Size())
	)
	for i, ind := range pop.members {
		f, err := s.cfg.Evaluator.Evaluate(ctx, ind.root)
		if err != nil {
			return stats, nil, fmt.Errorf("evaluate individual %d of generation %d: %w", i, generation, err)
		}
		if !f.Evaluated() {
			return stats, nil, fmt.Errorf("evaluate individual %d of generation %d: %w", i, generation, ErrNotEvaluated)
		}
		evaluations++
		ind.fitness = f
		if best == nil {
			best = ind
			stats.Direction = f.Direction
			stats.WorstFitness = f.Value
		} else {
			better, err := f.Better(best.fitness)
			if err != nil {
				return stats, nil, fmt.Errorf("evaluate individual %d of generation %d: %w", i, generation, err)
			}
			if better {
				best = ind
			}
			if c, _ := f.Compare(Fitness{Value: stats.WorstFitness, Direction: f.Direction}); c < 0 {
				stats.WorstFitness = f.Value
			}
		}
		sumFitness += f.Value
		length, depth := ind.Length(), ind.Depth()
		sumLength += length
		sumDepth += depth
		if depth > stats.MaxDepth {
			stats.MaxDepth = depth
		}
		fingerprint[ComputeProgramSignature(ind.root).Fingerprint] = struct{}{}
	}

	n := float64(pop.Size())
	stats.Evaluations = evaluations
	stats.BestFitness = best.fitness.Value
	stats.MeanFitness = sumFitness / n
	stats.MeanLength = float64(sumLength) / n
	stats.MeanDepth = float64(sumDepth) / n
	stats.Diversity = float64(len(fingerprint)) / n
	stats.BestProgram = best.String()

	bestCopy := best.Clone()
	s.cfg.Postprocessor.Process(pop.members)
	return stats, bestCopy, nil
}
