package evo

import (
	"errors"
	"fmt"

	"gpforge/internal/tree"
)

var ErrBreedingStalled = errors.New("breeding stalled: operators produced no offspring")

const defaultMaxIdleApplications = 10000

// WeightedOperator pairs an operator with its application probability.
// Probabilities are relative and need not sum to one.
type WeightedOperator struct {
	Operator    Operator
	Probability float64
}

type BreederConfig struct {
	Operators      []WeightedOperator
	Selector       Selector
	Random         tree.Random
	PopulationSize int
	// Elites copies the n fittest individuals unchanged into the next
	// population before any operator runs.
	Elites int
	// MaxIdleApplications bounds consecutive operator applications that yield
	// no offspring. Zero uses a default; negative disables the guard.
	MaxIdleApplications int
	Hooks               *Hooks
}

// Breeder assembles the next population by repeatedly picking an operator by
// probability, selecting its parents and collecting the offspring.
type Breeder struct {
	cfg        BreederConfig
	cumulative []float64
	total      float64
}

func NewBreeder(cfg BreederConfig) (*Breeder, error) {
	if cfg.Random == nil {
		return nil, errors.New("breeder: random source is required")
	}
	if cfg.Selector == nil {
		return nil, errors.New("breeder: selector is required")
	}
	if cfg.PopulationSize <= 0 {
		return nil, fmt.Errorf("breeder: population size must be > 0, got %d", cfg.PopulationSize)
	}
	if cfg.Elites < 0 || cfg.Elites > cfg.PopulationSize {
		return nil, fmt.Errorf("breeder: elites must be in [0, %d], got %d", cfg.PopulationSize, cfg.Elites)
	}
	if len(cfg.Operators) == 0 && cfg.Elites < cfg.PopulationSize {
		return nil, errors.New("breeder: at least one operator is required")
	}
	if cfg.MaxIdleApplications == 0 {
		cfg.MaxIdleApplications = defaultMaxIdleApplications
	}

	b := &Breeder{cfg: cfg, cumulative: make([]float64, len(cfg.Operators))}
	for i, item := range cfg.Operators {
		if item.Operator == nil {
			return nil, fmt.Errorf("breeder: operator is required at index %d", i)
		}
		if item.Probability < 0 {
			return nil, fmt.Errorf("breeder: operator probability must be >= 0 at index %d", i)
		}
		b.total += item.Probability
		b.cumulative[i] = b.total
	}
	if len(cfg.Operators) > 0 && b.total <= 0 {
		return nil, errors.New("breeder: at least one operator probability must be > 0")
	}
	return b, nil
}

func (b *Breeder) PopulationSize() int { return b.cfg.PopulationSize }

// Process breeds a replacement for pop containing exactly PopulationSize
// individuals. Offspring beyond the target size are discarded.
func (b *Breeder) Process(pop *Population) (*Population, error) {
	next := NewPopulation(b.cfg.PopulationSize)

	elites, err := pop.Elites(b.cfg.Elites)
	if err != nil {
		return nil, err
	}
	for _, elite := range elites {
		if err := next.Add(elite.Clone()); err != nil {
			return nil, err
		}
	}

	idle := 0
	for !next.Full() {
		op := b.chooseOperator()
		parents, err := b.cfg.Selector.PickParents(b.cfg.Random, pop, op.Arity())
		if err != nil {
			return nil, fmt.Errorf("select parents for %s: %w", op.Name(), err)
		}
		offspring, err := op.Apply(parents)
		if err != nil {
			return nil, fmt.Errorf("apply %s: %w", op.Name(), err)
		}
		if len(offspring) == 0 {
			idle++
			if b.cfg.MaxIdleApplications > 0 && idle >= b.cfg.MaxIdleApplications {
				return nil, fmt.Errorf("%w after %d attempts", ErrBreedingStalled, idle)
			}
			continue
		}
		idle = 0
		for _, child := range offspring {
			if next.Full() {
				break
			}
			if err := next.Add(child); err != nil {
				return nil, err
			}
		}
	}
	return next, nil
}

func (b *Breeder) chooseOperator() Operator {
	pick := b.cfg.Random.Float64() * b.total
	for i, acc := range b.cumulative {
		if pick < acc {
			return b.cfg.Operators[i].Operator
		}
	}
	// Only reachable through rounding in the cumulative sums.
	for i := len(b.cfg.Operators) - 1; i >= 0; i-- {
		if b.cfg.Operators[i].Probability > 0 {
			return b.cfg.Operators[i].Operator
		}
	}
	return b.cfg.Operators[len(b.cfg.Operators)-1].Operator
}
