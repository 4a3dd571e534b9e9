package evo

import (
	"fmt"
	"math"
	"strings"
)

const sizeProportionalEfficiency = 0.05

// FitnessPostprocessor adjusts evaluated fitness before selection sees it.
type FitnessPostprocessor interface {
	Name() string
	Process(individuals []*Individual)
}

type NoopFitnessPostprocessor struct{}

func (NoopFitnessPostprocessor) Name() string {
	return "none"
}

func (NoopFitnessPostprocessor) Process([]*Individual) {}

// SizeProportionalPostprocessor applies parsimony pressure: longer programs
// lose fitness by a factor of length^Efficiency, in the direction that makes
// them worse.
type SizeProportionalPostprocessor struct {
	Efficiency float64
}

func (SizeProportionalPostprocessor) Name() string {
	return "size_proportional"
}

func (p SizeProportionalPostprocessor) Process(individuals []*Individual) {
	efficiency := p.Efficiency
	if efficiency <= 0 {
		efficiency = sizeProportionalEfficiency
	}
	for _, ind := range individuals {
		if !ind.fitness.Evaluated() {
			continue
		}
		complexity := float64(ind.Length())
		if complexity < 1 {
			complexity = 1
		}
		factor := math.Pow(complexity, efficiency)
		switch ind.fitness.Direction {
		case Maximise:
			ind.fitness.Value /= factor
		case Minimise:
			ind.fitness.Value *= factor
		}
	}
}

// ResolvePostprocessor maps a postprocessor name to its implementation. The
// empty name selects "none".
func ResolvePostprocessor(name string) (FitnessPostprocessor, error) {
	switch strings.TrimSpace(strings.ToLower(name)) {
	case "", "none":
		return NoopFitnessPostprocessor{}, nil
	case "size_proportional":
		return SizeProportionalPostprocessor{}, nil
	default:
		return nil, fmt.Errorf("unknown fitness postprocessor: %q", name)
	}
}
