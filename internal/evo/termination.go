package evo

import "fmt"

// RunState is the progress visible to termination criteria.
type RunState struct {
	Generation  int
	Evaluations int
	Best        *Individual
	BestFitness Fitness
}

// TerminationCriterion ends a run when Terminate returns true.
type TerminationCriterion interface {
	Name() string
	Terminate(state RunState) bool
}

// MaxGenerations stops once Limit generations have been bred.
type MaxGenerations struct {
	Limit int
}

func (c MaxGenerations) Name() string {
	return fmt.Sprintf("max_generations(%d)", c.Limit)
}

func (c MaxGenerations) Terminate(state RunState) bool {
	return state.Generation >= c.Limit
}

// MaxEvaluations stops once Limit fitness evaluations have been performed.
type MaxEvaluations struct {
	Limit int
}

func (c MaxEvaluations) Name() string {
	return fmt.Sprintf("max_evaluations(%d)", c.Limit)
}

func (c MaxEvaluations) Terminate(state RunState) bool {
	return c.Limit > 0 && state.Evaluations >= c.Limit
}

// TargetFitness stops once the best fitness so far is at least as good as
// Target. A best fitness of another direction never satisfies it.
type TargetFitness struct {
	Target Fitness
}

func (c TargetFitness) Name() string {
	return fmt.Sprintf("target_fitness(%g)", c.Target.Value)
}

func (c TargetFitness) Terminate(state RunState) bool {
	ok, err := state.BestFitness.AtLeast(c.Target)
	return err == nil && ok
}

// TerminationFunc adapts a function to TerminationCriterion.
type TerminationFunc struct {
	Label string
	Fn    func(state RunState) bool
}

func (c TerminationFunc) Name() string {
	if c.Label == "" {
		return "custom"
	}
	return c.Label
}

func (c TerminationFunc) Terminate(state RunState) bool {
	return c.Fn != nil && c.Fn(state)
}
