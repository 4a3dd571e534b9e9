package evo

// OperatorEvent describes one application of a genetic operator.
type OperatorEvent struct {
	Operator  string
	Parents   []*Individual
	Offspring []*Individual
	// Points holds the pre-order indices the operator acted on: the point in
	// each parent for crossover, the mutation point for mutation.
	Points []int
	// NoMatch is set when crossover found no compatible subtree in the
	// second parent.
	NoMatch bool
}

// Hooks are optional callbacks. A nil *Hooks, or a nil field, is ignored.
type Hooks struct {
	OnState      func(state State, generation int)
	OnOperator   func(OperatorEvent)
	OnGeneration func(GenerationStats)
}

func (h *Hooks) state(s State, generation int) {
	if h != nil && h.OnState != nil {
		h.OnState(s, generation)
	}
}

func (h *Hooks) operator(ev OperatorEvent) {
	if h != nil && h.OnOperator != nil {
		h.OnOperator(ev)
	}
}

func (h *Hooks) generation(stats GenerationStats) {
	if h != nil && h.OnGeneration != nil {
		h.OnGeneration(stats)
	}
}
