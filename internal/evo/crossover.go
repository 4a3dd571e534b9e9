package evo

import (
	"errors"
	"fmt"

	"gpforge/internal/tree"
)

type CrossoverConfig struct {
	Random   tree.Random
	MaxDepth int
	// TerminalProbability biases point selection toward terminals. Nil
	// selects uniformly over all nodes.
	TerminalProbability *float64
	Hooks               *Hooks
}

// SubtreeCrossover swaps a subtree of the first parent with a subtree of the
// same data type from the second parent.
type SubtreeCrossover struct {
	cfg CrossoverConfig
}

func NewSubtreeCrossover(cfg CrossoverConfig) (*SubtreeCrossover, error) {
	if cfg.Random == nil {
		return nil, errors.New("crossover: random source is required")
	}
	if cfg.MaxDepth < 0 {
		return nil, fmt.Errorf("crossover: max depth must be >= 0, got %d", cfg.MaxDepth)
	}
	if p := cfg.TerminalProbability; p != nil && (*p < 0 || *p > 1) {
		return nil, fmt.Errorf("crossover: terminal probability must be in [0, 1], got %g", *p)
	}
	return &SubtreeCrossover{cfg: cfg}, nil
}

func (*SubtreeCrossover) Name() string { return "subtree_crossover" }
func (*SubtreeCrossover) Arity() int   { return 2 }

// Apply returns up to two offspring. It returns none when the second parent
// has no node of the chosen subtree's type. Each side of the swap is kept
// only if its depth is within MaxDepth.
func (c *SubtreeCrossover) Apply(parents []*Individual) ([]*Individual, error) {
	if len(parents) != 2 {
		return nil, fmt.Errorf("crossover: expected 2 parents, got %d", len(parents))
	}
	rng := c.cfg.Random
	a := parents[0].Clone()
	b := parents[1].Clone()
	a.fitness = Fitness{}
	b.fitness = Fitness{}

	maskA := terminalMask(a.root)
	point1 := pickPoint(rng, allIndices(len(maskA)), func(i int) bool { return maskA[i] }, c.cfg.TerminalProbability)
	subA, err := a.GetNode(point1)
	if err != nil {
		return nil, err
	}
	wantType := subA.DataType()

	typesB := b.root.PreOrderTypes()
	var matches []int
	if wantType != tree.TypeNone {
		for i, t := range typesB {
			if t == wantType {
				matches = append(matches, i)
			}
		}
	}
	if len(matches) == 0 {
		c.cfg.Hooks.operator(OperatorEvent{
			Operator: c.Name(),
			Parents:  parents,
			Points:   []int{point1},
			NoMatch:  true,
		})
		return nil, nil
	}

	maskB := terminalMask(b.root)
	point2 := pickPoint(rng, matches, func(i int) bool { return maskB[i] }, c.cfg.TerminalProbability)
	subB, err := b.GetNode(point2)
	if err != nil {
		return nil, err
	}

	if err := a.SetNode(point1, subB); err != nil {
		return nil, err
	}
	if err := b.SetNode(point2, subA); err != nil {
		return nil, err
	}

	offspring := make([]*Individual, 0, 2)
	if a.Depth() <= c.cfg.MaxDepth {
		offspring = append(offspring, a)
	}
	if b.Depth() <= c.cfg.MaxDepth {
		offspring = append(offspring, b)
	}
	c.cfg.Hooks.operator(OperatorEvent{
		Operator:  c.Name(),
		Parents:   parents,
		Offspring: offspring,
		Points:    []int{point1, point2},
	})
	return offspring, nil
}
