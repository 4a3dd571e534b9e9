package evo

import (
	"errors"
	"fmt"

	"gpforge/internal/tree"
)

// ErrDepthExceeded reports a parent that is already deeper than the operator's
// maximum depth.
var ErrDepthExceeded = errors.New("program exceeds max depth")

type MutationConfig struct {
	Random   tree.Random
	MaxDepth int
	// Grower is used when set; otherwise one is built from Syntax.
	Grower *tree.Grower
	Syntax *tree.Syntax
	Hooks  *Hooks
}

// SubtreeMutation replaces a random subtree with a freshly grown one of the
// same data type.
type SubtreeMutation struct {
	cfg    MutationConfig
	grower *tree.Grower
}

func NewSubtreeMutation(cfg MutationConfig) (*SubtreeMutation, error) {
	if cfg.Random == nil {
		return nil, errors.New("mutation: random source is required")
	}
	if cfg.MaxDepth < 0 {
		return nil, fmt.Errorf("mutation: max depth must be >= 0, got %d", cfg.MaxDepth)
	}
	grower := cfg.Grower
	if grower == nil {
		if cfg.Syntax == nil {
			return nil, errors.New("mutation: syntax or grower is required")
		}
		var err error
		grower, err = tree.NewGrower(cfg.Syntax)
		if err != nil {
			return nil, fmt.Errorf("mutation: %w", err)
		}
	}
	return &SubtreeMutation{cfg: cfg, grower: grower}, nil
}

func (*SubtreeMutation) Name() string { return "subtree_mutation" }
func (*SubtreeMutation) Arity() int   { return 1 }

// Apply always returns exactly one offspring on success, never deeper than
// MaxDepth. A parent deeper than MaxDepth is rejected with ErrDepthExceeded;
// within the bound the original subtree proves its type can be regrown.
func (m *SubtreeMutation) Apply(parents []*Individual) ([]*Individual, error) {
	if len(parents) != 1 {
		return nil, fmt.Errorf("mutation: expected 1 parent, got %d", len(parents))
	}
	if d := parents[0].Depth(); d > m.cfg.MaxDepth {
		return nil, fmt.Errorf("mutation: %w: depth %d > %d", ErrDepthExceeded, d, m.cfg.MaxDepth)
	}
	rng := m.cfg.Random
	child := parents[0].Clone()
	child.fitness = Fitness{}

	point := rng.Intn(child.Length())
	depth, err := child.root.DepthOf(point)
	if err != nil {
		return nil, err
	}
	old, err := child.GetNode(point)
	if err != nil {
		return nil, err
	}
	wantType := old.DataType()
	if wantType == tree.TypeNone {
		return nil, fmt.Errorf("mutation: %w: subtree %s at %d", tree.ErrIllTyped, old, point)
	}

	budget := m.cfg.MaxDepth - depth
	if budget < 0 {
		budget = 0
	}
	replacement, err := m.grower.Grow(rng, wantType, budget)
	if err != nil {
		return nil, fmt.Errorf("mutation: %w", err)
	}
	if err := child.SetNode(point, replacement); err != nil {
		return nil, err
	}

	offspring := []*Individual{child}
	m.cfg.Hooks.operator(OperatorEvent{
		Operator:  m.Name(),
		Parents:   parents,
		Offspring: offspring,
		Points:    []int{point},
	})
	return offspring, nil
}
