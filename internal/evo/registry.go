package evo

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"gpforge/internal/tree"
)

var (
	ErrOperatorExists   = errors.New("operator already registered")
	ErrOperatorNotFound = errors.New("operator not found")
	ErrSelectorExists   = errors.New("selector already registered")
	ErrSelectorNotFound = errors.New("selector not found")
)

// OperatorEnv is what an operator factory may draw on.
type OperatorEnv struct {
	Random              tree.Random
	MaxDepth            int
	Grower              *tree.Grower
	TerminalProbability *float64
	Hooks               *Hooks
}

type OperatorFactory func(env OperatorEnv) (Operator, error)

// SelectorFactory builds a selector. Param is the selector's size knob
// (tournament size, elite count); zero picks the selector default.
type SelectorFactory func(param int) Selector

var operatorRegistry = struct {
	mu sync.RWMutex
	m  map[string]OperatorFactory
}{
	m: make(map[string]OperatorFactory),
}

var selectorRegistry = struct {
	mu sync.RWMutex
	m  map[string]SelectorFactory
}{
	m: make(map[string]SelectorFactory),
}

func init() {
	registerDefaults()
}

func registerDefaults() {
	_ = RegisterOperator("subtree_crossover", func(env OperatorEnv) (Operator, error) {
		return NewSubtreeCrossover(CrossoverConfig{
			Random:              env.Random,
			MaxDepth:            env.MaxDepth,
			TerminalProbability: env.TerminalProbability,
			Hooks:               env.Hooks,
		})
	})
	_ = RegisterOperator("subtree_mutation", func(env OperatorEnv) (Operator, error) {
		return NewSubtreeMutation(MutationConfig{
			Random:   env.Random,
			MaxDepth: env.MaxDepth,
			Grower:   env.Grower,
			Hooks:    env.Hooks,
		})
	})
	_ = RegisterSelector("tournament", func(param int) Selector { return TournamentSelector{Size: param} })
	_ = RegisterSelector("random", func(int) Selector { return RandomSelector{} })
	_ = RegisterSelector("elite", func(param int) Selector { return EliteSelector{Count: param} })
	_ = RegisterSelector("linear_rank", func(int) Selector { return LinearRankSelector{} })
}

func RegisterOperator(name string, factory OperatorFactory) error {
	if name == "" {
		return errors.New("operator name is required")
	}
	if factory == nil {
		return errors.New("operator factory is required")
	}

	operatorRegistry.mu.Lock()
	defer operatorRegistry.mu.Unlock()

	if _, exists := operatorRegistry.m[name]; exists {
		return fmt.Errorf("%w: %s", ErrOperatorExists, name)
	}
	operatorRegistry.m[name] = factory
	return nil
}

// ResolveOperator builds the operator registered under name.
func ResolveOperator(name string, env OperatorEnv) (Operator, error) {
	operatorRegistry.mu.RLock()
	factory, ok := operatorRegistry.m[name]
	operatorRegistry.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrOperatorNotFound, name)
	}
	op, err := factory(env)
	if err != nil {
		return nil, fmt.Errorf("build operator %s: %w", name, err)
	}
	return op, nil
}

func ListOperators() []string {
	operatorRegistry.mu.RLock()
	defer operatorRegistry.mu.RUnlock()

	names := make([]string, 0, len(operatorRegistry.m))
	for name := range operatorRegistry.m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func RegisterSelector(name string, factory SelectorFactory) error {
	if name == "" {
		return errors.New("selector name is required")
	}
	if factory == nil {
		return errors.New("selector factory is required")
	}

	selectorRegistry.mu.Lock()
	defer selectorRegistry.mu.Unlock()

	if _, exists := selectorRegistry.m[name]; exists {
		return fmt.Errorf("%w: %s", ErrSelectorExists, name)
	}
	selectorRegistry.m[name] = factory
	return nil
}

func ResolveSelector(name string, param int) (Selector, error) {
	selectorRegistry.mu.RLock()
	factory, ok := selectorRegistry.m[name]
	selectorRegistry.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSelectorNotFound, name)
	}
	return factory(param), nil
}

func ListSelectors() []string {
	selectorRegistry.mu.RLock()
	defer selectorRegistry.mu.RUnlock()

	names := make([]string, 0, len(selectorRegistry.m))
	for name := range selectorRegistry.m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func resetRegistriesForTests() {
	operatorRegistry.mu.Lock()
	operatorRegistry.m = make(map[string]OperatorFactory)
	operatorRegistry.mu.Unlock()

	selectorRegistry.mu.Lock()
	selectorRegistry.m = make(map[string]SelectorFactory)
	selectorRegistry.mu.Unlock()

	registerDefaults()
}
