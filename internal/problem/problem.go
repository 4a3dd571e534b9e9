package problem

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"gpforge/internal/evo"
	"gpforge/internal/tree"
)

var ErrUnknownProblem = errors.New("unknown problem")

type Trace map[string]any

// Problem is a fitness case set with the syntax its programs are built from.
// A Problem owns the variables of its syntax and sets them while evaluating,
// so one instance must not evaluate concurrently.
type Problem interface {
	Name() string
	Description() string
	Syntax() *tree.Syntax
	ReturnType() tree.DataType
	// Target is the fitness at which the problem counts as solved.
	Target() evo.Fitness
	Evaluate(ctx context.Context, program *tree.Node) (evo.Fitness, Trace, error)
}

// Evaluator adapts p to the evolution loop, dropping the trace.
func Evaluator(p Problem) evo.Evaluator {
	return evo.EvaluatorFunc(func(ctx context.Context, program *tree.Node) (evo.Fitness, error) {
		f, _, err := p.Evaluate(ctx, program)
		return f, err
	})
}

func checkProgram(p Problem, program *tree.Node) error {
	if program == nil {
		return fmt.Errorf("%s: program is required", p.Name())
	}
	if got := program.DataType(); got != p.ReturnType() {
		return fmt.Errorf("%s: %w: program returns %s, want %s", p.Name(), tree.ErrIllTyped, got, p.ReturnType())
	}
	return nil
}

var catalogue = map[string]func() Problem{
	"even-parity-3":  func() Problem { return NewEvenParity(3) },
	"even-parity-4":  func() Problem { return NewEvenParity(4) },
	"even-parity-5":  func() Problem { return NewEvenParity(5) },
	"multiplexer-6":  func() Problem { return NewMultiplexer(2) },
	"multiplexer-11": func() Problem { return NewMultiplexer(3) },
	"majority-5":     func() Problem { return NewMajority(5) },
	"quartic":        func() Problem { return NewQuarticRegression() },
	"piecewise":      func() Problem { return NewPiecewiseRegression() },
}

// Normalize canonicalizes a problem name: case, underscores and a few
// compact aliases are accepted.
func Normalize(name string) string {
	normalized := strings.TrimSpace(strings.ToLower(name))
	normalized = strings.ReplaceAll(normalized, "_", "-")
	normalized = strings.ReplaceAll(normalized, " ", "-")
	normalized = strings.Trim(normalized, "-")
	if _, ok := catalogue[normalized]; ok {
		return normalized
	}
	switch strings.ReplaceAll(normalized, "-", "") {
	case "parity3", "evenparity3":
		return "even-parity-3"
	case "parity4", "evenparity4":
		return "even-parity-4"
	case "parity5", "evenparity5":
		return "even-parity-5"
	case "mux6", "multiplexer6", "6mux":
		return "multiplexer-6"
	case "mux11", "multiplexer11", "11mux":
		return "multiplexer-11"
	case "majority5", "maj5":
		return "majority-5"
	case "quartic", "quarticregression":
		return "quartic"
	case "piecewise", "piecewiseregression":
		return "piecewise"
	default:
		return normalized
	}
}

// Lookup builds a fresh instance of the named problem.
func Lookup(name string) (Problem, error) {
	f, ok := catalogue[Normalize(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProblem, name)
	}
	return f(), nil
}

func Names() []string {
	names := make([]string, 0, len(catalogue))
	for name := range catalogue {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
