package problem

import (
	"context"
	"fmt"
	"math"

	"gpforge/internal/evo"
	"gpforge/internal/tree"
)

const (
	regressionHitThreshold = 0.01
	regressionTarget       = 1e-4
)

// RegressionProblem scores a numeric program of one input x by mean squared
// error over fixed sample points, minimised.
type RegressionProblem struct {
	name        string
	description string
	syntax      *tree.Syntax
	x           *tree.Variable
	samples     []float64
	target      func(x float64) float64
}

func samplePoints(lo, hi float64, n int) []float64 {
	out := make([]float64, n)
	step := (hi - lo) / float64(n-1)
	for i := range out {
		out[i] = lo + float64(i)*step
	}
	return out
}

// NewQuarticRegression fits x^4 + x^3 + x^2 + x on 20 points in [-1, 1] with
// ADD SUB MUL PDIV.
func NewQuarticRegression() *RegressionProblem {
	x := tree.NewVariable("x", tree.TypeDouble)
	return &RegressionProblem{
		name:        "quartic",
		description: "symbolic regression of x^4+x^3+x^2+x",
		syntax:      tree.MustSyntax(tree.Add, tree.Sub, tree.Mul, tree.PDiv, x.Kind()),
		x:           x,
		samples:     samplePoints(-1, 1, 20),
		target: func(x float64) float64 {
			return x*x*x*x + x*x*x + x*x + x
		},
	}
}

// NewPiecewiseRegression fits x*x for x > 0 and 2x - 1 otherwise. Its syntax
// mixes booleans, integers and doubles so branches need the comparison
// functions to become typed conditions.
func NewPiecewiseRegression() *RegressionProblem {
	x := tree.NewVariable("x", tree.TypeDouble)
	return &RegressionProblem{
		name:        "piecewise",
		description: "typed regression of a conditional target",
		syntax: tree.MustSyntax(
			tree.Add, tree.Sub, tree.Mul, tree.If, tree.GreaterThan, tree.LessThan,
			x.Kind(),
			tree.ERC{Label: "RI", Type: tree.TypeInt, Min: -2, Max: 3},
			tree.ERC{Label: "RD", Type: tree.TypeDouble, Min: -1, Max: 1},
		),
		x:       x,
		samples: samplePoints(-2, 2, 21),
		target: func(x float64) float64 {
			if x > 0 {
				return x * x
			}
			return 2*x - 1
		},
	}
}

func (p *RegressionProblem) Name() string              { return p.name }
func (p *RegressionProblem) Description() string       { return p.description }
func (p *RegressionProblem) Syntax() *tree.Syntax      { return p.syntax }
func (p *RegressionProblem) ReturnType() tree.DataType { return tree.TypeDouble }
func (p *RegressionProblem) Target() evo.Fitness       { return evo.Minimising(regressionTarget) }

func (p *RegressionProblem) Variable() *tree.Variable { return p.x }

func (p *RegressionProblem) Samples() []float64 {
	return append([]float64(nil), p.samples...)
}

// Evaluate returns the mean squared error. Non-finite errors are reported as
// math.MaxFloat64 so they always rank last.
func (p *RegressionProblem) Evaluate(ctx context.Context, program *tree.Node) (evo.Fitness, Trace, error) {
	if err := checkProgram(p, program); err != nil {
		return evo.Fitness{}, nil, err
	}
	var sse float64
	hits := 0
	predictions := make([]float64, 0, len(p.samples))
	for _, x := range p.samples {
		if err := ctx.Err(); err != nil {
			return evo.Fitness{}, nil, err
		}
		if err := p.x.Set(x); err != nil {
			return evo.Fitness{}, nil, err
		}
		out, err := program.Evaluate()
		if err != nil {
			return evo.Fitness{}, nil, err
		}
		predicted, err := asFloat(out)
		if err != nil {
			return evo.Fitness{}, nil, fmt.Errorf("%s: %w", p.name, err)
		}
		predictions = append(predictions, predicted)
		delta := predicted - p.target(x)
		if math.Abs(delta) < regressionHitThreshold {
			hits++
		}
		sse += delta * delta
	}
	mse := sse / float64(len(p.samples))
	if math.IsNaN(mse) || math.IsInf(mse, 0) {
		mse = math.MaxFloat64
	}
	return evo.Minimising(mse), Trace{
		"cases":       len(p.samples),
		"hits":        hits,
		"mse":         mse,
		"predictions": predictions,
	}, nil
}

func asFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case int64:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("numeric output expected, got %T", v)
	}
}
