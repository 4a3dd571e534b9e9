package problem

import (
	"context"
	"fmt"

	"gpforge/internal/evo"
	"gpforge/internal/tree"
)

// BooleanProblem scores a boolean program against a full truth table. Fitness
// is the number of mismatched rows, minimised; zero solves it.
type BooleanProblem struct {
	name        string
	description string
	syntax      *tree.Syntax
	inputs      []*tree.Variable
	target      func(bits []bool) bool
}

func newBooleanProblem(name, description string, inputs []*tree.Variable, target func([]bool) bool, functions ...tree.Kind) *BooleanProblem {
	kinds := append([]tree.Kind(nil), functions...)
	for _, v := range inputs {
		kinds = append(kinds, v.Kind())
	}
	return &BooleanProblem{
		name:        name,
		description: description,
		syntax:      tree.MustSyntax(kinds...),
		inputs:      inputs,
		target:      target,
	}
}

func boolInputs(prefix string, n int) []*tree.Variable {
	out := make([]*tree.Variable, n)
	for i := range out {
		out[i] = tree.NewVariable(fmt.Sprintf("%s%d", prefix, i), tree.TypeBool)
	}
	return out
}

// NewEvenParity is true when an even number of the bits D0..Dn-1 are set.
// The function set is AND OR NAND NOR.
func NewEvenParity(bits int) *BooleanProblem {
	return newBooleanProblem(
		fmt.Sprintf("even-parity-%d", bits),
		fmt.Sprintf("even parity of %d bits", bits),
		boolInputs("D", bits),
		func(in []bool) bool {
			ones := 0
			for _, b := range in {
				if b {
					ones++
				}
			}
			return ones%2 == 0
		},
		tree.And, tree.Or, tree.Nand, tree.Nor,
	)
}

// NewMultiplexer selects data bit D<address> where the address bits A0..Ak-1
// are read least significant first. The function set is AND OR NOT IF.
func NewMultiplexer(addressBits int) *BooleanProblem {
	dataBits := 1 << addressBits
	inputs := append(boolInputs("A", addressBits), boolInputs("D", dataBits)...)
	return newBooleanProblem(
		fmt.Sprintf("multiplexer-%d", addressBits+dataBits),
		fmt.Sprintf("%d-bit multiplexer (%d address bits)", addressBits+dataBits, addressBits),
		inputs,
		func(in []bool) bool {
			address := 0
			for i := 0; i < addressBits; i++ {
				if in[i] {
					address |= 1 << i
				}
			}
			return in[addressBits+address]
		},
		tree.And, tree.Or, tree.Not, tree.If,
	)
}

// NewMajority is true when more than half of the bits are set. The function
// set is AND OR NOT.
func NewMajority(bits int) *BooleanProblem {
	return newBooleanProblem(
		fmt.Sprintf("majority-%d", bits),
		fmt.Sprintf("majority of %d bits", bits),
		boolInputs("D", bits),
		func(in []bool) bool {
			ones := 0
			for _, b := range in {
				if b {
					ones++
				}
			}
			return 2*ones > len(in)
		},
		tree.And, tree.Or, tree.Not,
	)
}

func (p *BooleanProblem) Name() string              { return p.name }
func (p *BooleanProblem) Description() string       { return p.description }
func (p *BooleanProblem) Syntax() *tree.Syntax      { return p.syntax }
func (p *BooleanProblem) ReturnType() tree.DataType { return tree.TypeBool }
func (p *BooleanProblem) Target() evo.Fitness       { return evo.Minimising(0) }

// Inputs returns the variables in truth table column order.
func (p *BooleanProblem) Inputs() []*tree.Variable {
	return append([]*tree.Variable(nil), p.inputs...)
}

func (p *BooleanProblem) Cases() int { return 1 << len(p.inputs) }

func (p *BooleanProblem) Evaluate(ctx context.Context, program *tree.Node) (evo.Fitness, Trace, error) {
	if err := checkProgram(p, program); err != nil {
		return evo.Fitness{}, nil, err
	}
	bits := make([]bool, len(p.inputs))
	cases := p.Cases()
	misses := 0
	for row := 0; row < cases; row++ {
		if err := ctx.Err(); err != nil {
			return evo.Fitness{}, nil, err
		}
		for i, v := range p.inputs {
			bits[i] = row&(1<<i) != 0
			if err := v.Set(bits[i]); err != nil {
				return evo.Fitness{}, nil, err
			}
		}
		out, err := program.Evaluate()
		if err != nil {
			return evo.Fitness{}, nil, err
		}
		if out.(bool) != p.target(bits) {
			misses++
		}
	}
	return evo.Minimising(float64(misses)), Trace{
		"cases":  cases,
		"hits":   cases - misses,
		"misses": misses,
	}, nil
}
