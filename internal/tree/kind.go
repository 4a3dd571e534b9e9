package tree

import (
	"math"
	"strconv"
	"strings"
)

// Kind describes one node kind: its fixed arity, its type rule over the
// children's types and its evaluation over the children's values.
type Kind interface {
	Name() string
	Arity() int
	// DataType returns the result type for the given child types, or
	// TypeNone when the combination is not accepted.
	DataType(inputs ...DataType) DataType
	Evaluate(args ...any) any
}

// Generator is implemented by terminal kinds that produce a fresh node each
// time they are grown, such as ephemeral random constants.
type Generator interface {
	Kind
	Generate(rng Random) *Node
}

// TypeRule computes a function kind's result type from its input types.
type TypeRule func(inputs []DataType) DataType

// EvalFunc computes a function kind's result from its evaluated arguments.
type EvalFunc func(args []any) any

type function struct {
	name  string
	arity int
	rule  TypeRule
	eval  EvalFunc
}

// NewFunction builds a function kind. Arity must be positive.
func NewFunction(name string, arity int, rule TypeRule, eval EvalFunc) Kind {
	if arity <= 0 {
		panic("tree: function arity must be > 0: " + name)
	}
	return &function{name: name, arity: arity, rule: rule, eval: eval}
}

func (f *function) Name() string { return f.name }
func (f *function) Arity() int   { return f.arity }

func (f *function) DataType(inputs ...DataType) DataType {
	if len(inputs) != f.arity {
		return TypeNone
	}
	for _, in := range inputs {
		if !in.Valid() {
			return TypeNone
		}
	}
	return f.rule(inputs)
}

func (f *function) Evaluate(args ...any) any {
	return f.eval(args)
}

// BoolRule accepts only boolean inputs.
func BoolRule(inputs []DataType) DataType {
	if allOf(inputs, TypeBool) {
		return TypeBool
	}
	return TypeNone
}

// NumericRule accepts numeric inputs and widens to double when any input is a double.
func NumericRule(inputs []DataType) DataType {
	return widest(inputs)
}

// CompareRule accepts numeric inputs and yields a boolean.
func CompareRule(inputs []DataType) DataType {
	if widest(inputs) == TypeNone {
		return TypeNone
	}
	return TypeBool
}

// IfRule accepts a boolean condition and two branches of one type.
func IfRule(inputs []DataType) DataType {
	if len(inputs) != 3 || inputs[0] != TypeBool || inputs[1] != inputs[2] {
		return TypeNone
	}
	return inputs[1]
}

var (
	And = NewFunction("AND", 2, BoolRule, func(a []any) any {
		return a[0].(bool) && a[1].(bool)
	})
	Or = NewFunction("OR", 2, BoolRule, func(a []any) any {
		return a[0].(bool) || a[1].(bool)
	})
	Not = NewFunction("NOT", 1, BoolRule, func(a []any) any {
		return !a[0].(bool)
	})
	Xor = NewFunction("XOR", 2, BoolRule, func(a []any) any {
		return a[0].(bool) != a[1].(bool)
	})
	Nand = NewFunction("NAND", 2, BoolRule, func(a []any) any {
		return !(a[0].(bool) && a[1].(bool))
	})
	Nor = NewFunction("NOR", 2, BoolRule, func(a []any) any {
		return !(a[0].(bool) || a[1].(bool))
	})
	Implies = NewFunction("IMPLIES", 2, BoolRule, func(a []any) any {
		return !a[0].(bool) || a[1].(bool)
	})
	If = NewFunction("IF", 3, IfRule, func(a []any) any {
		if a[0].(bool) {
			return a[1]
		}
		return a[2]
	})

	Add = NewFunction("ADD", 2, NumericRule, func(a []any) any {
		return arith(a[0], a[1], func(x, y int64) int64 { return x + y }, func(x, y float64) float64 { return x + y })
	})
	Sub = NewFunction("SUB", 2, NumericRule, func(a []any) any {
		return arith(a[0], a[1], func(x, y int64) int64 { return x - y }, func(x, y float64) float64 { return x - y })
	})
	Mul = NewFunction("MUL", 2, NumericRule, func(a []any) any {
		return arith(a[0], a[1], func(x, y int64) int64 { return x * y }, func(x, y float64) float64 { return x * y })
	})
	// PDiv is protected division: a zero divisor yields 1.
	PDiv = NewFunction("PDIV", 2, NumericRule, func(a []any) any {
		return arith(a[0], a[1],
			func(x, y int64) int64 {
				if y == 0 {
					return 1
				}
				return x / y
			},
			func(x, y float64) float64 {
				if y == 0 {
					return 1
				}
				return x / y
			})
	})

	GreaterThan = NewFunction("GT", 2, CompareRule, func(a []any) any {
		return toFloat(a[0]) > toFloat(a[1])
	})
	LessThan = NewFunction("LT", 2, CompareRule, func(a []any) any {
		return toFloat(a[0]) < toFloat(a[1])
	})
)

func arith(x, y any, ints func(int64, int64) int64, floats func(float64, float64) float64) any {
	xi, xok := x.(int64)
	yi, yok := y.(int64)
	if xok && yok {
		return ints(xi, yi)
	}
	return floats(toFloat(x), toFloat(y))
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case int64:
		return float64(n)
	case float64:
		return n
	default:
		return math.NaN()
	}
}

// literal is a constant terminal. Its name is the formatted value, so two
// literals are equal exactly when they print the same.
type literal struct {
	value any
	dt    DataType
}

func (l *literal) Name() string {
	return formatValue(l.value)
}

func (l *literal) Arity() int { return 0 }

func (l *literal) DataType(inputs ...DataType) DataType {
	if len(inputs) != 0 {
		return TypeNone
	}
	return l.dt
}

func (l *literal) Evaluate(...any) any { return l.value }

// Value returns the literal's constant.
func (l *literal) Value() any { return l.value }

func BoolLiteral(v bool) Kind      { return &literal{value: v, dt: TypeBool} }
func IntLiteral(v int64) Kind      { return &literal{value: v, dt: TypeInt} }
func DoubleLiteral(v float64) Kind { return &literal{value: v, dt: TypeDouble} }

// Bool, Int and Double build literal leaves.
func Bool(v bool) *Node      { return New(BoolLiteral(v)) }
func Int(v int64) *Node      { return New(IntLiteral(v)) }
func Double(v float64) *Node { return New(DoubleLiteral(v)) }

func literalKind(v any) (Kind, bool) {
	switch x := v.(type) {
	case bool:
		return BoolLiteral(x), true
	case int64:
		return IntLiteral(x), true
	case float64:
		return DoubleLiteral(x), true
	default:
		return nil, false
	}
}

func formatValue(v any) string {
	switch x := v.(type) {
	case bool:
		return strconv.FormatBool(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		s := strconv.FormatFloat(x, 'g', -1, 64)
		if !strings.ContainsAny(s, ".eEnN") {
			s += ".0"
		}
		return s
	default:
		return "?"
	}
}

// ERC is an ephemeral random constant: a terminal that becomes a fresh
// literal drawn from [Min, Max) each time the grower places it.
type ERC struct {
	Label string
	Type  DataType
	Min   float64
	Max   float64
}

func (e ERC) Name() string {
	if e.Label != "" {
		return e.Label
	}
	return "ERC"
}

func (e ERC) Arity() int { return 0 }

func (e ERC) DataType(inputs ...DataType) DataType {
	if len(inputs) != 0 {
		return TypeNone
	}
	return e.Type
}

// Evaluate on the prototype itself returns the lower bound; grown trees hold
// literals instead.
func (e ERC) Evaluate(...any) any {
	if e.Type == TypeInt {
		return int64(e.Min)
	}
	return e.Min
}

func (e ERC) Generate(rng Random) *Node {
	switch e.Type {
	case TypeInt:
		span := int(e.Max - e.Min)
		if span <= 0 {
			return Int(int64(e.Min))
		}
		return Int(int64(e.Min) + int64(rng.Intn(span)))
	case TypeBool:
		return Bool(rng.Intn(2) == 1)
	default:
		return Double(e.Min + rng.Float64()*(e.Max-e.Min))
	}
}
