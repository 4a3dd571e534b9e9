package tree

import (
	"fmt"
	"sync"
)

// Variable is a named, typed value cell. Every node built with Var refers to
// the same cell, so Set is observed by all of them, clones included.
type Variable struct {
	name string
	dt   DataType

	mu    sync.RWMutex
	value any
}

// NewVariable creates a variable holding the zero value of its type.
func NewVariable(name string, dt DataType) *Variable {
	v := &Variable{name: name, dt: dt}
	switch dt {
	case TypeBool:
		v.value = false
	case TypeInt:
		v.value = int64(0)
	case TypeDouble:
		v.value = 0.0
	}
	return v
}

func (v *Variable) Name() string { return v.name }

func (v *Variable) Type() DataType { return v.dt }

func (v *Variable) Value() any {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.value
}

// Set stores value. An int is widened when the variable is a double.
func (v *Variable) Set(value any) error {
	if v.dt == TypeDouble {
		if i, ok := value.(int64); ok {
			value = float64(i)
		}
	}
	if got := TypeOf(value); got != v.dt {
		return fmt.Errorf("variable %s: cannot assign %s value to %s", v.name, got, v.dt)
	}
	v.mu.Lock()
	v.value = value
	v.mu.Unlock()
	return nil
}

// Kind returns the terminal kind reading this variable.
func (v *Variable) Kind() Kind {
	return variableKind{v: v}
}

// Var builds a leaf reading v.
func Var(v *Variable) *Node {
	return New(v.Kind())
}

type variableKind struct {
	v *Variable
}

func (k variableKind) Name() string { return k.v.name }
func (k variableKind) Arity() int   { return 0 }

func (k variableKind) DataType(inputs ...DataType) DataType {
	if len(inputs) != 0 {
		return TypeNone
	}
	return k.v.dt
}

func (k variableKind) Evaluate(...any) any { return k.v.Value() }

// Variable returns the cell read by the kind.
func (k variableKind) Variable() *Variable { return k.v }
