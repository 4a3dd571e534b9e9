package tree

import (
	"fmt"
	"strings"
)

// DataType is the static type of a node's value. TypeNone marks an ill-typed
// or incomplete node.
type DataType uint8

const (
	TypeNone DataType = iota
	TypeBool
	TypeInt
	TypeDouble
)

var allTypes = []DataType{TypeBool, TypeInt, TypeDouble}

func (t DataType) String() string {
	switch t {
	case TypeBool:
		return "bool"
	case TypeInt:
		return "int"
	case TypeDouble:
		return "double"
	default:
		return "none"
	}
}

func (t DataType) Valid() bool {
	return t == TypeBool || t == TypeInt || t == TypeDouble
}

func (t DataType) Numeric() bool {
	return t == TypeInt || t == TypeDouble
}

func ParseDataType(s string) (DataType, error) {
	switch strings.TrimSpace(strings.ToLower(s)) {
	case "bool", "boolean":
		return TypeBool, nil
	case "int", "integer":
		return TypeInt, nil
	case "double", "float", "real":
		return TypeDouble, nil
	default:
		return TypeNone, fmt.Errorf("unknown data type: %q", s)
	}
}

// TypeOf reports the data type of a runtime value.
func TypeOf(v any) DataType {
	switch v.(type) {
	case bool:
		return TypeBool
	case int64:
		return TypeInt
	case float64:
		return TypeDouble
	default:
		return TypeNone
	}
}

// widest returns the numeric type that can hold all inputs, or TypeNone when
// any input is not numeric.
func widest(inputs []DataType) DataType {
	if len(inputs) == 0 {
		return TypeNone
	}
	out := TypeInt
	for _, in := range inputs {
		switch in {
		case TypeInt:
		case TypeDouble:
			out = TypeDouble
		default:
			return TypeNone
		}
	}
	return out
}

func allOf(inputs []DataType, want DataType) bool {
	for _, in := range inputs {
		if in != want {
			return false
		}
	}
	return true
}
