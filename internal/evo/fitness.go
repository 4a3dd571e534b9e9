package evo

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

var (
	ErrDirectionMismatch = errors.New("fitness direction mismatch")
	ErrNotEvaluated      = errors.New("fitness not evaluated")
)

// Direction says whether larger or smaller fitness values are preferred.
type Direction int

const (
	Maximise Direction = iota + 1
	Minimise
)

func (d Direction) String() string {
	switch d {
	case Maximise:
		return "maximise"
	case Minimise:
		return "minimise"
	default:
		return "unset"
	}
}

func ParseDirection(s string) (Direction, error) {
	switch strings.TrimSpace(strings.ToLower(s)) {
	case "max", "maximise", "maximize":
		return Maximise, nil
	case "min", "minimise", "minimize":
		return Minimise, nil
	default:
		return 0, fmt.Errorf("unknown fitness direction: %q", s)
	}
}

// Fitness is a scalar score tagged with its comparison direction. The zero
// value is an unevaluated fitness.
type Fitness struct {
	Value     float64   `json:"value"`
	Direction Direction `json:"direction"`
}

func Maximising(v float64) Fitness { return Fitness{Value: v, Direction: Maximise} }
func Minimising(v float64) Fitness { return Fitness{Value: v, Direction: Minimise} }

func (f Fitness) Evaluated() bool {
	return f.Direction == Maximise || f.Direction == Minimise
}

// Compare returns a positive number when f is better than other, negative
// when worse and zero when equally fit. NaN is worse than any number in either
// direction and equal to another NaN.
func (f Fitness) Compare(other Fitness) (int, error) {
	if !f.Evaluated() || !other.Evaluated() {
		return 0, ErrNotEvaluated
	}
	if f.Direction != other.Direction {
		return 0, fmt.Errorf("%w: %s vs %s", ErrDirectionMismatch, f.Direction, other.Direction)
	}
	fNaN, otherNaN := math.IsNaN(f.Value), math.IsNaN(other.Value)
	switch {
	case fNaN && otherNaN:
		return 0, nil
	case fNaN:
		return -1, nil
	case otherNaN:
		return 1, nil
	case f.Value == other.Value:
		return 0, nil
	case (f.Value > other.Value) == (f.Direction == Maximise):
		return 1, nil
	default:
		return -1, nil
	}
}

// Better reports whether f is strictly better than other.
func (f Fitness) Better(other Fitness) (bool, error) {
	c, err := f.Compare(other)
	return c > 0, err
}

// AtLeast reports whether f is as good as or better than target.
func (f Fitness) AtLeast(target Fitness) (bool, error) {
	c, err := f.Compare(target)
	return c >= 0, err
}

func (f Fitness) String() string {
	if !f.Evaluated() {
		return "unevaluated"
	}
	return fmt.Sprintf("%g (%s)", f.Value, f.Direction)
}
