package evo

import (
	"errors"
	"fmt"
	"strings"

	"gpforge/internal/tree"
)

// InitMethod selects how the first generation is grown.
type InitMethod int

const (
	InitGrow InitMethod = iota + 1
	InitFull
	// InitRampedHalfAndHalf cycles the depth limit through [MinDepth,
	// MaxDepth] and alternates grow and full at each depth.
	InitRampedHalfAndHalf
)

func (m InitMethod) String() string {
	switch m {
	case InitGrow:
		return "grow"
	case InitFull:
		return "full"
	case InitRampedHalfAndHalf:
		return "ramped"
	default:
		return "unknown"
	}
}

func ParseInitMethod(s string) (InitMethod, error) {
	switch strings.TrimSpace(strings.ToLower(s)) {
	case "grow":
		return InitGrow, nil
	case "full":
		return InitFull, nil
	case "ramped", "ramped_half_and_half", "half_and_half":
		return InitRampedHalfAndHalf, nil
	default:
		return 0, fmt.Errorf("unknown init method: %q", s)
	}
}

type InitConfig struct {
	Grower   *tree.Grower
	Random   tree.Random
	Method   InitMethod
	Type     tree.DataType
	MinDepth int
	MaxDepth int
	Size     int
}

// InitialPopulation grows Size programs returning Type.
func InitialPopulation(cfg InitConfig) (*Population, error) {
	if cfg.Grower == nil {
		return nil, errors.New("init: grower is required")
	}
	if cfg.Random == nil {
		return nil, errors.New("init: random source is required")
	}
	if cfg.Size <= 0 {
		return nil, fmt.Errorf("init: population size must be > 0, got %d", cfg.Size)
	}
	if cfg.MinDepth < 0 || cfg.MaxDepth < cfg.MinDepth {
		return nil, fmt.Errorf("init: invalid depth range [%d, %d]", cfg.MinDepth, cfg.MaxDepth)
	}
	if cfg.Method == 0 {
		cfg.Method = InitRampedHalfAndHalf
	}
	if !cfg.Grower.CanProduce(cfg.Type, cfg.MaxDepth) {
		return nil, fmt.Errorf("init: %w: %s within depth %d", tree.ErrNoCompatibleNode, cfg.Type, cfg.MaxDepth)
	}

	pop := NewPopulation(cfg.Size)
	span := cfg.MaxDepth - cfg.MinDepth + 1
	for i := 0; i < cfg.Size; i++ {
		var (
			root *tree.Node
			err  error
		)
		switch cfg.Method {
		case InitGrow:
			root, err = cfg.Grower.Grow(cfg.Random, cfg.Type, cfg.MaxDepth)
		case InitFull:
			root, err = cfg.Grower.Full(cfg.Random, cfg.Type, cfg.MaxDepth)
		case InitRampedHalfAndHalf:
			depth := cfg.MinDepth + (i/2)%span
			if !cfg.Grower.CanProduce(cfg.Type, depth) {
				depth = cfg.MaxDepth
			}
			if i%2 == 0 {
				root, err = cfg.Grower.Grow(cfg.Random, cfg.Type, depth)
			} else {
				root, err = cfg.Grower.Full(cfg.Random, cfg.Type, depth)
			}
		default:
			return nil, fmt.Errorf("init: unsupported method %d", cfg.Method)
		}
		if err != nil {
			return nil, fmt.Errorf("init: individual %d: %w", i, err)
		}
		if err := pop.Add(NewIndividual(root)); err != nil {
			return nil, err
		}
	}
	return pop, nil
}
