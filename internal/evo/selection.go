package evo

import (
	"errors"
	"fmt"

	"gpforge/internal/tree"
)

// Selector chooses parents from an evaluated population.
type Selector interface {
	Name() string
	PickParents(rng tree.Random, pop *Population, n int) ([]*Individual, error)
}

func checkSelection(rng tree.Random, pop *Population, n int) error {
	if rng == nil {
		return errors.New("random source is required")
	}
	if pop == nil || pop.Size() == 0 {
		return errors.New("cannot select from an empty population")
	}
	if n < 0 {
		return fmt.Errorf("invalid parent count: %d", n)
	}
	return nil
}

// RandomSelector picks parents uniformly.
type RandomSelector struct{}

func (RandomSelector) Name() string {
	return "random"
}

func (RandomSelector) PickParents(rng tree.Random, pop *Population, n int) ([]*Individual, error) {
	if err := checkSelection(rng, pop, n); err != nil {
		return nil, err
	}
	out := make([]*Individual, n)
	for i := range out {
		out[i] = pop.members[rng.Intn(pop.Size())]
	}
	return out, nil
}

// TournamentSelector samples Size individuals with replacement and keeps the
// fittest; the first sampled wins ties.
type TournamentSelector struct {
	Size int
}

func (TournamentSelector) Name() string {
	return "tournament"
}

func (s TournamentSelector) PickParents(rng tree.Random, pop *Population, n int) ([]*Individual, error) {
	if err := checkSelection(rng, pop, n); err != nil {
		return nil, err
	}
	size := s.Size
	if size <= 0 {
		size = 3
	}
	out := make([]*Individual, n)
	for i := range out {
		best := pop.members[rng.Intn(pop.Size())]
		for j := 1; j < size; j++ {
			candidate := pop.members[rng.Intn(pop.Size())]
			better, err := candidate.fitness.Better(best.fitness)
			if err != nil {
				return nil, err
			}
			if better {
				best = candidate
			}
		}
		out[i] = best
	}
	return out, nil
}

// EliteSelector picks uniformly from the Count fittest individuals.
type EliteSelector struct {
	Count int
}

func (EliteSelector) Name() string {
	return "elite"
}

func (s EliteSelector) PickParents(rng tree.Random, pop *Population, n int) ([]*Individual, error) {
	if err := checkSelection(rng, pop, n); err != nil {
		return nil, err
	}
	count := s.Count
	if count <= 0 {
		count = pop.Size() / 5
	}
	if count < 1 {
		count = 1
	}
	elites, err := pop.Elites(count)
	if err != nil {
		return nil, err
	}
	out := make([]*Individual, n)
	for i := range out {
		out[i] = elites[rng.Intn(len(elites))]
	}
	return out, nil
}

// LinearRankSelector picks with probability proportional to rank, the worst
// individual having weight 1 and the best weight Size().
type LinearRankSelector struct{}

func (LinearRankSelector) Name() string {
	return "linear_rank"
}

func (LinearRankSelector) PickParents(rng tree.Random, pop *Population, n int) ([]*Individual, error) {
	if err := checkSelection(rng, pop, n); err != nil {
		return nil, err
	}
	ranked, err := pop.Ranked()
	if err != nil {
		return nil, err
	}
	size := len(ranked)
	total := float64(size*(size+1)) / 2
	out := make([]*Individual, n)
	for i := range out {
		pick := rng.Float64() * total
		acc := 0.0
		out[i] = ranked[size-1]
		for rank, ind := range ranked {
			acc += float64(size - rank)
			if pick < acc {
				out[i] = ind
				break
			}
		}
	}
	return out, nil
}
