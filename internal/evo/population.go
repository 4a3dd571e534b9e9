package evo

import (
	"errors"
	"fmt"
	"sort"

	"gpforge/internal/tree"
)

var ErrPopulationFull = errors.New("population is full")

// Population is an ordered, capacity-bounded collection of individuals.
type Population struct {
	capacity int
	members  []*Individual
}

func NewPopulation(capacity int) *Population {
	return &Population{capacity: capacity, members: make([]*Individual, 0, capacity)}
}

func (p *Population) Add(ind *Individual) error {
	if len(p.members) >= p.capacity {
		return fmt.Errorf("%w: capacity %d", ErrPopulationFull, p.capacity)
	}
	p.members = append(p.members, ind)
	return nil
}

func (p *Population) Get(i int) (*Individual, error) {
	if i < 0 || i >= len(p.members) {
		return nil, fmt.Errorf("%w: individual %d of %d", tree.ErrIndexOutOfRange, i, len(p.members))
	}
	return p.members[i], nil
}

func (p *Population) Size() int     { return len(p.members) }
func (p *Population) Capacity() int { return p.capacity }
func (p *Population) Full() bool    { return len(p.members) >= p.capacity }

// Individuals returns the members in order. The slice is a copy; the
// individuals are shared.
func (p *Population) Individuals() []*Individual {
	return append([]*Individual(nil), p.members...)
}

// Fittest scans for the best individual. The first one encountered wins ties.
func (p *Population) Fittest() (*Individual, error) {
	if len(p.members) == 0 {
		return nil, errors.New("population is empty")
	}
	best := p.members[0]
	for _, ind := range p.members[1:] {
		better, err := ind.fitness.Better(best.fitness)
		if err != nil {
			return nil, err
		}
		if better {
			best = ind
		}
	}
	return best, nil
}

// Ranked returns the members ordered best first, keeping population order
// among equals.
func (p *Population) Ranked() ([]*Individual, error) {
	ranked := p.Individuals()
	var cmpErr error
	sort.SliceStable(ranked, func(i, j int) bool {
		c, err := ranked[i].fitness.Compare(ranked[j].fitness)
		if err != nil && cmpErr == nil {
			cmpErr = err
		}
		return c > 0
	})
	if cmpErr != nil {
		return nil, cmpErr
	}
	return ranked, nil
}

// Elites returns the n best individuals, best first.
func (p *Population) Elites(n int) ([]*Individual, error) {
	if n <= 0 {
		return nil, nil
	}
	ranked, err := p.Ranked()
	if err != nil {
		return nil, err
	}
	if n > len(ranked) {
		n = len(ranked)
	}
	return ranked[:n], nil
}
