package evo

import (
	"gpforge/internal/tree"
)

// Individual is one candidate program: a root node plus the fitness assigned
// by the last evaluation.
type Individual struct {
	root    *tree.Node
	fitness Fitness
}

func NewIndividual(root *tree.Node) *Individual {
	return &Individual{root: root}
}

func (ind *Individual) Root() *tree.Node { return ind.root }

func (ind *Individual) SetRoot(root *tree.Node) {
	ind.root = root
	ind.fitness = Fitness{}
}

func (ind *Individual) Fitness() Fitness { return ind.fitness }

func (ind *Individual) SetFitness(f Fitness) { ind.fitness = f }

// GetNode returns the node at the pre-order index of the program.
func (ind *Individual) GetNode(index int) (*tree.Node, error) {
	return ind.root.GetNode(index)
}

// SetNode replaces the node at the pre-order index. Index 0 replaces the
// root, which only the holder of the tree can do.
func (ind *Individual) SetNode(index int, n *tree.Node) error {
	if index == 0 {
		ind.root = n
		return nil
	}
	return ind.root.SetNode(index, n)
}

func (ind *Individual) Length() int { return ind.root.Length() }

func (ind *Individual) Depth() int { return ind.root.Depth() }

func (ind *Individual) DataType() tree.DataType { return ind.root.DataType() }

// Clone deep-copies the program and keeps the cached fitness.
func (ind *Individual) Clone() *Individual {
	return &Individual{root: ind.root.Clone(), fitness: ind.fitness}
}

func (ind *Individual) String() string {
	return ind.root.String()
}
