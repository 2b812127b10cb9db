// Package topology holds the structure of a causal graph: node ids and the
// "must be evaluated before" edges between them.
//
// The structure is data over stable ids, never live references to
// causaloids. A Graph is validated once by Builder.Build and is immutable
// afterwards, so its topological order is computed a single time and shared
// by every evaluation.
package topology

import (
	"slices"
)

// Graph is a validated, acyclic causal graph structure.
//
// INVARIANTS:
//   - Every edge endpoint is a known node
//   - No cycles (including self loops)
//   - order is a topological order; never changes after Build
type Graph struct {
	nodes    []uint64 // ascending
	preds    map[uint64][]uint64
	succs    map[uint64][]uint64
	order    []uint64
	position map[uint64]int
	edges    [][2]uint64
}

// Nodes returns node ids in ascending order.
func (g *Graph) Nodes() []uint64 {
	return slices.Clone(g.nodes)
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	return len(g.nodes)
}

// Edges returns the declared edges in declaration order.
func (g *Graph) Edges() [][2]uint64 {
	return slices.Clone(g.edges)
}

// Order returns the cached topological order.
//
// Nodes without an ordering constraint between them appear in ascending id
// order, so evaluation order is deterministic and reproducible.
func (g *Graph) Order() []uint64 {
	return slices.Clone(g.order)
}

// Position returns the index of id within Order.
func (g *Graph) Position(id uint64) (int, bool) {
	p, ok := g.position[id]
	return p, ok
}

// Has reports whether id is a node of the graph.
func (g *Graph) Has(id uint64) bool {
	_, ok := g.position[id]
	return ok
}

// Predecessors returns the nodes that must be evaluated before id, ascending.
func (g *Graph) Predecessors(id uint64) []uint64 {
	return slices.Clone(g.preds[id])
}

// Successors returns the nodes that depend on id, ascending.
func (g *Graph) Successors(id uint64) []uint64 {
	return slices.Clone(g.succs[id])
}

// Roots returns nodes with no predecessors, ascending.
func (g *Graph) Roots() []uint64 {
	var roots []uint64
	for _, id := range g.nodes {
		if len(g.preds[id]) == 0 {
			roots = append(roots, id)
		}
	}
	return roots
}
