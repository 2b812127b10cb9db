package topology

import (
	"container/heap"
	"slices"
)

// Builder constructs a Graph with validation.
//
// Builder is NOT safe for concurrent use. Build the graph in one goroutine,
// then share the resulting *Graph freely.
//
// Example:
//
//	g, err := topology.NewBuilder().
//	    AddNode(1).AddNode(2).AddNode(3).
//	    AddEdge(1, 3).
//	    AddEdge(2, 3).
//	    Build()
type Builder struct {
	nodes map[uint64]bool
	edges [][2]uint64
	errs  []error
}

// NewBuilder creates an empty graph builder.
func NewBuilder() *Builder {
	return &Builder{nodes: make(map[uint64]bool)}
}

// AddNode registers a node id. A duplicate id is recorded as an error and
// reported by Build.
func (b *Builder) AddNode(id uint64) *Builder {
	if b.nodes[id] {
		b.errs = append(b.errs, newStructuralError(ErrCodeDuplicateNode, id, "node added twice"))
		return b
	}
	b.nodes[id] = true
	return b
}

// AddNodes registers several node ids.
func (b *Builder) AddNodes(ids ...uint64) *Builder {
	for _, id := range ids {
		b.AddNode(id)
	}
	return b
}

// AddEdge declares that from must be evaluated before to.
// Endpoints are validated by Build, so edges may be added before nodes.
func (b *Builder) AddEdge(from, to uint64) *Builder {
	b.edges = append(b.edges, [2]uint64{from, to})
	return b
}

// Build validates the structure and computes the topological order.
//
// Build fails with a *StructuralError when:
//   - the graph has no nodes
//   - a node was added twice
//   - an edge references an unknown node
//   - an edge is a self loop
//   - the edges contain a cycle (the error carries the offending node and path)
func (b *Builder) Build() (*Graph, error) {
	if len(b.errs) > 0 {
		return nil, b.errs[0]
	}
	if len(b.nodes) == 0 {
		return nil, &StructuralError{Code: ErrCodeEmptyGraph, Message: "graph has no nodes"}
	}

	g := &Graph{
		preds:    make(map[uint64][]uint64),
		succs:    make(map[uint64][]uint64),
		position: make(map[uint64]int, len(b.nodes)),
		edges:    slices.Clone(b.edges),
	}
	for id := range b.nodes {
		g.nodes = append(g.nodes, id)
	}
	slices.Sort(g.nodes)

	seen := make(map[[2]uint64]bool, len(b.edges))
	for _, e := range b.edges {
		from, to := e[0], e[1]
		if !b.nodes[from] {
			return nil, newStructuralError(ErrCodeUnknownNode, from, "edge references unknown node")
		}
		if !b.nodes[to] {
			return nil, newStructuralError(ErrCodeUnknownNode, to, "edge references unknown node")
		}
		if from == to {
			return nil, &StructuralError{
				Code:    ErrCodeCycle,
				NodeID:  from,
				Path:    []uint64{from, from},
				Message: "self loop",
			}
		}
		if seen[e] {
			continue // parallel edges add no constraint
		}
		seen[e] = true
		g.preds[to] = append(g.preds[to], from)
		g.succs[from] = append(g.succs[from], to)
	}
	for id := range g.preds {
		slices.Sort(g.preds[id])
	}
	for id := range g.succs {
		slices.Sort(g.succs[id])
	}

	order, err := topoSort(g.nodes, g.preds, g.succs)
	if err != nil {
		return nil, err
	}
	g.order = order
	for i, id := range order {
		g.position[id] = i
	}
	return g, nil
}

type color uint8

const (
	white color = iota // unvisited
	gray               // in progress
	black              // done
)

// topoSort checks for cycles with a three-color depth-first walk, then emits
// the order by repeatedly taking the smallest ready id: a node becomes ready
// once all of its predecessors are emitted. Nodes without an ordering
// constraint between them therefore come out in ascending id order.
func topoSort(nodes []uint64, preds, succs map[uint64][]uint64) ([]uint64, error) {
	if err := checkAcyclic(nodes, preds); err != nil {
		return nil, err
	}

	pending := make(map[uint64]int, len(nodes))
	ready := &idHeap{}
	for _, id := range nodes {
		pending[id] = len(preds[id])
		if pending[id] == 0 {
			heap.Push(ready, id)
		}
	}

	order := make([]uint64, 0, len(nodes))
	for ready.Len() > 0 {
		id := heap.Pop(ready).(uint64)
		order = append(order, id)
		for _, s := range succs[id] {
			pending[s]--
			if pending[s] == 0 {
				heap.Push(ready, s)
			}
		}
	}
	return order, nil
}

// checkAcyclic walks predecessors depth first. Reaching a gray node means
// the current path loops back on itself.
func checkAcyclic(nodes []uint64, preds map[uint64][]uint64) error {
	marks := make(map[uint64]color, len(nodes))
	var path []uint64

	var visit func(id uint64) error
	visit = func(id uint64) error {
		switch marks[id] {
		case black:
			return nil
		case gray:
			return newCycleError(id, path)
		}

		marks[id] = gray
		path = append(path, id)
		for _, p := range preds[id] {
			if err := visit(p); err != nil {
				return err
			}
		}
		path = path[:len(path)-1]
		marks[id] = black
		return nil
	}

	for _, id := range nodes {
		if err := visit(id); err != nil {
			return err
		}
	}
	return nil
}

// idHeap is a min-heap of node ids.
type idHeap []uint64

func (h idHeap) Len() int           { return len(h) }
func (h idHeap) Less(i, j int) bool { return h[i] < h[j] }
func (h idHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *idHeap) Push(x any)        { *h = append(*h, x.(uint64)) }
func (h *idHeap) Pop() any {
	old := *h
	id := old[len(old)-1]
	*h = old[:len(old)-1]
	return id
}
