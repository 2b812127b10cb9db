package topology

import (
	"fmt"
	"slices"
)

// CycleReport describes one cycle found in an edge set.
type CycleReport struct {
	Nodes   []uint64 `json:"nodes"`   // members of the strongly connected component, ascending
	Path    []uint64 `json:"path"`    // a cycle traversal, first == last
	Message string   `json:"message"` // human-readable description
}

// AnalyzeEdges reports every cycle in an edge set without building a Graph.
//
// Build stops at the first cycle it meets; AnalyzeEdges is the diagnostic
// counterpart used by validation tooling to list all of them at once.
//
// The algorithm:
//  1. Build an adjacency list from the edges
//  2. Use Tarjan's algorithm to find strongly connected components
//  3. Report each component with size > 1, or a self loop, as a cycle
//
// An acyclic edge set returns an empty report list.
func AnalyzeEdges(edges [][2]uint64) []CycleReport {
	adj := make(map[uint64][]uint64)
	for _, e := range edges {
		adj[e[0]] = append(adj[e[0]], e[1])
		if _, ok := adj[e[1]]; !ok {
			adj[e[1]] = nil
		}
	}
	for id := range adj {
		slices.Sort(adj[id])
	}

	reports := []CycleReport{}
	for _, scc := range tarjanSCC(adj) {
		if len(scc) == 1 && !slices.Contains(adj[scc[0]], scc[0]) {
			continue
		}
		slices.Sort(scc)
		path := reconstructCyclePath(scc, adj)
		reports = append(reports, CycleReport{
			Nodes:   scc,
			Path:    path,
			Message: fmt.Sprintf("cycle detected: %s", formatPath(path)),
		})
	}
	slices.SortFunc(reports, func(a, b CycleReport) int {
		return slices.Compare(a.Nodes, b.Nodes)
	})
	return reports
}

// tarjanSCC finds strongly connected components using Tarjan's algorithm.
// Nodes are visited in ascending id for deterministic output.
func tarjanSCC(adj map[uint64][]uint64) [][]uint64 {
	var (
		index   = 0
		stack   []uint64
		indices = make(map[uint64]int)
		lowlink = make(map[uint64]int)
		onStack = make(map[uint64]bool)
		sccs    [][]uint64
	)

	var strongConnect func(uint64)
	strongConnect = func(v uint64) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range adj[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		// v is a root node: pop the stack and emit an SCC
		if lowlink[v] == indices[v] {
			var scc []uint64
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sccs = append(sccs, scc)
		}
	}

	ids := make([]uint64, 0, len(adj))
	for id := range adj {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, id := range ids {
		if _, visited := indices[id]; !visited {
			strongConnect(id)
		}
	}
	return sccs
}

// reconstructCyclePath walks edges inside an SCC from its smallest member
// until it returns to the start.
func reconstructCyclePath(scc []uint64, adj map[uint64][]uint64) []uint64 {
	start := scc[0]
	if len(scc) == 1 {
		return []uint64{start, start}
	}

	members := make(map[uint64]bool, len(scc))
	for _, id := range scc {
		members[id] = true
	}

	path := []uint64{start}
	visited := map[uint64]bool{start: true}
	current := start
	for {
		var next uint64
		found := false
		for _, w := range adj[current] {
			if w == start && len(path) > 1 {
				return append(path, start)
			}
			if members[w] && !visited[w] {
				next, found = w, true
				break
			}
		}
		if !found {
			// The greedy walk missed the way back; close the partial walk at start.
			return append(path, start)
		}
		visited[next] = true
		path = append(path, next)
		current = next
	}
}
