// Package graph builds the internal package dependency DAG, detects cycles,
// computes topological order, and answers reverse-reachability queries used
// by the bump planner's propagation step (spec.md §4.2 step 5, §4.3.1 Step B).
package graph

import (
	"fmt"
	"sort"

	"github.com/spraguehouse/workspace-release/pkg/contracts"
)

// EdgeKind classifies a dependency edge the way package.json's dependency
// fields do.
type EdgeKind int

const (
	Runtime EdgeKind = iota
	Dev
	Peer
	Optional
)

func (k EdgeKind) String() string {
	switch k {
	case Runtime:
		return "runtime"
	case Dev:
		return "dev"
	case Peer:
		return "peer"
	case Optional:
		return "optional"
	default:
		contracts.Unreachable("unknown EdgeKind: %d", k)
		return ""
	}
}

// Edge is one internal dependency edge: from depends on to, expressed with
// constraint as originally written in the manifest (e.g. "^1.2.3",
// "workspace:*").
type Edge struct {
	From       string
	To         string
	Kind       EdgeKind
	Constraint string
}

// Cycle is returned by FindCycle, naming the nodes walked in order
// with the repeated node at both ends (e.g. [a b a]).
type Cycle []string

func (c Cycle) String() string {
	s := "["
	for i, n := range c {
		if i > 0 {
			s += " "
		}
		s += n
	}
	return s + "]"
}

// Graph is a directed graph over package names.
type Graph struct {
	nodes map[string]bool
	edges []Edge
	// out maps a package name to the edges leaving it, for fast traversal.
	out map[string][]Edge
	// in maps a package name to the edges entering it (dependents), used by
	// the planner's reverse-BFS propagation.
	in map[string][]Edge
}

// New builds a Graph from a fixed node set and a list of edges. Edges whose
// endpoints are not both in nodes are dropped, matching spec.md §4.2 step 4
// ("an edge exists when the target name is a workspace package").
func New(nodes []string, edges []Edge) *Graph {
	g := &Graph{
		nodes: make(map[string]bool, len(nodes)),
		out:   make(map[string][]Edge),
		in:    make(map[string][]Edge),
	}
	for _, n := range nodes {
		g.nodes[n] = true
	}
	for _, e := range edges {
		if !g.nodes[e.From] || !g.nodes[e.To] {
			continue
		}
		g.edges = append(g.edges, e)
		g.out[e.From] = append(g.out[e.From], e)
		g.in[e.To] = append(g.in[e.To], e)
	}
	return g
}

// Nodes returns the package names in the graph, sorted for determinism.
func (g *Graph) Nodes() []string {
	names := make([]string, 0, len(g.nodes))
	for n := range g.nodes {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Edges returns all edges leaving name, in insertion order.
func (g *Graph) Edges(name string) []Edge {
	return g.out[name]
}

// DependentsOf returns the edges entering name, i.e. the packages that
// directly depend on name.
func (g *Graph) DependentsOf(name string) []Edge {
	return g.in[name]
}

// FindCycle reports the first cycle found by depth-first search, or nil if
// the graph is acyclic. The search order is deterministic (nodes visited in
// sorted order) so the same graph always reports the same cycle.
func (g *Graph) FindCycle() Cycle {
	const (
		white = iota
		gray
		black
	)
	color := make(map[string]int, len(g.nodes))
	var path []string

	var visit func(n string) Cycle
	visit = func(n string) Cycle {
		color[n] = gray
		path = append(path, n)
		for _, e := range g.out[n] {
			switch color[e.To] {
			case white:
				if cycle := visit(e.To); cycle != nil {
					return cycle
				}
			case gray:
				// Found the back-edge; slice path from e.To's first
				// occurrence and close the loop.
				start := indexOf(path, e.To)
				cycle := append(append(Cycle{}, path[start:]...), e.To)
				return cycle
			}
		}
		path = path[:len(path)-1]
		color[n] = black
		return nil
	}

	for _, n := range g.Nodes() {
		if color[n] == white {
			if cycle := visit(n); cycle != nil {
				return cycle
			}
		}
	}
	return nil
}

func indexOf(path []string, n string) int {
	for i, p := range path {
		if p == n {
			return i
		}
	}
	contracts.Unreachable("back-edge target %q not found on current path", n)
	return -1
}

// TopoSort returns the nodes in dependency order (dependencies before
// dependents), per spec.md §4.3.1 Step E. The graph must be acyclic;
// callers are expected to have called FindCycle first.
func TopoSort(g *Graph) ([]string, error) {
	inDegree := make(map[string]int, len(g.nodes))
	for n := range g.nodes {
		inDegree[n] = 0
	}
	for _, e := range g.edges {
		inDegree[e.From]++
	}

	var ready []string
	for _, n := range g.Nodes() {
		if inDegree[n] == 0 {
			ready = append(ready, n)
		}
	}

	var order []string
	for len(ready) > 0 {
		sort.Strings(ready)
		n := ready[0]
		ready = ready[1:]
		order = append(order, n)

		var next []string
		for _, e := range g.in[n] {
			inDegree[e.From]--
			if inDegree[e.From] == 0 {
				next = append(next, e.From)
			}
		}
		sort.Strings(next)
		ready = append(ready, next...)
	}

	if len(order) != len(g.nodes) {
		return nil, fmt.Errorf("graph has a cycle: topological sort only ordered %d of %d nodes", len(order), len(g.nodes))
	}
	return order, nil
}

// ReachableDependents performs a reverse BFS from roots over the edges
// accepted by include, stopping each branch at maxDepth (0 means
// unbounded). It returns, for every reached node, the depth at which it was
// first reached and the edge that reached it. A node already present in
// roots is not revisited even if another root's walk would re-reach it
// (spec.md §4.3.1 Step B: "an edge is walked once per node").
func ReachableDependents(g *Graph, roots []string, maxDepth int, include func(Edge) bool) map[string]struct {
	Depth int
	Via   Edge
} {
	contracts.RequireNotNil(include, "include")

	visited := make(map[string]bool, len(roots))
	for _, r := range roots {
		visited[r] = true
	}

	result := make(map[string]struct {
		Depth int
		Via   Edge
	})

	type queued struct {
		name  string
		depth int
	}
	queue := make([]queued, 0, len(roots))
	for _, r := range roots {
		queue = append(queue, queued{name: r, depth: 0})
	}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if maxDepth > 0 && cur.depth >= maxDepth {
			continue
		}
		for _, e := range g.in[cur.name] {
			if !include(e) {
				continue
			}
			if visited[e.From] {
				continue
			}
			visited[e.From] = true
			result[e.From] = struct {
				Depth int
				Via   Edge
			}{Depth: cur.depth + 1, Via: e}
			queue = append(queue, queued{name: e.From, depth: cur.depth + 1})
		}
	}
	return result
}
