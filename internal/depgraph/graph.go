// Package depgraph implements the dependency graph and topological sort
// (spec §4.5) shared by hook-level ordering and kind-level facet ordering,
// plus the bounded result cache (spec §4.6) that sits in front of it.
//
// The adjacency-map-plus-indegree shape and the overall Graph/Lookup split
// are adapted from go.uber.org/dig's graph.go (graphHolder) and its
// internal/graph package, generalized from dig's type-keyed, DFS-oriented
// graph to the string-kind-keyed, Kahn's-algorithm graph spec §4.5 calls
// for explicitly.
package depgraph

import (
	"sort"
	"strings"

	"github.com/plugforge/compose/cerrs"
)

// Graph is a dependency graph over kind strings, built fresh for each
// verify pass. Nodes are seeded by the caller (the set of kinds a plan
// produces); edges point from a dependency to whatever depends on it.
type Graph struct {
	nodes     []string // insertion order, for deterministic traversal
	present   map[string]struct{}
	edgesFrom map[string][]string            // dependency -> ordered list of dependents
	edgeSeen  map[string]map[string]struct{} // dedup guard per dependency
}

// New returns an empty Graph.
func New() *Graph {
	return &Graph{
		present:   make(map[string]struct{}),
		edgesFrom: make(map[string][]string),
		edgeSeen:  make(map[string]map[string]struct{}),
	}
}

// AddNode seeds kind as a node if it is not already one. Adding the same
// kind twice is a no-op.
func (g *Graph) AddNode(kind string) {
	if _, ok := g.present[kind]; ok {
		return
	}
	g.present[kind] = struct{}{}
	g.nodes = append(g.nodes, kind)
}

// HasNode reports whether kind has been seeded as a node.
func (g *Graph) HasNode(kind string) bool {
	_, ok := g.present[kind]
	return ok
}

// AddEdge records that the node "to" depends on the node "from". Both
// must already be nodes; callers (the planner) check HasNode themselves
// first so they can raise a MissingDependency error naming the specific
// dependent and dependency kinds involved.
func (g *Graph) AddEdge(from, to string) {
	seen := g.edgeSeen[from]
	if seen == nil {
		seen = make(map[string]struct{})
		g.edgeSeen[from] = seen
	}
	if _, ok := seen[to]; ok {
		return
	}
	seen[to] = struct{}{}
	g.edgesFrom[from] = append(g.edgesFrom[from], to)
}

// TopoSort runs Kahn's algorithm over the graph built so far. The initial
// queue, and every neighbor-visit step, iterates nodes and edges in the
// order they were added, so the result is fully deterministic for a fixed
// sequence of AddNode/AddEdge calls (spec §8 "Determinism"). If not every
// node can be ordered, it returns a *cerrs.Cycle naming every kind left
// with nonzero indegree, sorted for a stable error message.
func (g *Graph) TopoSort() ([]string, error) {
	levels, err := g.TopoSortLevels()
	if err != nil {
		return nil, err
	}
	result := make([]string, 0, len(g.nodes))
	for _, level := range levels {
		result = append(result, level...)
	}
	return result, nil
}

// TopoSortLevels runs the same Kahn's-algorithm sort as TopoSort but
// returns it grouped into dependency levels: each returned slice is the
// set of nodes that became ready (zero indegree) at the same step, i.e.
// a set with no unresolved dependency on one another. Spec §5 requires
// facets within such a level to have their init callbacks invoked
// concurrently and awaited jointly; this grouping is what the executor
// partitions a build into.
func (g *Graph) TopoSortLevels() ([][]string, error) {
	indegree := make(map[string]int, len(g.nodes))
	for _, n := range g.nodes {
		indegree[n] = 0
	}
	for _, dependents := range g.edgesFrom {
		for _, dependent := range dependents {
			indegree[dependent]++
		}
	}

	level := make([]string, 0, len(g.nodes))
	for _, n := range g.nodes {
		if indegree[n] == 0 {
			level = append(level, n)
		}
	}

	var levels [][]string
	visited := 0
	for len(level) > 0 {
		levels = append(levels, level)
		visited += len(level)

		var next []string
		for _, n := range level {
			for _, neighbor := range g.edgesFrom[n] {
				indegree[neighbor]--
				if indegree[neighbor] == 0 {
					next = append(next, neighbor)
				}
			}
		}
		level = next
	}

	if visited != len(g.nodes) {
		residual := make([]string, 0, len(g.nodes)-visited)
		for _, n := range g.nodes {
			if indegree[n] > 0 {
				residual = append(residual, n)
			}
		}
		sort.Strings(residual)
		return nil, &cerrs.Cycle{Kinds: residual}
	}

	return levels, nil
}

// CacheKey returns the deterministic cache key for a node set: the kinds,
// sorted and comma-joined (spec §4.6).
func CacheKey(kinds []string) string {
	sorted := append([]string(nil), kinds...)
	sort.Strings(sorted)
	return strings.Join(sorted, ",")
}
