package plan

import (
	"errors"
	"strings"

	"github.com/plugforge/compose/cerrs"
	"github.com/plugforge/compose/facet"
	"github.com/plugforge/compose/hook"
	"github.com/plugforge/compose/internal/depgraph"
)

// buildFacetGraph constructs the kind-level dependency graph (spec §4.5
// steps 1-3): nodes are every kind with at least one produced facet;
// edges come from both hook-declared Required (every hook of that kind,
// not just the last) and facet-declared Required (every produced facet of
// that kind, covering dependencies added at runtime via AddDependency).
// kindOrder fixes deterministic node-seeding order (spec §8
// "Determinism").
func buildFacetGraph(
	hooksByKind map[string][]*hook.Descriptor,
	facetsByKind map[string][]*facet.Facet,
	kindOrder []string,
) (*depgraph.Graph, error) {
	g := depgraph.New()
	for _, kind := range kindOrder {
		g.AddNode(kind)
	}

	for _, kind := range kindOrder {
		for _, h := range hooksByKind[kind] {
			for _, dep := range h.Required() {
				if dep == kind {
					continue
				}
				if !g.HasNode(dep) {
					return nil, &cerrs.MissingDependency{Kind: kind, Dependency: dep}
				}
				g.AddEdge(dep, kind)
			}
		}
		for _, f := range facetsByKind[kind] {
			for _, dep := range f.Required() {
				if dep == kind {
					continue
				}
				if !g.HasNode(dep) {
					return nil, &cerrs.MissingDependency{Kind: kind, Dependency: dep}
				}
				g.AddEdge(dep, kind)
			}
		}
	}

	return g, nil
}

// sortWithCache runs g's level-grouped topological sort, consulting cache
// first and memoizing the outcome after (spec §4.6). A nil cache always
// misses and is always safe to pass.
func sortWithCache(g *depgraph.Graph, cache *depgraph.Cache, kindOrder []string) ([][]string, error) {
	key := depgraph.CacheKey(kindOrder)

	if entry, ok := cache.Get(key); ok {
		if !entry.Valid {
			return nil, &cerrs.Cycle{Kinds: strings.Split(entry.Reason, ",")}
		}
		return entry.Levels, nil
	}

	levels, err := g.TopoSortLevels()
	if err != nil {
		var cyc *cerrs.Cycle
		if errors.As(err, &cyc) {
			cache.Set(key, depgraph.CacheEntry{Valid: false, Reason: strings.Join(cyc.Kinds, ",")})
		}
		return nil, err
	}

	flat := make([]string, 0, len(kindOrder))
	for _, level := range levels {
		flat = append(flat, level...)
	}
	cache.Set(key, depgraph.CacheEntry{Valid: true, Order: flat, Levels: levels})
	return levels, nil
}
