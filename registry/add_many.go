package registry

import (
	"github.com/plugforge/compose/facet"
	"github.com/plugforge/compose/internal/promise"
)

// AddMany registers and initializes an entire build's worth of facets in
// one transaction (spec §4.3 "add_many", §4.9 step 4). levels is the
// dependency-level grouping the executor derived from the plan's
// topological sort (depgraph.Graph.TopoSortLevels): within a level, every
// facet's Init is started concurrently and jointly awaited before the
// next level begins (spec §5 "Parallelism within a build"). facetsByKind
// holds, per kind, every facet produced for it this build -- more than one
// entry for an overridden kind.
//
// Each facet's OrderIndex is assigned first, as its position in the
// flattened (level-major, then per-kind declaration order) sequence --
// this also gives consecutive override instances of one kind consecutive,
// increasing indices, consistent with hook order.
//
// On any error -- duplicate/attach conflict during registration, or any
// init failure -- the whole transaction is rolled back and the error is
// returned; otherwise it is committed.
func (r *Registry) AddMany(levels [][]string, facetsByKind map[string][]*facet.Facet, opts AddOptions) error {
	r.Begin()

	idx := 0
	for _, level := range levels {
		for _, kind := range level {
			for _, f := range facetsByKind[kind] {
				f.SetOrderIndex(idx)
				idx++
			}
		}
	}

	if err := r.addManyLevels(levels, facetsByKind, opts); err != nil {
		_ = r.Rollback()
		return err
	}
	return r.Commit()
}

func (r *Registry) addManyLevels(levels [][]string, facetsByKind map[string][]*facet.Facet, opts AddOptions) error {
	for _, level := range levels {
		type placed struct {
			kind string
			f    *facet.Facet
		}
		var toInit []placed

		for _, kind := range level {
			for _, f := range facetsByKind[kind] {
				addOpts := opts
				addOpts.Init = false
				if err := r.Add(kind, f, addOpts); err != nil {
					return err
				}
				toInit = append(toInit, placed{kind: kind, f: f})
			}
		}

		if !opts.Init {
			continue
		}

		futures := make([]*promise.Future, len(toInit))
		for i, p := range toInit {
			p := p
			futures[i] = promise.Run(func() error {
				return p.f.Init(opts.Ctx, opts.API, opts.Subsystem)
			})
		}
		if err := promise.WhenAll(futures...).Wait(); err != nil {
			return err
		}

		if opts.Attach {
			for _, p := range toInit {
				if p.f.Attach() {
					if err := r.Attach(p.kind); err != nil {
						return err
					}
				}
			}
		}
	}
	return nil
}
