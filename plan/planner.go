// Package plan implements the two-phase planner/executor split (spec §4.8,
// §4.9): a pure verify phase that produces a Plan without touching a
// subsystem's real registry, and a transactional execute phase that
// installs it.
package plan

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/plugforge/compose/cerrs"
	"github.com/plugforge/compose/contract"
	"github.com/plugforge/compose/ctxkit"
	"github.com/plugforge/compose/facet"
	"github.com/plugforge/compose/hook"
	"github.com/plugforge/compose/internal/depgraph"
	"github.com/plugforge/compose/plugapi"
)

// Plan is the verify phase's output (spec §3 "Plan"): everything the
// executor needs to install a build without repeating any of the work
// verify already did.
type Plan struct {
	ResolvedCtx  ctxkit.Context
	OrderedKinds []string
	FacetsByKind map[string][]*facet.Facet
	Levels       [][]string
}

// tempLookup is the verify-phase "temporary name-lookup view" (spec §4.8
// step 4): a plain, sequentially-mutated map of the facets produced so
// far this pass, which each subsequent hook factory's api.Registry sees.
// It never touches the real registry.
type tempLookup struct {
	byKind map[string]*facet.Facet
}

func newTempLookup() *tempLookup {
	return &tempLookup{byKind: make(map[string]*facet.Facet)}
}

func (v *tempLookup) Lookup(kind string) (plugapi.FacetHandle, bool) {
	f, ok := v.byKind[kind]
	if !ok {
		return nil, false
	}
	return f, true
}

// Planner runs the verify phase. It owns the (optional) graph-result cache
// and the contract registry consulted during validation; neither is
// required to be shared across Planner instances (spec §5 "the graph
// cache is owned by a single planner instance").
type Planner struct {
	Contracts *contract.Registry
	Cache     *depgraph.Cache

	mu         sync.Mutex
	lastHooks  []*hook.Descriptor
	lastBase   ctxkit.Context
	lastExtra  ctxkit.Context
	lastPlan   *Plan
	haveLast   bool
}

// New returns a Planner. contracts may be nil, in which case any facet
// declaring a contract fails with UnknownContract (there is nothing to
// resolve it against). cache may be nil to disable memoization.
func New(contracts *contract.Registry, cache *depgraph.Cache) *Planner {
	if contracts == nil {
		contracts = contract.New()
	}
	return &Planner{Contracts: contracts, Cache: cache}
}

// Invalidate clears the planner's memoized last plan (spec §4.8 "Plan
// caching"). Subsystem.Reload calls this; a fresh Verify call after it
// always recomputes from scratch.
func (p *Planner) Invalidate() {
	p.mu.Lock()
	p.haveLast = false
	p.lastHooks = nil
	p.lastPlan = nil
	p.mu.Unlock()
}

// sameHooks reports whether a and b name the exact same hook descriptors
// (by identity) in the same order -- the "hooks identity" half of the
// plan cache's key (spec §4.8).
func sameHooks(a, b []*hook.Descriptor) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Verify runs the full pure verify phase (spec §4.8) for hooks (already
// concatenated as default_hooks ++ user_hooks) against subsystem sub,
// merging baseCtx with extraCtx per the §3 merge rule. It produces every
// facet the hooks describe but installs none of them anywhere but its own
// temporary lookup view.
//
// The planner memoizes its last successful plan, keyed by hook-slice
// identity plus deep equality of baseCtx/extraCtx (spec §4.8 "Plan
// caching"); an unchanged call returns the cached Plan without re-running
// a single factory. Invalidate, or any change to either input, forces a
// fresh verify pass.
func (p *Planner) Verify(sub plugapi.Subsystem, hooks []*hook.Descriptor, baseCtx, extraCtx ctxkit.Context) (*Plan, error) {
	p.mu.Lock()
	if p.haveLast && sameHooks(p.lastHooks, hooks) &&
		reflect.DeepEqual(p.lastBase, baseCtx) && reflect.DeepEqual(p.lastExtra, extraCtx) {
		cached := p.lastPlan
		p.mu.Unlock()
		return cached, nil
	}
	p.mu.Unlock()

	plan, err := p.verify(sub, hooks, baseCtx, extraCtx)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.haveLast = true
	p.lastHooks = append([]*hook.Descriptor(nil), hooks...)
	p.lastBase = baseCtx
	p.lastExtra = extraCtx
	p.lastPlan = plan
	p.mu.Unlock()

	return plan, nil
}

func (p *Planner) verify(sub plugapi.Subsystem, hooks []*hook.Descriptor, baseCtx, extraCtx ctxkit.Context) (*Plan, error) {
	resolvedCtx := ctxkit.Merge(baseCtx, extraCtx)

	ordered, err := orderHooks(hooks)
	if err != nil {
		return nil, err
	}

	view := newTempLookup()
	api := plugapi.API{Registry: view}

	facetsByKind := make(map[string][]*facet.Facet)
	var kindOrder []string
	hooksByKind := make(map[string][]*hook.Descriptor)

	for _, h := range ordered {
		hooksByKind[h.Kind()] = append(hooksByKind[h.Kind()], h)

		f, err := h.Build(resolvedCtx, api, sub)
		if err != nil {
			return nil, err
		}
		if f.Kind() != h.Kind() {
			return nil, &cerrs.BadFacet{Reason: fmt.Sprintf(
				"hook %q (source %q) produced a facet of kind %q", h.Kind(), h.Source(), f.Kind())}
		}

		if existing, ok := view.byKind[h.Kind()]; ok {
			if !h.Overwrite() && !existing.Overwrite() && !f.Overwrite() {
				return nil, &cerrs.DuplicateKind{Kind: h.Kind()}
			}
		}

		if _, seen := facetsByKind[h.Kind()]; !seen {
			kindOrder = append(kindOrder, h.Kind())
		}
		facetsByKind[h.Kind()] = append(facetsByKind[h.Kind()], f)
		view.byKind[h.Kind()] = f
	}

	for _, kind := range kindOrder {
		for _, f := range facetsByKind[kind] {
			if err := contract.Validate(p.Contracts, f); err != nil {
				return nil, err
			}
		}
	}

	for _, h := range ordered {
		for _, dep := range h.Required() {
			if dep == h.Kind() {
				continue
			}
			if _, ok := view.byKind[dep]; !ok {
				return nil, &cerrs.MissingDependency{Kind: h.Kind(), Dependency: dep}
			}
		}
	}

	g, err := buildFacetGraph(hooksByKind, facetsByKind, kindOrder)
	if err != nil {
		return nil, err
	}

	levels, err := sortWithCache(g, p.Cache, kindOrder)
	if err != nil {
		return nil, err
	}

	flat := make([]string, 0, len(kindOrder))
	for _, level := range levels {
		flat = append(flat, level...)
	}

	return &Plan{
		ResolvedCtx:  resolvedCtx,
		OrderedKinds: flat,
		FacetsByKind: facetsByKind,
		Levels:       levels,
	}, nil
}
