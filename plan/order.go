package plan

import (
	"errors"
	"fmt"
	"sort"

	"github.com/plugforge/compose/cerrs"
	"github.com/plugforge/compose/hook"
	"github.com/plugforge/compose/internal/depgraph"
)

// groupHooksByKind partitions hooks into per-kind groups, preserving the
// order each hook was encountered in (spec §4.5: "Hook metadata is grouped
// by kind; each entry has a zero-based index within its group"). kindOrder
// records the order kinds are first seen, for deterministic graph node
// seeding.
func groupHooksByKind(hooks []*hook.Descriptor) (byKind map[string][]*hook.Descriptor, kindOrder []string) {
	byKind = make(map[string][]*hook.Descriptor)
	for _, h := range hooks {
		if _, ok := byKind[h.Kind()]; !ok {
			kindOrder = append(kindOrder, h.Kind())
		}
		byKind[h.Kind()] = append(byKind[h.Kind()], h)
	}
	return byKind, kindOrder
}

// validateOverrideChains enforces spec §4.5(a): within a kind's group, any
// hook beyond the first is -- by definition -- an override hook (rule (b):
// override hook (K, i>0) depends on (K, i-1)), so it must itself declare
// Overwrite() to legally claim the slot. A group whose second-or-later
// entry does not permit overwrite is rejected outright, the same way a
// registry Add would refuse a DuplicateKind.
func validateOverrideChains(byKind map[string][]*hook.Descriptor) error {
	for kind, group := range byKind {
		for i := 1; i < len(group); i++ {
			if !group[i].Overwrite() {
				return &cerrs.BadHook{Reason: fmt.Sprintf(
					"kind %q has more than one hook but entry %d does not permit overwrite", kind, i)}
			}
		}
	}
	return nil
}

// hookID is the synthetic dependency-graph node identifier for one hook:
// its kind plus its zero-based index within that kind's group.
func hookID(kind string, index int) string {
	return fmt.Sprintf("%s#%d", kind, index)
}

// orderHooks computes the hook-level execution order (spec §4.5 "Multiple
// hooks per kind / override semantics"): override hook (K,i>0) depends on
// (K,i-1); a hook's cross-kind Required dependencies point to the last
// hook of each dependency kind (if that kind has any hook at all -- a
// dependency on a kind with no hook contributes no edge here and is
// rejected later by the verify pass's Required check, spec §4.8 step 6). The result
// is deterministic for a fixed hooks slice (insertion-order tie-break,
// spec §8 "Determinism").
func orderHooks(hooks []*hook.Descriptor) ([]*hook.Descriptor, error) {
	byKind, kindOrder := groupHooksByKind(hooks)
	if err := validateOverrideChains(byKind); err != nil {
		return nil, err
	}

	g := depgraph.New()
	idToHook := make(map[string]*hook.Descriptor, len(hooks))

	for _, kind := range kindOrder {
		for i, h := range byKind[kind] {
			id := hookID(kind, i)
			g.AddNode(id)
			idToHook[id] = h
		}
	}

	for _, kind := range kindOrder {
		group := byKind[kind]
		for i, h := range group {
			id := hookID(kind, i)

			if i > 0 {
				g.AddEdge(hookID(kind, i-1), id)
			}

			for _, dep := range h.Required() {
				if dep == kind {
					// An override hook listing its own kind is the (b)
					// exception: that dependency is already expressed by
					// the (K,i-1) edge above and contributes nothing new.
					continue
				}
				depGroup, ok := byKind[dep]
				if !ok || len(depGroup) == 0 {
					// No hook produces this kind; Planner.verify's check
					// of every hook's Required raises MissingDependency
					// for it.
					continue
				}
				g.AddEdge(hookID(dep, len(depGroup)-1), id)
			}
		}
	}

	order, err := g.TopoSort()
	if err != nil {
		var cyc *cerrs.Cycle
		if errors.As(err, &cyc) {
			kinds := make([]string, 0, len(cyc.Kinds))
			seen := make(map[string]struct{}, len(cyc.Kinds))
			for _, id := range cyc.Kinds {
				k := idToHook[id].Kind()
				if _, ok := seen[k]; ok {
					continue
				}
				seen[k] = struct{}{}
				kinds = append(kinds, k)
			}
			sort.Strings(kinds)
			return nil, &cerrs.Cycle{Kinds: kinds}
		}
		return nil, err
	}

	out := make([]*hook.Descriptor, 0, len(order))
	for _, id := range order {
		out = append(out, idToHook[id])
	}
	return out, nil
}
