package plan

import (
	"github.com/plugforge/compose/cerrs"
	"github.com/plugforge/compose/registry"
)

// Execute installs plan into reg (spec §4.9 steps 2-4): every kind the
// plan produced is handed to registry.AddMany in one transaction, level by
// level. A kind already present in reg under a different facet instance
// than the plan's is removed first (step 3, "to_overwrite"); a kind whose
// plan instance is already the one registered is left alone and simply
// forwarded for initialization (the same-instance carryover case,
// registry.Add's own identity check implements the no-op-for-storage
// half of that).
//
// Any failure is rolled back by AddMany itself and re-raised here wrapped
// as BuildFailed, matching the executor-error classification in spec §7.
// Assigning the subsystem's context, recursing into children, and running
// init callbacks (spec §4.9 steps 1, 5, 6) are the caller's responsibility
// -- they need fields (children, init_callbacks) that live on the
// concrete Subsystem, not on the narrow plugapi.Subsystem interface this
// package depends on.
func Execute(reg *registry.Registry, p *Plan, opts registry.AddOptions) error {
	for _, kind := range p.OrderedKinds {
		produced := p.FacetsByKind[kind]
		if len(produced) == 0 {
			continue
		}
		last := produced[len(produced)-1]
		if cur, ok := reg.Find(kind); ok && cur != last {
			reg.Remove(kind)
		}
	}

	if err := reg.AddMany(p.Levels, p.FacetsByKind, opts); err != nil {
		return &cerrs.BuildFailed{Cause: err}
	}
	return nil
}
