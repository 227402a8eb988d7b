// Package registry implements the per-subsystem facet store (spec §3
// "Registry", §4.3) and its transaction log (§4.4): an ordered-by-kind
// collection of facets, a name-lookup view over it for hook factories, and
// the rollback machinery the executor relies on.
package registry

import (
	"fmt"
	"sync"

	"github.com/plugforge/compose/cerrs"
	"github.com/plugforge/compose/facet"
	"github.com/plugforge/compose/plugapi"
)

// AddOptions configures a single Add (or the facets inside an AddMany).
// Overwrite carries the hook-level permission bit (spec §4.3(b): "neither
// the incoming hook nor the facet permits overwrite") -- Add also checks
// the facet's own Overwrite(), so either side consenting is sufficient.
type AddOptions struct {
	Init      bool
	Attach    bool
	Overwrite bool
	Ctx       any
	API       plugapi.API
	Subsystem plugapi.Subsystem
}

// Registry is the per-subsystem store of facets, keyed by kind. The zero
// value is not usable; construct one with New.
type Registry struct {
	mu sync.Mutex

	kinds  []string // insertion order of kinds first seen
	facets map[string][]*facet.Facet

	attached map[string]*facet.Facet // kind -> facet currently exposed under that identifier

	subsystem plugapi.Subsystem
	txn       *txnStack
}

// New returns an empty Registry. sub is used only for the Subsystem field
// of DisposeArgs when Remove, Clear, or Rollback best-effort-dispose a
// facet outside the context of a single Add call; it may be nil until the
// owning subsystem finishes constructing itself, via SetSubsystem.
func New(sub plugapi.Subsystem) *Registry {
	return &Registry{
		facets:   make(map[string][]*facet.Facet),
		attached: make(map[string]*facet.Facet),
		subsystem: sub,
		txn:      newTxnStack(),
	}
}

// SetSubsystem assigns the subsystem used for Remove/Clear/Rollback
// disposal, for the common construction order where the subsystem and its
// registry are each other's fields.
func (r *Registry) SetSubsystem(sub plugapi.Subsystem) {
	r.mu.Lock()
	r.subsystem = sub
	r.mu.Unlock()
}

func indexOfInstance(seq []*facet.Facet, f *facet.Facet) int {
	for i, e := range seq {
		if e == f {
			return i
		}
	}
	return -1
}

// Add registers f under kind (spec §4.3(a)-(f)). It fails with BadFacet if
// f.Kind() != kind, and with DuplicateKind if an entry for kind already
// exists and neither opts.Overwrite nor f.Overwrite() permits replacement.
// A call whose facet instance is already present under kind (the
// same-instance carryover case, spec §4.9) is a no-op for storage but
// still records a transaction addition and still runs Init/Attach.
func (r *Registry) Add(kind string, f *facet.Facet, opts AddOptions) error {
	if f.Kind() != kind {
		return &cerrs.BadFacet{Reason: fmt.Sprintf("facet kind %q does not match add kind %q", f.Kind(), kind)}
	}

	r.mu.Lock()
	existing := r.facets[kind]
	sameInstance := indexOfInstance(existing, f) >= 0

	if len(existing) > 0 && !sameInstance && !opts.Overwrite && !f.Overwrite() {
		r.mu.Unlock()
		return &cerrs.DuplicateKind{Kind: kind}
	}

	if !sameInstance {
		if len(existing) == 0 {
			r.kinds = append(r.kinds, kind)
		}
		r.facets[kind] = append(r.facets[kind], f)
	}
	r.txn.trackAddition(kind)
	r.mu.Unlock()

	if opts.Init {
		if err := f.Init(opts.Ctx, opts.API, opts.Subsystem); err != nil {
			_ = f.Dispose(opts.Subsystem)
			r.removeInstance(kind, f)
			return err
		}
	}

	if opts.Attach && f.Attach() {
		if err := r.Attach(kind); err != nil {
			return err
		}
	}

	return nil
}

// removeInstance removes exactly the facet instance f from kind's
// sequence (not the whole kind), deleting the kind entirely if that
// leaves it empty (spec: "a kind with an empty sequence is removed").
func (r *Registry) removeInstance(kind string, f *facet.Facet) {
	r.mu.Lock()
	defer r.mu.Unlock()

	seq := r.facets[kind]
	idx := indexOfInstance(seq, f)
	if idx < 0 {
		return
	}
	seq = append(seq[:idx], seq[idx+1:]...)
	if len(seq) == 0 {
		delete(r.facets, kind)
		r.kinds = removeString(r.kinds, kind)
		if cur, ok := r.attached[kind]; ok && cur == f {
			delete(r.attached, kind)
		}
	} else {
		r.facets[kind] = seq
		if cur, ok := r.attached[kind]; ok && cur == f {
			delete(r.attached, kind)
		}
	}
}

func removeString(ss []string, s string) []string {
	for i, v := range ss {
		if v == s {
			return append(ss[:i:i], ss[i+1:]...)
		}
	}
	return ss
}

// lastWinsLocked returns the facet with the greatest assigned OrderIndex
// in seq (spec §4.3 "find: last-wins"), falling back to the final element
// if none carry an order index yet (pre-build state).
func lastWinsLocked(seq []*facet.Facet) (*facet.Facet, bool) {
	if len(seq) == 0 {
		return nil, false
	}
	best := seq[len(seq)-1]
	bestIdx, bestHas := best.OrderIndex()
	for _, f := range seq[:len(seq)-1] {
		idx, has := f.OrderIndex()
		if !has {
			continue
		}
		if !bestHas || idx > bestIdx {
			best, bestIdx, bestHas = f, idx, true
		}
	}
	return best, true
}

// Find returns the last-wins facet of kind, or -- when orderIndex is
// supplied -- the unique facet whose OrderIndex equals it (spec §4.3).
func (r *Registry) Find(kind string, orderIndex ...int) (*facet.Facet, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	seq := r.facets[kind]
	if len(orderIndex) == 0 {
		return lastWinsLocked(seq)
	}
	want := orderIndex[0]
	for _, f := range seq {
		if idx, ok := f.OrderIndex(); ok && idx == want {
			return f, true
		}
	}
	return nil, false
}

// GetByIndex returns the i-th facet of kind in insertion order (distinct
// from OrderIndex, which reflects topological position).
func (r *Registry) GetByIndex(kind string, i int) (*facet.Facet, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	seq := r.facets[kind]
	if i < 0 || i >= len(seq) {
		return nil, false
	}
	return seq[i], true
}

// Has reports whether any facet of kind is registered.
func (r *Registry) Has(kind string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.facets[kind]) > 0
}

// Count returns the number of facets registered under kind.
func (r *Registry) Count(kind string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.facets[kind])
}

// HasMultiple reports whether kind has more than one registered facet
// (an override chain).
func (r *Registry) HasMultiple(kind string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.facets[kind]) > 1
}

// AllKinds returns every registered kind, in the order each was first
// seen.
func (r *Registry) AllKinds() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.kinds))
	copy(out, r.kinds)
	return out
}

// Iterate calls fn once per kind, in insertion order, with a copy of that
// kind's facet sequence. Iteration stops early if fn returns false.
func (r *Registry) Iterate(fn func(kind string, facets []*facet.Facet) bool) {
	r.mu.Lock()
	kinds := make([]string, len(r.kinds))
	copy(kinds, r.kinds)
	r.mu.Unlock()

	for _, kind := range kinds {
		r.mu.Lock()
		seq := append([]*facet.Facet(nil), r.facets[kind]...)
		r.mu.Unlock()
		if len(seq) == 0 {
			continue
		}
		if !fn(kind, seq) {
			return
		}
	}
}

// Attach exposes kind's last-wins facet under the subsystem's identifier
// namespace (spec §4.3 "attach"). It is a no-op if that facet is already
// the one attached, replaces the attachment if the new facet permits
// overwrite, and otherwise fails with AttachConflict.
func (r *Registry) Attach(kind string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	f, ok := lastWinsLocked(r.facets[kind])
	if !ok {
		return nil
	}
	cur, exists := r.attached[kind]
	switch {
	case !exists:
		r.attached[kind] = f
	case cur == f:
		// already attached to this exact instance
	case f.Overwrite():
		r.attached[kind] = f
	default:
		return &cerrs.AttachConflict{Kind: kind}
	}
	return nil
}

// Attached returns the facet currently exposed under kind's identifier, if
// any.
func (r *Registry) Attached(kind string) (*facet.Facet, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.attached[kind]
	return f, ok
}

// Remove best-effort-disposes every facet of kind, deletes the kind, and
// detaches its identifier if attached (spec §4.3 "remove").
func (r *Registry) Remove(kind string) {
	r.mu.Lock()
	seq := r.facets[kind]
	delete(r.facets, kind)
	r.kinds = removeString(r.kinds, kind)
	delete(r.attached, kind)
	sub := r.subsystem
	r.mu.Unlock()

	for _, f := range seq {
		_ = f.Dispose(sub)
	}
}

// Clear disposes every facet in the registry, best-effort, and empties the
// store (spec §4.3 "clear").
func (r *Registry) Clear() {
	r.mu.Lock()
	kinds := make([]string, len(r.kinds))
	copy(kinds, r.kinds)
	sub := r.subsystem
	r.mu.Unlock()

	for _, kind := range kinds {
		r.mu.Lock()
		seq := r.facets[kind]
		r.mu.Unlock()
		for _, f := range seq {
			_ = f.Dispose(sub)
		}
	}

	r.mu.Lock()
	r.kinds = nil
	r.facets = make(map[string][]*facet.Facet)
	r.attached = make(map[string]*facet.Facet)
	r.mu.Unlock()
}

// lookupView adapts a Registry to plugapi.Lookup, returning the last-wins
// facet for a kind as a read-only handle. This is the "name-lookup view"
// placed in api.Registry and handed to hook factories (spec §4.3).
type lookupView struct {
	r *Registry
}

func (v lookupView) Lookup(kind string) (plugapi.FacetHandle, bool) {
	f, ok := v.r.Find(kind)
	if !ok {
		return nil, false
	}
	return f, true
}

// Lookup returns the name-lookup view over this registry.
func (r *Registry) Lookup() plugapi.Lookup {
	return lookupView{r: r}
}
