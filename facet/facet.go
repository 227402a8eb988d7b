// Package facet implements the composition engine's capability object
// (spec §3 "Facet", §4.1): created empty, mutated through Add/AddDependency
// /OnInit/OnDispose, and frozen the moment its init callback has run.
//
// The source builds a facet's method bag by reflectively copying property
// descriptors from a plain object, preserving the getter/setter
// distinction and the writable/enumerable/configurable bits. Spec §9 calls
// for replacing that at the boundary of a typed language with an explicit
// mapping from name to a typed callable/accessor -- see plugapi.Method.
package facet

import (
	"fmt"
	"sort"

	"go.uber.org/atomic"

	"github.com/plugforge/compose/cerrs"
	"github.com/plugforge/compose/plugapi"
)

// InitArgs is the struct passed to a facet's init callback (spec §4.1:
// "invoke init_callback ... with the struct {ctx, api, subsystem, facet:
// self}").
type InitArgs struct {
	Ctx       any // the resolved context the caller passed to Init (a ctxkit.Context during a build).
	API       plugapi.API
	Subsystem plugapi.Subsystem
	Facet     *Facet
}

// DisposeArgs is the struct passed to a facet's dispose callback (spec
// §4.1: "dispose(subsystem): invoke dispose_callback if set").
type DisposeArgs struct {
	Subsystem plugapi.Subsystem
	Facet     *Facet
}

// Options configures a new Facet (spec §3 Hook descriptor fields that a
// factory copies onto the facet it builds).
type Options struct {
	Source    string
	Version   string
	Required  []string
	Attach    bool
	Overwrite bool
	Contract  string // empty means "no contract"
}

// Facet is the capability object a hook factory produces. Its zero value
// is not usable; construct one with New.
type Facet struct {
	kind      string
	source    string
	version   string
	contract  string
	hasContract bool
	required  map[string]struct{}
	attach    bool
	overwrite bool

	methods map[string]plugapi.Method

	orderIndex    int
	hasOrderIndex bool

	initCB    func(InitArgs) error
	disposeCB func(DisposeArgs) error

	initialized atomic.Bool
	disposed    atomic.Bool
}

var _ plugapi.FacetHandle = (*Facet)(nil)

// New creates an empty facet of the given kind. kind must be non-empty;
// this mirrors the Hook descriptor's own "kind" validation (spec §4.2) but
// is enforced again here because a factory is free to construct a Facet
// directly.
func New(kind string, opts Options) (*Facet, error) {
	if kind == "" {
		return nil, &cerrs.BadFacet{Reason: "kind must not be empty"}
	}

	required := make(map[string]struct{}, len(opts.Required))
	for _, r := range opts.Required {
		if r != "" {
			required[r] = struct{}{}
		}
	}

	f := &Facet{
		kind:      kind,
		source:    opts.Source,
		version:   opts.Version,
		required:  required,
		attach:    opts.Attach,
		overwrite: opts.Overwrite,
		methods:   make(map[string]plugapi.Method),
	}
	if opts.Contract != "" {
		f.contract = opts.Contract
		f.hasContract = true
	}
	return f, nil
}

// Kind returns the facet's kind string.
func (f *Facet) Kind() string { return f.kind }

// Source returns the origin identifier recorded on the facet.
func (f *Facet) Source() string { return f.source }

// Version returns the facet's semantic version string.
func (f *Facet) Version() string { return f.version }

// Contract returns the contract name this facet declares, if any.
func (f *Facet) Contract() (string, bool) { return f.contract, f.hasContract }

// Required returns the facet's dependency kinds, sorted for deterministic
// iteration (the data model treats this as an unordered set).
func (f *Facet) Required() []string {
	out := make([]string, 0, len(f.required))
	for k := range f.required {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Attach reports whether this facet asks to be attached to its subsystem's
// identifier namespace.
func (f *Facet) Attach() bool { return f.attach }

// Overwrite reports whether this facet permits a later facet of the same
// kind to replace it.
func (f *Facet) Overwrite() bool { return f.overwrite }

// Initialized reports whether Init has completed successfully. Once true,
// the facet is frozen: Add, AddDependency, OnInit, and OnDispose all fail.
func (f *Facet) Initialized() bool { return f.initialized.Load() }

// OrderIndex returns the facet's topological build position, if one has
// been assigned yet.
func (f *Facet) OrderIndex() (int, bool) { return f.orderIndex, f.hasOrderIndex }

// SetOrderIndex records the facet's topological position. It is called by
// the executor while building, not by application code.
func (f *Facet) SetOrderIndex(i int) { f.orderIndex = i; f.hasOrderIndex = true }

// Method looks up a single entry in the method bag.
func (f *Facet) Method(name string) (plugapi.Method, bool) {
	m, ok := f.methods[name]
	return m, ok
}

// MethodNames returns the method bag's keys, sorted for determinism (the
// data model treats bag order as irrelevant).
func (f *Facet) MethodNames() []string {
	out := make([]string, 0, len(f.methods))
	for k := range f.methods {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Add copies every entry of methods onto the facet's method bag, skipping
// any key already present (first writer wins), matching the source's
// "skips any key already present on methods" rule for its reflective
// descriptor copy. It fails with AlreadyInitialized once the facet has
// frozen. Returns f for chaining.
func (f *Facet) Add(methods map[string]plugapi.Method) (*Facet, error) {
	if f.Initialized() {
		return f, &cerrs.AlreadyInitialized{Kind: f.kind}
	}
	for name, m := range methods {
		if _, exists := f.methods[name]; exists {
			continue
		}
		f.methods[name] = m
	}
	return f, nil
}

// AddDependency unions kind into the facet's required set. It fails with
// AlreadyInitialized once the facet has frozen.
func (f *Facet) AddDependency(kind string) (*Facet, error) {
	if f.Initialized() {
		return f, &cerrs.AlreadyInitialized{Kind: f.kind}
	}
	if kind != "" {
		f.required[kind] = struct{}{}
	}
	return f, nil
}

// OnInit sets the facet's single init callback. It fails with
// AlreadyInitialized once frozen, and with Duplicate if a callback is
// already set.
func (f *Facet) OnInit(cb func(InitArgs) error) (*Facet, error) {
	if f.Initialized() {
		return f, &cerrs.AlreadyInitialized{Kind: f.kind}
	}
	if f.initCB != nil {
		return f, &cerrs.Duplicate{What: fmt.Sprintf("init callback for facet %q", f.kind)}
	}
	f.initCB = cb
	return f, nil
}

// OnDispose sets the facet's single dispose callback. It fails with
// AlreadyInitialized once frozen, and with Duplicate if a callback is
// already set.
func (f *Facet) OnDispose(cb func(DisposeArgs) error) (*Facet, error) {
	if f.Initialized() {
		return f, &cerrs.AlreadyInitialized{Kind: f.kind}
	}
	if f.disposeCB != nil {
		return f, &cerrs.Duplicate{What: fmt.Sprintf("dispose callback for facet %q", f.kind)}
	}
	f.disposeCB = cb
	return f, nil
}

// Init runs the facet's init callback exactly once (spec invariant I1) and
// freezes the facet on success. If the callback fails, the error is
// returned and the facet is left unfrozen (Initialized() stays false).
func (f *Facet) Init(ctx any, api plugapi.API, sub plugapi.Subsystem) error {
	if f.Initialized() {
		return nil
	}
	if f.initCB != nil {
		if err := f.initCB(InitArgs{Ctx: ctx, API: api, Subsystem: sub, Facet: f}); err != nil {
			return err
		}
	}
	f.initialized.Store(true)
	return nil
}

// Dispose runs the facet's dispose callback if one is set (spec invariant
// I2: at most once, only after Init or immediately following a failed
// Init). It returns the callback's error; the registry treats disposal as
// best-effort and discards that error rather than abort.
func (f *Facet) Dispose(sub plugapi.Subsystem) error {
	if f.disposed.Swap(true) {
		return nil
	}
	if f.disposeCB == nil {
		return nil
	}
	return f.disposeCB(DisposeArgs{Subsystem: sub, Facet: f})
}
