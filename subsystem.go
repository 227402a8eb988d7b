package compose

import (
	"log/slog"
	"sort"
	"strings"
	"sync"

	"go.uber.org/atomic"

	"github.com/plugforge/compose/cerrs"
	"github.com/plugforge/compose/contract"
	"github.com/plugforge/compose/ctxkit"
	"github.com/plugforge/compose/hook"
	"github.com/plugforge/compose/internal/promise"
	"github.com/plugforge/compose/plan"
	"github.com/plugforge/compose/plugapi"
	"github.com/plugforge/compose/registry"
)

// Callback is a subsystem-level init/dispose hook (spec §3
// "init_callbacks", "dispose_callbacks"), distinct from a Facet's own
// OnInit/OnDispose: it runs once per build/dispose of the subsystem
// itself, not per facet, and is handed the same (api, context) pair a
// hook factory sees (spec §4.9 step 6: "Invoke each of the subsystem's
// init_callbacks in registration order with (api, context)").
type Callback func(api plugapi.API, ctx ctxkit.Context) error

// Subsystem is a named, hierarchical collection of hooks that build into
// facets (spec §3 "Subsystem", §4.10). Its zero value is not usable;
// construct one with New.
type Subsystem struct {
	name          string
	logger        *slog.Logger
	messageSystem any

	baseCtx      ctxkit.Context
	defaultHooks []*hook.Descriptor

	registry *registry.Registry
	planner  *plan.Planner

	mu               sync.Mutex
	hooks            []*hook.Descriptor
	context          ctxkit.Context
	initCallbacks    []Callback
	disposeCallbacks []Callback
	parent           *Subsystem
	children         []*Subsystem
	inProgress       *promise.Future

	isBuilt atomic.Bool
}

var _ plugapi.Subsystem = (*Subsystem)(nil)

// New constructs an empty, unbuilt Subsystem named name (spec §6
// constructor `(name, {message_system?, config?, debug?, default_hooks?})`).
func New(name string, opts ...Option) *Subsystem {
	cfg := &config{}
	for _, opt := range opts {
		opt.apply(cfg)
	}

	logger := cfg.logger
	if logger == nil {
		logger = discardLogger()
	}

	contracts := cfg.contracts
	if contracts == nil {
		contracts = contract.New()
	}

	s := &Subsystem{
		name:          name,
		logger:        logger,
		messageSystem: cfg.messageSystem,
		baseCtx:       cfg.baseCtx,
		defaultHooks:  append([]*hook.Descriptor(nil), cfg.defaultHooks...),
	}
	s.registry = registry.New(s)
	s.planner = plan.New(contracts, cfg.cache)
	return s
}

// Name returns the subsystem's own name (not its qualified path; see
// NameString).
func (s *Subsystem) Name() string { return s.name }

// MessageSystem returns the value passed to WithMessageSystem, unexamined
// (spec §6 "ignored-passthrough").
func (s *Subsystem) MessageSystem() any { return s.messageSystem }

// Registry returns the name-lookup view over this subsystem's real
// registry, satisfying plugapi.Subsystem.
func (s *Subsystem) Registry() plugapi.Lookup { return s.registry.Lookup() }

// Use appends h to the subsystem's hooks (spec §4.10 "use"). It fails with
// AlreadyBuilt if the subsystem is built and has not since been reloaded,
// and with NotAHook if h is nil.
func (s *Subsystem) Use(h *hook.Descriptor) error {
	if h == nil {
		return &cerrs.NotAHook{}
	}
	if s.isBuilt.Load() {
		return &cerrs.AlreadyBuilt{Subsystem: s.name}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isBuilt.Load() {
		return &cerrs.AlreadyBuilt{Subsystem: s.name}
	}
	s.hooks = append(s.hooks, h)
	return nil
}

// UseIf calls Use iff cond, else is a no-op returning nil (spec §6
// "use_if(cond, hook)").
func (s *Subsystem) UseIf(cond bool, h *hook.Descriptor) error {
	if !cond {
		return nil
	}
	return s.Use(h)
}

// OnInit appends cb to the subsystem's init callbacks. There is no
// duplicate detection (spec §4.10).
func (s *Subsystem) OnInit(cb Callback) {
	s.mu.Lock()
	s.initCallbacks = append(s.initCallbacks, cb)
	s.mu.Unlock()
}

// OnDispose appends cb to the subsystem's dispose callbacks. There is no
// duplicate detection (spec §4.10).
func (s *Subsystem) OnDispose(cb Callback) {
	s.mu.Lock()
	s.disposeCallbacks = append(s.disposeCallbacks, cb)
	s.mu.Unlock()
}

// IsBuilt reports whether the subsystem has successfully built and not
// since been disposed or reloaded.
func (s *Subsystem) IsBuilt() bool { return s.isBuilt.Load() }

// Capabilities returns every kind currently registered, sorted for
// deterministic assertions (spec §6 "capabilities (= all registered
// kinds)").
func (s *Subsystem) Capabilities() []string {
	kinds := s.registry.AllKinds()
	sort.Strings(kinds)
	return kinds
}

// Find delegates to the subsystem's registry (spec §4.10 "find").
func (s *Subsystem) Find(kind string, orderIndex ...int) (plugapi.FacetHandle, bool) {
	f, ok := s.registry.Find(kind, orderIndex...)
	if !ok {
		return nil, false
	}
	return f, true
}

// GetByIndex delegates to the subsystem's registry (spec §4.10
// "get_by_index").
func (s *Subsystem) GetByIndex(kind string, i int) (plugapi.FacetHandle, bool) {
	f, ok := s.registry.GetByIndex(kind, i)
	if !ok {
		return nil, false
	}
	return f, true
}

// SetParent links the subsystem to parent, appending it to parent's
// children (spec §4.10 "set_parent"). A nil parent detaches s, making it
// a root. SetParent does not itself remove s from a previous parent's
// children slice; reparenting a subsystem already under a different
// parent is not a case the spec describes and is left to the caller to
// avoid.
func (s *Subsystem) SetParent(parent *Subsystem) {
	s.mu.Lock()
	s.parent = parent
	s.mu.Unlock()

	if parent != nil {
		parent.mu.Lock()
		parent.children = append(parent.children, s)
		parent.mu.Unlock()
	}
}

// GetParent returns the subsystem's parent, or nil if it is a root.
func (s *Subsystem) GetParent() *Subsystem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.parent
}

// IsRoot reports whether the subsystem has no parent.
func (s *Subsystem) IsRoot() bool {
	return s.GetParent() == nil
}

// GetRoot walks the parent chain to the subsystem with no parent.
func (s *Subsystem) GetRoot() *Subsystem {
	cur := s
	for {
		parent := cur.GetParent()
		if parent == nil {
			return cur
		}
		cur = parent
	}
}

// NameString renders the subsystem's position in its hierarchy (spec
// §4.10): `"{root_name}://"` for a root, `"{root_name}://{path from
// root, slash-joined}"` otherwise.
func (s *Subsystem) NameString() string {
	root := s.GetRoot()
	if root == s {
		return root.name + "://"
	}

	var segments []string
	for cur := s; cur != root; cur = cur.GetParent() {
		segments = append(segments, cur.name)
	}
	for i, j := 0, len(segments)-1; i < j; i, j = i+1, j-1 {
		segments[i], segments[j] = segments[j], segments[i]
	}
	return root.name + "://" + strings.Join(segments, "/")
}
