package compose

import (
	"github.com/plugforge/compose/cerrs"
	"github.com/plugforge/compose/ctxkit"
	"github.com/plugforge/compose/hook"
	"github.com/plugforge/compose/internal/promise"
	"github.com/plugforge/compose/plan"
	"github.com/plugforge/compose/plugapi"
	"github.com/plugforge/compose/registry"
)

// Build runs the verify/execute cycle (spec §4.8, §4.9) if the subsystem
// is not already built, waiting out any build/dispose/reload already in
// flight first (spec §5 "only one of them is active ... at a time"). A
// call against an already-built subsystem is a no-op (spec §8
// "Idempotence"). extraCtx, if given, is merged over the subsystem's base
// context for this build only (spec §3 Context merge rule); only its
// first element is used.
func (s *Subsystem) Build(extraCtx ...ctxkit.Context) error {
	for {
		s.mu.Lock()
		if s.inProgress != nil {
			f := s.inProgress
			s.mu.Unlock()
			f.Wait()
			continue
		}
		if s.isBuilt.Load() {
			s.mu.Unlock()
			return nil
		}
		f := new(promise.Future)
		s.inProgress = f
		s.mu.Unlock()

		err := s.doBuild(extraCtx...)

		s.mu.Lock()
		s.inProgress = nil
		s.mu.Unlock()
		f.Resolve(err)
		return err
	}
}

func (s *Subsystem) doBuild(extraCtx ...ctxkit.Context) error {
	var extra ctxkit.Context
	if len(extraCtx) > 0 {
		extra = extraCtx[0]
	}

	s.mu.Lock()
	hooks := make([]*hook.Descriptor, 0, len(s.defaultHooks)+len(s.hooks))
	hooks = append(hooks, s.defaultHooks...)
	hooks = append(hooks, s.hooks...)
	s.mu.Unlock()

	p, err := s.planner.Verify(s, hooks, s.baseCtx, extra)
	if err != nil {
		// Planner errors never touch the real registry (spec §7): the
		// subsystem remains in Created.
		return err
	}

	api := plugapi.API{Registry: s.registry.Lookup()}
	if err := plan.Execute(s.registry, p, registry.AddOptions{
		Init: true, Attach: true, Ctx: p.ResolvedCtx, API: api, Subsystem: s,
	}); err != nil {
		// Execute (registry.AddMany) has already rolled its own frame
		// back; the registry is exactly as it was before this call.
		return err
	}

	s.mu.Lock()
	s.context = p.ResolvedCtx
	children := append([]*Subsystem(nil), s.children...)
	callbacks := append([]Callback(nil), s.initCallbacks...)
	ctx := s.context
	s.mu.Unlock()

	for _, child := range children {
		if err := child.Build(); err != nil {
			s.rollbackAfterExecute(children)
			return wrapBuildFailed(err)
		}
	}

	for _, cb := range callbacks {
		if err := cb(api, ctx); err != nil {
			s.rollbackAfterExecute(children)
			return &cerrs.BuildFailed{Cause: err}
		}
	}

	s.isBuilt.Store(true)
	return nil
}

// rollbackAfterExecute undoes a build that failed after registry.AddMany
// already committed: every child that did get built is disposed, and this
// subsystem's own registry -- populated by the Execute call that already
// succeeded -- is cleared. This is the "rollback restores clean state"
// half of spec §4.10's state machine that plan.Execute itself cannot
// cover, since it only owns the registry, not child subsystems or
// subsystem-level init callbacks.
func (s *Subsystem) rollbackAfterExecute(children []*Subsystem) {
	for _, child := range children {
		if child.IsBuilt() {
			child.Dispose()
		}
	}
	s.registry.Clear()
}

func wrapBuildFailed(err error) error {
	if bf, ok := err.(*cerrs.BuildFailed); ok {
		return bf
	}
	return &cerrs.BuildFailed{Cause: err}
}

// Dispose tears the subsystem down (spec §4.10 "dispose"): children are
// disposed first, in insertion order, then the registry is cleared
// (disposing every facet, best-effort), then dispose_callbacks run in
// reverse registration order, also best-effort. Dispose never returns an
// error (spec §7 "Dispose errors ... never thrown"); failures are logged
// if a logger was configured. A call against a subsystem that is not
// currently built -- never built, or already disposed -- is a no-op
// (spec §8 "Idempotence").
func (s *Subsystem) Dispose() error {
	for {
		s.mu.Lock()
		if s.inProgress != nil {
			f := s.inProgress
			s.mu.Unlock()
			f.Wait()
			continue
		}
		if !s.isBuilt.Load() {
			s.mu.Unlock()
			return nil
		}
		f := new(promise.Future)
		s.inProgress = f
		s.mu.Unlock()

		s.doDispose()

		s.mu.Lock()
		s.inProgress = nil
		s.mu.Unlock()
		f.Resolve(nil)
		return nil
	}
}

func (s *Subsystem) doDispose() {
	s.mu.Lock()
	children := append([]*Subsystem(nil), s.children...)
	callbacks := append([]Callback(nil), s.disposeCallbacks...)
	ctx := s.context
	s.mu.Unlock()

	for _, child := range children {
		_ = child.Dispose()
	}

	s.registry.Clear()

	api := plugapi.API{Registry: s.registry.Lookup()}
	for i := len(callbacks) - 1; i >= 0; i-- {
		if err := callbacks[i](api, ctx); err != nil {
			s.logger.Error("subsystem dispose callback failed",
				"subsystem", s.NameString(), "error", err)
		}
	}

	s.isBuilt.Store(false)
}

// Reload clears a built subsystem back to Created while preserving its
// registered hooks, default hooks, base context, and callbacks (spec
// §4.10 "reload"): children are disposed, the registry is cleared, and
// the planner's memoized plan is invalidated so the next Build recomputes
// from scratch. A call against a subsystem that has never built is a
// no-op (spec §8 "Idempotence").
func (s *Subsystem) Reload() error {
	for {
		s.mu.Lock()
		if s.inProgress != nil {
			f := s.inProgress
			s.mu.Unlock()
			f.Wait()
			continue
		}
		if !s.isBuilt.Load() {
			s.mu.Unlock()
			return nil
		}
		f := new(promise.Future)
		s.inProgress = f
		s.mu.Unlock()

		s.doReload()

		s.mu.Lock()
		s.inProgress = nil
		s.mu.Unlock()
		f.Resolve(nil)
		return nil
	}
}

func (s *Subsystem) doReload() {
	s.mu.Lock()
	children := append([]*Subsystem(nil), s.children...)
	s.mu.Unlock()

	for _, child := range children {
		_ = child.Dispose()
	}

	s.registry.Clear()
	s.planner.Invalidate()
	s.isBuilt.Store(false)
}
