package registry

import (
	"sync"

	"github.com/plugforge/compose/cerrs"
	"github.com/plugforge/compose/facet"
)

// txnStack is the transaction log (spec §4.4): a stack of frames, each an
// ordered sequence of kinds whose facets were added while that frame was
// on top. Nested frames are independent -- Commit/Rollback only ever
// touch the top one.
type txnStack struct {
	mu     sync.Mutex
	frames [][]string
}

func newTxnStack() *txnStack {
	return &txnStack{}
}

// Begin pushes a new, empty frame.
func (s *txnStack) Begin() {
	s.mu.Lock()
	s.frames = append(s.frames, []string{})
	s.mu.Unlock()
}

// Active reports whether any transaction frame is open.
func (s *txnStack) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.frames) > 0
}

// trackAddition appends kind to the top frame. It is a no-op if no
// transaction is active, so Registry.Add can call it unconditionally.
func (s *txnStack) trackAddition(kind string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.frames) == 0 {
		return
	}
	top := len(s.frames) - 1
	s.frames[top] = append(s.frames[top], kind)
}

// Commit pops the top frame without undoing anything in it.
func (s *txnStack) Commit() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.frames) == 0 {
		return &cerrs.NoActiveTransaction{}
	}
	s.frames = s.frames[:len(s.frames)-1]
	return nil
}

// pop removes and returns the top frame's recorded kinds.
func (s *txnStack) pop() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.frames) == 0 {
		return nil, &cerrs.NoActiveTransaction{}
	}
	top := len(s.frames) - 1
	frame := s.frames[top]
	s.frames = s.frames[:top]
	return frame, nil
}

// Begin opens a new transaction frame on this registry.
func (r *Registry) Begin() {
	r.txn.Begin()
}

// Active reports whether this registry has an open transaction frame.
func (r *Registry) Active() bool {
	return r.txn.Active()
}

// Commit closes the top transaction frame, keeping every addition it
// recorded.
func (r *Registry) Commit() error {
	return r.txn.Commit()
}

// Rollback closes the top transaction frame and, for each kind it
// recorded, in reverse order, best-effort-disposes that kind's newest
// facet and removes it from the registry (spec §4.4). Disposal failures
// are swallowed; rollback always completes and never leaves the frame
// half-unwound.
func (r *Registry) Rollback() error {
	frame, err := r.txn.pop()
	if err != nil {
		return err
	}

	r.mu.Lock()
	sub := r.subsystem
	r.mu.Unlock()

	for i := len(frame) - 1; i >= 0; i-- {
		kind := frame[i]
		r.mu.Lock()
		seq := r.facets[kind]
		var newest *facet.Facet
		if len(seq) > 0 {
			newest = seq[len(seq)-1]
		}
		r.mu.Unlock()
		if newest == nil {
			continue
		}
		_ = newest.Dispose(sub)
		r.removeInstance(kind, newest)
	}
	return nil
}
