// Package promise implements the observable future result the executor
// and the subsystem lifecycle use to model §5's suspension points: a
// facet's init/dispose callback, and a build/dispose/reload awaiting an
// operation already in progress.
//
// It is adapted from go.uber.org/dig's internal/promise.Deferred, which
// solves the same "join on a set of concurrent constructor calls without
// abandoning the ones that outlive the first failure" problem dig's
// parallel scheduler has. Unlike dig's Deferred -- which is only ever
// resolved from the single goroutine driving its scheduler's flush loop --
// a Future here may be resolved from whichever goroutine is running a
// facet's init callback, so every operation is guarded by a mutex.
package promise

import "sync"

// Observer is called exactly once, with the settled error (nil on
// success), when the Future it was registered on resolves.
type Observer func(error)

// Future is an observable asynchronous result that settles at most once.
// The zero value is unresolved and has no observers.
type Future struct {
	mu        sync.Mutex
	observers []Observer
	settled   bool
	err       error
}

// Done returns a Future that has already settled successfully.
func Done() *Future {
	return &Future{settled: true}
}

// Failed returns a Future that has already settled with err.
func Failed(err error) *Future {
	return &Future{settled: true, err: err}
}

// Resolved reports whether this Future has settled, and if so, with what
// error. err is meaningless if resolved is false.
func (f *Future) Resolved() (resolved bool, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.settled, f.err
}

// Observe registers obs to run once this Future settles, at most once. If
// the Future has already settled, obs runs synchronously before Observe
// returns.
func (f *Future) Observe(obs Observer) {
	f.mu.Lock()
	if f.settled {
		err := f.err
		f.mu.Unlock()
		obs(err)
		return
	}
	f.observers = append(f.observers, obs)
	f.mu.Unlock()
}

// Resolve settles this Future with err and notifies every registered
// observer exactly once. Resolving an already-settled Future is a no-op,
// matching the source's "resolve is idempotent" behavior.
func (f *Future) Resolve(err error) {
	f.mu.Lock()
	if f.settled {
		f.mu.Unlock()
		return
	}
	f.settled = true
	f.err = err
	observers := f.observers
	f.observers = nil
	f.mu.Unlock()

	for _, obs := range observers {
		obs(err)
	}
}

// Wait blocks the calling goroutine until this Future settles, returning
// its error. It is the synchronous counterpart to Observe, used by
// Subsystem methods that need to await an in-progress build/dispose
// before proceeding (spec §5 suspension point (d)).
func (f *Future) Wait() error {
	done := make(chan error, 1)
	f.Observe(func(err error) { done <- err })
	return <-done
}

// Run starts fn on a new goroutine and returns a Future that settles with
// its result.
func Run(fn func() error) *Future {
	f := new(Future)
	go func() {
		f.Resolve(fn())
	}()
	return f
}

// WhenAll returns a Future that settles once every supplied Future has
// settled. It resolves with the first error observed across all of them,
// or nil if every one of them succeeded. Critically, every Future is
// still observed even after one reports failure -- spec §5: "remaining
// facets in that level must still be awaited (to avoid leaking in-flight
// work)".
func WhenAll(futures ...*Future) *Future {
	if len(futures) == 0 {
		return Done()
	}

	out := new(Future)
	var mu sync.Mutex
	remaining := len(futures)
	var firstErr error

	for _, fut := range futures {
		fut.Observe(func(err error) {
			mu.Lock()
			if err != nil && firstErr == nil {
				firstErr = err
			}
			remaining--
			done := remaining == 0
			settleErr := firstErr
			mu.Unlock()

			if done {
				out.Resolve(settleErr)
			}
		})
	}
	return out
}
