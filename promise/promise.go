// Package promise implements a generic single-resolution future/promise pair.
//
// A Promise is the write side, owned by whoever starts an asynchronous
// operation; the Future is the read side handed to anyone interested in the
// outcome. A future resolves at most once, to either a value or an error, and
// every waiter observes that one terminal state.
//
// Notification discipline: settling a promise never invokes waiter
// continuations inline. The settle path snapshots the waiter queue and hands
// it to a single deferred drain task that resumes the waiters in FIFO
// registration order. Code that resolves a promise therefore cannot be
// re-entered synchronously by a waiter's continuation.
package promise

import (
	"context"
	"sync"

	"agent-rpc/rpcerror"
)

// outcome is the terminal state of a future: exactly one of value or err.
type outcome[T any] struct {
	value T
	err   error
}

// waiter is one registered continuation. The fn is invoked exactly once by
// the drain task, unless the waiter is removed by cancellation first.
type waiter[T any] struct {
	fn func(outcome[T])
}

// Future is the read-only handle to an asynchronous outcome.
type Future[T any] struct {
	mu      sync.Mutex
	done    bool
	result  outcome[T]
	waiters []*waiter[T] // FIFO registration order; nil entries are cancelled slots
}

// Promise is the write-once handle used by the producer to settle a Future.
type Promise[T any] struct {
	future *Future[T]
}

// New creates a pending promise and returns both handles.
func New[T any]() (*Promise[T], *Future[T]) {
	f := &Future[T]{}
	return &Promise[T]{future: f}, f
}

// Future returns the read side of the promise.
func (p *Promise[T]) Future() *Future[T] {
	return p.future
}

// Resolve settles the future with a value. Settling an already-settled
// promise is a programming error and panics with an InvalidOperation error.
func (p *Promise[T]) Resolve(value T) {
	p.future.settle(outcome[T]{value: value})
}

// Reject settles the future with an error. Same double-settle rule as Resolve.
func (p *Promise[T]) Reject(err error) {
	p.future.settle(outcome[T]{err: err})
}

// Drop abandons the promise: if it is still pending, it is rejected with an
// "operation was abandoned" error so no waiter blocks forever. Dropping an
// already-settled promise is a no-op, which makes Drop safe to defer
// unconditionally next to the normal resolution path.
func (p *Promise[T]) Drop() {
	p.future.trySettle(outcome[T]{
		err: rpcerror.New(rpcerror.InvalidOperation, "operation was abandoned"),
	})
}

// settle transitions Pending → Ready exactly once and schedules the drain.
func (f *Future[T]) settle(result outcome[T]) {
	if !f.trySettle(result) {
		panic(rpcerror.New(rpcerror.InvalidOperation, "promise already settled"))
	}
}

// trySettle is the atomic Pending → Ready transition. Returns false when the
// future was already settled.
func (f *Future[T]) trySettle(result outcome[T]) bool {
	f.mu.Lock()
	if f.done {
		f.mu.Unlock()
		return false
	}
	f.done = true
	f.result = result
	// Snapshot and clear under the lock: a waiter that cancels after this
	// point finds itself absent from the queue and takes the outcome instead.
	snapshot := f.waiters
	f.waiters = nil
	f.mu.Unlock()

	if len(snapshot) > 0 {
		// Single deferred drain task. Running it on its own goroutine (not
		// inline) is what breaks reentrancy: the settler returns before any
		// continuation runs.
		go func() {
			for _, w := range snapshot {
				if w != nil {
					w.fn(result)
				}
			}
		}()
	}
	return true
}

// Done reports whether the future has reached its terminal state.
func (f *Future[T]) Done() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.done
}

// OnSettled registers a continuation to run when the future settles. If it
// is already settled, the continuation is still dispatched through a deferred
// task rather than invoked inline. Continuations registered while pending
// run in FIFO registration order.
func (f *Future[T]) OnSettled(fn func(value T, err error)) {
	f.mu.Lock()
	if f.done {
		result := f.result
		f.mu.Unlock()
		go fn(result.value, result.err)
		return
	}
	f.waiters = append(f.waiters, &waiter[T]{fn: func(o outcome[T]) {
		fn(o.value, o.err)
	}})
	f.mu.Unlock()
}

// Wait blocks until the future settles or ctx is cancelled.
//
// If the future is already settled, the result is returned immediately with
// no suspension. On cancellation, only this waiter is removed — the future's
// own state and every other waiter are untouched — and Wait returns a
// Cancelled error. If the drain task has already claimed this waiter when
// the cancellation fires, the terminal state wins and Wait returns it.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	f.mu.Lock()
	if f.done {
		result := f.result
		f.mu.Unlock()
		return result.value, result.err
	}
	ch := make(chan outcome[T], 1)
	w := &waiter[T]{fn: func(o outcome[T]) { ch <- o }}
	f.waiters = append(f.waiters, w)
	f.mu.Unlock()

	select {
	case result := <-ch:
		return result.value, result.err
	case <-ctx.Done():
		if f.removeWaiter(w) {
			var zero T
			return zero, rpcerror.Wrap(rpcerror.Cancelled, ctx.Err(), "wait cancelled")
		}
		// Lost the race: the drain already owns this waiter, so the outcome
		// is (or is about to be) in the channel.
		result := <-ch
		return result.value, result.err
	}
}

// removeWaiter unregisters w if it has not been claimed by a drain snapshot.
// Returns true when the waiter was still queued and is now removed.
func (f *Future[T]) removeWaiter(w *waiter[T]) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, queued := range f.waiters {
		if queued == w {
			// Keep the slot so FIFO positions of other waiters are stable.
			f.waiters[i] = nil
			return true
		}
	}
	return false
}
