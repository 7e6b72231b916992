// Package dispatch implements the bounded reader-pool / single-writer task
// scheduler spec.md §4.2 describes: every public storage operation is
// submitted as a closure and resolved asynchronously through a Future,
// mirroring the original client's QFuture-returning async API while giving
// SQLite exactly one writer at a time.
package dispatch

import (
	"context"

	"github.com/evernotelocal/qstore/internal/types"
)

// result is the value/error pair a Future resolves with.
type result[T any] struct {
	val T
	err error
}

// Future is the Go rendering of the original client's QFuture<T>: a
// one-shot container a caller can block on (Get) or poll (Done).
type Future[T any] struct {
	done chan struct{}
	res  result[T]
}

func newFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

func (f *Future[T]) resolve(val T, err error) {
	f.res = result[T]{val: val, err: err}
	close(f.done)
}

// Done returns a channel closed once the future has resolved, for
// select-based waiting alongside other events.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Get blocks until the future resolves or ctx is done, whichever comes
// first. A context cancellation does not cancel the underlying task --
// the closure may already be running on the writer goroutine -- it only
// stops this caller from waiting on it.
func (f *Future[T]) Get(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.res.val, f.res.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// resolveDestroyed resolves a future with ErrHandlerDestroyed, used for
// closures still queued when the dispatcher is closed.
func resolveDestroyed[T any](f *Future[T]) {
	var zero T
	f.resolve(zero, types.ErrHandlerDestroyed)
}
