package scene

import (
	"context"
	"errors"
	"fmt"
)

// ErrPending is returned by Future.Result while the load is still running.
var ErrPending = errors.New("scene: asset still loading")

// State is the lifecycle of an asynchronous load.
type State int

const (
	StatePending State = iota
	StateLoaded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateLoaded:
		return "loaded"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Future is the result of a load running on another goroutine. It resolves
// exactly once, to a value or an error, and is safe to poll from any
// goroutine.
type Future[T any] struct {
	done chan struct{}
	val  T
	err  error
}

// Load starts fn on a new goroutine and returns its future. fn receives
// ctx; a panic in fn resolves the future as failed.
func Load[T any](ctx context.Context, fn func(context.Context) (T, error)) *Future[T] {
	f := &Future[T]{done: make(chan struct{})}
	go func() {
		defer close(f.done)
		defer func() {
			if r := recover(); r != nil {
				f.err = fmt.Errorf("scene: load panicked: %v", r)
			}
		}()
		f.val, f.err = fn(ctx)
	}()
	return f
}

// Resolved returns a future that is already loaded with v.
func Resolved[T any](v T) *Future[T] {
	f := &Future[T]{done: make(chan struct{}), val: v}
	close(f.done)
	return f
}

// Failed returns a future that has already failed with err.
func Failed[T any](err error) *Future[T] {
	f := &Future[T]{done: make(chan struct{}), err: err}
	close(f.done)
	return f
}

// Done is closed once the future resolves.
func (f *Future[T]) Done() <-chan struct{} { return f.done }

// State reports the current state without blocking.
func (f *Future[T]) State() State {
	select {
	case <-f.done:
		if f.err != nil {
			return StateFailed
		}
		return StateLoaded
	default:
		return StatePending
	}
}

// Result returns the value without blocking. While pending it returns
// ErrPending.
func (f *Future[T]) Result() (T, error) {
	select {
	case <-f.done:
		return f.val, f.err
	default:
		var zero T
		return zero, ErrPending
	}
}

// Wait blocks until the future resolves or ctx is done.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
