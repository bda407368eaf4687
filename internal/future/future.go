// Package future provides Result, an explicit Ready/Pending sum type.
//
// Revival code returns a Result instead of probing values for a future-like
// shape. A Ready result carries its value (or error) directly and costs
// nothing to consume. A Pending result wraps a computation that runs the
// first time it is awaited; the outcome is memoized so every awaiter of
// the same Result observes the identical value.
//
// Results are consumed on a single goroutine. Awaiting a pending Result
// from inside its own computation returns ErrReentrant rather than
// deadlocking.
package future

import (
	"context"
	"errors"
)

// ErrReentrant is returned when a pending Result is awaited while its own
// computation is still running.
var ErrReentrant = errors.New("future: result awaited while still being computed")

type state int

const (
	stateIdle state = iota
	stateRunning
	stateDone
)

type pending[T any] struct {
	fn    func(ctx context.Context) (T, error)
	state state
	value T
	err   error
}

// Result is either Ready (value or error known now) or Pending.
// The zero Result is Ready with the zero value of T.
type Result[T any] struct {
	value T
	err   error
	p     *pending[T]
}

// Ready returns a settled Result holding v.
func Ready[T any](v T) Result[T] {
	return Result[T]{value: v}
}

// Fail returns a settled Result holding err.
func Fail[T any](err error) Result[T] {
	return Result[T]{err: err}
}

// Pending returns a Result whose value is produced by fn when first awaited.
func Pending[T any](fn func(ctx context.Context) (T, error)) Result[T] {
	return Result[T]{p: &pending[T]{fn: fn}}
}

// From wraps a (value, error) pair as a settled Result.
func From[T any](v T, err error) Result[T] {
	if err != nil {
		return Fail[T](err)
	}
	return Ready(v)
}

// IsPending reports whether the Result still has to be awaited.
// A pending Result that has already been awaited reports false.
func (r Result[T]) IsPending() bool {
	return r.p != nil && r.p.state != stateDone
}

// Settled returns the value and error of a Result that is not pending.
// ok is false when the Result still needs Await.
func (r Result[T]) Settled() (value T, err error, ok bool) {
	if r.p == nil {
		return r.value, r.err, true
	}
	if r.p.state == stateDone {
		return r.p.value, r.p.err, true
	}
	var zero T
	return zero, nil, false
}

// Await blocks until the Result is settled and returns its outcome.
func (r Result[T]) Await(ctx context.Context) (T, error) {
	if r.p == nil {
		return r.value, r.err
	}
	p := r.p
	switch p.state {
	case stateDone:
		return p.value, p.err
	case stateRunning:
		var zero T
		return zero, ErrReentrant
	}

	if err := ctx.Err(); err != nil {
		var zero T
		return zero, err
	}

	p.state = stateRunning
	p.value, p.err = p.fn(ctx)
	p.fn = nil
	p.state = stateDone
	return p.value, p.err
}

// Then chains fn after r. When r is settled fn runs immediately and its
// Result is returned as is, so synchronous chains never become pending.
// Errors short-circuit: fn is not called when r failed.
func Then[T, U any](r Result[T], fn func(T) Result[U]) Result[U] {
	if v, err, ok := r.Settled(); ok {
		if err != nil {
			return Fail[U](err)
		}
		return fn(v)
	}
	return Pending(func(ctx context.Context) (U, error) {
		v, err := r.Await(ctx)
		if err != nil {
			var zero U
			return zero, err
		}
		return fn(v).Await(ctx)
	})
}

// All joins rs. If none is pending the joined Result is Ready (or holds the
// first error in order). Otherwise the Results are awaited in order and the
// first error wins.
func All[T any](rs []Result[T]) Result[[]T] {
	values := make([]T, len(rs))
	anyPending := false
	for i, r := range rs {
		v, err, ok := r.Settled()
		if !ok {
			anyPending = true
			continue
		}
		if err != nil {
			return Fail[[]T](err)
		}
		values[i] = v
	}
	if !anyPending {
		return Ready(values)
	}

	return Pending(func(ctx context.Context) ([]T, error) {
		for i, r := range rs {
			v, err := r.Await(ctx)
			if err != nil {
				return nil, err
			}
			values[i] = v
		}
		return values, nil
	})
}

// MapError rewrites the error of r with fn. Values pass through and a
// settled r stays settled.
func MapError[T any](r Result[T], fn func(error) error) Result[T] {
	if v, err, ok := r.Settled(); ok {
		if err != nil {
			return Fail[T](fn(err))
		}
		return Ready(v)
	}
	return Pending(func(ctx context.Context) (T, error) {
		v, err := r.Await(ctx)
		if err != nil {
			var zero T
			return zero, fn(err)
		}
		return v, nil
	})
}
