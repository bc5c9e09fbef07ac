package core

import "context"

// Future is a result that settles once, with a value or an error.
type Future struct {
	done  chan struct{}
	value any
	err   error
}

// Go runs fn on its own goroutine and settles the future with its results.
func Go(fn func() (any, error)) *Future {
	future := &Future{done: make(chan struct{})}

	go func() {
		defer close(future.done)

		future.value, future.err = fn()
	}()

	return future
}

// Rejected returns a future already settled with err.
func Rejected(err error) *Future {
	future := &Future{done: make(chan struct{}), err: err}
	close(future.done)

	return future
}

// Resolved returns a future already settled with value.
func Resolved(value any) *Future {
	future := &Future{done: make(chan struct{}), value: value}
	close(future.done)

	return future
}

// Await blocks until the future settles or ctx is done.
func (f *Future) Await(ctx context.Context) (any, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Done is closed once the future has settled.
func (f *Future) Done() <-chan struct{} {
	return f.done
}
