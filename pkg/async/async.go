package async

import (
	"context"
	"fmt"
	"time"
)

// Future is the eventual result of a function started with Go.
type Future[U any] struct {
	result U
	err    error
	done   chan struct{}
}

// Go runs fn in its own goroutine and returns its Future.
// A pre-canceled ctx completes the Future with ctx.Err() without calling fn;
// a panic inside fn completes it with ErrPanicked.
func Go[U any](ctx context.Context, fn func(context.Context) (U, error)) *Future[U] {
	f := &Future[U]{done: make(chan struct{})}

	go func() {
		defer close(f.done)
		defer func() {
			if r := recover(); r != nil {
				var zero U
				f.result = zero
				f.err = fmt.Errorf("%w: %v", ErrPanicked, r)
			}
		}()

		if err := ctx.Err(); err != nil {
			f.err = err
			return
		}
		f.result, f.err = fn(ctx)
	}()

	return f
}

// Await blocks until the function returns.
func (f *Future[U]) Await() (U, error) {
	<-f.done
	return f.result, f.err
}

// AwaitContext blocks until the function returns or ctx is done.
// Giving up on the wait does not stop the function.
func (f *Future[U]) AwaitContext(ctx context.Context) (U, error) {
	select {
	case <-f.done:
		return f.result, f.err
	case <-ctx.Done():
		var zero U
		return zero, ctx.Err()
	}
}

// AwaitWithTimeout is AwaitContext with a relative deadline; it returns ErrTimeout.
func (f *Future[U]) AwaitWithTimeout(timeout time.Duration) (U, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-f.done:
		return f.result, f.err
	case <-timer.C:
		var zero U
		return zero, ErrTimeout
	}
}

// Done is closed when the function has returned.
func (f *Future[U]) Done() <-chan struct{} {
	return f.done
}

// IsComplete reports whether the function has returned, without blocking.
func (f *Future[U]) IsComplete() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// WaitAll waits for every future and returns their results in order.
// Unlike a fail-fast join it always waits for all of them; the returned error
// joins every failure.
func WaitAll[U any](futures ...*Future[U]) ([]U, error) {
	results := make([]U, len(futures))
	var errs []error

	for i, f := range futures {
		res, err := f.Await()
		results[i] = res
		if err != nil {
			errs = append(errs, err)
		}
	}

	return results, joinErrors(errs)
}
