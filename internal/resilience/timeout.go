package resilience

import (
	"context"
	"time"

	apperrors "github.com/lingolens/platform/internal/errors"
)

// Timeout bounds fn, which may ignore its context (cgo engines do). If the
// deadline passes first, Timeout returns a TIMEOUT AppError while fn keeps
// running in the background and its result is dropped.
func Timeout[T any](ctx context.Context, d time.Duration, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	if d <= 0 {
		return fn(ctx)
	}

	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	type result struct {
		v   T
		err error
	}
	done := make(chan result, 1)
	go func() {
		v, err := fn(ctx)
		done <- result{v, err}
	}()

	select {
	case r := <-done:
		return r.v, r.err
	case <-ctx.Done():
		if ctx.Err() == context.DeadlineExceeded {
			return zero, apperrors.Wrapf(ctx.Err(), apperrors.Timeout, "call exceeded %s", d)
		}
		return zero, apperrors.Wrap(ctx.Err(), apperrors.Cancelled, "call cancelled")
	}
}
