package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fooddiscovery/backend/internal/domain"
)

// defaultConnectorTimeout applies when a registration carries no timeout
const defaultConnectorTimeout = 5 * time.Second

// exponentialBackoff returns the wait before the given retry attempt (1-based):
// 500ms, 1s, 2s, ...
func exponentialBackoff(attempt int) time.Duration {
	if attempt < 1 {
		return 0
	}
	return time.Duration(500*(1<<(attempt-1))) * time.Millisecond
}

// callWithTimeout runs fn under its own deadline. The deadline is enforced
// even if fn ignores its context, and a panic inside fn is converted into a
// ProviderError so one connector can never take the request down.
func callWithTimeout[T any](ctx context.Context, name string, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	if timeout <= 0 {
		timeout = defaultConnectorTimeout
	}

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		value T
		err   error
	}
	done := make(chan result, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				pe := domain.NewProviderError(name, 0, fmt.Errorf("connector panicked: %v", r))
				pe.Retryable = false
				done <- result{err: pe}
			}
		}()
		v, err := fn(callCtx)
		done <- result{value: v, err: err}
	}()

	var zero T
	select {
	case r := <-done:
		if r.err != nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return zero, fmt.Errorf("%w: %s after %s", domain.ErrProviderTimeout, name, timeout)
		}
		return r.value, r.err
	case <-callCtx.Done():
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return zero, fmt.Errorf("%w: %s after %s", domain.ErrProviderTimeout, name, timeout)
		}
		return zero, callCtx.Err()
	}
}

// withRetry calls fn up to 1+retries times, backing off between attempts.
// Only retryable provider errors are retried; timeouts and validation
// problems are returned immediately.
func withRetry[T any](ctx context.Context, retries int, backoff func(int) time.Duration, fn func() (T, error)) (T, error) {
	var (
		value T
		err   error
	)

	for attempt := 0; attempt <= retries; attempt++ {
		if attempt > 0 {
			timer := time.NewTimer(backoff(attempt))
			select {
			case <-ctx.Done():
				timer.Stop()
				return value, ctx.Err()
			case <-timer.C:
			}
		}

		value, err = fn()
		if err == nil || !domain.IsRetryable(err) {
			return value, err
		}
	}

	return value, err
}

// classifyError maps a connector error to the diagnostic taxonomy
func classifyError(err error) domain.ErrorKind {
	switch {
	case errors.Is(err, domain.ErrProviderTimeout), errors.Is(err, context.DeadlineExceeded):
		return domain.KindProviderTimeout
	case errors.Is(err, domain.ErrValidation):
		return domain.KindValidationError
	default:
		return domain.KindProviderError
	}
}
