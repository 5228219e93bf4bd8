package source

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"
)

// retrySleepFunc is the function used for retry backoff delays.
// It defaults to time.Sleep but can be overridden in tests.
var retrySleepFunc = time.Sleep

// statusError is an unexpected HTTP status from a provider.
type statusError struct {
	Code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("HTTP %d", e.Code)
}

// withRetry calls fn up to attempts times with exponential backoff (1s, 2s, 4s, ...)
// while the returned error is retryable.
func withRetry[T any](ctx context.Context, attempts int, fn func() (T, error)) (T, error) {
	if attempts < 1 {
		attempts = 1
	}
	var (
		zero    T
		lastErr error
	)
	for attempt := range attempts {
		v, err := fn()
		if err == nil {
			return v, nil
		}
		if !isRetryableError(err) {
			return zero, err
		}
		lastErr = err
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		if attempt < attempts-1 {
			backoff := time.Duration(1<<uint(attempt)) * time.Second
			retrySleepFunc(backoff)
		}
	}
	return zero, lastErr
}

func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var se *statusError
	if errors.As(err, &se) {
		return se.Code == http.StatusTooManyRequests || se.Code >= 500
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return true
	}
	var oe *net.OpError
	return errors.As(err, &oe)
}
