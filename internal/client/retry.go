package client

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ProtocolError reports a response that was received and rejected.
// Retrying cannot change the outcome, so Retry returns it immediately.
type ProtocolError struct {
	// Status is the remote's status code, zero when it has none
	Status int

	// Message is the remote's explanation
	Message string
}

func (e *ProtocolError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("remote rejected request (%d): %s", e.Status, e.Message)
	}
	return "remote rejected request: " + e.Message
}

// IsProtocolError reports whether err is, or wraps, a *ProtocolError.
func IsProtocolError(err error) bool {
	var pe *ProtocolError
	return errors.As(err, &pe)
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep waits on a timer and returns early with ctx.Err() on cancellation.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RetryPolicy controls Retry.
type RetryPolicy struct {
	// MaxRetries is the total number of attempts. Values below 1 mean 1.
	MaxRetries int

	// BaseDelay is the wait before the second attempt. Each further wait doubles.
	BaseDelay time.Duration

	// Sleep waits between attempts. Nil uses Sleep.
	Sleep SleepFunc
}

// DefaultRetryPolicy returns the policy used when none is configured.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: 3, BaseDelay: time.Second, Sleep: Sleep}
}

// Delay returns the wait after failed attempt n (0-based).
func (p RetryPolicy) Delay(n int) time.Duration {
	return p.BaseDelay << uint(n)
}

// Retry runs op until it succeeds, fails with a *ProtocolError, or has been
// attempted MaxRetries times. Any other error counts as a transport failure
// and is retried after BaseDelay * 2^n. The last error is returned.
func Retry[T any](ctx context.Context, p RetryPolicy, op func(ctx context.Context) (T, error)) (T, error) {
	attempts := p.MaxRetries
	if attempts < 1 {
		attempts = 1
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = Sleep
	}

	var zero T
	var err error
	for n := 0; n < attempts; n++ {
		var v T
		v, err = op(ctx)
		if err == nil {
			return v, nil
		}
		if IsProtocolError(err) || n == attempts-1 {
			break
		}
		if serr := sleep(ctx, p.Delay(n)); serr != nil {
			return zero, fmt.Errorf("retry aborted after %d attempts: %w", n+1, serr)
		}
	}
	return zero, err
}
