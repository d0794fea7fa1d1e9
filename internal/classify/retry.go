package classify

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// ErrTransient marks completer failures worth retrying: transport errors,
// rate limiting, and server-side failures.
var ErrTransient = errors.New("transient classifier failure")

// IsTransient reports whether err is marked retryable.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}

// RetryPolicy is the single retry schedule applied to every classifier call.
type RetryPolicy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	// Retryable decides whether an attempt error may be retried. Nil means
	// errors.Is(err, ErrTransient).
	Retryable func(error) bool
}

// DefaultRetryPolicy is three attempts starting at 500ms, capped at 5s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, InitialInterval: 500 * time.Millisecond, MaxInterval: 5 * time.Second}
}

func (p RetryPolicy) retryable(err error) bool {
	if p.Retryable != nil {
		return p.Retryable(err)
	}
	return IsTransient(err)
}

func (p RetryPolicy) backOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialInterval
	if p.MaxInterval > 0 {
		b.MaxInterval = p.MaxInterval
	}
	b.MaxElapsedTime = 0
	b.Reset()

	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(attempts-1)), ctx)
}

// Do runs op until it succeeds, returns a non-retryable error, the attempts
// are exhausted, or ctx is done. onRetry, if set, is called before each wait.
func (p RetryPolicy) Do(ctx context.Context, op func(context.Context) error, onRetry func(error, time.Duration)) error {
	attempt := func() error {
		err := op(ctx)
		if err != nil && !p.retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	return backoff.RetryNotify(attempt, p.backOff(ctx), onRetry)
}
