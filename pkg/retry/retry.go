// Package retry wraps cenkalti/backoff for start-up dependency checks.
// Message handling never retries: a failed insert is dropped.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

type fatalError struct {
	err error
}

func (e *fatalError) Error() string {
	return e.err.Error()
}

func (e *fatalError) Unwrap() error {
	return e.err
}

// Fatal marks err as not worth retrying.
func Fatal(err error) error {
	if err == nil {
		return nil
	}
	return &fatalError{err: err}
}

func IsFatal(err error) bool {
	var f *fatalError
	return errors.As(err, &f)
}

type Policy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
}

// StartupPolicy is used while waiting for Postgres, Redis and the bus.
func StartupPolicy() Policy {
	return Policy{
		MaxAttempts:     10,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     10 * time.Second,
		Multiplier:      2.0,
	}
}

func (p Policy) backOff(ctx context.Context) backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = p.InitialInterval
	exp.MaxInterval = p.MaxInterval
	exp.Multiplier = p.Multiplier
	exp.MaxElapsedTime = 0

	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 3
	}

	return backoff.WithContext(backoff.WithMaxRetries(exp, uint64(attempts-1)), ctx)
}

// Do runs fn until it succeeds, returns a Fatal error, the attempts are
// exhausted or ctx is done. onRetry may be nil.
func Do(ctx context.Context, policy Policy, fn func() error, onRetry func(attempt int, err error, next time.Duration)) error {
	attempt := 0
	operation := func() error {
		attempt++
		err := fn()
		if err != nil && IsFatal(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	notify := func(err error, next time.Duration) {
		if onRetry != nil {
			onRetry(attempt, err, next)
		}
	}

	return backoff.RetryNotify(operation, policy.backOff(ctx), notify)
}
