// Package retry provides in-call retry with exponential backoff and the
// persistent failed-task queue the recovery manager drains.
package retry

import (
	"context"
	"time"
)

// Policy retries a single blocking operation with exponential backoff.
// Backoff waits are cancellable through the context; a cancelled wait
// returns ctx.Err() without further attempts.
type Policy struct {
	// MaxAttempts is the total number of attempts including the first.
	MaxAttempts int
	// InitialDelay is the wait before the first retry.
	InitialDelay time.Duration
	// BackoffMultiplier scales the delay after each failure.
	BackoffMultiplier float64
	// Retryable reports whether an error is worth retrying. Nil retries
	// every error.
	Retryable func(error) bool
	// OnExhausted runs after the final attempt fails, before the error is
	// returned. Callers push to the failed-task queue from here.
	OnExhausted func(name string, err error)
}

// DefaultPolicy mirrors the defaults jobs use in-line: 3 attempts,
// 1s initial delay, doubling.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:       3,
		InitialDelay:      time.Second,
		BackoffMultiplier: 2.0,
	}
}

// Do runs op until it succeeds, exhausts MaxAttempts, fails a
// non-retryable error, or the context is cancelled during a backoff wait.
// name identifies the operation to the OnExhausted callback.
func (p Policy) Do(ctx context.Context, name string, op func() error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	delay := p.InitialDelay

	var last error
	for attempt := 1; attempt <= attempts; attempt++ {
		last = op()
		if last == nil {
			return nil
		}
		if p.Retryable != nil && !p.Retryable(last) {
			return last
		}
		if attempt == attempts {
			break
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		if p.BackoffMultiplier > 0 {
			delay = time.Duration(float64(delay) * p.BackoffMultiplier)
		}
	}

	if p.OnExhausted != nil {
		p.OnExhausted(name, last)
	}
	return last
}
