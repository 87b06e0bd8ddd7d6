// Package retry provides the bounded-backoff helper the request gateway uses
// for transient store failures. Mutating ledger and attendance operations are
// never retried below the gateway; only operations the caller knows to be
// safe go through Do.
package retry

import (
	"context"
	"time"
)

// Policy bounds the retry loop.
type Policy struct {
	Attempts int
	BaseWait time.Duration
}

// DefaultPolicy retries twice after the initial attempt.
var DefaultPolicy = Policy{Attempts: 3, BaseWait: 100 * time.Millisecond}

// Do runs fn until it succeeds, the retryable predicate rejects the error, or
// attempts are exhausted. Wait doubles per attempt starting from BaseWait.
func Do(ctx context.Context, p Policy, retryable func(error) bool, fn func() error) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}
	wait := p.BaseWait
	if wait <= 0 {
		wait = 100 * time.Millisecond
	}

	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(); err == nil {
			return nil
		}
		if retryable != nil && !retryable(err) {
			return err
		}
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		wait *= 2
	}
	return err
}
