package httputil

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"
)

// RetryableError marks a failure as transient. After, when positive, is the
// wait the server asked for with Retry-After.
type RetryableError struct {
	Err   error
	After time.Duration
}

func (e *RetryableError) Error() string { return e.Err.Error() }
func (e *RetryableError) Unwrap() error { return e.Err }

// Policy is a bounded exponential backoff for remote image fetches.
type Policy struct {
	// Attempts is the total number of tries; values below 1 mean 1.
	Attempts int
	// Delay is the wait before the second try. It doubles on every retry.
	Delay time.Duration
	// MaxDelay caps a single wait, including one asked for by the server.
	// Zero leaves waits uncapped.
	MaxDelay time.Duration
	// OnRetry is called before each wait with the number of the failed
	// attempt, starting at 1.
	OnRetry func(attempt int, wait time.Duration, err error)
}

// DefaultPolicy suits a flag icon that the card can do without.
var DefaultPolicy = Policy{Attempts: 3, Delay: 500 * time.Millisecond, MaxDelay: 5 * time.Second}

// Do runs fn until it succeeds, fails with an error that is not a
// [RetryableError], or runs out of attempts. It returns the last error, or
// ctx.Err() when cancelled during a wait.
func (p Policy) Do(ctx context.Context, fn func(attempt int) error) error {
	attempts := max(p.Attempts, 1)
	delay := p.Delay
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = fn(attempt); err == nil {
			return nil
		}
		var re *RetryableError
		if !errors.As(err, &re) || attempt == attempts {
			return err
		}

		wait := max(delay, re.After)
		if p.MaxDelay > 0 {
			wait = min(wait, p.MaxDelay)
		}
		if p.OnRetry != nil {
			p.OnRetry(attempt, wait, err)
		}
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
		delay *= 2
	}
	return err
}

// retryAfter reads a Retry-After header given in seconds. HTTP dates are
// ignored and yield zero.
func retryAfter(h http.Header) time.Duration {
	secs, err := strconv.Atoi(h.Get("Retry-After"))
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
