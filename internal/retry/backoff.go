// Package retry paces reconnect attempts: exponential backoff between
// tries and a circuit breaker that stops hammering a server which keeps
// refusing us.
package retry

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	ircerr "ircsess/internal/errors"
)

// ── Error markers ────────────────────────────────────────────────────

// PermanentError wraps an error to signal that retrying will not help,
// e.g. a rejected server password.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent marks err as non-retryable.  Do returns the inner error
// immediately without further attempts.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// IsPermanent reports whether err has been marked as permanent.
func IsPermanent(err error) bool {
	var pe *PermanentError
	return ircerr.As(err, &pe)
}

// ProgressError wraps the failure of an attempt that got somewhere
// first, such as a connection that registered and later dropped.
type ProgressError struct {
	Err error
}

func (e *ProgressError) Error() string { return e.Err.Error() }
func (e *ProgressError) Unwrap() error { return e.Err }

// Progressed marks err as following progress. Do starts the delay and
// the attempt budget over after it.
func Progressed(err error) error {
	if err == nil {
		return nil
	}
	return &ProgressError{Err: err}
}

// ── Backoff ──────────────────────────────────────────────────────────

// Backoff implements exponential backoff with optional jitter.
type Backoff struct {
	// InitialDelay is the delay before the first retry (default 1s).
	InitialDelay time.Duration
	// MaxDelay caps the backoff duration (default 60s).
	MaxDelay time.Duration
	// Multiplier increases the delay each attempt (default 2.0).
	Multiplier float64
	// MaxAttempts is the number of consecutive failed tries allowed,
	// including the first. 0 retries until the context is cancelled.
	MaxAttempts int
	// Jitter adds ±25% randomisation so clients dropped together by a
	// netsplit do not reconnect in lockstep.
	Jitter bool

	// OnRetry, if set, is told about each failure before the wait.
	OnRetry func(attempt int, wait time.Duration, err error)
}

// DefaultBackoff returns the reconnect defaults.
func DefaultBackoff() *Backoff {
	return &Backoff{
		InitialDelay: 1 * time.Second,
		MaxDelay:     60 * time.Second,
		Multiplier:   2.0,
		MaxAttempts:  10,
		Jitter:       true,
	}
}

// Delay returns the wait after the given 1-based failed attempt,
// before jitter.
func (b *Backoff) Delay(attempt int) time.Duration {
	initial := b.InitialDelay
	if initial == 0 {
		initial = time.Second
	}
	multiplier := b.Multiplier
	if multiplier <= 0 {
		multiplier = 2.0
	}
	maxDelay := b.MaxDelay
	if maxDelay == 0 {
		maxDelay = 60 * time.Second
	}
	if attempt < 1 {
		attempt = 1
	}
	d := float64(initial) * math.Pow(multiplier, float64(attempt-1))
	if d > float64(maxDelay) {
		return maxDelay
	}
	return time.Duration(d)
}

// Do executes fn repeatedly until it succeeds, returns a permanent
// error, or the retry budget (attempts / context) is exhausted.
//
// The attempt parameter passed to fn is 1-based and counts failures
// since the last success or [Progressed] error.
func (b *Backoff) Do(ctx context.Context, fn func(attempt int) error) error {
	for attempt := 1; ; attempt++ {
		err := fn(attempt)
		if err == nil {
			return nil
		}

		if IsPermanent(err) {
			var pe *PermanentError
			ircerr.As(err, &pe)
			return pe.Err
		}

		var progress *ProgressError
		if ircerr.As(err, &progress) {
			attempt = 1
		}

		if b.MaxAttempts > 0 && attempt >= b.MaxAttempts {
			return fmt.Errorf("max retries (%d) exceeded: %w", b.MaxAttempts, err)
		}

		wait := b.Delay(attempt)
		if b.Jitter {
			wait = addJitter(wait)
		}
		if b.OnRetry != nil {
			b.OnRetry(attempt, wait, err)
		}

		if err := Sleep(ctx, wait); err != nil {
			return fmt.Errorf("retry cancelled: %w", err)
		}

		if progress != nil {
			attempt = 0
		}
	}
}

// Sleep waits for d or until ctx is done, returning ctx.Err() in the
// latter case.
func Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// addJitter adds ±25% randomisation to a duration.
func addJitter(d time.Duration) time.Duration {
	quarter := float64(d) * 0.25
	delta := (rand.Float64() * 2 * quarter) - quarter
	result := float64(d) + delta
	return time.Duration(math.Max(result, float64(time.Millisecond)))
}
