package remote

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"
)

// Backoff holds exponential retry configuration.
type Backoff struct {
	MaxAttempts int           // 0 = infinite
	InitialWait time.Duration // wait before the second attempt
	MaxWait     time.Duration // upper bound for any single wait
	Multiplier  float64       // growth per attempt
	Jitter      float64       // fraction of the wait randomized (0-1)
}

// DefaultBackoff is used for resubscribing after a dropped subscription.
func DefaultBackoff() Backoff {
	return Backoff{
		InitialWait: 500 * time.Millisecond,
		MaxWait:     30 * time.Second,
		Multiplier:  2.0,
		Jitter:      0.1,
	}
}

// Wait returns the delay before attempt (1-based) is retried.
func (b Backoff) Wait(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	mult := b.Multiplier
	if mult < 1 {
		mult = 1
	}
	wait := float64(b.InitialWait) * math.Pow(mult, float64(attempt-1))
	if b.MaxWait > 0 && wait > float64(b.MaxWait) {
		wait = float64(b.MaxWait)
	}
	if b.Jitter > 0 {
		wait += wait * b.Jitter * (rand.Float64()*2 - 1)
	}
	return time.Duration(wait)
}

// Sleep waits for the attempt's backoff or until ctx ends.
func (b Backoff) Sleep(ctx context.Context, attempt int) error {
	timer := time.NewTimer(b.Wait(attempt))
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// PermanentError marks an error that must not be retried.
type PermanentError struct {
	Err error
}

func (e PermanentError) Error() string { return e.Err.Error() }
func (e PermanentError) Unwrap() error { return e.Err }

// Permanent wraps err so Retry gives up immediately.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return PermanentError{Err: err}
}

// Retry calls fn until it succeeds, returns a permanent error, runs out of
// attempts, or ctx ends.
func Retry(ctx context.Context, b Backoff, fn func() error) error {
	var lastErr error
	for attempt := 1; b.MaxAttempts == 0 || attempt <= b.MaxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		var perm PermanentError
		if errors.As(err, &perm) {
			return perm.Err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if b.MaxAttempts != 0 && attempt == b.MaxAttempts {
			break
		}
		if err := b.Sleep(ctx, attempt); err != nil {
			return err
		}
	}
	return lastErr
}
