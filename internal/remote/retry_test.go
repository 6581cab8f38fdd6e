package remote

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func fastBackoff(attempts int) Backoff {
	return Backoff{MaxAttempts: attempts, InitialWait: time.Millisecond, MaxWait: 5 * time.Millisecond, Multiplier: 2}
}

func TestBackoff_WaitGrowsAndCaps(t *testing.T) {
	b := Backoff{InitialWait: 100 * time.Millisecond, MaxWait: time.Second, Multiplier: 2}

	assert.Equal(t, 100*time.Millisecond, b.Wait(1))
	assert.Equal(t, 200*time.Millisecond, b.Wait(2))
	assert.Equal(t, 400*time.Millisecond, b.Wait(3))
	assert.Equal(t, time.Second, b.Wait(10))
}

func TestBackoff_JitterBounded(t *testing.T) {
	b := Backoff{InitialWait: 100 * time.Millisecond, MaxWait: time.Second, Multiplier: 2, Jitter: 0.1}
	for i := 0; i < 50; i++ {
		w := b.Wait(1)
		assert.GreaterOrEqual(t, w, 90*time.Millisecond)
		assert.LessOrEqual(t, w, 110*time.Millisecond)
	}
}

func TestRetry_SucceedsAfterFailures(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastBackoff(5), func() error {
		calls++
		if calls < 3 {
			return errors.New("flaky")
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetry_GivesUpAfterMaxAttempts(t *testing.T) {
	calls := 0
	boom := errors.New("down")
	err := Retry(context.Background(), fastBackoff(3), func() error {
		calls++
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 3, calls)
}

func TestRetry_PermanentStopsImmediately(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastBackoff(5), func() error {
		calls++
		return Permanent(ErrNotFound)
	})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 1, calls)
}

func TestRetry_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Retry(ctx, Backoff{InitialWait: time.Hour}, func() error {
		return errors.New("never")
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDocumentPath(t *testing.T) {
	assert.Equal(t, "users/abc", DocumentPath("abc"))
}
