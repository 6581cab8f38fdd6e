package vfs

import (
	"sync/atomic"
	"time"
)

// Clock is a monotonic logical clock. Every published View is stamped with
// the next value so consumers can order snapshots without wall time.
//
// Thread-safety: Clock is safe for concurrent use (atomic operations).
// In practice only the Run loop calls Next.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// Next returns the next sequence number and increments the clock.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the current sequence number without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}

// WallClock supplies createdAt/modifiedAt timestamps.
type WallClock interface {
	Now() time.Time
}

// SystemClock reads the real time.
type SystemClock struct{}

// Now returns time.Now.
func (SystemClock) Now() time.Time { return time.Now() }
