package vfs

import (
	"context"
	"sync"

	"github.com/roach88/cardfs/internal/remote"
)

// EventType distinguishes between event kinds.
type EventType int

const (
	// EventTypeCommand is an operation submitted by a caller.
	EventTypeCommand EventType = iota + 1
	// EventTypeSnapshot is a document received from the remote channel.
	EventTypeSnapshot
)

// Event is one unit of work for the Run loop.
type Event struct {
	Type     EventType
	Command  *command
	Snapshot *snapshotEvent
}

// command runs on the loop goroutine. run delivers its own reply.
type command struct {
	op  string
	run func(ctx context.Context)
}

// snapshotEvent carries the subscription generation it was read under so
// snapshots from a closed subscription can be dropped.
type snapshotEvent struct {
	gen     uint64
	userKey string
	snap    remote.Snapshot
}

// eventQueue is a thread-safe FIFO queue for events.
//
// The queue is unbounded so callers and subscription readers never block on
// a slow loop. Arrival order is the order changes are applied: a remote
// snapshot and a local mutation racing each other resolve last-write-wins.
//
// The queue uses a channel for signaling to enable context-aware waiting
// in the Run loop.
type eventQueue struct {
	mu     sync.Mutex
	events []Event
	closed bool
	signal chan struct{} // Signals event availability (buffered, size 1)
}

// newEventQueue creates an empty event queue.
func newEventQueue() *eventQueue {
	return &eventQueue{
		events: make([]Event, 0, 64),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue adds an event to the back of the queue.
// Thread-safe: may be called from any goroutine.
// Returns false if the queue is closed.
func (q *eventQueue) Enqueue(e Event) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.events = append(q.events, e)

	// Non-blocking: the buffer of 1 coalesces multiple signals.
	select {
	case q.signal <- struct{}{}:
	default:
	}

	return true
}

// TryDequeue attempts to dequeue without blocking.
// Returns (Event{}, false) if queue is empty.
func (q *eventQueue) TryDequeue() (Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.events) == 0 {
		return Event{}, false
	}

	e := q.events[0]

	// Nil out the slot so the backing array does not pin the event's
	// closures and snapshot bytes.
	q.events[0] = Event{}

	if len(q.events) == 1 {
		q.events = q.events[:0]
	} else {
		q.events = q.events[1:]
	}

	return e, true
}

// Wait returns a channel that signals when events may be available.
// Use with select for context-aware waiting:
//
//	select {
//	case <-ctx.Done():
//	    return ctx.Err()
//	case <-q.Wait():
//	    // Try TryDequeue
//	}
func (q *eventQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the current queue length.
func (q *eventQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

// Close signals that no more events will be enqueued.
// Wakes any blocked waiters by closing the signal channel.
func (q *eventQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	q.closed = true
	close(q.signal)
}
