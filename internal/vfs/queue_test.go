package vfs

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func commandEvent(op string) Event {
	return Event{Type: EventTypeCommand, Command: &command{op: op}}
}

func TestEventQueue_FIFO(t *testing.T) {
	q := newEventQueue()

	for _, op := range []string{"create", "rename", "delete"} {
		require.True(t, q.Enqueue(commandEvent(op)))
	}

	for _, want := range []string{"create", "rename", "delete"} {
		got, ok := q.TryDequeue()
		require.True(t, ok)
		assert.Equal(t, want, got.Command.op)
	}

	_, ok := q.TryDequeue()
	assert.False(t, ok, "dequeue from empty queue should return false")
}

func TestEventQueue_WaitSignals(t *testing.T) {
	q := newEventQueue()

	q.Enqueue(commandEvent("a"))
	q.Enqueue(commandEvent("b"))

	// Two enqueues coalesce into one signal.
	select {
	case <-q.Wait():
	case <-time.After(100 * time.Millisecond):
		t.Fatal("no signal after enqueue")
	}
	select {
	case <-q.Wait():
		t.Fatal("signal should coalesce")
	default:
	}
	assert.Equal(t, 2, q.Len())
}

func TestEventQueue_CloseWakesWaiter(t *testing.T) {
	q := newEventQueue()

	done := make(chan struct{})
	go func() {
		<-q.Wait()
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	q.Close()

	select {
	case <-done:
	case <-time.After(100 * time.Millisecond):
		t.Fatal("close did not wake the waiter")
	}

	assert.False(t, q.Enqueue(commandEvent("late")), "enqueue after close should return false")
	q.Close() // idempotent
}

func TestEventQueue_DrainsAfterClose(t *testing.T) {
	q := newEventQueue()
	q.Enqueue(commandEvent("pending"))
	q.Close()

	got, ok := q.TryDequeue()
	require.True(t, ok)
	assert.Equal(t, "pending", got.Command.op)
}

func TestEventQueue_ThreadSafe(t *testing.T) {
	q := newEventQueue()

	const producers = 10
	const eventsPerProducer = 100

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < eventsPerProducer; i++ {
				q.Enqueue(Event{Type: EventTypeSnapshot, Snapshot: &snapshotEvent{gen: uint64(i)}})
			}
		}()
	}
	wg.Wait()

	received := 0
	for {
		if _, ok := q.TryDequeue(); !ok {
			break
		}
		received++
	}
	assert.Equal(t, producers*eventsPerProducer, received)
	assert.Equal(t, 0, q.Len())
}
