package vfs

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cardfs/internal/remote"
	"github.com/roach88/cardfs/internal/testutil"
)

// gatedRemote blocks every write until release is closed.
type gatedRemote struct {
	release chan struct{}

	mu     sync.Mutex
	writes int
}

func (g *gatedRemote) Subscribe(ctx context.Context, _ string) (<-chan remote.Snapshot, error) {
	ch := make(chan remote.Snapshot)
	go func() {
		<-ctx.Done()
		close(ch)
	}()
	return ch, nil
}

func (g *gatedRemote) Replace(ctx context.Context, _ string, _ []byte) error {
	return g.write(ctx)
}

func (g *gatedRemote) Create(ctx context.Context, _ string, _ []byte) error {
	return g.write(ctx)
}

func (g *gatedRemote) write(ctx context.Context) error {
	select {
	case <-g.release:
	case <-ctx.Done():
		return ctx.Err()
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.writes++
	return nil
}

func (g *gatedRemote) count() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.writes
}

func TestPusher_FlushWaitsForInFlightPush(t *testing.T) {
	gate := &gatedRemote{release: make(chan struct{})}
	p := newPusher(gate, testutil.Logger(t))
	p.start()
	defer p.stop(time.Second)

	require.NoError(t, p.flush(context.Background()), "idle pusher flushes at once")

	p.submit(pushJob{userKey: "u1", data: []byte(`{}`)})

	short, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, p.flush(short), context.DeadlineExceeded)

	flushed := make(chan error, 1)
	go func() { flushed <- p.flush(context.Background()) }()

	select {
	case <-flushed:
		t.Fatal("flush returned while a push was blocked")
	case <-time.After(20 * time.Millisecond):
	}

	close(gate.release)
	select {
	case err := <-flushed:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("flush did not return after the push finished")
	}
	assert.Equal(t, 1, gate.count())
}

func TestPusher_FlushReturnsOnStop(t *testing.T) {
	gate := &gatedRemote{release: make(chan struct{})}
	p := newPusher(gate, testutil.Logger(t))
	p.start()

	p.submit(pushJob{userKey: "u1", data: []byte(`{}`)})
	flushed := make(chan error, 1)
	go func() { flushed <- p.flush(context.Background()) }()

	p.stop(10 * time.Millisecond)
	select {
	case err := <-flushed:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("flush did not return after stop")
	}
	assert.Zero(t, gate.count())
}
