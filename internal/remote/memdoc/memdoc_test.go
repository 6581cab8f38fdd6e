package memdoc

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cardfs/internal/remote"
)

func recv(t *testing.T, ch <-chan remote.Snapshot) remote.Snapshot {
	t.Helper()
	select {
	case snap, ok := <-ch:
		require.True(t, ok, "subscription closed")
		return snap
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for snapshot")
		return remote.Snapshot{}
	}
}

func TestService_SubscribeDeliversInitialSnapshot(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := s.Subscribe(ctx, "u1")
	require.NoError(t, err)

	snap := recv(t, ch)
	assert.False(t, snap.Exists)

	s.Put("u1", []byte(`{"a":1}`))
	snap = recv(t, ch)
	assert.True(t, snap.Exists)
	assert.JSONEq(t, `{"a":1}`, string(snap.FileSystem))
}

func TestService_ReplaceMissingIsNotFound(t *testing.T) {
	s := New()
	err := s.Replace(context.Background(), "u1", []byte(`{}`))
	assert.ErrorIs(t, err, remote.ErrNotFound)
	assert.Empty(t, s.Writes())
}

func TestService_CreateThenReplace(t *testing.T) {
	s := New()
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, "u1", []byte(`{"v":1}`)))
	require.NoError(t, s.Replace(ctx, "u1", []byte(`{"v":2}`)))

	doc, ok := s.Document("u1")
	require.True(t, ok)
	assert.JSONEq(t, `{"v":2}`, string(doc))

	writes := s.Writes()
	require.Len(t, writes, 2)
	assert.Equal(t, "create", writes[0].Op)
	assert.Equal(t, "replace", writes[1].Op)
}

func TestService_LatestWins(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := s.Subscribe(ctx, "u1")
	require.NoError(t, err)

	// Nobody reads while three documents are written.
	s.Put("u1", []byte(`{"v":1}`))
	s.Put("u1", []byte(`{"v":2}`))
	s.Put("u1", []byte(`{"v":3}`))

	snap := recv(t, ch)
	assert.JSONEq(t, `{"v":3}`, string(snap.FileSystem))
}

func TestService_SubscriptionsAreKeyed(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := s.Subscribe(ctx, "alice")
	require.NoError(t, err)
	recv(t, a)

	s.Put("bob", []byte(`{}`))

	select {
	case snap := <-a:
		t.Fatalf("alice received bob's snapshot: %+v", snap)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestService_CancelClosesChannel(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())

	ch, err := s.Subscribe(ctx, "u1")
	require.NoError(t, err)
	recv(t, ch)
	cancel()

	require.Eventually(t, func() bool {
		select {
		case _, ok := <-ch:
			return !ok
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, s.Subscribers("u1"))
}

func TestService_DropClosesChannel(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := s.Subscribe(ctx, "u1")
	require.NoError(t, err)
	recv(t, ch)

	s.Drop("u1")
	_, ok := <-ch
	assert.False(t, ok)

	// The cancel goroutine must not close it again.
	cancel()
	time.Sleep(10 * time.Millisecond)
}

func TestService_FailWrites(t *testing.T) {
	s := New()
	boom := errors.New("unavailable")
	s.FailWrites(1, boom)

	assert.ErrorIs(t, s.Create(context.Background(), "u1", []byte(`{}`)), boom)
	assert.NoError(t, s.Create(context.Background(), "u1", []byte(`{}`)))
}

func TestService_FailSubscribe(t *testing.T) {
	s := New()
	boom := errors.New("refused")
	s.FailSubscribe(boom)

	_, err := s.Subscribe(context.Background(), "u1")
	assert.ErrorIs(t, err, boom)
}

func TestService_RemoveNotifies(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s.Put("u1", []byte(`{}`))
	ch, err := s.Subscribe(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, recv(t, ch).Exists)

	s.Remove("u1")
	assert.False(t, recv(t, ch).Exists)
}
