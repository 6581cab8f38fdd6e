package cache

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_PutGetCopies(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	in := []byte("abc")
	require.NoError(t, m.Put(ctx, "k", in))
	in[0] = 'x'

	out, ok, err := m.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "abc", string(out))

	out[0] = 'y'
	again, _, _ := m.Get(ctx, "k")
	assert.Equal(t, "abc", string(again))
	assert.Equal(t, 1, m.Writes())
}

func TestMemory_FailPuts(t *testing.T) {
	m := NewMemory()
	boom := errors.New("disk full")
	m.FailPuts(boom)

	assert.ErrorIs(t, m.Put(context.Background(), "k", []byte("v")), boom)
	assert.Equal(t, 0, m.Writes())

	m.FailPuts(nil)
	assert.NoError(t, m.Put(context.Background(), "k", []byte("v")))
}

func TestMemory_ListAndDelete(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	require.NoError(t, m.Put(ctx, "b", []byte("2")))
	require.NoError(t, m.Put(ctx, "a", []byte("1")))

	entries, err := m.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "a", entries[0].Key)

	require.NoError(t, m.Delete(ctx, "a"))
	_, ok, _ := m.Get(ctx, "a")
	assert.False(t, ok)
}
