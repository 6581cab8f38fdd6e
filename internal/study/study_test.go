package study

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cardfs/internal/cards"
)

func deck(t *testing.T) []cards.Card {
	t.Helper()
	cs, err := cards.Parse("uno, one\ndos, two\ntres, three\ncuatro, four", cards.DefaultSeparators())
	require.NoError(t, err)
	return cs
}

func current(t *testing.T, s *Session) string {
	t.Helper()
	c, ok := s.Current()
	require.True(t, ok)
	return c.Term
}

func TestSession_Navigation(t *testing.T) {
	s := New(deck(t))
	assert.Equal(t, "uno", current(t, s))

	s.Prev()
	assert.Equal(t, "uno", current(t, s))

	s.Flip()
	assert.True(t, s.Flipped())
	s.Next()
	assert.False(t, s.Flipped(), "moving resets the flip")
	assert.Equal(t, "dos", current(t, s))

	s.Flip()
	s.Prev()
	assert.False(t, s.Flipped())
	assert.Equal(t, "uno", current(t, s))

	for range 4 {
		s.Next()
	}
	assert.True(t, s.Complete())
	_, ok := s.Current()
	assert.False(t, ok)

	// Navigation is inert once complete.
	s.Prev()
	s.Flip()
	assert.True(t, s.Complete())
	assert.False(t, s.Flipped())
}

func TestSession_Triage(t *testing.T) {
	s := New(deck(t))

	s.MarkUnknown() // uno
	s.MarkKnown()   // dos
	s.MarkUnknown() // tres
	s.MarkUnknown() // cuatro
	assert.True(t, s.Complete())
	assert.Equal(t, []string{"card-0", "card-2", "card-3"}, s.Unknown())

	require.True(t, s.ReviewUnknown())
	assert.True(t, s.Reviewing())
	assert.False(t, s.Complete())
	_, size := s.Position()
	assert.Equal(t, 3, size)
	assert.Equal(t, "uno", current(t, s))

	// Known in review leaves the pile.
	s.MarkKnown()
	assert.Equal(t, "tres", current(t, s))
	s.MarkKnown()
	s.MarkUnknown()
	assert.True(t, s.Complete())
	assert.Equal(t, []string{"card-3"}, s.Unknown())

	require.True(t, s.ReviewUnknown())
	_, size = s.Position()
	assert.Equal(t, 1, size)
	assert.Equal(t, "cuatro", current(t, s))
}

func TestSession_ReviewUnknownWithNone(t *testing.T) {
	s := New(deck(t))
	for range 4 {
		s.MarkKnown()
	}
	require.True(t, s.Complete())

	assert.False(t, s.ReviewUnknown())
	assert.True(t, s.Complete())
	assert.False(t, s.Reviewing())
}

func TestSession_RestartAll(t *testing.T) {
	s := New(deck(t))
	s.MarkUnknown()
	s.MarkUnknown()
	require.True(t, s.ReviewUnknown())

	s.RestartAll()
	assert.Empty(t, s.Unknown())
	assert.False(t, s.Reviewing())
	index, size := s.Position()
	assert.Equal(t, 0, index)
	assert.Equal(t, 4, size)
}

func TestSession_Empty(t *testing.T) {
	s := New(nil)
	assert.True(t, s.Complete())
	s.MarkKnown()
	s.Next()
	_, ok := s.Current()
	assert.False(t, ok)
}
