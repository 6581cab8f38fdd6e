package cards

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	text := "hola, hello\n\n  adiós ,goodbye  \nuno, one, single\nlonely\n"

	cards, err := Parse(text, DefaultSeparators())
	require.NoError(t, err)

	assert.Equal(t, []Card{
		{ID: "card-0", Index: 0, Term: "hola", Definition: "hello"},
		{ID: "card-2", Index: 2, Term: "adiós", Definition: "goodbye"},
		{ID: "card-3", Index: 3, Term: "uno", Definition: "one, single"},
		{ID: "card-4", Index: 4, Term: "lonely", Definition: ""},
	}, cards)
}

func TestParse_CustomSeparators(t *testing.T) {
	cards, err := Parse("a=1;b=2;;c=3", Separators{Card: ";", Term: "="})
	require.NoError(t, err)
	require.Len(t, cards, 3)
	assert.Equal(t, "c", cards[2].Term)
	assert.Equal(t, "3", cards[2].Definition)
	assert.Equal(t, "card-3", cards[2].ID)
}

func TestParse_Empty(t *testing.T) {
	cards, err := Parse("  \n\n", DefaultSeparators())
	require.NoError(t, err)
	assert.Empty(t, cards)
}

func TestSeparators_Validate(t *testing.T) {
	assert.NoError(t, DefaultSeparators().Validate())
	assert.Error(t, Separators{Card: "", Term: ","}.Validate())
	assert.Error(t, Separators{Card: "\n", Term: ""}.Validate())
	assert.Error(t, Separators{Card: ",", Term: ","}.Validate())

	_, err := Parse("x", Separators{})
	assert.Error(t, err)
}

func TestFormat(t *testing.T) {
	cards := []Card{
		{Term: "hola", Definition: "hello"},
		{Term: "uno", Definition: "one, single"},
	}
	text, err := Format(cards, DefaultSeparators())
	require.NoError(t, err)
	assert.Equal(t, "hola, hello\nuno, one, single", text)

	// Parsing the formatted text returns the same pairs.
	back, err := Parse(text, DefaultSeparators())
	require.NoError(t, err)
	require.Len(t, back, 2)
	assert.Equal(t, "one, single", back[1].Definition)
}

func TestEntries(t *testing.T) {
	assert.Equal(t, []string{"a, 1", " b, 2"}, Entries("a, 1\n\n b, 2\n", "\n"))
	assert.Empty(t, Entries("", "\n"))
}

func TestChunk(t *testing.T) {
	entries := []string{"a", "b", "c", "d", "e"}

	assert.Equal(t, [][]string{{"a", "b"}, {"c", "d"}, {"e"}}, Chunk(entries, 2))
	assert.Equal(t, [][]string{entries}, Chunk(entries, 10))
	assert.Nil(t, Chunk(entries, 0))
	assert.Nil(t, Chunk(nil, 3))
}
