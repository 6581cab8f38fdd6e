// Package cards converts between a set's text and its flashcards.
//
// A set's text is a list of cards joined by the card separator. Each card
// is a term and a definition split at the first term separator.
package cards

import (
	"fmt"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Separators controls how text is split.
type Separators struct {
	Card string `json:"card" yaml:"card"`
	Term string `json:"term" yaml:"term"`
}

// DefaultSeparators splits cards on newlines and terms on commas.
func DefaultSeparators() Separators {
	return Separators{Card: "\n", Term: ","}
}

// Validate checks that both separators are set and differ.
func (s Separators) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.Card, validation.Required),
		validation.Field(&s.Term,
			validation.Required,
			validation.By(func(value interface{}) error {
				if value.(string) == s.Card {
					return fmt.Errorf("must differ from the card separator")
				}
				return nil
			}),
		),
	)
}

// Card is one term/definition pair.
type Card struct {
	// ID is card-<n>, n being the card's position in the text including
	// blank entries, so ids stay put while blank lines are edited.
	ID         string `json:"id"`
	Index      int    `json:"index"`
	Term       string `json:"term"`
	Definition string `json:"definition"`
}

// Parse splits text into cards. Blank entries are skipped. The definition
// is everything after the first term separator, so it may itself contain
// the separator. A card with no separator has an empty definition.
func Parse(text string, seps Separators) ([]Card, error) {
	if err := seps.Validate(); err != nil {
		return nil, err
	}

	var out []Card
	for i, raw := range strings.Split(text, seps.Card) {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		term, def, _ := strings.Cut(raw, seps.Term)
		out = append(out, Card{
			ID:         fmt.Sprintf("card-%d", i),
			Index:      i,
			Term:       strings.TrimSpace(term),
			Definition: strings.TrimSpace(def),
		})
	}
	return out, nil
}

// Format rebuilds text from cards as "term<sep> definition" entries.
func Format(cards []Card, seps Separators) (string, error) {
	if err := seps.Validate(); err != nil {
		return "", err
	}

	entries := make([]string, len(cards))
	for i, c := range cards {
		entries[i] = c.Term + seps.Term + " " + c.Definition
	}
	return strings.Join(entries, seps.Card), nil
}

// Entries returns the non-blank card entries of text, untrimmed.
func Entries(text, cardSep string) []string {
	var out []string
	for _, raw := range strings.Split(text, cardSep) {
		if strings.TrimSpace(raw) != "" {
			out = append(out, raw)
		}
	}
	return out
}

// Chunk groups entries into runs of at most size.
func Chunk(entries []string, size int) [][]string {
	if size <= 0 || len(entries) == 0 {
		return nil
	}
	var out [][]string
	for i := 0; i < len(entries); i += size {
		end := min(i+size, len(entries))
		out = append(out, entries[i:end])
	}
	return out
}
