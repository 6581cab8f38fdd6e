// Package study runs a flip-card drill over a set's cards with known and
// unknown triage.
//
// A Session is not safe for concurrent use.
package study

import (
	"github.com/roach88/cardfs/internal/cards"
)

// Session walks a deck of cards front to back.
type Session struct {
	cards    []cards.Card
	byID     map[string]int
	deck     []string
	index    int
	flipped  bool
	complete bool
	review   bool
	unknown  map[string]bool
}

// New starts a session over all of cs in order.
func New(cs []cards.Card) *Session {
	s := &Session{
		cards:   cs,
		byID:    make(map[string]int, len(cs)),
		unknown: make(map[string]bool),
	}
	for i, c := range cs {
		s.byID[c.ID] = i
	}
	s.RestartAll()
	return s
}

// Current returns the card being shown. ok is false once the session is
// complete or when there are no cards.
func (s *Session) Current() (c cards.Card, ok bool) {
	if s.complete || s.index >= len(s.deck) {
		return cards.Card{}, false
	}
	return s.cards[s.byID[s.deck[s.index]]], true
}

// Position returns the zero-based index of the current card and the deck
// size.
func (s *Session) Position() (int, int) { return s.index, len(s.deck) }

// Flipped reports whether the definition side is showing.
func (s *Session) Flipped() bool { return s.flipped }

// Complete reports whether the deck has been run through.
func (s *Session) Complete() bool { return s.complete }

// Reviewing reports whether the deck is the unknown-only review.
func (s *Session) Reviewing() bool { return s.review }

// Flip turns the current card over.
func (s *Session) Flip() {
	if !s.complete {
		s.flipped = !s.flipped
	}
}

// Next moves to the next card, completing the session after the last one.
func (s *Session) Next() {
	if s.complete {
		return
	}
	s.flipped = false
	if s.index < len(s.deck)-1 {
		s.index++
		return
	}
	s.complete = true
}

// Prev moves back one card. It does nothing on the first card.
func (s *Session) Prev() {
	if s.complete || s.index == 0 {
		return
	}
	s.flipped = false
	s.index--
}

// MarkKnown clears the current card from the unknown pile and advances.
func (s *Session) MarkKnown() {
	if c, ok := s.Current(); ok {
		delete(s.unknown, c.ID)
		s.Next()
	}
}

// MarkUnknown adds the current card to the unknown pile and advances.
func (s *Session) MarkUnknown() {
	if c, ok := s.Current(); ok {
		s.unknown[c.ID] = true
		s.Next()
	}
}

// Unknown returns the ids of cards marked unknown, in card order.
func (s *Session) Unknown() []string {
	var out []string
	for _, c := range s.cards {
		if s.unknown[c.ID] {
			out = append(out, c.ID)
		}
	}
	return out
}

// RestartAll restarts over every card and forgets the unknown pile.
func (s *Session) RestartAll() {
	s.deck = make([]string, len(s.cards))
	for i, c := range s.cards {
		s.deck[i] = c.ID
	}
	s.unknown = make(map[string]bool)
	s.reset(false)
}

// ReviewUnknown restarts over just the unknown cards. It reports false and
// leaves the session alone when there are none.
func (s *Session) ReviewUnknown() bool {
	ids := s.Unknown()
	if len(ids) == 0 {
		return false
	}
	s.deck = ids
	s.reset(true)
	return true
}

func (s *Session) reset(review bool) {
	s.index = 0
	s.flipped = false
	s.complete = len(s.deck) == 0
	s.review = review
}
