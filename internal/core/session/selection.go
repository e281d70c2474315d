package session

import "sort"

// selection tracks the cards the local player has tentatively chosen.
// Validity is never stored here; it is recomputed against the engine on
// every read so it can never go stale across a toggle.
type selection struct {
	cards map[int]struct{}
}

func newSelection() *selection {
	return &selection{cards: make(map[int]struct{})}
}

// toggle flips membership and reports whether the card is now selected.
func (s *selection) toggle(cardID int) bool {
	if _, ok := s.cards[cardID]; ok {
		delete(s.cards, cardID)
		return false
	}
	s.cards[cardID] = struct{}{}
	return true
}

func (s *selection) contains(cardID int) bool {
	_, ok := s.cards[cardID]
	return ok
}

// ids returns the selected cards in ascending order. Empty means "pass".
func (s *selection) ids() []int {
	out := make([]int, 0, len(s.cards))
	for id := range s.cards {
		out = append(out, id)
	}
	sort.Ints(out)
	return out
}

func (s *selection) size() int {
	return len(s.cards)
}

func (s *selection) clear() {
	s.cards = make(map[int]struct{})
}
