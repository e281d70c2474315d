// Package haggis implements the two-player Haggis card game as the default
// engine behind the engine.Engine contract.
//
// The game has three levels:
//   - Combination: I play a combination, you play a combination
//   - Combination group: ends when somebody passes
//   - Game (called a hand in the rulebook): ends when somebody empties their hand
package haggis

import (
	"fmt"

	"github.com/haggisnet/haggisnet/internal/core/engine"
)

// Deck layout. Card ids 0..35 are the normal cards, nine ranks by four
// suits; 36..38 are my wildcards (J, Q, K) and 39..41 the opponent's.
const (
	NumRanks    = 9
	NumSuits    = 4
	NumNormal   = NumRanks * NumSuits
	NumWild     = 3
	DeckSize    = NumNormal + 2*NumWild
	InitialDeal = 14 // normal cards dealt to each player
	HaggisSize  = NumNormal - 2*InitialDeal
	MinRank     = 2
	MaxRank     = 13
)

var suitRunes = [NumSuits]rune{'♠', '♥', '♦', '♣'}

// cardValue is the rank/suit identity of a card, independent of location.
// Wildcards have ranks 11..13 and no suit.
type cardValue struct {
	rank int
	suit int // meaningless for wildcards
	wild bool
}

func valueOf(cardID int) cardValue {
	if cardID < NumNormal {
		return cardValue{rank: MinRank + cardID%NumRanks, suit: cardID / NumRanks}
	}
	return cardValue{rank: 11 + cardID%NumWild, wild: true}
}

// pointValue is how many points this card scores at the end of a game.
func (v cardValue) pointValue() int {
	if v.wild {
		switch v.rank {
		case 11:
			return 2
		case 12:
			return 3
		default:
			return 5
		}
	}
	return v.rank % 2
}

func (v cardValue) String() string {
	if v.wild {
		return [...]string{"J", "Q", "K"}[v.rank-11]
	}
	return fmt.Sprintf("%d%c", v.rank, suitRunes[v.suit])
}

// ParseCard converts notation like "7♣", "10♦" or "Q" into the id of the
// card held by the local player. Wildcards always map to ids 36..38.
func ParseCard(s string) (int, error) {
	runes := []rune(s)
	if len(runes) == 0 {
		return 0, engine.ErrUnknownCard
	}
	switch runes[0] {
	case 'J':
		return NumNormal, nil
	case 'Q':
		return NumNormal + 1, nil
	case 'K':
		return NumNormal + 2, nil
	}

	rank := 0
	i := 0
	for ; i < len(runes) && runes[i] >= '0' && runes[i] <= '9'; i++ {
		rank = rank*10 + int(runes[i]-'0')
	}
	if rank < MinRank || rank > 10 || i >= len(runes) {
		return 0, engine.ErrUnknownCard
	}
	for suit, r := range suitRunes {
		if runes[i] == r {
			return suit*NumRanks + rank - MinRank, nil
		}
	}
	return 0, engine.ErrUnknownCard
}

// suitSet tracks which of the four suits appear in a combination.
type suitSet struct {
	present [NumSuits]bool
}

func (s *suitSet) insert(suit int) {
	s.present[suit] = true
}

func (s *suitSet) len() int {
	n := 0
	for _, p := range s.present {
		if p {
			n++
		}
	}
	return n
}
