package haggis

import (
	"math/rand/v2"
	"sort"

	"github.com/haggisnet/haggisnet/internal/core/engine"
)

var _ engine.Engine = (*Game)(nil)

// seat identifies one of the two players from the local perspective.
type seat uint8

const (
	seatMe seat = iota
	seatOpponent
)

func (s seat) other() seat {
	if s == seatMe {
		return seatOpponent
	}
	return seatMe
}

// place says where a single card currently is.
type place uint8

const (
	placeHaggis place = iota
	placeHand
	placeTable
)

// location is the full position of one card. For cards on the table, order
// is the number of combinations played before this one (shared by all cards
// of one combination); captured tracks who took the combination group, and
// lastBeforePass marks the final combination of a captured group.
type location struct {
	place          place
	owner          seat // hand owner, or capturer when captured
	captured       bool
	order          int
	lastBeforePass bool
}

// Game is one Haggis instance seen from the local player's perspective.
type Game struct {
	locations     [DeckSize]location
	currentPlayer seat
	meWentFirst   bool
	// Type (including disambiguations) of the last combination played;
	// nil at the start of every combination group.
	lastCombination *combination
	// The order that the next card combination will have.
	nextOrder int
}

// New deals a fresh game. The creating client always occupies the first
// seat; the peer joins by restoring the first snapshot it receives.
func New() *Game {
	g := &Game{currentPlayer: seatMe, meWentFirst: true}

	// Shuffle all 36 normal cards even though only 28 are dealt, so the
	// haggis gets randomized too.
	deck := make([]int, NumNormal)
	for i := range deck {
		deck[i] = i
	}
	rand.Shuffle(len(deck), func(i, j int) {
		deck[i], deck[j] = deck[j], deck[i]
	})

	for _, id := range deck[:InitialDeal] {
		g.locations[id] = location{place: placeHand, owner: seatMe}
	}
	for _, id := range deck[InitialDeal : 2*InitialDeal] {
		g.locations[id] = location{place: placeHand, owner: seatOpponent}
	}
	for id := NumNormal; id < NumNormal+NumWild; id++ {
		g.locations[id] = location{place: placeHand, owner: seatMe}
	}
	for id := NumNormal + NumWild; id < DeckSize; id++ {
		g.locations[id] = location{place: placeHand, owner: seatOpponent}
	}
	return g
}

// values maps card ids to their values, rejecting out-of-range or repeated
// ids. ok is false on any bad id.
func (g *Game) values(cardIDs []int) ([]cardValue, bool) {
	values := make([]cardValue, 0, len(cardIDs))
	seen := make(map[int]struct{}, len(cardIDs))
	for _, id := range cardIDs {
		if id < 0 || id >= DeckSize {
			return nil, false
		}
		if _, dup := seen[id]; dup {
			return nil, false
		}
		seen[id] = struct{}{}
		values = append(values, valueOf(id))
	}
	return values, true
}

// CanPlay reports whether the local player may play this card set now.
// The empty set is a pass, which is only legal once a combination group
// has started.
func (g *Game) CanPlay(cardIDs []int) bool {
	if g.Stage() != engine.StagePlay {
		return false
	}
	if len(cardIDs) == 0 {
		return g.lastCombination != nil
	}

	values, ok := g.values(cardIDs)
	if !ok {
		return false
	}
	for _, id := range cardIDs {
		loc := g.locations[id]
		if loc.place != placeHand || loc.owner != seatMe {
			return false
		}
	}

	current, ok := classify(values)
	if !ok {
		return false
	}
	if g.lastCombination == nil {
		return true
	}
	_, ok = g.lastCombination.beats(current)
	return ok
}

// Play commits a move for the local player. An empty set passes, which
// captures the table for whoever won the combination group.
func (g *Game) Play(cardIDs []int) error {
	if !g.CanPlay(cardIDs) {
		return engine.ErrInvalidPlay
	}

	if len(cardIDs) == 0 {
		g.captureTable()
	} else {
		values, _ := g.values(cardIDs)
		current, _ := classify(values)
		if g.lastCombination != nil {
			current, _ = g.lastCombination.beats(current)
		}
		g.lastCombination = &current

		for _, id := range cardIDs {
			g.locations[id] = location{place: placeTable, order: g.nextOrder}
		}
		g.nextOrder++
	}

	g.currentPlayer = g.currentPlayer.other()

	// Emptying a hand ends the game; the leftover combination group goes
	// to the player who played last.
	if g.isOver() {
		g.captureTable()
	}
	return nil
}

// captureTable assigns every uncaptured table card without changing whose
// turn it is. A group ended by a pass goes to the opponent of the passer,
// unless a bomb won it: cards taken with a bomb always go to the bomb
// player's opponent, so the passer keeps them.
func (g *Game) captureTable() {
	capturer := g.currentPlayer.other()
	if g.lastCombination != nil && g.lastCombination.kind == kindBomb {
		capturer = g.currentPlayer
	}
	for id := range g.locations {
		loc := &g.locations[id]
		if loc.place == placeTable && !loc.captured {
			loc.captured = true
			loc.owner = capturer
			if loc.order+1 == g.nextOrder {
				loc.lastBeforePass = true
			}
		}
	}
	g.lastCombination = nil
}

func (g *Game) isOver() bool {
	mine, theirs := g.HandSizes()
	return mine == 0 || theirs == 0
}

// Stage reports the current stage; the engine never reports BeforeGame.
func (g *Game) Stage() engine.Stage {
	switch {
	case g.isOver():
		return engine.StageGameOver
	case g.currentPlayer == seatMe:
		return engine.StagePlay
	default:
		return engine.StageWait
	}
}

// HandSizes returns the card counts as (mine, opponent's).
func (g *Game) HandSizes() (int, int) {
	mine, theirs := 0, 0
	for _, loc := range g.locations {
		if loc.place != placeHand {
			continue
		}
		if loc.owner == seatMe {
			mine++
		} else {
			theirs++
		}
	}
	return mine, theirs
}

// Scores returns the points scored so far as (mine, opponent's). Before the
// game is over only captured point cards count; the winner bonus (5 points
// per card left in the loser's hand, plus every point card still in hands
// or in the haggis) is added once a hand is empty.
func (g *Game) Scores() (int, int) {
	mine, theirs := 0, 0
	bonus := 0

	myCards, theirCards := g.HandSizes()
	over := myCards == 0 || theirCards == 0
	bonus += 5 * (myCards + theirCards)

	for id, loc := range g.locations {
		points := valueOf(id).pointValue()
		switch {
		case loc.place == placeTable && loc.captured && loc.owner == seatMe:
			mine += points
		case loc.place == placeTable && loc.captured && loc.owner == seatOpponent:
			theirs += points
		case loc.place == placeHand || loc.place == placeHaggis:
			bonus += points
		}
	}

	if over {
		if myCards == 0 {
			mine += bonus
		} else {
			theirs += bonus
		}
	}
	return mine, theirs
}

// WentFirst reports whether this client occupies the first seat.
func (g *Game) WentFirst() bool {
	return g.meWentFirst
}

// Placement returns the display state of one card.
func (g *Game) Placement(cardID int) (engine.Placement, error) {
	if cardID < 0 || cardID >= DeckSize {
		return 0, engine.ErrUnknownCard
	}
	loc := g.locations[cardID]
	switch {
	case loc.place == placeHaggis:
		return engine.PlacementHidden, nil
	case loc.place == placeHand && loc.owner == seatMe:
		return engine.PlacementMyHand, nil
	case loc.place == placeHand:
		return engine.PlacementOpponentHand, nil
	case loc.captured && loc.owner == seatMe:
		return engine.PlacementCapturedByMe, nil
	case loc.captured:
		return engine.PlacementCapturedByOpponent, nil
	case loc.order+1 == g.nextOrder:
		return engine.PlacementJustPlayed, nil
	default:
		return engine.PlacementTable, nil
	}
}

// hand returns the sorted ids of one player's normal cards. Uncaptured
// table cards count as the opponent's: they must have been played by the
// opponent in any position where a pairing id is derived.
func (g *Game) hand(s seat, countTable bool) []int {
	var ids []int
	for id := 0; id < NumNormal; id++ {
		loc := g.locations[id]
		inHand := loc.place == placeHand && loc.owner == s
		onTable := countTable && loc.place == placeTable && !loc.captured
		if inHand || onTable {
			ids = append(ids, id)
		}
	}
	sort.Ints(ids)
	return ids
}

// switchPerspective swaps the two seats in place. Every snapshot decode
// passes through here so that the sender's "me" becomes my "opponent".
func (g *Game) switchPerspective() {
	for id := range g.locations {
		loc := &g.locations[id]
		if loc.place == placeHand || (loc.place == placeTable && loc.captured) {
			loc.owner = loc.owner.other()
		}
	}
	g.currentPlayer = g.currentPlayer.other()
	g.meWentFirst = !g.meWentFirst
}
