package haggis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haggisnet/haggisnet/internal/core/engine"
)

// newTestGame builds a deterministic game where only the named normal
// cards are in play; everything else, wildcards included, sits in the
// haggis. Rules that depend on wildcards place them into hands per test.
func newTestGame(t *testing.T, mine, theirs []string) *Game {
	t.Helper()
	g := &Game{currentPlayer: seatMe, meWentFirst: true}
	for _, c := range mine {
		id, err := ParseCard(c)
		require.NoError(t, err, c)
		g.locations[id] = location{place: placeHand, owner: seatMe}
	}
	for _, c := range theirs {
		id, err := ParseCard(c)
		require.NoError(t, err, c)
		g.locations[id] = location{place: placeHand, owner: seatOpponent}
	}
	return g
}

// dealWildcards puts the six wildcards into the two hands, as a real deal
// does. Needed whenever a test game is serialized.
func dealWildcards(g *Game) {
	for id := NumNormal; id < NumNormal+NumWild; id++ {
		g.locations[id] = location{place: placeHand, owner: seatMe}
	}
	for id := NumNormal + NumWild; id < DeckSize; id++ {
		g.locations[id] = location{place: placeHand, owner: seatOpponent}
	}
}

func ids(t *testing.T, cards ...string) []int {
	t.Helper()
	out := make([]int, 0, len(cards))
	for _, c := range cards {
		id, err := ParseCard(c)
		require.NoError(t, err, c)
		out = append(out, id)
	}
	return out
}

// opponentPlays runs one opponent move by flipping to their perspective.
func opponentPlays(t *testing.T, g *Game, cards ...string) {
	t.Helper()
	g.switchPerspective()
	require.NoError(t, g.Play(ids(t, cards...)))
	g.switchPerspective()
}

func TestNewDeal(t *testing.T) {
	g := New()

	mine, theirs := g.HandSizes()
	assert.Equal(t, InitialDeal+NumWild, mine)
	assert.Equal(t, InitialDeal+NumWild, theirs)
	assert.True(t, g.WentFirst())
	assert.Equal(t, engine.StagePlay, g.Stage())

	haggis := 0
	for id := 0; id < DeckSize; id++ {
		p, err := g.Placement(id)
		require.NoError(t, err)
		if p == engine.PlacementHidden {
			haggis++
		}
	}
	assert.Equal(t, HaggisSize, haggis)

	// All wildcards start in hands, mine low ids, the opponent's high.
	for id := NumNormal; id < NumNormal+NumWild; id++ {
		p, err := g.Placement(id)
		require.NoError(t, err)
		assert.Equal(t, engine.PlacementMyHand, p)
	}
	for id := NumNormal + NumWild; id < DeckSize; id++ {
		p, err := g.Placement(id)
		require.NoError(t, err)
		assert.Equal(t, engine.PlacementOpponentHand, p)
	}

	myScore, oppScore := g.Scores()
	assert.Zero(t, myScore)
	assert.Zero(t, oppScore)
}

func TestCanPlayGating(t *testing.T) {
	g := newTestGame(t, []string{"2♠", "4♠"}, []string{"3♥", "9♥"})

	// Pass is not available before any combination is on the table.
	assert.False(t, g.CanPlay(nil))
	assert.True(t, g.CanPlay(ids(t, "2♠")))

	// The opponent's cards are not mine to play.
	assert.False(t, g.CanPlay(ids(t, "3♥")))

	// Out-of-range and repeated ids.
	assert.False(t, g.CanPlay([]int{-1}))
	assert.False(t, g.CanPlay([]int{DeckSize}))
	assert.False(t, g.CanPlay([]int{0, 0}))

	require.NoError(t, g.Play(ids(t, "2♠")))

	// Not my turn.
	assert.Equal(t, engine.StageWait, g.Stage())
	assert.False(t, g.CanPlay(nil))
}

func TestPlayRejectedLeavesStateUntouched(t *testing.T) {
	g := newTestGame(t, []string{"2♠", "4♠"}, []string{"3♥", "9♥"})

	err := g.Play(ids(t, "2♠", "4♠")) // not a valid combination
	assert.ErrorIs(t, err, engine.ErrInvalidPlay)
	assert.Equal(t, engine.StagePlay, g.Stage())
	mine, _ := g.HandSizes()
	assert.Equal(t, 2, mine)
}

func TestPassCapturesForOpponent(t *testing.T) {
	g := newTestGame(t, []string{"2♠", "4♠"}, []string{"3♥", "9♥"})

	require.NoError(t, g.Play(ids(t, "2♠")))
	opponentPlays(t, g, "3♥")

	// Pass even though the 4♠ could answer.
	require.NoError(t, g.Play(nil))

	// The passer's opponent takes the group: 2♠ and 3♥ go to them.
	p, err := g.Placement(ids(t, "2♠")[0])
	require.NoError(t, err)
	assert.Equal(t, engine.PlacementCapturedByOpponent, p)
	p, err = g.Placement(ids(t, "3♥")[0])
	require.NoError(t, err)
	assert.Equal(t, engine.PlacementCapturedByOpponent, p)

	// Only the odd-ranked 3♥ is worth a point.
	myScore, oppScore := g.Scores()
	assert.Zero(t, myScore)
	assert.Equal(t, 1, oppScore)

	// Passing does not skip my opponent's turn.
	assert.Equal(t, engine.StageWait, g.Stage())
}

func TestBombCaptureGoesToTheOtherSide(t *testing.T) {
	g := newTestGame(t,
		[]string{"2♠", "4♠", "3♦", "5♠", "7♣", "9♥"},
		[]string{"10♥", "4♥"})

	require.NoError(t, g.Play(ids(t, "2♠")))
	opponentPlays(t, g, "10♥")

	// My four-suit odd run bombs the table.
	require.NoError(t, g.Play(ids(t, "3♦", "5♠", "7♣", "9♥")))
	assert.Equal(t, engine.StageWait, g.Stage())

	// The opponent passes. Cards won with a bomb go to the bomb player's
	// opponent, so the passer takes the whole group.
	g.switchPerspective()
	require.NoError(t, g.Play(nil))
	g.switchPerspective()

	for _, c := range []string{"2♠", "10♥", "3♦", "5♠", "7♣", "9♥"} {
		p, err := g.Placement(ids(t, c)[0])
		require.NoError(t, err)
		assert.Equal(t, engine.PlacementCapturedByOpponent, p, c)
	}

	// The bombed group made the opponent's score: 3,5,7,9 are a point
	// each, everything else in it is worthless.
	myScore, oppScore := g.Scores()
	assert.Zero(t, myScore)
	assert.Equal(t, 4, oppScore)
}

func TestGameOverScoring(t *testing.T) {
	g := newTestGame(t, []string{"2♠"}, []string{"3♥", "9♥"})

	// Playing my last card ends the game and sweeps the table to me.
	require.NoError(t, g.Play(ids(t, "2♠")))

	assert.Equal(t, engine.StageGameOver, g.Stage())
	p, err := g.Placement(ids(t, "2♠")[0])
	require.NoError(t, err)
	assert.Equal(t, engine.PlacementCapturedByMe, p)

	// Winner bonus: 5 per card left in the opponent's hand, plus every
	// point card still in a hand or the haggis. Here that is the whole
	// deck's 36 points, since the captured 2♠ is worth nothing: sixteen
	// odd-ranked cards plus both wildcard sets (J2 Q3 K5 twice).
	myScore, oppScore := g.Scores()
	assert.Equal(t, 5*2+36, myScore)
	assert.Zero(t, oppScore)
}

func TestJustPlayedPlacement(t *testing.T) {
	g := newTestGame(t, []string{"2♠", "4♠"}, []string{"3♥", "9♥"})

	require.NoError(t, g.Play(ids(t, "2♠")))
	opponentPlays(t, g, "3♥")

	p, err := g.Placement(ids(t, "3♥")[0])
	require.NoError(t, err)
	assert.Equal(t, engine.PlacementJustPlayed, p)

	p, err = g.Placement(ids(t, "2♠")[0])
	require.NoError(t, err)
	assert.Equal(t, engine.PlacementTable, p)
}

func TestStageTransitionsThroughAGame(t *testing.T) {
	g := newTestGame(t, []string{"2♠", "4♠"}, []string{"3♥"})
	assert.Equal(t, engine.StagePlay, g.Stage())

	require.NoError(t, g.Play(ids(t, "2♠")))
	assert.Equal(t, engine.StageWait, g.Stage())

	opponentPlays(t, g, "3♥")
	assert.Equal(t, engine.StageGameOver, g.Stage())
}

func TestPlacementUnknownCard(t *testing.T) {
	g := New()
	_, err := g.Placement(-1)
	assert.ErrorIs(t, err, engine.ErrUnknownCard)
	_, err = g.Placement(DeckSize)
	assert.ErrorIs(t, err, engine.ErrUnknownCard)
}

func TestSwitchPerspectiveIsInvolutive(t *testing.T) {
	g := newTestGame(t, []string{"2♠", "4♠"}, []string{"3♥", "9♥"})
	require.NoError(t, g.Play(ids(t, "2♠")))

	snapshot := *g
	g.switchPerspective()
	assert.Equal(t, seatMe, g.currentPlayer)
	assert.False(t, g.meWentFirst)
	g.switchPerspective()
	assert.Equal(t, snapshot, *g)
}
