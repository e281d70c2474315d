package engine

import (
	"errors"

	"github.com/haggisnet/haggisnet/pkg/encoding"
)

// Engine errors
var (
	ErrInvalidPlay     = errors.New("combination cannot be played")
	ErrInvalidSnapshot = errors.New("snapshot bytes are not a valid game")
	ErrUnknownCard     = errors.New("unknown card id")
)

// Stage is the discrete phase gating which user actions are currently legal.
// StageBeforeGame is never reported by an Engine; it exists only between
// session creation and the local start action.
type Stage uint8

const (
	StageBeforeGame Stage = iota
	StagePlay
	StageWait
	StageGameOver
)

func (s Stage) String() string {
	switch s {
	case StageBeforeGame:
		return "before_game"
	case StagePlay:
		return "play"
	case StageWait:
		return "wait"
	case StageGameOver:
		return "game_over"
	default:
		return "unknown"
	}
}

// Placement is the display state of a single card from the local perspective.
type Placement uint8

const (
	PlacementHidden Placement = iota // face down in the haggis
	PlacementMyHand
	PlacementOpponentHand
	PlacementJustPlayed // on the table, part of the newest combination
	PlacementTable      // on the table, earlier in this combination group
	PlacementCapturedByMe
	PlacementCapturedByOpponent
)

func (p Placement) String() string {
	switch p {
	case PlacementHidden:
		return "hidden"
	case PlacementMyHand:
		return "my_hand"
	case PlacementOpponentHand:
		return "opponent_hand"
	case PlacementJustPlayed:
		return "just_played"
	case PlacementTable:
		return "table"
	case PlacementCapturedByMe:
		return "captured_by_me"
	case PlacementCapturedByOpponent:
		return "captured_by_opponent"
	default:
		return "unknown"
	}
}

// Engine is one per-client game instance. Implementations own every
// game-rule decision; callers never second-guess a verdict.
//
// All methods are synchronous and must only be called from one goroutine
// at a time. The snapshot surface (Serialize/Deserialize) always carries
// the full state, never a delta, and Deserialize adopts the sender's
// perspective: the sender's hand becomes the opponent's hand.
type Engine interface {
	encoding.Serializable

	// CanPlay reports whether the card set is a legal move for the local
	// player right now. The empty set means "pass".
	CanPlay(cardIDs []int) bool

	// Play commits the card set. It returns ErrInvalidPlay and leaves the
	// state untouched when CanPlay would report false.
	Play(cardIDs []int) error

	// Stage is the authoritative source for the current stage.
	Stage() Stage

	// Scores returns the points scored so far as (mine, opponent's).
	Scores() (int, int)

	// HandSizes returns the card counts as (mine, opponent's).
	HandSizes() (int, int)

	// WentFirst reports which of the two symmetric seats this instance
	// occupies. Immutable for the lifetime of one game.
	WentFirst() bool

	// Placement returns the display state of one card.
	Placement(cardID int) (Placement, error)

	// PairingID derives a session-pairing token from the deal. The two
	// peers of one game produce mirrored tokens that a relay can match.
	PairingID() []byte
}

// Factory creates Engine instances. It is resolved once during bootstrap
// and injected into the session; nothing else constructs engines.
type Factory interface {
	// New starts a fresh game with this client in the first seat.
	New() Engine

	// Restore builds an instance from snapshot bytes produced by the
	// peer, switching perspective. Returns ErrInvalidSnapshot (possibly
	// wrapped) when the bytes do not decode.
	Restore(snapshot []byte) (Engine, error)
}
