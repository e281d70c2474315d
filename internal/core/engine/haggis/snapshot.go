package haggis

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/pkg/errors"

	"github.com/haggisnet/haggisnet/internal/core/engine"
)

// Snapshot wire format, one full game per snapshot:
//
//	magic 'H', version byte
//	flags: bit0 opponent to move, bit1 me went first, bit2 has last combination
//	uvarint next combination order
//	last combination, when present
//	42 card entries
//
// Snapshots are written from the sender's perspective; Deserialize switches
// seats so the receiver sees themselves as "me".
const (
	snapshotMagic   = 'H'
	snapshotVersion = 1
)

const (
	flagOpponentToMove = 1 << iota
	flagMeWentFirst
	flagHasCombination
)

// Card entry tags.
const (
	tagHaggis = iota
	tagMyHand
	tagOpponentHand
	tagTable
	tagCapturedByMe
	tagCapturedByOpponent
)

// Serialize encodes the full game state.
func (g *Game) Serialize() ([]byte, error) {
	buf := make([]byte, 0, 3*DeckSize)
	buf = append(buf, snapshotMagic, snapshotVersion)

	flags := byte(0)
	if g.currentPlayer == seatOpponent {
		flags |= flagOpponentToMove
	}
	if g.meWentFirst {
		flags |= flagMeWentFirst
	}
	if g.lastCombination != nil {
		flags |= flagHasCombination
	}
	buf = append(buf, flags)
	buf = binary.AppendUvarint(buf, uint64(g.nextOrder))

	if c := g.lastCombination; c != nil {
		if c.kind == kindBomb {
			buf = append(buf, byte(kindBomb), byte(c.bombRank))
		} else {
			buf = append(buf, byte(kindNormal),
				byte(c.normal.startRank), byte(c.normal.endRank),
				byte(c.normal.suitCount), byte(c.normal.extraWildcards))
		}
	}

	for _, loc := range g.locations {
		switch {
		case loc.place == placeHaggis:
			buf = append(buf, tagHaggis)
		case loc.place == placeHand && loc.owner == seatMe:
			buf = append(buf, tagMyHand)
		case loc.place == placeHand:
			buf = append(buf, tagOpponentHand)
		default:
			tag := byte(tagTable)
			if loc.captured && loc.owner == seatMe {
				tag = tagCapturedByMe
			} else if loc.captured {
				tag = tagCapturedByOpponent
			}
			buf = append(buf, tag)
			buf = binary.AppendUvarint(buf, uint64(loc.order))
			pass := byte(0)
			if loc.lastBeforePass {
				pass = 1
			}
			buf = append(buf, pass)
		}
	}
	return buf, nil
}

// Deserialize replaces the receiver with the decoded game, switched to the
// local perspective. The receiver is untouched on error.
func (g *Game) Deserialize(data []byte) error {
	decoded, err := decodeSnapshot(data)
	if err != nil {
		return err
	}
	decoded.switchPerspective()
	*g = *decoded
	return nil
}

func decodeSnapshot(data []byte) (*Game, error) {
	r := bytes.NewReader(data)

	header := make([]byte, 3)
	if _, err := io.ReadFull(r, header); err != nil || header[0] != snapshotMagic || header[1] != snapshotVersion {
		return nil, errors.Wrap(engine.ErrInvalidSnapshot, "bad header")
	}
	flags := header[2]

	g := &Game{
		currentPlayer: seatMe,
		meWentFirst:   flags&flagMeWentFirst != 0,
	}
	if flags&flagOpponentToMove != 0 {
		g.currentPlayer = seatOpponent
	}

	nextOrder, err := binary.ReadUvarint(r)
	if err != nil || nextOrder > uint64(DeckSize) {
		return nil, errors.Wrap(engine.ErrInvalidSnapshot, "bad combination order")
	}
	g.nextOrder = int(nextOrder)

	if flags&flagHasCombination != 0 {
		c, err := decodeCombination(r)
		if err != nil {
			return nil, err
		}
		g.lastCombination = c
	}

	for id := 0; id < DeckSize; id++ {
		tag, err := r.ReadByte()
		if err != nil {
			return nil, errors.Wrap(engine.ErrInvalidSnapshot, "truncated card entries")
		}
		switch tag {
		case tagHaggis:
			if id >= NumNormal {
				// Wildcards are never in the haggis.
				return nil, errors.Wrap(engine.ErrInvalidSnapshot, "wildcard in haggis")
			}
			g.locations[id] = location{place: placeHaggis}
		case tagMyHand:
			g.locations[id] = location{place: placeHand, owner: seatMe}
		case tagOpponentHand:
			g.locations[id] = location{place: placeHand, owner: seatOpponent}
		case tagTable, tagCapturedByMe, tagCapturedByOpponent:
			order, err := binary.ReadUvarint(r)
			if err != nil || order >= nextOrder {
				return nil, errors.Wrap(engine.ErrInvalidSnapshot, "bad card order")
			}
			pass, err := r.ReadByte()
			if err != nil || pass > 1 {
				return nil, errors.Wrap(engine.ErrInvalidSnapshot, "bad pass marker")
			}
			loc := location{place: placeTable, order: int(order), lastBeforePass: pass == 1}
			if tag == tagCapturedByMe {
				loc.captured = true
				loc.owner = seatMe
			} else if tag == tagCapturedByOpponent {
				loc.captured = true
				loc.owner = seatOpponent
			}
			g.locations[id] = loc
		default:
			return nil, errors.Wrapf(engine.ErrInvalidSnapshot, "bad card tag %d", tag)
		}
	}
	if r.Len() != 0 {
		return nil, errors.Wrap(engine.ErrInvalidSnapshot, "trailing bytes")
	}
	return g, nil
}

func decodeCombination(r *bytes.Reader) (*combination, error) {
	kind, err := r.ReadByte()
	if err != nil {
		return nil, errors.Wrap(engine.ErrInvalidSnapshot, "truncated combination")
	}
	switch combinationKind(kind) {
	case kindBomb:
		rank, err := r.ReadByte()
		if err != nil || rank > 5 {
			return nil, errors.Wrap(engine.ErrInvalidSnapshot, "bad bomb rank")
		}
		return &combination{kind: kindBomb, bombRank: int(rank)}, nil
	case kindNormal:
		raw := make([]byte, 4)
		if _, err := io.ReadFull(r, raw); err != nil {
			return nil, errors.Wrap(engine.ErrInvalidSnapshot, "truncated combination")
		}
		n := normalType{
			startRank:      int(raw[0]),
			endRank:        int(raw[1]),
			suitCount:      int(raw[2]),
			extraWildcards: int(raw[3]),
		}
		if n.startRank < MinRank || n.endRank > MaxRank || n.startRank > n.endRank ||
			n.suitCount < 1 || n.cardCount() > DeckSize {
			return nil, errors.Wrap(engine.ErrInvalidSnapshot, "bad combination shape")
		}
		return &combination{kind: kindNormal, normal: n}, nil
	default:
		return nil, errors.Wrap(engine.ErrInvalidSnapshot, "bad combination kind")
	}
}

var _ engine.Factory = Factory{}

// Factory builds haggis engines for the session bootstrap.
type Factory struct{}

func (Factory) New() engine.Engine {
	return New()
}

func (Factory) Restore(snapshot []byte) (engine.Engine, error) {
	g := &Game{}
	if err := g.Deserialize(snapshot); err != nil {
		return nil, err
	}
	return g, nil
}
