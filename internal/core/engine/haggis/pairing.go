package haggis

import "encoding/binary"

// PairingID returns 4 bytes for my hand followed by 4 bytes for the
// opponent's hand, each the combinatorial rank of the sorted normal cards.
// Uncaptured table cards count as the opponent's hand because they must
// have been played by the opponent while at most one combination is out,
// which is when a relay looks at this token. The two peers of one game
// produce the same two halves in opposite order.
func (g *Game) PairingID() []byte {
	id := make([]byte, 0, 8)
	id = binary.LittleEndian.AppendUint32(id, compressHand(g.hand(seatMe, false)))
	id = binary.LittleEndian.AppendUint32(id, compressHand(g.hand(seatOpponent, true)))
	return id
}

// compressHand ranks a sorted set of normal-card ids among all possible
// deals, counting the hands that sort strictly before it.
func compressHand(hand []int) uint32 {
	var numSmaller uint32
	smallest := 0
	for i, card := range hand {
		remaining := InitialDeal - i - 1
		for lower := smallest; lower < card; lower++ {
			possible := NumNormal - 1 - lower
			numSmaller += nChooseK(possible, remaining)
		}
		smallest = card + 1
	}
	return numSmaller
}

func nChooseK(n, k int) uint32 {
	if k < 0 || k > n {
		return 0
	}
	result := uint64(1)
	for i := 0; i < k; i++ {
		result = result * uint64(n-i) / uint64(i+1)
	}
	return uint32(result)
}
