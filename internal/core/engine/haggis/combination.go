package haggis

// combinationKind discriminates the two families of playable combinations.
type combinationKind uint8

const (
	kindNormal combinationKind = iota
	kindBomb
)

// combination is the type (including disambiguations) of a played card set.
// For bombs only bombRank is meaningful.
type combination struct {
	kind     combinationKind
	bombRank int
	normal   normalType
}

// normalType describes a set/sequence as the rank×suit rectangle it fills.
// Wildcards that could extend the rectangle either way are kept as
// extraWildcards until a comparison disambiguates them.
type normalType struct {
	startRank      int
	endRank        int
	suitCount      int
	extraWildcards int
}

func (n normalType) rankCount() int {
	return n.endRank - n.startRank + 1
}

func (n normalType) cardCount() int {
	return n.suitCount*n.rankCount() + n.extraWildcards
}

// hasHigherRankThan checks if n is compatible with and larger than other.
// If so it returns the disambiguated type of the larger combination.
//
// Two normal combinations are only ordered when they can be shaped into the
// same rectangle. A combination with extra wildcards has an ambiguous shape:
//
//	1x1 regular, 2 wild => 3 total
//	1x1 regular, 3 wild => 4 total
//	2x1 regular, 2 wild => 4 total
//	1x2 regular, 2 wild => 4 total
//	3x1 regular, 3 wild => 6 total
//	1x3 regular, 3 wild => 6 total
//	2x2 regular, 2 wild => 6 total
//	3x3 regular, 3 wild => 12 total
//
// (2x1 means the combination spans 2 ranks and 1 suit.) The rectangle-area
// test below rejects every incompatible pairing.
func (n normalType) hasHigherRankThan(other normalType) (normalType, bool) {
	if n.cardCount() != other.cardCount() {
		return normalType{}, false
	}

	suitCount := max(n.suitCount, other.suitCount)
	rankCount := max(n.rankCount(), other.rankCount())

	// If the combined rectangle is larger than the number of cards, the
	// wildcards cannot fill it.
	if suitCount*rankCount > n.cardCount() || n.startRank <= other.startRank {
		return normalType{}, false
	}

	return normalType{
		startRank:      n.startRank,
		endRank:        n.startRank + rankCount - 1,
		suitCount:      suitCount,
		extraWildcards: n.cardCount() - suitCount*rankCount,
	}, true
}

// isValidNormal classifies a non-bomb card set. The second return value is
// false when the set is not a playable normal combination.
func isValidNormal(values []cardValue) (normalType, bool) {
	if len(values) == 0 {
		return normalType{}, false
	}

	if len(values) == 1 {
		r := values[0].rank
		return normalType{startRank: r, endRank: r, suitCount: 1}, true
	}

	smallest, largest := MaxRank+1, MinRank-1
	var suits suitSet
	normalCount := 0
	for _, v := range values {
		if v.wild {
			continue
		}
		normalCount++
		smallest = min(smallest, v.rank)
		largest = max(largest, v.rank)
		suits.insert(v.suit)
	}

	// Only wildcards: every multi-card wildcard set is a bomb, never a
	// normal combination.
	if normalCount == 0 {
		return normalType{}, false
	}

	rankCount := largest - smallest + 1
	requiredWildcards := rankCount*suits.len() - normalCount
	wildcards := len(values) - normalCount

	// One normal card plus one wildcard is a pair; two same-suit normal
	// cards can never form a two-card combination.
	if len(values) == 2 && suits.len() == 1 {
		if wildcards == 1 {
			return normalType{startRank: smallest, endRank: largest, suitCount: 2}, true
		}
		return normalType{}, false
	}

	if requiredWildcards > wildcards {
		return normalType{}, false
	}

	extra := wildcards - requiredWildcards
	extendsRanks := extra%suits.len() == 0
	extendsSuits := extra%rankCount == 0

	switch {
	case extra == 0:
		return normalType{startRank: smallest, endRank: largest, suitCount: suits.len()}, true
	case extendsRanks && extendsSuits:
		// Either edge fits, so leave the shape ambiguous.
		return normalType{
			startRank:      smallest,
			endRank:        largest,
			suitCount:      suits.len(),
			extraWildcards: extra,
		}, true
	case extendsRanks:
		// The extras make the sequence longer.
		return normalType{
			startRank: smallest,
			endRank:   largest + extra/suits.len(),
			suitCount: suits.len(),
		}, true
	case extendsSuits:
		// The extras make the set wider.
		return normalType{
			startRank: smallest,
			endRank:   largest,
			suitCount: suits.len() + extra/rankCount,
		}, true
	default:
		return normalType{}, false
	}
}

// Bomb rank masks over card ranks.
const (
	maskOddRun = 1<<3 | 1<<5 | 1<<7 | 1<<9 // 3-5-7-9
	maskJQ     = 1<<11 | 1<<12
	maskJK     = 1<<11 | 1<<13
	maskQK     = 1<<12 | 1<<13
	maskJQK    = 1<<11 | 1<<12 | 1<<13
)

// isBomb classifies a card set as one of the six bombs:
//
//	0: 3-5-7-9 in four different suits
//	1: J-Q    2: J-K    3: Q-K    4: J-Q-K
//	5: 3-5-7-9 in a single suit
//
// The second return value is false when the set is not a bomb.
func isBomb(values []cardValue) (int, bool) {
	rankMask := 0
	for _, v := range values {
		rankMask |= 1 << v.rank
	}

	if len(values) == 4 {
		if rankMask != maskOddRun {
			return 0, false
		}
		suitMask := 0
		for _, v := range values {
			suitMask |= 1 << v.suit
		}
		switch suitMask {
		case 0b1111:
			return 0, true
		case 0b0001, 0b0010, 0b0100, 0b1000:
			return 5, true
		default:
			return 0, false
		}
	}

	switch rankMask {
	case maskJQ:
		return 1, true
	case maskJK:
		return 2, true
	case maskQK:
		return 3, true
	case maskJQK:
		return 4, true
	default:
		return 0, false
	}
}

// classify maps a card set to its combination type, bomb first.
func classify(values []cardValue) (combination, bool) {
	if rank, ok := isBomb(values); ok {
		return combination{kind: kindBomb, bombRank: rank}, true
	}
	if normal, ok := isValidNormal(values); ok {
		return combination{kind: kindNormal, normal: normal}, true
	}
	return combination{}, false
}

// beats reports whether next may be played on top of last, and returns the
// disambiguated type next assumes on the table.
func (last combination) beats(next combination) (combination, bool) {
	switch {
	case last.kind == kindBomb && next.kind == kindBomb:
		if next.bombRank <= last.bombRank {
			return combination{}, false
		}
		return next, true
	case last.kind == kindBomb:
		// A normal combination never answers a bomb.
		return combination{}, false
	case next.kind == kindBomb:
		return next, true
	default:
		normal, ok := next.normal.hasHigherRankThan(last.normal)
		if !ok {
			return combination{}, false
		}
		return combination{kind: kindNormal, normal: normal}, true
	}
}
