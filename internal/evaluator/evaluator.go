// Package evaluator ranks 5-7 card sets into a totally ordered hand
// strength. Comparing two HandRank values compares the hands: the top
// four bits carry the category and the remaining bits carry the
// tiebreak key, packed so that a plain integer comparison breaks ties
// by the category ranks first and kickers after, both descending.
package evaluator

import (
	"math/bits"

	"github.com/lox/pokerrooms/internal/deck"
)

// HandRank represents the strength of a poker hand
type HandRank uint32

// The high 4 bits are the hand category, the remaining bits are for tie-breaking
const (
	HighCard HandRank = iota << 28
	Pair
	TwoPair
	ThreeOfAKind
	Straight
	Flush
	FullHouse
	FourOfAKind
	StraightFlush
)

// Category returns the category portion of the rank
func (hr HandRank) Category() HandRank {
	return hr & 0xF0000000
}

// String returns a human-readable hand description
func (hr HandRank) String() string {
	switch hr.Category() {
	case HighCard:
		return "High Card"
	case Pair:
		return "Pair"
	case TwoPair:
		return "Two Pair"
	case ThreeOfAKind:
		return "Three of a Kind"
	case Straight:
		return "Straight"
	case Flush:
		return "Flush"
	case FullHouse:
		return "Full House"
	case FourOfAKind:
		return "Four of a Kind"
	case StraightFlush:
		if hr&0xF == aceIdx {
			return "Royal Flush"
		}
		return "Straight Flush"
	default:
		return "Unknown"
	}
}

// Compare compares two hands and returns 1 if a wins, -1 if b wins, 0 for tie
func Compare(a, b HandRank) int {
	if a > b {
		return 1
	} else if a < b {
		return -1
	}
	return 0
}

const aceIdx = 12 // rank index of an ace (deck.Ace - deck.Two)

// Evaluate returns the rank of the best 5-card hand contained in the
// given 5-7 cards. Fewer than 5 cards yields 0.
func Evaluate(cards []deck.Card) HandRank {
	if len(cards) < 5 || len(cards) > 7 {
		return 0
	}

	// Per-suit and overall rank presence masks, bit i = rank index i.
	var suitMasks [4]uint16
	var counts [13]uint8
	for _, c := range cards {
		idx := uint8(c.Rank - deck.Two)
		suitMasks[c.Suit] |= 1 << idx
		counts[idx]++
	}

	// Flush first: a 7-card set can never hold both a flush and a full
	// house or quads, so returning early here is safe.
	for suit := 0; suit < 4; suit++ {
		if bits.OnesCount16(suitMasks[suit]) >= 5 {
			if high, ok := straightHigh(suitMasks[suit]); ok {
				return StraightFlush | HandRank(high)
			}
			return Flush | packTop(suitMasks[suit], 5)
		}
	}

	if quad := highestWithCount(counts, 4); quad >= 0 {
		kickers := kickerRanks(counts, 1, quad)
		return FourOfAKind | HandRank(quad)<<4 | HandRank(kickers[0])
	}

	trips := highestWithCount(counts, 3)
	if trips >= 0 {
		if pair := highestPairBelow(counts, trips); pair >= 0 {
			return FullHouse | HandRank(trips)<<4 | HandRank(pair)
		}
	}

	var rankMask uint16
	for i, n := range counts {
		if n > 0 {
			rankMask |= 1 << i
		}
	}
	if high, ok := straightHigh(rankMask); ok {
		return Straight | HandRank(high)
	}

	if trips >= 0 {
		kickers := kickerRanks(counts, 2, trips)
		return ThreeOfAKind | HandRank(trips)<<8 | HandRank(kickers[0])<<4 | HandRank(kickers[1])
	}

	pairHi := highestWithCount(counts, 2)
	if pairHi >= 0 {
		if pairLo := highestPairBelow(counts, pairHi); pairLo >= 0 {
			kickers := kickerRanks(counts, 1, pairHi, pairLo)
			return TwoPair | HandRank(pairHi)<<8 | HandRank(pairLo)<<4 | HandRank(kickers[0])
		}
		kickers := kickerRanks(counts, 3, pairHi)
		return Pair | HandRank(pairHi)<<12 | HandRank(kickers[0])<<8 | HandRank(kickers[1])<<4 | HandRank(kickers[2])
	}

	kickers := kickerRanks(counts, 5)
	var packed HandRank
	for _, k := range kickers {
		packed = packed<<4 | HandRank(k)
	}
	return HighCard | packed
}

// straightHigh returns the rank index of the highest straight in the
// mask. The wheel (A-2-3-4-5) reports a five-high straight.
func straightHigh(rankMask uint16) (uint8, bool) {
	for high := uint8(12); high >= 4; high-- {
		window := uint16(0x1F) << (high - 4)
		if rankMask&window == window {
			return high, true
		}
	}
	if rankMask&0x100F == 0x100F {
		return 3, true
	}
	return 0, false
}

// highestWithCount finds the highest rank index appearing exactly n times
func highestWithCount(counts [13]uint8, n uint8) int {
	for idx := 12; idx >= 0; idx-- {
		if counts[idx] == n {
			return idx
		}
	}
	return -1
}

// highestPairBelow finds the highest rank index holding at least a
// pair, excluding the given rank. Two sets of trips in seven cards
// rank the lower trips as the full house's pair, which "at least two"
// covers.
func highestPairBelow(counts [13]uint8, except int) int {
	for idx := 12; idx >= 0; idx-- {
		if idx != except && counts[idx] >= 2 {
			return idx
		}
	}
	return -1
}

// kickerRanks returns the top n rank indexes present in counts,
// descending, excluding the used ranks.
func kickerRanks(counts [13]uint8, n int, used ...int) []uint8 {
	out := make([]uint8, 0, n)
	for idx := 12; idx >= 0 && len(out) < n; idx-- {
		if counts[idx] == 0 {
			continue
		}
		skip := false
		for _, u := range used {
			if idx == u {
				skip = true
				break
			}
		}
		if !skip {
			out = append(out, uint8(idx))
		}
	}
	return out
}

// packTop packs the top n set bits of the mask into descending nibbles
func packTop(mask uint16, n int) HandRank {
	var packed HandRank
	found := 0
	for idx := 12; idx >= 0 && found < n; idx-- {
		if mask&(1<<idx) != 0 {
			packed = packed<<4 | HandRank(idx)
			found++
		}
	}
	return packed
}
