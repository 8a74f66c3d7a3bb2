package deck

import "math/rand"

// Size is the number of cards in a standard deck.
const Size = 52

// Deck is an ordered sequence of the 52 distinct cards, consumed from
// the front as cards are dealt. The union of dealt cards and remaining
// cards is always exactly the 52-card set.
type Deck struct {
	cards [Size]Card
	next  int
	rng   *rand.Rand
}

// New creates a shuffled 52-card deck using the given RNG. Passing an
// explicit RNG keeps shuffles deterministic under test.
func New(rng *rand.Rand) *Deck {
	d := &Deck{rng: rng}

	i := 0
	for suit := Spades; suit <= Clubs; suit++ {
		for rank := Two; rank <= Ace; rank++ {
			d.cards[i] = NewCard(rank, suit)
			i++
		}
	}

	d.Shuffle()
	return d
}

// Shuffle rewinds the deck and shuffles with Fisher-Yates, giving every
// permutation equal probability.
func (d *Deck) Shuffle() {
	d.next = 0
	for i := len(d.cards) - 1; i > 0; i-- {
		var j int
		if d.rng != nil {
			j = d.rng.Intn(i + 1)
		} else {
			j = rand.Intn(i + 1)
		}
		d.cards[i], d.cards[j] = d.cards[j], d.cards[i]
	}
}

// Deal removes and returns the next n cards, or nil if fewer remain.
func (d *Deck) Deal(n int) []Card {
	if d.next+n > len(d.cards) {
		return nil
	}
	cards := make([]Card, n)
	copy(cards, d.cards[d.next:d.next+n])
	d.next += n
	return cards
}

// DealOne deals a single card from the deck
func (d *Deck) DealOne() (Card, bool) {
	if d.next >= len(d.cards) {
		return Card{}, false
	}
	card := d.cards[d.next]
	d.next++
	return card, true
}

// Remaining returns the cards not yet dealt, in order.
func (d *Deck) Remaining() []Card {
	out := make([]Card, len(d.cards)-d.next)
	copy(out, d.cards[d.next:])
	return out
}

// CardsRemaining returns the number of cards left in the deck
func (d *Deck) CardsRemaining() int {
	return len(d.cards) - d.next
}
