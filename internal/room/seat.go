package room

import "github.com/lox/pokerrooms/internal/deck"

// Seat is one seated player. Seat order is fixed at join time and
// doubles as betting order. Chip balances live in the ledger; a seat
// only carries hand-scoped flags.
type Seat struct {
	PlayerID  string
	Name      string
	Index     int
	HoleCards []deck.Card
	Folded    bool
	AllIn     bool
}

func (s *Seat) resetForHand() {
	s.HoleCards = nil
	s.Folded = false
	s.AllIn = false
}
