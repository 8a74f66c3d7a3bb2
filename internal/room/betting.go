package room

import (
	"fmt"

	"github.com/lox/pokerrooms/internal/ledger"
)

// BettingRound tracks one street's wagering: the bet-to-call level,
// per-seat committed amounts, whose turn it is, and who has acted
// since the last raise. A round is settled exactly when every
// non-folded player has acted since the last raise and every
// non-folded player's committed amount equals the bet-to-call, or that
// player is all-in.
type BettingRound struct {
	seats     []*Seat
	chips     ledger.ChipLedger
	bigBlind  int
	betToCall int
	minRaise  int
	committed map[string]int
	acted     map[string]bool
	turn      int
	onCommit  func(playerID string, amount int)
}

// newBettingRound creates an empty round over the room's seats.
// onCommit observes every chip debit so the room can keep the pot in
// step with commitments.
func newBettingRound(seats []*Seat, chips ledger.ChipLedger, bigBlind int, onCommit func(string, int)) *BettingRound {
	return &BettingRound{
		seats:     seats,
		chips:     chips,
		bigBlind:  bigBlind,
		minRaise:  bigBlind,
		committed: make(map[string]int),
		acted:     make(map[string]bool),
		turn:      -1,
		onCommit:  onCommit,
	}
}

// openPreFlop seeds the round with the already-debited blinds, sets
// bet-to-call to the big blind and puts the turn on the seat after the
// big blind. The blind posters have not "acted": the big blind keeps
// the option to raise when the action comes back around unraised.
func (br *BettingRound) openPreFlop(sbSeat, bbSeat, smallBlind, bigBlind int) {
	br.committed[br.seats[sbSeat].PlayerID] = smallBlind
	br.committed[br.seats[bbSeat].PlayerID] = bigBlind
	br.betToCall = bigBlind
	br.turn = br.nextEligible(bbSeat + 1)
}

// openStreet starts a post-flop round: bet-to-call zero, first
// non-folded seat after the button to act.
func (br *BettingRound) openStreet(button int) {
	br.betToCall = 0
	br.turn = br.nextEligible(button + 1)
}

// BetToCall returns the current bet-to-call level
func (br *BettingRound) BetToCall() int {
	return br.betToCall
}

// Committed returns the amount the player has committed this round
func (br *BettingRound) Committed(playerID string) int {
	return br.committed[playerID]
}

// NextToAct returns the seat index whose turn it is, or -1
func (br *BettingRound) NextToAct() int {
	return br.turn
}

// Apply validates and applies one action for the given seat. Invalid
// actions are rejected without mutating any round or ledger state.
func (br *BettingRound) Apply(seat *Seat, action Action) error {
	if br.turn != seat.Index {
		return ErrNotYourTurn
	}

	pid := seat.PlayerID
	switch action.Type {
	case Check:
		if br.committed[pid] != br.betToCall {
			return fmt.Errorf("%w: cannot check, %d to call", ErrInvalidAction, br.betToCall-br.committed[pid])
		}
		br.acted[pid] = true

	case Call:
		owed := br.betToCall - br.committed[pid]
		if owed < 0 {
			owed = 0
		}
		br.commit(seat, owed)
		br.acted[pid] = true

	case Bet, Raise:
		if action.Amount <= 0 {
			return fmt.Errorf("%w: amount must be positive", ErrInvalidAction)
		}
		avail := br.chips.Balance(pid) + br.committed[pid]
		// A raise must clear the minimum increment unless the player is
		// pushing their whole stack.
		if action.Amount < br.betToCall+br.minRaise && action.Amount < avail {
			return fmt.Errorf("%w: raise to %d below minimum %d", ErrInvalidAction, action.Amount, br.betToCall+br.minRaise)
		}
		level := action.Amount
		if level > avail {
			// Insufficient balance converts to an implicit all-in.
			level = avail
		}
		br.commit(seat, level-br.committed[pid])
		if level > br.betToCall {
			if raiseBy := level - br.betToCall; raiseBy > br.bigBlind {
				br.minRaise = raiseBy
			} else {
				br.minRaise = br.bigBlind
			}
			br.betToCall = level
			// Everyone must respond to the raise.
			br.acted = map[string]bool{pid: true}
		} else {
			br.acted[pid] = true
		}

	case Fold:
		seat.Folded = true

	default:
		return fmt.Errorf("%w: unknown action", ErrInvalidAction)
	}

	br.turn = br.nextEligible(seat.Index + 1)
	return nil
}

// commit debits up to amount from the player, capping at their balance
// and marking them all-in when the balance is exhausted.
func (br *BettingRound) commit(seat *Seat, amount int) {
	bal := br.chips.Balance(seat.PlayerID)
	if amount >= bal {
		amount = bal
		seat.AllIn = true
	}
	if amount > 0 {
		if err := br.chips.Debit(seat.PlayerID, amount); err != nil {
			// Unreachable: amount is capped at the balance and the player
			// acts from a single room at a time.
			return
		}
		br.committed[seat.PlayerID] += amount
		if br.onCommit != nil {
			br.onCommit(seat.PlayerID, amount)
		}
	}
}

// Settled reports whether the round is complete.
func (br *BettingRound) Settled() bool {
	remaining := 0
	active := 0
	for _, s := range br.seats {
		if s.Folded {
			continue
		}
		remaining++
		if !s.AllIn {
			active++
		}
	}
	if remaining <= 1 {
		return true
	}
	// A lone player with chips behind cannot be raised; once they have
	// matched the bet there is nothing left to decide.
	if active <= 1 {
		for _, s := range br.seats {
			if !s.Folded && !s.AllIn && br.committed[s.PlayerID] != br.betToCall {
				return false
			}
		}
		return true
	}
	for _, s := range br.seats {
		if s.Folded || s.AllIn {
			continue
		}
		if !br.acted[s.PlayerID] {
			return false
		}
		if br.committed[s.PlayerID] != br.betToCall {
			return false
		}
	}
	return true
}

// nextEligible finds the next seat from the given index that can still
// act, skipping folded and all-in seats.
func (br *BettingRound) nextEligible(from int) int {
	n := len(br.seats)
	for i := 0; i < n; i++ {
		idx := (from + i) % n
		s := br.seats[idx]
		if !s.Folded && !s.AllIn {
			return idx
		}
	}
	return -1
}

// AvailableActions lists the legal actions for the seat currently to
// act, with the minimum amounts attached.
func (br *BettingRound) AvailableActions() []AvailableAction {
	if br.turn < 0 {
		return nil
	}
	seat := br.seats[br.turn]
	pid := seat.PlayerID
	bal := br.chips.Balance(pid)
	owed := br.betToCall - br.committed[pid]

	actions := []AvailableAction{{Type: Fold.String()}}
	if owed <= 0 {
		actions = append(actions, AvailableAction{Type: Check.String()})
		if bal > 0 {
			actions = append(actions, AvailableAction{Type: Bet.String(), MinAmount: br.minLevel(pid, bal)})
		}
	} else {
		actions = append(actions, AvailableAction{Type: Call.String(), MinAmount: owed})
		if bal > owed {
			actions = append(actions, AvailableAction{Type: Raise.String(), MinAmount: br.minLevel(pid, bal)})
		}
	}
	return actions
}

// minLevel is the lowest legal bet-to-call level for the player,
// capped at their stack (an all-in below the increment is legal).
func (br *BettingRound) minLevel(pid string, bal int) int {
	level := br.betToCall + br.minRaise
	if avail := bal + br.committed[pid]; level > avail {
		level = avail
	}
	return level
}

// snapshot captures the round for persistence.
func (br *BettingRound) snapshot() *RoundSnapshot {
	committed := make(map[string]int, len(br.committed))
	for k, v := range br.committed {
		committed[k] = v
	}
	acted := make([]string, 0, len(br.acted))
	for _, s := range br.seats {
		if br.acted[s.PlayerID] {
			acted = append(acted, s.PlayerID)
		}
	}
	return &RoundSnapshot{
		BetToCall: br.betToCall,
		MinRaise:  br.minRaise,
		Committed: committed,
		Acted:     acted,
		Turn:      br.turn,
	}
}
