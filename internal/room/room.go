// Package room implements the per-table state machine: seating,
// dealing, betting rounds across streets, showdown and pot settlement.
// Each room owns a single serialized inbox; every externally triggered
// mutation is applied one at a time in arrival order, so rooms are
// independent units of concurrency sharing only the chip ledger.
package room

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"

	"github.com/lox/pokerrooms/internal/deck"
	"github.com/lox/pokerrooms/internal/evaluator"
	"github.com/lox/pokerrooms/internal/ledger"
	"github.com/lox/pokerrooms/internal/randutil"
)

// Status represents the room lifecycle state
type Status int

const (
	StatusWaiting Status = iota
	StatusDealing
	StatusBetting
	StatusShowdown
	StatusFinished
)

// String returns the string representation of a status
func (s Status) String() string {
	return [...]string{"waiting", "dealing", "betting", "showdown", "finished"}[s]
}

// Street represents the betting phase of a hand
type Street int

const (
	PreFlop Street = iota
	Flop
	Turn
	River
	Showdown
)

// String returns the string representation of a street
func (s Street) String() string {
	return [...]string{"preflop", "flop", "turn", "river", "showdown"}[s]
}

// HandResult pairs a player with their evaluated hand strength.
type HandResult struct {
	PlayerID string
	Rank     evaluator.HandRank
}

// Params are the fixed table parameters for a room.
type Params struct {
	Capacity    int
	SmallBlind  int
	BigBlind    int
	DealDelay   time.Duration
	StreetDelay time.Duration
}

// Deps are the collaborators injected into a room.
type Deps struct {
	Logger   *log.Logger
	Clock    quartz.Clock
	Chips    ledger.ChipLedger
	Notifier Notifier
	Store    Store
	RNG      *rand.Rand
}

// GameRoom is the per-table state machine. All fields below the
// command channel are owned by the room's loop goroutine and must only
// be touched from there.
type GameRoom struct {
	id     string
	params Params

	logger   *log.Logger
	clock    quartz.Clock
	chips    ledger.ChipLedger
	notifier Notifier
	store    Store
	rng      *rand.Rand

	ctx      context.Context
	cancel   context.CancelFunc
	commands chan func()

	seats       []*Seat
	button      int
	status      Status
	street      Street
	community   []deck.Card
	pot         int
	contributed map[string]int
	deck        *deck.Deck
	round       *BettingRound
	pending     *quartz.Timer

	// onFinished is invoked from the loop when the room finishes and
	// its players are unseated.
	onFinished func(players []string)
}

// NewGameRoom creates a Waiting room. Start must be called before any
// other method.
func NewGameRoom(ctx context.Context, id string, params Params, deps Deps) *GameRoom {
	if deps.Clock == nil {
		deps.Clock = quartz.NewReal()
	}
	if deps.Logger == nil {
		deps.Logger = log.Default()
	}
	if deps.RNG == nil {
		deps.RNG = randutil.New(time.Now().UnixNano())
	}
	ctx, cancel := context.WithCancel(ctx)

	return &GameRoom{
		id:          id,
		params:      params,
		logger:      deps.Logger.WithPrefix("room").With("room_id", id),
		clock:       deps.Clock,
		chips:       deps.Chips,
		notifier:    deps.Notifier,
		store:       deps.Store,
		rng:         deps.RNG,
		ctx:         ctx,
		cancel:      cancel,
		commands:    make(chan func()),
		status:      StatusWaiting,
		contributed: make(map[string]int),
	}
}

// ID returns the room id
func (r *GameRoom) ID() string {
	return r.id
}

// Start launches the room's loop goroutine
func (r *GameRoom) Start() {
	go r.run()
}

// Stop cancels the room's loop and any pending pacing timer
func (r *GameRoom) Stop() {
	r.cancel()
}

func (r *GameRoom) run() {
	for {
		select {
		case cmd := <-r.commands:
			cmd()
		case <-r.ctx.Done():
			if r.pending != nil {
				r.pending.Stop()
			}
			return
		}
	}
}

// do applies fn on the room's loop and returns its result. A stopped
// room reports ErrRoomNotFound.
func (r *GameRoom) do(fn func() error) error {
	reply := make(chan error, 1)
	select {
	case r.commands <- func() { reply <- fn() }:
		// The loop accepted the command, so the reply is guaranteed even
		// if fn itself stops the room.
		return <-reply
	case <-r.ctx.Done():
		return ErrRoomNotFound
	}
}

// enqueue posts fn to the loop without waiting for a result. Used by
// pacing timers.
func (r *GameRoom) enqueue(fn func()) {
	select {
	case r.commands <- fn:
	case <-r.ctx.Done():
	}
}

// schedule arms the room's pacing timer, replacing any previous one.
func (r *GameRoom) schedule(d time.Duration, fn func()) {
	if r.pending != nil {
		r.pending.Stop()
	}
	r.pending = r.clock.AfterFunc(d, func() {
		r.enqueue(fn)
	})
}

// RoomSummary is the matchmaking view of a room.
type RoomSummary struct {
	RoomID   string `json:"room_id"`
	Seated   int    `json:"seated"`
	Capacity int    `json:"capacity"`
	Status   string `json:"status"`
}

// Summary returns the room's matchmaking snapshot
func (r *GameRoom) Summary() (RoomSummary, error) {
	var sum RoomSummary
	err := r.do(func() error {
		sum = RoomSummary{
			RoomID:   r.id,
			Seated:   len(r.seats),
			Capacity: r.params.Capacity,
			Status:   r.status.String(),
		}
		return nil
	})
	return sum, err
}

// Join seats a player. Filling the last seat transitions the room to
// Dealing; the hand itself starts asynchronously after the deal delay.
func (r *GameRoom) Join(playerID, name string) error {
	return r.do(func() error {
		if r.status != StatusWaiting {
			return ErrRoomFull
		}
		for _, s := range r.seats {
			if s.PlayerID == playerID {
				return ErrAlreadySeated
			}
		}
		if len(r.seats) >= r.params.Capacity {
			return ErrRoomFull
		}
		r.seats = append(r.seats, &Seat{
			PlayerID: playerID,
			Name:     name,
			Index:    len(r.seats),
		})
		r.logger.Info("player seated", "player", playerID, "seated", len(r.seats), "capacity", r.params.Capacity)
		if len(r.seats) == r.params.Capacity {
			r.beginDealing()
		}
		r.save()
		r.notifyPublic(nil)
		return nil
	})
}

// Leave removes a player from a room that has not started dealing.
func (r *GameRoom) Leave(playerID string) error {
	return r.do(func() error {
		if r.status != StatusWaiting {
			return ErrInvalidState
		}
		for i, s := range r.seats {
			if s.PlayerID == playerID {
				r.seats = append(r.seats[:i], r.seats[i+1:]...)
				for j, seat := range r.seats {
					seat.Index = j
				}
				r.save()
				r.notifyPublic(nil)
				return nil
			}
		}
		return ErrNotYourTurn
	})
}

// SubmitAction routes a player action to the active betting round.
func (r *GameRoom) SubmitAction(playerID string, action Action) error {
	return r.do(func() error {
		return r.handleAction(playerID, action)
	})
}

func (r *GameRoom) handleAction(playerID string, action Action) error {
	if r.status != StatusBetting || r.round == nil {
		return ErrInvalidState
	}
	seat := r.seatOf(playerID)
	if seat == nil {
		return ErrNotYourTurn
	}
	if seat.Folded {
		return ErrAlreadyFolded
	}
	if err := r.round.Apply(seat, action); err != nil {
		return err
	}
	r.logger.Debug("action applied",
		"player", playerID, "action", action.Type, "amount", action.Amount,
		"pot", r.pot, "bet_to_call", r.round.BetToCall())
	r.save()

	if r.countUnfolded() == 1 {
		r.showdown()
		return nil
	}
	if r.round.Settled() {
		if r.street == River {
			r.showdown()
			return nil
		}
		// Pause before revealing the next street; actions in the gap are
		// rejected as InvalidState.
		r.round = nil
		r.notifyPublic(nil)
		r.schedule(r.params.StreetDelay, r.advanceStreet)
		return nil
	}
	r.notifyPublic(nil)
	return nil
}

// beginDealing moves a filled room towards its first (or next) hand.
func (r *GameRoom) beginDealing() {
	r.status = StatusDealing
	r.schedule(r.params.DealDelay, r.beginHand)
}

// beginHand shuffles, deals hole cards, posts blinds and opens the
// pre-flop betting round.
func (r *GameRoom) beginHand() {
	if r.status != StatusDealing {
		return
	}
	if len(r.seats) < 2 {
		r.logger.Warn("cannot deal", "error", ErrInsufficientPlayers)
		r.status = StatusWaiting
		r.save()
		r.notifyPublic(nil)
		return
	}

	for _, s := range r.seats {
		s.resetForHand()
	}
	r.community = nil
	r.pot = 0
	r.contributed = make(map[string]int)
	r.deck = deck.New(r.rng)
	for _, s := range r.seats {
		s.HoleCards = r.deck.Deal(2)
	}

	n := len(r.seats)
	sb := (r.button + 1) % n
	bb := (r.button + 2) % n

	// Post both blinds or neither.
	if err := r.chips.Debit(r.seats[sb].PlayerID, r.params.SmallBlind); err != nil {
		r.abortDeal(r.seats[sb].PlayerID, err)
		return
	}
	if err := r.chips.Debit(r.seats[bb].PlayerID, r.params.BigBlind); err != nil {
		r.chips.Credit(r.seats[sb].PlayerID, r.params.SmallBlind)
		r.abortDeal(r.seats[bb].PlayerID, err)
		return
	}
	r.pot = r.params.SmallBlind + r.params.BigBlind
	r.contributed[r.seats[sb].PlayerID] = r.params.SmallBlind
	r.contributed[r.seats[bb].PlayerID] = r.params.BigBlind

	r.street = PreFlop
	r.round = newBettingRound(r.seats, r.chips, r.params.BigBlind, r.addToPot)
	r.round.openPreFlop(sb, bb, r.params.SmallBlind, r.params.BigBlind)
	r.status = StatusBetting

	r.logger.Info("hand dealt",
		"players", n, "button", r.button, "pot", r.pot,
		"small_blind", r.seats[sb].PlayerID, "big_blind", r.seats[bb].PlayerID)

	for _, s := range r.seats {
		r.notifier.SendPrivate(s.PlayerID, PrivateState{
			RoomID:    r.id,
			HoleCards: cardStrings(s.HoleCards),
		})
	}
	r.save()
	r.notifyPublic(nil)
}

// abortDeal reverts a failed blind post: the hand never started, the
// room returns to Waiting and players are told why.
func (r *GameRoom) abortDeal(playerID string, err error) {
	r.logger.Warn("blind post failed, reverting to waiting", "player", playerID, "error", err)
	r.status = StatusWaiting
	r.pot = 0
	r.contributed = make(map[string]int)
	r.deck = nil
	for _, s := range r.seats {
		s.resetForHand()
	}
	if r.notifier != nil {
		msg := fmt.Sprintf("hand cancelled: %s could not post a blind", playerID)
		for _, s := range r.seats {
			r.notifier.SendError(s.PlayerID, msg)
		}
	}
	r.save()
	r.notifyPublic(nil)
}

func (r *GameRoom) addToPot(playerID string, amount int) {
	r.pot += amount
	r.contributed[playerID] += amount
}

// advanceStreet reveals the next street's community cards and opens a
// fresh betting round.
func (r *GameRoom) advanceStreet() {
	if r.status != StatusBetting {
		return
	}
	switch r.street {
	case PreFlop:
		r.street = Flop
		r.community = append(r.community, r.deck.Deal(3)...)
	case Flop:
		r.street = Turn
		r.community = append(r.community, r.deck.Deal(1)...)
	case Turn:
		r.street = River
		r.community = append(r.community, r.deck.Deal(1)...)
	default:
		return
	}

	r.round = newBettingRound(r.seats, r.chips, r.params.BigBlind, r.addToPot)
	r.round.openStreet(r.button)
	r.logger.Debug("street revealed", "street", r.street, "community", cardStrings(r.community))

	if r.round.Settled() || r.round.NextToAct() == -1 {
		// Everyone left is all-in: keep running out the board.
		r.round = nil
		r.save()
		r.notifyPublic(nil)
		if r.street == River {
			r.showdown()
			return
		}
		r.schedule(r.params.StreetDelay, r.advanceStreet)
		return
	}
	r.save()
	r.notifyPublic(nil)
}

// showdown resolves the hand: uncontested pots go to the last player
// standing, otherwise hands are evaluated and the pot is split among
// the best, remainder to the earliest tied seat.
func (r *GameRoom) showdown() {
	r.status = StatusShowdown
	r.street = Showdown
	r.round = nil

	survivors := make([]*Seat, 0, len(r.seats))
	for _, s := range r.seats {
		if !s.Folded {
			survivors = append(survivors, s)
		}
	}

	var winners []WinnerState
	switch {
	case len(survivors) == 0:
		// Cannot happen: folds leave at least one player.
		r.logger.Error("no survivors at showdown, aborting hand")
		r.abortHand()
		return
	case len(survivors) == 1:
		winners = []WinnerState{{PlayerID: survivors[0].PlayerID, Amount: r.pot}}
	default:
		results := make([]HandResult, len(survivors))
		best := evaluator.HandRank(0)
		for i, s := range survivors {
			cards := append(append([]deck.Card{}, s.HoleCards...), r.community...)
			results[i] = HandResult{PlayerID: s.PlayerID, Rank: evaluator.Evaluate(cards)}
			if results[i].Rank > best {
				best = results[i].Rank
			}
		}
		tied := 0
		for _, res := range results {
			if res.Rank == best {
				tied++
			}
		}
		share := r.pot / tied
		remainder := r.pot % tied
		for _, res := range results {
			if res.Rank != best {
				continue
			}
			amount := share
			if remainder > 0 {
				// Earliest-position tied winner takes the odd chips.
				amount += remainder
				remainder = 0
			}
			winners = append(winners, WinnerState{
				PlayerID: res.PlayerID,
				Amount:   amount,
				Hand:     res.Rank.String(),
			})
		}
	}

	total := 0
	for _, w := range winners {
		total += w.Amount
	}
	if total != r.pot {
		r.logger.Error("pot mismatch at payout, aborting hand", "pot", r.pot, "payout", total)
		r.abortHand()
		return
	}
	for _, w := range winners {
		r.chips.Credit(w.PlayerID, w.Amount)
	}
	r.logger.Info("hand resolved", "pot", r.pot, "winners", len(winners))

	r.save()
	r.notifyPublic(winners)
	r.finishHand()
}

// abortHand handles a detected invariant violation: refund every
// contribution, reset the hand and carry on with the next one.
func (r *GameRoom) abortHand() {
	for pid, amount := range r.contributed {
		r.chips.Credit(pid, amount)
	}
	r.resetHand()
	r.beginDealing()
	r.save()
	r.notifyPublic(nil)
}

// finishHand resets hand-scoped state and either rotates the button
// into the next hand or finishes the room when a player is bust.
func (r *GameRoom) finishHand() {
	bust := false
	for _, s := range r.seats {
		if r.chips.Balance(s.PlayerID) <= 0 {
			bust = true
			break
		}
	}
	if bust {
		players := make([]string, len(r.seats))
		for i, s := range r.seats {
			players[i] = s.PlayerID
		}
		r.logger.Info("room finished", "players", len(players))
		r.resetHand()
		r.seats = nil
		r.status = StatusFinished
		r.save()
		r.notifyPublic(nil)
		if r.onFinished != nil {
			r.onFinished(players)
		}
		return
	}

	r.resetHand()
	r.button = (r.button + 1) % len(r.seats)
	r.beginDealing()
	r.save()
	r.notifyPublic(nil)
}

// resetHand clears hand-scoped fields.
func (r *GameRoom) resetHand() {
	r.community = nil
	r.pot = 0
	r.contributed = make(map[string]int)
	r.deck = nil
	r.round = nil
	for _, s := range r.seats {
		s.resetForHand()
	}
}

func (r *GameRoom) seatOf(playerID string) *Seat {
	for _, s := range r.seats {
		if s.PlayerID == playerID {
			return s
		}
	}
	return nil
}

func (r *GameRoom) countUnfolded() int {
	n := 0
	for _, s := range r.seats {
		if !s.Folded {
			n++
		}
	}
	return n
}

// save persists the room snapshot.
func (r *GameRoom) save() {
	if r.store == nil {
		return
	}
	snap := Snapshot{
		RoomID:    r.id,
		Status:    r.status,
		Button:    r.button,
		Street:    r.street,
		Community: append([]deck.Card{}, r.community...),
		Pot:       r.pot,
	}
	for _, s := range r.seats {
		snap.Players = append(snap.Players, s.PlayerID)
		if s.Folded {
			snap.Folded = append(snap.Folded, s.PlayerID)
		}
	}
	if r.deck != nil {
		snap.Remaining = r.deck.Remaining()
	}
	if r.round != nil {
		snap.Round = r.round.snapshot()
	}
	r.store.Save(snap)
}

// notifyPublic emits the shared render payload, with available actions
// for the player to act.
func (r *GameRoom) notifyPublic(winners []WinnerState) {
	if r.notifier == nil {
		return
	}
	state := PublicState{
		RoomID:    r.id,
		Status:    r.status.String(),
		Pot:       r.pot,
		Community: cardStrings(r.community),
		Winners:   winners,
	}
	if r.status == StatusBetting || r.status == StatusShowdown {
		state.Street = r.street.String()
	}
	var actions []AvailableAction
	if r.round != nil {
		state.BetToCall = r.round.BetToCall()
		if turn := r.round.NextToAct(); turn >= 0 {
			state.ToAct = r.seats[turn].PlayerID
		}
		actions = r.round.AvailableActions()
	}
	for _, s := range r.seats {
		seatState := SeatState{
			PlayerID: s.PlayerID,
			Name:     s.Name,
			Balance:  r.chips.Balance(s.PlayerID),
			Folded:   s.Folded,
			AllIn:    s.AllIn,
		}
		if r.round != nil {
			seatState.Committed = r.round.Committed(s.PlayerID)
		}
		state.Seats = append(state.Seats, seatState)
	}
	r.notifier.SendPublicState(r.id, state, actions)
}

func cardStrings(cards []deck.Card) []string {
	out := make([]string, len(cards))
	for i, c := range cards {
		out[i] = c.String()
	}
	return out
}
