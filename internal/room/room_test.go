package room

import (
	"context"
	"io"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/pokerrooms/internal/deck"
	"github.com/lox/pokerrooms/internal/ledger"
)

const (
	testDealDelay   = 2 * time.Second
	testStreetDelay = 1 * time.Second
)

// recordingNotifier captures every payload the room emits.
type recordingNotifier struct {
	mu       sync.Mutex
	privates map[string][]PrivateState
	publics  []PublicState
	actions  [][]AvailableAction
	errors   map[string][]string
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{
		privates: make(map[string][]PrivateState),
		errors:   make(map[string][]string),
	}
}

func (n *recordingNotifier) SendPrivate(playerID string, payload PrivateState) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.privates[playerID] = append(n.privates[playerID], payload)
}

func (n *recordingNotifier) SendPublicState(_ string, state PublicState, actions []AvailableAction) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.publics = append(n.publics, state)
	n.actions = append(n.actions, actions)
}

func (n *recordingNotifier) SendError(playerID string, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.errors[playerID] = append(n.errors[playerID], message)
}

func (n *recordingNotifier) errorsFor(playerID string) []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string{}, n.errors[playerID]...)
}

func (n *recordingNotifier) privateCount(playerID string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.privates[playerID])
}

func (n *recordingNotifier) lastPrivate(playerID string) PrivateState {
	n.mu.Lock()
	defer n.mu.Unlock()
	states := n.privates[playerID]
	return states[len(states)-1]
}

func (n *recordingNotifier) lastPublic() PublicState {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.publics[len(n.publics)-1]
}

// lastWinners finds the most recent payload carrying showdown results.
func (n *recordingNotifier) lastWinners() []WinnerState {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i := len(n.publics) - 1; i >= 0; i-- {
		if len(n.publics[i].Winners) > 0 {
			return n.publics[i].Winners
		}
	}
	return nil
}

type roomFixture struct {
	t        *testing.T
	clock    *quartz.Mock
	chips    *ledger.MemoryLedger
	store    *MemoryStore
	notifier *recordingNotifier
	room     *GameRoom
}

func newRoomFixture(t *testing.T, capacity int) *roomFixture {
	t.Helper()
	f := &roomFixture{
		t:        t,
		clock:    quartz.NewMock(t),
		chips:    ledger.NewMemoryLedger(),
		store:    NewMemoryStore(),
		notifier: newRecordingNotifier(),
	}
	f.room = NewGameRoom(context.Background(), "room-1", Params{
		Capacity:    capacity,
		SmallBlind:  5,
		BigBlind:    10,
		DealDelay:   testDealDelay,
		StreetDelay: testStreetDelay,
	}, Deps{
		Logger:   log.New(io.Discard),
		Clock:    f.clock,
		Chips:    f.chips,
		Notifier: f.notifier,
		Store:    f.store,
		RNG:      rand.New(rand.NewSource(1)),
	})
	f.room.Start()
	t.Cleanup(f.room.Stop)
	return f
}

// advance moves the mock clock and then round-trips a command so every
// timer-triggered transition has been applied before returning.
func (f *roomFixture) advance(d time.Duration) {
	f.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	f.clock.Advance(d).MustWait(ctx)
	if _, err := f.room.Summary(); err != nil {
		f.t.Fatalf("room did not respond after advancing clock: %v", err)
	}
}

func (f *roomFixture) seed(balances map[string]int) {
	for pid, bal := range balances {
		f.chips.SetBalance(pid, bal)
	}
}

func (f *roomFixture) snapshot() Snapshot {
	f.t.Helper()
	snap, ok := f.store.Load("room-1")
	require.True(f.t, ok, "room snapshot missing")
	return snap
}

func TestRoomDealsWhenFull(t *testing.T) {
	f := newRoomFixture(t, 2)
	f.seed(map[string]int{"alice": 1000, "bob": 1000})

	require.NoError(t, f.room.Join("alice", "Alice"))
	sum, err := f.room.Summary()
	require.NoError(t, err)
	assert.Equal(t, "waiting", sum.Status)
	assert.Equal(t, 1, sum.Seated)

	require.NoError(t, f.room.Join("bob", "Bob"))
	sum, err = f.room.Summary()
	require.NoError(t, err)
	assert.Equal(t, "dealing", sum.Status, "filling the last seat should start the deal")

	// The hand itself starts only after the deal delay.
	f.advance(testDealDelay)
	snap := f.snapshot()
	assert.Equal(t, StatusBetting, snap.Status)
	assert.Equal(t, PreFlop, snap.Street)
	assert.Equal(t, 15, snap.Pot, "pot should hold both blinds")
	assert.Empty(t, snap.Community)
	assert.Len(t, snap.Remaining, 48, "two hole cards per player dealt")

	// Heads-up with the button on seat 0: bob posts the small blind and
	// acts first, alice posts the big blind.
	assert.Equal(t, 990, f.chips.Balance("alice"))
	assert.Equal(t, 995, f.chips.Balance("bob"))
	require.NotNil(t, snap.Round)
	assert.Equal(t, 10, snap.Round.BetToCall)
	assert.Equal(t, 10, snap.Round.Committed["alice"])
	assert.Equal(t, 5, snap.Round.Committed["bob"])

	state := f.notifier.lastPublic()
	assert.Equal(t, "betting", state.Status)
	assert.Equal(t, "bob", state.ToAct)
	assert.Equal(t, 10, state.BetToCall)

	// Hole cards go out privately, two per player.
	require.Equal(t, 1, f.notifier.privateCount("alice"))
	require.Equal(t, 1, f.notifier.privateCount("bob"))
	assert.Len(t, f.notifier.lastPrivate("alice").HoleCards, 2)
	assert.Len(t, f.notifier.lastPrivate("bob").HoleCards, 2)
	assert.NotEqual(t, f.notifier.lastPrivate("alice").HoleCards, f.notifier.lastPrivate("bob").HoleCards)
}

func TestJoinRules(t *testing.T) {
	f := newRoomFixture(t, 2)
	f.seed(map[string]int{"alice": 1000, "bob": 1000, "carol": 1000})

	require.NoError(t, f.room.Join("alice", "Alice"))
	assert.ErrorIs(t, f.room.Join("alice", "Alice"), ErrAlreadySeated)

	require.NoError(t, f.room.Join("bob", "Bob"))
	assert.ErrorIs(t, f.room.Join("carol", "Carol"), ErrRoomFull)
}

func TestLeaveOnlyWhileWaiting(t *testing.T) {
	f := newRoomFixture(t, 2)
	f.seed(map[string]int{"alice": 1000, "bob": 1000})

	require.NoError(t, f.room.Join("alice", "Alice"))
	require.NoError(t, f.room.Leave("alice"))
	sum, err := f.room.Summary()
	require.NoError(t, err)
	assert.Equal(t, 0, sum.Seated)

	require.NoError(t, f.room.Join("alice", "Alice"))
	require.NoError(t, f.room.Join("bob", "Bob"))
	assert.ErrorIs(t, f.room.Leave("alice"), ErrInvalidState, "leaving a started room is not allowed")
}

func TestActionsRejectedOutsideBetting(t *testing.T) {
	f := newRoomFixture(t, 2)
	f.seed(map[string]int{"alice": 1000, "bob": 1000})

	require.NoError(t, f.room.Join("alice", "Alice"))
	assert.ErrorIs(t, f.room.SubmitAction("alice", Action{Type: Check}), ErrInvalidState)

	require.NoError(t, f.room.Join("bob", "Bob"))
	// Dealing gap: the room is filled but the hand has not started.
	assert.ErrorIs(t, f.room.SubmitAction("alice", Action{Type: Check}), ErrInvalidState)

	f.advance(testDealDelay)
	assert.ErrorIs(t, f.room.SubmitAction("eve", Action{Type: Fold}), ErrNotYourTurn, "unseated player")
	assert.ErrorIs(t, f.room.SubmitAction("alice", Action{Type: Call}), ErrNotYourTurn, "bob acts first heads-up")
}

func TestFoldedPlayerCannotActAgain(t *testing.T) {
	f := newRoomFixture(t, 3)
	f.seed(map[string]int{"alice": 1000, "bob": 1000, "carol": 1000})

	require.NoError(t, f.room.Join("alice", "Alice"))
	require.NoError(t, f.room.Join("bob", "Bob"))
	require.NoError(t, f.room.Join("carol", "Carol"))
	f.advance(testDealDelay)

	// Button 0: bob is small blind, carol big blind, alice first to act.
	require.NoError(t, f.room.SubmitAction("alice", Action{Type: Fold}))
	assert.ErrorIs(t, f.room.SubmitAction("alice", Action{Type: Call}), ErrAlreadyFolded)
}

func TestFoldEndsHandAndRotatesButton(t *testing.T) {
	f := newRoomFixture(t, 2)
	f.seed(map[string]int{"alice": 1000, "bob": 1000})

	require.NoError(t, f.room.Join("alice", "Alice"))
	require.NoError(t, f.room.Join("bob", "Bob"))
	f.advance(testDealDelay)

	// Bob folds to the big blind; alice collects both blinds without a
	// showdown reveal.
	require.NoError(t, f.room.SubmitAction("bob", Action{Type: Fold}))
	assert.Equal(t, 1005, f.chips.Balance("alice"))
	assert.Equal(t, 995, f.chips.Balance("bob"))

	winners := f.notifier.lastWinners()
	require.Len(t, winners, 1)
	assert.Equal(t, "alice", winners[0].PlayerID)
	assert.Equal(t, 15, winners[0].Amount)
	assert.Empty(t, winners[0].Hand, "uncontested pots reveal no hand")

	// The next hand starts with the button rotated: alice now posts the
	// small blind and acts first.
	sum, err := f.room.Summary()
	require.NoError(t, err)
	assert.Equal(t, "dealing", sum.Status)

	f.advance(testDealDelay)
	snap := f.snapshot()
	assert.Equal(t, 1, snap.Button)
	assert.Equal(t, 1000, f.chips.Balance("alice"))
	assert.Equal(t, 985, f.chips.Balance("bob"))
	assert.Equal(t, "alice", f.notifier.lastPublic().ToAct)
	assert.Equal(t, 2, f.notifier.privateCount("alice"), "fresh hole cards each hand")
}

func TestCheckedDownHandReachesShowdown(t *testing.T) {
	f := newRoomFixture(t, 2)
	f.seed(map[string]int{"alice": 1000, "bob": 1000})

	require.NoError(t, f.room.Join("alice", "Alice"))
	require.NoError(t, f.room.Join("bob", "Bob"))
	f.advance(testDealDelay)

	conserved := func() {
		snap, _ := f.store.Load("room-1")
		total := snap.Pot + f.chips.Balance("alice") + f.chips.Balance("bob")
		assert.Equal(t, 2000, total, "chips leaked between pot and balances")
	}

	// Pre-flop: bob completes the small blind, alice checks the option.
	require.NoError(t, f.room.SubmitAction("bob", Action{Type: Call}))
	conserved()
	require.NoError(t, f.room.SubmitAction("alice", Action{Type: Check}))
	conserved()

	// Actions in the street gap are rejected.
	assert.ErrorIs(t, f.room.SubmitAction("bob", Action{Type: Check}), ErrInvalidState)

	streets := []struct {
		name      string
		community int
	}{
		{"flop", 3},
		{"turn", 4},
		{"river", 5},
	}
	for _, street := range streets {
		f.advance(testStreetDelay)
		snap := f.snapshot()
		assert.Len(t, snap.Community, street.community, "community after the %s", street.name)
		assert.Equal(t, street.name, f.notifier.lastPublic().Street)

		// Post-flop the small blind still acts first heads-up.
		require.NoError(t, f.room.SubmitAction("bob", Action{Type: Check}))
		require.NoError(t, f.room.SubmitAction("alice", Action{Type: Check}))
		conserved()
	}

	// Showdown: the pot pays out in full and the next hand is dealt.
	winners := f.notifier.lastWinners()
	require.NotEmpty(t, winners)
	paid := 0
	for _, w := range winners {
		paid += w.Amount
		assert.NotEmpty(t, w.Hand, "contested showdowns reveal the winning hand")
	}
	assert.Equal(t, 20, paid)
	assert.Equal(t, 2000, f.chips.Balance("alice")+f.chips.Balance("bob"))

	sum, err := f.room.Summary()
	require.NoError(t, err)
	assert.Equal(t, "dealing", sum.Status)
}

func TestDealtCardsAreDistinct(t *testing.T) {
	f := newRoomFixture(t, 2)
	f.seed(map[string]int{"alice": 1000, "bob": 1000})

	require.NoError(t, f.room.Join("alice", "Alice"))
	require.NoError(t, f.room.Join("bob", "Bob"))
	f.advance(testDealDelay)

	require.NoError(t, f.room.SubmitAction("bob", Action{Type: Call}))
	require.NoError(t, f.room.SubmitAction("alice", Action{Type: Check}))
	f.advance(testStreetDelay)
	require.NoError(t, f.room.SubmitAction("bob", Action{Type: Check}))
	require.NoError(t, f.room.SubmitAction("alice", Action{Type: Check}))
	f.advance(testStreetDelay)
	require.NoError(t, f.room.SubmitAction("bob", Action{Type: Check}))
	require.NoError(t, f.room.SubmitAction("alice", Action{Type: Check}))
	f.advance(testStreetDelay)

	// At the river: hole cards, board and undealt cards must cover the
	// 52-card deck exactly.
	snap := f.snapshot()
	seen := make(map[string]bool)
	add := func(card string) {
		assert.False(t, seen[card], "card %s appears twice", card)
		seen[card] = true
	}
	for _, c := range f.notifier.lastPrivate("alice").HoleCards {
		add(c)
	}
	for _, c := range f.notifier.lastPrivate("bob").HoleCards {
		add(c)
	}
	for _, c := range snap.Community {
		add(c.String())
	}
	for _, c := range snap.Remaining {
		add(c.String())
	}
	assert.Len(t, seen, deck.Size)
}

func TestBustPlayerFinishesRoom(t *testing.T) {
	f := newRoomFixture(t, 2)
	// Bob's 5 chips all go in on the small blind.
	f.seed(map[string]int{"alice": 1000, "bob": 5})

	var released []string
	f.room.onFinished = func(players []string) { released = players }

	require.NoError(t, f.room.Join("alice", "Alice"))
	require.NoError(t, f.room.Join("bob", "Bob"))
	f.advance(testDealDelay)

	require.NoError(t, f.room.SubmitAction("bob", Action{Type: Fold}))

	assert.Equal(t, 0, f.chips.Balance("bob"))
	assert.Equal(t, 1005, f.chips.Balance("alice"))
	assert.ElementsMatch(t, []string{"alice", "bob"}, released)

	snap := f.snapshot()
	assert.Equal(t, StatusFinished, snap.Status)
	assert.Empty(t, snap.Players)
	assert.Equal(t, "finished", f.notifier.lastPublic().Status)
}

func TestFailedBlindPostRevertsToWaiting(t *testing.T) {
	f := newRoomFixture(t, 2)
	// Alice posts the big blind but cannot cover it; bob's small blind
	// must be returned.
	f.seed(map[string]int{"alice": 8, "bob": 1000})

	require.NoError(t, f.room.Join("alice", "Alice"))
	require.NoError(t, f.room.Join("bob", "Bob"))
	f.advance(testDealDelay)

	sum, err := f.room.Summary()
	require.NoError(t, err)
	assert.Equal(t, "waiting", sum.Status)
	assert.Equal(t, 8, f.chips.Balance("alice"))
	assert.Equal(t, 1000, f.chips.Balance("bob"), "small blind should be refunded")
	assert.Equal(t, 0, f.snapshot().Pot)

	// Both players are told why the hand never started.
	for _, pid := range []string{"alice", "bob"} {
		errs := f.notifier.errorsFor(pid)
		require.Len(t, errs, 1, "player %s should be notified of the cancelled hand", pid)
		assert.Contains(t, errs[0], "blind")
		assert.Contains(t, errs[0], "alice", "the failing player is named")
	}
}

// showdownRoom builds a room positioned at the river, bypassing the
// command loop so payouts can be asserted directly.
func showdownRoom(t *testing.T, chips ledger.ChipLedger, notifier Notifier, pot int, community []deck.Card, seats []*Seat) *GameRoom {
	t.Helper()
	r := &GameRoom{
		id:          "room-x",
		params:      Params{Capacity: len(seats), SmallBlind: 5, BigBlind: 10, DealDelay: testDealDelay, StreetDelay: testStreetDelay},
		logger:      log.New(io.Discard),
		clock:       quartz.NewMock(t),
		chips:       chips,
		notifier:    notifier,
		store:       NewMemoryStore(),
		status:      StatusBetting,
		street:      River,
		community:   community,
		pot:         pot,
		contributed: make(map[string]int),
		seats:       seats,
	}
	return r
}

func TestShowdownPaysBestHand(t *testing.T) {
	chips := ledger.NewMemoryLedger()
	chips.SetBalance("alice", 100)
	chips.SetBalance("bob", 100)
	notifier := newRecordingNotifier()

	community := []deck.Card{
		deck.NewCard(deck.Two, deck.Spades),
		deck.NewCard(deck.Seven, deck.Diamonds),
		deck.NewCard(deck.Nine, deck.Clubs),
		deck.NewCard(deck.Jack, deck.Hearts),
		deck.NewCard(deck.King, deck.Diamonds),
	}
	seats := []*Seat{
		{PlayerID: "alice", Index: 0, HoleCards: []deck.Card{
			deck.NewCard(deck.Ace, deck.Spades), deck.NewCard(deck.Ace, deck.Diamonds),
		}},
		{PlayerID: "bob", Index: 1, HoleCards: []deck.Card{
			deck.NewCard(deck.King, deck.Spades), deck.NewCard(deck.Queen, deck.Spades),
		}},
	}

	r := showdownRoom(t, chips, notifier, 60, community, seats)
	r.showdown()

	// Aces beat kings: alice takes the whole pot.
	assert.Equal(t, 160, chips.Balance("alice"))
	assert.Equal(t, 100, chips.Balance("bob"))

	winners := notifier.lastWinners()
	require.Len(t, winners, 1)
	assert.Equal(t, "alice", winners[0].PlayerID)
	assert.Equal(t, 60, winners[0].Amount)
	assert.Equal(t, "Pair", winners[0].Hand)
}

func TestShowdownSplitsTiesWithOddChipToEarliestSeat(t *testing.T) {
	chips := ledger.NewMemoryLedger()
	chips.SetBalance("alice", 100)
	chips.SetBalance("bob", 100)
	notifier := newRecordingNotifier()

	// The board plays for both: a royal flush on the table.
	community := []deck.Card{
		deck.NewCard(deck.Ace, deck.Spades),
		deck.NewCard(deck.King, deck.Spades),
		deck.NewCard(deck.Queen, deck.Spades),
		deck.NewCard(deck.Jack, deck.Spades),
		deck.NewCard(deck.Ten, deck.Spades),
	}
	seats := []*Seat{
		{PlayerID: "alice", Index: 0, HoleCards: []deck.Card{
			deck.NewCard(deck.Two, deck.Hearts), deck.NewCard(deck.Three, deck.Hearts),
		}},
		{PlayerID: "bob", Index: 1, HoleCards: []deck.Card{
			deck.NewCard(deck.Two, deck.Diamonds), deck.NewCard(deck.Three, deck.Diamonds),
		}},
	}

	r := showdownRoom(t, chips, notifier, 15, community, seats)
	r.showdown()

	// 15 splits 8/7, odd chip to the earliest seat.
	assert.Equal(t, 108, chips.Balance("alice"))
	assert.Equal(t, 107, chips.Balance("bob"))

	winners := notifier.lastWinners()
	require.Len(t, winners, 2)
	assert.Equal(t, "Royal Flush", winners[0].Hand)
	assert.Equal(t, "Royal Flush", winners[1].Hand)
}

func TestShowdownIgnoresFoldedHands(t *testing.T) {
	chips := ledger.NewMemoryLedger()
	chips.SetBalance("alice", 100)
	chips.SetBalance("bob", 100)
	notifier := newRecordingNotifier()

	community := []deck.Card{
		deck.NewCard(deck.Two, deck.Spades),
		deck.NewCard(deck.Seven, deck.Diamonds),
		deck.NewCard(deck.Nine, deck.Clubs),
		deck.NewCard(deck.Jack, deck.Hearts),
		deck.NewCard(deck.King, deck.Diamonds),
	}
	seats := []*Seat{
		// The stronger hand has folded and must not win.
		{PlayerID: "alice", Index: 0, Folded: true, HoleCards: []deck.Card{
			deck.NewCard(deck.Ace, deck.Spades), deck.NewCard(deck.Ace, deck.Diamonds),
		}},
		{PlayerID: "bob", Index: 1, HoleCards: []deck.Card{
			deck.NewCard(deck.Four, deck.Spades), deck.NewCard(deck.Five, deck.Spades),
		}},
	}

	r := showdownRoom(t, chips, notifier, 40, community, seats)
	r.showdown()

	assert.Equal(t, 100, chips.Balance("alice"))
	assert.Equal(t, 140, chips.Balance("bob"))
}
