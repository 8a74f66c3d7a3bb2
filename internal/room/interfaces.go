package room

// Notifier delivers private and public game state to players. All
// calls are fire-and-forget: delivery failure for one player must not
// abort the room's progression.
type Notifier interface {
	SendPrivate(playerID string, payload PrivateState)
	SendPublicState(roomID string, state PublicState, actions []AvailableAction)
	SendError(playerID string, message string)
}

// PlayerDirectory answers whether a player id belongs to a registered
// player. Consulted by the registry before seating anyone.
type PlayerDirectory interface {
	IsRegistered(playerID string) bool
}

// PrivateState is the per-player render payload (hole cards).
type PrivateState struct {
	RoomID    string   `json:"room_id"`
	HoleCards []string `json:"hole_cards"`
}

// SeatState is one seat's public view.
type SeatState struct {
	PlayerID  string `json:"player_id"`
	Name      string `json:"name"`
	Balance   int    `json:"balance"`
	Committed int    `json:"committed"`
	Folded    bool   `json:"folded"`
	AllIn     bool   `json:"all_in"`
}

// WinnerState describes one payout at showdown.
type WinnerState struct {
	PlayerID string `json:"player_id"`
	Amount   int    `json:"amount"`
	Hand     string `json:"hand,omitempty"`
}

// PublicState is the shared render payload emitted on every state change.
type PublicState struct {
	RoomID    string        `json:"room_id"`
	Status    string        `json:"status"`
	Street    string        `json:"street,omitempty"`
	Community []string      `json:"community,omitempty"`
	Pot       int           `json:"pot"`
	BetToCall int           `json:"bet_to_call"`
	ToAct     string        `json:"to_act,omitempty"`
	Seats     []SeatState   `json:"seats"`
	Winners   []WinnerState `json:"winners,omitempty"`
}

// AvailableAction advertises a legal action for the player to act.
// MinAmount is the lowest legal bet-to-call level for bet/raise and
// the amount owed for call.
type AvailableAction struct {
	Type      string `json:"type"`
	MinAmount int    `json:"min_amount,omitempty"`
}
