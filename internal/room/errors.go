package room

import "errors"

// Error kinds surfaced to callers. Rejected actions never mutate room
// state; they are reported to the submitting player only.
var (
	ErrRoomNotFound        = errors.New("room not found")
	ErrRoomFull            = errors.New("room is full")
	ErrInvalidState        = errors.New("room is not accepting actions")
	ErrNotYourTurn         = errors.New("not your turn")
	ErrAlreadyFolded       = errors.New("already folded")
	ErrInvalidAction       = errors.New("invalid action")
	ErrInsufficientPlayers = errors.New("not enough players seated")
	ErrAlreadySeated       = errors.New("already seated in a room")
	ErrNoRoomAvailable     = errors.New("no room available")
	ErrNotRegistered       = errors.New("player is not registered")
)
