package room

import "fmt"

// ActionType represents a player action
type ActionType int

const (
	Fold ActionType = iota
	Check
	Call
	Bet
	Raise
)

// String returns the string representation of an action type
func (a ActionType) String() string {
	return [...]string{"fold", "check", "call", "bet", "raise"}[a]
}

// ParseActionType parses the wire form of an action type
func ParseActionType(s string) (ActionType, error) {
	switch s {
	case "fold":
		return Fold, nil
	case "check":
		return Check, nil
	case "call":
		return Call, nil
	case "bet":
		return Bet, nil
	case "raise":
		return Raise, nil
	default:
		return 0, fmt.Errorf("%w: unknown action %q", ErrInvalidAction, s)
	}
}

// Action is a player-submitted action. Amount is the new bet-to-call
// level for Bet and Raise and ignored otherwise.
type Action struct {
	Type   ActionType
	Amount int
}
