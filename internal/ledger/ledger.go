// Package ledger holds the authoritative chip balances. Rooms never
// duplicate balances beyond cached reads; every wager and payout goes
// through a ChipLedger.
package ledger

import (
	"errors"
	"sync"
)

// ErrInsufficientChips is returned when a debit exceeds the balance.
var ErrInsufficientChips = errors.New("insufficient chips")

// ChipLedger is the authoritative balance store. Debit and Credit are
// atomic per call; concurrent rooms share a ledger safely.
type ChipLedger interface {
	Balance(playerID string) int
	Debit(playerID string, amount int) error
	Credit(playerID string, amount int)
}

// MemoryLedger is an in-memory ChipLedger guarded by a mutex.
type MemoryLedger struct {
	mu       sync.Mutex
	balances map[string]int
}

// NewMemoryLedger creates an empty in-memory ledger
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{balances: make(map[string]int)}
}

// SetBalance sets a player's balance, creating the account if needed
func (l *MemoryLedger) SetBalance(playerID string, amount int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[playerID] = amount
}

// Balance returns the player's current balance
func (l *MemoryLedger) Balance(playerID string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[playerID]
}

// Debit removes chips from a player's balance. The whole amount is
// applied or none of it.
func (l *MemoryLedger) Debit(playerID string, amount int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.balances[playerID] < amount {
		return ErrInsufficientChips
	}
	l.balances[playerID] -= amount
	return nil
}

// Credit adds chips to a player's balance
func (l *MemoryLedger) Credit(playerID string, amount int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[playerID] += amount
}
