package room

import (
	"sync"

	"github.com/lox/pokerrooms/internal/deck"
)

// Snapshot is the persisted room record: everything needed to inspect
// or restore a room mid-hand. Structured collections throughout, no
// serialized strings.
type Snapshot struct {
	RoomID    string
	Status    Status
	Players   []string // seat order = betting order
	Button    int
	Street    Street
	Community []deck.Card
	Pot       int
	Remaining []deck.Card
	Folded    []string
	Round     *RoundSnapshot
}

// RoundSnapshot captures the active betting round, if any.
type RoundSnapshot struct {
	BetToCall int
	MinRaise  int
	Committed map[string]int
	Acted     []string
	Turn      int
}

// Store persists room snapshots. Rooms save after every applied
// mutation; the storage technology behind the interface is out of
// scope here.
type Store interface {
	Load(roomID string) (Snapshot, bool)
	Save(snap Snapshot)
	Delete(roomID string)
}

// MemoryStore is an in-memory Store.
type MemoryStore struct {
	mu    sync.RWMutex
	rooms map[string]Snapshot
}

// NewMemoryStore creates an empty memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rooms: make(map[string]Snapshot)}
}

// Load returns the snapshot for a room id
func (s *MemoryStore) Load(roomID string) (Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.rooms[roomID]
	return snap, ok
}

// Save stores a snapshot, replacing any previous one
func (s *MemoryStore) Save(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rooms[snap.RoomID] = snap
}

// Delete removes a room's snapshot
func (s *MemoryStore) Delete(roomID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rooms, roomID)
}
