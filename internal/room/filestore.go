package room

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/lox/pokerrooms/internal/fileutil"
)

// FileStore persists one JSON snapshot file per room. Writes are
// atomic, so an inspector reading the directory never sees a partially
// written snapshot. The store is a mirror of in-memory state; write
// failures are dropped rather than stalling the room.
type FileStore struct {
	mu  sync.Mutex
	dir string
}

// NewFileStore creates a store rooted at dir, creating it if needed
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(roomID string) string {
	return filepath.Join(s.dir, roomID+".json")
}

// Load reads a room's snapshot from disk
func (s *FileStore) Load(roomID string) (Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := os.ReadFile(s.path(roomID))
	if err != nil {
		return Snapshot{}, false
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, false
	}
	return snap, true
}

// Save writes a room's snapshot, replacing any previous one
func (s *FileStore) Save(snap Snapshot) {
	data, err := json.Marshal(snap)
	if err != nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = fileutil.WriteFileAtomic(s.path(snap.RoomID), data, 0o644)
}

// Delete removes a room's snapshot file
func (s *FileStore) Delete(roomID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = os.Remove(s.path(roomID))
}
