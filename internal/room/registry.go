package room

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/google/uuid"

	"github.com/lox/pokerrooms/internal/ledger"
	"github.com/lox/pokerrooms/internal/randutil"
)

// Registry is the matchmaker: it creates rooms, seats joining players
// and keeps a player seated in at most one room at a time. Rooms run
// their own loops; the registry never holds its lock while waiting on
// a room.
type Registry struct {
	logger    *log.Logger
	clock     quartz.Clock
	chips     ledger.ChipLedger
	notifier  Notifier
	store     Store
	directory PlayerDirectory
	params    Params
	ctx       context.Context

	mu     sync.Mutex
	rng    *rand.Rand
	rooms  map[string]*GameRoom
	order  []string // creation order, for stable matchmaking
	seated map[string]string
}

// RegistryDeps are the collaborators injected into a registry.
type RegistryDeps struct {
	Logger    *log.Logger
	Clock     quartz.Clock
	Chips     ledger.ChipLedger
	Notifier  Notifier
	Store     Store
	Directory PlayerDirectory
	RNG       *rand.Rand
}

// NewRegistry creates a registry whose rooms share the given context.
func NewRegistry(ctx context.Context, params Params, deps RegistryDeps) *Registry {
	if deps.Logger == nil {
		deps.Logger = log.Default()
	}
	if deps.Clock == nil {
		deps.Clock = quartz.NewReal()
	}
	if deps.RNG == nil {
		deps.RNG = randutil.New(time.Now().UnixNano())
	}
	return &Registry{
		logger:    deps.Logger.WithPrefix("registry"),
		clock:     deps.Clock,
		chips:     deps.Chips,
		notifier:  deps.Notifier,
		store:     deps.Store,
		directory: deps.Directory,
		params:    params,
		ctx:       ctx,
		rng:       deps.RNG,
		rooms:     make(map[string]*GameRoom),
		seated:    make(map[string]string),
	}
}

// CreateRoom creates a Waiting room seating the creator.
func (reg *Registry) CreateRoom(creatorID, name string) (string, error) {
	if reg.directory != nil && !reg.directory.IsRegistered(creatorID) {
		return "", ErrNotRegistered
	}

	reg.mu.Lock()
	if _, ok := reg.seated[creatorID]; ok {
		reg.mu.Unlock()
		return "", ErrAlreadySeated
	}
	id := uuid.NewString()
	rm := NewGameRoom(reg.ctx, id, reg.params, Deps{
		Logger:   reg.logger,
		Clock:    reg.clock,
		Chips:    reg.chips,
		Notifier: reg.notifier,
		Store:    reg.store,
		RNG:      randutil.New(reg.rng.Int63()),
	})
	rm.onFinished = func(players []string) {
		reg.releaseFinished(id, players)
	}
	rm.Start()
	reg.rooms[id] = rm
	reg.order = append(reg.order, id)
	reg.seated[creatorID] = id
	reg.mu.Unlock()

	if err := rm.Join(creatorID, name); err != nil {
		reg.removeRoom(id)
		return "", err
	}
	reg.logger.Info("room created", "room_id", id, "creator", creatorID)
	return id, nil
}

// JoinRoom seats the caller into the first Waiting room with a free
// seat. Filling the last seat starts the game asynchronously; the join
// returns the room id either way.
func (reg *Registry) JoinRoom(userID, name string) (string, error) {
	if reg.directory != nil && !reg.directory.IsRegistered(userID) {
		return "", ErrNotRegistered
	}

	reg.mu.Lock()
	if _, ok := reg.seated[userID]; ok {
		reg.mu.Unlock()
		return "", ErrAlreadySeated
	}
	// Reserve the player so a concurrent join cannot double-seat them.
	reg.seated[userID] = ""
	candidates := make([]*GameRoom, 0, len(reg.order))
	for _, id := range reg.order {
		if rm, ok := reg.rooms[id]; ok {
			candidates = append(candidates, rm)
		}
	}
	reg.mu.Unlock()

	for _, rm := range candidates {
		if err := rm.Join(userID, name); err == nil {
			reg.mu.Lock()
			reg.seated[userID] = rm.ID()
			reg.mu.Unlock()
			reg.logger.Info("player joined room", "room_id", rm.ID(), "player", userID)
			return rm.ID(), nil
		}
	}

	reg.mu.Lock()
	delete(reg.seated, userID)
	reg.mu.Unlock()
	return "", ErrNoRoomAvailable
}

// LeaveRoom removes the caller from a room that has not started.
func (reg *Registry) LeaveRoom(userID string) error {
	reg.mu.Lock()
	id, ok := reg.seated[userID]
	rm := reg.rooms[id]
	reg.mu.Unlock()
	if !ok || rm == nil {
		return ErrRoomNotFound
	}
	if err := rm.Leave(userID); err != nil {
		return err
	}
	reg.mu.Lock()
	delete(reg.seated, userID)
	reg.mu.Unlock()
	return nil
}

// ListWaitingRooms returns a snapshot of joinable rooms.
func (reg *Registry) ListWaitingRooms() []RoomSummary {
	reg.mu.Lock()
	candidates := make([]*GameRoom, 0, len(reg.order))
	for _, id := range reg.order {
		if rm, ok := reg.rooms[id]; ok {
			candidates = append(candidates, rm)
		}
	}
	reg.mu.Unlock()

	out := make([]RoomSummary, 0, len(candidates))
	for _, rm := range candidates {
		sum, err := rm.Summary()
		if err != nil {
			continue
		}
		if sum.Status == StatusWaiting.String() {
			out = append(out, sum)
		}
	}
	return out
}

// SubmitAction routes an action to the player's room.
func (reg *Registry) SubmitAction(roomID, playerID string, action Action) error {
	reg.mu.Lock()
	rm, ok := reg.rooms[roomID]
	reg.mu.Unlock()
	if !ok {
		return ErrRoomNotFound
	}
	return rm.SubmitAction(playerID, action)
}

// RoomOf returns the id of the room the player is seated in.
func (reg *Registry) RoomOf(playerID string) (string, bool) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	id, ok := reg.seated[playerID]
	return id, ok && id != ""
}

// PlayersInRoom returns the players seated in a room.
func (reg *Registry) PlayersInRoom(roomID string) []string {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	var out []string
	for pid, id := range reg.seated {
		if id == roomID {
			out = append(out, pid)
		}
	}
	return out
}

// DestroyRoom stops a room and unseats its players.
func (reg *Registry) DestroyRoom(roomID string) error {
	reg.mu.Lock()
	_, ok := reg.rooms[roomID]
	reg.mu.Unlock()
	if !ok {
		return ErrRoomNotFound
	}
	reg.removeRoom(roomID)
	return nil
}

// releaseFinished unseats a finished room's players and drops the
// room. Invoked from the room's own loop.
func (reg *Registry) releaseFinished(roomID string, players []string) {
	reg.mu.Lock()
	for _, pid := range players {
		if reg.seated[pid] == roomID {
			delete(reg.seated, pid)
		}
	}
	reg.mu.Unlock()
	reg.removeRoom(roomID)
}

func (reg *Registry) removeRoom(roomID string) {
	reg.mu.Lock()
	rm, ok := reg.rooms[roomID]
	if ok {
		delete(reg.rooms, roomID)
		for i, id := range reg.order {
			if id == roomID {
				reg.order = append(reg.order[:i], reg.order[i+1:]...)
				break
			}
		}
		for pid, id := range reg.seated {
			if id == roomID {
				delete(reg.seated, pid)
			}
		}
	}
	reg.mu.Unlock()
	if ok {
		rm.Stop()
		if reg.store != nil {
			reg.store.Delete(roomID)
		}
	}
}
