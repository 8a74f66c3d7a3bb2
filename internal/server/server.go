// Package server is the WebSocket transport adapter: it upgrades
// connections, parses the wire protocol and forwards player commands
// into the room registry. It also implements the room package's
// Notifier and PlayerDirectory interfaces, so game state flows back
// out over the same connections.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/lox/pokerrooms/internal/ledger"
	"github.com/lox/pokerrooms/internal/room"
)

// Server accepts WebSocket clients and bridges them to the registry.
type Server struct {
	addr     string
	upgrader websocket.Upgrader
	logger   *log.Logger
	chips    ledger.ChipLedger
	buyIn    int
	registry *room.Registry

	ctx    context.Context
	cancel context.CancelFunc
	http   *http.Server

	mu          sync.RWMutex
	connections map[*Connection]bool
	byPlayer    map[string]*Connection
	registered  map[string]bool
}

// NewServer creates a WebSocket server. First-time players are seeded
// with the configured buy-in on authentication.
func NewServer(addr string, chips ledger.ChipLedger, buyIn int, logger *log.Logger) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		addr: addr,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// For development, allow all origins
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		logger:      logger.WithPrefix("server"),
		chips:       chips,
		buyIn:       buyIn,
		ctx:         ctx,
		cancel:      cancel,
		connections: make(map[*Connection]bool),
		byPlayer:    make(map[string]*Connection),
		registered:  make(map[string]bool),
	}
}

// SetRegistry wires the registry. Must be called before Start; the
// registry itself is constructed with this server as its Notifier and
// PlayerDirectory.
func (s *Server) SetRegistry(reg *room.Registry) {
	s.registry = reg
}

// Start serves WebSocket upgrades until Stop is called
func (s *Server) Start() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", s.handleHealth)

	s.http = &http.Server{Addr: s.addr, Handler: mux}
	s.logger.Info("starting websocket server", "addr", s.addr)
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop shuts the server down and closes all connections
func (s *Server) Stop() error {
	s.cancel()
	s.mu.Lock()
	for conn := range s.connections {
		_ = conn.Close()
	}
	s.mu.Unlock()
	if s.http != nil {
		return s.http.Shutdown(context.Background())
	}
	return nil
}

// handleWebSocket handles WebSocket upgrade requests
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("failed to upgrade connection", "error", err)
		return
	}

	client := newConnection(conn, s, s.logger)
	s.mu.Lock()
	s.connections[client] = true
	total := len(s.connections)
	s.mu.Unlock()
	s.logger.Info("client connected", "total", total)

	client.Start()

	go func() {
		<-client.ctx.Done()
		s.dropConnection(client)
	}()
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprint(w, "OK")
}

func (s *Server) dropConnection(c *Connection) {
	s.mu.Lock()
	delete(s.connections, c)
	if pid := c.PlayerID(); pid != "" && s.byPlayer[pid] == c {
		delete(s.byPlayer, pid)
	}
	total := len(s.connections)
	s.mu.Unlock()
	s.logger.Info("client disconnected", "total", total)
}

// registerPlayer records an authenticated player, seeds a first-time
// balance and returns the current one.
func (s *Server) registerPlayer(playerID string, c *Connection) int {
	s.mu.Lock()
	first := !s.registered[playerID]
	s.registered[playerID] = true
	s.byPlayer[playerID] = c
	s.mu.Unlock()

	if first && s.chips.Balance(playerID) == 0 {
		s.chips.Credit(playerID, s.buyIn)
		s.logger.Info("seeded new player", "player", playerID, "buy_in", s.buyIn)
	}
	return s.chips.Balance(playerID)
}

// IsRegistered implements room.PlayerDirectory
func (s *Server) IsRegistered(playerID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.registered[playerID]
}

// SendPrivate implements room.Notifier
func (s *Server) SendPrivate(playerID string, payload room.PrivateState) {
	s.mu.RLock()
	conn := s.byPlayer[playerID]
	s.mu.RUnlock()
	if conn == nil {
		return
	}
	msg, err := NewMessage(MessageTypePrivateState, payload)
	if err != nil {
		s.logger.Error("failed to build private state", "error", err)
		return
	}
	conn.SendMessage(msg)
}

// SendError implements room.Notifier
func (s *Server) SendError(playerID string, message string) {
	s.mu.RLock()
	conn := s.byPlayer[playerID]
	s.mu.RUnlock()
	if conn == nil {
		return
	}
	msg, err := NewMessage(MessageTypeError, ErrorData{Message: message})
	if err != nil {
		s.logger.Error("failed to build error message", "error", err)
		return
	}
	conn.SendMessage(msg)
}

// SendPublicState implements room.Notifier. Delivery is fire and
// forget: a missing or slow connection never stalls the room.
func (s *Server) SendPublicState(roomID string, state room.PublicState, actions []room.AvailableAction) {
	msg, err := NewMessage(MessageTypeRoomState, RoomStateData{State: state, Actions: actions})
	if err != nil {
		s.logger.Error("failed to build room state", "error", err)
		return
	}
	for _, pid := range s.registry.PlayersInRoom(roomID) {
		s.mu.RLock()
		conn := s.byPlayer[pid]
		s.mu.RUnlock()
		if conn != nil {
			conn.SendMessage(msg)
		}
	}
}
