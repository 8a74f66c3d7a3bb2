package server

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/lox/pokerrooms/internal/room"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 8192
)

// Connection represents a WebSocket connection to a client
type Connection struct {
	conn      *websocket.Conn
	send      chan *Message
	server    *Server
	logger    *log.Logger
	ctx       context.Context
	cancel    context.CancelFunc
	mu        sync.RWMutex
	closeOnce sync.Once
	playerID  string
	name      string
}

// newConnection wraps an upgraded WebSocket connection
func newConnection(conn *websocket.Conn, server *Server, logger *log.Logger) *Connection {
	ctx, cancel := context.WithCancel(context.Background())
	return &Connection{
		conn:   conn,
		send:   make(chan *Message, 256),
		server: server,
		logger: logger.WithPrefix("conn"),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start begins handling the connection
func (c *Connection) Start() {
	go c.writePump()
	go c.readPump()
}

// Close closes the connection
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		err = c.conn.Close()
	})
	return err
}

// SendMessage queues a message for delivery. Delivery is best-effort:
// a full buffer drops the connection rather than blocking the caller.
func (c *Connection) SendMessage(msg *Message) {
	select {
	case c.send <- msg:
	case <-c.ctx.Done():
	default:
		c.logger.Warn("send buffer full, closing connection", "player", c.PlayerID())
		_ = c.Close()
	}
}

// SetPlayer associates this connection with a player
func (c *Connection) SetPlayer(playerID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.playerID = playerID
}

// PlayerID returns the associated player id
func (c *Connection) PlayerID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.playerID
}

// readPump handles incoming messages from the client
func (c *Connection) readPump() {
	defer func() { _ = c.Close() }()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		var msg Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("websocket error", "error", err)
			}
			return
		}
		c.handleMessage(&msg)
	}
}

// writePump handles outgoing messages to the client
func (c *Connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.ctx.Done():
			return
		}
	}
}

// handleMessage dispatches a client message
func (c *Connection) handleMessage(msg *Message) {
	switch msg.Type {
	case MessageTypeAuth:
		var data AuthData
		if err := json.Unmarshal(msg.Data, &data); err != nil || data.PlayerID == "" {
			c.sendError("invalid auth payload")
			return
		}
		c.mu.Lock()
		c.playerID = data.PlayerID
		c.name = data.Name
		c.mu.Unlock()
		balance := c.server.registerPlayer(data.PlayerID, c)
		c.reply(MessageTypeAuthResponse, AuthResponseData{PlayerID: data.PlayerID, Balance: balance})

	case MessageTypeCreateRoom:
		pid, name, ok := c.identity()
		if !ok {
			return
		}
		id, err := c.server.registry.CreateRoom(pid, name)
		if err != nil {
			c.sendError(err.Error())
			return
		}
		c.reply(MessageTypeRoomCreated, RoomRefData{RoomID: id})

	case MessageTypeJoinRoom:
		pid, name, ok := c.identity()
		if !ok {
			return
		}
		id, err := c.server.registry.JoinRoom(pid, name)
		if err != nil {
			c.sendError(err.Error())
			return
		}
		c.reply(MessageTypeRoomJoined, RoomRefData{RoomID: id})

	case MessageTypeLeaveRoom:
		pid, _, ok := c.identity()
		if !ok {
			return
		}
		if err := c.server.registry.LeaveRoom(pid); err != nil {
			c.sendError(err.Error())
			return
		}
		c.reply(MessageTypeRoomLeft, nil)

	case MessageTypeListRooms:
		c.reply(MessageTypeRoomList, RoomListData{Rooms: c.server.registry.ListWaitingRooms()})

	case MessageTypeAction:
		pid, _, ok := c.identity()
		if !ok {
			return
		}
		var data ActionData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError("invalid action payload")
			return
		}
		actionType, err := room.ParseActionType(data.Type)
		if err != nil {
			c.sendError(err.Error())
			return
		}
		roomID, seated := c.server.registry.RoomOf(pid)
		if !seated {
			c.sendError(room.ErrRoomNotFound.Error())
			return
		}
		if err := c.server.registry.SubmitAction(roomID, pid, room.Action{Type: actionType, Amount: data.Amount}); err != nil {
			c.sendError(err.Error())
		}

	default:
		c.sendError("unknown message type")
	}
}

// identity returns the authenticated player, rejecting the message if
// the connection has not authenticated.
func (c *Connection) identity() (pid, name string, ok bool) {
	c.mu.RLock()
	pid, name = c.playerID, c.name
	c.mu.RUnlock()
	if pid == "" {
		c.sendError("not authenticated")
		return "", "", false
	}
	return pid, name, true
}

func (c *Connection) reply(t MessageType, v any) {
	msg, err := NewMessage(t, v)
	if err != nil {
		c.logger.Error("failed to build message", "type", t, "error", err)
		return
	}
	c.SendMessage(msg)
}

func (c *Connection) sendError(text string) {
	c.reply(MessageTypeError, ErrorData{Message: text})
}
