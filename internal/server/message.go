package server

import (
	"encoding/json"

	"github.com/lox/pokerrooms/internal/room"
)

// MessageType represents a WebSocket message type
type MessageType string

// WebSocket message type constants
const (
	// Client to server messages
	MessageTypeAuth       MessageType = "auth"
	MessageTypeCreateRoom MessageType = "create_room"
	MessageTypeJoinRoom   MessageType = "join_room"
	MessageTypeLeaveRoom  MessageType = "leave_room"
	MessageTypeListRooms  MessageType = "list_rooms"
	MessageTypeAction     MessageType = "action"

	// Server to client messages
	MessageTypeAuthResponse MessageType = "auth_response"
	MessageTypeRoomCreated  MessageType = "room_created"
	MessageTypeRoomJoined   MessageType = "room_joined"
	MessageTypeRoomLeft     MessageType = "room_left"
	MessageTypeRoomList     MessageType = "room_list"
	MessageTypePrivateState MessageType = "private_state"
	MessageTypeRoomState    MessageType = "room_state"
	MessageTypeError        MessageType = "error"
)

// Message is the wire envelope for all WebSocket traffic.
type Message struct {
	Type MessageType     `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// NewMessage creates a message with a marshaled payload
func NewMessage(t MessageType, v any) (*Message, error) {
	if v == nil {
		return &Message{Type: t}, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return &Message{Type: t, Data: data}, nil
}

// AuthData identifies the connecting player.
type AuthData struct {
	PlayerID string `json:"player_id"`
	Name     string `json:"name"`
}

// AuthResponseData acknowledges authentication.
type AuthResponseData struct {
	PlayerID string `json:"player_id"`
	Balance  int    `json:"balance"`
}

// ActionData is a player-submitted betting action.
type ActionData struct {
	Type   string `json:"type"`
	Amount int    `json:"amount,omitempty"`
}

// RoomRefData carries a room id.
type RoomRefData struct {
	RoomID string `json:"room_id"`
}

// RoomListData lists joinable rooms.
type RoomListData struct {
	Rooms []room.RoomSummary `json:"rooms"`
}

// RoomStateData is the public room view plus the actions available to
// the player whose turn it is.
type RoomStateData struct {
	State   room.PublicState       `json:"state"`
	Actions []room.AvailableAction `json:"actions,omitempty"`
}

// ErrorData reports a rejected request to its sender.
type ErrorData struct {
	Message string `json:"message"`
}
