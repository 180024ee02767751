package ws

import (
	"encoding/json"
	"time"
)

// MessageType represents the type of WebSocket message
type MessageType string

const (
	// Client -> Server messages
	MessageTypeJoinRoom      MessageType = "join_room"
	MessageTypeLeaveRoom     MessageType = "leave_room"
	MessageTypeSendChat      MessageType = "send_chat"
	MessageTypeStartPomodoro MessageType = "start_pomodoro"
	MessageTypeStopPomodoro  MessageType = "stop_pomodoro"
	MessageTypeShareResource MessageType = "share_resource"
	MessageTypeEndRoom       MessageType = "end_room"
	MessageTypePing          MessageType = "ping"

	// Server -> Client messages
	MessageTypeSnapshot        MessageType = "snapshot"
	MessageTypePresenceChanged MessageType = "presence_changed"
	MessageTypeChatPosted      MessageType = "chat_posted"
	MessageTypePhaseChanged    MessageType = "phase_changed"
	MessageTypeResourceShared  MessageType = "resource_shared"
	MessageTypeRoomEnded       MessageType = "room_ended"
	MessageTypeRoomLeft        MessageType = "room_left"
	MessageTypePong            MessageType = "pong"
	MessageTypeError           MessageType = "error"
	MessageTypeAck             MessageType = "ack"
)

// Message represents a WebSocket message
type Message struct {
	Type      MessageType     `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	RequestID string          `json:"request_id,omitempty"`
}

// JoinRoomPayload represents join room payload
type JoinRoomPayload struct {
	RoomID       string `json:"room_id"`
	AccessSecret string `json:"access_secret,omitempty"`
}

// LeaveRoomPayload represents leave room payload
type LeaveRoomPayload struct {
	RoomID string `json:"room_id"`
}

// SendChatPayload represents a chat post payload
type SendChatPayload struct {
	RoomID string `json:"room_id"`
	Body   string `json:"body"`
}

// StartPomodoroPayload represents a timer start payload. Zero durations
// fall back to the room's configured cycle.
type StartPomodoroPayload struct {
	RoomID       string `json:"room_id"`
	WorkMinutes  int    `json:"work_minutes,omitempty"`
	BreakMinutes int    `json:"break_minutes,omitempty"`
}

// StopPomodoroPayload represents a timer stop payload
type StopPomodoroPayload struct {
	RoomID string `json:"room_id"`
}

// ShareResourcePayload represents a shared resource payload
type ShareResourcePayload struct {
	RoomID      string `json:"room_id"`
	ResourceRef string `json:"resource_ref"`
	Title       string `json:"title"`
}

// EndRoomPayload represents an end room payload
type EndRoomPayload struct {
	RoomID string `json:"room_id"`
}

// ErrorPayload represents error message
type ErrorPayload struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// AckPayload represents acknowledgement
type AckPayload struct {
	RequestID string `json:"request_id"`
	Success   bool   `json:"success"`
	Seq       int64  `json:"seq,omitempty"`
	ID        string `json:"id,omitempty"`
}

// NewMessage creates a new message
func NewMessage(msgType MessageType, payload interface{}) (*Message, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return &Message{
		Type:      msgType,
		Payload:   payloadBytes,
		Timestamp: time.Now(),
	}, nil
}

// NewErrorMessage creates a new error message
func NewErrorMessage(code int, message string) (*Message, error) {
	return NewMessage(MessageTypeError, &ErrorPayload{
		Code:    code,
		Message: message,
	})
}

// ParsePayload parses message payload into the given type
func (m *Message) ParsePayload(v interface{}) error {
	return json.Unmarshal(m.Payload, v)
}
