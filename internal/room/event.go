package room

import (
	"time"

	"github.com/go-demo/studyroom/internal/model"
)

// EventType represents the type of a room event
type EventType string

const (
	EventSnapshot        EventType = "snapshot"
	EventPresenceChanged EventType = "presence_changed"
	EventChatPosted      EventType = "chat_posted"
	EventPhaseChanged    EventType = "phase_changed"
	EventResourceShared  EventType = "resource_shared"
	EventRoomEnded       EventType = "room_ended"
)

// Event is a single ordered change notification emitted by a Coordinator.
// Events for one room are emitted in the order the operations were applied.
type Event struct {
	Type      EventType   `json:"type"`
	RoomID    string      `json:"room_id"`
	Payload   interface{} `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
}

// EventSink receives coordinator events for delivery to subscribers.
// Publish must not block; the coordinator calls it while holding the
// room's serialization lock.
type EventSink interface {
	Publish(roomID string, evt *Event)
}

// PresenceChangedPayload carries a join or leave
type PresenceChangedPayload struct {
	ParticipantID string    `json:"participant_id"`
	DisplayName   string    `json:"display_name"`
	Joined        bool      `json:"joined"`
	ActiveCount   int       `json:"active_count"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// PhaseChangedPayload carries a pomodoro transition. Clients derive their
// own countdown from the anchor and durations; the server never pushes ticks.
type PhaseChangedPayload struct {
	State model.PomodoroState `json:"state"`
}

// RoomEndedPayload carries the final stats snapshot
type RoomEndedPayload struct {
	EndedAt time.Time       `json:"ended_at"`
	Stats   model.RoomStats `json:"stats"`
}
