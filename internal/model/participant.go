package model

import "time"

// ParticipantEntry is one participant's membership history in a room.
// Entries are kept after leave (IsActive=false) for audit and stats; at most
// one active entry exists per user per room, a re-join reactivates it.
type ParticipantEntry struct {
	ID          string    `db:"id" json:"id"`
	RoomID      string    `db:"room_id" json:"room_id"`
	UserID      string    `db:"user_id" json:"user_id"`
	DisplayName string    `db:"display_name" json:"display_name"`
	JoinedAt    time.Time `db:"joined_at" json:"joined_at"`
	IsActive    bool      `db:"is_active" json:"is_active"`
}
