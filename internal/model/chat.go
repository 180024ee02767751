package model

import "time"

// ChatMessage is one entry in a room's append-only chat log. Seq is
// strictly increasing per room and never reused; all consumers order by it,
// not by wall-clock time. AuthorName is snapshotted at send time and is
// immune to later profile renames.
type ChatMessage struct {
	RoomID     string    `db:"room_id" json:"room_id"`
	Seq        int64     `db:"seq" json:"seq"`
	AuthorID   string    `db:"author_id" json:"author_id"`
	AuthorName string    `db:"author_name" json:"author_name"`
	Body       string    `db:"body" json:"body"`
	SentAt     time.Time `db:"sent_at" json:"sent_at"`
}
