package model

import "time"

// SharedResource is one entry in a room's append-only resource annex.
// The referenced resource lives in external storage; the annex holds the
// reference and its attribution only. Entries are never mutated or
// reordered, and the same reference may appear more than once with
// different sharers.
type SharedResource struct {
	ID          string    `db:"id" json:"id"`
	RoomID      string    `db:"room_id" json:"room_id"`
	SharerID    string    `db:"sharer_id" json:"sharer_id"`
	SharerName  string    `db:"sharer_name" json:"sharer_name"`
	ResourceRef string    `db:"resource_ref" json:"resource_ref"`
	Title       string    `db:"title" json:"title,omitempty"`
	SharedAt    time.Time `db:"shared_at" json:"shared_at"`
}
