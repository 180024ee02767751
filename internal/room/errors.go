package room

import "errors"

var (
	// Admission errors: well-formed request, room state disallows it.
	// These are permanent for the observed state and must not be retried.
	ErrForbidden  = errors.New("room is private and the access secret does not match")
	ErrRoomFull   = errors.New("room is at capacity")
	ErrRoomClosed = errors.New("room has ended")

	// Authorization errors
	ErrNotHost    = errors.New("only the room host may perform this action")
	ErrNotAMember = errors.New("participant is not active in this room")

	// Registry errors
	ErrRoomNotFound = errors.New("room not found")
)
