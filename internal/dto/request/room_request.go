package request

import "time"

// CreateRoomRequest represents a study room creation request
type CreateRoomRequest struct {
	Name         string     `json:"name" binding:"required,min=2,max=100"`
	Description  string     `json:"description,omitempty" binding:"omitempty,max=500"`
	SubjectID    string     `json:"subject_id,omitempty" binding:"omitempty,uuid"`
	Tags         []string   `json:"tags,omitempty" binding:"omitempty,max=10,dive,min=1,max=30"`
	Capacity     int        `json:"capacity,omitempty" binding:"omitempty,min=2,max=50"`
	IsPrivate    bool       `json:"is_private,omitempty"`
	AccessSecret string     `json:"access_secret,omitempty" binding:"omitempty,min=4,max=72"`
	WorkMinutes  int        `json:"work_minutes,omitempty" binding:"omitempty,min=1,max=180"`
	BreakMinutes int        `json:"break_minutes,omitempty" binding:"omitempty,min=1,max=60"`
	ScheduledFor *time.Time `json:"scheduled_for,omitempty"`
}

// JoinRoomRequest represents a join request for private rooms
type JoinRoomRequest struct {
	AccessSecret string `json:"access_secret,omitempty" binding:"omitempty,max=72"`
}
