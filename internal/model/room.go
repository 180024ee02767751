package model

import (
	"database/sql"
	"time"
)

type RoomStatus string

const (
	RoomStatusScheduled RoomStatus = "scheduled"
	RoomStatusActive    RoomStatus = "active"
	RoomStatusEnded     RoomStatus = "ended"
)

// DefaultCapacity is the participant limit applied when none is given
const DefaultCapacity = 50

// Room is the durable record of one study room. AccessSecretHash is never
// serialized; ended is a terminal status.
type Room struct {
	ID               string         `db:"id" json:"id"`
	Name             string         `db:"name" json:"name"`
	Description      sql.NullString `db:"description" json:"description,omitempty"`
	SubjectID        sql.NullString `db:"subject_id" json:"subject_id,omitempty"`
	HostID           string         `db:"host_id" json:"host_id"`
	Capacity         int            `db:"capacity" json:"capacity"`
	IsPrivate        bool           `db:"is_private" json:"is_private"`
	AccessSecretHash sql.NullString `db:"access_secret_hash" json:"-"`
	Tags             sql.NullString `db:"tags" json:"tags,omitempty"`
	Status           RoomStatus     `db:"status" json:"status"`
	WorkMinutes      int            `db:"work_minutes" json:"work_minutes"`
	BreakMinutes     int            `db:"break_minutes" json:"break_minutes"`
	ScheduledFor     sql.NullTime   `db:"scheduled_for" json:"scheduled_for,omitempty"`
	EndedAt          sql.NullTime   `db:"ended_at" json:"ended_at,omitempty"`
	CreatedAt        time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time      `db:"updated_at" json:"updated_at"`
}

// GetDescription returns description or empty string
func (r *Room) GetDescription() string {
	if r.Description.Valid {
		return r.Description.String
	}
	return ""
}

// IsEnded checks if the room has reached its terminal status
func (r *Room) IsEnded() bool {
	return r.Status == RoomStatusEnded
}

// PomodoroPhase represents the timer phase state
type PomodoroPhase string

const (
	PhaseIdle  PomodoroPhase = "idle"
	PhaseWork  PomodoroPhase = "work"
	PhaseBreak PomodoroPhase = "break"
)

// PomodoroState is the shared timer state all clients converge on. The
// anchor plus the active phase's duration defines the authoritative phase
// end; observers compute remaining time locally from these fields.
type PomodoroState struct {
	Active       bool          `json:"active"`
	Phase        PomodoroPhase `json:"phase"`
	WorkMinutes  int           `json:"work_minutes"`
	BreakMinutes int           `json:"break_minutes"`
	AnchorAt     time.Time     `json:"anchor_at,omitempty"`
}

// PhaseDuration returns the duration of the currently active phase
func (p *PomodoroState) PhaseDuration() time.Duration {
	switch p.Phase {
	case PhaseWork:
		return time.Duration(p.WorkMinutes) * time.Minute
	case PhaseBreak:
		return time.Duration(p.BreakMinutes) * time.Minute
	}
	return 0
}

// RoomStats is the maintained aggregate block. All three counters are
// monotonic; they are updated on each relevant mutation, never recomputed
// by scanning logs.
type RoomStats struct {
	TotalMessages     int `db:"total_messages" json:"total_messages"`
	PeakParticipants  int `db:"peak_participants" json:"peak_participants"`
	TotalStudyMinutes int `db:"total_study_minutes" json:"total_study_minutes"`
}

// RoomSnapshot is the full immutable view of one room, used to bootstrap
// late-joining clients and as the unit of durable persistence.
type RoomSnapshot struct {
	Room         Room                `json:"room"`
	Participants []*ParticipantEntry `json:"participants"`
	Messages     []*ChatMessage      `json:"messages"`
	Resources    []*SharedResource   `json:"resources"`
	Pomodoro     PomodoroState       `json:"pomodoro"`
	Stats        RoomStats           `json:"stats"`
}

// ActiveCount returns the number of currently active participants
func (s *RoomSnapshot) ActiveCount() int {
	n := 0
	for _, p := range s.Participants {
		if p.IsActive {
			n++
		}
	}
	return n
}
