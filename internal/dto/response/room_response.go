package response

import (
	"strings"
	"time"

	"github.com/go-demo/studyroom/internal/model"
	"github.com/go-demo/studyroom/internal/repository"
)

// RoomResponse represents a room summary response
type RoomResponse struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	SubjectID    string   `json:"subject_id,omitempty"`
	Tags         []string `json:"tags,omitempty"`
	HostID       string   `json:"host_id"`
	Capacity     int      `json:"capacity"`
	IsPrivate    bool     `json:"is_private"`
	Status       string   `json:"status"`
	WorkMinutes  int      `json:"work_minutes"`
	BreakMinutes int      `json:"break_minutes"`
	ActiveCount  int      `json:"active_count"`
	ScheduledFor string   `json:"scheduled_for,omitempty"`
	CreatedAt    string   `json:"created_at"`
}

func splitTags(tags string) []string {
	if tags == "" {
		return nil
	}
	return strings.Split(tags, ",")
}

// NewRoomResponse creates a room summary response from model
func NewRoomResponse(room *repository.RoomWithActiveCount) *RoomResponse {
	resp := &RoomResponse{
		ID:           room.ID,
		Name:         room.Name,
		Description:  room.GetDescription(),
		HostID:       room.HostID,
		Capacity:     room.Capacity,
		IsPrivate:    room.IsPrivate,
		Status:       string(room.Status),
		WorkMinutes:  room.WorkMinutes,
		BreakMinutes: room.BreakMinutes,
		ActiveCount:  room.ActiveCount,
		CreatedAt:    room.CreatedAt.Format(time.RFC3339),
	}
	if room.SubjectID.Valid {
		resp.SubjectID = room.SubjectID.String
	}
	if room.Tags.Valid {
		resp.Tags = splitTags(room.Tags.String)
	}
	if room.ScheduledFor.Valid {
		resp.ScheduledFor = room.ScheduledFor.Time.Format(time.RFC3339)
	}
	return resp
}

// ParticipantResponse represents one presence roster entry
type ParticipantResponse struct {
	ID          string `json:"id"`
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	IsActive    bool   `json:"is_active"`
	JoinedAt    string `json:"joined_at"`
}

// NewParticipantResponse creates a participant response from model
func NewParticipantResponse(p *model.ParticipantEntry) *ParticipantResponse {
	return &ParticipantResponse{
		ID:          p.ID,
		UserID:      p.UserID,
		DisplayName: p.DisplayName,
		IsActive:    p.IsActive,
		JoinedAt:    p.JoinedAt.Format(time.RFC3339),
	}
}

// ChatMessageResponse represents a chat transcript entry
type ChatMessageResponse struct {
	Seq        int64  `json:"seq"`
	AuthorID   string `json:"author_id"`
	AuthorName string `json:"author_name"`
	Body       string `json:"body"`
	SentAt     string `json:"sent_at"`
}

// NewChatMessageResponse creates a chat message response from model
func NewChatMessageResponse(m *model.ChatMessage) *ChatMessageResponse {
	return &ChatMessageResponse{
		Seq:        m.Seq,
		AuthorID:   m.AuthorID,
		AuthorName: m.AuthorName,
		Body:       m.Body,
		SentAt:     m.SentAt.Format(time.RFC3339),
	}
}

// SharedResourceResponse represents a shared resource entry
type SharedResourceResponse struct {
	ID          string `json:"id"`
	SharerID    string `json:"sharer_id"`
	SharerName  string `json:"sharer_name"`
	ResourceRef string `json:"resource_ref"`
	Title       string `json:"title"`
	SharedAt    string `json:"shared_at"`
}

// NewSharedResourceResponse creates a shared resource response from model
func NewSharedResourceResponse(r *model.SharedResource) *SharedResourceResponse {
	return &SharedResourceResponse{
		ID:          r.ID,
		SharerID:    r.SharerID,
		SharerName:  r.SharerName,
		ResourceRef: r.ResourceRef,
		Title:       r.Title,
		SharedAt:    r.SharedAt.Format(time.RFC3339),
	}
}

// PomodoroResponse represents the shared timer state
type PomodoroResponse struct {
	Active       bool   `json:"active"`
	Phase        string `json:"phase"`
	WorkMinutes  int    `json:"work_minutes"`
	BreakMinutes int    `json:"break_minutes"`
	AnchorAt     string `json:"anchor_at,omitempty"`
}

// NewPomodoroResponse creates a pomodoro response from model
func NewPomodoroResponse(p model.PomodoroState) *PomodoroResponse {
	resp := &PomodoroResponse{
		Active:       p.Active,
		Phase:        string(p.Phase),
		WorkMinutes:  p.WorkMinutes,
		BreakMinutes: p.BreakMinutes,
	}
	if !p.AnchorAt.IsZero() {
		resp.AnchorAt = p.AnchorAt.Format(time.RFC3339)
	}
	return resp
}

// RoomStatsResponse represents the aggregate counters
type RoomStatsResponse struct {
	TotalMessages     int `json:"total_messages"`
	PeakParticipants  int `json:"peak_participants"`
	TotalStudyMinutes int `json:"total_study_minutes"`
}

// RoomDetailResponse represents a full room snapshot response
type RoomDetailResponse struct {
	Room         *RoomResponse             `json:"room"`
	Participants []*ParticipantResponse    `json:"participants"`
	Messages     []*ChatMessageResponse    `json:"messages"`
	Resources    []*SharedResourceResponse `json:"resources"`
	Pomodoro     *PomodoroResponse         `json:"pomodoro"`
	Stats        *RoomStatsResponse        `json:"stats"`
	EndedAt      string                    `json:"ended_at,omitempty"`
}

// NewRoomDetailResponse creates a full room response from a snapshot
func NewRoomDetailResponse(snap *model.RoomSnapshot) *RoomDetailResponse {
	room := NewRoomResponse(&repository.RoomWithActiveCount{
		Room:        snap.Room,
		ActiveCount: snap.ActiveCount(),
	})

	participants := make([]*ParticipantResponse, len(snap.Participants))
	for i, p := range snap.Participants {
		participants[i] = NewParticipantResponse(p)
	}

	messages := make([]*ChatMessageResponse, len(snap.Messages))
	for i, m := range snap.Messages {
		messages[i] = NewChatMessageResponse(m)
	}

	resources := make([]*SharedResourceResponse, len(snap.Resources))
	for i, r := range snap.Resources {
		resources[i] = NewSharedResourceResponse(r)
	}

	resp := &RoomDetailResponse{
		Room:         room,
		Participants: participants,
		Messages:     messages,
		Resources:    resources,
		Pomodoro:     NewPomodoroResponse(snap.Pomodoro),
		Stats: &RoomStatsResponse{
			TotalMessages:     snap.Stats.TotalMessages,
			PeakParticipants:  snap.Stats.PeakParticipants,
			TotalStudyMinutes: snap.Stats.TotalStudyMinutes,
		},
	}
	if snap.Room.EndedAt.Valid {
		resp.EndedAt = snap.Room.EndedAt.Time.Format(time.RFC3339)
	}
	return resp
}

// RoomListResponse represents a list of rooms
type RoomListResponse struct {
	Rooms []*RoomResponse `json:"rooms"`
	Total int             `json:"total"`
	Page  int             `json:"page"`
	Limit int             `json:"limit"`
}

// NewRoomListResponse creates a room list response
func NewRoomListResponse(rooms []*repository.RoomWithActiveCount, page, limit int) *RoomListResponse {
	roomResponses := make([]*RoomResponse, len(rooms))
	for i, rm := range rooms {
		roomResponses[i] = NewRoomResponse(rm)
	}

	return &RoomListResponse{
		Rooms: roomResponses,
		Total: len(roomResponses),
		Page:  page,
		Limit: limit,
	}
}
