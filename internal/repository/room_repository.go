package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/go-demo/studyroom/internal/model"
)

var (
	ErrRoomNotFound = errors.New("room not found")
)

// RoomRepository persists the durable room record: the room row plus its
// participant history, chat log, and shared resources. It implements the
// room coordinator's Store contract, written on significant transitions and
// read back to rehydrate a coordinator after a restart.
type RoomRepository struct {
	db *sqlx.DB
}

func NewRoomRepository(db *sqlx.DB) *RoomRepository {
	return &RoomRepository{db: db}
}

// Create inserts a new room row
func (r *RoomRepository) Create(ctx context.Context, room *model.Room) error {
	query := `
		INSERT INTO rooms (id, name, description, subject_id, host_id, capacity,
			is_private, access_secret_hash, tags, status, work_minutes, break_minutes,
			scheduled_for)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING created_at, updated_at`

	return r.db.QueryRowxContext(ctx, query,
		room.ID,
		room.Name,
		room.Description,
		room.SubjectID,
		room.HostID,
		room.Capacity,
		room.IsPrivate,
		room.AccessSecretHash,
		room.Tags,
		room.Status,
		room.WorkMinutes,
		room.BreakMinutes,
		room.ScheduledFor,
	).Scan(&room.CreatedAt, &room.UpdatedAt)
}

// roomColumns lists the columns backing model.Room. The rooms table also
// carries the maintained stats counters and the persisted timer state, so
// room-row reads select these explicitly instead of *.
const roomColumns = `id, name, description, subject_id, host_id, capacity,
	is_private, access_secret_hash, tags, status, work_minutes, break_minutes,
	scheduled_for, ended_at, created_at, updated_at`

// GetByID retrieves a room row by ID
func (r *RoomRepository) GetByID(ctx context.Context, id string) (*model.Room, error) {
	var room model.Room
	query := `SELECT ` + roomColumns + ` FROM rooms WHERE id = $1`

	if err := r.db.GetContext(ctx, &room, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRoomNotFound
		}
		return nil, fmt.Errorf("failed to get room by id: %w", err)
	}

	return &room, nil
}

// SaveSnapshot upserts the full durable record for a room. Chat messages
// and resources are append-only, so re-saving an already-persisted entry is
// a no-op via conflict handling.
func (r *RoomRepository) SaveSnapshot(ctx context.Context, snap *model.RoomSnapshot) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin snapshot tx: %w", err)
	}
	defer tx.Rollback()

	roomQuery := `
		UPDATE rooms
		SET status = $2, work_minutes = $3, break_minutes = $4, ended_at = $5,
			pomodoro_active = $6, pomodoro_phase = $7, pomodoro_anchor_at = $8,
			total_messages = $9, peak_participants = $10, total_study_minutes = $11,
			updated_at = NOW()
		WHERE id = $1`

	anchorAt := sql.NullTime{Time: snap.Pomodoro.AnchorAt, Valid: !snap.Pomodoro.AnchorAt.IsZero()}
	result, err := tx.ExecContext(ctx, roomQuery,
		snap.Room.ID,
		snap.Room.Status,
		snap.Room.WorkMinutes,
		snap.Room.BreakMinutes,
		snap.Room.EndedAt,
		snap.Pomodoro.Active,
		snap.Pomodoro.Phase,
		anchorAt,
		snap.Stats.TotalMessages,
		snap.Stats.PeakParticipants,
		snap.Stats.TotalStudyMinutes,
	)
	if err != nil {
		return fmt.Errorf("failed to update room row: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrRoomNotFound
	}

	participantQuery := `
		INSERT INTO room_participants (id, room_id, user_id, display_name, joined_at, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (room_id, user_id)
		DO UPDATE SET display_name = EXCLUDED.display_name, is_active = EXCLUDED.is_active`

	for _, p := range snap.Participants {
		if _, err := tx.ExecContext(ctx, participantQuery,
			p.ID, p.RoomID, p.UserID, p.DisplayName, p.JoinedAt, p.IsActive,
		); err != nil {
			return fmt.Errorf("failed to upsert participant: %w", err)
		}
	}

	messageQuery := `
		INSERT INTO chat_messages (room_id, seq, author_id, author_name, body, sent_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (room_id, seq) DO NOTHING`

	for _, m := range snap.Messages {
		if _, err := tx.ExecContext(ctx, messageQuery,
			m.RoomID, m.Seq, m.AuthorID, m.AuthorName, m.Body, m.SentAt,
		); err != nil {
			return fmt.Errorf("failed to insert chat message: %w", err)
		}
	}

	resourceQuery := `
		INSERT INTO shared_resources (id, room_id, sharer_id, sharer_name, resource_ref, title, shared_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING`

	for _, res := range snap.Resources {
		if _, err := tx.ExecContext(ctx, resourceQuery,
			res.ID, res.RoomID, res.SharerID, res.SharerName, res.ResourceRef, res.Title, res.SharedAt,
		); err != nil {
			return fmt.Errorf("failed to insert shared resource: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit snapshot tx: %w", err)
	}
	return nil
}

// LoadRoom reads the full durable record back, rebuilding the snapshot a
// coordinator rehydrates from, timer state included. Returns (nil, nil)
// when the room does not exist so callers can distinguish absence from
// infrastructure failure.
func (r *RoomRepository) LoadRoom(ctx context.Context, id string) (*model.RoomSnapshot, error) {
	var row struct {
		model.Room
		model.RoomStats
		PomodoroActive   bool           `db:"pomodoro_active"`
		PomodoroPhase    sql.NullString `db:"pomodoro_phase"`
		PomodoroAnchorAt sql.NullTime   `db:"pomodoro_anchor_at"`
	}
	roomQuery := `
		SELECT ` + roomColumns + `,
			total_messages, peak_participants, total_study_minutes,
			pomodoro_active, pomodoro_phase, pomodoro_anchor_at
		FROM rooms WHERE id = $1`
	if err := r.db.GetContext(ctx, &row, roomQuery, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load room: %w", err)
	}

	phase := model.PhaseIdle
	if row.PomodoroPhase.Valid && row.PomodoroPhase.String != "" {
		phase = model.PomodoroPhase(row.PomodoroPhase.String)
	}
	snap := &model.RoomSnapshot{
		Room:  row.Room,
		Stats: row.RoomStats,
		Pomodoro: model.PomodoroState{
			Active:       row.PomodoroActive,
			Phase:        phase,
			WorkMinutes:  row.Room.WorkMinutes,
			BreakMinutes: row.Room.BreakMinutes,
			AnchorAt:     row.PomodoroAnchorAt.Time,
		},
	}

	participantQuery := `
		SELECT * FROM room_participants
		WHERE room_id = $1
		ORDER BY joined_at`
	if err := r.db.SelectContext(ctx, &snap.Participants, participantQuery, id); err != nil {
		return nil, fmt.Errorf("failed to load participants: %w", err)
	}

	messageQuery := `
		SELECT * FROM chat_messages
		WHERE room_id = $1
		ORDER BY seq`
	if err := r.db.SelectContext(ctx, &snap.Messages, messageQuery, id); err != nil {
		return nil, fmt.Errorf("failed to load chat messages: %w", err)
	}

	resourceQuery := `
		SELECT * FROM shared_resources
		WHERE room_id = $1
		ORDER BY shared_at`
	if err := r.db.SelectContext(ctx, &snap.Resources, resourceQuery, id); err != nil {
		return nil, fmt.Errorf("failed to load shared resources: %w", err)
	}

	return snap, nil
}

// RoomWithActiveCount includes the persisted active participant count
type RoomWithActiveCount struct {
	model.Room
	ActiveCount int `db:"active_count" json:"active_count"`
}

// activeCountColumn counts the live participants for the selected room row
const activeCountColumn = `(SELECT COUNT(*) FROM room_participants rp
	WHERE rp.room_id = rooms.id AND rp.is_active) AS active_count`

// ListOpen lists scheduled and active rooms, newest first
func (r *RoomRepository) ListOpen(ctx context.Context, limit, offset int) ([]*RoomWithActiveCount, error) {
	query := `
		SELECT ` + roomColumns + `, ` + activeCountColumn + `
		FROM rooms
		WHERE status <> 'ended'
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`

	var rooms []*RoomWithActiveCount
	if err := r.db.SelectContext(ctx, &rooms, query, limit, offset); err != nil {
		return nil, fmt.Errorf("failed to list open rooms: %w", err)
	}

	return rooms, nil
}

// ListByHost lists rooms owned by a host, newest first
func (r *RoomRepository) ListByHost(ctx context.Context, hostID string, limit, offset int) ([]*RoomWithActiveCount, error) {
	query := `
		SELECT ` + roomColumns + `, ` + activeCountColumn + `
		FROM rooms
		WHERE host_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	var rooms []*RoomWithActiveCount
	if err := r.db.SelectContext(ctx, &rooms, query, hostID, limit, offset); err != nil {
		return nil, fmt.Errorf("failed to list host rooms: %w", err)
	}

	return rooms, nil
}

// Search searches open rooms by name
func (r *RoomRepository) Search(ctx context.Context, query string, limit, offset int) ([]*RoomWithActiveCount, error) {
	searchQuery := `
		SELECT ` + roomColumns + `, ` + activeCountColumn + `
		FROM rooms
		WHERE status <> 'ended' AND name ILIKE $1
		ORDER BY name
		LIMIT $2 OFFSET $3`

	var rooms []*RoomWithActiveCount
	pattern := "%" + query + "%"

	if err := r.db.SelectContext(ctx, &rooms, searchQuery, pattern, limit, offset); err != nil {
		return nil, fmt.Errorf("failed to search rooms: %w", err)
	}

	return rooms, nil
}

// Delete removes a room row and, via cascading constraints, its history
func (r *RoomRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM rooms WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete room: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrRoomNotFound
	}

	return nil
}
