package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/go-demo/studyroom/internal/model"
)

// 使用有效的 UUID 格式作為不存在的 ID
const nonExistentUUID = "00000000-0000-0000-0000-000000000000"

// setupTestDB 建立測試資料庫連線
func setupTestDB(t *testing.T) *sqlx.DB {
	t.Helper()

	dsn := "host=localhost port=5432 user=postgres password=postgres dbname=studyroom_test sslmode=disable"
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		t.Skipf("Skipping test, could not connect to test database: %v", err)
	}

	return db
}

func cleanupTestDB(t *testing.T, db *sqlx.DB) {
	t.Helper()
	db.Exec("TRUNCATE users CASCADE")
	db.Exec("TRUNCATE rooms CASCADE")
}

// createTestUser 建立測試用戶
func createTestUser(t *testing.T, db *sqlx.DB, name string) *model.User {
	t.Helper()

	repo := NewUserRepository(db)
	user := &model.User{
		Username:     name,
		Email:        name + "@test.example.com",
		PasswordHash: "hashedpassword",
		Status:       model.UserStatusOffline,
	}

	if err := repo.Create(context.Background(), user); err != nil {
		t.Fatalf("Failed to create test user: %v", err)
	}

	return user
}

// createTestRoom 建立測試自習室
func createTestRoom(t *testing.T, db *sqlx.DB, host *model.User, name string) *model.Room {
	t.Helper()

	repo := NewRoomRepository(db)
	room := &model.Room{
		ID:           uuid.New().String(),
		Name:         name,
		HostID:       host.ID,
		Capacity:     10,
		Status:       model.RoomStatusActive,
		WorkMinutes:  25,
		BreakMinutes: 5,
	}

	if err := repo.Create(context.Background(), room); err != nil {
		t.Fatalf("Failed to create test room: %v", err)
	}

	return room
}

func snapshotForRoom(rm *model.Room) *model.RoomSnapshot {
	now := time.Now()
	return &model.RoomSnapshot{
		Room: *rm,
		Participants: []*model.ParticipantEntry{
			{ID: uuid.New().String(), RoomID: rm.ID, UserID: rm.HostID, DisplayName: "host", JoinedAt: now, IsActive: true},
		},
		Messages: []*model.ChatMessage{
			{RoomID: rm.ID, Seq: 1, AuthorID: rm.HostID, AuthorName: "host", Body: "第一則訊息", SentAt: now},
		},
		Resources: []*model.SharedResource{
			{ID: uuid.New().String(), RoomID: rm.ID, SharerID: rm.HostID, SharerName: "host", ResourceRef: "https://example.com/notes.pdf", Title: "筆記", SharedAt: now},
		},
		Pomodoro: model.PomodoroState{Phase: model.PhaseIdle, WorkMinutes: rm.WorkMinutes, BreakMinutes: rm.BreakMinutes},
		Stats:    model.RoomStats{TotalMessages: 1, PeakParticipants: 1},
	}
}
