package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/go-demo/studyroom/internal/model"
)

func TestRoomRepository_Create(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	cleanupTestDB(t, db)
	defer cleanupTestDB(t, db)

	host := createTestUser(t, db, "room_create_host")
	rm := createTestRoom(t, db, host, "testroom_create")

	if rm.CreatedAt.IsZero() {
		t.Error("Expected created_at to be set")
	}

	repo := NewRoomRepository(db)
	got, err := repo.GetByID(context.Background(), rm.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Name != "testroom_create" || got.HostID != host.ID {
		t.Errorf("Unexpected room: %+v", got)
	}
}

func TestRoomRepository_GetByIDNotFound(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := NewRoomRepository(db)
	if _, err := repo.GetByID(context.Background(), nonExistentUUID); !errors.Is(err, ErrRoomNotFound) {
		t.Errorf("Expected ErrRoomNotFound, got %v", err)
	}
}

func TestRoomRepository_SaveAndLoadSnapshot(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	cleanupTestDB(t, db)
	defer cleanupTestDB(t, db)

	host := createTestUser(t, db, "room_snap_host")
	rm := createTestRoom(t, db, host, "testroom_snapshot")

	repo := NewRoomRepository(db)
	ctx := context.Background()

	snap := snapshotForRoom(rm)
	snap.Participants[0].UserID = host.ID
	snap.Messages[0].AuthorID = host.ID
	snap.Resources[0].SharerID = host.ID

	if err := repo.SaveSnapshot(ctx, snap); err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}

	loaded, err := repo.LoadRoom(ctx, rm.ID)
	if err != nil {
		t.Fatalf("LoadRoom: %v", err)
	}
	if loaded == nil {
		t.Fatal("Expected a snapshot, got nil")
	}

	if len(loaded.Participants) != 1 || !loaded.Participants[0].IsActive {
		t.Errorf("Unexpected participants: %+v", loaded.Participants)
	}
	if len(loaded.Messages) != 1 || loaded.Messages[0].Seq != 1 {
		t.Errorf("Unexpected messages: %+v", loaded.Messages)
	}
	if len(loaded.Resources) != 1 || loaded.Resources[0].Title != "筆記" {
		t.Errorf("Unexpected resources: %+v", loaded.Resources)
	}
	if loaded.Stats.TotalMessages != 1 || loaded.Stats.PeakParticipants != 1 {
		t.Errorf("Unexpected stats: %+v", loaded.Stats)
	}
	if loaded.Pomodoro.Phase != model.PhaseIdle {
		t.Errorf("Expected idle pomodoro after load, got %s", loaded.Pomodoro.Phase)
	}
}

func TestRoomRepository_SaveSnapshotIsIdempotent(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	cleanupTestDB(t, db)
	defer cleanupTestDB(t, db)

	host := createTestUser(t, db, "room_idem_host")
	rm := createTestRoom(t, db, host, "testroom_idempotent")

	repo := NewRoomRepository(db)
	ctx := context.Background()

	snap := snapshotForRoom(rm)
	snap.Participants[0].UserID = host.ID
	snap.Messages[0].AuthorID = host.ID
	snap.Resources[0].SharerID = host.ID

	if err := repo.SaveSnapshot(ctx, snap); err != nil {
		t.Fatalf("First SaveSnapshot: %v", err)
	}
	// Re-saving the same snapshot must not duplicate append-only rows
	if err := repo.SaveSnapshot(ctx, snap); err != nil {
		t.Fatalf("Second SaveSnapshot: %v", err)
	}

	loaded, err := repo.LoadRoom(ctx, rm.ID)
	if err != nil {
		t.Fatalf("LoadRoom: %v", err)
	}
	if len(loaded.Messages) != 1 {
		t.Errorf("Expected 1 message after re-save, got %d", len(loaded.Messages))
	}
	if len(loaded.Resources) != 1 {
		t.Errorf("Expected 1 resource after re-save, got %d", len(loaded.Resources))
	}
}

func TestRoomRepository_SaveSnapshotPersistsEnd(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	cleanupTestDB(t, db)
	defer cleanupTestDB(t, db)

	host := createTestUser(t, db, "room_end_host")
	rm := createTestRoom(t, db, host, "testroom_ended")

	repo := NewRoomRepository(db)
	ctx := context.Background()

	snap := snapshotForRoom(rm)
	snap.Participants[0].UserID = host.ID
	snap.Messages[0].AuthorID = host.ID
	snap.Resources[0].SharerID = host.ID
	snap.Room.Status = model.RoomStatusEnded
	snap.Room.EndedAt = sql.NullTime{Time: time.Now(), Valid: true}
	snap.Stats.TotalStudyMinutes = 50

	if err := repo.SaveSnapshot(ctx, snap); err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}

	loaded, err := repo.LoadRoom(ctx, rm.ID)
	if err != nil {
		t.Fatalf("LoadRoom: %v", err)
	}
	if loaded.Room.Status != model.RoomStatusEnded || !loaded.Room.EndedAt.Valid {
		t.Errorf("End not persisted: status=%s ended=%v", loaded.Room.Status, loaded.Room.EndedAt)
	}
	if loaded.Stats.TotalStudyMinutes != 50 {
		t.Errorf("Expected 50 study minutes, got %d", loaded.Stats.TotalStudyMinutes)
	}
}

func TestRoomRepository_SaveSnapshotPersistsPomodoro(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	cleanupTestDB(t, db)
	defer cleanupTestDB(t, db)

	host := createTestUser(t, db, "room_pomo_host")
	rm := createTestRoom(t, db, host, "testroom_pomodoro")

	repo := NewRoomRepository(db)
	ctx := context.Background()

	anchor := time.Now().Add(-10 * time.Minute)
	snap := snapshotForRoom(rm)
	snap.Participants[0].UserID = host.ID
	snap.Messages[0].AuthorID = host.ID
	snap.Resources[0].SharerID = host.ID
	snap.Pomodoro = model.PomodoroState{
		Active:       true,
		Phase:        model.PhaseWork,
		WorkMinutes:  rm.WorkMinutes,
		BreakMinutes: rm.BreakMinutes,
		AnchorAt:     anchor,
	}

	if err := repo.SaveSnapshot(ctx, snap); err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}

	loaded, err := repo.LoadRoom(ctx, rm.ID)
	if err != nil {
		t.Fatalf("LoadRoom: %v", err)
	}

	// A restart must get the in-flight phase back, anchor included
	if !loaded.Pomodoro.Active || loaded.Pomodoro.Phase != model.PhaseWork {
		t.Errorf("In-flight phase lost: active=%v phase=%s", loaded.Pomodoro.Active, loaded.Pomodoro.Phase)
	}
	if d := loaded.Pomodoro.AnchorAt.Sub(anchor); d < -time.Second || d > time.Second {
		t.Errorf("Anchor drifted by %v across the round-trip", d)
	}

	// Stopping the timer clears the persisted state again
	snap.Pomodoro = model.PomodoroState{Phase: model.PhaseIdle, WorkMinutes: rm.WorkMinutes, BreakMinutes: rm.BreakMinutes}
	if err := repo.SaveSnapshot(ctx, snap); err != nil {
		t.Fatalf("Second SaveSnapshot: %v", err)
	}
	loaded, err = repo.LoadRoom(ctx, rm.ID)
	if err != nil {
		t.Fatalf("LoadRoom: %v", err)
	}
	if loaded.Pomodoro.Active || loaded.Pomodoro.Phase != model.PhaseIdle {
		t.Errorf("Expected idle timer after stop, got active=%v phase=%s", loaded.Pomodoro.Active, loaded.Pomodoro.Phase)
	}
}

func TestRoomRepository_SaveSnapshotUnknownRoom(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := NewRoomRepository(db)

	snap := snapshotForRoom(&model.Room{ID: nonExistentUUID, WorkMinutes: 25, BreakMinutes: 5})
	snap.Participants = nil
	snap.Messages = nil
	snap.Resources = nil

	if err := repo.SaveSnapshot(context.Background(), snap); !errors.Is(err, ErrRoomNotFound) {
		t.Errorf("Expected ErrRoomNotFound, got %v", err)
	}
}

func TestRoomRepository_LoadRoomAbsent(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := NewRoomRepository(db)
	snap, err := repo.LoadRoom(context.Background(), nonExistentUUID)
	if err != nil {
		t.Fatalf("LoadRoom: %v", err)
	}
	if snap != nil {
		t.Error("Expected nil snapshot for an absent room")
	}
}

func TestRoomRepository_ListOpen(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	cleanupTestDB(t, db)
	defer cleanupTestDB(t, db)

	host := createTestUser(t, db, "room_list_host")
	createTestRoom(t, db, host, "testroom_open_1")
	createTestRoom(t, db, host, "testroom_open_2")
	ended := createTestRoom(t, db, host, "testroom_closed")

	repo := NewRoomRepository(db)
	ctx := context.Background()

	snap := snapshotForRoom(ended)
	snap.Participants = nil
	snap.Messages = nil
	snap.Resources = nil
	snap.Room.Status = model.RoomStatusEnded
	snap.Room.EndedAt = sql.NullTime{Time: time.Now(), Valid: true}
	if err := repo.SaveSnapshot(ctx, snap); err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}

	rooms, err := repo.ListOpen(ctx, 10, 0)
	if err != nil {
		t.Fatalf("ListOpen: %v", err)
	}
	if len(rooms) != 2 {
		t.Errorf("Expected 2 open rooms, got %d", len(rooms))
	}
	for _, r := range rooms {
		if r.Status == model.RoomStatusEnded {
			t.Errorf("Ended room leaked into open listing: %s", r.Name)
		}
	}
}

func TestRoomRepository_Search(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	cleanupTestDB(t, db)
	defer cleanupTestDB(t, db)

	host := createTestUser(t, db, "room_search_host")
	createTestRoom(t, db, host, "考研衝刺室")
	createTestRoom(t, db, host, "早起讀書會")

	repo := NewRoomRepository(db)

	rooms, err := repo.Search(context.Background(), "衝刺", 10, 0)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(rooms) != 1 || rooms[0].Name != "考研衝刺室" {
		t.Errorf("Unexpected search result: %+v", rooms)
	}
}

func TestRoomRepository_ListByHost(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	cleanupTestDB(t, db)
	defer cleanupTestDB(t, db)

	owner := createTestUser(t, db, "room_byhost_owner")
	other := createTestUser(t, db, "room_byhost_other")
	createTestRoom(t, db, owner, "testroom_mine_1")
	createTestRoom(t, db, owner, "testroom_mine_2")
	createTestRoom(t, db, other, "testroom_theirs")

	repo := NewRoomRepository(db)

	rooms, err := repo.ListByHost(context.Background(), owner.ID, 10, 0)
	if err != nil {
		t.Fatalf("ListByHost: %v", err)
	}
	if len(rooms) != 2 {
		t.Errorf("Expected 2 rooms for host, got %d", len(rooms))
	}
}

func TestRoomRepository_Delete(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	cleanupTestDB(t, db)
	defer cleanupTestDB(t, db)

	host := createTestUser(t, db, "room_delete_host")
	rm := createTestRoom(t, db, host, "testroom_delete")

	repo := NewRoomRepository(db)
	ctx := context.Background()

	if err := repo.Delete(ctx, rm.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := repo.GetByID(ctx, rm.ID); !errors.Is(err, ErrRoomNotFound) {
		t.Errorf("Expected ErrRoomNotFound after delete, got %v", err)
	}
	if err := repo.Delete(ctx, rm.ID); !errors.Is(err, ErrRoomNotFound) {
		t.Errorf("Expected ErrRoomNotFound on second delete, got %v", err)
	}
}
