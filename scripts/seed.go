package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/go-demo/studyroom/internal/config"
	"github.com/go-demo/studyroom/internal/model"
	"github.com/go-demo/studyroom/internal/pkg/database"
	"github.com/go-demo/studyroom/internal/pkg/utils"
	"github.com/go-demo/studyroom/internal/repository"
)

func main() {
	log.Println("Starting database seed...")

	// Load config
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Connect to database
	logger := zap.NewNop()
	db, err := database.NewPostgres(&cfg.Database, logger)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	ctx := context.Background()

	// Initialize repositories
	userRepo := repository.NewUserRepository(db)
	roomRepo := repository.NewRoomRepository(db)

	// Seed users
	log.Println("Creating users...")
	users := []struct {
		username    string
		email       string
		password    string
		displayName string
	}{
		{"alice", "alice@example.com", "password123", "Alice Chen"},
		{"bob", "bob@example.com", "password123", "Bob Wang"},
		{"charlie", "charlie@example.com", "password123", "Charlie Lin"},
		{"diana", "diana@example.com", "password123", "Diana Wu"},
		{"evan", "evan@example.com", "password123", "Evan Lee"},
	}

	var createdUsers []*model.User
	for _, u := range users {
		hash, _ := utils.HashPassword(u.password)
		user := &model.User{
			Username:     u.username,
			Email:        u.email,
			PasswordHash: hash,
			DisplayName:  sql.NullString{String: u.displayName, Valid: true},
			Status:       model.UserStatusOffline,
		}

		if err := userRepo.Create(ctx, user); err != nil {
			log.Printf("User %s might already exist: %v", u.username, err)
			existing, _ := userRepo.GetByUsername(ctx, u.username)
			if existing != nil {
				createdUsers = append(createdUsers, existing)
			}
		} else {
			createdUsers = append(createdUsers, user)
			log.Printf("Created user: %s", u.username)
		}
	}

	if len(createdUsers) < 2 {
		log.Println("Not enough users, skipping room creation")
		return
	}

	// Seed study rooms
	log.Println("Creating study rooms...")
	rooms := []struct {
		name         string
		description  string
		tags         string
		capacity     int
		workMinutes  int
		breakMinutes int
		hostIndex    int
	}{
		{"晨讀自習室", "早起讀書的好地方", "morning,reading", 20, 25, 5, 0},
		{"演算法衝刺", "一起刷題準備面試", "algorithms,interview", 10, 50, 10, 1},
		{"多益備考", "TOEIC 考前衝刺", "english,toeic", 30, 25, 5, 2},
		{"深夜趕工區", "期末報告互相監督", "deadline,night", 15, 25, 5, 0},
	}

	for _, r := range rooms {
		if r.hostIndex >= len(createdUsers) {
			continue
		}

		rm := &model.Room{
			ID:           uuid.New().String(),
			Name:         r.name,
			Description:  sql.NullString{String: r.description, Valid: true},
			Tags:         sql.NullString{String: r.tags, Valid: true},
			HostID:       createdUsers[r.hostIndex].ID,
			Capacity:     r.capacity,
			Status:       model.RoomStatusActive,
			WorkMinutes:  r.workMinutes,
			BreakMinutes: r.breakMinutes,
		}

		if err := roomRepo.Create(ctx, rm); err != nil {
			log.Printf("Room %s might already exist: %v", r.name, err)
		} else {
			log.Printf("Created room: %s", r.name)
		}
	}

	log.Println("Seed completed successfully!")
	fmt.Println("\n--- Test Accounts ---")
	fmt.Println("All accounts have password: password123")
	for _, u := range users {
		fmt.Printf("Username: %s, Email: %s\n", u.username, u.email)
	}
}
