package service

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/go-demo/studyroom/internal/model"
	apperrors "github.com/go-demo/studyroom/internal/pkg/errors"
	"github.com/go-demo/studyroom/internal/repository"
	"github.com/go-demo/studyroom/internal/room"
)

// RoomService bridges the HTTP surface to the in-memory room registry.
// CRUD and listing go through the repository; anything touching live
// room state goes through the registry's coordinators.
type RoomService struct {
	roomRepo *repository.RoomRepository
	registry *room.Registry
	// maxCapacity is the configured participant ceiling; requested
	// capacities above it are clamped, absent ones default to it.
	maxCapacity int
	logger      *zap.Logger
}

func NewRoomService(roomRepo *repository.RoomRepository, registry *room.Registry, maxCapacity int, logger *zap.Logger) *RoomService {
	if maxCapacity <= 0 {
		maxCapacity = model.DefaultCapacity
	}
	return &RoomService{
		roomRepo:    roomRepo,
		registry:    registry,
		maxCapacity: maxCapacity,
		logger:      logger,
	}
}

// CreateRoomInput represents room creation input
type CreateRoomInput struct {
	Name         string
	Description  string
	SubjectID    string
	Tags         []string
	Capacity     int
	IsPrivate    bool
	AccessSecret string
	WorkMinutes  int
	BreakMinutes int
	ScheduledFor *time.Time
}

// CreateRoom creates a study room and registers its coordinator
func (s *RoomService) CreateRoom(ctx context.Context, hostID string, input *CreateRoomInput) (*model.Room, error) {
	if input.IsPrivate && input.AccessSecret == "" {
		return nil, apperrors.New(http.StatusBadRequest, "私密自習室必須設定密碼")
	}

	capacity := input.Capacity
	if capacity <= 0 || capacity > s.maxCapacity {
		capacity = s.maxCapacity
	}

	rm := &model.Room{
		ID:           uuid.New().String(),
		Name:         input.Name,
		HostID:       hostID,
		Capacity:     capacity,
		IsPrivate:    input.IsPrivate,
		Status:       model.RoomStatusScheduled,
		WorkMinutes:  input.WorkMinutes,
		BreakMinutes: input.BreakMinutes,
	}
	if input.Description != "" {
		rm.Description = sql.NullString{String: input.Description, Valid: true}
	}
	if input.SubjectID != "" {
		rm.SubjectID = sql.NullString{String: input.SubjectID, Valid: true}
	}
	if len(input.Tags) > 0 {
		rm.Tags = sql.NullString{String: strings.Join(input.Tags, ","), Valid: true}
	}
	if input.ScheduledFor != nil {
		rm.ScheduledFor = sql.NullTime{Time: *input.ScheduledFor, Valid: true}
	} else {
		rm.Status = model.RoomStatusActive
	}

	if input.IsPrivate {
		hash, err := bcrypt.GenerateFromPassword([]byte(input.AccessSecret), bcrypt.DefaultCost)
		if err != nil {
			s.logger.Error("Failed to hash room secret", zap.Error(err))
			return nil, apperrors.ErrInternal
		}
		rm.AccessSecretHash = sql.NullString{String: string(hash), Valid: true}
	}

	if err := s.roomRepo.Create(ctx, rm); err != nil {
		s.logger.Error("Failed to create room", zap.Error(err))
		return nil, apperrors.ErrInternal
	}

	s.registry.GetOrCreate(rm.ID, rm)

	s.logger.Info("Room created",
		zap.String("room_id", rm.ID),
		zap.String("host_id", hostID),
		zap.String("name", rm.Name),
	)

	return rm, nil
}

// GetRoom returns a live snapshot when the room is resident, falling
// back to the durable snapshot for rooms that have already ended.
func (s *RoomService) GetRoom(ctx context.Context, roomID string) (*model.RoomSnapshot, error) {
	coord, err := s.registry.Get(roomID)
	if err == nil {
		return coord.Snapshot(), nil
	}
	if !errors.Is(err, room.ErrRoomNotFound) {
		s.logger.Error("Failed to resolve room", zap.String("room_id", roomID), zap.Error(err))
		return nil, apperrors.ErrInternal
	}

	snap, loadErr := s.roomRepo.LoadRoom(ctx, roomID)
	if loadErr != nil {
		s.logger.Error("Failed to load room snapshot", zap.String("room_id", roomID), zap.Error(loadErr))
		return nil, apperrors.ErrInternal
	}
	if snap == nil {
		return nil, apperrors.ErrRoomNotFound
	}
	return snap, nil
}

// ListOpenRooms lists rooms that have not ended yet
func (s *RoomService) ListOpenRooms(ctx context.Context, limit, offset int) ([]*repository.RoomWithActiveCount, error) {
	rooms, err := s.roomRepo.ListOpen(ctx, limit, offset)
	if err != nil {
		s.logger.Error("Failed to list rooms", zap.Error(err))
		return nil, apperrors.ErrInternal
	}
	return rooms, nil
}

// ListRoomsByHost lists rooms hosted by a user
func (s *RoomService) ListRoomsByHost(ctx context.Context, hostID string, limit, offset int) ([]*repository.RoomWithActiveCount, error) {
	rooms, err := s.roomRepo.ListByHost(ctx, hostID, limit, offset)
	if err != nil {
		s.logger.Error("Failed to list host rooms", zap.Error(err))
		return nil, apperrors.ErrInternal
	}
	return rooms, nil
}

// SearchRooms searches rooms by name or tag
func (s *RoomService) SearchRooms(ctx context.Context, query string, limit, offset int) ([]*repository.RoomWithActiveCount, error) {
	rooms, err := s.roomRepo.Search(ctx, query, limit, offset)
	if err != nil {
		s.logger.Error("Failed to search rooms", zap.Error(err))
		return nil, apperrors.ErrInternal
	}
	return rooms, nil
}

// EndRoom ends a room on behalf of its host
func (s *RoomService) EndRoom(ctx context.Context, roomID, userID string) error {
	coord, err := s.registry.Get(roomID)
	if err != nil {
		if errors.Is(err, room.ErrRoomNotFound) {
			return apperrors.ErrRoomNotFound
		}
		s.logger.Error("Failed to resolve room", zap.String("room_id", roomID), zap.Error(err))
		return apperrors.ErrInternal
	}

	if err := coord.EndRoom(userID); err != nil {
		return mapRoomError(err)
	}

	s.logger.Info("Room ended",
		zap.String("room_id", roomID),
		zap.String("user_id", userID),
	)
	return nil
}

// mapRoomError translates coordinator sentinels into API errors
func mapRoomError(err error) error {
	switch {
	case errors.Is(err, room.ErrForbidden):
		return apperrors.ErrBadRoomSecret
	case errors.Is(err, room.ErrRoomFull):
		return apperrors.ErrRoomFull
	case errors.Is(err, room.ErrRoomClosed):
		return apperrors.ErrRoomEnded
	case errors.Is(err, room.ErrNotHost):
		return apperrors.ErrNotRoomHost
	case errors.Is(err, room.ErrNotAMember):
		return apperrors.ErrNotParticipant
	case errors.Is(err, room.ErrRoomNotFound):
		return apperrors.ErrRoomNotFound
	default:
		return apperrors.ErrInternal
	}
}
