package room

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/go-demo/studyroom/internal/model"
)

const (
	defaultIdleTimeout = 30 * time.Minute
	defaultEndedGrace  = 5 * time.Minute
	janitorInterval    = time.Minute
)

// RegistryOptions configures the process-wide registry
type RegistryOptions struct {
	Coordinator Options
	IdleTimeout time.Duration
	EndedGrace  time.Duration
}

// Registry is the process-wide map of room id to coordinator. It guarantees
// at most one coordinator exists per room id, creates coordinators on first
// reference (rehydrating from the store when a durable record exists), and
// evicts them after end-of-room grace or idle timeout.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*Coordinator

	opts   Options
	store  Store
	logger *zap.Logger

	idleTimeout time.Duration
	endedGrace  time.Duration
}

func NewRegistry(opts RegistryOptions) *Registry {
	o := opts.Coordinator.withDefaults()
	r := &Registry{
		rooms:       make(map[string]*Coordinator),
		opts:        o,
		store:       o.Store,
		logger:      o.Logger,
		idleTimeout: opts.IdleTimeout,
		endedGrace:  opts.EndedGrace,
	}
	if r.idleTimeout <= 0 {
		r.idleTimeout = defaultIdleTimeout
	}
	if r.endedGrace <= 0 {
		r.endedGrace = defaultEndedGrace
	}
	return r
}

// SetSink wires the event sink used by coordinators created after this
// call. Meant for startup wiring, before any rooms are resident.
func (r *Registry) SetSink(sink EventSink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.opts.Sink = sink
}

// GetOrCreate returns the coordinator for the room, creating it from the
// given record when no live coordinator or durable record exists yet.
func (r *Registry) GetOrCreate(roomID string, rm *model.Room) *Coordinator {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.rooms[roomID]; ok {
		return c
	}
	// A failed load falls through to a fresh coordinator; the caller holds
	// the authoritative record here.
	if c, _ := r.rehydrateLocked(roomID); c != nil {
		return c
	}

	c := NewCoordinator(rm, r.opts)
	r.rooms[roomID] = c
	r.logger.Info("Room coordinator created", zap.String("room_id", roomID))
	return c
}

// Get returns the live coordinator for the room, rehydrating it from the
// durable store after a cold start. ErrRoomNotFound when neither exists; a
// store failure is returned as-is so callers never mistake an outage for
// an absent room.
func (r *Registry) Get(roomID string) (*Coordinator, error) {
	r.mu.RLock()
	c, ok := r.rooms[roomID]
	r.mu.RUnlock()
	if ok {
		return c, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.rooms[roomID]; ok {
		return c, nil
	}
	c, err := r.rehydrateLocked(roomID)
	if err != nil {
		return nil, err
	}
	if c != nil {
		return c, nil
	}
	return nil, ErrRoomNotFound
}

// Evict tears down the room's coordinator. The durable record survives.
func (r *Registry) Evict(roomID string) {
	r.mu.Lock()
	c, ok := r.rooms[roomID]
	if ok {
		delete(r.rooms, roomID)
	}
	r.mu.Unlock()

	if ok {
		c.Close()
		r.logger.Info("Room coordinator evicted", zap.String("room_id", roomID))
	}
}

// Recreate tears down a room's live coordinator and restores a fresh one
// from the last durable snapshot. Used when in-memory state is no longer
// trusted. ErrRoomNotFound when no durable record exists either.
func (r *Registry) Recreate(roomID string) (*Coordinator, error) {
	r.mu.Lock()
	old, ok := r.rooms[roomID]
	if ok {
		delete(r.rooms, roomID)
	}
	c, err := r.rehydrateLocked(roomID)
	r.mu.Unlock()

	if ok {
		old.Close()
	}
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, ErrRoomNotFound
	}
	r.logger.Warn("Room coordinator recreated from durable snapshot",
		zap.String("room_id", roomID),
	)
	return c, nil
}

// Len returns the number of live coordinators
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

// RunJanitor periodically evicts ended rooms past the grace period and
// idle rooms with no active participants. Blocks until ctx is done.
func (r *Registry) RunJanitor(ctx context.Context) {
	ticker := time.NewTicker(janitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.sweep(time.Now())
		}
	}
}

func (r *Registry) sweep(now time.Time) {
	r.mu.RLock()
	candidates := make(map[string]*Coordinator, len(r.rooms))
	for id, c := range r.rooms {
		candidates[id] = c
	}
	r.mu.RUnlock()

	for id, c := range candidates {
		switch {
		case !c.SequenceIntact():
			r.logger.Error("Chat sequence gap detected, rebuilding room",
				zap.String("room_id", id),
			)
			if _, err := r.Recreate(id); err != nil {
				r.Evict(id)
			}
		case c.Status() == model.RoomStatusEnded && now.Sub(c.LastActivity()) >= r.endedGrace:
			r.Evict(id)
		case c.ActiveCount() == 0 && now.Sub(c.LastActivity()) >= r.idleTimeout:
			r.Evict(id)
		}
	}
}

// rehydrateLocked loads a durable room record and restores its coordinator.
// Callers must hold r.mu for writing. Returns (nil, nil) when no record
// exists; a load failure is logged and returned so it stays distinct from
// an absent room.
func (r *Registry) rehydrateLocked(roomID string) (*Coordinator, error) {
	if r.store == nil {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()

	snap, err := r.store.LoadRoom(ctx, roomID)
	if err != nil {
		r.logger.Error("Failed to load room snapshot",
			zap.String("room_id", roomID),
			zap.Error(err),
		)
		return nil, fmt.Errorf("load room snapshot: %w", err)
	}
	if snap == nil {
		return nil, nil
	}

	c := RestoreCoordinator(snap, r.opts)
	r.rooms[roomID] = c
	r.logger.Info("Room coordinator rehydrated",
		zap.String("room_id", roomID),
		zap.String("status", string(snap.Room.Status)),
	)
	return c, nil
}
