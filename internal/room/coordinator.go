package room

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/go-demo/studyroom/internal/model"
)

const (
	defaultFlushRetries = 3
	defaultFlushBackoff = 200 * time.Millisecond
	flushTimeout        = 5 * time.Second

	defaultWorkMinutes  = 25
	defaultBreakMinutes = 5
)

// Store is the durable snapshot contract the coordinator writes to on
// significant transitions and rehydrates from on cold start.
type Store interface {
	SaveSnapshot(ctx context.Context, snap *model.RoomSnapshot) error
	LoadRoom(ctx context.Context, id string) (*model.RoomSnapshot, error)
}

// Options configures a Coordinator. Store and Sink may be nil (no
// persistence / no fan-out), which the tests rely on.
type Options struct {
	Store        Store
	Sink         EventSink
	Logger       *zap.Logger
	FlushRetries int
	FlushBackoff time.Duration
}

func (o *Options) withDefaults() Options {
	out := *o
	if out.Logger == nil {
		out.Logger = zap.NewNop()
	}
	if out.FlushRetries <= 0 {
		out.FlushRetries = defaultFlushRetries
	}
	if out.FlushBackoff <= 0 {
		out.FlushBackoff = defaultFlushBackoff
	}
	return out
}

// Coordinator is the single authoritative owner of one room's state and its
// only writer. Every mutating operation acquires the room lock, so no two
// mutations interleave their read-modify-write; operations on different
// rooms share nothing and run fully in parallel. The lock is never held
// across I/O: durable flushes and event delivery to slow subscribers happen
// outside or without blocking.
type Coordinator struct {
	mu sync.Mutex

	room     *model.Room
	presence *presenceTracker
	chat     *chatLog
	engine   *pomodoroEngine
	annex    *resourceAnnex
	stats    *statsAggregator

	phaseTimer   *time.Timer
	lastActivity time.Time

	store        Store
	sink         EventSink
	logger       *zap.Logger
	flushRetries int
	flushBackoff time.Duration

	// Single-flusher state. pendingSnap always holds the newest snapshot
	// awaiting persistence; the flusher goroutine drains it one write at a
	// time so snapshots can never reach the store out of order.
	flushMu     sync.Mutex
	pendingSnap *model.RoomSnapshot
	flushing    bool
}

// NewCoordinator creates the coordinator for a freshly created room
func NewCoordinator(rm *model.Room, opts Options) *Coordinator {
	o := opts.withDefaults()
	c := &Coordinator{
		room:         rm,
		presence:     newPresenceTracker(),
		chat:         newChatLog(rm.ID),
		engine:       newPomodoroEngine(),
		annex:        newResourceAnnex(rm.ID),
		stats:        &statsAggregator{},
		lastActivity: time.Now(),
		store:        o.Store,
		sink:         o.Sink,
		logger:       o.Logger,
		flushRetries: o.FlushRetries,
		flushBackoff: o.FlushBackoff,
	}
	return c
}

// RestoreCoordinator rebuilds a coordinator from a durable snapshot after a
// process restart. An in-flight pomodoro phase is re-armed from its
// anchor+duration; if the phase end already passed, the advance fires
// immediately.
func RestoreCoordinator(snap *model.RoomSnapshot, opts Options) *Coordinator {
	o := opts.withDefaults()
	rm := snap.Room
	c := &Coordinator{
		room:         &rm,
		presence:     restorePresenceTracker(snap.Participants, snap.Stats.PeakParticipants),
		chat:         restoreChatLog(rm.ID, snap.Messages),
		engine:       restorePomodoroEngine(snap.Pomodoro),
		annex:        restoreResourceAnnex(rm.ID, snap.Resources),
		stats:        restoreStatsAggregator(snap.Stats),
		lastActivity: time.Now(),
		store:        o.Store,
		sink:         o.Sink,
		logger:       o.Logger,
		flushRetries: o.FlushRetries,
		flushBackoff: o.FlushBackoff,
	}
	c.mu.Lock()
	c.armAdvance()
	c.mu.Unlock()
	return c
}

// ID returns the room id
func (c *Coordinator) ID() string {
	return c.room.ID
}

// Join admits a participant. A re-join reactivates the existing history
// entry; joining while already active is a no-op success. The returned
// snapshot bootstraps the joining client.
func (c *Coordinator) Join(userID, displayName, suppliedSecret string) (*model.RoomSnapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.room.IsEnded() {
		return nil, ErrRoomClosed
	}

	if c.room.IsPrivate && userID != c.room.HostID {
		if !c.room.AccessSecretHash.Valid ||
			bcrypt.CompareHashAndPassword([]byte(c.room.AccessSecretHash.String), []byte(suppliedSecret)) != nil {
			return nil, ErrForbidden
		}
	}

	if !c.presence.isActive(userID) && c.presence.activeCount() >= c.room.Capacity {
		return nil, ErrRoomFull
	}

	now := time.Now()
	entry, changed := c.presence.activate(c.room.ID, userID, displayName, now)
	if !changed {
		return c.buildSnapshot(), nil
	}

	if c.room.Status == model.RoomStatusScheduled {
		c.room.Status = model.RoomStatusActive
	}
	c.stats.observeActive(c.presence.activeCount())
	c.lastActivity = now

	c.logger.Info("Participant joined room",
		zap.String("room_id", c.room.ID),
		zap.String("user_id", userID),
		zap.Int("active_count", c.presence.activeCount()),
	)

	c.emit(EventPresenceChanged, &PresenceChangedPayload{
		ParticipantID: entry.UserID,
		DisplayName:   entry.DisplayName,
		Joined:        true,
		ActiveCount:   c.presence.activeCount(),
		OccurredAt:    now,
	})
	c.flushAsync()

	return c.buildSnapshot(), nil
}

// Leave marks the participant inactive. Leaving twice, leaving without
// having joined, and leaving an ended room are all no-op successes.
func (c *Coordinator) Leave(userID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.room.IsEnded() {
		return nil
	}

	entry, changed := c.presence.deactivate(userID)
	if !changed {
		return nil
	}

	now := time.Now()
	c.lastActivity = now

	c.logger.Info("Participant left room",
		zap.String("room_id", c.room.ID),
		zap.String("user_id", userID),
		zap.Int("active_count", c.presence.activeCount()),
	)

	c.emit(EventPresenceChanged, &PresenceChangedPayload{
		ParticipantID: entry.UserID,
		DisplayName:   entry.DisplayName,
		Joined:        false,
		ActiveCount:   c.presence.activeCount(),
		OccurredAt:    now,
	})
	c.flushAsync()
	return nil
}

// PostChat appends a message to the room's chat log. The author's display
// name is snapshotted into the entry at send time.
func (c *Coordinator) PostChat(userID, displayName, body string) (*model.ChatMessage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.room.IsEnded() {
		return nil, ErrRoomClosed
	}
	if !c.presence.isActive(userID) {
		return nil, ErrNotAMember
	}

	now := time.Now()
	msg := c.chat.append(userID, displayName, body, now)
	c.stats.messagePosted()
	c.lastActivity = now

	c.emit(EventChatPosted, msg)
	c.flushAsync()

	cp := *msg
	return &cp, nil
}

// StartPomodoro starts or restarts the shared timer in the work phase.
// Only the host may start it; restarting while active resets the anchor.
func (c *Coordinator) StartPomodoro(userID string, workMinutes, breakMinutes int) (model.PomodoroState, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.room.IsEnded() {
		return model.PomodoroState{}, ErrRoomClosed
	}
	if userID != c.room.HostID {
		return model.PomodoroState{}, ErrNotHost
	}

	if workMinutes <= 0 {
		workMinutes = defaultWorkMinutes
	}
	if breakMinutes <= 0 {
		breakMinutes = defaultBreakMinutes
	}

	now := time.Now()
	c.engine.start(workMinutes, breakMinutes, now)
	c.room.WorkMinutes = workMinutes
	c.room.BreakMinutes = breakMinutes
	c.lastActivity = now
	c.armAdvance()

	c.logger.Info("Pomodoro started",
		zap.String("room_id", c.room.ID),
		zap.Int("work_minutes", workMinutes),
		zap.Int("break_minutes", breakMinutes),
	)

	state := c.engine.snapshot()
	c.emit(EventPhaseChanged, &PhaseChangedPayload{State: state})
	c.flushAsync()
	return state, nil
}

// AdvancePhase is invoked by the coordinator's own timer when the current
// phase has elapsed. The anchor the timer was armed against is passed back
// in; if the phase changed for any other reason since (stop, restart, room
// end), the anchor no longer matches and the call is a no-op. A completed
// work phase credits its duration to the room's study time.
func (c *Coordinator) AdvancePhase(anchor time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.room.IsEnded() || !c.engine.active || !c.engine.anchor.Equal(anchor) {
		return
	}

	now := time.Now()
	credited, ok := c.engine.advance(now)
	if !ok {
		return
	}
	c.stats.studyCompleted(credited)
	c.lastActivity = now
	c.armAdvance()

	c.logger.Debug("Pomodoro phase advanced",
		zap.String("room_id", c.room.ID),
		zap.String("phase", string(c.engine.phase)),
		zap.Int("credited_minutes", credited),
	)

	c.emit(EventPhaseChanged, &PhaseChangedPayload{State: c.engine.snapshot()})
	c.flushAsync()
}

// StopPomodoro returns the timer to idle. Host only.
func (c *Coordinator) StopPomodoro(userID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.room.IsEnded() {
		return ErrRoomClosed
	}
	if userID != c.room.HostID {
		return ErrNotHost
	}

	c.engine.stop()
	c.cancelAdvance()
	c.lastActivity = time.Now()

	c.emit(EventPhaseChanged, &PhaseChangedPayload{State: c.engine.snapshot()})
	c.flushAsync()
	return nil
}

// ShareResource appends a reference to the room's resource annex
func (c *Coordinator) ShareResource(userID, displayName, resourceRef, title string) (*model.SharedResource, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.room.IsEnded() {
		return nil, ErrRoomClosed
	}
	if !c.presence.isActive(userID) {
		return nil, ErrNotAMember
	}

	now := time.Now()
	entry := c.annex.append(userID, displayName, resourceRef, title, now)
	c.lastActivity = now

	c.emit(EventResourceShared, entry)
	c.flushAsync()

	cp := *entry
	return &cp, nil
}

// EndRoom moves the room to its terminal status, freezing all sub-state and
// computing the final stats. Host only; a second call is a no-op success.
// A work phase still in flight credits its elapsed whole minutes.
func (c *Coordinator) EndRoom(userID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if userID != c.room.HostID {
		return ErrNotHost
	}
	if c.room.IsEnded() {
		return nil
	}

	now := time.Now()
	c.stats.studyCompleted(c.engine.elapsedWorkMinutes(now))
	c.engine.stop()
	c.cancelAdvance()

	c.room.Status = model.RoomStatusEnded
	c.room.EndedAt.Time = now
	c.room.EndedAt.Valid = true
	c.lastActivity = now

	final := c.stats.snapshot()
	c.logger.Info("Room ended",
		zap.String("room_id", c.room.ID),
		zap.Int("total_messages", final.TotalMessages),
		zap.Int("peak_participants", final.PeakParticipants),
		zap.Int("total_study_minutes", final.TotalStudyMinutes),
	)

	c.emit(EventRoomEnded, &RoomEndedPayload{EndedAt: now, Stats: final})
	c.flushAsync()
	return nil
}

// Snapshot returns a full immutable view of the room, safe for any caller
// at any time.
func (c *Coordinator) Snapshot() *model.RoomSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buildSnapshot()
}

// ActiveCount returns the number of active participants
func (c *Coordinator) ActiveCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.presence.activeCount()
}

// Status returns the room's lifecycle status
func (c *Coordinator) Status() model.RoomStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.room.Status
}

// LastActivity returns when the room last processed a mutation; the
// registry's idle-eviction policy reads it.
func (c *Coordinator) LastActivity() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastActivity
}

// SequenceIntact reports whether the chat log's gap-free sequencing
// invariant still holds. The registry rebuilds a room from its durable
// snapshot when this returns false.
func (c *Coordinator) SequenceIntact() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.chat.sequenceIntact()
}

// Close cancels the coordinator's internal timer. Called on eviction.
func (c *Coordinator) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancelAdvance()
}

// buildSnapshot assembles the immutable view. Callers must hold c.mu.
func (c *Coordinator) buildSnapshot() *model.RoomSnapshot {
	rm := *c.room
	return &model.RoomSnapshot{
		Room:         rm,
		Participants: c.presence.snapshot(),
		Messages:     c.chat.snapshot(),
		Resources:    c.annex.snapshot(),
		Pomodoro:     c.engine.snapshot(),
		Stats:        c.statsView(),
	}
}

// statsView merges the maintained counters with the presence high-water
// mark. Callers must hold c.mu.
func (c *Coordinator) statsView() model.RoomStats {
	s := c.stats.snapshot()
	if hw := c.presence.highWaterMark(); hw > s.PeakParticipants {
		s.PeakParticipants = hw
	}
	return s
}

// armAdvance schedules the next automatic phase advance, carrying the
// anchor it was computed against. Callers must hold c.mu.
func (c *Coordinator) armAdvance() {
	c.cancelAdvance()
	if !c.engine.active {
		return
	}
	anchor := c.engine.anchor
	delay := time.Until(anchor.Add(c.engine.phaseDuration()))
	if delay < 0 {
		delay = 0
	}
	c.phaseTimer = time.AfterFunc(delay, func() {
		c.AdvancePhase(anchor)
	})
}

// cancelAdvance stops the pending advance timer if any. Callers must hold c.mu.
func (c *Coordinator) cancelAdvance() {
	if c.phaseTimer != nil {
		c.phaseTimer.Stop()
		c.phaseTimer = nil
	}
}

// emit hands an event to the sink in operation order. The sink must not
// block; per-subscriber delivery is fire-and-forget so a slow connection
// cannot stall the room. Callers must hold c.mu.
func (c *Coordinator) emit(evtType EventType, payload interface{}) {
	if c.sink == nil {
		return
	}
	c.sink.Publish(c.room.ID, &Event{
		Type:      evtType,
		RoomID:    c.room.ID,
		Payload:   payload,
		Timestamp: time.Now(),
	})
}

// flushAsync persists the current snapshot outside the critical section.
// Writes for one room are serialized through a single flusher goroutine
// and a newer snapshot replaces a queued one, so the durable record always
// converges on the latest state and a stale flush can never land after the
// end-of-room flush. Transient storage failures are retried with backoff
// and never fail the in-memory operation. Callers must hold c.mu.
func (c *Coordinator) flushAsync() {
	if c.store == nil {
		return
	}
	snap := c.buildSnapshot()

	c.flushMu.Lock()
	c.pendingSnap = snap
	if !c.flushing {
		c.flushing = true
		go c.flushLoop()
	}
	c.flushMu.Unlock()
}

// flushLoop drains pending snapshots until none remain, then exits. At most
// one loop runs per coordinator.
func (c *Coordinator) flushLoop() {
	for {
		c.flushMu.Lock()
		snap := c.pendingSnap
		c.pendingSnap = nil
		if snap == nil {
			c.flushing = false
			c.flushMu.Unlock()
			return
		}
		c.flushMu.Unlock()

		c.flush(snap)
	}
}

func (c *Coordinator) flush(snap *model.RoomSnapshot) {
	backoff := c.flushBackoff
	for attempt := 0; ; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
		err := c.store.SaveSnapshot(ctx, snap)
		cancel()
		if err == nil {
			return
		}
		if attempt >= c.flushRetries {
			c.logger.Error("Dropping room snapshot after retries",
				zap.String("room_id", snap.Room.ID),
				zap.Int("attempts", attempt+1),
				zap.Error(err),
			)
			return
		}
		c.logger.Warn("Snapshot flush failed, retrying",
			zap.String("room_id", snap.Room.ID),
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)
		time.Sleep(backoff)
		backoff *= 2
	}
}
