package room

import (
	"time"

	"github.com/google/uuid"
	"github.com/go-demo/studyroom/internal/model"
)

// presenceTracker keeps the per-room participant history and the active
// count. It has no locking of its own; the owning Coordinator's single-writer
// discipline is what makes it safe.
type presenceTracker struct {
	entries []*model.ParticipantEntry
	byUser  map[string]*model.ParticipantEntry
	active  int
	peak    int
}

func newPresenceTracker() *presenceTracker {
	return &presenceTracker{
		byUser: make(map[string]*model.ParticipantEntry),
	}
}

func restorePresenceTracker(entries []*model.ParticipantEntry, peak int) *presenceTracker {
	p := newPresenceTracker()
	for _, e := range entries {
		p.entries = append(p.entries, e)
		p.byUser[e.UserID] = e
		if e.IsActive {
			p.active++
		}
	}
	if peak > p.peak {
		p.peak = peak
	}
	if p.active > p.peak {
		p.peak = p.active
	}
	return p
}

// activate inserts a new entry or reactivates the existing one. It returns
// the entry and whether presence actually changed (a second join by an
// already-active user changes nothing).
func (p *presenceTracker) activate(roomID, userID, displayName string, now time.Time) (*model.ParticipantEntry, bool) {
	if e, ok := p.byUser[userID]; ok {
		if e.IsActive {
			return e, false
		}
		e.IsActive = true
		e.DisplayName = displayName
		p.active++
		if p.active > p.peak {
			p.peak = p.active
		}
		return e, true
	}

	e := &model.ParticipantEntry{
		ID:          uuid.New().String(),
		RoomID:      roomID,
		UserID:      userID,
		DisplayName: displayName,
		JoinedAt:    now,
		IsActive:    true,
	}
	p.entries = append(p.entries, e)
	p.byUser[userID] = e
	p.active++
	if p.active > p.peak {
		p.peak = p.active
	}
	return e, true
}

// deactivate marks the user's entry inactive. The historical entry is kept.
func (p *presenceTracker) deactivate(userID string) (*model.ParticipantEntry, bool) {
	e, ok := p.byUser[userID]
	if !ok || !e.IsActive {
		return e, false
	}
	e.IsActive = false
	p.active--
	return e, true
}

func (p *presenceTracker) isActive(userID string) bool {
	e, ok := p.byUser[userID]
	return ok && e.IsActive
}

func (p *presenceTracker) activeCount() int {
	return p.active
}

// highWaterMark is the peak concurrent active count ever observed
func (p *presenceTracker) highWaterMark() int {
	return p.peak
}

func (p *presenceTracker) snapshot() []*model.ParticipantEntry {
	out := make([]*model.ParticipantEntry, len(p.entries))
	for i, e := range p.entries {
		cp := *e
		out[i] = &cp
	}
	return out
}
