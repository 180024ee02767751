package room

import (
	"time"

	"github.com/go-demo/studyroom/internal/model"
)

// pomodoroEngine is the per-room timer state machine: idle -> work (host
// start), work <-> break (time driven), any -> idle (host stop or room end).
// It publishes no per-second ticks; observers derive the countdown from the
// anchor and the active phase's duration.
type pomodoroEngine struct {
	active       bool
	phase        model.PomodoroPhase
	workMinutes  int
	breakMinutes int
	anchor       time.Time
}

func newPomodoroEngine() *pomodoroEngine {
	return &pomodoroEngine{phase: model.PhaseIdle}
}

func restorePomodoroEngine(state model.PomodoroState) *pomodoroEngine {
	e := newPomodoroEngine()
	e.active = state.Active
	e.phase = state.Phase
	e.workMinutes = state.WorkMinutes
	e.breakMinutes = state.BreakMinutes
	e.anchor = state.AnchorAt
	if !e.active {
		e.phase = model.PhaseIdle
	}
	return e
}

// start begins (or restarts) a cycle in the work phase with a fresh anchor
func (e *pomodoroEngine) start(workMinutes, breakMinutes int, now time.Time) {
	e.active = true
	e.phase = model.PhaseWork
	e.workMinutes = workMinutes
	e.breakMinutes = breakMinutes
	e.anchor = now
}

// advance toggles work<->break and resets the anchor. It returns the number
// of completed work minutes to credit (non-zero only on work -> break).
func (e *pomodoroEngine) advance(now time.Time) (creditedMinutes int, ok bool) {
	if !e.active {
		return 0, false
	}
	switch e.phase {
	case model.PhaseWork:
		e.phase = model.PhaseBreak
		creditedMinutes = e.workMinutes
	case model.PhaseBreak:
		e.phase = model.PhaseWork
	default:
		return 0, false
	}
	e.anchor = now
	return creditedMinutes, true
}

// stop returns the engine to idle. The zeroed anchor invalidates any
// scheduled advance that was armed against the old one.
func (e *pomodoroEngine) stop() {
	e.active = false
	e.phase = model.PhaseIdle
	e.anchor = time.Time{}
}

// elapsedWorkMinutes reports whole work minutes since the anchor, capped at
// the configured work duration. Used to credit study time when a room ends
// mid-phase.
func (e *pomodoroEngine) elapsedWorkMinutes(now time.Time) int {
	if !e.active || e.phase != model.PhaseWork {
		return 0
	}
	min := int(now.Sub(e.anchor).Minutes())
	if min < 0 {
		min = 0
	}
	if min > e.workMinutes {
		min = e.workMinutes
	}
	return min
}

func (e *pomodoroEngine) phaseDuration() time.Duration {
	switch e.phase {
	case model.PhaseWork:
		return time.Duration(e.workMinutes) * time.Minute
	case model.PhaseBreak:
		return time.Duration(e.breakMinutes) * time.Minute
	}
	return 0
}

func (e *pomodoroEngine) snapshot() model.PomodoroState {
	return model.PomodoroState{
		Active:       e.active,
		Phase:        e.phase,
		WorkMinutes:  e.workMinutes,
		BreakMinutes: e.breakMinutes,
		AnchorAt:     e.anchor,
	}
}
