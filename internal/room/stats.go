package room

import "github.com/go-demo/studyroom/internal/model"

// statsAggregator maintains the room's derived counters synchronously with
// each mutation, keeping stats reads O(1). All counters are monotonic: the
// message count mirrors the chat log length, the peak is a high-water mark
// updated only upward, and study minutes accumulate on work-phase
// completions and room end.
type statsAggregator struct {
	totalMessages     int
	peakParticipants  int
	totalStudyMinutes int
}

func restoreStatsAggregator(s model.RoomStats) *statsAggregator {
	return &statsAggregator{
		totalMessages:     s.TotalMessages,
		peakParticipants:  s.PeakParticipants,
		totalStudyMinutes: s.TotalStudyMinutes,
	}
}

func (s *statsAggregator) messagePosted() {
	s.totalMessages++
}

func (s *statsAggregator) observeActive(activeCount int) {
	if activeCount > s.peakParticipants {
		s.peakParticipants = activeCount
	}
}

func (s *statsAggregator) studyCompleted(minutes int) {
	if minutes > 0 {
		s.totalStudyMinutes += minutes
	}
}

func (s *statsAggregator) snapshot() model.RoomStats {
	return model.RoomStats{
		TotalMessages:     s.totalMessages,
		PeakParticipants:  s.peakParticipants,
		TotalStudyMinutes: s.totalStudyMinutes,
	}
}
