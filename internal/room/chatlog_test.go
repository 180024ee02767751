package room

import (
	"testing"
	"time"

	"github.com/go-demo/studyroom/internal/model"
)

func TestChatLog_AppendAssignsSequence(t *testing.T) {
	l := newChatLog("room-1")

	for i := 1; i <= 3; i++ {
		msg := l.append("user-a", "Alice", "hi", time.Now())
		if msg.Seq != int64(i) {
			t.Errorf("Expected seq %d, got %d", i, msg.Seq)
		}
	}
	if l.length() != 3 || l.lastSeq() != 3 {
		t.Errorf("Unexpected log state: length=%d lastSeq=%d", l.length(), l.lastSeq())
	}
	if !l.sequenceIntact() {
		t.Error("Fresh log reported a sequence gap")
	}
}

func TestChatLog_RestoreResumesSequence(t *testing.T) {
	l := restoreChatLog("room-1", []*model.ChatMessage{
		{RoomID: "room-1", Seq: 1, Body: "a"},
		{RoomID: "room-1", Seq: 2, Body: "b"},
	})

	msg := l.append("user-a", "Alice", "c", time.Now())
	if msg.Seq != 3 {
		t.Errorf("Expected seq 3 after restore, got %d", msg.Seq)
	}
	if !l.sequenceIntact() {
		t.Error("Restored log reported a sequence gap")
	}
}

func TestChatLog_SequenceIntactDetectsGap(t *testing.T) {
	l := restoreChatLog("room-1", []*model.ChatMessage{
		{RoomID: "room-1", Seq: 1, Body: "a"},
		{RoomID: "room-1", Seq: 3, Body: "c"},
	})
	if l.sequenceIntact() {
		t.Error("Gap between 1 and 3 not detected")
	}

	empty := newChatLog("room-1")
	if !empty.sequenceIntact() {
		t.Error("Empty log reported a gap")
	}
}
