package room

import (
	"time"

	"github.com/go-demo/studyroom/internal/model"
)

// chatLog is the per-room append-only message sequence. The sequence number
// is strictly increasing and never reused; it is the ordering authority for
// every consumer. No edit or delete operation exists.
type chatLog struct {
	roomID   string
	messages []*model.ChatMessage
	seq      int64
}

func newChatLog(roomID string) *chatLog {
	return &chatLog{roomID: roomID}
}

func restoreChatLog(roomID string, messages []*model.ChatMessage) *chatLog {
	l := newChatLog(roomID)
	for _, m := range messages {
		l.messages = append(l.messages, m)
		if m.Seq > l.seq {
			l.seq = m.Seq
		}
	}
	return l
}

func (l *chatLog) append(authorID, authorName, body string, now time.Time) *model.ChatMessage {
	l.seq++
	msg := &model.ChatMessage{
		RoomID:     l.roomID,
		Seq:        l.seq,
		AuthorID:   authorID,
		AuthorName: authorName,
		Body:       body,
		SentAt:     now,
	}
	l.messages = append(l.messages, msg)
	return msg
}

func (l *chatLog) length() int {
	return len(l.messages)
}

// lastSeq returns the highest sequence number handed out so far
func (l *chatLog) lastSeq() int64 {
	return l.seq
}

// sequenceIntact reports whether the log still holds a gap-free 1..N
// sequence. A false return means the in-memory state is corrupt and the
// room must be rebuilt from its durable snapshot.
func (l *chatLog) sequenceIntact() bool {
	var prev int64
	for _, m := range l.messages {
		if m.Seq != prev+1 {
			return false
		}
		prev = m.Seq
	}
	return prev == l.seq
}

func (l *chatLog) snapshot() []*model.ChatMessage {
	out := make([]*model.ChatMessage, len(l.messages))
	for i, m := range l.messages {
		cp := *m
		out[i] = &cp
	}
	return out
}
