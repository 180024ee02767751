package room

import (
	"time"

	"github.com/google/uuid"
	"github.com/go-demo/studyroom/internal/model"
)

// resourceAnnex is the per-room append-only list of shared-resource
// references. No dedup: the same reference shared twice is two entries,
// each with its own attribution.
type resourceAnnex struct {
	roomID  string
	entries []*model.SharedResource
}

func newResourceAnnex(roomID string) *resourceAnnex {
	return &resourceAnnex{roomID: roomID}
}

func restoreResourceAnnex(roomID string, entries []*model.SharedResource) *resourceAnnex {
	return &resourceAnnex{roomID: roomID, entries: entries}
}

func (a *resourceAnnex) append(sharerID, sharerName, resourceRef, title string, now time.Time) *model.SharedResource {
	entry := &model.SharedResource{
		ID:          uuid.New().String(),
		RoomID:      a.roomID,
		SharerID:    sharerID,
		SharerName:  sharerName,
		ResourceRef: resourceRef,
		Title:       title,
		SharedAt:    now,
	}
	a.entries = append(a.entries, entry)
	return entry
}

func (a *resourceAnnex) snapshot() []*model.SharedResource {
	out := make([]*model.SharedResource, len(a.entries))
	for i, e := range a.entries {
		cp := *e
		out[i] = &cp
	}
	return out
}
