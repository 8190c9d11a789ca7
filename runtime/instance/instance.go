package instance

import (
	"time"

	"github.com/acorlabs/approval/model"
)

// Instance is the persisted saga state of one approval process run. It is
// identified by an immutable correlation id and mutated exclusively inside a
// single load-validate-persist cycle; the whole record is replaced on save so
// that readers never observe a partially applied transition.
type Instance struct {
	CorrelationID  string `json:"correlationId"`
	ProcessID      string `json:"processId"`
	OrgStructureID string `json:"orgStructureId"`
	RequestOwnerID string `json:"requestOwnerId"`

	// Sequential selects the topology: true unlocks levels one at a time in
	// definition order, false opens all levels at once.
	Sequential bool `json:"sequential"`

	// CurrentLevelID is only meaningful for sequential instances in the
	// pending status.
	CurrentLevelID string `json:"currentLevelId,omitempty"`

	RecordID          string `json:"recordId"`
	RecordNumber      string `json:"recordNumber"`
	RecordDescription string `json:"recordDescription,omitempty"`
	EntryURI          string `json:"entryUri,omitempty"`
	SourceURI         string `json:"sourceUri,omitempty"`
	ApprovalsURI      string `json:"approvalsUri,omitempty"`

	Status Status        `json:"status"`
	Levels []*LevelState `json:"levels"`

	// ReturnedLevelID remembers which level sent the request back so that a
	// resubmission can resume there.
	ReturnedLevelID string `json:"returnedLevelId,omitempty"`

	// AppliedEvents holds the ids of the most recently applied inbound
	// events; redelivery of any of them is a guaranteed no-op even when the
	// event would otherwise be applicable again (e.g. an implicit-level
	// approval after the current level moved on).
	AppliedEvents []string `json:"appliedEvents,omitempty"`

	// Revision is the optimistic concurrency token compared by the store on
	// save; a stale revision fails the write and forces a reload.
	Revision int `json:"revision"`

	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
	FinishedAt *time.Time `json:"finishedAt,omitempty"`
}

// LevelState is the per-level decision record kept on the instance.
type LevelState struct {
	LevelID   string     `json:"levelId"`
	Name      string     `json:"name,omitempty"`
	Decision  Decision   `json:"decision,omitempty"`
	DecidedBy string     `json:"decidedBy,omitempty"`
	Comment   string     `json:"comment,omitempty"`
	DecidedAt *time.Time `json:"decidedAt,omitempty"`
}

// New creates a pending instance for the supplied process definition. For a
// sequential process the first level becomes current; for a parallel process
// every level opens immediately.
func New(correlationID string, def *model.Process, now time.Time) *Instance {
	ret := &Instance{
		CorrelationID: correlationID,
		ProcessID:     def.ID,
		Sequential:    def.Sequential,
		Status:        StatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	for _, level := range def.Levels {
		ret.Levels = append(ret.Levels, &LevelState{LevelID: level.ID, Name: level.Name})
	}
	if def.Sequential {
		if first := def.First(); first != nil {
			ret.CurrentLevelID = first.ID
		}
	}
	return ret
}

// Level returns the state of the supplied level id or nil.
func (i *Instance) Level(id string) *LevelState {
	for _, level := range i.Levels {
		if level.LevelID == id {
			return level
		}
	}
	return nil
}

// appliedEventLimit caps the dedup window kept on the instance; an approval
// process sees a handful of events over its lifetime, so a small window
// comfortably covers transport redelivery.
const appliedEventLimit = 64

// Applied reports whether the supplied event id was already applied.
func (i *Instance) Applied(eventID string) bool {
	if eventID == "" {
		return false
	}
	for _, id := range i.AppliedEvents {
		if id == eventID {
			return true
		}
	}
	return false
}

// MarkApplied records an applied event id, evicting the oldest entry beyond
// the dedup window.
func (i *Instance) MarkApplied(eventID string) {
	if eventID == "" {
		return
	}
	i.AppliedEvents = append(i.AppliedEvents, eventID)
	if len(i.AppliedEvents) > appliedEventLimit {
		i.AppliedEvents = i.AppliedEvents[len(i.AppliedEvents)-appliedEventLimit:]
	}
}

// Clone returns a deep copy so that stores can hand out instances without
// sharing level slices with callers.
func (i *Instance) Clone() *Instance {
	if i == nil {
		return nil
	}
	ret := *i
	ret.Levels = make([]*LevelState, len(i.Levels))
	for idx, level := range i.Levels {
		cp := *level
		ret.Levels[idx] = &cp
	}
	ret.AppliedEvents = append([]string(nil), i.AppliedEvents...)
	if i.FinishedAt != nil {
		at := *i.FinishedAt
		ret.FinishedAt = &at
	}
	return &ret
}
