package domain

import "time"

// QueueEntryStatus enumerates dispatch states of a queue entry.
type QueueEntryStatus string

const (
	QueueEntryPending   QueueEntryStatus = "PENDING"
	QueueEntryAssigned  QueueEntryStatus = "ASSIGNED"
	QueueEntryCompleted QueueEntryStatus = "COMPLETED"
)

// QueueEntry is a case's place in a work queue. BaseScore is fixed at enqueue;
// PriorityScore is BaseScore plus any aging boost applied by redistribution.
type QueueEntry struct {
	ID              string
	CaseID          string
	QueueType       QueueType
	Status          QueueEntryStatus
	BaseScore       int
	PriorityScore   int
	Sequence        uint64
	EnqueuedAt      time.Time
	AssignedAt      *time.Time
	AssignedAgentID *string
	CompletedAt     *time.Time
}

// Clone returns a deep copy safe to mutate independently.
func (e *QueueEntry) Clone() *QueueEntry {
	if e == nil {
		return nil
	}
	out := *e
	out.AssignedAt = cloneTime(e.AssignedAt)
	out.AssignedAgentID = cloneString(e.AssignedAgentID)
	out.CompletedAt = cloneTime(e.CompletedAt)
	return &out
}
