package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/casedesk/case-dispatch/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventCaseQueued        EventType = "case_queued"
	EventCaseAssigned      EventType = "case_assigned"
	EventCaseStatusChanged EventType = "case_status_changed"
	EventCaseResolved      EventType = "case_resolved"
	EventSlaBreached       EventType = "sla_breached"
)

// Event represents a domain event emitted by the dispatch core.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	CaseID    string      `json:"case_id"`
	ActorID   string      `json:"actor_id,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// New stamps an event with a fresh id.
func New(eventType EventType, caseID string, at time.Time, payload interface{}) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		CaseID:    caseID,
		Timestamp: at,
		Payload:   payload,
	}
}

// CaseQueuedPayload payload.
type CaseQueuedPayload struct {
	EntryID   string              `json:"entry_id"`
	QueueType domain.QueueType    `json:"queue_type"`
	Priority  domain.CasePriority `json:"priority"`
	Score     int                 `json:"score"`
}

// CaseAssignedPayload payload.
type CaseAssignedPayload struct {
	EntryID   string           `json:"entry_id"`
	AgentID   string           `json:"agent_id"`
	QueueType domain.QueueType `json:"queue_type"`
	WaitedFor time.Duration    `json:"waited_for"`
}

// CaseStatusChangedPayload payload.
type CaseStatusChangedPayload struct {
	OldStatus domain.CaseStatus `json:"old_status"`
	NewStatus domain.CaseStatus `json:"new_status"`
}

// CaseResolvedPayload payload.
type CaseResolvedPayload struct {
	AgentID   *string           `json:"agent_id,omitempty"`
	QueueType domain.QueueType  `json:"queue_type"`
	Status    domain.CaseStatus `json:"status"`
}

// SlaBreachedPayload payload.
type SlaBreachedPayload struct {
	PreviousStatus domain.SlaStatus `json:"previous_status"`
	Milestone      string           `json:"milestone"`
	ElapsedMinutes int64            `json:"elapsed_minutes"`
	TargetMinutes  int              `json:"target_minutes"`
}
