package domain

import "time"

// CaseStatus enumerates lifecycle states for customer cases.
type CaseStatus string

const (
	CaseStatusNew             CaseStatus = "NEW"
	CaseStatusQueued          CaseStatus = "QUEUED"
	CaseStatusAssigned        CaseStatus = "ASSIGNED"
	CaseStatusInProgress      CaseStatus = "IN_PROGRESS"
	CaseStatusPendingCustomer CaseStatus = "PENDING_CUSTOMER"
	CaseStatusResolved        CaseStatus = "RESOLVED"
	CaseStatusClosed          CaseStatus = "CLOSED"
)

// Terminal reports whether no further work or SLA tracking applies.
func (s CaseStatus) Terminal() bool {
	return s == CaseStatusResolved || s == CaseStatusClosed
}

// CasePriority enumerates case urgency tiers.
type CasePriority string

const (
	CasePriorityLow    CasePriority = "LOW"
	CasePriorityNormal CasePriority = "NORMAL"
	CasePriorityHigh   CasePriority = "HIGH"
	CasePriorityUrgent CasePriority = "URGENT"
)

// Valid reports whether p is a known priority tier.
func (p CasePriority) Valid() bool {
	switch p {
	case CasePriorityLow, CasePriorityNormal, CasePriorityHigh, CasePriorityUrgent:
		return true
	}
	return false
}

// Case is a customer request tracked through dispatch and SLA.
// AssignedAgentID is a lookup key only.
type Case struct {
	ID              string
	CaseNumber      string
	CustomerEmail   string
	CustomerName    string
	Subject         string
	Description     string
	Priority        CasePriority
	QueueType       QueueType
	Status          CaseStatus
	AssignedAgentID *string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	ResolvedAt      *time.Time
}

// Clone returns a deep copy safe to mutate independently.
func (c *Case) Clone() *Case {
	if c == nil {
		return nil
	}
	out := *c
	out.AssignedAgentID = cloneString(c.AssignedAgentID)
	out.ResolvedAt = cloneTime(c.ResolvedAt)
	return &out
}

func cloneString(v *string) *string {
	if v == nil {
		return nil
	}
	s := *v
	return &s
}

func cloneTime(v *time.Time) *time.Time {
	if v == nil {
		return nil
	}
	t := *v
	return &t
}
