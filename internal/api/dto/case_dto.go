package dto

import (
	"time"

	"github.com/casedesk/case-dispatch/internal/domain"
)

// IntakeCaseRequest payload.
type IntakeCaseRequest struct {
	CustomerEmail  string              `json:"customer_email"`
	CustomerName   string              `json:"customer_name"`
	Subject        string              `json:"subject"`
	Body           string              `json:"body"`
	PrioritySignal string              `json:"priority_signal"`
	QueueType      domain.QueueType    `json:"queue_type"`
	Priority       domain.CasePriority `json:"priority"`
}

// UpdateCaseStatusRequest payload.
type UpdateCaseStatusRequest struct {
	Status domain.CaseStatus `json:"status"`
}

// CaseResponse represents a case.
type CaseResponse struct {
	ID              string              `json:"id"`
	CaseNumber      string              `json:"case_number"`
	CustomerEmail   string              `json:"customer_email"`
	CustomerName    string              `json:"customer_name,omitempty"`
	Subject         string              `json:"subject"`
	Description     string              `json:"description"`
	Priority        domain.CasePriority `json:"priority"`
	QueueType       domain.QueueType    `json:"queue_type"`
	Status          domain.CaseStatus   `json:"status"`
	AssignedAgentID *string             `json:"assigned_agent_id"`
	CreatedAt       time.Time           `json:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at"`
	ResolvedAt      *time.Time          `json:"resolved_at"`
}

// CaseDetailResponse is a case with its SLA record.
type CaseDetailResponse struct {
	CaseResponse
	Sla *SlaRecordResponse `json:"sla"`
}

// SlaRecordResponse represents an SLA record.
type SlaRecordResponse struct {
	Status                     domain.SlaStatus `json:"status"`
	OpenedAt                   time.Time        `json:"opened_at"`
	FirstResponseAt            *time.Time       `json:"first_response_at"`
	ResolutionAt               *time.Time       `json:"resolution_at"`
	FirstResponseMinutes       *int64           `json:"first_response_minutes"`
	ResolutionMinutes          *int64           `json:"resolution_minutes"`
	FirstResponseTargetMinutes int              `json:"first_response_target_minutes"`
	ResolutionTargetMinutes    int              `json:"resolution_target_minutes"`
	FirstResponseMet           *bool            `json:"first_response_met"`
	ResolutionMet              *bool            `json:"resolution_met"`
}

// SlaCaseResponse pairs a case with its SLA standing in listings.
type SlaCaseResponse struct {
	CaseID     string             `json:"case_id"`
	CaseNumber string             `json:"case_number"`
	Subject    string             `json:"subject"`
	QueueType  domain.QueueType   `json:"queue_type"`
	Status     domain.CaseStatus  `json:"status"`
	Sla        *SlaRecordResponse `json:"sla"`
}

// NewCaseResponse maps a case.
func NewCaseResponse(c *domain.Case) CaseResponse {
	return CaseResponse{
		ID:              c.ID,
		CaseNumber:      c.CaseNumber,
		CustomerEmail:   c.CustomerEmail,
		CustomerName:    c.CustomerName,
		Subject:         c.Subject,
		Description:     c.Description,
		Priority:        c.Priority,
		QueueType:       c.QueueType,
		Status:          c.Status,
		AssignedAgentID: c.AssignedAgentID,
		CreatedAt:       c.CreatedAt,
		UpdatedAt:       c.UpdatedAt,
		ResolvedAt:      c.ResolvedAt,
	}
}

// NewSlaRecordResponse maps an SLA record; nil stays nil.
func NewSlaRecordResponse(r *domain.SlaRecord) *SlaRecordResponse {
	if r == nil {
		return nil
	}
	return &SlaRecordResponse{
		Status:                     r.Status,
		OpenedAt:                   r.OpenedAt,
		FirstResponseAt:            r.FirstResponseAt,
		ResolutionAt:               r.ResolutionAt,
		FirstResponseMinutes:       r.FirstResponseMinutes,
		ResolutionMinutes:          r.ResolutionMinutes,
		FirstResponseTargetMinutes: r.FirstResponseTargetMinutes,
		ResolutionTargetMinutes:    r.ResolutionTargetMinutes,
		FirstResponseMet:           r.FirstResponseMet,
		ResolutionMet:              r.ResolutionMet,
	}
}
