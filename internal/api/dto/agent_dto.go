package dto

import (
	"time"

	"github.com/casedesk/case-dispatch/internal/domain"
)

// UpsertAgentRequest payload.
type UpsertAgentRequest struct {
	Name               string             `json:"name"`
	Email              string             `json:"email"`
	Skills             []domain.QueueType `json:"skills"`
	MaxConcurrentCases int                `json:"max_concurrent_cases"`
	Status             domain.AgentStatus `json:"status"`
}

// AgentStatusRequest payload.
type AgentStatusRequest struct {
	Status domain.AgentStatus `json:"status"`
}

// AgentResponse represents an agent.
type AgentResponse struct {
	ID                 string             `json:"id"`
	Name               string             `json:"name"`
	Email              string             `json:"email,omitempty"`
	Status             domain.AgentStatus `json:"status"`
	Skills             []domain.QueueType `json:"skills"`
	MaxConcurrentCases int                `json:"max_concurrent_cases"`
	CurrentCaseCount   int                `json:"current_case_count"`
	LastActiveAt       time.Time          `json:"last_active_at"`
}

// WorkloadResponse describes an agent's active work.
type WorkloadResponse struct {
	Agent       AgentResponse  `json:"agent"`
	ActiveCases []CaseResponse `json:"active_cases"`
}

// NextCaseResponse answers a dispatch request. Case is nil when nothing was
// dispatched and Reason says why.
type NextCaseResponse struct {
	Case           *CaseResponse `json:"case"`
	Reason         string        `json:"reason,omitempty"`
	EntryID        string        `json:"entry_id,omitempty"`
	PriorityScore  int           `json:"priority_score,omitempty"`
	WaitedMinutes  float64       `json:"waited_minutes,omitempty"`
	AgentCaseCount int           `json:"agent_case_count"`
}

// NewAgentResponse maps an agent.
func NewAgentResponse(a *domain.Agent) AgentResponse {
	skills := a.Skills
	if skills == nil {
		skills = []domain.QueueType{}
	}
	return AgentResponse{
		ID:                 a.ID,
		Name:               a.Name,
		Email:              a.Email,
		Status:             a.Status,
		Skills:             skills,
		MaxConcurrentCases: a.MaxConcurrentCases,
		CurrentCaseCount:   a.CurrentCaseCount,
		LastActiveAt:       a.LastActiveAt,
	}
}
