package domain

import (
	"slices"
	"time"
)

// AgentStatus enumerates agent availability states.
type AgentStatus string

const (
	AgentStatusAvailable AgentStatus = "AVAILABLE"
	AgentStatusBusy      AgentStatus = "BUSY"
	AgentStatusOffline   AgentStatus = "OFFLINE"
	AgentStatusBreak     AgentStatus = "BREAK"
)

// Valid reports whether s is a known agent status.
func (s AgentStatus) Valid() bool {
	switch s {
	case AgentStatusAvailable, AgentStatusBusy, AgentStatusOffline, AgentStatusBreak:
		return true
	}
	return false
}

// Agent models a support agent who takes cases from one or more queues.
// CurrentCaseCount is written only by the dispatcher.
type Agent struct {
	ID                 string
	Name               string
	Email              string
	Status             AgentStatus
	Skills             []QueueType
	MaxConcurrentCases int
	CurrentCaseCount   int
	LastActiveAt       time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// HasSkill reports whether the agent works the given queue type.
func (a *Agent) HasSkill(q QueueType) bool {
	return slices.Contains(a.Skills, q)
}

// HasCapacity reports whether another case fits under the concurrency limit.
func (a *Agent) HasCapacity() bool {
	return a.CurrentCaseCount < a.MaxConcurrentCases
}

// IsEligible reports whether the agent may be dispatched a case from q.
func (a *Agent) IsEligible(q QueueType) bool {
	return a.Status == AgentStatusAvailable && a.HasCapacity() && a.HasSkill(q)
}

// Clone returns a deep copy safe to mutate independently.
func (a *Agent) Clone() *Agent {
	if a == nil {
		return nil
	}
	out := *a
	out.Skills = slices.Clone(a.Skills)
	return &out
}
