package repository

import (
	"context"
	"errors"
	"time"

	"github.com/casedesk/case-dispatch/internal/domain"
)

// CaseRepository encapsulates case persistence. The core never owns case identity;
// it reads and writes the dispatch subset of fields.
type CaseRepository interface {
	Create(ctx context.Context, c *domain.Case) error
	Update(ctx context.Context, c *domain.Case) error
	// UpdateStatus moves a case from one status to another and returns ErrConflict
	// when the stored status is no longer from.
	UpdateStatus(ctx context.Context, id string, from, to domain.CaseStatus) error
	GetByID(ctx context.Context, id string) (*domain.Case, error)
	GetByCaseNumber(ctx context.Context, number string) (*domain.Case, error)
	ListActive(ctx context.Context) ([]domain.Case, error)
	ListByAgent(ctx context.Context, agentID string, activeOnly bool) ([]domain.Case, error)
	ListByStatusCreatedBefore(ctx context.Context, status domain.CaseStatus, before time.Time) ([]domain.Case, error)
}

// AgentRepository handles persistence for agents.
type AgentRepository interface {
	Create(ctx context.Context, a *domain.Agent) error
	// Update writes profile and status fields. The case count is left alone;
	// only dispatch commits change it.
	Update(ctx context.Context, a *domain.Agent) error
	GetByID(ctx context.Context, id string) (*domain.Agent, error)
	List(ctx context.Context) ([]domain.Agent, error)
	FindEligible(ctx context.Context, qt domain.QueueType) ([]domain.Agent, error)
}

// QueueEntryRepository persists work queue entries.
type QueueEntryRepository interface {
	Create(ctx context.Context, e *domain.QueueEntry) error
	Update(ctx context.Context, e *domain.QueueEntry) error
	UpdateScore(ctx context.Context, id string, score int) error
	GetActiveByCase(ctx context.Context, caseID string) (*domain.QueueEntry, error)
	ListPending(ctx context.Context) ([]domain.QueueEntry, error)
	ListAssignedSince(ctx context.Context, qt domain.QueueType, since time.Time) ([]domain.QueueEntry, error)
}

// SlaRepository stores one SLA record per case.
type SlaRepository interface {
	Create(ctx context.Context, r *domain.SlaRecord) error
	Update(ctx context.Context, r *domain.SlaRecord) error
	UpdateStatus(ctx context.Context, caseID string, status domain.SlaStatus) error
	GetByCaseID(ctx context.Context, caseID string) (*domain.SlaRecord, error)
	ListOpenedBetween(ctx context.Context, from, to time.Time) ([]domain.SlaRecord, error)
	ListByStatus(ctx context.Context, status domain.SlaStatus) ([]domain.SlaRecord, error)
}

// ErrConflict is returned by a dispatch commit whose guard found the stored rows
// in a state other than the one the commit was computed from.
var ErrConflict = errors.New("dispatch commit conflict")

// AssignmentCommit is the set of rows written when a dispatch is committed.
type AssignmentCommit struct {
	Agent *domain.Agent
	Case  *domain.Case
	Entry *domain.QueueEntry
}

// ReleaseCommit is the set of rows written when a case leaves active work.
// Agent is nil when the case was never dispatched.
type ReleaseCommit struct {
	Agent *domain.Agent
	Case  *domain.Case
	Entry *domain.QueueEntry
}

// DispatchRepository writes multi-row dispatch state atomically: either every
// row in a commit becomes visible or none does. An assignment commit requires the
// stored agent count to be one below the committed count, the case to be open and
// unassigned, and the entry to be pending. A release requires the stored count to
// be one above the committed count and the case to be open with the same
// assigned agent the commit carries.
type DispatchRepository interface {
	CommitAssignment(ctx context.Context, commit AssignmentCommit) error
	CommitRelease(ctx context.Context, commit ReleaseCommit) error
}

// Stores bundles every repository the core consumes.
type Stores struct {
	Cases    CaseRepository
	Agents   AgentRepository
	Entries  QueueEntryRepository
	Sla      SlaRepository
	Dispatch DispatchRepository
}
