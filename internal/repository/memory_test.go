package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/casedesk/case-dispatch/internal/domain"
	apperrors "github.com/casedesk/case-dispatch/pkg/util/errorutil"
)

var base = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func seed(t *testing.T) (*Memory, Stores) {
	t.Helper()
	m := NewMemory()
	s := m.Stores()
	ctx := context.Background()
	require.NoError(t, s.Agents.Create(ctx, &domain.Agent{
		ID: "a1", Status: domain.AgentStatusAvailable, MaxConcurrentCases: 1,
		Skills: []domain.QueueType{domain.QueueTypeGeneralInquiry},
	}))
	require.NoError(t, s.Cases.Create(ctx, &domain.Case{ID: "c1", Status: domain.CaseStatusQueued, CreatedAt: base}))
	require.NoError(t, s.Entries.Create(ctx, &domain.QueueEntry{ID: "e1", CaseID: "c1", QueueType: domain.QueueTypeGeneralInquiry, Status: domain.QueueEntryPending, Sequence: 1}))
	return m, s
}

func assignment(agentCount int) AssignmentCommit {
	agentID := "a1"
	now := base.Add(time.Minute)
	return AssignmentCommit{
		Agent: &domain.Agent{ID: agentID, Status: domain.AgentStatusAvailable, MaxConcurrentCases: 1, CurrentCaseCount: agentCount},
		Case:  &domain.Case{ID: "c1", Status: domain.CaseStatusAssigned, AssignedAgentID: &agentID, CreatedAt: base},
		Entry: &domain.QueueEntry{ID: "e1", CaseID: "c1", QueueType: domain.QueueTypeGeneralInquiry, Status: domain.QueueEntryAssigned, AssignedAt: &now, AssignedAgentID: &agentID, Sequence: 1},
	}
}

func TestMemoryReturnsCopies(t *testing.T) {
	_, s := seed(t)
	ctx := context.Background()

	c, err := s.Cases.GetByID(ctx, "c1")
	require.NoError(t, err)
	c.Status = domain.CaseStatusClosed

	again, err := s.Cases.GetByID(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, domain.CaseStatusQueued, again.Status)

	_, err = s.Cases.GetByID(ctx, "missing")
	assert.True(t, apperrors.IsNotFound(err))
}

func TestCommitAssignmentGuards(t *testing.T) {
	m, s := seed(t)
	ctx := context.Background()

	assert.ErrorIs(t, m.CommitAssignment(ctx, assignment(2)), ErrConflict)
	require.NoError(t, m.CommitAssignment(ctx, assignment(1)))

	c, agent, entry := m.Snapshot("c1")
	assert.Equal(t, "a1", *c.AssignedAgentID)
	assert.Equal(t, 1, agent.CurrentCaseCount)
	assert.Equal(t, domain.QueueEntryAssigned, entry.Status)

	assert.ErrorIs(t, m.CommitAssignment(ctx, assignment(2)), ErrConflict)

	eligible, err := s.Agents.FindEligible(ctx, domain.QueueTypeGeneralInquiry)
	require.NoError(t, err)
	assert.Empty(t, eligible)
}

func TestCommitReleaseGuards(t *testing.T) {
	m, s := seed(t)
	ctx := context.Background()
	require.NoError(t, m.CommitAssignment(ctx, assignment(1)))

	now := base.Add(time.Hour)
	agentID := "a1"
	release := ReleaseCommit{
		Agent: &domain.Agent{ID: agentID, MaxConcurrentCases: 1, Status: domain.AgentStatusAvailable},
		Case:  &domain.Case{ID: "c1", Status: domain.CaseStatusResolved, AssignedAgentID: &agentID, ResolvedAt: &now, CreatedAt: base},
		Entry: &domain.QueueEntry{ID: "e1", CaseID: "c1", Status: domain.QueueEntryCompleted, CompletedAt: &now, Sequence: 1},
	}

	unassigned := release
	unassigned.Case = &domain.Case{ID: "c1", Status: domain.CaseStatusResolved}
	unassigned.Agent = nil
	assert.ErrorIs(t, m.CommitRelease(ctx, unassigned), ErrConflict)

	require.NoError(t, m.CommitRelease(ctx, release))
	assert.ErrorIs(t, m.CommitRelease(ctx, release), ErrConflict)

	active, err := s.Cases.ListActive(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)

	_, err = s.Entries.GetActiveByCase(ctx, "c1")
	assert.True(t, apperrors.IsNotFound(err))
}

func TestListQueries(t *testing.T) {
	_, s := seed(t)
	ctx := context.Background()
	require.NoError(t, s.Cases.Create(ctx, &domain.Case{ID: "c0", Status: domain.CaseStatusNew, CreatedAt: base.Add(-time.Hour)}))

	stale, err := s.Cases.ListByStatusCreatedBefore(ctx, domain.CaseStatusNew, base)
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, "c0", stale[0].ID)

	active, err := s.Cases.ListActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"c0", "c1"}, []string{active[0].ID, active[1].ID})

	require.NoError(t, s.Sla.Create(ctx, &domain.SlaRecord{ID: "s1", CaseID: "c1", OpenedAt: base, Status: domain.SlaWithin}))
	require.NoError(t, s.Sla.UpdateStatus(ctx, "c1", domain.SlaBreached))
	breached, err := s.Sla.ListByStatus(ctx, domain.SlaBreached)
	require.NoError(t, err)
	assert.Len(t, breached, 1)

	window, err := s.Sla.ListOpenedBetween(ctx, base, base)
	require.NoError(t, err)
	assert.Len(t, window, 1)
	assert.Error(t, s.Sla.Create(ctx, &domain.SlaRecord{ID: "s2", CaseID: "c1"}))
}
