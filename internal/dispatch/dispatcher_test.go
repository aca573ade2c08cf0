package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/casedesk/case-dispatch/internal/domain"
	"github.com/casedesk/case-dispatch/internal/events"
	"github.com/casedesk/case-dispatch/internal/queue"
	"github.com/casedesk/case-dispatch/internal/repository"
	apperrors "github.com/casedesk/case-dispatch/pkg/util/errorutil"
)

type fixture struct {
	mem    *repository.Memory
	stores repository.Stores
	queue  *queue.WorkQueue
	d      *Dispatcher
	now    time.Time
	mu     sync.Mutex
}

func (f *fixture) clock() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fixture) advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{mem: repository.NewMemory(), now: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}
	f.stores = f.mem.Stores()
	f.queue = queue.New(queue.Options{Clock: f.clock})
	f.d = New(Dependencies{
		Queue:      f.queue,
		Stores:     f.stores,
		Dispatcher: events.NewInMemoryDispatcher(zaptest.NewLogger(t)),
		Logger:     zaptest.NewLogger(t),
		Clock:      f.clock,
		AgingBoost: 30,
	})
	return f
}

func (f *fixture) agent(t *testing.T, id string, max int, skills ...domain.QueueType) *domain.Agent {
	t.Helper()
	a := &domain.Agent{
		ID:                 id,
		Status:             domain.AgentStatusAvailable,
		Skills:             skills,
		MaxConcurrentCases: max,
	}
	require.NoError(t, f.stores.Agents.Create(context.Background(), a))
	return a
}

func (f *fixture) queued(t *testing.T, id string, p domain.CasePriority, qt domain.QueueType) {
	t.Helper()
	ctx := context.Background()
	c := &domain.Case{ID: id, Priority: p, QueueType: qt, Status: domain.CaseStatusQueued, CreatedAt: f.clock()}
	require.NoError(t, f.stores.Cases.Create(ctx, c))
	entry, err := f.queue.Enqueue(c)
	require.NoError(t, err)
	require.NoError(t, f.stores.Entries.Create(ctx, entry))
}

func (f *fixture) storedAgent(t *testing.T, id string) *domain.Agent {
	t.Helper()
	a, err := f.stores.Agents.GetByID(context.Background(), id)
	require.NoError(t, err)
	return a
}

func TestAssignCommitsCaseAgentAndEntryTogether(t *testing.T) {
	f := newFixture(t)
	f.agent(t, "a1", 3, domain.QueueTypeBillingSupport)
	f.queued(t, "normal", domain.CasePriorityNormal, domain.QueueTypeBillingSupport)
	f.advance(time.Minute)
	f.queued(t, "urgent", domain.CasePriorityUrgent, domain.QueueTypeBillingSupport)

	got, err := f.d.Assign(context.Background(), "a1", domain.QueueTypeBillingSupport)
	require.NoError(t, err)
	assert.Equal(t, "urgent", got.Case.ID)
	assert.Equal(t, 1, got.Agent.CurrentCaseCount)

	c, agent, entry := f.mem.Snapshot("urgent")
	require.NotNil(t, c.AssignedAgentID)
	assert.Equal(t, "a1", *c.AssignedAgentID)
	assert.Equal(t, domain.CaseStatusAssigned, c.Status)
	assert.Equal(t, 1, agent.CurrentCaseCount)
	assert.Equal(t, domain.QueueEntryAssigned, entry.Status)
	require.NotNil(t, entry.AssignedAgentID)
	assert.Equal(t, "a1", *entry.AssignedAgentID)
	assert.Equal(t, f.clock(), *entry.AssignedAt)
	assert.Equal(t, 1, f.queue.Depth(domain.QueueTypeBillingSupport))
}

func TestEligibilityIsCheckedInOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.agent(t, "a1", 1, domain.QueueTypeGeneralInquiry)
	f.queued(t, "c1", domain.CasePriorityNormal, domain.QueueTypeBillingSupport)

	a.Status = domain.AgentStatusOffline
	a.MaxConcurrentCases = 0
	require.NoError(t, f.stores.Agents.Update(ctx, a))
	_, err := f.d.Assign(ctx, "a1", domain.QueueTypeBillingSupport)
	assert.ErrorIs(t, err, ErrAgentUnavailable)

	a.Status = domain.AgentStatusAvailable
	require.NoError(t, f.stores.Agents.Update(ctx, a))
	_, err = f.d.Assign(ctx, "a1", domain.QueueTypeBillingSupport)
	assert.ErrorIs(t, err, ErrSkillMismatch)

	a.Skills = append(a.Skills, domain.QueueTypeBillingSupport)
	require.NoError(t, f.stores.Agents.Update(ctx, a))
	_, err = f.d.Assign(ctx, "a1", domain.QueueTypeBillingSupport)
	assert.ErrorIs(t, err, ErrAtCapacity)
	assert.True(t, IsIneligible(err))

	assert.Equal(t, 1, f.queue.Depth(domain.QueueTypeBillingSupport))

	a.MaxConcurrentCases = 1
	require.NoError(t, f.stores.Agents.Update(ctx, a))
	_, err = f.d.Assign(ctx, "a1", domain.QueueTypeGeneralInquiry)
	assert.ErrorIs(t, err, ErrNoPendingCase)
}

func TestCapacityFreedByResolution(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.agent(t, "a1", 1, domain.QueueTypeBillingSupport)
	f.queued(t, "first", domain.CasePriorityHigh, domain.QueueTypeBillingSupport)
	f.queued(t, "second", domain.CasePriorityNormal, domain.QueueTypeBillingSupport)

	got, err := f.d.Assign(ctx, "a1", domain.QueueTypeBillingSupport)
	require.NoError(t, err)
	assert.Equal(t, "first", got.Case.ID)

	_, err = f.d.Assign(ctx, "a1", domain.QueueTypeBillingSupport)
	require.ErrorIs(t, err, ErrAtCapacity)

	released, changed, err := f.d.Release(ctx, "first", domain.CaseStatusResolved)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, domain.CaseStatusResolved, released.Status)
	assert.NotNil(t, released.ResolvedAt)
	assert.Equal(t, 0, f.storedAgent(t, "a1").CurrentCaseCount)

	_, _, entry := f.mem.Snapshot("first")
	assert.Equal(t, domain.QueueEntryCompleted, entry.Status)

	got, err = f.d.Assign(ctx, "a1", domain.QueueTypeBillingSupport)
	require.NoError(t, err)
	assert.Equal(t, "second", got.Case.ID)
}

func TestConcurrentAssignNeverExceedsCapacity(t *testing.T) {
	f := newFixture(t)
	f.agent(t, "a1", 3, domain.QueueTypeGeneralInquiry)
	for i := 0; i < 20; i++ {
		f.queued(t, fmt.Sprintf("c%d", i), domain.CasePriorityNormal, domain.QueueTypeGeneralInquiry)
	}

	var (
		ok, full atomic.Int32
		wg       sync.WaitGroup
	)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.d.Assign(context.Background(), "a1", domain.QueueTypeGeneralInquiry)
			switch {
			case err == nil:
				ok.Add(1)
			case errors.Is(err, ErrAtCapacity):
				full.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(3), ok.Load())
	assert.Equal(t, int32(29), full.Load())
	assert.Equal(t, 3, f.storedAgent(t, "a1").CurrentCaseCount)
	assert.Equal(t, 17, f.queue.Depth(domain.QueueTypeGeneralInquiry))
}

func TestConcurrentAgentsNeverShareACase(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		f.agent(t, fmt.Sprintf("a%d", i), 2, domain.QueueTypeBillingSupport)
	}
	for i := 0; i < 8; i++ {
		f.queued(t, fmt.Sprintf("c%d", i), domain.CasePriorityNormal, domain.QueueTypeBillingSupport)
	}

	var (
		mu   sync.Mutex
		seen = map[string]string{}
		wg   sync.WaitGroup
	)
	for i := 0; i < 5; i++ {
		for j := 0; j < 3; j++ {
			wg.Add(1)
			go func(agentID string) {
				defer wg.Done()
				got, err := f.d.Assign(ctx, agentID, domain.QueueTypeBillingSupport)
				if err != nil {
					assert.True(t, IsIneligible(err), "unexpected error: %v", err)
					return
				}
				mu.Lock()
				defer mu.Unlock()
				_, dup := seen[got.Case.ID]
				assert.False(t, dup, "case %s dispatched twice", got.Case.ID)
				seen[got.Case.ID] = agentID
			}(fmt.Sprintf("a%d", i))
		}
	}
	wg.Wait()

	assert.Len(t, seen, 8)
	total := 0
	for i := 0; i < 5; i++ {
		a := f.storedAgent(t, fmt.Sprintf("a%d", i))
		assert.LessOrEqual(t, a.CurrentCaseCount, a.MaxConcurrentCases)
		total += a.CurrentCaseCount
	}
	assert.Equal(t, 8, total)
	for caseID, agentID := range seen {
		c, agent, entry := f.mem.Snapshot(caseID)
		assert.Equal(t, agentID, *c.AssignedAgentID)
		assert.Equal(t, agentID, agent.ID)
		assert.Equal(t, agentID, *entry.AssignedAgentID)
	}
}

func TestCommitFailureRestoresEntry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.agent(t, "a1", 2, domain.QueueTypeGeneralInquiry)
	f.queued(t, "c1", domain.CasePriorityNormal, domain.QueueTypeGeneralInquiry)

	f.mem.FailNext = func(op string) error {
		if op == "commit_assignment" {
			return errors.New("connection reset")
		}
		return nil
	}
	_, err := f.d.Assign(ctx, "a1", domain.QueueTypeGeneralInquiry)
	require.Error(t, err)
	assert.False(t, IsIneligible(err))

	assert.Equal(t, 1, f.queue.Depth(domain.QueueTypeGeneralInquiry))
	c, _, entry := f.mem.Snapshot("c1")
	assert.Nil(t, c.AssignedAgentID)
	assert.Equal(t, domain.CaseStatusQueued, c.Status)
	assert.Equal(t, domain.QueueEntryPending, entry.Status)
	assert.Equal(t, 0, f.storedAgent(t, "a1").CurrentCaseCount)

	f.mem.FailNext = nil
	got, err := f.d.Assign(ctx, "a1", domain.QueueTypeGeneralInquiry)
	require.NoError(t, err)
	assert.Equal(t, "c1", got.Case.ID)
}

func TestTerminalQueuedCaseIsAStateConflict(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.agent(t, "a1", 2, domain.QueueTypeGeneralInquiry)
	f.queued(t, "c1", domain.CasePriorityNormal, domain.QueueTypeGeneralInquiry)
	require.NoError(t, f.stores.Cases.UpdateStatus(ctx, "c1", domain.CaseStatusQueued, domain.CaseStatusClosed))

	_, err := f.d.Assign(ctx, "a1", domain.QueueTypeGeneralInquiry)
	assert.ErrorIs(t, err, ErrStateConflict)
	assert.Zero(t, f.queue.Depth(domain.QueueTypeGeneralInquiry))
	assert.Equal(t, 0, f.storedAgent(t, "a1").CurrentCaseCount)
}

func TestReleaseOfUndispatchedCaseLeavesQueue(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.queued(t, "c1", domain.CasePriorityLow, domain.QueueTypeGeneralInquiry)

	c, changed, err := f.d.Release(ctx, "c1", domain.CaseStatusClosed)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, domain.CaseStatusClosed, c.Status)
	assert.Zero(t, f.queue.Depth(domain.QueueTypeGeneralInquiry))

	_, _, entry := f.mem.Snapshot("c1")
	assert.Equal(t, domain.QueueEntryCompleted, entry.Status)

	_, changed, err = f.d.Release(ctx, "c1", domain.CaseStatusResolved)
	require.NoError(t, err)
	assert.False(t, changed)

	_, _, err = f.d.Release(ctx, "c1", domain.CaseStatusInProgress)
	assert.Error(t, err)
}

func TestReleaseCommitFailureKeepsCaseQueued(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.queued(t, "c1", domain.CasePriorityLow, domain.QueueTypeGeneralInquiry)
	f.mem.FailNext = func(op string) error {
		if op == "commit_release" {
			return errors.New("timeout")
		}
		return nil
	}

	_, _, err := f.d.Release(ctx, "c1", domain.CaseStatusResolved)
	require.Error(t, err)
	assert.Equal(t, 1, f.queue.Depth(domain.QueueTypeGeneralInquiry))
	head, _ := f.queue.PeekNext(domain.QueueTypeGeneralInquiry)
	assert.Equal(t, domain.QueueEntryPending, head.Status)
}

func TestSetAgentStatusBlocksDispatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.agent(t, "a1", 2, domain.QueueTypeGeneralInquiry)
	f.queued(t, "c1", domain.CasePriorityNormal, domain.QueueTypeGeneralInquiry)

	a, err := f.d.SetAgentStatus(ctx, "a1", domain.AgentStatusBreak)
	require.NoError(t, err)
	assert.Equal(t, domain.AgentStatusBreak, a.Status)

	_, err = f.d.Assign(ctx, "a1", domain.QueueTypeGeneralInquiry)
	assert.ErrorIs(t, err, ErrAgentUnavailable)

	_, err = f.d.SetAgentStatus(ctx, "a1", "LUNCH")
	assert.Error(t, err)
}

func TestRedistributePersistsBoostedScores(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.queued(t, "old", domain.CasePriorityLow, domain.QueueTypeGeneralInquiry)
	f.advance(2 * time.Hour)
	f.queued(t, "new", domain.CasePriorityNormal, domain.QueueTypeGeneralInquiry)

	changed := f.d.RedistributePending(ctx, time.Hour)
	assert.Equal(t, 1, changed[domain.QueueTypeGeneralInquiry])
	assert.Equal(t, 0, changed[domain.QueueTypeBillingSupport])

	_, _, entry := f.mem.Snapshot("old")
	assert.Equal(t, 65, entry.PriorityScore)
	head, _ := f.queue.PeekNext(domain.QueueTypeGeneralInquiry)
	assert.Equal(t, "old", head.CaseID)

	again := f.d.RedistributePending(ctx, time.Hour)
	assert.Equal(t, 0, again[domain.QueueTypeGeneralInquiry])
}

func TestReasonCode(t *testing.T) {
	assert.Equal(t, "AT_CAPACITY", ReasonCode(fmt.Errorf("wrapped: %w", ErrAtCapacity)))
	assert.Equal(t, "NO_PENDING_CASE", ReasonCode(ErrNoPendingCase))
	assert.Empty(t, ReasonCode(ErrStateConflict))
}

func TestRejectedCommitRequeuesDispatchableEntry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.agent(t, "a1", 2, domain.QueueTypeGeneralInquiry)
	f.queued(t, "c1", domain.CasePriorityNormal, domain.QueueTypeGeneralInquiry)

	f.mem.FailNext = func(op string) error {
		if op == "commit_assignment" {
			return repository.ErrConflict
		}
		return nil
	}
	_, err := f.d.Assign(ctx, "a1", domain.QueueTypeGeneralInquiry)
	assert.ErrorIs(t, err, ErrStateConflict)

	assert.Equal(t, 1, f.queue.Depth(domain.QueueTypeGeneralInquiry))
	c, _, entry := f.mem.Snapshot("c1")
	assert.Equal(t, domain.CaseStatusQueued, c.Status)
	assert.Equal(t, domain.QueueEntryPending, entry.Status)
	assert.True(t, f.queue.Holds(domain.QueueTypeGeneralInquiry, entry.ID))

	f.mem.FailNext = nil
	got, err := f.d.Assign(ctx, "a1", domain.QueueTypeGeneralInquiry)
	require.NoError(t, err)
	assert.Equal(t, "c1", got.Case.ID)
	assert.False(t, f.queue.Holds(domain.QueueTypeGeneralInquiry, got.Entry.ID))
}

// pausingAgents runs hook once, right after the first agent read returns.
type pausingAgents struct {
	repository.AgentRepository
	fired atomic.Bool
	hook  func()
}

func (r *pausingAgents) GetByID(ctx context.Context, id string) (*domain.Agent, error) {
	a, err := r.AgentRepository.GetByID(ctx, id)
	if r.hook != nil && r.fired.CompareAndSwap(false, true) {
		r.hook()
	}
	return a, err
}

func TestProfileUpdateKeepsConcurrentStatusChange(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.agent(t, "a1", 2, domain.QueueTypeGeneralInquiry)

	agents := &pausingAgents{AgentRepository: f.stores.Agents}
	stores := f.stores
	stores.Agents = agents
	d := New(Dependencies{Queue: f.queue, Stores: stores, Logger: zaptest.NewLogger(t), Clock: f.clock})

	statusDone := make(chan error, 1)
	agents.hook = func() {
		go func() {
			_, err := d.SetAgentStatus(ctx, "a1", domain.AgentStatusOffline)
			statusDone <- err
		}()
		// Give the status change a chance to land between read and write.
		time.Sleep(50 * time.Millisecond)
	}

	updated, err := d.UpdateAgentProfile(ctx, "a1", AgentProfile{
		Name:               "Ann",
		Skills:             []domain.QueueType{domain.QueueTypeGeneralInquiry},
		MaxConcurrentCases: 4,
	})
	require.NoError(t, err)
	assert.Equal(t, 4, updated.MaxConcurrentCases)
	require.NoError(t, <-statusDone)

	stored := f.storedAgent(t, "a1")
	assert.Equal(t, domain.AgentStatusOffline, stored.Status)
	assert.Equal(t, 4, stored.MaxConcurrentCases)
	assert.Equal(t, "Ann", stored.Name)
}

func TestProfileUpdateRejectsMaxBelowLoad(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.agent(t, "a1", 3, domain.QueueTypeGeneralInquiry)
	f.queued(t, "c1", domain.CasePriorityNormal, domain.QueueTypeGeneralInquiry)
	f.queued(t, "c2", domain.CasePriorityNormal, domain.QueueTypeGeneralInquiry)
	for i := 0; i < 2; i++ {
		_, err := f.d.Assign(ctx, "a1", domain.QueueTypeGeneralInquiry)
		require.NoError(t, err)
	}

	_, err := f.d.UpdateAgentProfile(ctx, "a1", AgentProfile{
		Skills:             []domain.QueueType{domain.QueueTypeGeneralInquiry},
		MaxConcurrentCases: 1,
	})
	var domainErr *apperrors.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "CONFLICT", domainErr.Code)
	assert.Equal(t, 3, f.storedAgent(t, "a1").MaxConcurrentCases)

	a, err := f.d.UpdateAgentProfile(ctx, "a1", AgentProfile{
		Skills:             []domain.QueueType{domain.QueueTypeGeneralInquiry},
		MaxConcurrentCases: 2,
		Status:             domain.AgentStatusBreak,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.AgentStatusBreak, a.Status)
	assert.Equal(t, 2, f.storedAgent(t, "a1").CurrentCaseCount)

	_, err = f.d.UpdateAgentProfile(ctx, "ghost", AgentProfile{MaxConcurrentCases: 1})
	assert.Error(t, err)
}
