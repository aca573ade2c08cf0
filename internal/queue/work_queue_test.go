package queue

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/casedesk/case-dispatch/internal/domain"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestQueue() (*WorkQueue, *fakeClock) {
	clock := &fakeClock{now: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}
	return New(Options{Clock: clock.Now}), clock
}

func newCase(id string, p domain.CasePriority, qt domain.QueueType) *domain.Case {
	return &domain.Case{ID: id, Priority: p, QueueType: qt, Status: domain.CaseStatusNew}
}

func TestEnqueueRejectsCaseWithoutQueueType(t *testing.T) {
	q, _ := newTestQueue()

	_, err := q.Enqueue(newCase("c1", domain.CasePriorityNormal, ""))
	assert.ErrorIs(t, err, ErrInvalidCase)

	_, err = q.Enqueue(newCase("c2", domain.CasePriorityNormal, "SHIPPING"))
	assert.ErrorIs(t, err, ErrInvalidCase)

	_, err = q.Enqueue(nil)
	assert.ErrorIs(t, err, ErrInvalidCase)
}

func TestUrgentBeatsNormalRegardlessOfEnqueueOrder(t *testing.T) {
	q, clock := newTestQueue()

	normal, err := q.Enqueue(newCase("normal", domain.CasePriorityNormal, domain.QueueTypeBillingSupport))
	require.NoError(t, err)
	clock.Advance(time.Minute)
	urgent, err := q.Enqueue(newCase("urgent", domain.CasePriorityUrgent, domain.QueueTypeBillingSupport))
	require.NoError(t, err)

	assert.Equal(t, 70, normal.PriorityScore)
	assert.Equal(t, 120, urgent.PriorityScore)

	first, ok := q.TakeNext(domain.QueueTypeBillingSupport)
	require.True(t, ok)
	assert.Equal(t, "urgent", first.CaseID)

	second, ok := q.TakeNext(domain.QueueTypeBillingSupport)
	require.True(t, ok)
	assert.Equal(t, "normal", second.CaseID)

	_, ok = q.TakeNext(domain.QueueTypeBillingSupport)
	assert.False(t, ok)
}

func TestTakeNextOrderIsScoreThenFIFO(t *testing.T) {
	q, clock := newTestQueue()
	priorities := []domain.CasePriority{
		domain.CasePriorityLow, domain.CasePriorityHigh, domain.CasePriorityNormal,
		domain.CasePriorityHigh, domain.CasePriorityUrgent, domain.CasePriorityNormal,
		domain.CasePriorityLow, domain.CasePriorityHigh,
	}
	for i, p := range priorities {
		_, err := q.Enqueue(newCase(fmt.Sprintf("c%d", i), p, domain.QueueTypeGeneralInquiry))
		require.NoError(t, err)
		if i%3 != 0 {
			clock.Advance(time.Second)
		}
	}

	var taken []*domain.QueueEntry
	for {
		e, ok := q.TakeNext(domain.QueueTypeGeneralInquiry)
		if !ok {
			break
		}
		taken = append(taken, e)
	}
	require.Len(t, taken, len(priorities))
	for i := 1; i < len(taken); i++ {
		prev, cur := taken[i-1], taken[i]
		require.GreaterOrEqual(t, prev.PriorityScore, cur.PriorityScore)
		if prev.PriorityScore == cur.PriorityScore {
			assert.Less(t, prev.Sequence, cur.Sequence)
			assert.False(t, cur.EnqueuedAt.Before(prev.EnqueuedAt))
		}
	}
}

func TestPeekDoesNotMutate(t *testing.T) {
	q, _ := newTestQueue()
	_, err := q.Enqueue(newCase("c1", domain.CasePriorityHigh, domain.QueueTypeGeneralInquiry))
	require.NoError(t, err)

	head, ok := q.PeekNext(domain.QueueTypeGeneralInquiry)
	require.True(t, ok)
	head.PriorityScore = 0

	assert.Equal(t, 1, q.Depth(domain.QueueTypeGeneralInquiry))
	again, _ := q.PeekNext(domain.QueueTypeGeneralInquiry)
	assert.Equal(t, 85, again.PriorityScore)

	_, ok = q.PeekNext(domain.QueueTypeBillingSupport)
	assert.False(t, ok)
}

func TestQueuesAreIndependent(t *testing.T) {
	q, _ := newTestQueue()
	_, _ = q.Enqueue(newCase("g", domain.CasePriorityLow, domain.QueueTypeGeneralInquiry))
	_, _ = q.Enqueue(newCase("b", domain.CasePriorityUrgent, domain.QueueTypeBillingSupport))

	assert.Equal(t, 1, q.Depth(domain.QueueTypeGeneralInquiry))
	assert.Equal(t, 1, q.Depth(domain.QueueTypeBillingSupport))

	e, ok := q.TakeNext(domain.QueueTypeGeneralInquiry)
	require.True(t, ok)
	assert.Equal(t, "g", e.CaseID)
	assert.Equal(t, 1, q.Depth(domain.QueueTypeBillingSupport))
}

func TestRestoreReturnsEntryToItsPosition(t *testing.T) {
	q, clock := newTestQueue()
	_, _ = q.Enqueue(newCase("a", domain.CasePriorityNormal, domain.QueueTypeGeneralInquiry))
	clock.Advance(time.Second)
	_, _ = q.Enqueue(newCase("b", domain.CasePriorityNormal, domain.QueueTypeGeneralInquiry))

	head, ok := q.TakeNext(domain.QueueTypeGeneralInquiry)
	require.True(t, ok)
	require.NoError(t, q.Restore(head))

	again, _ := q.PeekNext(domain.QueueTypeGeneralInquiry)
	assert.Equal(t, "a", again.CaseID)

	head.Status = domain.QueueEntryAssigned
	assert.ErrorIs(t, q.Restore(head), ErrInvalidStateTransition)
}

func TestMarkCompletedRequiresAssigned(t *testing.T) {
	q, _ := newTestQueue()
	entry, _ := q.Enqueue(newCase("a", domain.CasePriorityNormal, domain.QueueTypeGeneralInquiry))

	assert.ErrorIs(t, q.MarkCompleted(entry), ErrInvalidStateTransition)

	entry.Status = domain.QueueEntryAssigned
	require.NoError(t, q.MarkCompleted(entry))
	assert.Equal(t, domain.QueueEntryCompleted, entry.Status)
	assert.NotNil(t, entry.CompletedAt)

	assert.ErrorIs(t, q.MarkCompleted(entry), ErrInvalidStateTransition)
}

func TestRemovePendingEntry(t *testing.T) {
	q, _ := newTestQueue()
	entry, _ := q.Enqueue(newCase("a", domain.CasePriorityNormal, domain.QueueTypeGeneralInquiry))

	removed, ok := q.Remove(domain.QueueTypeGeneralInquiry, entry.ID)
	require.True(t, ok)
	assert.Equal(t, domain.QueueEntryCompleted, removed.Status)
	assert.Zero(t, q.Depth(domain.QueueTypeGeneralInquiry))

	_, ok = q.Remove(domain.QueueTypeGeneralInquiry, entry.ID)
	assert.False(t, ok)
}

func TestHoldsTracksTakenEntriesUntilSettled(t *testing.T) {
	q, _ := newTestQueue()
	entry, err := q.Enqueue(newCase("a", domain.CasePriorityNormal, domain.QueueTypeGeneralInquiry))
	require.NoError(t, err)
	assert.True(t, q.Holds(domain.QueueTypeGeneralInquiry, entry.ID))

	taken, ok := q.TakeNext(domain.QueueTypeGeneralInquiry)
	require.True(t, ok)
	assert.Zero(t, q.Depth(domain.QueueTypeGeneralInquiry))
	assert.True(t, q.Holds(domain.QueueTypeGeneralInquiry, entry.ID))

	require.NoError(t, q.Restore(taken))
	assert.True(t, q.Holds(domain.QueueTypeGeneralInquiry, entry.ID))

	taken, _ = q.TakeNext(domain.QueueTypeGeneralInquiry)
	q.Settle(taken)
	assert.False(t, q.Holds(domain.QueueTypeGeneralInquiry, entry.ID))
	assert.False(t, q.Holds(domain.QueueTypeBillingSupport, entry.ID))
}

func TestLoadRebuildsOrderAndSequence(t *testing.T) {
	q, clock := newTestQueue()
	t0 := clock.Now()
	persisted := []*domain.QueueEntry{
		{ID: "e2", CaseID: "c2", QueueType: domain.QueueTypeBillingSupport, Status: domain.QueueEntryPending, BaseScore: 70, PriorityScore: 70, Sequence: 7, EnqueuedAt: t0},
		{ID: "e1", CaseID: "c1", QueueType: domain.QueueTypeBillingSupport, Status: domain.QueueEntryPending, BaseScore: 70, PriorityScore: 70, Sequence: 3, EnqueuedAt: t0},
		{ID: "e3", CaseID: "c3", QueueType: domain.QueueTypeBillingSupport, Status: domain.QueueEntryAssigned},
	}

	loaded, skipped := q.Load(persisted)
	assert.Equal(t, 2, loaded)
	assert.Equal(t, 1, skipped)

	head, _ := q.PeekNext(domain.QueueTypeBillingSupport)
	assert.Equal(t, "e1", head.ID)

	fresh, err := q.Enqueue(newCase("c4", domain.CasePriorityLow, domain.QueueTypeBillingSupport))
	require.NoError(t, err)
	assert.Greater(t, fresh.Sequence, uint64(7))
}

func TestRedistributeBoostsAgedEntriesAndIsIdempotent(t *testing.T) {
	q, clock := newTestQueue()
	_, _ = q.Enqueue(newCase("old-normal", domain.CasePriorityNormal, domain.QueueTypeGeneralInquiry))
	clock.Advance(90 * time.Minute)
	_, _ = q.Enqueue(newCase("new-high", domain.CasePriorityHigh, domain.QueueTypeGeneralInquiry))
	_, _ = q.Enqueue(newCase("new-normal", domain.CasePriorityNormal, domain.QueueTypeGeneralInquiry))

	changed := q.Redistribute(domain.QueueTypeGeneralInquiry, time.Hour, 30)
	require.Len(t, changed, 1)
	assert.Equal(t, "old-normal", changed[0].CaseID)
	assert.Equal(t, 90, changed[0].PriorityScore)

	first := caseIDs(q.Pending(domain.QueueTypeGeneralInquiry))
	assert.Equal(t, []string{"old-normal", "new-high", "new-normal"}, first)

	again := q.Redistribute(domain.QueueTypeGeneralInquiry, time.Hour, 30)
	assert.Empty(t, again)
	assert.Equal(t, first, caseIDs(q.Pending(domain.QueueTypeGeneralInquiry)))
}

func TestConcurrentTakeNeverDoubleDispatches(t *testing.T) {
	q, _ := newTestQueue()
	const total = 200
	for i := 0; i < total; i++ {
		_, err := q.Enqueue(newCase(fmt.Sprintf("c%d", i), domain.CasePriorityNormal, domain.QueueTypeBillingSupport))
		require.NoError(t, err)
	}

	var (
		mu   sync.Mutex
		seen = map[string]int{}
		wg   sync.WaitGroup
	)
	for w := 0; w < 16; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for {
				e, ok := q.TakeNext(domain.QueueTypeBillingSupport)
				if !ok {
					return
				}
				mu.Lock()
				seen[e.CaseID]++
				mu.Unlock()
				if w%2 == 0 {
					_, _ = q.Enqueue(newCase("", domain.CasePriorityLow, domain.QueueTypeBillingSupport))
				}
			}
		}(w)
	}
	wg.Wait()

	assert.Len(t, seen, total)
	for id, n := range seen {
		assert.Equal(t, 1, n, "case %s taken more than once", id)
	}
}

func caseIDs(entries []*domain.QueueEntry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.CaseID)
	}
	return out
}
