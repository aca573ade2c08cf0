package queue

import (
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/casedesk/case-dispatch/internal/domain"
	"github.com/casedesk/case-dispatch/internal/scoring"
)

var (
	// ErrInvalidCase is returned when a case cannot be placed on any queue.
	ErrInvalidCase = errors.New("case has no valid queue type")
	// ErrInvalidStateTransition is returned for entry status changes the lifecycle forbids.
	ErrInvalidStateTransition = errors.New("invalid queue entry state transition")
)

// Options customizes a WorkQueue. Zero values fall back to production defaults.
type Options struct {
	Scorer scoring.Scorer
	Clock  func() time.Time
	NewID  func() string
}

// WorkQueue keeps pending entries per queue type ordered by score descending,
// then enqueue time ascending, then insertion sequence. Each queue type has its
// own lock; operations on different queue types never contend.
type WorkQueue struct {
	scorer scoring.Scorer
	clock  func() time.Time
	newID  func() string
	seq    atomic.Uint64
	lanes  map[domain.QueueType]*lane
}

// New builds a WorkQueue with one lane per known queue type.
func New(opts Options) *WorkQueue {
	q := &WorkQueue{
		scorer: opts.Scorer,
		clock:  opts.Clock,
		newID:  opts.NewID,
		lanes:  make(map[domain.QueueType]*lane),
	}
	if q.scorer == nil {
		q.scorer = scoring.Score
	}
	if q.clock == nil {
		q.clock = time.Now
	}
	if q.newID == nil {
		q.newID = uuid.NewString
	}
	for _, qt := range domain.QueueTypes() {
		q.lanes[qt] = &lane{}
	}
	return q
}

// Enqueue scores the case and inserts a Pending entry in order. The returned
// entry is a copy; the queue keeps its own.
func (q *WorkQueue) Enqueue(c *domain.Case) (*domain.QueueEntry, error) {
	if c == nil || c.ID == "" {
		return nil, ErrInvalidCase
	}
	l := q.lanes[c.QueueType]
	if l == nil {
		return nil, ErrInvalidCase
	}
	score := q.scorer(c.Priority, c.QueueType)
	entry := &domain.QueueEntry{
		ID:            q.newID(),
		CaseID:        c.ID,
		QueueType:     c.QueueType,
		Status:        domain.QueueEntryPending,
		BaseScore:     score,
		PriorityScore: score,
		EnqueuedAt:    q.clock(),
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	entry.Sequence = q.seq.Add(1)
	l.insert(entry)
	return entry.Clone(), nil
}

// PeekNext returns a copy of the head entry without mutating the queue.
func (q *WorkQueue) PeekNext(qt domain.QueueType) (*domain.QueueEntry, bool) {
	l := q.lanes[qt]
	if l == nil {
		return nil, false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.pending) == 0 {
		return nil, false
	}
	return l.pending[0].Clone(), true
}

// TakeNext removes and returns the head entry. Ownership passes to the caller,
// which must either hand it back through Restore or Settle it.
func (q *WorkQueue) TakeNext(qt domain.QueueType) (*domain.QueueEntry, bool) {
	l := q.lanes[qt]
	if l == nil {
		return nil, false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.pending) == 0 {
		return nil, false
	}
	head := l.pending[0]
	l.pending[0] = nil
	l.pending = l.pending[1:]
	if l.taken == nil {
		l.taken = make(map[string]struct{})
	}
	l.taken[head.ID] = struct{}{}
	return head, true
}

// Settle forgets an entry handed out by TakeNext that will not come back,
// because it was committed or dropped.
func (q *WorkQueue) Settle(entry *domain.QueueEntry) {
	if entry == nil {
		return
	}
	l := q.lanes[entry.QueueType]
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.taken, entry.ID)
}

// Holds reports whether the entry is pending in qt or currently handed out by TakeNext.
func (q *WorkQueue) Holds(qt domain.QueueType, entryID string) bool {
	l := q.lanes[qt]
	if l == nil {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.taken[entryID]; ok {
		return true
	}
	for _, e := range l.pending {
		if e.ID == entryID {
			return true
		}
	}
	return false
}

// Restore puts a Pending entry back at the position its score and sequence dictate.
func (q *WorkQueue) Restore(entry *domain.QueueEntry) error {
	if entry == nil || entry.Status != domain.QueueEntryPending {
		return ErrInvalidStateTransition
	}
	l := q.lanes[entry.QueueType]
	if l == nil {
		return ErrInvalidCase
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if entry.Sequence == 0 {
		entry.Sequence = q.seq.Add(1)
	}
	delete(l.taken, entry.ID)
	l.insert(entry.Clone())
	return nil
}

// Load rebuilds lanes from persisted pending entries, typically at startup.
// Entries that are not Pending or have unknown queue types are skipped and counted.
func (q *WorkQueue) Load(entries []*domain.QueueEntry) (loaded, skipped int) {
	for _, e := range entries {
		if e == nil || e.Status != domain.QueueEntryPending || q.lanes[e.QueueType] == nil {
			skipped++
			continue
		}
		for {
			cur := q.seq.Load()
			if e.Sequence <= cur || q.seq.CompareAndSwap(cur, e.Sequence) {
				break
			}
		}
		if err := q.Restore(e); err != nil {
			skipped++
			continue
		}
		loaded++
	}
	return loaded, skipped
}

// Remove drops a pending entry that left active work before dispatch and marks
// the returned copy Completed.
func (q *WorkQueue) Remove(qt domain.QueueType, entryID string) (*domain.QueueEntry, bool) {
	l := q.lanes[qt]
	if l == nil {
		return nil, false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, e := range l.pending {
		if e.ID != entryID {
			continue
		}
		l.pending = append(l.pending[:i], l.pending[i+1:]...)
		now := q.clock()
		e.Status = domain.QueueEntryCompleted
		e.CompletedAt = &now
		return e, true
	}
	return nil, false
}

// Depth returns the number of pending entries for qt.
func (q *WorkQueue) Depth(qt domain.QueueType) int {
	l := q.lanes[qt]
	if l == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.pending)
}

// Pending returns copies of the pending entries for qt, head first.
func (q *WorkQueue) Pending(qt domain.QueueType) []*domain.QueueEntry {
	l := q.lanes[qt]
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*domain.QueueEntry, 0, len(l.pending))
	for _, e := range l.pending {
		out = append(out, e.Clone())
	}
	return out
}

// MarkCompleted moves an Assigned entry to Completed.
func (q *WorkQueue) MarkCompleted(entry *domain.QueueEntry) error {
	if entry == nil || entry.Status != domain.QueueEntryAssigned {
		return ErrInvalidStateTransition
	}
	now := q.clock()
	entry.Status = domain.QueueEntryCompleted
	entry.CompletedAt = &now
	return nil
}

// Redistribute recomputes every pending entry's effective score from its base
// score: entries waiting at least maxAge get boost extra points. The lane is
// re-sorted under the same ordering rule. Because scores are derived from the
// base each time, repeated runs at the same instant yield the same order.
// Copies of entries whose score changed are returned.
func (q *WorkQueue) Redistribute(qt domain.QueueType, maxAge time.Duration, boost int) []*domain.QueueEntry {
	l := q.lanes[qt]
	if l == nil {
		return nil
	}
	now := q.clock()

	l.mu.Lock()
	defer l.mu.Unlock()
	var changed []*domain.QueueEntry
	for _, e := range l.pending {
		want := e.BaseScore
		if now.Sub(e.EnqueuedAt) >= maxAge {
			want += boost
		}
		if want != e.PriorityScore {
			e.PriorityScore = want
			changed = append(changed, e.Clone())
		}
	}
	if len(changed) > 0 {
		sort.Slice(l.pending, func(i, j int) bool { return before(l.pending[i], l.pending[j]) })
	}
	return changed
}

type lane struct {
	mu      sync.Mutex
	pending []*domain.QueueEntry
	taken   map[string]struct{}
}

func (l *lane) insert(e *domain.QueueEntry) {
	idx := sort.Search(len(l.pending), func(i int) bool { return before(e, l.pending[i]) })
	l.pending = append(l.pending, nil)
	copy(l.pending[idx+1:], l.pending[idx:])
	l.pending[idx] = e
}

func before(a, b *domain.QueueEntry) bool {
	if a.PriorityScore != b.PriorityScore {
		return a.PriorityScore > b.PriorityScore
	}
	if !a.EnqueuedAt.Equal(b.EnqueuedAt) {
		return a.EnqueuedAt.Before(b.EnqueuedAt)
	}
	return a.Sequence < b.Sequence
}
