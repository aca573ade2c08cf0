package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/casedesk/case-dispatch/internal/domain"
	apperrors "github.com/casedesk/case-dispatch/pkg/util/errorutil"
)

// Memory is an arena store keyed by opaque identifiers. It backs every repository
// contract when no database is configured and in tests. Records are copied on
// the way in and out so callers never share state with the arena.
type Memory struct {
	mu      sync.RWMutex
	cases   map[string]*domain.Case
	agents  map[string]*domain.Agent
	entries map[string]*domain.QueueEntry
	sla     map[string]*domain.SlaRecord // keyed by case id

	// FailNext, when set, is consulted before each write; a non-nil return aborts it.
	FailNext func(op string) error
}

// NewMemory returns an empty arena.
func NewMemory() *Memory {
	return &Memory{
		cases:   make(map[string]*domain.Case),
		agents:  make(map[string]*domain.Agent),
		entries: make(map[string]*domain.QueueEntry),
		sla:     make(map[string]*domain.SlaRecord),
	}
}

// Stores exposes the arena through every repository contract.
func (m *Memory) Stores() Stores {
	return Stores{
		Cases:    memoryCases{m},
		Agents:   memoryAgents{m},
		Entries:  memoryEntries{m},
		Sla:      memorySla{m},
		Dispatch: m,
	}
}

func (m *Memory) fail(op string) error {
	if m.FailNext == nil {
		return nil
	}
	return m.FailNext(op)
}

// CommitAssignment writes agent, case and entry under one lock.
func (m *Memory) CommitAssignment(_ context.Context, commit AssignmentCommit) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("commit_assignment"); err != nil {
		return err
	}
	agent, ok := m.agents[commit.Agent.ID]
	if !ok {
		return apperrors.ErrNotFound
	}
	c, ok := m.cases[commit.Case.ID]
	if !ok {
		return apperrors.ErrNotFound
	}
	if agent.CurrentCaseCount+1 != commit.Agent.CurrentCaseCount || commit.Agent.CurrentCaseCount > agent.MaxConcurrentCases {
		return ErrConflict
	}
	if c.Status.Terminal() || c.AssignedAgentID != nil {
		return ErrConflict
	}
	if e, ok := m.entries[commit.Entry.ID]; ok && e.Status != domain.QueueEntryPending {
		return ErrConflict
	}
	m.agents[commit.Agent.ID] = commit.Agent.Clone()
	m.cases[commit.Case.ID] = commit.Case.Clone()
	m.entries[commit.Entry.ID] = commit.Entry.Clone()
	return nil
}

// CommitRelease writes the released rows under one lock.
func (m *Memory) CommitRelease(_ context.Context, commit ReleaseCommit) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("commit_release"); err != nil {
		return err
	}
	c, ok := m.cases[commit.Case.ID]
	if !ok {
		return apperrors.ErrNotFound
	}
	if c.Status.Terminal() || !sameAgent(c.AssignedAgentID, commit.Case.AssignedAgentID) {
		return ErrConflict
	}
	if commit.Agent != nil {
		agent, ok := m.agents[commit.Agent.ID]
		if !ok {
			return apperrors.ErrNotFound
		}
		if agent.CurrentCaseCount-1 != commit.Agent.CurrentCaseCount {
			return ErrConflict
		}
		m.agents[commit.Agent.ID] = commit.Agent.Clone()
	}
	if commit.Entry != nil {
		m.entries[commit.Entry.ID] = commit.Entry.Clone()
	}
	m.cases[commit.Case.ID] = commit.Case.Clone()
	return nil
}

func sameAgent(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// Snapshot reads a case, its assigned agent and its latest entry under one read
// lock, so the three are always mutually consistent.
func (m *Memory) Snapshot(caseID string) (*domain.Case, *domain.Agent, *domain.QueueEntry) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c := m.cases[caseID].Clone()
	var agent *domain.Agent
	if c != nil && c.AssignedAgentID != nil {
		agent = m.agents[*c.AssignedAgentID].Clone()
	}
	var latest *domain.QueueEntry
	for _, e := range m.entries {
		if e.CaseID == caseID && (latest == nil || e.Sequence > latest.Sequence) {
			latest = e
		}
	}
	return c, agent, latest.Clone()
}

type memoryCases struct{ m *Memory }

func (r memoryCases) Create(_ context.Context, c *domain.Case) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if err := r.m.fail("case_create"); err != nil {
		return err
	}
	if _, exists := r.m.cases[c.ID]; exists {
		return apperrors.NewConflict("case exists", map[string]any{"case_id": c.ID})
	}
	r.m.cases[c.ID] = c.Clone()
	return nil
}

func (r memoryCases) Update(_ context.Context, c *domain.Case) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if err := r.m.fail("case_update"); err != nil {
		return err
	}
	if _, ok := r.m.cases[c.ID]; !ok {
		return apperrors.ErrNotFound
	}
	r.m.cases[c.ID] = c.Clone()
	return nil
}

func (r memoryCases) UpdateStatus(_ context.Context, id string, from, to domain.CaseStatus) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if err := r.m.fail("case_update_status"); err != nil {
		return err
	}
	c, ok := r.m.cases[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	if c.Status != from {
		return ErrConflict
	}
	c.Status = to
	c.UpdatedAt = time.Now()
	return nil
}

func (r memoryCases) GetByID(_ context.Context, id string) (*domain.Case, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	c, ok := r.m.cases[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return c.Clone(), nil
}

func (r memoryCases) GetByCaseNumber(_ context.Context, number string) (*domain.Case, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	for _, c := range r.m.cases {
		if c.CaseNumber == number {
			return c.Clone(), nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (r memoryCases) ListActive(_ context.Context) ([]domain.Case, error) {
	return r.list(func(c *domain.Case) bool { return !c.Status.Terminal() }), nil
}

func (r memoryCases) ListByAgent(_ context.Context, agentID string, activeOnly bool) ([]domain.Case, error) {
	return r.list(func(c *domain.Case) bool {
		if c.AssignedAgentID == nil || *c.AssignedAgentID != agentID {
			return false
		}
		return !activeOnly || !c.Status.Terminal()
	}), nil
}

func (r memoryCases) ListByStatusCreatedBefore(_ context.Context, status domain.CaseStatus, before time.Time) ([]domain.Case, error) {
	return r.list(func(c *domain.Case) bool {
		return c.Status == status && c.CreatedAt.Before(before)
	}), nil
}

func (r memoryCases) list(keep func(*domain.Case) bool) []domain.Case {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	var out []domain.Case
	for _, c := range r.m.cases {
		if keep(c) {
			out = append(out, *c.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

type memoryAgents struct{ m *Memory }

func (r memoryAgents) Create(_ context.Context, a *domain.Agent) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, exists := r.m.agents[a.ID]; exists {
		return apperrors.NewConflict("agent exists", map[string]any{"agent_id": a.ID})
	}
	r.m.agents[a.ID] = a.Clone()
	return nil
}

func (r memoryAgents) Update(_ context.Context, a *domain.Agent) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if err := r.m.fail("agent_update"); err != nil {
		return err
	}
	stored, ok := r.m.agents[a.ID]
	if !ok {
		return apperrors.ErrNotFound
	}
	next := a.Clone()
	next.CurrentCaseCount = stored.CurrentCaseCount
	r.m.agents[a.ID] = next
	return nil
}

func (r memoryAgents) GetByID(_ context.Context, id string) (*domain.Agent, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	a, ok := r.m.agents[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return a.Clone(), nil
}

func (r memoryAgents) List(_ context.Context) ([]domain.Agent, error) {
	return r.list(func(*domain.Agent) bool { return true }), nil
}

func (r memoryAgents) FindEligible(_ context.Context, qt domain.QueueType) ([]domain.Agent, error) {
	return r.list(func(a *domain.Agent) bool { return a.IsEligible(qt) }), nil
}

func (r memoryAgents) list(keep func(*domain.Agent) bool) []domain.Agent {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	var out []domain.Agent
	for _, a := range r.m.agents {
		if keep(a) {
			out = append(out, *a.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

type memoryEntries struct{ m *Memory }

func (r memoryEntries) Create(_ context.Context, e *domain.QueueEntry) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if err := r.m.fail("entry_create"); err != nil {
		return err
	}
	r.m.entries[e.ID] = e.Clone()
	return nil
}

func (r memoryEntries) Update(_ context.Context, e *domain.QueueEntry) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if err := r.m.fail("entry_update"); err != nil {
		return err
	}
	if _, ok := r.m.entries[e.ID]; !ok {
		return apperrors.ErrNotFound
	}
	r.m.entries[e.ID] = e.Clone()
	return nil
}

func (r memoryEntries) UpdateScore(_ context.Context, id string, score int) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	e, ok := r.m.entries[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	e.PriorityScore = score
	return nil
}

func (r memoryEntries) GetActiveByCase(_ context.Context, caseID string) (*domain.QueueEntry, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	var active *domain.QueueEntry
	for _, e := range r.m.entries {
		if e.CaseID != caseID || e.Status == domain.QueueEntryCompleted {
			continue
		}
		if active == nil || e.Sequence > active.Sequence {
			active = e
		}
	}
	if active == nil {
		return nil, apperrors.ErrNotFound
	}
	return active.Clone(), nil
}

func (r memoryEntries) ListPending(_ context.Context) ([]domain.QueueEntry, error) {
	return r.list(func(e *domain.QueueEntry) bool { return e.Status == domain.QueueEntryPending }), nil
}

func (r memoryEntries) ListAssignedSince(_ context.Context, qt domain.QueueType, since time.Time) ([]domain.QueueEntry, error) {
	return r.list(func(e *domain.QueueEntry) bool {
		return e.QueueType == qt && e.AssignedAt != nil && !e.AssignedAt.Before(since)
	}), nil
}

func (r memoryEntries) list(keep func(*domain.QueueEntry) bool) []domain.QueueEntry {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	var out []domain.QueueEntry
	for _, e := range r.m.entries {
		if keep(e) {
			out = append(out, *e.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Sequence < out[j].Sequence })
	return out
}

type memorySla struct{ m *Memory }

func (r memorySla) Create(_ context.Context, rec *domain.SlaRecord) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if err := r.m.fail("sla_create"); err != nil {
		return err
	}
	if _, exists := r.m.sla[rec.CaseID]; exists {
		return apperrors.NewConflict("sla record exists", map[string]any{"case_id": rec.CaseID})
	}
	r.m.sla[rec.CaseID] = rec.Clone()
	return nil
}

func (r memorySla) Update(_ context.Context, rec *domain.SlaRecord) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if err := r.m.fail("sla_update"); err != nil {
		return err
	}
	if _, ok := r.m.sla[rec.CaseID]; !ok {
		return apperrors.ErrNotFound
	}
	r.m.sla[rec.CaseID] = rec.Clone()
	return nil
}

func (r memorySla) UpdateStatus(_ context.Context, caseID string, status domain.SlaStatus) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if err := r.m.fail("sla_update_status"); err != nil {
		return err
	}
	rec, ok := r.m.sla[caseID]
	if !ok {
		return apperrors.ErrNotFound
	}
	rec.Status = status
	return nil
}

func (r memorySla) GetByCaseID(_ context.Context, caseID string) (*domain.SlaRecord, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	rec, ok := r.m.sla[caseID]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return rec.Clone(), nil
}

func (r memorySla) ListOpenedBetween(_ context.Context, from, to time.Time) ([]domain.SlaRecord, error) {
	return r.list(func(rec *domain.SlaRecord) bool {
		return !rec.OpenedAt.Before(from) && !rec.OpenedAt.After(to)
	}), nil
}

func (r memorySla) ListByStatus(_ context.Context, status domain.SlaStatus) ([]domain.SlaRecord, error) {
	return r.list(func(rec *domain.SlaRecord) bool { return rec.Status == status }), nil
}

func (r memorySla) list(keep func(*domain.SlaRecord) bool) []domain.SlaRecord {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	var out []domain.SlaRecord
	for _, rec := range r.m.sla {
		if keep(rec) {
			out = append(out, *rec.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OpenedAt.Before(out[j].OpenedAt) })
	return out
}
