// Package dispatch matches agents to queued cases.
//
// The Dispatcher is the only writer of an agent's current case count. Every
// assignment and release holds the agent's lock and persists agent, case and
// queue entry through one atomic store commit.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/casedesk/case-dispatch/internal/domain"
	"github.com/casedesk/case-dispatch/internal/events"
	"github.com/casedesk/case-dispatch/internal/keylock"
	"github.com/casedesk/case-dispatch/internal/queue"
	"github.com/casedesk/case-dispatch/internal/repository"
	apperrors "github.com/casedesk/case-dispatch/pkg/util/errorutil"
)

var (
	// ErrAgentUnavailable means the agent's status is not Available.
	ErrAgentUnavailable = errors.New("agent is not available")
	// ErrSkillMismatch means the agent does not work the requested queue type.
	ErrSkillMismatch = errors.New("agent lacks skill for queue type")
	// ErrAtCapacity means the agent already holds its maximum number of cases.
	ErrAtCapacity = errors.New("agent is at capacity")
	// ErrNoPendingCase means the queue is empty. It is a routine outcome.
	ErrNoPendingCase = errors.New("no pending case in queue")
	// ErrStateConflict means queue, case and agent state disagree.
	ErrStateConflict = errors.New("dispatch state conflict")
)

// IsIneligible reports whether err is one of the routine eligibility outcomes.
func IsIneligible(err error) bool {
	return errors.Is(err, ErrAgentUnavailable) ||
		errors.Is(err, ErrSkillMismatch) ||
		errors.Is(err, ErrAtCapacity) ||
		errors.Is(err, ErrNoPendingCase)
}

// ReasonCode names an eligibility outcome for API consumers; empty for other errors.
func ReasonCode(err error) string {
	switch {
	case errors.Is(err, ErrAgentUnavailable):
		return "AGENT_UNAVAILABLE"
	case errors.Is(err, ErrSkillMismatch):
		return "SKILL_MISMATCH"
	case errors.Is(err, ErrAtCapacity):
		return "AT_CAPACITY"
	case errors.Is(err, ErrNoPendingCase):
		return "NO_PENDING_CASE"
	}
	return ""
}

// Dispatcher assigns the best pending case of a queue type to a requesting agent.
type Dispatcher struct {
	queue      *queue.WorkQueue
	agents     repository.AgentRepository
	cases      repository.CaseRepository
	entries    repository.QueueEntryRepository
	store      repository.DispatchRepository
	dispatcher events.Dispatcher
	logger     *zap.Logger
	clock      func() time.Time
	agentLocks *keylock.Map
	agingBoost int
}

// Dependencies bundles collaborators.
type Dependencies struct {
	Queue      *queue.WorkQueue
	Stores     repository.Stores
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
	Clock      func() time.Time
	AgingBoost int
}

// New creates the dispatcher.
func New(deps Dependencies) *Dispatcher {
	d := &Dispatcher{
		queue:      deps.Queue,
		agents:     deps.Stores.Agents,
		cases:      deps.Stores.Cases,
		entries:    deps.Stores.Entries,
		store:      deps.Stores.Dispatch,
		dispatcher: deps.Dispatcher,
		logger:     deps.Logger,
		clock:      deps.Clock,
		agentLocks: keylock.New(),
		agingBoost: deps.AgingBoost,
	}
	if d.logger == nil {
		d.logger = zap.NewNop()
	}
	if d.clock == nil {
		d.clock = time.Now
	}
	return d
}

// Assignment is the committed result of a dispatch.
type Assignment struct {
	Case  *domain.Case
	Agent *domain.Agent
	Entry *domain.QueueEntry
}

// Assign dispatches the head case of qt to the agent. Eligibility is checked in
// order (availability, skill, capacity) and the first failure is returned. An
// empty queue yields ErrNoPendingCase. On commit failure the entry goes back to
// the queue. A store conflict surfaces as ErrStateConflict and the entry goes
// back only while the stored case is still open, unassigned and pending on it.
func (d *Dispatcher) Assign(ctx context.Context, agentID string, qt domain.QueueType) (*Assignment, error) {
	unlock := d.agentLocks.Lock(agentID)
	defer unlock()

	agent, err := d.agents.GetByID(ctx, agentID)
	if err != nil {
		return nil, err
	}
	if err := checkEligible(agent, qt); err != nil {
		return nil, err
	}

	entry, ok := d.queue.TakeNext(qt)
	if !ok {
		return nil, ErrNoPendingCase
	}

	c, err := d.cases.GetByID(ctx, entry.CaseID)
	if err != nil {
		d.restore(entry)
		return nil, fmt.Errorf("load case %s: %w", entry.CaseID, err)
	}
	if c.Status.Terminal() || c.AssignedAgentID != nil {
		d.queue.Settle(entry)
		d.conflict("queued case is not dispatchable", entry, agentID,
			zap.String("case_status", string(c.Status)))
		return nil, ErrStateConflict
	}

	now := d.clock()
	assigned := entry.Clone()
	assigned.Status = domain.QueueEntryAssigned
	assigned.AssignedAt = &now
	assigned.AssignedAgentID = &agent.ID

	c.Status = domain.CaseStatusAssigned
	c.AssignedAgentID = &agent.ID
	c.UpdatedAt = now

	agent.CurrentCaseCount++
	agent.LastActiveAt = now
	agent.UpdatedAt = now

	commit := repository.AssignmentCommit{Agent: agent, Case: c, Entry: assigned}
	if err := d.store.CommitAssignment(ctx, commit); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			d.conflict("assignment commit rejected", entry, agentID, zap.Error(err))
			d.requeueIfDispatchable(ctx, entry)
			return nil, fmt.Errorf("%w: %v", ErrStateConflict, err)
		}
		d.restore(entry)
		d.logger.Warn("assignment commit failed; entry restored",
			zap.String("case_id", entry.CaseID),
			zap.String("agent_id", agentID),
			zap.Error(err))
		return nil, fmt.Errorf("commit assignment: %w", err)
	}
	d.queue.Settle(entry)

	d.logger.Info("case dispatched",
		zap.String("case_id", c.ID),
		zap.String("agent_id", agent.ID),
		zap.String("queue_type", string(qt)),
		zap.Int("priority_score", assigned.PriorityScore),
		zap.Int("agent_case_count", agent.CurrentCaseCount))
	d.publish(ctx, events.New(events.EventCaseAssigned, c.ID, now, events.CaseAssignedPayload{
		EntryID:   assigned.ID,
		AgentID:   agent.ID,
		QueueType: qt,
		WaitedFor: now.Sub(assigned.EnqueuedAt),
	}))
	return &Assignment{Case: c, Agent: agent, Entry: assigned}, nil
}

func checkEligible(agent *domain.Agent, qt domain.QueueType) error {
	switch {
	case agent.Status != domain.AgentStatusAvailable:
		return ErrAgentUnavailable
	case !agent.HasSkill(qt):
		return ErrSkillMismatch
	case !agent.HasCapacity():
		return ErrAtCapacity
	}
	return nil
}

// Release takes a case out of active work with the given terminal status. A
// dispatched case frees its agent's slot and completes its entry; a case still
// waiting in the queue is removed from it. Releasing an already terminal case
// is a no-op and reports false.
func (d *Dispatcher) Release(ctx context.Context, caseID string, final domain.CaseStatus) (*domain.Case, bool, error) {
	if !final.Terminal() {
		return nil, false, apperrors.NewValidationError("release requires a terminal status", map[string]any{
			"status": final,
		})
	}
	c, err := d.cases.GetByID(ctx, caseID)
	if err != nil {
		return nil, false, err
	}
	if c.AssignedAgentID != nil {
		unlock := d.agentLocks.Lock(*c.AssignedAgentID)
		defer unlock()
		if c, err = d.cases.GetByID(ctx, caseID); err != nil {
			return nil, false, err
		}
	}
	if c.Status.Terminal() {
		return c, false, nil
	}

	now := d.clock()
	commit := repository.ReleaseCommit{Case: c}
	var removed *domain.QueueEntry

	if c.AssignedAgentID != nil {
		agent, err := d.agents.GetByID(ctx, *c.AssignedAgentID)
		if err != nil {
			return nil, false, err
		}
		entry, err := d.entries.GetActiveByCase(ctx, caseID)
		if err != nil && !apperrors.IsNotFound(err) {
			return nil, false, err
		}
		if entry == nil || d.queue.MarkCompleted(entry) != nil {
			d.conflict("assigned case has no assigned entry", entry, agent.ID, zap.String("case_id", caseID))
			return nil, false, ErrStateConflict
		}
		if agent.CurrentCaseCount <= 0 {
			d.conflict("agent case count would go negative", entry, agent.ID)
			return nil, false, ErrStateConflict
		}
		agent.CurrentCaseCount--
		agent.LastActiveAt = now
		agent.UpdatedAt = now
		commit.Agent = agent
		commit.Entry = entry
	} else {
		entry, err := d.entries.GetActiveByCase(ctx, caseID)
		switch {
		case err == nil:
			if r, ok := d.queue.Remove(entry.QueueType, entry.ID); ok {
				removed = r
				commit.Entry = r.Clone()
			} else {
				entry.Status = domain.QueueEntryCompleted
				entry.CompletedAt = &now
				commit.Entry = entry
			}
		case !apperrors.IsNotFound(err):
			return nil, false, err
		}
	}

	c.Status = final
	c.UpdatedAt = now
	if c.ResolvedAt == nil {
		c.ResolvedAt = &now
	}

	if err := d.store.CommitRelease(ctx, commit); err != nil {
		if removed != nil {
			removed.Status = domain.QueueEntryPending
			removed.CompletedAt = nil
			d.restore(removed)
		}
		if errors.Is(err, repository.ErrConflict) {
			d.conflict("release commit rejected", commit.Entry, "", zap.String("case_id", caseID), zap.Error(err))
			return nil, false, fmt.Errorf("%w: %v", ErrStateConflict, err)
		}
		return nil, false, fmt.Errorf("commit release: %w", err)
	}

	payload := events.CaseResolvedPayload{AgentID: c.AssignedAgentID, QueueType: c.QueueType, Status: final}
	d.publish(ctx, events.New(events.EventCaseResolved, c.ID, now, payload))
	return c, true, nil
}

// SetAgentStatus changes an agent's availability under the agent's lock so it
// never interleaves with an assignment for the same agent.
func (d *Dispatcher) SetAgentStatus(ctx context.Context, agentID string, status domain.AgentStatus) (*domain.Agent, error) {
	if !status.Valid() {
		return nil, apperrors.NewValidationError("unknown agent status", map[string]any{"status": status})
	}
	unlock := d.agentLocks.Lock(agentID)
	defer unlock()

	agent, err := d.agents.GetByID(ctx, agentID)
	if err != nil {
		return nil, err
	}
	now := d.clock()
	agent.Status = status
	agent.LastActiveAt = now
	agent.UpdatedAt = now
	if err := d.agents.Update(ctx, agent); err != nil {
		return nil, fmt.Errorf("update agent: %w", err)
	}
	return agent, nil
}

// AgentProfile is the supervisor-managed part of an agent. An empty Status
// keeps the agent's current status.
type AgentProfile struct {
	Name               string
	Email              string
	Skills             []domain.QueueType
	MaxConcurrentCases int
	Status             domain.AgentStatus
}

// UpdateAgentProfile rewrites an existing agent's profile under the agent's
// lock. The new maximum may not drop below the cases the agent already holds.
func (d *Dispatcher) UpdateAgentProfile(ctx context.Context, agentID string, profile AgentProfile) (*domain.Agent, error) {
	if profile.Status != "" && !profile.Status.Valid() {
		return nil, apperrors.NewValidationError("unknown agent status", map[string]any{"status": profile.Status})
	}
	unlock := d.agentLocks.Lock(agentID)
	defer unlock()

	agent, err := d.agents.GetByID(ctx, agentID)
	if err != nil {
		return nil, err
	}
	if profile.MaxConcurrentCases < agent.CurrentCaseCount {
		return nil, apperrors.NewConflict("max below current case count", map[string]any{
			"current_case_count":   agent.CurrentCaseCount,
			"max_concurrent_cases": profile.MaxConcurrentCases,
		})
	}
	now := d.clock()
	agent.Name = profile.Name
	agent.Email = profile.Email
	agent.Skills = profile.Skills
	agent.MaxConcurrentCases = profile.MaxConcurrentCases
	if profile.Status != "" && profile.Status != agent.Status {
		agent.Status = profile.Status
		agent.LastActiveAt = now
	}
	agent.UpdatedAt = now
	if err := d.agents.Update(ctx, agent); err != nil {
		return nil, fmt.Errorf("update agent: %w", err)
	}
	return agent, nil
}

// RedistributePending re-ranks every queue so entries waiting at least maxAge
// carry the aging boost. Agent state is untouched and repeated runs converge to
// the same order. Score changes are persisted best-effort.
func (d *Dispatcher) RedistributePending(ctx context.Context, maxAge time.Duration) map[domain.QueueType]int {
	changedByQueue := make(map[domain.QueueType]int)
	for _, qt := range domain.QueueTypes() {
		changed := d.queue.Redistribute(qt, maxAge, d.agingBoost)
		changedByQueue[qt] = len(changed)
		for _, e := range changed {
			if err := d.entries.UpdateScore(ctx, e.ID, e.PriorityScore); err != nil {
				d.logger.Warn("persist redistributed score",
					zap.String("entry_id", e.ID),
					zap.String("case_id", e.CaseID),
					zap.Error(err))
			}
		}
		if len(changed) > 0 {
			d.logger.Info("queue redistributed",
				zap.String("queue_type", string(qt)),
				zap.Int("changed", len(changed)))
		}
	}
	return changedByQueue
}

func (d *Dispatcher) restore(entry *domain.QueueEntry) {
	if err := d.queue.Restore(entry); err != nil {
		d.queue.Settle(entry)
		d.logger.Error("restore queue entry", zap.String("case_id", entry.CaseID), zap.Error(err))
	}
}

// requeueIfDispatchable hands a rejected entry back to the queue when the store
// still shows its case open and unassigned with that entry pending. Otherwise
// the entry is dropped; the stored rows already reflect where the case went.
func (d *Dispatcher) requeueIfDispatchable(ctx context.Context, entry *domain.QueueEntry) {
	c, err := d.cases.GetByID(ctx, entry.CaseID)
	if err != nil {
		d.queue.Settle(entry)
		d.logger.Warn("reload case after rejected commit; left to reconcile",
			zap.String("case_id", entry.CaseID), zap.Error(err))
		return
	}
	stored, err := d.entries.GetActiveByCase(ctx, entry.CaseID)
	if err != nil {
		d.queue.Settle(entry)
		d.logger.Warn("reload entry after rejected commit; left to reconcile",
			zap.String("case_id", entry.CaseID), zap.Error(err))
		return
	}
	if c.Status.Terminal() || c.AssignedAgentID != nil ||
		stored.ID != entry.ID || stored.Status != domain.QueueEntryPending {
		d.queue.Settle(entry)
		d.logger.Info("rejected entry dropped",
			zap.String("case_id", entry.CaseID),
			zap.String("entry_id", entry.ID),
			zap.String("case_status", string(c.Status)),
			zap.String("stored_entry_status", string(stored.Status)))
		return
	}
	d.restore(entry)
}

func (d *Dispatcher) conflict(msg string, entry *domain.QueueEntry, agentID string, fields ...zap.Field) {
	fields = append(fields, zap.String("agent_id", agentID))
	if entry != nil {
		fields = append(fields, zap.String("entry_id", entry.ID), zap.String("case_id", entry.CaseID))
	}
	d.logger.Error(msg, fields...)
}

func (d *Dispatcher) publish(ctx context.Context, event events.Event) {
	if d.dispatcher == nil {
		return
	}
	if err := d.dispatcher.Publish(ctx, event); err != nil {
		d.logger.Warn("publish event", zap.String("event_type", string(event.Type)), zap.Error(err))
	}
}
