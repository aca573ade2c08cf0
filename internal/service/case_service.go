package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/casedesk/case-dispatch/internal/classify"
	"github.com/casedesk/case-dispatch/internal/dispatch"
	"github.com/casedesk/case-dispatch/internal/domain"
	"github.com/casedesk/case-dispatch/internal/events"
	"github.com/casedesk/case-dispatch/internal/queue"
	"github.com/casedesk/case-dispatch/internal/repository"
	"github.com/casedesk/case-dispatch/internal/sla"
	apperrors "github.com/casedesk/case-dispatch/pkg/util/errorutil"
)

// DefaultMaxConcurrentCases applies to agents registered without a limit.
const DefaultMaxConcurrentCases = 5

// CaseService is the entry point of the dispatch core: intake, dispatch
// requests, response and resolution events, metrics and the recurring passes.
type CaseService struct {
	cases      repository.CaseRepository
	agents     repository.AgentRepository
	entries    repository.QueueEntryRepository
	queue      *queue.WorkQueue
	dispatch   *dispatch.Dispatcher
	tracker    *sla.Tracker
	classifier classify.Classifier
	dispatcher events.Dispatcher
	logger     *zap.Logger
	clock      func() time.Time
	newID      func() string
	policy     CasePolicy
}

// CasePolicy holds the time windows the service works with.
type CasePolicy struct {
	MetricsWindow      time.Duration
	RedistributeMaxAge time.Duration
	ReconcileGrace     time.Duration
}

// CaseDependencies bundles collaborators for the case service.
type CaseDependencies struct {
	Stores     repository.Stores
	Queue      *queue.WorkQueue
	Dispatch   *dispatch.Dispatcher
	Tracker    *sla.Tracker
	Classifier classify.Classifier
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
	Clock      func() time.Time
	NewID      func() string
	Policy     CasePolicy
}

// NewCaseService constructs the service.
func NewCaseService(deps CaseDependencies) *CaseService {
	s := &CaseService{
		cases:      deps.Stores.Cases,
		agents:     deps.Stores.Agents,
		entries:    deps.Stores.Entries,
		queue:      deps.Queue,
		dispatch:   deps.Dispatch,
		tracker:    deps.Tracker,
		classifier: deps.Classifier,
		dispatcher: deps.Dispatcher,
		logger:     deps.Logger,
		clock:      deps.Clock,
		newID:      deps.NewID,
		policy:     deps.Policy,
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.clock == nil {
		s.clock = time.Now
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}
	if s.classifier == nil {
		s.classifier = classify.NewKeywordClassifier(nil)
	}
	if s.policy.MetricsWindow <= 0 {
		s.policy.MetricsWindow = time.Hour
	}
	if s.policy.RedistributeMaxAge <= 0 {
		s.policy.RedistributeMaxAge = time.Hour
	}
	if s.policy.ReconcileGrace <= 0 {
		s.policy.ReconcileGrace = time.Minute
	}
	return s
}

// Intake validates and classifies a draft, stores the case, opens its SLA record
// and enqueues it. A failure after the case row exists leaves it New; the
// reconcile pass picks such cases up.
func (s *CaseService) Intake(ctx context.Context, draft domain.CaseDraft) (*domain.Case, error) {
	if err := validateDraft(&draft); err != nil {
		return nil, err
	}
	now := s.clock()
	c := &domain.Case{
		ID:            s.newID(),
		CaseNumber:    generateCaseNumber(now),
		CustomerEmail: strings.TrimSpace(draft.CustomerEmail),
		CustomerName:  strings.TrimSpace(draft.CustomerName),
		Subject:       strings.TrimSpace(draft.Subject),
		Description:   classify.Description(draft.Body),
		QueueType:     s.classifier.QueueType(&draft),
		Priority:      s.classifier.Priority(&draft),
		Status:        domain.CaseStatusNew,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.cases.Create(ctx, c); err != nil {
		return nil, apperrors.MapError(err)
	}
	if _, err := s.tracker.Initialize(ctx, c); err != nil {
		s.logger.Warn("sla init failed; case left for reconcile", zap.String("case_id", c.ID), zap.Error(err))
		return nil, apperrors.MapError(err)
	}
	if err := s.enqueue(ctx, c); err != nil {
		s.logger.Warn("enqueue failed; case left for reconcile", zap.String("case_id", c.ID), zap.Error(err))
		return nil, mapCoreError(err)
	}

	s.logger.Info("case accepted",
		zap.String("case_id", c.ID),
		zap.String("case_number", c.CaseNumber),
		zap.String("queue_type", string(c.QueueType)),
		zap.String("priority", string(c.Priority)))
	return c, nil
}

// enqueue places a New case on its queue, persists the entry and marks the case Queued.
func (s *CaseService) enqueue(ctx context.Context, c *domain.Case) error {
	entry, err := s.queue.Enqueue(c)
	if err != nil {
		return err
	}
	if err := s.entries.Create(ctx, entry); err != nil {
		s.queue.Remove(entry.QueueType, entry.ID)
		return fmt.Errorf("persist queue entry: %w", err)
	}
	if err := s.cases.UpdateStatus(ctx, c.ID, domain.CaseStatusNew, domain.CaseStatusQueued); err != nil {
		// The entry is live and dispatchable; reconcile repairs the status.
		s.logger.Warn("mark case queued", zap.String("case_id", c.ID), zap.Error(err))
	} else {
		c.Status = domain.CaseStatusQueued
	}
	s.publish(ctx, events.New(events.EventCaseQueued, c.ID, entry.EnqueuedAt, events.CaseQueuedPayload{
		EntryID:   entry.ID,
		QueueType: entry.QueueType,
		Priority:  c.Priority,
		Score:     entry.PriorityScore,
	}))
	return nil
}

func validateDraft(d *domain.CaseDraft) error {
	details := map[string]any{}
	if strings.TrimSpace(d.CustomerEmail) == "" {
		details["customer_email"] = "required"
	} else if _, err := mail.ParseAddress(strings.TrimSpace(d.CustomerEmail)); err != nil {
		details["customer_email"] = "invalid"
	}
	if strings.TrimSpace(d.Subject) == "" {
		details["subject"] = "required"
	}
	if d.QueueType != "" && !d.QueueType.Valid() {
		details["queue_type"] = "unknown"
	}
	if d.Priority != "" && !d.Priority.Valid() {
		details["priority"] = "unknown"
	}
	if len(details) > 0 {
		return apperrors.NewValidationError("invalid case", details)
	}
	return nil
}

func generateCaseNumber(now time.Time) string {
	return fmt.Sprintf("CASE-%d-%s", now.Year(), strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8]))
}

// CaseDetails is a case with its SLA record.
type CaseDetails struct {
	Case *domain.Case
	Sla  *domain.SlaRecord
}

// GetCase returns a case by id or case number.
func (s *CaseService) GetCase(ctx context.Context, ref string) (*CaseDetails, error) {
	c, err := s.cases.GetByID(ctx, ref)
	if apperrors.IsNotFound(err) {
		c, err = s.cases.GetByCaseNumber(ctx, ref)
	}
	if err != nil {
		return nil, notFound("case", ref, err)
	}
	rec, err := s.tracker.Get(ctx, c.ID)
	if err != nil && !apperrors.IsNotFound(err) {
		return nil, apperrors.MapError(err)
	}
	return &CaseDetails{Case: c, Sla: rec}, nil
}

// RequestNextCase dispatches the best pending case of qt to the agent. Routine
// outcomes (agent ineligible, queue empty) are returned as dispatch sentinels,
// recognisable with dispatch.IsIneligible.
func (s *CaseService) RequestNextCase(ctx context.Context, agentID string, qt domain.QueueType) (*dispatch.Assignment, error) {
	if !qt.Valid() {
		return nil, apperrors.NewValidationError("unknown queue type", map[string]any{"queue_type": qt})
	}
	assignment, err := s.dispatch.Assign(ctx, agentID, qt)
	if err != nil {
		if dispatch.IsIneligible(err) {
			return nil, err
		}
		return nil, notFound("agent", agentID, err)
	}
	return assignment, nil
}

// RecordFirstResponse stamps the case's first response once and moves an
// Assigned case to InProgress.
func (s *CaseService) RecordFirstResponse(ctx context.Context, caseID string) (*domain.SlaRecord, error) {
	c, err := s.cases.GetByID(ctx, caseID)
	if err != nil {
		return nil, notFound("case", caseID, err)
	}
	if c.Status.Terminal() {
		return nil, apperrors.NewValidationError("case is closed", map[string]any{"case_id": caseID, "status": c.Status})
	}
	rec, changed, err := s.tracker.MarkFirstResponse(ctx, caseID, s.clock())
	if err != nil {
		return nil, notFound("sla record", caseID, err)
	}
	if c.Status == domain.CaseStatusAssigned {
		s.transition(ctx, c, domain.CaseStatusInProgress)
	}
	if changed {
		s.logger.Info("first response recorded",
			zap.String("case_id", caseID),
			zap.Int64("minutes", *rec.FirstResponseMinutes),
			zap.Bool("met", *rec.FirstResponseMet))
	}
	return rec, nil
}

// RecordResolution resolves the case, frees its agent's slot and stops the SLA
// clock. Repeating the call is safe.
func (s *CaseService) RecordResolution(ctx context.Context, caseID string) (*CaseDetails, error) {
	return s.finish(ctx, caseID, domain.CaseStatusResolved)
}

// UpdateStatus moves a case to status. Terminal statuses go through release;
// InProgress and PendingCustomer are only valid for dispatched cases.
func (s *CaseService) UpdateStatus(ctx context.Context, caseID string, status domain.CaseStatus) (*domain.Case, error) {
	if status.Terminal() {
		details, err := s.finish(ctx, caseID, status)
		if err != nil {
			return nil, err
		}
		return details.Case, nil
	}
	if status != domain.CaseStatusInProgress && status != domain.CaseStatusPendingCustomer {
		return nil, apperrors.NewValidationError("status cannot be set directly", map[string]any{"status": status})
	}
	c, err := s.cases.GetByID(ctx, caseID)
	if err != nil {
		return nil, notFound("case", caseID, err)
	}
	switch c.Status {
	case domain.CaseStatusAssigned, domain.CaseStatusInProgress, domain.CaseStatusPendingCustomer:
	default:
		return nil, apperrors.Wrap("INVALID_STATE_TRANSITION", http.StatusConflict, queue.ErrInvalidStateTransition,
			map[string]any{"case_id": caseID, "from": c.Status, "to": status})
	}
	if c.Status == status {
		return c, nil
	}
	if err := s.transition(ctx, c, status); err != nil {
		return nil, mapCoreError(err)
	}
	return c, nil
}

func (s *CaseService) finish(ctx context.Context, caseID string, final domain.CaseStatus) (*CaseDetails, error) {
	c, changed, err := s.dispatch.Release(ctx, caseID, final)
	if err != nil {
		return nil, notFound("case", caseID, err)
	}
	at := s.clock()
	if c.ResolvedAt != nil {
		at = *c.ResolvedAt
	}
	rec, _, err := s.tracker.MarkResolution(ctx, caseID, at)
	if err != nil {
		s.logger.Warn("mark sla resolution", zap.String("case_id", caseID), zap.Error(err))
		return nil, apperrors.MapError(err)
	}
	if changed {
		s.logger.Info("case released",
			zap.String("case_id", caseID),
			zap.String("status", string(final)),
			zap.Boolp("resolution_met", rec.ResolutionMet))
	}
	return &CaseDetails{Case: c, Sla: rec}, nil
}

func (s *CaseService) transition(ctx context.Context, c *domain.Case, to domain.CaseStatus) error {
	from := c.Status
	if err := s.cases.UpdateStatus(ctx, c.ID, from, to); err != nil {
		s.logger.Warn("case status transition", zap.String("case_id", c.ID),
			zap.String("from", string(from)), zap.String("to", string(to)), zap.Error(err))
		return err
	}
	c.Status = to
	s.publish(ctx, events.New(events.EventCaseStatusChanged, c.ID, s.clock(), events.CaseStatusChangedPayload{
		OldStatus: from,
		NewStatus: to,
	}))
	return nil
}

// QueueDepth returns the number of pending entries for qt.
func (s *CaseService) QueueDepth(qt domain.QueueType) (int, error) {
	if !qt.Valid() {
		return 0, apperrors.NewValidationError("unknown queue type", map[string]any{"queue_type": qt})
	}
	return s.queue.Depth(qt), nil
}

// QueueMetrics reports depth plus wait and throughput over the trailing window.
type QueueMetrics struct {
	QueueType         domain.QueueType `json:"queue_type"`
	Depth             int              `json:"depth"`
	AvgWaitMinutes    float64          `json:"avg_wait_minutes"`
	ThroughputPerHour float64          `json:"throughput_per_hour"`
	WindowMinutes     int              `json:"window_minutes"`
}

// QueueMetrics computes metrics for qt.
func (s *CaseService) QueueMetrics(ctx context.Context, qt domain.QueueType) (QueueMetrics, error) {
	depth, err := s.QueueDepth(qt)
	if err != nil {
		return QueueMetrics{}, err
	}
	window := s.policy.MetricsWindow
	assigned, err := s.entries.ListAssignedSince(ctx, qt, s.clock().Add(-window))
	if err != nil {
		return QueueMetrics{}, apperrors.MapError(err)
	}
	m := QueueMetrics{QueueType: qt, Depth: depth, WindowMinutes: int(window / time.Minute)}
	if len(assigned) == 0 {
		return m, nil
	}
	var waited time.Duration
	for _, e := range assigned {
		waited += e.AssignedAt.Sub(e.EnqueuedAt)
	}
	m.AvgWaitMinutes = waited.Minutes() / float64(len(assigned))
	m.ThroughputPerHour = float64(len(assigned)) / window.Hours()
	return m, nil
}

// SlaMetrics reports SLA performance for records opened in [from, to].
func (s *CaseService) SlaMetrics(ctx context.Context, from, to time.Time) (sla.Metrics, error) {
	m, err := s.tracker.Metrics(ctx, from, to)
	if err != nil {
		return sla.Metrics{}, apperrors.MapError(err)
	}
	return m, nil
}

// SlaCase pairs an SLA record with its case.
type SlaCase struct {
	Case *domain.Case
	Sla  domain.SlaRecord
}

// ListSlaByStatus returns open cases whose SLA is in status.
func (s *CaseService) ListSlaByStatus(ctx context.Context, status domain.SlaStatus) ([]SlaCase, error) {
	records, err := s.tracker.ListByStatus(ctx, status)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	out := make([]SlaCase, 0, len(records))
	for _, rec := range records {
		c, err := s.cases.GetByID(ctx, rec.CaseID)
		if err != nil {
			s.logger.Warn("sla record without case", zap.String("case_id", rec.CaseID), zap.Error(err))
			continue
		}
		if c.Status.Terminal() {
			continue
		}
		out = append(out, SlaCase{Case: c, Sla: rec})
	}
	return out, nil
}

// SweepSla recomputes SLA status for every active case.
func (s *CaseService) SweepSla(ctx context.Context) (sla.SweepResult, error) {
	active, err := s.cases.ListActive(ctx)
	if err != nil {
		return sla.SweepResult{}, fmt.Errorf("list active cases: %w", err)
	}
	return s.tracker.Sweep(ctx, active), nil
}

// Redistribute applies the aging boost to entries waiting past the configured age.
func (s *CaseService) Redistribute(ctx context.Context) map[domain.QueueType]int {
	return s.dispatch.RedistributePending(ctx, s.policy.RedistributeMaxAge)
}

// ReconcileResult summarizes a reconcile pass.
type ReconcileResult struct {
	Checked   int `json:"checked"`
	Enqueued  int `json:"enqueued"`
	Repaired  int `json:"repaired"`
	Requeued  int `json:"requeued"`
	SlaOpened int `json:"sla_opened"`
	Failed    int `json:"failed"`
}

// Reconcile finishes intake for cases still New after the grace period: it
// opens a missing SLA record and enqueues the case, or only fixes the status
// when a live entry already exists. Queued cases whose stored entry is pending
// but absent from the in-memory queue are put back.
func (s *CaseService) Reconcile(ctx context.Context) (ReconcileResult, error) {
	var res ReconcileResult
	cutoff := s.clock().Add(-s.policy.ReconcileGrace)
	stale, err := s.cases.ListByStatusCreatedBefore(ctx, domain.CaseStatusNew, cutoff)
	if err != nil {
		return res, fmt.Errorf("list stale intake: %w", err)
	}
	queued, err := s.cases.ListByStatusCreatedBefore(ctx, domain.CaseStatusQueued, cutoff)
	if err != nil {
		return res, fmt.Errorf("list queued cases: %w", err)
	}
	for i := range stale {
		if ctx.Err() != nil {
			break
		}
		c := &stale[i]
		res.Checked++
		if err := s.reconcileOne(ctx, c, &res); err != nil {
			res.Failed++
			s.logger.Warn("reconcile case", zap.String("case_id", c.ID), zap.Error(err))
		}
	}
	for i := range queued {
		if ctx.Err() != nil {
			break
		}
		c := &queued[i]
		res.Checked++
		requeued, err := s.requeueStranded(ctx, c)
		if err != nil {
			res.Failed++
			s.logger.Warn("reconcile queued case", zap.String("case_id", c.ID), zap.Error(err))
			continue
		}
		if requeued {
			res.Requeued++
		}
	}
	if res.Enqueued+res.Repaired+res.Requeued+res.Failed > 0 {
		s.logger.Info("intake reconciled",
			zap.Int("checked", res.Checked),
			zap.Int("enqueued", res.Enqueued),
			zap.Int("repaired", res.Repaired),
			zap.Int("requeued", res.Requeued),
			zap.Int("failed", res.Failed))
	}
	return res, nil
}

func (s *CaseService) reconcileOne(ctx context.Context, c *domain.Case, res *ReconcileResult) error {
	if _, created, err := s.tracker.Ensure(ctx, c); err != nil {
		return err
	} else if created {
		res.SlaOpened++
	}
	_, err := s.entries.GetActiveByCase(ctx, c.ID)
	switch {
	case err == nil:
		if err := s.cases.UpdateStatus(ctx, c.ID, domain.CaseStatusNew, domain.CaseStatusQueued); err != nil {
			return err
		}
		res.Repaired++
		return nil
	case !apperrors.IsNotFound(err):
		return err
	}
	if err := s.enqueue(ctx, c); err != nil {
		return err
	}
	res.Enqueued++
	return nil
}

func (s *CaseService) requeueStranded(ctx context.Context, c *domain.Case) (bool, error) {
	entry, err := s.entries.GetActiveByCase(ctx, c.ID)
	if err != nil {
		return false, err
	}
	if entry.Status != domain.QueueEntryPending || s.queue.Holds(entry.QueueType, entry.ID) {
		return false, nil
	}
	if err := s.queue.Restore(entry); err != nil {
		return false, err
	}
	s.logger.Info("stranded entry requeued",
		zap.String("case_id", c.ID),
		zap.String("entry_id", entry.ID),
		zap.String("queue_type", string(entry.QueueType)))
	return true, nil
}

// RebuildQueue loads persisted pending entries into the in-memory queue.
func (s *CaseService) RebuildQueue(ctx context.Context) (loaded, skipped int, err error) {
	pending, err := s.entries.ListPending(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("list pending entries: %w", err)
	}
	ptrs := make([]*domain.QueueEntry, 0, len(pending))
	for i := range pending {
		ptrs = append(ptrs, &pending[i])
	}
	loaded, skipped = s.queue.Load(ptrs)
	s.logger.Info("work queue rebuilt", zap.Int("loaded", loaded), zap.Int("skipped", skipped))
	return loaded, skipped, nil
}

// AgentWorkload describes an agent's current load.
type AgentWorkload struct {
	Agent       *domain.Agent
	ActiveCases []domain.Case
}

// AgentWorkload returns the agent with its active cases.
func (s *CaseService) AgentWorkload(ctx context.Context, agentID string) (*AgentWorkload, error) {
	agent, err := s.agents.GetByID(ctx, agentID)
	if err != nil {
		return nil, notFound("agent", agentID, err)
	}
	cases, err := s.cases.ListByAgent(ctx, agentID, true)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return &AgentWorkload{Agent: agent, ActiveCases: cases}, nil
}

// AvailableAgents lists agents that could take a case of qt right now.
func (s *CaseService) AvailableAgents(ctx context.Context, qt domain.QueueType) ([]domain.Agent, error) {
	if !qt.Valid() {
		return nil, apperrors.NewValidationError("unknown queue type", map[string]any{"queue_type": qt})
	}
	agents, err := s.agents.FindEligible(ctx, qt)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return agents, nil
}

// SetAgentStatus changes an agent's availability.
func (s *CaseService) SetAgentStatus(ctx context.Context, agentID string, status domain.AgentStatus) (*domain.Agent, error) {
	agent, err := s.dispatch.SetAgentStatus(ctx, agentID, status)
	if err != nil {
		return nil, notFound("agent", agentID, err)
	}
	return agent, nil
}

// AgentInput describes an agent registration.
type AgentInput struct {
	Name               string
	Email              string
	Skills             []domain.QueueType
	MaxConcurrentCases int
	Status             domain.AgentStatus
}

// RegisterAgent creates or updates an agent's profile. New agents start Offline
// unless a status is given; an update without a status keeps the current one.
// The case count is never touched here.
func (s *CaseService) RegisterAgent(ctx context.Context, agentID string, input AgentInput) (*domain.Agent, error) {
	details := map[string]any{}
	if strings.TrimSpace(agentID) == "" {
		details["id"] = "required"
	}
	for _, q := range input.Skills {
		if !q.Valid() {
			details["skills"] = "unknown queue type " + string(q)
		}
	}
	if input.MaxConcurrentCases < 0 {
		details["max_concurrent_cases"] = "must be positive"
	}
	if input.Status != "" && !input.Status.Valid() {
		details["status"] = "unknown"
	}
	if len(details) > 0 {
		return nil, apperrors.NewValidationError("invalid agent", details)
	}
	if input.MaxConcurrentCases == 0 {
		input.MaxConcurrentCases = DefaultMaxConcurrentCases
	}

	agent, err := s.dispatch.UpdateAgentProfile(ctx, agentID, dispatch.AgentProfile{
		Name:               input.Name,
		Email:              input.Email,
		Skills:             input.Skills,
		MaxConcurrentCases: input.MaxConcurrentCases,
		Status:             input.Status,
	})
	switch {
	case err == nil:
		return agent, nil
	case !apperrors.IsNotFound(err):
		return nil, notFound("agent", agentID, err)
	}

	if input.Status == "" {
		input.Status = domain.AgentStatusOffline
	}
	now := s.clock()
	agent = &domain.Agent{
		ID:                 agentID,
		Name:               input.Name,
		Email:              input.Email,
		Status:             input.Status,
		Skills:             input.Skills,
		MaxConcurrentCases: input.MaxConcurrentCases,
		LastActiveAt:       now,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := s.agents.Create(ctx, agent); err != nil {
		return nil, apperrors.MapError(err)
	}
	return agent, nil
}

func (s *CaseService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("publish event",
			zap.String("event_type", string(event.Type)),
			zap.String("case_id", event.CaseID),
			zap.Error(err))
	}
}

// notFound converts store misses into a NOT_FOUND DomainError and maps everything else.
func notFound(resource, id string, err error) error {
	var domainErr *apperrors.DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	if apperrors.IsNotFound(err) {
		return apperrors.NewNotFound(resource, map[string]any{"id": id})
	}
	return mapCoreError(err)
}

// mapCoreError attaches codes and statuses to queue and dispatch sentinels.
func mapCoreError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, queue.ErrInvalidCase):
		return apperrors.Wrap("INVALID_CASE", http.StatusBadRequest, err, nil)
	case errors.Is(err, queue.ErrInvalidStateTransition):
		return apperrors.Wrap("INVALID_STATE_TRANSITION", http.StatusConflict, err, nil)
	case errors.Is(err, dispatch.ErrStateConflict), errors.Is(err, repository.ErrConflict):
		return apperrors.Wrap("STATE_CONFLICT", http.StatusConflict, err, nil)
	}
	return apperrors.MapError(err)
}
