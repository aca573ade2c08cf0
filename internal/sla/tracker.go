package sla

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/casedesk/case-dispatch/internal/domain"
	"github.com/casedesk/case-dispatch/internal/events"
	"github.com/casedesk/case-dispatch/internal/keylock"
	"github.com/casedesk/case-dispatch/internal/repository"
	apperrors "github.com/casedesk/case-dispatch/pkg/util/errorutil"
)

// Targets are the fixed SLA budgets, in minutes, applied to new records.
type Targets struct {
	FirstResponseMinutes int
	ResolutionMinutes    int
}

// DefaultTargets returns the 24h / 48h budgets.
func DefaultTargets() Targets {
	return Targets{
		FirstResponseMinutes: domain.DefaultFirstResponseTargetMinutes,
		ResolutionMinutes:    domain.DefaultResolutionTargetMinutes,
	}
}

// Tracker owns SLA records and their recompute cadence.
type Tracker struct {
	records    repository.SlaRepository
	dispatcher events.Dispatcher
	logger     *zap.Logger
	clock      func() time.Time
	newID      func() string
	targets    Targets
	locks      *keylock.Map
}

// TrackerDependencies bundles collaborators.
type TrackerDependencies struct {
	Records    repository.SlaRepository
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
	Clock      func() time.Time
	NewID      func() string
	Targets    Targets
}

// NewTracker creates the tracker.
func NewTracker(deps TrackerDependencies) *Tracker {
	t := &Tracker{
		records:    deps.Records,
		dispatcher: deps.Dispatcher,
		logger:     deps.Logger,
		clock:      deps.Clock,
		newID:      deps.NewID,
		targets:    deps.Targets,
		locks:      keylock.New(),
	}
	if t.logger == nil {
		t.logger = zap.NewNop()
	}
	if t.clock == nil {
		t.clock = time.Now
	}
	if t.newID == nil {
		t.newID = uuid.NewString
	}
	if t.targets.FirstResponseMinutes <= 0 || t.targets.ResolutionMinutes <= 0 {
		t.targets = DefaultTargets()
	}
	return t
}

// Targets returns the budgets applied to new records.
func (t *Tracker) Targets() Targets {
	return t.targets
}

// Initialize creates the SLA record for a freshly accepted case.
func (t *Tracker) Initialize(ctx context.Context, c *domain.Case) (*domain.SlaRecord, error) {
	now := t.clock()
	rec := &domain.SlaRecord{
		ID:                         t.newID(),
		CaseID:                     c.ID,
		OpenedAt:                   c.CreatedAt,
		FirstResponseTargetMinutes: t.targets.FirstResponseMinutes,
		ResolutionTargetMinutes:    t.targets.ResolutionMinutes,
		CreatedAt:                  now,
		UpdatedAt:                  now,
	}
	rec.Status = Status(rec, now)
	if err := t.records.Create(ctx, rec); err != nil {
		return nil, fmt.Errorf("create sla record: %w", err)
	}
	return rec, nil
}

// Ensure returns the case's SLA record, creating it when missing.
func (t *Tracker) Ensure(ctx context.Context, c *domain.Case) (*domain.SlaRecord, bool, error) {
	unlock := t.locks.Lock(c.ID)
	defer unlock()

	rec, err := t.records.GetByCaseID(ctx, c.ID)
	if err == nil {
		return rec, false, nil
	}
	if !apperrors.IsNotFound(err) {
		return nil, false, err
	}
	rec, err = t.Initialize(ctx, c)
	if err != nil {
		return nil, false, err
	}
	return rec, true, nil
}

// Get returns the SLA record for caseID.
func (t *Tracker) Get(ctx context.Context, caseID string) (*domain.SlaRecord, error) {
	return t.records.GetByCaseID(ctx, caseID)
}

// MarkFirstResponse stamps the first response for caseID. Only the first call
// changes state; the returned bool reports whether it did.
func (t *Tracker) MarkFirstResponse(ctx context.Context, caseID string, at time.Time) (*domain.SlaRecord, bool, error) {
	return t.mark(ctx, caseID, at, MarkFirstResponse)
}

// MarkResolution stamps the resolution for caseID, once.
func (t *Tracker) MarkResolution(ctx context.Context, caseID string, at time.Time) (*domain.SlaRecord, bool, error) {
	return t.mark(ctx, caseID, at, MarkResolution)
}

func (t *Tracker) mark(ctx context.Context, caseID string, at time.Time, apply func(*domain.SlaRecord, time.Time) bool) (*domain.SlaRecord, bool, error) {
	unlock := t.locks.Lock(caseID)
	defer unlock()

	rec, err := t.records.GetByCaseID(ctx, caseID)
	if err != nil {
		return nil, false, err
	}
	if !apply(rec, at) {
		return rec, false, nil
	}
	now := t.clock()
	rec.Status = Status(rec, now)
	rec.UpdatedAt = now
	if err := t.records.Update(ctx, rec); err != nil {
		return nil, false, fmt.Errorf("update sla record: %w", err)
	}
	return rec, true, nil
}

// SweepResult summarizes one sweep pass.
type SweepResult struct {
	Checked     int  `json:"checked"`
	Changed     int  `json:"changed"`
	Breached    int  `json:"breached"`
	Failed      int  `json:"failed"`
	Interrupted bool `json:"interrupted"`
}

// Sweep recomputes status for every non-terminal case and persists changes.
// A failure on one case is logged and skipped. The context is checked between
// cases so shutdown never waits for the whole batch.
func (t *Tracker) Sweep(ctx context.Context, cases []domain.Case) SweepResult {
	var res SweepResult
	for i := range cases {
		if ctx.Err() != nil {
			res.Interrupted = true
			break
		}
		c := &cases[i]
		if c.Status.Terminal() {
			continue
		}
		res.Checked++
		changed, breached, err := t.recompute(ctx, c.ID)
		if err != nil {
			res.Failed++
			t.logger.Warn("sla recompute failed", zap.String("case_id", c.ID), zap.Error(err))
			continue
		}
		if changed {
			res.Changed++
		}
		if breached {
			res.Breached++
		}
	}
	t.logger.Debug("sla sweep finished",
		zap.Int("checked", res.Checked),
		zap.Int("changed", res.Changed),
		zap.Int("breached", res.Breached),
		zap.Int("failed", res.Failed),
		zap.Bool("interrupted", res.Interrupted))
	return res
}

// recompute persists only the derived status, so it never contends with the
// once-only timestamp writes.
func (t *Tracker) recompute(ctx context.Context, caseID string) (changed, breached bool, err error) {
	rec, err := t.records.GetByCaseID(ctx, caseID)
	if err != nil {
		return false, false, err
	}
	now := t.clock()
	next := Status(rec, now)
	if next == rec.Status {
		return false, false, nil
	}
	if err := t.records.UpdateStatus(ctx, caseID, next); err != nil {
		return false, false, err
	}
	if next != domain.SlaBreached {
		return true, false, nil
	}
	t.publishBreach(ctx, rec, now)
	return true, true, nil
}

func (t *Tracker) publishBreach(ctx context.Context, rec *domain.SlaRecord, now time.Time) {
	if t.dispatcher == nil {
		return
	}
	payload := events.SlaBreachedPayload{
		PreviousStatus: rec.Status,
		Milestone:      "first_response",
		ElapsedMinutes: MinutesBetween(rec.OpenedAt, now),
		TargetMinutes:  rec.FirstResponseTargetMinutes,
	}
	if rec.FirstResponseAt != nil {
		payload.Milestone = "resolution"
		payload.TargetMinutes = rec.ResolutionTargetMinutes
	}
	if err := t.dispatcher.Publish(ctx, events.New(events.EventSlaBreached, rec.CaseID, now, payload)); err != nil {
		t.logger.Warn("publish sla breach", zap.String("case_id", rec.CaseID), zap.Error(err))
	}
}

// Metrics aggregates SLA performance for a reporting window.
type Metrics struct {
	TotalCases              int     `json:"total_cases"`
	PctFirstResponseMet     float64 `json:"pct_first_response_met"`
	PctResolutionMet        float64 `json:"pct_resolution_met"`
	AvgFirstResponseMinutes float64 `json:"avg_first_response_minutes"`
	AvgResolutionMinutes    float64 `json:"avg_resolution_minutes"`
}

// Metrics computes SLA performance over records whose clock started in [from, to].
// Percentages only count records whose met flag has been decided.
func (t *Tracker) Metrics(ctx context.Context, from, to time.Time) (Metrics, error) {
	if to.Before(from) {
		return Metrics{}, apperrors.NewValidationError("from must not be after to", map[string]any{
			"from": from, "to": to,
		})
	}
	records, err := t.records.ListOpenedBetween(ctx, from, to)
	if err != nil {
		return Metrics{}, err
	}
	return Aggregate(records), nil
}

// Aggregate folds records into Metrics.
func Aggregate(records []domain.SlaRecord) Metrics {
	var (
		m                  = Metrics{TotalCases: len(records)}
		frDecided, frMet   int
		resDecided, resMet int
		frSum, resSum      int64
		frCount, resCount  int
	)
	for i := range records {
		r := &records[i]
		if r.FirstResponseMet != nil {
			frDecided++
			if *r.FirstResponseMet {
				frMet++
			}
		}
		if r.ResolutionMet != nil {
			resDecided++
			if *r.ResolutionMet {
				resMet++
			}
		}
		if r.FirstResponseMinutes != nil {
			frSum += *r.FirstResponseMinutes
			frCount++
		}
		if r.ResolutionMinutes != nil {
			resSum += *r.ResolutionMinutes
			resCount++
		}
	}
	m.PctFirstResponseMet = percent(frMet, frDecided)
	m.PctResolutionMet = percent(resMet, resDecided)
	m.AvgFirstResponseMinutes = mean(frSum, frCount)
	m.AvgResolutionMinutes = mean(resSum, resCount)
	return m
}

// ListByStatus returns records currently in status.
func (t *Tracker) ListByStatus(ctx context.Context, status domain.SlaStatus) ([]domain.SlaRecord, error) {
	return t.records.ListByStatus(ctx, status)
}

func percent(n, d int) float64 {
	if d == 0 {
		return 0
	}
	return float64(n) * 100 / float64(d)
}

func mean(sum int64, n int) float64 {
	if n == 0 {
		return 0
	}
	return float64(sum) / float64(n)
}
