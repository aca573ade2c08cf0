package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/casedesk/case-dispatch/internal/events"
	"github.com/casedesk/case-dispatch/internal/notify"
	"github.com/casedesk/case-dispatch/internal/queue"
	"github.com/casedesk/case-dispatch/internal/repository"
)

// NotificationQueue accepts notices for asynchronous delivery. Enqueue calls
// never block; false means the notice was dropped.
type NotificationQueue interface {
	EnqueueBreach(n notify.BreachNotice) bool
	EnqueueNewWork(n notify.WorkNotice) bool
}

// NotificationService turns domain events into outbound notices.
type NotificationService struct {
	dispatcher events.Dispatcher
	agents     repository.AgentRepository
	queue      *queue.WorkQueue
	outbox     NotificationQueue
	logger     *zap.Logger
}

// NotificationDependencies bundles collaborators for the notification service.
type NotificationDependencies struct {
	Dispatcher events.Dispatcher
	Agents     repository.AgentRepository
	Queue      *queue.WorkQueue
	Outbox     NotificationQueue
	Logger     *zap.Logger
}

// NewNotificationService creates the service.
func NewNotificationService(deps NotificationDependencies) *NotificationService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		dispatcher: deps.Dispatcher,
		agents:     deps.Agents,
		queue:      deps.Queue,
		outbox:     deps.Outbox,
		logger:     logger,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil || n.outbox == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventSlaBreached, n.handleSlaBreached)
	n.dispatcher.Subscribe(events.EventCaseQueued, n.handleCaseQueued)
}

func (n *NotificationService) handleSlaBreached(_ context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.SlaBreachedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
	}
	n.logger.Info("SlaBreached",
		zap.String("case_id", event.CaseID),
		zap.String("milestone", payload.Milestone),
		zap.Int64("elapsed_minutes", payload.ElapsedMinutes))
	n.outbox.EnqueueBreach(notify.BreachNotice{
		CaseID:         event.CaseID,
		Milestone:      payload.Milestone,
		ElapsedMinutes: payload.ElapsedMinutes,
		TargetMinutes:  payload.TargetMinutes,
		At:             event.Timestamp,
	})
	return nil
}

func (n *NotificationService) handleCaseQueued(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.CaseQueuedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
	}
	agents, err := n.agents.FindEligible(ctx, payload.QueueType)
	if err != nil {
		return fmt.Errorf("find eligible agents: %w", err)
	}
	if len(agents) == 0 {
		n.logger.Debug("no eligible agents for new work",
			zap.String("case_id", event.CaseID),
			zap.String("queue_type", string(payload.QueueType)))
		return nil
	}
	ids := make([]string, 0, len(agents))
	for _, a := range agents {
		ids = append(ids, a.ID)
	}
	n.outbox.EnqueueNewWork(notify.WorkNotice{
		QueueType:      payload.QueueType,
		CaseID:         event.CaseID,
		Depth:          n.queue.Depth(payload.QueueType),
		EligibleAgents: ids,
		At:             event.Timestamp,
	})
	return nil
}
