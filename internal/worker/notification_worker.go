package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/casedesk/case-dispatch/internal/config"
	"github.com/casedesk/case-dispatch/internal/notify"
)

type notification struct {
	kind    string
	caseID  string
	deliver func(ctx context.Context) error
}

// NotificationWorker delivers notices to a sink off the request path. Enqueueing
// never blocks: when the buffer is full the notice is dropped and logged.
type NotificationWorker struct {
	sink    notify.Sink
	logger  *zap.Logger
	timeout time.Duration
	jobs    chan notification
}

// NewNotificationWorker creates the worker; call Run to start delivering.
func NewNotificationWorker(sink notify.Sink, cfg config.NotificationConfig, logger *zap.Logger) *NotificationWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	size := cfg.BufferSize
	if size <= 0 {
		size = 256
	}
	return &NotificationWorker{
		sink:    sink,
		logger:  logger,
		timeout: cfg.Timeout(),
		jobs:    make(chan notification, size),
	}
}

// EnqueueBreach schedules a breach notice and reports whether it was accepted.
func (w *NotificationWorker) EnqueueBreach(n notify.BreachNotice) bool {
	return w.enqueue(notification{kind: "breach", caseID: n.CaseID, deliver: func(ctx context.Context) error {
		return w.sink.NotifyBreach(ctx, n)
	}})
}

// EnqueueNewWork schedules a new-work notice and reports whether it was accepted.
func (w *NotificationWorker) EnqueueNewWork(n notify.WorkNotice) bool {
	return w.enqueue(notification{kind: "new_work", caseID: n.CaseID, deliver: func(ctx context.Context) error {
		return w.sink.NotifyAgentsOfNewWork(ctx, n)
	}})
}

func (w *NotificationWorker) enqueue(n notification) bool {
	select {
	case w.jobs <- n:
		return true
	default:
		w.logger.Warn("notification dropped; buffer full",
			zap.String("kind", n.kind),
			zap.String("case_id", n.caseID))
		return false
	}
}

// Run delivers notices until ctx is cancelled, then flushes what is already buffered.
func (w *NotificationWorker) Run(ctx context.Context) error {
	for {
		select {
		case n := <-w.jobs:
			w.deliver(ctx, n)
		case <-ctx.Done():
			w.drain()
			return nil
		}
	}
}

func (w *NotificationWorker) drain() {
	for {
		select {
		case n := <-w.jobs:
			w.deliver(context.Background(), n)
		default:
			return
		}
	}
}

func (w *NotificationWorker) deliver(parent context.Context, n notification) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), w.timeout)
	defer cancel()
	if err := n.deliver(ctx); err != nil {
		w.logger.Warn("notification delivery failed",
			zap.String("kind", n.kind),
			zap.String("case_id", n.caseID),
			zap.Error(err))
	}
}
