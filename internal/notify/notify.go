// Package notify delivers best-effort outbound signals about breaches and new work.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/casedesk/case-dispatch/internal/config"
	"github.com/casedesk/case-dispatch/internal/domain"
)

// BreachNotice announces a case whose SLA target has been exceeded.
type BreachNotice struct {
	CaseID         string    `json:"case_id"`
	Milestone      string    `json:"milestone"`
	ElapsedMinutes int64     `json:"elapsed_minutes"`
	TargetMinutes  int       `json:"target_minutes"`
	At             time.Time `json:"at"`
}

// WorkNotice announces that a queue received new work.
type WorkNotice struct {
	QueueType      domain.QueueType `json:"queue_type"`
	CaseID         string           `json:"case_id"`
	Depth          int              `json:"depth"`
	EligibleAgents []string         `json:"eligible_agents"`
	At             time.Time        `json:"at"`
}

// Sink is the outbound notification contract. Callers treat every error as
// non-fatal.
type Sink interface {
	NotifyBreach(ctx context.Context, n BreachNotice) error
	NotifyAgentsOfNewWork(ctx context.Context, n WorkNotice) error
	Close() error
}

// Topic names the channel or subject a notice kind is published on.
func Topic(prefix, kind string) string {
	return prefix + "." + kind
}

const (
	kindBreach  = "sla.breached"
	kindNewWork = "queue.new_work"
)

// New builds the sink selected by cfg.Backend. The redis client is only used by
// the redis backend and may be nil otherwise.
func New(cfg config.NotificationConfig, client *redis.Client, logger *zap.Logger) (Sink, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch cfg.Backend {
	case "redis":
		if client == nil {
			return nil, fmt.Errorf("redis notification backend requires a redis client")
		}
		return NewRedisSink(client, cfg.ChannelPrefix), nil
	case "nats":
		conn, err := nats.Connect(cfg.NATSURL,
			nats.Name("case-dispatch-notify"),
			nats.Timeout(cfg.Timeout()),
			nats.MaxReconnects(-1),
			nats.ReconnectWait(2*time.Second),
		)
		if err != nil {
			return nil, fmt.Errorf("connect nats: %w", err)
		}
		return NewNATSSink(conn, cfg.ChannelPrefix), nil
	case "", "log":
		return NewLogSink(logger), nil
	default:
		return nil, fmt.Errorf("unknown notification backend %q", cfg.Backend)
	}
}

// RedisSink publishes notices over Redis pub/sub.
type RedisSink struct {
	client *redis.Client
	prefix string
}

// NewRedisSink creates a sink publishing on channels under prefix.
func NewRedisSink(client *redis.Client, prefix string) *RedisSink {
	return &RedisSink{client: client, prefix: prefix}
}

func (s *RedisSink) NotifyBreach(ctx context.Context, n BreachNotice) error {
	return s.publish(ctx, kindBreach, n)
}

func (s *RedisSink) NotifyAgentsOfNewWork(ctx context.Context, n WorkNotice) error {
	return s.publish(ctx, kindNewWork, n)
}

func (s *RedisSink) publish(ctx context.Context, kind string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal notice: %w", err)
	}
	return s.client.Publish(ctx, Topic(s.prefix, kind), payload).Err()
}

// Close leaves the shared client to its owner.
func (s *RedisSink) Close() error { return nil }

// NATSSink publishes notices as NATS subjects.
type NATSSink struct {
	conn   *nats.Conn
	prefix string
}

// NewNATSSink creates a sink publishing on subjects under prefix.
func NewNATSSink(conn *nats.Conn, prefix string) *NATSSink {
	return &NATSSink{conn: conn, prefix: prefix}
}

func (s *NATSSink) NotifyBreach(ctx context.Context, n BreachNotice) error {
	return s.publish(ctx, kindBreach, n)
}

func (s *NATSSink) NotifyAgentsOfNewWork(ctx context.Context, n WorkNotice) error {
	return s.publish(ctx, kindNewWork, n)
}

func (s *NATSSink) publish(ctx context.Context, kind string, v any) error {
	if s.conn == nil {
		return fmt.Errorf("not connected")
	}
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal notice: %w", err)
	}
	if err := s.conn.Publish(Topic(s.prefix, kind), payload); err != nil {
		return err
	}
	if _, ok := ctx.Deadline(); !ok {
		return nil
	}
	return s.conn.FlushWithContext(ctx)
}

func (s *NATSSink) Close() error {
	if s.conn != nil {
		return s.conn.Drain()
	}
	return nil
}

// LogSink writes notices to the structured log only.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink creates a log-only sink.
func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) NotifyBreach(_ context.Context, n BreachNotice) error {
	s.logger.Warn("sla breached",
		zap.String("case_id", n.CaseID),
		zap.String("milestone", n.Milestone),
		zap.Int64("elapsed_minutes", n.ElapsedMinutes),
		zap.Int("target_minutes", n.TargetMinutes))
	return nil
}

func (s *LogSink) NotifyAgentsOfNewWork(_ context.Context, n WorkNotice) error {
	s.logger.Info("new work queued",
		zap.String("queue_type", string(n.QueueType)),
		zap.String("case_id", n.CaseID),
		zap.Int("depth", n.Depth),
		zap.Strings("eligible_agents", n.EligibleAgents))
	return nil
}

func (s *LogSink) Close() error { return nil }
