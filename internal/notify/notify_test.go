package notify

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/casedesk/case-dispatch/internal/config"
	"github.com/casedesk/case-dispatch/internal/domain"
)

func TestNewSelectsBackend(t *testing.T) {
	sink, err := New(config.NotificationConfig{Backend: "log"}, nil, nil)
	require.NoError(t, err)
	assert.IsType(t, &LogSink{}, sink)

	_, err = New(config.NotificationConfig{Backend: "redis"}, nil, nil)
	assert.Error(t, err)

	_, err = New(config.NotificationConfig{Backend: "carrier-pigeon"}, nil, nil)
	assert.Error(t, err)
}

func TestTopic(t *testing.T) {
	assert.Equal(t, "casedispatch.sla.breached", Topic("casedispatch", kindBreach))
}

func TestNATSSinkWithoutConnection(t *testing.T) {
	s := NewNATSSink(nil, "casedispatch")
	assert.Error(t, s.NotifyBreach(context.Background(), BreachNotice{CaseID: "c1"}))
	assert.NoError(t, s.Close())
}

func TestLogSinkWritesStructuredFields(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	s := NewLogSink(zap.New(core))

	require.NoError(t, s.NotifyBreach(context.Background(), BreachNotice{CaseID: "c1", Milestone: "first_response", At: time.Now()}))
	require.NoError(t, s.NotifyAgentsOfNewWork(context.Background(), WorkNotice{QueueType: domain.QueueTypeBillingSupport, Depth: 3}))

	require.Equal(t, 2, logs.Len())
	breach := logs.All()[0]
	assert.Equal(t, zapcore.WarnLevel, breach.Level)
	assert.Equal(t, "c1", breach.ContextMap()["case_id"])
	assert.Equal(t, int64(3), logs.All()[1].ContextMap()["depth"])
}
