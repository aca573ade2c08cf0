package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/casedesk/case-dispatch/internal/config"
	"github.com/casedesk/case-dispatch/internal/notify"
)

type recordingSink struct {
	mu       sync.Mutex
	breaches []string
	work     []string
	fail     bool
}

func (s *recordingSink) NotifyBreach(_ context.Context, n notify.BreachNotice) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("sink unavailable")
	}
	s.breaches = append(s.breaches, n.CaseID)
	return nil
}

func (s *recordingSink) NotifyAgentsOfNewWork(_ context.Context, n notify.WorkNotice) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.work = append(s.work, n.CaseID)
	return nil
}

func (s *recordingSink) Close() error { return nil }

func (s *recordingSink) counts() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.breaches), len(s.work)
}

func TestNotificationWorkerDelivers(t *testing.T) {
	sink := &recordingSink{}
	w := NewNotificationWorker(sink, config.NotificationConfig{BufferSize: 8}, zaptest.NewLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = w.Run(ctx)
		close(done)
	}()

	assert.True(t, w.EnqueueBreach(notify.BreachNotice{CaseID: "c1"}))
	assert.True(t, w.EnqueueNewWork(notify.WorkNotice{CaseID: "c2"}))
	assert.Eventually(t, func() bool {
		b, n := sink.counts()
		return b == 1 && n == 1
	}, time.Second, 5*time.Millisecond)

	cancel()
	<-done
}

func TestNotificationWorkerDropsWhenFullAndDrainsOnStop(t *testing.T) {
	sink := &recordingSink{}
	w := NewNotificationWorker(sink, config.NotificationConfig{BufferSize: 2}, zaptest.NewLogger(t))

	assert.True(t, w.EnqueueBreach(notify.BreachNotice{CaseID: "c1"}))
	assert.True(t, w.EnqueueBreach(notify.BreachNotice{CaseID: "c2"}))
	assert.False(t, w.EnqueueBreach(notify.BreachNotice{CaseID: "c3"}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, w.Run(ctx))

	b, _ := sink.counts()
	assert.Equal(t, 2, b)
}

func TestNotificationWorkerSwallowsSinkErrors(t *testing.T) {
	sink := &recordingSink{fail: true}
	w := NewNotificationWorker(sink, config.NotificationConfig{BufferSize: 1}, zaptest.NewLogger(t))
	w.EnqueueBreach(notify.BreachNotice{CaseID: "c1"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, w.Run(ctx))
}
