package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ErrUnknownTask is returned by RunOnce for a name no task was registered under.
var ErrUnknownTask = errors.New("unknown task")

// Task is a named job repeated at a fixed interval.
type Task struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// Scheduler runs recurring tasks. Its lifetime is owned by the process: Start
// launches one goroutine per task, Stop cancels them and waits for the current
// runs to return.
type Scheduler struct {
	logger *zap.Logger
	tasks  map[string]Task
	order  []string

	mu     sync.Mutex
	cancel context.CancelFunc
	group  *errgroup.Group
}

// NewScheduler registers tasks. Tasks without a name, a run func, or a positive
// interval are rejected.
func NewScheduler(logger *zap.Logger, tasks ...Task) (*Scheduler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Scheduler{logger: logger, tasks: make(map[string]Task, len(tasks))}
	for _, t := range tasks {
		if t.Name == "" || t.Run == nil || t.Interval <= 0 {
			return nil, fmt.Errorf("invalid task %q", t.Name)
		}
		if _, dup := s.tasks[t.Name]; dup {
			return nil, fmt.Errorf("duplicate task %q", t.Name)
		}
		s.tasks[t.Name] = t
		s.order = append(s.order, t.Name)
	}
	return s, nil
}

// Tasks lists registered task names in registration order.
func (s *Scheduler) Tasks() []string {
	return append([]string(nil), s.order...)
}

// Start launches every task. Calling Start on a running scheduler is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	group, ctx := errgroup.WithContext(ctx)
	s.cancel = cancel
	s.group = group
	for _, name := range s.order {
		task := s.tasks[name]
		group.Go(func() error {
			s.loop(ctx, task)
			return nil
		})
	}
	s.logger.Info("scheduler started", zap.Strings("tasks", s.order))
}

// Stop cancels all tasks and waits for them to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, group := s.cancel, s.group
	s.cancel, s.group = nil, nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	_ = group.Wait()
	s.logger.Info("scheduler stopped")
}

// RunOnce invokes a task directly, outside its schedule.
func (s *Scheduler) RunOnce(ctx context.Context, name string) error {
	task, ok := s.tasks[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTask, name)
	}
	return s.run(ctx, task)
}

func (s *Scheduler) loop(ctx context.Context, task Task) {
	ticker := time.NewTicker(task.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = s.run(ctx, task)
		}
	}
}

func (s *Scheduler) run(ctx context.Context, task Task) error {
	started := time.Now()
	err := task.Run(ctx)
	if err != nil {
		s.logger.Warn("task failed", zap.String("task", task.Name), zap.Error(err))
		return err
	}
	s.logger.Debug("task finished", zap.String("task", task.Name), zap.Duration("took", time.Since(started)))
	return nil
}
