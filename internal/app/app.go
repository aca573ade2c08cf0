// Package app assembles the dispatch core and its adapters from configuration.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/casedesk/case-dispatch/internal/api/http"
	"github.com/casedesk/case-dispatch/internal/api/http/handlers"
	"github.com/casedesk/case-dispatch/internal/auth"
	"github.com/casedesk/case-dispatch/internal/classify"
	"github.com/casedesk/case-dispatch/internal/config"
	"github.com/casedesk/case-dispatch/internal/dispatch"
	"github.com/casedesk/case-dispatch/internal/events"
	"github.com/casedesk/case-dispatch/internal/notify"
	"github.com/casedesk/case-dispatch/internal/observability"
	"github.com/casedesk/case-dispatch/internal/persistence"
	"github.com/casedesk/case-dispatch/internal/queue"
	"github.com/casedesk/case-dispatch/internal/repository"
	"github.com/casedesk/case-dispatch/internal/service"
	"github.com/casedesk/case-dispatch/internal/sla"
	"github.com/casedesk/case-dispatch/internal/worker"
)

// Recurring task names.
const (
	TaskSlaSweep        = "sla-sweep"
	TaskRedistribute    = "queue-redistribute"
	TaskIntakeReconcile = "intake-reconcile"
)

// App is the wired dependency graph.
type App struct {
	Config    *config.Config
	Logger    *zap.Logger
	Postgres  *persistence.Postgres
	Redis     *persistence.Redis
	Stores    repository.Stores
	Queue     *queue.WorkQueue
	Cases     *service.CaseService
	Sink      notify.Sink
	Notifier  *worker.NotificationWorker
	Scheduler *worker.Scheduler
	Tokens    *auth.TokenManager
	Metrics   *observability.Metrics
}

// Build connects to the configured stores and wires every component. An empty
// POSTGRES_DSN selects the in-memory stores.
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	a := &App{Config: cfg, Logger: logger, Metrics: observability.NewMetrics()}

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	a.Postgres = pg
	if pool := pg.PoolHandle(); pool != nil {
		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, pool, cfg.Postgres.MigrationsDir, logger); err != nil {
				a.Close()
				return nil, fmt.Errorf("run migrations: %w", err)
			}
		}
		a.Stores = repository.NewPostgresStores(pool)
	} else {
		a.Stores = repository.NewMemory().Stores()
	}

	if cfg.Notification.Backend == "redis" {
		a.Redis = persistence.NewRedis(ctx, cfg.Redis, logger)
	}
	a.Sink, err = notify.New(cfg.Notification, a.Redis.ClientHandle(), logger)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("notification sink: %w", err)
	}
	a.Notifier = worker.NewNotificationWorker(a.Sink, cfg.Notification, logger.Named("notify"))

	bus := events.NewInMemoryDispatcher(logger)
	a.Queue = queue.New(queue.Options{})
	tracker := sla.NewTracker(sla.TrackerDependencies{
		Records:    a.Stores.Sla,
		Dispatcher: bus,
		Logger:     logger.Named("sla"),
		Targets: sla.Targets{
			FirstResponseMinutes: cfg.Dispatch.FirstResponseTargetMinutes,
			ResolutionMinutes:    cfg.Dispatch.ResolutionTargetMinutes,
		},
	})
	dispatcher := dispatch.New(dispatch.Dependencies{
		Queue:      a.Queue,
		Stores:     a.Stores,
		Dispatcher: bus,
		Logger:     logger.Named("dispatch"),
		AgingBoost: cfg.Dispatch.AgingBoost,
	})
	a.Cases = service.NewCaseService(service.CaseDependencies{
		Stores:     a.Stores,
		Queue:      a.Queue,
		Dispatch:   dispatcher,
		Tracker:    tracker,
		Classifier: classify.NewKeywordClassifier(cfg.Dispatch.BillingKeywords),
		Dispatcher: bus,
		Logger:     logger,
		Policy: service.CasePolicy{
			MetricsWindow:      cfg.Dispatch.MetricsWindow(),
			RedistributeMaxAge: time.Duration(cfg.Dispatch.RedistributeMaxAgeMinutes) * time.Minute,
			ReconcileGrace:     cfg.Dispatch.ReconcileGrace(),
		},
	})
	service.NewNotificationService(service.NotificationDependencies{
		Dispatcher: bus,
		Agents:     a.Stores.Agents,
		Queue:      a.Queue,
		Outbox:     a.Notifier,
		Logger:     logger,
	}).RegisterHandlers()

	a.Scheduler, err = worker.NewScheduler(logger.Named("scheduler"), a.tasks()...)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Tokens = auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	return a, nil
}

func (a *App) tasks() []worker.Task {
	d := a.Config.Dispatch
	return []worker.Task{
		{Name: TaskSlaSweep, Interval: d.SweepInterval(), Run: a.counted(TaskSlaSweep, func(ctx context.Context) error {
			_, err := a.Cases.SweepSla(ctx)
			return err
		})},
		{Name: TaskRedistribute, Interval: d.RedistributeInterval(), Run: a.counted(TaskRedistribute, func(ctx context.Context) error {
			a.Cases.Redistribute(ctx)
			return nil
		})},
		{Name: TaskIntakeReconcile, Interval: d.ReconcileInterval(), Run: a.counted(TaskIntakeReconcile, func(ctx context.Context) error {
			_, err := a.Cases.Reconcile(ctx)
			return err
		})},
	}
}

func (a *App) counted(name string, run func(context.Context) error) func(context.Context) error {
	return func(ctx context.Context) error {
		err := run(ctx)
		a.Metrics.RecordTaskRun(name, err)
		return err
	}
}

// HTTPApp builds the fiber application with middleware and routes.
func (a *App) HTTPApp() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               a.Config.App.Name,
		DisableStartupMessage: true,
	})
	httptransport.RegisterMiddlewares(app, a.Logger, a.Metrics, a.Config.App.RequestTimeout())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(a.Config.App.Name, a.Config.App.Version, a.Postgres, a.Redis, a.Metrics),
		Cases:          handlers.NewCasesHandler(a.Cases),
		Agents:         handlers.NewAgentsHandler(a.Cases, a.Metrics),
		Queues:         handlers.NewQueuesHandler(a.Cases),
		Sla:            handlers.NewSlaHandler(a.Cases),
		AuthMiddleware: auth.NewAuthMiddleware(a.Tokens),
	})
	return app
}

// Close releases external connections.
func (a *App) Close() {
	if a.Sink != nil {
		if err := a.Sink.Close(); err != nil {
			a.Logger.Warn("close notification sink", zap.Error(err))
		}
	}
	a.Redis.Close()
	a.Postgres.Close()
}
