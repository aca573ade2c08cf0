package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/casedesk/case-dispatch/internal/app"
	"github.com/casedesk/case-dispatch/internal/config"
	"github.com/casedesk/case-dispatch/internal/observability"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to build app", zap.Error(err))
	}
	defer a.Close()

	if _, _, err := a.Cases.RebuildQueue(ctx); err != nil {
		logger.Fatal("failed to rebuild work queue", zap.Error(err))
	}

	server := a.HTTPApp()
	group, gctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		return a.Notifier.Run(gctx)
	})
	group.Go(func() error {
		a.Scheduler.Start(gctx)
		<-gctx.Done()
		a.Scheduler.Stop()
		return nil
	})
	group.Go(func() error {
		logger.Info("http listening", zap.String("addr", cfg.App.Addr()))
		return server.Listen(cfg.App.Addr())
	})
	group.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		return server.ShutdownWithTimeout(10 * time.Second)
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("service stopped with error", zap.Error(err))
	}
}
