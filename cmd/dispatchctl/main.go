// Command dispatchctl runs one-off operator tasks against the dispatch store.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/casedesk/case-dispatch/internal/app"
	"github.com/casedesk/case-dispatch/internal/config"
	"github.com/casedesk/case-dispatch/internal/observability"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "dispatchctl",
		Short:         "Operator tool for the case dispatch service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newTokenCmd(),
		newSweepCmd(),
		newRedistributeCmd(),
		newReconcileCmd(),
		newDepthCmd(),
		newRunCmd(),
	)
	return root
}

// withApp loads configuration, builds the graph and hands it to fn.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx := cmd.Context()
	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()
	if a.Postgres.PoolHandle() == nil {
		logger.Warn("POSTGRES_DSN not set; operating on an empty in-memory store")
	}
	if err := fn(ctx, a); err != nil {
		logger.Error("command failed", zap.String("command", cmd.Name()), zap.Error(err))
		return err
	}
	return nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
