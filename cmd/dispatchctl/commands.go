package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/casedesk/case-dispatch/internal/app"
	"github.com/casedesk/case-dispatch/internal/auth"
	"github.com/casedesk/case-dispatch/internal/config"
	"github.com/casedesk/case-dispatch/internal/domain"
)

func newTokenCmd() *cobra.Command {
	var (
		subject string
		role    string
		ttl     int
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for an agent, supervisor or system caller",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if ttl <= 0 {
				ttl = cfg.Auth.AccessTokenTTLMinutes
			}
			tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, ttl)
			tok, expiresAt, err := tokens.GenerateToken(subject, domain.Role(role))
			if err != nil {
				return err
			}
			return printJSON(cmd, map[string]any{
				"token":      tok,
				"subject":    subject,
				"role":       role,
				"expires_at": expiresAt.Format(time.RFC3339),
			})
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "", "agent id or service name")
	cmd.Flags().StringVar(&role, "role", string(domain.RoleAgent), "AGENT, SUPERVISOR or SYSTEM")
	cmd.Flags().IntVar(&ttl, "ttl-minutes", 0, "token lifetime; defaults to AUTH_ACCESS_TOKEN_TTL_MINUTES")
	_ = cmd.MarkFlagRequired("subject")
	return cmd
}

func newSweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Recompute SLA status for every active case",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				res, err := a.Cases.SweepSla(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd, res)
			})
		},
	}
}

func newRedistributeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "redistribute",
		Short: "Apply the aging boost to long-waiting queue entries",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				if _, _, err := a.Cases.RebuildQueue(ctx); err != nil {
					return err
				}
				return printJSON(cmd, a.Cases.Redistribute(ctx))
			})
		},
	}
}

func newReconcileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Enqueue cases whose intake did not finish",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				if _, _, err := a.Cases.RebuildQueue(ctx); err != nil {
					return err
				}
				res, err := a.Cases.Reconcile(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd, res)
			})
		},
	}
}

func newDepthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "depth [queue-type...]",
		Short: "Print pending entry counts per queue type",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				if _, _, err := a.Cases.RebuildQueue(ctx); err != nil {
					return err
				}
				types := domain.QueueTypes()
				if len(args) > 0 {
					types = types[:0]
					for _, arg := range args {
						types = append(types, domain.QueueType(arg))
					}
				}
				out := make(map[domain.QueueType]int, len(types))
				for _, qt := range types {
					depth, err := a.Cases.QueueDepth(qt)
					if err != nil {
						return err
					}
					out[qt] = depth
				}
				return printJSON(cmd, out)
			})
		},
	}
}

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "run <task>",
		Short:     "Run one recurring task once",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{app.TaskSlaSweep, app.TaskRedistribute, app.TaskIntakeReconcile},
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				if _, _, err := a.Cases.RebuildQueue(ctx); err != nil {
					return err
				}
				if err := a.Scheduler.RunOnce(ctx, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s finished\n", args[0])
				return nil
			})
		},
	}
}
