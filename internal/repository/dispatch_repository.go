package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type dispatchRepository struct {
	pool *pgxpool.Pool
}

// NewDispatchRepository instantiates the transactional dispatch store.
func NewDispatchRepository(pool *pgxpool.Pool) DispatchRepository {
	return &dispatchRepository{pool: pool}
}

// NewPostgresStores wires every repository to the pool.
func NewPostgresStores(pool *pgxpool.Pool) Stores {
	return Stores{
		Cases:    NewCaseRepository(pool),
		Agents:   NewAgentRepository(pool),
		Entries:  NewQueueEntryRepository(pool),
		Sla:      NewSlaRepository(pool),
		Dispatch: NewDispatchRepository(pool),
	}
}

func (r *dispatchRepository) CommitAssignment(ctx context.Context, commit AssignmentCommit) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		const agentQuery = `
            UPDATE agents SET current_case_count=$1, last_active_at=$2, updated_at=NOW()
            WHERE id=$3 AND current_case_count=$1-1 AND $1 <= max_concurrent_cases`
		if err := guarded(tx.Exec(ctx, agentQuery,
			commit.Agent.CurrentCaseCount,
			commit.Agent.LastActiveAt,
			commit.Agent.ID,
		)); err != nil {
			return err
		}

		const caseQuery = `
            UPDATE cases SET status=$1, assigned_agent_id=$2, updated_at=$3
            WHERE id=$4 AND assigned_agent_id IS NULL AND status NOT IN ('RESOLVED','CLOSED')`
		if err := guarded(tx.Exec(ctx, caseQuery,
			commit.Case.Status,
			commit.Case.AssignedAgentID,
			commit.Case.UpdatedAt,
			commit.Case.ID,
		)); err != nil {
			return err
		}

		const entryQuery = `
            UPDATE queue_entries SET status=$1, assigned_at=$2, assigned_agent_id=$3, priority_score=$4
            WHERE id=$5 AND status='PENDING'`
		return guarded(tx.Exec(ctx, entryQuery,
			commit.Entry.Status,
			commit.Entry.AssignedAt,
			commit.Entry.AssignedAgentID,
			commit.Entry.PriorityScore,
			commit.Entry.ID,
		))
	})
}

func (r *dispatchRepository) CommitRelease(ctx context.Context, commit ReleaseCommit) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if commit.Agent != nil {
			const agentQuery = `
                UPDATE agents SET current_case_count=$1, last_active_at=$2, updated_at=NOW()
                WHERE id=$3 AND current_case_count=$1+1`
			if err := guarded(tx.Exec(ctx, agentQuery,
				commit.Agent.CurrentCaseCount,
				commit.Agent.LastActiveAt,
				commit.Agent.ID,
			)); err != nil {
				return err
			}
		}

		const caseQuery = `
            UPDATE cases SET status=$1, updated_at=$2, resolved_at=$3
            WHERE id=$4 AND status NOT IN ('RESOLVED','CLOSED') AND assigned_agent_id IS NOT DISTINCT FROM $5`
		if err := guarded(tx.Exec(ctx, caseQuery,
			commit.Case.Status,
			commit.Case.UpdatedAt,
			commit.Case.ResolvedAt,
			commit.Case.ID,
			commit.Case.AssignedAgentID,
		)); err != nil {
			return err
		}

		if commit.Entry == nil {
			return nil
		}
		const entryQuery = `
            UPDATE queue_entries SET status=$1, completed_at=$2
            WHERE id=$3 AND status <> 'COMPLETED'`
		return guarded(tx.Exec(ctx, entryQuery, commit.Entry.Status, commit.Entry.CompletedAt, commit.Entry.ID))
	})
}

// guarded turns a zero-row update into ErrConflict so the transaction rolls back.
func guarded(cmd pgconn.CommandTag, err error) error {
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrConflict
	}
	return nil
}
