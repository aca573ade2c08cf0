package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/casedesk/case-dispatch/internal/domain"
)

const entryColumns = `id, case_id, queue_type, status, base_score, priority_score, sequence,
               enqueued_at, assigned_at, assigned_agent_id, completed_at`

type queueEntryRepository struct {
	pool *pgxpool.Pool
}

// NewQueueEntryRepository instantiates the repository.
func NewQueueEntryRepository(pool *pgxpool.Pool) QueueEntryRepository {
	return &queueEntryRepository{pool: pool}
}

func (r *queueEntryRepository) Create(ctx context.Context, e *domain.QueueEntry) error {
	const query = `
        INSERT INTO queue_entries (id, case_id, queue_type, status, base_score, priority_score, sequence, enqueued_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`
	_, err := r.pool.Exec(ctx, query,
		e.ID,
		e.CaseID,
		e.QueueType,
		e.Status,
		e.BaseScore,
		e.PriorityScore,
		int64(e.Sequence),
		e.EnqueuedAt,
	)
	return err
}

func (r *queueEntryRepository) Update(ctx context.Context, e *domain.QueueEntry) error {
	const query = `
        UPDATE queue_entries SET status=$1, priority_score=$2, assigned_at=$3, assigned_agent_id=$4, completed_at=$5
        WHERE id=$6`
	cmd, err := r.pool.Exec(ctx, query, e.Status, e.PriorityScore, e.AssignedAt, e.AssignedAgentID, e.CompletedAt, e.ID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *queueEntryRepository) UpdateScore(ctx context.Context, id string, score int) error {
	cmd, err := r.pool.Exec(ctx, `UPDATE queue_entries SET priority_score=$1 WHERE id=$2 AND status='PENDING'`, score, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *queueEntryRepository) GetActiveByCase(ctx context.Context, caseID string) (*domain.QueueEntry, error) {
	const query = `SELECT ` + entryColumns + ` FROM queue_entries
        WHERE case_id=$1 AND status <> 'COMPLETED' ORDER BY sequence DESC LIMIT 1`
	return scanEntry(r.pool.QueryRow(ctx, query, caseID))
}

func (r *queueEntryRepository) ListPending(ctx context.Context) ([]domain.QueueEntry, error) {
	return r.list(ctx, `SELECT `+entryColumns+` FROM queue_entries WHERE status='PENDING' ORDER BY sequence`)
}

func (r *queueEntryRepository) ListAssignedSince(ctx context.Context, qt domain.QueueType, since time.Time) ([]domain.QueueEntry, error) {
	return r.list(ctx, `SELECT `+entryColumns+` FROM queue_entries
        WHERE queue_type=$1 AND assigned_at >= $2 ORDER BY sequence`, qt, since)
}

func (r *queueEntryRepository) list(ctx context.Context, query string, args ...any) ([]domain.QueueEntry, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.QueueEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

func scanEntry(row pgx.Row) (*domain.QueueEntry, error) {
	var (
		e   domain.QueueEntry
		seq int64
	)
	if err := row.Scan(
		&e.ID,
		&e.CaseID,
		&e.QueueType,
		&e.Status,
		&e.BaseScore,
		&e.PriorityScore,
		&seq,
		&e.EnqueuedAt,
		&e.AssignedAt,
		&e.AssignedAgentID,
		&e.CompletedAt,
	); err != nil {
		return nil, err
	}
	e.Sequence = uint64(seq)
	return &e, nil
}
