package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/casedesk/case-dispatch/internal/domain"
)

const caseColumns = `id, case_number, customer_email, customer_name, subject, description,
               priority, queue_type, status, assigned_agent_id, created_at, updated_at, resolved_at`

type caseRepository struct {
	pool *pgxpool.Pool
}

// NewCaseRepository instantiates the repository.
func NewCaseRepository(pool *pgxpool.Pool) CaseRepository {
	return &caseRepository{pool: pool}
}

func (r *caseRepository) Create(ctx context.Context, c *domain.Case) error {
	const query = `
        INSERT INTO cases (id, case_number, customer_email, customer_name, subject, description,
                           priority, queue_type, status, assigned_agent_id, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`
	_, err := r.pool.Exec(ctx, query,
		c.ID,
		c.CaseNumber,
		c.CustomerEmail,
		c.CustomerName,
		c.Subject,
		c.Description,
		c.Priority,
		c.QueueType,
		c.Status,
		c.AssignedAgentID,
		c.CreatedAt,
		c.UpdatedAt,
	)
	return err
}

func (r *caseRepository) Update(ctx context.Context, c *domain.Case) error {
	const query = `
        UPDATE cases SET customer_email=$1, customer_name=$2, subject=$3, description=$4,
            priority=$5, queue_type=$6, status=$7, assigned_agent_id=$8, updated_at=$9, resolved_at=$10
        WHERE id=$11`
	cmd, err := r.pool.Exec(ctx, query,
		c.CustomerEmail,
		c.CustomerName,
		c.Subject,
		c.Description,
		c.Priority,
		c.QueueType,
		c.Status,
		c.AssignedAgentID,
		c.UpdatedAt,
		c.ResolvedAt,
		c.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *caseRepository) UpdateStatus(ctx context.Context, id string, from, to domain.CaseStatus) error {
	cmd, err := r.pool.Exec(ctx, `UPDATE cases SET status=$1, updated_at=NOW() WHERE id=$2 AND status=$3`, to, id, from)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() > 0 {
		return nil
	}
	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM cases WHERE id=$1)`, id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return pgx.ErrNoRows
	}
	return ErrConflict
}

func (r *caseRepository) GetByID(ctx context.Context, id string) (*domain.Case, error) {
	return r.fetchSingle(ctx, `SELECT `+caseColumns+` FROM cases WHERE id=$1`, id)
}

func (r *caseRepository) GetByCaseNumber(ctx context.Context, number string) (*domain.Case, error) {
	return r.fetchSingle(ctx, `SELECT `+caseColumns+` FROM cases WHERE case_number=$1`, number)
}

func (r *caseRepository) ListActive(ctx context.Context) ([]domain.Case, error) {
	return r.list(ctx, `SELECT `+caseColumns+` FROM cases
        WHERE status NOT IN ('RESOLVED','CLOSED') ORDER BY created_at`)
}

func (r *caseRepository) ListByAgent(ctx context.Context, agentID string, activeOnly bool) ([]domain.Case, error) {
	query := `SELECT ` + caseColumns + ` FROM cases WHERE assigned_agent_id=$1`
	if activeOnly {
		query += ` AND status NOT IN ('RESOLVED','CLOSED')`
	}
	return r.list(ctx, query+` ORDER BY created_at`, agentID)
}

func (r *caseRepository) ListByStatusCreatedBefore(ctx context.Context, status domain.CaseStatus, before time.Time) ([]domain.Case, error) {
	return r.list(ctx, `SELECT `+caseColumns+` FROM cases
        WHERE status=$1 AND created_at < $2 ORDER BY created_at`, status, before)
}

func (r *caseRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.Case, error) {
	c, err := scanCase(r.pool.QueryRow(ctx, query, arg))
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (r *caseRepository) list(ctx context.Context, query string, args ...any) ([]domain.Case, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cases []domain.Case
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			return nil, err
		}
		cases = append(cases, *c)
	}
	return cases, rows.Err()
}

func scanCase(row pgx.Row) (*domain.Case, error) {
	var c domain.Case
	if err := row.Scan(
		&c.ID,
		&c.CaseNumber,
		&c.CustomerEmail,
		&c.CustomerName,
		&c.Subject,
		&c.Description,
		&c.Priority,
		&c.QueueType,
		&c.Status,
		&c.AssignedAgentID,
		&c.CreatedAt,
		&c.UpdatedAt,
		&c.ResolvedAt,
	); err != nil {
		return nil, err
	}
	return &c, nil
}
