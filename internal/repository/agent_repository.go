package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/casedesk/case-dispatch/internal/domain"
)

const agentColumns = `id, name, email, status, skills, max_concurrent_cases, current_case_count,
               last_active_at, created_at, updated_at`

type agentRepository struct {
	pool *pgxpool.Pool
}

// NewAgentRepository instantiates the repository.
func NewAgentRepository(pool *pgxpool.Pool) AgentRepository {
	return &agentRepository{pool: pool}
}

func (r *agentRepository) Create(ctx context.Context, a *domain.Agent) error {
	const query = `
        INSERT INTO agents (id, name, email, status, skills, max_concurrent_cases, current_case_count, last_active_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        RETURNING created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		a.ID,
		a.Name,
		a.Email,
		a.Status,
		skillsToText(a.Skills),
		a.MaxConcurrentCases,
		a.CurrentCaseCount,
		a.LastActiveAt,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
}

// Update writes profile and status fields. The case count is owned by dispatch
// commits and is not written here.
func (r *agentRepository) Update(ctx context.Context, a *domain.Agent) error {
	const query = `
        UPDATE agents SET name=$1, email=$2, status=$3, skills=$4, max_concurrent_cases=$5,
            last_active_at=$6, updated_at=NOW()
        WHERE id=$7`
	cmd, err := r.pool.Exec(ctx, query,
		a.Name,
		a.Email,
		a.Status,
		skillsToText(a.Skills),
		a.MaxConcurrentCases,
		a.LastActiveAt,
		a.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *agentRepository) GetByID(ctx context.Context, id string) (*domain.Agent, error) {
	return scanAgent(r.pool.QueryRow(ctx, `SELECT `+agentColumns+` FROM agents WHERE id=$1`, id))
}

func (r *agentRepository) List(ctx context.Context) ([]domain.Agent, error) {
	return r.list(ctx, `SELECT `+agentColumns+` FROM agents ORDER BY id`)
}

func (r *agentRepository) FindEligible(ctx context.Context, qt domain.QueueType) ([]domain.Agent, error) {
	return r.list(ctx, `SELECT `+agentColumns+` FROM agents
        WHERE status='AVAILABLE' AND current_case_count < max_concurrent_cases AND $1 = ANY(skills)
        ORDER BY current_case_count, last_active_at`, string(qt))
}

func (r *agentRepository) list(ctx context.Context, query string, args ...any) ([]domain.Agent, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var agents []domain.Agent
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, err
		}
		agents = append(agents, *a)
	}
	return agents, rows.Err()
}

func scanAgent(row pgx.Row) (*domain.Agent, error) {
	var (
		a      domain.Agent
		skills []string
	)
	if err := row.Scan(
		&a.ID,
		&a.Name,
		&a.Email,
		&a.Status,
		&skills,
		&a.MaxConcurrentCases,
		&a.CurrentCaseCount,
		&a.LastActiveAt,
		&a.CreatedAt,
		&a.UpdatedAt,
	); err != nil {
		return nil, err
	}
	a.Skills = make([]domain.QueueType, 0, len(skills))
	for _, s := range skills {
		a.Skills = append(a.Skills, domain.QueueType(s))
	}
	return &a, nil
}

func skillsToText(skills []domain.QueueType) []string {
	out := make([]string, 0, len(skills))
	for _, s := range skills {
		out = append(out, string(s))
	}
	return out
}
