package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/casedesk/case-dispatch/internal/domain"
)

const slaColumns = `id, case_id, opened_at, first_response_at, resolution_at, first_response_minutes,
               resolution_minutes, first_response_target_minutes, resolution_target_minutes,
               first_response_met, resolution_met, status, created_at, updated_at`

type slaRepository struct {
	pool *pgxpool.Pool
}

// NewSlaRepository instantiates the repository.
func NewSlaRepository(pool *pgxpool.Pool) SlaRepository {
	return &slaRepository{pool: pool}
}

func (r *slaRepository) Create(ctx context.Context, rec *domain.SlaRecord) error {
	const query = `
        INSERT INTO sla_records (id, case_id, opened_at, first_response_target_minutes, resolution_target_minutes,
                                 status, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`
	_, err := r.pool.Exec(ctx, query,
		rec.ID,
		rec.CaseID,
		rec.OpenedAt,
		rec.FirstResponseTargetMinutes,
		rec.ResolutionTargetMinutes,
		rec.Status,
		rec.CreatedAt,
		rec.UpdatedAt,
	)
	return err
}

func (r *slaRepository) Update(ctx context.Context, rec *domain.SlaRecord) error {
	const query = `
        UPDATE sla_records SET first_response_at=$1, resolution_at=$2, first_response_minutes=$3,
            resolution_minutes=$4, first_response_met=$5, resolution_met=$6, status=$7, updated_at=$8
        WHERE case_id=$9`
	cmd, err := r.pool.Exec(ctx, query,
		rec.FirstResponseAt,
		rec.ResolutionAt,
		rec.FirstResponseMinutes,
		rec.ResolutionMinutes,
		rec.FirstResponseMet,
		rec.ResolutionMet,
		rec.Status,
		rec.UpdatedAt,
		rec.CaseID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// UpdateStatus writes only the derived status column.
func (r *slaRepository) UpdateStatus(ctx context.Context, caseID string, status domain.SlaStatus) error {
	cmd, err := r.pool.Exec(ctx, `UPDATE sla_records SET status=$1, updated_at=NOW() WHERE case_id=$2`, status, caseID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *slaRepository) GetByCaseID(ctx context.Context, caseID string) (*domain.SlaRecord, error) {
	return scanSla(r.pool.QueryRow(ctx, `SELECT `+slaColumns+` FROM sla_records WHERE case_id=$1`, caseID))
}

func (r *slaRepository) ListOpenedBetween(ctx context.Context, from, to time.Time) ([]domain.SlaRecord, error) {
	return r.list(ctx, `SELECT `+slaColumns+` FROM sla_records
        WHERE opened_at BETWEEN $1 AND $2 ORDER BY opened_at`, from, to)
}

func (r *slaRepository) ListByStatus(ctx context.Context, status domain.SlaStatus) ([]domain.SlaRecord, error) {
	return r.list(ctx, `SELECT `+slaColumns+` FROM sla_records WHERE status=$1 ORDER BY opened_at`, status)
}

func (r *slaRepository) list(ctx context.Context, query string, args ...any) ([]domain.SlaRecord, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []domain.SlaRecord
	for rows.Next() {
		rec, err := scanSla(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

func scanSla(row pgx.Row) (*domain.SlaRecord, error) {
	var rec domain.SlaRecord
	if err := row.Scan(
		&rec.ID,
		&rec.CaseID,
		&rec.OpenedAt,
		&rec.FirstResponseAt,
		&rec.ResolutionAt,
		&rec.FirstResponseMinutes,
		&rec.ResolutionMinutes,
		&rec.FirstResponseTargetMinutes,
		&rec.ResolutionTargetMinutes,
		&rec.FirstResponseMet,
		&rec.ResolutionMet,
		&rec.Status,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &rec, nil
}
