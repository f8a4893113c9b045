package postgresql

import (
	"context"
	"database/sql"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"dispatch-service/internal/apperr"
	"dispatch-service/internal/entity"
)

type JobRepository struct {
	db *sql.DB
}

func NewJobRepository(db *sql.DB) *JobRepository {
	return &JobRepository{db: db}
}

func (r *JobRepository) GetJob(ctx context.Context, companyID, jobID uuid.UUID) (*entity.Job, error) {
	q := `SELECT ` + jobColumns + `
FROM jobs j
WHERE j.id = $1 AND j.company_id = $2;`

	job, err := scanJob(r.db.QueryRowContext(ctx, q, jobID, companyID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.ErrJobNotFound
		}
		return nil, errors.Wrap(err, "get job")
	}
	return job, nil
}

// UpdateJob locks the job row, hands a copy to mutate and writes every
// mutable column back in the same transaction. An error from mutate aborts
// the update and is returned unchanged.
func (r *JobRepository) UpdateJob(ctx context.Context, companyID, jobID uuid.UUID, mutate func(*entity.Job) error) (*entity.Job, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "begin update job")
	}
	defer func() { _ = tx.Rollback() }()

	job, err := lockJob(ctx, tx, companyID, jobID)
	if err != nil {
		return nil, err
	}
	if err := mutate(job); err != nil {
		return nil, err
	}
	job.ID, job.CompanyID = jobID, companyID

	const q = `
UPDATE jobs SET
	trade_type = $3, priority = $4, status = $5,
	scheduled_start = $6, scheduled_end = $7,
	actual_start = $8, actual_end = $9, completed_at = $10,
	time_window_start = $11, time_window_end = $12,
	actual_duration = $13, updated_at = $14
WHERE id = $1 AND company_id = $2;`

	if _, err := tx.ExecContext(ctx, q,
		jobID, companyID, job.TradeType, string(job.Priority), string(job.Status),
		job.ScheduledStart, job.ScheduledEnd,
		job.ActualStart, job.ActualEnd, job.CompletedAt,
		job.TimeWindowStart, job.TimeWindowEnd,
		job.ActualDuration, job.UpdatedAt,
	); err != nil {
		return nil, errors.Wrap(err, "update job")
	}

	if err := tx.Commit(); err != nil {
		return nil, errors.Wrap(err, "commit update job")
	}
	return job, nil
}

// ListJobsScheduledBetween returns jobs whose scheduled start lies in [from, to).
func (r *JobRepository) ListJobsScheduledBetween(ctx context.Context, companyID uuid.UUID, from, to time.Time) ([]entity.Job, error) {
	q := `SELECT ` + jobColumns + `
FROM jobs j
WHERE j.company_id = $1 AND j.scheduled_start >= $2 AND j.scheduled_start < $3
ORDER BY j.scheduled_start, j.id;`

	rows, err := r.db.QueryContext(ctx, q, companyID, from, to)
	if err != nil {
		return nil, errors.Wrap(err, "list jobs")
	}
	defer rows.Close()

	out := []entity.Job{}
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan job")
		}
		out = append(out, *job)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "list jobs")
	}
	return out, nil
}

func lockJob(ctx context.Context, tx *sql.Tx, companyID, jobID uuid.UUID) (*entity.Job, error) {
	q := `SELECT ` + jobColumns + `
FROM jobs j
WHERE j.id = $1 AND j.company_id = $2
FOR UPDATE OF j;`

	job, err := scanJob(tx.QueryRowContext(ctx, q, jobID, companyID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.ErrJobNotFound
		}
		return nil, errors.Wrap(err, "lock job")
	}
	return job, nil
}
