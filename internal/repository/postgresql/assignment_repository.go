package postgresql

import (
	"context"
	"database/sql"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"dispatch-service/internal/apperr"
	"dispatch-service/internal/entity"
	"dispatch-service/internal/status"
)

type AssignmentRepository struct {
	db *sql.DB
}

func NewAssignmentRepository(db *sql.DB) *AssignmentRepository {
	return &AssignmentRepository{db: db}
}

// Assign records the assignment in one transaction with its side effects: older
// active assignments of the job are superseded and a PENDING job becomes
// SCHEDULED. COMPLETED and CANCELLED jobs are refused. The job row lock serialises concurrent assigns of one job; the
// (job_id, technician_id) unique key rejects a repeated pair even without it.
func (r *AssignmentRepository) Assign(ctx context.Context, a entity.Assignment) (entity.AssignOutcome, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return entity.AssignOutcome{}, errors.Wrap(err, "begin assign")
	}
	defer func() { _ = tx.Rollback() }()

	job, err := lockJob(ctx, tx, a.CompanyID, a.JobID)
	if err != nil {
		return entity.AssignOutcome{}, err
	}
	if job.Status.Terminal() {
		return entity.AssignOutcome{}, errors.Wrapf(apperr.ErrIllegalTransition, "assign %s job %s", job.Status, job.ID)
	}

	const qTech = `SELECT 1 FROM technicians WHERE id = $1 AND company_id = $2;`
	var one int
	if err := tx.QueryRowContext(ctx, qTech, a.TechnicianID, a.CompanyID).Scan(&one); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return entity.AssignOutcome{}, apperr.ErrTechnicianNotFound
		}
		return entity.AssignOutcome{}, errors.Wrap(err, "check technician")
	}

	const qInsert = `
INSERT INTO assignments (id, company_id, job_id, technician_id, is_primary, active, assigned_by, assigned_at)
VALUES ($1, $2, $3, $4, $5, TRUE, $6, $7)
ON CONFLICT (job_id, technician_id) DO NOTHING
RETURNING id;`

	var inserted uuid.UUID
	err = tx.QueryRowContext(ctx, qInsert,
		a.ID, a.CompanyID, a.JobID, a.TechnicianID, a.IsPrimary, a.AssignedBy, a.AssignedAt,
	).Scan(&inserted)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || isUniqueViolation(err) {
			return entity.AssignOutcome{}, errors.Wrapf(apperr.ErrDuplicateAssignment, "job %s technician %s", a.JobID, a.TechnicianID)
		}
		return entity.AssignOutcome{}, errors.Wrap(err, "insert assignment")
	}

	superseded, err := supersede(ctx, tx, a.JobID, inserted, a.AssignedAt)
	if err != nil {
		return entity.AssignOutcome{}, err
	}

	previous := job.Status
	if status.OnAssign(job, a.AssignedAt) {
		const qStatus = `UPDATE jobs SET status = $2, updated_at = $3 WHERE id = $1;`
		if _, err := tx.ExecContext(ctx, qStatus, job.ID, string(job.Status), job.UpdatedAt); err != nil {
			return entity.AssignOutcome{}, errors.Wrap(err, "advance job status")
		}
	}

	if err := tx.Commit(); err != nil {
		return entity.AssignOutcome{}, errors.Wrap(err, "commit assign")
	}

	job.ActiveAssignments = job.ActiveAssignments - len(superseded) + 1
	a.ID = inserted
	a.Active = true
	a.SupersededAt = nil
	a.Job = nil

	return entity.AssignOutcome{
		Assignment:     a,
		Job:            *job,
		PreviousStatus: previous,
		Superseded:     superseded,
	}, nil
}

func supersede(ctx context.Context, tx *sql.Tx, jobID, keep uuid.UUID, at time.Time) ([]uuid.UUID, error) {
	const q = `
UPDATE assignments SET active = FALSE, superseded_at = $3
WHERE job_id = $1 AND id <> $2 AND active
RETURNING id;`

	rows, err := tx.QueryContext(ctx, q, jobID, keep, at)
	if err != nil {
		return nil, errors.Wrap(err, "supersede assignments")
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, errors.Wrap(err, "scan superseded id")
		}
		ids = append(ids, id)
	}
	return ids, errors.Wrap(rows.Err(), "supersede assignments")
}

// ListForTechnician returns the technician's active assignments whose job is
// still open and whose scheduled window meets [from, to).
func (r *AssignmentRepository) ListForTechnician(ctx context.Context, companyID, techID uuid.UUID, from, to time.Time) ([]entity.Assignment, error) {
	q := `SELECT ` + assignmentColumns + `, ` + jobColumns + `
FROM assignments a
JOIN jobs j ON j.id = a.job_id
WHERE a.company_id = $1
  AND a.technician_id = $2
  AND a.active
  AND j.status NOT IN ('COMPLETED', 'CANCELLED')
  AND j.scheduled_start < $4
  AND COALESCE(j.scheduled_end, j.scheduled_start) >= $3
ORDER BY j.scheduled_start, a.assigned_at;`

	rows, err := r.db.QueryContext(ctx, q, companyID, techID, from, to)
	if err != nil {
		return nil, errors.Wrap(err, "list technician assignments")
	}
	defer rows.Close()

	out := []entity.Assignment{}
	for rows.Next() {
		var (
			a          entity.Assignment
			superseded sql.NullTime
			job        entity.Job
			n          jobNulls
		)
		targets := append(assignmentScanTargets(&a, &superseded), jobScanTargets(&job, &n)...)
		if err := rows.Scan(targets...); err != nil {
			return nil, errors.Wrap(err, "scan assignment")
		}
		n.apply(&job)
		a.SupersededAt = timeOrNil(superseded)
		a.Job = &job
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "list technician assignments")
	}
	return out, nil
}

func (r *AssignmentRepository) ListActiveForJobs(ctx context.Context, companyID uuid.UUID, jobIDs []uuid.UUID) ([]entity.Assignment, error) {
	out := []entity.Assignment{}
	if len(jobIDs) == 0 {
		return out, nil
	}

	q := `SELECT ` + assignmentColumns + `
FROM assignments a
WHERE a.company_id = $1 AND a.active AND a.job_id = ANY($2::uuid[])
ORDER BY a.job_id, a.assigned_at;`

	rows, err := r.db.QueryContext(ctx, q, companyID, pgtype.FlatArray[uuid.UUID](jobIDs))
	if err != nil {
		return nil, errors.Wrap(err, "list job assignments")
	}
	defer rows.Close()

	for rows.Next() {
		var (
			a          entity.Assignment
			superseded sql.NullTime
		)
		if err := rows.Scan(assignmentScanTargets(&a, &superseded)...); err != nil {
			return nil, errors.Wrap(err, "scan assignment")
		}
		a.SupersededAt = timeOrNil(superseded)
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "list job assignments")
	}
	return out, nil
}
