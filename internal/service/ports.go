package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"dispatch-service/internal/entity"
	"dispatch-service/internal/geo"
)

// Ports implemented by repository/postgresql and repository/memory. Every
// method is scoped to companyID; rows of other companies behave as absent.

type JobRepository interface {
	GetJob(ctx context.Context, companyID, jobID uuid.UUID) (*entity.Job, error)
	// UpdateJob runs mutate against the locked current row and persists the
	// result atomically. An error from mutate aborts without writing.
	UpdateJob(ctx context.Context, companyID, jobID uuid.UUID, mutate func(*entity.Job) error) (*entity.Job, error)
	ListJobsScheduledBetween(ctx context.Context, companyID uuid.UUID, from, to time.Time) ([]entity.Job, error)
}

type TechnicianRepository interface {
	GetTechnician(ctx context.Context, companyID, techID uuid.UUID) (*entity.Technician, error)
	ListTechnicians(ctx context.Context, companyID uuid.UUID) ([]entity.Technician, error)
	SetTechnicianStatus(ctx context.Context, companyID, techID uuid.UUID, st entity.TechnicianStatus) (*entity.Technician, error)
	SetTechnicianLocation(ctx context.Context, companyID, techID uuid.UUID, loc *geo.LatLng, at time.Time) error
}

type AssignmentRepository interface {
	// Assign stores a and applies the PENDING->SCHEDULED side effect in one
	// atomic step. A repeated (job, technician) pair fails with
	// apperr.ErrDuplicateAssignment and stores nothing.
	Assign(ctx context.Context, a entity.Assignment) (entity.AssignOutcome, error)
	ListForTechnician(ctx context.Context, companyID, techID uuid.UUID, from, to time.Time) ([]entity.Assignment, error)
	ListActiveForJobs(ctx context.Context, companyID uuid.UUID, jobIDs []uuid.UUID) ([]entity.Assignment, error)
}
