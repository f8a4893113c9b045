package entity

import (
	"time"

	"github.com/google/uuid"
)

// Assignment links one job to one technician. Rows are never deleted; a later
// assignment of the same job supersedes earlier ones.
type Assignment struct {
	ID           uuid.UUID  `json:"id"`
	CompanyID    uuid.UUID  `json:"company_id"`
	JobID        uuid.UUID  `json:"job_id"`
	TechnicianID uuid.UUID  `json:"technician_id"`
	IsPrimary    bool       `json:"is_primary"`
	Active       bool       `json:"active"`
	AssignedBy   uuid.UUID  `json:"assigned_by"`
	AssignedAt   time.Time  `json:"assigned_at"`
	SupersededAt *time.Time `json:"superseded_at,omitempty"`

	// Job is filled by listing reads.
	Job *Job `json:"job,omitempty"`
}

// PrimaryAssignment picks the canonical assignment out of one job's set: the
// first active primary one, else the first active one. Secondary assignments
// stay in the set but single-technician views only surface this one.
func PrimaryAssignment(set []Assignment) (Assignment, bool) {
	var fallback *Assignment
	for i := range set {
		if !set[i].Active {
			continue
		}
		if set[i].IsPrimary {
			return set[i], true
		}
		if fallback == nil {
			fallback = &set[i]
		}
	}
	if fallback != nil {
		return *fallback, true
	}
	return Assignment{}, false
}

// AssignOutcome is the result of recording an assignment together with its
// job side effect.
type AssignOutcome struct {
	Assignment     Assignment  `json:"assignment"`
	Job            Job         `json:"job"`
	PreviousStatus JobStatus   `json:"previous_status"`
	Superseded     []uuid.UUID `json:"superseded,omitempty"`
}

// StatusChanged reports whether the assignment advanced the job.
func (o AssignOutcome) StatusChanged() bool {
	return o.PreviousStatus != o.Job.Status
}
