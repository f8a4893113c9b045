// Package status holds the job state machine and the technician status label
// rules.
//
//	PENDING -> SCHEDULED -> DISPATCHED -> EN_ROUTE -> IN_PROGRESS -> COMPLETED
//	IN_PROGRESS <-> ON_HOLD
//	any non-terminal -> CANCELLED
//
// Technician status has no graph: any valid value may replace any other.
package status

import (
	"math"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"dispatch-service/internal/apperr"
	"dispatch-service/internal/entity"
)

var transitions = map[entity.JobStatus][]entity.JobStatus{
	entity.StatusPending:    {entity.StatusScheduled},
	entity.StatusScheduled:  {entity.StatusDispatched},
	entity.StatusDispatched: {entity.StatusEnRoute},
	entity.StatusEnRoute:    {entity.StatusInProgress},
	entity.StatusInProgress: {entity.StatusCompleted, entity.StatusOnHold},
	entity.StatusOnHold:     {entity.StatusInProgress},
}

// ParseJobStatus accepts any letter case.
func ParseJobStatus(s string) (entity.JobStatus, error) {
	st := entity.JobStatus(strings.ToUpper(strings.TrimSpace(s)))
	if !st.Valid() {
		return "", errors.Wrapf(apperr.ErrInvalidStatus, "job status %q", s)
	}
	return st, nil
}

// ParseTechnicianStatus validates only the enumeration.
func ParseTechnicianStatus(s string) (entity.TechnicianStatus, error) {
	st, ok := entity.ParseTechnicianStatus(s)
	if !ok {
		return "", errors.Wrapf(apperr.ErrInvalidStatus, "technician status %q", s)
	}
	return st, nil
}

// CanTransition reports whether a job may move from one status to another.
// Staying in the same status is not a transition.
func CanTransition(from, to entity.JobStatus) bool {
	if from.Terminal() || !from.Valid() || !to.Valid() {
		return false
	}
	if to == entity.StatusCancelled {
		return true
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Apply moves job to status to at time now and stamps the timestamps the
// target state requires. Asking for the current status is a no-op and
// reports changed=false.
func Apply(job *entity.Job, to entity.JobStatus, now time.Time) (changed bool, err error) {
	if !to.Valid() {
		return false, errors.Wrapf(apperr.ErrInvalidStatus, "job status %q", to)
	}
	if job.Status == to {
		return false, nil
	}
	if !CanTransition(job.Status, to) {
		return false, errors.Wrapf(apperr.ErrIllegalTransition, "%s -> %s", job.Status, to)
	}
	if to == entity.StatusScheduled && job.ActiveAssignments == 0 {
		return false, errors.Wrapf(apperr.ErrIllegalTransition, "%s -> %s without an assignment", job.Status, to)
	}

	switch to {
	case entity.StatusInProgress:
		if job.ActualStart == nil {
			job.ActualStart = timePtr(now)
		}
	case entity.StatusCompleted:
		job.ActualEnd = timePtr(now)
		job.CompletedAt = timePtr(now)
		if job.ActualStart != nil {
			minutes := int(math.Round(now.Sub(*job.ActualStart).Minutes()))
			job.ActualDuration = &minutes
		}
	}

	job.Status = to
	job.UpdatedAt = now
	return true, nil
}

// OnAssign is the side effect of a new assignment: a PENDING job becomes
// SCHEDULED, any later status is left alone.
func OnAssign(job *entity.Job, now time.Time) (changed bool) {
	if job.Status != entity.StatusPending {
		return false
	}
	job.Status = entity.StatusScheduled
	job.UpdatedAt = now
	return true
}

func timePtr(t time.Time) *time.Time {
	return &t
}
