// Package service holds the dispatch core: assignment, job status updates,
// technician status and location, route plans and the dispatch board.
package service

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"dispatch-service/internal/apperr"
	"dispatch-service/internal/entity"
	"dispatch-service/internal/geo"
	"dispatch-service/internal/location"
	"dispatch-service/internal/metrics"
	"dispatch-service/internal/notify"
	"dispatch-service/internal/route"
	"dispatch-service/internal/status"
)

type Options struct {
	// Depot is the route start when a technician has no fresh position.
	Depot geo.LatLng
	// StaleAfter is how old a position may be and still count as live.
	StaleAfter time.Duration
	// Location defines calendar days for the board and route plans.
	Location *time.Location
	// LargeRouteWarn is the stop count above which sequencing is logged.
	LargeRouteWarn int
	// NotifyTimeout bounds a single notifier call.
	NotifyTimeout time.Duration
}

type Deps struct {
	Jobs        JobRepository
	Technicians TechnicianRepository
	Assignments AssignmentRepository
	Notifier    notify.Notifier
	Tracker     location.Tracker
	Metrics     metrics.Sink
	Log         *zap.Logger
	// Now defaults to time.Now.
	Now func() time.Time
}

type DispatchService struct {
	jobs        JobRepository
	techs       TechnicianRepository
	assignments AssignmentRepository
	notifier    notify.Notifier
	tracker     location.Tracker
	metrics     metrics.Sink
	log         *zap.Logger
	now         func() time.Time
	opts        Options
}

func NewDispatchService(deps Deps, opts Options) *DispatchService {
	s := &DispatchService{
		jobs:        deps.Jobs,
		techs:       deps.Technicians,
		assignments: deps.Assignments,
		notifier:    deps.Notifier,
		tracker:     deps.Tracker,
		metrics:     deps.Metrics,
		log:         deps.Log,
		now:         deps.Now,
		opts:        opts,
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	if s.metrics == nil {
		s.metrics = metrics.NewNoopSink()
	}
	if s.tracker == nil {
		s.tracker = location.Nop{}
	}
	if s.notifier == nil {
		s.notifier = notify.NewLogNotifier(s.log)
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.opts.Location == nil {
		s.opts.Location = time.UTC
	}
	if s.opts.StaleAfter <= 0 {
		s.opts.StaleAfter = 30 * time.Minute
	}
	if s.opts.LargeRouteWarn <= 0 {
		s.opts.LargeRouteWarn = route.LargeRouteThreshold
	}
	if s.opts.NotifyTimeout <= 0 {
		s.opts.NotifyTimeout = 2 * time.Second
	}
	s.log = s.log.With(zap.String("component", "dispatch"))
	return s
}

// Assign records a primary assignment of jobID to techID for the caller's
// company. A PENDING job becomes SCHEDULED; later statuses are untouched.
func (s *DispatchService) Assign(ctx context.Context, p entity.Principal, jobID, techID uuid.UUID) (entity.AssignOutcome, error) {
	if jobID == uuid.Nil {
		return entity.AssignOutcome{}, apperr.Validationf("job_id is required")
	}
	if techID == uuid.Nil {
		return entity.AssignOutcome{}, apperr.Validationf("technician_id is required")
	}

	out, err := s.assignments.Assign(ctx, entity.Assignment{
		ID:           uuid.New(),
		CompanyID:    p.CompanyID,
		JobID:        jobID,
		TechnicianID: techID,
		IsPrimary:    true,
		AssignedBy:   p.UserID,
		AssignedAt:   s.now().UTC(),
	})
	if err != nil {
		s.metrics.AssignmentRejected(rejectionReason(err))
		return entity.AssignOutcome{}, err
	}

	s.metrics.AssignmentCreated(out.StatusChanged())
	s.log.Info("job assigned",
		zap.String("company_id", p.CompanyID.String()),
		zap.String("job_id", jobID.String()),
		zap.String("technician_id", techID.String()),
		zap.String("status", string(out.Job.Status)),
		zap.Int("superseded", len(out.Superseded)),
	)

	s.publish(ctx, entity.Event{
		Type:         entity.EventAssignmentCreated,
		CompanyID:    p.CompanyID,
		JobID:        &jobID,
		TechnicianID: &techID,
		Priority:     out.Job.Priority,
		ActorID:      p.UserID,
	})
	if out.StatusChanged() {
		s.metrics.StatusTransition(string(out.PreviousStatus), string(out.Job.Status))
		s.publish(ctx, entity.Event{
			Type:       entity.EventJobStatusChanged,
			CompanyID:  p.CompanyID,
			JobID:      &jobID,
			Priority:   out.Job.Priority,
			FromStatus: string(out.PreviousStatus),
			ToStatus:   string(out.Job.Status),
			ActorID:    p.UserID,
		})
	}
	return out, nil
}

func (s *DispatchService) GetJob(ctx context.Context, p entity.Principal, jobID uuid.UUID) (*entity.Job, error) {
	return s.jobs.GetJob(ctx, p.CompanyID, jobID)
}

// JobUpdate is a partial update; nil fields are left alone.
type JobUpdate struct {
	Status          *string
	Priority        *string
	TradeType       *string
	ScheduledStart  *time.Time
	ScheduledEnd    *time.Time
	TimeWindowStart *time.Time
	TimeWindowEnd   *time.Time
}

func (u JobUpdate) empty() bool {
	return u.Status == nil && u.Priority == nil && u.TradeType == nil &&
		u.ScheduledStart == nil && u.ScheduledEnd == nil &&
		u.TimeWindowStart == nil && u.TimeWindowEnd == nil
}

// UpdateJob applies u to the job. A status change goes through the job
// state machine; repeating the current status is a no-op.
func (s *DispatchService) UpdateJob(ctx context.Context, p entity.Principal, jobID uuid.UUID, u JobUpdate) (*entity.Job, error) {
	var (
		to       entity.JobStatus
		priority entity.Priority
		err      error
	)
	if u.Status != nil {
		if to, err = status.ParseJobStatus(*u.Status); err != nil {
			return nil, err
		}
	}
	if u.Priority != nil {
		var ok bool
		if priority, ok = entity.ParsePriority(*u.Priority); !ok {
			return nil, errors.Wrapf(apperr.ErrInvalidPriority, "priority %q", *u.Priority)
		}
	}
	if u.empty() {
		return s.jobs.GetJob(ctx, p.CompanyID, jobID)
	}

	now := s.now().UTC()
	var (
		from    entity.JobStatus
		changed bool
	)
	job, err := s.jobs.UpdateJob(ctx, p.CompanyID, jobID, func(j *entity.Job) error {
		from = j.Status
		if u.Status != nil {
			var err error
			if changed, err = status.Apply(j, to, now); err != nil {
				return err
			}
		}
		if u.Priority != nil {
			j.Priority = priority
		}
		if u.TradeType != nil {
			j.TradeType = *u.TradeType
		}
		if u.ScheduledStart != nil {
			j.ScheduledStart = utcPtr(*u.ScheduledStart)
		}
		if u.ScheduledEnd != nil {
			j.ScheduledEnd = utcPtr(*u.ScheduledEnd)
		}
		if u.TimeWindowStart != nil {
			j.TimeWindowStart = utcPtr(*u.TimeWindowStart)
		}
		if u.TimeWindowEnd != nil {
			j.TimeWindowEnd = utcPtr(*u.TimeWindowEnd)
		}
		j.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, err
	}

	if changed {
		s.metrics.StatusTransition(string(from), string(job.Status))
		s.log.Info("job status changed",
			zap.String("company_id", p.CompanyID.String()),
			zap.String("job_id", jobID.String()),
			zap.String("from", string(from)),
			zap.String("to", string(job.Status)),
		)
		s.publish(ctx, entity.Event{
			Type:       entity.EventJobStatusChanged,
			CompanyID:  p.CompanyID,
			JobID:      &jobID,
			Priority:   job.Priority,
			FromStatus: string(from),
			ToStatus:   string(job.Status),
			ActorID:    p.UserID,
		})
	}
	return job, nil
}

// ListForTechnician returns the technician's active assignments on open
// jobs whose scheduled window meets [from, to).
func (s *DispatchService) ListForTechnician(ctx context.Context, p entity.Principal, techID uuid.UUID, from, to time.Time) ([]entity.Assignment, error) {
	if !from.Before(to) {
		return nil, apperr.Validationf("from must be before to")
	}
	if _, err := s.techs.GetTechnician(ctx, p.CompanyID, techID); err != nil {
		return nil, err
	}
	return s.assignments.ListForTechnician(ctx, p.CompanyID, techID, from, to)
}

// UpdateTechnicianStatus sets any valid status; technicians move freely
// between them.
func (s *DispatchService) UpdateTechnicianStatus(ctx context.Context, p entity.Principal, techID uuid.UUID, raw string) (*entity.Technician, error) {
	st, err := status.ParseTechnicianStatus(raw)
	if err != nil {
		return nil, err
	}
	before, err := s.techs.GetTechnician(ctx, p.CompanyID, techID)
	if err != nil {
		return nil, err
	}
	t, err := s.techs.SetTechnicianStatus(ctx, p.CompanyID, techID, st)
	if err != nil {
		return nil, err
	}

	if before.Status != t.Status {
		s.publish(ctx, entity.Event{
			Type:         entity.EventTechnicianStatusChanged,
			CompanyID:    p.CompanyID,
			TechnicianID: &techID,
			FromStatus:   string(before.Status),
			ToStatus:     string(t.Status),
			ActorID:      p.UserID,
		})
	}
	return t, nil
}

// RecordLocation stores a position ping on the technician record and in
// the live tracker. A tracker failure is logged only.
func (s *DispatchService) RecordLocation(ctx context.Context, p entity.Principal, techID uuid.UUID, loc geo.LatLng) error {
	if err := loc.Validate(); err != nil {
		return err
	}
	at := s.now().UTC()
	if err := s.techs.SetTechnicianLocation(ctx, p.CompanyID, techID, &loc, at); err != nil {
		return err
	}
	if err := s.tracker.Record(ctx, p.CompanyID, techID, entity.Position{Location: loc, At: at}); err != nil {
		s.log.Warn("location tracker unavailable",
			zap.String("technician_id", techID.String()),
			zap.Error(err),
		)
	}
	return nil
}

// publish hands ev to the notifier without letting its failure, or the
// caller's cancellation, affect the completed operation.
func (s *DispatchService) publish(ctx context.Context, ev entity.Event) {
	ev.ID = uuid.New()
	ev.OccurredAt = s.now().UTC()

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.NotifyTimeout)
	defer cancel()

	if err := s.notifier.Publish(ctx, ev); err != nil {
		s.metrics.EventPublished(metrics.OutcomeFailed)
		s.log.Warn("notification publish failed",
			zap.String("event_id", ev.ID.String()),
			zap.String("type", string(ev.Type)),
			zap.Error(err),
		)
		return
	}
	s.metrics.EventPublished(metrics.OutcomeSuccess)
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, apperr.ErrDuplicateAssignment):
		return metrics.ReasonDuplicate
	case errors.Is(err, apperr.ErrIllegalTransition):
		return metrics.ReasonJobClosed
	case apperr.Is(err, apperr.ErrNotFound):
		return metrics.ReasonNotFound
	case apperr.Is(err, apperr.ErrValidation):
		return metrics.ReasonValidation
	default:
		return metrics.ReasonError
	}
}

func utcPtr(t time.Time) *time.Time {
	v := t.UTC()
	return &v
}
