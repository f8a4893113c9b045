// Package memory is an in-process store with the same semantics as the
// Postgres one. A single mutex makes every read-modify-write atomic, which
// stands in for the row locks and the (job_id, technician_id) unique key.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"dispatch-service/internal/apperr"
	"dispatch-service/internal/entity"
	"dispatch-service/internal/geo"
	"dispatch-service/internal/status"
)

type pairKey struct {
	job  uuid.UUID
	tech uuid.UUID
}

type Store struct {
	mu          sync.RWMutex
	jobs        map[uuid.UUID]entity.Job
	techs       map[uuid.UUID]entity.Technician
	assignments []entity.Assignment
	pairs       map[pairKey]struct{}
}

func New() *Store {
	return &Store{
		jobs:  map[uuid.UUID]entity.Job{},
		techs: map[uuid.UUID]entity.Technician{},
		pairs: map[pairKey]struct{}{},
	}
}

// PutJob inserts or replaces a job. Job creation belongs to another
// workflow; this exists for seeding.
func (s *Store) PutJob(j entity.Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[j.ID] = cloneJob(j)
}

// PutTechnician inserts or replaces a technician.
func (s *Store) PutTechnician(t entity.Technician) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.techs[t.ID] = cloneTechnician(t)
}

func (s *Store) GetJob(ctx context.Context, companyID, jobID uuid.UUID) (*entity.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	j, ok := s.jobs[jobID]
	if !ok || j.CompanyID != companyID {
		return nil, apperr.ErrJobNotFound
	}
	out := s.withCounts(j)
	return &out, nil
}

func (s *Store) UpdateJob(ctx context.Context, companyID, jobID uuid.UUID, mutate func(*entity.Job) error) (*entity.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[jobID]
	if !ok || j.CompanyID != companyID {
		return nil, apperr.ErrJobNotFound
	}

	work := s.withCounts(j)
	if err := mutate(&work); err != nil {
		return nil, err
	}
	// identity and derived fields are not writable
	work.ID, work.CompanyID, work.CreatedAt = j.ID, j.CompanyID, j.CreatedAt
	s.jobs[jobID] = cloneJob(work)

	out := s.withCounts(s.jobs[jobID])
	return &out, nil
}

func (s *Store) ListJobsScheduledBetween(ctx context.Context, companyID uuid.UUID, from, to time.Time) ([]entity.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []entity.Job{}
	for _, j := range s.jobs {
		if j.CompanyID != companyID || j.ScheduledStart == nil {
			continue
		}
		if j.ScheduledStart.Before(from) || !j.ScheduledStart.Before(to) {
			continue
		}
		out = append(out, s.withCounts(j))
	}
	sortJobs(out)
	return out, nil
}

func (s *Store) GetTechnician(ctx context.Context, companyID, techID uuid.UUID) (*entity.Technician, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.techs[techID]
	if !ok || t.CompanyID != companyID {
		return nil, apperr.ErrTechnicianNotFound
	}
	out := cloneTechnician(t)
	return &out, nil
}

func (s *Store) ListTechnicians(ctx context.Context, companyID uuid.UUID) ([]entity.Technician, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []entity.Technician{}
	for _, t := range s.techs {
		if t.CompanyID == companyID && t.Active {
			out = append(out, cloneTechnician(t))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

func (s *Store) SetTechnicianStatus(ctx context.Context, companyID, techID uuid.UUID, st entity.TechnicianStatus) (*entity.Technician, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.techs[techID]
	if !ok || t.CompanyID != companyID {
		return nil, apperr.ErrTechnicianNotFound
	}
	t.Status = st
	s.techs[techID] = t

	out := cloneTechnician(t)
	return &out, nil
}

func (s *Store) SetTechnicianLocation(ctx context.Context, companyID, techID uuid.UUID, loc *geo.LatLng, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.techs[techID]
	if !ok || t.CompanyID != companyID {
		return apperr.ErrTechnicianNotFound
	}
	t.CurrentLocation = nil
	if loc != nil {
		p := *loc
		t.CurrentLocation = &p
	}
	t.LastLocationUpdate = &at
	s.techs[techID] = t
	return nil
}

func (s *Store) Assign(ctx context.Context, a entity.Assignment) (entity.AssignOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[a.JobID]
	if !ok || job.CompanyID != a.CompanyID {
		return entity.AssignOutcome{}, apperr.ErrJobNotFound
	}
	if job.Status.Terminal() {
		return entity.AssignOutcome{}, errors.Wrapf(apperr.ErrIllegalTransition, "assign %s job %s", job.Status, job.ID)
	}
	if t, ok := s.techs[a.TechnicianID]; !ok || t.CompanyID != a.CompanyID {
		return entity.AssignOutcome{}, apperr.ErrTechnicianNotFound
	}
	key := pairKey{job: a.JobID, tech: a.TechnicianID}
	if _, dup := s.pairs[key]; dup {
		return entity.AssignOutcome{}, errors.Wrapf(apperr.ErrDuplicateAssignment, "job %s technician %s", a.JobID, a.TechnicianID)
	}

	var superseded []uuid.UUID
	for i := range s.assignments {
		prev := &s.assignments[i]
		if prev.JobID == a.JobID && prev.Active {
			prev.Active = false
			prev.SupersededAt = timePtr(a.AssignedAt)
			superseded = append(superseded, prev.ID)
		}
	}

	a.Active = true
	a.SupersededAt = nil
	a.Job = nil
	s.assignments = append(s.assignments, a)
	s.pairs[key] = struct{}{}

	previous := job.Status
	status.OnAssign(&job, a.AssignedAt)
	s.jobs[job.ID] = job

	return entity.AssignOutcome{
		Assignment:     a,
		Job:            s.withCounts(job),
		PreviousStatus: previous,
		Superseded:     superseded,
	}, nil
}

func (s *Store) ListForTechnician(ctx context.Context, companyID, techID uuid.UUID, from, to time.Time) ([]entity.Assignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []entity.Assignment{}
	for _, a := range s.assignments {
		if a.CompanyID != companyID || a.TechnicianID != techID || !a.Active {
			continue
		}
		j, ok := s.jobs[a.JobID]
		if !ok || j.Status.Terminal() || !scheduledWithin(j, from, to) {
			continue
		}
		job := s.withCounts(j)
		a.Job = &job
		out = append(out, a)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Job.ScheduledStart.Before(*out[j].Job.ScheduledStart)
	})
	return out, nil
}

func (s *Store) ListActiveForJobs(ctx context.Context, companyID uuid.UUID, jobIDs []uuid.UUID) ([]entity.Assignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	want := make(map[uuid.UUID]struct{}, len(jobIDs))
	for _, id := range jobIDs {
		want[id] = struct{}{}
	}

	out := []entity.Assignment{}
	for _, a := range s.assignments {
		if _, ok := want[a.JobID]; ok && a.Active && a.CompanyID == companyID {
			out = append(out, a)
		}
	}
	return out, nil
}

// AssignmentCount returns how many assignment rows exist for a job, active
// or superseded.
func (s *Store) AssignmentCount(jobID uuid.UUID) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, a := range s.assignments {
		if a.JobID == jobID {
			n++
		}
	}
	return n
}

func (s *Store) withCounts(j entity.Job) entity.Job {
	out := cloneJob(j)
	out.ActiveAssignments = 0
	for _, a := range s.assignments {
		if a.JobID == j.ID && a.Active {
			out.ActiveAssignments++
		}
	}
	return out
}

// scheduledWithin reports whether [start, end] meets [from, to). A job with
// no end is treated as an instant at its start.
func scheduledWithin(j entity.Job, from, to time.Time) bool {
	if j.ScheduledStart == nil {
		return false
	}
	end := *j.ScheduledStart
	if j.ScheduledEnd != nil {
		end = *j.ScheduledEnd
	}
	return j.ScheduledStart.Before(to) && !end.Before(from)
}

func sortJobs(jobs []entity.Job) {
	sort.Slice(jobs, func(a, b int) bool {
		sa, sb := jobs[a].ScheduledStart, jobs[b].ScheduledStart
		if !sa.Equal(*sb) {
			return sa.Before(*sb)
		}
		return jobs[a].ID.String() < jobs[b].ID.String()
	})
}

func cloneJob(j entity.Job) entity.Job {
	out := j
	out.ScheduledStart = cloneTime(j.ScheduledStart)
	out.ScheduledEnd = cloneTime(j.ScheduledEnd)
	out.ActualStart = cloneTime(j.ActualStart)
	out.ActualEnd = cloneTime(j.ActualEnd)
	out.CompletedAt = cloneTime(j.CompletedAt)
	out.TimeWindowStart = cloneTime(j.TimeWindowStart)
	out.TimeWindowEnd = cloneTime(j.TimeWindowEnd)
	if j.ActualDuration != nil {
		d := *j.ActualDuration
		out.ActualDuration = &d
	}
	if j.Location != nil {
		loc := *j.Location
		out.Location = &loc
	}
	return out
}

func cloneTechnician(t entity.Technician) entity.Technician {
	out := t
	out.TradeTypes = append([]string(nil), t.TradeTypes...)
	out.LastLocationUpdate = cloneTime(t.LastLocationUpdate)
	if t.CurrentLocation != nil {
		loc := *t.CurrentLocation
		out.CurrentLocation = &loc
	}
	return out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	return timePtr(*t)
}

func timePtr(t time.Time) *time.Time {
	return &t
}
