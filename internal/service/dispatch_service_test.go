package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"dispatch-service/internal/apperr"
	"dispatch-service/internal/entity"
	"dispatch-service/internal/geo"
	"dispatch-service/internal/metrics"
	"dispatch-service/internal/repository/memory"
	"dispatch-service/internal/service"
)

var (
	company = uuid.MustParse("11111111-1111-1111-1111-111111111111")
	other   = uuid.MustParse("22222222-2222-2222-2222-222222222222")
	day     = time.Date(2026, 5, 4, 0, 0, 0, 0, time.UTC)
	now     = day.Add(7 * time.Hour)
)

type fakeNotifier struct {
	mu     sync.Mutex
	events []entity.Event
	err    error
}

func (n *fakeNotifier) Publish(ctx context.Context, ev entity.Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.events = append(n.events, ev)
	return nil
}

func (n *fakeNotifier) types() []entity.EventType {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]entity.EventType, len(n.events))
	for i, ev := range n.events {
		out[i] = ev.Type
	}
	return out
}

type fakeTracker struct {
	positions map[uuid.UUID]entity.Position
	err       error
}

func (t *fakeTracker) Record(ctx context.Context, companyID, techID uuid.UUID, pos entity.Position) error {
	if t.err != nil {
		return t.err
	}
	if t.positions == nil {
		t.positions = map[uuid.UUID]entity.Position{}
	}
	t.positions[techID] = pos
	return nil
}

func (t *fakeTracker) Latest(ctx context.Context, companyID uuid.UUID, ids []uuid.UUID) (map[uuid.UUID]entity.Position, error) {
	if t.err != nil {
		return nil, t.err
	}
	out := map[uuid.UUID]entity.Position{}
	for _, id := range ids {
		if p, ok := t.positions[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

type routeSample struct {
	stops    int
	duration time.Duration
}

type recordingSink struct {
	metrics.NoopSink
	mu       sync.Mutex
	rejected []string
	routes   []routeSample
}

func (s *recordingSink) AssignmentRejected(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rejected = append(s.rejected, reason)
}

func (s *recordingSink) RouteSequenced(stops int, miles float64, duration time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.routes = append(s.routes, routeSample{stops: stops, duration: duration})
}

type fixture struct {
	store    *memory.Store
	notifier *fakeNotifier
	tracker  *fakeTracker
	sink     *recordingSink
	svc      *service.DispatchService
	p        entity.Principal
}

func newFixture(t *testing.T, opts service.Options) *fixture {
	t.Helper()
	f := &fixture{
		store:    memory.New(),
		notifier: &fakeNotifier{},
		tracker:  &fakeTracker{},
		sink:     &recordingSink{},
		p:        entity.Principal{UserID: uuid.New(), CompanyID: company},
	}
	f.svc = f.service(t, opts, func() time.Time { return now })
	return f
}

func (f *fixture) service(t *testing.T, opts service.Options, clock func() time.Time) *service.DispatchService {
	return service.NewDispatchService(service.Deps{
		Jobs:        f.store,
		Technicians: f.store,
		Assignments: f.store,
		Notifier:    f.notifier,
		Tracker:     f.tracker,
		Metrics:     f.sink,
		Log:         zaptest.NewLogger(t),
		Now:         clock,
	}, opts)
}

func at(h float64) *time.Time {
	t := day.Add(time.Duration(h * float64(time.Hour)))
	return &t
}

func (f *fixture) job(start *time.Time, loc *geo.LatLng, p entity.Priority) entity.Job {
	j := entity.Job{
		ID:             uuid.New(),
		CompanyID:      company,
		TradeType:      "plumbing",
		Priority:       p,
		Status:         entity.StatusPending,
		ScheduledStart: start,
		Location:       loc,
		CreatedAt:      day,
		UpdatedAt:      day,
	}
	f.store.PutJob(j)
	return j
}

func (f *fixture) tech(name string) entity.Technician {
	t := entity.Technician{ID: uuid.New(), CompanyID: company, Name: name, Status: entity.TechAvailable, Active: true}
	f.store.PutTechnician(t)
	return t
}

func ptr[T any](v T) *T { return &v }

func TestAssign_SchedulesPendingJobAndNotifies(t *testing.T) {
	f := newFixture(t, service.Options{})
	job := f.job(at(9), nil, entity.PriorityHigh)
	tech := f.tech("Ana")

	out, err := f.svc.Assign(context.Background(), f.p, job.ID, tech.ID)
	require.NoError(t, err)

	assert.Equal(t, entity.StatusScheduled, out.Job.Status)
	assert.Equal(t, f.p.UserID, out.Assignment.AssignedBy)
	assert.True(t, out.Assignment.IsPrimary)
	assert.Equal(t, []entity.EventType{entity.EventAssignmentCreated, entity.EventJobStatusChanged}, f.notifier.types())

	ev := f.notifier.events[1]
	assert.Equal(t, "PENDING", ev.FromStatus)
	assert.Equal(t, "SCHEDULED", ev.ToStatus)
	assert.Equal(t, entity.PriorityHigh, ev.Priority)
	assert.Equal(t, now, ev.OccurredAt)
}

func TestAssign_LaterStatusUntouched(t *testing.T) {
	f := newFixture(t, service.Options{})
	job := f.job(at(9), nil, entity.PriorityNormal)
	job.Status = entity.StatusDispatched
	f.store.PutJob(job)
	tech := f.tech("Ana")

	out, err := f.svc.Assign(context.Background(), f.p, job.ID, tech.ID)
	require.NoError(t, err)

	assert.Equal(t, entity.StatusDispatched, out.Job.Status)
	assert.Equal(t, []entity.EventType{entity.EventAssignmentCreated}, f.notifier.types())
}

func TestAssign_DuplicatePairConflicts(t *testing.T) {
	f := newFixture(t, service.Options{})
	job := f.job(at(9), nil, entity.PriorityNormal)
	tech := f.tech("Ana")

	_, err := f.svc.Assign(context.Background(), f.p, job.ID, tech.ID)
	require.NoError(t, err)

	_, err = f.svc.Assign(context.Background(), f.p, job.ID, tech.ID)
	assert.ErrorIs(t, err, apperr.ErrDuplicateAssignment)
	assert.Equal(t, apperr.ErrConflict, apperr.Class(err))
	assert.Equal(t, 1, f.store.AssignmentCount(job.ID))
}

func TestAssign_FinishedJobConflicts(t *testing.T) {
	for _, st := range []string{"COMPLETED", "CANCELLED"} {
		t.Run(st, func(t *testing.T) {
			f := newFixture(t, service.Options{})
			ctx := context.Background()
			job := f.job(at(9), nil, entity.PriorityNormal)
			ana := f.tech("Ana")

			_, err := f.svc.Assign(ctx, f.p, job.ID, ana.ID)
			require.NoError(t, err)
			if st == "COMPLETED" {
				for _, next := range []string{"DISPATCHED", "EN_ROUTE", "IN_PROGRESS"} {
					_, err = f.svc.UpdateJob(ctx, f.p, job.ID, service.JobUpdate{Status: ptr(next)})
					require.NoError(t, err)
				}
			}
			_, err = f.svc.UpdateJob(ctx, f.p, job.ID, service.JobUpdate{Status: ptr(st)})
			require.NoError(t, err)
			sent := len(f.notifier.types())

			bo := f.tech("Bo")
			_, err = f.svc.Assign(ctx, f.p, job.ID, bo.ID)
			assert.ErrorIs(t, err, apperr.ErrIllegalTransition)
			assert.Equal(t, apperr.ErrConflict, apperr.Class(err))
			assert.Len(t, f.notifier.types(), sent)
			assert.Equal(t, 1, f.store.AssignmentCount(job.ID))
			assert.Equal(t, []string{metrics.ReasonJobClosed}, f.sink.rejected)

			active, err := f.store.ListActiveForJobs(ctx, company, []uuid.UUID{job.ID})
			require.NoError(t, err)
			require.Len(t, active, 1)
			assert.Equal(t, ana.ID, active[0].TechnicianID)
		})
	}
}

func TestAssign_ConcurrentDuplicatesStoreOneRow(t *testing.T) {
	f := newFixture(t, service.Options{})
	job := f.job(at(9), nil, entity.PriorityNormal)
	tech := f.tech("Ana")

	const n = 12
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		ok        int
		conflicts int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Assign(context.Background(), f.p, job.ID, tech.ID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, apperr.ErrDuplicateAssignment):
				conflicts++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, ok)
	assert.Equal(t, n-1, conflicts)
	assert.Equal(t, 1, f.store.AssignmentCount(job.ID))
}

func TestAssign_OtherTenantIsNotFound(t *testing.T) {
	f := newFixture(t, service.Options{})
	job := f.job(at(9), nil, entity.PriorityNormal)
	tech := f.tech("Ana")

	outsider := entity.Principal{UserID: uuid.New(), CompanyID: other}
	_, err := f.svc.Assign(context.Background(), outsider, job.ID, tech.ID)
	assert.ErrorIs(t, err, apperr.ErrJobNotFound)
	assert.Empty(t, f.notifier.types())
}

func TestAssign_RequiresIDs(t *testing.T) {
	f := newFixture(t, service.Options{})

	_, err := f.svc.Assign(context.Background(), f.p, uuid.Nil, uuid.New())
	assert.True(t, apperr.Is(err, apperr.ErrValidation))
	_, err = f.svc.Assign(context.Background(), f.p, uuid.New(), uuid.Nil)
	assert.True(t, apperr.Is(err, apperr.ErrValidation))
}

func TestAssign_NotifierFailureDoesNotFail(t *testing.T) {
	f := newFixture(t, service.Options{})
	f.notifier.err = apperr.Upstream(errors.New("redis down"), "event queue")
	job := f.job(at(9), nil, entity.PriorityNormal)
	tech := f.tech("Ana")

	out, err := f.svc.Assign(context.Background(), f.p, job.ID, tech.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusScheduled, out.Job.Status)
}

func TestUpdateJob_Lifecycle(t *testing.T) {
	f := newFixture(t, service.Options{})
	job := f.job(at(9), nil, entity.PriorityNormal)
	tech := f.tech("Ana")
	ctx := context.Background()

	_, err := f.svc.Assign(ctx, f.p, job.ID, tech.ID)
	require.NoError(t, err)

	for _, st := range []string{"DISPATCHED", "en_route", "IN_PROGRESS", "COMPLETED"} {
		_, err := f.svc.UpdateJob(ctx, f.p, job.ID, service.JobUpdate{Status: ptr(st)})
		require.NoError(t, err, st)
	}

	got, err := f.svc.GetJob(ctx, f.p, job.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusCompleted, got.Status)
	require.NotNil(t, got.ActualStart)
	require.NotNil(t, got.CompletedAt)
	require.NotNil(t, got.ActualDuration)
	assert.Equal(t, 0, *got.ActualDuration)
}

func TestUpdateJob_Errors(t *testing.T) {
	f := newFixture(t, service.Options{})
	job := f.job(at(9), nil, entity.PriorityNormal)
	ctx := context.Background()

	_, err := f.svc.UpdateJob(ctx, f.p, job.ID, service.JobUpdate{Status: ptr("PAUSED")})
	assert.ErrorIs(t, err, apperr.ErrInvalidStatus)

	_, err = f.svc.UpdateJob(ctx, f.p, job.ID, service.JobUpdate{Status: ptr("IN_PROGRESS")})
	assert.ErrorIs(t, err, apperr.ErrIllegalTransition)

	_, err = f.svc.UpdateJob(ctx, f.p, job.ID, service.JobUpdate{Status: ptr("SCHEDULED")})
	assert.ErrorIs(t, err, apperr.ErrIllegalTransition, "scheduling needs an assignment")

	_, err = f.svc.UpdateJob(ctx, f.p, job.ID, service.JobUpdate{Priority: ptr("CRITICAL")})
	assert.ErrorIs(t, err, apperr.ErrInvalidPriority)

	_, err = f.svc.UpdateJob(ctx, entity.Principal{CompanyID: other}, job.ID, service.JobUpdate{Status: ptr("CANCELLED")})
	assert.ErrorIs(t, err, apperr.ErrJobNotFound)

	got, err := f.svc.GetJob(ctx, f.p, job.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusPending, got.Status)
	assert.Empty(t, f.notifier.types())
}

func TestUpdateJob_PartialFieldsAndSameStatus(t *testing.T) {
	f := newFixture(t, service.Options{})
	job := f.job(at(9), nil, entity.PriorityNormal)
	ctx := context.Background()
	window := day.Add(10 * time.Hour)

	got, err := f.svc.UpdateJob(ctx, f.p, job.ID, service.JobUpdate{
		Status:        ptr("PENDING"),
		Priority:      ptr("urgent"),
		TimeWindowEnd: &window,
	})
	require.NoError(t, err)

	assert.Equal(t, entity.StatusPending, got.Status)
	assert.Equal(t, entity.PriorityUrgent, got.Priority)
	assert.Equal(t, "plumbing", got.TradeType)
	require.NotNil(t, got.TimeWindowEnd)
	assert.True(t, window.Equal(*got.TimeWindowEnd))
	assert.True(t, job.ScheduledStart.Equal(*got.ScheduledStart))
	assert.Empty(t, f.notifier.types(), "same status is not a transition")
}

func TestUpdateJob_CancelFromAnyOpenState(t *testing.T) {
	f := newFixture(t, service.Options{})
	job := f.job(at(9), nil, entity.PriorityNormal)

	got, err := f.svc.UpdateJob(context.Background(), f.p, job.ID, service.JobUpdate{Status: ptr("CANCELLED")})
	require.NoError(t, err)
	assert.Equal(t, entity.StatusCancelled, got.Status)
	assert.Equal(t, []entity.EventType{entity.EventJobStatusChanged}, f.notifier.types())

	_, err = f.svc.UpdateJob(context.Background(), f.p, job.ID, service.JobUpdate{Status: ptr("PENDING")})
	assert.ErrorIs(t, err, apperr.ErrIllegalTransition)
}

func TestListForTechnician(t *testing.T) {
	f := newFixture(t, service.Options{})
	tech := f.tech("Ana")
	early := f.job(at(8), nil, entity.PriorityNormal)
	late := f.job(at(15), nil, entity.PriorityNormal)
	tomorrow := f.job(at(33), nil, entity.PriorityNormal)
	ctx := context.Background()

	for _, j := range []entity.Job{late, tomorrow, early} {
		_, err := f.svc.Assign(ctx, f.p, j.ID, tech.ID)
		require.NoError(t, err)
	}

	got, err := f.svc.ListForTechnician(ctx, f.p, tech.ID, day, day.Add(24*time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, early.ID, got[0].JobID)
	assert.Equal(t, late.ID, got[1].JobID)

	_, err = f.svc.ListForTechnician(ctx, f.p, tech.ID, day, day)
	assert.True(t, apperr.Is(err, apperr.ErrValidation))

	_, err = f.svc.ListForTechnician(ctx, entity.Principal{CompanyID: other}, tech.ID, day, day.Add(time.Hour))
	assert.ErrorIs(t, err, apperr.ErrTechnicianNotFound)
}

func TestUpdateTechnicianStatus_AnyTransition(t *testing.T) {
	f := newFixture(t, service.Options{})
	tech := f.tech("Ana")
	ctx := context.Background()

	for _, st := range []string{"OFF_DUTY", "on_job", "AVAILABLE", "ON_BREAK", "OFF_DUTY"} {
		got, err := f.svc.UpdateTechnicianStatus(ctx, f.p, tech.ID, st)
		require.NoError(t, err, st)
		want, _ := entity.ParseTechnicianStatus(st)
		assert.Equal(t, want, got.Status)
	}
	assert.Len(t, f.notifier.types(), 5)

	_, err := f.svc.UpdateTechnicianStatus(ctx, f.p, tech.ID, "OFF_DUTY")
	require.NoError(t, err)
	assert.Len(t, f.notifier.types(), 5, "unchanged status publishes nothing")

	_, err = f.svc.UpdateTechnicianStatus(ctx, f.p, tech.ID, "SLEEPING")
	assert.ErrorIs(t, err, apperr.ErrInvalidStatus)

	_, err = f.svc.UpdateTechnicianStatus(ctx, entity.Principal{CompanyID: other}, tech.ID, "AVAILABLE")
	assert.ErrorIs(t, err, apperr.ErrTechnicianNotFound)
}

func TestRecordLocation(t *testing.T) {
	f := newFixture(t, service.Options{})
	tech := f.tech("Ana")
	ctx := context.Background()

	require.NoError(t, f.svc.RecordLocation(ctx, f.p, tech.ID, geo.LatLng{Lat: 40.7, Lng: -74}))
	assert.Equal(t, 40.7, f.tracker.positions[tech.ID].Location.Lat)

	stored, err := f.store.GetTechnician(ctx, company, tech.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.CurrentLocation)
	assert.Equal(t, now, *stored.LastLocationUpdate)

	err = f.svc.RecordLocation(ctx, f.p, tech.ID, geo.LatLng{Lat: 91})
	assert.ErrorIs(t, err, apperr.ErrInvalidCoordinate)

	err = f.svc.RecordLocation(ctx, entity.Principal{CompanyID: other}, tech.ID, geo.LatLng{Lat: 1, Lng: 1})
	assert.ErrorIs(t, err, apperr.ErrTechnicianNotFound)

	f.tracker.err = apperr.Upstream(errors.New("down"), "location store")
	assert.NoError(t, f.svc.RecordLocation(ctx, f.p, tech.ID, geo.LatLng{Lat: 1, Lng: 1}))
}
