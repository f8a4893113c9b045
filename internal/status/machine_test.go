package status_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dispatch-service/internal/apperr"
	"dispatch-service/internal/entity"
	"dispatch-service/internal/status"
)

var t0 = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func TestCanTransition(t *testing.T) {
	legal := map[[2]entity.JobStatus]bool{
		{entity.StatusPending, entity.StatusScheduled}:     true,
		{entity.StatusScheduled, entity.StatusDispatched}:  true,
		{entity.StatusDispatched, entity.StatusEnRoute}:    true,
		{entity.StatusEnRoute, entity.StatusInProgress}:    true,
		{entity.StatusInProgress, entity.StatusCompleted}:  true,
		{entity.StatusInProgress, entity.StatusOnHold}:     true,
		{entity.StatusOnHold, entity.StatusInProgress}:     true,
		{entity.StatusPending, entity.StatusCancelled}:     true,
		{entity.StatusScheduled, entity.StatusCancelled}:   true,
		{entity.StatusDispatched, entity.StatusCancelled}:  true,
		{entity.StatusEnRoute, entity.StatusCancelled}:     true,
		{entity.StatusInProgress, entity.StatusCancelled}:  true,
		{entity.StatusOnHold, entity.StatusCancelled}:      true,
	}

	for _, from := range entity.JobStatuses() {
		for _, to := range entity.JobStatuses() {
			want := legal[[2]entity.JobStatus{from, to}]
			assert.Equal(t, want, status.CanTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func TestApply_FullLifecycleStampsTimes(t *testing.T) {
	job := &entity.Job{Status: entity.StatusPending, ActiveAssignments: 1}

	steps := []entity.JobStatus{
		entity.StatusScheduled, entity.StatusDispatched, entity.StatusEnRoute,
	}
	for i, st := range steps {
		changed, err := status.Apply(job, st, t0.Add(time.Duration(i)*time.Minute))
		require.NoError(t, err)
		assert.True(t, changed)
	}
	assert.Nil(t, job.ActualStart)

	start := t0.Add(time.Hour)
	_, err := status.Apply(job, entity.StatusInProgress, start)
	require.NoError(t, err)
	require.NotNil(t, job.ActualStart)
	assert.Equal(t, start, *job.ActualStart)

	// 92.5 minutes rounds to 93
	end := start.Add(92*time.Minute + 30*time.Second)
	_, err = status.Apply(job, entity.StatusCompleted, end)
	require.NoError(t, err)

	assert.Equal(t, entity.StatusCompleted, job.Status)
	assert.Equal(t, end, *job.ActualEnd)
	assert.Equal(t, end, *job.CompletedAt)
	require.NotNil(t, job.ActualDuration)
	assert.Equal(t, 93, *job.ActualDuration)
	assert.Equal(t, end, job.UpdatedAt)
}

func TestApply_DurationRoundsDown(t *testing.T) {
	start := t0
	job := &entity.Job{Status: entity.StatusInProgress, ActualStart: &start}

	_, err := status.Apply(job, entity.StatusCompleted, t0.Add(44*time.Minute+29*time.Second))
	require.NoError(t, err)
	assert.Equal(t, 44, *job.ActualDuration)
}

func TestApply_CompletedWithoutActualStartHasNoDuration(t *testing.T) {
	// a legacy row that reached IN_PROGRESS without a stamp
	job := &entity.Job{Status: entity.StatusInProgress}

	changed, err := status.Apply(job, entity.StatusCompleted, t0)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Nil(t, job.ActualDuration)
	assert.Equal(t, t0, *job.CompletedAt)
}

func TestApply_ResumeKeepsOriginalStart(t *testing.T) {
	job := &entity.Job{Status: entity.StatusEnRoute}

	_, err := status.Apply(job, entity.StatusInProgress, t0)
	require.NoError(t, err)
	_, err = status.Apply(job, entity.StatusOnHold, t0.Add(10*time.Minute))
	require.NoError(t, err)
	_, err = status.Apply(job, entity.StatusInProgress, t0.Add(20*time.Minute))
	require.NoError(t, err)

	assert.Equal(t, t0, *job.ActualStart)
}

func TestApply_SameStatusIsNoop(t *testing.T) {
	start := t0
	job := &entity.Job{Status: entity.StatusInProgress, ActualStart: &start, UpdatedAt: t0}

	changed, err := status.Apply(job, entity.StatusInProgress, t0.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, t0, *job.ActualStart)
	assert.Equal(t, t0, job.UpdatedAt)

	end := t0.Add(time.Hour)
	job = &entity.Job{Status: entity.StatusCompleted, ActualEnd: &end, CompletedAt: &end}
	changed, err = status.Apply(job, entity.StatusCompleted, end.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, end, *job.CompletedAt)
}

func TestApply_Errors(t *testing.T) {
	tests := []struct {
		name  string
		job   entity.Job
		to    entity.JobStatus
		want  error
		class error
	}{
		{"unknown status", entity.Job{Status: entity.StatusPending}, "FINISHED", apperr.ErrInvalidStatus, apperr.ErrValidation},
		{"skip ahead", entity.Job{Status: entity.StatusPending}, entity.StatusInProgress, apperr.ErrIllegalTransition, apperr.ErrConflict},
		{"leave terminal", entity.Job{Status: entity.StatusCompleted}, entity.StatusCancelled, apperr.ErrIllegalTransition, apperr.ErrConflict},
		{"reopen cancelled", entity.Job{Status: entity.StatusCancelled}, entity.StatusPending, apperr.ErrIllegalTransition, apperr.ErrConflict},
		{"schedule unassigned", entity.Job{Status: entity.StatusPending}, entity.StatusScheduled, apperr.ErrIllegalTransition, apperr.ErrConflict},
		{"hold before start", entity.Job{Status: entity.StatusScheduled}, entity.StatusOnHold, apperr.ErrIllegalTransition, apperr.ErrConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := tt.job
			changed, err := status.Apply(&job, tt.to, t0)
			assert.False(t, changed)
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, tt.class, apperr.Class(err))
			assert.Equal(t, tt.job.Status, job.Status, "status must not move on error")
		})
	}
}

func TestOnAssign(t *testing.T) {
	job := &entity.Job{Status: entity.StatusPending}
	assert.True(t, status.OnAssign(job, t0))
	assert.Equal(t, entity.StatusScheduled, job.Status)

	for _, st := range []entity.JobStatus{
		entity.StatusScheduled, entity.StatusDispatched, entity.StatusInProgress,
		entity.StatusCompleted, entity.StatusCancelled,
	} {
		job := &entity.Job{Status: st}
		assert.False(t, status.OnAssign(job, t0))
		assert.Equal(t, st, job.Status)
	}
}

func TestParse(t *testing.T) {
	st, err := status.ParseJobStatus("en_route")
	require.NoError(t, err)
	assert.Equal(t, entity.StatusEnRoute, st)

	_, err = status.ParseJobStatus("DONE")
	assert.ErrorIs(t, err, apperr.ErrInvalidStatus)

	ts, err := status.ParseTechnicianStatus("off_duty")
	require.NoError(t, err)
	assert.Equal(t, entity.TechOffDuty, ts)

	_, err = status.ParseTechnicianStatus("SICK")
	assert.ErrorIs(t, err, apperr.ErrInvalidStatus)
}
