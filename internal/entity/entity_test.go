package entity_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"dispatch-service/internal/entity"
	"dispatch-service/internal/geo"
)

func TestPrimaryAssignment(t *testing.T) {
	now := time.Now()
	superseded := entity.Assignment{ID: uuid.New(), IsPrimary: true, Active: false, SupersededAt: &now}
	helper := entity.Assignment{ID: uuid.New(), IsPrimary: false, Active: true}
	primary := entity.Assignment{ID: uuid.New(), IsPrimary: true, Active: true}

	got, ok := entity.PrimaryAssignment([]entity.Assignment{superseded, helper, primary})
	assert.True(t, ok)
	assert.Equal(t, primary.ID, got.ID)

	got, ok = entity.PrimaryAssignment([]entity.Assignment{superseded, helper})
	assert.True(t, ok)
	assert.Equal(t, helper.ID, got.ID)

	_, ok = entity.PrimaryAssignment([]entity.Assignment{superseded})
	assert.False(t, ok)

	_, ok = entity.PrimaryAssignment(nil)
	assert.False(t, ok)
}

func TestJobStop(t *testing.T) {
	j := entity.Job{ID: uuid.New(), Priority: entity.PriorityHigh}
	_, ok := j.Stop()
	assert.False(t, ok, "job without geocode has no stop")

	j.Location = &geo.LatLng{Lat: 1, Lng: 2}
	s, ok := j.Stop()
	assert.True(t, ok)
	assert.Equal(t, j.ID, s.ID)
	assert.Equal(t, entity.PriorityHigh, s.Priority)
	assert.Equal(t, geo.LatLng{Lat: 1, Lng: 2}, s.Location)
}

func TestParsing(t *testing.T) {
	p, ok := entity.ParsePriority("urgent")
	assert.True(t, ok)
	assert.Equal(t, entity.PriorityUrgent, p)

	p, ok = entity.ParsePriority("")
	assert.True(t, ok)
	assert.Equal(t, entity.PriorityNormal, p)

	_, ok = entity.ParsePriority("critical")
	assert.False(t, ok)

	st, ok := entity.ParseTechnicianStatus(" on_break ")
	assert.True(t, ok)
	assert.Equal(t, entity.TechOnBreak, st)

	_, ok = entity.ParseTechnicianStatus("LUNCH")
	assert.False(t, ok)

	assert.True(t, entity.StatusCancelled.Terminal())
	assert.False(t, entity.StatusOnHold.Terminal())
	assert.False(t, entity.JobStatus("DONE").Valid())
	assert.Len(t, entity.JobStatuses(), 8)
}
