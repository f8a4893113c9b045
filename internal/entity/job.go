package entity

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"dispatch-service/internal/geo"
)

type JobStatus string

const (
	StatusPending    JobStatus = "PENDING"
	StatusScheduled  JobStatus = "SCHEDULED"
	StatusDispatched JobStatus = "DISPATCHED"
	StatusEnRoute    JobStatus = "EN_ROUTE"
	StatusInProgress JobStatus = "IN_PROGRESS"
	StatusOnHold     JobStatus = "ON_HOLD"
	StatusCompleted  JobStatus = "COMPLETED"
	StatusCancelled  JobStatus = "CANCELLED"
)

var jobStatuses = []JobStatus{
	StatusPending, StatusScheduled, StatusDispatched, StatusEnRoute,
	StatusInProgress, StatusOnHold, StatusCompleted, StatusCancelled,
}

// JobStatuses lists every job status in lifecycle order.
func JobStatuses() []JobStatus {
	out := make([]JobStatus, len(jobStatuses))
	copy(out, jobStatuses)
	return out
}

func (s JobStatus) Valid() bool {
	for _, v := range jobStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transition may leave s.
func (s JobStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

type Priority string

const (
	PriorityLow       Priority = "LOW"
	PriorityNormal    Priority = "NORMAL"
	PriorityHigh      Priority = "HIGH"
	PriorityUrgent    Priority = "URGENT"
	PriorityEmergency Priority = "EMERGENCY"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent, PriorityEmergency:
		return true
	}
	return false
}

// ParsePriority accepts any letter case; an empty string means NORMAL.
func ParsePriority(s string) (Priority, bool) {
	if s == "" {
		return PriorityNormal, true
	}
	p := Priority(strings.ToUpper(s))
	return p, p.Valid()
}

type Job struct {
	ID        uuid.UUID `json:"id"`
	CompanyID uuid.UUID `json:"company_id"`
	TradeType string    `json:"trade_type"`
	Priority  Priority  `json:"priority"`
	Status    JobStatus `json:"status"`

	ScheduledStart  *time.Time `json:"scheduled_start,omitempty"`
	ScheduledEnd    *time.Time `json:"scheduled_end,omitempty"`
	ActualStart     *time.Time `json:"actual_start,omitempty"`
	ActualEnd       *time.Time `json:"actual_end,omitempty"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	TimeWindowStart *time.Time `json:"time_window_start,omitempty"`
	TimeWindowEnd   *time.Time `json:"time_window_end,omitempty"`

	// ActualDuration is in whole minutes; nil when the job never recorded
	// an actual start.
	ActualDuration *int `json:"actual_duration,omitempty"`

	// Location is the geocoded property position; nil when not geocoded.
	Location *geo.LatLng `json:"location,omitempty"`

	// ActiveAssignments is derived on read.
	ActiveAssignments int `json:"active_assignments"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Stop projects the job into a route-sequencing input. ok is false when the
// job has no coordinates.
func (j Job) Stop() (Stop, bool) {
	if j.Location == nil {
		return Stop{}, false
	}
	return Stop{ID: j.ID, Location: *j.Location, Priority: j.Priority}, true
}

// Stop is a single route-sequencing input.
type Stop struct {
	ID       uuid.UUID  `json:"id"`
	Location geo.LatLng `json:"location"`
	Priority Priority   `json:"priority"`
}
