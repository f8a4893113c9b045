package entity

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventAssignmentCreated       EventType = "assignment.created"
	EventJobStatusChanged        EventType = "job.status_changed"
	EventTechnicianStatusChanged EventType = "technician.status_changed"
)

// Event is what the notification collaborator receives after a successful
// core operation.
type Event struct {
	ID           uuid.UUID  `json:"id"`
	Type         EventType  `json:"type"`
	CompanyID    uuid.UUID  `json:"company_id"`
	JobID        *uuid.UUID `json:"job_id,omitempty"`
	TechnicianID *uuid.UUID `json:"technician_id,omitempty"`
	Priority     Priority   `json:"priority,omitempty"`
	FromStatus   string     `json:"from_status,omitempty"`
	ToStatus     string     `json:"to_status,omitempty"`
	ActorID      uuid.UUID  `json:"actor_id"`
	OccurredAt   time.Time  `json:"occurred_at"`
}
