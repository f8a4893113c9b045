package metrics

import "time"

// Sink records dispatch metrics.
// Implementations must not block or return errors to the caller.
type Sink interface {
	// Assignment metrics
	AssignmentCreated(statusChanged bool)
	AssignmentRejected(reason string)

	// Job lifecycle metrics
	StatusTransition(from, to string)

	// Board and routing metrics
	BoardBuilt(technicians, jobs int, duration time.Duration)
	RouteSequenced(stops int, miles float64, duration time.Duration)

	// Notification metrics
	EventPublished(outcome string)
	EventDelivered(outcome string, duration time.Duration)
	EventsRequeued(count int)
}

// Outcome constants for EventPublished and EventDelivered.
const (
	OutcomeSuccess = "success"
	OutcomeFailed  = "failed"
	OutcomeDropped = "dropped"
)

// Rejection reasons for AssignmentRejected.
const (
	ReasonDuplicate  = "duplicate"
	ReasonNotFound   = "not_found"
	ReasonValidation = "validation"
	ReasonJobClosed  = "job_closed"
	ReasonError      = "error"
)
