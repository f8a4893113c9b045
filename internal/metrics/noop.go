package metrics

import "time"

// NoopSink is used when metrics are disabled so callers never nil-check.
type NoopSink struct{}

func NewNoopSink() *NoopSink {
	return &NoopSink{}
}

func (n *NoopSink) AssignmentCreated(statusChanged bool)                            {}
func (n *NoopSink) AssignmentRejected(reason string)                                {}
func (n *NoopSink) StatusTransition(from, to string)                                {}
func (n *NoopSink) BoardBuilt(technicians, jobs int, duration time.Duration)        {}
func (n *NoopSink) RouteSequenced(stops int, miles float64, duration time.Duration) {}
func (n *NoopSink) EventPublished(outcome string)                                   {}
func (n *NoopSink) EventDelivered(outcome string, duration time.Duration)           {}
func (n *NoopSink) EventsRequeued(count int)                                        {}
