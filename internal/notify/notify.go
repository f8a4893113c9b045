// Package notify carries domain events from the dispatch core to the
// outside world. The API publishes onto a Redis priority queue; the worker
// claims events and hands them to a Deliverer (log or SNS).
package notify

import (
	"context"

	"go.uber.org/zap"

	"dispatch-service/internal/entity"
)

// Notifier accepts events after a core operation has committed.
type Notifier interface {
	Publish(ctx context.Context, ev entity.Event) error
}

// Deliverer sends one event to its final destination.
type Deliverer interface {
	Deliver(ctx context.Context, ev entity.Event) error
}

// LogNotifier writes events to the log instead of queueing them. It backs
// the API when no Redis is configured.
type LogNotifier struct {
	log *zap.Logger
}

func NewLogNotifier(log *zap.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Publish(ctx context.Context, ev entity.Event) error {
	n.log.Info("event", eventFields(ev)...)
	return nil
}

// LogDeliverer is the worker-side counterpart of LogNotifier.
type LogDeliverer struct {
	log *zap.Logger
}

func NewLogDeliverer(log *zap.Logger) *LogDeliverer {
	return &LogDeliverer{log: log}
}

func (d *LogDeliverer) Deliver(ctx context.Context, ev entity.Event) error {
	d.log.Info("event delivered", eventFields(ev)...)
	return nil
}

func eventFields(ev entity.Event) []zap.Field {
	fields := []zap.Field{
		zap.String("event_id", ev.ID.String()),
		zap.String("type", string(ev.Type)),
		zap.String("company_id", ev.CompanyID.String()),
		zap.String("actor_id", ev.ActorID.String()),
		zap.Time("occurred_at", ev.OccurredAt),
	}
	if ev.JobID != nil {
		fields = append(fields, zap.String("job_id", ev.JobID.String()))
	}
	if ev.TechnicianID != nil {
		fields = append(fields, zap.String("technician_id", ev.TechnicianID.String()))
	}
	if ev.Priority != "" {
		fields = append(fields, zap.String("priority", string(ev.Priority)))
	}
	if ev.FromStatus != "" || ev.ToStatus != "" {
		fields = append(fields, zap.String("from", ev.FromStatus), zap.String("to", ev.ToStatus))
	}
	return fields
}
