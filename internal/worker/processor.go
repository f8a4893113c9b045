package worker

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"dispatch-service/internal/apperr"
	"dispatch-service/internal/metrics"
	"dispatch-service/internal/notify"
)

// DefaultMaxAttempts bounds how often one event is claimed before it is
// dropped.
const DefaultMaxAttempts = 5

type Processor struct {
	queue       notify.Queue
	deliverer   notify.Deliverer
	metrics     metrics.Sink
	log         *zap.Logger
	timeout     time.Duration
	maxAttempts int64
}

func NewProcessor(queue notify.Queue, deliverer notify.Deliverer, sink metrics.Sink, log *zap.Logger, timeout time.Duration) *Processor {
	if sink == nil {
		sink = metrics.NewNoopSink()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Processor{
		queue:       queue,
		deliverer:   deliverer,
		metrics:     sink,
		log:         log,
		timeout:     timeout,
		maxAttempts: DefaultMaxAttempts,
	}
}

// Process delivers the event behind id. done reports whether the item is
// finished (delivered, dropped or unreadable) and should be acknowledged;
// on a retryable failure it stays in processing for the reaper.
func (p *Processor) Process(ctx context.Context, id string) (done bool, err error) {
	start := time.Now()
	log := p.log.With(zap.String("event_id", id))

	ev, err := p.queue.Load(ctx, id)
	if err != nil {
		if errors.Is(err, notify.ErrPayloadMissing) {
			log.Warn("event payload missing, dropping")
			p.metrics.EventDelivered(metrics.OutcomeDropped, time.Since(start))
			return true, nil
		}
		if apperr.Is(err, apperr.ErrUpstreamUnavailable) {
			return false, err
		}
		// an undecodable payload never gets better
		log.Error("event payload unreadable, dropping", zap.Error(err))
		p.metrics.EventDelivered(metrics.OutcomeDropped, time.Since(start))
		return true, nil
	}

	attempt, err := p.queue.Attempt(ctx, id)
	if err != nil {
		return false, err
	}
	log = log.With(zap.String("type", string(ev.Type)), zap.Int64("attempt", attempt))

	dctx := ctx
	if p.timeout > 0 {
		var cancel context.CancelFunc
		dctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	if err := p.deliverer.Deliver(dctx, ev); err != nil {
		if attempt >= p.maxAttempts {
			log.Error("event delivery failed, giving up", zap.Error(err))
			p.metrics.EventDelivered(metrics.OutcomeDropped, time.Since(start))
			return true, err
		}
		log.Warn("event delivery failed, will retry", zap.Error(err))
		p.metrics.EventDelivered(metrics.OutcomeFailed, time.Since(start))
		return false, err
	}

	log.Debug("event delivered", zap.Duration("duration", time.Since(start)))
	p.metrics.EventDelivered(metrics.OutcomeSuccess, time.Since(start))
	return true, nil
}
