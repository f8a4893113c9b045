package worker

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"dispatch-service/internal/metrics"
	"dispatch-service/internal/notify"
)

type Pool struct {
	queue      notify.Queue
	processor  *Processor
	workers    int
	claimDelay time.Duration
	minBackoff time.Duration
	maxBackoff time.Duration
	log        *zap.Logger
}

func NewPool(queue notify.Queue, processor *Processor, workers int, log *zap.Logger) *Pool {
	if workers <= 0 {
		workers = 4
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Pool{
		queue:      queue,
		processor:  processor,
		workers:    workers,
		claimDelay: 5 * time.Second,
		minBackoff: 100 * time.Millisecond,
		maxBackoff: 5 * time.Second,
		log:        log,
	}
}

// Run claims events until ctx is done and waits for in-flight deliveries.
func (p *Pool) Run(ctx context.Context) {
	p.log.Info("worker pool started", zap.Int("workers", p.workers))

	idCh := make(chan string)
	var wg sync.WaitGroup

	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			log := p.log.With(zap.Int("worker", n))
			for id := range idCh {
				done, err := p.processor.Process(ctx, id)
				if err != nil {
					log.Warn("process event", zap.String("event_id", id), zap.Error(err))
				}
				if !done {
					// left in processing; the reaper puts it back
					continue
				}
				if ackErr := p.queue.Ack(ctx, id); ackErr != nil {
					log.Error("ack event", zap.String("event_id", id), zap.Error(ackErr))
				}
			}
		}(i + 1)
	}

	defer func() {
		close(idCh)
		wg.Wait()
		p.log.Info("worker pool stopped")
	}()

	var backoff time.Duration
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		id, err := p.queue.ClaimBlocking(ctx, p.claimDelay)
		switch {
		case err == nil:
			backoff = 0
		case errors.Is(err, redis.Nil):
			// idle timeout
			backoff = 0
			continue
		case ctx.Err() != nil:
			return
		default:
			backoff = p.nextBackoff(backoff)
			p.log.Warn("claim event", zap.Duration("backoff", backoff), zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			continue
		}
		select {
		case idCh <- id:
		case <-ctx.Done():
			return
		}
	}
}

// nextBackoff doubles prev within [minBackoff, maxBackoff].
func (p *Pool) nextBackoff(prev time.Duration) time.Duration {
	next := prev * 2
	if next < p.minBackoff {
		next = p.minBackoff
	}
	if next > p.maxBackoff {
		next = p.maxBackoff
	}
	return next
}

// RunReaper periodically moves events stuck in processing lists back to
// their queues, e.g. after a worker crashed mid-delivery.
func RunReaper(ctx context.Context, queue notify.Queue, interval time.Duration, maxPerLane int64, sink metrics.Sink, log *zap.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := queue.RequeueStale(ctx, maxPerLane)
			if err != nil {
				log.Warn("requeue stale events", zap.Error(err))
				continue
			}
			if n > 0 {
				sink.EventsRequeued(int(n))
				log.Info("requeued events from processing", zap.Int64("count", n))
			}
		}
	}
}
