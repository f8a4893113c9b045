package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"

	"dispatch-service/internal/apperr"
	"dispatch-service/internal/entity"
)

// ErrPayloadMissing is returned by Load when an id has no stored event,
// e.g. after it was already acknowledged by another worker.
var ErrPayloadMissing = errors.New("event payload missing")

type Queue interface {
	Notifier
	ClaimBlocking(ctx context.Context, timeout time.Duration) (string, error)
	Load(ctx context.Context, id string) (entity.Event, error)
	Attempt(ctx context.Context, id string) (int64, error)
	Ack(ctx context.Context, id string) error
	RequeueStale(ctx context.Context, maxPerLane int64) (int64, error)
}

type Lane struct {
	QueueKey      string
	ProcessingKey string
}

// Keys names every Redis key the queue touches.
type Keys struct {
	Low, Normal, High Lane

	// ProcessingMap records which processing list holds a claimed id.
	ProcessingMap string
	// Payloads holds the JSON event per id.
	Payloads      string
	// Attempts counts claims per id.
	Attempts      string
}

// KeysFrom derives lane and bookkeeping keys from the two configured bases.
func KeysFrom(queueKey, processingKey string) Keys {
	return Keys{
		Low:           Lane{QueueKey: queueKey + ":low", ProcessingKey: processingKey + ":low"},
		Normal:        Lane{QueueKey: queueKey + ":normal", ProcessingKey: processingKey + ":normal"},
		High:          Lane{QueueKey: queueKey + ":high", ProcessingKey: processingKey + ":high"},
		ProcessingMap: processingKey + ":map",
		Payloads:      queueKey + ":payload",
		Attempts:      queueKey + ":attempts",
	}
}

// redisEventQueue is a reliable priority queue over Redis lists.
// Publish: HSET payload, LPUSH lane.queue
// Claim:   BRPOPLPUSH lane.queue -> lane.processing, high lane first
// Ack:     LREM from the processing list recorded in the map, drop payload
type redisEventQueue struct {
	rdb  *redis.Client
	keys Keys
}

func NewRedisQueue(rdb *redis.Client, keys Keys) Queue {
	return &redisEventQueue{rdb: rdb, keys: keys}
}

func (q *redisEventQueue) lanes() []Lane {
	return []Lane{q.keys.High, q.keys.Normal, q.keys.Low}
}

// LaneFor maps a job priority to a lane name: EMERGENCY, URGENT and HIGH
// jobs share the high lane; events without a job priority go to normal.
func LaneFor(p entity.Priority) string {
	switch p {
	case entity.PriorityEmergency, entity.PriorityUrgent, entity.PriorityHigh:
		return "high"
	case entity.PriorityLow:
		return "low"
	default:
		return "normal"
	}
}

func (q *redisEventQueue) laneByPriority(p entity.Priority) Lane {
	switch LaneFor(p) {
	case "high":
		return q.keys.High
	case "low":
		return q.keys.Low
	default:
		return q.keys.Normal
	}
}

func (q *redisEventQueue) Publish(ctx context.Context, ev entity.Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return errors.Wrap(err, "encode event")
	}
	id := ev.ID.String()
	ln := q.laneByPriority(ev.Priority)

	_, err = q.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, q.keys.Payloads, id, body)
		p.LPush(ctx, ln.QueueKey, id)
		return nil
	})
	return apperr.Upstream(err, "event queue")
}

// ClaimBlocking tries high->normal->low with short blocking slots so a
// waiting high-priority event is never stuck behind a long wait on a lower
// lane. timeout <= 0 waits until ctx is done. redis.Nil means nothing arrived.
func (q *redisEventQueue) ClaimBlocking(ctx context.Context, timeout time.Duration) (string, error) {
	forever := timeout <= 0
	deadline := time.Now().Add(timeout)

	slot := time.Second
	if !forever && timeout < slot {
		slot = timeout
	}

	for {
		if !forever && time.Now().After(deadline) {
			return "", redis.Nil
		}

		for _, ln := range q.lanes() {
			if err := ctx.Err(); err != nil {
				return "", err
			}
			wait := slot
			if !forever {
				remain := time.Until(deadline)
				if remain <= 0 {
					return "", redis.Nil
				}
				if remain < wait {
					wait = remain
				}
			}

			id, err := q.rdb.BRPopLPush(ctx, ln.QueueKey, ln.ProcessingKey, wait).Result()
			if err == nil {
				if hErr := q.rdb.HSet(ctx, q.keys.ProcessingMap, id, ln.ProcessingKey).Err(); hErr != nil {
					// without the mapping Ack cannot find the item
					return "", hErr
				}
				return id, nil
			}
			if errors.Is(err, redis.Nil) {
				continue
			}
			return "", err
		}
	}
}

func (q *redisEventQueue) Load(ctx context.Context, id string) (entity.Event, error) {
	body, err := q.rdb.HGet(ctx, q.keys.Payloads, id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return entity.Event{}, errors.Wrapf(ErrPayloadMissing, "event %s", id)
		}
		return entity.Event{}, apperr.Upstream(err, "event queue")
	}
	var ev entity.Event
	if err := json.Unmarshal(body, &ev); err != nil {
		return entity.Event{}, errors.Wrapf(err, "decode event %s", id)
	}
	return ev, nil
}

// Attempt bumps and returns the claim count for id.
func (q *redisEventQueue) Attempt(ctx context.Context, id string) (int64, error) {
	n, err := q.rdb.HIncrBy(ctx, q.keys.Attempts, id, 1).Result()
	return n, apperr.Upstream(err, "event queue")
}

func (q *redisEventQueue) Ack(ctx context.Context, id string) error {
	processingKey, err := q.rdb.HGet(ctx, q.keys.ProcessingMap, id).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}

	_, err = q.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		if processingKey != "" {
			p.LRem(ctx, processingKey, 1, id)
		} else {
			// mapping lost, e.g. the reaper moved it; sweep every lane
			for _, ln := range q.lanes() {
				p.LRem(ctx, ln.ProcessingKey, 1, id)
			}
		}
		p.HDel(ctx, q.keys.ProcessingMap, id)
		p.HDel(ctx, q.keys.Payloads, id)
		p.HDel(ctx, q.keys.Attempts, id)
		return nil
	})
	return err
}

// RequeueStale moves items from processing lists back to their queues.
// Delivery is at-least-once: an item a live worker still holds may be
// delivered twice.
func (q *redisEventQueue) RequeueStale(ctx context.Context, maxPerLane int64) (int64, error) {
	var moved int64

	for _, ln := range q.lanes() {
		for i := int64(0); i < maxPerLane; i++ {
			id, err := q.rdb.RPopLPush(ctx, ln.ProcessingKey, ln.QueueKey).Result()
			if err != nil {
				if errors.Is(err, redis.Nil) {
					break
				}
				return moved, err
			}
			if id != "" {
				moved++
				_ = q.rdb.HDel(ctx, q.keys.ProcessingMap, id).Err()
			}
		}
	}

	return moved, nil
}
