package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"dispatch-service/internal/entity"
	"dispatch-service/internal/metrics"
	"dispatch-service/internal/notify"
)

type fakeDeliverer struct {
	mu        sync.Mutex
	delivered []entity.Event
	err       error
}

func (d *fakeDeliverer) Deliver(ctx context.Context, ev entity.Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.delivered = append(d.delivered, ev)
	return nil
}

func (d *fakeDeliverer) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.delivered)
}

func setupQueue(t *testing.T) (notify.Queue, *miniredis.Miniredis, notify.Keys) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	keys := notify.KeysFrom("test:events", "test:events:processing")
	return notify.NewRedisQueue(rdb, keys), mr, keys
}

func publish(t *testing.T, q notify.Queue, p entity.Priority) entity.Event {
	t.Helper()
	ev := entity.Event{
		ID:         uuid.New(),
		Type:       entity.EventAssignmentCreated,
		CompanyID:  uuid.New(),
		Priority:   p,
		OccurredAt: time.Now().UTC(),
	}
	require.NoError(t, q.Publish(context.Background(), ev))
	return ev
}

func TestProcessor_DeliversAndFinishes(t *testing.T) {
	ctx := context.Background()
	q, _, _ := setupQueue(t)
	d := &fakeDeliverer{}
	p := NewProcessor(q, d, metrics.NewNoopSink(), nil, time.Second)

	ev := publish(t, q, entity.PriorityHigh)
	id, err := q.ClaimBlocking(ctx, time.Second)
	require.NoError(t, err)

	done, err := p.Process(ctx, id)
	require.NoError(t, err)
	assert.True(t, done)
	require.Equal(t, 1, d.count())
	assert.Equal(t, ev.ID, d.delivered[0].ID)
}

func TestProcessor_RetriesThenGivesUp(t *testing.T) {
	ctx := context.Background()
	q, _, _ := setupQueue(t)
	d := &fakeDeliverer{err: errors.New("sns down")}
	p := NewProcessor(q, d, nil, nil, time.Second)
	p.maxAttempts = 3

	publish(t, q, entity.PriorityNormal)
	id, err := q.ClaimBlocking(ctx, time.Second)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		done, err := p.Process(ctx, id)
		assert.Error(t, err)
		assert.False(t, done, "attempt %d", i+1)
	}

	done, err := p.Process(ctx, id)
	assert.Error(t, err)
	assert.True(t, done)
}

func TestProcessor_MissingPayloadIsDropped(t *testing.T) {
	q, _, _ := setupQueue(t)
	p := NewProcessor(q, &fakeDeliverer{}, nil, nil, 0)

	done, err := p.Process(context.Background(), uuid.NewString())
	require.NoError(t, err)
	assert.True(t, done)
}

func TestProcessor_UndecodablePayloadIsDropped(t *testing.T) {
	q, mr, keys := setupQueue(t)
	d := &fakeDeliverer{}
	p := NewProcessor(q, d, nil, nil, 0)

	mr.HSet(keys.Payloads, "bad", "{not json")

	done, err := p.Process(context.Background(), "bad")
	require.NoError(t, err)
	assert.True(t, done)
	assert.Zero(t, d.count())
}

func TestPool_RunDeliversEverything(t *testing.T) {
	q, mr, keys := setupQueue(t)
	d := &fakeDeliverer{}
	p := NewProcessor(q, d, nil, nil, time.Second)
	pool := NewPool(q, p, 2, nil)
	pool.claimDelay = time.Second

	publish(t, q, entity.PriorityLow)
	publish(t, q, entity.PriorityEmergency)
	publish(t, q, entity.PriorityNormal)

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		pool.Run(ctx)
		close(stopped)
	}()

	require.Eventually(t, func() bool { return d.count() == 3 }, 5*time.Second, 20*time.Millisecond)
	cancel()

	select {
	case <-stopped:
	case <-time.After(10 * time.Second):
		t.Fatal("pool did not stop")
	}

	assert.False(t, mr.Exists(keys.Payloads))
	for _, ln := range []notify.Lane{keys.High, keys.Normal, keys.Low} {
		items, _ := mr.List(ln.ProcessingKey)
		assert.Empty(t, items)
	}
}

// brokenQueue fails every claim as a lost Redis connection would.
type brokenQueue struct {
	notify.Queue
	claims atomic.Int64
}

func (q *brokenQueue) ClaimBlocking(ctx context.Context, timeout time.Duration) (string, error) {
	q.claims.Add(1)
	return "", errors.New("dial tcp 127.0.0.1:6379: connect: connection refused")
}

func TestPool_RunBacksOffOnClaimErrors(t *testing.T) {
	q := &brokenQueue{}
	core, logs := observer.New(zap.WarnLevel)
	pool := NewPool(q, NewProcessor(q, &fakeDeliverer{}, nil, nil, time.Second), 1, zap.New(core))
	pool.minBackoff = 20 * time.Millisecond
	pool.maxBackoff = 50 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	stopped := make(chan struct{})
	go func() {
		pool.Run(ctx)
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("pool did not stop")
	}

	claims := q.claims.Load()
	assert.GreaterOrEqual(t, claims, int64(2))
	assert.Less(t, claims, int64(20))
	assert.NotZero(t, logs.FilterMessage("claim event").Len())
}

func TestPool_BackoffIsCapped(t *testing.T) {
	pool := NewPool(nil, nil, 1, nil)

	var got []time.Duration
	var b time.Duration
	for i := 0; i < 8; i++ {
		b = pool.nextBackoff(b)
		got = append(got, b)
	}

	assert.Equal(t, 100*time.Millisecond, got[0])
	assert.Equal(t, 200*time.Millisecond, got[1])
	assert.Equal(t, 5*time.Second, got[len(got)-1])
}

func TestRunReaper_RequeuesStuckEvents(t *testing.T) {
	q, mr, keys := setupQueue(t)
	publish(t, q, entity.PriorityNormal)
	_, err := q.ClaimBlocking(context.Background(), time.Second)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go RunReaper(ctx, q, 20*time.Millisecond, 10, metrics.NewNoopSink(), zap.NewNop())

	require.Eventually(t, func() bool {
		items, _ := mr.List(keys.Normal.QueueKey)
		return len(items) == 1
	}, 2*time.Second, 10*time.Millisecond)
}
