// Package location keeps each technician's most recent reported position
// in Redis with a TTL, so the dispatch board can start routes from where
// technicians actually are.
package location

import (
	"context"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"dispatch-service/internal/apperr"
	"dispatch-service/internal/entity"
	"dispatch-service/internal/geo"
)

type Tracker interface {
	Record(ctx context.Context, companyID, techID uuid.UUID, pos entity.Position) error
	// Latest returns known positions keyed by technician. Technicians with
	// no live position are absent from the map.
	Latest(ctx context.Context, companyID uuid.UUID, techIDs []uuid.UUID) (map[uuid.UUID]entity.Position, error)
}

type RedisTracker struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisTracker(rdb *redis.Client, prefix string, ttl time.Duration) *RedisTracker {
	return &RedisTracker{rdb: rdb, prefix: prefix, ttl: ttl}
}

func (t *RedisTracker) key(companyID, techID uuid.UUID) string {
	return t.prefix + companyID.String() + ":" + techID.String()
}

func (t *RedisTracker) Record(ctx context.Context, companyID, techID uuid.UUID, pos entity.Position) error {
	if err := pos.Location.Validate(); err != nil {
		return err
	}
	key := t.key(companyID, techID)

	_, err := t.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, key,
			"lat", strconv.FormatFloat(pos.Location.Lat, 'f', -1, 64),
			"lng", strconv.FormatFloat(pos.Location.Lng, 'f', -1, 64),
			"at", pos.At.UTC().Format(time.RFC3339Nano),
		)
		if t.ttl > 0 {
			p.Expire(ctx, key, t.ttl)
		}
		return nil
	})
	return apperr.Upstream(err, "location store")
}

func (t *RedisTracker) Latest(ctx context.Context, companyID uuid.UUID, techIDs []uuid.UUID) (map[uuid.UUID]entity.Position, error) {
	out := make(map[uuid.UUID]entity.Position, len(techIDs))
	if len(techIDs) == 0 {
		return out, nil
	}

	pipe := t.rdb.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(techIDs))
	for i, id := range techIDs {
		cmds[i] = pipe.HGetAll(ctx, t.key(companyID, id))
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, apperr.Upstream(err, "location store")
	}

	for i, cmd := range cmds {
		fields, err := cmd.Result()
		if err != nil || len(fields) == 0 {
			continue
		}
		pos, ok := parsePosition(fields)
		if !ok {
			continue
		}
		out[techIDs[i]] = pos
	}
	return out, nil
}

func parsePosition(fields map[string]string) (entity.Position, bool) {
	lat, err := strconv.ParseFloat(fields["lat"], 64)
	if err != nil {
		return entity.Position{}, false
	}
	lng, err := strconv.ParseFloat(fields["lng"], 64)
	if err != nil {
		return entity.Position{}, false
	}
	at, err := time.Parse(time.RFC3339Nano, fields["at"])
	if err != nil {
		return entity.Position{}, false
	}
	loc := geo.LatLng{Lat: lat, Lng: lng}
	if loc.Validate() != nil {
		return entity.Position{}, false
	}
	return entity.Position{Location: loc, At: at}, true
}

// Nop discards positions. Used when Redis is not configured.
type Nop struct{}

func (Nop) Record(context.Context, uuid.UUID, uuid.UUID, entity.Position) error { return nil }

func (Nop) Latest(context.Context, uuid.UUID, []uuid.UUID) (map[uuid.UUID]entity.Position, error) {
	return map[uuid.UUID]entity.Position{}, nil
}
