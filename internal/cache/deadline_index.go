package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/marcinucieklak/examhub/internal/config"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// DeadlineIndex is a sorted set of in-progress sessions scored by their
// timeout in unix milliseconds. The database stays authoritative; the index only
// tells the timeout worker where to look.
type DeadlineIndex struct {
	rdb *redis.Client
	log zerolog.Logger
}

// NewDeadlineIndex creates a DeadlineIndex.
func NewDeadlineIndex(rdb *redis.Client, log zerolog.Logger) *DeadlineIndex {
	return &DeadlineIndex{
		rdb: rdb,
		log: log.With().Str("component", "deadline_index").Logger(),
	}
}

// Schedule records or moves the deadline of a session.
func (d *DeadlineIndex) Schedule(ctx context.Context, sessionID uuid.UUID, at time.Time) error {
	return d.rdb.ZAdd(ctx, config.WorkerKey.SessionDeadlines, redis.Z{
		Score:  float64(at.UnixMilli()),
		Member: sessionID.String(),
	}).Err()
}

// Cancel removes a session from the index.
func (d *DeadlineIndex) Cancel(ctx context.Context, sessionID uuid.UUID) error {
	return d.rdb.ZRem(ctx, config.WorkerKey.SessionDeadlines, sessionID.String()).Err()
}

// Due returns up to limit sessions whose deadline is at or before now,
// earliest first. Members that are not UUIDs are dropped from the set.
func (d *DeadlineIndex) Due(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	members, err := d.rdb.ZRangeByScore(ctx, config.WorkerKey.SessionDeadlines, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(now.UnixMilli(), 10),
		Count: int64(limit),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("range deadlines: %w", err)
	}

	ids := make([]uuid.UUID, 0, len(members))
	for _, m := range members {
		id, err := uuid.Parse(m)
		if err != nil {
			d.log.Warn().Str("member", m).Msg("Dropping malformed deadline entry")
			d.rdb.ZRem(ctx, config.WorkerKey.SessionDeadlines, m)
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Len returns the number of scheduled sessions.
func (d *DeadlineIndex) Len(ctx context.Context) (int64, error) {
	return d.rdb.ZCard(ctx, config.WorkerKey.SessionDeadlines).Result()
}

// ErrLockHeld is returned by AcquireSweepLock when another replica holds it.
var ErrLockHeld = errors.New("sweep lock held by another replica")

// AcquireSweepLock takes the cross-replica sweep lock for ttl. The returned
// release func only deletes the lock while this holder still owns it.
func (d *DeadlineIndex) AcquireSweepLock(ctx context.Context, holder string, ttl time.Duration) (func(), error) {
	ok, err := d.rdb.SetNX(ctx, config.WorkerKey.SweepLock, holder, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire sweep lock: %w", err)
	}
	if !ok {
		return nil, ErrLockHeld
	}

	release := func() {
		// Release on a fresh context so shutdown still frees the lock.
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := releaseScript.Run(ctx, d.rdb, []string{config.WorkerKey.SweepLock}, holder).Err(); err != nil && !errors.Is(err, redis.Nil) {
			d.log.Warn().Err(err).Msg("Failed to release sweep lock")
		}
	}
	return release, nil
}

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)
