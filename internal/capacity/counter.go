// Package capacity implements the fast-path attendee counter kept in
// Redis.  The counter approximates the committed attendee units per
// occurrence so overloaded occurrences can be rejected before the
// authoritative database transaction runs.  It is never treated as
// ground truth: every admission is still re-validated under a row
// lock, and the counter is reseeded from the relational aggregate at
// process start.
package capacity

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ysakura/event-campaign-backend/internal/logger"
)

// Counter tracks per-occurrence attendee units in Redis.  A nil
// client disables the fast path entirely: every operation reports the
// path as unavailable and the authoritative check decides alone.
type Counter struct {
	rdb *redis.Client
}

// NewCounter wraps the given Redis client.  The client may be nil.
func NewCounter(rdb *redis.Client) *Counter { return &Counter{rdb: rdb} }

func key(occurrenceID uint64) string {
	return fmt.Sprintf("capacity:occ:%d", occurrenceID)
}

// reserveScript atomically admits or rejects a reservation against
// the tracked counter.  An absent key means the occurrence is not
// fast-path tracked (ended, already full at seed time, or flushed);
// in that case the attempt is allowed through untracked and nothing
// is written, so an untracked occurrence never starts counting from
// zero.
var reserveScript = redis.NewScript(`
    local current = redis.call('GET', KEYS[1])
    if not current then
        return {1, 0}
    end
    local units = tonumber(ARGV[1])
    local max = tonumber(ARGV[2])
    if tonumber(current) + units > max then
        return {0, 0}
    end
    redis.call('INCRBY', KEYS[1], units)
    return {1, 1}
`)

// releaseScript credits units back, but only to a key that exists and
// never below zero.
var releaseScript = redis.NewScript(`
    if redis.call('EXISTS', KEYS[1]) == 0 then
        return -1
    end
    local value = redis.call('DECRBY', KEYS[1], tonumber(ARGV[1]))
    if value < 0 then
        redis.call('SET', KEYS[1], 0)
        value = 0
    end
    return value
`)

// TryReserve attempts to claim units against the occurrence's
// counter before the authoritative transaction runs.  allowed is
// false only when the tracked counter shows the occurrence full:
// that is the cheap early rejection.  reserved is true when the
// counter was actually incremented and must be compensated by
// Release if the authoritative transaction later fails for any
// reason other than the resource being gone.  Counter-store errors
// are logged and reported as allowed-but-unreserved; they never
// block the authoritative path.
func (c *Counter) TryReserve(ctx context.Context, occurrenceID uint64, units, maxAttendee uint32) (allowed, reserved bool) {
	if c == nil || c.rdb == nil {
		return true, false
	}
	vals, err := reserveScript.Run(ctx, c.rdb, []string{key(occurrenceID)}, units, maxAttendee).Int64Slice()
	if err != nil || len(vals) != 2 {
		logger.Warn("capacity counter reserve unavailable",
			zap.Uint64("occurrence_id", occurrenceID), zap.Error(err))
		return true, false
	}
	return vals[0] == 1, vals[1] == 1
}

// Release credits units back to the occurrence's counter.  Invoked
// when a fast-path reservation could not be committed, and when a
// committed registration is cancelled.  Best effort: errors are
// logged and swallowed, the counter self-corrects at the next seed.
func (c *Counter) Release(ctx context.Context, occurrenceID uint64, units uint32) {
	if c == nil || c.rdb == nil {
		return
	}
	if err := releaseScript.Run(ctx, c.rdb, []string{key(occurrenceID)}, units).Err(); err != nil {
		logger.Warn("capacity counter release failed",
			zap.Uint64("occurrence_id", occurrenceID), zap.Error(err))
	}
}

// Current returns the tracked unit count for an occurrence, or -1
// when the occurrence is untracked or the store is unavailable.
func (c *Counter) Current(ctx context.Context, occurrenceID uint64) int64 {
	if c == nil || c.rdb == nil {
		return -1
	}
	v, err := c.rdb.Get(ctx, key(occurrenceID)).Int64()
	if err != nil {
		return -1
	}
	return v
}

// Set seeds the counter for an occurrence to an absolute value.
func (c *Counter) Set(ctx context.Context, occurrenceID uint64, units uint32) error {
	if c == nil || c.rdb == nil {
		return nil
	}
	return c.rdb.Set(ctx, key(occurrenceID), units, 0).Err()
}

// Drop removes the counter for an occurrence, turning off fast-path
// tracking for it.
func (c *Counter) Drop(ctx context.Context, occurrenceID uint64) error {
	if c == nil || c.rdb == nil {
		return nil
	}
	return c.rdb.Del(ctx, key(occurrenceID)).Err()
}

// Ping verifies the counter store is reachable.  Used by the health
// endpoint; a failure only means the fast path is degraded.
func (c *Counter) Ping(ctx context.Context) error {
	if c == nil || c.rdb == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return c.rdb.Ping(ctx).Err()
}
