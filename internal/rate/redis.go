package rate

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// The window TTL is set only on the first hit. A key left without a TTL is
// repaired so it cannot pin a window forever.
const incrementWindowScript = `
local count = redis.call("INCR", KEYS[1])
if count == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
if ttl < 0 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
  ttl = tonumber(ARGV[1])
end
return {count, ttl}
`

var incrementWindowLua = redis.NewScript(incrementWindowScript)

// RedisBackend keeps window counters in Redis so all gateway processes
// share one view of each key.
type RedisBackend struct {
	redis redis.UniversalClient
}

// NewRedisBackend creates a [RedisBackend] on client.
func NewRedisBackend(client redis.UniversalClient) *RedisBackend {
	return &RedisBackend{redis: client}
}

// Increment implements [Backend] with a single Lua round trip.
func (b *RedisBackend) Increment(ctx context.Context, key string, window time.Duration, now time.Time) (int64, time.Time, error) {
	res, err := incrementWindowLua.Run(ctx, b.redis, []string{key}, window.Milliseconds()).Int64Slice()
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if len(res) != 2 {
		return 0, time.Time{}, fmt.Errorf("%w: unexpected script reply", ErrRedisUnavailable)
	}
	return res[0], now.Add(time.Duration(res[1]) * time.Millisecond), nil
}
