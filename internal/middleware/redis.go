package middleware

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisLimiter is a fixed-window counter shared by every process using the
// same Redis. When Redis is unreachable it defers to Fallback, or allows the
// event if there is none.
type RedisLimiter struct {
	client    *redis.Client
	limit     int64
	window    time.Duration
	keyPrefix string
	Fallback  Limiter
	log       zerolog.Logger
}

// windowScript increments the counter and makes sure it carries a TTL. A key
// left without one is given the window on its next hit.
var windowScript = redis.NewScript(`
local count = redis.call('INCR', KEYS[1])
if redis.call('PTTL', KEYS[1]) < 0 then
	redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return count
`)

// NewRedisLimiter allows limit events per window for each key.
func NewRedisLimiter(client *redis.Client, limit int, window time.Duration, log zerolog.Logger) *RedisLimiter {
	return &RedisLimiter{
		client:    client,
		limit:     int64(limit),
		window:    window,
		keyPrefix: "connectchat:ratelimit:",
		log:       log,
	}
}

// Allow increments the counter of the current window for key.
func (r *RedisLimiter) Allow(ctx context.Context, key string) bool {
	k := r.keyPrefix + key
	count, err := windowScript.Run(ctx, r.client, []string{k}, r.window.Milliseconds()).Int64()
	if err != nil {
		r.log.Warn().Err(err).Str("key", key).Msg("redis rate limit unavailable")
		if r.Fallback != nil {
			return r.Fallback.Allow(ctx, key)
		}
		return true
	}
	return count <= r.limit
}

// NewRedisClient connects to addr and pings it.
func NewRedisClient(ctx context.Context, addr, password string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}
