package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// slidingWindow trims the window, counts the remaining entries and records
// the new request when under the limit
var slidingWindow = redis.NewScript(`
	local key = KEYS[1]
	local now = tonumber(ARGV[1])
	local window_start = tonumber(ARGV[2])
	local limit = tonumber(ARGV[3])
	local ttl = tonumber(ARGV[4])

	redis.call('ZREMRANGEBYSCORE', key, 0, window_start)
	local current = redis.call('ZCARD', key)
	if current < limit then
		redis.call('ZADD', key, now, now)
		redis.call('EXPIRE', key, ttl)
		return {1, current + 1}
	end
	return {0, current}
`)

// RedisRateLimiter implements a Redis-backed sliding window rate limiter
type RedisRateLimiter struct {
	client redis.Cmdable
	prefix string
}

// NewRedisRateLimiter creates a limiter storing its windows under prefix
func NewRedisRateLimiter(client redis.Cmdable, prefix string) (*RedisRateLimiter, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	if prefix == "" {
		prefix = "waypoint:ratelimit:"
	}
	return &RedisRateLimiter{client: client, prefix: prefix}, nil
}

// Allow checks if a request should be allowed for the given key using sliding window
func (r *RedisRateLimiter) Allow(ctx context.Context, key string, policy Policy) (*RateLimitInfo, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	now := time.Now()
	ttl := int(policy.Window.Seconds())
	if ttl < 1 {
		ttl = 1
	}

	result, err := slidingWindow.Run(ctx, r.client, []string{r.prefix + key},
		now.UnixNano(),
		now.Add(-policy.Window).UnixNano(),
		policy.Limit,
		ttl,
	).Result()
	if err != nil {
		return nil, fmt.Errorf("redis rate limit check failed: %w", err)
	}

	values, ok := result.([]interface{})
	if !ok || len(values) != 2 {
		return nil, errors.New("unexpected redis script result")
	}
	allowed, ok := values[0].(int64)
	if !ok {
		return nil, errors.New("invalid allowed value from redis")
	}
	count, ok := values[1].(int64)
	if !ok {
		return nil, errors.New("invalid count value from redis")
	}

	remaining := policy.Limit - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return &RateLimitInfo{
		Limit:     policy.Limit,
		Remaining: remaining,
		ResetAt:   now.Add(policy.Window),
		Allowed:   allowed == 1,
	}, nil
}

// Count returns the number of requests recorded for key in the current window
func (r *RedisRateLimiter) Count(ctx context.Context, key string, window time.Duration) (int, error) {
	redisKey := r.prefix + key
	start := time.Now().Add(-window)

	pipe := r.client.Pipeline()
	pipe.ZRemRangeByScore(ctx, redisKey, "0", strconv.FormatInt(start.UnixNano(), 10))
	card := pipe.ZCard(ctx, redisKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("failed to get count: %w", err)
	}
	return int(card.Val()), nil
}
