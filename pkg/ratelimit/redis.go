package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// consumeScript increments the window counter and reads its TTL in a single
// atomic round trip. The first increment of a window arms the expiry; a
// missing TTL (key created without one, e.g. after a partial failure) is
// re-armed rather than left to live forever. Over-limit increments are kept:
// the caller marks the request denied but the counter keeps climbing until
// the window expires.
var consumeScript = redis.NewScript(`
local count = redis.call('INCR', KEYS[1])
if count == 1 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
local ttl = redis.call('PTTL', KEYS[1])
if ttl < 0 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
  ttl = tonumber(ARGV[1])
end
return {count, ttl}
`)

type RedisStore struct {
	client       *redis.Client
	timeProvider func() time.Time
}

type RedisStoreOpts struct {
	TimeProvider func() time.Time
}

func NewRedisStore(client *redis.Client, opts *RedisStoreOpts) *RedisStore {
	timeProvider := time.Now
	if opts != nil && opts.TimeProvider != nil {
		timeProvider = opts.TimeProvider
	}
	return &RedisStore{
		client:       client,
		timeProvider: timeProvider,
	}
}

func (s *RedisStore) Consume(ctx context.Context, clientID string, class Class, quota Quota) (Decision, error) {
	key := fmt.Sprintf("ratelimit:%s:%s", class, clientID)

	res, err := consumeScript.Run(ctx, s.client, []string{key}, quota.Window.Milliseconds()).Result()
	if err != nil {
		return Decision{}, fmt.Errorf("failed to consume rate limit unit: %w", err)
	}

	values, ok := res.([]interface{})
	if !ok || len(values) != 2 {
		return Decision{}, fmt.Errorf("unexpected rate limit script reply: %v", res)
	}
	count, ok := values[0].(int64)
	if !ok {
		return Decision{}, fmt.Errorf("unexpected rate limit count reply: %v", values[0])
	}
	ttlMillis, ok := values[1].(int64)
	if !ok {
		return Decision{}, fmt.Errorf("unexpected rate limit ttl reply: %v", values[1])
	}

	now := s.timeProvider()
	remaining := quota.Limit - count
	if remaining < 0 {
		remaining = 0
	}

	return Decision{
		Allowed:   count <= quota.Limit,
		Limit:     quota.Limit,
		Remaining: remaining,
		ResetAt:   now.Add(time.Duration(ttlMillis) * time.Millisecond).Unix(),
	}, nil
}
