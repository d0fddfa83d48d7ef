package admission

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// DefaultCounterKey is the Redis key of the shared counter.
const DefaultCounterKey = "translator:inflight"

// A missing or non-numeric counter is re-initialized to 0 before the check.
var acquireScript = redis.NewScript(`
local v = tonumber(redis.call('GET', KEYS[1]))
if not v then
  v = 0
  redis.call('SET', KEYS[1], 0)
end
if v >= tonumber(ARGV[1]) then
  return {0, v}
end
redis.call('INCR', KEYS[1])
return {1, v}
`)

var releaseScript = redis.NewScript(`
local v = tonumber(redis.call('GET', KEYS[1]))
if not v then
  redis.call('SET', KEYS[1], 0)
  return {0, 0}
end
if v <= 0 then
  return {0, v}
end
return {1, redis.call('DECR', KEYS[1])}
`)

// RedisStore keeps the counter in Redis so every instance pointing at the
// same key shares one limit.
type RedisStore struct {
	client redis.UniversalClient
	key    string
}

// NewRedisStore creates a store on client using key (DefaultCounterKey if empty).
func NewRedisStore(client redis.UniversalClient, key string) *RedisStore {
	if key == "" {
		key = DefaultCounterKey
	}
	return &RedisStore{client: client, key: key}
}

func (s *RedisStore) TryAcquire(ctx context.Context, limit int64) (bool, int64, error) {
	res, err := acquireScript.Run(ctx, s.client, []string{s.key}, limit).Int64Slice()
	if err != nil {
		return false, 0, fmt.Errorf("acquire %s: %w", s.key, err)
	}
	if len(res) != 2 {
		return false, 0, fmt.Errorf("acquire %s: unexpected script result %v", s.key, res)
	}
	return res[0] == 1, res[1], nil
}

func (s *RedisStore) Release(ctx context.Context) (bool, int64, error) {
	res, err := releaseScript.Run(ctx, s.client, []string{s.key}).Int64Slice()
	if err != nil {
		return false, 0, fmt.Errorf("release %s: %w", s.key, err)
	}
	if len(res) != 2 {
		return false, 0, fmt.Errorf("release %s: unexpected script result %v", s.key, res)
	}
	return res[0] == 1, res[1], nil
}

func (s *RedisStore) Reset(ctx context.Context) error {
	if err := s.client.Set(ctx, s.key, 0, 0).Err(); err != nil {
		return fmt.Errorf("reset %s: %w", s.key, err)
	}
	return nil
}

func (s *RedisStore) Current(ctx context.Context) (int64, error) {
	v, err := s.client.Get(ctx, s.key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", s.key, err)
	}
	return v, nil
}
