package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore implements Store on a Redis keyspace. Keys are scoped per user
// as offergo:{user}:{key}.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis connects a RedisStore. A zero ttl keeps values until logout
// clears them.
func NewRedis(addr, password string, db int, ttl time.Duration) *RedisStore {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	return &RedisStore{client: client, ttl: ttl}
}

// NewRedisWithClient wraps an existing client; used by tests with miniredis.
func NewRedisWithClient(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

// Ping verifies connectivity at startup.
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) redisKey(user, key string) string {
	return fmt.Sprintf("offergo:%s:%s", user, key)
}

// PutJSON marshals v and stores it under the user-scoped key.
func (s *RedisStore) PutJSON(ctx context.Context, user, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("session encode %s: %w", key, err)
	}
	if err := s.client.Set(ctx, s.redisKey(user, key), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("session store %s: %w", key, err)
	}
	return nil
}

// GetJSON decodes the stored value into out. Missing keys and corrupt JSON
// both report (false, nil).
func (s *RedisStore) GetJSON(ctx context.Context, user, key string, out any) (bool, error) {
	raw, err := s.client.Get(ctx, s.redisKey(user, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("session load %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		// corrupt persisted state is treated as absence
		return false, nil
	}
	return true, nil
}

// Delete removes the given keys; absent keys are ignored.
func (s *RedisStore) Delete(ctx context.Context, user string, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, 0, len(keys))
	for _, k := range keys {
		full = append(full, s.redisKey(user, k))
	}
	if err := s.client.Del(ctx, full...).Err(); err != nil {
		return fmt.Errorf("session delete: %w", err)
	}
	return nil
}
