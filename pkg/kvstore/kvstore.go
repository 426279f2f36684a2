// Package kvstore wraps the Redis commands the agent actually uses behind a
// small interface so stores can be faked in tests and disabled in dev runs.
package kvstore

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store is the persistence surface for memories and rule sets.
type Store interface {
	// Get returns the raw value and whether the key existed.
	Get(ctx context.Context, key string) (string, bool, error)
	// Set writes the value with a TTL. A zero ttl means no expiry.
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	// Delete removes the key; missing keys are not an error.
	Delete(ctx context.Context, key string) error
}

type redisStore struct {
	client *redis.Client
}

// Option adjusts the Redis client before it is handed to the store.
type Option func(*redis.Options)

// WithPassword sets the AUTH password.
func WithPassword(pw string) Option {
	return func(o *redis.Options) { o.Password = pw }
}

// WithDB selects a logical database.
func WithDB(db int) Option {
	return func(o *redis.Options) { o.DB = db }
}

// NewRedis builds a Store backed by a single Redis endpoint.
func NewRedis(addr string, opts ...Option) Store {
	ro := &redis.Options{Addr: addr}
	for _, opt := range opts {
		opt(ro)
	}
	return &redisStore{client: redis.NewClient(ro)}
}

// NewFromClient wraps an existing client; used by tests.
func NewFromClient(client *redis.Client) Store {
	return &redisStore{client: client}
}

func (s *redisStore) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

func (s *redisStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return s.client.Set(ctx, key, value, ttl).Err()
}

func (s *redisStore) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, key).Err()
}
