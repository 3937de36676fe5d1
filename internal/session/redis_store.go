// Package session stores in-progress pipeline snapshots in Redis. A snapshot
// lives under its authoring-session ID with a TTL; saved content is the
// relational store's concern, this is only the transient working state.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"studio/api/internal/pipeline"
)

// ErrNotFound reports a session that does not exist or has expired.
var ErrNotFound = errors.New("session not found or expired")

// RedisStore holds pipeline snapshots in Redis keyed by session ID.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(redisURL string, ttl time.Duration) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewRedisStoreWithClient(client, ttl), nil
}

// NewRedisStoreWithClient creates a store from an existing Redis client.
func NewRedisStoreWithClient(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &RedisStore{
		client: client,
		prefix: "pipeline:",
		ttl:    ttl,
	}
}

func (s *RedisStore) key(sessionID string) string {
	return s.prefix + sessionID
}

// Save writes the snapshot for a session and refreshes its TTL.
func (s *RedisStore) Save(ctx context.Context, sessionID string, snap pipeline.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := s.client.Set(ctx, s.key(sessionID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// Load reads the snapshot for a session. Returns ErrNotFound when the
// session is unknown or its TTL has elapsed.
func (s *RedisStore) Load(ctx context.Context, sessionID string) (pipeline.Snapshot, error) {
	data, err := s.client.Get(ctx, s.key(sessionID)).Bytes()
	if err == redis.Nil {
		return pipeline.Snapshot{}, ErrNotFound
	}
	if err != nil {
		return pipeline.Snapshot{}, fmt.Errorf("load snapshot: %w", err)
	}

	var snap pipeline.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return pipeline.Snapshot{}, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return snap, nil
}

// Delete removes a session's snapshot.
func (s *RedisStore) Delete(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, s.key(sessionID)).Err(); err != nil {
		return fmt.Errorf("delete snapshot: %w", err)
	}
	return nil
}

// Touch refreshes a session's TTL without rewriting the snapshot.
func (s *RedisStore) Touch(ctx context.Context, sessionID string) error {
	ok, err := s.client.Expire(ctx, s.key(sessionID), s.ttl).Result()
	if err != nil {
		return fmt.Errorf("touch snapshot: %w", err)
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ping checks if Redis is reachable.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
