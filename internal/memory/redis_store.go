package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/reeltrip/reeltrip/internal/domain"
)

const sessionKeyPrefix = "reeltrip:session:"

// RedisStore persists session memory as one JSON blob per session key.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore creates a Redis-backed session store. A zero ttl keeps
// sessions forever.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

// Load fetches a session's memory. Missing sessions return a zero value.
func (s *RedisStore) Load(ctx context.Context, sessionID string) (domain.SessionMemory, error) {
	raw, err := s.client.Get(ctx, sessionKeyPrefix+sessionID).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.SessionMemory{SessionID: sessionID}, nil
	}
	if err != nil {
		return domain.SessionMemory{}, fmt.Errorf("failed to load session memory: %w", err)
	}

	var mem domain.SessionMemory
	if err := json.Unmarshal(raw, &mem); err != nil {
		return domain.SessionMemory{}, fmt.Errorf("failed to decode session memory: %w", err)
	}
	return mem, nil
}

// Save writes a session's memory, refreshing the TTL.
func (s *RedisStore) Save(ctx context.Context, mem domain.SessionMemory) error {
	raw, err := json.Marshal(mem)
	if err != nil {
		return fmt.Errorf("failed to encode session memory: %w", err)
	}
	if err := s.client.Set(ctx, sessionKeyPrefix+mem.SessionID, raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save session memory: %w", err)
	}
	return nil
}

// Delete removes a session's memory.
func (s *RedisStore) Delete(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, sessionKeyPrefix+sessionID).Err(); err != nil {
		return fmt.Errorf("failed to delete session memory: %w", err)
	}
	return nil
}
