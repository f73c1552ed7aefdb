package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisKeyPrefix namespaces token keys in Redis.
const RedisKeyPrefix = "mycase:tokens"

// RedisStore shares tokens between processes through Redis, so a refresh in
// one worker is picked up by the others.
type RedisStore struct {
	redis *redis.Client
	key   string
}

// NewRedisStore creates a Redis-backed store for the given firm.
// An empty firm ID uses the "default" slot.
func NewRedisStore(redisClient *redis.Client, firmID string) *RedisStore {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	if firmID == "" {
		firmID = "default"
	}
	return &RedisStore{
		redis: redisClient,
		key:   RedisKeyPrefix + ":" + firmID,
	}
}

// Key returns the Redis key holding the token set.
func (s *RedisStore) Key() string {
	return s.key
}

// Load implements Store.
func (s *RedisStore) Load(ctx context.Context) (*Tokens, error) {
	data, err := s.redis.Get(ctx, s.key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrNoTokens
		}
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var tokens Tokens
	if err := json.Unmarshal(data, &tokens); err != nil {
		return nil, fmt.Errorf("parse stored tokens: %w", err)
	}
	return &tokens, nil
}

// Save implements Store. The key expires together with the refresh token;
// past that point the tokens are useless anyway.
func (s *RedisStore) Save(ctx context.Context, tokens *Tokens) error {
	if tokens == nil {
		return fmt.Errorf("tokens cannot be nil")
	}

	data, err := json.Marshal(tokens)
	if err != nil {
		return fmt.Errorf("marshal tokens: %w", err)
	}

	ttl := RefreshTokenLifetime
	if !tokens.SavedAt.IsZero() {
		ttl = time.Until(tokens.SavedAt.Add(RefreshTokenLifetime))
		if ttl <= 0 {
			// Already past the refresh window; keep it briefly for inspection.
			ttl = time.Minute
		}
	}

	if err := s.redis.Set(ctx, s.key, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Clear implements Store.
func (s *RedisStore) Clear(ctx context.Context) error {
	if err := s.redis.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}
