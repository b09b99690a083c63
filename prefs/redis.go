package prefs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisKeyPrefix namespaces preference keys.
const RedisKeyPrefix = "coinwatch:prefs:"

// RedisClient is the subset of the go-redis API used by [RedisStore].
// *redis.Client and *redis.ClusterClient satisfy it.
type RedisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// RedisStore keeps each user's preferences as a JSON string value.
type RedisStore struct {
	client RedisClient
	ttl    time.Duration
}

// NewRedisStore returns a RedisStore. A zero ttl stores keys without
// expiry.
func NewRedisStore(client RedisClient, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

// NewRedisClient opens a go-redis client for addr.
func NewRedisClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

// Load reads the preferences for userID.
func (s *RedisStore) Load(ctx context.Context, userID string) (Preferences, error) {
	if err := ValidateUser(userID); err != nil {
		return Preferences{}, err
	}
	b, err := s.client.Get(ctx, RedisKeyPrefix+userID).Bytes()
	if errors.Is(err, redis.Nil) {
		return Preferences{}, ErrNotFound
	}
	if err != nil {
		return Preferences{}, fmt.Errorf("redis get: %w", err)
	}
	var p Preferences
	if err := json.Unmarshal(b, &p); err != nil {
		return Preferences{}, fmt.Errorf("decode preferences: %w", err)
	}
	return p, nil
}

// Save writes the preferences for userID.
func (s *RedisStore) Save(ctx context.Context, userID string, p Preferences) error {
	if err := ValidateUser(userID); err != nil {
		return err
	}
	b, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode preferences: %w", err)
	}
	if err := s.client.Set(ctx, RedisKeyPrefix+userID, b, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Delete removes the preferences for userID.
func (s *RedisStore) Delete(ctx context.Context, userID string) error {
	if err := ValidateUser(userID); err != nil {
		return err
	}
	if err := s.client.Del(ctx, RedisKeyPrefix+userID).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}
