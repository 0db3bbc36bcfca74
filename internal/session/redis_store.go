package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aryan0dhankhar/academyportal/internal/domain"
	"github.com/aryan0dhankhar/academyportal/internal/infrastructure/redis"
)

// KV is the subset of the Redis client the store needs
type KV interface {
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Replace(ctx context.Context, key string, value interface{}) error
	Get(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, keys ...string) error
}

// RedisStore keeps session records in Redis so every portal replica sees the same sessions
type RedisStore struct {
	kv     KV
	logger *slog.Logger
}

// NewRedisStore creates a new Redis-backed store
func NewRedisStore(kv KV, logger *slog.Logger) *RedisStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisStore{kv: kv, logger: logger}
}

func (s *RedisStore) Save(ctx context.Context, rec Record, ttl time.Duration) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	if err := s.kv.Set(ctx, KeyFor(rec.Token), string(data), ttl); err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}
	return nil
}

func (s *RedisStore) Load(ctx context.Context, token string) (*Record, error) {
	data, err := s.kv.Get(ctx, KeyFor(token))
	if err != nil {
		if errors.Is(err, redis.ErrKeyNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	var rec Record
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		s.logger.Warn("discarding unreadable session record", slog.String("error", err.Error()))
		return nil, domain.ErrNotFound
	}
	return &rec, nil
}

func (s *RedisStore) Mirror(ctx context.Context, token string, identity *domain.Identity) error {
	rec, err := s.Load(ctx, token)
	if err != nil {
		return err
	}
	rec.Identity = identity
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	if err := s.kv.Replace(ctx, KeyFor(token), string(data)); err != nil {
		if errors.Is(err, redis.ErrKeyNotFound) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("failed to update session: %w", err)
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context, token string) error {
	if err := s.kv.Delete(ctx, KeyFor(token)); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}
