package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jwebster45206/museum-guide/pkg/progress"
	"github.com/jwebster45206/museum-guide/pkg/storage"
	"github.com/redis/go-redis/v9"
)

// RedisStorage keeps one progress snapshot per profile as a JSON string.
type RedisStorage struct {
	client    *redis.Client
	logger    *slog.Logger
	keyPrefix string
}

// Ensure RedisStorage implements Storage interface
var _ storage.Storage = (*RedisStorage)(nil)

// NewRedisStorage creates a Redis storage from a redis:// URL
func NewRedisStorage(redisURL string, keyPrefix string, logger *slog.Logger) (*RedisStorage, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	return NewRedisStorageFromClient(redis.NewClient(opt), keyPrefix, logger), nil
}

// NewRedisStorageFromClient wraps an existing client
func NewRedisStorageFromClient(client *redis.Client, keyPrefix string, logger *slog.Logger) *RedisStorage {
	if keyPrefix == "" {
		keyPrefix = "museum-guide:progress"
	}
	return &RedisStorage{
		client:    client,
		logger:    logger,
		keyPrefix: keyPrefix,
	}
}

// Client returns the underlying Redis client for direct operations
func (r *RedisStorage) Client() *redis.Client {
	return r.client
}

// Health and lifecycle methods

func (r *RedisStorage) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

func (r *RedisStorage) Close() error {
	if err := r.client.Close(); err != nil {
		r.logger.Error("Failed to close Redis connection", "error", err)
		return err
	}
	r.logger.Info("Redis connection closed")
	return nil
}

// WaitForConnection waits for Redis to become available (used during startup)
func (r *RedisStorage) WaitForConnection(ctx context.Context, maxRetries int, retryDelay time.Duration) error {
	for i := 0; i < maxRetries; i++ {
		if err := r.Ping(ctx); err != nil {
			r.logger.Debug("Redis not ready yet", "error", err, "attempt", i+1)

			select {
			case <-ctx.Done():
				return fmt.Errorf("context cancelled while waiting for redis: %w", ctx.Err())
			case <-time.After(retryDelay):
				continue
			}
		}

		r.logger.Info("Redis connection established")
		return nil
	}

	return fmt.Errorf("redis did not become available after %d attempts", maxRetries)
}

func (r *RedisStorage) key(profileID uuid.UUID) string {
	return r.keyPrefix + ":" + profileID.String()
}

// Snapshot operations

func (r *RedisStorage) SaveSnapshot(ctx context.Context, profileID uuid.UUID, snap *progress.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		r.logger.Error("Failed to marshal progress snapshot", "profile_id", profileID, "error", err)
		return fmt.Errorf("failed to marshal progress snapshot: %w", err)
	}

	// Progress persists across restarts, so no expiration
	if err := r.client.Set(ctx, r.key(profileID), data, 0).Err(); err != nil {
		r.logger.Error("Failed to save progress snapshot", "profile_id", profileID, "error", err)
		return fmt.Errorf("failed to save progress snapshot: %w", err)
	}
	return nil
}

func (r *RedisStorage) LoadSnapshot(ctx context.Context, profileID uuid.UUID) (*progress.Snapshot, error) {
	data, err := r.client.Get(ctx, r.key(profileID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			r.logger.Debug("Progress snapshot not found", "profile_id", profileID)
			return nil, nil
		}
		r.logger.Error("Failed to load progress snapshot", "profile_id", profileID, "error", err)
		return nil, fmt.Errorf("failed to load progress snapshot: %w", err)
	}
	if len(data) == 0 {
		return nil, nil
	}

	var snap progress.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		r.logger.Error("Failed to unmarshal progress snapshot", "profile_id", profileID, "error", err)
		return nil, fmt.Errorf("failed to unmarshal progress snapshot: %w", err)
	}
	return &snap, nil
}

func (r *RedisStorage) DeleteSnapshot(ctx context.Context, profileID uuid.UUID) error {
	if err := r.client.Del(ctx, r.key(profileID)).Err(); err != nil {
		r.logger.Error("Failed to delete progress snapshot", "profile_id", profileID, "error", err)
		return fmt.Errorf("failed to delete progress snapshot: %w", err)
	}
	return nil
}
