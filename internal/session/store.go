// internal/session/store.go
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Corphon/OverwatchVoice/internal/config"
	"github.com/Corphon/OverwatchVoice/internal/models"
)

var (
	ErrNotFound         = errors.New("session not found")
	ErrInvalidStoreType = errors.New("invalid session store type")
	ErrInvalidConfig    = errors.New("invalid session store config")
)

// Store mirrors live session metadata for observability.
// It never holds conversation content and nothing is restored from it at start-up.
type Store interface {
	// Put creates or replaces the entry for info.ID.
	Put(ctx context.Context, info models.SessionInfo) error

	// Touch updates state and last-activity time. Returns ErrNotFound
	// if the entry does not exist.
	Touch(ctx context.Context, id, state string, at time.Time) error

	// Delete removes the entry. Deleting a missing entry is not an error.
	Delete(ctx context.Context, id string) error

	// List returns all live entries.
	List(ctx context.Context) ([]models.SessionInfo, error)

	// Close releases any resources.
	Close() error
}

// StoreOption is a functional option for configuring a session store.
type StoreOption func(*storeConfig)

type storeConfig struct {
	redisClient *redis.Client
	redisTTL    time.Duration
}

// WithRedisClient sets the Redis client for the Redis store.
func WithRedisClient(client *redis.Client) StoreOption {
	return func(c *storeConfig) {
		c.redisClient = client
	}
}

// WithRedisTTL sets the TTL for Redis keys.
func WithRedisTTL(ttl time.Duration) StoreOption {
	return func(c *storeConfig) {
		c.redisTTL = ttl
	}
}

// NewStore creates a store of the given type ("memory" or "redis").
func NewStore(storeType string, opts ...StoreOption) (Store, error) {
	cfg := &storeConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	switch storeType {
	case config.SessionStoreMemory, "":
		return NewMemoryStore(), nil
	case config.SessionStoreRedis:
		if cfg.redisClient == nil {
			return nil, ErrInvalidConfig
		}
		return NewRedisStore(cfg.redisClient, cfg.redisTTL), nil
	default:
		return nil, ErrInvalidStoreType
	}
}

// NewFromConfig builds the configured store. For redis it parses REDIS_URL
// and pings the server so a bad address fails at start-up.
func NewFromConfig(ctx context.Context, cfg *config.Config) (Store, error) {
	if cfg.SessionStore != config.SessionStoreRedis {
		return NewStore(cfg.SessionStore)
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}

	return NewStore(config.SessionStoreRedis, WithRedisClient(client), WithRedisTTL(cfg.SessionTTL))
}
