// internal/session/redis.go
package session

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Corphon/OverwatchVoice/internal/models"
)

const (
	// Redis key prefix for session entries
	sessionKeyPrefix = "overwatch:session:"
	// Default TTL; heartbeats refresh it while the session is alive
	defaultTTL = 2 * time.Minute
)

// RedisStore implements Store using Redis keys with a TTL, so entries of a
// crashed process disappear on their own.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore creates a new Redis-based session store.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &RedisStore{client: client, ttl: ttl}
}

// Put implements Store.
func (s *RedisStore) Put(ctx context.Context, info models.SessionInfo) error {
	val, err := json.Marshal(info)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.key(info.ID), val, s.ttl).Err()
}

// Touch implements Store using WATCH/MULTI/EXEC so concurrent touches do not
// lose updates.
func (s *RedisStore) Touch(ctx context.Context, id, state string, at time.Time) error {
	key := s.key(id)

	return s.client.Watch(ctx, func(tx *redis.Tx) error {
		val, err := tx.Get(ctx, key).Bytes()
		if err == redis.Nil {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		var info models.SessionInfo
		if err := json.Unmarshal(val, &info); err != nil {
			return err
		}
		info.State = state
		info.LastActivity = at

		newVal, err := json.Marshal(info)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, newVal, s.ttl)
			return nil
		})
		return err
	}, key)
}

// Delete implements Store.
func (s *RedisStore) Delete(ctx context.Context, id string) error {
	return s.client.Del(ctx, s.key(id)).Err()
}

// List implements Store.
func (s *RedisStore) List(ctx context.Context) ([]models.SessionInfo, error) {
	var keys []string
	iter := s.client.Scan(ctx, 0, sessionKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return []models.SessionInfo{}, nil
	}

	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	out := make([]models.SessionInfo, 0, len(vals))
	for _, v := range vals {
		// 键可能在 SCAN 与 MGET 之间过期
		str, ok := v.(string)
		if !ok {
			continue
		}
		var info models.SessionInfo
		if err := json.Unmarshal([]byte(str), &info); err != nil {
			continue
		}
		out = append(out, info)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ConnectedAt.Before(out[j].ConnectedAt) })
	return out, nil
}

// Close implements Store.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) key(id string) string {
	return sessionKeyPrefix + id
}
