package history

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisKeyPrefix namespaces history keys.
const DefaultRedisKeyPrefix = "lexichat"

// RedisStore keeps each session as a list at <prefix>:<session>:chat_history,
// newest turn at the head.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStore creates a Redis history store. A positive ttl expires a
// session that has not been written to for that long.
func NewRedisStore(client *redis.Client, prefix string, ttl time.Duration) (*RedisStore, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if prefix == "" {
		prefix = DefaultRedisKeyPrefix
	}
	return &RedisStore{client: client, prefix: prefix, ttl: ttl}, nil
}

func (s *RedisStore) key(session string) string {
	return s.prefix + ":" + session + ":chat_history"
}

func (s *RedisStore) Append(ctx context.Context, session string, turns ...Turn) error {
	if session == "" {
		return ErrEmptySession
	}
	if len(turns) == 0 {
		return nil
	}

	values := make([]any, len(turns))
	for i, t := range turns {
		data, err := json.Marshal(t)
		if err != nil {
			return fmt.Errorf("failed to marshal turn %s: %w", t.ID, err)
		}
		values[i] = data
	}

	key := s.key(session)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		// LPUSH with several values pushes them left to right, so the last
		// turn ends up at the head.
		pipe.LPush(ctx, key, values...)
		if s.ttl > 0 {
			pipe.Expire(ctx, key, s.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to append turns in redis: %w", err)
	}
	return nil
}

func (s *RedisStore) List(ctx context.Context, session string) ([]Turn, error) {
	if session == "" {
		return nil, ErrEmptySession
	}

	raw, err := s.client.LRange(ctx, s.key(session), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read turns from redis: %w", err)
	}

	turns := make([]Turn, 0, len(raw))
	for _, item := range raw {
		var t Turn
		if err := json.Unmarshal([]byte(item), &t); err != nil {
			return nil, fmt.Errorf("failed to parse turn from redis: %w", err)
		}
		turns = append(turns, t)
	}
	slices.Reverse(turns)
	return turns, nil
}

func (s *RedisStore) Clear(ctx context.Context, session string) error {
	if session == "" {
		return ErrEmptySession
	}
	if err := s.client.Del(ctx, s.key(session)).Err(); err != nil {
		return fmt.Errorf("failed to clear session in redis: %w", err)
	}
	return nil
}

// Close is a no-op; the client is managed by the storage layer.
func (s *RedisStore) Close() error {
	return nil
}
