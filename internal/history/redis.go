package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	dErrors "starkshield/pkg/domain-errors"
)

// DefaultRedisKey holds the history list.
const DefaultRedisKey = "starkshield:verifications"

const maxUpdateRetries = 5

// RedisStore keeps entries in a Redis list, newest at the head.
type RedisStore struct {
	client redis.UniversalClient
	key    string
}

func NewRedisStore(client redis.UniversalClient, key string) *RedisStore {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisStore{client: client, key: key}
}

func (s *RedisStore) Append(ctx context.Context, e Entry) error {
	raw, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode history entry: %w", err)
	}
	if err := s.client.LPush(ctx, s.key, raw).Err(); err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	return nil
}

func (s *RedisStore) List(ctx context.Context) ([]Entry, error) {
	return s.list(ctx, s.client)
}

func (s *RedisStore) list(ctx context.Context, c redis.Cmdable) ([]Entry, error) {
	items, err := c.LRange(ctx, s.key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	entries := make([]Entry, 0, len(items))
	for i, item := range items {
		var e Entry
		if err := json.Unmarshal([]byte(item), &e); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeDecoding, fmt.Sprintf("history entry %d is corrupt: %v", i, err))
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// Update rewrites the list inside WATCH so a concurrent Append forces a retry
// instead of being overwritten.
func (s *RedisStore) Update(ctx context.Context, fn func([]Entry) []Entry) error {
	txf := func(tx *redis.Tx) error {
		entries, err := s.list(ctx, tx)
		if err != nil {
			return err
		}
		updated := fn(entries)
		values := make([]any, 0, len(updated))
		for _, e := range updated {
			raw, err := json.Marshal(e)
			if err != nil {
				return fmt.Errorf("encode history entry: %w", err)
			}
			values = append(values, raw)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, s.key)
			if len(values) > 0 {
				pipe.RPush(ctx, s.key, values...)
			}
			return nil
		})
		return err
	}

	for range maxUpdateRetries {
		err := s.client.Watch(ctx, txf, s.key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return fmt.Errorf("update history: %w", err)
		}
		return nil
	}
	return fmt.Errorf("update history: %w", redis.TxFailedErr)
}

func (s *RedisStore) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("clear history: %w", err)
	}
	return nil
}
