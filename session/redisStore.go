package session

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "csv:"

// RedisStore shares uploads between instances. Entries expire after TTL;
// a zero TTL keeps them until evicted.
type RedisStore struct {
	client redis.UniversalClient
	ttl    time.Duration
}

func NewRedisStore(client redis.UniversalClient, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) Get(ctx context.Context, id string) (string, error) {
	text, err := s.client.Get(ctx, keyPrefix+id).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrNotFound
		}
		return "", err
	}
	return text, nil
}

func (s *RedisStore) Set(ctx context.Context, id string, text string) error {
	return s.client.Set(ctx, keyPrefix+id, text, s.ttl).Err()
}

func (s *RedisStore) Evict(ctx context.Context, id string) error {
	return s.client.Del(ctx, keyPrefix+id).Err()
}
