package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	pkgredis "github.com/angelmondragon/scanmarket-backend/pkg/redis"
)

type redisClient interface {
	Get(ctx context.Context, key string) (string, error)
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	IdempotencyKey(scope, id string) string
}

var _ redisClient = (*pkgredis.Client)(nil)

// RedisStore keeps records under sm:idempotency:{scope}:{key} with a TTL.
type RedisStore struct {
	client redisClient
	ttl    time.Duration
}

func NewRedisStore(client redisClient, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) Find(ctx context.Context, scope Scope) (*Record, error) {
	raw, err := s.client.Get(ctx, s.client.IdempotencyKey(scope.Prefix(), scope.Key))
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	var record Record
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		return nil, err
	}
	return &record, nil
}

func (s *RedisStore) Save(ctx context.Context, scope Scope, record Record) error {
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	payload, err := json.Marshal(record)
	if err != nil {
		return err
	}
	_, err = s.client.SetNX(ctx, s.client.IdempotencyKey(scope.Prefix(), scope.Key), string(payload), s.ttl)
	return err
}
