package authinfra

import (
	"context"
	"errors"
	"time"

	"github.com/Abraxas-365/sentinel/pkg/errx"
	"github.com/Abraxas-365/sentinel/pkg/iam/auth"
	"github.com/Abraxas-365/sentinel/pkg/kernel"
	"github.com/redis/go-redis/v9"
)

const webSessionKeyPrefix = "sentinel:websession:"

var _ auth.WebSessionStore = (*RedisWebSessionStore)(nil)

// RedisWebSessionStore keeps browser access tokens in Redis keyed by
// session id. Entries expire with the token they hold.
type RedisWebSessionStore struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisWebSessionStore(client redis.UniversalClient) *RedisWebSessionStore {
	return &RedisWebSessionStore{client: client, prefix: webSessionKeyPrefix}
}

func (s *RedisWebSessionStore) key(id kernel.SessionID) string {
	return s.prefix + id.String()
}

func (s *RedisWebSessionStore) Put(ctx context.Context, id kernel.SessionID, accessToken string, ttl time.Duration) error {
	if err := s.client.Set(ctx, s.key(id), accessToken, ttl).Err(); err != nil {
		return errx.Wrap(err, "failed to store web session", errx.TypeInternal)
	}
	return nil
}

func (s *RedisWebSessionStore) Get(ctx context.Context, id kernel.SessionID) (string, error) {
	val, err := s.client.Get(ctx, s.key(id)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", errx.Wrap(err, "failed to read web session", errx.TypeInternal)
	}
	return val, nil
}

func (s *RedisWebSessionStore) Delete(ctx context.Context, id kernel.SessionID) error {
	if err := s.client.Del(ctx, s.key(id)).Err(); err != nil {
		return errx.Wrap(err, "failed to delete web session", errx.TypeInternal)
	}
	return nil
}
