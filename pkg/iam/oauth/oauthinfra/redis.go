package oauthinfra

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/Abraxas-365/sentinel/pkg/errx"
	"github.com/Abraxas-365/sentinel/pkg/iam/oauth"
	"github.com/Abraxas-365/sentinel/pkg/iam/token"
	"github.com/redis/go-redis/v9"
)

const codeKeyPrefix = "sentinel:oauth:code:"

// RedisCodeRepository stores codes with a TTL and consumes them with
// GETDEL, which is atomic on the server.
type RedisCodeRepository struct {
	client redis.UniversalClient
	prefix string
}

var _ oauth.CodeRepository = (*RedisCodeRepository)(nil)

func NewRedisCodeRepository(client redis.UniversalClient) *RedisCodeRepository {
	return &RedisCodeRepository{client: client, prefix: codeKeyPrefix}
}

// key binds the state into the key so a wrong state never touches the code
func (r *RedisCodeRepository) key(codeHash, state string) string {
	return r.prefix + codeHash + ":" + token.Hash(state)
}

func (r *RedisCodeRepository) Save(ctx context.Context, c *oauth.Code) error {
	ttl := time.Until(c.ExpiresAt)
	if ttl <= 0 {
		return oauth.ErrCodeExpiredOrInvalid()
	}
	data, err := json.Marshal(c)
	if err != nil {
		return errx.Wrap(err, "failed to encode authorization code", errx.TypeInternal)
	}
	if err := r.client.Set(ctx, r.key(c.CodeHash, c.State), data, ttl).Err(); err != nil {
		return errx.Wrap(err, "failed to save authorization code", errx.TypeInternal)
	}
	return nil
}

func (r *RedisCodeRepository) Consume(ctx context.Context, codeHash, state string) (*oauth.Code, error) {
	data, err := r.client.GetDel(ctx, r.key(codeHash, state)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, oauth.ErrCodeExpiredOrInvalid()
	}
	if err != nil {
		return nil, errx.Wrap(err, "failed to consume authorization code", errx.TypeInternal)
	}
	var c oauth.Code
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, errx.Wrap(err, "failed to decode authorization code", errx.TypeInternal)
	}
	return &c, nil
}

// DeleteExpired is a no-op: Redis expires the keys itself
func (r *RedisCodeRepository) DeleteExpired(context.Context, time.Time) (int64, error) {
	return 0, nil
}
