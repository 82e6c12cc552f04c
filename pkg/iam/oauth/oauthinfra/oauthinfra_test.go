package oauthinfra_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Abraxas-365/sentinel/pkg/errx"
	"github.com/Abraxas-365/sentinel/pkg/iam/oauth"
	"github.com/Abraxas-365/sentinel/pkg/iam/oauth/oauthinfra"
	"github.com/Abraxas-365/sentinel/pkg/iam/token"
	"github.com/Abraxas-365/sentinel/pkg/kernel"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCode(raw, state string, ttl time.Duration) *oauth.Code {
	now := time.Now()
	return &oauth.Code{
		CodeHash:          token.Hash(raw),
		State:             state,
		ClientID:          "client-1",
		UserID:            "u-alice",
		EncryptedUsername: "opaque",
		RedirectURI:       "https://app.example.com/cb",
		Scope:             "read",
		ExpiresAt:         now.Add(ttl),
		CreatedAt:         now,
	}
}

func codeRepositories(t *testing.T) map[string]oauth.CodeRepository {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return map[string]oauth.CodeRepository{
		"memory": oauthinfra.NewMemoryStore(),
		"redis":  oauthinfra.NewRedisCodeRepository(client),
	}
}

func TestCodeConsumeIsSingleUse(t *testing.T) {
	for name, repo := range codeRepositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, repo.Save(ctx, newCode("raw-1", "st-1", 10*time.Minute)))

			got, err := repo.Consume(ctx, token.Hash("raw-1"), "st-1")
			require.NoError(t, err)
			assert.Equal(t, kernel.UserID("u-alice"), got.UserID)
			assert.Equal(t, "https://app.example.com/cb", got.RedirectURI)

			_, err = repo.Consume(ctx, token.Hash("raw-1"), "st-1")
			assert.True(t, errx.IsCode(err, oauth.CodeCodeExpiredOrInvalid))
		})
	}
}

func TestCodeConsumeRequiresMatchingState(t *testing.T) {
	for name, repo := range codeRepositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, repo.Save(ctx, newCode("raw-2", "st-2", 10*time.Minute)))

			_, err := repo.Consume(ctx, token.Hash("raw-2"), "other")
			assert.True(t, errx.IsCode(err, oauth.CodeCodeExpiredOrInvalid))

			_, err = repo.Consume(ctx, token.Hash("raw-2"), "st-2")
			assert.NoError(t, err)
		})
	}
}

func TestConcurrentConsumeHasOneWinner(t *testing.T) {
	for name, repo := range codeRepositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, repo.Save(ctx, newCode("raw-3", "st-3", 10*time.Minute)))

			var wins, losses atomic.Int32
			var wg sync.WaitGroup
			for range 8 {
				wg.Add(1)
				go func() {
					defer wg.Done()
					if _, err := repo.Consume(ctx, token.Hash("raw-3"), "st-3"); err == nil {
						wins.Add(1)
					} else if errx.IsCode(err, oauth.CodeCodeExpiredOrInvalid) {
						losses.Add(1)
					}
				}()
			}
			wg.Wait()
			assert.Equal(t, int32(1), wins.Load())
			assert.Equal(t, int32(7), losses.Load())
		})
	}
}

func TestRedisCodesExpireWithTTL(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	repo := oauthinfra.NewRedisCodeRepository(client)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, newCode("raw-4", "st-4", 10*time.Minute)))
	mr.FastForward(11 * time.Minute)

	_, err := repo.Consume(ctx, token.Hash("raw-4"), "st-4")
	assert.True(t, errx.IsCode(err, oauth.CodeCodeExpiredOrInvalid))

	err = repo.Save(ctx, newCode("raw-5", "st-5", -time.Second))
	assert.True(t, errx.IsCode(err, oauth.CodeCodeExpiredOrInvalid))
}

func TestMemoryDeleteExpired(t *testing.T) {
	store := oauthinfra.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, newCode("live", "s", 10*time.Minute)))
	require.NoError(t, store.Save(ctx, newCode("dead", "s", -time.Minute)))

	n, err := store.DeleteExpired(ctx, time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, 1, store.CodeCount())
}

func TestMemoryClients(t *testing.T) {
	store := oauthinfra.NewMemoryStore()
	ctx := context.Background()
	c := &oauth.Client{ClientID: "c1", Name: "Reports", RedirectURIs: []string{"https://a.example.com/cb"}, IsActive: true, CreatedAt: time.Now()}

	require.NoError(t, store.Create(ctx, c))
	var conflict *errx.Error
	require.True(t, errx.As(store.Create(ctx, c), &conflict))
	assert.Equal(t, errx.TypeConflict, conflict.Type)

	got, err := store.FindByID(ctx, "c1")
	require.NoError(t, err)
	got.RedirectURIs[0] = "mutated"

	again, err := store.FindByID(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "https://a.example.com/cb", again.RedirectURIs[0])

	again.Name = "Renamed"
	require.NoError(t, store.Update(ctx, again))
	page, err := store.List(ctx, kernel.PaginationOptions{Page: 1, PageSize: 10})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "Renamed", page.Items[0].Name)

	require.NoError(t, store.Delete(ctx, "c1"))
	_, err = store.FindByID(ctx, "c1")
	assert.True(t, errx.IsCode(err, oauth.CodeClientNotFound))
	assert.True(t, errx.IsCode(store.Delete(ctx, "c1"), oauth.CodeClientNotFound))
}
