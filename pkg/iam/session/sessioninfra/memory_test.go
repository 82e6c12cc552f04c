package sessioninfra_test

import (
	"context"
	"sync"
	"testing"

	"github.com/Abraxas-365/sentinel/pkg/errx"
	"github.com/Abraxas-365/sentinel/pkg/iam/session"
	"github.com/Abraxas-365/sentinel/pkg/iam/session/sessioninfra"
	"github.com/Abraxas-365/sentinel/pkg/kernel"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSession(fp string, userID kernel.UserID, ip string) session.Session {
	return session.Session{
		ID:               kernel.SessionID(uuid.NewString()),
		Fingerprint:      fp,
		UserID:           userID,
		RefreshTokenHash: "hash-" + ip,
		IPAddress:        ip,
	}
}

func TestUpsertKeepsOneRowPerFingerprint(t *testing.T) {
	ctx := context.Background()
	repo := sessioninfra.NewMemorySessionRepository()

	first, err := repo.Upsert(ctx, newSession("fp-1", "u1", "10.0.0.1"))
	require.NoError(t, err)
	assert.Empty(t, first.PreviousID)

	second, err := repo.Upsert(ctx, newSession("fp-1", "u1", "10.0.0.2"))
	require.NoError(t, err)
	assert.Equal(t, first.Session.ID, second.PreviousID)
	assert.Equal(t, first.Session.CreatedAt, second.Session.CreatedAt)

	assert.Equal(t, 1, repo.Count())
	stored, err := repo.FindByFingerprint(ctx, "fp-1")
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.2", stored.IPAddress)
	assert.Equal(t, "hash-10.0.0.2", stored.RefreshTokenHash)
	assert.False(t, stored.Revoked)
}

func TestConcurrentUpsertsDoNotDuplicate(t *testing.T) {
	ctx := context.Background()
	repo := sessioninfra.NewMemorySessionRepository()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.Upsert(ctx, newSession("fp-race", "u1", "10.0.0.1"))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, repo.Count())
}

func TestUpsertRevivesRevokedSession(t *testing.T) {
	ctx := context.Background()
	repo := sessioninfra.NewMemorySessionRepository()

	res, err := repo.Upsert(ctx, newSession("fp-1", "u1", "10.0.0.1"))
	require.NoError(t, err)
	require.NoError(t, repo.Revoke(ctx, res.Session.ID, "u1"))

	_, err = repo.FindActive(ctx, "u1", "fp-1")
	assert.True(t, errx.IsCode(err, session.CodeSessionNotFound))

	_, err = repo.Upsert(ctx, newSession("fp-1", "u1", "10.0.0.1"))
	require.NoError(t, err)
	active, err := repo.FindActive(ctx, "u1", "fp-1")
	require.NoError(t, err)
	assert.NotEqual(t, res.Session.ID, active.ID)
}

func TestRevokeRequiresOwner(t *testing.T) {
	ctx := context.Background()
	repo := sessioninfra.NewMemorySessionRepository()
	res, err := repo.Upsert(ctx, newSession("fp-x", "user-x", "10.0.0.1"))
	require.NoError(t, err)

	err = repo.Revoke(ctx, res.Session.ID, "user-y")
	assert.True(t, errx.IsCode(err, session.CodeSessionNotFound))

	s, err := repo.FindByID(ctx, res.Session.ID)
	require.NoError(t, err)
	assert.False(t, s.Revoked)
}

func TestUpdateRefreshHash(t *testing.T) {
	ctx := context.Background()
	repo := sessioninfra.NewMemorySessionRepository()
	res, err := repo.Upsert(ctx, newSession("fp-1", "u1", "10.0.0.1"))
	require.NoError(t, err)

	require.NoError(t, repo.UpdateRefreshHash(ctx, res.Session.ID, ""))
	s, _ := repo.FindByID(ctx, res.Session.ID)
	assert.Equal(t, "hash-10.0.0.1", s.RefreshTokenHash)

	require.NoError(t, repo.UpdateRefreshHash(ctx, res.Session.ID, "rotated"))
	s, _ = repo.FindByID(ctx, res.Session.ID)
	assert.Equal(t, "rotated", s.RefreshTokenHash)
}

func TestListByUser(t *testing.T) {
	ctx := context.Background()
	repo := sessioninfra.NewMemorySessionRepository()
	for _, fp := range []string{"a", "b", "c"} {
		_, err := repo.Upsert(ctx, newSession(fp, "u1", "10.0.0.1"))
		require.NoError(t, err)
	}
	_, err := repo.Upsert(ctx, newSession("d", "u2", "10.0.0.1"))
	require.NoError(t, err)

	page, err := repo.ListByUser(ctx, "u1", kernel.PaginationOptions{Page: 1, PageSize: 2})
	require.NoError(t, err)
	assert.Len(t, page.Items, 2)
	assert.Equal(t, 3, page.Page.Total)
}
