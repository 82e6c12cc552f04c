package authinfra_test

import (
	"context"
	"testing"
	"time"

	"github.com/Abraxas-365/sentinel/pkg/iam/auth"
	"github.com/Abraxas-365/sentinel/pkg/iam/auth/authinfra"
	"github.com/Abraxas-365/sentinel/pkg/kernel"
	"github.com/Abraxas-365/sentinel/pkg/logx"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestRedisWebSessionStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	var store auth.WebSessionStore = authinfra.NewRedisWebSessionStore(client)
	ctx := context.Background()

	got, err := store.Get(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, got)

	require.NoError(t, store.Put(ctx, "s1", "access-token", time.Minute))
	got, err = store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "access-token", got)

	mr.FastForward(2 * time.Minute)
	got, err = store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, got)

	require.NoError(t, store.Put(ctx, "s2", "other", time.Minute))
	require.NoError(t, store.Delete(ctx, "s2"))
	got, err = store.Get(ctx, "s2")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRedisWebSessionStoreReportsBackendFailure(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	store := authinfra.NewRedisWebSessionStore(client)

	mr.Close()
	_, err := store.Get(context.Background(), "s1")
	assert.Error(t, err)
}

func TestMemoryWebSessionStore(t *testing.T) {
	store := authinfra.NewMemoryWebSessionStore()
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "s1", "tok", time.Hour))
	got, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "tok", got)

	require.NoError(t, store.Put(ctx, "s2", "tok", -time.Second))
	got, err = store.Get(ctx, "s2")
	require.NoError(t, err)
	assert.Empty(t, got)

	require.NoError(t, store.Delete(ctx, "s1"))
	got, _ = store.Get(ctx, "s1")
	assert.Empty(t, got)
}

func TestLogxAuditServiceWritesStructuredEvents(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	audit := authinfra.NewLogxAuditService(logx.NewLoggerWithCore(core))
	ctx := context.WithValue(context.Background(), kernel.RequestIDKey, "req-9")

	audit.LogLoginAttempt(ctx, "u1", false, "AUTH_INVALID_CREDENTIALS", "10.0.0.1", "curl")
	audit.LogAccessDenied(ctx, "", "AUTH_MISSING_TOKEN", "10.0.0.1", "/api/v1/roles")

	require.Equal(t, 2, logs.Len())
	first := logs.All()[0]
	assert.Equal(t, zapcore.WarnLevel, first.Level)
	assert.Equal(t, "login_attempt", first.ContextMap()["audit_event"])
	assert.Equal(t, "req-9", first.ContextMap()["request_id"])
	assert.Equal(t, "/api/v1/roles", logs.All()[1].ContextMap()["path"])
}
