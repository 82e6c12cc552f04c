package config_test

import (
	"testing"
	"time"

	"github.com/Abraxas-365/sentinel/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "0123456789abcdef0123456789abcdef"

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("AUTH_ACCESS_SECRET", secret)
	t.Setenv("AUTH_REFRESH_SECRET", secret+"-refresh")
	t.Setenv("ENV", "production")
	t.Setenv("AUTH_ACCESS_TOKEN_TTL", "5m")
	t.Setenv("AUTH_ROTATE_REFRESH_TOKENS", "true")
	t.Setenv("OAUTH_CODE_STORE", "redis")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 5*time.Minute, cfg.Auth.AccessTokenTTL)
	assert.Equal(t, 7*24*time.Hour, cfg.Auth.RefreshTokenTTL)
	assert.True(t, cfg.Auth.RotateRefreshToken)
	assert.True(t, cfg.Auth.SecureCookies)
	assert.False(t, cfg.Server.IsDevelopment())
	assert.Equal(t, "redis", cfg.OAuth.CodeStore)
	assert.Equal(t, 10*time.Minute, cfg.OAuth.CodeTTL)
}

func TestLoadRejectsShortSecret(t *testing.T) {
	t.Setenv("AUTH_ACCESS_SECRET", "short")
	t.Setenv("AUTH_REFRESH_SECRET", secret)

	_, err := config.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "access secret")
}

func TestValidateCodeStore(t *testing.T) {
	t.Setenv("AUTH_ACCESS_SECRET", secret)
	t.Setenv("AUTH_REFRESH_SECRET", secret)
	t.Setenv("OAUTH_CODE_STORE", "mongo")

	_, err := config.Load()
	require.Error(t, err)
}
