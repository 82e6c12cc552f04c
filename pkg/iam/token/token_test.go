package token_test

import (
	"strings"
	"testing"
	"time"

	"github.com/Abraxas-365/sentinel/pkg/errx"
	"github.com/Abraxas-365/sentinel/pkg/iam/token"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	accessSecret  = []byte("access-secret-access-secret-0001")
	refreshSecret = []byte("refresh-secret-refresh-secret-01")
)

func newCodec(t *testing.T) *token.Codec {
	t.Helper()
	c, err := token.NewCodec(token.Config{
		AccessSecret:  string(accessSecret),
		RefreshSecret: string(refreshSecret),
		Issuer:        "sentinel-test",
	})
	require.NoError(t, err)
	return c
}

func TestAccessRoundTrip(t *testing.T) {
	raw, err := token.SignAccess(token.AccessClaims{
		EncryptedUsername: "enc",
		Fingerprint:       "fp-1",
		Root:              true,
		Roles:             []string{"invoice:get"},
		RegisteredClaims:  jwt.RegisteredClaims{Subject: "user-1"},
	}, accessSecret, time.Minute)
	require.NoError(t, err)

	claims, err := token.VerifyAccess(raw, accessSecret)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, "enc", claims.EncryptedUsername)
	assert.Equal(t, "fp-1", claims.Fingerprint)
	assert.True(t, claims.Root)
	assert.Equal(t, []string{"invoice:get"}, claims.Roles)
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	raw, err := token.SignRefresh("user-1", "fp", "", refreshSecret, time.Minute)
	require.NoError(t, err)

	_, err = token.VerifyRefresh(raw, accessSecret)
	require.Error(t, err)
	assert.True(t, errx.IsCode(err, token.CodeInvalidToken))
}

func TestVerifyRejectsExpired(t *testing.T) {
	raw, err := token.SignRefresh("user-1", "fp", "", refreshSecret, -time.Minute)
	require.NoError(t, err)

	_, err = token.VerifyRefresh(raw, refreshSecret)
	require.Error(t, err)
	assert.True(t, errx.IsCode(err, token.CodeExpiredToken))
}

func TestVerifyRejectsTamperedPayload(t *testing.T) {
	raw, err := token.SignAccess(token.AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "user-1"},
	}, accessSecret, time.Minute)
	require.NoError(t, err)

	parts := strings.Split(raw, ".")
	require.Len(t, parts, 3)
	forged, err := token.SignAccess(token.AccessClaims{
		Root:             true,
		RegisteredClaims: jwt.RegisteredClaims{Subject: "user-1"},
	}, []byte("attacker-secret-attacker-secret-"), time.Minute)
	require.NoError(t, err)
	forgedParts := strings.Split(forged, ".")

	tampered := parts[0] + "." + forgedParts[1] + "." + parts[2]
	_, err = token.VerifyAccess(tampered, accessSecret)
	assert.Error(t, err)
}

func TestTokenTypesAreNotInterchangeable(t *testing.T) {
	raw, err := token.SignRefresh("user-1", "fp", "", accessSecret, time.Minute)
	require.NoError(t, err)

	_, err = token.VerifyAccess(raw, accessSecret)
	assert.Error(t, err)
}

func TestFieldEncryptionRoundTrip(t *testing.T) {
	for _, plain := range []string{"", "alice", "ünïcödé user", strings.Repeat("x", 512)} {
		ct, err := token.EncryptField(plain, accessSecret)
		require.NoError(t, err)
		assert.NotContains(t, ct, "alice")

		got, err := token.DecryptField(ct, accessSecret)
		require.NoError(t, err)
		assert.Equal(t, plain, got)
	}
}

func TestFieldEncryptionUsesFreshNonce(t *testing.T) {
	a, err := token.EncryptField("alice", accessSecret)
	require.NoError(t, err)
	b, err := token.EncryptField("alice", accessSecret)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestFieldDecryptionFailsClosed(t *testing.T) {
	ct, err := token.EncryptField("alice", accessSecret)
	require.NoError(t, err)

	got, err := token.DecryptField(ct, refreshSecret)
	assert.Error(t, err)
	assert.Empty(t, got)

	flipped := []byte(ct)
	if flipped[10] == 'A' {
		flipped[10] = 'B'
	} else {
		flipped[10] = 'A'
	}
	got, err = token.DecryptField(string(flipped), accessSecret)
	assert.Error(t, err)
	assert.Empty(t, got)

	for _, junk := range []string{"", "not-base64!!", "c2hvcnQ"} {
		got, err = token.DecryptField(junk, accessSecret)
		assert.Error(t, err)
		assert.Empty(t, got)
	}
}

func TestCodecIssuesDecryptableAccessToken(t *testing.T) {
	c := newCodec(t)
	raw, err := c.IssueAccess(token.AccessSpec{
		UserID:      "user-1",
		Username:    "alice",
		Fingerprint: "fp-1",
		Roles:       []string{"invoice:get"},
		TTL:         time.Minute,
	})
	require.NoError(t, err)
	assert.NotContains(t, raw, "alice")

	claims, err := c.VerifyAccess(raw)
	require.NoError(t, err)
	assert.Equal(t, "alice", c.DecryptUsername(claims))
	assert.Equal(t, "sentinel-test", claims.Issuer)

	claims.EncryptedUsername = "garbage"
	assert.Empty(t, c.DecryptUsername(claims))
}

func TestCodecParsesExpiredAccessForRefresh(t *testing.T) {
	c := newCodec(t)
	raw, err := c.IssueAccess(token.AccessSpec{UserID: "user-1", Username: "alice", Fingerprint: "fp", TTL: -time.Minute})
	require.NoError(t, err)

	_, err = c.VerifyAccess(raw)
	assert.True(t, errx.IsCode(err, token.CodeExpiredToken))

	claims, err := c.ParseAccessIgnoringExpiry(raw)
	require.NoError(t, err)
	assert.Equal(t, "fp", claims.Fingerprint)

	other, err := token.NewCodec(token.Config{AccessSecret: "another-access-secret-another-00"})
	require.NoError(t, err)
	_, err = other.ParseAccessIgnoringExpiry(raw)
	assert.Error(t, err)
}

func TestCodecRefreshUsesRefreshSecret(t *testing.T) {
	c := newCodec(t)
	raw, err := c.IssueRefresh("user-1", "fp", time.Hour)
	require.NoError(t, err)

	claims, err := c.VerifyRefresh(raw)
	require.NoError(t, err)
	assert.Equal(t, "fp", claims.Fingerprint)

	_, err = token.VerifyRefresh(raw, accessSecret)
	assert.Error(t, err)
}

func TestHash(t *testing.T) {
	assert.Equal(t, token.Hash("abc"), token.Hash("abc"))
	assert.NotEqual(t, token.Hash("abc"), token.Hash("abd"))
	assert.Len(t, token.Hash("abc"), 64)
}
