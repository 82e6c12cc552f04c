// Package token signs and verifies the access/refresh pair and encrypts
// the username claim carried inside access tokens.
package token

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"

	"github.com/Abraxas-365/sentinel/pkg/errx"
	"github.com/Abraxas-365/sentinel/pkg/kernel"
	"github.com/golang-jwt/jwt/v5"
)

const (
	TypeAccess  = "access"
	TypeRefresh = "refresh"
)

// AccessClaims are carried by short lived access tokens. Subject is the user id.
type AccessClaims struct {
	Type              string   `json:"typ"`
	EncryptedUsername string   `json:"usr"`
	Fingerprint       string   `json:"fgp"`
	Root              bool     `json:"root"`
	Roles             []string `json:"roles"`
	jwt.RegisteredClaims
}

// UserID returns the subject as a typed id
func (c *AccessClaims) UserID() kernel.UserID {
	return kernel.UserID(c.Subject)
}

// RefreshClaims are deliberately minimal
type RefreshClaims struct {
	Type        string `json:"typ"`
	Fingerprint string `json:"fgp"`
	jwt.RegisteredClaims
}

func (c *RefreshClaims) UserID() kernel.UserID {
	return kernel.UserID(c.Subject)
}

// Pair is what login hands back to the client
type Pair struct {
	AccessToken  string `json:"token"`
	RefreshToken string `json:"refreshToken"`
}

// Hash is the one-way digest persisted in place of a raw refresh token
func Hash(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// ============================================================================
// Error Registry
// ============================================================================

var ErrRegistry = errx.NewRegistry("TOKEN")

var (
	CodeInvalidToken     = ErrRegistry.Register("INVALID", errx.TypeAuthorization, http.StatusUnauthorized, "Invalid token")
	CodeExpiredToken     = ErrRegistry.Register("EXPIRED", errx.TypeAuthorization, http.StatusUnauthorized, "Token expired")
	CodeSigningFailed    = ErrRegistry.Register("SIGNING_FAILED", errx.TypeInternal, http.StatusInternalServerError, "Token signing failed")
	CodeEncryptionFailed = ErrRegistry.Register("ENCRYPTION_FAILED", errx.TypeInternal, http.StatusInternalServerError, "Field encryption failed")
	CodeDecryptionFailed = ErrRegistry.Register("DECRYPTION_FAILED", errx.TypeAuthorization, http.StatusUnauthorized, "Invalid token")
)

func ErrInvalidToken() *errx.Error {
	return ErrRegistry.New(CodeInvalidToken)
}

func ErrExpiredToken() *errx.Error {
	return ErrRegistry.New(CodeExpiredToken)
}

func ErrSigningFailed(cause error) *errx.Error {
	return ErrRegistry.NewWithCause(CodeSigningFailed, cause)
}

func ErrEncryptionFailed(cause error) *errx.Error {
	return ErrRegistry.NewWithCause(CodeEncryptionFailed, cause)
}

func ErrDecryptionFailed() *errx.Error {
	return ErrRegistry.New(CodeDecryptionFailed)
}
