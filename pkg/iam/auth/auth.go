package auth

import (
	"net/http"

	"github.com/Abraxas-365/sentinel/pkg/errx"
)

// Literal values some clients send in place of a missing token
var absentTokens = map[string]bool{"": true, "null": true, "undefined": true}

// Clean returns "" for values that only stand in for a missing token
func Clean(raw string) string {
	if absentTokens[raw] {
		return ""
	}
	return raw
}

// ============================================================================
// Error Registry
// ============================================================================

var ErrRegistry = errx.NewRegistry("AUTH")

var (
	CodeMissingToken        = ErrRegistry.Register("MISSING_TOKEN", errx.TypeAuthorization, http.StatusUnauthorized, "Unauthorized")
	CodeInvalidToken        = ErrRegistry.Register("INVALID_TOKEN", errx.TypeAuthorization, http.StatusUnauthorized, "Unauthorized")
	CodeRefreshRequired     = ErrRegistry.Register("REFRESH_REQUIRED", errx.TypeAuthorization, http.StatusUnauthorized, "Access token expired, refresh required")
	CodeRootRequired        = ErrRegistry.Register("ROOT_REQUIRED", errx.TypeAuthorization, http.StatusUnauthorized, "Unauthorized")
	CodeSessionInvalid      = ErrRegistry.Register("SESSION_INVALID", errx.TypeAuthorization, http.StatusUnauthorized, "Unauthorized")
	CodeInsufficientRole    = ErrRegistry.Register("INSUFFICIENT_ROLE", errx.TypeAuthorization, http.StatusUnauthorized, "Unauthorized")
	CodeFingerprintMismatch = ErrRegistry.Register("FINGERPRINT_MISMATCH", errx.TypeForbidden, http.StatusForbidden, "Forbidden")
	CodeInvalidCredentials  = ErrRegistry.Register("INVALID_CREDENTIALS", errx.TypeAuthorization, http.StatusUnauthorized, "Invalid credentials")
	CodeUserBlocked         = ErrRegistry.Register("USER_BLOCKED", errx.TypeAuthorization, http.StatusUnauthorized, "User is blocked")
	CodeMissingRefreshToken = ErrRegistry.Register("MISSING_REFRESH_TOKEN", errx.TypeAuthorization, http.StatusUnauthorized, "Refresh token required")
	CodeInvalidRefreshToken = ErrRegistry.Register("INVALID_REFRESH_TOKEN", errx.TypeAuthorization, http.StatusUnauthorized, "Invalid refresh token")
	CodeTokenMismatch       = ErrRegistry.Register("TOKEN_MISMATCH", errx.TypeAuthorization, http.StatusUnauthorized, "Token pair mismatch")
)

func ErrMissingToken() *errx.Error        { return ErrRegistry.New(CodeMissingToken) }
func ErrInvalidToken() *errx.Error        { return ErrRegistry.New(CodeInvalidToken) }
func ErrRefreshRequired() *errx.Error     { return ErrRegistry.New(CodeRefreshRequired) }
func ErrRootRequired() *errx.Error        { return ErrRegistry.New(CodeRootRequired) }
func ErrSessionInvalid() *errx.Error      { return ErrRegistry.New(CodeSessionInvalid) }
func ErrInsufficientRole() *errx.Error    { return ErrRegistry.New(CodeInsufficientRole) }
func ErrFingerprintMismatch() *errx.Error { return ErrRegistry.New(CodeFingerprintMismatch) }
func ErrInvalidCredentials() *errx.Error  { return ErrRegistry.New(CodeInvalidCredentials) }
func ErrUserBlocked() *errx.Error         { return ErrRegistry.New(CodeUserBlocked) }
func ErrMissingRefreshToken() *errx.Error { return ErrRegistry.New(CodeMissingRefreshToken) }
func ErrInvalidRefreshToken() *errx.Error { return ErrRegistry.New(CodeInvalidRefreshToken) }
func ErrTokenMismatch() *errx.Error       { return ErrRegistry.New(CodeTokenMismatch) }
