package auth

import (
	"context"
	"time"

	"github.com/Abraxas-365/sentinel/pkg/iam/fingerprint"
	"github.com/Abraxas-365/sentinel/pkg/iam/token"
	"github.com/Abraxas-365/sentinel/pkg/kernel"
)

// Request is everything the Engine reads from an incoming request
type Request struct {
	// SessionID is the session-id cookie; it keys the server side token vault
	SessionID    kernel.SessionID
	BearerToken  string
	RefreshToken string
	Client       fingerprint.RequestContext
}

// SessionValidator is implemented by the session lifecycle service
type SessionValidator interface {
	ValidateSession(ctx context.Context, claims *token.AccessClaims) (bool, error)
	ValidateRefreshToken(ctx context.Context, raw string) (bool, error)
}

// WebSessionStore keeps the current access token for browser sessions so
// the token itself never has to live in client script.
type WebSessionStore interface {
	Put(ctx context.Context, id kernel.SessionID, accessToken string, ttl time.Duration) error
	// Get returns "" and no error when nothing is stored
	Get(ctx context.Context, id kernel.SessionID) (string, error)
	Delete(ctx context.Context, id kernel.SessionID) error
}

// AuditService records security relevant events
type AuditService interface {
	LogLoginAttempt(ctx context.Context, userID kernel.UserID, success bool, reason, ip, userAgent string)
	LogLogout(ctx context.Context, userID kernel.UserID, sessionID kernel.SessionID, ip string)
	LogTokenRefresh(ctx context.Context, userID kernel.UserID, ip string, rotated bool)
	LogAccessDenied(ctx context.Context, userID kernel.UserID, reason, ip, path string)
}
