package session

import (
	"net/http"
	"time"

	"github.com/Abraxas-365/sentinel/pkg/errx"
	"github.com/Abraxas-365/sentinel/pkg/kernel"
)

// Session binds a fingerprint and user to a revocation flag and the hash
// of the current refresh token. Rows are soft deleted through Revoked.
type Session struct {
	ID               kernel.SessionID `db:"id" json:"id"`
	Fingerprint      string           `db:"fingerprint" json:"-"`
	UserID           kernel.UserID    `db:"user_id" json:"user_id"`
	RefreshTokenHash string           `db:"refresh_token_hash" json:"-"`
	IPAddress        string           `db:"ip_address" json:"ip_address"`
	UserAgent        string           `db:"user_agent" json:"user_agent"`
	Device           string           `db:"device" json:"device"`
	Browser          string           `db:"browser" json:"browser"`
	OS               string           `db:"os" json:"os"`
	Revoked          bool             `db:"revoked" json:"revoked"`
	CreatedAt        time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time        `db:"updated_at" json:"updated_at"`
}

// IsActiveFor reports whether the session is live for userID and fp
func (s *Session) IsActiveFor(userID kernel.UserID, fp string) bool {
	return !s.Revoked && s.UserID == userID && s.Fingerprint == fp
}

// UpsertResult carries the stored row and, when an existing row was
// replaced, the id it had before.
type UpsertResult struct {
	Session    Session
	PreviousID kernel.SessionID
}

// ============================================================================
// Error Registry
// ============================================================================

var ErrRegistry = errx.NewRegistry("SESSION")

var (
	CodeSessionNotFound = ErrRegistry.Register("NOT_FOUND", errx.TypeNotFound, http.StatusNotFound, "Session not found")
)

func ErrSessionNotFound() *errx.Error {
	return ErrRegistry.New(CodeSessionNotFound)
}
