package session

import (
	"context"

	"github.com/Abraxas-365/sentinel/pkg/kernel"
)

// Repository is the session store. Upsert must be atomic on fingerprint:
// concurrent logins from one fingerprint leave exactly one row.
type Repository interface {
	// Upsert inserts s or replaces the row holding s.Fingerprint. The
	// replaced row takes s.ID, is un-revoked and keeps its CreatedAt.
	Upsert(ctx context.Context, s Session) (*UpsertResult, error)
	FindByID(ctx context.Context, id kernel.SessionID) (*Session, error)
	FindByFingerprint(ctx context.Context, fp string) (*Session, error)
	// FindActive returns the non-revoked session for userID and fp
	FindActive(ctx context.Context, userID kernel.UserID, fp string) (*Session, error)
	ListByUser(ctx context.Context, userID kernel.UserID, opts kernel.PaginationOptions) (kernel.Paginated[Session], error)
	// Revoke marks the session matching both id and userID as revoked
	Revoke(ctx context.Context, id kernel.SessionID, userID kernel.UserID) error
	// UpdateRefreshHash touches the session and optionally replaces the hash.
	// An empty hash keeps the stored one.
	UpdateRefreshHash(ctx context.Context, id kernel.SessionID, hash string) error
}
