package oauth

import (
	"context"
	"time"

	"github.com/Abraxas-365/sentinel/pkg/kernel"
)

type ClientRepository interface {
	Create(ctx context.Context, c *Client) error
	FindByID(ctx context.Context, id kernel.ClientID) (*Client, error)
	Update(ctx context.Context, c *Client) error
	Delete(ctx context.Context, id kernel.ClientID) error
	List(ctx context.Context, opts kernel.PaginationOptions) (kernel.Paginated[Client], error)
}

// CodeRepository stores pending codes keyed by (code hash, state)
type CodeRepository interface {
	Save(ctx context.Context, code *Code) error
	// Consume atomically removes and returns the code. Of several
	// concurrent callers at most one receives it; the others get
	// ErrCodeExpiredOrInvalid. Expired codes are returned as well so the
	// caller can report them.
	Consume(ctx context.Context, codeHash, state string) (*Code, error)
	// DeleteExpired removes codes that expired before now
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type TokenRepository interface {
	Save(ctx context.Context, record *TokenRecord) error
}

type AuthorizationRepository interface {
	Save(ctx context.Context, a *Authorization) error
}

// FieldProtector encrypts values kept at rest alongside a code
type FieldProtector interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}
