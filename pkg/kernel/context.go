package kernel

import (
	"context"
	"slices"
)

// ============================================================================
// Identity - the decoded caller attached to each authorized request
// ============================================================================

// Identity is what the authorization engine hands downstream
type Identity struct {
	UserID      UserID   `json:"user_id"`
	Username    string   `json:"username"`
	Fingerprint string   `json:"-"`
	Root        bool     `json:"root"`
	Roles       []string `json:"roles"`
}

// IsValid reports whether the identity names a user
func (i *Identity) IsValid() bool {
	return i != nil && !i.UserID.IsEmpty()
}

// HasRole reports whether the identity holds role. Root holds every role.
func (i *Identity) HasRole(role string) bool {
	if i.Root {
		return true
	}
	return slices.Contains(i.Roles, role)
}

// HasAnyRole reports whether at least one of roles is held
func (i *Identity) HasAnyRole(roles ...string) bool {
	for _, r := range roles {
		if i.HasRole(r) {
			return true
		}
	}
	return false
}

// ============================================================================
// Context Keys
// ============================================================================

type ContextKey string

const (
	// IdentityKey stores the *Identity in context.Context and fiber locals
	IdentityKey ContextKey = "identity"

	// RequestIDKey stores the request id
	RequestIDKey ContextKey = "request_id"
)

// WithIdentity returns a copy of ctx carrying id
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, IdentityKey, id)
}

// IdentityFrom extracts the identity placed by WithIdentity
func IdentityFrom(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(IdentityKey).(*Identity)
	return id, ok && id.IsValid()
}
