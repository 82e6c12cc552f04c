package role

import (
	"context"

	"github.com/Abraxas-365/sentinel/pkg/iam/user"
	"github.com/Abraxas-365/sentinel/pkg/kernel"
)

// Resolver is consumed by the session lifecycle and by the admin API
type Resolver interface {
	ResolveEffectiveRoles(ctx context.Context, u *user.User) ([]string, error)
	EnumerateAssignableRoles() map[string]Assignable
	AssignRoles(ctx context.Context, userID kernel.UserID, roles []string) ([]string, error)
	RemoveRoles(ctx context.Context, userID kernel.UserID, roles []string) ([]string, error)
}
