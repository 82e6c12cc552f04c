package user

import (
	"context"

	"github.com/Abraxas-365/sentinel/pkg/kernel"
)

type UserRepository interface {
	FindByID(ctx context.Context, id kernel.UserID) (*User, error)
	FindByUsernameHash(ctx context.Context, usernameHash string) (*User, error)
	UpdateRoles(ctx context.Context, id kernel.UserID, roles []string) error
	SetBlocked(ctx context.Context, id kernel.UserID, blocked bool) error
}

type GroupRepository interface {
	// FindByIDs returns the groups that exist; unknown ids are skipped
	FindByIDs(ctx context.Context, ids []kernel.GroupID) ([]Group, error)
}

type PasswordService interface {
	Hash(password string) (string, error)
	Verify(hash, password string) bool
}
