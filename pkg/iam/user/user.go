package user

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"
	"time"

	"github.com/Abraxas-365/sentinel/pkg/errx"
	"github.com/Abraxas-365/sentinel/pkg/kernel"
)

// User is owned by user management. The auth core reads it and only
// mutates Roles and Blocked.
type User struct {
	ID           kernel.UserID    `db:"id" json:"id"`
	UsernameHash string           `db:"username_hash" json:"-"`
	PasswordHash string           `db:"password_hash" json:"-"`
	Root         bool             `db:"root" json:"root"`
	Roles        []string         `db:"roles" json:"roles"`
	Groups       []kernel.GroupID `db:"groups" json:"groups"`
	Blocked      bool             `db:"blocked" json:"blocked"`
	CreatedAt    time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time        `db:"updated_at" json:"updated_at"`
}

type Group struct {
	ID    kernel.GroupID `db:"id" json:"id"`
	Name  string         `db:"name" json:"name"`
	Roles []string       `db:"roles" json:"roles"`
}

// CanonicalUsername is the single representation used for hashing,
// fingerprinting and the encrypted token claim.
func CanonicalUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

// HashUsername is the lookup key stored in place of the username
func HashUsername(username string) string {
	sum := sha256.Sum256([]byte(CanonicalUsername(username)))
	return hex.EncodeToString(sum[:])
}

// ============================================================================
// Error Registry
// ============================================================================

var ErrRegistry = errx.NewRegistry("USER")

var (
	CodeUserNotFound  = ErrRegistry.Register("NOT_FOUND", errx.TypeNotFound, http.StatusNotFound, "User not found")
	CodeGroupNotFound = ErrRegistry.Register("GROUP_NOT_FOUND", errx.TypeNotFound, http.StatusNotFound, "Group not found")
)

func ErrUserNotFound() *errx.Error {
	return ErrRegistry.New(CodeUserNotFound)
}

func ErrGroupNotFound() *errx.Error {
	return ErrRegistry.New(CodeGroupNotFound)
}
