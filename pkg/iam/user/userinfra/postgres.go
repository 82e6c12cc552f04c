package userinfra

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/Abraxas-365/sentinel/pkg/errx"
	"github.com/Abraxas-365/sentinel/pkg/iam/user"
	"github.com/Abraxas-365/sentinel/pkg/kernel"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// PostgresUserRepository implements user.UserRepository and user.GroupRepository
type PostgresUserRepository struct {
	db *sqlx.DB
}

func NewPostgresUserRepository(db *sqlx.DB) *PostgresUserRepository {
	return &PostgresUserRepository{db: db}
}

type userRow struct {
	ID           string         `db:"id"`
	UsernameHash string         `db:"username_hash"`
	PasswordHash string         `db:"password_hash"`
	Root         bool           `db:"root"`
	Roles        pq.StringArray `db:"roles"`
	Groups       pq.StringArray `db:"groups"`
	Blocked      bool           `db:"blocked"`
	CreatedAt    time.Time      `db:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
}

func (r userRow) toDomain() *user.User {
	groups := make([]kernel.GroupID, len(r.Groups))
	for i, g := range r.Groups {
		groups[i] = kernel.GroupID(g)
	}
	return &user.User{
		ID:           kernel.UserID(r.ID),
		UsernameHash: r.UsernameHash,
		PasswordHash: r.PasswordHash,
		Root:         r.Root,
		Roles:        []string(r.Roles),
		Groups:       groups,
		Blocked:      r.Blocked,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

const userColumns = `id, username_hash, password_hash, root, roles, groups, blocked, created_at, updated_at`

func (r *PostgresUserRepository) FindByID(ctx context.Context, id kernel.UserID) (*user.User, error) {
	var row userRow
	err := r.db.GetContext(ctx, &row, `SELECT `+userColumns+` FROM users WHERE id = $1`, id.String())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, user.ErrUserNotFound()
		}
		return nil, errx.Wrap(err, "failed to find user by id", errx.TypeInternal)
	}
	return row.toDomain(), nil
}

func (r *PostgresUserRepository) FindByUsernameHash(ctx context.Context, usernameHash string) (*user.User, error) {
	var row userRow
	err := r.db.GetContext(ctx, &row, `SELECT `+userColumns+` FROM users WHERE username_hash = $1`, usernameHash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, user.ErrUserNotFound()
		}
		return nil, errx.Wrap(err, "failed to find user by username", errx.TypeInternal)
	}
	return row.toDomain(), nil
}

func (r *PostgresUserRepository) UpdateRoles(ctx context.Context, id kernel.UserID, roles []string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET roles = $2, updated_at = NOW() WHERE id = $1`,
		id.String(), pq.StringArray(roles))
	if err != nil {
		return errx.Wrap(err, "failed to update user roles", errx.TypeInternal).WithDetail("user_id", id)
	}
	return expectOneRow(res)
}

func (r *PostgresUserRepository) SetBlocked(ctx context.Context, id kernel.UserID, blocked bool) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET blocked = $2, updated_at = NOW() WHERE id = $1`,
		id.String(), blocked)
	if err != nil {
		return errx.Wrap(err, "failed to update user blocked flag", errx.TypeInternal).WithDetail("user_id", id)
	}
	return expectOneRow(res)
}

// FindByIDs implements user.GroupRepository
func (r *PostgresUserRepository) FindByIDs(ctx context.Context, ids []kernel.GroupID) ([]user.Group, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	raw := make([]string, len(ids))
	for i, id := range ids {
		raw[i] = id.String()
	}
	var rows []struct {
		ID    string         `db:"id"`
		Name  string         `db:"name"`
		Roles pq.StringArray `db:"roles"`
	}
	err := r.db.SelectContext(ctx, &rows, `SELECT id, name, roles FROM groups WHERE id = ANY($1)`, pq.StringArray(raw))
	if err != nil {
		return nil, errx.Wrap(err, "failed to load groups", errx.TypeInternal)
	}
	groups := make([]user.Group, len(rows))
	for i, row := range rows {
		groups[i] = user.Group{ID: kernel.GroupID(row.ID), Name: row.Name, Roles: []string(row.Roles)}
	}
	return groups, nil
}

func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return errx.Wrap(err, "failed to get rows affected", errx.TypeInternal)
	}
	if n == 0 {
		return user.ErrUserNotFound()
	}
	return nil
}
