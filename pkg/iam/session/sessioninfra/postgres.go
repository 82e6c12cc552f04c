package sessioninfra

import (
	"context"
	"database/sql"
	"errors"

	"github.com/Abraxas-365/sentinel/pkg/errx"
	"github.com/Abraxas-365/sentinel/pkg/iam/session"
	"github.com/Abraxas-365/sentinel/pkg/kernel"
	"github.com/jmoiron/sqlx"
)

// PostgresSessionRepository relies on a unique index on sessions.fingerprint
type PostgresSessionRepository struct {
	db *sqlx.DB
}

func NewPostgresSessionRepository(db *sqlx.DB) *PostgresSessionRepository {
	return &PostgresSessionRepository{db: db}
}

var _ session.Repository = (*PostgresSessionRepository)(nil)

const sessionColumns = `id, fingerprint, user_id, refresh_token_hash, ip_address, user_agent,
	device, browser, os, revoked, created_at, updated_at`

type upsertRow struct {
	session.Session
	PreviousID sql.NullString `db:"previous_id"`
}

func (r *PostgresSessionRepository) Upsert(ctx context.Context, s session.Session) (*session.UpsertResult, error) {
	query := `
		WITH prev AS (
			SELECT id FROM sessions WHERE fingerprint = :fingerprint
		)
		INSERT INTO sessions (
			id, fingerprint, user_id, refresh_token_hash, ip_address, user_agent,
			device, browser, os, revoked, created_at, updated_at
		) VALUES (
			:id, :fingerprint, :user_id, :refresh_token_hash, :ip_address, :user_agent,
			:device, :browser, :os, false, :created_at, :updated_at
		)
		ON CONFLICT (fingerprint) DO UPDATE SET
			id = EXCLUDED.id,
			user_id = EXCLUDED.user_id,
			refresh_token_hash = EXCLUDED.refresh_token_hash,
			ip_address = EXCLUDED.ip_address,
			user_agent = EXCLUDED.user_agent,
			device = EXCLUDED.device,
			browser = EXCLUDED.browser,
			os = EXCLUDED.os,
			revoked = false,
			updated_at = EXCLUDED.updated_at
		RETURNING ` + sessionColumns + `, (SELECT id FROM prev) AS previous_id`

	stmt, err := r.db.PrepareNamedContext(ctx, query)
	if err != nil {
		return nil, errx.Wrap(err, "failed to prepare session upsert", errx.TypeInternal)
	}
	defer stmt.Close()

	var row upsertRow
	if err := stmt.GetContext(ctx, &row, s); err != nil {
		return nil, errx.Wrap(err, "failed to upsert session", errx.TypeInternal).
			WithDetail("user_id", s.UserID)
	}

	result := &session.UpsertResult{Session: row.Session}
	if row.PreviousID.Valid && row.PreviousID.String != string(row.ID) {
		result.PreviousID = kernel.SessionID(row.PreviousID.String)
	}
	return result, nil
}

func (r *PostgresSessionRepository) FindByID(ctx context.Context, id kernel.SessionID) (*session.Session, error) {
	return r.get(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = $1`, id.String())
}

func (r *PostgresSessionRepository) FindByFingerprint(ctx context.Context, fp string) (*session.Session, error) {
	return r.get(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE fingerprint = $1`, fp)
}

func (r *PostgresSessionRepository) FindActive(ctx context.Context, userID kernel.UserID, fp string) (*session.Session, error) {
	return r.get(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE fingerprint = $1 AND user_id = $2 AND revoked = false`,
		fp, userID.String())
}

func (r *PostgresSessionRepository) get(ctx context.Context, query string, args ...any) (*session.Session, error) {
	var s session.Session
	if err := r.db.GetContext(ctx, &s, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, session.ErrSessionNotFound()
		}
		return nil, errx.Wrap(err, "failed to load session", errx.TypeInternal)
	}
	return &s, nil
}

func (r *PostgresSessionRepository) ListByUser(ctx context.Context, userID kernel.UserID, opts kernel.PaginationOptions) (kernel.Paginated[session.Session], error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM sessions WHERE user_id = $1`, userID.String()); err != nil {
		return kernel.Paginated[session.Session]{}, errx.Wrap(err, "failed to count sessions", errx.TypeInternal)
	}

	var items []session.Session
	err := r.db.SelectContext(ctx, &items,
		`SELECT `+sessionColumns+` FROM sessions WHERE user_id = $1 ORDER BY updated_at DESC LIMIT $2 OFFSET $3`,
		userID.String(), opts.PageSize, opts.Offset())
	if err != nil {
		return kernel.Paginated[session.Session]{}, errx.Wrap(err, "failed to list sessions", errx.TypeInternal)
	}
	return kernel.NewPaginated(items, opts.Page, opts.PageSize, total), nil
}

func (r *PostgresSessionRepository) Revoke(ctx context.Context, id kernel.SessionID, userID kernel.UserID) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET revoked = true, updated_at = NOW() WHERE id = $1 AND user_id = $2`,
		id.String(), userID.String())
	if err != nil {
		return errx.Wrap(err, "failed to revoke session", errx.TypeInternal)
	}
	return expectOne(res)
}

func (r *PostgresSessionRepository) UpdateRefreshHash(ctx context.Context, id kernel.SessionID, hash string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET refresh_token_hash = COALESCE(NULLIF($2, ''), refresh_token_hash), updated_at = NOW()
		 WHERE id = $1 AND revoked = false`,
		id.String(), hash)
	if err != nil {
		return errx.Wrap(err, "failed to update session", errx.TypeInternal)
	}
	return expectOne(res)
}

func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return errx.Wrap(err, "failed to get rows affected", errx.TypeInternal)
	}
	if n == 0 {
		return session.ErrSessionNotFound()
	}
	return nil
}
