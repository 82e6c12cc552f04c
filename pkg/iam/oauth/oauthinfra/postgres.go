package oauthinfra

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/Abraxas-365/sentinel/pkg/errx"
	"github.com/Abraxas-365/sentinel/pkg/iam/oauth"
	"github.com/Abraxas-365/sentinel/pkg/kernel"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// PostgresClientRepository stores clients in oauth_clients
type PostgresClientRepository struct {
	db *sqlx.DB
}

func NewPostgresClientRepository(db *sqlx.DB) *PostgresClientRepository {
	return &PostgresClientRepository{db: db}
}

var (
	_ oauth.ClientRepository = (*PostgresClientRepository)(nil)
	_ oauth.CodeRepository   = (*PostgresCodeRepository)(nil)
)

// ============================================================================
// Clients
// ============================================================================

type clientRow struct {
	ClientID             string         `db:"client_id"`
	SecretHash           string         `db:"secret_hash"`
	Name                 string         `db:"name"`
	Description          string         `db:"description"`
	RedirectURIs         pq.StringArray `db:"redirect_uris"`
	AllowedScopes        pq.StringArray `db:"allowed_scopes"`
	AllowedGrantTypes    pq.StringArray `db:"allowed_grant_types"`
	AuthorizedDomains    pq.StringArray `db:"authorized_domains"`
	IsActive             bool           `db:"is_active"`
	AccessTokenLifetime  int64          `db:"access_token_lifetime_seconds"`
	RefreshTokenLifetime int64          `db:"refresh_token_lifetime_seconds"`
	CreatedBy            string         `db:"created_by"`
	CreatedAt            time.Time      `db:"created_at"`
	UpdatedAt            time.Time      `db:"updated_at"`
}

func toClientRow(c *oauth.Client) clientRow {
	return clientRow{
		ClientID:             c.ClientID.String(),
		SecretHash:           c.SecretHash,
		Name:                 c.Name,
		Description:          c.Description,
		RedirectURIs:         pq.StringArray(c.RedirectURIs),
		AllowedScopes:        pq.StringArray(c.AllowedScopes),
		AllowedGrantTypes:    pq.StringArray(c.AllowedGrantTypes),
		AuthorizedDomains:    pq.StringArray(c.AuthorizedDomains),
		IsActive:             c.IsActive,
		AccessTokenLifetime:  int64(c.AccessTokenLifetime / time.Second),
		RefreshTokenLifetime: int64(c.RefreshTokenLifetime / time.Second),
		CreatedBy:            c.CreatedBy.String(),
		CreatedAt:            c.CreatedAt,
		UpdatedAt:            c.UpdatedAt,
	}
}

func (r clientRow) toDomain() *oauth.Client {
	return &oauth.Client{
		ClientID:             kernel.ClientID(r.ClientID),
		SecretHash:           r.SecretHash,
		Name:                 r.Name,
		Description:          r.Description,
		RedirectURIs:         []string(r.RedirectURIs),
		AllowedScopes:        []string(r.AllowedScopes),
		AllowedGrantTypes:    []string(r.AllowedGrantTypes),
		AuthorizedDomains:    []string(r.AuthorizedDomains),
		IsActive:             r.IsActive,
		AccessTokenLifetime:  time.Duration(r.AccessTokenLifetime) * time.Second,
		RefreshTokenLifetime: time.Duration(r.RefreshTokenLifetime) * time.Second,
		CreatedBy:            kernel.UserID(r.CreatedBy),
		CreatedAt:            r.CreatedAt,
		UpdatedAt:            r.UpdatedAt,
	}
}

const clientColumns = `client_id, secret_hash, name, description, redirect_uris, allowed_scopes,
	allowed_grant_types, authorized_domains, is_active, access_token_lifetime_seconds,
	refresh_token_lifetime_seconds, created_by, created_at, updated_at`

func (s *PostgresClientRepository) Create(ctx context.Context, c *oauth.Client) error {
	query := `INSERT INTO oauth_clients (` + clientColumns + `) VALUES (
		:client_id, :secret_hash, :name, :description, :redirect_uris, :allowed_scopes,
		:allowed_grant_types, :authorized_domains, :is_active, :access_token_lifetime_seconds,
		:refresh_token_lifetime_seconds, :created_by, :created_at, :updated_at)`
	if _, err := s.db.NamedExecContext(ctx, query, toClientRow(c)); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return errx.Conflict("client already exists").WithDetail("client_id", c.ClientID)
		}
		return errx.Wrap(err, "failed to create oauth client", errx.TypeInternal)
	}
	return nil
}

func (s *PostgresClientRepository) FindByID(ctx context.Context, id kernel.ClientID) (*oauth.Client, error) {
	var row clientRow
	err := s.db.GetContext(ctx, &row, `SELECT `+clientColumns+` FROM oauth_clients WHERE client_id = $1`, id.String())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, oauth.ErrClientNotFound()
		}
		return nil, errx.Wrap(err, "failed to load oauth client", errx.TypeInternal)
	}
	return row.toDomain(), nil
}

func (s *PostgresClientRepository) Update(ctx context.Context, c *oauth.Client) error {
	query := `UPDATE oauth_clients SET
		name = :name, description = :description, redirect_uris = :redirect_uris,
		allowed_scopes = :allowed_scopes, allowed_grant_types = :allowed_grant_types,
		authorized_domains = :authorized_domains, is_active = :is_active,
		access_token_lifetime_seconds = :access_token_lifetime_seconds,
		refresh_token_lifetime_seconds = :refresh_token_lifetime_seconds,
		updated_at = :updated_at
		WHERE client_id = :client_id`
	res, err := s.db.NamedExecContext(ctx, query, toClientRow(c))
	if err != nil {
		return errx.Wrap(err, "failed to update oauth client", errx.TypeInternal)
	}
	return expectClient(res)
}

func (s *PostgresClientRepository) Delete(ctx context.Context, id kernel.ClientID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM oauth_clients WHERE client_id = $1`, id.String())
	if err != nil {
		return errx.Wrap(err, "failed to delete oauth client", errx.TypeInternal)
	}
	return expectClient(res)
}

func (s *PostgresClientRepository) List(ctx context.Context, opts kernel.PaginationOptions) (kernel.Paginated[oauth.Client], error) {
	var total int
	if err := s.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM oauth_clients`); err != nil {
		return kernel.Paginated[oauth.Client]{}, errx.Wrap(err, "failed to count oauth clients", errx.TypeInternal)
	}
	var rows []clientRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT `+clientColumns+` FROM oauth_clients ORDER BY created_at DESC LIMIT $1 OFFSET $2`,
		opts.PageSize, opts.Offset())
	if err != nil {
		return kernel.Paginated[oauth.Client]{}, errx.Wrap(err, "failed to list oauth clients", errx.TypeInternal)
	}
	items := make([]oauth.Client, len(rows))
	for i, r := range rows {
		items[i] = *r.toDomain()
	}
	return kernel.NewPaginated(items, opts.Page, opts.PageSize, total), nil
}

func expectClient(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return errx.Wrap(err, "failed to get rows affected", errx.TypeInternal)
	}
	if n == 0 {
		return oauth.ErrClientNotFound()
	}
	return nil
}

// ============================================================================
// Codes
// ============================================================================

// PostgresCodeRepository keys oauth_codes by (code_hash, state)
type PostgresCodeRepository struct {
	db *sqlx.DB
}

func NewPostgresCodeRepository(db *sqlx.DB) *PostgresCodeRepository {
	return &PostgresCodeRepository{db: db}
}

type codeRow struct {
	CodeHash          string    `db:"code_hash"`
	State             string    `db:"state"`
	ClientID          string    `db:"client_id"`
	UserID            string    `db:"user_id"`
	EncryptedUsername string    `db:"encrypted_username"`
	RedirectURI       string    `db:"redirect_uri"`
	Scope             string    `db:"scope"`
	IPAddress         string    `db:"ip_address"`
	UserAgent         string    `db:"user_agent"`
	Origin            string    `db:"origin"`
	ExpiresAt         time.Time `db:"expires_at"`
	CreatedAt         time.Time `db:"created_at"`
}

const codeColumns = `code_hash, state, client_id, user_id, encrypted_username, redirect_uri,
	scope, ip_address, user_agent, origin, expires_at, created_at`

func (r *PostgresCodeRepository) Save(ctx context.Context, c *oauth.Code) error {
	row := codeRow{
		CodeHash:          c.CodeHash,
		State:             c.State,
		ClientID:          c.ClientID.String(),
		UserID:            c.UserID.String(),
		EncryptedUsername: c.EncryptedUsername,
		RedirectURI:       c.RedirectURI,
		Scope:             c.Scope,
		IPAddress:         c.IPAddress,
		UserAgent:         c.UserAgent,
		Origin:            c.Origin,
		ExpiresAt:         c.ExpiresAt,
		CreatedAt:         c.CreatedAt,
	}
	query := `INSERT INTO oauth_codes (` + codeColumns + `) VALUES (
		:code_hash, :state, :client_id, :user_id, :encrypted_username, :redirect_uri,
		:scope, :ip_address, :user_agent, :origin, :expires_at, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, row); err != nil {
		return errx.Wrap(err, "failed to save authorization code", errx.TypeInternal)
	}
	return nil
}

// Consume deletes the row and returns it in one statement, so two
// concurrent exchanges cannot both see it.
func (r *PostgresCodeRepository) Consume(ctx context.Context, codeHash, state string) (*oauth.Code, error) {
	var row codeRow
	err := r.db.GetContext(ctx, &row,
		`DELETE FROM oauth_codes WHERE code_hash = $1 AND state = $2 RETURNING `+codeColumns,
		codeHash, state)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, oauth.ErrCodeExpiredOrInvalid()
		}
		return nil, errx.Wrap(err, "failed to consume authorization code", errx.TypeInternal)
	}
	return &oauth.Code{
		CodeHash:          row.CodeHash,
		State:             row.State,
		ClientID:          kernel.ClientID(row.ClientID),
		UserID:            kernel.UserID(row.UserID),
		EncryptedUsername: row.EncryptedUsername,
		RedirectURI:       row.RedirectURI,
		Scope:             row.Scope,
		IPAddress:         row.IPAddress,
		UserAgent:         row.UserAgent,
		Origin:            row.Origin,
		ExpiresAt:         row.ExpiresAt,
		CreatedAt:         row.CreatedAt,
	}, nil
}

func (r *PostgresCodeRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM oauth_codes WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, errx.Wrap(err, "failed to delete expired codes", errx.TypeInternal)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errx.Wrap(err, "failed to get rows affected", errx.TypeInternal)
	}
	return n, nil
}

// ============================================================================
// Audit records
// ============================================================================

// PostgresTokenRepository appends to oauth_tokens
type PostgresTokenRepository struct {
	db *sqlx.DB
}

func NewPostgresTokenRepository(db *sqlx.DB) *PostgresTokenRepository {
	return &PostgresTokenRepository{db: db}
}

func (r *PostgresTokenRepository) Save(ctx context.Context, t *oauth.TokenRecord) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO oauth_tokens (id, client_id, user_id, access_token_hash, refresh_token_hash,
			scope, grant_type, expires_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		t.ID, t.ClientID.String(), t.UserID.String(), t.AccessTokenHash, t.RefreshTokenHash,
		t.Scope, t.GrantType, t.ExpiresAt, t.CreatedAt)
	if err != nil {
		return errx.Wrap(err, "failed to save oauth token record", errx.TypeInternal)
	}
	return nil
}

// PostgresAuthorizationRepository appends to oauth_authorizations
type PostgresAuthorizationRepository struct {
	db *sqlx.DB
}

func NewPostgresAuthorizationRepository(db *sqlx.DB) *PostgresAuthorizationRepository {
	return &PostgresAuthorizationRepository{db: db}
}

func (r *PostgresAuthorizationRepository) Save(ctx context.Context, a *oauth.Authorization) error {
	var country, region, city sql.NullString
	var lat, lon sql.NullFloat64
	if a.Location != nil {
		country = sql.NullString{String: a.Location.Country, Valid: true}
		region = sql.NullString{String: a.Location.Region, Valid: true}
		city = sql.NullString{String: a.Location.City, Valid: true}
		lat = sql.NullFloat64{Float64: a.Location.Lat, Valid: true}
		lon = sql.NullFloat64{Float64: a.Location.Lon, Valid: true}
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO oauth_authorizations (id, client_id, user_id, scope, response_type, redirect_uri,
			ip_address, user_agent, country, region, city, lat, lon, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		a.ID, a.ClientID.String(), a.UserID.String(), a.Scope, a.ResponseType, a.RedirectURI,
		a.IPAddress, a.UserAgent, country, region, city, lat, lon, a.CreatedAt)
	if err != nil {
		return errx.Wrap(err, "failed to save oauth authorization", errx.TypeInternal)
	}
	return nil
}
