package oauthsrv

import (
	"context"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/Abraxas-365/sentinel/pkg/errx"
	"github.com/Abraxas-365/sentinel/pkg/iam/oauth"
	"github.com/Abraxas-365/sentinel/pkg/kernel"
	"github.com/Abraxas-365/sentinel/pkg/logx"
	"github.com/google/uuid"
)

type CreateClientInput struct {
	Name                 string        `json:"name"`
	Description          string        `json:"description"`
	RedirectURIs         []string      `json:"redirect_uris"`
	AllowedScopes        []string      `json:"allowed_scopes"`
	AllowedGrantTypes    []string      `json:"allowed_grant_types"`
	AuthorizedDomains    []string      `json:"authorized_domains"`
	AccessTokenLifetime  time.Duration `json:"access_token_lifetime"`
	RefreshTokenLifetime time.Duration `json:"refresh_token_lifetime"`
	CreatedBy            kernel.UserID `json:"-"`
}

// UpdateClientInput changes only the fields that are set
type UpdateClientInput struct {
	Name                 *string        `json:"name"`
	Description          *string        `json:"description"`
	RedirectURIs         []string       `json:"redirect_uris"`
	AllowedScopes        []string       `json:"allowed_scopes"`
	AllowedGrantTypes    []string       `json:"allowed_grant_types"`
	AuthorizedDomains    []string       `json:"authorized_domains"`
	IsActive             *bool          `json:"is_active"`
	AccessTokenLifetime  *time.Duration `json:"access_token_lifetime"`
	RefreshTokenLifetime *time.Duration `json:"refresh_token_lifetime"`
}

// CreatedClient carries the plaintext secret. It is returned once and
// never stored.
type CreatedClient struct {
	*oauth.Client
	ClientSecret string `json:"client_secret"`
}

func (s *Server) CreateClient(ctx context.Context, in CreateClientInput) (*CreatedClient, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, oauth.ErrInvalidClientData("name is required")
	}
	if err := validateRedirectURIs(in.RedirectURIs); err != nil {
		return nil, err
	}

	scopes := normalizeList(in.AllowedScopes)
	if len(scopes) == 0 {
		scopes = []string{oauth.ScopeRead}
	}
	grants := normalizeList(in.AllowedGrantTypes)
	if len(grants) == 0 {
		grants = []string{oauth.GrantAuthorizationCode}
	}
	if err := validateGrants(grants); err != nil {
		return nil, err
	}

	secret, err := randomHex(32)
	if err != nil {
		return nil, errx.Wrap(err, "failed to generate client secret", errx.TypeInternal)
	}
	hash, err := s.secrets.Hash(secret)
	if err != nil {
		return nil, errx.Wrap(err, "failed to hash client secret", errx.TypeInternal)
	}

	now := s.now()
	client := &oauth.Client{
		ClientID:             kernel.ClientID(uuid.NewString()),
		SecretHash:           hash,
		Name:                 name,
		Description:          strings.TrimSpace(in.Description),
		RedirectURIs:         in.RedirectURIs,
		AllowedScopes:        scopes,
		AllowedGrantTypes:    grants,
		AuthorizedDomains:    normalizeList(in.AuthorizedDomains),
		IsActive:             true,
		AccessTokenLifetime:  in.AccessTokenLifetime,
		RefreshTokenLifetime: in.RefreshTokenLifetime,
		CreatedBy:            in.CreatedBy,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if err := s.clients.Create(ctx, client); err != nil {
		return nil, err
	}

	logx.WithContext(ctx).WithFields(logx.Fields{
		"client_id":  client.ClientID,
		"created_by": in.CreatedBy,
	}).Info("OAuth client created")
	return &CreatedClient{Client: client, ClientSecret: secret}, nil
}

func (s *Server) UpdateClient(ctx context.Context, id kernel.ClientID, in UpdateClientInput) (*oauth.Client, error) {
	client, err := s.clients.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, oauth.ErrInvalidClientData("name is required")
		}
		client.Name = name
	}
	if in.Description != nil {
		client.Description = strings.TrimSpace(*in.Description)
	}
	if in.RedirectURIs != nil {
		if err := validateRedirectURIs(in.RedirectURIs); err != nil {
			return nil, err
		}
		client.RedirectURIs = in.RedirectURIs
	}
	if in.AllowedScopes != nil {
		client.AllowedScopes = normalizeList(in.AllowedScopes)
	}
	if in.AllowedGrantTypes != nil {
		grants := normalizeList(in.AllowedGrantTypes)
		if err := validateGrants(grants); err != nil {
			return nil, err
		}
		client.AllowedGrantTypes = grants
	}
	if in.AuthorizedDomains != nil {
		client.AuthorizedDomains = normalizeList(in.AuthorizedDomains)
	}
	if in.IsActive != nil {
		client.IsActive = *in.IsActive
	}
	if in.AccessTokenLifetime != nil {
		client.AccessTokenLifetime = *in.AccessTokenLifetime
	}
	if in.RefreshTokenLifetime != nil {
		client.RefreshTokenLifetime = *in.RefreshTokenLifetime
	}
	client.UpdatedAt = s.now()

	if err := s.clients.Update(ctx, client); err != nil {
		return nil, err
	}
	return client, nil
}

func (s *Server) DeleteClient(ctx context.Context, id kernel.ClientID) error {
	return s.clients.Delete(ctx, id)
}

// GetClient returns the projection safe to show to end users
func (s *Server) GetClient(ctx context.Context, id kernel.ClientID) (*oauth.PublicClient, error) {
	client, err := s.clients.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !client.IsActive {
		return nil, oauth.ErrClientNotFound()
	}
	public := client.Public()
	return &public, nil
}

// GetClientAdmin returns the full record. The secret hash is never serialized.
func (s *Server) GetClientAdmin(ctx context.Context, id kernel.ClientID) (*oauth.Client, error) {
	return s.clients.FindByID(ctx, id)
}

func (s *Server) ListClients(ctx context.Context, opts kernel.PaginationOptions) (kernel.Paginated[oauth.Client], error) {
	return s.clients.List(ctx, opts.Normalize(20, 100))
}

func validateRedirectURIs(uris []string) error {
	if len(uris) == 0 {
		return oauth.ErrInvalidClientData("at least one redirect uri is required")
	}
	for _, raw := range uris {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" || u.Fragment != "" {
			return oauth.ErrInvalidClientData("invalid redirect uri").WithDetail("redirect_uri", raw)
		}
	}
	return nil
}

func validateGrants(grants []string) error {
	for _, g := range grants {
		if !slices.Contains(oauth.KnownGrantTypes, g) {
			return oauth.ErrInvalidClientData("unknown grant type").WithDetail("grant_type", g)
		}
	}
	return nil
}

func normalizeList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if v != "" && !slices.Contains(out, v) {
			out = append(out, v)
		}
	}
	return out
}
