package oauth

import (
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/Abraxas-365/sentinel/pkg/geo"
	"github.com/Abraxas-365/sentinel/pkg/kernel"
)

const (
	GrantAuthorizationCode = "authorization_code"
	GrantImplicit          = "implicit"
	GrantRefreshToken      = "refresh_token"
)

const (
	ResponseTypeCode  = "code"
	ResponseTypeToken = "token"
)

// ScopeRead is required on every authorization request
const ScopeRead = "read"

// KnownGrantTypes are the grant types a client may be configured with
var KnownGrantTypes = []string{GrantAuthorizationCode, GrantImplicit, GrantRefreshToken}

// ============================================================================
// Client
// ============================================================================

// Client is a registered third-party application
type Client struct {
	ClientID             kernel.ClientID `json:"client_id"`
	SecretHash           string          `json:"-"`
	Name                 string          `json:"name"`
	Description          string          `json:"description"`
	RedirectURIs         []string        `json:"redirect_uris"`
	AllowedScopes        []string        `json:"allowed_scopes"`
	AllowedGrantTypes    []string        `json:"allowed_grant_types"`
	AuthorizedDomains    []string        `json:"authorized_domains"`
	IsActive             bool            `json:"is_active"`
	AccessTokenLifetime  time.Duration   `json:"access_token_lifetime"`
	RefreshTokenLifetime time.Duration   `json:"refresh_token_lifetime"`
	CreatedBy            kernel.UserID   `json:"created_by"`
	CreatedAt            time.Time       `json:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at"`
}

// HasRedirectURI requires an exact match against a registered URI
func (c *Client) HasRedirectURI(uri string) bool {
	return uri != "" && slices.Contains(c.RedirectURIs, uri)
}

func (c *Client) AllowsGrant(grant string) bool {
	return slices.Contains(c.AllowedGrantTypes, grant)
}

// AllowsScopes reports whether every requested scope is allowed. A client
// without a scope list accepts any scope.
func (c *Client) AllowsScopes(scopes []string) bool {
	if len(c.AllowedScopes) == 0 {
		return true
	}
	for _, s := range scopes {
		if !slices.Contains(c.AllowedScopes, s) {
			return false
		}
	}
	return true
}

// DomainAllowed checks the requesting origin against AuthorizedDomains.
// Clients without declared domains accept any origin; clients with
// declared domains reject requests that carry no origin.
func (c *Client) DomainAllowed(origin string) bool {
	if len(c.AuthorizedDomains) == 0 {
		return true
	}
	host := hostOf(origin)
	if host == "" {
		return false
	}
	for _, d := range c.AuthorizedDomains {
		if hostOf(d) == host {
			return true
		}
	}
	return false
}

// PublicClient is the projection shown to end users on consent screens
type PublicClient struct {
	ClientID      kernel.ClientID `json:"client_id"`
	Name          string          `json:"name"`
	Description   string          `json:"description"`
	RedirectURIs  []string        `json:"redirect_uris"`
	AllowedScopes []string        `json:"allowed_scopes"`
}

func (c *Client) Public() PublicClient {
	return PublicClient{
		ClientID:      c.ClientID,
		Name:          c.Name,
		Description:   c.Description,
		RedirectURIs:  slices.Clone(c.RedirectURIs),
		AllowedScopes: slices.Clone(c.AllowedScopes),
	}
}

// ============================================================================
// Authorization code and audit records
// ============================================================================

// Code is a pending authorization code. Only the hash of the code is
// stored; the username is kept encrypted so tokens can be minted at
// exchange time.
type Code struct {
	CodeHash          string          `json:"code_hash"`
	State             string          `json:"state"`
	ClientID          kernel.ClientID `json:"client_id"`
	UserID            kernel.UserID   `json:"user_id"`
	EncryptedUsername string          `json:"encrypted_username"`
	RedirectURI       string          `json:"redirect_uri"`
	Scope             string          `json:"scope"`
	IPAddress         string          `json:"ip_address"`
	UserAgent         string          `json:"user_agent"`
	Origin            string          `json:"origin"`
	ExpiresAt         time.Time       `json:"expires_at"`
	CreatedAt         time.Time       `json:"created_at"`
}

func (c *Code) IsExpired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// TokenRecord audits a token pair issued to a client. Tokens are hashed.
type TokenRecord struct {
	ID               string          `json:"id"`
	ClientID         kernel.ClientID `json:"client_id"`
	UserID           kernel.UserID   `json:"user_id"`
	AccessTokenHash  string          `json:"-"`
	RefreshTokenHash string          `json:"-"`
	Scope            string          `json:"scope"`
	GrantType        string          `json:"grant_type"`
	ExpiresAt        time.Time       `json:"expires_at"`
	CreatedAt        time.Time       `json:"created_at"`
}

// Authorization audits a user's approval of a client
type Authorization struct {
	ID           string          `json:"id"`
	ClientID     kernel.ClientID `json:"client_id"`
	UserID       kernel.UserID   `json:"user_id"`
	Scope        string          `json:"scope"`
	ResponseType string          `json:"response_type"`
	RedirectURI  string          `json:"redirect_uri"`
	IPAddress    string          `json:"ip_address"`
	UserAgent    string          `json:"user_agent"`
	Location     *geo.Location   `json:"location,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// ============================================================================
// Helpers
// ============================================================================

// ParseScope splits a space or comma separated scope string
func ParseScope(scope string) []string {
	fields := strings.FieldsFunc(scope, func(r rune) bool { return r == ' ' || r == ',' })
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.ToLower(f)
		if !slices.Contains(out, f) {
			out = append(out, f)
		}
	}
	return out
}

// hostOf accepts either a bare host or a URL and returns the lowercased host
func hostOf(s string) string {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return ""
	}
	if !strings.Contains(s, "://") {
		s = "https://" + s
	}
	u, err := url.Parse(s)
	if err != nil {
		return ""
	}
	return u.Hostname()
}
