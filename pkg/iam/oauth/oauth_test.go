package oauth_test

import (
	"testing"

	"github.com/Abraxas-365/sentinel/pkg/iam/oauth"
	"github.com/stretchr/testify/assert"
)

func TestDomainAllowed(t *testing.T) {
	open := &oauth.Client{}
	assert.True(t, open.DomainAllowed(""))

	c := &oauth.Client{AuthorizedDomains: []string{"app.example.com", "https://partner.example.org"}}
	assert.True(t, c.DomainAllowed("https://app.example.com"))
	assert.True(t, c.DomainAllowed("https://APP.example.com:8443/path"))
	assert.True(t, c.DomainAllowed("partner.example.org"))
	assert.False(t, c.DomainAllowed("https://evil.example.com"))
	assert.False(t, c.DomainAllowed(""))
}

func TestClientChecks(t *testing.T) {
	c := &oauth.Client{
		RedirectURIs:      []string{"https://app.example.com/cb"},
		AllowedScopes:     []string{"read", "write"},
		AllowedGrantTypes: []string{oauth.GrantAuthorizationCode},
	}
	assert.True(t, c.HasRedirectURI("https://app.example.com/cb"))
	assert.False(t, c.HasRedirectURI("https://app.example.com/cb/"))
	assert.False(t, c.HasRedirectURI(""))
	assert.True(t, c.AllowsScopes([]string{"read"}))
	assert.False(t, c.AllowsScopes([]string{"read", "admin"}))
	assert.True(t, c.AllowsGrant(oauth.GrantAuthorizationCode))
	assert.False(t, c.AllowsGrant(oauth.GrantImplicit))
}

func TestParseScope(t *testing.T) {
	assert.Equal(t, []string{"read", "write"}, oauth.ParseScope("read Write,read"))
	assert.Empty(t, oauth.ParseScope("  "))
}

func TestErrorName(t *testing.T) {
	assert.Equal(t, "invalid_grant", oauth.ErrorName(oauth.ErrCodeExpiredOrInvalid()))
	assert.Equal(t, "access_denied", oauth.ErrorName(oauth.ErrDomainNotAuthorized()))
	assert.Equal(t, 403, oauth.ErrDomainNotAuthorized().HTTPStatus)
	assert.Empty(t, oauth.ErrorName(oauth.ErrInvalidClientData("x")))
}
