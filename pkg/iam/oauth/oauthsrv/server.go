package oauthsrv

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/Abraxas-365/sentinel/pkg/errx"
	"github.com/Abraxas-365/sentinel/pkg/geo"
	"github.com/Abraxas-365/sentinel/pkg/iam/auth"
	"github.com/Abraxas-365/sentinel/pkg/iam/auth/authsrv"
	"github.com/Abraxas-365/sentinel/pkg/iam/fingerprint"
	"github.com/Abraxas-365/sentinel/pkg/iam/oauth"
	"github.com/Abraxas-365/sentinel/pkg/iam/token"
	"github.com/Abraxas-365/sentinel/pkg/iam/user"
	"github.com/Abraxas-365/sentinel/pkg/kernel"
	"github.com/Abraxas-365/sentinel/pkg/logx"
	"github.com/Abraxas-365/sentinel/pkg/metrics"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// SessionIssuer is the token primitive of the session lifecycle service
type SessionIssuer interface {
	StartSession(ctx context.Context, in authsrv.StartInput) (*authsrv.Issued, error)
	ResolveUser(ctx context.Context, id kernel.UserID) (*user.User, error)
}

type Config struct {
	CodeTTL                     time.Duration
	DefaultAccessTokenLifetime  time.Duration
	DefaultRefreshTokenLifetime time.Duration
}

// Server implements the authorization code and implicit flows
type Server struct {
	clients        oauth.ClientRepository
	codes          oauth.CodeRepository
	tokens         oauth.TokenRepository
	authorizations oauth.AuthorizationRepository
	sessions       SessionIssuer
	fields         oauth.FieldProtector
	secrets        user.PasswordService
	geo            geo.Geolocator
	metrics        metrics.Recorder
	cfg            Config
	now            func() time.Time
}

func NewServer(
	clients oauth.ClientRepository,
	codes oauth.CodeRepository,
	tokens oauth.TokenRepository,
	authorizations oauth.AuthorizationRepository,
	sessions SessionIssuer,
	fields oauth.FieldProtector,
	secrets user.PasswordService,
	geolocator geo.Geolocator,
	recorder metrics.Recorder,
	cfg Config,
) *Server {
	if recorder == nil {
		recorder = metrics.NewNoopMetrics()
	}
	if cfg.CodeTTL <= 0 {
		cfg.CodeTTL = 10 * time.Minute
	}
	return &Server{
		clients:        clients,
		codes:          codes,
		tokens:         tokens,
		authorizations: authorizations,
		sessions:       sessions,
		fields:         fields,
		secrets:        secrets,
		geo:            geolocator,
		metrics:        recorder,
		cfg:            cfg,
		now:            time.Now,
	}
}

// ============================================================================
// Authorize
// ============================================================================

type AuthorizeInput struct {
	ClientID     kernel.ClientID
	RedirectURI  string
	ResponseType string
	State        string
	Scope        string
	// Origin is the requesting page's origin, from Origin or Referer
	Origin   string
	Identity *kernel.Identity
	Client   fingerprint.RequestContext
}

// AuthorizeResult is either a code (response_type=code) or a token pair
// (response_type=token).
type AuthorizeResult struct {
	ResponseType string `json:"response_type"`
	RedirectURI  string `json:"redirect_uri"`
	State        string `json:"state"`
	Scope        string `json:"scope"`
	Code         string `json:"code,omitempty"`
	AccessToken  string `json:"access_token,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
	TokenType    string `json:"token_type,omitempty"`
	ExpiresIn    int64  `json:"expires_in,omitempty"`
}

// RedirectURL carries a code in the query and tokens in the fragment
func (r *AuthorizeResult) RedirectURL() (string, error) {
	u, err := url.Parse(r.RedirectURI)
	if err != nil {
		return "", errx.Wrap(err, "invalid redirect uri", errx.TypeValidation)
	}
	if r.ResponseType == oauth.ResponseTypeCode {
		q := u.Query()
		q.Set("code", r.Code)
		q.Set("state", r.State)
		u.RawQuery = q.Encode()
		return u.String(), nil
	}
	f := url.Values{}
	f.Set("access_token", r.AccessToken)
	f.Set("refresh_token", r.RefreshToken)
	f.Set("token_type", r.TokenType)
	f.Set("expires_in", strconv.FormatInt(r.ExpiresIn, 10))
	f.Set("state", r.State)
	f.Set("scope", r.Scope)
	u.Fragment = ""
	u.RawFragment = ""
	return u.String() + "#" + f.Encode(), nil
}

// Authorize validates the request for an authenticated user and issues a
// single use code or, for implicit clients, a token pair.
func (s *Server) Authorize(ctx context.Context, in AuthorizeInput) (*AuthorizeResult, error) {
	if !in.Identity.IsValid() {
		return nil, auth.ErrMissingToken()
	}
	if missing := missingParams(map[string]string{
		"client_id":     in.ClientID.String(),
		"redirect_uri":  in.RedirectURI,
		"response_type": in.ResponseType,
		"state":         in.State,
	}); missing != "" {
		return nil, oauth.ErrInvalidRequest("missing " + missing)
	}

	client, err := s.clients.FindByID(ctx, in.ClientID)
	if err != nil {
		return nil, err
	}
	if !client.IsActive {
		return nil, oauth.ErrInvalidClient()
	}
	if !client.DomainAllowed(in.Origin) {
		return nil, oauth.ErrDomainNotAuthorized()
	}
	if !client.HasRedirectURI(in.RedirectURI) {
		return nil, oauth.ErrInvalidRedirectURI()
	}

	scopes := oauth.ParseScope(in.Scope)
	if !slices.Contains(scopes, oauth.ScopeRead) || !client.AllowsScopes(scopes) {
		return nil, oauth.ErrInvalidScope(in.Scope)
	}
	scope := strings.Join(scopes, " ")

	switch {
	case in.ResponseType == oauth.ResponseTypeCode && client.AllowsGrant(oauth.GrantAuthorizationCode):
		return s.issueCode(ctx, client, in, scope)
	case in.ResponseType == oauth.ResponseTypeToken && client.AllowsGrant(oauth.GrantImplicit):
		return s.issueImplicit(ctx, client, in, scope)
	default:
		return nil, oauth.ErrInvalidResponseType(in.ResponseType)
	}
}

func (s *Server) issueCode(ctx context.Context, client *oauth.Client, in AuthorizeInput, scope string) (*AuthorizeResult, error) {
	raw, err := randomHex(32)
	if err != nil {
		return nil, errx.Wrap(err, "failed to generate authorization code", errx.TypeInternal)
	}
	encrypted, err := s.fields.Encrypt(user.CanonicalUsername(in.Identity.Username))
	if err != nil {
		return nil, token.ErrEncryptionFailed(err)
	}

	now := s.now()
	code := &oauth.Code{
		CodeHash:          token.Hash(raw),
		State:             in.State,
		ClientID:          client.ClientID,
		UserID:            in.Identity.UserID,
		EncryptedUsername: encrypted,
		RedirectURI:       in.RedirectURI,
		Scope:             scope,
		IPAddress:         in.Client.IP,
		UserAgent:         in.Client.UserAgent,
		Origin:            in.Origin,
		ExpiresAt:         now.Add(s.cfg.CodeTTL),
		CreatedAt:         now,
	}

	var location *geo.Location
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := s.codes.Save(gctx, code); err != nil {
			return errx.Wrap(err, "failed to store authorization code", errx.TypeInternal)
		}
		return nil
	})
	g.Go(func() error {
		location = s.locate(gctx, in.Client.IP)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	s.recordAuthorization(ctx, client, in, scope, location)
	s.metrics.RecordOAuthCode("issued")
	logx.WithContext(ctx).WithFields(logx.Fields{
		"client_id": client.ClientID,
		"user_id":   in.Identity.UserID,
		"scope":     scope,
	}).Info("OAuth authorization code issued")

	return &AuthorizeResult{
		ResponseType: oauth.ResponseTypeCode,
		RedirectURI:  in.RedirectURI,
		State:        in.State,
		Scope:        scope,
		Code:         raw,
	}, nil
}

func (s *Server) issueImplicit(ctx context.Context, client *oauth.Client, in AuthorizeInput, scope string) (*AuthorizeResult, error) {
	u, err := s.activeUser(ctx, in.Identity.UserID)
	if err != nil {
		return nil, err
	}
	issued, err := s.issueTokens(ctx, client, u, in.Identity.Username, in.Client, scope, oauth.GrantImplicit)
	if err != nil {
		return nil, err
	}
	s.recordAuthorization(ctx, client, in, scope, s.locate(ctx, in.Client.IP))

	return &AuthorizeResult{
		ResponseType: oauth.ResponseTypeToken,
		RedirectURI:  in.RedirectURI,
		State:        in.State,
		Scope:        scope,
		AccessToken:  issued.AccessToken,
		RefreshToken: issued.RefreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    int64(s.accessLifetime(client).Seconds()),
	}, nil
}

// ============================================================================
// Exchange
// ============================================================================

type ExchangeInput struct {
	Code         string
	State        string
	ClientID     kernel.ClientID
	ClientSecret string
	RedirectURI  string
	Origin       string
	Client       fingerprint.RequestContext
}

type ExchangeResult struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	Scope        string `json:"scope"`
	State        string `json:"state"`
	RedirectURI  string `json:"-"`
}

// RedirectURL carries the tokens as query parameters
func (r *ExchangeResult) RedirectURL() (string, error) {
	u, err := url.Parse(r.RedirectURI)
	if err != nil {
		return "", errx.Wrap(err, "invalid redirect uri", errx.TypeValidation)
	}
	q := u.Query()
	q.Set("access_token", r.AccessToken)
	q.Set("refresh_token", r.RefreshToken)
	q.Set("token_type", r.TokenType)
	q.Set("expires_in", strconv.FormatInt(r.ExpiresIn, 10))
	q.Set("state", r.State)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Exchange trades a code for a token pair. The code is consumed before any
// other check so it can never be used twice.
func (s *Server) Exchange(ctx context.Context, in ExchangeInput) (*ExchangeResult, error) {
	if missing := missingParams(map[string]string{
		"code":          in.Code,
		"state":         in.State,
		"client_secret": in.ClientSecret,
	}); missing != "" {
		return nil, oauth.ErrInvalidRequest("missing " + missing)
	}

	code, err := s.codes.Consume(ctx, token.Hash(in.Code), in.State)
	if err != nil {
		if errx.IsCode(err, oauth.CodeCodeExpiredOrInvalid) {
			s.metrics.RecordOAuthCode("rejected")
		}
		return nil, err
	}
	if code.IsExpired(s.now()) {
		s.metrics.RecordOAuthCode("expired")
		return nil, oauth.ErrCodeExpiredOrInvalid()
	}
	if !in.ClientID.IsEmpty() && in.ClientID != code.ClientID {
		return nil, oauth.ErrCodeExpiredOrInvalid()
	}

	client, err := s.clients.FindByID(ctx, code.ClientID)
	if err != nil {
		if errx.IsCode(err, oauth.CodeClientNotFound) {
			return nil, oauth.ErrInvalidClient()
		}
		return nil, err
	}
	if !client.IsActive || !s.secrets.Verify(client.SecretHash, in.ClientSecret) {
		return nil, oauth.ErrInvalidClient()
	}
	if !client.DomainAllowed(in.Origin) {
		return nil, oauth.ErrDomainNotAuthorized()
	}
	if in.RedirectURI != "" && (in.RedirectURI != code.RedirectURI || !client.HasRedirectURI(in.RedirectURI)) {
		return nil, oauth.ErrInvalidRedirectURI()
	}
	if !client.AllowsGrant(oauth.GrantAuthorizationCode) {
		return nil, oauth.ErrUnauthorizedClient(oauth.GrantAuthorizationCode)
	}

	username, err := s.fields.Decrypt(code.EncryptedUsername)
	if err != nil || username == "" {
		return nil, oauth.ErrCodeExpiredOrInvalid()
	}
	u, err := s.activeUser(ctx, code.UserID)
	if err != nil {
		return nil, err
	}

	issued, err := s.issueTokens(ctx, client, u, username, in.Client, code.Scope, oauth.GrantAuthorizationCode)
	if err != nil {
		return nil, err
	}
	s.metrics.RecordOAuthCode("exchanged")
	logx.WithContext(ctx).WithFields(logx.Fields{
		"client_id": client.ClientID,
		"user_id":   u.ID,
	}).Info("OAuth authorization code exchanged")

	return &ExchangeResult{
		AccessToken:  issued.AccessToken,
		RefreshToken: issued.RefreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    int64(s.accessLifetime(client).Seconds()),
		Scope:        code.Scope,
		State:        code.State,
		RedirectURI:  code.RedirectURI,
	}, nil
}

// ============================================================================
// Helpers
// ============================================================================

func (s *Server) activeUser(ctx context.Context, id kernel.UserID) (*user.User, error) {
	u, err := s.sessions.ResolveUser(ctx, id)
	if err != nil {
		if errx.IsCode(err, user.CodeUserNotFound) {
			return nil, oauth.ErrCodeExpiredOrInvalid()
		}
		return nil, err
	}
	if u.Blocked {
		return nil, oauth.ErrAccessDenied()
	}
	return u, nil
}

func (s *Server) issueTokens(ctx context.Context, client *oauth.Client, u *user.User, username string, rc fingerprint.RequestContext, scope, grant string) (*authsrv.Issued, error) {
	issued, err := s.sessions.StartSession(ctx, authsrv.StartInput{
		User:       u,
		Username:   username,
		Client:     rc,
		AccessTTL:  s.accessLifetime(client),
		RefreshTTL: s.refreshLifetime(client),
	})
	if err != nil {
		return nil, err
	}

	now := s.now()
	record := &oauth.TokenRecord{
		ID:               uuid.NewString(),
		ClientID:         client.ClientID,
		UserID:           u.ID,
		AccessTokenHash:  token.Hash(issued.AccessToken),
		RefreshTokenHash: token.Hash(issued.RefreshToken),
		Scope:            scope,
		GrantType:        grant,
		ExpiresAt:        now.Add(s.accessLifetime(client)),
		CreatedAt:        now,
	}
	if err := s.tokens.Save(ctx, record); err != nil {
		return nil, errx.Wrap(err, "failed to record issued tokens", errx.TypeInternal)
	}
	s.metrics.RecordOAuthTokensIssued(grant)
	return issued, nil
}

func (s *Server) recordAuthorization(ctx context.Context, client *oauth.Client, in AuthorizeInput, scope string, location *geo.Location) {
	a := &oauth.Authorization{
		ID:           uuid.NewString(),
		ClientID:     client.ClientID,
		UserID:       in.Identity.UserID,
		Scope:        scope,
		ResponseType: in.ResponseType,
		RedirectURI:  in.RedirectURI,
		IPAddress:    in.Client.IP,
		UserAgent:    in.Client.UserAgent,
		Location:     location,
		CreatedAt:    s.now(),
	}
	if err := s.authorizations.Save(ctx, a); err != nil {
		logx.WithContext(ctx).WithError(err).WithField("client_id", client.ClientID).
			Warn("Failed to record OAuth authorization")
	}
}

// locate never fails the flow; lookups are best effort
func (s *Server) locate(ctx context.Context, ip string) *geo.Location {
	if s.geo == nil {
		return nil
	}
	loc, err := s.geo.Lookup(ctx, ip)
	if err != nil {
		logx.WithContext(ctx).WithError(err).Debug("Geolocation unavailable")
		return nil
	}
	return loc
}

func (s *Server) accessLifetime(c *oauth.Client) time.Duration {
	if c.AccessTokenLifetime > 0 {
		return c.AccessTokenLifetime
	}
	return s.cfg.DefaultAccessTokenLifetime
}

func (s *Server) refreshLifetime(c *oauth.Client) time.Duration {
	if c.RefreshTokenLifetime > 0 {
		return c.RefreshTokenLifetime
	}
	return s.cfg.DefaultRefreshTokenLifetime
}

// missingParams names the empty values, in a fixed order
func missingParams(params map[string]string) string {
	var missing []string
	for _, name := range []string{"client_id", "redirect_uri", "response_type", "state", "code", "client_secret"} {
		if v, ok := params[name]; ok && strings.TrimSpace(v) == "" {
			missing = append(missing, name)
		}
	}
	return strings.Join(missing, ", ")
}

func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
