package authsrv

import (
	"context"
	"crypto/subtle"
	"sync"
	"time"

	"github.com/Abraxas-365/sentinel/pkg/errx"
	"github.com/Abraxas-365/sentinel/pkg/iam/auth"
	"github.com/Abraxas-365/sentinel/pkg/iam/fingerprint"
	"github.com/Abraxas-365/sentinel/pkg/iam/role"
	"github.com/Abraxas-365/sentinel/pkg/iam/session"
	"github.com/Abraxas-365/sentinel/pkg/iam/token"
	"github.com/Abraxas-365/sentinel/pkg/iam/user"
	"github.com/Abraxas-365/sentinel/pkg/kernel"
	"github.com/Abraxas-365/sentinel/pkg/logx"
	"github.com/Abraxas-365/sentinel/pkg/metrics"
	"github.com/google/uuid"
)

// BootstrapUserID identifies the development bootstrap account
const BootstrapUserID kernel.UserID = "bootstrap"

// Config is passed explicitly so the service has no global lookups
type Config struct {
	AccessTTL          time.Duration
	RootAccessTTL      time.Duration
	RefreshTTL         time.Duration
	RotateRefreshToken bool
	DevBypass          DevBypassConfig
}

// DevBypassConfig describes the bootstrap credential. It is honored only
// when the binary is built with the dev tag, Enabled is set and the
// request comes from loopback.
type DevBypassConfig struct {
	Enabled  bool
	Username string
	Password string
}

// SessionService owns the session lifecycle: login, refresh, revocation
// and validation. It is the only writer of session rows besides revoke.
type SessionService struct {
	users     user.UserRepository
	passwords user.PasswordService
	roles     role.Resolver
	sessions  session.Repository
	vault     auth.WebSessionStore
	codec     *token.Codec
	audit     auth.AuditService
	metrics   metrics.Recorder
	cfg       Config
	now       func() time.Time

	dummyOnce sync.Once
	dummyHash string
}

var _ auth.SessionValidator = (*SessionService)(nil)

func NewSessionService(
	users user.UserRepository,
	passwords user.PasswordService,
	roles role.Resolver,
	sessions session.Repository,
	vault auth.WebSessionStore,
	codec *token.Codec,
	audit auth.AuditService,
	recorder metrics.Recorder,
	cfg Config,
) *SessionService {
	if recorder == nil {
		recorder = metrics.NewNoopMetrics()
	}
	return &SessionService{
		users:     users,
		passwords: passwords,
		roles:     roles,
		sessions:  sessions,
		vault:     vault,
		codec:     codec,
		audit:     audit,
		metrics:   recorder,
		cfg:       cfg,
		now:       time.Now,
	}
}

// ============================================================================
// Inputs and results
// ============================================================================

type LoginInput struct {
	Username string
	Password string
	Client   fingerprint.RequestContext
}

// StartInput mints a session for an already authenticated user. Zero TTLs
// fall back to the configured ones.
type StartInput struct {
	User       *user.User
	Username   string
	Client     fingerprint.RequestContext
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// Issued is the result of a login
type Issued struct {
	token.Pair
	SessionID  kernel.SessionID
	UserID     kernel.UserID
	Root       bool
	RefreshTTL time.Duration
}

type RefreshInput struct {
	AccessToken  string
	RefreshToken string
	Client       fingerprint.RequestContext
}

// Refreshed carries the new access token. RefreshToken is set only when
// rotation is enabled.
type Refreshed struct {
	AccessToken  string
	RefreshToken string
	SessionID    kernel.SessionID
	Rotated      bool
	RefreshTTL   time.Duration
}

// ============================================================================
// Login
// ============================================================================

// Login checks credentials and starts a session for the request's fingerprint
func (s *SessionService) Login(ctx context.Context, in LoginInput) (*Issued, error) {
	username := user.CanonicalUsername(in.Username)

	u, err := s.authenticate(ctx, username, in)
	if err != nil {
		reason := metrics.ResultError
		var xe *errx.Error
		if errx.As(err, &xe) {
			reason = xe.Code
		}
		userID := kernel.UserID("")
		if u != nil {
			userID = u.ID
		}
		s.metrics.RecordLogin(metrics.ResultFailure, reason)
		s.auditLogin(ctx, userID, false, reason, in.Client)
		return nil, err
	}

	issued, err := s.StartSession(ctx, StartInput{User: u, Username: username, Client: in.Client})
	if err != nil {
		s.metrics.RecordLogin(metrics.ResultError, "session")
		return nil, err
	}

	s.metrics.RecordLogin(metrics.ResultSuccess, "")
	s.auditLogin(ctx, u.ID, true, "", in.Client)
	logx.WithContext(ctx).WithFields(logx.Fields{
		"user_id":     u.ID,
		"session_id":  issued.SessionID,
		"root":        u.Root,
		"ip":          in.Client.IP,
		"fingerprint": fingerprint.Short(fingerprint.Generate(in.Client, user.HashUsername(username))),
	}).Info("User logged in")
	return issued, nil
}

func (s *SessionService) authenticate(ctx context.Context, username string, in LoginInput) (*user.User, error) {
	if username == "" || in.Password == "" {
		return nil, auth.ErrInvalidCredentials()
	}

	if s.devBypassAllowed(in.Client) && s.matchesBootstrap(username, in.Password) {
		logx.WithContext(ctx).WithField("ip", in.Client.IP).Warn("Development bootstrap credential used")
		return s.bootstrapUser(), nil
	}

	u, err := s.users.FindByUsernameHash(ctx, user.HashUsername(username))
	if err != nil {
		if errx.IsCode(err, user.CodeUserNotFound) {
			// keep the miss as slow as a wrong password
			s.passwords.Verify(s.dummyPasswordHash(), in.Password)
			return nil, auth.ErrInvalidCredentials()
		}
		return nil, errx.Wrap(err, "failed to look up user", errx.TypeInternal)
	}

	if !s.passwords.Verify(u.PasswordHash, in.Password) {
		return u, auth.ErrInvalidCredentials()
	}
	if u.Blocked {
		return u, auth.ErrUserBlocked()
	}
	return u, nil
}

func (s *SessionService) dummyPasswordHash() string {
	s.dummyOnce.Do(func() {
		h, err := s.passwords.Hash(uuid.NewString())
		if err == nil {
			s.dummyHash = h
		}
	})
	return s.dummyHash
}

// StartSession signs a token pair for an authenticated user and upserts
// the session keyed by fingerprint. It is shared with the OAuth server.
func (s *SessionService) StartSession(ctx context.Context, in StartInput) (*Issued, error) {
	u := in.User
	username := user.CanonicalUsername(in.Username)
	fp := fingerprint.Generate(in.Client, user.HashUsername(username))

	roles, err := s.roles.ResolveEffectiveRoles(ctx, u)
	if err != nil {
		return nil, err
	}

	accessTTL := in.AccessTTL
	if accessTTL <= 0 {
		accessTTL = s.cfg.AccessTTL
		if u.Root {
			accessTTL = s.cfg.RootAccessTTL
		}
	}
	refreshTTL := in.RefreshTTL
	if refreshTTL <= 0 {
		refreshTTL = s.cfg.RefreshTTL
	}

	access, err := s.codec.IssueAccess(token.AccessSpec{
		UserID:      u.ID,
		Username:    username,
		Fingerprint: fp,
		Root:        u.Root,
		Roles:       roles,
		TTL:         accessTTL,
	})
	if err != nil {
		return nil, err
	}
	refresh, err := s.codec.IssueRefresh(u.ID, fp, refreshTTL)
	if err != nil {
		return nil, err
	}

	now := s.now()
	device := fingerprint.DescribeDevice(in.Client.UserAgent)
	res, err := s.sessions.Upsert(ctx, session.Session{
		ID:               kernel.SessionID(uuid.NewString()),
		Fingerprint:      fp,
		UserID:           u.ID,
		RefreshTokenHash: token.Hash(refresh),
		IPAddress:        in.Client.IP,
		UserAgent:        in.Client.UserAgent,
		Device:           device.Device,
		Browser:          device.Browser,
		OS:               device.OS,
		CreatedAt:        now,
		UpdatedAt:        now,
	})
	if err != nil {
		return nil, errx.Wrap(err, "failed to store session", errx.TypeInternal)
	}

	sessionID := res.Session.ID
	if res.PreviousID != "" && res.PreviousID != sessionID {
		s.dropVaultEntry(ctx, res.PreviousID)
	}
	s.storeVaultEntry(ctx, sessionID, access, refreshTTL)

	return &Issued{
		Pair:       token.Pair{AccessToken: access, RefreshToken: refresh},
		SessionID:  sessionID,
		UserID:     u.ID,
		Root:       u.Root,
		RefreshTTL: refreshTTL,
	}, nil
}

// ============================================================================
// Refresh
// ============================================================================

// Refresh issues a new access token for a live session. The expired access
// token must belong to the same subject and fingerprint as the refresh
// token, and the current request must still produce that fingerprint.
func (s *SessionService) Refresh(ctx context.Context, in RefreshInput) (*Refreshed, error) {
	out, userID, err := s.refresh(ctx, in)
	if err != nil {
		s.metrics.RecordRefresh(metrics.ResultFailure, false)
		logx.WithContext(ctx).WithError(err).WithField("ip", in.Client.IP).Warn("Token refresh rejected")
		return nil, err
	}
	s.metrics.RecordRefresh(metrics.ResultSuccess, out.Rotated)
	if s.audit != nil {
		s.audit.LogTokenRefresh(ctx, userID, in.Client.IP, out.Rotated)
	}
	return out, nil
}

func (s *SessionService) refresh(ctx context.Context, in RefreshInput) (*Refreshed, kernel.UserID, error) {
	rawAccess := auth.Clean(in.AccessToken)
	rawRefresh := auth.Clean(in.RefreshToken)
	if rawRefresh == "" {
		return nil, "", auth.ErrMissingRefreshToken()
	}
	if rawAccess == "" {
		return nil, "", auth.ErrMissingToken()
	}

	rc, err := s.codec.VerifyRefresh(rawRefresh)
	if err != nil {
		return nil, "", auth.ErrInvalidRefreshToken()
	}
	sess, err := s.activeSessionFor(ctx, rc.UserID(), rc.Fingerprint, rawRefresh)
	if err != nil {
		return nil, "", err
	}
	if sess == nil {
		return nil, "", auth.ErrInvalidRefreshToken()
	}

	ac, err := s.codec.ParseAccessIgnoringExpiry(rawAccess)
	if err != nil {
		return nil, "", auth.ErrInvalidToken()
	}
	if ac.Subject != rc.Subject || !fingerprint.Equal(ac.Fingerprint, rc.Fingerprint) {
		return nil, "", auth.ErrTokenMismatch()
	}

	username := s.codec.DecryptUsername(ac)
	if username == "" {
		return nil, "", auth.ErrInvalidToken()
	}
	current := fingerprint.Generate(in.Client, user.HashUsername(username))
	if !fingerprint.Equal(current, rc.Fingerprint) {
		return nil, "", auth.ErrFingerprintMismatch()
	}

	u, err := s.ResolveUser(ctx, rc.UserID())
	if err != nil {
		if errx.IsCode(err, user.CodeUserNotFound) {
			return nil, "", auth.ErrInvalidRefreshToken()
		}
		return nil, "", err
	}
	if u.Blocked {
		return nil, "", auth.ErrUserBlocked()
	}

	roles, err := s.roles.ResolveEffectiveRoles(ctx, u)
	if err != nil {
		return nil, "", err
	}
	accessTTL := s.cfg.AccessTTL
	if u.Root {
		accessTTL = s.cfg.RootAccessTTL
	}
	access, err := s.codec.IssueAccess(token.AccessSpec{
		UserID:      u.ID,
		Username:    username,
		Fingerprint: rc.Fingerprint,
		Root:        u.Root,
		Roles:       roles,
		TTL:         accessTTL,
	})
	if err != nil {
		return nil, "", err
	}

	out := &Refreshed{AccessToken: access, SessionID: sess.ID, RefreshTTL: s.cfg.RefreshTTL}
	newHash := ""
	if s.cfg.RotateRefreshToken {
		rotated, err := s.codec.IssueRefresh(u.ID, rc.Fingerprint, s.cfg.RefreshTTL)
		if err != nil {
			return nil, "", err
		}
		out.RefreshToken = rotated
		out.Rotated = true
		newHash = token.Hash(rotated)
	}
	if err := s.sessions.UpdateRefreshHash(ctx, sess.ID, newHash); err != nil {
		if errx.IsCode(err, session.CodeSessionNotFound) {
			return nil, "", auth.ErrInvalidRefreshToken()
		}
		return nil, "", errx.Wrap(err, "failed to update session", errx.TypeInternal)
	}
	s.storeVaultEntry(ctx, sess.ID, access, s.cfg.RefreshTTL)

	return out, u.ID, nil
}

// ============================================================================
// Revocation
// ============================================================================

// Revoke marks a session revoked. Only the owner can revoke it; any other
// caller gets SessionNotFound.
func (s *SessionService) Revoke(ctx context.Context, sessionID kernel.SessionID, actor kernel.UserID) error {
	if sessionID.IsEmpty() || actor.IsEmpty() {
		return session.ErrSessionNotFound()
	}
	if err := s.sessions.Revoke(ctx, sessionID, actor); err != nil {
		return err
	}
	s.dropVaultEntry(ctx, sessionID)
	s.metrics.RecordSessionRevoked()
	logx.WithContext(ctx).WithFields(logx.Fields{
		"user_id":    actor,
		"session_id": sessionID,
	}).Info("Session revoked")
	return nil
}

// Logout revokes the caller's session for the current fingerprint. It
// succeeds when no live session exists.
func (s *SessionService) Logout(ctx context.Context, id *kernel.Identity, ip string) error {
	sess, err := s.sessions.FindActive(ctx, id.UserID, id.Fingerprint)
	if err != nil {
		if errx.IsCode(err, session.CodeSessionNotFound) {
			return nil
		}
		return err
	}
	if err := s.Revoke(ctx, sess.ID, id.UserID); err != nil {
		return err
	}
	if s.audit != nil {
		s.audit.LogLogout(ctx, id.UserID, sess.ID, ip)
	}
	return nil
}

// ============================================================================
// Validation
// ============================================================================

// ValidateSession reports whether a live session matches the claims
func (s *SessionService) ValidateSession(ctx context.Context, claims *token.AccessClaims) (bool, error) {
	if claims == nil || claims.Subject == "" || claims.Fingerprint == "" {
		return false, nil
	}
	_, err := s.sessions.FindActive(ctx, claims.UserID(), claims.Fingerprint)
	if err != nil {
		if errx.IsCode(err, session.CodeSessionNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// ValidateSessionToken decodes raw and checks its session
func (s *SessionService) ValidateSessionToken(ctx context.Context, raw string) (bool, error) {
	claims, err := s.codec.VerifyAccess(auth.Clean(raw))
	if err != nil {
		return false, nil
	}
	return s.ValidateSession(ctx, claims)
}

// ValidateRefreshToken reports whether raw is the current refresh token of
// a live session
func (s *SessionService) ValidateRefreshToken(ctx context.Context, raw string) (bool, error) {
	raw = auth.Clean(raw)
	if raw == "" {
		return false, nil
	}
	rc, err := s.codec.VerifyRefresh(raw)
	if err != nil {
		return false, nil
	}
	sess, err := s.activeSessionFor(ctx, rc.UserID(), rc.Fingerprint, raw)
	if err != nil {
		return false, err
	}
	return sess != nil, nil
}

// activeSessionFor returns the live session holding raw's hash, or nil
func (s *SessionService) activeSessionFor(ctx context.Context, userID kernel.UserID, fp, raw string) (*session.Session, error) {
	sess, err := s.sessions.FindActive(ctx, userID, fp)
	if err != nil {
		if errx.IsCode(err, session.CodeSessionNotFound) {
			return nil, nil
		}
		return nil, errx.Wrap(err, "failed to load session", errx.TypeInternal)
	}
	if subtle.ConstantTimeCompare([]byte(sess.RefreshTokenHash), []byte(token.Hash(raw))) != 1 {
		return nil, nil
	}
	return sess, nil
}

// ============================================================================
// Queries
// ============================================================================

// ResolveUser loads a user by id, including the bootstrap account when the
// development bypass is active.
func (s *SessionService) ResolveUser(ctx context.Context, id kernel.UserID) (*user.User, error) {
	if id == BootstrapUserID && s.devBypassConfigured() {
		return s.bootstrapUser(), nil
	}
	return s.users.FindByID(ctx, id)
}

func (s *SessionService) ListSessions(ctx context.Context, userID kernel.UserID, opts kernel.PaginationOptions) (kernel.Paginated[session.Session], error) {
	return s.sessions.ListByUser(ctx, userID, opts.Normalize(20, 100))
}

// ============================================================================
// Helpers
// ============================================================================

func (s *SessionService) devBypassConfigured() bool {
	b := s.cfg.DevBypass
	return devBypassCompiled && b.Enabled && b.Username != "" && b.Password != ""
}

func (s *SessionService) devBypassAllowed(rc fingerprint.RequestContext) bool {
	return s.devBypassConfigured() && fingerprint.IsLoopback(rc)
}

func (s *SessionService) matchesBootstrap(username, password string) bool {
	b := s.cfg.DevBypass
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(user.CanonicalUsername(b.Username))) == 1
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(b.Password)) == 1
	return userOK && passOK
}

func (s *SessionService) bootstrapUser() *user.User {
	return &user.User{
		ID:           BootstrapUserID,
		UsernameHash: user.HashUsername(s.cfg.DevBypass.Username),
		Root:         true,
	}
}

func (s *SessionService) storeVaultEntry(ctx context.Context, id kernel.SessionID, access string, ttl time.Duration) {
	if s.vault == nil {
		return
	}
	if err := s.vault.Put(ctx, id, access, ttl); err != nil {
		logx.WithContext(ctx).WithError(err).WithField("session_id", id).Warn("Failed to store web session token")
	}
}

func (s *SessionService) dropVaultEntry(ctx context.Context, id kernel.SessionID) {
	if s.vault == nil {
		return
	}
	if err := s.vault.Delete(ctx, id); err != nil {
		logx.WithContext(ctx).WithError(err).WithField("session_id", id).Warn("Failed to delete web session token")
	}
}

func (s *SessionService) auditLogin(ctx context.Context, userID kernel.UserID, success bool, reason string, rc fingerprint.RequestContext) {
	if s.audit == nil {
		return
	}
	s.audit.LogLoginAttempt(ctx, userID, success, reason, rc.IP, rc.UserAgent)
}
