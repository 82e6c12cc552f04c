package iamcontainer

import (
	"context"

	"github.com/Abraxas-365/sentinel/pkg/config"
	"github.com/Abraxas-365/sentinel/pkg/geo"
	"github.com/Abraxas-365/sentinel/pkg/geo/geoinfra"
	"github.com/Abraxas-365/sentinel/pkg/iam/auth"
	"github.com/Abraxas-365/sentinel/pkg/iam/auth/authapi"
	"github.com/Abraxas-365/sentinel/pkg/iam/auth/authinfra"
	"github.com/Abraxas-365/sentinel/pkg/iam/auth/authsrv"
	"github.com/Abraxas-365/sentinel/pkg/iam/oauth"
	"github.com/Abraxas-365/sentinel/pkg/iam/oauth/oauthapi"
	"github.com/Abraxas-365/sentinel/pkg/iam/oauth/oauthinfra"
	"github.com/Abraxas-365/sentinel/pkg/iam/oauth/oauthsrv"
	"github.com/Abraxas-365/sentinel/pkg/iam/role/roleapi"
	"github.com/Abraxas-365/sentinel/pkg/iam/role/rolesrv"
	"github.com/Abraxas-365/sentinel/pkg/iam/scopes"
	"github.com/Abraxas-365/sentinel/pkg/iam/session/sessioninfra"
	"github.com/Abraxas-365/sentinel/pkg/iam/token"
	"github.com/Abraxas-365/sentinel/pkg/iam/user/userinfra"
	"github.com/Abraxas-365/sentinel/pkg/logx"
	"github.com/Abraxas-365/sentinel/pkg/metrics"
	"github.com/gofiber/fiber/v2"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
)

// ---------------------------------------------------------------------------
// Deps: explicit external dependencies of the IAM context.
// ---------------------------------------------------------------------------

type Deps struct {
	DB      *sqlx.DB
	Redis   redis.UniversalClient
	Cfg     *config.Config
	Metrics metrics.Recorder
}

// ---------------------------------------------------------------------------
// Container: the public surface of the IAM module.
// ---------------------------------------------------------------------------

type Container struct {
	SessionService *authsrv.SessionService
	RoleService    *rolesrv.RoleService
	OAuthServer    *oauthsrv.Server
	Engine         *auth.Engine

	AuthHandlers  *authapi.AuthHandlers
	RoleHandlers  *roleapi.RoleHandlers
	OAuthHandlers *oauthapi.OAuthHandlers

	Middleware *auth.Middleware

	CodeCleanup *oauthsrv.CleanupService
}

// New builds the IAM graph: infra, repos, services, handlers, middleware
func New(deps Deps) (*Container, error) {
	logx.Info("🔧 Initializing IAM container...")
	cfg := deps.Cfg
	recorder := deps.Metrics
	if recorder == nil {
		recorder = metrics.NewNoopMetrics()
	}

	// ── Repositories ─────────────────────────────────────────────────────

	userRepo := userinfra.NewPostgresUserRepository(deps.DB)
	sessionRepo := sessioninfra.NewPostgresSessionRepository(deps.DB)
	clientRepo := oauthinfra.NewPostgresClientRepository(deps.DB)
	tokenRepo := oauthinfra.NewPostgresTokenRepository(deps.DB)
	authorizationRepo := oauthinfra.NewPostgresAuthorizationRepository(deps.DB)
	vault := authinfra.NewRedisWebSessionStore(deps.Redis)
	codeRepo := codeRepository(deps)

	// ── Infrastructure services ──────────────────────────────────────────

	codec, err := token.NewCodec(token.Config{
		AccessSecret:  cfg.Auth.AccessSecret,
		RefreshSecret: cfg.Auth.RefreshSecret,
		Issuer:        cfg.Auth.Issuer,
	})
	if err != nil {
		return nil, err
	}
	passwords := userinfra.NewBcryptPasswordService(cfg.Auth.BcryptCost)
	audit := authinfra.NewLogxAuditService(nil)

	var geolocator geo.Geolocator = geoinfra.NoopGeolocator{}
	if cfg.Geo.Enabled {
		geolocator = geoinfra.NewHTTPGeolocator(cfg.Geo.URLTemplate, cfg.Geo.Timeout, cfg.Geo.MaxRetries)
		logx.Info("  ✅ Geolocation enabled")
	}

	// ── Domain services ──────────────────────────────────────────────────

	c := &Container{}
	c.RoleService = rolesrv.NewRoleService(userRepo, userRepo, scopes.Registry())
	c.SessionService = authsrv.NewSessionService(
		userRepo,
		passwords,
		c.RoleService,
		sessionRepo,
		vault,
		codec,
		audit,
		recorder,
		authsrv.Config{
			AccessTTL:          cfg.Auth.AccessTokenTTL,
			RootAccessTTL:      cfg.Auth.RootAccessTokenTTL,
			RefreshTTL:         cfg.Auth.RefreshTokenTTL,
			RotateRefreshToken: cfg.Auth.RotateRefreshToken,
			DevBypass: authsrv.DevBypassConfig{
				Enabled:  cfg.Auth.DevBypass,
				Username: cfg.Auth.BootstrapUsername,
				Password: cfg.Auth.BootstrapPassword,
			},
		},
	)
	c.OAuthServer = oauthsrv.NewServer(
		clientRepo,
		codeRepo,
		tokenRepo,
		authorizationRepo,
		c.SessionService,
		codec.Fields(),
		passwords,
		geolocator,
		recorder,
		oauthsrv.Config{
			CodeTTL:                     cfg.OAuth.CodeTTL,
			DefaultAccessTokenLifetime:  cfg.OAuth.DefaultAccessTokenLifetime,
			DefaultRefreshTokenLifetime: cfg.OAuth.DefaultRefreshTokenLifetime,
		},
	)
	c.CodeCleanup = oauthsrv.NewCleanupService(codeRepo, cfg.OAuth.CleanupInterval)

	// ── Middleware ───────────────────────────────────────────────────────

	cookies := auth.CookieNames{Session: cfg.Auth.SessionCookieName, Refresh: cfg.Auth.RefreshCookieName}
	c.Engine = auth.NewEngine(codec, c.SessionService, vault, recorder)
	c.Middleware = auth.NewMiddleware(c.Engine, cookies, audit)

	// ── Handlers ─────────────────────────────────────────────────────────

	c.AuthHandlers = authapi.NewAuthHandlers(c.SessionService, c.Middleware, authapi.CookieConfig{
		SessionName: cfg.Auth.SessionCookieName,
		RefreshName: cfg.Auth.RefreshCookieName,
		MaxAge:      cfg.Auth.CookieMaxAge,
		Secure:      cfg.Auth.SecureCookies,
	}, authapi.RateLimit{Max: cfg.Auth.LoginRateLimit, Window: cfg.Auth.LoginRateWindow})
	c.RoleHandlers = roleapi.NewRoleHandlers(c.RoleService)
	c.OAuthHandlers = oauthapi.NewOAuthHandlers(c.OAuthServer, c.Middleware)

	logx.Info("✅ IAM container initialized")
	return c, nil
}

// RegisterRoutes mounts every IAM route on app
func (c *Container) RegisterRoutes(app *fiber.App) {
	api := app.Group("/api/v1")
	c.AuthHandlers.RegisterRoutes(app)
	c.RoleHandlers.RegisterRoutes(api, c.Middleware.RootOnly())
	c.OAuthHandlers.RegisterRoutes(app, api)
}

// StartBackgroundServices starts IAM background workers. They stop when
// ctx is cancelled.
func (c *Container) StartBackgroundServices(ctx context.Context) {
	go c.CodeCleanup.Run(ctx)
	logx.Info("  ✅ OAuth code cleanup started")
}

func codeRepository(deps Deps) oauth.CodeRepository {
	switch deps.Cfg.OAuth.CodeStore {
	case "redis":
		logx.Info("  ✅ Using Redis for OAuth codes")
		return oauthinfra.NewRedisCodeRepository(deps.Redis)
	case "memory":
		logx.Warn("  ⚠️  Using in-memory OAuth code store (single instance only)")
		return oauthinfra.NewMemoryStore()
	default:
		return oauthinfra.NewPostgresCodeRepository(deps.DB)
	}
}
