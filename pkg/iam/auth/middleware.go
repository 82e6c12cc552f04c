package auth

import (
	"strings"

	"github.com/Abraxas-365/sentinel/pkg/errx"
	"github.com/Abraxas-365/sentinel/pkg/iam"
	"github.com/Abraxas-365/sentinel/pkg/iam/fingerprint"
	"github.com/Abraxas-365/sentinel/pkg/kernel"
	"github.com/gofiber/fiber/v2"
)

const (
	// RefreshTokenHeader carries the refresh token for non-browser clients
	RefreshTokenHeader = "X-Refresh-Token"
	// RefreshRequiredHeader tells the client to call the refresh endpoint
	RefreshRequiredHeader = "X-Refresh-Required"
)

// CookieNames configures where browser credentials live
type CookieNames struct {
	Session string
	Refresh string
}

// Middleware adapts the Engine to fiber routes
type Middleware struct {
	engine  *Engine
	cookies CookieNames
	audit   AuditService
}

func NewMiddleware(engine *Engine, cookies CookieNames, audit AuditService) *Middleware {
	return &Middleware{
		engine:  engine,
		cookies: cookies,
		audit:   audit,
	}
}

// Require guards a route with policy. On success the identity is stored in
// fiber locals and in the user context.
func (m *Middleware) Require(policy Policy) fiber.Handler {
	return func(c *fiber.Ctx) error {
		req := RequestFromFiber(c, m.cookies)
		id, err := m.engine.Authorize(c.UserContext(), req, policy)
		if err != nil {
			if errx.IsCode(err, CodeRefreshRequired) {
				c.Set(RefreshRequiredHeader, "true")
			}
			if m.audit != nil {
				var xe *errx.Error
				reason := "error"
				if errx.As(err, &xe) {
					reason = xe.Code
				}
				m.audit.LogAccessDenied(c.UserContext(), "", reason, req.Client.IP, c.Path())
			}
			return err
		}

		c.Locals(string(kernel.IdentityKey), id)
		c.SetUserContext(kernel.WithIdentity(c.UserContext(), id))
		return c.Next()
	}
}

// Authenticated admits any valid caller
func (m *Middleware) Authenticated() fiber.Handler {
	return m.Require(Authenticated())
}

// RootOnly admits root callers only
func (m *Middleware) RootOnly() fiber.Handler {
	return m.Require(RootOnly())
}

// RequestFromFiber collects the engine inputs from a fiber request
func RequestFromFiber(c *fiber.Ctx, cookies CookieNames) Request {
	refresh := c.Cookies(cookies.Refresh)
	if Clean(refresh) == "" {
		refresh = c.Get(RefreshTokenHeader)
	}
	return Request{
		SessionID:    kernel.SessionID(c.Cookies(cookies.Session)),
		BearerToken:  BearerToken(c),
		RefreshToken: refresh,
		Client:       fingerprint.FromFiber(c),
	}
}

// BearerToken extracts the token from "Authorization: Bearer <token>"
func BearerToken(c *fiber.Ctx) string {
	header := c.Get(fiber.HeaderAuthorization)
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return Clean(strings.TrimSpace(parts[1]))
}

// IdentityFrom returns the identity stored by Require
func IdentityFrom(c *fiber.Ctx) (*kernel.Identity, error) {
	id, ok := c.Locals(string(kernel.IdentityKey)).(*kernel.Identity)
	if !ok || !id.IsValid() {
		return nil, iam.ErrUnauthorized()
	}
	return id, nil
}
