package authapi

import (
	"time"

	"github.com/Abraxas-365/sentinel/pkg/errx"
	"github.com/Abraxas-365/sentinel/pkg/iam/auth"
	"github.com/Abraxas-365/sentinel/pkg/iam/auth/authsrv"
	"github.com/Abraxas-365/sentinel/pkg/iam/fingerprint"
	"github.com/Abraxas-365/sentinel/pkg/kernel"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

// CookieConfig controls the browser credential cookies
type CookieConfig struct {
	SessionName string
	RefreshName string
	MaxAge      time.Duration
	Secure      bool
}

// RateLimit bounds login attempts per client IP. Zero Max disables it.
type RateLimit struct {
	Max    int
	Window time.Duration
}

// AuthHandlers exposes login, refresh, logout and session management
type AuthHandlers struct {
	service    *authsrv.SessionService
	middleware *auth.Middleware
	cookies    CookieConfig
	loginLimit RateLimit
}

func NewAuthHandlers(service *authsrv.SessionService, middleware *auth.Middleware, cookies CookieConfig, loginLimit RateLimit) *AuthHandlers {
	return &AuthHandlers{
		service:    service,
		middleware: middleware,
		cookies:    cookies,
		loginLimit: loginLimit,
	}
}

type loginRequest struct {
	Username string `json:"username" form:"username"`
	Password string `json:"password" form:"password"`
}

type refreshRequest struct {
	AccessToken  string `json:"token" form:"token"`
	RefreshToken string `json:"refreshToken" form:"refreshToken"`
}

type refreshResponse struct {
	AccessToken  string `json:"token"`
	RefreshToken string `json:"refreshToken,omitempty"`
}

func (h *AuthHandlers) RegisterRoutes(router fiber.Router) {
	group := router.Group("/auth")

	login := []fiber.Handler{}
	if h.loginLimit.Max > 0 {
		login = append(login, limiter.New(limiter.Config{
			Max:        h.loginLimit.Max,
			Expiration: h.loginLimit.Window,
			LimitReached: func(c *fiber.Ctx) error {
				return fiber.NewError(fiber.StatusTooManyRequests, "too many login attempts")
			},
		}))
	}
	group.Post("/login", append(login, h.Login)...)
	group.Post("/refresh", h.Refresh)

	authed := h.middleware.Authenticated()
	group.Post("/logout", authed, h.Logout)
	group.Get("/me", authed, h.Me)
	group.Get("/sessions", authed, h.ListSessions)
	group.Delete("/sessions/:id", authed, h.RevokeSession)
}

func (h *AuthHandlers) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return errx.Validation("invalid request body")
	}

	issued, err := h.service.Login(c.UserContext(), authsrv.LoginInput{
		Username: req.Username,
		Password: req.Password,
		Client:   fingerprint.FromFiber(c),
	})
	if err != nil {
		return err
	}

	h.setCookie(c, h.cookies.SessionName, issued.SessionID.String())
	h.setCookie(c, h.cookies.RefreshName, issued.RefreshToken)
	return c.JSON(issued.Pair)
}

func (h *AuthHandlers) Refresh(c *fiber.Ctx) error {
	var body refreshRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&body); err != nil {
			return errx.Validation("invalid request body")
		}
	}

	access := auth.BearerToken(c)
	if access == "" {
		access = auth.Clean(body.AccessToken)
	}
	refresh := auth.Clean(c.Cookies(h.cookies.RefreshName))
	if refresh == "" {
		refresh = auth.Clean(c.Get(auth.RefreshTokenHeader))
	}
	if refresh == "" {
		refresh = auth.Clean(body.RefreshToken)
	}

	out, err := h.service.Refresh(c.UserContext(), authsrv.RefreshInput{
		AccessToken:  access,
		RefreshToken: refresh,
		Client:       fingerprint.FromFiber(c),
	})
	if err != nil {
		return err
	}

	h.setCookie(c, h.cookies.SessionName, out.SessionID.String())
	if out.Rotated {
		h.setCookie(c, h.cookies.RefreshName, out.RefreshToken)
	}
	return c.JSON(refreshResponse{AccessToken: out.AccessToken, RefreshToken: out.RefreshToken})
}

func (h *AuthHandlers) Logout(c *fiber.Ctx) error {
	id, err := auth.IdentityFrom(c)
	if err != nil {
		return err
	}
	if err := h.service.Logout(c.UserContext(), id, c.IP()); err != nil {
		return err
	}
	h.clearCookie(c, h.cookies.SessionName)
	h.clearCookie(c, h.cookies.RefreshName)
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *AuthHandlers) Me(c *fiber.Ctx) error {
	id, err := auth.IdentityFrom(c)
	if err != nil {
		return err
	}
	return c.JSON(id)
}

func (h *AuthHandlers) ListSessions(c *fiber.Ctx) error {
	id, err := auth.IdentityFrom(c)
	if err != nil {
		return err
	}
	page, err := h.service.ListSessions(c.UserContext(), id.UserID, kernel.PaginationOptions{
		Page:     c.QueryInt("page", 1),
		PageSize: c.QueryInt("page_size", 20),
	})
	if err != nil {
		return err
	}
	return c.JSON(page)
}

func (h *AuthHandlers) RevokeSession(c *fiber.Ctx) error {
	id, err := auth.IdentityFrom(c)
	if err != nil {
		return err
	}
	if err := h.service.Revoke(c.UserContext(), kernel.SessionID(c.Params("id")), id.UserID); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *AuthHandlers) setCookie(c *fiber.Ctx, name, value string) {
	c.Cookie(&fiber.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(h.cookies.MaxAge.Seconds()),
		HTTPOnly: true,
		Secure:   h.cookies.Secure,
		SameSite: fiber.CookieSameSiteStrictMode,
	})
}

func (h *AuthHandlers) clearCookie(c *fiber.Ctx, name string) {
	c.Cookie(&fiber.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HTTPOnly: true,
		Secure:   h.cookies.Secure,
		SameSite: fiber.CookieSameSiteStrictMode,
	})
}
