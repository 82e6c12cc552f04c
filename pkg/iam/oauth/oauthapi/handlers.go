package oauthapi

import (
	"encoding/base64"
	"strings"
	"time"

	"github.com/Abraxas-365/sentinel/pkg/errx"
	"github.com/Abraxas-365/sentinel/pkg/iam/auth"
	"github.com/Abraxas-365/sentinel/pkg/iam/fingerprint"
	"github.com/Abraxas-365/sentinel/pkg/iam/oauth"
	"github.com/Abraxas-365/sentinel/pkg/iam/oauth/oauthsrv"
	"github.com/Abraxas-365/sentinel/pkg/kernel"
	"github.com/Abraxas-365/sentinel/pkg/logx"
	"github.com/Abraxas-365/sentinel/pkg/ptrx"
	"github.com/gofiber/fiber/v2"
)

const responseModeRedirect = "redirect"

// OAuthHandlers exposes the authorization server and client administration
type OAuthHandlers struct {
	server     *oauthsrv.Server
	middleware *auth.Middleware
}

func NewOAuthHandlers(server *oauthsrv.Server, middleware *auth.Middleware) *OAuthHandlers {
	return &OAuthHandlers{server: server, middleware: middleware}
}

// RegisterRoutes mounts /oauth on router and the admin API on admin
func (h *OAuthHandlers) RegisterRoutes(router fiber.Router, admin fiber.Router) {
	group := router.Group("/oauth")
	group.Get("/authorize", h.middleware.Authenticated(), h.Authorize)
	group.Post("/token", h.Token)
	group.Get("/clients/:client_id", h.GetClient)

	clients := admin.Group("/oauth/clients", h.middleware.RootOnly())
	clients.Post("/", h.CreateClient)
	clients.Get("/", h.ListClients)
	clients.Get("/:client_id", h.GetClientAdmin)
	clients.Put("/:client_id", h.UpdateClient)
	clients.Delete("/:client_id", h.DeleteClient)
}

// errorResponse is the RFC 6749 error body
type errorResponse struct {
	Error       string `json:"error"`
	Description string `json:"error_description,omitempty"`
	State       string `json:"state,omitempty"`
}

// ============================================================================
// Protocol endpoints
// ============================================================================

func (h *OAuthHandlers) Authorize(c *fiber.Ctx) error {
	id, err := auth.IdentityFrom(c)
	if err != nil {
		return err
	}

	state := c.Query("state")
	res, err := h.server.Authorize(c.UserContext(), oauthsrv.AuthorizeInput{
		ClientID:     kernel.ClientID(c.Query("client_id")),
		RedirectURI:  c.Query("redirect_uri"),
		ResponseType: c.Query("response_type"),
		State:        state,
		Scope:        c.Query("scope"),
		Origin:       requestOrigin(c),
		Identity:     id,
		Client:       fingerprint.FromFiber(c),
	})
	if err != nil {
		return protocolError(c, err, state)
	}

	if c.Query("response_mode") == "json" {
		return c.JSON(res)
	}
	location, err := res.RedirectURL()
	if err != nil {
		return err
	}
	return c.Redirect(location, fiber.StatusFound)
}

type tokenRequest struct {
	GrantType    string `json:"grant_type" form:"grant_type"`
	Code         string `json:"code" form:"code"`
	State        string `json:"state" form:"state"`
	ClientID     string `json:"client_id" form:"client_id"`
	ClientSecret string `json:"client_secret" form:"client_secret"`
	RedirectURI  string `json:"redirect_uri" form:"redirect_uri"`
	ResponseMode string `json:"response_mode" form:"response_mode"`
}

func (h *OAuthHandlers) Token(c *fiber.Ctx) error {
	c.Set(fiber.HeaderCacheControl, "no-store")
	c.Set(fiber.HeaderPragma, "no-cache")

	var req tokenRequest
	if err := c.BodyParser(&req); err != nil {
		return protocolError(c, oauth.ErrInvalidRequest("invalid request body"), "")
	}
	if id, secret, ok := basicCredentials(c); ok {
		req.ClientID, req.ClientSecret = id, secret
	}
	// grant_type may be omitted; the code grant is the only one exchanged here
	if req.GrantType != "" && req.GrantType != oauth.GrantAuthorizationCode {
		return protocolError(c, oauth.ErrUnsupportedGrantType(req.GrantType), req.State)
	}

	res, err := h.server.Exchange(c.UserContext(), oauthsrv.ExchangeInput{
		Code:         req.Code,
		State:        req.State,
		ClientID:     kernel.ClientID(req.ClientID),
		ClientSecret: req.ClientSecret,
		RedirectURI:  req.RedirectURI,
		Origin:       requestOrigin(c),
		Client:       fingerprint.FromFiber(c),
	})
	if err != nil {
		return protocolError(c, err, req.State)
	}

	if req.ResponseMode == responseModeRedirect {
		location, err := res.RedirectURL()
		if err != nil {
			return err
		}
		return c.Redirect(location, fiber.StatusFound)
	}
	return c.JSON(res)
}

func (h *OAuthHandlers) GetClient(c *fiber.Ctx) error {
	client, err := h.server.GetClient(c.UserContext(), kernel.ClientID(c.Params("client_id")))
	if err != nil {
		return err
	}
	return c.JSON(client)
}

// ============================================================================
// Client administration
// ============================================================================

// clientRequest carries lifetimes in seconds
type clientRequest struct {
	Name                 *string  `json:"name"`
	Description          *string  `json:"description"`
	RedirectURIs         []string `json:"redirect_uris"`
	AllowedScopes        []string `json:"allowed_scopes"`
	AllowedGrantTypes    []string `json:"allowed_grant_types"`
	AuthorizedDomains    []string `json:"authorized_domains"`
	IsActive             *bool    `json:"is_active"`
	AccessTokenLifetime  *int64   `json:"access_token_lifetime"`
	RefreshTokenLifetime *int64   `json:"refresh_token_lifetime"`
}

// clientResponse reports lifetimes in seconds
type clientResponse struct {
	*oauth.Client
	AccessTokenLifetime  int64  `json:"access_token_lifetime"`
	RefreshTokenLifetime int64  `json:"refresh_token_lifetime"`
	ClientSecret         string `json:"client_secret,omitempty"`
}

func toResponse(c *oauth.Client, secret string) clientResponse {
	return clientResponse{
		Client:               c,
		AccessTokenLifetime:  int64(c.AccessTokenLifetime / time.Second),
		RefreshTokenLifetime: int64(c.RefreshTokenLifetime / time.Second),
		ClientSecret:         secret,
	}
}

func (h *OAuthHandlers) CreateClient(c *fiber.Ctx) error {
	id, err := auth.IdentityFrom(c)
	if err != nil {
		return err
	}
	var req clientRequest
	if err := c.BodyParser(&req); err != nil {
		return errx.Validation("invalid request body")
	}

	created, err := h.server.CreateClient(c.UserContext(), oauthsrv.CreateClientInput{
		Name:                 ptrx.Value(req.Name),
		Description:          ptrx.Value(req.Description),
		RedirectURIs:         req.RedirectURIs,
		AllowedScopes:        req.AllowedScopes,
		AllowedGrantTypes:    req.AllowedGrantTypes,
		AuthorizedDomains:    req.AuthorizedDomains,
		AccessTokenLifetime:  seconds(req.AccessTokenLifetime),
		RefreshTokenLifetime: seconds(req.RefreshTokenLifetime),
		CreatedBy:            id.UserID,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(toResponse(created.Client, created.ClientSecret))
}

func (h *OAuthHandlers) ListClients(c *fiber.Ctx) error {
	page, err := h.server.ListClients(c.UserContext(), kernel.PaginationOptions{
		Page:     c.QueryInt("page", 1),
		PageSize: c.QueryInt("page_size", 20),
	})
	if err != nil {
		return err
	}
	items := make([]clientResponse, len(page.Items))
	for i := range page.Items {
		items[i] = toResponse(&page.Items[i], "")
	}
	return c.JSON(kernel.Paginated[clientResponse]{Items: items, Page: page.Page, Empty: page.Empty})
}

func (h *OAuthHandlers) GetClientAdmin(c *fiber.Ctx) error {
	client, err := h.server.GetClientAdmin(c.UserContext(), kernel.ClientID(c.Params("client_id")))
	if err != nil {
		return err
	}
	return c.JSON(toResponse(client, ""))
}

func (h *OAuthHandlers) UpdateClient(c *fiber.Ctx) error {
	var req clientRequest
	if err := c.BodyParser(&req); err != nil {
		return errx.Validation("invalid request body")
	}

	in := oauthsrv.UpdateClientInput{
		Name:              req.Name,
		Description:       req.Description,
		RedirectURIs:      req.RedirectURIs,
		AllowedScopes:     req.AllowedScopes,
		AllowedGrantTypes: req.AllowedGrantTypes,
		AuthorizedDomains: req.AuthorizedDomains,
		IsActive:          req.IsActive,
	}
	if req.AccessTokenLifetime != nil {
		in.AccessTokenLifetime = ptrx.Duration(seconds(req.AccessTokenLifetime))
	}
	if req.RefreshTokenLifetime != nil {
		in.RefreshTokenLifetime = ptrx.Duration(seconds(req.RefreshTokenLifetime))
	}

	client, err := h.server.UpdateClient(c.UserContext(), kernel.ClientID(c.Params("client_id")), in)
	if err != nil {
		return err
	}
	return c.JSON(toResponse(client, ""))
}

func (h *OAuthHandlers) DeleteClient(c *fiber.Ctx) error {
	if err := h.server.DeleteClient(c.UserContext(), kernel.ClientID(c.Params("client_id"))); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// ============================================================================
// Helpers
// ============================================================================

// protocolError renders OAuth errors in the RFC 6749 shape and leaves the
// rest to the application error handler.
func protocolError(c *fiber.Ctx, err error, state string) error {
	name := oauth.ErrorName(err)
	if name == "" {
		return err
	}
	var e *errx.Error
	description := name
	if errx.As(err, &e) {
		description = e.Message
		if reason, ok := e.Details["reason"].(string); ok && reason != "" {
			description = reason
		}
	}
	logx.WithContext(c.UserContext()).WithFields(logx.Fields{
		"oauth_error": name,
		"path":        c.Path(),
	}).Debug("OAuth request rejected")
	return c.Status(errx.HTTPStatus(err)).JSON(errorResponse{
		Error:       name,
		Description: description,
		State:       state,
	})
}

// requestOrigin prefers the Origin header and falls back to the Referer
func requestOrigin(c *fiber.Ctx) string {
	if origin := c.Get(fiber.HeaderOrigin); origin != "" && origin != "null" {
		return origin
	}
	return fingerprint.FromFiber(c).RefererOrigin()
}

func basicCredentials(c *fiber.Ctx) (string, string, bool) {
	header := c.Get(fiber.HeaderAuthorization)
	if len(header) < 6 || !strings.EqualFold(header[:6], "basic ") {
		return "", "", false
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(header[6:]))
	if err != nil {
		return "", "", false
	}
	id, secret, ok := strings.Cut(string(raw), ":")
	if !ok || id == "" {
		return "", "", false
	}
	return id, secret, true
}

func seconds(v *int64) time.Duration {
	return time.Duration(ptrx.Value(v)) * time.Second
}
