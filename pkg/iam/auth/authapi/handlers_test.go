package authapi_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Abraxas-365/sentinel/pkg/errx"
	"github.com/Abraxas-365/sentinel/pkg/iam/auth"
	"github.com/Abraxas-365/sentinel/pkg/iam/auth/authapi"
	"github.com/Abraxas-365/sentinel/pkg/iam/auth/authinfra"
	"github.com/Abraxas-365/sentinel/pkg/iam/auth/authsrv"
	"github.com/Abraxas-365/sentinel/pkg/iam/role"
	"github.com/Abraxas-365/sentinel/pkg/iam/role/rolesrv"
	"github.com/Abraxas-365/sentinel/pkg/iam/session/sessioninfra"
	"github.com/Abraxas-365/sentinel/pkg/iam/token"
	"github.com/Abraxas-365/sentinel/pkg/iam/user"
	"github.com/Abraxas-365/sentinel/pkg/iam/user/userinfra"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) Edg/125.0"

func newApp(t *testing.T, limit authapi.RateLimit) *fiber.App {
	t.Helper()
	codec, err := token.NewCodec(token.Config{
		AccessSecret:  "access-secret-access-secret-0001",
		RefreshSecret: "refresh-secret-refresh-secret-01",
	})
	require.NoError(t, err)

	passwords := userinfra.NewBcryptPasswordService(bcrypt.MinCost)
	hash, err := passwords.Hash("pw")
	require.NoError(t, err)
	users := userinfra.NewMemoryUserRepository()
	users.PutUser(user.User{ID: "u-alice", UsernameHash: user.HashUsername("alice"), PasswordHash: hash})

	vault := authinfra.NewMemoryWebSessionStore()
	audit := authinfra.NewLogxAuditService(nil)
	svc := authsrv.NewSessionService(users, passwords, rolesrv.NewRoleService(users, users, role.MustRegistry()),
		sessioninfra.NewMemorySessionRepository(), vault, codec, audit, nil, authsrv.Config{
			AccessTTL:     time.Minute,
			RootAccessTTL: time.Hour,
			RefreshTTL:    time.Hour,
		})

	cookies := auth.CookieNames{Session: "sid", Refresh: "refresh_token"}
	mw := auth.NewMiddleware(auth.NewEngine(codec, svc, vault, nil), cookies, audit)

	app := fiber.New(fiber.Config{ErrorHandler: errx.FiberErrorHandler(false)})
	authapi.NewAuthHandlers(svc, mw, authapi.CookieConfig{
		SessionName: "sid",
		RefreshName: "refresh_token",
		MaxAge:      7 * 24 * time.Hour,
		Secure:      true,
	}, limit).RegisterRoutes(app)
	return app
}

func request(method, path, body string) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
	return req
}

func cookieByName(resp *http.Response, name string) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func loginResponse(t *testing.T, app *fiber.App) (*http.Response, token.Pair) {
	t.Helper()
	resp, err := app.Test(request(http.MethodPost, "/auth/login", `{"username":"alice","password":"pw"}`))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var pair token.Pair
	require.NoError(t, json.Unmarshal(raw, &pair))
	return resp, pair
}

func TestLoginSetsSecureCookies(t *testing.T) {
	app := newApp(t, authapi.RateLimit{})
	resp, pair := loginResponse(t, app)

	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)

	for _, name := range []string{"sid", "refresh_token"} {
		c := cookieByName(resp, name)
		require.NotNil(t, c, name)
		assert.True(t, c.HttpOnly)
		assert.True(t, c.Secure)
		assert.Equal(t, http.SameSiteStrictMode, c.SameSite)
		assert.Equal(t, 7*24*3600, c.MaxAge)
	}
	assert.Equal(t, pair.RefreshToken, cookieByName(resp, "refresh_token").Value)
}

func TestSessionCookieAuthenticatesMe(t *testing.T) {
	app := newApp(t, authapi.RateLimit{})
	resp, _ := loginResponse(t, app)

	req := request(http.MethodGet, "/auth/me", "")
	req.AddCookie(cookieByName(resp, "sid"))
	me, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, me.StatusCode)

	raw, _ := io.ReadAll(me.Body)
	assert.Contains(t, string(raw), `"u-alice"`)
	assert.NotContains(t, string(raw), "fingerprint")
}

func TestRefreshEndpoint(t *testing.T) {
	app := newApp(t, authapi.RateLimit{})
	resp, pair := loginResponse(t, app)

	req := request(http.MethodPost, "/auth/refresh", "")
	req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
	req.AddCookie(cookieByName(resp, "refresh_token"))
	out, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, out.StatusCode)

	raw, _ := io.ReadAll(out.Body)
	assert.Contains(t, string(raw), `"token"`)
	assert.NotContains(t, string(raw), "refreshToken")

	missing := request(http.MethodPost, "/auth/refresh", "")
	missing.Header.Set("Authorization", "Bearer "+pair.AccessToken)
	out, err = app.Test(missing)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, out.StatusCode)
}

func TestLogoutClearsCookiesAndRevokes(t *testing.T) {
	app := newApp(t, authapi.RateLimit{})
	_, pair := loginResponse(t, app)

	req := request(http.MethodPost, "/auth/logout", "")
	req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	sid := cookieByName(resp, "sid")
	require.NotNil(t, sid)
	assert.Empty(t, sid.Value)

	again := request(http.MethodGet, "/auth/me", "")
	again.Header.Set("Authorization", "Bearer "+pair.AccessToken)
	resp, err = app.Test(again)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRevokeForeignSessionIsNotFound(t *testing.T) {
	app := newApp(t, authapi.RateLimit{})
	_, pair := loginResponse(t, app)

	req := request(http.MethodDelete, "/auth/sessions/not-mine", "")
	req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestListSessionsEndpoint(t *testing.T) {
	app := newApp(t, authapi.RateLimit{})
	_, pair := loginResponse(t, app)

	req := request(http.MethodGet, "/auth/sessions?page=1&page_size=5", "")
	req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var page struct {
		Items []map[string]any `json:"items"`
	}
	raw, _ := io.ReadAll(resp.Body)
	require.NoError(t, json.Unmarshal(raw, &page))
	require.Len(t, page.Items, 1)
	assert.Equal(t, "Edge 125", page.Items[0]["browser"])
	assert.NotContains(t, page.Items[0], "fingerprint")
}

func TestLoginRateLimit(t *testing.T) {
	app := newApp(t, authapi.RateLimit{Max: 2, Window: time.Minute})

	var last int
	for i := 0; i < 3; i++ {
		resp, err := app.Test(request(http.MethodPost, "/auth/login", `{"username":"alice","password":"wrong"}`))
		require.NoError(t, err)
		last = resp.StatusCode
	}
	assert.Equal(t, http.StatusTooManyRequests, last)
}
