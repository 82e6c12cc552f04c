package roleapi_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Abraxas-365/sentinel/pkg/errx"
	"github.com/Abraxas-365/sentinel/pkg/iam/role"
	"github.com/Abraxas-365/sentinel/pkg/iam/role/roleapi"
	"github.com/Abraxas-365/sentinel/pkg/iam/role/rolesrv"
	"github.com/Abraxas-365/sentinel/pkg/iam/user"
	"github.com/Abraxas-365/sentinel/pkg/iam/user/userinfra"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newApp(t *testing.T, allow bool) (*fiber.App, *userinfra.MemoryUserRepository) {
	t.Helper()
	repo := userinfra.NewMemoryUserRepository()
	repo.PutUser(user.User{ID: "u1"})
	svc := rolesrv.NewRoleService(repo, repo, role.MustRegistry(
		role.Resource{Name: "invoice"},
		role.Resource{Name: "users", RootOnly: true},
	))

	guard := func(c *fiber.Ctx) error {
		if !allow {
			return errx.Unauthorized("root required")
		}
		return c.Next()
	}

	app := fiber.New(fiber.Config{ErrorHandler: errx.FiberErrorHandler(false)})
	roleapi.NewRoleHandlers(svc).RegisterRoutes(app.Group("/api/v1"), guard)
	return app, repo
}

func jsonRequest(method, path, body string) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestAssignViaHTTP(t *testing.T) {
	app, repo := newApp(t, true)

	resp, err := app.Test(jsonRequest(http.MethodPost, "/api/v1/users/u1/roles", `{"roles":["invoice:get"]}`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	u, err := repo.FindByID(t.Context(), "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"invoice:get"}, u.Roles)

	resp, err = app.Test(jsonRequest(http.MethodPost, "/api/v1/users/u1/roles", `{"roles":["users:get"]}`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, err = app.Test(jsonRequest(http.MethodPost, "/api/v1/users/u1/roles", `{"roles":["nope:get"]}`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = app.Test(jsonRequest(http.MethodPost, "/api/v1/users/ghost/roles", `{"roles":["invoice:get"]}`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestBlockViaHTTP(t *testing.T) {
	app, repo := newApp(t, true)

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/api/v1/users/u1/block", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	u, _ := repo.FindByID(t.Context(), "u1")
	assert.True(t, u.Blocked)
}

func TestGuardApplies(t *testing.T) {
	app, _ := newApp(t, false)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/roles", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
