package metrics_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Abraxas-365/sentinel/pkg/metrics"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordersIncrementCounters(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())

	m.RecordLogin(metrics.ResultFailure, "invalid_credentials")
	m.RecordLogin(metrics.ResultFailure, "invalid_credentials")
	m.RecordAuthorization(metrics.ResultFailure, "fingerprint_mismatch")
	m.RecordRefresh(metrics.ResultSuccess, true)
	m.RecordOAuthCode("issued")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.LoginTotal.WithLabelValues(metrics.ResultFailure, "invalid_credentials")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AuthorizationTotal.WithLabelValues(metrics.ResultFailure, "fingerprint_mismatch")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RefreshTotal.WithLabelValues(metrics.ResultSuccess, "true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OAuthCodesTotal.WithLabelValues("issued")))
}

func TestInitNoop(t *testing.T) {
	_, ok := metrics.Init(false).(*metrics.NoopMetrics)
	assert.True(t, ok)
}

func TestMiddlewareAndHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	app := fiber.New()
	app.Use(metrics.Middleware(m, "/metrics"))
	app.Get("/metrics", metrics.Handler(reg))
	app.Get("/ping/:id", func(c *fiber.Ctx) error { return c.SendString("pong") })

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/ping/42", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/ping/:id", "200")))

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "sentinel_http_requests_total")
}
