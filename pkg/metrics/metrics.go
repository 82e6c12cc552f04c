package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	ResultSuccess = "success"
	ResultFailure = "failure"
	ResultError   = "error"
)

// Recorder is what services depend on. NoopMetrics satisfies it when
// metrics are disabled.
type Recorder interface {
	RecordLogin(result, reason string)
	RecordAuthorization(result, reason string)
	RecordRefresh(result string, rotated bool)
	RecordSessionRevoked()
	RecordOAuthCode(event string)
	RecordOAuthTokensIssued(grant string)
	RecordHTTPRequest(method, path string, status int, duration time.Duration)
}

var _ Recorder = (*Metrics)(nil)

// Metrics holds the Prometheus collectors
type Metrics struct {
	LoginTotal          *prometheus.CounterVec
	AuthorizationTotal  *prometheus.CounterVec
	RefreshTotal        *prometheus.CounterVec
	SessionsRevoked     prometheus.Counter
	OAuthCodesTotal     *prometheus.CounterVec
	OAuthTokensTotal    *prometheus.CounterVec
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

var (
	defaultMetrics *Metrics
	once           sync.Once
)

// Init returns Prometheus metrics registered on the default registry, or
// NoopMetrics when disabled. Registration happens once per process.
func Init(enabled bool) Recorder {
	if !enabled {
		return NewNoopMetrics()
	}
	once.Do(func() {
		defaultMetrics = New(prometheus.DefaultRegisterer)
	})
	return defaultMetrics
}

// New registers a fresh set of collectors on reg
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		LoginTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "sentinel_login_total",
			Help: "Login attempts by result and reason",
		}, []string{"result", "reason"}),
		AuthorizationTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "sentinel_authorization_total",
			Help: "Authorization decisions by result and reason",
		}, []string{"result", "reason"}),
		RefreshTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "sentinel_token_refresh_total",
			Help: "Access token refreshes",
		}, []string{"result", "rotated"}),
		SessionsRevoked: f.NewCounter(prometheus.CounterOpts{
			Name: "sentinel_sessions_revoked_total",
			Help: "Sessions revoked by their owner",
		}),
		OAuthCodesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "sentinel_oauth_codes_total",
			Help: "Authorization code lifecycle events",
		}, []string{"event"}),
		OAuthTokensTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "sentinel_oauth_tokens_issued_total",
			Help: "Token pairs issued to OAuth clients",
		}, []string{"grant"}),
		HTTPRequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "sentinel_http_requests_total",
			Help: "HTTP requests",
		}, []string{"method", "path", "status"}),
		HTTPRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sentinel_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"}),
	}
}

func (m *Metrics) RecordLogin(result, reason string) {
	m.LoginTotal.WithLabelValues(result, reason).Inc()
}

func (m *Metrics) RecordAuthorization(result, reason string) {
	m.AuthorizationTotal.WithLabelValues(result, reason).Inc()
}

func (m *Metrics) RecordRefresh(result string, rotated bool) {
	r := "false"
	if rotated {
		r = "true"
	}
	m.RefreshTotal.WithLabelValues(result, r).Inc()
}

func (m *Metrics) RecordSessionRevoked() {
	m.SessionsRevoked.Inc()
}

func (m *Metrics) RecordOAuthCode(event string) {
	m.OAuthCodesTotal.WithLabelValues(event).Inc()
}

func (m *Metrics) RecordOAuthTokensIssued(grant string) {
	m.OAuthTokensTotal.WithLabelValues(grant).Inc()
}
