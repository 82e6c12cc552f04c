package metrics

import "time"

// NoopMetrics discards everything
type NoopMetrics struct{}

var _ Recorder = (*NoopMetrics)(nil)

func NewNoopMetrics() *NoopMetrics { return &NoopMetrics{} }

func (*NoopMetrics) RecordLogin(string, string)                           {}
func (*NoopMetrics) RecordAuthorization(string, string)                   {}
func (*NoopMetrics) RecordRefresh(string, bool)                           {}
func (*NoopMetrics) RecordSessionRevoked()                                {}
func (*NoopMetrics) RecordOAuthCode(string)                               {}
func (*NoopMetrics) RecordOAuthTokensIssued(string)                       {}
func (*NoopMetrics) RecordHTTPRequest(string, string, int, time.Duration) {}
