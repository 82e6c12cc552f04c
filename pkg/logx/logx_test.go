package logx_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/Abraxas-365/sentinel/pkg/kernel"
	"github.com/Abraxas-365/sentinel/pkg/logx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestEntryCarriesFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := logx.NewLoggerWithCore(core)

	ctx := context.WithValue(context.Background(), kernel.RequestIDKey, "req-1")
	logger.WithFields(logx.Fields{"audit_event": "login_attempt", "success": false}).
		WithContext(ctx).
		WithError(errors.New("boom")).
		Warn("Audit: login attempt")

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, zapcore.WarnLevel, entry.Level)
	fields := entry.ContextMap()
	assert.Equal(t, "login_attempt", fields["audit_event"])
	assert.Equal(t, false, fields["success"])
	assert.Equal(t, "req-1", fields["request_id"])
	assert.Equal(t, "boom", fields["error"])
}

func TestSetLevelFiltersJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := logx.NewLogger(&logx.Config{Level: logx.LevelInfo, Format: logx.FormatJSON, Output: &buf})

	logger.WithField("k", "v").Debug("hidden")
	logger.WithField("k", "v").Info("shown")

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line))
	assert.Equal(t, "shown", line["msg"])
	assert.Equal(t, "v", line["k"])

	buf.Reset()
	logger.SetLevel(logx.LevelOff)
	logger.WithField("k", "v").Error("dropped")
	assert.Empty(t, buf.String())
	assert.Equal(t, logx.LevelOff, logger.GetLevel())
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, logx.LevelWarn, logx.ParseLevel("warning"))
	assert.Equal(t, logx.LevelInfo, logx.ParseLevel("nonsense"))
}
