package authinfra

import (
	"context"
	"time"

	"github.com/Abraxas-365/sentinel/pkg/iam/auth"
	"github.com/Abraxas-365/sentinel/pkg/kernel"
	"github.com/Abraxas-365/sentinel/pkg/logx"
)

var _ auth.AuditService = (*LogxAuditService)(nil)

// LogxAuditService implements auth.AuditService using structured logx logging.
type LogxAuditService struct {
	logger *logx.Logger
}

// NewLogxAuditService logs through logger, or the package default when nil
func NewLogxAuditService(logger *logx.Logger) *LogxAuditService {
	return &LogxAuditService{logger: logger}
}

func (s *LogxAuditService) entry(ctx context.Context, fields logx.Fields) *logx.Entry {
	fields["timestamp"] = time.Now()
	if s.logger == nil {
		return logx.WithFields(fields).WithContext(ctx)
	}
	return s.logger.WithFields(fields).WithContext(ctx)
}

func (s *LogxAuditService) LogLoginAttempt(ctx context.Context, userID kernel.UserID, success bool, reason, ip, userAgent string) {
	e := s.entry(ctx, logx.Fields{
		"audit_event": "login_attempt",
		"user_id":     userID,
		"success":     success,
		"reason":      reason,
		"ip":          ip,
		"user_agent":  userAgent,
	})
	if success {
		e.Info("Audit: login attempt")
		return
	}
	e.Warn("Audit: login attempt")
}

func (s *LogxAuditService) LogLogout(ctx context.Context, userID kernel.UserID, sessionID kernel.SessionID, ip string) {
	s.entry(ctx, logx.Fields{
		"audit_event": "logout",
		"user_id":     userID,
		"session_id":  sessionID,
		"ip":          ip,
	}).Info("Audit: logout")
}

func (s *LogxAuditService) LogTokenRefresh(ctx context.Context, userID kernel.UserID, ip string, rotated bool) {
	s.entry(ctx, logx.Fields{
		"audit_event": "token_refresh",
		"user_id":     userID,
		"ip":          ip,
		"rotated":     rotated,
	}).Info("Audit: token refresh")
}

func (s *LogxAuditService) LogAccessDenied(ctx context.Context, userID kernel.UserID, reason, ip, path string) {
	s.entry(ctx, logx.Fields{
		"audit_event": "access_denied",
		"user_id":     userID,
		"reason":      reason,
		"ip":          ip,
		"path":        path,
	}).Warn("Audit: access denied")
}
