package oauthsrv

import (
	"context"
	"time"

	"github.com/Abraxas-365/sentinel/pkg/iam/oauth"
	"github.com/Abraxas-365/sentinel/pkg/logx"
)

// CleanupService periodically deletes expired authorization codes
type CleanupService struct {
	codes    oauth.CodeRepository
	interval time.Duration
	now      func() time.Time
}

func NewCleanupService(codes oauth.CodeRepository, interval time.Duration) *CleanupService {
	if interval <= 0 {
		interval = time.Minute
	}
	return &CleanupService{codes: codes, interval: interval, now: time.Now}
}

// Run blocks until ctx is cancelled
func (s *CleanupService) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	logx.Infof("OAuth code cleanup running every %s", s.interval)
	for {
		select {
		case <-ctx.Done():
			logx.Info("OAuth code cleanup stopped")
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce deletes the codes that are expired right now
func (s *CleanupService) RunOnce(ctx context.Context) int64 {
	n, err := s.codes.DeleteExpired(ctx, s.now())
	if err != nil {
		logx.WithError(err).Warn("Failed to delete expired OAuth codes")
		return 0
	}
	if n > 0 {
		logx.WithField("deleted", n).Debug("Expired OAuth codes deleted")
	}
	return n
}
