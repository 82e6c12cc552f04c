package auth

import (
	"context"

	"github.com/Abraxas-365/sentinel/pkg/errx"
	"github.com/Abraxas-365/sentinel/pkg/iam/fingerprint"
	"github.com/Abraxas-365/sentinel/pkg/iam/token"
	"github.com/Abraxas-365/sentinel/pkg/iam/user"
	"github.com/Abraxas-365/sentinel/pkg/kernel"
	"github.com/Abraxas-365/sentinel/pkg/logx"
	"github.com/Abraxas-365/sentinel/pkg/metrics"
)

// Engine is the per-request authorization decision
type Engine struct {
	codec    *token.Codec
	sessions SessionValidator
	vault    WebSessionStore
	metrics  metrics.Recorder
}

func NewEngine(codec *token.Codec, sessions SessionValidator, vault WebSessionStore, recorder metrics.Recorder) *Engine {
	if recorder == nil {
		recorder = metrics.NewNoopMetrics()
	}
	return &Engine{
		codec:    codec,
		sessions: sessions,
		vault:    vault,
		metrics:  recorder,
	}
}

// Authorize runs the decision for one request. Failures are 401 except a
// fingerprint mismatch, which is checked last and is 403.
func (e *Engine) Authorize(ctx context.Context, req Request, policy Policy) (*kernel.Identity, error) {
	id, err := e.authorize(ctx, req, policy)
	if err != nil {
		reason := "error"
		var xe *errx.Error
		if errx.As(err, &xe) {
			reason = xe.Code
		}
		e.metrics.RecordAuthorization(metrics.ResultFailure, reason)
		return nil, err
	}
	e.metrics.RecordAuthorization(metrics.ResultSuccess, "")
	return id, nil
}

func (e *Engine) authorize(ctx context.Context, req Request, policy Policy) (*kernel.Identity, error) {
	raw := e.candidateToken(ctx, req)
	if raw == "" {
		return nil, ErrMissingToken()
	}

	claims, err := e.codec.VerifyAccess(raw)
	if err != nil {
		if refresh := Clean(req.RefreshToken); refresh != "" {
			ok, verr := e.sessions.ValidateRefreshToken(ctx, refresh)
			if verr == nil && ok {
				return nil, ErrRefreshRequired()
			}
		}
		return nil, ErrInvalidToken()
	}

	username := e.codec.DecryptUsername(claims)
	if username == "" {
		return nil, ErrInvalidToken()
	}

	if policy.RootOnly && !claims.Root {
		return nil, ErrRootRequired()
	}

	if !claims.Root {
		ok, err := e.sessions.ValidateSession(ctx, claims)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrSessionInvalid()
		}
		if !policy.permits(claims.Roles) {
			return nil, ErrInsufficientRole()
		}
	}

	expected := fingerprint.Generate(req.Client, user.HashUsername(username))
	if !fingerprint.Equal(expected, claims.Fingerprint) {
		logx.WithContext(ctx).WithFields(logx.Fields{
			"user_id":     claims.Subject,
			"ip":          req.Client.IP,
			"fingerprint": fingerprint.Short(claims.Fingerprint),
		}).Warn("Fingerprint mismatch, possible token theft")
		return nil, ErrFingerprintMismatch()
	}

	return &kernel.Identity{
		UserID:      claims.UserID(),
		Username:    username,
		Fingerprint: claims.Fingerprint,
		Root:        claims.Root,
		Roles:       claims.Roles,
	}, nil
}

// candidateToken prefers the token held in the server side vault for the
// request's session, then the bearer header.
func (e *Engine) candidateToken(ctx context.Context, req Request) string {
	if sid := Clean(string(req.SessionID)); sid != "" && e.vault != nil {
		stored, err := e.vault.Get(ctx, kernel.SessionID(sid))
		if err != nil {
			logx.WithContext(ctx).WithError(err).Warn("Session vault lookup failed, falling back to bearer token")
		} else if stored != "" {
			return stored
		}
	}
	return Clean(req.BearerToken)
}
