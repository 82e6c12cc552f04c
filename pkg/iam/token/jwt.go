package token

import (
	"errors"
	"time"

	"github.com/Abraxas-365/sentinel/pkg/kernel"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var validMethods = []string{jwt.SigningMethodHS256.Alg()}

// SignAccess signs claims with secret. Type, IssuedAt, ExpiresAt and ID are
// always overwritten.
func SignAccess(claims AccessClaims, secret []byte, ttl time.Duration) (string, error) {
	now := time.Now()
	claims.Type = TypeAccess
	if claims.Roles == nil {
		claims.Roles = []string{}
	}
	claims.ID = uuid.NewString()
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.NotBefore = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	return sign(claims, secret)
}

// SignRefresh signs a refresh token bound to subject and fingerprint
func SignRefresh(subject kernel.UserID, fp, issuer string, secret []byte, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := RefreshClaims{
		Type:        TypeRefresh,
		Fingerprint: fp,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    issuer,
			Subject:   subject.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return sign(claims, secret)
}

func sign(claims jwt.Claims, secret []byte) (string, error) {
	if len(secret) == 0 {
		return "", ErrSigningFailed(errors.New("empty secret"))
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", ErrSigningFailed(err)
	}
	return signed, nil
}

// VerifyAccess checks signature, expiry and token type. Embedded fields
// stay encrypted.
func VerifyAccess(raw string, secret []byte, opts ...jwt.ParserOption) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := parse(raw, secret, claims, opts...); err != nil {
		return nil, err
	}
	if claims.Type != TypeAccess || claims.Subject == "" {
		return nil, ErrInvalidToken()
	}
	return claims, nil
}

// VerifyRefresh checks signature, expiry and token type
func VerifyRefresh(raw string, secret []byte, opts ...jwt.ParserOption) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	if err := parse(raw, secret, claims, opts...); err != nil {
		return nil, err
	}
	if claims.Type != TypeRefresh || claims.Subject == "" {
		return nil, ErrInvalidToken()
	}
	return claims, nil
}

func parse(raw string, secret []byte, claims jwt.Claims, opts ...jwt.ParserOption) error {
	if raw == "" || len(secret) == 0 {
		return ErrInvalidToken()
	}
	opts = append([]jwt.ParserOption{jwt.WithValidMethods(validMethods)}, opts...)
	tok, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return ErrExpiredToken()
		}
		return ErrRegistry.NewWithCause(CodeInvalidToken, err)
	}
	if !tok.Valid {
		return ErrInvalidToken()
	}
	return nil
}
