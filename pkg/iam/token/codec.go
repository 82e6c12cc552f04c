package token

import (
	"time"

	"github.com/Abraxas-365/sentinel/pkg/kernel"
	"github.com/golang-jwt/jwt/v5"
)

// Config holds the signing material. RefreshSecret may equal AccessSecret.
type Config struct {
	AccessSecret  string
	RefreshSecret string
	Issuer        string
}

// AccessSpec is everything needed to mint an access token
type AccessSpec struct {
	UserID      kernel.UserID
	Username    string
	Fingerprint string
	Root        bool
	Roles       []string
	TTL         time.Duration
}

// Codec binds the package level primitives to configured secrets
type Codec struct {
	accessSecret  []byte
	refreshSecret []byte
	issuer        string
	fields        *FieldCipher
}

func NewCodec(cfg Config) (*Codec, error) {
	refresh := cfg.RefreshSecret
	if refresh == "" {
		refresh = cfg.AccessSecret
	}
	fields, err := NewFieldCipher([]byte(cfg.AccessSecret))
	if err != nil {
		return nil, err
	}
	return &Codec{
		accessSecret:  []byte(cfg.AccessSecret),
		refreshSecret: []byte(refresh),
		issuer:        cfg.Issuer,
		fields:        fields,
	}, nil
}

// IssueAccess encrypts the username and signs an access token
func (c *Codec) IssueAccess(spec AccessSpec) (string, error) {
	encrypted, err := c.fields.Encrypt(spec.Username)
	if err != nil {
		return "", err
	}
	return SignAccess(AccessClaims{
		EncryptedUsername: encrypted,
		Fingerprint:       spec.Fingerprint,
		Root:              spec.Root,
		Roles:             spec.Roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:  c.issuer,
			Subject: spec.UserID.String(),
		},
	}, c.accessSecret, spec.TTL)
}

func (c *Codec) IssueRefresh(userID kernel.UserID, fp string, ttl time.Duration) (string, error) {
	return SignRefresh(userID, fp, c.issuer, c.refreshSecret, ttl)
}

func (c *Codec) VerifyAccess(raw string) (*AccessClaims, error) {
	return VerifyAccess(raw, c.accessSecret, c.issuerOpts()...)
}

func (c *Codec) VerifyRefresh(raw string) (*RefreshClaims, error) {
	return VerifyRefresh(raw, c.refreshSecret, c.issuerOpts()...)
}

// ParseAccessIgnoringExpiry checks the signature of a possibly expired
// access token. Used only by the refresh flow to cross-check claims.
func (c *Codec) ParseAccessIgnoringExpiry(raw string) (*AccessClaims, error) {
	return VerifyAccess(raw, c.accessSecret, jwt.WithoutClaimsValidation())
}

// DecryptUsername returns "" when the claim cannot be authenticated
func (c *Codec) DecryptUsername(claims *AccessClaims) string {
	if claims == nil || claims.EncryptedUsername == "" {
		return ""
	}
	plain, err := c.fields.Decrypt(claims.EncryptedUsername)
	if err != nil {
		return ""
	}
	return plain
}

func (c *Codec) issuerOpts() []jwt.ParserOption {
	if c.issuer == "" {
		return nil
	}
	return []jwt.ParserOption{jwt.WithIssuer(c.issuer)}
}

// Fields exposes the claim cipher for other stores that must keep a
// username at rest, such as pending authorization codes.
func (c *Codec) Fields() *FieldCipher {
	return c.fields
}
