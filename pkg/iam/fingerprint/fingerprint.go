// Package fingerprint binds tokens to the client context that requested them.
package fingerprint

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/url"
	"strings"
)

const delimiter = "|"

// RequestContext is the subset of an HTTP request that identifies a client
type RequestContext struct {
	UserAgent      string
	IP             string
	AcceptLanguage string
	Referer        string
}

// RefererOrigin reduces the Referer header to scheme://host. Anything that
// does not parse as an absolute URL yields "".
func (rc RequestContext) RefererOrigin() string {
	if rc.Referer == "" {
		return ""
	}
	u, err := url.Parse(rc.Referer)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return strings.ToLower(u.Scheme + "://" + u.Host)
}

// Generate derives the fingerprint for rc and a username hash. Missing
// attributes contribute empty strings, so the result is always defined.
func Generate(rc RequestContext, usernameHash string) string {
	material := strings.Join([]string{
		rc.UserAgent,
		rc.IP,
		rc.AcceptLanguage,
		rc.RefererOrigin(),
		usernameHash,
	}, delimiter)
	sum := sha256.Sum256([]byte(material))
	return hex.EncodeToString(sum[:])
}

// Equal compares two fingerprints in constant time
func Equal(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// Short returns a log-safe prefix of a fingerprint
func Short(fp string) string {
	if len(fp) <= 12 {
		return fp
	}
	return fp[:12]
}
