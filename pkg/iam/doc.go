// Package iam (Identity and Access Management) provides the authentication
// and authorization core of the service: signed and fingerprint-bound tokens,
// server-side sessions, static role tables, and an OAuth2 authorization server
// for third-party clients.
//
// # Overview
//
// The iam package is organized into sub-packages that work together:
//
//   - iam/fingerprint: binds tokens to the client context that requested them
//   - iam/token:       access/refresh JWTs and the encrypted username claim
//   - iam/session:     one session row per fingerprint, with revocation
//   - iam/user:        user and group records, canonical usernames
//   - iam/role:        the static resource:action role table and its registry
//   - iam/scopes:      the resource table of this deployment
//   - iam/auth:        the authorization engine, middleware, and session lifecycle
//   - iam/oauth:       authorization code and implicit flows, client registry
//
// # Architecture
//
// Each sub-domain follows the same layering:
//
//	HTTP Handler (xxxapi)  →  Service (xxxsrv)  →  port.go interfaces  →  Infrastructure (xxxinfra)
//
// Each sub-domain owns its error registry ("AUTH", "TOKEN", "SESSION", "ROLE",
// "USER", "OAUTH") and ships in-memory repositories next to the Postgres and
// Redis ones so services can be exercised without external systems.
//
// # Request authorization
//
// The auth.Engine resolves a candidate token from the session cookie (through
// the server-side vault) or the Authorization header, verifies it, decrypts
// the username, applies the route policy, and finally compares the token's
// fingerprint against the current request. Every failure is a 401 except a
// fingerprint mismatch, which is a 403. An expired access token with a live
// refresh token yields REFRESH_REQUIRED and the X-Refresh-Required header.
//
// # Sessions
//
// Login upserts the session keyed by fingerprint, so a second login from the
// same device and account replaces the previous row instead of adding one.
// Refresh recomputes the fingerprint of the refreshing request, reloads the
// user's effective roles, and can optionally rotate the refresh token.
//
// # OAuth2
//
// Authorization codes are single use: the code is consumed atomically before
// any other check on exchange, so concurrent exchanges of the same code yield
// exactly one token pair. Codes expire after ten minutes by default and are
// stored hashed, with the username encrypted at rest.
package iam
