package oauth

import (
	"net/http"

	"github.com/Abraxas-365/sentinel/pkg/errx"
)

// ============================================================================
// Error Registry
// ============================================================================

var ErrRegistry = errx.NewRegistry("OAUTH")

// DetailOAuthError is the detail key holding the RFC 6749 error string
const DetailOAuthError = "oauth_error"

var (
	CodeInvalidRequest       = ErrRegistry.Register("INVALID_REQUEST", errx.TypeValidation, http.StatusBadRequest, "Invalid OAuth request")
	CodeInvalidClient        = ErrRegistry.Register("INVALID_CLIENT", errx.TypeAuthorization, http.StatusUnauthorized, "Client authentication failed")
	CodeClientNotFound       = ErrRegistry.Register("CLIENT_NOT_FOUND", errx.TypeNotFound, http.StatusNotFound, "Client not found")
	CodeCodeExpiredOrInvalid = ErrRegistry.Register("CODE_EXPIRED_OR_INVALID", errx.TypeValidation, http.StatusBadRequest, "Authorization code is expired or invalid")
	CodeUnauthorizedClient   = ErrRegistry.Register("UNAUTHORIZED_CLIENT", errx.TypeValidation, http.StatusBadRequest, "Client is not allowed to use this grant")
	CodeInvalidResponseType  = ErrRegistry.Register("INVALID_RESPONSE_TYPE", errx.TypeValidation, http.StatusBadRequest, "Unsupported response type")
	CodeUnsupportedGrantType = ErrRegistry.Register("UNSUPPORTED_GRANT_TYPE", errx.TypeValidation, http.StatusBadRequest, "Unsupported grant type")
	CodeInvalidScope         = ErrRegistry.Register("INVALID_SCOPE", errx.TypeValidation, http.StatusBadRequest, "Invalid scope")
	CodeInvalidRedirectURI   = ErrRegistry.Register("INVALID_REDIRECT_URI", errx.TypeValidation, http.StatusBadRequest, "Redirect URI is not registered")
	CodeDomainNotAuthorized  = ErrRegistry.Register("DOMAIN_NOT_AUTHORIZED", errx.TypeForbidden, http.StatusForbidden, "Domain not authorized for this client")
	CodeAccessDenied         = ErrRegistry.Register("ACCESS_DENIED", errx.TypeForbidden, http.StatusForbidden, "Access denied")
	CodeInvalidClientData    = ErrRegistry.Register("INVALID_CLIENT_DATA", errx.TypeValidation, http.StatusBadRequest, "Invalid client data")
)

func newError(code *errx.ErrorCode, oauthError string) *errx.Error {
	return ErrRegistry.New(code).WithDetail(DetailOAuthError, oauthError)
}

func ErrInvalidRequest(reason string) *errx.Error {
	return newError(CodeInvalidRequest, "invalid_request").WithDetail("reason", reason)
}

func ErrInvalidClient() *errx.Error { return newError(CodeInvalidClient, "invalid_client") }

func ErrClientNotFound() *errx.Error { return newError(CodeClientNotFound, "invalid_client") }

func ErrCodeExpiredOrInvalid() *errx.Error {
	return newError(CodeCodeExpiredOrInvalid, "invalid_grant")
}

func ErrUnauthorizedClient(grant string) *errx.Error {
	return newError(CodeUnauthorizedClient, "unauthorized_client").WithDetail("grant_type", grant)
}

func ErrInvalidResponseType(responseType string) *errx.Error {
	return newError(CodeInvalidResponseType, "unsupported_response_type").WithDetail("response_type", responseType)
}

func ErrUnsupportedGrantType(grant string) *errx.Error {
	return newError(CodeUnsupportedGrantType, "unsupported_grant_type").WithDetail("grant_type", grant)
}

func ErrInvalidScope(scope string) *errx.Error {
	return newError(CodeInvalidScope, "invalid_scope").WithDetail("scope", scope)
}

func ErrInvalidRedirectURI() *errx.Error {
	return newError(CodeInvalidRedirectURI, "invalid_request")
}

func ErrDomainNotAuthorized() *errx.Error {
	return newError(CodeDomainNotAuthorized, "access_denied")
}

func ErrAccessDenied() *errx.Error { return newError(CodeAccessDenied, "access_denied") }

func ErrInvalidClientData(reason string) *errx.Error {
	return ErrRegistry.New(CodeInvalidClientData).WithDetail("reason", reason)
}

// ErrorName returns the RFC 6749 error string carried by err, or "" when
// err is not an OAuth error.
func ErrorName(err error) string {
	var e *errx.Error
	if !errx.As(err, &e) || e.Details == nil {
		return ""
	}
	name, _ := e.Details[DetailOAuthError].(string)
	return name
}
