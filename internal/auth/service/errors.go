package service

import "errors"

// Sentinel errors named after the RFC 6749 error codes they map to. The HTTP
// layer matches with errors.Is and translates to wire responses; services
// wrap them with detail via fmt.Errorf("...: %w", Err...).
var (
	ErrInvalidRequest          = errors.New("invalid_request")
	ErrInvalidClient           = errors.New("invalid_client")
	ErrInvalidGrant            = errors.New("invalid_grant")
	ErrInvalidScope            = errors.New("invalid_scope")
	ErrUnauthorizedClient      = errors.New("unauthorized_client")
	ErrUnsupportedGrantType    = errors.New("unsupported_grant_type")
	ErrUnsupportedResponseType = errors.New("unsupported_response_type")
	ErrAccessDenied            = errors.New("access_denied")

	// ErrUnregisteredRedirect means the redirect_uri did not match any
	// registered URI. It is kept separate from ErrInvalidRequest because
	// the authorize endpoint must NOT redirect to an unvalidated URI; the
	// handler answers with a direct 400 instead.
	ErrUnregisteredRedirect = errors.New("unregistered_redirect_uri")
)
