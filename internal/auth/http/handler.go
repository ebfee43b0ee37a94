// Package http wires the OAuth2 endpoints, the admin client API and the
// health probes onto a net/http mux.
package http

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/tidehall/gatekeeper/internal/auth/guard"
	"github.com/tidehall/gatekeeper/internal/auth/service"
	"github.com/tidehall/gatekeeper/internal/auth/store"
	"github.com/tidehall/gatekeeper/pkg/oauthsdk"
	"github.com/tidehall/gatekeeper/pkg/slogx"
)

// Handler bundles the services behind the HTTP surface.
type Handler struct {
	clients   *service.ClientService
	authorize *service.AuthorizeService
	tokens    *service.TokenService
	store     store.Store
	authn     guard.Authenticator
}

func NewHandler(
	clients *service.ClientService,
	authorize *service.AuthorizeService,
	tokens *service.TokenService,
	st store.Store,
	authn guard.Authenticator,
) *Handler {
	return &Handler{
		clients:   clients,
		authorize: authorize,
		tokens:    tokens,
		store:     st,
		authn:     authn,
	}
}

// parseForm enforces the form content type the OAuth2 endpoints require.
func parseForm(r *http.Request) *oauthsdk.OAuth2Error {
	ct := r.Header.Get("Content-Type")
	if mediatype, _, ok := strings.Cut(ct, ";"); ok {
		ct = mediatype
	}
	if strings.TrimSpace(ct) != "application/x-www-form-urlencoded" {
		return oauthsdk.ErrInvalidContentType
	}
	if err := r.ParseForm(); err != nil {
		return oauthsdk.ErrInvalidFormBody
	}
	return nil
}

// clientCredentials extracts client authentication, preferring HTTP Basic
// over form parameters per RFC 6749 section 2.3.1.
func clientCredentials(r *http.Request) (id, secret string) {
	if id, secret, ok := r.BasicAuth(); ok {
		if decodedID, err := url.QueryUnescape(id); err == nil {
			id = decodedID
		}
		if decodedSecret, err := url.QueryUnescape(secret); err == nil {
			secret = decodedSecret
		}
		return id, secret
	}
	return r.PostFormValue("client_id"), r.PostFormValue("client_secret")
}

// writeServiceError maps service sentinel errors onto wire responses.
// Unrecognized errors become an opaque server_error, logged with detail.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidClient):
		w.Header().Set("WWW-Authenticate", `Basic realm="oauth"`)
		oauthsdk.ErrInvalidClient.WriteError(w)
	case errors.Is(err, service.ErrInvalidGrant):
		oauthsdk.ErrInvalidGrant.WriteError(w)
	case errors.Is(err, service.ErrInvalidScope):
		oauthsdk.ErrInvalidScope.WriteError(w)
	case errors.Is(err, service.ErrUnauthorizedClient):
		oauthsdk.ErrUnauthorizedClient.WriteError(w)
	case errors.Is(err, service.ErrUnsupportedGrantType):
		oauthsdk.ErrUnsupportedGrantType.WriteError(w)
	case errors.Is(err, service.ErrUnsupportedResponseType):
		oauthsdk.ErrUnsupportedResponseType.WriteError(w)
	case errors.Is(err, service.ErrAccessDenied):
		oauthsdk.ErrAccessDenied.WriteError(w)
	case errors.Is(err, service.ErrInvalidRequest), errors.Is(err, service.ErrUnregisteredRedirect):
		oauthsdk.NewOAuth2Error(http.StatusBadRequest, oauthsdk.ErrorCodeInvalidRequest, err.Error()).WriteError(w)
	default:
		slogx.FromContext(r.Context()).Error("request failed",
			"path", r.URL.Path,
			"error", err,
		)
		oauthsdk.ErrServerError.WriteError(w)
	}
}

// errorCode extracts the RFC error code from a service error for redirect
// encoding.
func errorCode(err error) string {
	switch {
	case errors.Is(err, service.ErrUnsupportedResponseType):
		return oauthsdk.ErrorCodeUnsupportedResponseType
	case errors.Is(err, service.ErrUnauthorizedClient):
		return oauthsdk.ErrorCodeUnauthorizedClient
	case errors.Is(err, service.ErrInvalidScope):
		return oauthsdk.ErrorCodeInvalidScope
	case errors.Is(err, service.ErrInvalidRequest):
		return oauthsdk.ErrorCodeInvalidRequest
	case errors.Is(err, service.ErrAccessDenied):
		return oauthsdk.ErrorCodeAccessDenied
	default:
		return oauthsdk.ErrorCodeServerError
	}
}
