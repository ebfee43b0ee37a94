package http

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/tidehall/gatekeeper/internal/auth/service"
	"github.com/tidehall/gatekeeper/pkg/httpx"
	"github.com/tidehall/gatekeeper/pkg/oauthsdk"
)

// handleAuthorize implements GET /oauth/authorize for the already-consented
// path: the authenticated resource owner's user agent arrives with the full
// authorization request and is bounced back with a code.
//
// Failures before the redirect URI is validated answer with a direct 400;
// redirecting to an unverified URI would hand codes and error details to an
// attacker-chosen destination. Everything after validation is reported via
// redirect per RFC 6749 section 4.1.2.1.
func (h *Handler) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := service.AuthorizeRequest{
		ClientID:            q.Get("client_id"),
		RedirectURI:         q.Get("redirect_uri"),
		ResponseType:        q.Get("response_type"),
		Scope:               q.Get("scope"),
		State:               q.Get("state"),
		CodeChallenge:       q.Get("code_challenge"),
		CodeChallengeMethod: q.Get("code_challenge_method"),
		UserID:              httpx.UserIDFromContext(r.Context()),
		TenantID:            httpx.TenantIDFromContext(r.Context()),
	}

	result, err := h.authorize.Authorize(r.Context(), req)
	if err != nil {
		if errors.Is(err, service.ErrInvalidClient) || errors.Is(err, service.ErrUnregisteredRedirect) {
			writeServiceError(w, r, err)
			return
		}
		redirectError(w, r, req.RedirectURI, errorCode(err), req.State)
		return
	}

	redirectCode(w, r, result)
}

// handleAuthorizeApprove implements POST /oauth/authorize/approve: the
// consent UI posts the approved request and receives the redirect target as
// JSON so it can navigate the user agent itself.
func (h *Handler) handleAuthorizeApprove(w http.ResponseWriter, r *http.Request) {
	if oauthErr := parseForm(r); oauthErr != nil {
		oauthErr.WriteError(w)
		return
	}

	req := service.AuthorizeRequest{
		ClientID:            r.PostFormValue("client_id"),
		RedirectURI:         r.PostFormValue("redirect_uri"),
		ResponseType:        r.PostFormValue("response_type"),
		Scope:               r.PostFormValue("scope"),
		State:               r.PostFormValue("state"),
		CodeChallenge:       r.PostFormValue("code_challenge"),
		CodeChallengeMethod: r.PostFormValue("code_challenge_method"),
		UserID:              httpx.UserIDFromContext(r.Context()),
		TenantID:            httpx.TenantIDFromContext(r.Context()),
	}

	result, err := h.authorize.Authorize(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, oauthsdk.AuthorizeResponse{
		Code:        result.Code,
		State:       result.State,
		RedirectURI: codeRedirectURL(result),
	})
}

// handleAuthorizeDeny implements POST /oauth/authorize/deny: the consent UI
// reports refusal and receives the access_denied redirect target.
func (h *Handler) handleAuthorizeDeny(w http.ResponseWriter, r *http.Request) {
	if oauthErr := parseForm(r); oauthErr != nil {
		oauthErr.WriteError(w)
		return
	}

	clientID := r.PostFormValue("client_id")
	redirectURI := r.PostFormValue("redirect_uri")
	state := r.PostFormValue("state")

	target, err := h.authorize.Deny(r.Context(), clientID, redirectURI, state)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]string{
		"redirect_uri": errorRedirectURL(target, oauthsdk.ErrorCodeAccessDenied, state),
	})
}

// handleAuthorizeInfo implements GET /oauth/authorize/info, serving
// consent-screen metadata for a pending authorization request.
func (h *Handler) handleAuthorizeInfo(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	clientID := q.Get("client_id")

	info, err := h.authorize.Info(r.Context(), clientID, q.Get("redirect_uri"), q.Get("scope"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	scopes := make([]oauthsdk.ScopeDescriptor, len(info.Scopes))
	for i, s := range info.Scopes {
		scopes[i] = oauthsdk.ScopeDescriptor{Name: s.Name, Description: s.Description}
	}

	httpx.WriteJSON(w, http.StatusOK, oauthsdk.AuthorizeInfoResponse{
		ClientID:          clientID,
		ClientName:        info.ClientName,
		ClientDescription: info.ClientDescription,
		RedirectURI:       info.RedirectURI,
		Scopes:            scopes,
	})
}

func redirectCode(w http.ResponseWriter, r *http.Request, result *service.AuthorizeResult) {
	httpx.NoCache(w)
	http.Redirect(w, r, codeRedirectURL(result), http.StatusFound)
}

func redirectError(w http.ResponseWriter, r *http.Request, redirectURI, code, state string) {
	httpx.NoCache(w)
	http.Redirect(w, r, errorRedirectURL(redirectURI, code, state), http.StatusFound)
}

func codeRedirectURL(result *service.AuthorizeResult) string {
	u, _ := url.Parse(result.RedirectURI)
	q := u.Query()
	q.Set("code", result.Code)
	if result.State != "" {
		q.Set("state", result.State)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

func errorRedirectURL(redirectURI, code, state string) string {
	u, _ := url.Parse(redirectURI)
	q := u.Query()
	q.Set("error", code)
	if state != "" {
		q.Set("state", state)
	}
	u.RawQuery = q.Encode()
	return u.String()
}
