package http

import (
	"net/http"

	"github.com/tidehall/gatekeeper/pkg/httpx"
	"github.com/tidehall/gatekeeper/pkg/slogx"
)

// handleRevoke implements POST /oauth/revoke per RFC 7009. The endpoint
// always answers 200 with an empty object: revealing whether a token existed
// or belonged to the caller would make it a probe. Failed client
// authentication is logged and silently results in no revocation.
func (h *Handler) handleRevoke(w http.ResponseWriter, r *http.Request) {
	if oauthErr := parseForm(r); oauthErr != nil {
		oauthErr.WriteError(w)
		return
	}

	clientID, clientSecret := clientCredentials(r)
	client, err := h.clients.Authenticate(r.Context(), clientID, clientSecret)
	if err != nil {
		slogx.FromContext(r.Context()).Warn("revocation with bad client credentials",
			"client_id", clientID,
		)
		httpx.WriteJSON(w, http.StatusOK, struct{}{})
		return
	}

	err = h.tokens.Revoke(r.Context(), client,
		r.PostFormValue("token"), r.PostFormValue("token_type_hint"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, struct{}{})
}
