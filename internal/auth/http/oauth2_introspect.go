package http

import (
	"net/http"

	"github.com/tidehall/gatekeeper/pkg/httpx"
	"github.com/tidehall/gatekeeper/pkg/oauthsdk"
)

// handleIntrospect implements POST /oauth/introspect per RFC 7662. Only
// authenticated confidential clients may ask; anything else is a client
// authentication failure, not an {active:false}.
func (h *Handler) handleIntrospect(w http.ResponseWriter, r *http.Request) {
	if oauthErr := parseForm(r); oauthErr != nil {
		oauthErr.WriteError(w)
		return
	}

	clientID, clientSecret := clientCredentials(r)
	client, err := h.clients.Authenticate(r.Context(), clientID, clientSecret)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if client.Public() {
		w.Header().Set("WWW-Authenticate", `Basic realm="oauth"`)
		oauthsdk.ErrInvalidClient.WriteError(w)
		return
	}

	result := h.tokens.Introspect(r.Context(),
		r.PostFormValue("token"), r.PostFormValue("token_type_hint"))

	resp := oauthsdk.IntrospectionResponse{Active: result.Active}
	if result.Active {
		resp.Scope = result.Scope
		resp.ClientID = result.ClientID
		resp.TokenType = result.TokenType
		resp.Exp = result.Exp
		resp.Iat = result.Iat
		resp.Sub = result.Sub
		resp.Aud = result.Aud
		resp.Iss = result.Iss
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}
