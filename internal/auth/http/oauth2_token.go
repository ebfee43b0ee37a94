package http

import (
	"net/http"
	"time"

	"github.com/tidehall/gatekeeper/internal/auth/domain"
	"github.com/tidehall/gatekeeper/internal/auth/service"
	"github.com/tidehall/gatekeeper/pkg/httpx"
	"github.com/tidehall/gatekeeper/pkg/oauthsdk"
)

// handleToken implements POST /oauth/token for the three supported grants.
func (h *Handler) handleToken(w http.ResponseWriter, r *http.Request) {
	if oauthErr := parseForm(r); oauthErr != nil {
		oauthErr.WriteError(w)
		return
	}

	clientID, clientSecret := clientCredentials(r)

	var (
		pair *domain.TokenPair
		err  error
	)
	switch grantType := r.PostFormValue("grant_type"); grantType {
	case domain.GrantAuthorizationCode:
		pair, err = h.tokens.ExchangeAuthorizationCode(r.Context(), service.CodeExchangeInput{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Code:         r.PostFormValue("code"),
			RedirectURI:  r.PostFormValue("redirect_uri"),
			CodeVerifier: r.PostFormValue("code_verifier"),
		})
	case domain.GrantClientCredentials:
		pair, err = h.tokens.ExchangeClientCredentials(r.Context(),
			clientID, clientSecret, r.PostFormValue("scope"))
	case domain.GrantRefreshToken:
		pair, err = h.tokens.ExchangeRefreshToken(r.Context(),
			clientID, clientSecret, r.PostFormValue("refresh_token"), r.PostFormValue("scope"))
	case "":
		oauthsdk.NewOAuth2Error(http.StatusBadRequest,
			oauthsdk.ErrorCodeInvalidRequest, "missing grant_type").WriteError(w)
		return
	default:
		oauthsdk.ErrUnsupportedGrantType.WriteError(w)
		return
	}
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, oauthsdk.TokenResponse{
		AccessToken:  pair.AccessToken,
		TokenType:    pair.TokenType,
		ExpiresIn:    int(pair.ExpiresIn / time.Second),
		RefreshToken: pair.RefreshToken,
		Scope:        pair.Scope,
	})
}
