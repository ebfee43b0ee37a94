package guard

import (
	"fmt"
	"net/http"

	"github.com/tidehall/gatekeeper/internal/auth/service"
)

// OAuthAuthenticator validates opaque bearer tokens against the token store.
type OAuthAuthenticator struct {
	tokens *service.TokenService
}

func NewOAuthAuthenticator(tokens *service.TokenService) *OAuthAuthenticator {
	return &OAuthAuthenticator{tokens: tokens}
}

func (a *OAuthAuthenticator) Authenticate(r *http.Request) (*Principal, error) {
	token, ok := bearerToken(r)
	if !ok {
		return nil, ErrUnauthenticated
	}

	record, err := a.tokens.Validate(r.Context(), token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}

	return &Principal{
		UserID:   record.UserID,
		ClientID: record.ClientID,
		TenantID: record.TenantID,
		Scopes:   record.Scopes,
	}, nil
}
