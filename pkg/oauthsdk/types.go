package oauthsdk

// TokenResponse is the token endpoint success body per RFC 6749 section 5.1.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	RefreshToken string `json:"refresh_token,omitempty"`
	Scope        string `json:"scope,omitempty"`
}

// ErrorResponse is the error body shape shared by all endpoints.
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// IntrospectionResponse is the RFC 7662 response. Inactive tokens carry only
// the active field; the response shape never distinguishes unknown from
// expired or revoked.
type IntrospectionResponse struct {
	Active bool `json:"active"`

	Scope     string   `json:"scope,omitempty"`
	ClientID  string   `json:"client_id,omitempty"`
	TokenType string   `json:"token_type,omitempty"`
	Exp       int64    `json:"exp,omitempty"`
	Iat       int64    `json:"iat,omitempty"`
	Sub       string   `json:"sub,omitempty"`
	Aud       []string `json:"aud,omitempty"`
	Iss       string   `json:"iss,omitempty"`
}

// ScopeDescriptor describes a single scope for the consent screen.
type ScopeDescriptor struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// AuthorizeInfoResponse is the consent-screen metadata returned by
// GET /oauth/authorize/info.
type AuthorizeInfoResponse struct {
	ClientID          string            `json:"client_id"`
	ClientName        string            `json:"client_name"`
	ClientDescription string            `json:"client_description,omitempty"`
	RedirectURI       string            `json:"redirect_uri"`
	Scopes            []ScopeDescriptor `json:"scopes"`
}

// AuthorizeResponse carries the issued code for non-redirecting callers
// (the consent approve endpoint).
type AuthorizeResponse struct {
	Code        string `json:"code"`
	State       string `json:"state,omitempty"`
	RedirectURI string `json:"redirect_uri"`
}

// ClientResponse is the admin API representation of a registered client.
// The secret appears only in the creation/regeneration response.
type ClientResponse struct {
	ClientID        string   `json:"client_id"`
	Name            string   `json:"name"`
	Description     string   `json:"description,omitempty"`
	RedirectURIs    []string `json:"redirect_uris"`
	Scopes          []string `json:"scopes"`
	GrantTypes      []string `json:"grant_types"`
	Confidential    bool     `json:"confidential"`
	Active          bool     `json:"active"`
	ClientSecret    string   `json:"client_secret,omitempty"`
	AccessTokenTTL  int      `json:"access_token_ttl,omitempty"`
	RefreshTokenTTL int      `json:"refresh_token_ttl,omitempty"`
}

// CreateClientRequest is the admin API body for registering a client.
type CreateClientRequest struct {
	Name            string   `json:"name"`
	Description     string   `json:"description,omitempty"`
	RedirectURIs    []string `json:"redirect_uris"`
	Scopes          []string `json:"scopes"`
	GrantTypes      []string `json:"grant_types,omitempty"`
	Confidential    bool     `json:"confidential"`
	AccessTokenTTL  int      `json:"access_token_ttl,omitempty"`
	RefreshTokenTTL int      `json:"refresh_token_ttl,omitempty"`
}
