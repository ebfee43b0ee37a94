package domain

import "time"

// OAuth2 grant types the server supports.
const (
	GrantAuthorizationCode = "authorization_code"
	GrantClientCredentials = "client_credentials"
	GrantRefreshToken      = "refresh_token"
)

// DefaultGrantTypes are granted to new clients that don't request a specific
// set.
var DefaultGrantTypes = []string{GrantAuthorizationCode, GrantRefreshToken}

// Client is a registered OAuth2 client application.
type Client struct {
	ID          string // public client_id
	Name        string
	Description string

	// SecretHash is the argon2id hash of the client secret. Empty for
	// public clients, which cannot keep a secret.
	SecretHash string

	RedirectURIs []string // exact-match only, no wildcards
	Scopes       []string
	GrantTypes   []string

	Confidential bool
	Active       bool

	OwnerID  string
	TenantID string

	// Per-client token lifetime overrides. Zero means the server default.
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Public reports whether the client cannot authenticate with a secret.
func (c Client) Public() bool { return !c.Confidential }

// AllowsGrant reports whether grantType is in the client's allowed set.
func (c Client) AllowsGrant(grantType string) bool {
	for _, g := range c.GrantTypes {
		if g == grantType {
			return true
		}
	}
	return false
}

// AllowsScope reports whether scope is in the client's allowed set.
func (c Client) AllowsScope(scope string) bool {
	for _, s := range c.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// HasRedirectURI reports whether uri exactly matches a registered redirect
// URI. RFC 6749 section 3.1.2.3 requires exact comparison; anything looser
// opens redirect attacks.
func (c Client) HasRedirectURI(uri string) bool {
	for _, u := range c.RedirectURIs {
		if u == uri {
			return true
		}
	}
	return false
}
