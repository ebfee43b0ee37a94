package domain

import "time"

// AccessToken is an opaque bearer token record. The token value itself is
// never stored, only its SHA-256 fingerprint.
type AccessToken struct {
	ID       string
	ClientID string
	UserID   string // empty for client_credentials grants
	TenantID string

	TokenHash string
	Scopes    []string
	GrantType string

	ExpiresAt time.Time
	Revoked   bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Valid reports whether the token is live at the given instant.
func (t AccessToken) Valid(now time.Time) bool {
	return !t.Revoked && now.Before(t.ExpiresAt)
}

// RefreshToken is the opaque, hash-stored refresh token record. Each token
// is linked to the access token it was issued alongside and carries a
// rotation counter incremented on every refresh.
type RefreshToken struct {
	ID       string
	ClientID string
	UserID   string
	TenantID string

	TokenHash     string
	Scopes        []string
	AccessTokenID string

	RotationCounter int

	ExpiresAt time.Time
	Revoked   bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Valid reports whether the token is live at the given instant.
func (t RefreshToken) Valid(now time.Time) bool {
	return !t.Revoked && now.Before(t.ExpiresAt)
}

// TokenPair is what the token endpoint returns: the opaque access token and,
// for grants that issue one, the opaque refresh token.
type TokenPair struct {
	AccessToken  string
	RefreshToken string // empty for client_credentials or when rotation is disabled
	TokenType    string // "Bearer"
	ExpiresIn    time.Duration
	Scope        string // space-delimited
}

// Introspection is the result of an RFC 7662 lookup. When Active is false no
// other field is populated, so the response cannot be used as a
// token-existence oracle.
type Introspection struct {
	Active bool

	Scope     string
	ClientID  string
	TokenType string
	Exp       int64
	Iat       int64
	Sub       string
	Aud       []string
	Iss       string
}
