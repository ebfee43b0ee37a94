package domain

import "time"

// AuthorizationCode is a single-use grant issued at /oauth/authorize and
// redeemed exactly once at /oauth/token. Only the SHA-256 fingerprint of the
// code is stored.
type AuthorizationCode struct {
	ID       string
	ClientID string
	UserID   string
	TenantID string

	CodeHash    string
	RedirectURI string
	Scopes      []string
	State       string

	CodeChallenge       string
	CodeChallengeMethod string

	ExpiresAt time.Time
	UsedAt    *time.Time
	CreatedAt time.Time
}

// Expired reports whether the code is past its expiry at the given instant.
func (c AuthorizationCode) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

// Used reports whether the code has already been consumed. A second
// consumption attempt is a replay.
func (c AuthorizationCode) Used() bool { return c.UsedAt != nil }
