// Package service implements the OAuth2 authorization server flows on top of
// the store interfaces: client registration, authorization codes with PKCE,
// opaque token issuance with refresh rotation, introspection and revocation.
package service

import (
	"strings"
	"time"

	"github.com/tidehall/gatekeeper/internal/auth/domain"
)

// Config carries the server-wide issuance policy.
type Config struct {
	// Issuer is the value reported in introspection responses.
	Issuer string

	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	CodeTTL         time.Duration

	// RefreshRotation issues a replacement refresh token on every refresh
	// and revokes the presented one. When disabled the presented token
	// stays valid and no new refresh token is returned.
	RefreshRotation bool

	// RequirePKCE makes the code_challenge mandatory for public clients.
	// Disabling it is an escape hatch for legacy public clients;
	// confidential clients may always skip PKCE.
	RequirePKCE bool

	Scopes domain.ScopeRegistry
}

const (
	DefaultAccessTokenTTL  = time.Hour
	DefaultRefreshTokenTTL = 7 * 24 * time.Hour
	DefaultCodeTTL         = 10 * time.Minute
)

// withDefaults fills zero TTLs.
func (c Config) withDefaults() Config {
	if c.AccessTokenTTL <= 0 {
		c.AccessTokenTTL = DefaultAccessTokenTTL
	}
	if c.RefreshTokenTTL <= 0 {
		c.RefreshTokenTTL = DefaultRefreshTokenTTL
	}
	if c.CodeTTL <= 0 {
		c.CodeTTL = DefaultCodeTTL
	}
	return c
}

// parseScopes splits a space-delimited scope string and drops duplicates,
// preserving first-seen order.
func parseScopes(s string) []string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(fields))
	out := fields[:0]
	for _, f := range fields {
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out
}

// scopesSubset reports whether every requested scope appears in allowed.
func scopesSubset(requested, allowed []string) bool {
	for _, r := range requested {
		found := false
		for _, a := range allowed {
			if r == a {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func joinScopes(scopes []string) string { return strings.Join(scopes, " ") }
