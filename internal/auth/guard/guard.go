// Package guard protects HTTP routes with bearer-token authentication and
// explicit per-route scope checks. Authenticators are composable; identity
// flows through context values, never globals.
package guard

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/tidehall/gatekeeper/pkg/httpx"
	"github.com/tidehall/gatekeeper/pkg/oauthsdk"
	"github.com/tidehall/gatekeeper/pkg/slogx"
)

// ErrUnauthenticated is returned by authenticators when no usable credential
// was presented or it failed verification.
var ErrUnauthenticated = errors.New("unauthenticated")

// Principal is the verified caller identity an authenticator yields.
type Principal struct {
	UserID   string
	ClientID string
	TenantID string
	Scopes   []string
}

// HasScope reports whether the principal carries the given scope.
func (p *Principal) HasScope(scope string) bool {
	for _, s := range p.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// Authenticator verifies the credential on a request and returns the caller
// identity, or ErrUnauthenticated.
type Authenticator interface {
	Authenticate(r *http.Request) (*Principal, error)
}

// Middleware authenticates every request and stores the principal on the
// request context. Unauthenticated requests get a 401 with a Bearer
// challenge.
func Middleware(auth Authenticator) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, err := auth.Authenticate(r)
			if err != nil {
				w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
				oauthsdk.ErrInvalidToken.WriteError(w)
				return
			}

			ctx := r.Context()
			ctx = context.WithValue(ctx, httpx.CtxKeyUserID, principal.UserID)
			ctx = context.WithValue(ctx, httpx.CtxKeyTenantID, principal.TenantID)
			ctx = context.WithValue(ctx, httpx.CtxKeyScopes, principal.Scopes)
			ctx = slogx.WithContext(ctx, slogx.FromContext(ctx).With(
				"user_id", principal.UserID,
				"client_id", principal.ClientID,
			))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireScopes rejects requests whose principal lacks any of the listed
// scopes. It must run after Middleware.
func RequireScopes(scopes ...string) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			granted := httpx.ScopesFromContext(r.Context())
			for _, want := range scopes {
				if !containsScope(granted, want) {
					w.Header().Set("WWW-Authenticate",
						`Bearer error="insufficient_scope", scope="`+strings.Join(scopes, " ")+`"`)
					oauthsdk.ErrInsufficientScope.WriteError(w)
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func containsScope(scopes []string, want string) bool {
	for _, s := range scopes {
		if s == want {
			return true
		}
	}
	return false
}

// bearerToken extracts the RFC 6750 bearer credential from the
// Authorization header.
func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(h) <= len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return "", false
	}
	return h[len(prefix):], true
}
