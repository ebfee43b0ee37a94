package guard_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/tidehall/gatekeeper/internal/auth/domain"
	"github.com/tidehall/gatekeeper/internal/auth/guard"
	"github.com/tidehall/gatekeeper/internal/auth/service"
	"github.com/tidehall/gatekeeper/internal/auth/store/drivers/sqlite"
	"github.com/tidehall/gatekeeper/pkg/cryptox"
	"github.com/tidehall/gatekeeper/pkg/httpx"
	"github.com/tidehall/gatekeeper/pkg/idx"
)

var jwtSecret = []byte("test-signing-secret")

// seedAccessToken stores a live opaque token and returns the plaintext.
func seedAccessToken(t *testing.T, st *sqlite.Store, scopes []string) string {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC()

	client := &domain.Client{
		ID: idx.New().String(), Name: "guard-test",
		RedirectURIs: []string{"https://app.test/cb"},
		GrantTypes:   domain.DefaultGrantTypes,
		Active:       true, CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, st.Clients().Create(ctx, client))

	plain, err := cryptox.GenerateToken(cryptox.TokenSize256)
	require.NoError(t, err)
	require.NoError(t, st.AccessTokens().Create(ctx, &domain.AccessToken{
		ID: idx.New().String(), ClientID: client.ID, UserID: "user-1",
		TokenHash: cryptox.FingerprintToken(plain), Scopes: scopes,
		GrantType: domain.GrantAuthorizationCode,
		ExpiresAt: now.Add(time.Hour), CreatedAt: now, UpdatedAt: now,
	}))
	return plain
}

func newTokenService(t *testing.T) (*sqlite.Store, *service.TokenService) {
	t.Helper()
	st, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	cfg := service.Config{Issuer: "https://auth.test"}
	return st, service.NewTokenService(st, service.NewClientService(st, cfg), cfg, nil)
}

func TestOAuthAuthenticator(t *testing.T) {
	t.Parallel()

	st, tokens := newTokenService(t)
	auth := guard.NewOAuthAuthenticator(tokens)
	plain := seedAccessToken(t, st, []string{"read"})

	t.Run("valid bearer token", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/x", nil)
		r.Header.Set("Authorization", "Bearer "+plain)

		p, err := auth.Authenticate(r)
		require.NoError(t, err)
		require.Equal(t, "user-1", p.UserID)
		require.Equal(t, []string{"read"}, p.Scopes)
		require.True(t, p.HasScope("read"))
		require.False(t, p.HasScope("write"))
	})

	t.Run("missing header", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/x", nil)
		_, err := auth.Authenticate(r)
		require.ErrorIs(t, err, guard.ErrUnauthenticated)
	})

	t.Run("unknown token", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/x", nil)
		r.Header.Set("Authorization", "Bearer nope")
		_, err := auth.Authenticate(r)
		require.ErrorIs(t, err, guard.ErrUnauthenticated)
	})
}

func TestJWTAuthenticator(t *testing.T) {
	t.Parallel()

	auth := guard.NewJWTAuthenticator(jwtSecret, "https://auth.test")

	mint := func(t *testing.T, secret []byte, issuer string, exp time.Time) string {
		t.Helper()
		token, err := guard.MintServiceToken(secret, issuer, "svc-user", "clients:admin",
			jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(exp)})
		require.NoError(t, err)
		return token
	}

	t.Run("valid service token", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/x", nil)
		r.Header.Set("Authorization", "Bearer "+mint(t, jwtSecret, "https://auth.test", time.Now().Add(time.Hour)))

		p, err := auth.Authenticate(r)
		require.NoError(t, err)
		require.Equal(t, "svc-user", p.UserID)
		require.True(t, p.HasScope("clients:admin"))
	})

	t.Run("wrong signing key", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/x", nil)
		r.Header.Set("Authorization", "Bearer "+mint(t, []byte("other"), "https://auth.test", time.Now().Add(time.Hour)))
		_, err := auth.Authenticate(r)
		require.ErrorIs(t, err, guard.ErrUnauthenticated)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/x", nil)
		r.Header.Set("Authorization", "Bearer "+mint(t, jwtSecret, "https://evil.test", time.Now().Add(time.Hour)))
		_, err := auth.Authenticate(r)
		require.ErrorIs(t, err, guard.ErrUnauthenticated)
	})

	t.Run("expired", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/x", nil)
		r.Header.Set("Authorization", "Bearer "+mint(t, jwtSecret, "https://auth.test", time.Now().Add(-time.Minute)))
		_, err := auth.Authenticate(r)
		require.ErrorIs(t, err, guard.ErrUnauthenticated)
	})

	t.Run("opaque-shaped token is rejected fast", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/x", nil)
		r.Header.Set("Authorization", "Bearer not-a-jwt")
		_, err := auth.Authenticate(r)
		require.ErrorIs(t, err, guard.ErrUnauthenticated)
	})
}

func TestChainAuthenticator(t *testing.T) {
	t.Parallel()

	st, tokens := newTokenService(t)
	chain := guard.NewChain(
		guard.NewOAuthAuthenticator(tokens),
		guard.NewJWTAuthenticator(jwtSecret, "https://auth.test"),
	)
	opaque := seedAccessToken(t, st, []string{"read"})

	t.Run("opaque token via first authenticator", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/x", nil)
		r.Header.Set("Authorization", "Bearer "+opaque)
		p, err := chain.Authenticate(r)
		require.NoError(t, err)
		require.Equal(t, "user-1", p.UserID)
	})

	t.Run("jwt via second authenticator", func(t *testing.T) {
		token, err := guard.MintServiceToken(jwtSecret, "https://auth.test", "svc-user", "read",
			jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))})
		require.NoError(t, err)

		r := httptest.NewRequest(http.MethodGet, "/x", nil)
		r.Header.Set("Authorization", "Bearer "+token)
		p, err := chain.Authenticate(r)
		require.NoError(t, err)
		require.Equal(t, "svc-user", p.UserID)
	})

	t.Run("everything rejects", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/x", nil)
		r.Header.Set("Authorization", "Bearer junk")
		_, err := chain.Authenticate(r)
		require.ErrorIs(t, err, guard.ErrUnauthenticated)
	})
}

func TestMiddlewareAndRequireScopes(t *testing.T) {
	t.Parallel()

	st, tokens := newTokenService(t)
	auth := guard.NewOAuthAuthenticator(tokens)
	plain := seedAccessToken(t, st, []string{"read"})

	var gotUser string
	var gotScopes []string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser = httpx.UserIDFromContext(r.Context())
		gotScopes = httpx.ScopesFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})

	t.Run("principal lands in context", func(t *testing.T) {
		h := httpx.Chain(inner, guard.Middleware(auth), guard.RequireScopes("read"))
		r := httptest.NewRequest(http.MethodGet, "/x", nil)
		r.Header.Set("Authorization", "Bearer "+plain)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)

		require.Equal(t, http.StatusNoContent, w.Code)
		require.Equal(t, "user-1", gotUser)
		require.Equal(t, []string{"read"}, gotScopes)
	})

	t.Run("missing scope is 403", func(t *testing.T) {
		h := httpx.Chain(inner, guard.Middleware(auth), guard.RequireScopes("write"))
		r := httptest.NewRequest(http.MethodGet, "/x", nil)
		r.Header.Set("Authorization", "Bearer "+plain)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)

		require.Equal(t, http.StatusForbidden, w.Code)
		require.Contains(t, w.Header().Get("WWW-Authenticate"), "insufficient_scope")
	})

	t.Run("no credential is 401", func(t *testing.T) {
		h := httpx.Chain(inner, guard.Middleware(auth))
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))

		require.Equal(t, http.StatusUnauthorized, w.Code)
		require.Contains(t, w.Header().Get("WWW-Authenticate"), "invalid_token")
	})
}
