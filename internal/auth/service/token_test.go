package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tidehall/gatekeeper/internal/auth/domain"
	"github.com/tidehall/gatekeeper/internal/auth/service"
	"github.com/tidehall/gatekeeper/pkg/cryptox"
	"github.com/tidehall/gatekeeper/pkg/idx"
	"github.com/tidehall/gatekeeper/pkg/pkce"
)

// issueCode runs the authorize step and returns the code for exchange.
func issueCode(t *testing.T, env *testEnv, clientID, verifier, scope string) string {
	t.Helper()

	req := service.AuthorizeRequest{
		ClientID:     clientID,
		RedirectURI:  "https://app.test/callback",
		ResponseType: "code",
		Scope:        scope,
		UserID:       "user-1",
	}
	if verifier != "" {
		req.CodeChallenge = s256Challenge(t, verifier)
		req.CodeChallengeMethod = pkce.MethodS256
	}

	result, err := env.authorize.Authorize(context.Background(), req)
	require.NoError(t, err)
	return result.Code
}

func TestTokenService_ExchangeAuthorizationCode(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	verifier, err := pkce.GenerateVerifier(0)
	require.NoError(t, err)

	t.Run("public client with PKCE", func(t *testing.T) {
		env := newTestEnv(t, nil)
		client, _ := env.createClient(t, false)
		code := issueCode(t, env, client.ID, verifier, "read")

		pair, err := env.tokens.ExchangeAuthorizationCode(ctx, service.CodeExchangeInput{
			ClientID:     client.ID,
			Code:         code,
			RedirectURI:  "https://app.test/callback",
			CodeVerifier: verifier,
		})
		require.NoError(t, err)
		require.NotEmpty(t, pair.AccessToken)
		require.NotEmpty(t, pair.RefreshToken)
		require.Equal(t, "Bearer", pair.TokenType)
		require.Equal(t, time.Hour, pair.ExpiresIn)
		require.Equal(t, "read", pair.Scope)

		// Access token is live and carries the granted scopes.
		record, err := env.tokens.Validate(ctx, pair.AccessToken)
		require.NoError(t, err)
		require.Equal(t, "user-1", record.UserID)
		require.Equal(t, []string{"read"}, record.Scopes)
		require.Equal(t, domain.GrantAuthorizationCode, record.GrantType)
	})

	t.Run("confidential client with secret, no PKCE", func(t *testing.T) {
		env := newTestEnv(t, nil)
		client, secret := env.createClient(t, true)
		code := issueCode(t, env, client.ID, "", "read")

		pair, err := env.tokens.ExchangeAuthorizationCode(ctx, service.CodeExchangeInput{
			ClientID:     client.ID,
			ClientSecret: secret,
			Code:         code,
			RedirectURI:  "https://app.test/callback",
		})
		require.NoError(t, err)
		require.NotEmpty(t, pair.AccessToken)
	})

	t.Run("wrong verifier", func(t *testing.T) {
		env := newTestEnv(t, nil)
		client, _ := env.createClient(t, false)
		code := issueCode(t, env, client.ID, verifier, "read")

		other, err := pkce.GenerateVerifier(0)
		require.NoError(t, err)

		_, err = env.tokens.ExchangeAuthorizationCode(ctx, service.CodeExchangeInput{
			ClientID:     client.ID,
			Code:         code,
			RedirectURI:  "https://app.test/callback",
			CodeVerifier: other,
		})
		require.ErrorIs(t, err, service.ErrInvalidGrant)
	})

	t.Run("missing verifier", func(t *testing.T) {
		env := newTestEnv(t, nil)
		client, _ := env.createClient(t, false)
		code := issueCode(t, env, client.ID, verifier, "read")

		_, err := env.tokens.ExchangeAuthorizationCode(ctx, service.CodeExchangeInput{
			ClientID:    client.ID,
			Code:        code,
			RedirectURI: "https://app.test/callback",
		})
		require.ErrorIs(t, err, service.ErrInvalidRequest)
	})

	t.Run("redirect mismatch", func(t *testing.T) {
		env := newTestEnv(t, nil)
		client, _ := env.createClient(t, false)
		code := issueCode(t, env, client.ID, verifier, "read")

		_, err := env.tokens.ExchangeAuthorizationCode(ctx, service.CodeExchangeInput{
			ClientID:     client.ID,
			Code:         code,
			RedirectURI:  "https://app.test/other",
			CodeVerifier: verifier,
		})
		require.ErrorIs(t, err, service.ErrInvalidGrant)
	})

	t.Run("code issued to another client", func(t *testing.T) {
		env := newTestEnv(t, nil)
		client, _ := env.createClient(t, false)
		other, otherSecret := env.createClient(t, true)
		code := issueCode(t, env, client.ID, verifier, "read")

		_, err := env.tokens.ExchangeAuthorizationCode(ctx, service.CodeExchangeInput{
			ClientID:     other.ID,
			ClientSecret: otherSecret,
			Code:         code,
			RedirectURI:  "https://app.test/callback",
			CodeVerifier: verifier,
		})
		require.ErrorIs(t, err, service.ErrInvalidGrant)
	})

	t.Run("expired code", func(t *testing.T) {
		env := newTestEnv(t, nil)
		client, _ := env.createClient(t, false)

		plain, err := cryptox.GenerateToken(cryptox.TokenSize256)
		require.NoError(t, err)
		require.NoError(t, env.store.AuthorizationCodes().Create(ctx, &domain.AuthorizationCode{
			ID:          idx.New().String(),
			ClientID:    client.ID,
			UserID:      "user-1",
			CodeHash:    cryptox.FingerprintToken(plain),
			RedirectURI: "https://app.test/callback",
			Scopes:      []string{"read"},
			ExpiresAt:   time.Now().Add(-time.Minute),
			CreatedAt:   time.Now().Add(-11 * time.Minute),
		}))

		_, err = env.tokens.ExchangeAuthorizationCode(ctx, service.CodeExchangeInput{
			ClientID:    client.ID,
			Code:        plain,
			RedirectURI: "https://app.test/callback",
		})
		require.ErrorIs(t, err, service.ErrInvalidGrant)
	})

	t.Run("unknown code", func(t *testing.T) {
		env := newTestEnv(t, nil)
		client, _ := env.createClient(t, false)

		_, err := env.tokens.ExchangeAuthorizationCode(ctx, service.CodeExchangeInput{
			ClientID:    client.ID,
			Code:        "bogus",
			RedirectURI: "https://app.test/callback",
		})
		require.ErrorIs(t, err, service.ErrInvalidGrant)
	})

	t.Run("replay revokes the issued tokens", func(t *testing.T) {
		env := newTestEnv(t, nil)
		client, _ := env.createClient(t, false)
		code := issueCode(t, env, client.ID, verifier, "read")

		in := service.CodeExchangeInput{
			ClientID:     client.ID,
			Code:         code,
			RedirectURI:  "https://app.test/callback",
			CodeVerifier: verifier,
		}

		pair, err := env.tokens.ExchangeAuthorizationCode(ctx, in)
		require.NoError(t, err)

		_, err = env.tokens.ExchangeAuthorizationCode(ctx, in)
		require.ErrorIs(t, err, service.ErrInvalidGrant)

		// The first exchange's tokens are dead.
		_, err = env.tokens.Validate(ctx, pair.AccessToken)
		require.ErrorIs(t, err, service.ErrInvalidGrant)

		_, err = env.tokens.ExchangeRefreshToken(ctx, client.ID, "", pair.RefreshToken, "")
		require.ErrorIs(t, err, service.ErrInvalidGrant)
	})
}

func TestTokenService_ExchangeClientCredentials(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("issues an access token without refresh", func(t *testing.T) {
		env := newTestEnv(t, nil)
		client, secret := env.createClient(t, true,
			domain.GrantClientCredentials, domain.GrantAuthorizationCode)

		pair, err := env.tokens.ExchangeClientCredentials(ctx, client.ID, secret, "read")
		require.NoError(t, err)
		require.NotEmpty(t, pair.AccessToken)
		require.Empty(t, pair.RefreshToken)
		require.Equal(t, "read", pair.Scope)

		record, err := env.tokens.Validate(ctx, pair.AccessToken)
		require.NoError(t, err)
		require.Empty(t, record.UserID)
		require.Equal(t, domain.GrantClientCredentials, record.GrantType)
	})

	t.Run("grant not allowed", func(t *testing.T) {
		env := newTestEnv(t, nil)
		client, secret := env.createClient(t, true)

		_, err := env.tokens.ExchangeClientCredentials(ctx, client.ID, secret, "read")
		require.ErrorIs(t, err, service.ErrUnauthorizedClient)
	})

	t.Run("scope beyond registration", func(t *testing.T) {
		env := newTestEnv(t, nil)
		client, secret := env.createClient(t, true, domain.GrantClientCredentials)

		_, err := env.tokens.ExchangeClientCredentials(ctx, client.ID, secret, "admin")
		require.ErrorIs(t, err, service.ErrInvalidScope)
	})
}

func TestTokenService_ExchangeRefreshToken(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	verifier, err := pkce.GenerateVerifier(0)
	require.NoError(t, err)

	bootstrap := func(t *testing.T, env *testEnv) (string, *domain.TokenPair) {
		client, _ := env.createClient(t, false)
		code := issueCode(t, env, client.ID, verifier, "read write")
		pair, err := env.tokens.ExchangeAuthorizationCode(ctx, service.CodeExchangeInput{
			ClientID:     client.ID,
			Code:         code,
			RedirectURI:  "https://app.test/callback",
			CodeVerifier: verifier,
		})
		require.NoError(t, err)
		return client.ID, pair
	}

	t.Run("rotation replaces the pair", func(t *testing.T) {
		env := newTestEnv(t, nil)
		clientID, pair := bootstrap(t, env)

		next, err := env.tokens.ExchangeRefreshToken(ctx, clientID, "", pair.RefreshToken, "")
		require.NoError(t, err)
		require.NotEmpty(t, next.RefreshToken)
		require.NotEqual(t, pair.RefreshToken, next.RefreshToken)
		require.NotEqual(t, pair.AccessToken, next.AccessToken)
		require.Equal(t, "read write", next.Scope)

		// The rotated access token is dead, the new one live.
		_, err = env.tokens.Validate(ctx, pair.AccessToken)
		require.ErrorIs(t, err, service.ErrInvalidGrant)
		_, err = env.tokens.Validate(ctx, next.AccessToken)
		require.NoError(t, err)

		// Rotation counter advanced on the stored record.
		stored, err := env.store.RefreshTokens().GetByHash(ctx, cryptox.FingerprintToken(next.RefreshToken))
		require.NoError(t, err)
		require.Equal(t, 1, stored.RotationCounter)
	})

	t.Run("reuse of a rotated token revokes the family", func(t *testing.T) {
		env := newTestEnv(t, nil)
		clientID, pair := bootstrap(t, env)

		next, err := env.tokens.ExchangeRefreshToken(ctx, clientID, "", pair.RefreshToken, "")
		require.NoError(t, err)

		// Present the old token again.
		_, err = env.tokens.ExchangeRefreshToken(ctx, clientID, "", pair.RefreshToken, "")
		require.ErrorIs(t, err, service.ErrInvalidGrant)

		// Everything for the user/client pair is revoked, including the
		// replacement.
		_, err = env.tokens.Validate(ctx, next.AccessToken)
		require.ErrorIs(t, err, service.ErrInvalidGrant)
		_, err = env.tokens.ExchangeRefreshToken(ctx, clientID, "", next.RefreshToken, "")
		require.ErrorIs(t, err, service.ErrInvalidGrant)
	})

	t.Run("scope may narrow but not widen", func(t *testing.T) {
		env := newTestEnv(t, nil)
		clientID, pair := bootstrap(t, env)

		narrowed, err := env.tokens.ExchangeRefreshToken(ctx, clientID, "", pair.RefreshToken, "read")
		require.NoError(t, err)
		require.Equal(t, "read", narrowed.Scope)

		// Widening back is rejected even though the client registration
		// would allow it.
		_, err = env.tokens.ExchangeRefreshToken(ctx, clientID, "", narrowed.RefreshToken, "read write")
		require.ErrorIs(t, err, service.ErrInvalidScope)
	})

	t.Run("rotation disabled keeps the presented token", func(t *testing.T) {
		env := newTestEnv(t, func(cfg *service.Config) { cfg.RefreshRotation = false })
		clientID, pair := bootstrap(t, env)

		next, err := env.tokens.ExchangeRefreshToken(ctx, clientID, "", pair.RefreshToken, "")
		require.NoError(t, err)
		require.Empty(t, next.RefreshToken)

		// The presented token still works.
		again, err := env.tokens.ExchangeRefreshToken(ctx, clientID, "", pair.RefreshToken, "")
		require.NoError(t, err)
		require.NotEmpty(t, again.AccessToken)
	})

	t.Run("unknown token", func(t *testing.T) {
		env := newTestEnv(t, nil)
		client, _ := env.createClient(t, false)

		_, err := env.tokens.ExchangeRefreshToken(ctx, client.ID, "", "bogus", "")
		require.ErrorIs(t, err, service.ErrInvalidGrant)
	})

	t.Run("token issued to another client", func(t *testing.T) {
		env := newTestEnv(t, nil)
		_, pair := bootstrap(t, env)
		other, otherSecret := env.createClient(t, true)

		_, err := env.tokens.ExchangeRefreshToken(ctx, other.ID, otherSecret, pair.RefreshToken, "")
		require.ErrorIs(t, err, service.ErrInvalidGrant)
	})
}

func TestTokenService_Introspect(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	verifier, err := pkce.GenerateVerifier(0)
	require.NoError(t, err)

	env := newTestEnv(t, nil)
	client, _ := env.createClient(t, false)
	code := issueCode(t, env, client.ID, verifier, "read")
	pair, err := env.tokens.ExchangeAuthorizationCode(ctx, service.CodeExchangeInput{
		ClientID:     client.ID,
		Code:         code,
		RedirectURI:  "https://app.test/callback",
		CodeVerifier: verifier,
	})
	require.NoError(t, err)

	t.Run("active access token", func(t *testing.T) {
		result := env.tokens.Introspect(ctx, pair.AccessToken, "")
		require.True(t, result.Active)
		require.Equal(t, "read", result.Scope)
		require.Equal(t, client.ID, result.ClientID)
		require.Equal(t, "access_token", result.TokenType)
		require.Equal(t, "user-1", result.Sub)
		require.Equal(t, []string{client.ID}, result.Aud)
		require.Equal(t, "https://auth.test", result.Iss)
		require.Greater(t, result.Exp, result.Iat)
	})

	t.Run("active refresh token with hint", func(t *testing.T) {
		result := env.tokens.Introspect(ctx, pair.RefreshToken, "refresh_token")
		require.True(t, result.Active)
		require.Equal(t, "refresh_token", result.TokenType)
	})

	t.Run("hint mismatch still resolves", func(t *testing.T) {
		result := env.tokens.Introspect(ctx, pair.AccessToken, "refresh_token")
		require.True(t, result.Active)
		require.Equal(t, "access_token", result.TokenType)
	})

	t.Run("unknown token is just inactive", func(t *testing.T) {
		result := env.tokens.Introspect(ctx, "bogus", "")
		require.False(t, result.Active)
		require.Empty(t, result.ClientID)
		require.Empty(t, result.Scope)
	})

	t.Run("revoked token is inactive", func(t *testing.T) {
		require.NoError(t, env.tokens.Revoke(ctx, client, pair.AccessToken, ""))
		result := env.tokens.Introspect(ctx, pair.AccessToken, "")
		require.False(t, result.Active)
	})
}

func TestTokenService_Revoke(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	verifier, err := pkce.GenerateVerifier(0)
	require.NoError(t, err)

	bootstrap := func(t *testing.T, env *testEnv) (*domain.Client, *domain.TokenPair) {
		client, _ := env.createClient(t, false)
		code := issueCode(t, env, client.ID, verifier, "read")
		pair, err := env.tokens.ExchangeAuthorizationCode(ctx, service.CodeExchangeInput{
			ClientID:     client.ID,
			Code:         code,
			RedirectURI:  "https://app.test/callback",
			CodeVerifier: verifier,
		})
		require.NoError(t, err)
		return client, pair
	}

	t.Run("revoking a refresh token kills its access token", func(t *testing.T) {
		env := newTestEnv(t, nil)
		client, pair := bootstrap(t, env)

		require.NoError(t, env.tokens.Revoke(ctx, client, pair.RefreshToken, "refresh_token"))

		_, err := env.tokens.Validate(ctx, pair.AccessToken)
		require.ErrorIs(t, err, service.ErrInvalidGrant)
		_, err = env.tokens.ExchangeRefreshToken(ctx, client.ID, "", pair.RefreshToken, "")
		require.ErrorIs(t, err, service.ErrInvalidGrant)
	})

	t.Run("unknown token is a silent success", func(t *testing.T) {
		env := newTestEnv(t, nil)
		client, _ := bootstrap(t, env)
		require.NoError(t, env.tokens.Revoke(ctx, client, "bogus", ""))
	})

	t.Run("another client's token is untouched", func(t *testing.T) {
		env := newTestEnv(t, nil)
		_, pair := bootstrap(t, env)
		other, _, err := env.clients.Create(ctx, service.CreateClientInput{
			Name:         "Other",
			RedirectURIs: []string{"https://other.test/cb"},
			Confidential: true,
		})
		require.NoError(t, err)

		require.NoError(t, env.tokens.Revoke(ctx, other, pair.AccessToken, ""))

		_, err = env.tokens.Validate(ctx, pair.AccessToken)
		require.NoError(t, err)
	})
}
