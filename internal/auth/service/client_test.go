package service_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tidehall/gatekeeper/internal/auth/domain"
	"github.com/tidehall/gatekeeper/internal/auth/service"
	"github.com/tidehall/gatekeeper/pkg/cryptox"
)

func TestClientService_Create(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("confidential client gets a secret, hashed at rest", func(t *testing.T) {
		env := newTestEnv(t, nil)
		client, secret := env.createClient(t, true)

		require.NotEmpty(t, secret)
		require.True(t, client.Confidential)
		require.True(t, client.Active)
		require.NotEmpty(t, client.SecretHash)
		require.NotContains(t, client.SecretHash, secret)
		require.True(t, strings.HasPrefix(client.SecretHash, "$argon2id$"))
		require.NoError(t, cryptox.VerifySecret(secret, client.SecretHash))
	})

	t.Run("public client has no secret", func(t *testing.T) {
		env := newTestEnv(t, nil)
		client, secret := env.createClient(t, false)

		require.Empty(t, secret)
		require.Empty(t, client.SecretHash)
		require.True(t, client.Public())
	})

	t.Run("default grant types", func(t *testing.T) {
		env := newTestEnv(t, nil)
		client, _ := env.createClient(t, true)
		require.Equal(t, domain.DefaultGrantTypes, client.GrantTypes)
	})

	t.Run("public client cannot register client_credentials", func(t *testing.T) {
		env := newTestEnv(t, nil)
		_, _, err := env.clients.Create(ctx, service.CreateClientInput{
			Name:         "bad",
			RedirectURIs: []string{"https://app.test/cb"},
			GrantTypes:   []string{domain.GrantClientCredentials},
			Confidential: false,
		})
		require.ErrorIs(t, err, service.ErrInvalidRequest)
	})

	t.Run("unknown scope rejected", func(t *testing.T) {
		env := newTestEnv(t, nil)
		_, _, err := env.clients.Create(ctx, service.CreateClientInput{
			Name:         "bad",
			RedirectURIs: []string{"https://app.test/cb"},
			Scopes:       []string{"launch-missiles"},
		})
		require.ErrorIs(t, err, service.ErrInvalidScope)
	})

	t.Run("redirect URI rules", func(t *testing.T) {
		env := newTestEnv(t, nil)
		for _, uri := range []string{
			"",
			"not-a-url",
			"/relative/path",
			"https://app.test/cb#fragment",
			"http://example.com/cb",
			"ftp://app.test/cb",
			"https://app.test/cb with space",
			"https://app.test/cb\ttab",
		} {
			_, _, err := env.clients.Create(ctx, service.CreateClientInput{
				Name:         "bad",
				RedirectURIs: []string{uri},
			})
			require.ErrorIs(t, err, service.ErrInvalidRequest, "uri %q", uri)
		}

		for _, uri := range []string{
			"https://app.test/cb",
			"http://localhost:3000/cb",
			"http://127.0.0.1:8000/cb",
			"http://[::1]/cb",
		} {
			_, _, err := env.clients.Create(ctx, service.CreateClientInput{
				Name:         "ok",
				RedirectURIs: []string{uri},
			})
			require.NoError(t, err, "uri %q", uri)
		}
	})
}

func TestClientService_Authenticate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("confidential with correct secret", func(t *testing.T) {
		env := newTestEnv(t, nil)
		client, secret := env.createClient(t, true)

		got, err := env.clients.Authenticate(ctx, client.ID, secret)
		require.NoError(t, err)
		require.Equal(t, client.ID, got.ID)
	})

	t.Run("wrong secret", func(t *testing.T) {
		env := newTestEnv(t, nil)
		client, _ := env.createClient(t, true)

		_, err := env.clients.Authenticate(ctx, client.ID, "wrong")
		require.ErrorIs(t, err, service.ErrInvalidClient)
	})

	t.Run("missing secret for confidential client", func(t *testing.T) {
		env := newTestEnv(t, nil)
		client, _ := env.createClient(t, true)

		_, err := env.clients.Authenticate(ctx, client.ID, "")
		require.ErrorIs(t, err, service.ErrInvalidClient)
	})

	t.Run("public client must not send a secret", func(t *testing.T) {
		env := newTestEnv(t, nil)
		client, _ := env.createClient(t, false)

		_, err := env.clients.Authenticate(ctx, client.ID, "anything")
		require.ErrorIs(t, err, service.ErrInvalidClient)

		_, err = env.clients.Authenticate(ctx, client.ID, "")
		require.NoError(t, err)
	})

	t.Run("unknown client", func(t *testing.T) {
		env := newTestEnv(t, nil)
		_, err := env.clients.Authenticate(ctx, "nope", "secret")
		require.ErrorIs(t, err, service.ErrInvalidClient)
	})

	t.Run("disabled client", func(t *testing.T) {
		env := newTestEnv(t, nil)
		client, secret := env.createClient(t, true)

		inactive := false
		_, err := env.clients.Update(ctx, client.ID, service.UpdateClientInput{Active: &inactive})
		require.NoError(t, err)

		_, err = env.clients.Authenticate(ctx, client.ID, secret)
		require.ErrorIs(t, err, service.ErrInvalidClient)
	})
}

func TestClientService_RegenerateSecret(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	env := newTestEnv(t, nil)
	client, oldSecret := env.createClient(t, true)

	newSecret, err := env.clients.RegenerateSecret(ctx, client.ID)
	require.NoError(t, err)
	require.NotEqual(t, oldSecret, newSecret)

	_, err = env.clients.Authenticate(ctx, client.ID, oldSecret)
	require.ErrorIs(t, err, service.ErrInvalidClient)

	_, err = env.clients.Authenticate(ctx, client.ID, newSecret)
	require.NoError(t, err)
}

func TestClientService_RegenerateSecret_PublicClient(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)
	client, _ := env.createClient(t, false)

	_, err := env.clients.RegenerateSecret(context.Background(), client.ID)
	require.ErrorIs(t, err, service.ErrInvalidRequest)
}

func TestClientService_Delete(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	env := newTestEnv(t, nil)
	client, _ := env.createClient(t, true)

	require.NoError(t, env.clients.Delete(ctx, client.ID))

	_, err := env.clients.Get(ctx, client.ID)
	require.ErrorIs(t, err, service.ErrInvalidClient)

	require.ErrorIs(t, env.clients.Delete(ctx, client.ID), service.ErrInvalidClient)
}
