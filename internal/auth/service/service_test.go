package service_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tidehall/gatekeeper/internal/auth/domain"
	"github.com/tidehall/gatekeeper/internal/auth/service"
	"github.com/tidehall/gatekeeper/internal/auth/store"
	"github.com/tidehall/gatekeeper/internal/auth/store/drivers/sqlite"
	"github.com/tidehall/gatekeeper/pkg/cryptox"
)

func TestMain(m *testing.M) {
	dir, err := os.MkdirTemp("", "gatekeeper-test")
	if err != nil {
		panic(err)
	}
	cryptox.SetPepperPath(filepath.Join(dir, "pepper.key"))

	code := m.Run()
	_ = os.RemoveAll(dir)
	os.Exit(code)
}

var testScopes = domain.ScopeRegistry{
	{Name: "read", Description: "Read your data"},
	{Name: "write", Description: "Change your data"},
	{Name: "admin", Description: "Administer the account"},
}

type testEnv struct {
	store     store.Store
	cfg       service.Config
	clients   *service.ClientService
	authorize *service.AuthorizeService
	tokens    *service.TokenService
}

func newTestEnv(t *testing.T, mutate func(*service.Config)) *testEnv {
	t.Helper()

	st, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	cfg := service.Config{
		Issuer:          "https://auth.test",
		RefreshRotation: true,
		RequirePKCE:     true,
		Scopes:          testScopes,
	}
	if mutate != nil {
		mutate(&cfg)
	}

	clients := service.NewClientService(st, cfg)
	return &testEnv{
		store:     st,
		cfg:       cfg,
		clients:   clients,
		authorize: service.NewAuthorizeService(st, cfg, nil),
		tokens:    service.NewTokenService(st, clients, cfg, nil),
	}
}

func (e *testEnv) createClient(t *testing.T, confidential bool, grants ...string) (*domain.Client, string) {
	t.Helper()

	client, secret, err := e.clients.Create(context.Background(), service.CreateClientInput{
		Name:         "Test App",
		Description:  "A test application",
		RedirectURIs: []string{"https://app.test/callback"},
		Scopes:       []string{"read", "write"},
		GrantTypes:   grants,
		Confidential: confidential,
	})
	require.NoError(t, err)
	return client, secret
}
