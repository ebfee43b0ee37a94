// Package app wires configuration, storage, services and the HTTP server
// into a runnable authorization server.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/tidehall/gatekeeper/internal/auth/guard"
	authhttp "github.com/tidehall/gatekeeper/internal/auth/http"
	"github.com/tidehall/gatekeeper/internal/auth/service"
	"github.com/tidehall/gatekeeper/internal/auth/store"
	"github.com/tidehall/gatekeeper/internal/auth/store/drivers/postgres"
	"github.com/tidehall/gatekeeper/internal/auth/store/drivers/sqlite"
	"github.com/tidehall/gatekeeper/internal/auth/telemetry"
	"github.com/tidehall/gatekeeper/pkg/cryptox"
	"github.com/tidehall/gatekeeper/pkg/slogx"
)

// App is the assembled server.
type App struct {
	cfg    *Config
	log    *slog.Logger
	store  store.Store
	server *http.Server

	housekeeper *service.Housekeeper
}

// New builds the full dependency graph.
func New(ctx context.Context, cfg *Config) (*App, error) {
	log := slogx.New(slogx.Config{
		Service: "gatekeeper",
		Version: cfg.Version,
		Env:     cfg.Env,
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
	})

	cryptox.SetPepperPath(cfg.PepperFile)
	cryptox.GetPepper()

	st, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	svcCfg := service.Config{
		Issuer:          cfg.Issuer,
		AccessTokenTTL:  cfg.AccessTokenTTL,
		RefreshTokenTTL: cfg.RefreshTokenTTL,
		CodeTTL:         cfg.CodeTTL,
		RefreshRotation: cfg.RefreshRotation,
		RequirePKCE:     cfg.RequirePKCE,
		Scopes:          cfg.Scopes,
	}

	metrics := telemetry.MustNew()
	clients := service.NewClientService(st, svcCfg)
	authorize := service.NewAuthorizeService(st, svcCfg, metrics)
	tokens := service.NewTokenService(st, clients, svcCfg, metrics)

	authn := buildAuthenticator(cfg, tokens)

	handler := authhttp.NewHandler(clients, authorize, tokens, st, authn)
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler.Router(log),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	return &App{
		cfg:         cfg,
		log:         log,
		store:       st,
		server:      srv,
		housekeeper: service.NewHousekeeper(st, cfg.HousekeepingInterval),
	}, nil
}

func openStore(ctx context.Context, cfg *Config) (store.Store, error) {
	switch cfg.DatabaseDriver {
	case "postgres":
		return postgres.Open(ctx, cfg.DatabaseDSN)
	default:
		return sqlite.Open(cfg.DatabaseDSN)
	}
}

// buildAuthenticator composes the request guard: opaque OAuth tokens first,
// HS256 service tokens second when a secret is configured.
func buildAuthenticator(cfg *Config, tokens *service.TokenService) guard.Authenticator {
	oauth := guard.NewOAuthAuthenticator(tokens)
	if cfg.JWTSecret == "" {
		return oauth
	}
	return guard.NewChain(oauth, guard.NewJWTAuthenticator([]byte(cfg.JWTSecret), cfg.Issuer))
}

// Run serves until ctx is cancelled, then drains connections within the
// grace period.
func (a *App) Run(ctx context.Context) error {
	hkCtx, cancelHK := context.WithCancel(context.Background())
	defer cancelHK()
	go a.housekeeper.Run(slogx.WithContext(hkCtx, a.log))

	errCh := make(chan error, 1)
	go func() {
		a.log.Info("server listening", "addr", a.server.Addr, "driver", a.cfg.DatabaseDriver)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	a.log.Info("shutting down", "grace_period", a.cfg.ShutdownGracePeriod)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.log.Error("shutdown", "error", err)
	}
	cancelHK()
	return a.store.Close()
}
