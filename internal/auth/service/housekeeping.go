package service

import (
	"context"
	"time"

	"github.com/tidehall/gatekeeper/internal/auth/store"
	"github.com/tidehall/gatekeeper/pkg/slogx"
)

// Housekeeper periodically deletes expired authorization codes and tokens.
// Revoked rows are kept until expiry so introspection and replay detection
// keep working.
type Housekeeper struct {
	store    store.Store
	interval time.Duration
}

func NewHousekeeper(st store.Store, interval time.Duration) *Housekeeper {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Housekeeper{store: st, interval: interval}
}

// Run sweeps on the configured interval until ctx is cancelled. The first
// sweep happens immediately.
func (h *Housekeeper) Run(ctx context.Context) {
	h.sweep(ctx)

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.sweep(ctx)
		}
	}
}

func (h *Housekeeper) sweep(ctx context.Context) {
	log := slogx.FromContext(ctx)

	codes, err := h.store.AuthorizationCodes().DeleteExpired(ctx)
	if err != nil {
		log.Error("housekeeping: delete expired codes", "error", err)
	}
	access, err := h.store.AccessTokens().DeleteExpired(ctx)
	if err != nil {
		log.Error("housekeeping: delete expired access tokens", "error", err)
	}
	refresh, err := h.store.RefreshTokens().DeleteExpired(ctx)
	if err != nil {
		log.Error("housekeeping: delete expired refresh tokens", "error", err)
	}

	if codes+access+refresh > 0 {
		log.Info("housekeeping sweep",
			"codes", codes,
			"access_tokens", access,
			"refresh_tokens", refresh,
		)
	}
}
