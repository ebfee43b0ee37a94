package http

import (
	"net/http"

	"github.com/tidehall/gatekeeper/pkg/httpx"
	"github.com/tidehall/gatekeeper/pkg/oauthsdk"
)

// handleLivez reports process liveness.
func (h *Handler) handleLivez(w http.ResponseWriter, _ *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReadyz reports readiness, gated on database reachability.
func (h *Handler) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Ping(r.Context()); err != nil {
		oauthsdk.ErrTemporarilyUnavailable.WriteError(w)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
