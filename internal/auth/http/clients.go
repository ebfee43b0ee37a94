package http

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/tidehall/gatekeeper/internal/auth/domain"
	"github.com/tidehall/gatekeeper/internal/auth/service"
	"github.com/tidehall/gatekeeper/pkg/httpx"
	"github.com/tidehall/gatekeeper/pkg/oauthsdk"
)

// handleClientCreate implements POST /v1/clients. The client_secret in the
// response is the only time the plaintext is ever shown.
func (h *Handler) handleClientCreate(w http.ResponseWriter, r *http.Request) {
	var req oauthsdk.CreateClientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		oauthsdk.NewOAuth2Error(http.StatusBadRequest,
			oauthsdk.ErrorCodeInvalidRequest, "invalid JSON body").WriteError(w)
		return
	}

	client, secret, err := h.clients.Create(r.Context(), service.CreateClientInput{
		Name:            req.Name,
		Description:     req.Description,
		RedirectURIs:    req.RedirectURIs,
		Scopes:          req.Scopes,
		GrantTypes:      req.GrantTypes,
		Confidential:    req.Confidential,
		OwnerID:         httpx.UserIDFromContext(r.Context()),
		TenantID:        httpx.TenantIDFromContext(r.Context()),
		AccessTokenTTL:  time.Duration(req.AccessTokenTTL) * time.Second,
		RefreshTokenTTL: time.Duration(req.RefreshTokenTTL) * time.Second,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	resp := clientResponse(client)
	resp.ClientSecret = secret
	httpx.WriteJSON(w, http.StatusCreated, resp)
}

// handleClientList implements GET /v1/clients.
func (h *Handler) handleClientList(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	clients, err := h.clients.List(r.Context(), httpx.TenantIDFromContext(r.Context()), limit, offset)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	out := make([]oauthsdk.ClientResponse, len(clients))
	for i, c := range clients {
		out[i] = clientResponse(c)
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"clients": out})
}

// handleClientGet implements GET /v1/clients/{id}.
func (h *Handler) handleClientGet(w http.ResponseWriter, r *http.Request) {
	client, err := h.clients.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, clientResponse(client))
}

type updateClientRequest struct {
	Name            *string  `json:"name,omitempty"`
	Description     *string  `json:"description,omitempty"`
	RedirectURIs    []string `json:"redirect_uris,omitempty"`
	Scopes          []string `json:"scopes,omitempty"`
	Active          *bool    `json:"active,omitempty"`
	AccessTokenTTL  *int     `json:"access_token_ttl,omitempty"`
	RefreshTokenTTL *int     `json:"refresh_token_ttl,omitempty"`
}

// handleClientUpdate implements PATCH /v1/clients/{id}.
func (h *Handler) handleClientUpdate(w http.ResponseWriter, r *http.Request) {
	var req updateClientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		oauthsdk.NewOAuth2Error(http.StatusBadRequest,
			oauthsdk.ErrorCodeInvalidRequest, "invalid JSON body").WriteError(w)
		return
	}

	in := service.UpdateClientInput{
		Name:         req.Name,
		Description:  req.Description,
		RedirectURIs: req.RedirectURIs,
		Scopes:       req.Scopes,
		Active:       req.Active,
	}
	if req.AccessTokenTTL != nil {
		d := time.Duration(*req.AccessTokenTTL) * time.Second
		in.AccessTokenTTL = &d
	}
	if req.RefreshTokenTTL != nil {
		d := time.Duration(*req.RefreshTokenTTL) * time.Second
		in.RefreshTokenTTL = &d
	}

	client, err := h.clients.Update(r.Context(), r.PathValue("id"), in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, clientResponse(client))
}

// handleClientDelete implements DELETE /v1/clients/{id}. Issued codes and
// tokens go with it.
func (h *Handler) handleClientDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.clients.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleClientSecretRotate implements POST /v1/clients/{id}/secret.
func (h *Handler) handleClientSecretRotate(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	secret, err := h.clients.RegenerateSecret(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]string{
		"client_id":     id,
		"client_secret": secret,
	})
}

func clientResponse(c *domain.Client) oauthsdk.ClientResponse {
	return oauthsdk.ClientResponse{
		ClientID:        c.ID,
		Name:            c.Name,
		Description:     c.Description,
		RedirectURIs:    c.RedirectURIs,
		Scopes:          c.Scopes,
		GrantTypes:      c.GrantTypes,
		Confidential:    c.Confidential,
		Active:          c.Active,
		AccessTokenTTL:  int(c.AccessTokenTTL / time.Second),
		RefreshTokenTTL: int(c.RefreshTokenTTL / time.Second),
	}
}
