package service

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/tidehall/gatekeeper/internal/auth/domain"
	"github.com/tidehall/gatekeeper/internal/auth/store"
	"github.com/tidehall/gatekeeper/pkg/cryptox"
	"github.com/tidehall/gatekeeper/pkg/idx"
	"github.com/tidehall/gatekeeper/pkg/slogx"
)

// ClientService manages OAuth2 client registrations and authenticates
// clients at the token, introspection and revocation endpoints.
type ClientService struct {
	store store.Store
	cfg   Config
}

func NewClientService(st store.Store, cfg Config) *ClientService {
	return &ClientService{store: st, cfg: cfg.withDefaults()}
}

// CreateClientInput is the registration payload.
type CreateClientInput struct {
	Name         string
	Description  string
	RedirectURIs []string
	Scopes       []string
	GrantTypes   []string
	Confidential bool
	OwnerID      string
	TenantID     string

	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

// Create registers a new client. For confidential clients the returned
// secret is the only time the plaintext is available; only its argon2id hash
// is stored.
func (s *ClientService) Create(ctx context.Context, in CreateClientInput) (*domain.Client, string, error) {
	if in.Name == "" {
		return nil, "", fmt.Errorf("%w: name is required", ErrInvalidRequest)
	}
	if len(in.RedirectURIs) == 0 {
		return nil, "", fmt.Errorf("%w: at least one redirect_uri is required", ErrInvalidRequest)
	}
	for _, uri := range in.RedirectURIs {
		if err := validateRedirectURI(uri); err != nil {
			return nil, "", err
		}
	}

	for _, sc := range in.Scopes {
		if !s.cfg.Scopes.Contains(sc) {
			return nil, "", fmt.Errorf("%w: unknown scope %q", ErrInvalidScope, sc)
		}
	}

	grants := in.GrantTypes
	if len(grants) == 0 {
		grants = domain.DefaultGrantTypes
	}
	for _, g := range grants {
		switch g {
		case domain.GrantAuthorizationCode, domain.GrantClientCredentials, domain.GrantRefreshToken:
		default:
			return nil, "", fmt.Errorf("%w: unknown grant type %q", ErrInvalidRequest, g)
		}
		if g == domain.GrantClientCredentials && !in.Confidential {
			return nil, "", fmt.Errorf("%w: public clients cannot use client_credentials", ErrInvalidRequest)
		}
	}

	var secret, secretHash string
	if in.Confidential {
		var err error
		secret, err = cryptox.GenerateToken(cryptox.TokenSize256)
		if err != nil {
			return nil, "", fmt.Errorf("generate client secret: %w", err)
		}
		secretHash, err = cryptox.HashSecret(secret)
		if err != nil {
			return nil, "", fmt.Errorf("hash client secret: %w", err)
		}
	}

	now := time.Now().UTC()
	client := &domain.Client{
		ID:              idx.New().String(),
		Name:            in.Name,
		Description:     in.Description,
		SecretHash:      secretHash,
		RedirectURIs:    in.RedirectURIs,
		Scopes:          in.Scopes,
		GrantTypes:      grants,
		Confidential:    in.Confidential,
		Active:          true,
		OwnerID:         in.OwnerID,
		TenantID:        in.TenantID,
		AccessTokenTTL:  in.AccessTokenTTL,
		RefreshTokenTTL: in.RefreshTokenTTL,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.store.Clients().Create(ctx, client); err != nil {
		return nil, "", fmt.Errorf("create client: %w", err)
	}

	slogx.FromContext(ctx).Info("client registered",
		"client_id", client.ID,
		"confidential", client.Confidential,
	)
	return client, secret, nil
}

// Get returns the client with the given ID.
func (s *ClientService) Get(ctx context.Context, id string) (*domain.Client, error) {
	client, err := s.store.Clients().Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: unknown client", ErrInvalidClient)
	}
	return client, err
}

// List returns registered clients, optionally filtered by tenant.
func (s *ClientService) List(ctx context.Context, tenantID string, limit, offset int) ([]*domain.Client, error) {
	return s.store.Clients().List(ctx, tenantID, limit, offset)
}

// UpdateClientInput carries the mutable client fields. Nil slice or zero
// value means "leave unchanged".
type UpdateClientInput struct {
	Name         *string
	Description  *string
	RedirectURIs []string
	Scopes       []string
	Active       *bool

	AccessTokenTTL  *time.Duration
	RefreshTokenTTL *time.Duration
}

// Update applies a partial update to a client registration.
func (s *ClientService) Update(ctx context.Context, id string, in UpdateClientInput) (*domain.Client, error) {
	client, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.Name != nil {
		if *in.Name == "" {
			return nil, fmt.Errorf("%w: name cannot be empty", ErrInvalidRequest)
		}
		client.Name = *in.Name
	}
	if in.Description != nil {
		client.Description = *in.Description
	}
	if in.RedirectURIs != nil {
		if len(in.RedirectURIs) == 0 {
			return nil, fmt.Errorf("%w: at least one redirect_uri is required", ErrInvalidRequest)
		}
		for _, uri := range in.RedirectURIs {
			if err := validateRedirectURI(uri); err != nil {
				return nil, err
			}
		}
		client.RedirectURIs = in.RedirectURIs
	}
	if in.Scopes != nil {
		for _, sc := range in.Scopes {
			if !s.cfg.Scopes.Contains(sc) {
				return nil, fmt.Errorf("%w: unknown scope %q", ErrInvalidScope, sc)
			}
		}
		client.Scopes = in.Scopes
	}
	if in.Active != nil {
		client.Active = *in.Active
	}
	if in.AccessTokenTTL != nil {
		client.AccessTokenTTL = *in.AccessTokenTTL
	}
	if in.RefreshTokenTTL != nil {
		client.RefreshTokenTTL = *in.RefreshTokenTTL
	}
	client.UpdatedAt = time.Now().UTC()

	if err := s.store.Clients().Update(ctx, client); err != nil {
		return nil, fmt.Errorf("update client: %w", err)
	}
	return client, nil
}

// RegenerateSecret replaces a confidential client's secret and returns the
// new plaintext once.
func (s *ClientService) RegenerateSecret(ctx context.Context, id string) (string, error) {
	client, err := s.Get(ctx, id)
	if err != nil {
		return "", err
	}
	if client.Public() {
		return "", fmt.Errorf("%w: public clients have no secret", ErrInvalidRequest)
	}

	secret, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return "", fmt.Errorf("generate client secret: %w", err)
	}
	hash, err := cryptox.HashSecret(secret)
	if err != nil {
		return "", fmt.Errorf("hash client secret: %w", err)
	}
	if err := s.store.Clients().UpdateSecretHash(ctx, id, hash); err != nil {
		return "", fmt.Errorf("store client secret: %w", err)
	}

	slogx.FromContext(ctx).Info("client secret regenerated", "client_id", id)
	return secret, nil
}

// Delete removes a client. Codes and tokens cascade at the database level.
func (s *ClientService) Delete(ctx context.Context, id string) error {
	err := s.store.Clients().Delete(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: unknown client", ErrInvalidClient)
	}
	return err
}

// Authenticate verifies client credentials for the token, introspection and
// revocation endpoints. Public clients present only their client_id;
// confidential clients must present their secret, verified in constant time
// through the argon2id hash.
func (s *ClientService) Authenticate(ctx context.Context, clientID, clientSecret string) (*domain.Client, error) {
	if clientID == "" {
		return nil, fmt.Errorf("%w: missing client_id", ErrInvalidClient)
	}

	client, err := s.store.Clients().Get(ctx, clientID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: unknown client", ErrInvalidClient)
	}
	if err != nil {
		return nil, err
	}
	if !client.Active {
		return nil, fmt.Errorf("%w: client is disabled", ErrInvalidClient)
	}

	if client.Public() {
		if clientSecret != "" {
			return nil, fmt.Errorf("%w: public client must not send a secret", ErrInvalidClient)
		}
		return client, nil
	}

	if clientSecret == "" {
		return nil, fmt.Errorf("%w: missing client_secret", ErrInvalidClient)
	}
	if err := cryptox.VerifySecret(clientSecret, client.SecretHash); err != nil {
		return nil, fmt.Errorf("%w: bad client_secret", ErrInvalidClient)
	}
	return client, nil
}

// validateRedirectURI enforces registration rules: absolute URI, no
// whitespace, no fragment, and https except for loopback hosts used in
// development. Literal whitespace would split the URI when the store encodes
// the list space-delimited.
func validateRedirectURI(raw string) error {
	if strings.ContainsAny(raw, " \t\r\n") {
		return fmt.Errorf("%w: redirect_uri %q must not contain whitespace", ErrInvalidRequest, raw)
	}
	u, err := url.Parse(raw)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return fmt.Errorf("%w: redirect_uri %q is not an absolute URL", ErrInvalidRequest, raw)
	}
	if u.Fragment != "" {
		return fmt.Errorf("%w: redirect_uri %q must not contain a fragment", ErrInvalidRequest, raw)
	}
	switch u.Scheme {
	case "https":
		return nil
	case "http":
		host := u.Hostname()
		if host == "localhost" {
			return nil
		}
		if ip := net.ParseIP(host); ip != nil && ip.IsLoopback() {
			return nil
		}
		return fmt.Errorf("%w: http redirect_uri %q is only allowed on loopback hosts", ErrInvalidRequest, raw)
	default:
		return fmt.Errorf("%w: redirect_uri %q must use https", ErrInvalidRequest, raw)
	}
}
