package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tidehall/gatekeeper/internal/auth/domain"
	"github.com/tidehall/gatekeeper/internal/auth/store"
	"github.com/tidehall/gatekeeper/internal/auth/telemetry"
	"github.com/tidehall/gatekeeper/pkg/cryptox"
	"github.com/tidehall/gatekeeper/pkg/idx"
	"github.com/tidehall/gatekeeper/pkg/pkce"
	"github.com/tidehall/gatekeeper/pkg/slogx"
)

// AuthorizeService implements the authorization endpoint: validating
// authorization requests, issuing single-use codes and handling denial.
type AuthorizeService struct {
	store   store.Store
	cfg     Config
	metrics *telemetry.Metrics
}

func NewAuthorizeService(st store.Store, cfg Config, m *telemetry.Metrics) *AuthorizeService {
	if m == nil {
		m = telemetry.MustNew()
	}
	return &AuthorizeService{store: st, cfg: cfg.withDefaults(), metrics: m}
}

// AuthorizeRequest is a parsed authorization request plus the identity of
// the resource owner who approved it. Authentication of that resource owner
// happens upstream; this service only records the decision.
type AuthorizeRequest struct {
	ClientID            string
	RedirectURI         string
	ResponseType        string
	Scope               string
	State               string
	CodeChallenge       string
	CodeChallengeMethod string

	UserID   string
	TenantID string
}

// AuthorizeResult carries the issued code back to the handler, which encodes
// it into the redirect.
type AuthorizeResult struct {
	Code        string
	State       string
	RedirectURI string
	Scopes      []string
}

// Authorize validates the request and issues an authorization code bound to
// the client, user, redirect URI, scopes and PKCE challenge. Client and
// redirect-URI failures return ErrInvalidClient / ErrUnregisteredRedirect,
// which the handler must NOT turn into a redirect.
func (s *AuthorizeService) Authorize(ctx context.Context, req AuthorizeRequest) (*AuthorizeResult, error) {
	client, err := s.validateClientRedirect(ctx, req.ClientID, req.RedirectURI)
	if err != nil {
		return nil, err
	}

	if req.ResponseType != "code" {
		return nil, fmt.Errorf("%w: response_type %q", ErrUnsupportedResponseType, req.ResponseType)
	}
	if !client.AllowsGrant(domain.GrantAuthorizationCode) {
		return nil, fmt.Errorf("%w: client cannot use the authorization_code grant", ErrUnauthorizedClient)
	}

	scopes := parseScopes(req.Scope)
	if len(scopes) == 0 {
		scopes = client.Scopes
	}
	if !scopesSubset(scopes, client.Scopes) {
		return nil, fmt.Errorf("%w: requested scope exceeds client registration", ErrInvalidScope)
	}

	challenge, method, err := s.validateChallenge(client, req.CodeChallenge, req.CodeChallengeMethod)
	if err != nil {
		return nil, err
	}

	code, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return nil, fmt.Errorf("generate authorization code: %w", err)
	}

	now := time.Now().UTC()
	record := &domain.AuthorizationCode{
		ID:                  idx.New().String(),
		ClientID:            client.ID,
		UserID:              req.UserID,
		TenantID:            req.TenantID,
		CodeHash:            cryptox.FingerprintToken(code),
		RedirectURI:         req.RedirectURI,
		Scopes:              scopes,
		State:               req.State,
		CodeChallenge:       challenge,
		CodeChallengeMethod: method,
		ExpiresAt:           now.Add(s.cfg.CodeTTL),
		CreatedAt:           now,
	}
	if err := s.store.AuthorizationCodes().Create(ctx, record); err != nil {
		return nil, fmt.Errorf("store authorization code: %w", err)
	}

	telemetry.Add(ctx, s.metrics.CodesIssued, domain.GrantAuthorizationCode)
	slogx.FromContext(ctx).Info("authorization code issued",
		"client_id", client.ID,
		"user_id", req.UserID,
		"scopes", scopes,
	)

	return &AuthorizeResult{
		Code:        code,
		State:       req.State,
		RedirectURI: req.RedirectURI,
		Scopes:      scopes,
	}, nil
}

// Info describes a pending authorization request for the consent screen.
type Info struct {
	ClientName        string
	ClientDescription string
	RedirectURI       string
	Scopes            []domain.Scope
}

// Info validates the client/redirect pair and returns consent-screen
// metadata for the requested scopes.
func (s *AuthorizeService) Info(ctx context.Context, clientID, redirectURI, scope string) (*Info, error) {
	client, err := s.validateClientRedirect(ctx, clientID, redirectURI)
	if err != nil {
		return nil, err
	}

	scopes := parseScopes(scope)
	if len(scopes) == 0 {
		scopes = client.Scopes
	}
	if !scopesSubset(scopes, client.Scopes) {
		return nil, fmt.Errorf("%w: requested scope exceeds client registration", ErrInvalidScope)
	}

	return &Info{
		ClientName:        client.Name,
		ClientDescription: client.Description,
		RedirectURI:       redirectURI,
		Scopes:            s.cfg.Scopes.Describe(scopes),
	}, nil
}

// Deny records a resource-owner refusal. It validates the redirect target so
// the handler can safely bounce the access_denied error back to the client.
func (s *AuthorizeService) Deny(ctx context.Context, clientID, redirectURI, state string) (string, error) {
	if _, err := s.validateClientRedirect(ctx, clientID, redirectURI); err != nil {
		return "", err
	}
	slogx.FromContext(ctx).Info("authorization denied", "client_id", clientID)
	return redirectURI, nil
}

func (s *AuthorizeService) validateClientRedirect(ctx context.Context, clientID, redirectURI string) (*domain.Client, error) {
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
	if redirectURI == "" || !client.HasRedirectURI(redirectURI) {
		return nil, fmt.Errorf("%w: %q", ErrUnregisteredRedirect, redirectURI)
	}
	return client, nil
}

// validateChallenge applies the PKCE policy: public clients need a challenge
// while RequirePKCE is on, confidential clients may always skip it. The
// method defaults to plain when a challenge is sent without one, per RFC
// 7636.
func (s *AuthorizeService) validateChallenge(client *domain.Client, challenge, method string) (string, string, error) {
	if challenge == "" {
		if client.Public() && s.cfg.RequirePKCE {
			return "", "", fmt.Errorf("%w: public clients must send a code_challenge", ErrInvalidRequest)
		}
		if method != "" {
			return "", "", fmt.Errorf("%w: code_challenge_method without code_challenge", ErrInvalidRequest)
		}
		return "", "", nil
	}

	if method == "" {
		method = pkce.MethodPlain
	}
	switch method {
	case pkce.MethodS256, pkce.MethodPlain:
	default:
		return "", "", fmt.Errorf("%w: unsupported code_challenge_method %q", ErrInvalidRequest, method)
	}
	if len(challenge) < pkce.MinVerifierLength || len(challenge) > pkce.MaxVerifierLength {
		return "", "", fmt.Errorf("%w: code_challenge length out of range", ErrInvalidRequest)
	}
	return challenge, method, nil
}
