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

// TokenService implements the token, introspection and revocation endpoints:
// grant exchanges, opaque token issuance, refresh rotation and lookup by
// fingerprint.
type TokenService struct {
	store   store.Store
	clients *ClientService
	cfg     Config
	metrics *telemetry.Metrics
}

func NewTokenService(st store.Store, clients *ClientService, cfg Config, m *telemetry.Metrics) *TokenService {
	if m == nil {
		m = telemetry.MustNew()
	}
	return &TokenService{store: st, clients: clients, cfg: cfg.withDefaults(), metrics: m}
}

// CodeExchangeInput is the authorization_code grant request.
type CodeExchangeInput struct {
	ClientID     string
	ClientSecret string
	Code         string
	RedirectURI  string
	CodeVerifier string
}

// ExchangeAuthorizationCode redeems a single-use authorization code for a
// token pair. Consumption is a compare-and-set; losing the race means the
// code was replayed, and every token previously issued from it to this
// user/client pair is revoked.
func (s *TokenService) ExchangeAuthorizationCode(ctx context.Context, in CodeExchangeInput) (*domain.TokenPair, error) {
	client, err := s.clients.Authenticate(ctx, in.ClientID, in.ClientSecret)
	if err != nil {
		return nil, err
	}
	if !client.AllowsGrant(domain.GrantAuthorizationCode) {
		return nil, fmt.Errorf("%w: client cannot use the authorization_code grant", ErrUnauthorizedClient)
	}
	if in.Code == "" {
		return nil, fmt.Errorf("%w: missing code", ErrInvalidRequest)
	}

	codeHash := cryptox.FingerprintToken(in.Code)
	code, err := s.store.AuthorizationCodes().GetByHash(ctx, codeHash)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: unknown code", ErrInvalidGrant)
	}
	if err != nil {
		return nil, err
	}

	if code.ClientID != client.ID {
		return nil, fmt.Errorf("%w: code was issued to a different client", ErrInvalidGrant)
	}
	if code.Expired(time.Now()) {
		return nil, fmt.Errorf("%w: code expired", ErrInvalidGrant)
	}
	if code.RedirectURI != in.RedirectURI {
		return nil, fmt.Errorf("%w: redirect_uri mismatch", ErrInvalidGrant)
	}
	if err := s.verifyCodeVerifier(code, in.CodeVerifier); err != nil {
		return nil, err
	}

	var pair *domain.TokenPair
	err = s.store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.AuthorizationCodes().MarkUsed(ctx, codeHash); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return errCodeReplayed
			}
			return err
		}

		pair, err = s.issuePair(ctx, tx, client, code.UserID, code.TenantID,
			code.Scopes, domain.GrantAuthorizationCode, true)
		return err
	})
	if errors.Is(err, errCodeReplayed) {
		return nil, s.handleCodeReplay(ctx, code)
	}
	if err != nil {
		return nil, err
	}

	telemetry.Add(ctx, s.metrics.CodesExchanged, domain.GrantAuthorizationCode)
	slogx.FromContext(ctx).Info("authorization code exchanged",
		"client_id", client.ID,
		"user_id", code.UserID,
	)
	return pair, nil
}

// errCodeReplayed aborts the exchange transaction without committing
// anything, so the revocation sweep can run on its own.
var errCodeReplayed = errors.New("authorization code replayed")

// handleCodeReplay revokes everything issued to the user/client pair and
// reports invalid_grant. The sweep commits in its own transaction; the
// failed exchange rolled back, so the revocations must not ride on it.
func (s *TokenService) handleCodeReplay(ctx context.Context, code *domain.AuthorizationCode) error {
	var nAccess, nRefresh int64
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		nAccess, err = tx.AccessTokens().RevokeAllForUserClient(ctx, code.UserID, code.ClientID)
		if err != nil {
			return err
		}
		nRefresh, err = tx.RefreshTokens().RevokeAllForUserClient(ctx, code.UserID, code.ClientID)
		return err
	})
	if err != nil {
		return err
	}

	telemetry.Add(ctx, s.metrics.CodeReplays, domain.GrantAuthorizationCode)
	slogx.FromContext(ctx).Warn("authorization code replay detected",
		"client_id", code.ClientID,
		"user_id", code.UserID,
		"access_tokens_revoked", nAccess,
		"refresh_tokens_revoked", nRefresh,
	)
	return fmt.Errorf("%w: code already used", ErrInvalidGrant)
}

// verifyCodeVerifier checks the PKCE binding recorded at authorization time.
func (s *TokenService) verifyCodeVerifier(code *domain.AuthorizationCode, verifier string) error {
	if code.CodeChallenge == "" {
		if verifier != "" {
			return fmt.Errorf("%w: code_verifier sent but no challenge was recorded", ErrInvalidRequest)
		}
		return nil
	}
	if verifier == "" {
		return fmt.Errorf("%w: missing code_verifier", ErrInvalidRequest)
	}
	if !pkce.VerifyChallenge(verifier, code.CodeChallenge, code.CodeChallengeMethod) {
		return fmt.Errorf("%w: code_verifier does not match challenge", ErrInvalidGrant)
	}
	return nil
}

// ExchangeClientCredentials issues an access token directly to a
// confidential client. No refresh token is issued for this grant.
func (s *TokenService) ExchangeClientCredentials(ctx context.Context, clientID, clientSecret, scope string) (*domain.TokenPair, error) {
	client, err := s.clients.Authenticate(ctx, clientID, clientSecret)
	if err != nil {
		return nil, err
	}
	if client.Public() {
		return nil, fmt.Errorf("%w: public clients cannot use client_credentials", ErrUnauthorizedClient)
	}
	if !client.AllowsGrant(domain.GrantClientCredentials) {
		return nil, fmt.Errorf("%w: client cannot use the client_credentials grant", ErrUnauthorizedClient)
	}

	scopes := parseScopes(scope)
	if len(scopes) == 0 {
		scopes = client.Scopes
	}
	if !scopesSubset(scopes, client.Scopes) {
		return nil, fmt.Errorf("%w: requested scope exceeds client registration", ErrInvalidScope)
	}

	var pair *domain.TokenPair
	err = s.store.WithTx(ctx, func(tx store.Tx) error {
		pair, err = s.issuePair(ctx, tx, client, "", client.TenantID,
			scopes, domain.GrantClientCredentials, false)
		return err
	})
	if err != nil {
		return nil, err
	}

	slogx.FromContext(ctx).Info("client_credentials token issued", "client_id", client.ID)
	return pair, nil
}

// ExchangeRefreshToken rotates a refresh token: the presented token is
// revoked alongside its access token and a fresh pair is issued with the
// rotation counter advanced. Presenting an already-revoked token is treated
// as theft and revokes everything for the user/client pair. Scope may only
// narrow.
func (s *TokenService) ExchangeRefreshToken(ctx context.Context, clientID, clientSecret, refreshToken, scope string) (*domain.TokenPair, error) {
	client, err := s.clients.Authenticate(ctx, clientID, clientSecret)
	if err != nil {
		return nil, err
	}
	if !client.AllowsGrant(domain.GrantRefreshToken) {
		return nil, fmt.Errorf("%w: client cannot use the refresh_token grant", ErrUnauthorizedClient)
	}
	if refreshToken == "" {
		return nil, fmt.Errorf("%w: missing refresh_token", ErrInvalidRequest)
	}

	tokenHash := cryptox.FingerprintToken(refreshToken)
	token, err := s.store.RefreshTokens().GetByHash(ctx, tokenHash)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: unknown refresh_token", ErrInvalidGrant)
	}
	if err != nil {
		return nil, err
	}
	if token.ClientID != client.ID {
		return nil, fmt.Errorf("%w: refresh_token was issued to a different client", ErrInvalidGrant)
	}

	if token.Revoked {
		return nil, s.handleRefreshReuse(ctx, token)
	}
	if !token.Valid(time.Now()) {
		return nil, fmt.Errorf("%w: refresh_token expired", ErrInvalidGrant)
	}

	scopes := parseScopes(scope)
	if len(scopes) == 0 {
		scopes = token.Scopes
	}
	if !scopesSubset(scopes, token.Scopes) {
		return nil, fmt.Errorf("%w: scope may only narrow on refresh", ErrInvalidScope)
	}

	var pair *domain.TokenPair
	err = s.store.WithTx(ctx, func(tx store.Tx) error {
		if s.cfg.RefreshRotation {
			if err := tx.RefreshTokens().Revoke(ctx, tokenHash); err != nil {
				if errors.Is(err, store.ErrNotFound) {
					// Lost the race to a concurrent refresh.
					return fmt.Errorf("%w: refresh_token already rotated", ErrInvalidGrant)
				}
				return err
			}
			if token.AccessTokenID != "" {
				err := tx.AccessTokens().RevokeByID(ctx, token.AccessTokenID)
				if err != nil && !errors.Is(err, store.ErrNotFound) {
					return err
				}
			}
		}

		pair, err = s.issueRotatedPair(ctx, tx, client, token, scopes)
		return err
	})
	if err != nil {
		return nil, err
	}

	telemetry.Add(ctx, s.metrics.RefreshRotations, domain.GrantRefreshToken)
	slogx.FromContext(ctx).Info("refresh token exchanged",
		"client_id", client.ID,
		"user_id", token.UserID,
		"rotation", token.RotationCounter+1,
	)
	return pair, nil
}

// handleRefreshReuse treats presentation of a rotated-out token as
// compromise and revokes the whole family for the user/client pair.
func (s *TokenService) handleRefreshReuse(ctx context.Context, token *domain.RefreshToken) error {
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		if _, err := tx.AccessTokens().RevokeAllForUserClient(ctx, token.UserID, token.ClientID); err != nil {
			return err
		}
		_, err := tx.RefreshTokens().RevokeAllForUserClient(ctx, token.UserID, token.ClientID)
		return err
	})
	if err != nil {
		return err
	}

	slogx.FromContext(ctx).Warn("revoked refresh token reuse detected",
		"client_id", token.ClientID,
		"user_id", token.UserID,
	)
	return fmt.Errorf("%w: refresh_token revoked", ErrInvalidGrant)
}

// issuePair creates and stores a new access token and, when withRefresh is
// set and the client allows the refresh_token grant, a linked refresh token.
func (s *TokenService) issuePair(ctx context.Context, tx store.Tx, client *domain.Client,
	userID, tenantID string, scopes []string, grantType string, withRefresh bool,
) (*domain.TokenPair, error) {
	accessTTL := s.cfg.AccessTokenTTL
	if client.AccessTokenTTL > 0 {
		accessTTL = client.AccessTokenTTL
	}
	refreshTTL := s.cfg.RefreshTokenTTL
	if client.RefreshTokenTTL > 0 {
		refreshTTL = client.RefreshTokenTTL
	}

	accessPlain, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return nil, fmt.Errorf("generate access token: %w", err)
	}

	now := time.Now().UTC()
	access := &domain.AccessToken{
		ID:        idx.New().String(),
		ClientID:  client.ID,
		UserID:    userID,
		TenantID:  tenantID,
		TokenHash: cryptox.FingerprintToken(accessPlain),
		Scopes:    scopes,
		GrantType: grantType,
		ExpiresAt: now.Add(accessTTL),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := tx.AccessTokens().Create(ctx, access); err != nil {
		return nil, fmt.Errorf("store access token: %w", err)
	}

	pair := &domain.TokenPair{
		AccessToken: accessPlain,
		TokenType:   "Bearer",
		ExpiresIn:   accessTTL,
		Scope:       joinScopes(scopes),
	}

	if withRefresh && client.AllowsGrant(domain.GrantRefreshToken) {
		refreshPlain, err := cryptox.GenerateToken(cryptox.TokenSize384)
		if err != nil {
			return nil, fmt.Errorf("generate refresh token: %w", err)
		}
		refresh := &domain.RefreshToken{
			ID:            idx.New().String(),
			ClientID:      client.ID,
			UserID:        userID,
			TenantID:      tenantID,
			TokenHash:     cryptox.FingerprintToken(refreshPlain),
			Scopes:        scopes,
			AccessTokenID: access.ID,
			ExpiresAt:     now.Add(refreshTTL),
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := tx.RefreshTokens().Create(ctx, refresh); err != nil {
			return nil, fmt.Errorf("store refresh token: %w", err)
		}
		pair.RefreshToken = refreshPlain
	}

	telemetry.Add(ctx, s.metrics.TokensIssued, grantType)
	return pair, nil
}

// issueRotatedPair issues the replacement pair for a refresh exchange. With
// rotation disabled only a new access token is issued and the refresh_token
// field is left empty, meaning "keep using the one you have".
func (s *TokenService) issueRotatedPair(ctx context.Context, tx store.Tx, client *domain.Client,
	old *domain.RefreshToken, scopes []string,
) (*domain.TokenPair, error) {
	accessTTL := s.cfg.AccessTokenTTL
	if client.AccessTokenTTL > 0 {
		accessTTL = client.AccessTokenTTL
	}
	refreshTTL := s.cfg.RefreshTokenTTL
	if client.RefreshTokenTTL > 0 {
		refreshTTL = client.RefreshTokenTTL
	}

	accessPlain, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return nil, fmt.Errorf("generate access token: %w", err)
	}

	now := time.Now().UTC()
	access := &domain.AccessToken{
		ID:        idx.New().String(),
		ClientID:  client.ID,
		UserID:    old.UserID,
		TenantID:  old.TenantID,
		TokenHash: cryptox.FingerprintToken(accessPlain),
		Scopes:    scopes,
		GrantType: domain.GrantRefreshToken,
		ExpiresAt: now.Add(accessTTL),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := tx.AccessTokens().Create(ctx, access); err != nil {
		return nil, fmt.Errorf("store access token: %w", err)
	}

	pair := &domain.TokenPair{
		AccessToken: accessPlain,
		TokenType:   "Bearer",
		ExpiresIn:   accessTTL,
		Scope:       joinScopes(scopes),
	}

	if s.cfg.RefreshRotation {
		refreshPlain, err := cryptox.GenerateToken(cryptox.TokenSize384)
		if err != nil {
			return nil, fmt.Errorf("generate refresh token: %w", err)
		}
		refresh := &domain.RefreshToken{
			ID:              idx.New().String(),
			ClientID:        client.ID,
			UserID:          old.UserID,
			TenantID:        old.TenantID,
			TokenHash:       cryptox.FingerprintToken(refreshPlain),
			Scopes:          scopes,
			AccessTokenID:   access.ID,
			RotationCounter: old.RotationCounter + 1,
			ExpiresAt:       now.Add(refreshTTL),
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if err := tx.RefreshTokens().Create(ctx, refresh); err != nil {
			return nil, fmt.Errorf("store refresh token: %w", err)
		}
		pair.RefreshToken = refreshPlain
	}

	telemetry.Add(ctx, s.metrics.TokensIssued, domain.GrantRefreshToken)
	return pair, nil
}

// Validate looks up an access token by fingerprint and checks it is live.
// Used by the request guard.
func (s *TokenService) Validate(ctx context.Context, token string) (*domain.AccessToken, error) {
	if token == "" {
		return nil, fmt.Errorf("%w: empty token", ErrInvalidGrant)
	}
	record, err := s.store.AccessTokens().GetByHash(ctx, cryptox.FingerprintToken(token))
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: unknown token", ErrInvalidGrant)
	}
	if err != nil {
		return nil, err
	}
	if !record.Valid(time.Now()) {
		return nil, fmt.Errorf("%w: token expired or revoked", ErrInvalidGrant)
	}
	return record, nil
}

// Introspect implements the RFC 7662 lookup. Any failure to resolve an
// active token yields {active:false}; the endpoint never explains itself.
func (s *TokenService) Introspect(ctx context.Context, token, hint string) *domain.Introspection {
	telemetry.Add(ctx, s.metrics.TokensIntrospected, hint)

	if token == "" {
		return &domain.Introspection{Active: false}
	}
	hash := cryptox.FingerprintToken(token)
	now := time.Now()

	lookups := []string{"access_token", "refresh_token"}
	if hint == "refresh_token" {
		lookups = []string{"refresh_token", "access_token"}
	}

	for _, kind := range lookups {
		switch kind {
		case "access_token":
			t, err := s.store.AccessTokens().GetByHash(ctx, hash)
			if err == nil && t.Valid(now) {
				return &domain.Introspection{
					Active:    true,
					Scope:     joinScopes(t.Scopes),
					ClientID:  t.ClientID,
					TokenType: "access_token",
					Exp:       t.ExpiresAt.Unix(),
					Iat:       t.CreatedAt.Unix(),
					Sub:       t.UserID,
					Aud:       []string{t.ClientID},
					Iss:       s.cfg.Issuer,
				}
			}
		case "refresh_token":
			t, err := s.store.RefreshTokens().GetByHash(ctx, hash)
			if err == nil && t.Valid(now) {
				return &domain.Introspection{
					Active:    true,
					Scope:     joinScopes(t.Scopes),
					ClientID:  t.ClientID,
					TokenType: "refresh_token",
					Exp:       t.ExpiresAt.Unix(),
					Iat:       t.CreatedAt.Unix(),
					Sub:       t.UserID,
					Aud:       []string{t.ClientID},
					Iss:       s.cfg.Issuer,
				}
			}
		}
	}
	return &domain.Introspection{Active: false}
}

// Revoke implements RFC 7009. The caller must already be authenticated as a
// client; tokens belonging to other clients are silently ignored, as is a
// token the server does not recognize.
func (s *TokenService) Revoke(ctx context.Context, client *domain.Client, token, hint string) error {
	if token == "" {
		return nil
	}
	hash := cryptox.FingerprintToken(token)

	lookups := []string{"access_token", "refresh_token"}
	if hint == "refresh_token" {
		lookups = []string{"refresh_token", "access_token"}
	}

	for _, kind := range lookups {
		switch kind {
		case "access_token":
			t, err := s.store.AccessTokens().GetByHash(ctx, hash)
			if err != nil || t.ClientID != client.ID {
				continue
			}
			if err := s.store.AccessTokens().Revoke(ctx, hash); err != nil && !errors.Is(err, store.ErrNotFound) {
				return err
			}
			telemetry.Add(ctx, s.metrics.TokensRevoked, "access_token")
			slogx.FromContext(ctx).Info("access token revoked", "client_id", client.ID)
			return nil
		case "refresh_token":
			t, err := s.store.RefreshTokens().GetByHash(ctx, hash)
			if err != nil || t.ClientID != client.ID {
				continue
			}
			// Revoking a refresh token also kills its access token.
			err = s.store.WithTx(ctx, func(tx store.Tx) error {
				if err := tx.RefreshTokens().Revoke(ctx, hash); err != nil && !errors.Is(err, store.ErrNotFound) {
					return err
				}
				if t.AccessTokenID != "" {
					if err := tx.AccessTokens().RevokeByID(ctx, t.AccessTokenID); err != nil && !errors.Is(err, store.ErrNotFound) {
						return err
					}
				}
				return nil
			})
			if err != nil {
				return err
			}
			telemetry.Add(ctx, s.metrics.TokensRevoked, "refresh_token")
			slogx.FromContext(ctx).Info("refresh token revoked", "client_id", client.ID)
			return nil
		}
	}
	return nil
}
