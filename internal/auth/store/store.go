// Package store defines the persistence interfaces the services depend on.
// Drivers live under store/drivers and implement these against a concrete
// database.
package store

import (
	"context"
	"errors"

	"github.com/tidehall/gatekeeper/internal/auth/domain"
)

var (
	// ErrNotFound is returned when the requested row does not exist, or
	// when a conditional update matched no row.
	ErrNotFound = errors.New("store: not found")

	// ErrAlreadyExists is returned on unique-constraint violations.
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root persistence interface. Repositories obtained from it run
// outside any transaction; WithTx runs fn with repositories bound to a single
// transaction that commits when fn returns nil and rolls back otherwise.
type Store interface {
	Clients() ClientRepository
	AuthorizationCodes() AuthorizationCodeRepository
	AccessTokens() AccessTokenRepository
	RefreshTokens() RefreshTokenRepository

	WithTx(ctx context.Context, fn func(tx Tx) error) error

	Ping(ctx context.Context) error
	Close() error
}

// Tx exposes the same repositories bound to one transaction.
type Tx interface {
	Clients() ClientRepository
	AuthorizationCodes() AuthorizationCodeRepository
	AccessTokens() AccessTokenRepository
	RefreshTokens() RefreshTokenRepository
}

// ClientRepository persists registered OAuth2 clients.
type ClientRepository interface {
	Create(ctx context.Context, c *domain.Client) error
	Get(ctx context.Context, id string) (*domain.Client, error)
	List(ctx context.Context, tenantID string, limit, offset int) ([]*domain.Client, error)
	Update(ctx context.Context, c *domain.Client) error
	UpdateSecretHash(ctx context.Context, id, secretHash string) error
	Delete(ctx context.Context, id string) error
}

// AuthorizationCodeRepository persists single-use authorization codes, keyed
// by code fingerprint.
type AuthorizationCodeRepository interface {
	Create(ctx context.Context, c *domain.AuthorizationCode) error
	GetByHash(ctx context.Context, codeHash string) (*domain.AuthorizationCode, error)

	// MarkUsed atomically stamps used_at on an unused code. It returns
	// ErrNotFound when the code was already consumed or does not exist,
	// which callers treat as a replay signal.
	MarkUsed(ctx context.Context, codeHash string) error

	DeleteExpired(ctx context.Context) (int64, error)
}

// AccessTokenRepository persists opaque access tokens by fingerprint.
type AccessTokenRepository interface {
	Create(ctx context.Context, t *domain.AccessToken) error
	GetByHash(ctx context.Context, tokenHash string) (*domain.AccessToken, error)
	Revoke(ctx context.Context, tokenHash string) error
	RevokeByID(ctx context.Context, id string) error

	// RevokeAllForUserClient revokes every live token issued to the
	// user/client pair. Used on authorization-code replay.
	RevokeAllForUserClient(ctx context.Context, userID, clientID string) (int64, error)

	DeleteExpired(ctx context.Context) (int64, error)
}

// RefreshTokenRepository persists opaque refresh tokens by fingerprint.
type RefreshTokenRepository interface {
	Create(ctx context.Context, t *domain.RefreshToken) error
	GetByHash(ctx context.Context, tokenHash string) (*domain.RefreshToken, error)
	Revoke(ctx context.Context, tokenHash string) error
	RevokeAllForUserClient(ctx context.Context, userID, clientID string) (int64, error)
	DeleteExpired(ctx context.Context) (int64, error)
}
