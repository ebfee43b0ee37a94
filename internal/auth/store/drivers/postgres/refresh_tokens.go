package postgres

import (
	"context"

	"github.com/tidehall/gatekeeper/internal/auth/domain"
)

type refreshTokenRepo struct {
	db querier
}

const refreshTokenColumns = `id, client_id, user_id, tenant_id, token_hash, scopes,
	access_token_id, rotation_counter, expires_at, revoked, created_at, updated_at`

func (r *refreshTokenRepo) Create(ctx context.Context, t *domain.RefreshToken) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO refresh_tokens (`+refreshTokenColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		t.ID, t.ClientID, t.UserID, t.TenantID, t.TokenHash,
		t.Scopes, t.AccessTokenID, t.RotationCounter,
		t.ExpiresAt, t.Revoked, t.CreatedAt, t.UpdatedAt,
	)
	return mapErr(err)
}

func (r *refreshTokenRepo) GetByHash(ctx context.Context, tokenHash string) (*domain.RefreshToken, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+refreshTokenColumns+` FROM refresh_tokens WHERE token_hash = $1`, tokenHash)

	var t domain.RefreshToken
	err := row.Scan(
		&t.ID, &t.ClientID, &t.UserID, &t.TenantID, &t.TokenHash,
		&t.Scopes, &t.AccessTokenID, &t.RotationCounter,
		&t.ExpiresAt, &t.Revoked, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, mapErr(err)
	}
	return &t, nil
}

func (r *refreshTokenRepo) Revoke(ctx context.Context, tokenHash string) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE refresh_tokens SET revoked = TRUE, updated_at = now()
		WHERE token_hash = $1 AND NOT revoked`, tokenHash)
	if err != nil {
		return mapErr(err)
	}
	return requireRow(tag)
}

func (r *refreshTokenRepo) RevokeAllForUserClient(ctx context.Context, userID, clientID string) (int64, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE refresh_tokens SET revoked = TRUE, updated_at = now()
		WHERE user_id = $1 AND client_id = $2 AND NOT revoked`,
		userID, clientID)
	if err != nil {
		return 0, mapErr(err)
	}
	return tag.RowsAffected(), nil
}

func (r *refreshTokenRepo) DeleteExpired(ctx context.Context) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM refresh_tokens WHERE expires_at < now()`)
	if err != nil {
		return 0, mapErr(err)
	}
	return tag.RowsAffected(), nil
}
