package postgres

import (
	"context"

	"github.com/tidehall/gatekeeper/internal/auth/domain"
)

type accessTokenRepo struct {
	db querier
}

const accessTokenColumns = `id, client_id, user_id, tenant_id, token_hash, scopes, grant_type,
	expires_at, revoked, created_at, updated_at`

func (r *accessTokenRepo) Create(ctx context.Context, t *domain.AccessToken) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO access_tokens (`+accessTokenColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		t.ID, t.ClientID, t.UserID, t.TenantID, t.TokenHash,
		t.Scopes, t.GrantType,
		t.ExpiresAt, t.Revoked, t.CreatedAt, t.UpdatedAt,
	)
	return mapErr(err)
}

func (r *accessTokenRepo) GetByHash(ctx context.Context, tokenHash string) (*domain.AccessToken, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+accessTokenColumns+` FROM access_tokens WHERE token_hash = $1`, tokenHash)

	var t domain.AccessToken
	err := row.Scan(
		&t.ID, &t.ClientID, &t.UserID, &t.TenantID, &t.TokenHash,
		&t.Scopes, &t.GrantType,
		&t.ExpiresAt, &t.Revoked, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, mapErr(err)
	}
	return &t, nil
}

func (r *accessTokenRepo) Revoke(ctx context.Context, tokenHash string) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE access_tokens SET revoked = TRUE, updated_at = now()
		WHERE token_hash = $1 AND NOT revoked`, tokenHash)
	if err != nil {
		return mapErr(err)
	}
	return requireRow(tag)
}

func (r *accessTokenRepo) RevokeByID(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE access_tokens SET revoked = TRUE, updated_at = now()
		WHERE id = $1 AND NOT revoked`, id)
	if err != nil {
		return mapErr(err)
	}
	return requireRow(tag)
}

func (r *accessTokenRepo) RevokeAllForUserClient(ctx context.Context, userID, clientID string) (int64, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE access_tokens SET revoked = TRUE, updated_at = now()
		WHERE user_id = $1 AND client_id = $2 AND NOT revoked`,
		userID, clientID)
	if err != nil {
		return 0, mapErr(err)
	}
	return tag.RowsAffected(), nil
}

func (r *accessTokenRepo) DeleteExpired(ctx context.Context) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM access_tokens WHERE expires_at < now()`)
	if err != nil {
		return 0, mapErr(err)
	}
	return tag.RowsAffected(), nil
}
