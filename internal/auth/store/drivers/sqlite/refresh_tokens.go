package sqlite

import (
	"context"
	"time"

	"github.com/tidehall/gatekeeper/internal/auth/domain"
)

type refreshTokenRepo struct {
	db dbtx
}

const refreshTokenColumns = `id, client_id, user_id, tenant_id, token_hash, scopes,
	access_token_id, rotation_counter, expires_at, revoked, created_at, updated_at`

func (r *refreshTokenRepo) Create(ctx context.Context, t *domain.RefreshToken) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO refresh_tokens (`+refreshTokenColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.ClientID, t.UserID, t.TenantID, t.TokenHash,
		joinList(t.Scopes), t.AccessTokenID, t.RotationCounter,
		t.ExpiresAt.Unix(), t.Revoked, t.CreatedAt.Unix(), t.UpdatedAt.Unix(),
	)
	return mapErr(err)
}

func (r *refreshTokenRepo) GetByHash(ctx context.Context, tokenHash string) (*domain.RefreshToken, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+refreshTokenColumns+` FROM refresh_tokens WHERE token_hash = ?`, tokenHash)

	var (
		t                  domain.RefreshToken
		scopes             string
		expires, crea, upd int64
	)
	err := row.Scan(
		&t.ID, &t.ClientID, &t.UserID, &t.TenantID, &t.TokenHash,
		&scopes, &t.AccessTokenID, &t.RotationCounter,
		&expires, &t.Revoked, &crea, &upd,
	)
	if err != nil {
		return nil, mapErr(err)
	}

	t.Scopes = splitList(scopes)
	t.ExpiresAt = timeFromUnix(expires)
	t.CreatedAt = timeFromUnix(crea)
	t.UpdatedAt = timeFromUnix(upd)
	return &t, nil
}

func (r *refreshTokenRepo) Revoke(ctx context.Context, tokenHash string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE refresh_tokens SET revoked = 1, updated_at = ?
		WHERE token_hash = ? AND revoked = 0`,
		time.Now().Unix(), tokenHash)
	if err != nil {
		return mapErr(err)
	}
	return requireRow(res)
}

func (r *refreshTokenRepo) RevokeAllForUserClient(ctx context.Context, userID, clientID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE refresh_tokens SET revoked = 1, updated_at = ?
		WHERE user_id = ? AND client_id = ? AND revoked = 0`,
		time.Now().Unix(), userID, clientID)
	if err != nil {
		return 0, mapErr(err)
	}
	return res.RowsAffected()
}

func (r *refreshTokenRepo) DeleteExpired(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM refresh_tokens WHERE expires_at < ?`, time.Now().Unix())
	if err != nil {
		return 0, mapErr(err)
	}
	return res.RowsAffected()
}
