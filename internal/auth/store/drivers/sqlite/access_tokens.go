package sqlite

import (
	"context"
	"time"

	"github.com/tidehall/gatekeeper/internal/auth/domain"
)

type accessTokenRepo struct {
	db dbtx
}

const accessTokenColumns = `id, client_id, user_id, tenant_id, token_hash, scopes, grant_type,
	expires_at, revoked, created_at, updated_at`

func (r *accessTokenRepo) Create(ctx context.Context, t *domain.AccessToken) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO access_tokens (`+accessTokenColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.ClientID, t.UserID, t.TenantID, t.TokenHash,
		joinList(t.Scopes), t.GrantType,
		t.ExpiresAt.Unix(), t.Revoked, t.CreatedAt.Unix(), t.UpdatedAt.Unix(),
	)
	return mapErr(err)
}

func (r *accessTokenRepo) GetByHash(ctx context.Context, tokenHash string) (*domain.AccessToken, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+accessTokenColumns+` FROM access_tokens WHERE token_hash = ?`, tokenHash)

	var (
		t                  domain.AccessToken
		scopes             string
		expires, crea, upd int64
	)
	err := row.Scan(
		&t.ID, &t.ClientID, &t.UserID, &t.TenantID, &t.TokenHash,
		&scopes, &t.GrantType, &expires, &t.Revoked, &crea, &upd,
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

func (r *accessTokenRepo) Revoke(ctx context.Context, tokenHash string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE access_tokens SET revoked = 1, updated_at = ?
		WHERE token_hash = ? AND revoked = 0`,
		time.Now().Unix(), tokenHash)
	if err != nil {
		return mapErr(err)
	}
	return requireRow(res)
}

func (r *accessTokenRepo) RevokeByID(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE access_tokens SET revoked = 1, updated_at = ?
		WHERE id = ? AND revoked = 0`,
		time.Now().Unix(), id)
	if err != nil {
		return mapErr(err)
	}
	return requireRow(res)
}

func (r *accessTokenRepo) RevokeAllForUserClient(ctx context.Context, userID, clientID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE access_tokens SET revoked = 1, updated_at = ?
		WHERE user_id = ? AND client_id = ? AND revoked = 0`,
		time.Now().Unix(), userID, clientID)
	if err != nil {
		return 0, mapErr(err)
	}
	return res.RowsAffected()
}

func (r *accessTokenRepo) DeleteExpired(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM access_tokens WHERE expires_at < ?`, time.Now().Unix())
	if err != nil {
		return 0, mapErr(err)
	}
	return res.RowsAffected()
}
