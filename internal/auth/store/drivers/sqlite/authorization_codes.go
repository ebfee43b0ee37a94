package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/tidehall/gatekeeper/internal/auth/domain"
)

type authorizationCodeRepo struct {
	db dbtx
}

const authorizationCodeColumns = `id, client_id, user_id, tenant_id, code_hash, redirect_uri,
	scopes, state, code_challenge, code_challenge_method, expires_at, used_at, created_at`

func (r *authorizationCodeRepo) Create(ctx context.Context, c *domain.AuthorizationCode) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO authorization_codes (`+authorizationCodeColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.ClientID, c.UserID, c.TenantID, c.CodeHash, c.RedirectURI,
		joinList(c.Scopes), c.State, c.CodeChallenge, c.CodeChallengeMethod,
		c.ExpiresAt.Unix(), nullableUnix(c.UsedAt), c.CreatedAt.Unix(),
	)
	return mapErr(err)
}

func (r *authorizationCodeRepo) GetByHash(ctx context.Context, codeHash string) (*domain.AuthorizationCode, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+authorizationCodeColumns+`
		FROM authorization_codes WHERE code_hash = ?`, codeHash)

	var (
		c             domain.AuthorizationCode
		scopes        string
		expiresAt     int64
		usedAt        sql.NullInt64
		createdAtUnix int64
	)
	err := row.Scan(
		&c.ID, &c.ClientID, &c.UserID, &c.TenantID, &c.CodeHash, &c.RedirectURI,
		&scopes, &c.State, &c.CodeChallenge, &c.CodeChallengeMethod,
		&expiresAt, &usedAt, &createdAtUnix,
	)
	if err != nil {
		return nil, mapErr(err)
	}

	c.Scopes = splitList(scopes)
	c.ExpiresAt = timeFromUnix(expiresAt)
	c.UsedAt = timePtrFromNull(usedAt)
	c.CreatedAt = timeFromUnix(createdAtUnix)
	return &c, nil
}

// MarkUsed is the single-use gate: the WHERE used_at IS NULL clause makes the
// stamp a compare-and-set, so exactly one concurrent exchange can win.
func (r *authorizationCodeRepo) MarkUsed(ctx context.Context, codeHash string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE authorization_codes SET used_at = ?
		WHERE code_hash = ? AND used_at IS NULL`,
		time.Now().Unix(), codeHash)
	if err != nil {
		return mapErr(err)
	}
	return requireRow(res)
}

func (r *authorizationCodeRepo) DeleteExpired(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM authorization_codes WHERE expires_at < ?`, time.Now().Unix())
	if err != nil {
		return 0, mapErr(err)
	}
	return res.RowsAffected()
}
