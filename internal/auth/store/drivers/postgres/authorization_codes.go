package postgres

import (
	"context"

	"github.com/tidehall/gatekeeper/internal/auth/domain"
)

type authorizationCodeRepo struct {
	db querier
}

const authorizationCodeColumns = `id, client_id, user_id, tenant_id, code_hash, redirect_uri,
	scopes, state, code_challenge, code_challenge_method, expires_at, used_at, created_at`

func (r *authorizationCodeRepo) Create(ctx context.Context, c *domain.AuthorizationCode) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO authorization_codes (`+authorizationCodeColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		c.ID, c.ClientID, c.UserID, c.TenantID, c.CodeHash, c.RedirectURI,
		c.Scopes, c.State, c.CodeChallenge, c.CodeChallengeMethod,
		c.ExpiresAt, c.UsedAt, c.CreatedAt,
	)
	return mapErr(err)
}

func (r *authorizationCodeRepo) GetByHash(ctx context.Context, codeHash string) (*domain.AuthorizationCode, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+authorizationCodeColumns+`
		FROM authorization_codes WHERE code_hash = $1`, codeHash)

	var c domain.AuthorizationCode
	err := row.Scan(
		&c.ID, &c.ClientID, &c.UserID, &c.TenantID, &c.CodeHash, &c.RedirectURI,
		&c.Scopes, &c.State, &c.CodeChallenge, &c.CodeChallengeMethod,
		&c.ExpiresAt, &c.UsedAt, &c.CreatedAt,
	)
	if err != nil {
		return nil, mapErr(err)
	}
	return &c, nil
}

// MarkUsed is the single-use gate: the WHERE used_at IS NULL clause makes the
// stamp a compare-and-set, so exactly one concurrent exchange can win.
func (r *authorizationCodeRepo) MarkUsed(ctx context.Context, codeHash string) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE authorization_codes SET used_at = now()
		WHERE code_hash = $1 AND used_at IS NULL`, codeHash)
	if err != nil {
		return mapErr(err)
	}
	return requireRow(tag)
}

func (r *authorizationCodeRepo) DeleteExpired(ctx context.Context) (int64, error) {
	tag, err := r.db.Exec(ctx, `
		DELETE FROM authorization_codes WHERE expires_at < now()`)
	if err != nil {
		return 0, mapErr(err)
	}
	return tag.RowsAffected(), nil
}
