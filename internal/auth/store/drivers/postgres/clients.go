package postgres

import (
	"context"
	"time"

	"github.com/tidehall/gatekeeper/internal/auth/domain"
)

type clientRepo struct {
	db querier
}

const clientColumns = `id, name, description, secret_hash, redirect_uris, scopes, grant_types,
	confidential, active, owner_id, tenant_id, access_token_ttl, refresh_token_ttl,
	created_at, updated_at`

func (r *clientRepo) Create(ctx context.Context, c *domain.Client) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO clients (`+clientColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		c.ID, c.Name, c.Description, c.SecretHash,
		c.RedirectURIs, c.Scopes, c.GrantTypes,
		c.Confidential, c.Active, c.OwnerID, c.TenantID,
		int64(c.AccessTokenTTL/time.Second), int64(c.RefreshTokenTTL/time.Second),
		c.CreatedAt, c.UpdatedAt,
	)
	return mapErr(err)
}

func (r *clientRepo) Get(ctx context.Context, id string) (*domain.Client, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+clientColumns+` FROM clients WHERE id = $1`, id)
	return scanClient(row)
}

func (r *clientRepo) List(ctx context.Context, tenantID string, limit, offset int) ([]*domain.Client, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.Query(ctx, `
		SELECT `+clientColumns+` FROM clients
		WHERE ($1 = '' OR tenant_id = $1)
		ORDER BY created_at DESC, id
		LIMIT $2 OFFSET $3`,
		tenantID, limit, offset)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []*domain.Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, mapErr(rows.Err())
}

func (r *clientRepo) Update(ctx context.Context, c *domain.Client) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE clients SET
			name = $1, description = $2, redirect_uris = $3, scopes = $4,
			grant_types = $5, active = $6, access_token_ttl = $7,
			refresh_token_ttl = $8, updated_at = $9
		WHERE id = $10`,
		c.Name, c.Description, c.RedirectURIs, c.Scopes,
		c.GrantTypes, c.Active,
		int64(c.AccessTokenTTL/time.Second), int64(c.RefreshTokenTTL/time.Second),
		c.UpdatedAt, c.ID)
	if err != nil {
		return mapErr(err)
	}
	return requireRow(tag)
}

func (r *clientRepo) UpdateSecretHash(ctx context.Context, id, secretHash string) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE clients SET secret_hash = $1, updated_at = now() WHERE id = $2`,
		secretHash, id)
	if err != nil {
		return mapErr(err)
	}
	return requireRow(tag)
}

func (r *clientRepo) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM clients WHERE id = $1`, id)
	if err != nil {
		return mapErr(err)
	}
	return requireRow(tag)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanClient(row scanner) (*domain.Client, error) {
	var (
		c                           domain.Client
		accessTTLSec, refreshTTLSec int64
	)
	err := row.Scan(
		&c.ID, &c.Name, &c.Description, &c.SecretHash,
		&c.RedirectURIs, &c.Scopes, &c.GrantTypes,
		&c.Confidential, &c.Active, &c.OwnerID, &c.TenantID,
		&accessTTLSec, &refreshTTLSec,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, mapErr(err)
	}

	c.AccessTokenTTL = time.Duration(accessTTLSec) * time.Second
	c.RefreshTokenTTL = time.Duration(refreshTTLSec) * time.Second
	return &c, nil
}
