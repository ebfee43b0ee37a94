package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/tidehall/gatekeeper/internal/auth/domain"
	"github.com/tidehall/gatekeeper/internal/auth/store"
)

type clientRepo struct {
	db dbtx
}

const clientColumns = `id, name, description, secret_hash, redirect_uris, scopes, grant_types,
	confidential, active, owner_id, tenant_id, access_token_ttl, refresh_token_ttl,
	created_at, updated_at`

func (r *clientRepo) Create(ctx context.Context, c *domain.Client) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO clients (`+clientColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Name, c.Description, c.SecretHash,
		joinList(c.RedirectURIs), joinList(c.Scopes), joinList(c.GrantTypes),
		c.Confidential, c.Active, c.OwnerID, c.TenantID,
		int64(c.AccessTokenTTL/time.Second), int64(c.RefreshTokenTTL/time.Second),
		c.CreatedAt.Unix(), c.UpdatedAt.Unix(),
	)
	return mapErr(err)
}

func (r *clientRepo) Get(ctx context.Context, id string) (*domain.Client, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+clientColumns+` FROM clients WHERE id = ?`, id)
	return scanClient(row)
}

func (r *clientRepo) List(ctx context.Context, tenantID string, limit, offset int) ([]*domain.Client, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+clientColumns+` FROM clients
		WHERE (? = '' OR tenant_id = ?)
		ORDER BY created_at DESC, id
		LIMIT ? OFFSET ?`,
		tenantID, tenantID, limit, offset)
	if err != nil {
		return nil, mapErr(err)
	}
	defer func() { _ = rows.Close() }()

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
	res, err := r.db.ExecContext(ctx, `
		UPDATE clients SET
			name = ?, description = ?, redirect_uris = ?, scopes = ?,
			grant_types = ?, active = ?, access_token_ttl = ?,
			refresh_token_ttl = ?, updated_at = ?
		WHERE id = ?`,
		c.Name, c.Description, joinList(c.RedirectURIs), joinList(c.Scopes),
		joinList(c.GrantTypes), c.Active,
		int64(c.AccessTokenTTL/time.Second), int64(c.RefreshTokenTTL/time.Second),
		c.UpdatedAt.Unix(), c.ID)
	if err != nil {
		return mapErr(err)
	}
	return requireRow(res)
}

func (r *clientRepo) UpdateSecretHash(ctx context.Context, id, secretHash string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE clients SET secret_hash = ?, updated_at = ? WHERE id = ?`,
		secretHash, time.Now().Unix(), id)
	if err != nil {
		return mapErr(err)
	}
	return requireRow(res)
}

func (r *clientRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM clients WHERE id = ?`, id)
	if err != nil {
		return mapErr(err)
	}
	return requireRow(res)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanClient(row scanner) (*domain.Client, error) {
	var (
		c                            domain.Client
		redirects, scopes, grants    string
		accessTTLSec, refreshTTLSec  int64
		createdAtUnix, updatedAtUnix int64
	)
	err := row.Scan(
		&c.ID, &c.Name, &c.Description, &c.SecretHash,
		&redirects, &scopes, &grants,
		&c.Confidential, &c.Active, &c.OwnerID, &c.TenantID,
		&accessTTLSec, &refreshTTLSec,
		&createdAtUnix, &updatedAtUnix,
	)
	if err != nil {
		return nil, mapErr(err)
	}

	c.RedirectURIs = splitList(redirects)
	c.Scopes = splitList(scopes)
	c.GrantTypes = splitList(grants)
	c.AccessTokenTTL = time.Duration(accessTTLSec) * time.Second
	c.RefreshTokenTTL = time.Duration(refreshTTLSec) * time.Second
	c.CreatedAt = timeFromUnix(createdAtUnix)
	c.UpdatedAt = timeFromUnix(updatedAtUnix)
	return &c, nil
}

// requireRow converts a zero-row update or delete into ErrNotFound.
func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}
