package postgres

import (
	"github.com/jackc/pgx/v5"

	"github.com/tidehall/gatekeeper/internal/auth/store"
)

// tx binds the repositories to one pgx.Tx.
type tx struct {
	tx pgx.Tx
}

func (t *tx) Clients() store.ClientRepository { return &clientRepo{db: t.tx} }
func (t *tx) AuthorizationCodes() store.AuthorizationCodeRepository {
	return &authorizationCodeRepo{db: t.tx}
}
func (t *tx) AccessTokens() store.AccessTokenRepository   { return &accessTokenRepo{db: t.tx} }
func (t *tx) RefreshTokens() store.RefreshTokenRepository { return &refreshTokenRepo{db: t.tx} }
