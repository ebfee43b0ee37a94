package sqlite

import (
	"database/sql"

	"github.com/tidehall/gatekeeper/internal/auth/store"
)

// tx binds the repositories to one *sql.Tx.
type tx struct {
	tx *sql.Tx
}

func (t *tx) Clients() store.ClientRepository { return &clientRepo{db: t.tx} }
func (t *tx) AuthorizationCodes() store.AuthorizationCodeRepository {
	return &authorizationCodeRepo{db: t.tx}
}
func (t *tx) AccessTokens() store.AccessTokenRepository   { return &accessTokenRepo{db: t.tx} }
func (t *tx) RefreshTokens() store.RefreshTokenRepository { return &refreshTokenRepo{db: t.tx} }
