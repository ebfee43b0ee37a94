// Package sqlite implements store.Store on modernc.org/sqlite, a pure-Go
// SQLite driver. It is the default backing store for single-node deployments
// and for tests, which run against ":memory:".
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/tidehall/gatekeeper/internal/auth/store"
)

// dbtx is the subset of database/sql shared by *sql.DB and *sql.Tx, so the
// repositories can run inside or outside a transaction unchanged.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store implements store.Store against SQLite.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at dsn and applies pending
// migrations. Use ":memory:" for an ephemeral database.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %q: %w", dsn, err)
	}

	// SQLite serializes writers anyway; a single connection avoids
	// table-lock errors under concurrency and keeps ":memory:" coherent.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: enable foreign keys: %w", err)
	}

	if err := applyMigrations(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Clients() store.ClientRepository { return &clientRepo{db: s.db} }
func (s *Store) AuthorizationCodes() store.AuthorizationCodeRepository {
	return &authorizationCodeRepo{db: s.db}
}
func (s *Store) AccessTokens() store.AccessTokenRepository   { return &accessTokenRepo{db: s.db} }
func (s *Store) RefreshTokens() store.RefreshTokenRepository { return &refreshTokenRepo{db: s.db} }

// WithTx runs fn inside a single transaction, committing on nil and rolling
// back on error or panic.
func (s *Store) WithTx(ctx context.Context, fn func(tx store.Tx) error) (err error) {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin tx: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = sqlTx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = sqlTx.Rollback()
			return
		}
		err = sqlTx.Commit()
	}()

	return fn(&tx{tx: sqlTx})
}

func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *Store) Close() error { return s.db.Close() }

// mapErr translates driver errors into store sentinels.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return store.ErrAlreadyExists
		}
	}
	return err
}

// joinList and splitList encode string slices as a single space-delimited
// column. Scope and grant-type values never contain spaces; redirect URIs
// are URL-encoded so they don't either.
func joinList(v []string) string { return strings.Join(v, " ") }

func splitList(v string) []string {
	if v == "" {
		return nil
	}
	return strings.Fields(v)
}

func timeFromUnix(v int64) time.Time {
	if v == 0 {
		return time.Time{}
	}
	return time.Unix(v, 0).UTC()
}

func nullableUnix(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Unix()
}

func timePtrFromNull(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.Unix(v.Int64, 0).UTC()
	return &t
}
