// Package store is the Postgres persistence for accounts, adjustments, top-ups,
// processed provider events and usage logs.
package store

import (
	"context"
	"database/sql"
	"errors"

	"robohire-billing/internal/common/database"
)

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("store: not found")
	// ErrGuardFailed is returned when a guarded UPDATE matches no row.
	ErrGuardFailed = errors.New("store: guarded update matched no rows")
)

// Queries runs statements against a connection or a transaction.
type Queries struct {
	db database.DBTX
}

func NewQueries(db database.DBTX) *Queries {
	return &Queries{db: db}
}

// Store owns the connection pool and starts transactions.
type Store struct {
	*Queries
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{Queries: NewQueries(db), db: db}
}

// WithTx runs fn with Queries bound to a single transaction.
func (s *Store) WithTx(ctx context.Context, fn func(q *Queries) error) error {
	return database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		return fn(NewQueries(tx))
	})
}

// DB exposes the pool for read-only reporting queries.
func (s *Store) DB() *sql.DB {
	return s.db
}

func guard(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrGuardFailed
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}
