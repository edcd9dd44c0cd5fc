// Package storage provides ports.SlotStore implementations: SQLite and
// Postgres for durable slots, and an in-process map for the session slot.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"

	"github.com/pressly/goose/v3"
)

// sqlStore is the slot table shared by the SQLite and Postgres stores. The
// two differ only in placeholders and driver setup.
type sqlStore struct {
	db   *sql.DB
	name string

	getQuery    string
	setQuery    string
	deleteQuery string
}

// Get returns the value stored under key, or (nil, nil) when absent.
func (s *sqlStore) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte

	err := s.db.QueryRowContext(ctx, s.getQuery, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("reading slot %q: %w", key, err)
	}

	if value == nil {
		value = []byte{}
	}

	return value, nil
}

// Set upserts value in a single statement.
func (s *sqlStore) Set(ctx context.Context, key string, value []byte) error {
	if value == nil {
		value = []byte{}
	}

	if _, err := s.db.ExecContext(ctx, s.setQuery, key, value); err != nil {
		return fmt.Errorf("writing slot %q: %w", key, err)
	}

	return nil
}

// Delete removes the slot if present.
func (s *sqlStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, s.deleteQuery, key); err != nil {
		return fmt.Errorf("deleting slot %q: %w", key, err)
	}

	return nil
}

// Name implements ports.HealthChecker.
func (s *sqlStore) Name() string {
	return s.name
}

// Check pings the database.
func (s *sqlStore) Check(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close releases the connection pool.
func (s *sqlStore) Close() error {
	return s.db.Close()
}

// migrate applies the embedded schema for dialect.
func migrate(ctx context.Context, db *sql.DB, dialect goose.Dialect, fsys fs.FS, dir string) error {
	sub, err := fs.Sub(fsys, dir)
	if err != nil {
		return fmt.Errorf("locating %s migrations: %w", dir, err)
	}

	provider, err := goose.NewProvider(dialect, db, sub)
	if err != nil {
		return fmt.Errorf("creating migration provider: %w", err)
	}

	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("applying migrations: %w", err)
	}

	return nil
}
