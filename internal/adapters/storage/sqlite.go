package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/jsamuelsen/quote-keeper/internal/adapters/storage/migrations"
)

// SQLiteStore keeps slots in a local SQLite file.
type SQLiteStore struct {
	sqlStore
}

// OpenSQLite opens (creating if needed) the database at path and migrates it.
// Use ":memory:" for a throwaway store.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite %q: %w", path, err)
	}

	// One writer at a time; this also keeps ":memory:" on a single database.
	db.SetMaxOpenConns(1)

	if path != ":memory:" {
		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("enabling WAL: %w", err)
		}
	}

	if err := migrate(ctx, db, goose.DialectSQLite3, migrations.SQLite, "sqlite"); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &SQLiteStore{sqlStore{
		db:          db,
		name:        "sqlite",
		getQuery:    `SELECT value FROM slots WHERE key = ?`,
		setQuery:    `INSERT INTO slots (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP) ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		deleteQuery: `DELETE FROM slots WHERE key = ?`,
	}}, nil
}
