package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver
	"github.com/pressly/goose/v3"

	"github.com/jsamuelsen/quote-keeper/internal/adapters/storage/migrations"
)

// PostgresStore keeps slots in a Postgres table, for deployments where
// several service instances share one collection.
type PostgresStore struct {
	sqlStore
}

// PoolConfig bounds the Postgres connection pool.
type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// OpenPostgres connects with dsn, verifies the connection and migrates.
func OpenPostgres(ctx context.Context, dsn string, pool PoolConfig) (*PostgresStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening postgres: %w", err)
	}

	if pool.MaxOpenConns > 0 {
		db.SetMaxOpenConns(pool.MaxOpenConns)
	}

	if pool.MaxIdleConns > 0 {
		db.SetMaxIdleConns(pool.MaxIdleConns)
	}

	if pool.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(pool.ConnMaxLifetime)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}

	if err := migrate(ctx, db, goose.DialectPostgres, migrations.Postgres, "postgres"); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &PostgresStore{sqlStore{
		db:          db,
		name:        "postgres",
		getQuery:    `SELECT value FROM slots WHERE key = $1`,
		setQuery:    `INSERT INTO slots (key, value, updated_at) VALUES ($1, $2, now()) ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`,
		deleteQuery: `DELETE FROM slots WHERE key = $1`,
	}}, nil
}
