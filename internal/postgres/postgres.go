// Package postgres manages the PostgreSQL connection pool and schema.
package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/avolkov/shortlink/internal/config"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id UUID PRIMARY KEY,
	username TEXT NOT NULL,
	hashed_password TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	CONSTRAINT users_username_key UNIQUE (username)
);

CREATE TABLE IF NOT EXISTS links (
	id UUID PRIMARY KEY,
	short_code TEXT NOT NULL,
	original_url TEXT NOT NULL,
	owner_id UUID REFERENCES users (id) ON DELETE CASCADE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	last_accessed TIMESTAMPTZ NOT NULL DEFAULT now(),
	expires_at TIMESTAMPTZ,
	click_count BIGINT NOT NULL DEFAULT 0,
	CONSTRAINT links_short_code_key UNIQUE (short_code)
);

CREATE INDEX IF NOT EXISTS links_guest_last_accessed_idx
	ON links (last_accessed) WHERE owner_id IS NULL;

CREATE INDEX IF NOT EXISTS links_expires_at_idx
	ON links (expires_at) WHERE expires_at IS NOT NULL;

CREATE INDEX IF NOT EXISTS links_owner_id_idx
	ON links (owner_id) WHERE owner_id IS NOT NULL;
`

// Connect establishes a connection pool to the PostgreSQL database.
func Connect(ctx context.Context, cfg *config.DatabaseConfig, logger *slog.Logger) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	poolConfig.MaxConns = cfg.MaxConns
	poolConfig.MinConns = cfg.MinConns

	logger.Info("connecting to database",
		"host", cfg.Host,
		"port", cfg.Port,
		"database", cfg.Name,
	)

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("database connection established")

	return pool, nil
}

// Migrate creates the schema if it does not already exist. Statements are
// idempotent so running it on every boot is safe.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}
