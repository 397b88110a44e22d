// Package postgres provides the durable ResourceStore so submission
// records survive process restarts.
package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/finbridge/ledger-rest/internal/config"
	"github.com/jackc/pgx/v5/pgxpool"
)

func Connect(ctx context.Context, cfg *config.DatabaseConfig, logger *slog.Logger) (*pgxpool.Pool, error) {
	dsn := fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Name, cfg.SSLMode,
	)

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("connected to database", "host", cfg.Host, "name", cfg.Name)
	return pool, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS client_resources (
	account            TEXT        NOT NULL,
	client_resource_id TEXT        NOT NULL,
	state              TEXT        NOT NULL,
	tx_hash            TEXT        NOT NULL DEFAULT '',
	sequence           BIGINT      NOT NULL DEFAULT 0,
	last_ledger        BIGINT      NOT NULL DEFAULT 0,
	engine_result      TEXT        NOT NULL DEFAULT '',
	last_error         TEXT        NOT NULL DEFAULT '',
	submitted_ledger   BIGINT      NOT NULL DEFAULT 0,
	validated_ledger   BIGINT      NOT NULL DEFAULT 0,
	first_attempt_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
	lease_token        TEXT,
	lease_expires_at   TIMESTAMPTZ,
	PRIMARY KEY (account, client_resource_id)
);
CREATE INDEX IF NOT EXISTS idx_client_resources_state
	ON client_resources (state, first_attempt_at);
`

// InitSchema creates the record table when it does not exist yet.
func InitSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}
