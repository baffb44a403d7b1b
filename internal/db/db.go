package db

import (
	"context"
	"ctchen222/Adaptive-Tic-Tac-Toe/internal/config"
	"fmt"
	"log/slog"

	_ "github.com/glebarez/go-sqlite"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// driverName maps a stats backend onto its database/sql driver.
func driverName(backend string) (string, error) {
	switch backend {
	case config.StatsBackendSQLite:
		return "sqlite", nil
	case config.StatsBackendPostgres:
		return "postgres", nil
	default:
		return "", fmt.Errorf("stats backend %q has no SQL driver", backend)
	}
}

// Connect opens and pings the SQL database for the configured stats backend.
func Connect(ctx context.Context, backend, dsn string) (*sqlx.DB, error) {
	driver, err := driverName(backend)
	if err != nil {
		return nil, err
	}

	pool, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database connection: %w", driver, err)
	}
	if driver == "sqlite" {
		// sqlite serializes writers anyway; a single connection also keeps
		// ":memory:" databases shared.
		pool.SetMaxOpenConns(1)
	}
	if err := pool.PingContext(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping %s database: %w", driver, err)
	}

	slog.InfoContext(ctx, "Connected to stats database", "db.driver", driver)
	return pool, nil
}

// InitializeSchema creates the stats table if it doesn't exist.
func InitializeSchema(ctx context.Context, db *sqlx.DB) error {
	statsSchema := `
	CREATE TABLE IF NOT EXISTS game_stats (
		stats_key TEXT PRIMARY KEY,
		x_wins BIGINT NOT NULL DEFAULT 0,
		o_wins BIGINT NOT NULL DEFAULT 0,
		draws BIGINT NOT NULL DEFAULT 0
	);`

	if _, err := db.ExecContext(ctx, statsSchema); err != nil {
		return fmt.Errorf("failed to create game_stats table: %w", err)
	}

	slog.InfoContext(ctx, "DB schema verified.")
	return nil
}
