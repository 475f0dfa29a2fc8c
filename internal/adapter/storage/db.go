// Package storage persists readings and cluster snapshots in SQL, on SQLite by
// default or PostgreSQL.
package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/couchcryptid/aq-forecast-service/internal/config"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Open connects to the database and verifies connectivity.
func Open(ctx context.Context, driver, dsn string) (*sqlx.DB, error) {
	if driver == config.DriverSQLite {
		var err error
		if dsn, err = sqliteDSN(dsn); err != nil {
			return nil, err
		}
	}

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("db open: %w", err)
	}
	if driver == config.DriverSQLite {
		// A single writer avoids "database is locked"; for :memory: it also keeps
		// every query on the one connection that holds the database.
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

// sqliteDSN turns a plain file path into a DSN with WAL and a busy timeout.
// DSNs that already use the file: scheme, and :memory:, are passed through.
func sqliteDSN(dsn string) (string, error) {
	if dsn == ":memory:" || strings.HasPrefix(dsn, "file:") {
		return dsn, nil
	}
	if dir := filepath.Dir(dsn); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}
	params := []string{
		"_foreign_keys=on",
		"_busy_timeout=5000",
		"_journal_mode=WAL",
	}
	return fmt.Sprintf("file:%s?%s", dsn, strings.Join(params, "&")), nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS readings (
		city      TEXT NOT NULL,
		ts        TEXT NOT NULL,
		pollutant TEXT NOT NULL,
		value     DOUBLE PRECISION,
		PRIMARY KEY (city, ts, pollutant)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_readings_ts ON readings(ts)`,
	`CREATE TABLE IF NOT EXISTS cluster_runs (
		run_id       TEXT PRIMARY KEY,
		generated_at TEXT NOT NULL,
		seed         TEXT NOT NULL,
		inertia      DOUBLE PRECISION NOT NULL,
		pollutants   TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS cluster_assignments (
		run_id   TEXT NOT NULL REFERENCES cluster_runs(run_id) ON DELETE CASCADE,
		city     TEXT NOT NULL,
		tier     TEXT NOT NULL,
		rank     INTEGER NOT NULL,
		distance DOUBLE PRECISION NOT NULL,
		level    DOUBLE PRECISION NOT NULL,
		PRIMARY KEY (run_id, city)
	)`,
}

// Migrate creates the tables if they do not exist.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
