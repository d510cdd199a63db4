package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/user/ghevents/internal/config"
)

// Database wraps the sqlx.DB connection.
type Database struct {
	*sqlx.DB
}

// schemaPostgres defines the events table for the production store.
const schemaPostgres = `
CREATE TABLE IF NOT EXISTS events (
    id BIGSERIAL PRIMARY KEY,
    event_id BIGINT NOT NULL UNIQUE,
    event_type TEXT NOT NULL,
    actor_id BIGINT NOT NULL,
    repository_id BIGINT NOT NULL,
    repository_name TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL,
    action TEXT NOT NULL,
    inserted_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_events_event_type ON events(event_type);
CREATE INDEX IF NOT EXISTS idx_events_action ON events(action);
`

// schemaSQLite mirrors the postgres schema for local runs and tests.
const schemaSQLite = `
CREATE TABLE IF NOT EXISTS events (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    event_id INTEGER NOT NULL UNIQUE,
    event_type TEXT NOT NULL,
    actor_id INTEGER NOT NULL,
    repository_id INTEGER NOT NULL,
    repository_name TEXT NOT NULL,
    created_at DATETIME NOT NULL,
    action TEXT NOT NULL,
    inserted_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_events_event_type ON events(event_type);
CREATE INDEX IF NOT EXISTS idx_events_action ON events(action);
`

// NewDatabase opens a connection pool and initializes the schema.
func NewDatabase(cfg config.DatabaseConfig) (*Database, error) {
	if cfg.Driver == "sqlite3" {
		// Ensure directory exists
		if dir := filepath.Dir(cfg.Path); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
	}

	db, err := sqlx.Open(cfg.Driver, cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.PoolRecycle > 0 {
		db.SetConnMaxLifetime(time.Duration(cfg.PoolRecycle) * time.Second)
	}

	if cfg.PoolPrePing {
		if err := db.Ping(); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to ping database: %w", err)
		}
	}

	schema := schemaPostgres
	if cfg.Driver == "sqlite3" {
		schema = schemaSQLite
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &Database{DB: db}, nil
}

// Close closes the database connection.
func (d *Database) Close() error {
	return d.DB.Close()
}
