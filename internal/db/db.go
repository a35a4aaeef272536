// Package db provides the SQLite connection and schema for huedash.
package db

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// DB wraps the SQLite database connection
type DB struct {
	*sql.DB
}

// Open opens the database and initializes the schema
func Open(dbPath string) (*DB, error) {
	dsn := dbPath + "?_journal_mode=WAL"
	if dbPath == ":memory:" {
		dsn = dbPath
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &DB{db}, nil
}

// initSchema creates all required tables
func initSchema(db *sql.DB) error {
	// Command ledger - append-only history of writes sent to the bridge and Spotify
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS command_ledger (
			id TEXT PRIMARY KEY,
			event_type TEXT NOT NULL,
			timestamp INTEGER NOT NULL,
			source TEXT NOT NULL,
			target TEXT NOT NULL,
			payload TEXT,
			error TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_command_ledger_ts ON command_ledger(timestamp);
		CREATE INDEX IF NOT EXISTS idx_command_ledger_type_ts ON command_ledger(event_type, timestamp);
	`)
	if err != nil {
		return fmt.Errorf("failed to create command_ledger table: %w", err)
	}

	// KV store - JSON values grouped by bucket
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS kv_store (
			bucket TEXT NOT NULL,
			key TEXT NOT NULL,
			value TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL,
			PRIMARY KEY (bucket, key)
		);
		CREATE INDEX IF NOT EXISTS idx_kv_bucket ON kv_store(bucket);
	`)
	if err != nil {
		return fmt.Errorf("failed to create kv_store table: %w", err)
	}

	return nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.DB.Close()
}
