// Package kv provides JSON key-value buckets persisted in SQLite.
package kv

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// SQLiteBucket is a persistent bucket backed by SQLite.
type SQLiteBucket struct {
	db   *sql.DB
	name string
}

// NewSQLiteBucket creates a new SQLite-backed bucket.
func NewSQLiteBucket(db *sql.DB, name string) *SQLiteBucket {
	return &SQLiteBucket{
		db:   db,
		name: name,
	}
}

// Name returns the bucket name.
func (b *SQLiteBucket) Name() string {
	return b.name
}

// Put saves value as JSON under key.
func (b *SQLiteBucket) Put(key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}

	now := time.Now().UTC().Unix()
	_, err = b.db.Exec(`
		INSERT INTO kv_store (bucket, key, value, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(bucket, key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at
	`, b.name, key, string(data), now, now)
	if err != nil {
		return fmt.Errorf("failed to store value: %w", err)
	}

	return nil
}

// Get decodes the value stored under key into out.
// It reports false if the key does not exist.
func (b *SQLiteBucket) Get(key string, out any) (bool, error) {
	var valueStr string
	err := b.db.QueryRow(`
		SELECT value FROM kv_store
		WHERE bucket = ? AND key = ?
	`, b.name, key).Scan(&valueStr)

	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get value: %w", err)
	}

	if err := json.Unmarshal([]byte(valueStr), out); err != nil {
		return false, fmt.Errorf("failed to unmarshal value: %w", err)
	}
	return true, nil
}

// Delete removes a key from the bucket.
// Returns true if the key existed.
func (b *SQLiteBucket) Delete(key string) (bool, error) {
	result, err := b.db.Exec(`
		DELETE FROM kv_store WHERE bucket = ? AND key = ?
	`, b.name, key)
	if err != nil {
		return false, fmt.Errorf("failed to delete key: %w", err)
	}

	affected, _ := result.RowsAffected()
	return affected > 0, nil
}

// Keys returns all keys in the bucket, sorted.
func (b *SQLiteBucket) Keys() ([]string, error) {
	rows, err := b.db.Query(`
		SELECT key FROM kv_store
		WHERE bucket = ?
		ORDER BY key
	`, b.name)
	if err != nil {
		return nil, fmt.Errorf("failed to list keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("failed to scan key: %w", err)
		}
		keys = append(keys, key)
	}

	return keys, rows.Err()
}
