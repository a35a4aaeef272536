// Package ledger provides an append-only history of commands sent to the
// Hue bridge and the Spotify API.
package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// EventType represents the type of event in the ledger
type EventType string

const (
	EventCommandSent   EventType = "command_sent"
	EventCommandFailed EventType = "command_failed"
)

// Entry represents a single command in the ledger
type Entry struct {
	ID        string         `json:"id"`
	EventType EventType      `json:"event_type"`
	Timestamp time.Time      `json:"timestamp"`
	Source    string         `json:"source"`
	Target    string         `json:"target"`
	Payload   map[string]any `json:"payload,omitempty"`
	Error     string         `json:"error,omitempty"`
}

// Ledger provides append-only command logging
type Ledger struct {
	db  *sql.DB
	now func() time.Time
}

// New creates a new Ledger using the provided database connection
func New(db *sql.DB) *Ledger {
	return &Ledger{db: db, now: time.Now}
}

// Append adds a new entry and returns its ID.
func (l *Ledger) Append(eventType EventType, source, target string, payload map[string]any, errMsg string) (string, error) {
	var payloadJSON []byte
	var err error

	if payload != nil {
		payloadJSON, err = json.Marshal(payload)
		if err != nil {
			return "", fmt.Errorf("failed to marshal payload: %w", err)
		}
	}

	id := uuid.NewString()
	_, err = l.db.Exec(
		`INSERT INTO command_ledger (id, event_type, timestamp, source, target, payload, error) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, string(eventType), l.now().UTC().UnixMilli(), source, target, string(payloadJSON), errMsg,
	)
	if err != nil {
		return "", fmt.Errorf("failed to append ledger entry: %w", err)
	}
	return id, nil
}

// CommandSent records a successful command. Failures to record are logged.
func (l *Ledger) CommandSent(source, target string, payload map[string]any) {
	if _, err := l.Append(EventCommandSent, source, target, payload, ""); err != nil {
		log.Error().Err(err).Str("target", target).Msg("Failed to record command")
	}
}

// CommandFailed records a failed command. Failures to record are logged.
func (l *Ledger) CommandFailed(source, target string, payload map[string]any, cmdErr error) {
	msg := ""
	if cmdErr != nil {
		msg = cmdErr.Error()
	}
	if _, err := l.Append(EventCommandFailed, source, target, payload, msg); err != nil {
		log.Error().Err(err).Str("target", target).Msg("Failed to record command failure")
	}
}

// Recent returns the newest entries first.
func (l *Ledger) Recent(limit int) ([]*Entry, error) {
	rows, err := l.db.Query(`
		SELECT id, event_type, timestamp, source, target, payload, error
		FROM command_ledger
		ORDER BY timestamp DESC, rowid DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return l.scanEntries(rows)
}

// GetByType returns entries filtered by event type
func (l *Ledger) GetByType(eventType EventType, limit int) ([]*Entry, error) {
	rows, err := l.db.Query(`
		SELECT id, event_type, timestamp, source, target, payload, error
		FROM command_ledger
		WHERE event_type = ?
		ORDER BY timestamp DESC, rowid DESC
		LIMIT ?
	`, string(eventType), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return l.scanEntries(rows)
}

// DeleteOlderThan removes entries older than the specified duration (retention policy)
func (l *Ledger) DeleteOlderThan(retention time.Duration) (int64, error) {
	cutoff := l.now().Add(-retention).UTC().UnixMilli()
	result, err := l.db.Exec(`DELETE FROM command_ledger WHERE timestamp < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// RunCleanup periodically deletes entries older than retention until ctx is done.
func (l *Ledger) RunCleanup(ctx context.Context, retention, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deleted, err := l.DeleteOlderThan(retention)
			if err != nil {
				log.Error().Err(err).Msg("Failed to cleanup old ledger entries")
			} else if deleted > 0 {
				log.Info().Int64("deleted", deleted).Dur("retention", retention).Msg("Cleaned up old ledger entries")
			}
		}
	}
}

func (l *Ledger) scanEntries(rows *sql.Rows) ([]*Entry, error) {
	entries := []*Entry{}
	for rows.Next() {
		var entry Entry
		var payloadStr, errStr sql.NullString
		var timestamp int64

		err := rows.Scan(&entry.ID, &entry.EventType, &timestamp, &entry.Source, &entry.Target, &payloadStr, &errStr)
		if err != nil {
			return nil, err
		}

		entry.Timestamp = time.UnixMilli(timestamp).UTC()
		if errStr.Valid {
			entry.Error = errStr.String
		}
		if payloadStr.Valid && payloadStr.String != "" {
			entry.Payload = make(map[string]any)
			if err := json.Unmarshal([]byte(payloadStr.String), &entry.Payload); err != nil {
				return nil, fmt.Errorf("failed to unmarshal payload: %w", err)
			}
		}

		entries = append(entries, &entry)
	}

	return entries, rows.Err()
}
