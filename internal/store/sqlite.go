package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/synceddb/syncstore/internal/model"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS records (
	store         TEXT    NOT NULL,
	id            TEXT    NOT NULL,
	version       INTEGER NOT NULL,
	updated_at_ms INTEGER NOT NULL,
	payload       TEXT    NOT NULL,
	PRIMARY KEY (store, id)
);
CREATE INDEX IF NOT EXISTS records_feed ON records (store, updated_at_ms, id);
`

// SQLiteBackend stores records in an embedded SQLite database. The feed
// index on (store, updated_at_ms, id) serves cursor pagination directly.
type SQLiteBackend struct {
	db *sql.DB
}

// NewSQLiteBackend opens (creating if needed) the database at path.
func NewSQLiteBackend(path string) (*SQLiteBackend, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &SQLiteBackend{db: db}, nil
}

// Get returns the record or (nil, nil) when absent.
func (b *SQLiteBackend) Get(ctx context.Context, store, id string) (*model.Record, error) {
	row := b.db.QueryRowContext(ctx, `
		SELECT version, updated_at_ms, payload
		FROM records
		WHERE store = ? AND id = ?
	`, store, id)

	var version, updatedAtMs int64
	var payload string
	if err := row.Scan(&version, &updatedAtMs, &payload); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read record %s/%s: %w", store, id, err)
	}
	return scanRecord(store, id, version, updatedAtMs, payload)
}

// Put inserts or replaces the record.
func (b *SQLiteBackend) Put(ctx context.Context, store string, rec *model.Record) error {
	payload, err := json.Marshal(rec.Fields)
	if err != nil {
		return fmt.Errorf("failed to encode record %s/%s: %w", store, rec.ID, err)
	}

	_, err = b.db.ExecContext(ctx, `
		INSERT INTO records (store, id, version, updated_at_ms, payload)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (store, id) DO UPDATE SET
			version = excluded.version,
			updated_at_ms = excluded.updated_at_ms,
			payload = excluded.payload
	`, store, rec.ID, rec.Version, rec.UpdatedAt.UnixMilli(), string(payload))
	if err != nil {
		return fmt.Errorf("failed to write record %s/%s: %w", store, rec.ID, err)
	}
	return nil
}

// List pages through the feed index.
func (b *SQLiteBackend) List(ctx context.Context, store string, cursor model.Cursor, limit int) ([]*model.Record, error) {
	query := `
		SELECT id, version, updated_at_ms, payload
		FROM records
		WHERE store = ?`
	args := []any{store}

	if cursor.HasAfter {
		afterMs := cursor.After.UnixMilli()
		if cursor.HasAfterID {
			query += ` AND (updated_at_ms > ? OR (updated_at_ms = ? AND id > ?))`
			args = append(args, afterMs, afterMs, cursor.AfterID)
		} else {
			query += ` AND updated_at_ms > ?`
			args = append(args, afterMs)
		}
	}

	query += ` ORDER BY updated_at_ms, id LIMIT ?`
	args = append(args, limit)

	rows, err := b.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list store %s: %w", store, err)
	}
	defer rows.Close()

	var out []*model.Record
	for rows.Next() {
		var id, payload string
		var version, updatedAtMs int64
		if err := rows.Scan(&id, &version, &updatedAtMs, &payload); err != nil {
			return nil, fmt.Errorf("failed to scan record in store %s: %w", store, err)
		}
		rec, err := scanRecord(store, id, version, updatedAtMs, payload)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list store %s: %w", store, err)
	}
	return out, nil
}

// Ping checks database connectivity.
func (b *SQLiteBackend) Ping(ctx context.Context) error {
	return b.db.PingContext(ctx)
}

// Close closes the database.
func (b *SQLiteBackend) Close() error {
	return b.db.Close()
}

func scanRecord(store, id string, version, updatedAtMs int64, payload string) (*model.Record, error) {
	rec := &model.Record{
		ID:        id,
		Version:   version,
		UpdatedAt: time.UnixMilli(updatedAtMs).UTC(),
	}
	if payload != "" && payload != "null" {
		if err := json.Unmarshal([]byte(payload), &rec.Fields); err != nil {
			return nil, fmt.Errorf("corrupt payload for %s/%s: %w", store, id, err)
		}
	}
	return rec, nil
}
