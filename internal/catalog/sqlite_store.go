// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kuntrapaku/subway-social-link-sub000/internal/persistence/sqlite"
)

var migrations = []sqlite.Migration{
	{Version: 1, SQL: `
	CREATE TABLE IF NOT EXISTS media_items (
		item_id TEXT PRIMARY KEY,
		source_url TEXT NOT NULL DEFAULT '',
		storage_key TEXT NOT NULL DEFAULT '',
		updated_at_ms INTEGER NOT NULL
	);`},
	{Version: 2, SQL: `CREATE INDEX IF NOT EXISTS idx_media_items_updated ON media_items(updated_at_ms);`},
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	DB *sql.DB
}

func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	db, err := sqlite.Open(dbPath, sqlite.DefaultConfig())
	if err != nil {
		return nil, err
	}
	if _, err := sqlite.Migrate(ctx, db, migrations); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("catalog store: migration failed: %w", err)
	}
	return &SQLiteStore{DB: db}, nil
}

func (s *SQLiteStore) Get(ctx context.Context, itemID string) (Record, error) {
	const query = `SELECT item_id, source_url, storage_key, updated_at_ms FROM media_items WHERE item_id = ?`
	var (
		rec       Record
		updatedMs int64
	)
	err := s.DB.QueryRowContext(ctx, query, itemID).Scan(&rec.ItemID, &rec.SourceURL, &rec.StorageKey, &updatedMs)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("catalog get %s: %w", itemID, err)
	}
	rec.UpdatedAt = time.UnixMilli(updatedMs).UTC()
	return rec, nil
}

func (s *SQLiteStore) Put(ctx context.Context, rec Record) error {
	const query = `
	INSERT INTO media_items (item_id, source_url, storage_key, updated_at_ms)
	VALUES (?, ?, ?, ?)
	ON CONFLICT(item_id) DO UPDATE SET
		source_url = excluded.source_url,
		storage_key = excluded.storage_key,
		updated_at_ms = excluded.updated_at_ms
	`
	_, err := s.DB.ExecContext(ctx, query, rec.ItemID, rec.SourceURL, rec.StorageKey, rec.UpdatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("catalog put %s: %w", rec.ItemID, err)
	}
	return nil
}

func (s *SQLiteStore) Delete(ctx context.Context, itemID string) error {
	res, err := s.DB.ExecContext(ctx, "DELETE FROM media_items WHERE item_id = ?", itemID)
	if err != nil {
		return fmt.Errorf("catalog delete %s: %w", itemID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// HealthCheck pings and runs a quick integrity check.
func (s *SQLiteStore) HealthCheck(ctx context.Context) error {
	if err := s.DB.PingContext(ctx); err != nil {
		return err
	}
	issues, err := sqlite.VerifyIntegrity(ctx, s.DB, "quick")
	if err != nil {
		return err
	}
	if len(issues) > 0 {
		return fmt.Errorf("catalog store integrity: %s", strings.Join(issues, "; "))
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.DB.Close()
}
