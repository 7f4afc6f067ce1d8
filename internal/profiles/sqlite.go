package profiles

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/JonMunkholm/csvutils/internal/core"
	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS type_profiles (
	namespace  TEXT NOT NULL,
	signature  TEXT NOT NULL,
	profile    TEXT NOT NULL,
	updated_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now')),
	PRIMARY KEY (namespace, signature)
)`

// SQLiteStore keeps profiles in a local database file.
type SQLiteStore struct {
	db        *sql.DB
	namespace string
}

// NewSQLiteStore opens dsn (a file path or sqlite URI) and creates the table
// if needed.
func NewSQLiteStore(ctx context.Context, dsn, namespace string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("profile store: open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("profile store: ping: %w", err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("profile store: create table: %w", err)
	}
	return &SQLiteStore{db: db, namespace: namespace}, nil
}

func (s *SQLiteStore) Get(ctx context.Context, signature string) (core.TypeMap, bool, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT profile FROM type_profiles WHERE namespace = ? AND signature = ?`,
		s.namespace, signature,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("profile store: get: %w", err)
	}

	p, err := decodeProfile([]byte(raw))
	if err != nil {
		return nil, false, fmt.Errorf("profile store: decode: %w", err)
	}
	return p, true, nil
}

func (s *SQLiteStore) Put(ctx context.Context, signature string, profile core.TypeMap) error {
	raw, err := encodeProfile(profile)
	if err != nil {
		return fmt.Errorf("profile store: encode: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO type_profiles (namespace, signature, profile)
		 VALUES (?, ?, ?)
		 ON CONFLICT (namespace, signature)
		 DO UPDATE SET profile = excluded.profile,
		               updated_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now')`,
		s.namespace, signature, string(raw),
	)
	if err != nil {
		return fmt.Errorf("profile store: put: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }
