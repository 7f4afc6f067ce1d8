package profiles

import (
	"context"
	"errors"
	"fmt"

	"github.com/JonMunkholm/csvutils/internal/core"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS type_profiles (
	namespace  TEXT        NOT NULL,
	signature  TEXT        NOT NULL,
	profile    JSONB       NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (namespace, signature)
)`

// PostgresStore keeps profiles in the type_profiles table. Several
// deployments can share one table under different namespaces.
type PostgresStore struct {
	pool      *pgxpool.Pool
	namespace string
}

// NewPostgresStore connects to dsn and creates the table if needed.
func NewPostgresStore(ctx context.Context, dsn, namespace string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("profile store: parse dsn: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("profile store: ping: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("profile store: create table: %w", err)
	}
	return &PostgresStore{pool: pool, namespace: namespace}, nil
}

func (s *PostgresStore) Get(ctx context.Context, signature string) (core.TypeMap, bool, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx,
		`SELECT profile FROM type_profiles WHERE namespace = $1 AND signature = $2`,
		s.namespace, signature,
	).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("profile store: get: %w", err)
	}

	p, err := decodeProfile(raw)
	if err != nil {
		return nil, false, fmt.Errorf("profile store: decode: %w", err)
	}
	return p, true, nil
}

func (s *PostgresStore) Put(ctx context.Context, signature string, profile core.TypeMap) error {
	raw, err := encodeProfile(profile)
	if err != nil {
		return fmt.Errorf("profile store: encode: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO type_profiles (namespace, signature, profile)
		 VALUES ($1, $2, $3::jsonb)
		 ON CONFLICT (namespace, signature)
		 DO UPDATE SET profile = EXCLUDED.profile, updated_at = now()`,
		s.namespace, signature, string(raw),
	)
	if err != nil {
		return fmt.Errorf("profile store: put: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
