// Package profiles persists type profiles: the confirmed column types of a
// schema, keyed by its signature.
//
// Backends:
//
//   - memory: lost on restart (default)
//   - file: one JSON document on disk
//   - postgres: a table in an existing database (pgx)
//   - sqlite: a local database file (modernc.org/sqlite, no cgo)
//
// Every backend satisfies core.ProfileCache.
package profiles

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/JonMunkholm/csvutils/internal/config"
	"github.com/JonMunkholm/csvutils/internal/core"
)

// Store is a ProfileCache that may hold resources.
type Store interface {
	core.ProfileCache
	Close() error
}

// Backend names accepted by Open.
const (
	BackendMemory   = "memory"
	BackendFile     = "file"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
)

// Open creates the store selected by cfg.Store.
func Open(ctx context.Context, cfg config.ProfileConfig) (Store, error) {
	switch strings.ToLower(cfg.Store) {
	case "", BackendMemory:
		return memoryStore{core.NewMemoryProfiles()}, nil
	case BackendFile:
		return NewFileStore(cfg.File)
	case BackendPostgres:
		return NewPostgresStore(ctx, cfg.DSN, cfg.KeyPrefix)
	case BackendSQLite:
		return NewSQLiteStore(ctx, cfg.DSN, cfg.KeyPrefix)
	default:
		return nil, fmt.Errorf("profile store: unknown backend %q", cfg.Store)
	}
}

type memoryStore struct {
	*core.MemoryProfiles
}

func (memoryStore) Close() error { return nil }

// encodeProfile and decodeProfile define the stored form: a JSON object of
// header -> "text" | "number".
func encodeProfile(p core.TypeMap) ([]byte, error) {
	if p == nil {
		p = core.TypeMap{}
	}
	return json.Marshal(p)
}

func decodeProfile(b []byte) (core.TypeMap, error) {
	var raw map[string]string
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, err
	}
	out := make(core.TypeMap, len(raw))
	for h, v := range raw {
		t, err := core.ParseColumnType(v)
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", h, err)
		}
		out[h] = t
	}
	return out, nil
}
