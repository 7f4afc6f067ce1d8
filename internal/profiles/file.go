package profiles

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/JonMunkholm/csvutils/internal/core"
)

// FileStore keeps every profile in one JSON file, rewritten atomically on
// each Put.
type FileStore struct {
	path string

	mu       sync.Mutex
	profiles map[string]core.TypeMap
}

// NewFileStore loads path, or starts empty when it does not exist yet.
func NewFileStore(path string) (*FileStore, error) {
	s := &FileStore{path: path, profiles: make(map[string]core.TypeMap)}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("profile store: read %s: %w", path, err)
	}
	if len(data) == 0 {
		return s, nil
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("profile store: parse %s: %w", path, err)
	}
	for sig, msg := range raw {
		p, err := decodeProfile(msg)
		if err != nil {
			return nil, fmt.Errorf("profile store: parse %s: %w", path, err)
		}
		s.profiles[sig] = p
	}
	return s, nil
}

func (s *FileStore) Get(_ context.Context, signature string) (core.TypeMap, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[signature]
	if !ok {
		return nil, false, nil
	}
	return p.Clone(), true, nil
}

func (s *FileStore) Put(_ context.Context, signature string, profile core.TypeMap) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, had := s.profiles[signature]
	s.profiles[signature] = profile.Clone()
	if err := s.save(); err != nil {
		if had {
			s.profiles[signature] = prev
		} else {
			delete(s.profiles, signature)
		}
		return err
	}
	return nil
}

func (s *FileStore) Close() error { return nil }

// save writes to a temp file in the same directory and renames it over path.
func (s *FileStore) save() error {
	data, err := json.MarshalIndent(s.profiles, "", "  ")
	if err != nil {
		return fmt.Errorf("profile store: encode: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".profiles-*.json")
	if err != nil {
		return fmt.Errorf("profile store: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("profile store: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("profile store: write: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("profile store: %w", err)
	}
	return nil
}
