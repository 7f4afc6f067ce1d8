package profiles

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/JonMunkholm/csvutils/internal/config"
	"github.com/JonMunkholm/csvutils/internal/core"
)

// exerciseStore checks the get/put contract every backend must meet.
func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()
	sig := core.SignatureOf([]string{"id", "amount"})

	if _, ok, err := s.Get(ctx, sig); err != nil || ok {
		t.Fatalf("Get on empty store = ok %v, err %v", ok, err)
	}

	want := core.TypeMap{"id": core.TypeNumber, "amount": core.TypeText}
	if err := s.Put(ctx, sig, want); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, ok, err := s.Get(ctx, sig)
	if err != nil || !ok {
		t.Fatalf("Get after Put = ok %v, err %v", ok, err)
	}
	if len(got) != 2 || got["id"] != core.TypeNumber || got["amount"] != core.TypeText {
		t.Errorf("Get = %v, want %v", got, want)
	}

	got["id"] = core.TypeText
	again, _, _ := s.Get(ctx, sig)
	if again["id"] != core.TypeNumber {
		t.Error("mutating a returned profile changed the store")
	}

	if err := s.Put(ctx, sig, core.TypeMap{"id": core.TypeText}); err != nil {
		t.Fatalf("second Put: %v", err)
	}
	replaced, _, _ := s.Get(ctx, sig)
	if len(replaced) != 1 || replaced["id"] != core.TypeText {
		t.Errorf("Put did not replace: %v", replaced)
	}

	other := core.SignatureOf([]string{"amount", "id"})
	if _, ok, _ := s.Get(ctx, other); ok {
		t.Error("reordered signature shares a profile")
	}
}

func TestMemoryStore(t *testing.T) {
	s, err := Open(context.Background(), config.ProfileConfig{Store: "memory"})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()
	exerciseStore(t, s)
}

func TestFileStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles.json")
	s, err := Open(context.Background(), config.ProfileConfig{Store: "file", File: path})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	exerciseStore(t, s)

	reopened, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	sig := core.SignatureOf([]string{"id", "amount"})
	got, ok, _ := reopened.Get(context.Background(), sig)
	if !ok || got["id"] != core.TypeText {
		t.Errorf("reopened Get = %v, %v", got, ok)
	}
}

func TestFileStore_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewFileStore(path); err == nil {
		t.Error("NewFileStore accepted a corrupt file")
	}

	if err := os.WriteFile(path, []byte(`{"[\"a\"]": {"a": "date"}}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewFileStore(path); err == nil {
		t.Error("NewFileStore accepted an unknown column type")
	}
}

func TestSQLiteStore(t *testing.T) {
	ctx := context.Background()
	dsn := filepath.Join(t.TempDir(), "profiles.db")
	s, err := Open(ctx, config.ProfileConfig{Store: "sqlite", DSN: dsn, KeyPrefix: "test"})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()
	exerciseStore(t, s)

	other, err := NewSQLiteStore(ctx, dsn, "other")
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	defer other.Close()
	if _, ok, _ := other.Get(ctx, core.SignatureOf([]string{"id", "amount"})); ok {
		t.Error("namespaces share profiles")
	}
}

func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("PROFILE_TEST_DSN")
	if dsn == "" {
		t.Skip("PROFILE_TEST_DSN not set")
	}
	ctx := context.Background()
	s, err := NewPostgresStore(ctx, dsn, t.Name())
	if err != nil {
		t.Fatalf("NewPostgresStore: %v", err)
	}
	defer s.Close()
	defer s.pool.Exec(ctx, `DELETE FROM type_profiles WHERE namespace = $1`, t.Name())
	exerciseStore(t, s)
}

func TestOpen_UnknownBackend(t *testing.T) {
	if _, err := Open(context.Background(), config.ProfileConfig{Store: "redis"}); err == nil {
		t.Error("Open accepted an unknown backend")
	}
}
