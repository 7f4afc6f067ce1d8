package csvio

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
)

func TestSearchFiles(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.csv", "name,city\nAlice,Oslo\nBob,Rome\n")
	b := writeFile(t, dir, "b.csv", "name,zip\nalicia,123\n")
	c := writeFile(t, dir, "c.csv", "other\nx\n")
	missing := filepath.Join(dir, "missing.csv")

	res, err := SearchFiles(context.Background(), []string{a, b, c, missing}, "name", "ALI", true)
	if err != nil {
		t.Fatalf("SearchFiles: %v", err)
	}

	wantHeaders := []string{"name", "city", "zip", "other"}
	if strings.Join(res.Headers, ",") != strings.Join(wantHeaders, ",") {
		t.Errorf("Headers = %v, want %v", res.Headers, wantHeaders)
	}
	if len(res.Rows) != 2 {
		t.Errorf("len(Rows) = %d, want 2", len(res.Rows))
	}
	if len(res.Warnings) != 2 {
		t.Fatalf("Warnings = %v, want 2", res.Warnings)
	}
	if !strings.Contains(res.Warnings[0], `column "name" not found`) {
		t.Errorf("Warnings[0] = %q", res.Warnings[0])
	}
	if !strings.Contains(res.Warnings[1], "file not found") {
		t.Errorf("Warnings[1] = %q", res.Warnings[1])
	}
}

func TestSearchFiles_CaseSensitive(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.csv", "name\nAlice\nalice\n")

	res, err := SearchFiles(context.Background(), []string{a}, "name", "Ali", false)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Rows) != 1 || res.Rows[0]["name"] != "Alice" {
		t.Errorf("Rows = %v", res.Rows)
	}
}
