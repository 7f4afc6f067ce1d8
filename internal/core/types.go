package core

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// ColumnType is the semantic type assigned to a column.
type ColumnType string

const (
	TypeText   ColumnType = "text"
	TypeNumber ColumnType = "number"
)

// ParseColumnType converts a user-supplied string to a ColumnType.
func ParseColumnType(s string) (ColumnType, error) {
	switch ColumnType(strings.ToLower(strings.TrimSpace(s))) {
	case TypeText:
		return TypeText, nil
	case TypeNumber:
		return TypeNumber, nil
	default:
		return "", fmt.Errorf("invalid column type %q (want text or number)", s)
	}
}

// TypeMap maps a column header to its ColumnType.
// A TypeMap stored under a schema signature is a type profile.
type TypeMap map[string]ColumnType

// Clone returns a copy of the map. A nil map clones to an empty map.
func (m TypeMap) Clone() TypeMap {
	out := make(TypeMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Record is one parsed CSV row: header -> cell value.
type Record map[string]string

// Row is a record owned by a Dataset. ID is assigned once at ingestion
// and never reused.
type Row struct {
	ID       string `json:"id"`
	FileID   string `json:"fileId"`
	FileName string `json:"fileName"`
	Cells    Record `json:"cells"`
}

// Get returns the cell for header, or "" when the row lacks it.
func (r Row) Get(header string) string {
	return r.Cells[header]
}

// ParsedFile is what the CSV decoding collaborator yields for one input file.
// Rows whose keys fall outside Headers are reported in SkippedRows and never
// reach Rows.
type ParsedFile struct {
	Name         string    `json:"name"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"lastModified"`
	Headers      []string  `json:"headers"`
	Rows         []Record  `json:"-"`
	Warnings     []string  `json:"warnings"`
	SkippedRows  []Record  `json:"-"`
}

// SourceFile is the manifest entry for a file merged into a Dataset.
type SourceFile struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Size            int64     `json:"size"`
	LastModified    time.Time `json:"lastModified"`
	AppendedAt      time.Time `json:"appendedAt"`
	Headers         []string  `json:"headers"`
	RowCount        int       `json:"rowCount"`
	SkippedCount    int       `json:"skippedCount"`
	Warnings        []string  `json:"warnings"`
	SchemaSignature string    `json:"schemaSignature"`
	SampleRows      []Row     `json:"sampleRows"`
}

// ImportMode selects how a new batch relates to the current Dataset.
type ImportMode string

const (
	ModeReplace ImportMode = "replace"
	ModeAppend  ImportMode = "append"
)

// ParseImportMode converts a string to an ImportMode. Empty means replace.
func ParseImportMode(s string) (ImportMode, error) {
	switch ImportMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeReplace:
		return ModeReplace, nil
	case ModeAppend:
		return ModeAppend, nil
	default:
		return "", fmt.Errorf("invalid import mode %q (want replace or append)", s)
	}
}

// ProfileCache stores confirmed column types keyed by schema signature.
// Implementations may be in-memory, file-based, or backed by a database.
type ProfileCache interface {
	Get(ctx context.Context, signature string) (TypeMap, bool, error)
	Put(ctx context.Context, signature string, profile TypeMap) error
}
