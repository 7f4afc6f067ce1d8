package core

import (
	"fmt"
	"strings"
)

// Dataset is the unified in-memory table. Every row's cells are keyed by a
// subset of Headers; a missing cell reads as "".
type Dataset struct {
	Headers  []string     `json:"headers"`
	Rows     []Row        `json:"rows"`
	Warnings []string     `json:"warnings"`
	Files    []SourceFile `json:"files"`
	Types    TypeMap      `json:"types"`
}

// NewDataset returns an empty dataset.
func NewDataset() *Dataset {
	return &Dataset{Types: TypeMap{}}
}

// Clone returns a copy that shares no slices or maps with d.
func (d *Dataset) Clone() *Dataset {
	out := &Dataset{
		Headers:  append([]string(nil), d.Headers...),
		Rows:     make([]Row, len(d.Rows)),
		Warnings: append([]string(nil), d.Warnings...),
		Files:    append([]SourceFile(nil), d.Files...),
		Types:    d.Types.Clone(),
	}
	for i, r := range d.Rows {
		cells := make(Record, len(r.Cells))
		for k, v := range r.Cells {
			cells[k] = v
		}
		r.Cells = cells
		out.Rows[i] = r
	}
	return out
}

// Empty reports whether the dataset has no columns yet.
func (d *Dataset) Empty() bool {
	return len(d.Headers) == 0
}

// Signature returns the schema signature of the current headers.
func (d *Dataset) Signature() string {
	return SignatureOf(d.Headers)
}

// HasColumn reports whether header is one of the dataset's columns.
func (d *Dataset) HasColumn(header string) bool {
	for _, h := range d.Headers {
		if h == header {
			return true
		}
	}
	return false
}

// Search returns rows where any of columns contains needle, ignoring case.
// A blank needle or an empty column list returns every row.
func (d *Dataset) Search(needle string, columns []string) []Row {
	if strings.TrimSpace(needle) == "" || len(columns) == 0 {
		return d.Rows
	}
	lower := strings.ToLower(needle)
	var out []Row
	for _, r := range d.Rows {
		for _, c := range columns {
			if strings.Contains(strings.ToLower(r.Get(c)), lower) {
				out = append(out, r)
				break
			}
		}
	}
	return out
}

// Totals sums every number-typed column over rows. Cells that are not
// numeric-like are ignored.
func (d *Dataset) Totals(rows []Row) map[string]float64 {
	totals := make(map[string]float64)
	for _, h := range d.Headers {
		if d.Types[h] != TypeNumber {
			continue
		}
		var sum float64
		for _, r := range rows {
			if v, ok := ParseNumeric(r.Get(h)); ok {
				sum += v
			}
		}
		totals[h] = sum
	}
	return totals
}

// RemoveRows deletes rows by id and returns how many were removed.
func (d *Dataset) RemoveRows(ids []string) int {
	if len(ids) == 0 {
		return 0
	}
	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	kept := d.Rows[:0:0]
	for _, r := range d.Rows {
		if !drop[r.ID] {
			kept = append(kept, r)
		}
	}
	removed := len(d.Rows) - len(kept)
	d.Rows = kept
	return removed
}

// RemoveFile drops a source file and every row it contributed. When the last
// file goes, the columns go with it.
func (d *Dataset) RemoveFile(fileID string) (int, error) {
	idx := -1
	for i, f := range d.Files {
		if f.ID == fileID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return 0, fmt.Errorf("file %s: %w", fileID, ErrFileNotFound)
	}

	d.Files = append(d.Files[:idx:idx], d.Files[idx+1:]...)
	kept := d.Rows[:0:0]
	for _, r := range d.Rows {
		if r.FileID != fileID {
			kept = append(kept, r)
		}
	}
	removed := len(d.Rows) - len(kept)
	d.Rows = kept

	if len(d.Files) == 0 {
		d.Headers = nil
		d.Types = TypeMap{}
	}
	return removed, nil
}

// ColumnEdit is the result of the column editor: the new header order, the
// type of every column under its new name, and old -> new renames.
type ColumnEdit struct {
	Headers []string          `json:"headers"`
	Types   TypeMap           `json:"types"`
	Renames map[string]string `json:"renames"`
}

// validate checks that an edit covers the dataset's columns exactly once.
func (e ColumnEdit) validate(current []string) error {
	renamed := make(map[string]string, len(current))
	for _, h := range current {
		renamed[h] = h
	}
	for from, to := range e.Renames {
		if _, ok := renamed[from]; !ok {
			return fmt.Errorf("rename %q: %w", from, ErrUnknownColumn)
		}
		renamed[from] = to
	}

	want := make(map[string]bool, len(current))
	for _, h := range renamed {
		want[h] = true
	}
	if len(want) != len(current) {
		return fmt.Errorf("%w: renames produce duplicate column names", ErrInvalidColumnEdit)
	}

	seen := make(map[string]bool, len(e.Headers))
	for _, h := range e.Headers {
		if strings.TrimSpace(h) == "" {
			return fmt.Errorf("%w: column names cannot be empty", ErrInvalidColumnEdit)
		}
		if seen[h] {
			return fmt.Errorf("%w: duplicate column %q", ErrInvalidColumnEdit, h)
		}
		if !want[h] {
			return fmt.Errorf("column %q: %w", h, ErrUnknownColumn)
		}
		seen[h] = true
	}
	if len(seen) != len(want) {
		return fmt.Errorf("%w: every column must appear in the new order", ErrInvalidColumnEdit)
	}
	return nil
}

// ApplyColumnEdit renames, reorders and retypes the dataset's columns.
// Row ids and provenance are untouched.
func (d *Dataset) ApplyColumnEdit(e ColumnEdit) error {
	if err := e.validate(d.Headers); err != nil {
		return err
	}

	if len(e.Renames) > 0 {
		for i := range d.Rows {
			cells := make(Record, len(d.Rows[i].Cells))
			for k, v := range d.Rows[i].Cells {
				if to, ok := e.Renames[k]; ok {
					k = to
				}
				cells[k] = v
			}
			d.Rows[i].Cells = cells
		}
	}

	previous := make(map[string]string, len(e.Renames))
	for from, to := range e.Renames {
		previous[to] = from
	}
	types := make(TypeMap, len(e.Headers))
	for _, h := range e.Headers {
		t, ok := e.Types[h]
		if !ok {
			old := h
			if from, renamed := previous[h]; renamed {
				old = from
			}
			if t, ok = d.Types[old]; !ok {
				t = TypeText
			}
		}
		types[h] = t
	}

	d.Headers = append([]string(nil), e.Headers...)
	d.Types = types
	return nil
}
