package core

// unify.go reconciles an appended batch whose columns differ from the dataset.
//
// Lifecycle: NewUnifier proposes a mapping for every incoming column, a final
// column order and final types. The proposal can then be edited any number of
// times (SetMappingTarget, SetColumnType, SetFinalColumnOrder, Reset) before
// Commit produces the merged dataset. Dropping the Unifier cancels; nothing
// is shared with the dataset until Commit.

import (
	"fmt"
	"time"
)

// DefaultUnifySampleRows is how many leading rows per file feed type inference
// during reconciliation.
const DefaultUnifySampleRows = 5

// ColumnMapping routes one incoming column. A nil TargetColumn materializes
// the source column as a new column of the unified schema.
type ColumnMapping struct {
	SourceColumn string     `json:"sourceColumn"`
	TargetColumn *string    `json:"targetColumn"`
	TargetType   ColumnType `json:"targetType"`
	Confidence   float64    `json:"confidence"`
	MatchKind    MatchKind  `json:"matchKind,omitempty"`
}

// Destination is the unified column the source column's values land in.
func (m ColumnMapping) Destination() string {
	if m.TargetColumn != nil {
		return *m.TargetColumn
	}
	return m.SourceColumn
}

// UnifyOptions tunes a Unifier. Zero values select the defaults.
type UnifyOptions struct {
	MinConfidence float64
	SampleRows    int
	Inferrer      Inferrer
}

func (o UnifyOptions) withDefaults() UnifyOptions {
	if o.MinConfidence <= 0 {
		o.MinConfidence = DefaultMinConfidence
	}
	if o.SampleRows <= 0 {
		o.SampleRows = DefaultUnifySampleRows
	}
	return o
}

// Unifier holds the editable reconciliation state for one batch.
type Unifier struct {
	existing      []string
	existingTypes TypeMap
	files         []ParsedFile
	sources       []string
	opts          UnifyOptions

	mappings map[string]ColumnMapping
	order    []string
	pinned   bool
	types    TypeMap
}

// NewUnifier proposes a reconciliation of files against the existing headers.
// existingTypes seeds the type of existing columns that receive no incoming data.
func NewUnifier(existing []string, existingTypes TypeMap, files []ParsedFile, opts UnifyOptions) *Unifier {
	u := &Unifier{
		existing:      append([]string(nil), existing...),
		existingTypes: existingTypes.Clone(),
		files:         files,
		sources:       unionHeaders(files),
		opts:          opts.withDefaults(),
	}
	u.Reset()
	return u
}

// Reset discards every edit and recomputes the proposal from scratch.
func (u *Unifier) Reset() {
	suggestions := GenerateMappingSuggestions(u.sources, u.existing, u.opts.MinConfidence)

	u.mappings = make(map[string]ColumnMapping, len(u.sources))
	for _, src := range u.sources {
		m := ColumnMapping{SourceColumn: src, TargetType: TypeText}
		if s := suggestions[src]; s != nil {
			target := s.Column
			m.TargetColumn = &target
			m.Confidence = s.Confidence
			m.MatchKind = s.Kind
		}
		u.mappings[src] = m
	}
	u.releaseSharedTargets()

	u.pinned = false
	u.order = u.defaultOrder()

	overrides := make(TypeMap)
	used := u.mappedExisting()
	for _, h := range u.existing {
		if t, ok := u.existingTypes[h]; ok && !used[h] {
			overrides[h] = t
		}
	}
	u.types = u.opts.Inferrer.Infer(u.order, u.samples(), overrides)
	u.syncMappingTypes()
}

// SetMappingTarget points source at an existing column, or at a new column
// when target is nil. An existing column already fed by another source is
// rejected with ErrInvalidColumnEdit. The mapping becomes manual and the default column order
// is recomputed unless the order has been set explicitly.
func (u *Unifier) SetMappingTarget(source string, target *string) error {
	m, ok := u.mappings[source]
	if !ok {
		return fmt.Errorf("source %q: %w", source, ErrUnknownColumn)
	}
	if target != nil {
		if !contains(u.existing, *target) {
			return fmt.Errorf("target %q: %w", *target, ErrUnknownColumn)
		}
		if other, taken := u.claimedBy(*target); taken && other != source {
			return fmt.Errorf("%w: %q already receives %q", ErrInvalidColumnEdit, *target, other)
		}
		t := *target
		m.TargetColumn = &t
	} else {
		if contains(u.existing, source) {
			return fmt.Errorf("%w: %q already exists, map to it instead", ErrInvalidColumnEdit, source)
		}
		m.TargetColumn = nil
	}
	m.MatchKind = MatchManual
	u.mappings[source] = m

	dest := m.Destination()
	if _, typed := u.types[dest]; !typed {
		inferred := u.opts.Inferrer.Infer([]string{dest}, u.samples(), nil)
		u.types[dest] = inferred[dest]
	}

	if u.pinned {
		u.order = reconcileOrder(u.order, u.defaultOrder())
	} else {
		u.order = u.defaultOrder()
	}
	u.syncMappingTypes()
	return nil
}

// SetColumnType overrides the final type of one unified column.
func (u *Unifier) SetColumnType(column string, t ColumnType) error {
	if !contains(u.order, column) {
		return fmt.Errorf("column %q: %w", column, ErrUnknownColumn)
	}
	u.types[column] = t
	u.syncMappingTypes()
	return nil
}

// SetFinalColumnOrder replaces the column order. order must be a permutation
// of the current unified columns. The order then survives mapping edits until
// Reset.
func (u *Unifier) SetFinalColumnOrder(order []string) error {
	if len(order) != len(u.order) {
		return fmt.Errorf("%w: order has %d columns, want %d", ErrInvalidColumnEdit, len(order), len(u.order))
	}
	seen := make(map[string]bool, len(order))
	for _, c := range order {
		if seen[c] {
			return fmt.Errorf("%w: duplicate column %q", ErrInvalidColumnEdit, c)
		}
		if !contains(u.order, c) {
			return fmt.Errorf("column %q: %w", c, ErrUnknownColumn)
		}
		seen[c] = true
	}
	u.order = append([]string(nil), order...)
	u.pinned = true
	return nil
}

// Mappings returns one mapping per incoming column in first-appearance order.
func (u *Unifier) Mappings() []ColumnMapping {
	out := make([]ColumnMapping, 0, len(u.sources))
	for _, src := range u.sources {
		out = append(out, u.mappings[src])
	}
	return out
}

// FinalColumnOrder returns the unified header order.
func (u *Unifier) FinalColumnOrder() []string {
	return append([]string(nil), u.order...)
}

// FinalColumnTypes returns the type of every unified column.
func (u *Unifier) FinalColumnTypes() TypeMap {
	out := make(TypeMap, len(u.order))
	for _, c := range u.order {
		t, ok := u.types[c]
		if !ok {
			t = TypeText
		}
		out[c] = t
	}
	return out
}

// Files returns the pending files being reconciled.
func (u *Unifier) Files() []ParsedFile {
	return u.files
}

// ExistingHeaders returns the dataset headers the batch is reconciled against.
func (u *Unifier) ExistingHeaders() []string {
	return append([]string(nil), u.existing...)
}

// UnifyStats summarizes the current proposal.
type UnifyStats struct {
	TotalNewColumns   int `json:"totalNewColumns"`
	MappedToExisting  int `json:"mappedToExisting"`
	NewColumnsCreated int `json:"newColumnsCreated"`
	FinalColumnCount  int `json:"finalColumnCount"`
}

// Stats counts mapped and new columns.
func (u *Unifier) Stats() UnifyStats {
	s := UnifyStats{TotalNewColumns: len(u.sources), FinalColumnCount: len(u.order)}
	for _, m := range u.mappings {
		if m.TargetColumn != nil {
			s.MappedToExisting++
		}
	}
	s.NewColumnsCreated = s.TotalNewColumns - s.MappedToExisting
	return s
}

// Commit merges the pending files into ds and returns the resulting dataset.
// ds itself is not modified. Existing rows come first, padded with "" for
// columns they lack; each file's rows follow, re-keyed through the mappings
// and stamped with a fresh row id and file id.
func (u *Unifier) Commit(ds *Dataset, newID func() string, now time.Time) *Dataset {
	order := u.FinalColumnOrder()

	total := len(ds.Rows)
	for _, f := range u.files {
		total += len(f.Rows)
	}
	rows := make([]Row, 0, total)

	for _, r := range ds.Rows {
		cells := make(Record, len(order))
		for k, v := range r.Cells {
			cells[k] = v
		}
		for _, h := range order {
			if _, ok := cells[h]; !ok {
				cells[h] = ""
			}
		}
		r.Cells = cells
		rows = append(rows, r)
	}

	files := append([]SourceFile(nil), ds.Files...)
	warnings := append([]string(nil), ds.Warnings...)

	for _, f := range u.files {
		fileID := newID()
		start := len(rows)
		for _, rec := range f.Rows {
			cells := make(Record, len(order))
			for _, h := range order {
				cells[h] = ""
			}
			for _, src := range u.sources {
				v, ok := rec[src]
				if !ok {
					continue
				}
				cells[u.mappings[src].Destination()] = v
			}
			rows = append(rows, Row{ID: newID(), FileID: fileID, FileName: f.Name, Cells: cells})
		}
		files = append(files, sourceFileFor(fileID, f, rows[start:], now))
		warnings = append(warnings, f.Warnings...)
	}

	return &Dataset{
		Headers:  order,
		Rows:     rows,
		Warnings: warnings,
		Files:    files,
		Types:    u.FinalColumnTypes(),
	}
}

// defaultOrder lists mapped existing columns, then unmapped existing columns,
// then new columns in first-appearance order.
func (u *Unifier) defaultOrder() []string {
	used := u.mappedExisting()
	order := make([]string, 0, len(u.existing)+len(u.sources))
	for _, h := range u.existing {
		if used[h] {
			order = append(order, h)
		}
	}
	for _, h := range u.existing {
		if !used[h] {
			order = append(order, h)
		}
	}
	for _, src := range u.sources {
		if u.mappings[src].TargetColumn == nil {
			order = append(order, src)
		}
	}
	return order
}

// releaseSharedTargets leaves at most one source per existing column. The
// highest-confidence claim keeps the target, the earliest source on ties, and
// the others become new columns so no values are overwritten on Commit.
func (u *Unifier) releaseSharedTargets() {
	owner := make(map[string]string)
	for _, src := range u.sources {
		m := u.mappings[src]
		if m.TargetColumn == nil {
			continue
		}
		target := *m.TargetColumn
		prev, taken := owner[target]
		if !taken {
			owner[target] = src
			continue
		}
		if m.Confidence > u.mappings[prev].Confidence {
			u.mappings[prev] = ColumnMapping{SourceColumn: prev, TargetType: TypeText}
			owner[target] = src
			continue
		}
		u.mappings[src] = ColumnMapping{SourceColumn: src, TargetType: TypeText}
	}
}

// claimedBy reports which source currently maps to the existing column target.
func (u *Unifier) claimedBy(target string) (string, bool) {
	for _, src := range u.sources {
		if t := u.mappings[src].TargetColumn; t != nil && *t == target {
			return src, true
		}
	}
	return "", false
}

func (u *Unifier) mappedExisting() map[string]bool {
	used := make(map[string]bool)
	for _, m := range u.mappings {
		if m.TargetColumn != nil {
			used[*m.TargetColumn] = true
		}
	}
	return used
}

// samples pools the leading rows of every file, keyed by destination column.
func (u *Unifier) samples() []Record {
	var out []Record
	for _, f := range u.files {
		n := min(len(f.Rows), u.opts.SampleRows)
		for _, rec := range f.Rows[:n] {
			keyed := make(Record, len(rec))
			for _, src := range u.sources {
				if v, ok := rec[src]; ok {
					keyed[u.mappings[src].Destination()] = v
				}
			}
			out = append(out, keyed)
		}
	}
	return out
}

func (u *Unifier) syncMappingTypes() {
	for src, m := range u.mappings {
		if t, ok := u.types[m.Destination()]; ok {
			m.TargetType = t
		} else {
			m.TargetType = TypeText
		}
		u.mappings[src] = m
	}
}

// reconcileOrder keeps a user-chosen order, dropping columns that no longer
// exist and appending new ones in their default position order.
func reconcileOrder(pinned, columns []string) []string {
	out := make([]string, 0, len(columns))
	for _, c := range pinned {
		if contains(columns, c) {
			out = append(out, c)
		}
	}
	for _, c := range columns {
		if !contains(out, c) {
			out = append(out, c)
		}
	}
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// PendingFile summarizes one incoming file of a reconciliation.
type PendingFile struct {
	Name     string   `json:"name"`
	Headers  []string `json:"headers"`
	RowCount int      `json:"rowCount"`
	Warnings []string `json:"warnings,omitempty"`
}

// UnifyView is a serializable snapshot of a Unifier.
type UnifyView struct {
	ExistingHeaders  []string        `json:"existingHeaders"`
	Files            []PendingFile   `json:"files"`
	Mappings         []ColumnMapping `json:"mappings"`
	FinalColumnOrder []string        `json:"finalColumnOrder"`
	FinalColumnTypes TypeMap         `json:"finalColumnTypes"`
	Stats            UnifyStats      `json:"stats"`
}

// View snapshots the current proposal.
func (u *Unifier) View() UnifyView {
	files := make([]PendingFile, len(u.files))
	for i, f := range u.files {
		files[i] = PendingFile{Name: f.Name, Headers: f.Headers, RowCount: len(f.Rows), Warnings: f.Warnings}
	}
	return UnifyView{
		ExistingHeaders:  u.ExistingHeaders(),
		Files:            files,
		Mappings:         u.Mappings(),
		FinalColumnOrder: u.FinalColumnOrder(),
		FinalColumnTypes: u.FinalColumnTypes(),
		Stats:            u.Stats(),
	}
}
