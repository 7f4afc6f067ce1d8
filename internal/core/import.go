package core

// import.go is the workspace: it owns the dataset and turns a parsed batch
// into one of four outcomes.
//
//	error      nothing valid to import, or a replace batch with mixed schemas
//	committed  the batch was applied directly (cached profile or matching append)
//	review     a replace batch waits for the user to confirm column types
//	unify      an append batch with different columns waits for reconciliation
//
// The dataset and the profile cache change only in Import (direct commits),
// ConfirmStaged, ConfirmUnify and the column edit operations.

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/JonMunkholm/csvutils/internal/logging"
	"github.com/google/uuid"
)

// manifestSampleRows is how many stamped rows a SourceFile keeps for preview.
const manifestSampleRows = 5

// ImportStatus is the outcome of Import.
type ImportStatus string

const (
	StatusCommitted ImportStatus = "committed"
	StatusReview    ImportStatus = "review"
	StatusUnify     ImportStatus = "unify"
	StatusError     ImportStatus = "error"
)

// ImportResult describes what happened to a batch.
type ImportResult struct {
	Status    ImportStatus  `json:"status"`
	Error     *ImportError  `json:"error,omitempty"`
	Review    *StagedReview `json:"review,omitempty"`
	Unify     *UnifyView    `json:"unify,omitempty"`
	RowsAdded int           `json:"rowsAdded"`
	Signature string        `json:"signature,omitempty"`
	Warnings  []string      `json:"warnings,omitempty"`
}

func failed(err *ImportError, warnings []string) ImportResult {
	return ImportResult{Status: StatusError, Error: err, Warnings: warnings}
}

// StagedReview is the public view of an import waiting for type review.
type StagedReview struct {
	Mode      ImportMode   `json:"mode"`
	Headers   []string     `json:"headers"`
	Types     TypeMap      `json:"types"`
	Signature string       `json:"signature"`
	Files     []SourceFile `json:"files"`
	RowCount  int          `json:"rowCount"`
}

type stagedImport struct {
	mode     ImportMode
	headers  []string
	types    TypeMap
	rows     []Row
	files    []SourceFile
	warnings []string
}

func (s *stagedImport) view() *StagedReview {
	return &StagedReview{
		Mode:      s.mode,
		Headers:   append([]string(nil), s.headers...),
		Types:     s.types.Clone(),
		Signature: SignatureOf(s.headers),
		Files:     s.files,
		RowCount:  len(s.rows),
	}
}

// Workspace owns one Dataset and its pending import state. It is safe for
// concurrent use; callers that need batches serialized use an ImportGate.
type Workspace struct {
	mu       sync.Mutex
	data     *Dataset
	staged   *stagedImport
	unifier  *Unifier
	profiles ProfileCache

	inferrer  Inferrer
	unifyOpts UnifyOptions
	newID     func() string
	now       func() time.Time
}

// WorkspaceOption configures a Workspace.
type WorkspaceOption func(*Workspace)

// WithInferrer sets the inference used for staged reviews and fast commits.
func WithInferrer(in Inferrer) WorkspaceOption {
	return func(w *Workspace) { w.inferrer = in }
}

// WithUnifyOptions sets the matcher threshold and sampling of the Unifier.
func WithUnifyOptions(o UnifyOptions) WorkspaceOption {
	return func(w *Workspace) { w.unifyOpts = o }
}

// WithIDGenerator replaces the row and file id source.
func WithIDGenerator(fn func() string) WorkspaceOption {
	return func(w *Workspace) { w.newID = fn }
}

// WithClock replaces the time source used for AppendedAt.
func WithClock(fn func() time.Time) WorkspaceOption {
	return func(w *Workspace) { w.now = fn }
}

// NewWorkspace creates an empty workspace. profiles may be nil, in which case
// an in-memory cache is used.
func NewWorkspace(profiles ProfileCache, opts ...WorkspaceOption) *Workspace {
	if profiles == nil {
		profiles = NewMemoryProfiles()
	}
	w := &Workspace{
		data:     NewDataset(),
		profiles: profiles,
		newID:    uuid.NewString,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Dataset returns a copy of the current dataset.
func (w *Workspace) Dataset() *Dataset {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.data.Clone()
}

// PendingState reports which confirmation, if any, is outstanding.
type PendingState struct {
	Review *StagedReview `json:"review,omitempty"`
	Unify  *UnifyView    `json:"unify,omitempty"`
}

// Pending returns the outstanding review or unification.
func (w *Workspace) Pending() PendingState {
	w.mu.Lock()
	defer w.mu.Unlock()
	var p PendingState
	if w.staged != nil {
		p.Review = w.staged.view()
	}
	if w.unifier != nil {
		v := w.unifier.View()
		p.Unify = &v
	}
	return p
}

// Import routes a parsed batch. Files without headers are excluded; their
// warnings are still reported. A new batch abandons any pending review or
// unification.
func (w *Workspace) Import(ctx context.Context, mode ImportMode, files []ParsedFile) ImportResult {
	w.mu.Lock()
	defer w.mu.Unlock()

	logger := logging.WithFields(ctx,
		"batch_id", w.newID(),
		"mode", mode,
		"files", len(files),
	)

	if w.staged != nil || w.unifier != nil {
		logger.Info("discarding pending import")
		w.staged, w.unifier = nil, nil
	}

	var valid []ParsedFile
	var warnings []string
	for _, f := range files {
		warnings = append(warnings, f.Warnings...)
		if len(f.SkippedRows) > 0 {
			logger.Warn("skipped rows due to schema mismatch",
				"file", f.Name,
				"count", len(f.SkippedRows),
			)
		}
		if len(f.Headers) > 0 {
			valid = append(valid, f)
		}
	}

	if len(valid) == 0 {
		logger.Warn("import rejected", "reason", "no valid headers")
		return failed(noValidHeadersError(warnings), warnings)
	}

	if mode == ModeReplace || w.data.Empty() {
		return w.importFresh(ctx, logger, mode, valid, warnings)
	}

	headers := valid[0].Headers
	if _, mismatch := firstMismatch(valid, headers); !mismatch && SameSchema(headers, w.data.Headers) {
		rows, manifest := w.stamp(valid)
		w.data.Rows = append(w.data.Rows, rows...)
		w.data.Files = append(w.data.Files, manifest...)
		w.data.Warnings = append(w.data.Warnings, warnings...)
		logger.Info("batch appended", "rows", len(rows))
		return ImportResult{
			Status:    StatusCommitted,
			RowsAdded: len(rows),
			Signature: w.data.Signature(),
			Warnings:  warnings,
		}
	}

	w.unifier = NewUnifier(w.data.Headers, w.data.Types, valid, w.unifyOpts)
	view := w.unifier.View()
	logger.Info("batch needs reconciliation",
		"existing_columns", len(w.data.Headers),
		"incoming_columns", view.Stats.TotalNewColumns,
	)
	return ImportResult{Status: StatusUnify, Unify: &view, Warnings: warnings}
}

// importFresh handles replace mode and the first load into an empty dataset.
func (w *Workspace) importFresh(ctx context.Context, logger *slog.Logger, mode ImportMode, valid []ParsedFile, warnings []string) ImportResult {
	headers := valid[0].Headers
	if bad, mismatch := firstMismatch(valid, headers); mismatch {
		logger.Warn("import rejected", "reason", "schema mismatch", "file", bad.Name)
		return failed(schemaMismatchError("Expected", headers, bad.Headers), warnings)
	}

	rows, manifest := w.stamp(valid)
	sig := SignatureOf(headers)

	cached, ok, err := w.profiles.Get(ctx, sig)
	if err != nil {
		logger.Warn("profile lookup failed", "error", err)
		warnings = append(warnings, fmt.Sprintf("profile store: %v", err))
	}

	if ok {
		types := w.inferrer.Infer(headers, Cells(rows), cached)
		w.data = &Dataset{
			Headers:  append([]string(nil), headers...),
			Rows:     rows,
			Warnings: warnings,
			Files:    manifest,
			Types:    types,
		}
		logger.Info("batch committed with cached profile", "rows", len(rows))
		return ImportResult{
			Status:    StatusCommitted,
			RowsAdded: len(rows),
			Signature: sig,
			Warnings:  warnings,
		}
	}

	w.staged = &stagedImport{
		mode:     mode,
		headers:  append([]string(nil), headers...),
		types:    w.inferrer.Infer(headers, Cells(rows), nil),
		rows:     rows,
		files:    manifest,
		warnings: warnings,
	}
	logger.Info("batch staged for type review", "rows", len(rows))
	return ImportResult{Status: StatusReview, Review: w.staged.view(), Signature: sig, Warnings: warnings}
}

// SetStagedType changes one column's type in the pending review.
func (w *Workspace) SetStagedType(column string, t ColumnType) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.staged == nil {
		return ErrNoPending
	}
	if !contains(w.staged.headers, column) {
		return fmt.Errorf("column %q: %w", column, ErrUnknownColumn)
	}
	w.staged.types[column] = t
	return nil
}

// ConfirmStaged commits the pending review and remembers its types under the
// batch's signature: replace overwrites the stored profile, append merges
// into it.
func (w *Workspace) ConfirmStaged(ctx context.Context) (ImportResult, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.staged == nil {
		return ImportResult{}, ErrNoPending
	}
	s := w.staged
	w.staged = nil

	w.data = &Dataset{
		Headers:  s.headers,
		Rows:     s.rows,
		Warnings: s.warnings,
		Files:    s.files,
		Types:    s.types.Clone(),
	}

	sig := SignatureOf(s.headers)
	warnings := s.warnings
	if err := w.storeProfile(ctx, sig, s.types, s.mode == ModeAppend); err != nil {
		warnings = append(warnings, err.Error())
	}

	logging.FromContext(ctx).Info("type review confirmed",
		"rows", len(s.rows),
		"columns", len(s.headers),
	)
	return ImportResult{
		Status:    StatusCommitted,
		RowsAdded: len(s.rows),
		Signature: sig,
		Warnings:  warnings,
	}, nil
}

// CancelStaged drops the pending review.
func (w *Workspace) CancelStaged() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.staged == nil {
		return ErrNoPending
	}
	w.staged = nil
	return nil
}

// UnifyState returns the current reconciliation proposal.
func (w *Workspace) UnifyState() (UnifyView, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.unifier == nil {
		return UnifyView{}, ErrNoPending
	}
	return w.unifier.View(), nil
}

// EditUnify applies fn to the pending Unifier and returns the updated view.
func (w *Workspace) EditUnify(fn func(*Unifier) error) (UnifyView, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.unifier == nil {
		return UnifyView{}, ErrNoPending
	}
	if err := fn(w.unifier); err != nil {
		return w.unifier.View(), err
	}
	return w.unifier.View(), nil
}

// ConfirmUnify commits the reconciliation. The unified types are merged into
// the profile stored under the new signature.
func (w *Workspace) ConfirmUnify(ctx context.Context) (ImportResult, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.unifier == nil {
		return ImportResult{}, ErrNoPending
	}
	u := w.unifier
	w.unifier = nil

	before := len(w.data.Rows)
	w.data = u.Commit(w.data, w.newID, w.now())
	added := len(w.data.Rows) - before

	sig := w.data.Signature()
	var warnings []string
	for _, f := range u.Files() {
		warnings = append(warnings, f.Warnings...)
	}
	if err := w.storeProfile(ctx, sig, w.data.Types, true); err != nil {
		warnings = append(warnings, err.Error())
	}

	logging.FromContext(ctx).Info("schema unification confirmed",
		"rows", added,
		"columns", len(w.data.Headers),
	)
	return ImportResult{
		Status:    StatusCommitted,
		RowsAdded: added,
		Signature: sig,
		Warnings:  warnings,
	}, nil
}

// CancelUnify drops the pending reconciliation.
func (w *Workspace) CancelUnify() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.unifier == nil {
		return ErrNoPending
	}
	w.unifier = nil
	return nil
}

// EditColumns renames, reorders and retypes the dataset's columns. The new
// types replace the profile stored under the new signature.
func (w *Workspace) EditColumns(ctx context.Context, edit ColumnEdit) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	next := w.data.Clone()
	if err := next.ApplyColumnEdit(edit); err != nil {
		return err
	}
	w.data = next

	if err := w.storeProfile(ctx, next.Signature(), next.Types, false); err != nil {
		w.data.Warnings = append(w.data.Warnings, err.Error())
	}
	return nil
}

// SetColumnType changes one dataset column's type and merges the dataset's
// full type map into the profile for the current signature.
func (w *Workspace) SetColumnType(ctx context.Context, column string, t ColumnType) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.data.HasColumn(column) {
		return fmt.Errorf("column %q: %w", column, ErrUnknownColumn)
	}
	w.data.Types[column] = t
	if err := w.storeProfile(ctx, w.data.Signature(), w.data.Types, true); err != nil {
		w.data.Warnings = append(w.data.Warnings, err.Error())
	}
	return nil
}

// RemoveFile drops a source file and its rows.
func (w *Workspace) RemoveFile(ctx context.Context, fileID string) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	removed, err := w.data.RemoveFile(fileID)
	if err != nil {
		return 0, err
	}
	logging.FromContext(ctx).Info("file removed", "file_id", fileID, "rows", removed)
	return removed, nil
}

// RemoveRows deletes rows by id.
func (w *Workspace) RemoveRows(ctx context.Context, ids []string) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	removed := w.data.RemoveRows(ids)
	logging.FromContext(ctx).Info("rows removed", "requested", len(ids), "removed", removed)
	return removed
}

// storeProfile writes types under sig. With merge set, keys already stored
// and absent from types are kept. Failures are logged and returned as a
// warning-ready error; they never undo a commit.
func (w *Workspace) storeProfile(ctx context.Context, sig string, types TypeMap, merge bool) error {
	logger := logging.FromContext(ctx)
	profile := types.Clone()
	if merge {
		prev, ok, err := w.profiles.Get(ctx, sig)
		if err != nil {
			logger.Warn("profile lookup failed", "error", err)
			return fmt.Errorf("profile store: %w", err)
		}
		if ok {
			merged := prev.Clone()
			for k, v := range profile {
				merged[k] = v
			}
			profile = merged
		}
	}
	if err := w.profiles.Put(ctx, sig, profile); err != nil {
		logger.Warn("profile save failed", "error", err)
		return fmt.Errorf("profile store: %w", err)
	}
	return nil
}

// stamp assigns a file id to every file and a row id to every row.
func (w *Workspace) stamp(files []ParsedFile) ([]Row, []SourceFile) {
	now := w.now()
	var rows []Row
	manifest := make([]SourceFile, 0, len(files))
	for _, f := range files {
		fileID := w.newID()
		start := len(rows)
		for _, rec := range f.Rows {
			rows = append(rows, StampRow(rec, fileID, f.Name, w.newID))
		}
		manifest = append(manifest, sourceFileFor(fileID, f, rows[start:], now))
	}
	return rows, manifest
}

// StampRow wraps a parsed record with a fresh row id and its file provenance.
func StampRow(rec Record, fileID, fileName string, newID func() string) Row {
	cells := make(Record, len(rec))
	for k, v := range rec {
		cells[k] = v
	}
	return Row{ID: newID(), FileID: fileID, FileName: fileName, Cells: cells}
}

func sourceFileFor(id string, f ParsedFile, rows []Row, appendedAt time.Time) SourceFile {
	n := min(len(rows), manifestSampleRows)
	return SourceFile{
		ID:              id,
		Name:            f.Name,
		Size:            f.Size,
		LastModified:    f.LastModified,
		AppendedAt:      appendedAt,
		Headers:         append([]string(nil), f.Headers...),
		RowCount:        len(rows),
		SkippedCount:    len(f.SkippedRows),
		Warnings:        f.Warnings,
		SchemaSignature: SignatureOf(f.Headers),
		SampleRows:      append([]Row(nil), rows[:n]...),
	}
}
