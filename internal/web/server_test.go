package web

import (
	"bytes"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/JonMunkholm/csvutils/internal/config"
	"github.com/JonMunkholm/csvutils/internal/core"
)

type upload struct {
	name    string
	content string
}

func testConfig() *config.Config {
	return &config.Config{
		Server:    config.ServerConfig{Port: 8080, RequestTimeout: 5 * time.Second, ShutdownTimeout: time.Second},
		Upload:    config.UploadConfig{MaxFileSize: 1 << 20, MaxFiles: 3, MaxWaitTime: 20 * time.Millisecond},
		Inference: config.InferenceConfig{SampleRows: 100, UnifySampleRows: 5, MinConfidence: 0.6},
		Profile:   config.ProfileConfig{Store: "memory"},
		Logging:   config.LoggingConfig{Level: "info", Format: "text"},
	}
}

func newTestServer(t *testing.T) (*Server, *core.ImportGate) {
	t.Helper()
	cfg := testConfig()
	gate := core.NewImportGate(cfg.Upload.MaxWaitTime)
	ws := core.NewWorkspace(core.NewMemoryProfiles())
	return NewServer(ws, gate, cfg), gate
}

func multipartBody(t *testing.T, files ...upload) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, f := range files {
		part, err := mw.CreateFormFile("file", f.name)
		if err != nil {
			t.Fatalf("CreateFormFile: %v", err)
		}
		part.Write([]byte(f.content))
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

func doImport(t *testing.T, s *Server, mode string, files ...upload) *httptest.ResponseRecorder {
	t.Helper()
	body, contentType := multipartBody(t, files...)
	req := httptest.NewRequest(http.MethodPost, "/api/import?mode="+mode, body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func doJSON(t *testing.T, s *Server, method, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	if payload != nil {
		if err := json.NewEncoder(&body).Encode(payload); err != nil {
			t.Fatalf("encode payload: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, rec.Body.String())
	}
	return v
}

const salesCSV = "id,amount\n1,10\n2,20.5\n3,\"1,000\"\n"

func TestImport_ReviewConfirmThenCachedCommit(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doImport(t, s, "replace", upload{"sales.csv", salesCSV})
	if rec.Code != http.StatusOK {
		t.Fatalf("import status = %d, body %s", rec.Code, rec.Body.String())
	}
	res := decode[core.ImportResult](t, rec)
	if res.Status != core.StatusReview {
		t.Fatalf("Status = %q, want review", res.Status)
	}

	rec = doJSON(t, s, http.MethodPost, "/api/review/type", map[string]string{"column": "id", "type": "text"})
	if rec.Code != http.StatusOK {
		t.Fatalf("review type status = %d, body %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, s, http.MethodPost, "/api/review/confirm", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("confirm status = %d, body %s", rec.Code, rec.Body.String())
	}
	if res := decode[core.ImportResult](t, rec); res.RowsAdded != 3 {
		t.Errorf("RowsAdded = %d, want 3", res.RowsAdded)
	}

	rec = doJSON(t, s, http.MethodGet, "/api/dataset", nil)
	ds := decode[DatasetResponse](t, rec)
	if ds.TotalRows != 3 {
		t.Errorf("TotalRows = %d, want 3", ds.TotalRows)
	}
	if ds.Types["id"] != core.TypeText {
		t.Errorf("id type = %q, want text", ds.Types["id"])
	}
	if got := ds.Totals["amount"]; got != 1030.5 {
		t.Errorf("amount total = %v, want 1030.5", got)
	}

	// The confirmed profile lets the same layout commit without review.
	rec = doImport(t, s, "replace", upload{"sales2.csv", salesCSV})
	res = decode[core.ImportResult](t, rec)
	if res.Status != core.StatusCommitted {
		t.Fatalf("second import Status = %q, want committed", res.Status)
	}
}

func TestImport_AppendUnify(t *testing.T) {
	s, _ := newTestServer(t)

	doImport(t, s, "replace", upload{"sales.csv", salesCSV})
	doJSON(t, s, http.MethodPost, "/api/review/confirm", nil)

	rec := doImport(t, s, "append", upload{"more.csv", "ID,amount,note\n4,5,late\n"})
	res := decode[core.ImportResult](t, rec)
	if res.Status != core.StatusUnify {
		t.Fatalf("Status = %q, want unify", res.Status)
	}
	if res.Unify.Stats.NewColumnsCreated != 1 {
		t.Errorf("NewColumnsCreated = %d, want 1", res.Unify.Stats.NewColumnsCreated)
	}

	rec = doJSON(t, s, http.MethodGet, "/api/unify", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("unify state status = %d", rec.Code)
	}

	rec = doJSON(t, s, http.MethodPost, "/api/unify/mapping", map[string]any{"source": "note", "target": "missing"})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("unknown target status = %d, want 422", rec.Code)
	}
	if e := decode[ErrorResponse](t, rec); e.Code != core.CodeUnknownColumn {
		t.Errorf("code = %q, want %s", e.Code, core.CodeUnknownColumn)
	}

	rec = doJSON(t, s, http.MethodPost, "/api/unify/type", map[string]string{"column": "note", "type": "text"})
	if rec.Code != http.StatusOK {
		t.Fatalf("unify type status = %d, body %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, s, http.MethodPost, "/api/unify/confirm", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("unify confirm status = %d, body %s", rec.Code, rec.Body.String())
	}

	ds := decode[DatasetResponse](t, doJSON(t, s, http.MethodGet, "/api/dataset", nil))
	if len(ds.Headers) != 3 || ds.Headers[2] != "note" {
		t.Errorf("Headers = %v, want [id amount note]", ds.Headers)
	}
	if ds.TotalRows != 4 {
		t.Errorf("TotalRows = %d, want 4", ds.TotalRows)
	}
}

func TestImport_Errors(t *testing.T) {
	tests := []struct {
		name       string
		mode       string
		files      []upload
		wantStatus int
		wantCode   string
	}{
		{"no file", "replace", nil, http.StatusBadRequest, "FILE003"},
		{"bad mode", "merge", []upload{{"a.csv", salesCSV}}, http.StatusBadRequest, "REQ002"},
		{"too many files", "replace", []upload{{"a.csv", "x\n1\n"}, {"b.csv", "x\n1\n"}, {"c.csv", "x\n1\n"}, {"d.csv", "x\n1\n"}}, http.StatusBadRequest, "FILE005"},
		{"no headers", "replace", []upload{{"empty.csv", ""}}, http.StatusUnprocessableEntity, ""},
		{"schema mismatch", "replace", []upload{{"a.csv", "x\n1\n"}, {"b.csv", "y\n1\n"}}, http.StatusUnprocessableEntity, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newTestServer(t)
			rec := doImport(t, s, tt.mode, tt.files...)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if tt.wantCode != "" {
				if e := decode[ErrorResponse](t, rec); e.Code != tt.wantCode {
					t.Errorf("code = %q, want %q", e.Code, tt.wantCode)
				}
				return
			}
			if res := decode[core.ImportResult](t, rec); res.Status != core.StatusError || res.Error == nil {
				t.Errorf("result = %+v, want an error status", res)
			}
		})
	}
}

func TestImport_Busy(t *testing.T) {
	s, gate := newTestServer(t)
	if !gate.TryAcquire() {
		t.Fatal("TryAcquire failed on an idle gate")
	}
	defer gate.Release()

	rec := doImport(t, s, "replace", upload{"sales.csv", salesCSV})
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	if e := decode[ErrorResponse](t, rec); e.Code != core.CodeImportBusy {
		t.Errorf("code = %q, want %s", e.Code, core.CodeImportBusy)
	}
}

func TestNothingPending(t *testing.T) {
	s, _ := newTestServer(t)
	for _, path := range []string{"/api/review/confirm", "/api/review/cancel", "/api/unify/confirm", "/api/unify/reset"} {
		t.Run(path, func(t *testing.T) {
			rec := doJSON(t, s, http.MethodPost, path, nil)
			if rec.Code != http.StatusConflict {
				t.Fatalf("status = %d, want 409", rec.Code)
			}
			if e := decode[ErrorResponse](t, rec); e.Code != core.CodeNothingPending {
				t.Errorf("code = %q, want %s", e.Code, core.CodeNothingPending)
			}
		})
	}
}

func TestDatasetSearchAndExport(t *testing.T) {
	s, _ := newTestServer(t)
	doImport(t, s, "replace", upload{"people.csv", "name,city,score\nAnn,Oslo,3\nBo,Bergen,4\nCy,oslo,5\n"})
	doJSON(t, s, http.MethodPost, "/api/review/confirm", nil)

	ds := decode[DatasetResponse](t, doJSON(t, s, http.MethodGet, "/api/dataset?q=OSLO&cols=city", nil))
	if ds.Matched != 2 || ds.TotalRows != 3 {
		t.Errorf("Matched/TotalRows = %d/%d, want 2/3", ds.Matched, ds.TotalRows)
	}
	if ds.Totals["score"] != 8 {
		t.Errorf("score total = %v, want 8", ds.Totals["score"])
	}

	rec := doJSON(t, s, http.MethodGet, "/api/export?q=bergen", nil)
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Errorf("Content-Type = %q", ct)
	}
	if got, want := rec.Body.String(), "name,city,score\nBo,Bergen,4\n"; got != want {
		t.Errorf("export = %q, want %q", got, want)
	}
}

// brokenWriter fails every body write and keeps what was attempted.
type brokenWriter struct {
	header   http.Header
	status   int
	attempts []string
}

func (b *brokenWriter) Header() http.Header { return b.header }

func (b *brokenWriter) WriteHeader(status int) { b.status = status }

func (b *brokenWriter) Write(p []byte) (int, error) {
	b.attempts = append(b.attempts, string(p))
	return 0, errors.New("connection reset")
}

func TestExport_WriteFailureDoesNotAppendError(t *testing.T) {
	s, _ := newTestServer(t)
	doImport(t, s, "replace", upload{"sales.csv", salesCSV})
	doJSON(t, s, http.MethodPost, "/api/review/confirm", nil)

	w := &brokenWriter{header: make(http.Header)}
	s.handleExport(w, httptest.NewRequest(http.MethodGet, "/api/export", nil))

	if len(w.attempts) != 1 {
		t.Fatalf("write attempts = %d, want 1 (the CSV flush)", len(w.attempts))
	}
	if !strings.HasPrefix(w.attempts[0], "id,amount\n") {
		t.Errorf("attempted body = %q, want CSV", w.attempts[0])
	}
	if w.status != 0 && w.status != http.StatusOK {
		t.Errorf("status = %d, want none or 200", w.status)
	}
}

func TestColumnEditsAndRemoval(t *testing.T) {
	s, _ := newTestServer(t)
	doImport(t, s, "replace", upload{"sales.csv", salesCSV})
	doJSON(t, s, http.MethodPost, "/api/review/confirm", nil)

	rec := doJSON(t, s, http.MethodPost, "/api/columns", core.ColumnEdit{
		Headers: []string{"total", "id"},
		Types:   core.TypeMap{"total": core.TypeNumber, "id": core.TypeText},
		Renames: map[string]string{"amount": "total"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("edit columns status = %d, body %s", rec.Code, rec.Body.String())
	}
	ds := decode[DatasetResponse](t, rec)
	if ds.Headers[0] != "total" || ds.Rows[0].Get("total") != "10" {
		t.Errorf("edit not applied: headers %v, first row %v", ds.Headers, ds.Rows[0].Cells)
	}

	rec = doJSON(t, s, http.MethodPost, "/api/columns", core.ColumnEdit{Headers: []string{"total", "total"}})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("duplicate edit status = %d, want 422", rec.Code)
	}

	rec = doJSON(t, s, http.MethodPost, "/api/columns/type", map[string]string{"column": "id", "type": "date"})
	if e := decode[ErrorResponse](t, rec); e.Code != "REQ001" {
		t.Errorf("bad type code = %q, want REQ001", e.Code)
	}

	rec = doJSON(t, s, http.MethodPost, "/api/rows/delete", map[string][]string{"ids": {ds.Rows[0].ID, "nope"}})
	if got := decode[map[string]int](t, rec); got["removed"] != 1 {
		t.Errorf("removed = %d, want 1", got["removed"])
	}

	rec = doJSON(t, s, http.MethodDelete, "/api/files/unknown", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown file status = %d, want 404", rec.Code)
	}

	rec = doJSON(t, s, http.MethodDelete, "/api/files/"+ds.Files[0].ID, nil)
	if got := decode[map[string]int](t, rec); got["removed"] != 2 {
		t.Errorf("removed = %d, want 2", got["removed"])
	}
	ds = decode[DatasetResponse](t, doJSON(t, s, http.MethodGet, "/api/dataset", nil))
	if len(ds.Headers) != 0 {
		t.Errorf("Headers = %v, want none after last file removed", ds.Headers)
	}
}

func TestSuggestions(t *testing.T) {
	s, _ := newTestServer(t)
	doImport(t, s, "replace", upload{"people.csv", "Name,Email\nAnn,a@x\n"})
	doJSON(t, s, http.MethodPost, "/api/review/confirm", nil)

	rec := doJSON(t, s, http.MethodGet, "/api/suggestions?columns=name,email_address,zip", nil)
	got := decode[[]SuggestionResponse](t, rec)
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	if got[0].Match == nil || got[0].Match.Column != "Name" || got[0].Confidence != "95%" {
		t.Errorf("name suggestion = %+v", got[0])
	}
	if got[1].Match == nil || got[1].Match.Column != "Email" {
		t.Errorf("email_address suggestion = %+v", got[1])
	}
	if got[2].Match != nil {
		t.Errorf("zip suggestion = %+v, want none", got[2].Match)
	}
}

func TestIndexPage(t *testing.T) {
	s, _ := newTestServer(t)
	doImport(t, s, "replace", upload{"sales.csv", salesCSV})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "Type review pending") {
		t.Errorf("page missing pending banner")
	}
	if rec.Header().Get("X-Frame-Options") != "DENY" {
		t.Errorf("security headers missing")
	}
}

func TestRespondError_HTMX(t *testing.T) {
	s, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/api/review/confirm", nil)
	req.Header.Set("HX-Request", "true")
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type = %q, want html", ct)
	}
	if !strings.Contains(rec.Body.String(), "Code: "+core.CodeNothingPending) {
		t.Errorf("fragment = %s", rec.Body.String())
	}
}

func TestRateLimiter(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rl := newRateLimiter(2, time.Minute)
	rl.now = func() time.Time { return now }

	if !rl.allow("1.1.1.1") || !rl.allow("1.1.1.1") {
		t.Fatal("first two requests should pass")
	}
	if rl.allow("1.1.1.1") {
		t.Error("third request in the window should be limited")
	}
	if !rl.allow("2.2.2.2") {
		t.Error("other clients have their own budget")
	}

	now = now.Add(61 * time.Second)
	if !rl.allow("1.1.1.1") {
		t.Error("a new window should reset the budget")
	}
}

func TestAPIKeyRequired(t *testing.T) {
	cfg := testConfig()
	cfg.Security = config.SecurityConfig{RequireAPIKey: true, APIKeys: []string{"secret"}}
	s := NewServer(core.NewWorkspace(nil), core.NewImportGate(time.Second), cfg)

	rec := doJSON(t, s, http.MethodGet, "/api/dataset", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status without key = %d, want 401", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/dataset", nil)
	req.Header.Set("X-API-Key", "secret")
	rec = httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("status with key = %d, want 200", rec.Code)
	}
}
