package web

import (
	"net/http"
	"strings"
	"time"

	"github.com/JonMunkholm/csvutils/internal/core"
	"github.com/JonMunkholm/csvutils/internal/csvio"
	"github.com/JonMunkholm/csvutils/internal/logging"
	"github.com/JonMunkholm/csvutils/internal/web/templates"
)

// DatasetResponse is the JSON form of the workspace dataset.
type DatasetResponse struct {
	Headers   []string           `json:"headers"`
	Types     core.TypeMap       `json:"types"`
	Rows      []core.Row         `json:"rows"`
	Files     []core.SourceFile  `json:"files"`
	Warnings  []string           `json:"warnings"`
	Totals    map[string]float64 `json:"totals"`
	TotalRows int                `json:"totalRows"`
	Matched   int                `json:"matched"`
	Signature string             `json:"signature"`
}

// searchRows applies ?q= and ?cols= to ds. Without cols every column is searched.
func searchRows(r *http.Request, ds *core.Dataset) (string, []core.Row) {
	q := r.URL.Query().Get("q")
	cols := parseList(r.URL.Query().Get("cols"))
	if len(cols) == 0 {
		cols = ds.Headers
	}
	return q, ds.Search(q, cols)
}

// parseList splits a comma-separated query value, dropping blanks.
func parseList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// handleIndex renders the workspace page.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	ds := s.ws.Dataset()
	q, rows := searchRows(r, ds)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	err := templates.DatasetPage(templates.DatasetView{
		Dataset: ds,
		Rows:    rows,
		Totals:  ds.Totals(rows),
		Query:   q,
		Pending: s.ws.Pending(),
		Now:     time.Now(),
	}).Render(r.Context(), w)
	if err != nil {
		s.respondError(w, r, err, http.StatusInternalServerError)
	}
}

// handleDataset returns the dataset, filtered by ?q= over ?cols=.
func (s *Server) handleDataset(w http.ResponseWriter, r *http.Request) {
	ds := s.ws.Dataset()
	_, rows := searchRows(r, ds)

	writeJSON(w, http.StatusOK, DatasetResponse{
		Headers:   ds.Headers,
		Types:     ds.Types,
		Rows:      rows,
		Files:     ds.Files,
		Warnings:  ds.Warnings,
		Totals:    ds.Totals(rows),
		TotalRows: len(ds.Rows),
		Matched:   len(rows),
		Signature: ds.Signature(),
	})
}

// handlePending returns the outstanding review or unification, if any.
func (s *Server) handlePending(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ws.Pending())
}

// handleExport streams the (filtered) dataset as CSV.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	ds := s.ws.Dataset()
	_, rows := searchRows(r, ds)

	filename := "dataset_" + time.Now().Format("20060102_150405") + ".csv"
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)

	if err := csvio.WriteCSV(w, ds.Headers, core.Cells(rows)); err != nil {
		// The download has started; the client sees a truncated file.
		logging.FromContext(r.Context()).Error("export failed", "rows", len(rows), "error", err)
	}
}
