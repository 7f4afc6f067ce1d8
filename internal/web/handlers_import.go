package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/JonMunkholm/csvutils/internal/core"
	"github.com/JonMunkholm/csvutils/internal/csvio"
)

// multipartMemory is how much of a multipart form is buffered in memory;
// the rest spills to temp files.
const multipartMemory = 32 << 20

var errNoFile = errors.New("no file provided")

// decodeJSON reads a JSON request body into v.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// handleImport parses the uploaded files and routes them through the workspace.
// One batch runs at a time; a second waits for the import gate.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	mode, err := core.ParseImportMode(r.URL.Query().Get("mode"))
	if err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}

	limit := s.cfg.Upload.MaxFileSize * int64(s.cfg.Upload.MaxFiles)
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		s.respondError(w, r, fmt.Errorf("read upload: %w", err), 0)
		return
	}
	defer r.MultipartForm.RemoveAll()

	uploads := r.MultipartForm.File["file"]
	if len(uploads) == 0 {
		s.respondError(w, r, errNoFile, http.StatusBadRequest)
		return
	}
	if len(uploads) > s.cfg.Upload.MaxFiles {
		s.respondError(w, r, fmt.Errorf("too many files: %d (max %d)", len(uploads), s.cfg.Upload.MaxFiles), http.StatusBadRequest)
		return
	}
	for _, fh := range uploads {
		if fh.Size > s.cfg.Upload.MaxFileSize {
			s.respondError(w, r, fmt.Errorf("file too large: %s (%d bytes)", fh.Filename, fh.Size), http.StatusRequestEntityTooLarge)
			return
		}
	}

	if err := s.gate.Acquire(r.Context()); err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	defer s.gate.Release()

	files, err := csvio.ParseBatch(r.Context(), uploadSources(uploads))
	if err != nil {
		s.respondError(w, r, err, http.StatusRequestTimeout)
		return
	}

	res := s.ws.Import(r.Context(), mode, files)
	status := http.StatusOK
	if res.Status == core.StatusError {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, res)
}

// uploadSources adapts multipart file headers to batch parser sources.
func uploadSources(uploads []*multipart.FileHeader) []csvio.Source {
	sources := make([]csvio.Source, len(uploads))
	for i, fh := range uploads {
		sources[i] = csvio.Source{
			Name: fh.Filename,
			Size: fh.Size,
			Open: func() (io.ReadCloser, error) { return fh.Open() },
		}
	}
	return sources
}

type columnTypeRequest struct {
	Column string `json:"column"`
	Type   string `json:"type"`
}

func (req columnTypeRequest) parse() (core.ColumnType, error) {
	return core.ParseColumnType(req.Type)
}

// handleReviewType changes a column type in the staged review.
func (s *Server) handleReviewType(w http.ResponseWriter, r *http.Request) {
	var req columnTypeRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}
	t, err := req.parse()
	if err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}
	if err := s.ws.SetStagedType(req.Column, t); err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, s.ws.Pending())
}

// handleReviewConfirm commits the staged review.
func (s *Server) handleReviewConfirm(w http.ResponseWriter, r *http.Request) {
	res, err := s.ws.ConfirmStaged(r.Context())
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleReviewCancel drops the staged review.
func (s *Server) handleReviewCancel(w http.ResponseWriter, r *http.Request) {
	if err := s.ws.CancelStaged(); err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleUnifyState returns the pending reconciliation.
func (s *Server) handleUnifyState(w http.ResponseWriter, r *http.Request) {
	view, err := s.ws.UnifyState()
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// editUnify runs fn against the pending Unifier and answers with its new view.
func (s *Server) editUnify(w http.ResponseWriter, r *http.Request, fn func(*core.Unifier) error) {
	view, err := s.ws.EditUnify(fn)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

type mappingRequest struct {
	Source string  `json:"source"`
	Target *string `json:"target"`
}

// handleUnifyMapping points a source column at an existing column, or at
// itself as a new column when target is null.
func (s *Server) handleUnifyMapping(w http.ResponseWriter, r *http.Request) {
	var req mappingRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}
	s.editUnify(w, r, func(u *core.Unifier) error {
		return u.SetMappingTarget(req.Source, req.Target)
	})
}

// handleUnifyType sets the type of a unified column.
func (s *Server) handleUnifyType(w http.ResponseWriter, r *http.Request) {
	var req columnTypeRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}
	t, err := req.parse()
	if err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}
	s.editUnify(w, r, func(u *core.Unifier) error {
		return u.SetColumnType(req.Column, t)
	})
}

type orderRequest struct {
	Order []string `json:"order"`
}

// handleUnifyOrder pins the final column order.
func (s *Server) handleUnifyOrder(w http.ResponseWriter, r *http.Request) {
	var req orderRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}
	s.editUnify(w, r, func(u *core.Unifier) error {
		return u.SetFinalColumnOrder(req.Order)
	})
}

// handleUnifyReset discards manual edits and rebuilds the suggestions.
func (s *Server) handleUnifyReset(w http.ResponseWriter, r *http.Request) {
	s.editUnify(w, r, func(u *core.Unifier) error {
		u.Reset()
		return nil
	})
}

// handleUnifyConfirm commits the reconciliation.
func (s *Server) handleUnifyConfirm(w http.ResponseWriter, r *http.Request) {
	res, err := s.ws.ConfirmUnify(r.Context())
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleUnifyCancel drops the reconciliation.
func (s *Server) handleUnifyCancel(w http.ResponseWriter, r *http.Request) {
	if err := s.ws.CancelUnify(); err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SuggestionResponse is one entry of GET /api/suggestions.
type SuggestionResponse struct {
	Column     string            `json:"column"`
	Match      *core.ColumnMatch `json:"match"`
	Confidence string            `json:"confidence,omitempty"`
}

// handleSuggestions proposes existing columns for ?columns=a,b,c.
func (s *Server) handleSuggestions(w http.ResponseWriter, r *http.Request) {
	cols := parseList(r.URL.Query().Get("columns"))
	ds := s.ws.Dataset()
	suggestions := core.GenerateMappingSuggestions(cols, ds.Headers, s.cfg.Inference.MinConfidence)

	out := make([]SuggestionResponse, len(cols))
	for i, c := range cols {
		out[i] = SuggestionResponse{Column: c, Match: suggestions[c]}
		if m := suggestions[c]; m != nil {
			out[i].Confidence = core.FormatConfidence(m.Confidence)
		}
	}
	writeJSON(w, http.StatusOK, out)
}
