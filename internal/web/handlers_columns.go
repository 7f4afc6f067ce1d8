package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/csvutils/internal/core"
)

// handleEditColumns applies the column editor: renames, order and types.
func (s *Server) handleEditColumns(w http.ResponseWriter, r *http.Request) {
	var edit core.ColumnEdit
	if err := decodeJSON(r, &edit); err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}
	if err := s.ws.EditColumns(r.Context(), edit); err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	s.handleDataset(w, r)
}

// handleColumnType retypes one dataset column.
func (s *Server) handleColumnType(w http.ResponseWriter, r *http.Request) {
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
	if err := s.ws.SetColumnType(r.Context(), req.Column, t); err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	s.handleDataset(w, r)
}

type deleteRowsRequest struct {
	IDs []string `json:"ids"`
}

// handleDeleteRows removes rows by id.
func (s *Server) handleDeleteRows(w http.ResponseWriter, r *http.Request) {
	var req deleteRowsRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}
	removed := s.ws.RemoveRows(r.Context(), req.IDs)
	writeJSON(w, http.StatusOK, map[string]int{"removed": removed})
}

// handleDeleteFile removes a source file and every row it contributed.
func (s *Server) handleDeleteFile(w http.ResponseWriter, r *http.Request) {
	removed, err := s.ws.RemoveFile(r.Context(), chi.URLParam(r, "fileID"))
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"removed": removed})
}
