// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kuntrapaku/subway-social-link-sub000/internal/catalog"
)

type mediaRequest struct {
	SourceURL  string `json:"sourceUrl"`
	StorageKey string `json:"storageKey"`
}

func (s *Server) catalogAvailable(w http.ResponseWriter, r *http.Request) bool {
	if s.deps.Catalog == nil {
		writeProblem(w, r, probUnavailable, "media catalog is not configured", nil)
		return false
	}
	return true
}

// handleGetMedia resolves an item to a playable durable reference.
func (s *Server) handleGetMedia(w http.ResponseWriter, r *http.Request) {
	if !s.catalogAvailable(w, r) {
		return
	}
	res, err := s.deps.Catalog.Resolve(r.Context(), chi.URLParam(r, "itemID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handlePutMedia(w http.ResponseWriter, r *http.Request) {
	if !s.catalogAvailable(w, r) {
		return
	}
	var req mediaRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeProblem(w, r, probBadRequest, err.Error(), nil)
		return
	}
	rec, err := s.deps.Catalog.Put(r.Context(), catalog.Record{
		ItemID:     chi.URLParam(r, "itemID"),
		SourceURL:  req.SourceURL,
		StorageKey: req.StorageKey,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleDeleteMedia(w http.ResponseWriter, r *http.Request) {
	if !s.catalogAvailable(w, r) {
		return
	}
	if err := s.deps.Catalog.Delete(r.Context(), chi.URLParam(r, "itemID")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
