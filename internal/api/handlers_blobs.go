// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/kuntrapaku/subway-social-link-sub000/internal/blob"
	xglog "github.com/kuntrapaku/subway-social-link-sub000/internal/log"
)

type blobResponse struct {
	Reference string    `json:"reference"`
	Meta      blob.Meta `json:"meta"`
}

func (s *Server) blobsAvailable(w http.ResponseWriter, r *http.Request) bool {
	if s.deps.Blobs == nil {
		writeProblem(w, r, probUnavailable, "blob store is not configured", nil)
		return false
	}
	return true
}

// handlePutBlob stores a viewer-selected file and returns its session-local
// reference. The body is the raw file.
func (s *Server) handlePutBlob(w http.ResponseWriter, r *http.Request) {
	if !s.blobsAvailable(w, r) {
		return
	}
	p := principal(r)
	ref, meta, err := s.deps.Blobs.Put(r.Context(), p.ViewerID, r.Body, r.Header.Get("Content-Type"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/v1/blobs/"+meta.ID)
	writeJSON(w, http.StatusCreated, blobResponse{Reference: ref.Source, Meta: meta})
}

func (s *Server) handleGetBlob(w http.ResponseWriter, r *http.Request) {
	if !s.blobsAvailable(w, r) {
		return
	}
	p := principal(r)
	owner := p.ViewerID
	if p.Admin {
		owner = ""
	}
	rc, meta, err := s.deps.Blobs.Open(r.Context(), s.deps.Blobs.Reference(chi.URLParam(r, "id")), owner)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", meta.ContentType)
	w.Header().Set("Content-Length", strconv.FormatInt(meta.Size, 10))
	w.Header().Set("Cache-Control", "private, no-store")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		logger := xglog.WithComponentFromContext(r.Context(), "api")
		logger.Debug().Err(err).
			Str(xglog.FieldBlobID, meta.ID).Msg("blob download interrupted")
	}
}

func (s *Server) handleDeleteBlob(w http.ResponseWriter, r *http.Request) {
	if !s.blobsAvailable(w, r) {
		return
	}
	ref := s.deps.Blobs.Reference(chi.URLParam(r, "id"))
	meta, err := s.deps.Blobs.Stat(r.Context(), ref)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if p := principal(r); !p.Admin && meta.Owner != p.ViewerID {
		writeError(w, r, blob.ErrForbidden)
		return
	}
	if err := s.deps.Blobs.Release(r.Context(), ref); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
