package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/JonMunkholm/labdigest/internal/core"
	"github.com/JonMunkholm/labdigest/internal/logging"
	"github.com/go-chi/chi/v5"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleListArtifacts lists artifacts, optionally filtered by ?kind=.
func (s *Server) handleListArtifacts(w http.ResponseWriter, r *http.Request) {
	var kind core.ArtifactKind
	if q := r.URL.Query().Get("kind"); q != "" {
		k, err := core.ParseArtifactKind(q)
		if err != nil {
			respondError(w, r, fmt.Errorf("%w: %v", errBadRequest, err))
			return
		}
		kind = k
	}

	artifacts, err := s.app.Service.ListArtifacts(r.Context(), kind)
	if err != nil {
		respondError(w, r, err)
		return
	}
	out := make([]artifactView, len(artifacts))
	for i, a := range artifacts {
		out[i] = artifactView{Artifact: a, State: a.State()}
	}
	writeJSON(w, http.StatusOK, out)
}

// artifactView adds the derived processing state to a listed artifact.
type artifactView struct {
	core.Artifact
	State core.State `json:"state"`
}

// handleUpload stores the multipart "file" field as an artifact of the
// kind named in the path. Digests are produced by the pipeline and cannot
// be uploaded.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	kind, err := core.ParseArtifactKind(chi.URLParam(r, "kind"))
	if err != nil {
		respondError(w, r, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	if kind == core.KindDigest {
		respondError(w, r, fmt.Errorf("%w: digests cannot be uploaded", errBadRequest))
		return
	}

	maxSize := s.cfg.Upload.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize)
	if err := r.ParseMultipartForm(maxSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, r, fmt.Errorf("file too large: %w", err))
			return
		}
		respondError(w, r, fmt.Errorf("%w: invalid multipart form: %v", errBadRequest, err))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, r, fmt.Errorf("%w: no file provided", errBadRequest))
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		respondError(w, r, fmt.Errorf("read upload: %w", err))
		return
	}

	ctx := core.ContextWithRequester(r.Context(), r.RemoteAddr, r.UserAgent())
	a, err := s.app.Service.Ingest(ctx, header.Filename, kind, content)
	if err != nil {
		respondError(w, r, err)
		return
	}
	logging.FromContext(r.Context()).Info("artifact uploaded",
		"artifact_id", a.ID,
		"name", a.Name,
		"kind", a.Kind,
		"bytes", len(content),
	)
	writeJSON(w, http.StatusCreated, a)
}

func (s *Server) handleSanitize(w http.ResponseWriter, r *http.Request) {
	report, err := s.app.Service.SanitizeAll(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleDigest(w http.ResponseWriter, r *http.Request) {
	report, err := s.app.Service.DigestAll(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleQuarantine(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.app.Store.GetArtifact(r.Context(), id); err != nil {
		respondError(w, r, err)
		return
	}

	records, err := s.app.Service.Quarantine(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

// FixRequest is the body of POST /api/artifacts/{id}/fix.
type FixRequest struct {
	Row   int            `json:"row"`
	Field core.NameField `json:"field"`
	Value string         `json:"value"`
}

func (s *Server) handleFix(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req FixRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		respondError(w, r, fmt.Errorf("%w: invalid fix body: %v", errBadRequest, err))
		return
	}
	if req.Field == "" {
		req.Field = core.FieldFullName
	}

	if err := s.app.Service.ApplyFix(r.Context(), id, req.Row, req.Field, req.Value); err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"artifact_id": id,
		"row":         req.Row,
		"field":       req.Field,
	})
}

// handleBillCodes downloads one digest as the billing import file.
func (s *Server) handleBillCodes(w http.ResponseWriter, r *http.Request) {
	f, err := s.app.Service.BillCodes(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/tab-separated-values; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", f.Name))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(f.Content); err != nil {
		logging.FromContext(r.Context()).Warn("bill code download interrupted", "digest_id", f.DigestID, "error", err)
	}
}

func (s *Server) handleInsertStats(w http.ResponseWriter, r *http.Request) {
	results, err := s.app.Inserter.InsertAll(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

// handleInitReport writes the month headers for the fiscal year starting
// in October of ?year=.
func (s *Server) handleInitReport(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	year, err := strconv.Atoi(r.URL.Query().Get("year"))
	if err != nil || year < 1000 || year > 9999 {
		respondError(w, r, fmt.Errorf("%w: year must be a four digit number", errBadRequest))
		return
	}

	if err := s.app.InitializeReport(r.Context(), id, year); err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"report_id": id, "start_year": year})
}
