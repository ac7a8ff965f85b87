// Package api provides the HTTP handlers for the migration assessment
// service.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"sqlbridge/internal/assess"
	"sqlbridge/internal/domain"
	"sqlbridge/internal/middleware"
	"sqlbridge/internal/repository"
	"sqlbridge/internal/rewrite"
)

// maxBodyBytes bounds request bodies; migration scripts are text, not bulk
// data.
const maxBodyBytes = 8 << 20

// Handler serves the assessment endpoints.
type Handler struct {
	assessor *assess.Assessor
	runs     *repository.Runs
	catalogs *rewrite.Store
	logger   *slog.Logger
}

// NewHandler creates a Handler.
func NewHandler(assessor *assess.Assessor, runs *repository.Runs, catalogs *rewrite.Store, logger *slog.Logger) *Handler {
	return &Handler{
		assessor: assessor,
		runs:     runs,
		catalogs: catalogs,
		logger:   logger.With("component", "api"),
	}
}

// assessRequest is the POST /v1/assessments body.
type assessRequest struct {
	Queries []domain.SourceQuery `json:"queries"`
}

// rewriteRequest is the POST /v1/rewrite body.
type rewriteRequest struct {
	SQL string `json:"sql"`
}

// CreateAssessment runs a batch assessment and stores the report.
func (h *Handler) CreateAssessment(w http.ResponseWriter, r *http.Request) {
	var req assessRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if len(req.Queries) == 0 {
		h.writeError(w, r, domain.ErrValidation("at least one query is required"))
		return
	}
	for i, q := range req.Queries {
		if q.SQL == "" {
			h.writeError(w, r, domain.ErrValidation("query %d has no sql", i))
			return
		}
	}

	rep, err := h.assessor.Run(r.Context(), req.Queries)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.runs.Save(r.Context(), rep); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, rep)
}

// GetAssessment returns one stored report.
func (h *Handler) GetAssessment(w http.ResponseWriter, r *http.Request) {
	rep, err := h.runs.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, rep)
}

// ListAssessments returns recent run summaries.
func (h *Handler) ListAssessments(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.runs.List(r.Context(), 50)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if summaries == nil {
		summaries = []repository.RunSummary{}
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"runs": summaries})
}

// Rewrite applies the current catalog to a single script without
// persisting anything.
func (h *Handler) Rewrite(w http.ResponseWriter, r *http.Request) {
	var req rewriteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if req.SQL == "" {
		h.writeError(w, r, domain.ErrValidation("sql is required"))
		return
	}

	cat := h.catalogs.Current()
	res := rewrite.Apply(cat, domain.SourceQuery{Dialect: cat.Source, SQL: req.SQL})
	h.writeJSON(w, http.StatusOK, res)
}

// GetCatalog reports the active rule catalog snapshot.
func (h *Handler) GetCatalog(w http.ResponseWriter, r *http.Request) {
	cat := h.catalogs.Current()
	h.writeJSON(w, http.StatusOK, map[string]any{
		"version": cat.Version,
		"source":  cat.Source,
		"target":  cat.Target,
		"rules":   cat.Rules(),
	})
}

// Healthz is the liveness probe.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return domain.ErrValidation("invalid request body: %v", err)
	}
	return nil
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := httpStatusFromDomainError(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			"request_id", middleware.RequestIDFromContext(r.Context()),
			"path", r.URL.Path, "error", err)
	}
	h.writeJSON(w, status, map[string]any{
		"code":    status,
		"message": err.Error(),
	})
}
