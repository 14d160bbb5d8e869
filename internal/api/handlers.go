package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/yegors/aeromission/internal/analysis"
	"github.com/yegors/aeromission/internal/casefile"
	"github.com/yegors/aeromission/internal/errdefs"
	"github.com/yegors/aeromission/internal/mission"
	"github.com/yegors/aeromission/internal/storage/sqlite"
	"github.com/yegors/aeromission/pkg/logger"
)

const maxBodyBytes = 1 << 20

// Handler serves the analysis API
type Handler struct {
	service *analysis.Service
	logger  *logger.Logger
}

// NewHandler creates a new API handler
func NewHandler(service *analysis.Service, log *logger.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  log.Named("api"),
	}
}

// errorResponse is the body of every non-2xx JSON response
type errorResponse struct {
	Error string            `json:"error"`
	Kind  string            `json:"kind,omitempty"`
	Run   *sqlite.RunRecord `json:"run,omitempty"`
}

// GetHealth returns the health status of the API
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"sessions": len(h.service.ListSessions()),
	})
}

// CreateSession starts a session from a solve case (JSON or YAML)
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	c, err := casefile.Decode(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		h.writeError(w, r, &errdefs.ConfigurationError{Msg: err.Error()})
		return
	}

	info, err := h.service.CreateSession(c)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.logger.Info("Created session",
		logger.String("session_id", info.ID),
		logger.String("aircraft", info.Aircraft))
	WriteJSON(w, http.StatusCreated, info)
}

// ListSessions returns every session without results
func (h *Handler) ListSessions(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]any{
		"sessions": h.service.ListSessions(),
	})
}

// GetSession returns a session with its last result
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	info, err := h.service.GetSession(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, info)
}

// DeleteSession removes a session
func (h *Handler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := h.service.RemoveSession(chi.URLParam(r, "id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AddSegment appends a segment, or inserts it when ?index= is given
func (h *Handler) AddSegment(w http.ResponseWriter, r *http.Request) {
	spec, ok := h.decodeSpec(w, r)
	if !ok {
		return
	}

	var index *int
	if raw := r.URL.Query().Get("index"); raw != "" {
		i, err := strconv.Atoi(raw)
		if err != nil {
			h.writeError(w, r, errdefs.Configf("invalid index %q", raw))
			return
		}
		index = &i
	}

	info, err := h.service.AddSegment(chi.URLParam(r, "id"), spec, index)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusCreated, info)
}

// ReplaceSegment swaps the segment at {index}
func (h *Handler) ReplaceSegment(w http.ResponseWriter, r *http.Request) {
	index, ok := h.segmentIndex(w, r)
	if !ok {
		return
	}
	spec, ok := h.decodeSpec(w, r)
	if !ok {
		return
	}

	info, err := h.service.ReplaceSegment(chi.URLParam(r, "id"), index, spec)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, info)
}

// RemoveSegment deletes the segment at {index}
func (h *Handler) RemoveSegment(w http.ResponseWriter, r *http.Request) {
	index, ok := h.segmentIndex(w, r)
	if !ok {
		return
	}

	info, err := h.service.RemoveSegment(chi.URLParam(r, "id"), index)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, info)
}

// Solve runs the mission sweep of a session and returns the stored run
func (h *Handler) Solve(w http.ResponseWriter, r *http.Request) {
	run, err := h.service.Solve(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		status, kind := statusFor(err)
		h.logger.Warn("Solve failed",
			logger.String("session_id", chi.URLParam(r, "id")),
			logger.Int("status", status),
			logger.Error(err))
		WriteJSON(w, status, errorResponse{Error: err.Error(), Kind: kind, Run: run})
		return
	}
	WriteJSON(w, http.StatusOK, run)
}

// ListRuns returns a page of the run history
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 50)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if limit > 500 {
		limit = 500
	}

	runs, total, err := h.service.Runs(r.Context(), limit, offset)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"runs":   runs,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

// GetRun returns a stored run with its segment results
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.service.Run(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, run)
}

// DeleteRun removes a run from the history
func (h *Handler) DeleteRun(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteRun(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetRunReport returns the plain-text mission report of a run
func (h *Handler) GetRunReport(w http.ResponseWriter, r *http.Request) {
	run, err := h.service.Run(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if run.Report == "" {
		h.writeError(w, r, fmt.Errorf("%w: run %s has no report", sqlite.ErrNotFound, run.ID))
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, run.Report)
}

func (h *Handler) decodeSpec(w http.ResponseWriter, r *http.Request) (mission.SegmentSpec, bool) {
	var spec mission.SegmentSpec
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&spec); err != nil {
		h.writeError(w, r, errdefs.Configf("invalid segment: %v", err))
		return spec, false
	}
	return spec, true
}

func (h *Handler) segmentIndex(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := chi.URLParam(r, "index")
	i, err := strconv.Atoi(raw)
	if err != nil {
		h.writeError(w, r, errdefs.Configf("invalid segment index %q", raw))
		return 0, false
	}
	return i, true
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, errdefs.Configf("invalid %s %q", key, raw)
	}
	return v, nil
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, kind := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("Request failed",
			logger.String("path", r.URL.Path),
			logger.Error(err))
	}
	WriteJSON(w, status, errorResponse{Error: err.Error(), Kind: kind})
}

// statusFor maps the error taxonomy onto HTTP status codes
func statusFor(err error) (int, string) {
	var (
		configErr      *errdefs.ConfigurationError
		variantErr     *errdefs.UnsupportedVariantError
		domainErr      *errdefs.NumericDomainError
		convergenceErr *errdefs.SolverConvergenceError
		executionErr   *errdefs.SolverExecutionError
	)
	switch {
	case errors.Is(err, analysis.ErrSessionNotFound), errors.Is(err, sqlite.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.As(err, &configErr):
		return http.StatusBadRequest, "configuration"
	case errors.As(err, &variantErr):
		return http.StatusBadRequest, "unsupported_variant"
	case errors.As(err, &domainErr):
		return http.StatusUnprocessableEntity, "numeric_domain"
	case errors.As(err, &convergenceErr):
		return http.StatusUnprocessableEntity, "solver_convergence"
	case errors.As(err, &executionErr):
		return http.StatusBadGateway, "solver_execution"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	default:
		return http.StatusInternalServerError, ""
	}
}

// WriteJSON writes a JSON response
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
