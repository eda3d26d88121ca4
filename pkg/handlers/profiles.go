package handlers

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-keyscout/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-keyscout/pkg/models"
	"github.com/ekaya-inc/ekaya-keyscout/pkg/services"
)

// KeyCandidatesResponse for GET /api/profiles/{table}/candidates
type KeyCandidatesResponse struct {
	Table      string                     `json:"table"`
	Candidates []models.CombinationMetric `json:"candidates"`
	Total      int                        `json:"total"`
}

// ProfilesHandler serves profiling runs and their key candidates.
type ProfilesHandler struct {
	profilingService services.ProfilingService
	logger           *zap.Logger
}

// NewProfilesHandler creates a new profiles handler.
func NewProfilesHandler(profilingService services.ProfilingService, logger *zap.Logger) *ProfilesHandler {
	return &ProfilesHandler{
		profilingService: profilingService,
		logger:           logger,
	}
}

// RegisterRoutes registers the profile routes on the given mux.
func (h *ProfilesHandler) RegisterRoutes(mux *http.ServeMux, scope ScopeMiddleware) {
	base := "/api/profiles/{table}"

	mux.HandleFunc("GET "+base, scope.wrap(h.Latest))
	mux.HandleFunc("GET "+base+"/candidates", scope.wrap(h.Candidates))
	mux.HandleFunc("POST "+base+"/runs", scope.wrap(h.Run))
}

// Latest handles GET /api/profiles/{table}
func (h *ProfilesHandler) Latest(w http.ResponseWriter, r *http.Request) {
	table, ok := ParseTableName(w, r, h.logger)
	if !ok {
		return
	}

	run, err := h.profilingService.LatestRun(r.Context(), table)
	if err != nil {
		h.writeServiceError(w, table, err, "profile_not_found", "No profiling run for table")
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: run}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Candidates handles GET /api/profiles/{table}/candidates
func (h *ProfilesHandler) Candidates(w http.ResponseWriter, r *http.Request) {
	table, ok := ParseTableName(w, r, h.logger)
	if !ok {
		return
	}

	candidates, err := h.profilingService.KeyCandidates(r.Context(), table)
	if err != nil {
		h.writeServiceError(w, table, err, "profile_not_found", "No profiling run for table")
		return
	}
	if candidates == nil {
		candidates = []models.CombinationMetric{}
	}

	response := KeyCandidatesResponse{Table: table, Candidates: candidates, Total: len(candidates)}
	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: response}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Run handles POST /api/profiles/{table}/runs. Profiling is synchronous:
// the response carries the finished run.
func (h *ProfilesHandler) Run(w http.ResponseWriter, r *http.Request) {
	table, ok := ParseTableName(w, r, h.logger)
	if !ok {
		return
	}

	run, err := h.profilingService.ProfileTable(r.Context(), table)
	if err != nil {
		h.writeServiceError(w, table, err, "table_not_found", "Table not found in storage")
		return
	}

	if err := WriteJSON(w, http.StatusCreated, ApiResponse{Success: true, Data: run}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

func (h *ProfilesHandler) writeServiceError(w http.ResponseWriter, table string, err error, notFoundCode, notFoundMessage string) {
	var status int
	var code, message string

	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		status, code, message = http.StatusNotFound, notFoundCode, notFoundMessage
	case errors.Is(err, apperrors.ErrStorageNotConfigured):
		status, code, message = http.StatusServiceUnavailable, "storage_not_configured", "No storage backend is configured"
	case errors.Is(err, apperrors.ErrInvalidInput):
		status, code, message = http.StatusBadRequest, "validation_error", err.Error()
	default:
		h.logger.Error("Profiling request failed", zap.String("table", table), zap.Error(err))
		status, code, message = http.StatusInternalServerError, "profiling_failed", "Profiling request failed"
	}

	if err := ErrorResponse(w, status, code, message); err != nil {
		h.logger.Error("Failed to write error response", zap.Error(err))
	}
}
