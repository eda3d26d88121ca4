package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-keyscout/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-keyscout/pkg/models"
	"github.com/ekaya-inc/ekaya-keyscout/pkg/services"
)

// ScopeMiddleware wraps handlers that touch the label database, typically
// database.WithScope.
type ScopeMiddleware func(http.HandlerFunc) http.HandlerFunc

func (m ScopeMiddleware) wrap(h http.HandlerFunc) http.HandlerFunc {
	if m == nil {
		return h
	}
	return m(h)
}

// ============================================================================
// Request/Response Types
// ============================================================================

// RecordKeyLabelRequest for POST /api/key-labels
type RecordKeyLabelRequest struct {
	TableA        string   `json:"tableA"`
	ColumnsA      []string `json:"columnsA"`
	TableB        string   `json:"tableB"`
	ColumnsB      []string `json:"columnsB"`
	IsKey         *bool    `json:"isKey"`
	Justification string   `json:"justification,omitempty"`
	Author        string   `json:"author,omitempty"`
}

// UpdateKeyLabelRequest for PUT /api/key-labels/{id}
type UpdateKeyLabelRequest struct {
	IsKey         *bool  `json:"isKey"`
	Justification string `json:"justification,omitempty"`
	Author        string `json:"author,omitempty"`
}

// KeyLabelListResponse for GET /api/key-labels
type KeyLabelListResponse struct {
	Labels []*models.KeyLabel `json:"labels"`
	Total  int                `json:"total"`
}

// ============================================================================
// Handler
// ============================================================================

// KeyLabelsHandler handles key label HTTP requests.
type KeyLabelsHandler struct {
	keyLabelService services.KeyLabelService
	logger          *zap.Logger
}

// NewKeyLabelsHandler creates a new key labels handler.
func NewKeyLabelsHandler(keyLabelService services.KeyLabelService, logger *zap.Logger) *KeyLabelsHandler {
	return &KeyLabelsHandler{
		keyLabelService: keyLabelService,
		logger:          logger,
	}
}

// RegisterRoutes registers the key label routes on the given mux.
func (h *KeyLabelsHandler) RegisterRoutes(mux *http.ServeMux, scope ScopeMiddleware) {
	base := "/api/key-labels"

	mux.HandleFunc("POST "+base, scope.wrap(h.Record))
	mux.HandleFunc("GET "+base, scope.wrap(h.List))
	mux.HandleFunc("GET "+base+"/{id}", scope.wrap(h.Get))
	mux.HandleFunc("PUT "+base+"/{id}", scope.wrap(h.Update))
	mux.HandleFunc("DELETE "+base+"/{id}", scope.wrap(h.Delete))
}

// Record handles POST /api/key-labels. Responds 201 when a new label is
// created and 200 when an existing decision for the same pair is updated.
func (h *KeyLabelsHandler) Record(w http.ResponseWriter, r *http.Request) {
	var req RecordKeyLabelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}
	if req.IsKey == nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "validation_error", "isKey is required"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	label, created, err := h.keyLabelService.RecordDecision(r.Context(), services.KeyDecision{
		TableA:        req.TableA,
		ColumnsA:      req.ColumnsA,
		TableB:        req.TableB,
		ColumnsB:      req.ColumnsB,
		IsKey:         *req.IsKey,
		Justification: req.Justification,
		Author:        req.Author,
	})
	if err != nil {
		h.writeServiceError(w, err, "record_key_label_failed", "Failed to record key label")
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	if err := WriteJSON(w, status, ApiResponse{Success: true, Data: label}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// List handles GET /api/key-labels?tableA=...&tableB=...
func (h *KeyLabelsHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := models.KeyLabelFilter{
		TableA: r.URL.Query().Get("tableA"),
		TableB: r.URL.Query().Get("tableB"),
	}

	labels, err := h.keyLabelService.List(r.Context(), filter)
	if err != nil {
		h.writeServiceError(w, err, "list_key_labels_failed", "Failed to list key labels")
		return
	}
	if labels == nil {
		labels = []*models.KeyLabel{}
	}

	response := KeyLabelListResponse{Labels: labels, Total: len(labels)}
	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: response}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Get handles GET /api/key-labels/{id}
func (h *KeyLabelsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseKeyLabelID(w, r, h.logger)
	if !ok {
		return
	}

	label, err := h.keyLabelService.Get(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, err, "get_key_label_failed", "Failed to get key label")
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: label}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Update handles PUT /api/key-labels/{id}. Only the decision and its
// provenance can change; the table/column pair is fixed by the fingerprint.
func (h *KeyLabelsHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseKeyLabelID(w, r, h.logger)
	if !ok {
		return
	}

	var req UpdateKeyLabelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}
	if req.IsKey == nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "validation_error", "isKey is required"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	label, err := h.keyLabelService.Update(r.Context(), id, *req.IsKey, req.Justification, req.Author)
	if err != nil {
		h.writeServiceError(w, err, "update_key_label_failed", "Failed to update key label")
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: label}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Delete handles DELETE /api/key-labels/{id}
func (h *KeyLabelsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseKeyLabelID(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.keyLabelService.Delete(r.Context(), id); err != nil {
		h.writeServiceError(w, err, "delete_key_label_failed", "Failed to delete key label")
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Message: "Key label deleted"}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// writeServiceError maps service errors to HTTP status codes.
func (h *KeyLabelsHandler) writeServiceError(w http.ResponseWriter, err error, failureCode, failureMessage string) {
	status, code, message := http.StatusInternalServerError, failureCode, failureMessage

	switch {
	case errors.Is(err, apperrors.ErrInvalidInput):
		status, code = http.StatusBadRequest, "validation_error"
		message = strings.TrimPrefix(err.Error(), apperrors.ErrInvalidInput.Error()+": ")
	case errors.Is(err, apperrors.ErrNotFound):
		status, code, message = http.StatusNotFound, "key_label_not_found", "Key label not found"
	default:
		h.logger.Error(failureMessage, zap.Error(err))
	}

	if err := ErrorResponse(w, status, code, message); err != nil {
		h.logger.Error("Failed to write error response", zap.Error(err))
	}
}
