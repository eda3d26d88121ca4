package handlers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	sqlpkg "github.com/ekaya-inc/ekaya-keyscout/pkg/sql"
)

// ParseKeyLabelID extracts and validates the key label ID from the request path.
// Returns the parsed UUID and true on success, or uuid.Nil and false on error
// (after writing an error response).
// Expects path parameter: id
func ParseKeyLabelID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (uuid.UUID, bool) {
	return parseUUID(w, r, "id", "invalid_id", "Invalid key label ID format", logger)
}

// ParseTableName extracts and validates a stored table name from the request
// path. The name may be schema-qualified.
// Expects path parameter: table
func ParseTableName(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (string, bool) {
	name := strings.TrimSpace(r.PathValue("table"))
	schema, table := sqlpkg.SplitQualified(name)
	err := sqlpkg.ValidateIdentifier(table)
	if err == nil && schema != "" {
		err = sqlpkg.ValidateIdentifier(schema)
	}
	if err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_table_name", "Invalid table name"); err != nil {
			logger.Error("Failed to write error response", zap.Error(err))
		}
		return "", false
	}
	return name, true
}

// parseUUID is the internal helper that does the actual parsing work.
func parseUUID(w http.ResponseWriter, r *http.Request, pathParam, errorCode, errorMessage string, logger *zap.Logger) (uuid.UUID, bool) {
	idStr := r.PathValue(pathParam)
	id, err := uuid.Parse(idStr)
	if err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, errorCode, errorMessage); err != nil {
			logger.Error("Failed to write error response", zap.Error(err))
		}
		return uuid.Nil, false
	}
	return id, true
}
