package tools

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ekaya-inc/ekaya-keyscout/pkg/apperrors"
)

// ErrorResponse represents a structured error in tool results.
// Actionable errors are returned as a tool result with IsError set, carrying
// this payload so the client sees the details.
type ErrorResponse struct {
	Error   bool   `json:"error"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// NewErrorResult creates a tool result containing a structured error.
// Use this for recoverable errors (invalid parameters, unknown table).
// System failures such as a lost database connection stay Go errors.
func NewErrorResult(code, message string) *mcp.CallToolResult {
	return NewErrorResultWithDetails(code, message, nil)
}

// NewErrorResultWithDetails creates an error result with additional context.
func NewErrorResultWithDetails(code, message string, details any) *mcp.CallToolResult {
	resp := ErrorResponse{
		Error:   true,
		Code:    code,
		Message: message,
		Details: details,
	}
	jsonBytes, _ := json.Marshal(resp)
	result := mcp.NewToolResultText(string(jsonBytes))
	result.IsError = true
	return result
}

// NewAppErrorResult maps domain sentinel errors to a structured result.
// Returns nil for anything else; the caller should return the Go error.
func NewAppErrorResult(err error) *mcp.CallToolResult {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, apperrors.ErrInvalidInput):
		return NewErrorResult("invalid_parameters", trimSentinel(err, apperrors.ErrInvalidInput))
	case errors.Is(err, apperrors.ErrNotFound):
		return NewErrorResult("not_found", err.Error())
	case errors.Is(err, apperrors.ErrStorageNotConfigured):
		return NewErrorResult("storage_not_configured", "no storage backend is configured")
	}
	return nil
}

// trimSentinel drops the "invalid input: " prefix added when wrapping.
func trimSentinel(err, sentinel error) string {
	return strings.TrimPrefix(err.Error(), sentinel.Error()+": ")
}

// IsInputError reports whether err was caused by caller input rather than
// a server failure. Input errors are logged at DEBUG, not ERROR.
func IsInputError(err error) bool {
	return errors.Is(err, apperrors.ErrInvalidInput) || errors.Is(err, apperrors.ErrNotFound)
}
