package apperrors

import "errors"

var (
	ErrNotFound             = errors.New("not found")
	ErrConflict             = errors.New("conflict")
	ErrInvalidInput         = errors.New("invalid input")
	ErrInvalidConfig        = errors.New("invalid configuration")
	ErrStorageNotConfigured = errors.New("storage backend not configured")
	ErrUnsupportedSchema    = errors.New("unsupported file schema")
)
