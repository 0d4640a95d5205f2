// Package apperr defines the error taxonomy shared by every component of
// the memory service. Components classify failures into one of a small
// number of kinds rather than inventing per-field error codes; the HTTP
// layer maps each kind to a status code and an error_code string.
package apperr

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound means a referenced id (memory, intent, profile field...)
	// does not exist for the caller's user.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists means a create would duplicate an existing unique
	// resource (e.g. a scheduled intent create racing with itself).
	ErrAlreadyExists = errors.New("already exists")

	// ErrUnauthorizedCrossUser means the caller's user_id does not own
	// the referenced resource.
	ErrUnauthorizedCrossUser = errors.New("resource belongs to a different user")

	// ErrConflict means the resource is in a state that rejects the
	// requested transition (e.g. an intent already claimed).
	ErrConflict = errors.New("conflict")

	// ErrEmbedding means the embedder gateway (C1) failed after its retry.
	ErrEmbedding = errors.New("embedding unavailable")

	// ErrLLM means the LLM gateway (C2) failed or returned schema-invalid
	// output after its retry.
	ErrLLM = errors.New("llm unavailable")

	// ErrStorage means the vector store write failed, which fails the
	// logical store overall (vector store is the source of truth for
	// existence).
	ErrStorage = errors.New("storage error")
)

// ValidationError wraps a field-specific input validation failure.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field %q: %s", e.Field, e.Message)
}

// NewValidationError constructs a *ValidationError.
func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// IsValidationError reports whether err is (or wraps) a *ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// Code is the taxonomy's error_code string, carried on every error
// response per spec.md §7.
type Code string

const (
	CodeValidation     Code = "VALIDATION_ERROR"
	CodeNotFound       Code = "NOT_FOUND"
	CodeCrossUser      Code = "UNAUTHORIZED_CROSS_USER"
	CodeConflict       Code = "CONFLICT"
	CodeEmbeddingError Code = "EMBEDDING_ERROR"
	CodeLLMError       Code = "LLM_ERROR"
	CodeStorageError   Code = "STORAGE_ERROR"
	CodeInternal       Code = "INTERNAL_ERROR"
)

// Classify maps an error to its taxonomy code. Unrecognized errors
// classify as internal, which is always a 500 at the HTTP boundary.
func Classify(err error) Code {
	switch {
	case err == nil:
		return ""
	case IsValidationError(err):
		return CodeValidation
	case errors.Is(err, ErrNotFound):
		return CodeNotFound
	case errors.Is(err, ErrUnauthorizedCrossUser):
		return CodeCrossUser
	case errors.Is(err, ErrConflict), errors.Is(err, ErrAlreadyExists):
		return CodeConflict
	case errors.Is(err, ErrEmbedding):
		return CodeEmbeddingError
	case errors.Is(err, ErrLLM):
		return CodeLLMError
	case errors.Is(err, ErrStorage):
		return CodeStorageError
	default:
		return CodeInternal
	}
}
