package api

import (
	"errors"
	"log/slog"
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/ankitaa186/agentic-memories-sub002/internal/apperr"
)

// ErrorResponse is the deterministic shape every failure response
// carries (spec.md §7: status, error_code, human-readable message).
type ErrorResponse struct {
	Status    string `json:"status"`
	ErrorCode string `json:"error_code"`
	Message   string `json:"message"`
}

// mapServiceError maps a service-layer error to an HTTP status and the
// taxonomy's error_code, per spec.md §7's code -> status table.
func mapServiceError(err error) *echo.HTTPError {
	code := apperr.Classify(err)
	status := http.StatusInternalServerError
	switch code {
	case apperr.CodeValidation:
		status = http.StatusBadRequest
	case apperr.CodeNotFound:
		status = http.StatusNotFound
	case apperr.CodeCrossUser:
		status = http.StatusForbidden
	case apperr.CodeConflict:
		status = http.StatusConflict
	case apperr.CodeEmbeddingError, apperr.CodeLLMError, apperr.CodeStorageError:
		status = http.StatusServiceUnavailable
	case apperr.CodeInternal:
		status = http.StatusInternalServerError
	}

	if code == apperr.CodeInternal {
		slog.Error("unexpected service error", "error", err)
	}

	var ve *apperr.ValidationError
	message := err.Error()
	if errors.As(err, &ve) {
		message = ve.Message
	}

	return echo.NewHTTPError(status, ErrorResponse{
		Status: "error", ErrorCode: string(code), Message: message,
	})
}
