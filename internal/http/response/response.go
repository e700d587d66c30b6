// Package response provides the JSON envelope shared by the remote-control API
// and the raw HTTP handlers mounted next to it.
package response

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	domainerrors "github.com/listenupapp/listenup-player/internal/errors"
	"github.com/listenupapp/listenup-player/internal/store"
)

// Envelope provides a consistent JSON response structure.
type Envelope struct {
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
	Details any    `json:"details,omitempty"`
	Success bool   `json:"success"`
}

// Wrap builds the envelope for a successful payload.
func Wrap(data any) Envelope {
	return Envelope{Success: true, Data: data}
}

// Fail builds the envelope for an error.
func Fail(code domainerrors.Code, message string, details any) Envelope {
	return Envelope{Error: string(code), Message: message, Details: details}
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, envelope Envelope, logger *slog.Logger) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(envelope); err != nil && logger != nil {
		logger.Error("Failed to encode JSON response", "error", err)
	}
}

// Success writes a successful JSON response (200 OK).
func Success(w http.ResponseWriter, data any, logger *slog.Logger) {
	JSON(w, http.StatusOK, Wrap(data), logger)
}

// Error writes an error response with the given status code.
func Error(w http.ResponseWriter, status int, code domainerrors.Code, message string, logger *slog.Logger) {
	JSON(w, status, Fail(code, message, nil), logger)
}

// TooManyRequests writes a 429 response.
func TooManyRequests(w http.ResponseWriter, message string, logger *slog.Logger) {
	JSON(w, http.StatusTooManyRequests, Envelope{Error: "RATE_LIMITED", Message: message}, logger)
}

// HandleError writes an appropriate HTTP response based on the error type.
// Domain and store errors keep their codes, unknown errors become 500.
func HandleError(w http.ResponseWriter, err error, logger *slog.Logger) {
	status, envelope := FromError(err)
	if status == http.StatusInternalServerError && logger != nil {
		logger.Error("Unhandled error", "error", err)
	}
	JSON(w, status, envelope, logger)
}

// FromError maps an error to a status code and envelope.
func FromError(err error) (int, Envelope) {
	var domainErr *domainerrors.Error
	if errors.As(err, &domainErr) {
		return domainErr.HTTPStatus(), Fail(domainErr.Code, domainErr.Message, domainErr.Details)
	}
	var storeErr *store.Error
	if errors.As(err, &storeErr) {
		return storeErr.HTTPCode(), Fail(StatusToCode(storeErr.HTTPCode()), storeErr.Message, nil)
	}
	return http.StatusInternalServerError, Fail(domainerrors.CodeInternal, "internal server error", nil)
}

// StatusToCode maps HTTP status codes to domain error codes.
func StatusToCode(status int) domainerrors.Code {
	switch status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return domainerrors.CodeValidation
	case http.StatusNotFound:
		return domainerrors.CodeNotFound
	case http.StatusConflict:
		return domainerrors.CodeConflict
	case http.StatusServiceUnavailable:
		return domainerrors.CodeUnavailable
	case http.StatusRequestTimeout:
		return domainerrors.CodeCanceled
	default:
		return domainerrors.CodeInternal
	}
}
