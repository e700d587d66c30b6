package api

import (
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	domainerrors "github.com/listenupapp/listenup-player/internal/errors"
	"github.com/listenupapp/listenup-player/internal/http/response"
)

// APIError is a custom error type that implements huma.StatusError.
// It serializes as the failure form of response.Envelope.
type APIError struct { //nolint:revive // API prefix is intentional for clarity
	status  int
	Success bool   `json:"success" doc:"Always false"`
	Code    string `json:"error" doc:"Machine-readable error code"`
	Message string `json:"message" doc:"Human-readable error message"`
	Details any    `json:"details,omitempty" doc:"Additional error details"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return e.Message
}

// GetStatus implements huma.StatusError.
func (e *APIError) GetStatus() int {
	return e.status
}

// ContentType returns the content type for the error response.
func (e *APIError) ContentType(_ string) string {
	return "application/json"
}

// RegisterErrorHandler configures huma to use domain errors.
// Call this after creating the huma.API but before registering routes.
func RegisterErrorHandler() {
	huma.NewError = func(status int, message string, errs ...error) huma.StatusError {
		for _, err := range errs {
			var domainErr *domainerrors.Error
			if errors.As(err, &domainErr) {
				return fromDomain(domainErr)
			}
		}

		// Schema validation failures carry per-field details.
		var details []string
		for _, err := range errs {
			if err != nil {
				details = append(details, err.Error())
			}
		}

		apiErr := &APIError{
			status:  status,
			Code:    string(response.StatusToCode(status)),
			Message: message,
		}
		if len(details) > 0 {
			apiErr.Details = details
		}
		return apiErr
	}
}

// toAPIError converts handler errors. Huma only routes errors that already
// implement StatusError through NewError, so domain errors are mapped here.
func toAPIError(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	status, envelope := response.FromError(err)
	return &APIError{
		status:  status,
		Code:    envelope.Error,
		Message: envelope.Message,
		Details: envelope.Details,
	}
}

func fromDomain(e *domainerrors.Error) *APIError {
	return &APIError{
		status:  e.HTTPStatus(),
		Code:    string(e.Code),
		Message: e.Message,
		Details: e.Details,
	}
}

// EnvelopeTransformer wraps successful response bodies in response.Envelope.
func EnvelopeTransformer(_ huma.Context, status string, v any) (any, error) {
	if v == nil {
		return v, nil
	}
	if _, ok := v.(*APIError); ok {
		return v, nil
	}
	if len(status) > 0 && status[0] != '2' {
		return v, nil
	}
	return response.Wrap(v), nil
}

// errNoRemote is returned until the player registers its remote commands.
var errNoRemote = &APIError{
	status:  http.StatusServiceUnavailable,
	Code:    string(domainerrors.CodeUnavailable),
	Message: "remote commands are not available until playback has started",
}
