package http

import (
	"errors"
	"net/http"

	"costindex/internal/core"
	"costindex/internal/ports"
	"costindex/internal/services"
)

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case core.IsValidationError(err), errors.Is(err, errMissingParam):
		return http.StatusBadRequest
	case errors.Is(err, ports.ErrBasketNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrInsufficientData):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ports.ErrStorageUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError writes a JSON error; internal errors are logged and hidden.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error, component, operation string) {
	status := statusFor(err)
	msg := err.Error()
	switch status {
	case http.StatusInternalServerError:
		s.logger.LogError(r.Context(), "Request failed", err, component, operation, nil)
		msg = "internal server error"
	case http.StatusServiceUnavailable:
		s.logger.LogError(r.Context(), "Storage unavailable", err, component, operation, nil)
		msg = ports.ErrStorageUnavailable.Error()
	}
	ErrorResponse(status, msg).Write(w)
}
