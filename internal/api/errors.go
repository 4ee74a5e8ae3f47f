package api

import (
	"errors"
	"net/http"

	"github.com/phrazzld/detailer-api/internal/api/shared"
	"github.com/phrazzld/detailer-api/internal/domain"
	"github.com/phrazzld/detailer-api/internal/feed"
	"github.com/phrazzld/detailer-api/internal/service"
	"github.com/phrazzld/detailer-api/internal/service/auth"
)

// User-facing messages for mapped errors.
const (
	msgForbidden       = "Unable to complete this action"
	msgNotFound        = "This request no longer exists"
	msgAlreadyResolved = "This request was already resolved"
	msgUnavailable     = "Service temporarily unavailable, please try again"
	msgUnknownOutcome  = "The outcome of this action is unknown; refresh to confirm"
	msgUnexpected      = "An unexpected error occurred"
)

// MapErrorToStatusCode maps internal errors to appropriate HTTP status codes
// based on the error type. This prevents leaking internal error types or
// messages to clients.
func MapErrorToStatusCode(err error) int {
	switch {
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrExpiredToken),
		errors.Is(err, auth.ErrMissingToken):
		return http.StatusUnauthorized

	case errors.Is(err, service.ErrValidation),
		errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest

	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden

	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound

	case errors.Is(err, service.ErrIllegalTransition):
		return http.StatusConflict

	case errors.Is(err, service.ErrUnknownOutcome):
		return http.StatusGatewayTimeout

	case errors.Is(err, service.ErrPersistence),
		errors.Is(err, feed.ErrChannel):
		return http.StatusServiceUnavailable

	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a sanitized, user-friendly error message
// based on the error type. Validation messages name the offending field.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return msgUnexpected
	}

	var vErr *domain.ValidationError
	switch {
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrExpiredToken),
		errors.Is(err, auth.ErrMissingToken):
		return "Invalid token"

	case errors.As(err, &vErr):
		return vErr.Field + " " + vErr.Message

	case errors.Is(err, service.ErrValidation):
		return "Invalid request"

	case errors.Is(err, service.ErrForbidden):
		return msgForbidden

	case errors.Is(err, service.ErrNotFound):
		return msgNotFound

	case errors.Is(err, service.ErrIllegalTransition):
		return msgAlreadyResolved

	case errors.Is(err, service.ErrUnknownOutcome):
		return msgUnknownOutcome

	case errors.Is(err, service.ErrPersistence),
		errors.Is(err, feed.ErrChannel):
		return msgUnavailable

	default:
		return msgUnexpected
	}
}

// HandleAPIError writes the mapped status and safe message for err and logs
// the redacted cause. A non-empty fallback replaces the generic message for
// unmapped errors.
func HandleAPIError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	status := MapErrorToStatusCode(err)
	message := GetSafeErrorMessage(err)
	if status == http.StatusInternalServerError && fallback != "" {
		message = fallback
	}

	var opts []shared.ResponseOption
	if field, ok := domain.FieldOf(err); ok {
		opts = append(opts, shared.WithField(field))
	}
	if status == http.StatusForbidden {
		opts = append(opts, shared.WithElevatedLogLevel())
	}

	shared.RespondWithErrorAndLog(w, r, status, message, err, opts...)
}
