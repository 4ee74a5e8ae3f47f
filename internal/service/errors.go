package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/phrazzld/detailer-api/internal/domain"
	"github.com/phrazzld/detailer-api/internal/store"
)

// Common service errors - sentinel errors used across service implementations.
// Callers check for them with errors.Is(); the API layer maps each one to an
// HTTP status and a user-facing message.
//
// Error handling principles:
// 1. Expected outcomes (not found, forbidden, illegal transition) are returned as sentinels
// 2. Validation failures wrap ErrValidation and a *domain.ValidationError naming the field
// 3. Store failures are wrapped in RequestServiceError around ErrPersistence
// 4. A mutation interrupted by its context wraps ErrUnknownOutcome
var (
	// ErrValidation indicates an incomplete or malformed request payload.
	// Use errors.As with *domain.ValidationError to find the offending field.
	ErrValidation = errors.New("invalid request")

	// ErrForbidden indicates the acting identity is not a party to the request.
	ErrForbidden = errors.New("identity is not a party to this request")

	// ErrIllegalTransition indicates the state machine refused the move,
	// including the case where a concurrent transition won the race.
	ErrIllegalTransition = errors.New("illegal status transition")

	// ErrNotFound indicates no request exists with the given ID.
	ErrNotFound = errors.New("request not found")

	// ErrPersistence indicates the document store could not complete the operation.
	ErrPersistence = errors.New("document store failure")

	// ErrUnknownOutcome indicates a mutation was interrupted before the store
	// answered. The write may or may not have been applied; re-query with Get.
	ErrUnknownOutcome = errors.New("mutation outcome unknown")
)

// RequestServiceError wraps errors from the request service with context.
type RequestServiceError struct {
	// Operation is the operation that failed (e.g., "create", "transition")
	Operation string
	// Message is a human-readable description of the error
	Message string
	// Err is the underlying error that caused the failure
	Err error
}

// Error implements the error interface for RequestServiceError.
func (e *RequestServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("request service %s failed: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("request service %s failed: %s", e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *RequestServiceError) Unwrap() error {
	return e.Err
}

// NewRequestServiceError creates a new RequestServiceError.
// It returns known sentinel errors directly without wrapping.
func NewRequestServiceError(operation, message string, err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, ErrNotFound), store.IsNotFoundError(err):
		return ErrNotFound
	case errors.Is(err, ErrForbidden):
		return ErrForbidden
	}

	return &RequestServiceError{
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}

// validationError tags a domain validation failure with ErrValidation while
// keeping the *domain.ValidationError reachable through errors.As.
func validationError(err error) error {
	return fmt.Errorf("%w: %w", ErrValidation, err)
}

// persistenceError wraps a store failure that happened before any write was sent.
func persistenceError(operation, message string, err error) error {
	return NewRequestServiceError(operation, message, fmt.Errorf("%w: %w", ErrPersistence, err))
}

// mutationError classifies a failed write. If ctx ended while the write was in
// flight the outcome is unknown rather than failed.
func mutationError(ctx context.Context, operation, message string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil ||
		errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		if ctxErr == nil {
			ctxErr = err
		}
		return &RequestServiceError{
			Operation: operation,
			Message:   message,
			Err:       fmt.Errorf("%w: %w", ErrUnknownOutcome, ctxErr),
		}
	}
	return persistenceError(operation, message, err)
}

// FieldOf returns the payload field named by a validation error.
func FieldOf(err error) (string, bool) {
	return domain.FieldOf(err)
}
