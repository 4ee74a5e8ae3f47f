package firestore

import (
	"context"
	"errors"
	"fmt"

	"github.com/phrazzld/detailer-api/internal/store"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// errStatusChanged aborts a status transaction whose precondition no longer holds.
var errStatusChanged = errors.New("status changed")

// MapError translates Firestore gRPC status codes into store errors.
// Context errors pass through unchanged.
func MapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	switch status.Code(err) {
	case codes.NotFound:
		return fmt.Errorf("%w: %v", store.ErrNotFound, err)
	case codes.AlreadyExists, codes.Aborted, codes.FailedPrecondition:
		return fmt.Errorf("%w: %v", store.ErrConflict, err)
	case codes.InvalidArgument:
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted, codes.Internal:
		return fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	case codes.Canceled:
		return context.Canceled
	}
	return err
}

// isNotFound reports whether err is a Firestore NotFound status.
func isNotFound(err error) bool {
	return status.Code(err) == codes.NotFound
}
