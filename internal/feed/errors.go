package feed

import (
	"errors"
	"fmt"

	"github.com/phrazzld/detailer-api/internal/store"
)

// ErrChannel matches every error that ended a subscription abnormally.
var ErrChannel = errors.New("live channel failed")

// ChannelError reports a subscription that could not be kept alive.
type ChannelError struct {
	Filter   store.Filter
	Attempts int
	Err      error
}

// Error implements the error interface for ChannelError.
func (e *ChannelError) Error() string {
	return fmt.Sprintf("live channel for %s failed after %d attempts: %v", e.Filter, e.Attempts, e.Err)
}

// Unwrap returns the last underlying watch error.
func (e *ChannelError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrChannel) true for any ChannelError.
func (e *ChannelError) Is(target error) bool {
	return target == ErrChannel
}
