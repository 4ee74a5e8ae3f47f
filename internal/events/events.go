package events

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/detailer-api/internal/domain"
)

// Request lifecycle event types.
const (
	TypeRequestCreated      = "request.created"
	TypeRequestTransitioned = "request.transitioned"
	TypeTransitionRejected  = "request.transition_rejected"
)

// RequestEvent records a committed (or refused) change to a request.
// It is emitted after the document store has answered, never before.
type RequestEvent struct {
	// ID is a unique identifier for this event
	ID uuid.UUID `json:"id"`

	// Type is one of the Type* constants
	Type string `json:"type"`

	RequestID  string               `json:"request_id"`
	CustomerID string               `json:"customer_id"`
	ProviderID string               `json:"provider_id"`
	Role       domain.Role          `json:"role,omitempty"`
	From       domain.RequestStatus `json:"from,omitempty"`
	To         domain.RequestStatus `json:"to"`

	// OccurredAt is the timestamp when the event was created
	OccurredAt time.Time `json:"occurred_at"`
}

// NewRequestEvent creates a RequestEvent of eventType for req.
func NewRequestEvent(eventType string, req *domain.Request, role domain.Role, from, to domain.RequestStatus) *RequestEvent {
	return &RequestEvent{
		ID:         uuid.New(),
		Type:       eventType,
		RequestID:  req.ID,
		CustomerID: req.CustomerID,
		ProviderID: req.ProviderID,
		Role:       role,
		From:       from,
		To:         to,
		OccurredAt: time.Now().UTC(),
	}
}

// EventHandler defines an interface for components that can handle events.
type EventHandler interface {
	// HandleEvent processes the given event within the provided context.
	// Returns an error if the event cannot be handled successfully.
	HandleEvent(ctx context.Context, event *RequestEvent) error
}

// EventHandlerFunc adapts a function to EventHandler.
type EventHandlerFunc func(ctx context.Context, event *RequestEvent) error

// HandleEvent implements EventHandler.
func (f EventHandlerFunc) HandleEvent(ctx context.Context, event *RequestEvent) error {
	return f(ctx, event)
}

// EventEmitter defines an interface for components that can emit events.
// This allows services to publish events without direct knowledge of handlers.
type EventEmitter interface {
	// EmitEvent publishes the given event to all registered handlers.
	// Returns an error if the event cannot be emitted.
	EmitEvent(ctx context.Context, event *RequestEvent) error
}

// NopEmitter discards every event.
type NopEmitter struct{}

// EmitEvent implements EventEmitter.
func (NopEmitter) EmitEvent(context.Context, *RequestEvent) error { return nil }
