package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/phrazzld/detailer-api/internal/domain"
	"github.com/phrazzld/detailer-api/internal/events"
	"github.com/phrazzld/detailer-api/internal/platform/logger"
	"github.com/phrazzld/detailer-api/internal/redact"
	"github.com/phrazzld/detailer-api/internal/store"
)

// ProviderDirectory resolves provider profiles by owning identity.
type ProviderDirectory interface {
	Lookup(ctx context.Context, id string) (domain.ProviderProfile, bool)
}

// RequestService provides the request lifecycle operations.
type RequestService interface {
	// Create submits a new pending request from customerID to providerID.
	Create(
		ctx context.Context,
		customerID, providerID string,
		payload domain.RequestPayload,
	) (*domain.Request, error)

	// Transition moves a request to target on behalf of actingIdentity and
	// returns the request as confirmed by the store.
	Transition(
		ctx context.Context,
		requestID, actingIdentity string,
		target domain.RequestStatus,
	) (*domain.Request, error)

	// Accept is Transition to accepted.
	Accept(ctx context.Context, requestID, providerID string) (*domain.Request, error)

	// Decline is Transition to declined.
	Decline(ctx context.Context, requestID, providerID string) (*domain.Request, error)

	// Cancel is Transition to cancelled.
	Cancel(ctx context.Context, requestID, customerID string) (*domain.Request, error)

	// ListForCustomer returns customerID's requests, newest first.
	ListForCustomer(ctx context.Context, customerID string) ([]*domain.Request, error)

	// ListForProvider returns the requests addressed to providerID, newest first.
	ListForProvider(ctx context.Context, providerID string) ([]*domain.Request, error)

	// Get returns a single request if actingIdentity is one of its parties.
	Get(ctx context.Context, requestID, actingIdentity string) (*domain.Request, error)
}

// Option configures a RequestService.
type Option func(*requestServiceImpl)

// WithClock overrides the time source used for CreatedAt.
func WithClock(now func() time.Time) Option {
	return func(s *requestServiceImpl) {
		if now != nil {
			s.now = now
		}
	}
}

// requestServiceImpl implements the RequestService interface
type requestServiceImpl struct {
	requests     store.RequestStore
	directory    ProviderDirectory
	eventEmitter events.EventEmitter
	logger       *slog.Logger
	now          func() time.Time
}

// NewRequestService creates a new RequestService.
// It returns an error if any of the required dependencies are nil.
func NewRequestService(
	requests store.RequestStore,
	directory ProviderDirectory,
	eventEmitter events.EventEmitter,
	logger *slog.Logger,
	opts ...Option,
) (RequestService, error) {
	if requests == nil {
		return nil, &RequestServiceError{Operation: "create_service", Message: "request store cannot be nil"}
	}
	if directory == nil {
		return nil, &RequestServiceError{Operation: "create_service", Message: "directory cannot be nil"}
	}
	if eventEmitter == nil {
		eventEmitter = events.NopEmitter{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &requestServiceImpl{
		requests:     requests,
		directory:    directory,
		eventEmitter: eventEmitter,
		logger:       logger.With("component", "request_service"),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Create implements RequestService.Create. The provider's display name is
// copied onto the request now and never refreshed.
func (s *requestServiceImpl) Create(
	ctx context.Context,
	customerID, providerID string,
	payload domain.RequestPayload,
) (*domain.Request, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	profile, ok := s.directory.Lookup(ctx, providerID)
	if !ok {
		log.Debug("create rejected: unknown provider", "provider_id", providerID)
		return nil, validationError(
			domain.NewValidationError("providerId", "is not a known provider", store.ErrProviderNotFound))
	}

	req, err := domain.NewRequest(customerID, profile.ID, profile.Name, payload, s.now())
	if err != nil {
		field, _ := domain.FieldOf(err)
		log.Debug("create rejected: invalid payload", "field", field)
		return nil, validationError(err)
	}

	id, err := s.requests.Insert(ctx, req)
	if err != nil {
		log.Error("failed to insert request",
			"error", redact.Error(err),
			"customer_id", req.CustomerID,
			"provider_id", req.ProviderID)
		return nil, mutationError(ctx, "create", "failed to save request", err)
	}
	req.ID = id

	log.Info("request created",
		"request_id", req.ID,
		"customer_id", req.CustomerID,
		"provider_id", req.ProviderID)
	s.emit(ctx, events.NewRequestEvent(events.TypeRequestCreated, req, domain.RoleCustomer, "", req.Status))

	return req, nil
}

// Transition implements RequestService.Transition.
func (s *requestServiceImpl) Transition(
	ctx context.Context,
	requestID, actingIdentity string,
	target domain.RequestStatus,
) (*domain.Request, error) {
	log := logger.FromContextOrDefault(ctx, s.logger).With(
		"request_id", requestID,
		"target", string(target))

	current, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		if store.IsNotFoundError(err) {
			return nil, ErrNotFound
		}
		log.Error("failed to load request", "error", redact.Error(err))
		return nil, persistenceError("transition", "failed to load request", err)
	}

	role, ok := current.ActingRole(actingIdentity, target)
	if !ok {
		// Not reachable through the UI; indicates an auth or routing bug.
		log.Warn("transition by non-party refused", "identity", actingIdentity)
		return nil, ErrForbidden
	}

	// Non-parties get ErrForbidden before the target is inspected.
	if !target.Valid() {
		return nil, validationError(domain.NewValidationError("status", "is not a known status", domain.ErrInvalidStatus))
	}

	if !domain.CanTransition(current.Status, role, target) {
		log.Debug("state machine refused transition",
			"role", string(role),
			"current", string(current.Status))
		s.emit(ctx, events.NewRequestEvent(events.TypeTransitionRejected, current, role, current.Status, target))
		return nil, fmt.Errorf("%w: %s cannot move %s request to %s",
			ErrIllegalTransition, role, current.Status, target)
	}

	err = s.requests.UpdateStatus(ctx, requestID, current.Status, target)
	switch {
	case err == nil:
	case errors.Is(err, store.ErrConflict):
		log.Info("transition lost to a concurrent change", "role", string(role))
		s.emit(ctx, events.NewRequestEvent(events.TypeTransitionRejected, current, role, current.Status, target))
		return nil, fmt.Errorf("%w: request was already resolved", ErrIllegalTransition)
	case store.IsNotFoundError(err):
		return nil, ErrNotFound
	default:
		log.Error("failed to update request status", "error", redact.Error(err))
		return nil, mutationError(ctx, "transition", "failed to update status", err)
	}

	updated := current.Clone()
	updated.Status = target

	log.Info("request transitioned",
		"role", string(role),
		"from", string(current.Status))
	s.emit(ctx, events.NewRequestEvent(events.TypeRequestTransitioned, updated, role, current.Status, target))

	return updated, nil
}

// Accept implements RequestService.Accept.
func (s *requestServiceImpl) Accept(ctx context.Context, requestID, providerID string) (*domain.Request, error) {
	return s.Transition(ctx, requestID, providerID, domain.StatusAccepted)
}

// Decline implements RequestService.Decline.
func (s *requestServiceImpl) Decline(ctx context.Context, requestID, providerID string) (*domain.Request, error) {
	return s.Transition(ctx, requestID, providerID, domain.StatusDeclined)
}

// Cancel implements RequestService.Cancel.
func (s *requestServiceImpl) Cancel(ctx context.Context, requestID, customerID string) (*domain.Request, error) {
	return s.Transition(ctx, requestID, customerID, domain.StatusCancelled)
}

// ListForCustomer implements RequestService.ListForCustomer.
func (s *requestServiceImpl) ListForCustomer(ctx context.Context, customerID string) ([]*domain.Request, error) {
	return s.list(ctx, store.ForCustomer(customerID))
}

// ListForProvider implements RequestService.ListForProvider.
func (s *requestServiceImpl) ListForProvider(ctx context.Context, providerID string) ([]*domain.Request, error) {
	return s.list(ctx, store.ForProvider(providerID))
}

func (s *requestServiceImpl) list(ctx context.Context, filter store.Filter) ([]*domain.Request, error) {
	if err := filter.Validate(); err != nil {
		return nil, validationError(domain.NewValidationError("identity", "is required", err))
	}

	reqs, err := s.requests.Query(ctx, filter)
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to list requests",
			"filter", filter.String(),
			"error", redact.Error(err))
		return nil, persistenceError("list", "failed to list requests", err)
	}
	return reqs, nil
}

// Get implements RequestService.Get.
func (s *requestServiceImpl) Get(ctx context.Context, requestID, actingIdentity string) (*domain.Request, error) {
	req, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		if store.IsNotFoundError(err) {
			return nil, ErrNotFound
		}
		return nil, persistenceError("get", "failed to load request", err)
	}
	if !req.VisibleTo(actingIdentity) {
		return nil, ErrForbidden
	}
	return req, nil
}

// emit publishes an event after the store has answered. Handler failures are
// logged only; the mutation they describe has already been confirmed.
func (s *requestServiceImpl) emit(ctx context.Context, event *events.RequestEvent) {
	if err := s.eventEmitter.EmitEvent(ctx, event); err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Warn("failed to emit request event",
			"event_type", event.Type,
			"request_id", event.RequestID,
			"error", err)
	}
}
