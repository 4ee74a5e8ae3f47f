package mocks

import (
	"context"

	"github.com/phrazzld/detailer-api/internal/domain"
	"github.com/phrazzld/detailer-api/internal/service"
)

// MockRequestService implements service.RequestService for handler tests.
// Unset function fields return zero values.
type MockRequestService struct {
	CreateFn func(
		ctx context.Context,
		customerID, providerID string,
		payload domain.RequestPayload,
	) (*domain.Request, error)
	TransitionFn func(
		ctx context.Context,
		requestID, actingIdentity string,
		target domain.RequestStatus,
	) (*domain.Request, error)
	ListForCustomerFn func(ctx context.Context, customerID string) ([]*domain.Request, error)
	ListForProviderFn func(ctx context.Context, providerID string) ([]*domain.Request, error)
	GetFn             func(ctx context.Context, requestID, actingIdentity string) (*domain.Request, error)
}

// Ensure MockRequestService implements service.RequestService interface
var _ service.RequestService = (*MockRequestService)(nil)

// Create implements the RequestService interface
func (m *MockRequestService) Create(
	ctx context.Context,
	customerID, providerID string,
	payload domain.RequestPayload,
) (*domain.Request, error) {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, customerID, providerID, payload)
	}
	return nil, nil
}

// Transition implements the RequestService interface
func (m *MockRequestService) Transition(
	ctx context.Context,
	requestID, actingIdentity string,
	target domain.RequestStatus,
) (*domain.Request, error) {
	if m.TransitionFn != nil {
		return m.TransitionFn(ctx, requestID, actingIdentity, target)
	}
	return nil, nil
}

// Accept implements the RequestService interface through TransitionFn
func (m *MockRequestService) Accept(ctx context.Context, requestID, providerID string) (*domain.Request, error) {
	return m.Transition(ctx, requestID, providerID, domain.StatusAccepted)
}

// Decline implements the RequestService interface through TransitionFn
func (m *MockRequestService) Decline(ctx context.Context, requestID, providerID string) (*domain.Request, error) {
	return m.Transition(ctx, requestID, providerID, domain.StatusDeclined)
}

// Cancel implements the RequestService interface through TransitionFn
func (m *MockRequestService) Cancel(ctx context.Context, requestID, customerID string) (*domain.Request, error) {
	return m.Transition(ctx, requestID, customerID, domain.StatusCancelled)
}

// ListForCustomer implements the RequestService interface
func (m *MockRequestService) ListForCustomer(ctx context.Context, customerID string) ([]*domain.Request, error) {
	if m.ListForCustomerFn != nil {
		return m.ListForCustomerFn(ctx, customerID)
	}
	return []*domain.Request{}, nil
}

// ListForProvider implements the RequestService interface
func (m *MockRequestService) ListForProvider(ctx context.Context, providerID string) ([]*domain.Request, error) {
	if m.ListForProviderFn != nil {
		return m.ListForProviderFn(ctx, providerID)
	}
	return []*domain.Request{}, nil
}

// Get implements the RequestService interface
func (m *MockRequestService) Get(ctx context.Context, requestID, actingIdentity string) (*domain.Request, error) {
	if m.GetFn != nil {
		return m.GetFn(ctx, requestID, actingIdentity)
	}
	return nil, nil
}
