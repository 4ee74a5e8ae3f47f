package mocks

import (
	"context"
	"sync"

	"github.com/phrazzld/detailer-api/internal/domain"
	"github.com/phrazzld/detailer-api/internal/store"
)

// MockRequestStore implements store.RequestStore for testing.
// Unset function fields fall through to Delegate; with no Delegate they
// return zero values.
type MockRequestStore struct {
	// Function fields for customizable behavior
	InsertFn       func(ctx context.Context, req *domain.Request) (string, error)
	GetByIDFn      func(ctx context.Context, id string) (*domain.Request, error)
	UpdateStatusFn func(ctx context.Context, id string, expected, next domain.RequestStatus) error
	QueryFn        func(ctx context.Context, filter store.Filter) ([]*domain.Request, error)
	WatchFn        func(ctx context.Context, filter store.Filter) (store.Watcher, error)

	// Delegate serves every call without a function override
	Delegate store.RequestStore

	mu    sync.Mutex
	calls map[string]int
}

// Ensure MockRequestStore implements store.RequestStore interface
var _ store.RequestStore = (*MockRequestStore)(nil)

func (m *MockRequestStore) record(method string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.calls == nil {
		m.calls = make(map[string]int)
	}
	m.calls[method]++
}

// Calls returns how many times method was invoked.
func (m *MockRequestStore) Calls(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[method]
}

// Insert implements the RequestStore interface
func (m *MockRequestStore) Insert(ctx context.Context, req *domain.Request) (string, error) {
	m.record("Insert")
	if m.InsertFn != nil {
		return m.InsertFn(ctx, req)
	}
	if m.Delegate != nil {
		return m.Delegate.Insert(ctx, req)
	}
	return "", nil
}

// GetByID implements the RequestStore interface
func (m *MockRequestStore) GetByID(ctx context.Context, id string) (*domain.Request, error) {
	m.record("GetByID")
	if m.GetByIDFn != nil {
		return m.GetByIDFn(ctx, id)
	}
	if m.Delegate != nil {
		return m.Delegate.GetByID(ctx, id)
	}
	return nil, store.ErrRequestNotFound
}

// UpdateStatus implements the RequestStore interface
func (m *MockRequestStore) UpdateStatus(
	ctx context.Context,
	id string,
	expected, next domain.RequestStatus,
) error {
	m.record("UpdateStatus")
	if m.UpdateStatusFn != nil {
		return m.UpdateStatusFn(ctx, id, expected, next)
	}
	if m.Delegate != nil {
		return m.Delegate.UpdateStatus(ctx, id, expected, next)
	}
	return nil
}

// Query implements the RequestStore interface
func (m *MockRequestStore) Query(ctx context.Context, filter store.Filter) ([]*domain.Request, error) {
	m.record("Query")
	if m.QueryFn != nil {
		return m.QueryFn(ctx, filter)
	}
	if m.Delegate != nil {
		return m.Delegate.Query(ctx, filter)
	}
	return []*domain.Request{}, nil
}

// Watch implements the RequestStore interface
func (m *MockRequestStore) Watch(ctx context.Context, filter store.Filter) (store.Watcher, error) {
	m.record("Watch")
	if m.WatchFn != nil {
		return m.WatchFn(ctx, filter)
	}
	if m.Delegate != nil {
		return m.Delegate.Watch(ctx, filter)
	}
	return nil, store.ErrUnavailable
}
