package store

import (
	"context"
	"fmt"
	"sort"

	"github.com/phrazzld/detailer-api/internal/domain"
)

// Filter selects the requests one viewer may see. Exactly one of CustomerID
// or ProviderID must be set.
type Filter struct {
	CustomerID string
	ProviderID string
}

// ForCustomer returns a Filter selecting requests submitted by customerID.
func ForCustomer(customerID string) Filter {
	return Filter{CustomerID: customerID}
}

// ForProvider returns a Filter selecting requests addressed to providerID.
func ForProvider(providerID string) Filter {
	return Filter{ProviderID: providerID}
}

// Validate returns ErrInvalidFilter unless exactly one party is selected.
func (f Filter) Validate() error {
	if (f.CustomerID == "") == (f.ProviderID == "") {
		return ErrInvalidFilter
	}
	return nil
}

// Matches reports whether r falls inside the filter.
func (f Filter) Matches(r *domain.Request) bool {
	if f.CustomerID != "" {
		return r.CustomerID == f.CustomerID
	}
	return f.ProviderID != "" && r.ProviderID == f.ProviderID
}

// Role returns the viewing role the filter corresponds to.
func (f Filter) Role() domain.Role {
	if f.CustomerID != "" {
		return domain.RoleCustomer
	}
	return domain.RoleProvider
}

// String implements fmt.Stringer for logging.
func (f Filter) String() string {
	if f.CustomerID != "" {
		return fmt.Sprintf("customer=%s", f.CustomerID)
	}
	return fmt.Sprintf("provider=%s", f.ProviderID)
}

// SortRequests orders requests by CreatedAt descending, breaking ties by ID
// ascending so every backend yields the same order.
func SortRequests(reqs []*domain.Request) {
	sort.SliceStable(reqs, func(i, j int) bool {
		if !reqs[i].CreatedAt.Equal(reqs[j].CreatedAt) {
			return reqs[i].CreatedAt.After(reqs[j].CreatedAt)
		}
		return reqs[i].ID < reqs[j].ID
	})
}

// Watcher is a live, ordered sequence of full snapshots for one Filter.
type Watcher interface {
	// Next blocks until the next snapshot is available. The first call returns
	// the current matching set. It returns ErrWatchClosed after Close, ctx.Err()
	// when ctx ends, and any other error when the underlying feed dropped; a
	// dropped Watcher never yields again and must be replaced by a new Watch.
	Next(ctx context.Context) ([]*domain.Request, error)

	// Close stops the watch. It is idempotent.
	Close() error
}

// RequestStore defines the document-store operations the request lifecycle needs.
// Version: 1.0
type RequestStore interface {
	// Insert persists a new request and returns the identifier the store assigned.
	// The passed request is not modified.
	Insert(ctx context.Context, req *domain.Request) (string, error)

	// GetByID retrieves a request by its identifier.
	// Returns ErrRequestNotFound if the request does not exist.
	GetByID(ctx context.Context, id string) (*domain.Request, error)

	// UpdateStatus sets the status of request id to next only if it currently
	// equals expected. The check and the write are a single atomic step.
	// Returns ErrRequestNotFound if the request does not exist and ErrConflict
	// if the stored status differs from expected.
	UpdateStatus(ctx context.Context, id string, expected, next domain.RequestStatus) error

	// Query returns every request matching filter ordered by CreatedAt descending.
	// Returns an empty slice if nothing matches.
	Query(ctx context.Context, filter Filter) ([]*domain.Request, error)

	// Watch opens a live feed of full snapshots matching filter.
	Watch(ctx context.Context, filter Filter) (Watcher, error)
}
