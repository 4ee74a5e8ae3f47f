package firestore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/phrazzld/detailer-api/internal/domain"
	"github.com/phrazzld/detailer-api/internal/platform/logger"
	"github.com/phrazzld/detailer-api/internal/store"
	"google.golang.org/api/iterator"
)

// Document field names, shared with the existing web client.
const (
	fieldCustomerID = "customerId"
	fieldProviderID = "detailerId"
	fieldStatus     = "status"
	fieldCreatedAt  = "createdAt"
)

// requestDoc is the stored shape of a request document.
type requestDoc struct {
	CustomerID          string    `firestore:"customerId"`
	ProviderID          string    `firestore:"detailerId"`
	ProviderDisplayName string    `firestore:"detailer"`
	ServiceDescription  string    `firestore:"serviceDescription"`
	VehicleCategory     string    `firestore:"vehicleType"`
	ContactName         string    `firestore:"contactName"`
	ContactPhone        string    `firestore:"phone"`
	ContactEmail        string    `firestore:"email"`
	PreferredDate       string    `firestore:"date"`
	PreferredTime       string    `firestore:"time"`
	Status              string    `firestore:"status"`
	CreatedAt           time.Time `firestore:"createdAt"`
}

func toDoc(r *domain.Request) requestDoc {
	return requestDoc{
		CustomerID:          r.CustomerID,
		ProviderID:          r.ProviderID,
		ProviderDisplayName: r.ProviderDisplayName,
		ServiceDescription:  r.ServiceDescription,
		VehicleCategory:     r.VehicleCategory,
		ContactName:         r.ContactName,
		ContactPhone:        r.ContactPhone,
		ContactEmail:        r.ContactEmail,
		PreferredDate:       r.PreferredDate,
		PreferredTime:       r.PreferredTime,
		Status:              string(r.Status),
		CreatedAt:           r.CreatedAt.UTC(),
	}
}

func (d requestDoc) toDomain(id string) *domain.Request {
	return &domain.Request{
		ID:                  id,
		CustomerID:          d.CustomerID,
		ProviderID:          d.ProviderID,
		ProviderDisplayName: d.ProviderDisplayName,
		RequestPayload: domain.RequestPayload{
			ServiceDescription: d.ServiceDescription,
			VehicleCategory:    d.VehicleCategory,
			ContactName:        d.ContactName,
			ContactPhone:       d.ContactPhone,
			ContactEmail:       d.ContactEmail,
			PreferredDate:      d.PreferredDate,
			PreferredTime:      d.PreferredTime,
		},
		Status:    domain.RequestStatus(d.Status),
		CreatedAt: d.CreatedAt.UTC(),
	}
}

func decode(snap *firestore.DocumentSnapshot) (*domain.Request, error) {
	var d requestDoc
	if err := snap.DataTo(&d); err != nil {
		return nil, fmt.Errorf("%w: document %s: %v", store.ErrInvalidEntity, snap.Ref.ID, err)
	}
	return d.toDomain(snap.Ref.ID), nil
}

// RequestStore implements store.RequestStore on a Firestore collection.
type RequestStore struct {
	client     *firestore.Client
	collection string
	logger     *slog.Logger
}

// Ensure RequestStore implements store.RequestStore interface
var _ store.RequestStore = (*RequestStore)(nil)

// NewRequestStore creates a store over the named collection.
func NewRequestStore(client *firestore.Client, collection string, logger *slog.Logger) *RequestStore {
	if client == nil {
		panic("firestore client cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RequestStore{
		client:     client,
		collection: collection,
		logger:     logger.With(slog.String("component", "firestore_request_store")),
	}
}

func (s *RequestStore) requests() *firestore.CollectionRef {
	return s.client.Collection(s.collection)
}

// Insert implements store.RequestStore.Insert. Firestore assigns the document ID.
func (s *RequestStore) Insert(ctx context.Context, req *domain.Request) (string, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if req == nil {
		return "", fmt.Errorf("%w: nil request", store.ErrInvalidEntity)
	}
	if err := req.Validate(); err != nil {
		return "", fmt.Errorf("%w: %w", store.ErrInvalidEntity, err)
	}

	ref := s.requests().NewDoc()
	if _, err := ref.Create(ctx, toDoc(req)); err != nil {
		log.Error("failed to create request document", slog.String("error", err.Error()))
		return "", store.NewStoreError("request", "insert", "failed to create document", MapError(err))
	}

	log.Info("request inserted",
		slog.String("request_id", ref.ID),
		slog.String("customer_id", req.CustomerID),
		slog.String("provider_id", req.ProviderID))
	return ref.ID, nil
}

// GetByID implements store.RequestStore.GetByID.
func (s *RequestStore) GetByID(ctx context.Context, id string) (*domain.Request, error) {
	if id == "" {
		return nil, store.ErrRequestNotFound
	}

	snap, err := s.requests().Doc(id).Get(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, store.ErrRequestNotFound
		}
		return nil, store.NewStoreError("request", "get", "failed to read document", MapError(err))
	}
	return decode(snap)
}

// UpdateStatus implements store.RequestStore.UpdateStatus. The transaction
// re-reads the document, so a concurrent writer forces a retry that then
// observes the new status and fails the precondition.
func (s *RequestStore) UpdateStatus(
	ctx context.Context,
	id string,
	expected, next domain.RequestStatus,
) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if !next.Valid() {
		return fmt.Errorf("%w: %w", store.ErrInvalidEntity, domain.ErrInvalidStatus)
	}
	if id == "" {
		return store.ErrRequestNotFound
	}

	ref := s.requests().Doc(id)
	var actual string
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			return err
		}
		current, err := snap.DataAt(fieldStatus)
		if err != nil {
			return err
		}
		actual, _ = current.(string)
		if actual != string(expected) {
			return errStatusChanged
		}
		return tx.Update(ref, []firestore.Update{{Path: fieldStatus, Value: string(next)}})
	})

	switch {
	case err == nil:
		log.Info("request status updated",
			slog.String("request_id", id),
			slog.String("from", string(expected)),
			slog.String("to", string(next)))
		return nil
	case errors.Is(err, errStatusChanged):
		log.Debug("status update lost compare-and-set",
			slog.String("request_id", id),
			slog.String("expected", string(expected)),
			slog.String("actual", actual))
		return store.ErrConflict
	case isNotFound(err):
		return store.ErrRequestNotFound
	default:
		log.Error("status transaction failed",
			slog.String("request_id", id),
			slog.String("error", err.Error()))
		return store.NewStoreError("request", "update_status", "transaction failed", MapError(err))
	}
}

// query builds the ordered query for filter.
func (s *RequestStore) query(filter store.Filter) firestore.Query {
	field, value := fieldCustomerID, filter.CustomerID
	if filter.Role() == domain.RoleProvider {
		field, value = fieldProviderID, filter.ProviderID
	}
	return s.requests().
		Where(field, "==", value).
		OrderBy(fieldCreatedAt, firestore.Desc)
}

// Query implements store.RequestStore.Query.
func (s *RequestStore) Query(ctx context.Context, filter store.Filter) ([]*domain.Request, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	it := s.query(filter).Documents(ctx)
	defer it.Stop()

	out, err := collect(it)
	if err != nil {
		return nil, store.NewStoreError("request", "query", "failed to read documents", MapError(err))
	}
	return out, nil
}

// collect drains a document iterator into a sorted snapshot.
func collect(it *firestore.DocumentIterator) ([]*domain.Request, error) {
	out := make([]*domain.Request, 0)
	for {
		snap, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}
		req, err := decode(snap)
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	// Firestore orders by createdAt only; apply the shared tiebreak.
	store.SortRequests(out)
	return out, nil
}
