package firestore

import (
	"context"
	"log/slog"

	"cloud.google.com/go/firestore"
	"github.com/phrazzld/detailer-api/internal/domain"
	"github.com/phrazzld/detailer-api/internal/platform/logger"
	"github.com/phrazzld/detailer-api/internal/store"
	"google.golang.org/api/iterator"
)

// providerDoc is the stored shape of a detailer catalog entry.
// OwnerID links the profile to the identity that operates it; older
// documents without it fall back to the document ID.
type providerDoc struct {
	OwnerID  string   `firestore:"ownerId,omitempty"`
	Name     string   `firestore:"name"`
	Location string   `firestore:"location"`
	Phone    string   `firestore:"phone"`
	Rating   float64  `firestore:"rating"`
	Reviews  int      `firestore:"reviews"`
	Services []string `firestore:"services"`
}

func (d providerDoc) toDomain(docID string) domain.ProviderProfile {
	id := d.OwnerID
	if id == "" {
		id = docID
	}
	return domain.ProviderProfile{
		ID:          id,
		Name:        d.Name,
		Location:    d.Location,
		Phone:       d.Phone,
		Rating:      d.Rating,
		ReviewCount: d.Reviews,
		Services:    d.Services,
	}
}

// ProviderStore reads the provider catalog from a Firestore collection.
type ProviderStore struct {
	client     *firestore.Client
	collection string
	logger     *slog.Logger
}

// NewProviderStore creates a catalog source over the named collection.
func NewProviderStore(client *firestore.Client, collection string, logger *slog.Logger) *ProviderStore {
	if client == nil {
		panic("firestore client cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ProviderStore{
		client:     client,
		collection: collection,
		logger:     logger.With(slog.String("component", "firestore_provider_store")),
	}
}

// ListProviders returns every catalog entry. Entries without a name are skipped.
func (s *ProviderStore) ListProviders(ctx context.Context) ([]domain.ProviderProfile, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	it := s.client.Collection(s.collection).Documents(ctx)
	defer it.Stop()

	var out []domain.ProviderProfile
	for {
		snap, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			log.Error("failed to list providers", slog.String("error", err.Error()))
			return nil, store.NewStoreError("provider", "list", "failed to read documents", MapError(err))
		}

		var d providerDoc
		if err := snap.DataTo(&d); err != nil {
			log.Warn("skipping malformed provider document",
				slog.String("document_id", snap.Ref.ID),
				slog.String("error", err.Error()))
			continue
		}
		if d.Name == "" {
			continue
		}
		out = append(out, d.toDomain(snap.Ref.ID))
	}

	return out, nil
}
