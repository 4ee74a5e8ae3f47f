package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/phrazzld/detailer-api/internal/domain"
	"github.com/phrazzld/detailer-api/internal/platform/logger"
	"github.com/phrazzld/detailer-api/internal/store"
)

// PostgresProviderStore reads the provider catalog from the providers table.
type PostgresProviderStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresProviderStore creates a provider catalog source backed by PostgreSQL.
func NewPostgresProviderStore(db store.DBTX, logger *slog.Logger) *PostgresProviderStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresProviderStore{
		db:     db,
		logger: logger.With(slog.String("component", "provider_store")),
	}
}

// ListProviders returns every provider profile ordered by name.
func (s *PostgresProviderStore) ListProviders(ctx context.Context) ([]domain.ProviderProfile, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, location, phone, rating, review_count, services
		FROM providers
		ORDER BY name ASC, id ASC
	`)
	if err != nil {
		log.Error("failed to list providers", slog.String("error", err.Error()))
		return nil, store.NewStoreError("provider", "list", "failed to list providers", MapError(err))
	}
	defer func() { _ = rows.Close() }()

	var out []domain.ProviderProfile
	for rows.Next() {
		var (
			p        domain.ProviderProfile
			services []byte
		)
		if err := rows.Scan(&p.ID, &p.Name, &p.Location, &p.Phone, &p.Rating, &p.ReviewCount, &services); err != nil {
			return nil, store.NewStoreError("provider", "list", "failed to scan provider", MapError(err))
		}
		if err := json.Unmarshal(services, &p.Services); err != nil {
			return nil, store.NewStoreError("provider", "list", "malformed services column",
				fmt.Errorf("%w: %v", store.ErrInvalidEntity, err))
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, store.NewStoreError("provider", "list", "failed to iterate providers", MapError(err))
	}

	return out, nil
}

// UpsertProvider inserts or replaces a provider profile.
func (s *PostgresProviderStore) UpsertProvider(ctx context.Context, p domain.ProviderProfile) error {
	if p.ID == "" || p.Name == "" {
		return fmt.Errorf("%w: provider id and name are required", store.ErrInvalidEntity)
	}

	services := p.Services
	if services == nil {
		services = []string{}
	}
	encoded, err := json.Marshal(services)
	if err != nil {
		return fmt.Errorf("failed to encode services: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO providers (id, name, location, phone, rating, review_count, services)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			location = EXCLUDED.location,
			phone = EXCLUDED.phone,
			rating = EXCLUDED.rating,
			review_count = EXCLUDED.review_count,
			services = EXCLUDED.services
	`, p.ID, p.Name, p.Location, p.Phone, p.Rating, p.ReviewCount, string(encoded))
	if err != nil {
		return store.NewStoreError("provider", "upsert", "failed to upsert provider", MapError(err))
	}
	return nil
}
