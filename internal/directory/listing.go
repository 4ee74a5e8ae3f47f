package directory

import (
	"context"
	"log/slog"
	"sync"

	"github.com/phrazzld/detailer-api/internal/domain"
	"github.com/phrazzld/detailer-api/internal/platform/logger"
)

// Source loads the provider catalog from a backing store.
type Source interface {
	ListProviders(ctx context.Context) ([]domain.ProviderProfile, error)
}

// Listing serves the provider catalog with fallback.
type Listing struct {
	source Source
	logger *slog.Logger

	mu       sync.RWMutex
	lastGood []domain.ProviderProfile
}

// NewListing creates a Listing over source. A nil source serves the default catalog.
func NewListing(source Source, logger *slog.Logger) *Listing {
	if logger == nil {
		logger = slog.Default()
	}
	return &Listing{
		source: source,
		logger: logger.With(slog.String("component", "directory")),
	}
}

// ListProviders returns the current catalog. Source failures are logged and
// answered with the last successful listing, or the default catalog if there
// has been none. An empty source also yields the default catalog.
func (l *Listing) ListProviders(ctx context.Context) []domain.ProviderProfile {
	log := logger.FromContextOrDefault(ctx, l.logger)

	if l.source == nil {
		return DefaultCatalog()
	}

	providers, err := l.source.ListProviders(ctx)
	if err != nil {
		log.Warn("provider catalog unavailable, serving fallback", slog.String("error", err.Error()))
		return l.fallback()
	}
	if len(providers) == 0 {
		log.Debug("provider catalog empty, serving default catalog")
		return DefaultCatalog()
	}

	l.mu.Lock()
	l.lastGood = cloneProfiles(providers)
	l.mu.Unlock()

	return providers
}

// Lookup finds the profile owned by id.
func (l *Listing) Lookup(ctx context.Context, id string) (domain.ProviderProfile, bool) {
	if id == "" {
		return domain.ProviderProfile{}, false
	}
	for _, p := range l.ListProviders(ctx) {
		if p.ID == id {
			return p, true
		}
	}
	return domain.ProviderProfile{}, false
}

// HasProfile reports whether identity owns a provider profile.
func (l *Listing) HasProfile(ctx context.Context, identity string) bool {
	_, ok := l.Lookup(ctx, identity)
	return ok
}

func (l *Listing) fallback() []domain.ProviderProfile {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if len(l.lastGood) > 0 {
		return cloneProfiles(l.lastGood)
	}
	return DefaultCatalog()
}

func cloneProfiles(in []domain.ProviderProfile) []domain.ProviderProfile {
	out := make([]domain.ProviderProfile, len(in))
	for i, p := range in {
		p.Services = append([]string(nil), p.Services...)
		out[i] = p
	}
	return out
}

// DefaultCatalog returns the built-in provider catalog.
func DefaultCatalog() []domain.ProviderProfile {
	return []domain.ProviderProfile{
		{ID: "1", Name: "BRNNO Elite", Location: "Los Angeles, CA", Phone: "(323) 555-0123",
			Rating: 4.8, ReviewCount: 127, Services: []string{"Car", "Truck", "SUV"}},
		{ID: "2", Name: "BRNNO Shine", Location: "Beverly Hills, CA", Phone: "(310) 555-0456",
			Rating: 4.9, ReviewCount: 89, Services: []string{"Car", "Motorcycle", "SUV"}},
		{ID: "3", Name: "BRNNO Premium", Location: "Santa Monica, CA", Phone: "(424) 555-0789",
			Rating: 4.7, ReviewCount: 203, Services: []string{"Car", "Truck", "RV"}},
		{ID: "4", Name: "BRNNO Care", Location: "Hollywood, CA", Phone: "(323) 555-0321",
			Rating: 4.6, ReviewCount: 156, Services: []string{"Car", "SUV"}},
		{ID: "5", Name: "BRNNO Experts", Location: "Pasadena, CA", Phone: "(626) 555-0654",
			Rating: 4.9, ReviewCount: 94, Services: []string{"Car", "Truck", "SUV", "Commercial"}},
	}
}

// StaticSource serves a fixed catalog. It backs the memory store configuration and tests.
type StaticSource struct {
	Providers []domain.ProviderProfile
	Err       error
}

// ListProviders implements Source.
func (s *StaticSource) ListProviders(context.Context) ([]domain.ProviderProfile, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	return cloneProfiles(s.Providers), nil
}
