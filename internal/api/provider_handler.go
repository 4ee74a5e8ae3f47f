package api

import (
	"context"
	"net/http"

	"github.com/phrazzld/detailer-api/internal/api/shared"
	"github.com/phrazzld/detailer-api/internal/domain"
)

// ProviderLister lists the provider catalog. *directory.Listing implements it.
type ProviderLister interface {
	ListProviders(ctx context.Context) []domain.ProviderProfile
}

// ProviderHandler serves the provider catalog.
type ProviderHandler struct {
	providers ProviderLister
}

// NewProviderHandler creates a new ProviderHandler.
func NewProviderHandler(providers ProviderLister) *ProviderHandler {
	return &ProviderHandler{providers: providers}
}

// ListProviders handles GET /api/providers.
func (h *ProviderHandler) ListProviders(w http.ResponseWriter, r *http.Request) {
	profiles := h.providers.ListProviders(r.Context())
	out := make([]ProviderResponse, 0, len(profiles))
	for _, p := range profiles {
		out = append(out, providerToResponse(p))
	}
	shared.RespondWithJSON(w, r, http.StatusOK, out)
}
