package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/phrazzld/detailer-api/internal/api/shared"
	"github.com/phrazzld/detailer-api/internal/domain"
	"github.com/phrazzld/detailer-api/internal/service"
)

// identityFromRequest returns the authenticated identity placed in the
// context by the auth middleware. It writes a 401 when there is none.
func identityFromRequest(w http.ResponseWriter, r *http.Request) (string, bool) {
	identity, ok := shared.IdentityFrom(r.Context())
	if !ok {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Identity not found in request context")
		return "", false
	}
	return identity, true
}

// pathParam extracts a required, non-blank URL path parameter.
func pathParam(r *http.Request, name string) (string, error) {
	value := strings.TrimSpace(chi.URLParam(r, name))
	if value == "" {
		return "", validation(name, "is required")
	}
	return value, nil
}

// roleParam reads the "role" query parameter, defaulting to customer.
func roleParam(r *http.Request) (domain.Role, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("role"))
	if raw == "" {
		return domain.RoleCustomer, nil
	}
	role := domain.Role(raw)
	if !role.Valid() {
		return "", validation("role", "must be customer or provider")
	}
	return role, nil
}

func validation(field, message string) error {
	return fmt.Errorf("%w: %w", service.ErrValidation, domain.NewValidationError(field, message, nil))
}
