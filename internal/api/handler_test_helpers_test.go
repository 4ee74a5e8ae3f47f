package api

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/phrazzld/detailer-api/internal/api/shared"
	"github.com/phrazzld/detailer-api/internal/domain"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// asIdentity stands in for the auth middleware.
func asIdentity(identity string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := shared.SetTraceID(r.Context())
			if identity != "" {
				ctx = shared.WithIdentity(ctx, identity)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func requestRouter(h *RequestHandler, identity string) http.Handler {
	r := chi.NewRouter()
	r.Use(asIdentity(identity))
	r.Post("/api/requests", h.CreateRequest)
	r.Get("/api/requests", h.ListRequests)
	r.Get("/api/requests/{id}", h.GetRequest)
	r.Post("/api/requests/{id}/accept", h.AcceptRequest)
	r.Post("/api/requests/{id}/decline", h.DeclineRequest)
	r.Post("/api/requests/{id}/cancel", h.CancelRequest)
	return r
}

func doJSON(t *testing.T, h http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(t, json.NewEncoder(&buf).Encode(b))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) shared.ErrorResponse {
	t.Helper()
	var resp shared.ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	return resp
}

func sampleRequest(status domain.RequestStatus) *domain.Request {
	return &domain.Request{
		ID:                  "req-1",
		CustomerID:          "U1",
		ProviderID:          "P1",
		ProviderDisplayName: "BRNNO Shine",
		RequestPayload: domain.RequestPayload{
			ServiceDescription: "Full detail",
			VehicleCategory:    "SUV",
			ContactName:        "Dana",
			ContactPhone:       "310-555-0100",
			ContactEmail:       "dana@example.com",
			PreferredDate:      "2026-11-02",
			PreferredTime:      "10:00",
		},
		Status:    status,
		CreatedAt: time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC),
	}
}
