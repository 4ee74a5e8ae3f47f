package api

import (
	"log/slog"
	"net/http"

	"github.com/phrazzld/detailer-api/internal/api/shared"
	"github.com/phrazzld/detailer-api/internal/domain"
	"github.com/phrazzld/detailer-api/internal/platform/logger"
	"github.com/phrazzld/detailer-api/internal/service"
)

// RequestHandler handles service request HTTP endpoints.
type RequestHandler struct {
	requests service.RequestService
	logger   *slog.Logger
}

// NewRequestHandler creates a new RequestHandler.
func NewRequestHandler(requests service.RequestService, logger *slog.Logger) *RequestHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &RequestHandler{
		requests: requests,
		logger:   logger.With(slog.String("component", "request_handler")),
	}
}

// CreateRequest handles POST /api/requests.
func (h *RequestHandler) CreateRequest(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFromRequest(w, r)
	if !ok {
		return
	}

	var body CreateRequestBody
	if err := shared.DecodeJSON(r, &body); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid request format", err)
		return
	}

	req, err := h.requests.Create(r.Context(), identity, body.ProviderID, body.RequestPayload)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to submit request")
		return
	}

	h.log(r).Info("request submitted",
		slog.String("request_id", req.ID),
		slog.String("provider_id", req.ProviderID))
	shared.RespondWithJSON(w, r, http.StatusCreated, requestToResponse(req))
}

// ListRequests handles GET /api/requests?role=customer|provider.
func (h *RequestHandler) ListRequests(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFromRequest(w, r)
	if !ok {
		return
	}

	role, err := roleParam(r)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	var reqs []*domain.Request
	if role == domain.RoleProvider {
		reqs, err = h.requests.ListForProvider(r.Context(), identity)
	} else {
		reqs, err = h.requests.ListForCustomer(r.Context(), identity)
	}
	if err != nil {
		HandleAPIError(w, r, err, "Failed to load requests")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, RequestListResponse{
		Role:     string(role),
		Requests: requestsToResponse(reqs),
	})
}

// GetRequest handles GET /api/requests/{id}.
func (h *RequestHandler) GetRequest(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFromRequest(w, r)
	if !ok {
		return
	}
	id, err := pathParam(r, "id")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	req, err := h.requests.Get(r.Context(), id, identity)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to load request")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, requestToResponse(req))
}

// AcceptRequest handles POST /api/requests/{id}/accept.
func (h *RequestHandler) AcceptRequest(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, domain.StatusAccepted)
}

// DeclineRequest handles POST /api/requests/{id}/decline.
func (h *RequestHandler) DeclineRequest(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, domain.StatusDeclined)
}

// CancelRequest handles POST /api/requests/{id}/cancel.
func (h *RequestHandler) CancelRequest(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, domain.StatusCancelled)
}

func (h *RequestHandler) transition(w http.ResponseWriter, r *http.Request, target domain.RequestStatus) {
	identity, ok := identityFromRequest(w, r)
	if !ok {
		return
	}
	id, err := pathParam(r, "id")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	req, err := h.requests.Transition(r.Context(), id, identity, target)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to update request")
		return
	}

	h.log(r).Info("request resolved",
		slog.String("request_id", req.ID),
		slog.String("status", string(req.Status)))
	shared.RespondWithJSON(w, r, http.StatusOK, requestToResponse(req))
}

func (h *RequestHandler) log(r *http.Request) *slog.Logger {
	return logger.FromContextOrDefault(r.Context(), h.logger)
}
