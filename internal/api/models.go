package api

import (
	"time"

	"github.com/phrazzld/detailer-api/internal/domain"
	"github.com/phrazzld/detailer-api/internal/feed"
)

// CreateRequestBody is the payload for POST /api/requests.
type CreateRequestBody struct {
	ProviderID string `json:"providerId"`
	domain.RequestPayload
}

// RequestResponse is the wire form of a service request.
type RequestResponse struct {
	ID                 string    `json:"id"`
	CustomerID         string    `json:"customerId"`
	ProviderID         string    `json:"providerId"`
	ProviderName       string    `json:"providerName"`
	ServiceDescription string    `json:"serviceDescription"`
	VehicleCategory    string    `json:"vehicleCategory"`
	ContactName        string    `json:"contactName"`
	ContactPhone       string    `json:"contactPhone"`
	ContactEmail       string    `json:"contactEmail"`
	PreferredDate      string    `json:"preferredDate"`
	PreferredTime      string    `json:"preferredTime"`
	Status             string    `json:"status"`
	CreatedAt          time.Time `json:"createdAt"`
}

// RequestListResponse wraps a list of requests for one viewing role.
type RequestListResponse struct {
	Role     string            `json:"role"`
	Requests []RequestResponse `json:"requests"`
}

// ProviderResponse is the wire form of a provider profile.
type ProviderResponse struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Location    string   `json:"location"`
	Phone       string   `json:"phone"`
	Rating      float64  `json:"rating"`
	ReviewCount int      `json:"reviewCount"`
	Services    []string `json:"services"`
}

// Feed message types.
const (
	FeedMessageSnapshot = "snapshot"
	FeedMessageRole     = "role"
	FeedMessageError    = "error"
)

// Feed command types sent by clients.
const (
	FeedCommandSwitchRole = "switchRole"
	FeedCommandSignOut    = "signOut"
)

// FeedMessage is one websocket frame on the live feed. Snapshot frames carry
// the full request list of Role; role frames announce the displayed Role and
// carry Error when a switch was refused.
type FeedMessage struct {
	Type     string            `json:"type"`
	Role     string            `json:"role,omitempty"`
	Seq      uint64            `json:"seq,omitempty"`
	Requests []RequestResponse `json:"requests"`
	Error    string            `json:"error,omitempty"`
}

func requestToResponse(r *domain.Request) RequestResponse {
	return RequestResponse{
		ID:                 r.ID,
		CustomerID:         r.CustomerID,
		ProviderID:         r.ProviderID,
		ProviderName:       r.ProviderDisplayName,
		ServiceDescription: r.ServiceDescription,
		VehicleCategory:    r.VehicleCategory,
		ContactName:        r.ContactName,
		ContactPhone:       r.ContactPhone,
		ContactEmail:       r.ContactEmail,
		PreferredDate:      r.PreferredDate,
		PreferredTime:      r.PreferredTime,
		Status:             string(r.Status),
		CreatedAt:          r.CreatedAt,
	}
}

func requestsToResponse(reqs []*domain.Request) []RequestResponse {
	out := make([]RequestResponse, 0, len(reqs))
	for _, r := range reqs {
		out = append(out, requestToResponse(r))
	}
	return out
}

func providerToResponse(p domain.ProviderProfile) ProviderResponse {
	services := p.Services
	if services == nil {
		services = []string{}
	}
	return ProviderResponse{
		ID:          p.ID,
		Name:        p.Name,
		Location:    p.Location,
		Phone:       p.Phone,
		Rating:      p.Rating,
		ReviewCount: p.ReviewCount,
		Services:    services,
	}
}

// FeedCommand is one client frame on the live feed.
type FeedCommand struct {
	Type string `json:"type"`
}

func roleMessage(role domain.Role, errMsg string) FeedMessage {
	return FeedMessage{Type: FeedMessageRole, Role: string(role), Error: errMsg}
}

func snapshotToMessage(s feed.Snapshot) FeedMessage {
	return FeedMessage{
		Type:     FeedMessageSnapshot,
		Role:     string(s.Role),
		Seq:      s.Seq,
		Requests: requestsToResponse(s.Requests),
	}
}
