package firestore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/phrazzld/detailer-api/internal/domain"
	"github.com/phrazzld/detailer-api/internal/store"
	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name string
		code codes.Code
		want error
	}{
		{"not found", codes.NotFound, store.ErrNotFound},
		{"already exists", codes.AlreadyExists, store.ErrConflict},
		{"aborted", codes.Aborted, store.ErrConflict},
		{"failed precondition", codes.FailedPrecondition, store.ErrConflict},
		{"invalid argument", codes.InvalidArgument, store.ErrInvalidEntity},
		{"unavailable", codes.Unavailable, store.ErrUnavailable},
		{"resource exhausted", codes.ResourceExhausted, store.ErrUnavailable},
		{"canceled", codes.Canceled, context.Canceled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, MapError(status.Error(tt.code, "rpc failed")), tt.want)
		})
	}
}

func TestMapError_Passthrough(t *testing.T) {
	assert.NoError(t, MapError(nil))
	assert.Equal(t, context.DeadlineExceeded, MapError(context.DeadlineExceeded))

	other := errors.New("boom")
	assert.Equal(t, other, MapError(other))
}

func TestRequestDocRoundTrip(t *testing.T) {
	created := time.Date(2026, 10, 3, 8, 0, 0, 0, time.UTC)
	req := &domain.Request{
		ID:                  "doc-1",
		CustomerID:          "U1",
		ProviderID:          "P1",
		ProviderDisplayName: "BRNNO Elite",
		RequestPayload: domain.RequestPayload{
			ServiceDescription: "Ceramic coat",
			VehicleCategory:    "Truck",
			ContactName:        "Sam",
			ContactPhone:       "(323) 555-0111",
			ContactEmail:       "sam@example.com",
			PreferredDate:      "2026-10-20",
			PreferredTime:      "09:00",
		},
		Status:    domain.StatusPending,
		CreatedAt: created,
	}

	doc := toDoc(req)
	assert.Equal(t, "P1", doc.ProviderID)
	assert.Equal(t, "BRNNO Elite", doc.ProviderDisplayName)
	assert.Equal(t, "Truck", doc.VehicleCategory)
	assert.Equal(t, "pending", doc.Status)

	assert.Equal(t, req, doc.toDomain("doc-1"))
}

func TestProviderDocOwner(t *testing.T) {
	withOwner := providerDoc{OwnerID: "uid-9", Name: "BRNNO Care", Reviews: 12}
	p := withOwner.toDomain("doc-abc")
	assert.Equal(t, "uid-9", p.ID)
	assert.Equal(t, 12, p.ReviewCount)

	legacy := providerDoc{Name: "BRNNO Shine"}
	assert.Equal(t, "doc-abc", legacy.toDomain("doc-abc").ID)
}
