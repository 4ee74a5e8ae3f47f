package service_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/phrazzld/detailer-api/internal/directory"
	"github.com/phrazzld/detailer-api/internal/domain"
	"github.com/phrazzld/detailer-api/internal/events"
	"github.com/phrazzld/detailer-api/internal/mocks"
	"github.com/phrazzld/detailer-api/internal/platform/memory"
	"github.com/phrazzld/detailer-api/internal/service"
	"github.com/phrazzld/detailer-api/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

var fixedNow = time.Date(2026, 10, 17, 15, 4, 5, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testDirectory() *directory.Listing {
	return directory.NewListing(&directory.StaticSource{Providers: []domain.ProviderProfile{
		{ID: "P1", Name: "BRNNO Shine"},
		{ID: "P2", Name: "BRNNO Care"},
	}}, discardLogger())
}

func validPayload() domain.RequestPayload {
	return domain.RequestPayload{
		ServiceDescription: "Full detail",
		VehicleCategory:    "SUV",
		ContactName:        "Dana",
		ContactPhone:       "(310) 555-0100",
		ContactEmail:       "dana@example.com",
		PreferredDate:      "2026-11-02",
		PreferredTime:      "10:00",
	}
}

// eventRecorder collects emitted events.
type eventRecorder struct {
	mu     sync.Mutex
	events []*events.RequestEvent
}

func (r *eventRecorder) HandleEvent(_ context.Context, e *events.RequestEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *eventRecorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}

type fixture struct {
	svc      service.RequestService
	store    *memory.RequestStore
	recorder *eventRecorder
}

func newFixture(t *testing.T, requests store.RequestStore) fixture {
	t.Helper()
	mem := memory.NewRequestStore(discardLogger())
	if requests == nil {
		requests = mem
	}

	recorder := &eventRecorder{}
	emitter := events.NewInMemoryEventEmitter(discardLogger())
	emitter.RegisterHandler(recorder)

	svc, err := service.NewRequestService(requests, testDirectory(), emitter, discardLogger(),
		service.WithClock(func() time.Time { return fixedNow }))
	require.NoError(t, err)

	return fixture{svc: svc, store: mem, recorder: recorder}
}

func (f fixture) create(t *testing.T, customerID, providerID string) *domain.Request {
	t.Helper()
	req, err := f.svc.Create(context.Background(), customerID, providerID, validPayload())
	require.NoError(t, err)
	return req
}

func TestNewRequestService_Validation(t *testing.T) {
	_, err := service.NewRequestService(nil, testDirectory(), nil, nil)
	assert.Error(t, err)

	_, err = service.NewRequestService(memory.NewRequestStore(nil), nil, nil, nil)
	assert.Error(t, err)

	svc, err := service.NewRequestService(memory.NewRequestStore(nil), testDirectory(), nil, nil)
	assert.NoError(t, err)
	assert.NotNil(t, svc)
}

func TestCreate(t *testing.T) {
	f := newFixture(t, nil)

	req := f.create(t, "U1", "P1")

	assert.NotEmpty(t, req.ID)
	assert.Equal(t, domain.StatusPending, req.Status)
	assert.Equal(t, fixedNow, req.CreatedAt)
	assert.Equal(t, "BRNNO Shine", req.ProviderDisplayName)
	assert.Equal(t, []string{events.TypeRequestCreated}, f.recorder.types())

	stored, err := f.store.GetByID(context.Background(), req.ID)
	require.NoError(t, err)
	assert.Equal(t, req, stored)
}

func TestCreate_ValidationErrors(t *testing.T) {
	tests := []struct {
		name       string
		customerID string
		providerID string
		mutate     func(p *domain.RequestPayload)
		field      string
	}{
		{"missing phone", "U1", "P1", func(p *domain.RequestPayload) { p.ContactPhone = "" }, "contactPhone"},
		{"blank description", "U1", "P1", func(p *domain.RequestPayload) { p.ServiceDescription = "   " }, "serviceDescription"},
		{"missing time", "U1", "P1", func(p *domain.RequestPayload) { p.PreferredTime = "" }, "preferredTime"},
		{"unknown provider", "U1", "P9", func(*domain.RequestPayload) {}, "providerId"},
		{"self request", "P1", "P1", func(*domain.RequestPayload) {}, "providerId"},
		{"missing customer", "", "P1", func(*domain.RequestPayload) {}, "customerId"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil)
			payload := validPayload()
			tt.mutate(&payload)

			_, err := f.svc.Create(context.Background(), tt.customerID, tt.providerID, payload)

			require.ErrorIs(t, err, service.ErrValidation)
			field, ok := service.FieldOf(err)
			require.True(t, ok)
			assert.Equal(t, tt.field, field)

			list, _ := f.store.Query(context.Background(), store.ForProvider("P1"))
			assert.Empty(t, list, "nothing may be persisted")
			assert.Empty(t, f.recorder.types())
		})
	}
}

func TestCreate_UnknownProviderCause(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.svc.Create(context.Background(), "U1", "P9", validPayload())

	require.ErrorIs(t, err, service.ErrValidation)
	assert.ErrorIs(t, err, store.ErrProviderNotFound)
	assert.True(t, store.IsNotFoundError(err))
	assert.NotErrorIs(t, err, service.ErrNotFound)
}

func TestCreate_StoreFailures(t *testing.T) {
	t.Run("persistence", func(t *testing.T) {
		f := newFixture(t, &mocks.MockRequestStore{
			InsertFn: func(context.Context, *domain.Request) (string, error) {
				return "", store.ErrUnavailable
			},
		})

		_, err := f.svc.Create(context.Background(), "U1", "P1", validPayload())

		assert.ErrorIs(t, err, service.ErrPersistence)
		var svcErr *service.RequestServiceError
		require.ErrorAs(t, err, &svcErr)
		assert.Equal(t, "create", svcErr.Operation)
	})

	t.Run("interrupted insert has unknown outcome", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		f := newFixture(t, &mocks.MockRequestStore{
			InsertFn: func(ctx context.Context, _ *domain.Request) (string, error) {
				cancel()
				return "", ctx.Err()
			},
		})

		_, err := f.svc.Create(ctx, "U1", "P1", validPayload())

		assert.ErrorIs(t, err, service.ErrUnknownOutcome)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestLifecycleScenario(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	req := f.create(t, "U1", "P1")

	incoming, err := f.svc.ListForProvider(ctx, "P1")
	require.NoError(t, err)
	require.Len(t, incoming, 1)
	assert.Equal(t, domain.StatusPending, incoming[0].Status)

	accepted, err := f.svc.Accept(ctx, req.ID, "P1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAccepted, accepted.Status)

	mine, err := f.svc.ListForCustomer(ctx, "U1")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, domain.StatusAccepted, mine[0].Status)

	_, err = f.svc.Decline(ctx, req.ID, "P1")
	assert.ErrorIs(t, err, service.ErrIllegalTransition)

	_, err = f.svc.Cancel(ctx, req.ID, "U1")
	assert.ErrorIs(t, err, service.ErrIllegalTransition)

	current, err := f.svc.Get(ctx, req.ID, "U1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAccepted, current.Status)

	assert.Equal(t, []string{
		events.TypeRequestCreated,
		events.TypeRequestTransitioned,
		events.TypeTransitionRejected,
		events.TypeTransitionRejected,
	}, f.recorder.types())
}

func TestTransition_Rules(t *testing.T) {
	tests := []struct {
		name     string
		identity string
		target   domain.RequestStatus
		wantErr  error
		final    domain.RequestStatus
	}{
		{"provider accepts", "P1", domain.StatusAccepted, nil, domain.StatusAccepted},
		{"provider declines", "P1", domain.StatusDeclined, nil, domain.StatusDeclined},
		{"customer cancels", "U1", domain.StatusCancelled, nil, domain.StatusCancelled},
		{"provider cannot cancel", "P1", domain.StatusCancelled, service.ErrIllegalTransition, domain.StatusPending},
		{"customer cannot accept", "U1", domain.StatusAccepted, service.ErrIllegalTransition, domain.StatusPending},
		{"back to pending", "U1", domain.StatusPending, service.ErrIllegalTransition, domain.StatusPending},
		{"third party", "U9", domain.StatusCancelled, service.ErrForbidden, domain.StatusPending},
		{"empty identity", "", domain.StatusAccepted, service.ErrForbidden, domain.StatusPending},
		{"unknown status", "P1", domain.RequestStatus("done"), service.ErrValidation, domain.StatusPending},
		{"third party unknown status", "U9", domain.RequestStatus("done"), service.ErrForbidden, domain.StatusPending},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			f := newFixture(t, nil)
			req := f.create(t, "U1", "P1")

			got, err := f.svc.Transition(ctx, req.ID, tt.identity, tt.target)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, got)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.final, got.Status)
			}

			stored, err := f.store.GetByID(ctx, req.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.final, stored.Status)
		})
	}
}

func TestTransition_ThirdPartyForbiddenAfterResolution(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	req := f.create(t, "U1", "P1")
	_, err := f.svc.Accept(ctx, req.ID, "P1")
	require.NoError(t, err)

	_, err = f.svc.Transition(ctx, req.ID, "U9", domain.StatusCancelled)
	assert.ErrorIs(t, err, service.ErrForbidden)
}

func TestTransition_NotFound(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.svc.Accept(context.Background(), "missing", "P1")
	assert.ErrorIs(t, err, service.ErrNotFound)
}

func TestTransition_StoreOutcomes(t *testing.T) {
	pending := &domain.Request{
		ID: "R1", CustomerID: "U1", ProviderID: "P1",
		RequestPayload: validPayload(), Status: domain.StatusPending, CreatedAt: fixedNow,
	}
	load := func(context.Context, string) (*domain.Request, error) { return pending.Clone(), nil }

	t.Run("lost compare-and-set", func(t *testing.T) {
		f := newFixture(t, &mocks.MockRequestStore{
			GetByIDFn: load,
			UpdateStatusFn: func(context.Context, string, domain.RequestStatus, domain.RequestStatus) error {
				return store.ErrConflict
			},
		})
		_, err := f.svc.Accept(context.Background(), "R1", "P1")
		assert.ErrorIs(t, err, service.ErrIllegalTransition)
		assert.Equal(t, []string{events.TypeTransitionRejected}, f.recorder.types())
	})

	t.Run("expects the loaded status", func(t *testing.T) {
		var gotExpected, gotNext domain.RequestStatus
		f := newFixture(t, &mocks.MockRequestStore{
			GetByIDFn: load,
			UpdateStatusFn: func(_ context.Context, _ string, expected, next domain.RequestStatus) error {
				gotExpected, gotNext = expected, next
				return nil
			},
		})
		_, err := f.svc.Cancel(context.Background(), "R1", "U1")
		require.NoError(t, err)
		assert.Equal(t, domain.StatusPending, gotExpected)
		assert.Equal(t, domain.StatusCancelled, gotNext)
	})

	t.Run("store unavailable", func(t *testing.T) {
		f := newFixture(t, &mocks.MockRequestStore{
			GetByIDFn: load,
			UpdateStatusFn: func(context.Context, string, domain.RequestStatus, domain.RequestStatus) error {
				return store.ErrUnavailable
			},
		})
		_, err := f.svc.Accept(context.Background(), "R1", "P1")
		assert.ErrorIs(t, err, service.ErrPersistence)
		assert.NotErrorIs(t, err, service.ErrUnknownOutcome)
	})

	t.Run("deadline during write", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond)
		defer cancel()
		f := newFixture(t, &mocks.MockRequestStore{
			GetByIDFn: load,
			UpdateStatusFn: func(ctx context.Context, _ string, _, _ domain.RequestStatus) error {
				<-ctx.Done()
				return ctx.Err()
			},
		})
		_, err := f.svc.Accept(ctx, "R1", "P1")
		assert.ErrorIs(t, err, service.ErrUnknownOutcome)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("load failure", func(t *testing.T) {
		f := newFixture(t, &mocks.MockRequestStore{
			GetByIDFn: func(context.Context, string) (*domain.Request, error) {
				return nil, errors.New("connection reset")
			},
		})
		_, err := f.svc.Accept(context.Background(), "R1", "P1")
		assert.ErrorIs(t, err, service.ErrPersistence)
	})
}

// Accept and cancel racing on one pending request: exactly one wins.
func TestTransition_AcceptCancelRace(t *testing.T) {
	for i := 0; i < 50; i++ {
		ctx := context.Background()
		f := newFixture(t, nil)
		req := f.create(t, "U1", "P1")

		var acceptErr, cancelErr error
		var g errgroup.Group
		start := make(chan struct{})
		g.Go(func() error {
			<-start
			_, acceptErr = f.svc.Accept(ctx, req.ID, "P1")
			return nil
		})
		g.Go(func() error {
			<-start
			_, cancelErr = f.svc.Cancel(ctx, req.ID, "U1")
			return nil
		})
		close(start)
		require.NoError(t, g.Wait())

		require.True(t, (acceptErr == nil) != (cancelErr == nil),
			"exactly one transition must win (accept=%v cancel=%v)", acceptErr, cancelErr)

		stored, err := f.store.GetByID(ctx, req.ID)
		require.NoError(t, err)
		if acceptErr == nil {
			assert.ErrorIs(t, cancelErr, service.ErrIllegalTransition)
			assert.Equal(t, domain.StatusAccepted, stored.Status)
		} else {
			assert.ErrorIs(t, acceptErr, service.ErrIllegalTransition)
			assert.Equal(t, domain.StatusCancelled, stored.Status)
		}
	}
}

func TestGet(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	req := f.create(t, "U1", "P1")

	for _, identity := range []string{"U1", "P1"} {
		got, err := f.svc.Get(ctx, req.ID, identity)
		require.NoError(t, err)
		assert.Equal(t, req.ID, got.ID)
	}

	_, err := f.svc.Get(ctx, req.ID, "U9")
	assert.ErrorIs(t, err, service.ErrForbidden)

	_, err = f.svc.Get(ctx, "missing", "U1")
	assert.ErrorIs(t, err, service.ErrNotFound)
}

func TestList(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	_, err := f.svc.ListForCustomer(ctx, "")
	assert.ErrorIs(t, err, service.ErrValidation)

	empty, err := f.svc.ListForProvider(ctx, "P2")
	require.NoError(t, err)
	assert.Empty(t, empty)

	queryFails := newFixture(t, &mocks.MockRequestStore{
		QueryFn: func(context.Context, store.Filter) ([]*domain.Request, error) {
			return nil, store.ErrUnavailable
		},
	})
	_, err = queryFails.svc.ListForCustomer(ctx, "U1")
	assert.ErrorIs(t, err, service.ErrPersistence)
}
