package feed

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/phrazzld/detailer-api/internal/domain"
	"github.com/phrazzld/detailer-api/internal/mocks"
	"github.com/phrazzld/detailer-api/internal/platform/memory"
	"github.com/phrazzld/detailer-api/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const waitTimeout = 2 * time.Second

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fastOptions() Options {
	return Options{MaxAttempts: 2, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}
}

func insertRequest(t *testing.T, s store.RequestStore, customer, provider string, at time.Time) string {
	t.Helper()
	req, err := domain.NewRequest(customer, provider, "Shine", domain.RequestPayload{
		ServiceDescription: "Exterior wash",
		VehicleCategory:    "Sedan",
		ContactName:        "Dana",
		ContactPhone:       "310-555-0100",
		ContactEmail:       "dana@example.com",
		PreferredDate:      "2026-11-02",
		PreferredTime:      "10:00",
	}, at)
	require.NoError(t, err)
	id, err := s.Insert(context.Background(), req)
	require.NoError(t, err)
	return id
}

// receiveUntil reads snapshots until pred holds or the timeout elapses.
func receiveUntil(t *testing.T, sub *Subscription, pred func(Snapshot) bool) Snapshot {
	t.Helper()
	deadline := time.After(waitTimeout)
	for {
		select {
		case snap, ok := <-sub.Updates():
			require.True(t, ok, "subscription closed early: %v", sub.Err())
			if pred(snap) {
				return snap
			}
		case <-deadline:
			t.Fatalf("timed out waiting for snapshot")
		}
	}
}

func statusOf(snap Snapshot, id string) domain.RequestStatus {
	for _, r := range snap.Requests {
		if r.ID == id {
			return r.Status
		}
	}
	return ""
}

func newChannel(t *testing.T, s store.RequestStore, opts Options) *Channel {
	t.Helper()
	ch, err := NewChannel(s, opts, discardLogger())
	require.NoError(t, err)
	return ch
}

func TestNewChannel_Validation(t *testing.T) {
	_, err := NewChannel(nil, Options{}, nil)
	assert.Error(t, err)

	_, err = NewChannel(memory.NewRequestStore(nil), Options{MaxAttempts: 1, BaseDelay: time.Second}, nil)
	assert.Error(t, err, "max delay below base delay must be rejected")

	ch, err := NewChannel(memory.NewRequestStore(nil), Options{}, nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultOptions(), ch.opts)
}

func TestSubscribe_InvalidFilter(t *testing.T) {
	ch := newChannel(t, memory.NewRequestStore(discardLogger()), fastOptions())

	_, err := ch.Subscribe(context.Background(), store.Filter{})
	assert.ErrorIs(t, err, store.ErrInvalidFilter)

	_, err = ch.Subscribe(context.Background(), store.Filter{CustomerID: "U1", ProviderID: "P1"})
	assert.ErrorIs(t, err, store.ErrInvalidFilter)
}

func TestSubscribe_FirstSnapshotIsCurrentSet(t *testing.T) {
	s := memory.NewRequestStore(discardLogger())
	base := time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)
	older := insertRequest(t, s, "U1", "P1", base)
	newer := insertRequest(t, s, "U1", "P2", base.Add(time.Hour))
	insertRequest(t, s, "U2", "P1", base)

	ch := newChannel(t, s, fastOptions())
	sub, err := ch.Subscribe(context.Background(), store.ForCustomer("U1"))
	require.NoError(t, err)
	defer sub.Cancel()

	snap := receiveUntil(t, sub, func(Snapshot) bool { return true })
	require.Len(t, snap.Requests, 2)
	assert.Equal(t, newer, snap.Requests[0].ID)
	assert.Equal(t, older, snap.Requests[1].ID)
	assert.Equal(t, domain.RoleCustomer, snap.Role)
	assert.Equal(t, uint64(1), snap.Seq)
}

func TestSubscribe_EmptyFeedStillEmits(t *testing.T) {
	ch := newChannel(t, memory.NewRequestStore(discardLogger()), fastOptions())
	sub, err := ch.Subscribe(context.Background(), store.ForProvider("P9"))
	require.NoError(t, err)
	defer sub.Cancel()

	snap := receiveUntil(t, sub, func(Snapshot) bool { return true })
	assert.Empty(t, snap.Requests)
	assert.Equal(t, domain.RoleProvider, snap.Role)
}

func TestSubscribe_DeliversCommittedChanges(t *testing.T) {
	s := memory.NewRequestStore(discardLogger())
	ch := newChannel(t, s, fastOptions())
	sub, err := ch.Subscribe(context.Background(), store.ForProvider("P1"))
	require.NoError(t, err)
	defer sub.Cancel()

	receiveUntil(t, sub, func(Snapshot) bool { return true })

	id := insertRequest(t, s, "U1", "P1", time.Now())
	receiveUntil(t, sub, func(snap Snapshot) bool { return statusOf(snap, id) == domain.StatusPending })

	require.NoError(t, s.UpdateStatus(context.Background(), id, domain.StatusPending, domain.StatusAccepted))
	receiveUntil(t, sub, func(snap Snapshot) bool { return statusOf(snap, id) == domain.StatusAccepted })
}

func TestSubscribe_ResubscribeMatchesFreshQuery(t *testing.T) {
	s := memory.NewRequestStore(discardLogger())
	ctx := context.Background()
	base := time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)
	a := insertRequest(t, s, "U1", "P1", base)
	insertRequest(t, s, "U1", "P2", base.Add(time.Minute))
	require.NoError(t, s.UpdateStatus(ctx, a, domain.StatusPending, domain.StatusDeclined))

	ch := newChannel(t, s, fastOptions())
	first, err := ch.Subscribe(ctx, store.ForCustomer("U1"))
	require.NoError(t, err)
	receiveUntil(t, first, func(Snapshot) bool { return true })
	first.Cancel()

	second, err := ch.Subscribe(ctx, store.ForCustomer("U1"))
	require.NoError(t, err)
	defer second.Cancel()

	snap := receiveUntil(t, second, func(Snapshot) bool { return true })
	want, err := s.Query(ctx, store.ForCustomer("U1"))
	require.NoError(t, err)
	assert.Equal(t, want, snap.Requests)
}

func TestSubscribe_ResyncsAfterDroppedWatch(t *testing.T) {
	s := memory.NewRequestStore(discardLogger())
	ch := newChannel(t, s, fastOptions())
	sub, err := ch.Subscribe(context.Background(), store.ForCustomer("U1"))
	require.NoError(t, err)
	defer sub.Cancel()

	receiveUntil(t, sub, func(Snapshot) bool { return true })

	s.DropWatches(errors.New("connection reset"))
	id := insertRequest(t, s, "U1", "P1", time.Now())

	receiveUntil(t, sub, func(snap Snapshot) bool { return statusOf(snap, id) == domain.StatusPending })
	assert.NoError(t, sub.Err())
	assert.Eventually(t, func() bool { return s.WatcherCount() == 1 }, waitTimeout, 5*time.Millisecond)
}

func TestSubscribe_ExhaustedResyncClosesWithChannelError(t *testing.T) {
	backing := memory.NewRequestStore(discardLogger())
	var watches atomic.Int32
	mock := &mocks.MockRequestStore{
		Delegate: backing,
		WatchFn: func(ctx context.Context, filter store.Filter) (store.Watcher, error) {
			if watches.Add(1) == 1 {
				return backing.Watch(ctx, filter)
			}
			return nil, store.ErrUnavailable
		},
	}

	ch := newChannel(t, mock, fastOptions())
	sub, err := ch.Subscribe(context.Background(), store.ForCustomer("U1"))
	require.NoError(t, err)
	receiveUntil(t, sub, func(Snapshot) bool { return true })

	backing.DropWatches(errors.New("connection reset"))

	select {
	case <-sub.Done():
	case <-time.After(waitTimeout):
		t.Fatal("subscription did not close")
	}

	_, open := <-sub.Updates()
	assert.False(t, open)

	err = sub.Err()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrChannel)
	assert.ErrorIs(t, err, store.ErrUnavailable)

	var chErr *ChannelError
	require.ErrorAs(t, err, &chErr)
	assert.Equal(t, 3, chErr.Attempts)
	assert.Equal(t, int32(4), watches.Load())

	sub.Cancel()
}

func TestSubscribe_StoreFailureAtOpen(t *testing.T) {
	mock := &mocks.MockRequestStore{
		WatchFn: func(context.Context, store.Filter) (store.Watcher, error) {
			return nil, store.ErrUnavailable
		},
	}
	ch := newChannel(t, mock, fastOptions())

	_, err := ch.Subscribe(context.Background(), store.ForCustomer("U1"))
	assert.ErrorIs(t, err, ErrChannel)
	assert.ErrorIs(t, err, store.ErrUnavailable)
}

func TestSubscription_CancelIsIdempotent(t *testing.T) {
	s := memory.NewRequestStore(discardLogger())
	ch := newChannel(t, s, fastOptions())
	sub, err := ch.Subscribe(context.Background(), store.ForCustomer("U1"))
	require.NoError(t, err)

	sub.Cancel()
	sub.Cancel()

	assert.NoError(t, sub.Err())
	assert.Equal(t, 0, s.WatcherCount())
	for range sub.Updates() {
	}
}

func TestSubscription_EndsWithParentContext(t *testing.T) {
	s := memory.NewRequestStore(discardLogger())
	ch := newChannel(t, s, fastOptions())
	ctx, cancel := context.WithCancel(context.Background())
	sub, err := ch.Subscribe(ctx, store.ForCustomer("U1"))
	require.NoError(t, err)

	cancel()
	select {
	case <-sub.Done():
	case <-time.After(waitTimeout):
		t.Fatal("subscription outlived its context")
	}
	assert.NoError(t, sub.Err())
	sub.Cancel()
}

func TestSubscribe_PartiesConverge(t *testing.T) {
	s := memory.NewRequestStore(discardLogger())
	id := insertRequest(t, s, "U1", "P1", time.Now())
	ch := newChannel(t, s, fastOptions())

	customer, err := ch.Subscribe(context.Background(), store.ForCustomer("U1"))
	require.NoError(t, err)
	defer customer.Cancel()
	provider, err := ch.Subscribe(context.Background(), store.ForProvider("P1"))
	require.NoError(t, err)
	defer provider.Cancel()

	require.NoError(t, s.UpdateStatus(context.Background(), id, domain.StatusPending, domain.StatusCancelled))
	err = s.UpdateStatus(context.Background(), id, domain.StatusPending, domain.StatusAccepted)
	require.ErrorIs(t, err, store.ErrConflict)

	receiveUntil(t, customer, func(snap Snapshot) bool { return statusOf(snap, id) == domain.StatusCancelled })
	receiveUntil(t, provider, func(snap Snapshot) bool { return statusOf(snap, id) == domain.StatusCancelled })
}

// scriptedWatcher yields whatever the test pushes on steps.
type scriptedWatcher struct {
	steps chan []*domain.Request
}

func (w *scriptedWatcher) Next(ctx context.Context) ([]*domain.Request, error) {
	select {
	case s := <-w.steps:
		return s, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (w *scriptedWatcher) Close() error { return nil }

func scriptedChannel(t *testing.T) (*Channel, *scriptedWatcher) {
	t.Helper()
	w := &scriptedWatcher{steps: make(chan []*domain.Request)}
	mock := &mocks.MockRequestStore{
		WatchFn: func(context.Context, store.Filter) (store.Watcher, error) { return w, nil },
	}
	return newChannel(t, mock, fastOptions()), w
}

func withStatus(id string, status domain.RequestStatus) *domain.Request {
	return &domain.Request{ID: id, CustomerID: "U1", ProviderID: "P1", Status: status}
}

func TestSubscription_DropsRegressingSnapshots(t *testing.T) {
	ch, w := scriptedChannel(t)
	sub, err := ch.Subscribe(context.Background(), store.ForCustomer("U1"))
	require.NoError(t, err)
	defer sub.Cancel()

	w.steps <- []*domain.Request{withStatus("r1", domain.StatusAccepted)}
	first := receiveUntil(t, sub, func(Snapshot) bool { return true })
	assert.Equal(t, domain.StatusAccepted, statusOf(first, "r1"))

	w.steps <- []*domain.Request{withStatus("r1", domain.StatusPending)}
	w.steps <- []*domain.Request{withStatus("r1", domain.StatusCancelled)}
	w.steps <- []*domain.Request{withStatus("r1", domain.StatusAccepted), withStatus("r2", domain.StatusPending)}

	next := receiveUntil(t, sub, func(Snapshot) bool { return true })
	assert.Equal(t, uint64(2), next.Seq)
	assert.Equal(t, domain.StatusAccepted, statusOf(next, "r1"))
	assert.Equal(t, domain.StatusPending, statusOf(next, "r2"))
}

func TestSubscription_LatestWins(t *testing.T) {
	ch, w := scriptedChannel(t)
	sub, err := ch.Subscribe(context.Background(), store.ForCustomer("U1"))
	require.NoError(t, err)
	defer sub.Cancel()

	w.steps <- []*domain.Request{withStatus("r1", domain.StatusPending)}
	w.steps <- []*domain.Request{withStatus("r1", domain.StatusPending), withStatus("r2", domain.StatusPending)}
	w.steps <- []*domain.Request{withStatus("r1", domain.StatusDeclined), withStatus("r2", domain.StatusPending)}

	first := receiveUntil(t, sub, func(Snapshot) bool { return true })
	assert.GreaterOrEqual(t, first.Seq, uint64(2), "oldest snapshot should have been replaced")

	last := first
	if last.Seq < 3 {
		last = receiveUntil(t, sub, func(snap Snapshot) bool { return snap.Seq == 3 })
	}
	assert.Equal(t, domain.StatusDeclined, statusOf(last, "r1"))
}
