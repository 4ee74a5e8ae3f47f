package memory

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/phrazzld/detailer-api/internal/domain"
	"github.com/phrazzld/detailer-api/internal/platform/logger"
	"github.com/phrazzld/detailer-api/internal/store"
)

// RequestStore implements store.RequestStore with a mutex-guarded map.
type RequestStore struct {
	mu       sync.RWMutex
	records  map[string]*domain.Request
	watchers map[*watcher]struct{}
	newID    func() string
	logger   *slog.Logger
}

// Ensure RequestStore implements store.RequestStore interface
var _ store.RequestStore = (*RequestStore)(nil)

// NewRequestStore creates an empty store. If logger is nil, a default logger will be used.
func NewRequestStore(logger *slog.Logger) *RequestStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &RequestStore{
		records:  make(map[string]*domain.Request),
		watchers: make(map[*watcher]struct{}),
		newID:    uuid.NewString,
		logger:   logger.With(slog.String("component", "memory_request_store")),
	}
}

// Insert implements store.RequestStore.Insert.
func (s *RequestStore) Insert(ctx context.Context, req *domain.Request) (string, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := ctx.Err(); err != nil {
		return "", err
	}
	if req == nil {
		return "", fmt.Errorf("%w: nil request", store.ErrInvalidEntity)
	}
	if err := req.Validate(); err != nil {
		log.Warn("request validation failed during insert", slog.String("error", err.Error()))
		return "", fmt.Errorf("%w: %w", store.ErrInvalidEntity, err)
	}

	record := req.Clone()
	record.ID = s.newID()

	s.mu.Lock()
	s.records[record.ID] = record
	s.publishLocked(record)
	s.mu.Unlock()

	log.Debug("request inserted",
		slog.String("request_id", record.ID),
		slog.String("customer_id", record.CustomerID),
		slog.String("provider_id", record.ProviderID))
	return record.ID, nil
}

// GetByID implements store.RequestStore.GetByID.
func (s *RequestStore) GetByID(ctx context.Context, id string) (*domain.Request, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.records[id]
	if !ok {
		return nil, store.ErrRequestNotFound
	}
	return record.Clone(), nil
}

// UpdateStatus implements store.RequestStore.UpdateStatus.
func (s *RequestStore) UpdateStatus(
	ctx context.Context,
	id string,
	expected, next domain.RequestStatus,
) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := ctx.Err(); err != nil {
		return err
	}
	if !next.Valid() {
		return fmt.Errorf("%w: %w", store.ErrInvalidEntity, domain.ErrInvalidStatus)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[id]
	if !ok {
		return store.ErrRequestNotFound
	}
	if record.Status != expected {
		log.Debug("status update lost compare-and-set",
			slog.String("request_id", id),
			slog.String("expected", string(expected)),
			slog.String("actual", string(record.Status)))
		return store.ErrConflict
	}

	// Replace rather than mutate so clones handed out earlier stay untouched.
	updated := record.Clone()
	updated.Status = next
	s.records[id] = updated
	s.publishLocked(updated)

	log.Debug("request status updated",
		slog.String("request_id", id),
		slog.String("status", string(next)))
	return nil
}

// Query implements store.RequestStore.Query.
func (s *RequestStore) Query(ctx context.Context, filter store.Filter) ([]*domain.Request, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked(filter), nil
}

// Watch implements store.RequestStore.Watch. The first Next returns the
// matching set as of this call.
func (s *RequestStore) Watch(ctx context.Context, filter store.Filter) (store.Watcher, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	w := &watcher{
		store:  s,
		filter: filter,
		ready:  make(chan struct{}, 1),
	}

	s.mu.Lock()
	w.offer(s.snapshotLocked(filter))
	s.watchers[w] = struct{}{}
	s.mu.Unlock()

	return w, nil
}

// DropWatches ends every open watch with err, as if the connection to a
// remote store had been lost. Watches opened afterwards are unaffected.
func (s *RequestStore) DropWatches(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for w := range s.watchers {
		w.fail(err)
		delete(s.watchers, w)
	}
	s.logger.Warn("dropped all watches", slog.String("error", err.Error()))
}

// WatcherCount returns the number of open watches.
func (s *RequestStore) WatcherCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.watchers)
}

func (s *RequestStore) snapshotLocked(filter store.Filter) []*domain.Request {
	out := make([]*domain.Request, 0)
	for _, record := range s.records {
		if filter.Matches(record) {
			out = append(out, record.Clone())
		}
	}
	store.SortRequests(out)
	return out
}

// publishLocked pushes a fresh snapshot to every watcher whose filter covers changed.
func (s *RequestStore) publishLocked(changed *domain.Request) {
	for w := range s.watchers {
		if w.filter.Matches(changed) {
			w.offer(s.snapshotLocked(w.filter))
		}
	}
}

func (s *RequestStore) removeWatcher(w *watcher) {
	s.mu.Lock()
	delete(s.watchers, w)
	s.mu.Unlock()
}

// watcher holds at most one undelivered snapshot; a newer one replaces it.
type watcher struct {
	store  *RequestStore
	filter store.Filter
	ready  chan struct{}

	mu      sync.Mutex
	pending []*domain.Request
	hasNext bool
	err     error
	closed  bool
}

func (w *watcher) offer(snapshot []*domain.Request) {
	w.mu.Lock()
	w.pending = snapshot
	w.hasNext = true
	w.mu.Unlock()
	w.signal()
}

func (w *watcher) fail(err error) {
	w.mu.Lock()
	if w.err == nil {
		w.err = err
	}
	w.mu.Unlock()
	w.signal()
}

func (w *watcher) signal() {
	select {
	case w.ready <- struct{}{}:
	default:
	}
}

// Next implements store.Watcher.Next.
func (w *watcher) Next(ctx context.Context) ([]*domain.Request, error) {
	for {
		w.mu.Lock()
		switch {
		case w.closed:
			w.mu.Unlock()
			return nil, store.ErrWatchClosed
		case w.hasNext:
			snapshot := w.pending
			w.pending, w.hasNext = nil, false
			w.mu.Unlock()
			return snapshot, nil
		case w.err != nil:
			err := w.err
			w.mu.Unlock()
			return nil, err
		}
		w.mu.Unlock()

		select {
		case <-w.ready:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Close implements store.Watcher.Close.
func (w *watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	w.pending, w.hasNext = nil, false
	w.mu.Unlock()

	w.store.removeWatcher(w)
	w.signal()
	return nil
}
