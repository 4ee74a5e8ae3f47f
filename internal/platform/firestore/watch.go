package firestore

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"cloud.google.com/go/firestore"
	"github.com/phrazzld/detailer-api/internal/domain"
	"github.com/phrazzld/detailer-api/internal/platform/logger"
	"github.com/phrazzld/detailer-api/internal/store"
	"google.golang.org/api/iterator"
)

// Watch implements store.RequestStore.Watch on a query snapshot listener.
// Every snapshot the listener yields is the complete matching result set.
func (s *RequestStore) Watch(ctx context.Context, filter store.Filter) (store.Watcher, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	// The listener outlives the call that opened it; Close ends it.
	listenCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	w := &watcher{
		it:     s.query(filter).Snapshots(listenCtx),
		cancel: cancel,
		filter: filter,
		ready:  make(chan struct{}, 1),
		logger: logger.FromContextOrDefault(ctx, s.logger),
	}
	go w.pump()

	w.logger.Debug("watch opened", slog.String("filter", filter.String()))
	return w, nil
}

// watcher drains the listener in its own goroutine and keeps only the newest
// undelivered snapshot.
type watcher struct {
	it     *firestore.QuerySnapshotIterator
	cancel context.CancelFunc
	filter store.Filter
	ready  chan struct{}
	logger *slog.Logger

	once    sync.Once
	mu      sync.Mutex
	pending []*domain.Request
	hasNext bool
	err     error
	closed  bool
}

// pump is the only caller of the iterator. Stop runs here, after Next has
// returned, because the iterator must not be stopped concurrently with Next.
func (w *watcher) pump() {
	defer w.it.Stop()

	for {
		qs, err := w.it.Next()
		if err != nil {
			w.fail(err)
			return
		}
		snapshot, err := collect(qs.Documents)
		if err != nil {
			w.fail(err)
			return
		}

		w.mu.Lock()
		w.pending, w.hasNext = snapshot, true
		w.mu.Unlock()
		w.signal()
	}
}

func (w *watcher) fail(err error) {
	w.mu.Lock()
	closed := w.closed
	if !closed && w.err == nil {
		if err == iterator.Done {
			w.err = store.ErrWatchClosed
		} else {
			w.err = fmt.Errorf("%w: %v", store.ErrUnavailable, MapError(err))
		}
	}
	w.mu.Unlock()

	if !closed {
		w.logger.Warn("snapshot listener ended",
			slog.String("filter", w.filter.String()),
			slog.String("error", err.Error()))
	}
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

// Close implements store.Watcher.Close. Cancelling the listen context ends
// the pending Next in pump, which then stops the iterator.
func (w *watcher) Close() error {
	w.once.Do(func() {
		w.mu.Lock()
		w.closed = true
		w.mu.Unlock()
		w.cancel()
		w.signal()
	})
	return nil
}
