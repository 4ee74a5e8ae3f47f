package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/phrazzld/detailer-api/internal/domain"
	"github.com/phrazzld/detailer-api/internal/platform/logger"
	"github.com/phrazzld/detailer-api/internal/store"
)

// ChangeChannel is the NOTIFY channel the requests trigger publishes on.
const ChangeChannel = "request_changes"

// Connector opens a dedicated native connection for LISTEN.
type Connector func(ctx context.Context) (*pgx.Conn, error)

// DSNConnector returns a Connector dialing dsn.
func DSNConnector(dsn string) Connector {
	return func(ctx context.Context) (*pgx.Conn, error) {
		return pgx.Connect(ctx, dsn)
	}
}

// changeNotice is the JSON payload emitted by notify_request_change().
type changeNotice struct {
	ID         string `json:"id"`
	CustomerID string `json:"customer_id"`
	ProviderID string `json:"provider_id"`
}

// Watch implements store.RequestStore.Watch. LISTEN is issued before the
// first snapshot is read, so no committed change can fall between the two.
func (s *PostgresRequestStore) Watch(ctx context.Context, filter store.Filter) (store.Watcher, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := filter.Validate(); err != nil {
		return nil, err
	}
	if s.connect == nil {
		return nil, fmt.Errorf("%w: no listen connector configured", store.ErrUnavailable)
	}

	conn, err := s.connect(ctx)
	if err != nil {
		log.Error("failed to open listen connection", slog.String("error", err.Error()))
		return nil, fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}

	if _, err := conn.Exec(ctx, "LISTEN "+ChangeChannel); err != nil {
		_ = conn.Close(context.Background())
		log.Error("failed to LISTEN", slog.String("error", err.Error()))
		return nil, fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}

	log.Debug("watch opened", slog.String("filter", filter.String()))
	return &watcher{
		store:  s,
		filter: filter,
		conn:   conn,
		done:   make(chan struct{}),
		logger: log,
	}, nil
}

type watcher struct {
	store  *PostgresRequestStore
	filter store.Filter
	done   chan struct{}
	once   sync.Once
	logger *slog.Logger

	// mu serializes use of conn, which is not safe for concurrent use.
	mu     sync.Mutex
	conn   *pgx.Conn
	primed bool
}

func (w *watcher) matches(n changeNotice) bool {
	if w.filter.CustomerID != "" {
		return n.CustomerID == w.filter.CustomerID
	}
	return n.ProviderID == w.filter.ProviderID
}

// Next implements store.Watcher.Next. Each matching notification triggers a
// fresh query, so the returned snapshot reflects every commit up to that point.
func (w *watcher) Next(ctx context.Context) ([]*domain.Request, error) {
	select {
	case <-w.done:
		return nil, store.ErrWatchClosed
	default:
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.conn == nil {
		return nil, store.ErrWatchClosed
	}

	if !w.primed {
		w.primed = true
		return w.store.Query(ctx, w.filter)
	}

	waitCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-w.done:
			cancel()
		case <-waitCtx.Done():
		}
	}()

	for {
		n, err := w.conn.WaitForNotification(waitCtx)
		if err != nil {
			select {
			case <-w.done:
				return nil, store.ErrWatchClosed
			default:
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			w.logger.Warn("listen connection dropped",
				slog.String("filter", w.filter.String()),
				slog.String("error", err.Error()))
			return nil, fmt.Errorf("%w: %v", store.ErrUnavailable, err)
		}

		var notice changeNotice
		if err := json.Unmarshal([]byte(n.Payload), &notice); err != nil {
			w.logger.Warn("ignoring malformed change notification", slog.String("error", err.Error()))
			continue
		}
		if !w.matches(notice) {
			continue
		}

		return w.store.Query(ctx, w.filter)
	}
}

// Close implements store.Watcher.Close. It waits for an in-flight Next to
// return before releasing the connection.
func (w *watcher) Close() error {
	w.once.Do(func() { close(w.done) })

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.conn == nil {
		return nil
	}
	err := w.conn.Close(context.Background())
	w.conn = nil
	return err
}
