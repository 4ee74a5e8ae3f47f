package feed

import (
	"log/slog"
	"sync"
	"time"

	"github.com/phrazzld/detailer-api/internal/domain"
	"github.com/phrazzld/detailer-api/internal/metrics"
	"github.com/phrazzld/detailer-api/internal/store"
)

// Subscription is one live feed opened by Channel.Subscribe.
type Subscription struct {
	filter  store.Filter
	role    domain.Role
	updates chan Snapshot
	done    chan struct{}
	cancel  func()
	logger  *slog.Logger

	// seen and seq are owned by the run goroutine.
	seen map[string]domain.RequestStatus
	seq  uint64

	mu  sync.Mutex
	err error
}

// Filter returns the filter the subscription was opened with.
func (s *Subscription) Filter() store.Filter {
	return s.filter
}

// Updates returns the delivery channel. It is closed when the subscription ends.
func (s *Subscription) Updates() <-chan Snapshot {
	return s.updates
}

// Done is closed once the subscription has fully stopped.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Err returns the error that ended the subscription, or nil while it is live
// and after a Cancel.
func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Cancel stops the subscription and waits for it to release its watch.
// It is safe to call more than once and after the subscription has ended.
func (s *Subscription) Cancel() {
	s.cancel()
	<-s.done
}

func (s *Subscription) fail(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

// publish offers a snapshot without blocking. Only the run goroutine sends on
// updates, so after draining a stale snapshot the send cannot block.
func (s *Subscription) publish(requests []*domain.Request, at time.Time) {
	if s.regresses(requests) {
		metrics.FeedSnapshotsDroppedTotal.WithLabelValues(metrics.DropRegression).Inc()
		s.logger.Debug("dropped regressing snapshot")
		return
	}
	for _, r := range requests {
		s.seen[r.ID] = r.Status
	}

	s.seq++
	snap := Snapshot{
		Filter:   s.filter,
		Role:     s.role,
		Requests: requests,
		Seq:      s.seq,
		At:       at,
	}

	select {
	case s.updates <- snap:
		return
	default:
	}

	select {
	case <-s.updates:
		metrics.FeedSnapshotsDroppedTotal.WithLabelValues(metrics.DropSuperseded).Inc()
	default:
	}
	s.updates <- snap
}

// regresses reports whether any request moved out of a terminal status it
// was already seen in.
func (s *Subscription) regresses(requests []*domain.Request) bool {
	for _, r := range requests {
		prev, ok := s.seen[r.ID]
		if ok && prev.IsTerminal() && r.Status != prev {
			return true
		}
	}
	return false
}
