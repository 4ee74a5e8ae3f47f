package feed

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/phrazzld/detailer-api/internal/config"
	"github.com/phrazzld/detailer-api/internal/domain"
	"github.com/phrazzld/detailer-api/internal/metrics"
	"github.com/phrazzld/detailer-api/internal/store"
	"github.com/sethvargo/go-retry"
)

// Options controls how a Channel re-establishes dropped watches.
type Options struct {
	// MaxAttempts is the number of re-open attempts after a watch fails.
	MaxAttempts int
	// BaseDelay is the first backoff interval; it doubles per attempt.
	BaseDelay time.Duration
	// MaxDelay caps a single backoff interval.
	MaxDelay time.Duration
}

// DefaultOptions mirrors the configuration defaults.
func DefaultOptions() Options {
	return Options{
		MaxAttempts: 8,
		BaseDelay:   200 * time.Millisecond,
		MaxDelay:    10 * time.Second,
	}
}

// OptionsFromConfig converts the feed configuration section.
func OptionsFromConfig(cfg config.FeedConfig) Options {
	return Options{
		MaxAttempts: cfg.ResyncMaxAttempts,
		BaseDelay:   time.Duration(cfg.ResyncBaseDelayMs) * time.Millisecond,
		MaxDelay:    time.Duration(cfg.ResyncMaxDelayMs) * time.Millisecond,
	}
}

func (o Options) backoff() retry.Backoff {
	b := retry.NewExponential(o.BaseDelay)
	b = retry.WithCappedDuration(o.MaxDelay, b)
	return retry.WithMaxRetries(uint64(o.MaxAttempts), b)
}

// Snapshot is one delivery on a subscription: the full ordered set of
// requests matching its filter.
type Snapshot struct {
	Filter   store.Filter
	Role     domain.Role
	Requests []*domain.Request
	// Seq counts deliveries offered on this subscription, starting at 1.
	Seq uint64
	At  time.Time
}

// Channel opens live subscriptions against a RequestStore.
type Channel struct {
	requests store.RequestStore
	opts     Options
	logger   *slog.Logger
	now      func() time.Time
}

// NewChannel creates a Channel. A zero Options value selects DefaultOptions.
func NewChannel(requests store.RequestStore, opts Options, logger *slog.Logger) (*Channel, error) {
	if requests == nil {
		return nil, fmt.Errorf("request store cannot be nil")
	}
	if opts == (Options{}) {
		opts = DefaultOptions()
	}
	if opts.MaxAttempts <= 0 || opts.BaseDelay <= 0 || opts.MaxDelay < opts.BaseDelay {
		return nil, fmt.Errorf("invalid feed options: %+v", opts)
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Channel{
		requests: requests,
		opts:     opts,
		logger:   logger.With(slog.String("component", "feed")),
		now:      time.Now,
	}, nil
}

// Subscribe opens a live feed for filter. The first snapshot delivered is the
// current matching set. The subscription lives until Cancel is called, ctx
// ends, or the underlying watch cannot be re-established.
func (c *Channel) Subscribe(ctx context.Context, filter store.Filter) (*Subscription, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	w, err := c.requests.Watch(ctx, filter)
	if err != nil {
		return nil, &ChannelError{Filter: filter, Attempts: 1, Err: err}
	}

	subCtx, cancel := context.WithCancel(ctx)
	sub := &Subscription{
		filter:  filter,
		role:    filter.Role(),
		updates: make(chan Snapshot, 1),
		done:    make(chan struct{}),
		cancel:  cancel,
		seen:    make(map[string]domain.RequestStatus),
		logger: c.logger.With(
			slog.String("filter", filter.String()),
		),
	}

	metrics.ActiveSubscriptions.WithLabelValues(string(sub.role)).Inc()
	go c.run(subCtx, sub, w)

	return sub, nil
}

func (c *Channel) run(ctx context.Context, sub *Subscription, w store.Watcher) {
	defer func() {
		metrics.ActiveSubscriptions.WithLabelValues(string(sub.role)).Dec()
		close(sub.updates)
		close(sub.done)
	}()

	for {
		requests, err := w.Next(ctx)
		if err == nil {
			sub.publish(requests, c.now())
			continue
		}
		_ = w.Close()

		if ctx.Err() != nil {
			return
		}

		sub.logger.Warn("watch dropped, resyncing", slog.String("error", err.Error()))
		metrics.FeedResyncsTotal.Inc()

		var first []*domain.Request
		w, first, err = c.reopen(ctx, sub.filter)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			sub.logger.Error("giving up on live channel", slog.String("error", err.Error()))
			sub.fail(err)
			return
		}
		sub.publish(first, c.now())
	}
}

// reopen opens a new watch and reads its initial snapshot, retrying with
// backoff until both succeed or the attempts are exhausted.
func (c *Channel) reopen(
	ctx context.Context,
	filter store.Filter,
) (store.Watcher, []*domain.Request, error) {
	var (
		w        store.Watcher
		first    []*domain.Request
		attempts int
		lastErr  error
	)

	err := retry.Do(ctx, c.opts.backoff(), func(ctx context.Context) error {
		attempts++
		next, err := c.requests.Watch(ctx, filter)
		if err != nil {
			lastErr = err
			return retry.RetryableError(err)
		}
		snapshot, err := next.Next(ctx)
		if err != nil {
			_ = next.Close()
			lastErr = err
			return retry.RetryableError(err)
		}
		w, first = next, snapshot
		return nil
	})
	if err != nil {
		if lastErr == nil {
			lastErr = err
		}
		return nil, nil, &ChannelError{Filter: filter, Attempts: attempts, Err: lastErr}
	}

	c.logger.Info("live channel resynced",
		slog.String("filter", filter.String()),
		slog.Int("attempts", attempts))
	return w, first, nil
}
