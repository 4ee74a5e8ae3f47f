// Package view binds one identity to its live request feeds and tracks which
// role's feed is on display.
package view

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/phrazzld/detailer-api/internal/domain"
	"github.com/phrazzld/detailer-api/internal/feed"
	"github.com/phrazzld/detailer-api/internal/store"
)

// Controller errors.
var (
	// ErrNoProviderRole is returned by SwitchRole when the identity has no provider profile.
	ErrNoProviderRole = errors.New("identity has no provider profile")

	// ErrClosed is returned by SwitchRole after Close.
	ErrClosed = errors.New("view controller closed")
)

// Feeds opens live subscriptions. *feed.Channel implements it.
type Feeds interface {
	Subscribe(ctx context.Context, filter store.Filter) (*feed.Subscription, error)
}

// Profiles reports provider ownership. *directory.Listing implements it.
type Profiles interface {
	HasProfile(ctx context.Context, identity string) bool
}

// Controller holds the customer feed of one identity and, when the identity
// owns a provider profile, its provider feed. Both stay live for the
// controller's lifetime; switching roles only changes which one is displayed.
type Controller struct {
	identity string
	subs     map[domain.Role]*feed.Subscription
	logger   *slog.Logger

	mu     sync.RWMutex
	role   domain.Role
	latest map[domain.Role]feed.Snapshot
	err    error
	closed bool

	changes   chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewController opens the feeds for identity. The controller starts on the
// customer role.
func NewController(
	ctx context.Context,
	identity string,
	feeds Feeds,
	profiles Profiles,
	logger *slog.Logger,
) (*Controller, error) {
	if identity == "" {
		return nil, fmt.Errorf("identity cannot be empty")
	}
	if feeds == nil || profiles == nil {
		return nil, fmt.Errorf("feeds and profiles cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	c := &Controller{
		identity: identity,
		subs:     make(map[domain.Role]*feed.Subscription, 2),
		logger:   logger.With(slog.String("component", "view"), slog.String("identity", identity)),
		role:     domain.RoleCustomer,
		latest:   make(map[domain.Role]feed.Snapshot, 2),
		changes:  make(chan struct{}, 1),
	}

	customer, err := feeds.Subscribe(ctx, store.ForCustomer(identity))
	if err != nil {
		return nil, fmt.Errorf("failed to open customer feed: %w", err)
	}
	c.subs[domain.RoleCustomer] = customer

	if profiles.HasProfile(ctx, identity) {
		provider, err := feeds.Subscribe(ctx, store.ForProvider(identity))
		if err != nil {
			customer.Cancel()
			return nil, fmt.Errorf("failed to open provider feed: %w", err)
		}
		c.subs[domain.RoleProvider] = provider
	}

	for role, sub := range c.subs {
		c.wg.Add(1)
		go c.consume(role, sub)
	}

	c.logger.Debug("view controller opened", slog.Bool("provider_role", c.HasProviderRole()))
	return c, nil
}

func (c *Controller) consume(role domain.Role, sub *feed.Subscription) {
	defer c.wg.Done()

	for snap := range sub.Updates() {
		c.mu.Lock()
		c.latest[role] = snap
		c.mu.Unlock()
		c.notify()
	}

	if err := sub.Err(); err != nil {
		c.logger.Error("feed ended", slog.String("role", string(role)), slog.String("error", err.Error()))
		c.mu.Lock()
		if c.err == nil {
			c.err = err
		}
		c.mu.Unlock()
		c.notify()
	}
}

// notify holds the read lock so it cannot race Close closing changes.
func (c *Controller) notify() {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return
	}
	select {
	case c.changes <- struct{}{}:
	default:
	}
}

// Identity returns the identity the controller is bound to.
func (c *Controller) Identity() string {
	return c.identity
}

// HasProviderRole reports whether a provider feed is open.
func (c *Controller) HasProviderRole() bool {
	_, ok := c.subs[domain.RoleProvider]
	return ok
}

// Roles returns the roles with an open feed, customer first.
func (c *Controller) Roles() []domain.Role {
	if c.HasProviderRole() {
		return []domain.Role{domain.RoleCustomer, domain.RoleProvider}
	}
	return []domain.Role{domain.RoleCustomer}
}

// CurrentRole returns the displayed role.
func (c *Controller) CurrentRole() domain.Role {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.role
}

// SwitchRole toggles the displayed role and returns the new one. It never
// opens or cancels a feed. After Close it returns ErrClosed and the role
// stays as it was.
func (c *Controller) SwitchRole() (domain.Role, error) {
	c.mu.Lock()
	if c.closed {
		role := c.role
		c.mu.Unlock()
		return role, ErrClosed
	}
	if !c.HasProviderRole() {
		c.mu.Unlock()
		return domain.RoleCustomer, ErrNoProviderRole
	}

	if c.role == domain.RoleCustomer {
		c.role = domain.RoleProvider
	} else {
		c.role = domain.RoleCustomer
	}
	role := c.role
	c.mu.Unlock()

	c.notify()
	return role, nil
}

// Current returns the latest snapshot of the displayed role. ok is false
// until that feed has delivered once.
func (c *Controller) Current() (feed.Snapshot, bool) {
	return c.Latest(c.CurrentRole())
}

// Latest returns the latest snapshot delivered for role.
func (c *Controller) Latest(role domain.Role) (feed.Snapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	snap, ok := c.latest[role]
	return snap, ok
}

// Changes fires after any feed delivers, after a role switch, and after a
// feed fails. Notifications coalesce. The channel is closed by Close and
// nothing is sent on it afterwards.
func (c *Controller) Changes() <-chan struct{} {
	return c.changes
}

// Err returns the first error that ended one of the feeds.
func (c *Controller) Err() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.err
}

// Close cancels both feeds. It is idempotent.
func (c *Controller) Close() {
	c.closeOnce.Do(func() {
		for _, sub := range c.subs {
			sub.Cancel()
		}
		c.wg.Wait()

		c.mu.Lock()
		c.closed = true
		close(c.changes)
		c.mu.Unlock()
		c.logger.Debug("view controller closed")
	})
}
