package view

import (
	"context"
	"log/slog"
	"sync"

	"github.com/phrazzld/detailer-api/internal/identity"
)

// Session keeps exactly one Controller bound to the signed-in identity of an
// identity.Provider, replacing it on every identity change.
type Session struct {
	ctx      context.Context
	feeds    Feeds
	profiles Profiles
	logger   *slog.Logger

	mu          sync.Mutex
	current     *Controller
	err         error
	closed      bool
	unsubscribe func()
}

// NewSession starts following provider. If an identity is already signed in
// its controller is opened before NewSession returns.
func NewSession(
	ctx context.Context,
	provider identity.Provider,
	feeds Feeds,
	profiles Profiles,
	logger *slog.Logger,
) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Session{
		ctx:      ctx,
		feeds:    feeds,
		profiles: profiles,
		logger:   logger,
	}

	unsubscribe := provider.OnIdentityChange(s.bind)
	s.mu.Lock()
	s.unsubscribe = unsubscribe
	s.mu.Unlock()
	return s
}

func (s *Session) bind(id string, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	if s.current != nil {
		s.current.Close()
		s.current = nil
	}
	s.err = nil
	if !ok {
		return
	}

	c, err := NewController(s.ctx, id, s.feeds, s.profiles, s.logger)
	if err != nil {
		s.logger.Error("failed to bind view controller",
			slog.String("identity", id),
			slog.String("error", err.Error()))
		s.err = err
		return
	}
	s.current = c
}

// Controller returns the controller of the signed-in identity.
func (s *Session) Controller() (*Controller, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current, s.current != nil
}

// Err returns why the controller for the signed-in identity could not be
// opened. It is nil while a controller is bound or nobody is signed in.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close stops following identity changes and closes the active controller.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	unsubscribe := s.unsubscribe
	current := s.current
	s.current = nil
	s.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	if current != nil {
		current.Close()
	}
}
