// Package identity tracks which authenticated identity, if any, is using a
// client session and notifies listeners when that changes.
package identity

import (
	"errors"
	"strings"
	"sync"
)

// ErrEmptyIdentity is returned by SignIn when no identity is given.
var ErrEmptyIdentity = errors.New("identity cannot be empty")

// Listener receives the new identity on every change. ok is false after sign-out.
type Listener func(identity string, ok bool)

// Provider exposes the current authenticated identity.
type Provider interface {
	CurrentIdentity() (string, bool)
	OnIdentityChange(fn Listener) (unsubscribe func())
}

// Session is an in-process Provider. Listeners run synchronously on the
// goroutine that changed the identity, in registration order.
type Session struct {
	mu        sync.Mutex
	identity  string
	listeners map[int]Listener
	order     []int
	nextID    int
}

// Ensure Session implements Provider
var _ Provider = (*Session)(nil)

// NewSession returns a signed-out session.
func NewSession() *Session {
	return &Session{listeners: make(map[int]Listener)}
}

// CurrentIdentity implements Provider.
func (s *Session) CurrentIdentity() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identity, s.identity != ""
}

// OnIdentityChange implements Provider. fn is called immediately with the
// current state, then on every change until unsubscribe is called.
func (s *Session) OnIdentityChange(fn Listener) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.order = append(s.order, id)
	current := s.identity
	s.mu.Unlock()

	fn(current, current != "")

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, id)
			s.mu.Unlock()
		})
	}
}

// SignIn sets the current identity. Signing in as the current identity is a no-op.
func (s *Session) SignIn(identity string) error {
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return ErrEmptyIdentity
	}
	s.set(identity)
	return nil
}

// SignOut clears the current identity.
func (s *Session) SignOut() {
	s.set("")
}

func (s *Session) set(identity string) {
	s.mu.Lock()
	if s.identity == identity {
		s.mu.Unlock()
		return
	}
	s.identity = identity

	active := make([]Listener, 0, len(s.listeners))
	live := s.order[:0]
	for _, id := range s.order {
		if fn, ok := s.listeners[id]; ok {
			active = append(active, fn)
			live = append(live, id)
		}
	}
	s.order = live
	s.mu.Unlock()

	for _, fn := range active {
		fn(identity, identity != "")
	}
}
