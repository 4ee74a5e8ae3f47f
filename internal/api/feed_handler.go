package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/phrazzld/detailer-api/internal/domain"
	"github.com/phrazzld/detailer-api/internal/feed"
	"github.com/phrazzld/detailer-api/internal/identity"
	"github.com/phrazzld/detailer-api/internal/platform/logger"
	"github.com/phrazzld/detailer-api/internal/service"
	"github.com/phrazzld/detailer-api/internal/store"
	"github.com/phrazzld/detailer-api/internal/view"
)

const (
	feedWriteWait    = 10 * time.Second
	feedReadLimit    = 512
	feedCloseMessage = "feed closed"
	feedSignedOut    = "signed out"

	msgNoProviderRole = "Provider role is not available for this account"
)

// Subscriber opens live feeds. *feed.Channel implements it.
type Subscriber interface {
	Subscribe(ctx context.Context, filter store.Filter) (*feed.Subscription, error)
}

// ProfileChecker reports provider ownership. *directory.Listing implements it.
type ProfileChecker interface {
	HasProfile(ctx context.Context, identity string) bool
}

// FeedHandler streams live snapshots over a websocket.
type FeedHandler struct {
	feeds        Subscriber
	profiles     ProfileChecker
	upgrader     websocket.Upgrader
	pingInterval time.Duration
	logger       *slog.Logger
}

// NewFeedHandler creates a new FeedHandler that pings idle clients every pingInterval.
func NewFeedHandler(
	feeds Subscriber,
	profiles ProfileChecker,
	pingInterval time.Duration,
	logger *slog.Logger,
) *FeedHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if pingInterval <= 0 {
		pingInterval = 30 * time.Second
	}
	return &FeedHandler{
		feeds:    feeds,
		profiles: profiles,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
		pingInterval: pingInterval,
		logger:       logger.With(slog.String("component", "feed_handler")),
	}
}

// ServeFeed handles GET /api/feed?role=customer|provider.
//
// The connection is bound to a view controller for the authenticated
// identity, so both the customer feed and (for profile owners) the provider
// feed stream on the same socket, each snapshot tagged with its role. The
// role parameter only picks the initially displayed role. Clients send
// FeedCommand frames to switch the displayed role or sign out.
func (h *FeedHandler) ServeFeed(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFromRequest(w, r)
	if !ok {
		return
	}

	role, err := roleParam(r)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	if role == domain.RoleProvider && !h.profiles.HasProfile(r.Context(), id) {
		HandleAPIError(w, r, service.ErrForbidden, "")
		return
	}

	log := logger.FromContextOrDefault(r.Context(), h.logger)

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied with an HTTP error.
		log.Debug("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}
	defer func() { _ = conn.Close() }()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	principal := identity.NewSession()
	if err := principal.SignIn(id); err != nil {
		h.closeWithError(conn, err)
		return
	}
	session := view.NewSession(ctx, principal, h.feeds, h.profiles, log)
	defer session.Close()

	controller, ok := session.Controller()
	if !ok {
		err := session.Err()
		log.Error("failed to open live feed", slog.String("error", errString(err)))
		h.closeWithError(conn, err)
		return
	}
	if role == domain.RoleProvider {
		if _, err := controller.SwitchRole(); err != nil {
			h.closeWithError(conn, err)
			return
		}
	}

	commands := make(chan FeedCommand)
	go h.readPump(ctx, conn, commands, cancel)

	stream := &feedStream{conn: conn, controller: controller, sent: make(map[domain.Role]uint64, 2)}
	if err := stream.flush(); err != nil {
		return
	}

	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()

	log.Debug("live feed opened", slog.Bool("provider_role", controller.HasProviderRole()))
	for {
		select {
		case _, open := <-controller.Changes():
			if !open {
				// Only a sign-out closes the controller while the socket is live.
				_ = conn.WriteControl(
					websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, feedSignedOut),
					time.Now().Add(feedWriteWait),
				)
				return
			}
			if err := controller.Err(); err != nil {
				log.Warn("live feed ended", slog.String("error", err.Error()))
				h.closeWithError(conn, err)
				return
			}
			if err := stream.flush(); err != nil {
				log.Debug("client write failed", slog.String("error", err.Error()))
				return
			}

		case cmd := <-commands:
			switch cmd.Type {
			case FeedCommandSwitchRole:
				if err := stream.switchRole(); err != nil {
					return
				}
			case FeedCommandSignOut:
				principal.SignOut()
			}

		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(feedWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-ctx.Done():
			log.Debug("live feed closed by client")
			return
		}
	}
}

// feedStream writes controller state to one socket. It is used only by the
// ServeFeed loop, which is the connection's single writer.
type feedStream struct {
	conn       *websocket.Conn
	controller *view.Controller
	role       domain.Role
	sent       map[domain.Role]uint64
}

// flush writes a role frame if the displayed role changed, then every
// snapshot newer than the last one written for its role.
func (s *feedStream) flush() error {
	if current := s.controller.CurrentRole(); current != s.role {
		if err := writeFeedJSON(s.conn, roleMessage(current, "")); err != nil {
			return err
		}
		s.role = current
	}

	for _, role := range s.controller.Roles() {
		snap, ok := s.controller.Latest(role)
		if !ok || snap.Seq <= s.sent[role] {
			continue
		}
		if err := writeFeedJSON(s.conn, snapshotToMessage(snap)); err != nil {
			return err
		}
		s.sent[role] = snap.Seq
	}
	return nil
}

// switchRole toggles the displayed role and acknowledges it. A refusal is
// reported on the socket without closing it.
func (s *feedStream) switchRole() error {
	current, err := s.controller.SwitchRole()
	switch {
	case err == nil:
		s.role = current
		return writeFeedJSON(s.conn, roleMessage(current, ""))
	case errors.Is(err, view.ErrNoProviderRole):
		return writeFeedJSON(s.conn, roleMessage(current, msgNoProviderRole))
	default:
		return err
	}
}

// readPump decodes client commands and tracks pongs. It cancels the feed
// once the client goes away. Unknown commands are ignored.
func (h *FeedHandler) readPump(
	ctx context.Context,
	conn *websocket.Conn,
	commands chan<- FeedCommand,
	cancel context.CancelFunc,
) {
	defer cancel()

	pongWait := 2 * h.pingInterval
	conn.SetReadLimit(feedReadLimit)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var cmd FeedCommand
		if err := json.Unmarshal(data, &cmd); err != nil {
			h.logger.Debug("ignoring malformed feed command", slog.String("error", err.Error()))
			continue
		}
		if cmd.Type != FeedCommandSwitchRole && cmd.Type != FeedCommandSignOut {
			h.logger.Debug("ignoring unknown feed command", slog.String("type", cmd.Type))
			continue
		}

		select {
		case commands <- cmd:
		case <-ctx.Done():
			return
		}
	}
}

func writeFeedJSON(conn *websocket.Conn, msg FeedMessage) error {
	_ = conn.SetWriteDeadline(time.Now().Add(feedWriteWait))
	return conn.WriteJSON(msg)
}

func (h *FeedHandler) closeWithError(conn *websocket.Conn, err error) {
	_ = writeFeedJSON(conn, FeedMessage{Type: FeedMessageError, Error: GetSafeErrorMessage(err)})
	_ = conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseTryAgainLater, feedCloseMessage),
		time.Now().Add(feedWriteWait),
	)
}

func errString(err error) string {
	if err == nil {
		return "no controller bound"
	}
	return err.Error()
}
