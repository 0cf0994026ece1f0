package feed

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bissquit/campus-reservations/internal/domain"
	"github.com/bissquit/campus-reservations/internal/pkg/ctxlog"
	"github.com/bissquit/campus-reservations/internal/pkg/httputil"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

// MessageTypeChange tags reservation change messages on the wire.
const MessageTypeChange = "reservation_change"

// Message is the JSON frame sent to feed clients.
type Message struct {
	Type string                   `json:"type"`
	Data domain.ReservationChange `json:"data"`
}

// RoleResolver resolves the caller's effective role.
type RoleResolver interface {
	ResolveRole(ctx context.Context, userID string) (domain.Role, error)
}

// HandlerConfig configures the WebSocket endpoint.
type HandlerConfig struct {
	PingInterval   time.Duration
	WriteTimeout   time.Duration
	AllowedOrigins []string
}

// Handler streams reservation changes over WebSocket.
type Handler struct {
	hub      *Hub
	roles    RoleResolver
	config   HandlerConfig
	upgrader websocket.Upgrader
}

// NewHandler creates a new feed handler.
func NewHandler(hub *Hub, roles RoleResolver, config HandlerConfig) *Handler {
	if config.PingInterval <= 0 {
		config.PingInterval = 30 * time.Second
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = 10 * time.Second
	}

	h := &Handler{
		hub:    hub,
		roles:  roles,
		config: config,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

// RegisterRoutes registers the feed route (requires auth).
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/reservations/feed", h.Subscribe)
}

// Subscribe handles GET /reservations/feed.
// Students receive changes to their own reservations, staff and admins receive all.
func (h *Handler) Subscribe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := httputil.GetUserID(ctx)

	role, err := h.roles.ResolveRole(ctx, userID)
	if err != nil {
		httputil.HandleError(ctx, w, err, httputil.DomainErrorMappings)
		return
	}

	filter := Filter{StudentID: userID}
	if role.CanReview() {
		filter = Filter{}
	}

	sub, err := h.hub.Subscribe(filter)
	if err != nil {
		httputil.Error(w, http.StatusServiceUnavailable, "feed unavailable")
		return
	}
	defer sub.Close()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied to the client
		ctxlog.FromContext(ctx).Warn("websocket upgrade failed", "error", err)
		return
	}
	defer func() { _ = conn.Close() }()

	logger := ctxlog.FromContext(ctx)
	logger.Info("feed subscriber connected", "role", role, "filtered", filter.StudentID != "")

	done := h.readLoop(conn)
	ticker := time.NewTicker(h.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			logger.Info("feed subscriber disconnected")
			return
		case change, ok := <-sub.C():
			if !ok {
				h.writeClose(conn, websocket.CloseGoingAway, "server shutting down")
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(h.config.WriteTimeout))
			if err := conn.WriteJSON(Message{Type: MessageTypeChange, Data: change}); err != nil {
				logger.Warn("failed to write feed message", "error", err)
				return
			}
		case <-ticker.C:
			deadline := time.Now().Add(h.config.WriteTimeout)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				logger.Warn("failed to ping feed subscriber", "error", err)
				return
			}
		}
	}
}

// readLoop consumes client frames so control messages are processed and
// reports when the connection goes away. Clients are not expected to send data.
func (h *Handler) readLoop(conn *websocket.Conn) <-chan struct{} {
	done := make(chan struct{})
	readTimeout := 2 * h.config.PingInterval

	_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readTimeout))
	})

	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	return done
}

func (h *Handler) writeClose(conn *websocket.Conn, code int, text string) {
	msg := websocket.FormatCloseMessage(code, text)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(h.config.WriteTimeout))
}

// checkOrigin allows non-browser clients and the configured CORS origins.
func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	for _, allowed := range h.config.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}

	// Same-origin requests are always accepted
	u, err := url.Parse(origin)
	return err == nil && strings.EqualFold(u.Host, r.Host)
}
