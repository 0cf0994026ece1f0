package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bissquit/campus-reservations/internal/domain"
	"github.com/bissquit/campus-reservations/internal/pkg/httputil"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticRoles map[string]domain.Role

func (s staticRoles) ResolveRole(_ context.Context, userID string) (domain.Role, error) {
	if userID == "" {
		return "", domain.ErrNotAuthenticated
	}
	if role, ok := s[userID]; ok {
		return role, nil
	}
	return domain.DefaultRole, nil
}

// withUser stands in for the auth middleware.
func withUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := context.WithValue(r.Context(), httputil.UserIDKey, r.URL.Query().Get("user"))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func newFeedServer(t *testing.T, hub *Hub) *httptest.Server {
	t.Helper()

	h := NewHandler(hub, staticRoles{"carol": domain.RoleStaff}, HandlerConfig{
		PingInterval:   time.Second,
		WriteTimeout:   time.Second,
		AllowedOrigins: []string{"http://campus.example"},
	})

	r := chi.NewRouter()
	r.Use(withUser)
	h.RegisterRoutes(r)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server, user string) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/reservations/feed?user=" + user
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	_ = resp.Body.Close()
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestHandler_StudentSeesOnlyOwnChanges(t *testing.T) {
	hub := NewHub(8)
	defer hub.Close()
	srv := newFeedServer(t, hub)

	conn := dial(t, srv, "alice")
	require.Eventually(t, func() bool { return hub.SubscriberCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, hub.Publish(context.Background(), change("bob", domain.ReservationStatusPending)))
	require.NoError(t, hub.Publish(context.Background(), change("alice", domain.ReservationStatusApproved)))

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))

	assert.Equal(t, MessageTypeChange, msg.Type)
	assert.Equal(t, "alice", msg.Data.StudentID)
	assert.Equal(t, domain.ReservationStatusApproved, msg.Data.Status)
}

func TestHandler_StaffSeesAllChanges(t *testing.T) {
	hub := NewHub(8)
	defer hub.Close()
	srv := newFeedServer(t, hub)

	conn := dial(t, srv, "carol")
	require.Eventually(t, func() bool { return hub.SubscriberCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, hub.Publish(context.Background(), change("bob", domain.ReservationStatusPending)))

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "bob", msg.Data.StudentID)
}

func TestHandler_DisconnectRemovesSubscriber(t *testing.T) {
	hub := NewHub(8)
	defer hub.Close()
	srv := newFeedServer(t, hub)

	conn := dial(t, srv, "alice")
	require.Eventually(t, func() bool { return hub.SubscriberCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return hub.SubscriberCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHandler_Unauthenticated(t *testing.T) {
	hub := NewHub(8)
	defer hub.Close()
	srv := newFeedServer(t, hub)

	resp, err := http.Get(srv.URL + "/reservations/feed")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHandler_CheckOrigin(t *testing.T) {
	h := NewHandler(NewHub(1), staticRoles{}, HandlerConfig{AllowedOrigins: []string{"http://campus.example"}})

	tests := []struct {
		name   string
		origin string
		host   string
		want   bool
	}{
		{"no origin", "", "api.example", true},
		{"allowed origin", "http://campus.example", "api.example", true},
		{"same origin", "http://api.example", "api.example", true},
		{"foreign origin", "http://evil.example", "api.example", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/reservations/feed", nil)
			r.Host = tt.host
			if tt.origin != "" {
				r.Header.Set("Origin", tt.origin)
			}
			assert.Equal(t, tt.want, h.checkOrigin(r))
		})
	}
}
