//go:build integration

package app_test

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bissquit/campus-reservations/internal/app"
	"github.com/bissquit/campus-reservations/internal/config"
	"github.com/bissquit/campus-reservations/internal/domain"
	"github.com/bissquit/campus-reservations/internal/feed"
	"github.com/bissquit/campus-reservations/internal/identity/jwt"
	"github.com/bissquit/campus-reservations/internal/pkg/postgres"
	"github.com/bissquit/campus-reservations/internal/testutil"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	jwtSecret       = "test-secret-key"
	openAPISpecPath = "../../api/openapi/openapi.yaml"
)

var (
	testServer    *httptest.Server
	testValidator *testutil.OpenAPIValidator
	testDB        *pgxpool.Pool
)

func TestMain(m *testing.M) {
	os.Exit(runTests(m))
}

func runTests(m *testing.M) int {
	ctx := context.Background()

	pgContainer, err := testutil.NewPostgresContainer(ctx)
	if err != nil {
		log.Fatalf("start postgres: %v", err)
	}
	defer func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			log.Printf("terminate postgres: %v", err)
		}
	}()

	redisContainer, err := testutil.NewRedisContainer(ctx)
	if err != nil {
		log.Fatalf("start redis: %v", err)
	}
	defer func() {
		if err := redisContainer.Terminate(ctx); err != nil {
			log.Printf("terminate redis: %v", err)
		}
	}()

	if err := postgres.Migrate(pgContainer.ConnectionString, testutil.MigrationsDir()); err != nil {
		log.Fatalf("run migrations: %v", err)
	}

	cfg := config.Default()
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = "0"
	cfg.Server.MetricsPort = "0"
	cfg.Database.URL = pgContainer.ConnectionString
	cfg.Database.MaxOpenConns = 5
	cfg.Database.ConnectTimeout = 30 * time.Second
	cfg.Database.ConnectAttempts = 3
	cfg.Log = config.LogConfig{Level: "error", Format: "text"}
	cfg.JWT.SecretKey = jwtSecret
	cfg.Redis.Enabled = true
	cfg.Redis.Addr = redisContainer.Addr
	cfg.Redis.Channel = "test:reservations"
	cfg.RateLimit.SubmitRPS = 100
	cfg.RateLimit.SubmitBurst = 100
	cfg.Feed.PingInterval = time.Second
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid test config: %v", err)
	}

	application, err := app.New(cfg)
	if err != nil {
		log.Fatalf("create app: %v", err)
	}

	testDB, err = pgxpool.New(ctx, pgContainer.ConnectionString)
	if err != nil {
		log.Fatalf("create test db pool: %v", err)
	}

	testServer = httptest.NewServer(application.Router())

	testValidator, err = testutil.LoadOpenAPIValidator(openAPISpecPath)
	if err != nil {
		log.Fatalf("load OpenAPI validator: %v", err)
	}

	code := m.Run()

	testServer.Close()
	testDB.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := application.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown app: %v", err)
	}

	return code
}

type actor struct {
	id     string
	client *testutil.Client
}

// newActor creates a user with a signed token. Roles other than student are
// seeded directly since only an admin can assign them.
func newActor(t *testing.T, name string, role domain.Role) actor {
	t.Helper()

	id := name + "-" + uuid.NewString()[:8]
	if role != domain.RoleStudent {
		testutil.InsertUser(t, testDB, id, id+"@campus.edu", string(role))
	}

	client := testutil.NewClientWithValidator(testServer.URL, testValidator)
	client.AuthenticateAs(t, jwtSecret, id, id+"@campus.edu", strings.ToUpper(name[:1])+name[1:])
	return actor{id: id, client: client}
}

type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func tomorrow() string {
	return time.Now().UTC().AddDate(0, 0, 1).Format(domain.ReservationDateLayout)
}

func submit(t *testing.T, student actor, equipment string) domain.Reservation {
	t.Helper()

	resp, err := student.client.POST("/api/v1/reservations", map[string]any{
		"equipment":        equipment,
		"reservation_date": tomorrow(),
		"time_slot":        "10:00-12:00",
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode, testutil.ReadBody(t, resp))

	var body struct {
		Data domain.Reservation `json:"data"`
	}
	testutil.DecodeJSON(t, resp, &body)
	return body.Data
}

func transition(t *testing.T, reviewer actor, id string, payload map[string]any) *http.Response {
	t.Helper()
	resp, err := reviewer.client.POST("/api/v1/reservations/"+id+"/transitions", payload)
	require.NoError(t, err)
	return resp
}

func expectError(t *testing.T, resp *http.Response, status int, code string) {
	t.Helper()
	require.Equal(t, status, resp.StatusCode)
	var body errorBody
	testutil.DecodeJSON(t, resp, &body)
	assert.Equal(t, code, body.Error.Code)
}

func TestCatalog_Public(t *testing.T) {
	client := testutil.NewClientWithValidator(testServer.URL, testValidator)
	client.SetT(t)

	resp, err := client.GET("/api/v1/equipment")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var list struct {
		Data []domain.Equipment `json:"data"`
	}
	testutil.DecodeJSON(t, resp, &list)
	assert.Len(t, list.Data, 6)

	resp, err = client.GET("/api/v1/equipment/microscope")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	_ = resp.Body.Close()

	resp, err = client.GET("/api/v1/equipment/telescope")
	require.NoError(t, err)
	expectError(t, resp, http.StatusNotFound, domain.CodeNotFound)
}

func TestAuth_Required(t *testing.T) {
	client := testutil.NewClientWithValidator(testServer.URL, testValidator)
	client.SetT(t)

	resp, err := client.GET("/api/v1/me")
	require.NoError(t, err)
	expectError(t, resp, http.StatusUnauthorized, domain.CodeNotAuthenticated)

	client.AuthenticateAs(t, "wrong-secret", "mallory", "mallory@campus.edu", "")
	resp, err = client.GET("/api/v1/me/reservations")
	require.NoError(t, err)
	expectError(t, resp, http.StatusUnauthorized, domain.CodeNotAuthenticated)
}

func TestMe_DefaultsToStudent(t *testing.T) {
	student := newActor(t, "alice", domain.RoleStudent)

	resp, err := student.client.GET("/api/v1/me")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Data domain.UserWithRole `json:"data"`
	}
	testutil.DecodeJSON(t, resp, &body)
	assert.Equal(t, student.id, body.Data.ID)
	assert.Equal(t, domain.RoleStudent, body.Data.Role)
	require.NotNil(t, body.Data.DisplayName)
	assert.Equal(t, "Alice", *body.Data.DisplayName)
}

// Submit, review and complete a reservation.
func TestReservationLifecycle(t *testing.T) {
	student := newActor(t, "alice", domain.RoleStudent)
	staff := newActor(t, "sam", domain.RoleStaff)

	// A: submission creates a pending reservation visible to its owner.
	r := submit(t, student, "projector")
	assert.Equal(t, domain.ReservationStatusPending, r.Status)
	assert.Equal(t, "Projector", r.EquipmentName)
	assert.Equal(t, student.id, r.StudentID)

	resp, err := student.client.GET("/api/v1/me/reservations")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var mine struct {
		Data []domain.Reservation `json:"data"`
	}
	testutil.DecodeJSON(t, resp, &mine)
	require.Len(t, mine.Data, 1)
	assert.Equal(t, r.ID, mine.Data[0].ID)

	// C: completing a pending reservation is rejected.
	resp = transition(t, staff, r.ID, map[string]any{"status": "completed"})
	expectError(t, resp, http.StatusConflict, domain.CodeInvalidTransition)

	// Students cannot review.
	resp = transition(t, student, r.ID, map[string]any{"status": "approved"})
	expectError(t, resp, http.StatusForbidden, domain.CodePermissionDenied)

	// B: approval stores the staff notes with the status.
	resp = transition(t, staff, r.ID, map[string]any{"status": "approved", "notes": "bring ID"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	_ = resp.Body.Close()

	resp, err = student.client.GET("/api/v1/reservations/" + r.ID)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got struct {
		Data domain.Reservation `json:"data"`
	}
	testutil.DecodeJSON(t, resp, &got)
	assert.Equal(t, domain.ReservationStatusApproved, got.Data.Status)
	require.NotNil(t, got.Data.Notes)
	assert.Equal(t, "bring ID", *got.Data.Notes)
	require.NotNil(t, got.Data.ReviewedBy)
	assert.Equal(t, staff.id, *got.Data.ReviewedBy)

	// Approving twice fails without touching the record.
	resp = transition(t, staff, r.ID, map[string]any{"status": "approved"})
	expectError(t, resp, http.StatusConflict, domain.CodeInvalidTransition)

	resp = transition(t, staff, r.ID, map[string]any{"status": "completed"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	_ = resp.Body.Close()

	// Staff see the reservation with the owner's profile.
	resp, err = staff.client.GET("/api/v1/reservations?status=completed")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var all struct {
		Data []domain.ReservationWithStudent `json:"data"`
	}
	testutil.DecodeJSON(t, resp, &all)
	var found bool
	for _, item := range all.Data {
		assert.Equal(t, domain.ReservationStatusCompleted, item.Status)
		if item.ID == r.ID {
			found = true
			assert.Equal(t, student.id+"@campus.edu", item.StudentEmail)
		}
	}
	assert.True(t, found)
}

func TestSubmit_Rejections(t *testing.T) {
	student := newActor(t, "alice", domain.RoleStudent)
	staff := newActor(t, "sam", domain.RoleStaff)

	yesterday := time.Now().UTC().AddDate(0, 0, -2).Format(domain.ReservationDateLayout)
	resp, err := student.client.POST("/api/v1/reservations", map[string]any{
		"equipment": "Laptop", "reservation_date": yesterday, "time_slot": "am",
	})
	require.NoError(t, err)
	expectError(t, resp, http.StatusBadRequest, domain.CodeValidation)

	resp, err = student.client.POST("/api/v1/reservations", map[string]any{
		"equipment": "Telescope", "reservation_date": tomorrow(), "time_slot": "am",
	})
	require.NoError(t, err)
	expectError(t, resp, http.StatusUnprocessableEntity, domain.CodeUnknownEquipment)

	resp, err = staff.client.POST("/api/v1/reservations", map[string]any{
		"equipment": "Laptop", "reservation_date": tomorrow(), "time_slot": "am",
	})
	require.NoError(t, err)
	expectError(t, resp, http.StatusForbidden, domain.CodePermissionDenied)

	resp, err = student.client.GET("/api/v1/me/reservations")
	require.NoError(t, err)
	var mine struct {
		Data []domain.Reservation `json:"data"`
	}
	testutil.DecodeJSON(t, resp, &mine)
	assert.Empty(t, mine.Data)
}

func TestReservation_HiddenFromOtherStudents(t *testing.T) {
	alice := newActor(t, "alice", domain.RoleStudent)
	bob := newActor(t, "bob", domain.RoleStudent)

	r := submit(t, alice, "Laptop")

	resp, err := bob.client.GET("/api/v1/reservations/" + r.ID)
	require.NoError(t, err)
	expectError(t, resp, http.StatusNotFound, domain.CodeNotFound)

	resp, err = bob.client.GET("/api/v1/reservations")
	require.NoError(t, err)
	expectError(t, resp, http.StatusForbidden, domain.CodePermissionDenied)
}

func TestTransition_ConcurrentReviewers(t *testing.T) {
	student := newActor(t, "alice", domain.RoleStudent)
	staffA := newActor(t, "sam", domain.RoleStaff)
	staffB := newActor(t, "sue", domain.RoleStaff)

	r := submit(t, student, "Microscope")

	reviewers := []actor{staffA, staffB}
	targets := []string{"approved", "rejected"}
	statuses := make([]int, 2)
	codes := make([]string, 2)

	var wg sync.WaitGroup
	for i := range reviewers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			client := reviewers[i].client.WithoutValidation()
			resp, err := client.POST("/api/v1/reservations/"+r.ID+"/transitions", map[string]any{"status": targets[i]})
			if err != nil {
				return
			}
			defer func() { _ = resp.Body.Close() }()
			statuses[i] = resp.StatusCode
			var body errorBody
			if json.NewDecoder(resp.Body).Decode(&body) == nil {
				codes[i] = body.Error.Code
			}
		}(i)
	}
	wg.Wait()

	winners := 0
	var winner string
	for i, status := range statuses {
		if status == http.StatusOK {
			winners++
			winner = targets[i]
			continue
		}
		assert.Equal(t, http.StatusConflict, status)
		assert.Contains(t, []string{domain.CodeConcurrentModification, domain.CodeInvalidTransition}, codes[i])
	}
	require.Equal(t, 1, winners)

	var stored string
	require.NoError(t, testDB.QueryRow(context.Background(),
		`SELECT status FROM reservations WHERE id = $1`, r.ID).Scan(&stored))
	assert.Equal(t, winner, stored)
}

// D: an admin promotes a student, who then reviews instead of submitting.
func TestAdmin_Promotion(t *testing.T) {
	admin := newActor(t, "ada", domain.RoleAdmin)
	promoted := newActor(t, "alice", domain.RoleStudent)
	student := newActor(t, "bob", domain.RoleStudent)

	r := submit(t, student, "Audio System")

	// Profile row exists after the first authenticated request.
	resp, err := promoted.client.GET("/api/v1/me")
	require.NoError(t, err)
	_ = resp.Body.Close()

	resp, err = promoted.client.PUT("/api/v1/admin/users/"+promoted.id+"/role", map[string]any{"role": "staff"})
	require.NoError(t, err)
	expectError(t, resp, http.StatusForbidden, domain.CodePermissionDenied)

	resp, err = admin.client.PUT("/api/v1/admin/users/"+promoted.id+"/role", map[string]any{"role": "staff"})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var updated struct {
		Data domain.UserWithRole `json:"data"`
	}
	testutil.DecodeJSON(t, resp, &updated)
	assert.Equal(t, domain.RoleStaff, updated.Data.Role)

	var rows int
	require.NoError(t, testDB.QueryRow(context.Background(),
		`SELECT COUNT(*) FROM user_roles WHERE user_id = $1`, promoted.id).Scan(&rows))
	assert.Equal(t, 1, rows)

	resp = transition(t, promoted, r.ID, map[string]any{"status": "rejected", "notes": "unavailable that day"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	_ = resp.Body.Close()

	resp, err = promoted.client.POST("/api/v1/reservations", map[string]any{
		"equipment": "Laptop", "reservation_date": tomorrow(), "time_slot": "am",
	})
	require.NoError(t, err)
	expectError(t, resp, http.StatusForbidden, domain.CodePermissionDenied)

	resp, err = admin.client.PUT("/api/v1/admin/users/nobody-"+uuid.NewString()+"/role", map[string]any{"role": "staff"})
	require.NoError(t, err)
	expectError(t, resp, http.StatusNotFound, domain.CodeNotFound)

	resp, err = admin.client.GET("/api/v1/admin/users")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var users struct {
		Data []domain.UserWithRole `json:"data"`
	}
	testutil.DecodeJSON(t, resp, &users)
	roles := make(map[string]domain.Role, len(users.Data))
	for _, u := range users.Data {
		roles[u.ID] = u.Role
	}
	assert.Equal(t, domain.RoleStaff, roles[promoted.id])
	assert.Equal(t, domain.RoleStudent, roles[student.id])
	assert.Equal(t, domain.RoleAdmin, roles[admin.id])
}

func TestFeed_StudentReceivesOwnChanges(t *testing.T) {
	student := newActor(t, "alice", domain.RoleStudent)
	staff := newActor(t, "sam", domain.RoleStaff)

	r := submit(t, student, "Video Camera")

	wsURL := "ws" + strings.TrimPrefix(testServer.URL, "http") + "/api/v1/reservations/feed?" +
		url.Values{"access_token": {student.client.Token}}.Encode()
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	_ = resp.Body.Close()
	defer func() { _ = conn.Close() }()

	// The Redis relay subscribes in the background at startup.
	time.Sleep(200 * time.Millisecond)

	resp = transition(t, staff, r.ID, map[string]any{"status": "approved"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	_ = resp.Body.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(10*time.Second)))
	var msg feed.Message
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, feed.MessageTypeChange, msg.Type)
	assert.Equal(t, r.ID, msg.Data.ReservationID)
	assert.Equal(t, domain.ChangeKindTransitioned, msg.Data.Kind)
	assert.Equal(t, domain.ReservationStatusApproved, msg.Data.Status)
}

func TestFeed_RejectsMissingToken(t *testing.T) {
	wsURL := "ws" + strings.TrimPrefix(testServer.URL, "http") + "/api/v1/reservations/feed"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestToken_ExpiredRejected(t *testing.T) {
	token, err := jwt.Sign(jwtSecret, jwt.NewClaims("old-"+uuid.NewString(), "old@campus.edu", "", -time.Hour))
	require.NoError(t, err)

	client := testutil.NewClient(testServer.URL)
	client.Token = token
	resp, err := client.GET("/api/v1/me")
	require.NoError(t, err)
	expectError(t, resp, http.StatusUnauthorized, domain.CodeNotAuthenticated)
}

func TestOperationalEndpoints(t *testing.T) {
	client := testutil.NewClient(testServer.URL)

	for _, path := range []string{"/healthz", "/readyz", "/version"} {
		t.Run(path, func(t *testing.T) {
			resp, err := client.GET(path)
			require.NoError(t, err)
			defer func() { _ = resp.Body.Close() }()
			assert.Equal(t, http.StatusOK, resp.StatusCode)
		})
	}
}
