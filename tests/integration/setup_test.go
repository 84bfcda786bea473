package integration

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/quillback/taskdeck/pkg/access"
	"github.com/quillback/taskdeck/pkg/auth"
	"github.com/quillback/taskdeck/pkg/middleware"
	"github.com/quillback/taskdeck/pkg/observability"
	"github.com/quillback/taskdeck/pkg/tasks"
	"github.com/quillback/taskdeck/pkg/teams"
)

// testServer assembles the same HTTP stack the taskdeck binary runs,
// backed by an in-memory sqlite database: metrics, auth, and rate-limit
// middleware in front of the access and team route handlers.
type testServer struct {
	db       *sql.DB
	router   *mux.Router
	verifier *auth.TokenVerifier
	teams    *teams.Service
	tasks    *tasks.Store
	store    *access.Store
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	db := access.SetupTestDB(t)
	store := access.NewStoreWithTxOptions(db, nil, nil, false)

	verifier, err := auth.NewTokenVerifier("integration-test-secret")
	if err != nil {
		t.Fatalf("Failed to create token verifier: %v", err)
	}

	// Generous limits so the limiter is exercised without tripping.
	limiter, err := middleware.NewRateLimiter(&middleware.RateLimitConfig{
		RequestsPerWindow: 10000,
		WindowDuration:    time.Minute,
		BurstSize:         100,
		MaxKeys:           4096,
	})
	if err != nil {
		t.Fatalf("Failed to create rate limiter: %v", err)
	}

	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	limiter.SetMetrics(metrics)

	teamService := teams.NewService(db, access.NewGuard(store), 7*24*time.Hour)

	router := mux.NewRouter()
	router.Use(observability.HTTPMetricsMiddleware(metrics, logger))
	router.Use(middleware.NewAuthMiddleware(verifier).Handler)
	router.Use(limiter.Handler)
	accessHandlers := access.NewHandlers(store, nil)
	accessHandlers.SetMetrics(metrics)
	accessHandlers.RegisterRoutes(router)
	teamHandlers := teams.NewHandlers(teamService, store, nil)
	teamHandlers.SetMetrics(metrics)
	teamHandlers.RegisterRoutes(router)

	return &testServer{
		db:       db,
		router:   router,
		verifier: verifier,
		teams:    teamService,
		tasks:    tasks.NewStore(db),
		store:    store,
	}
}

// newUser creates a user row and returns its id plus a signed bearer token.
func (ts *testServer) newUser(t *testing.T, username string) (int64, string) {
	t.Helper()

	id := access.MustCreateUser(t, ts.db, username)
	token, err := ts.verifier.Issue(auth.Identity{UserID: id, Username: username}, time.Hour)
	if err != nil {
		t.Fatalf("Failed to issue token for %s: %v", username, err)
	}
	return id, token
}

// do sends a request through the full middleware chain. An empty token
// leaves the Authorization header unset.
func (ts *testServer) do(t *testing.T, token, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("Failed to marshal request body: %v", err)
		}
		reader = bytes.NewReader(buf)
	}

	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(out); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
}

// checkOutcome runs a permission check for the caller and returns the
// reported outcome string.
func (ts *testServer) checkOutcome(t *testing.T, token string, taskID int64, action string) string {
	t.Helper()

	w := ts.do(t, token, http.MethodPost, "/access/check", map[string]interface{}{
		"task_id": taskID,
		"action":  action,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("Check returned status %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Outcome string `json:"outcome"`
	}
	decode(t, w, &resp)
	return resp.Outcome
}
