package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hylla/taskmon/internal/adapters/auth"
	"github.com/hylla/taskmon/internal/adapters/server/common"
	"github.com/hylla/taskmon/internal/adapters/storage/sqlite"
	"github.com/hylla/taskmon/internal/app"
	"golang.org/x/crypto/bcrypt"
)

// recordingObserver captures observed requests.
type recordingObserver struct {
	mu     sync.Mutex
	routes []string
}

// Observe records the route and status.
func (o *recordingObserver) Observe(method, route string, status int, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.routes = append(o.routes, fmt.Sprintf("%s %s %d", method, route, status))
}

type testServer struct {
	handler  *Handler
	observer *recordingObserver
}

// newTestServer wires the handler over an in-memory store with a provisioned admin root.
func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ctx := context.Background()
	repo, err := sqlite.OpenInMemory(ctx)
	if err != nil {
		t.Fatalf("OpenInMemory() error = %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })

	now := time.Date(2026, 2, 21, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	n := 0
	svc := app.NewService(repo, func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}, clock, app.ServiceConfig{
		Location:                 time.UTC,
		PasswordCost:             bcrypt.MinCost,
		EnforceStartDependencies: true,
	})
	if _, err := svc.ProvisionAdmin(ctx, app.ProvisionAdminInput{Username: "root", Password: "root-password"}); err != nil {
		t.Fatalf("ProvisionAdmin() error = %v", err)
	}
	tokens, err := auth.NewTokens("test-secret-0123456789", time.Hour, clock)
	if err != nil {
		t.Fatalf("NewTokens() error = %v", err)
	}
	observer := &recordingObserver{}
	return &testServer{
		handler:  NewHandler(svc, Options{Tokens: tokens, Observer: observer, Clock: clock}),
		observer: observer,
	}
}

// do sends one request with an optional bearer token and JSON body.
func (s *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("Marshal() error = %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

// login exchanges credentials for a bearer token.
func (s *testServer) login(t *testing.T, username, password string) string {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/auth/token", "", map[string]string{"username": username, "password": password})
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d body=%s", rec.Code, rec.Body.String())
	}
	got := decode[tokenResponse](t, rec)
	if got.Token == "" || got.User.Username != username {
		t.Fatalf("unexpected token response %#v", got)
	}
	return got.Token
}

// decode decodes one JSON response body into the requested type.
func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	return out
}

// expectError asserts one structured error response.
func expectError(t *testing.T, rec *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	if rec.Code != status {
		t.Fatalf("status = %d, want %d body=%s", rec.Code, status, rec.Body.String())
	}
	env := decode[ErrorEnvelope](t, rec)
	if env.Error.Code != code {
		t.Fatalf("error code = %q, want %q", env.Error.Code, code)
	}
}

// TestHandlerRequiresBearerToken verifies protected routes reject anonymous requests.
func TestHandlerRequiresBearerToken(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.do(t, http.MethodGet, "/activities", "", nil)
	if rec.Header().Get("WWW-Authenticate") == "" {
		t.Fatal("expected WWW-Authenticate header")
	}
	expectError(t, rec, http.StatusUnauthorized, "unauthenticated")

	expectError(t, srv.do(t, http.MethodGet, "/activities", "forged.token.value", nil), http.StatusUnauthorized, "unauthenticated")
}

// TestHandlerIssueToken verifies credential checks on the token endpoint.
func TestHandlerIssueToken(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.do(t, http.MethodPost, "/auth/token", "", map[string]string{"username": "root", "password": "wrong-password"})
	expectError(t, rec, http.StatusUnauthorized, "invalid_credentials")

	rec = srv.do(t, http.MethodPost, "/auth/token", "", map[string]string{"username": "root"})
	expectError(t, rec, http.StatusBadRequest, "invalid_request")

	token := srv.login(t, "root", "root-password")
	if rec := srv.do(t, http.MethodGet, "/activities", token, nil); rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 body=%s", rec.Code, rec.Body.String())
	}
}

// TestHandlerActivityLifecycle walks create, dependency, ledger, completion and delete.
func TestHandlerActivityLifecycle(t *testing.T) {
	srv := newTestServer(t)
	token := srv.login(t, "root", "root-password")

	rec := srv.do(t, http.MethodPost, "/activities", token, map[string]any{
		"title":           "Write report",
		"description":     "Quarterly numbers",
		"estimated_hours": 2.0,
		"tags":            []string{"reports"},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d body=%s", rec.Code, rec.Body.String())
	}
	report := decode[common.ActivityView](t, rec)
	if report.Status != "in_progress" || report.Priority != "medium" {
		t.Fatalf("unexpected created activity %#v", report)
	}

	rec = srv.do(t, http.MethodPost, "/activities", token, map[string]any{
		"title":           "Collect data",
		"description":     "Pull exports",
		"estimated_hours": 1.0,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d body=%s", rec.Code, rec.Body.String())
	}
	data := decode[common.ActivityView](t, rec)

	expectError(t, srv.do(t, http.MethodPost, "/activities", token, map[string]any{
		"description":     "missing title",
		"estimated_hours": 1.0,
	}), http.StatusBadRequest, "invalid_request")
	expectError(t, srv.do(t, http.MethodPost, "/activities", token, `{"title":"x","description":"y","estimated_hours":1,"bogus":true}`),
		http.StatusBadRequest, "invalid_request")

	rec = srv.do(t, http.MethodPost, "/activities/"+report.ID+"/dependencies", token, map[string]string{"depends_on_id": data.ID})
	if rec.Code != http.StatusCreated {
		t.Fatalf("add dependency status = %d body=%s", rec.Code, rec.Body.String())
	}
	blocked := decode[map[string]any](t, srv.do(t, http.MethodGet, "/activities/"+report.ID+"/blocked", token, nil))
	if blocked["unblocked"] != false {
		t.Fatalf("expected blocked activity, got %#v", blocked)
	}
	expectError(t, srv.do(t, http.MethodPost, "/activities/"+report.ID+"/complete", token, nil), http.StatusConflict, "dependency_unmet")
	expectError(t, srv.do(t, http.MethodPost, "/activities/"+data.ID+"/dependencies", token, map[string]string{"depends_on_id": report.ID}),
		http.StatusConflict, "dependency_cycle")

	if rec := srv.do(t, http.MethodPost, "/activities/"+data.ID+"/complete", token, nil); rec.Code != http.StatusOK {
		t.Fatalf("complete status = %d body=%s", rec.Code, rec.Body.String())
	}
	for _, hours := range []float64{1.5, 1.0} {
		rec := srv.do(t, http.MethodPost, "/activities/"+report.ID+"/time", token, map[string]any{"hours_spent": hours})
		if rec.Code != http.StatusCreated {
			t.Fatalf("record time status = %d body=%s", rec.Code, rec.Body.String())
		}
	}
	ledger := decode[map[string]any](t, srv.do(t, http.MethodGet, "/activities/"+report.ID+"/time", token, nil))
	if ledger["total_hours"] != 2.5 {
		t.Fatalf("total_hours = %v, want 2.5", ledger["total_hours"])
	}

	rec = srv.do(t, http.MethodPost, "/activities/"+report.ID+"/complete", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("complete status = %d body=%s", rec.Code, rec.Body.String())
	}
	completed := decode[common.ActivityView](t, rec)
	if completed.Status != "completed" || completed.EndTime == nil || completed.ActualHours == nil || *completed.ActualHours != 2.5 {
		t.Fatalf("unexpected completed activity %#v", completed)
	}

	list := decode[map[string][]common.ActivityView](t, srv.do(t, http.MethodGet, "/activities?status=completed", token, nil))
	if len(list["activities"]) != 2 {
		t.Fatalf("expected 2 completed activities, got %d", len(list["activities"]))
	}

	if rec := srv.do(t, http.MethodDelete, "/activities/"+report.ID, token, nil); rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d body=%s", rec.Code, rec.Body.String())
	}
	expectError(t, srv.do(t, http.MethodGet, "/activities/"+report.ID, token, nil), http.StatusNotFound, "not_found")

	var sawComplete bool
	for _, entry := range srv.observer.routes {
		if strings.HasPrefix(entry, "POST /activities/{id}/complete 409") {
			sawComplete = true
		}
	}
	if !sawComplete {
		t.Fatalf("expected observed complete route, got %v", srv.observer.routes)
	}
}

// TestHandlerAccountsAndPermissions verifies user management and role checks.
func TestHandlerAccountsAndPermissions(t *testing.T) {
	srv := newTestServer(t)
	root := srv.login(t, "root", "root-password")

	if rec := srv.do(t, http.MethodPost, "/departments", root, map[string]string{"name": "Eng"}); rec.Code != http.StatusCreated {
		t.Fatalf("create department status = %d body=%s", rec.Code, rec.Body.String())
	}
	expectError(t, srv.do(t, http.MethodPost, "/users", root, map[string]string{
		"username": "alice",
		"password": "short",
	}), http.StatusBadRequest, "invalid_request")
	rec := srv.do(t, http.MethodPost, "/users", root, map[string]string{
		"username":   "alice",
		"password":   "alice-password",
		"department": "Eng",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create user status = %d body=%s", rec.Code, rec.Body.String())
	}
	alice := decode[common.UserView](t, rec)
	if alice.Role != "common" || alice.Department != "Eng" {
		t.Fatalf("unexpected user %#v", alice)
	}

	expectError(t, srv.do(t, http.MethodDelete, "/departments/Eng", root, nil), http.StatusConflict, "department_in_use")

	rec = srv.do(t, http.MethodPost, "/activities", root, map[string]any{
		"title":           "Admin only",
		"description":     "Root work",
		"estimated_hours": 1.0,
	})
	adminActivity := decode[common.ActivityView](t, rec)

	token := srv.login(t, "alice", "alice-password")
	expectError(t, srv.do(t, http.MethodGet, "/audit", token, nil), http.StatusForbidden, "forbidden")
	expectError(t, srv.do(t, http.MethodGet, "/activities/"+adminActivity.ID, token, nil), http.StatusForbidden, "forbidden")
	expectError(t, srv.do(t, http.MethodPost, "/users", token, map[string]string{
		"username": "mallory",
		"password": "mallory-password",
	}), http.StatusForbidden, "forbidden")

	audit := decode[map[string][]common.AuditView](t, srv.do(t, http.MethodGet, "/audit?limit=2", root, nil))
	if len(audit["entries"]) != 2 || audit["entries"][0].Action != "login" || audit["entries"][1].Action != "create_activity" {
		t.Fatalf("unexpected audit entries %#v", audit["entries"])
	}
	expectError(t, srv.do(t, http.MethodGet, "/audit?limit=-1", root, nil), http.StatusBadRequest, "invalid_request")
}

// TestHandlerTokensFollowAccountChanges verifies issued tokens pick up deactivation and
// role changes on the next request.
func TestHandlerTokensFollowAccountChanges(t *testing.T) {
	srv := newTestServer(t)
	root := srv.login(t, "root", "root-password")

	create := func(username, role string) common.UserView {
		rec := srv.do(t, http.MethodPost, "/users", root, map[string]string{
			"username": username,
			"password": username + "-password",
			"role":     role,
		})
		if rec.Code != http.StatusCreated {
			t.Fatalf("create user %s status = %d body=%s", username, rec.Code, rec.Body.String())
		}
		return decode[common.UserView](t, rec)
	}
	alice := create("alice", "common")
	boss := create("boss", "admin")

	aliceToken := srv.login(t, "alice", "alice-password")
	bossToken := srv.login(t, "boss", "boss-password")
	if rec := srv.do(t, http.MethodGet, "/activities", aliceToken, nil); rec.Code != http.StatusOK {
		t.Fatalf("list activities status = %d body=%s", rec.Code, rec.Body.String())
	}
	if rec := srv.do(t, http.MethodGet, "/audit", bossToken, nil); rec.Code != http.StatusOK {
		t.Fatalf("audit status = %d body=%s", rec.Code, rec.Body.String())
	}

	if rec := srv.do(t, http.MethodPatch, "/users/"+alice.ID, root, map[string]string{"status": "inactive"}); rec.Code != http.StatusOK {
		t.Fatalf("deactivate status = %d body=%s", rec.Code, rec.Body.String())
	}
	expectError(t, srv.do(t, http.MethodGet, "/activities", aliceToken, nil), http.StatusUnauthorized, "unauthenticated")
	expectError(t, srv.do(t, http.MethodPost, "/activities", aliceToken, map[string]any{
		"title":           "After deactivation",
		"description":     "Should not land",
		"estimated_hours": 1.0,
	}), http.StatusUnauthorized, "unauthenticated")

	if rec := srv.do(t, http.MethodPatch, "/users/"+boss.ID, root, map[string]string{"role": "common"}); rec.Code != http.StatusOK {
		t.Fatalf("demote status = %d body=%s", rec.Code, rec.Body.String())
	}
	expectError(t, srv.do(t, http.MethodGet, "/audit", bossToken, nil), http.StatusForbidden, "forbidden")
}

// TestHandlerMetrics verifies the metrics routes render for an admin.
func TestHandlerMetrics(t *testing.T) {
	srv := newTestServer(t)
	token := srv.login(t, "root", "root-password")
	for i := range 4 {
		rec := srv.do(t, http.MethodPost, "/activities", token, map[string]any{
			"title":           fmt.Sprintf("Task %d", i),
			"description":     "work",
			"estimated_hours": 4.0,
		})
		if rec.Code != http.StatusCreated {
			t.Fatalf("create status = %d body=%s", rec.Code, rec.Body.String())
		}
		if i == 0 {
			id := decode[common.ActivityView](t, rec).ID
			srv.do(t, http.MethodPost, "/activities/"+id+"/complete", token, nil)
		}
	}

	dashboard := decode[app.Dashboard](t, srv.do(t, http.MethodGet, "/metrics/dashboard", token, nil))
	if dashboard.TotalActivities != 4 || dashboard.CompletionRate != 25.0 || dashboard.ActivitiesToday != 4 {
		t.Fatalf("unexpected dashboard %#v", dashboard)
	}
	series := decode[map[string][]app.ProductivityPoint](t, srv.do(t, http.MethodGet, "/metrics/productivity?window=7", token, nil))
	if len(series["series"]) != 1 || series["series"][0].Date != "2026-02-21" || series["series"][0].Completed != 1 {
		t.Fatalf("unexpected productivity series %#v", series)
	}
	workload := decode[map[string][]app.WorkloadEntry](t, srv.do(t, http.MethodGet, "/metrics/workload", token, nil))
	if len(workload["workload"]) != 1 || workload["workload"][0].InProgress != 3 {
		t.Fatalf("unexpected workload %#v", workload)
	}
	expectError(t, srv.do(t, http.MethodGet, "/metrics/dashboard?from=yesterday", token, nil), http.StatusBadRequest, "invalid_request")
	expectError(t, srv.do(t, http.MethodGet, "/metrics/dashboard?status=bogus", token, nil), http.StatusBadRequest, "invalid_request")
}

// TestHandlerUnknownRoute verifies structured 404 and 405 responses.
func TestHandlerUnknownRoute(t *testing.T) {
	srv := newTestServer(t)
	expectError(t, srv.do(t, http.MethodGet, "/nope", "", nil), http.StatusNotFound, "not_found")
	expectError(t, srv.do(t, http.MethodPut, "/auth/token", "", nil), http.StatusMethodNotAllowed, "method_not_allowed")
}
