package mcpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/hylla/taskmon/internal/adapters/storage/sqlite"
	"github.com/hylla/taskmon/internal/app"
	"github.com/hylla/taskmon/internal/domain"
	"github.com/mark3labs/mcp-go/mcp"
	"golang.org/x/crypto/bcrypt"
)

// jsonRPCResponse models minimal JSON-RPC response fields used in MCP adapter tests.
type jsonRPCResponse struct {
	ID     float64        `json:"id"`
	Result map[string]any `json:"result"`
}

// callToolRequest constructs one deterministic tools/call JSON-RPC request payload.
func callToolRequest(id int, toolName string, arguments map[string]any) map[string]any {
	return map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"method":  "tools/call",
		"params": map[string]any{
			"name":      toolName,
			"arguments": arguments,
		},
	}
}

// toolResultText returns the first text content entry of one tool result.
func toolResultText(t *testing.T, result map[string]any) string {
	t.Helper()

	contentRaw, ok := result["content"].([]any)
	if !ok || len(contentRaw) == 0 {
		t.Fatalf("content missing in tool result: %#v", result)
	}
	first, ok := contentRaw[0].(map[string]any)
	if !ok {
		t.Fatalf("first content entry has unexpected type: %#v", contentRaw[0])
	}
	text, ok := first["text"].(string)
	if !ok {
		t.Fatalf("content text missing in tool result: %#v", first)
	}
	return text
}

// toolResultStructured returns the structured payload of one tool result.
func toolResultStructured(t *testing.T, result map[string]any) map[string]any {
	t.Helper()
	structured, ok := result["structuredContent"].(map[string]any)
	if !ok {
		t.Fatalf("structuredContent missing in tool result: %#v", result)
	}
	return structured
}

// postJSONRPC sends one JSON-RPC payload and decodes the response.
func postJSONRPC(t *testing.T, client *http.Client, url string, payload any) (*http.Response, jsonRPCResponse) {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewBuffer(body))
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	var decoded jsonRPCResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if err := resp.Body.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	return resp, decoded
}

// initializeRequest builds the MCP initialize handshake payload.
func initializeRequest() map[string]any {
	return map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "initialize",
		"params": map[string]any{
			"protocolVersion": mcp.LATEST_PROTOCOL_VERSION,
			"clientInfo": map[string]any{
				"name":    "taskmon-test",
				"version": "1.0.0",
			},
		},
	}
}

type mcpEnv struct {
	svc   *app.Service
	admin domain.User
	alice domain.User
}

// newMCPEnv builds a service over an in-memory store with an admin and a common user.
func newMCPEnv(t *testing.T) *mcpEnv {
	t.Helper()
	ctx := context.Background()
	repo, err := sqlite.OpenInMemory(ctx)
	if err != nil {
		t.Fatalf("OpenInMemory() error = %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })

	now := time.Date(2026, 2, 21, 12, 0, 0, 0, time.UTC)
	n := 0
	svc := app.NewService(repo, func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}, func() time.Time { return now }, app.ServiceConfig{
		Location:     time.UTC,
		PasswordCost: bcrypt.MinCost,
	})
	admin, err := svc.ProvisionAdmin(ctx, app.ProvisionAdminInput{Username: "root", Password: "root-password"})
	if err != nil {
		t.Fatalf("ProvisionAdmin() error = %v", err)
	}
	alice, err := svc.CreateUser(app.WithActor(ctx, app.ActorFromUser(admin)), app.CreateUserInput{
		Username: "alice",
		Password: "alice-password",
	})
	if err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}
	return &mcpEnv{svc: svc, admin: admin, alice: alice}
}

// serveAs mounts the MCP handler behind a request context carrying user as actor.
func (e *mcpEnv) serveAs(t *testing.T, user *domain.User) *httptest.Server {
	t.Helper()
	handler, err := NewHandler(Config{}, e.svc)
	if err != nil {
		t.Fatalf("NewHandler() error = %v", err)
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if user != nil {
			r = r.WithContext(app.WithActor(r.Context(), app.ActorFromUser(*user)))
		}
		handler.ServeHTTP(w, r)
	}))
	t.Cleanup(server.Close)
	_, _ = postJSONRPC(t, server.Client(), server.URL, initializeRequest())
	return server
}

// TestHandlerUsesStatelessTransport verifies no MCP session is issued.
func TestHandlerUsesStatelessTransport(t *testing.T) {
	env := newMCPEnv(t)
	handler, err := NewHandler(Config{}, env.svc)
	if err != nil {
		t.Fatalf("NewHandler() error = %v", err)
	}
	server := httptest.NewServer(handler)
	defer server.Close()

	resp, decoded := postJSONRPC(t, server.Client(), server.URL, initializeRequest())
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	if decoded.ID != 1 {
		t.Fatalf("id = %v, want 1", decoded.ID)
	}
	if got := resp.Header.Get("Mcp-Session-Id"); got != "" {
		t.Fatalf("Mcp-Session-Id header = %q, want empty (stateless transport)", got)
	}
}

// TestHandlerRegistersTools verifies MCP tool discovery lists every taskmon tool.
func TestHandlerRegistersTools(t *testing.T) {
	env := newMCPEnv(t)
	server := env.serveAs(t, &env.admin)
	_, toolsResp := postJSONRPC(t, server.Client(), server.URL, map[string]any{
		"jsonrpc": "2.0",
		"id":      2,
		"method":  "tools/list",
	})

	toolsRaw, ok := toolsResp.Result["tools"].([]any)
	if !ok {
		t.Fatalf("tools list payload missing tools: %#v", toolsResp.Result)
	}
	toolNames := make([]string, 0, len(toolsRaw))
	for _, toolRaw := range toolsRaw {
		toolMap, ok := toolRaw.(map[string]any)
		if !ok {
			continue
		}
		name, _ := toolMap["name"].(string)
		toolNames = append(toolNames, name)
	}
	for _, want := range []string{
		"taskmon.create_activity",
		"taskmon.update_activity",
		"taskmon.complete_activity",
		"taskmon.delete_activity",
		"taskmon.list_activities",
		"taskmon.record_time",
		"taskmon.add_dependency",
		"taskmon.is_unblocked",
		"taskmon.dashboard",
	} {
		if !slices.Contains(toolNames, want) {
			t.Fatalf("tool list missing %s: %#v", want, toolNames)
		}
	}
}

// TestHandlerActivityToolFlow drives create, dependency, ledger and completion through tools.
func TestHandlerActivityToolFlow(t *testing.T) {
	env := newMCPEnv(t)
	server := env.serveAs(t, &env.alice)
	client := server.Client()

	_, resp := postJSONRPC(t, client, server.URL, callToolRequest(2, "taskmon.create_activity", map[string]any{
		"title":           "Draft plan",
		"description":     "Outline milestones",
		"estimated_hours": 2,
		"tags":            []string{"planning"},
	}))
	plan := toolResultStructured(t, resp.Result)
	if plan["owner_id"] != env.alice.ID || plan["status"] != "in_progress" {
		t.Fatalf("unexpected created activity %#v", plan)
	}
	planID, _ := plan["id"].(string)

	_, resp = postJSONRPC(t, client, server.URL, callToolRequest(3, "taskmon.create_activity", map[string]any{
		"title":           "Gather input",
		"description":     "Ask stakeholders",
		"estimated_hours": 1,
	}))
	inputID, _ := toolResultStructured(t, resp.Result)["id"].(string)

	_, resp = postJSONRPC(t, client, server.URL, callToolRequest(4, "taskmon.add_dependency", map[string]any{
		"activity_id":   planID,
		"depends_on_id": inputID,
	}))
	if dep := toolResultStructured(t, resp.Result); dep["depends_on_id"] != inputID {
		t.Fatalf("unexpected dependency %#v", dep)
	}

	_, resp = postJSONRPC(t, client, server.URL, callToolRequest(5, "taskmon.is_unblocked", map[string]any{"activity_id": planID}))
	if got := toolResultStructured(t, resp.Result); got["unblocked"] != false {
		t.Fatalf("expected blocked plan, got %#v", got)
	}
	_, resp = postJSONRPC(t, client, server.URL, callToolRequest(6, "taskmon.complete_activity", map[string]any{"id": planID}))
	if text := toolResultText(t, resp.Result); !strings.HasPrefix(text, "dependency_unmet:") {
		t.Fatalf("expected dependency_unmet tool error, got %q", text)
	}

	_, _ = postJSONRPC(t, client, server.URL, callToolRequest(7, "taskmon.complete_activity", map[string]any{"id": inputID}))
	for i, hours := range []float64{1.5, 1.0} {
		_, resp = postJSONRPC(t, client, server.URL, callToolRequest(8+i, "taskmon.record_time", map[string]any{
			"activity_id": planID,
			"hours_spent": hours,
		}))
	}
	if got := toolResultStructured(t, resp.Result); got["total_hours"] != 2.5 {
		t.Fatalf("total_hours = %v, want 2.5", got["total_hours"])
	}

	_, resp = postJSONRPC(t, client, server.URL, callToolRequest(10, "taskmon.update_activity", map[string]any{
		"id":       planID,
		"priority": "high",
	}))
	if got := toolResultStructured(t, resp.Result); got["priority"] != "high" || got["title"] != "Draft plan" {
		t.Fatalf("unexpected updated activity %#v", got)
	}

	_, resp = postJSONRPC(t, client, server.URL, callToolRequest(11, "taskmon.complete_activity", map[string]any{"id": planID}))
	if got := toolResultStructured(t, resp.Result); got["status"] != "completed" || got["actual_hours"] != 2.5 {
		t.Fatalf("unexpected completed activity %#v", got)
	}

	_, resp = postJSONRPC(t, client, server.URL, callToolRequest(12, "taskmon.dashboard", map[string]any{}))
	dashboard := toolResultStructured(t, resp.Result)
	if dashboard["total_activities"] != 2.0 || dashboard["completion_rate"] != 100.0 {
		t.Fatalf("unexpected dashboard %#v", dashboard)
	}

	_, resp = postJSONRPC(t, client, server.URL, callToolRequest(13, "taskmon.list_activities", map[string]any{"status": "completed"}))
	listed, _ := toolResultStructured(t, resp.Result)["activities"].([]any)
	if len(listed) != 2 {
		t.Fatalf("expected 2 completed activities, got %d", len(listed))
	}

	_, resp = postJSONRPC(t, client, server.URL, callToolRequest(14, "taskmon.delete_activity", map[string]any{"id": planID}))
	if got := toolResultStructured(t, resp.Result); got["deleted"] != true {
		t.Fatalf("unexpected delete result %#v", got)
	}
}

// TestHandlerToolErrors verifies actor, permission and validation failures become tool errors.
func TestHandlerToolErrors(t *testing.T) {
	env := newMCPEnv(t)

	anonymous := env.serveAs(t, nil)
	_, resp := postJSONRPC(t, anonymous.Client(), anonymous.URL, callToolRequest(2, "taskmon.list_activities", map[string]any{}))
	if text := toolResultText(t, resp.Result); !strings.HasPrefix(text, "unauthenticated:") {
		t.Fatalf("expected unauthenticated tool error, got %q", text)
	}

	admin := env.serveAs(t, &env.admin)
	_, resp = postJSONRPC(t, admin.Client(), admin.URL, callToolRequest(3, "taskmon.create_activity", map[string]any{
		"title":           "Root task",
		"description":     "Admin work",
		"estimated_hours": 1,
	}))
	rootTaskID, _ := toolResultStructured(t, resp.Result)["id"].(string)

	_, resp = postJSONRPC(t, admin.Client(), admin.URL, callToolRequest(4, "taskmon.add_dependency", map[string]any{
		"activity_id":   rootTaskID,
		"depends_on_id": rootTaskID,
	}))
	if text := toolResultText(t, resp.Result); !strings.HasPrefix(text, "invalid_request:") {
		t.Fatalf("expected invalid_request tool error, got %q", text)
	}
	_, resp = postJSONRPC(t, admin.Client(), admin.URL, callToolRequest(5, "taskmon.create_activity", map[string]any{
		"title":           "Bad",
		"description":     "estimate",
		"estimated_hours": 0,
	}))
	if text := toolResultText(t, resp.Result); !strings.HasPrefix(text, "invalid_request:") {
		t.Fatalf("expected invalid_request tool error, got %q", text)
	}

	alice := env.serveAs(t, &env.alice)
	_, resp = postJSONRPC(t, alice.Client(), alice.URL, callToolRequest(6, "taskmon.complete_activity", map[string]any{"id": rootTaskID}))
	if text := toolResultText(t, resp.Result); !strings.HasPrefix(text, "forbidden:") {
		t.Fatalf("expected forbidden tool error, got %q", text)
	}
	_, resp = postJSONRPC(t, alice.Client(), alice.URL, callToolRequest(7, "taskmon.complete_activity", map[string]any{"id": "missing"}))
	if text := toolResultText(t, resp.Result); !strings.HasPrefix(text, "not_found:") {
		t.Fatalf("expected not_found tool error, got %q", text)
	}
}

// TestNormalizeConfig verifies MCP config defaults and endpoint canonicalization.
func TestNormalizeConfig(t *testing.T) {
	got := normalizeConfig(Config{EndpointPath: "tools/mcp/"})
	if got.ServerName != "taskmon" || got.ServerVersion != "dev" || got.EndpointPath != "/tools/mcp" {
		t.Fatalf("unexpected normalized config %#v", got)
	}
}

// TestNewHandlerRequiresService verifies constructor guards.
func TestNewHandlerRequiresService(t *testing.T) {
	if _, err := NewHandler(Config{}, nil); err == nil {
		t.Fatal("expected error for missing service")
	}
}

// TestHandlerServeHTTPUnavailable verifies nil handlers fail closed.
func TestHandlerServeHTTPUnavailable(t *testing.T) {
	var h *Handler
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/mcp", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
}
