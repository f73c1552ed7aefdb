package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Sternrassler/mycase-client/internal/testutil"
	"github.com/Sternrassler/mycase-client/pkg/config"
	"github.com/alicebob/miniredis/v2"
)

// setupEnv points the CLI at mock with a static token and no page delay.
func setupEnv(t *testing.T, mock *testutil.MockAPI) string {
	t.Helper()

	tokenFile := filepath.Join(t.TempDir(), "tokens.json")
	t.Setenv("MYCASE_API_URL", mock.URL())
	t.Setenv("MYCASE_ACCESS_TOKEN", "test-token")
	t.Setenv("MYCASE_TOKEN_STORE", config.StoreFile)
	t.Setenv("MYCASE_TOKEN_FILE", tokenFile)
	t.Setenv("MYCASE_PAGE_DELAY", "0s")
	return tokenFile
}

func runCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var stdout, stderr bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--quiet"}, args...))

	err := cmd.Execute()
	return stdout.String(), err
}

func TestGetCommand(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()
	setupEnv(t, mock)

	mock.SetResponse("/firm", testutil.NewJSONResponse(`{"name":"Acme Law"}`))

	out, err := runCmd(t, "get", "/firm")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}

	if !strings.Contains(out, `"name": "Acme Law"`) {
		t.Errorf("output = %q, want indented firm JSON", out)
	}
	if got := mock.GetLastRequestHeader().Get("Authorization"); got != "Bearer test-token" {
		t.Errorf("Authorization = %q, want %q", got, "Bearer test-token")
	}
}

func TestGetCommand_Params(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()
	setupEnv(t, mock)

	mock.SetResponse("/cases", testutil.NewJSONResponse(`[]`))

	if _, err := runCmd(t, "get", "cases", "status=open", "per_page=10"); err != nil {
		t.Fatalf("get failed: %v", err)
	}

	if got := mock.GetLastRequestQuery(); got != "status=open&per_page=10" {
		t.Errorf("query = %q, want %q", got, "status=open&per_page=10")
	}
}

func TestGetCommand_InvalidParam(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()
	setupEnv(t, mock)

	if _, err := runCmd(t, "get", "/cases", "status"); err == nil {
		t.Fatal("expected error for parameter without '='")
	}
	if mock.GetRequestCount() != 0 {
		t.Errorf("requests = %d, want 0", mock.GetRequestCount())
	}
}

func TestGetCommand_NotFound(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()
	setupEnv(t, mock)

	_, err := runCmd(t, "get", "/missing")
	if err == nil {
		t.Fatal("expected error for 404")
	}
	if !strings.Contains(err.Error(), "404") {
		t.Errorf("error = %v, want it to mention 404", err)
	}
}

func TestFetchCommand(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()
	setupEnv(t, mock)

	mock.SetCollection("/cases", 150)

	out, err := runCmd(t, "fetch", "cases")
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}

	var items []map[string]any
	if err := json.Unmarshal([]byte(out), &items); err != nil {
		t.Fatalf("output is not a JSON array: %v", err)
	}
	if len(items) != 150 {
		t.Errorf("items = %d, want 150", len(items))
	}
	if got := mock.GetPathCount("/cases"); got != 2 {
		t.Errorf("requests = %d, want 2", got)
	}
}

func TestFetchCommand_Filters(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()
	setupEnv(t, mock)

	mock.SetCollection("/time_entries", 1)

	_, err := runCmd(t, "fetch", "time-entries",
		"--status", "open",
		"--updated-since", "2024-01-02",
		"--case-id", "7",
		"--filter", "billable=true",
	)
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}

	query := mock.GetLastRequestQuery()
	for _, want := range []string{
		"status=open",
		"updated_since=2024-01-02T00%3A00%3A00Z",
		"case_id=7",
		"billable=true",
		"per_page=100",
	} {
		if !strings.Contains(query, want) {
			t.Errorf("query %q missing %q", query, want)
		}
	}
}

func TestFetchCommand_MaxPages(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()
	setupEnv(t, mock)

	mock.SetCollection("/contacts", 250)

	out, err := runCmd(t, "fetch", "contacts", "--max-pages", "1")
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}

	var items []json.RawMessage
	if err := json.Unmarshal([]byte(out), &items); err != nil {
		t.Fatalf("output is not a JSON array: %v", err)
	}
	if len(items) != 100 {
		t.Errorf("items = %d, want 100", len(items))
	}
	if got := mock.GetPathCount("/contacts"); got != 1 {
		t.Errorf("requests = %d, want 1", got)
	}
}

func TestFetchCommand_NDJSONToFile(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()
	setupEnv(t, mock)

	mock.SetCollection("/tasks", 3)
	outFile := filepath.Join(t.TempDir(), "tasks.ndjson")

	out, err := runCmd(t, "fetch", "tasks", "--ndjson", "-o", outFile)
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if out != "" {
		t.Errorf("stdout = %q, want empty", out)
	}

	data, err := os.ReadFile(outFile)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 3 {
		t.Fatalf("lines = %d, want 3", len(lines))
	}
	if lines[0] != `{"id":1}` {
		t.Errorf("first line = %q, want %q", lines[0], `{"id":1}`)
	}
}

func TestFetchCommand_ByID(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()
	setupEnv(t, mock)

	mock.SetResponse("/contacts/42", testutil.NewJSONResponse(`{"id":42,"first_name":"Ada"}`))

	out, err := runCmd(t, "fetch", "contacts", "--id", "42")
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if !strings.Contains(out, `"first_name": "Ada"`) {
		t.Errorf("output = %q, want contact JSON", out)
	}
}

func TestFetchCommand_Errors(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()
	setupEnv(t, mock)

	tests := []struct {
		name string
		args []string
	}{
		{"unknown resource", []string{"fetch", "widgets"}},
		{"bad date", []string{"fetch", "cases", "--updated-since", "yesterday"}},
		{"bad archived", []string{"fetch", "cases", "--archived", "maybe"}},
		{"missing resource", []string{"fetch"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := runCmd(t, tt.args...); err == nil {
				t.Error("expected error")
			}
		})
	}

	if mock.GetRequestCount() != 0 {
		t.Errorf("requests = %d, want 0", mock.GetRequestCount())
	}
}

func TestResourcesCommand(t *testing.T) {
	out, err := runCmd(t, "resources")
	if err != nil {
		t.Fatalf("resources failed: %v", err)
	}

	for _, want := range []string{"RESOURCE", "cases", "/time_entries", "list,get"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestAuthCommands_StaticToken(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()
	setupEnv(t, mock)

	out, err := runCmd(t, "auth", "status")
	if err != nil {
		t.Fatalf("auth status failed: %v", err)
	}
	if !strings.Contains(out, "static access token") {
		t.Errorf("output = %q, want static token notice", out)
	}

	if _, err := runCmd(t, "auth", "url"); err == nil {
		t.Error("auth url: expected error with a static token")
	}
}

// tokenServer is a minimal MyCase OAuth2 token endpoint.
func tokenServer(t *testing.T) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/tokens" || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if r.PostForm.Get("client_secret") != "secret" {
			http.Error(w, `{"error":"invalid_client"}`, http.StatusUnauthorized)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "access-" + r.PostForm.Get("grant_type"),
			"refresh_token": "refresh-1",
			"token_type":    "bearer",
			"scope":         "read_cases",
			"expires_in":    86400,
			"firm_uuid":     "firm-123",
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func setupOAuthEnv(t *testing.T) string {
	t.Helper()

	mock := testutil.NewMockAPI()
	t.Cleanup(mock.Close)
	tokenFile := setupEnv(t, mock)

	t.Setenv("MYCASE_ACCESS_TOKEN", "")
	t.Setenv("MYCASE_AUTH_URL", tokenServer(t).URL)
	t.Setenv("MYCASE_CLIENT_ID", "client-id")
	t.Setenv("MYCASE_CLIENT_SECRET", "secret")
	t.Setenv("MYCASE_REDIRECT_URI", "http://localhost:8080/callback")
	return tokenFile
}

func TestAuthURLCommand(t *testing.T) {
	setupOAuthEnv(t)

	out, err := runCmd(t, "auth", "url", "--scopes", "read_cases,read_contacts")
	if err != nil {
		t.Fatalf("auth url failed: %v", err)
	}

	for _, want := range []string{"/login_sessions/new?", "client_id=client-id", "scope=read_cases+read_contacts"} {
		if !strings.Contains(out, want) {
			t.Errorf("url %q missing %q", out, want)
		}
	}
}

func TestAuthLifecycle(t *testing.T) {
	tokenFile := setupOAuthEnv(t)

	if _, err := runCmd(t, "auth", "status"); err == nil {
		t.Error("status before exchange: expected error")
	}

	out, err := runCmd(t, "auth", "exchange", "code-abc")
	if err != nil {
		t.Fatalf("auth exchange failed: %v", err)
	}
	if !strings.Contains(out, "Tokens stored") {
		t.Errorf("exchange output = %q", out)
	}
	if _, err := os.Stat(tokenFile); err != nil {
		t.Fatalf("token file not written: %v", err)
	}

	out, err = runCmd(t, "auth", "status")
	if err != nil {
		t.Fatalf("auth status failed: %v", err)
	}
	for _, want := range []string{"firm-123", "valid for", "Refresh token:  valid"} {
		if !strings.Contains(out, want) {
			t.Errorf("status output missing %q:\n%s", want, out)
		}
	}

	out, err = runCmd(t, "auth", "refresh")
	if err != nil {
		t.Fatalf("auth refresh failed: %v", err)
	}
	if !strings.Contains(out, "Access token refreshed") {
		t.Errorf("refresh output = %q", out)
	}
	data, err := os.ReadFile(tokenFile)
	if err != nil {
		t.Fatalf("read token file: %v", err)
	}
	if !strings.Contains(string(data), "access-refresh_token") {
		t.Errorf("token file does not hold the refreshed token:\n%s", data)
	}

	if _, err := runCmd(t, "auth", "logout"); err != nil {
		t.Fatalf("auth logout failed: %v", err)
	}
	if _, err := os.Stat(tokenFile); !os.IsNotExist(err) {
		t.Errorf("token file still present after logout (err = %v)", err)
	}
}

func TestApp_ReadyWithRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)

	cfg := config.Default()
	cfg.Auth.AccessToken = "test-token"
	cfg.Auth.Store = config.StoreRedis
	cfg.Redis.URL = "redis://" + mr.Addr()

	a, err := newApp(cfg)
	if err != nil {
		t.Fatalf("newApp failed: %v", err)
	}
	defer a.Close()

	if a.redis == nil {
		t.Fatal("expected a redis client for the redis token store")
	}
	if err := a.ready(context.Background()); err != nil {
		t.Errorf("ready = %v, want nil", err)
	}

	mr.Close()
	if err := a.ready(context.Background()); err == nil {
		t.Error("ready = nil after redis went away, want error")
	}
}

func TestApp_OAuthRequiresCredentials(t *testing.T) {
	cfg := config.Default()
	cfg.Auth.TokenFile = filepath.Join(t.TempDir(), "tokens.json")

	if _, err := newApp(cfg); err == nil {
		t.Error("expected error without client credentials")
	}
}
