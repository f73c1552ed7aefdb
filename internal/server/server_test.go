package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Sternrassler/mycase-client/internal/testutil"
	"github.com/Sternrassler/mycase-client/pkg/auth"
	"github.com/Sternrassler/mycase-client/pkg/client"
	"github.com/Sternrassler/mycase-client/pkg/mycase"
	"github.com/Sternrassler/mycase-client/pkg/pagination"
)

func setupServer(t *testing.T, ready ReadyFunc) (*httptest.Server, *testutil.MockAPI) {
	t.Helper()

	mock := testutil.NewMockAPI()
	t.Cleanup(mock.Close)

	cfg := client.DefaultConfig()
	cfg.BaseURL = mock.URL()
	c, err := client.New(cfg, auth.NewStatic("proxy-token"))
	if err != nil {
		t.Fatalf("client.New() error = %v", err)
	}
	c.SetSleepFunc(func(ctx context.Context, d time.Duration) error { return ctx.Err() })

	pager := pagination.NewDriver(c, pagination.Config{PageDelay: -1})
	srv := httptest.NewServer(New(mycase.NewService(c, pager), ready).Handler())
	t.Cleanup(srv.Close)

	return srv, mock
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()

	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(body)
}

func TestHealthEndpoint(t *testing.T) {
	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()

	healthHandler(w, req)

	resp := w.Result()
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}
	if string(body) != "OK" {
		t.Errorf("Expected body 'OK', got %s", string(body))
	}
}

func TestReadyEndpoint(t *testing.T) {
	t.Run("ready", func(t *testing.T) {
		srv, _ := setupServer(t, func(ctx context.Context) error { return nil })

		status, body := get(t, srv.URL+"/ready")
		if status != http.StatusOK || body != "OK" {
			t.Errorf("ready = %d %q, want 200 OK", status, body)
		}
	})

	t.Run("not_ready", func(t *testing.T) {
		srv, _ := setupServer(t, func(ctx context.Context) error { return errors.New("redis down") })

		status, body := get(t, srv.URL+"/ready")
		if status != http.StatusServiceUnavailable {
			t.Errorf("Expected status 503, got %d", status)
		}
		if !strings.Contains(body, "redis down") {
			t.Errorf("body = %q, want reason", body)
		}
	})
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := setupServer(t, nil)

	status, body := get(t, srv.URL+"/metrics")
	if status != http.StatusOK {
		t.Fatalf("status = %d, want 200", status)
	}
	if !strings.Contains(body, "mycase_rate_limit_tokens") {
		t.Error("metrics output missing mycase_rate_limit_tokens")
	}
}

func TestListEndpoint(t *testing.T) {
	srv, mock := setupServer(t, nil)
	mock.SetCollection("/cases", 130)

	status, body := get(t, srv.URL+"/api/cases?status=open")
	if status != http.StatusOK {
		t.Fatalf("status = %d, body = %s", status, body)
	}

	var resp ListResponse
	if err := json.Unmarshal([]byte(body), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Count != 130 || len(resp.Items) != 130 {
		t.Errorf("count = %d, items = %d, want 130", resp.Count, len(resp.Items))
	}
	if resp.Pages != 2 {
		t.Errorf("pages = %d, want 2", resp.Pages)
	}
	if resp.Stop != "no_next" {
		t.Errorf("stop = %q, want no_next", resp.Stop)
	}
	if !strings.Contains(mock.GetLastRequestQuery(), "status=open") {
		t.Errorf("upstream query = %q, want status filter", mock.GetLastRequestQuery())
	}
}

func TestGetEndpoint(t *testing.T) {
	srv, mock := setupServer(t, nil)
	mock.SetResponse("/contacts/12", testutil.NewJSONResponse(`{"id":12,"first_name":"Ada"}`))

	status, body := get(t, srv.URL+"/api/contacts/12")
	if status != http.StatusOK {
		t.Fatalf("status = %d, body = %s", status, body)
	}
	if body != `{"id":12,"first_name":"Ada"}` {
		t.Errorf("body = %s", body)
	}
}

func TestFirmEndpoint(t *testing.T) {
	srv, mock := setupServer(t, nil)
	mock.SetResponse("/firm", testutil.NewJSONResponse(`{"id":1,"name":"Acme Law"}`))

	status, body := get(t, srv.URL+"/api/firm")
	if status != http.StatusOK || !strings.Contains(body, "Acme Law") {
		t.Errorf("firm = %d %s", status, body)
	}
}

func TestErrorMapping(t *testing.T) {
	srv, mock := setupServer(t, nil)
	mock.SetResponse("/tasks", testutil.NewServerErrorResponse())

	tests := []struct {
		name   string
		path   string
		status int
	}{
		{"unknown resource", "/api/matters", http.StatusNotFound},
		{"bad id", "/api/cases/abc", http.StatusBadRequest},
		{"upstream not found", "/api/cases/999", http.StatusNotFound},
		{"unsupported operation", "/api/payments/1", http.StatusMethodNotAllowed},
		{"upstream failure", "/api/tasks", http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := get(t, srv.URL+tt.path)
			if status != tt.status {
				t.Errorf("GET %s = %d (%s), want %d", tt.path, status, body, tt.status)
			}
		})
	}
}
