package jason

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"jason/internal/logger"
)

func noEnv(string) (string, bool) { return "", false }

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	return NewClient(Config{
		BaseURL:     baseURL,
		APIKey:      "test-key",
		SecretToken: "test-token",
		LookupEnv:   noEnv,
		DownloadDir: t.TempDir(),
		Platform:    "test",
		AppVersion:  "1.0",
	})
}

// countingServer fails the test on any request; used where the client must not touch the network.
func countingServer(t *testing.T) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		t.Errorf("server should not be called, got %s %s", r.Method, r.URL.Path)
	}))
	t.Cleanup(server.Close)
	return server, &calls
}

func TestCheckStatus_SendsHeadersAndParams(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("expected GET method, got %s", r.Method)
		}
		if r.URL.Path != "/status" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("ApiKey") != "test-key" {
			t.Errorf("expected ApiKey header, got: %s", r.Header.Get("ApiKey"))
		}
		if r.Header.Get("accept") != "application/json" {
			t.Errorf("expected accept header, got: %s", r.Header.Get("accept"))
		}
		if r.Header.Get("X-Request-ID") != "req-1" {
			t.Errorf("expected X-Request-ID req-1, got: %s", r.Header.Get("X-Request-ID"))
		}
		q := r.URL.Query()
		if q.Get("platform") != "web" || q.Get("app_version") != "2.0" || q.Get("token") != "test-token" {
			t.Errorf("unexpected query: %s", r.URL.RawQuery)
		}

		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]any{"success": true, "version": "3.1"})
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	ctx := logger.WithRequestID(context.Background(), "req-1")

	body, code, err := client.CheckStatus(ctx, "web", "2.0")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if code != http.StatusOK {
		t.Errorf("expected 200, got %d", code)
	}
	if body["success"] != true {
		t.Errorf("expected body to be returned unmodified, got %v", body)
	}
}

func TestCheckStatus_TokenOptional(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Has("token") {
			t.Errorf("token should not be sent when unknown, got %s", r.URL.RawQuery)
		}
		w.WriteHeader(http.StatusForbidden)
		json.NewEncoder(w).Encode(map[string]string{"message": "invalid api key"})
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, APIKey: "invalid", LookupEnv: noEnv})

	body, code, err := client.CheckStatus(context.Background(), "web", "1.0")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", code)
	}
	if _, ok := body["message"]; !ok {
		t.Errorf("expected message in body, got %v", body)
	}
}

func TestCheckStatus_MissingAPIKey(t *testing.T) {
	server, calls := countingServer(t)

	client := NewClient(Config{BaseURL: server.URL, LookupEnv: noEnv})
	_, _, err := client.CheckStatus(context.Background(), "web", "1.0")
	if !errors.Is(err, ErrAuthentication) {
		t.Errorf("expected ErrAuthentication, got %v", err)
	}
	if calls.Load() != 0 {
		t.Errorf("expected no request, got %d", calls.Load())
	}
}

func TestAPIHealth(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("platform") != "test" {
			t.Errorf("expected client platform, got %s", r.URL.RawQuery)
		}
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]any{"success": true, "version": "3.1"})
	}))
	defer server.Close()

	body, err := newTestClient(t, server.URL).APIHealth(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := body["success"]; ok {
		t.Error("expected success marker to be stripped")
	}
	if body["version"] != "3.1" {
		t.Errorf("expected version 3.1, got %v", body["version"])
	}
}

func TestAPIHealth_NonOK(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("<html>maintenance</html>"))
	}))
	defer server.Close()

	body, err := newTestClient(t, server.URL).APIHealth(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if body != nil {
		t.Errorf("expected nil body, got %v", body)
	}
}

func TestGetStatus_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/processes/1234" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.URL.Query().Get("token") != "test-token" {
			t.Errorf("expected token query param, got %s", r.URL.RawQuery)
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"process": {"id": 1234, "type": "GNSS", "status": "RUNNING"}}`))
	}))
	defer server.Close()

	status, code, err := newTestClient(t, server.URL).GetStatus(context.Background(), "1234")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if code != http.StatusOK {
		t.Errorf("expected 200, got %d", code)
	}
	if status.Process.ID != "1234" || status.Process.Status != "RUNNING" {
		t.Errorf("unexpected process: %+v", status.Process)
	}
}

func TestGetStatus_InvalidIDSkipsNetwork(t *testing.T) {
	server, calls := countingServer(t)
	client := newTestClient(t, server.URL)

	for _, id := range []string{"", "12a", "-1", "1 2", "../1", "١٢"} {
		t.Run(id, func(t *testing.T) {
			_, _, err := client.GetStatus(context.Background(), id)
			if !errors.Is(err, ErrValidation) {
				t.Errorf("GetStatus(%q) = %v, want ErrValidation", id, err)
			}
		})
	}

	if calls.Load() != 0 {
		t.Errorf("expected no request, got %d", calls.Load())
	}
}

func TestGetStatus_MissingTokenSkipsNetwork(t *testing.T) {
	server, calls := countingServer(t)

	client := NewClient(Config{BaseURL: server.URL, APIKey: "test-key", LookupEnv: noEnv})
	_, _, err := client.GetStatus(context.Background(), "42")
	if !errors.Is(err, ErrAuthentication) {
		t.Errorf("expected ErrAuthentication, got %v", err)
	}
	if calls.Load() != 0 {
		t.Errorf("expected no request, got %d", calls.Load())
	}
}

func TestGetStatus_Forbidden(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"message": "not your process"}`))
	}))
	defer server.Close()

	status, code, err := newTestClient(t, server.URL).GetStatus(context.Background(), "707")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", code)
	}
	if status.Message != "not your process" {
		t.Errorf("expected message to be decoded, got %q", status.Message)
	}
}

func TestGetStatus_MalformedSuccessBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("not json"))
	}))
	defer server.Close()

	_, _, err := newTestClient(t, server.URL).GetStatus(context.Background(), "1")
	if err == nil || !strings.Contains(err.Error(), "failed to parse response") {
		t.Errorf("expected parse error, got %v", err)
	}
}

func TestListProcesses(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/users/test-token/processes" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`[
			{"id": 1, "type": "GNSS", "status": "FINISHED", "source_file": "/data/uploads/rover.obs", "created": "2024-01-02T03:04:05", "extra": "dropped"},
			{"id": "2", "type": "CONVERSION", "status": "RUNNING", "source_file": "plain.ubx", "created": "2024-01-03T00:00:00"}
		]`))
	}))
	defer server.Close()

	processes, err := newTestClient(t, server.URL).ListProcesses(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(processes) != 2 {
		t.Fatalf("expected 2 processes, got %d", len(processes))
	}
	if processes[0].ID != "1" || processes[0].SourceFile != "rover.obs" {
		t.Errorf("unexpected first summary: %+v", processes[0])
	}
	if processes[1].SourceFile != "plain.ubx" || processes[1].Type != "CONVERSION" {
		t.Errorf("unexpected second summary: %+v", processes[1])
	}
}

func TestListProcesses_NonOKIsEmpty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message": "bad token"}`))
	}))
	defer server.Close()

	processes, err := newTestClient(t, server.URL).ListProcesses(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if processes == nil || len(processes) != 0 {
		t.Errorf("expected empty non-nil slice, got %v", processes)
	}
}

func TestNewClient_CredentialsFromEnvironment(t *testing.T) {
	t.Setenv("JASON_API_KEY", "env-key")
	t.Setenv("JASON_SECRET_TOKEN", "env-token")

	client := NewClient(Config{})
	creds := client.Credentials()
	if creds.APIKey != "env-key" || creds.SecretToken != "env-token" {
		t.Errorf("expected credentials from env, got %+v", creds)
	}
	if client.baseURL != DefaultBaseURL {
		t.Errorf("expected default base URL, got %s", client.baseURL)
	}
}
