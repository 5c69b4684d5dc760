package client

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/vacuumn/jira-client/pkg/credentials"
	"github.com/vacuumn/jira-client/pkg/environment"
)

// staticProvider serves fixed credentials, or an absence/failure.
type staticProvider struct {
	creds *credentials.Credentials
	err   error
	calls int32
}

func (p *staticProvider) Load() (*credentials.Credentials, error) {
	atomic.AddInt32(&p.calls, 1)
	return p.creds, p.err
}

// newTestClient builds a client pointed at a test server.
func newTestClient(t *testing.T, serverURL string, provider CredentialsProvider) *Client {
	t.Helper()

	cfg := DefaultConfig(environment.Dev)
	cfg.BaseURL = serverURL
	cfg.LocalExecution = true
	cfg.Credentials = provider
	cfg.Retry = fastRetryConfig(3)

	c, err := New(cfg)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	t.Cleanup(func() { c.Close() })

	return c
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name        string
		config      Config
		expectError bool
		errorMsg    string
	}{
		{
			name:        "valid config",
			config:      Config{Environment: environment.Dev, LocalExecution: true},
			expectError: false,
		},
		{
			name:        "missing environment",
			config:      Config{},
			expectError: true,
			errorMsg:    "environment is required",
		},
		{
			name: "invalid proxy url",
			config: Config{
				Environment: environment.Dev,
				ProxyURL:    "http://bad url with spaces",
			},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := New(tt.config)

			if tt.expectError {
				if err == nil {
					t.Errorf("Expected error but got nil")
					return
				}
				if tt.errorMsg != "" && err.Error() != tt.errorMsg {
					t.Errorf("Error message = %q, want %q", err.Error(), tt.errorMsg)
				}
			} else {
				if err != nil {
					t.Errorf("Unexpected error: %v", err)
					return
				}
				if c == nil {
					t.Error("Client is nil")
				}
			}
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig(environment.Staging)

	if cfg.Environment != environment.Staging {
		t.Errorf("Environment = %q, want staging", cfg.Environment)
	}
	if cfg.Credentials == nil {
		t.Error("Credentials provider should default to the layered provider")
	}
	if cfg.Timeout != 30*time.Second {
		t.Errorf("Timeout = %v, want 30s", cfg.Timeout)
	}
	if cfg.Retry.MaxAttempts != 3 {
		t.Errorf("Retry.MaxAttempts = %d, want 3", cfg.Retry.MaxAttempts)
	}
}

func TestGetJSON_DecodesResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id": "10001", "key": "PRODUCT-1"}`))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, &staticProvider{})

	var out struct {
		ID  string `json:"id"`
		Key string `json:"key"`
	}
	if err := c.GetJSON(context.Background(), "/rest/api/2/issue/10001", nil, &out); err != nil {
		t.Fatalf("GetJSON failed: %v", err)
	}

	if out.ID != "10001" || out.Key != "PRODUCT-1" {
		t.Errorf("Decoded = %+v, want id=10001 key=PRODUCT-1", out)
	}
}

func TestGetJSON_SetsBasicAuthFromProvider(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	provider := &staticProvider{
		creds: credentials.NewCredentials("svc-user", "hunter2", "Test"),
	}
	c := newTestClient(t, server.URL, provider)

	if err := c.GetJSON(context.Background(), "/rest/api/2/myself", nil, nil); err != nil {
		t.Fatalf("GetJSON failed: %v", err)
	}

	want := "Basic " + base64.StdEncoding.EncodeToString([]byte("svc-user:hunter2"))
	if gotAuth != want {
		t.Errorf("Authorization = %q, want %q", gotAuth, want)
	}
}

func TestGetJSON_CredentialsResolvedOnce(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	provider := &staticProvider{
		creds: credentials.NewCredentials("svc-user", "hunter2", "Test"),
	}
	c := newTestClient(t, server.URL, provider)

	for i := 0; i < 3; i++ {
		if err := c.GetJSON(context.Background(), "/rest/api/2/myself", nil, nil); err != nil {
			t.Fatalf("GetJSON failed: %v", err)
		}
	}

	if n := atomic.LoadInt32(&provider.calls); n != 1 {
		t.Errorf("Provider.Load calls = %d, want 1 (lazy, resolved once)", n)
	}
}

func TestGetJSON_ProceedsWithoutCredentials(t *testing.T) {
	// A failed resolution must not fail the request; the server decides.
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, &staticProvider{err: errors.New("no creds")})

	if err := c.GetJSON(context.Background(), "/rest/api/2/myself", nil, nil); err != nil {
		t.Fatalf("GetJSON failed: %v", err)
	}
	if gotAuth != "" {
		t.Errorf("Authorization = %q, want unauthenticated request", gotAuth)
	}
}

func TestGetJSON_JiraErrorFromBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"errorMessages": ["An issue with key 'X-1' does not exist for field 'issueKey'."], "errors": {}}`))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, &staticProvider{})

	err := c.GetJSON(context.Background(), "/rest/api/2/search", nil, nil)
	if err == nil {
		t.Fatal("Expected error for 400 response")
	}

	var jiraErr *JiraError
	if !errors.As(err, &jiraErr) {
		t.Fatalf("Error = %T, want *JiraError", err)
	}
	if jiraErr.StatusCode != http.StatusBadRequest {
		t.Errorf("StatusCode = %d, want 400", jiraErr.StatusCode)
	}
	if KindOf(err) != KindIssueNotFound {
		t.Errorf("KindOf = %v, want %v", KindOf(err), KindIssueNotFound)
	}
}

func TestGetJSON_ClientErrorNotRetried(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"errorMessages": ["The JQL query is invalid"]}`))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, &staticProvider{})

	if err := c.GetJSON(context.Background(), "/rest/api/2/search", nil, nil); err == nil {
		t.Fatal("Expected error")
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Errorf("Server calls = %d, want 1 (4xx must not be retried)", n)
	}
}

func TestGetJSON_ServerErrorRetried(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"total": 0, "issues": []}`))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, &staticProvider{})

	var out map[string]any
	if err := c.GetJSON(context.Background(), "/rest/api/2/search", nil, &out); err != nil {
		t.Fatalf("GetJSON failed after retries: %v", err)
	}
	if n := atomic.LoadInt32(&calls); n != 3 {
		t.Errorf("Server calls = %d, want 3", n)
	}
}

func TestGetJSON_QueryParamsForwarded(t *testing.T) {
	var gotQuery url.Values
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, &staticProvider{})

	query := url.Values{}
	query.Set("jql", `project = TEST`)
	query.Set("expand", "changelog")
	if err := c.GetJSON(context.Background(), "/rest/api/2/search", query, nil); err != nil {
		t.Fatalf("GetJSON failed: %v", err)
	}

	if gotQuery.Get("jql") != `project = TEST` {
		t.Errorf("jql = %q, want forwarded verbatim", gotQuery.Get("jql"))
	}
	if gotQuery.Get("expand") != "changelog" {
		t.Errorf("expand = %q, want changelog", gotQuery.Get("expand"))
	}
}

func TestReadErrorMessage(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		expected string
	}{
		{
			name:     "error messages",
			body:     `{"errorMessages": ["first", "second"], "errors": {}}`,
			expected: "first; second",
		},
		{
			name:     "field errors",
			body:     `{"errorMessages": [], "errors": {"components": "Component name 'X' is not valid"}}`,
			expected: "Component name 'X' is not valid",
		},
		{
			name:     "non-json body",
			body:     "  Bad Gateway  ",
			expected: "Bad Gateway",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := readErrorMessage(strings.NewReader(tt.body))
			if got != tt.expected {
				t.Errorf("readErrorMessage = %q, want %q", got, tt.expected)
			}
		})
	}
}
