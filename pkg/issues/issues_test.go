package issues

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/vacuumn/jira-client/internal/testutil"
	"github.com/vacuumn/jira-client/pkg/align"
	"github.com/vacuumn/jira-client/pkg/client"
	"github.com/vacuumn/jira-client/pkg/credentials"
	"github.com/vacuumn/jira-client/pkg/environment"
)

// staticProvider serves fixed credentials for tests.
type staticProvider struct{}

func (staticProvider) Load() (*credentials.Credentials, error) {
	return credentials.NewCredentials("test", "test", "Test"), nil
}

// newTestAPI builds an issues API against a mock Jira server.
func newTestAPI(t *testing.T, mock *testutil.MockJira, aligner *align.Aligner) *API {
	t.Helper()

	cfg := client.DefaultConfig(environment.Dev)
	cfg.BaseURL = mock.URL()
	cfg.LocalExecution = true
	cfg.Credentials = staticProvider{}

	c, err := client.New(cfg)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	t.Cleanup(func() { c.Close() })

	return NewAPI(c, aligner)
}

// mockIssues builds sequential mock issues id 10000+i with keys TEST-i.
func mockIssues(start, count int) []testutil.MockIssue {
	out := make([]testutil.MockIssue, count)
	for i := 0; i < count; i++ {
		n := start + i
		out[i] = testutil.MockIssue{
			ID:   fmt.Sprintf("%d", 10000+n),
			Key:  fmt.Sprintf("TEST-%d", n),
			Self: fmt.Sprintf("https://jira-dev.example.com/rest/api/2/issue/%d", 10000+n),
			Fields: map[string]any{
				"summary": fmt.Sprintf("Issue %d", n),
			},
		}
	}
	return out
}

func TestFetchAll_TwoPages(t *testing.T) {
	mock := testutil.NewMockJira()
	defer mock.Close()

	// Page size 10, total 11: offsets 0 and 10, then stop.
	mock.ScriptSearch(
		testutil.SearchPage{Issues: mockIssues(0, 10), Total: 11},
		testutil.SearchPage{Issues: mockIssues(10, 1), Total: 11},
	)

	api := newTestAPI(t, mock, nil)

	count := 0
	for issue, err := range api.FetchAll(context.Background(), "project = TEST", FetchOptions{PageSize: 10}) {
		if err != nil {
			t.Fatalf("FetchAll failed: %v", err)
		}
		if issue.Fields.Summary == "" {
			t.Errorf("Issue %s missing summary", issue.Key)
		}
		count++
	}

	if count != 11 {
		t.Errorf("Yielded %d issues, want 11", count)
	}
	if mock.GetSearchCalls() != 2 {
		t.Errorf("Search calls = %d, want 2", mock.GetSearchCalls())
	}
}

func TestFetchAll_LimitStopsSearchCalls(t *testing.T) {
	mock := testutil.NewMockJira()
	defer mock.Close()

	mock.ScriptSearch(
		testutil.SearchPage{Issues: mockIssues(0, 10), Total: 50},
	)

	api := newTestAPI(t, mock, nil)

	count := 0
	for _, err := range api.FetchAll(context.Background(), "project = TEST", FetchOptions{PageSize: 10, Limit: 5}) {
		if err != nil {
			t.Fatalf("FetchAll failed: %v", err)
		}
		count++
	}

	if count != 5 {
		t.Errorf("Yielded %d issues, want 5", count)
	}
	if mock.GetSearchCalls() != 1 {
		t.Errorf("Search calls = %d, want 1", mock.GetSearchCalls())
	}
}

func TestFetchAll_AlignsSelfURLs(t *testing.T) {
	mock := testutil.NewMockJira()
	defer mock.Close()

	mock.ScriptSearch(
		testutil.SearchPage{Issues: mockIssues(0, 2), Total: 2},
	)

	api := newTestAPI(t, mock, align.NewAligner(nil))

	for issue, err := range api.FetchAll(context.Background(), "project = TEST", FetchOptions{}) {
		if err != nil {
			t.Fatalf("FetchAll failed: %v", err)
		}
		want := fmt.Sprintf("https://%s/rest/api/2/issue/%s", environment.Dev.Host(), issue.ID)
		if issue.Self != want {
			t.Errorf("Self = %q, want %q", issue.Self, want)
		}
	}
}

func TestGetIssueByKey_Found(t *testing.T) {
	mock := testutil.NewMockJira()
	defer mock.Close()

	mock.ScriptSearch(
		testutil.SearchPage{Issues: mockIssues(1, 1), Total: 1},
	)

	api := newTestAPI(t, mock, nil)

	issue, err := api.GetIssueByKey(context.Background(), "TEST-1")
	if err != nil {
		t.Fatalf("GetIssueByKey failed: %v", err)
	}
	if issue == nil {
		t.Fatal("Expected issue, got nil")
	}
	if issue.Key != "TEST-1" {
		t.Errorf("Key = %q, want TEST-1", issue.Key)
	}
}

func TestGetIssueByKey_NotFoundWordingIsAbsence(t *testing.T) {
	mock := testutil.NewMockJira()
	defer mock.Close()

	// Jira answers a key-scoped search for a missing key with a 400.
	mock.SetHandler("/rest/api/2/search", func(w http.ResponseWriter, r *http.Request) {
		testutil.WriteError(w, http.StatusBadRequest, testutil.IssueKeyNotFoundMessage("TEST-999"))
	})

	api := newTestAPI(t, mock, nil)

	issue, err := api.GetIssueByKey(context.Background(), "TEST-999")
	if err != nil {
		t.Fatalf("Expected absence, got error: %v", err)
	}
	if issue != nil {
		t.Errorf("Expected nil issue, got %v", issue)
	}
}

func TestGetIssueByKey_EmptyResultIsAbsence(t *testing.T) {
	mock := testutil.NewMockJira()
	defer mock.Close()

	mock.ScriptSearch(
		testutil.SearchPage{Total: 0},
	)

	api := newTestAPI(t, mock, nil)

	issue, err := api.GetIssueByKey(context.Background(), "TEST-404")
	if err != nil {
		t.Fatalf("GetIssueByKey failed: %v", err)
	}
	if issue != nil {
		t.Errorf("Expected nil issue, got %v", issue)
	}
}

func TestGetIssueByKey_OtherErrorsPropagate(t *testing.T) {
	mock := testutil.NewMockJira()
	defer mock.Close()

	mock.SetHandler("/rest/api/2/search", func(w http.ResponseWriter, r *http.Request) {
		testutil.WriteError(w, http.StatusBadRequest, "The JQL query is invalid")
	})

	api := newTestAPI(t, mock, nil)

	_, err := api.GetIssueByKey(context.Background(), "TEST-1")
	if err == nil {
		t.Fatal("Expected error to propagate")
	}

	var jiraErr *client.JiraError
	if !errors.As(err, &jiraErr) {
		t.Errorf("Error = %T, want *client.JiraError", err)
	}
}

func TestGetIssueByID_Found(t *testing.T) {
	mock := testutil.NewMockJira()
	defer mock.Close()

	mock.AddIssue(testutil.MockIssue{
		ID:   "10001",
		Key:  "TEST-1",
		Self: "https://jira-dev.example.com/rest/api/2/issue/10001",
		Fields: map[string]any{
			"summary": "First issue",
			"labels":  []string{"infra"},
		},
	})

	api := newTestAPI(t, mock, align.NewAligner(nil))

	issue, err := api.GetIssueByID(context.Background(), "10001")
	if err != nil {
		t.Fatalf("GetIssueByID failed: %v", err)
	}
	if issue == nil {
		t.Fatal("Expected issue, got nil")
	}
	if issue.Fields.Summary != "First issue" {
		t.Errorf("Summary = %q, want 'First issue'", issue.Fields.Summary)
	}
	if issue.Self != "https://"+environment.Dev.Host()+"/rest/api/2/issue/10001" {
		t.Errorf("Self = %q, want aligned URL", issue.Self)
	}
}

func TestGetIssueByID_NotFoundWordingIsAbsence(t *testing.T) {
	mock := testutil.NewMockJira()
	defer mock.Close()

	api := newTestAPI(t, mock, nil)

	issue, err := api.GetIssueByID(context.Background(), "99999")
	if err != nil {
		t.Fatalf("Expected absence, got error: %v", err)
	}
	if issue != nil {
		t.Errorf("Expected nil issue, got %v", issue)
	}
}

func TestGetIssuesByLabel_BuildsLabelQuery(t *testing.T) {
	mock := testutil.NewMockJira()
	defer mock.Close()

	mock.ScriptSearch(
		testutil.SearchPage{Issues: mockIssues(0, 3), Total: 3},
	)

	api := newTestAPI(t, mock, nil)

	count := 0
	for _, err := range api.GetIssuesByLabel(context.Background(), "tech-debt") {
		if err != nil {
			t.Fatalf("GetIssuesByLabel failed: %v", err)
		}
		count++
	}

	if count != 3 {
		t.Errorf("Yielded %d issues, want 3", count)
	}
}
