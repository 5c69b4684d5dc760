// Package testutil provides testing utilities for the Jira client.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
)

// MockIssue is the wire shape of an issue served by the mock server.
type MockIssue struct {
	ID     string         `json:"id"`
	Key    string         `json:"key"`
	Self   string         `json:"self"`
	Fields map[string]any `json:"fields"`
}

// MockUser is the wire shape of a user served by the mock server.
type MockUser struct {
	Key          string `json:"key"`
	Name         string `json:"name"`
	EmailAddress string `json:"emailAddress"`
	DisplayName  string `json:"displayName"`
	Self         string `json:"self"`
	Active       bool   `json:"active"`
}

// SearchPage is one scripted page of search results. Total is the total
// the server reports alongside this page, which lets tests simulate a
// result set mutating between calls.
type SearchPage struct {
	Issues []MockIssue
	Total  int
}

// MockJira is a configurable mock Jira REST server for testing.
type MockJira struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]func(w http.ResponseWriter, r *http.Request)

	// Search script: pages served in call order. When the script runs
	// out, the last page's total is reported with no issues.
	searchScript []SearchPage
	searchCalls  int

	issues map[string]MockIssue // by id
	users  map[string]MockUser  // by key

	// Tracking
	RequestCount  int
	SearchOffsets []int
	LastAuth      string
}

// NewMockJira creates a new mock Jira server.
func NewMockJira() *MockJira {
	mock := &MockJira{
		handlers: make(map[string]func(w http.ResponseWriter, r *http.Request)),
		issues:   make(map[string]MockIssue),
		users:    make(map[string]MockUser),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.RequestCount++
		mock.LastAuth = r.Header.Get("Authorization")
		mock.mu.Unlock()

		mock.mu.RLock()
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.RUnlock()

		if exists {
			handler(w, r)
			return
		}

		mock.defaultHandler(w, r)
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockJira) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockJira) Close() {
	m.server.Close()
}

// Reset clears the script, fixtures, and tracking counters.
func (m *MockJira) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.searchScript = nil
	m.searchCalls = 0
	m.issues = make(map[string]MockIssue)
	m.users = make(map[string]MockUser)
	m.RequestCount = 0
	m.SearchOffsets = nil
	m.LastAuth = ""
}

// SetHandler sets a custom handler for a specific path.
func (m *MockJira) SetHandler(path string, handler func(w http.ResponseWriter, r *http.Request)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// ScriptSearch sets the pages served by successive search calls.
func (m *MockJira) ScriptSearch(pages ...SearchPage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.searchScript = pages
	m.searchCalls = 0
}

// AddIssue registers an issue fixture for direct fetch-by-id.
func (m *MockJira) AddIssue(issue MockIssue) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.issues[issue.ID] = issue
}

// AddUser registers a user fixture for key and email lookups.
func (m *MockJira) AddUser(user MockUser) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[user.Key] = user
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockJira) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// GetSearchCalls returns the number of search requests served.
func (m *MockJira) GetSearchCalls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.searchCalls
}

// defaultHandler serves the Jira REST endpoints from the configured script
// and fixtures.
func (m *MockJira) defaultHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")

	switch {
	case r.URL.Path == "/rest/api/2/search":
		m.handleSearch(w, r)
	case len(r.URL.Path) > len("/rest/api/2/issue/") &&
		r.URL.Path[:len("/rest/api/2/issue/")] == "/rest/api/2/issue/":
		m.handleIssue(w, r)
	case r.URL.Path == "/rest/api/2/user":
		m.handleUser(w, r)
	case r.URL.Path == "/rest/api/2/user/search":
		m.handleUserSearch(w, r)
	default:
		WriteError(w, http.StatusNotFound, "null for uri")
	}
}

func (m *MockJira) handleSearch(w http.ResponseWriter, r *http.Request) {
	startAt, _ := strconv.Atoi(r.URL.Query().Get("startAt"))
	maxResults, _ := strconv.Atoi(r.URL.Query().Get("maxResults"))

	m.mu.Lock()
	call := m.searchCalls
	m.searchCalls++
	m.SearchOffsets = append(m.SearchOffsets, startAt)
	script := m.searchScript
	m.mu.Unlock()

	var page SearchPage
	switch {
	case call < len(script):
		page = script[call]
	case len(script) > 0:
		page = SearchPage{Total: script[len(script)-1].Total}
	}

	issues := page.Issues
	if issues == nil {
		issues = []MockIssue{}
	}

	body := map[string]any{
		"startAt":    startAt,
		"maxResults": maxResults,
		"total":      page.Total,
		"issues":     issues,
	}
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(body)
}

func (m *MockJira) handleIssue(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Path[len("/rest/api/2/issue/"):]

	m.mu.RLock()
	issue, ok := m.issues[id]
	m.mu.RUnlock()

	if !ok {
		WriteError(w, http.StatusNotFound, "Issue Does Not Exist")
		return
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(issue)
}

func (m *MockJira) handleUser(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")

	m.mu.RLock()
	user, ok := m.users[key]
	m.mu.RUnlock()

	if !ok {
		WriteError(w, http.StatusNotFound, fmt.Sprintf("User '%s' does not exist", key))
		return
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(user)
}

func (m *MockJira) handleUserSearch(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("username")

	m.mu.RLock()
	matches := []MockUser{}
	for _, user := range m.users {
		if user.EmailAddress == email {
			matches = append(matches, user)
		}
	}
	m.mu.RUnlock()

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(matches)
}

// WriteError writes a Jira-shaped error response body.
func WriteError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	body := map[string]any{
		"errorMessages": []string{message},
		"errors":        map[string]string{},
	}
	json.NewEncoder(w).Encode(body)
}

// IssueKeyNotFoundMessage is the wording Jira uses when a key-scoped
// search references a nonexistent issue.
func IssueKeyNotFoundMessage(key string) string {
	return fmt.Sprintf("An issue with key '%s' does not exist for field 'issueKey'.", key)
}
