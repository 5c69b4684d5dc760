// Package client provides the core Jira REST client with credential
// resolution, retry, and error classification.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/vacuumn/jira-client/pkg/credentials"
	"github.com/vacuumn/jira-client/pkg/environment"
)

// SynapseProxy is the default egress proxy for non-local execution.
const SynapseProxy = "http://httpproxy.synapse:9999"

// Prometheus metrics for Jira client operations.
var (
	jiraRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jira_requests_total",
		Help: "Total Jira requests by endpoint and status",
	}, []string{"endpoint", "status"})

	jiraRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "jira_request_duration_seconds",
		Help:    "Jira request duration in seconds by endpoint",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	}, []string{"endpoint"})

	jiraErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jira_errors_total",
		Help: "Total Jira errors by class",
	}, []string{"class"})
)

// CredentialsProvider resolves credentials for the client. A nil result
// with a nil error means no credentials are available; the client then
// proceeds unauthenticated and lets the server reject the request.
type CredentialsProvider interface {
	Load() (*credentials.Credentials, error)
}

// Client is the Jira REST client. Credentials are resolved lazily on the
// first request and reused for the lifetime of the client.
type Client struct {
	httpClient *http.Client
	config     Config
	logger     zerolog.Logger

	credsOnce sync.Once
	username  string
	password  string
}

// Config holds the client configuration.
type Config struct {
	// Environment selects the Jira deployment to target.
	Environment environment.Environment

	// BaseURL overrides the environment's gateway URL (for testing
	// against a local server). Empty means the environment URL.
	BaseURL string

	// Credentials resolves the auth identity. Defaults to the layered
	// provider for the configured environment.
	Credentials CredentialsProvider

	// LocalExecution disables the egress proxy (for running outside the
	// scheduler hosts).
	LocalExecution bool

	// ProxyURL overrides the egress proxy. Empty means SynapseProxy.
	ProxyURL string

	// Timeout for a single HTTP request.
	Timeout time.Duration

	// Retry configures transport-level retry (server and network errors
	// only; Jira 4xx responses are never retried).
	Retry RetryConfig
}

// DefaultConfig returns a safe default configuration for the environment.
func DefaultConfig(env environment.Environment) Config {
	return Config{
		Environment: env,
		Credentials: credentials.NewProvider(env),
		Timeout:     30 * time.Second,
		Retry:       DefaultRetryConfig(),
	}
}

// New creates a new Jira client.
func New(cfg Config) (*Client, error) {
	if cfg.Environment == "" {
		return nil, fmt.Errorf("environment is required")
	}

	if cfg.Credentials == nil {
		cfg.Credentials = credentials.NewProvider(cfg.Environment)
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = DefaultRetryConfig()
	}

	transport := http.DefaultTransport
	if !cfg.LocalExecution {
		proxy := cfg.ProxyURL
		if proxy == "" {
			proxy = SynapseProxy
		}
		proxyURL, err := url.Parse(proxy)
		if err != nil {
			return nil, fmt.Errorf("parse proxy url: %w", err)
		}
		transport = &http.Transport{Proxy: http.ProxyURL(proxyURL)}
	}

	logger := log.With().Str("component", "jira-client").Logger()

	return &Client{
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
		},
		config: cfg,
		logger: logger,
	}, nil
}

// Environment returns the environment the client targets.
func (c *Client) Environment() environment.Environment {
	return c.config.Environment
}

// auth resolves credentials once and returns the identity pair. A failed
// resolution yields empty credentials; the server's authentication
// rejection then surfaces as a normal request error.
func (c *Client) auth() (string, string) {
	c.credsOnce.Do(func() {
		creds, err := c.config.Credentials.Load()
		if err != nil || creds == nil {
			c.logger.Error().
				Err(err).
				Str("environment", c.config.Environment.BaseURL()).
				Bool("local", c.config.LocalExecution).
				Msg("Failed to load Jira credentials")
			return
		}

		c.logger.Debug().
			Str("alias", creds.Alias()).
			Msg("Jira credentials loaded")
		c.username, c.password = creds.Auth()
	})

	return c.username, c.password
}

// GetJSON performs a GET request against a REST endpoint and decodes the
// JSON response into out. Server and network failures are retried with
// backoff; Jira error responses are returned as *JiraError.
func (c *Client) GetJSON(ctx context.Context, endpoint string, query url.Values, out any) error {
	startTime := time.Now()
	defer func() {
		jiraRequestDuration.WithLabelValues(endpoint).Observe(time.Since(startTime).Seconds())
	}()

	return retryWithBackoff(ctx, c.config.Retry, func() (ErrorClass, error) {
		return c.doGet(ctx, endpoint, query, out)
	})
}

// doGet executes a single GET attempt.
func (c *Client) doGet(ctx context.Context, endpoint string, query url.Values, out any) (ErrorClass, error) {
	base := c.config.BaseURL
	if base == "" {
		base = c.config.Environment.BaseURL()
	}
	requestURL := base + endpoint
	if len(query) > 0 {
		requestURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return ErrorClassClient, fmt.Errorf("create request: %w", err)
	}

	if username, password := c.auth(); username != "" {
		req.SetBasicAuth(username, password)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error().Err(err).Str("endpoint", endpoint).Msg("HTTP request failed")
		jiraErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		jiraRequestsTotal.WithLabelValues(endpoint, "network_error").Inc()
		return ErrorClassNetwork, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		errClass := classifyStatus(resp.StatusCode)
		jiraErrorsTotal.WithLabelValues(string(errClass)).Inc()
		jiraRequestsTotal.WithLabelValues(endpoint, fmt.Sprintf("%d", resp.StatusCode)).Inc()

		jiraErr := &JiraError{
			StatusCode: resp.StatusCode,
			Message:    readErrorMessage(resp.Body),
		}

		c.logger.Warn().
			Str("endpoint", endpoint).
			Int("status_code", resp.StatusCode).
			Str("error_class", string(errClass)).
			Msg("Jira request error")

		return errClass, jiraErr
	}

	jiraRequestsTotal.WithLabelValues(endpoint, fmt.Sprintf("%d", resp.StatusCode)).Inc()

	if out == nil {
		return "", nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return ErrorClassClient, fmt.Errorf("decode response: %w", err)
	}

	return "", nil
}

// classifyStatus categorizes an HTTP status for observability and retry.
func classifyStatus(status int) ErrorClass {
	if status >= 500 {
		return ErrorClassServer
	}
	return ErrorClassClient
}

// errorBody is the shape of a Jira REST error response.
type errorBody struct {
	ErrorMessages []string          `json:"errorMessages"`
	Errors        map[string]string `json:"errors"`
}

// readErrorMessage extracts a human-readable message from a Jira error
// response body. Falls back to the raw body when it is not the usual JSON
// error shape.
func readErrorMessage(body io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(body, 64*1024))
	if err != nil {
		return ""
	}

	var parsed errorBody
	if err := json.Unmarshal(raw, &parsed); err == nil {
		messages := parsed.ErrorMessages
		for _, msg := range parsed.Errors {
			messages = append(messages, msg)
		}
		if len(messages) > 0 {
			return strings.Join(messages, "; ")
		}
	}

	return strings.TrimSpace(string(raw))
}

// Close closes the client and releases resources.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}
