package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

const (
	maxResponseBodySize = 1 << 20 // 1MB

	// DefaultTimeout is the per-request timeout when none is configured.
	DefaultTimeout = 30 * time.Second
)

// connection pooling limits; the tracker keeps one connection busy per
// polled evidence item
const (
	defaultMaxIdleConns        = 100
	defaultMaxIdleConnsPerHost = 10
	defaultMaxConnsPerHost     = 10
	defaultIdleConnTimeout     = 60 * time.Second
)

// Client talks to the inspection portal REST API.
//
// Client uses per-request timeouts via context rather than a global timeout.
// Response bodies are limited to 1MB. A Client is safe for concurrent use;
// the bearer token may be replaced at any time with [Client.SetToken].
type Client struct {
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client

	mu    sync.RWMutex
	token string
}

// ClientOption configures a [Client] during construction.
type ClientOption func(*Client) error

// WithToken sets the bearer token sent in the Authorization header.
func WithToken(token string) ClientOption {
	return func(c *Client) error {
		c.token = token
		return nil
	}
}

// WithTimeout sets the per-request timeout. Defaults to 30 seconds.
//
// Returns an error if the duration is zero or negative.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) error {
		if d <= 0 {
			return errors.New("request timeout must be positive")
		}
		c.timeout = d
		return nil
	}
}

// WithHTTPClient replaces the pooled default HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) error {
		if hc == nil {
			return errors.New("http client cannot be nil")
		}
		c.httpClient = hc
		return nil
	}
}

// NewClient creates a [Client] for the API rooted at baseURL
// (for example "http://localhost:3001/api").
//
// The default HTTP client is configured with connection pooling limits:
//   - MaxIdleConns: 100 total idle connections
//   - MaxIdleConnsPerHost: 10 idle connections per host
//   - MaxConnsPerHost: 10 concurrent connections per host
//   - IdleConnTimeout: 60 seconds before closing idle connections
func NewClient(baseURL string, opts ...ClientOption) (*Client, error) {
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("base URL must use http or https, got %q", baseURL)
	}

	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: DefaultTimeout,
		httpClient: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        defaultMaxIdleConns,
				MaxIdleConnsPerHost: defaultMaxIdleConnsPerHost,
				MaxConnsPerHost:     defaultMaxConnsPerHost,
				IdleConnTimeout:     defaultIdleConnTimeout,
			},
		},
	}

	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// BaseURL returns the API root the client was created with.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// SetToken replaces the bearer token used on subsequent requests.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// AnalyzeEvidence asks the server to start (or restart) the analysis job of
// an evidence item.
func (c *Client) AnalyzeEvidence(ctx context.Context, evidenceID string) (AnalyzeResponse, error) {
	var resp AnalyzeResponse
	err := c.do(ctx, http.MethodPost, "/evidences/"+url.PathEscape(evidenceID)+"/analyze", nil, &resp)
	return resp, err
}

// GetEvidence fetches an evidence item with its current status and issues.
//
// Payloads with an unknown status or an out-of-range issue are rejected with
// a DECODE_ERROR.
func (c *Client) GetEvidence(ctx context.Context, evidenceID string) (EvidenceDetail, error) {
	var detail EvidenceDetail
	if err := c.do(ctx, http.MethodGet, "/evidences/"+url.PathEscape(evidenceID), nil, &detail); err != nil {
		return EvidenceDetail{}, err
	}
	if err := detail.Validate(); err != nil {
		return EvidenceDetail{}, &Error{Code: CodeDecode, Message: err.Error(), Err: err}
	}
	return detail, nil
}

// ListProjectEvidences fetches the evidence items of a project without their
// issues. An unknown project yields an empty list.
func (c *Client) ListProjectEvidences(ctx context.Context, projectID string) ([]Evidence, error) {
	var evidences []Evidence
	if err := c.do(ctx, http.MethodGet, "/projects/"+url.PathEscape(projectID)+"/evidences", nil, &evidences); err != nil {
		return nil, err
	}
	for _, e := range evidences {
		if !e.Status.Valid() {
			err := fmt.Errorf("evidence %q: unknown analysis status %q", e.ID, e.Status)
			return nil, &Error{Code: CodeDecode, Message: err.Error(), Err: err}
		}
	}
	if evidences == nil {
		evidences = []Evidence{}
	}
	return evidences, nil
}

// Login exchanges credentials for a bearer token and stores it on the client.
func (c *Client) Login(ctx context.Context, email, password string) (LoginResponse, error) {
	var resp LoginResponse
	err := c.do(ctx, http.MethodPost, "/auth/login", LoginRequest{Email: email, Password: password}, &resp)
	if err != nil {
		return LoginResponse{}, err
	}
	c.SetToken(resp.AccessToken)
	return resp, nil
}

// Close closes all idle connections in the client's connection pool.
// Safe to call multiple times; the client remains usable afterwards.
func (c *Client) Close() {
	if c == nil || c.httpClient == nil {
		return
	}
	c.httpClient.CloseIdleConnections()
}

// do performs a JSON request and decodes a 2xx body into out.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	c.mu.RLock()
	token := c.token
	c.mu.RUnlock()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &Error{Code: CodeNetwork, Message: err.Error(), Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
	if err != nil {
		return &Error{Code: CodeNetwork, Message: "failed to read response body", StatusCode: resp.StatusCode, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp, data)
	}

	if resp.StatusCode == http.StatusNoContent || out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &Error{Code: CodeDecode, Message: "invalid JSON response", StatusCode: resp.StatusCode, Err: err}
	}
	return nil
}

// decodeError builds an *Error from a non-2xx response, falling back to
// HTTP_ERROR when the body is not the portal's error envelope.
func decodeError(resp *http.Response, data []byte) error {
	var envelope ErrorResponse
	if err := json.Unmarshal(data, &envelope); err != nil || envelope.Error.Code == "" {
		return &Error{
			Code:       CodeHTTP,
			Message:    fmt.Sprintf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode)),
			StatusCode: resp.StatusCode,
		}
	}
	return &Error{
		Code:       envelope.Error.Code,
		Message:    envelope.Error.Message,
		Details:    envelope.Error.Details,
		StatusCode: resp.StatusCode,
	}
}
