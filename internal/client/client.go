// Package client provides the Go API client for the deduction room
// service. It is the fetch layer underneath the polling sync engine.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/soupnight/souproom/internal/domain"
)

// SessionInfo is the session payload returned by the service.
type SessionInfo struct {
	SessionID string             `json:"sessionId"`
	Soup      domain.SoupSummary `json:"soup"`
	History   []domain.Turn      `json:"history"`
}

// AskResult is the response to an ask call.
type AskResult struct {
	Answer  string        `json:"answer"`
	History []domain.Turn `json:"history"`
}

// APIError is a non-2xx response decoded from the service's error body.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api: %s (HTTP %d): %s", e.Code, e.Status, e.Message)
	}
	if e.Code != "" {
		return fmt.Sprintf("api: %s (HTTP %d)", e.Code, e.Status)
	}
	return fmt.Sprintf("api: HTTP %d", e.Status)
}

// IsRateLimited reports whether err carries a rate-limit signal: a 429
// status, the RATE_LIMITED code, or a provider message mentioning rate.
func IsRateLimited(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if apiErr.Status == http.StatusTooManyRequests || apiErr.Code == "RATE_LIMITED" {
			return true
		}
		return strings.Contains(strings.ToLower(apiErr.Message), "rate")
	}
	return false
}

// IsNotFound reports whether err is a 404 from the service.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

// inflightCall is a GET shared by concurrent callers. Coalescing is
// evicted when the call settles.
type inflightCall struct {
	done chan struct{}
	body []byte
	err  error
}

// etagEntry caches the last body seen for a path so a 304 response can
// be served without a payload.
type etagEntry struct {
	etag string
	body []byte
}

// Client talks to the deduction room HTTP API. The request-coalescing
// and ETag caches are owned by the client instance, never global.
type Client struct {
	baseURL    string
	httpClient *http.Client

	mu       sync.Mutex
	inflight map[string]*inflightCall
	etags    map[string]etagEntry
}

// New creates a client for the service rooted at baseURL (for example
// "http://localhost:8080/api").
func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		inflight:   make(map[string]*inflightCall),
		etags:      make(map[string]etagEntry),
	}
}

// CreateSession creates a room. An empty soupID asks the server to
// pick a random riddle.
func (c *Client) CreateSession(ctx context.Context, soupID string) (*SessionInfo, error) {
	payload := map[string]string{}
	if soupID != "" {
		payload["soupId"] = soupID
	}
	var info SessionInfo
	if err := c.post(ctx, "/sessions", payload, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// GetSession fetches the current session record.
func (c *Client) GetSession(ctx context.Context, sessionID string) (*SessionInfo, error) {
	body, err := c.get(ctx, "/sessions/"+sessionID)
	if err != nil {
		return nil, err
	}
	var info SessionInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &info, nil
}

// Ask submits a question to the room's host.
func (c *Client) Ask(ctx context.Context, sessionID, question string) (*AskResult, error) {
	var result AskResult
	err := c.post(ctx, "/sessions/"+sessionID+"/ask", map[string]string{"question": question}, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// Soups lists the riddle catalog.
func (c *Client) Soups(ctx context.Context) ([]domain.SoupSummary, error) {
	body, err := c.get(ctx, "/turtle-soups")
	if err != nil {
		return nil, err
	}
	var list []domain.SoupSummary
	if err := json.Unmarshal(body, &list); err != nil {
		return nil, fmt.Errorf("decode soups: %w", err)
	}
	return list, nil
}

// get performs a GET with in-flight coalescing and conditional
// requests. Concurrent callers of the same path share one round trip;
// a 304 response is answered from the ETag cache.
func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	c.mu.Lock()
	if call, ok := c.inflight[path]; ok {
		c.mu.Unlock()
		select {
		case <-call.done:
			return call.body, call.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	call := &inflightCall{done: make(chan struct{})}
	c.inflight[path] = call
	cached := c.etags[path]
	c.mu.Unlock()

	body, etag, err := c.doGet(ctx, path, cached)

	c.mu.Lock()
	delete(c.inflight, path)
	if err == nil && etag != "" {
		c.etags[path] = etagEntry{etag: etag, body: body}
	}
	c.mu.Unlock()

	call.body, call.err = body, err
	close(call.done)
	return body, err
}

func (c *Client) doGet(ctx context.Context, path string, cached etagEntry) (body []byte, etag string, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if cached.etag != "" {
		req.Header.Set("If-None-Match", cached.etag)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("request %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified {
		return cached.body, cached.etag, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, "", decodeAPIError(resp)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("read response: %w", err)
	}
	return data, resp.Header.Get("ETag"), nil
}

func (c *Client) post(ctx context.Context, path string, payload, out interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err == nil {
		apiErr.Code = body.Error
		apiErr.Message = body.Message
	}
	return apiErr
}
