// pattern: Imperative Shell
package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client is a thin HTTP client for the CrewHub backend's REST surface.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a Client targeting the given base URL. The API key may
// be empty when the backend runs without auth.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// NewClientWithTimeout creates a Client with a custom timeout.
func NewClientWithTimeout(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Health checks backend liveness. Returns raw JSON from GET /api/health.
func (c *Client) Health() ([]byte, error) {
	return c.get("/api/health")
}

// Sessions fetches the active agent sessions from GET /api/sessions.
func (c *Client) Sessions() ([]byte, error) {
	return c.get("/api/sessions")
}

// Rooms fetches the room list from GET /api/rooms.
func (c *Client) Rooms() ([]byte, error) {
	return c.get("/api/rooms")
}

// Tasks fetches the task board from GET /api/tasks.
func (c *Client) Tasks() ([]byte, error) {
	return c.get("/api/tasks")
}

// Notify posts a desktop notification request to the backend, which fans it
// out to connected clients.
func (c *Client) Notify(title, message string) ([]byte, error) {
	return c.postJSON("/api/notify", map[string]string{
		"title":   title,
		"message": message,
	})
}

// GatewayStatus fetches the OpenClaw gateway connection status as the
// backend sees it.
func (c *Client) GatewayStatus() ([]byte, error) {
	return c.get("/api/gateway/status")
}

// get performs a GET request and returns the response body.
func (c *Client) get(path string) ([]byte, error) {
	req, err := http.NewRequest("GET", c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	return c.do(req)
}

// postJSON performs a POST request with a JSON body and returns the
// response body.
func (c *Client) postJSON(path string, body any) ([]byte, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequest("POST", c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

// do executes the request with auth attached and normalizes error responses.
func (c *Client) do(req *http.Request) ([]byte, error) {
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to crewhub: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := extractErrorMessage(body)
		return nil, fmt.Errorf("crewhub returned status %d: %s", resp.StatusCode, msg)
	}

	return body, nil
}

// extractErrorMessage attempts to extract the error message from a JSON
// response body. The backend reports errors as {"detail": "..."}. If the
// body is not valid JSON or has no detail field, returns the raw body string.
func extractErrorMessage(body []byte) string {
	var errResp struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Detail != "" {
		return errResp.Detail
	}
	return string(body)
}
