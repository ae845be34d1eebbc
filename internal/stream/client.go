// pattern: Imperative Shell
package stream

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// Event is one named server-sent event. Data is the raw payload, passed
// through to handlers without interpretation.
type Event struct {
	Type       string
	Data       []byte
	ID         string
	ReceivedAt time.Time
}

// Client represents a single SSE connection to the CrewHub backend.
type Client interface {
	// Connect opens the stream. It blocks until the server has accepted the
	// request (the "open" signal) or fails, then reads events in the
	// background.
	Connect(ctx context.Context) error

	// Close tears down the connection.
	Close() error

	// Events returns the channel of inbound events.
	Events() <-chan Event

	// Errors returns a channel that yields the terminal connection error.
	Errors() <-chan error
}

// ClientConfig configures a single SSE connection.
type ClientConfig struct {
	URL        string // endpoint, e.g. "http://127.0.0.1:8090/api/events"
	APIKey     string // sent as X-API-Key header and token query parameter
	BufferSize int    // event channel buffer (default 64)
	HTTPClient *http.Client
}

// ClientFactory constructs the connection primitive. The manager takes a
// factory so tests can substitute a fake transport.
type ClientFactory func(cfg ClientConfig) Client

// client implements Client over net/http.
type client struct {
	cfg ClientConfig

	events chan Event
	errors chan error
	done   chan struct{}

	mu     sync.Mutex
	body   func() // cancels the in-flight request
	closed bool
}

// NewClient creates an SSE client for the given configuration.
func NewClient(cfg ClientConfig) Client {
	if cfg.BufferSize == 0 {
		cfg.BufferSize = 64
	}
	if cfg.HTTPClient == nil {
		// No overall timeout: the stream is long-lived by design.
		cfg.HTTPClient = &http.Client{}
	}
	return &client{
		cfg:    cfg,
		events: make(chan Event, cfg.BufferSize),
		errors: make(chan error, 1),
		done:   make(chan struct{}),
	}
}

// Connect opens the stream and starts the read loop.
func (c *client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrAlreadyClosed
	}
	c.mu.Unlock()

	endpoint, err := buildEndpoint(c.cfg.URL, c.cfg.APIKey)
	if err != nil {
		return err
	}

	reqCtx, cancel := context.WithCancel(context.Background())
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, endpoint, nil)
	if err != nil {
		cancel()
		return err
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	if c.cfg.APIKey != "" {
		req.Header.Set("X-API-Key", c.cfg.APIKey)
	}

	type result struct {
		resp *http.Response
		err  error
	}
	resultCh := make(chan result, 1)
	go func() {
		resp, err := c.cfg.HTTPClient.Do(req)
		resultCh <- result{resp, err}
	}()

	var resp *http.Response
	select {
	case <-ctx.Done():
		cancel()
		return ctx.Err()
	case r := <-resultCh:
		if r.err != nil {
			cancel()
			return r.err
		}
		resp = r.resp
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		cancel()
		return fmt.Errorf("server returned status %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		resp.Body.Close()
		cancel()
		return fmt.Errorf("unexpected content type %q", ct)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		resp.Body.Close()
		cancel()
		return ErrAlreadyClosed
	}
	c.body = cancel
	c.mu.Unlock()

	go c.readLoop(resp)

	return nil
}

// Close tears down the connection. Safe to call multiple times.
func (c *client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	cancel := c.body
	c.mu.Unlock()

	close(c.done)
	if cancel != nil {
		cancel()
	}
	return nil
}

// Events returns the inbound event channel.
func (c *client) Events() <-chan Event {
	return c.events
}

// Errors returns the terminal error channel.
func (c *client) Errors() <-chan error {
	return c.errors
}

// readLoop parses the text/event-stream body until it ends.
func (c *client) readLoop(resp *http.Response) {
	defer resp.Body.Close()

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 4096), 1<<20)

	var eventType, eventID string
	var dataLines []string

	flush := func() {
		if len(dataLines) == 0 {
			eventType, eventID = "", ""
			return
		}
		evt := Event{
			Type:       eventType,
			Data:       []byte(strings.Join(dataLines, "\n")),
			ID:         eventID,
			ReceivedAt: time.Now(),
		}
		if evt.Type == "" {
			evt.Type = "message"
		}
		eventType, eventID = "", ""
		dataLines = nil

		select {
		case c.events <- evt:
		case <-c.done:
		}
	}

	for scanner.Scan() {
		line := scanner.Text()

		select {
		case <-c.done:
			return
		default:
		}

		switch {
		case line == "":
			flush()
		case strings.HasPrefix(line, ":"):
			// Comment line; the backend sends ": keepalive" heartbeats.
		case strings.HasPrefix(line, "event:"):
			eventType = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			dataLines = append(dataLines, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		case strings.HasPrefix(line, "id:"):
			eventID = strings.TrimSpace(strings.TrimPrefix(line, "id:"))
		default:
			// Unknown field names are ignored per the SSE processing model.
		}
	}

	// Stream ended: either Close() cancelled the request or the server went
	// away mid-stream. Only the latter is an error.
	select {
	case <-c.done:
		return
	default:
	}

	err := scanner.Err()
	if err == nil {
		err = ErrStreamEnded
	}
	select {
	case c.errors <- err:
	default:
	}
}

// buildEndpoint appends the auth token as a query parameter, matching the
// browser EventSource convention the backend supports (EventSource cannot
// set headers).
func buildEndpoint(rawURL, apiKey string) (string, error) {
	if apiKey == "" {
		return rawURL, nil
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid stream URL: %w", err)
	}
	q := u.Query()
	q.Set("token", apiKey)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
