// Package client talks to a running feeddedup worker over HTTP.
package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/goccy/go-json"

	"github.com/thebtf/feeddedup/internal/dedupe"
	"github.com/thebtf/feeddedup/internal/embedding"
)

// Errors returned by Dedupe, matchable with errors.Is.
var (
	// ErrMalformedInput means the worker rejected the payload (HTTP 400).
	ErrMalformedInput = dedupe.ErrMalformedInput
	// ErrUpstream means the worker's fingerprint provider failed (HTTP 502).
	ErrUpstream = embedding.ErrUpstream
)

const (
	healthTimeout = 500 * time.Millisecond
	// DefaultTimeout bounds a dedupe round trip, embedding calls included.
	DefaultTimeout = 2 * time.Minute
)

// Client is a worker HTTP client.
type Client struct {
	http    *http.Client
	baseURL string
}

// New returns a client for a worker listening on localhost:port.
func New(port int) *Client {
	return NewWithURL(fmt.Sprintf("http://127.0.0.1:%d", port))
}

// NewWithURL returns a client for the worker at baseURL.
func NewWithURL(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: DefaultTimeout},
	}
}

// IsRunning reports whether the worker answers its health check.
func (c *Client) IsRunning(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/health", nil)
	if err != nil {
		return false
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// Version returns the worker version, or "" when it cannot be determined.
func (c *Client) Version(ctx context.Context) string {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/version", nil)
	if err != nil {
		return ""
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return ""
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return ""
	}

	var body struct {
		Version string `json:"version"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return ""
	}
	return body.Version
}

// Dedupe posts a raw feed payload to the worker and returns the raw result.
// A threshold of nil uses the worker's configured default.
// A 400 from the worker is reported as ErrMalformedInput and a 502 as
// ErrUpstream.
func (c *Client) Dedupe(ctx context.Context, payload []byte, threshold *float64) ([]byte, error) {
	url := c.baseURL + "/api/dedupe"
	if threshold != nil {
		url += "?threshold=" + strconv.FormatFloat(*threshold, 'g', -1, 64)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("worker request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read worker response: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
		return bytes.TrimRight(body, "\n"), nil
	case http.StatusBadRequest:
		return nil, fmt.Errorf("%w: %s", ErrMalformedInput, errorMessage(body))
	case http.StatusBadGateway:
		return nil, fmt.Errorf("%w: %s", ErrUpstream, errorMessage(body))
	default:
		return nil, fmt.Errorf("worker returned %d: %s", resp.StatusCode, errorMessage(body))
	}
}

func errorMessage(body []byte) string {
	var e struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &e); err == nil && e.Error != "" {
		return e.Error
	}
	return string(body)
}
