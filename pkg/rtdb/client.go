package rtdb

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultTimeout = 10 * time.Second

	// maxBodyBytes caps how much of a response body is read.
	maxBodyBytes = 8 << 20
)

// StatusError is returned when the store answers with a non-2xx status.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("rtdb: %s %s: unexpected status %d: %s", e.Method, e.Path, e.Code, e.Body)
}

// Client talks to one database instance.
type Client struct {
	baseURL string
	secret  string
	http    *http.Client

	// streamHTTP has no overall timeout; streams live until ctx is cancelled.
	streamHTTP *http.Client
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the client used for request/response calls.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout sets the per-request timeout for non-streaming calls.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// New returns a Client for baseURL (for example
// "https://example-default-rtdb.firebasedatabase.app"). secret may be empty.
func New(baseURL, secret string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		secret:     secret,
		http:       &http.Client{Timeout: defaultTimeout},
		streamHTTP: &http.Client{},
	}
	for _, o := range opts {
		o(c)
	}
	if c.http.Transport != nil {
		c.streamHTTP.Transport = c.http.Transport
	}
	return c
}

// URL returns the REST URL for path.
func (c *Client) URL(path string) string {
	u := c.baseURL + "/" + strings.Trim(path, "/") + ".json"
	if c.secret != "" {
		u += "?auth=" + url.QueryEscape(c.secret)
	}
	return u
}

// Get fetches the document at path. An absent document returns (nil, nil).
func (c *Client) Get(ctx context.Context, path string) (json.RawMessage, error) {
	body, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	body = bytes.TrimSpace(body)
	if len(body) == 0 || bytes.Equal(body, []byte("null")) {
		return nil, nil
	}
	return json.RawMessage(body), nil
}

// Push appends v under path and returns the push key the store assigned.
func (c *Client) Push(ctx context.Context, path string, v any) (string, error) {
	body, err := c.do(ctx, http.MethodPost, path, v)
	if err != nil {
		return "", err
	}
	var resp struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("rtdb: decode push response: %w", err)
	}
	if resp.Name == "" {
		return "", fmt.Errorf("rtdb: push response has no name")
	}
	return resp.Name, nil
}

// Set replaces the document at path with v.
func (c *Client) Set(ctx context.Context, path string, v any) error {
	_, err := c.do(ctx, http.MethodPut, path, v)
	return err
}

// Update writes each key of fields relative to path. Keys may contain
// slashes to address nested children.
func (c *Client) Update(ctx context.Context, path string, fields map[string]any) error {
	_, err := c.do(ctx, http.MethodPatch, path, fields)
	return err
}

func (c *Client) do(ctx context.Context, method, path string, v any) ([]byte, error) {
	var body io.Reader
	if v != nil {
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("rtdb: encode %s body: %w", method, err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.URL(path), body)
	if err != nil {
		return nil, fmt.Errorf("rtdb: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if v != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rtdb: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("rtdb: read %s %s body: %w", method, path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{
			Method: method,
			Path:   path,
			Code:   resp.StatusCode,
			Body:   strings.TrimSpace(string(data)),
		}
	}
	return data, nil
}
