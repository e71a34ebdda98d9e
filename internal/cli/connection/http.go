package connection

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/yndnr/trajsnap/internal/infra/buildinfo"
	"github.com/yndnr/trajsnap/internal/telemetry/tracer"
)

// DefaultTimeout bounds one request.
const DefaultTimeout = 30 * time.Second

// APIError is an error response from the server.
type APIError struct {
	Status    int
	Code      string
	Message   string
	RequestID string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("request failed with status %d", e.Status)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Option configures an HTTPClient.
type Option func(*HTTPClient)

// WithTLS sets the TLS configuration for https servers.
func WithTLS(cfg *tls.Config) Option {
	return func(c *HTTPClient) {
		c.tls = cfg
	}
}

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(c *HTTPClient) {
		c.timeout = d
	}
}

// HTTPClient talks to the snapshot API.
type HTTPClient struct {
	baseURL string
	client  *http.Client
	tls     *tls.Config
	timeout time.Duration
}

// NewHTTPClient creates a client for server.
func NewHTTPClient(server string, opts ...Option) *HTTPClient {
	c := &HTTPClient{timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(c)
	}

	var transport http.RoundTripper
	if path, ok := socketPath(server); ok {
		c.baseURL = socketHost
		transport = unixTransport(path)
	} else {
		c.baseURL = strings.TrimRight(server, "/")
		if !strings.HasPrefix(c.baseURL, "http://") && !strings.HasPrefix(c.baseURL, "https://") {
			scheme := "http://"
			if c.tls != nil {
				scheme = "https://"
			}
			c.baseURL = scheme + c.baseURL
		}
		if c.tls != nil {
			transport = &http.Transport{TLSClientConfig: c.tls}
		}
	}
	c.client = &http.Client{Timeout: c.timeout, Transport: transport}
	return c
}

// Get performs a GET request.
func (c *HTTPClient) Get(ctx context.Context, path string) (*http.Response, error) {
	return c.send(ctx, http.MethodGet, path, nil, "")
}

// Post performs a POST request. An empty contentType sends no header.
func (c *HTTPClient) Post(ctx context.Context, path, contentType string, body io.Reader) (*http.Response, error) {
	return c.send(ctx, http.MethodPost, path, body, contentType)
}

// Delete performs a DELETE request.
func (c *HTTPClient) Delete(ctx context.Context, path string) (*http.Response, error) {
	return c.send(ctx, http.MethodDelete, path, nil, "")
}

func (c *HTTPClient) send(ctx context.Context, method, path string, body io.Reader, contentType string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "snapctl/"+buildinfo.Version)
	tracer.Inject(ctx, req.Header)
	return c.client.Do(req)
}

// BaseURL returns the base URL of the client.
func (c *HTTPClient) BaseURL() string {
	return c.baseURL
}

// ParseResponse closes resp and decodes the envelope data into target,
// which may be nil. Error statuses become *APIError.
func ParseResponse(resp *http.Response, target any) error {
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		apiErr := &APIError{Status: resp.StatusCode, RequestID: resp.Header.Get("X-Request-ID")}
		var env struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&env); err == nil {
			apiErr.Code, apiErr.Message = env.Code, env.Message
		}
		return apiErr
	}
	if target == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}

	var env struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	if len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, target); err != nil {
		return fmt.Errorf("parse response data: %w", err)
	}
	return nil
}

// Call performs method on path and decodes the response data into target.
func (c *HTTPClient) Call(ctx context.Context, method, path string, body []byte, target any) error {
	var (
		r           io.Reader
		contentType string
	)
	if body != nil {
		r = bytes.NewReader(body)
		contentType = "application/yaml"
	}
	resp, err := c.send(ctx, method, path, r, contentType)
	if err != nil {
		return err
	}
	return ParseResponse(resp, target)
}

// Download copies the raw body of GET path to w.
func (c *HTTPClient) Download(ctx context.Context, path string, w io.Writer) (int64, error) {
	resp, err := c.Get(ctx, path)
	if err != nil {
		return 0, err
	}
	if resp.StatusCode >= 400 {
		return 0, ParseResponse(resp, nil)
	}
	defer resp.Body.Close()
	return io.Copy(w, resp.Body)
}
