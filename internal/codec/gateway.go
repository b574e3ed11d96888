package codec

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Gateway defaults.
const (
	// DefaultRequestTimeout bounds a single request to the device.
	DefaultRequestTimeout = 5 * time.Second

	// maxResponseSize caps how much of a response body is read (1MB).
	maxResponseSize = 1 << 20
)

// Gateway issues individual HTTP requests to the codec.
//
// Each call is a single attempt: no retries, no backoff. Every failure is
// returned as a *GatewayError; nothing panics past this boundary.
//
// Thread Safety: All methods are safe for concurrent use.
type Gateway struct {
	baseURL    string
	username   string
	password   string
	httpClient *http.Client
}

// GatewayConfig holds settings for a Gateway.
type GatewayConfig struct {
	// BaseURL is the device prefix, e.g. "http://192.168.1.50:80".
	BaseURL string

	// Username and Password enable HTTP Basic auth when Username is non-empty.
	Username string
	Password string

	// Timeout bounds each request. Default: 5s.
	Timeout time.Duration

	// HTTPClient overrides the client (tests). Timeout is ignored when set.
	HTTPClient *http.Client
}

// NewGateway creates a gateway for one device.
func NewGateway(cfg GatewayConfig) *Gateway {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = DefaultRequestTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	return &Gateway{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		username:   cfg.Username,
		password:   cfg.Password,
		httpClient: httpClient,
	}
}

// BaseURL returns the device prefix this gateway talks to.
func (g *Gateway) BaseURL() string {
	return g.baseURL
}

// Request performs one HTTP call against the device and returns the JSON body.
//
// Parameters:
//   - ctx: Context for cancellation
//   - method: HTTP method (GET, POST)
//   - path: Endpoint path starting with "/" (see paths.go)
//   - body: Optional value encoded as the JSON request body (nil for none)
//
// Returns:
//   - json.RawMessage: Response body; "null" when a 2xx response has no body
//   - error: *GatewayError on network failure, non-2xx status or malformed JSON
func (g *Gateway) Request(ctx context.Context, method, path string, body any) (json.RawMessage, error) {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, g.fail(method, path, 0, fmt.Errorf("%w: encoding body: %w", ErrRequestFailed, err))
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, reader)
	if err != nil {
		return nil, g.fail(method, path, 0, fmt.Errorf("%w: %w", ErrRequestFailed, err))
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if g.username != "" {
		req.SetBasicAuth(g.username, g.password)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, g.fail(method, path, 0, fmt.Errorf("%w: %w", ErrRequestFailed, err))
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, g.fail(method, path, resp.StatusCode, fmt.Errorf("%w: reading body: %w", ErrRequestFailed, err))
	}
	// Drain anything past the limit to allow connection reuse
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, g.fail(method, path, resp.StatusCode, ErrUnexpectedStatus)
	}

	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return json.RawMessage("null"), nil
	}
	if !json.Valid(data) {
		return nil, g.fail(method, path, resp.StatusCode, ErrMalformedResponse)
	}

	return json.RawMessage(data), nil
}

// Get is shorthand for Request with GET and no body.
func (g *Gateway) Get(ctx context.Context, path string) (json.RawMessage, error) {
	return g.Request(ctx, http.MethodGet, path, nil)
}

// Post is shorthand for Request with POST.
func (g *Gateway) Post(ctx context.Context, path string, body any) (json.RawMessage, error) {
	return g.Request(ctx, http.MethodPost, path, body)
}

func (g *Gateway) fail(method, path string, status int, err error) *GatewayError {
	return &GatewayError{
		Method:     method,
		Path:       path,
		StatusCode: status,
		Err:        err,
	}
}
