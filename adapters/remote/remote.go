// Package remote provides adapters for the Real-Debrid REST API.
package remote

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
	"time"

	"github.com/rdmonitor/rdmon/domain/traffic"
)

// DefaultBaseURL is the public REST endpoint.
const DefaultBaseURL = "https://api.real-debrid.com/rest/1.0/"

// maxBodySize bounds how much of a response is read.
const maxBodySize = 16 << 20

// Client performs authenticated GET requests against the API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	headers    map[string]string
}

// ClientConfig configures the remote client.
type ClientConfig struct {
	BaseURL    string
	Timeout    time.Duration
	Headers    map[string]string
	HTTPClient *http.Client // optional, overrides Timeout
}

// NewClient creates a new remote HTTP client.
func NewClient(cfg ClientConfig) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}

	base := cfg.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}

	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: timeout}
	}

	return &Client{
		httpClient: hc,
		baseURL:    base,
		headers:    cfg.Headers,
	}
}

// BaseURL returns the normalized base URL, always ending in "/".
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Get issues GET baseURL+path with a bearer credential and returns the raw
// body. Every failure is a *traffic.QueryError whose Op is path:
//   - transport failures and timeouts are KindNetwork
//   - non-2xx statuses map through traffic.KindForStatus
//   - a 2xx response with an empty body is KindNoData
func (c *Client) Get(ctx context.Context, path string, query url.Values, apiKey string) ([]byte, error) {
	u := c.baseURL + strings.TrimPrefix(path, "/")
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, &traffic.QueryError{Kind: traffic.KindNetwork, Op: path, Err: fmt.Errorf("create request: %w", err)}
	}

	req.Header.Set("Accept", "application/json")
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &traffic.QueryError{Kind: traffic.KindNetwork, Op: path, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, &traffic.QueryError{Kind: traffic.KindNetwork, Op: path, Err: fmt.Errorf("read body: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &traffic.QueryError{
			Kind:   traffic.KindForStatus(resp.StatusCode),
			Status: resp.StatusCode,
			Op:     path,
			Err:    apiMessage(body),
		}
	}

	if len(bytes.TrimSpace(body)) == 0 {
		return nil, &traffic.QueryError{Kind: traffic.KindNoData, Status: resp.StatusCode, Op: path}
	}
	return body, nil
}

// apiMessage extracts the "error" field of an API error body, if any.
func apiMessage(body []byte) error {
	var payload struct {
		Error     string `json:"error"`
		ErrorCode int    `json:"error_code"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || payload.Error == "" {
		return nil
	}
	if payload.ErrorCode != 0 {
		return fmt.Errorf("%s (code %d)", payload.Error, payload.ErrorCode)
	}
	return errors.New(payload.Error)
}

// parseError wraps a decode failure of path's payload.
func parseError(path string, err error) error {
	return &traffic.QueryError{Kind: traffic.KindParse, Op: path, Err: err}
}
