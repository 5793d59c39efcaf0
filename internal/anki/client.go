// Package anki implements the JSON-over-HTTP bridge client for a locally
// running Anki instance exposing the AnkiConnect action protocol.
package anki

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// apiVersion is the bridge protocol version sent with every request.
const apiVersion = 6

// DefaultBaseURL is the fixed loopback address the engine listens on when no
// proxy prefix is configured.
const DefaultBaseURL = "http://127.0.0.1:8765"

// DefaultTimeout bounds a single request round trip.
const DefaultTimeout = 10 * time.Second

// request is the wire envelope for a single action invocation.
type request struct {
	Action  string `json:"action"`
	Version int    `json:"version"`
	Params  any    `json:"params,omitempty"`
	Key     string `json:"key,omitempty"`
}

// response is the wire envelope for a single action result. A non-null Error
// is an application-level failure.
type response struct {
	Result json.RawMessage `json:"result"`
	Error  *string         `json:"error"`
}

// Client issues typed requests to the engine's bridge endpoint.
type Client struct {
	baseURL    string
	key        string
	httpClient *http.Client
	log        *zap.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithKey sets the API key included with every request.
func WithKey(key string) Option {
	return func(c *Client) { c.key = key }
}

// WithTimeout overrides the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithLogger attaches a logger. The default is a no-op logger.
func WithLogger(log *zap.Logger) Option {
	return func(c *Client) { c.log = log }
}

// NewClient creates a client for the bridge at baseURL. An empty baseURL
// falls back to the loopback default.
func NewClient(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		log: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// invoke performs one action round trip and decodes the result into out.
// A nil out discards the result.
func (c *Client) invoke(ctx context.Context, action string, params, out any) error {
	reqID := uuid.New().String()[:8]

	payload, err := json.Marshal(request{
		Action:  action,
		Version: apiVersion,
		Params:  params,
		Key:     c.key,
	})
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", action, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create %s request: %w", action, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.log.Warn("engine request failed",
			zap.String("req", reqID),
			zap.String("action", action),
			zap.Error(err))
		return &ConnectionError{Err: err}
	}
	defer func() {
		_ = httpResp.Body.Close()
	}()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return &ConnectionError{Err: fmt.Errorf("read response: %w", err)}
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return &ConnectionError{Err: fmt.Errorf("unexpected status %d", httpResp.StatusCode)}
	}

	var resp response
	if err := json.Unmarshal(body, &resp); err != nil {
		return fmt.Errorf("decode %s response: %w: %w", action, err, ErrUnknown)
	}
	if resp.Error != nil && *resp.Error != "" {
		return &APIError{Action: action, Message: *resp.Error}
	}

	c.log.Debug("engine request ok",
		zap.String("req", reqID),
		zap.String("action", action),
		zap.Duration("took", time.Since(start)))

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Result, out); err != nil {
		return fmt.Errorf("decode %s result: %w", action, err)
	}
	return nil
}
