package helius

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// Default configuration values.
const (
	DefaultTimeout     = 20 * time.Second
	DefaultMaxRetries  = 3
	DefaultRetryDelay  = 2 * time.Second
	DefaultMaxDelay    = 10 * time.Second
	DefaultMinInterval = 150 * time.Millisecond
	MaxEnhancedBatch   = 100
)

// ErrRateLimited is returned when the provider kept answering 429 after
// all backoff attempts. It is distinct from an empty result so callers
// can tell "no data" from "could not ask".
var ErrRateLimited = errors.New("helius: rate limited")

// Client calls the Helius RPC and Enhanced Transactions APIs. A single
// pacing clock is shared by all calls through one instance: every
// request waits out the minimum inter-call interval first. Safe for
// sequential reuse across a polling cycle.
type Client struct {
	rpcEndpoint string
	apiURL      string
	apiKey      string

	client      *http.Client
	maxRetries  int
	retryDelay  time.Duration
	maxDelay    time.Duration
	minInterval time.Duration
	requestID   atomic.Uint64

	mu       sync.Mutex
	lastCall time.Time

	// sleep is swapped in tests to observe backoff without waiting.
	sleep func(ctx context.Context, d time.Duration) error
}

// ClientOption configures Client.
type ClientOption func(*Client)

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) { c.client.Timeout = d }
}

// WithMaxRetries sets the rate-limit retry budget.
func WithMaxRetries(n int) ClientOption {
	return func(c *Client) { c.maxRetries = n }
}

// WithRetryDelay sets the initial backoff delay.
func WithRetryDelay(d time.Duration) ClientOption {
	return func(c *Client) { c.retryDelay = d }
}

// WithMinInterval sets the minimum spacing between requests.
func WithMinInterval(d time.Duration) ClientOption {
	return func(c *Client) { c.minInterval = d }
}

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) { c.client = client }
}

// withSleep replaces the backoff sleep function. Test hook.
func withSleep(fn func(ctx context.Context, d time.Duration) error) ClientOption {
	return func(c *Client) { c.sleep = fn }
}

// NewClient creates a Helius client. rpcEndpoint is the JSON-RPC URL,
// apiURL the Enhanced Transactions base URL (e.g. https://api.helius.xyz/v0).
func NewClient(rpcEndpoint, apiURL, apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		rpcEndpoint: rpcEndpoint,
		apiURL:      apiURL,
		apiKey:      apiKey,
		client:      &http.Client{Timeout: DefaultTimeout},
		maxRetries:  DefaultMaxRetries,
		retryDelay:  DefaultRetryDelay,
		maxDelay:    DefaultMaxDelay,
		minInterval: DefaultMinInterval,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.sleep == nil {
		c.sleep = func(ctx context.Context, d time.Duration) error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(d):
				return nil
			}
		}
	}
	return c
}

// pace blocks until the minimum inter-call interval has elapsed since
// the previous request issued through this client.
func (c *Client) pace(ctx context.Context) error {
	c.mu.Lock()
	now := time.Now()
	wait := c.minInterval - now.Sub(c.lastCall)
	if wait < 0 {
		wait = 0
	}
	c.lastCall = now.Add(wait)
	c.mu.Unlock()

	if wait == 0 {
		return nil
	}
	return c.sleep(ctx, wait)
}

// doJSON issues one paced POST and decodes the response body into out.
// 429 responses surface as retryable; any other failure is terminal for
// this attempt loop (transport errors are not retried, per policy: the
// retry budget belongs to rate limiting only).
func (c *Client) doJSON(ctx context.Context, url string, payload, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	delay := c.retryDelay
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			if err := c.sleep(ctx, delay); err != nil {
				return err
			}
			delay *= 2
			if delay > c.maxDelay {
				delay = c.maxDelay
			}
		}

		if err := c.pace(ctx); err != nil {
			return err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			return fmt.Errorf("http request: %w", err)
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return fmt.Errorf("read response: %w", err)
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			continue
		}
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
		}

		if out != nil {
			if err := json.Unmarshal(respBody, out); err != nil {
				return fmt.Errorf("unmarshal response: %w", err)
			}
		}
		return nil
	}

	return ErrRateLimited
}

// rpcRequest is a JSON-RPC 2.0 request.
type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}

// rpcResponse is a JSON-RPC 2.0 response.
type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}

// call performs a JSON-RPC call and unmarshals the result.
func (c *Client) call(ctx context.Context, method string, params []interface{}, result interface{}) error {
	req := rpcRequest{
		JSONRPC: "2.0",
		ID:      c.requestID.Add(1),
		Method:  method,
		Params:  params,
	}

	var resp rpcResponse
	if err := c.doJSON(ctx, c.rpcEndpoint, req, &resp); err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	if resp.Error != nil {
		// Protocol errors are never retried.
		return fmt.Errorf("%s: %w", method, resp.Error)
	}
	if result != nil && resp.Result != nil {
		if err := json.Unmarshal(resp.Result, result); err != nil {
			return fmt.Errorf("%s: unmarshal result: %w", method, err)
		}
	}
	return nil
}

// GetSlot retrieves the current slot.
func (c *Client) GetSlot(ctx context.Context) (int64, error) {
	var result int64
	if err := c.call(ctx, "getSlot", nil, &result); err != nil {
		return 0, err
	}
	return result, nil
}

// GetSignaturesForAddress retrieves the most recent transaction
// signatures for a wallet, newest first. until bounds the query to
// signatures newer than the given one (the per-wallet checkpoint).
func (c *Client) GetSignaturesForAddress(ctx context.Context, address string, limit int, until string) ([]SignatureInfo, error) {
	config := map[string]interface{}{
		"commitment": "confirmed",
	}
	if limit > 0 {
		config["limit"] = limit
	}
	if until != "" {
		config["until"] = until
	}

	var result []SignatureInfo
	if err := c.call(ctx, "getSignaturesForAddress", []interface{}{address, config}, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// GetEnhancedTransactions fetches parsed transactions for up to
// MaxEnhancedBatch signatures in one call.
func (c *Client) GetEnhancedTransactions(ctx context.Context, signatures []string) ([]*EnhancedTransaction, error) {
	if len(signatures) == 0 {
		return nil, nil
	}
	if len(signatures) > MaxEnhancedBatch {
		signatures = signatures[:MaxEnhancedBatch]
	}

	url := fmt.Sprintf("%s/transactions?api-key=%s", c.apiURL, c.apiKey)
	payload := map[string]interface{}{"transactions": signatures}

	var result []*EnhancedTransaction
	if err := c.doJSON(ctx, url, payload, &result); err != nil {
		return nil, fmt.Errorf("enhanced transactions: %w", err)
	}
	return result, nil
}
