package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/wfworld/dashboard/ratelimit"
)

// DefaultTimeout bounds a single feed request. Apps Script endpoints can
// take a while to wake up, so this is generous.
const DefaultTimeout = 30 * time.Second

// TransportError is a network or HTTP-level failure reaching a feed.
type TransportError struct {
	URL    string
	Status int
	Err    error
}

func (e *TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("feed request to %s failed with status %d", e.URL, e.Status)
	}
	return fmt.Sprintf("feed request to %s failed: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// RemoteError means the feed responded but reported its own failure
// (success=false in the payload).
type RemoteError struct {
	Message string
}

func (e *RemoteError) Error() string {
	if e.Message == "" {
		return "feed reported failure without a message"
	}
	return fmt.Sprintf("feed reported failure: %s", e.Message)
}

// payload is the Apps Script response envelope. Exactly one of Clients
// or Sales is populated depending on which form the endpoint serves.
type payload struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Clients []*Row `json:"clients"`
	Sales   []*Row `json:"sales"`
}

// Client fetches raw rows from the configured form endpoints.
type Client struct {
	httpClient *http.Client
	limiter    *ratelimit.RateLimiter
}

// NewClient creates a feed client with the given per-request timeout
// (DefaultTimeout if zero).
func NewClient(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		limiter:    ratelimit.NewRateLimiter(nil),
	}
}

// FetchClients pulls the intake-form rows from the given endpoint.
func (c *Client) FetchClients(ctx context.Context, url string) ([]*Row, error) {
	p, err := c.fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	return p.Clients, nil
}

// FetchSales pulls the sales-form rows from the given endpoint.
func (c *Client) FetchSales(ctx context.Context, url string) ([]*Row, error) {
	p, err := c.fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	return p.Sales, nil
}

// fetch performs a rate-limited GET and decodes the envelope. Apps Script
// replies 429 under quota pressure; the limiter backs off and retries
// those, everything else surfaces immediately.
func (c *Client) fetch(ctx context.Context, url string) (*payload, error) {
	var result *payload

	err := c.limiter.ExecuteWithRetry(ctx, func() error {
		p, err := c.doRequest(ctx, url)
		if err != nil {
			return err
		}
		result = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (c *Client) doRequest(ctx context.Context, url string) (*payload, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, &TransportError{URL: url, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{URL: url, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		// drain so the connection can be reused
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &TransportError{URL: url, Status: resp.StatusCode}
	}

	var p payload
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return nil, &TransportError{URL: url, Err: fmt.Errorf("decode response: %w", err)}
	}

	if !p.Success {
		return nil, &RemoteError{Message: p.Error}
	}
	return &p, nil
}
