// Package indexerclient is a read-only HTTP client implementing
// coreiface.Indexer, built with the same functional-options pattern as
// chainclient and vire/internal/clients/eodhd. Used by JobRunner's
// reconcile step and by MergeView.
package indexerclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/bobmcallan/gardensync/internal/common"
	"github.com/bobmcallan/gardensync/internal/coreiface"
)

const (
	DefaultTimeout   = 10 * time.Second
	DefaultRateLimit = 10
)

// Client implements coreiface.Indexer over an HTTP query API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *common.Logger
	limiter    *rate.Limiter
}

// Option configures a Client.
type Option func(*Client)

func WithBaseURL(baseURL string) Option { return func(c *Client) { c.baseURL = baseURL } }
func WithLogger(logger *common.Logger) Option {
	return func(c *Client) { c.logger = logger }
}
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = timeout }
}
func WithRateLimit(requestsPerSecond int) Option {
	return func(c *Client) { c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond) }
}

// New creates a new indexer client.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		limiter:    rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		logger:     common.NewSilentLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// APIError represents an indexer API error.
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("indexer API error: %s (status: %d, endpoint: %s)", e.Message, e.StatusCode, e.Endpoint)
}

func (c *Client) get(ctx context.Context, path string, params url.Values, result any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	reqURL := fmt.Sprintf("%s%s?%s", c.baseURL, path, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("indexer request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &APIError{StatusCode: resp.StatusCode, Message: resp.Status, Endpoint: path}
	}

	return json.NewDecoder(resp.Body).Decode(result)
}

type itemWire struct {
	TxID        string    `json:"txId"`
	ClientOpID  string    `json:"clientOpId"`
	Resource    string    `json:"resource"`
	SubmittedAt time.Time `json:"submittedAt"`
}

func fromWire(w itemWire) coreiface.IndexerItem {
	return coreiface.IndexerItem{
		TxID:        w.TxID,
		ClientOpID:  w.ClientOpID,
		Resource:    w.Resource,
		SubmittedAt: w.SubmittedAt,
	}
}

// ByResource returns confirmed attestations for a resource, used by
// MergeView to merge with local pending/processing jobs.
func (c *Client) ByResource(ctx context.Context, chainID int64, resourceID string) ([]coreiface.IndexerItem, error) {
	params := url.Values{}
	params.Set("chainId", strconv.FormatInt(chainID, 10))
	params.Set("resource", resourceID)

	var wire []itemWire
	if err := c.get(ctx, "/attestations", params, &wire); err != nil {
		return nil, err
	}

	items := make([]coreiface.IndexerItem, len(wire))
	for i, w := range wire {
		items[i] = fromWire(w)
	}
	return items, nil
}

// ByClientOpID looks for a confirmed attestation carrying clientOpId in its
// metadata, backing JobRunner's dedup guard step.
func (c *Client) ByClientOpID(ctx context.Context, chainID int64, clientOpID string) (*coreiface.IndexerItem, error) {
	params := url.Values{}
	params.Set("chainId", strconv.FormatInt(chainID, 10))
	params.Set("clientOpId", clientOpID)

	var wire []itemWire
	if err := c.get(ctx, "/attestations", params, &wire); err != nil {
		return nil, err
	}
	if len(wire) == 0 {
		return nil, nil
	}
	item := fromWire(wire[0])
	return &item, nil
}
