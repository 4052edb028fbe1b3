// Package chainclient is a minimal JSON-RPC-over-HTTP client implementing
// coreiface.ChainRPC, built the way vire/internal/clients/eodhd is built:
// functional options, a rate limiter guarding outbound calls, and a typed
// RPCError the Submitter classifies into the core's error taxonomy.
package chainclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/bobmcallan/gardensync/internal/common"
	"github.com/bobmcallan/gardensync/internal/coreiface"
	"github.com/bobmcallan/gardensync/internal/errs"
)

const (
	DefaultTimeout   = 30 * time.Second
	DefaultRateLimit = 10 // requests per second
)

// Client implements coreiface.ChainRPC over a JSON-RPC HTTP endpoint.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *common.Logger
	limiter    *rate.Limiter
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL sets the JSON-RPC endpoint URL.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) { c.baseURL = baseURL }
}

// WithLogger sets the logger.
func WithLogger(logger *common.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = timeout }
}

// WithRateLimit sets the outbound request rate limit.
func WithRateLimit(requestsPerSecond int) Option {
	return func(c *Client) { c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond) }
}

// New creates a new chain RPC client.
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

// RPCError carries the JSON-RPC error code returned by the chain endpoint so
// callers can classify KnownContractRevert vs Transient vs Cancelled.
type RPCError struct {
	Code    int
	Message string
	Method  string
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("chain rpc error: %s (code: %d, method: %s)", e.Message, e.Code, e.Method)
}

// classify maps a RPCError (or a plain network error) into the core's error
// taxonomy, per spec.md §4.4's DirectSubmitter classification rules.
func classify(method string, err error, rpcErr *RPCError) error {
	if rpcErr != nil {
		msg := strings.ToLower(rpcErr.Message)
		switch {
		case strings.Contains(msg, "user rejected"), strings.Contains(msg, "user denied"), strings.Contains(msg, "cancelled"):
			return errs.New(errs.Cancelled, rpcErr)
		case strings.Contains(msg, "insufficient funds"), strings.Contains(msg, "nonce"):
			return errs.New(errs.Transient, rpcErr)
		case method == "simulate":
			return errs.New(errs.KnownContractRevert, rpcErr)
		default:
			return errs.New(errs.UnknownRevert, rpcErr)
		}
	}
	return errs.New(errs.Transient, fmt.Errorf("%s: %w", method, err))
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
	ID      int    `json:"id"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) call(ctx context.Context, method string, params any, result any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return errs.New(errs.Transient, fmt.Errorf("rate limit wait: %w", err))
	}

	body, err := json.Marshal(rpcRequest{JSONRPC: "2.0", Method: method, Params: params, ID: 1})
	if err != nil {
		return errs.New(errs.Permanent, fmt.Errorf("marshal rpc request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return classify(method, err, nil)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return classify(method, err, nil)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return classify(method, err, nil)
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(data, &rpcResp); err != nil {
		return classify(method, fmt.Errorf("unmarshal rpc response: %w", err), nil)
	}
	if rpcResp.Error != nil {
		return classify(method, nil, &RPCError{Code: rpcResp.Error.Code, Message: rpcResp.Error.Message, Method: method})
	}

	if result != nil && len(rpcResp.Result) > 0 {
		if err := json.Unmarshal(rpcResp.Result, result); err != nil {
			return classify(method, fmt.Errorf("unmarshal rpc result: %w", err), nil)
		}
	}
	return nil
}

// Simulate dry-runs a transaction without broadcasting it.
func (c *Client) Simulate(ctx context.Context, encodedPayload []byte, recipient string) error {
	params := map[string]any{"to": recipient, "data": encodedPayload}
	c.logger.Debug().Str("recipient", recipient).Msg("chain simulate")
	return c.call(ctx, "simulate", params, nil)
}

// SendTransaction broadcasts a signed transaction and returns its id.
func (c *Client) SendTransaction(ctx context.Context, encodedPayload []byte, recipient string) (string, error) {
	var result struct {
		TxID string `json:"txId"`
	}
	params := map[string]any{"to": recipient, "data": encodedPayload}
	if err := c.call(ctx, "sendTransaction", params, &result); err != nil {
		return "", err
	}
	c.logger.Info().Str("tx_id", result.TxID).Msg("transaction submitted")
	return result.TxID, nil
}

// WaitForReceipt polls for a transaction receipt up to deadline.
func (c *Client) WaitForReceipt(ctx context.Context, txID string, deadline time.Duration) (*coreiface.TxReceipt, error) {
	ctx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		var result struct {
			Confirmed bool `json:"confirmed"`
			Reverted  bool `json:"reverted"`
		}
		if err := c.call(ctx, "getReceipt", map[string]any{"txId": txID}, &result); err == nil && result.Confirmed {
			return &coreiface.TxReceipt{TxID: txID, Reverted: result.Reverted}, nil
		}

		select {
		case <-ctx.Done():
			return nil, errs.New(errs.Transient, fmt.Errorf("await confirmation timed out for %s", txID))
		case <-ticker.C:
		}
	}
}
