// Package rpc implements provider.LiquidityProvider over HTTP JSON-RPC 2.0.
// Liquidity checks are retried with exponential backoff; executions are sent
// exactly once, because a timed-out execute may still commit funds on the
// provider side and fallback handling belongs to the router.
package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"rwa-swap-engine/internal/domain"
	"rwa-swap-engine/internal/provider"
)

// Default configuration values.
const (
	DefaultTimeout     = 10 * time.Second
	DefaultMaxRetries  = 3
	DefaultRetryDelay  = 200 * time.Millisecond
	DefaultMaxDelay    = 2 * time.Second
	DefaultBackoffMult = 2.0
)

// JSON-RPC method names expected from provider endpoints.
const (
	methodCheckLiquidity = "liquidity.check"
	methodExecuteSwap    = "swap.execute"
)

// Client implements provider.LiquidityProvider using HTTP JSON-RPC 2.0.
type Client struct {
	name        string
	endpoint    string
	caps        domain.Capabilities
	client      *http.Client
	maxRetries  int
	retryDelay  time.Duration
	maxDelay    time.Duration
	backoffMult float64
	requestID   atomic.Uint64
}

// ClientOption configures Client.
type ClientOption func(*Client)

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.client.Timeout = d
	}
}

// WithMaxRetries sets maximum retry attempts for liquidity checks.
func WithMaxRetries(n int) ClientOption {
	return func(c *Client) {
		c.maxRetries = n
	}
}

// WithRetryDelay sets initial retry delay.
func WithRetryDelay(d time.Duration) ClientOption {
	return func(c *Client) {
		c.retryDelay = d
	}
}

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.client = client
	}
}

// NewClient creates a JSON-RPC liquidity provider client.
func NewClient(name, endpoint string, caps domain.Capabilities, opts ...ClientOption) *Client {
	c := &Client{
		name:        name,
		endpoint:    endpoint,
		caps:        caps,
		client:      &http.Client{Timeout: DefaultTimeout},
		maxRetries:  DefaultMaxRetries,
		retryDelay:  DefaultRetryDelay,
		maxDelay:    DefaultMaxDelay,
		backoffMult: DefaultBackoffMult,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name returns the provider's name.
func (c *Client) Name() string { return c.name }

// Capabilities returns the provider's configured static bounds.
func (c *Client) Capabilities() domain.Capabilities { return c.caps }

// rpcRequest represents a JSON-RPC 2.0 request.
type rpcRequest struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      uint64      `json:"id"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
}

// rpcResponse represents a JSON-RPC 2.0 response.
type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

// rpcError represents a JSON-RPC 2.0 error.
type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}

// Error code providers use to decline a swap outright.
const codeSwapRejected = -33001

// checkParams is the wire shape of a liquidity check.
type checkParams struct {
	CurrencyCode   string `json:"currency_code"`
	Issuer         string `json:"issuer"`
	Category       string `json:"category"`
	TargetCurrency string `json:"target_currency"`
	Amount         string `json:"amount"`
}

// checkResult is the wire shape of a liquidity check response.
type checkResult struct {
	Available       bool    `json:"available"`
	AvailableAmount string  `json:"available_amount"`
	Rate            float64 `json:"rate"`
	Confidence      float64 `json:"confidence"`
}

// CheckLiquidity queries the provider, retrying transport failures.
func (c *Client) CheckLiquidity(ctx context.Context, req provider.CheckRequest) (*provider.LiquidityQuote, error) {
	params := checkParams{
		CurrencyCode:   req.Asset.CurrencyCode,
		Issuer:         req.Asset.Issuer,
		Category:       req.Asset.Category,
		TargetCurrency: req.TargetCurrency,
		Amount:         req.Amount.String(),
	}

	var result checkResult
	if err := c.call(ctx, methodCheckLiquidity, params, &result, c.maxRetries); err != nil {
		return nil, err
	}

	amount := decimal.Zero
	if result.AvailableAmount != "" {
		parsed, err := decimal.NewFromString(result.AvailableAmount)
		if err != nil {
			return nil, fmt.Errorf("parse available_amount %q: %w", result.AvailableAmount, err)
		}
		amount = parsed
	}

	return &provider.LiquidityQuote{
		Provider:        c.name,
		Available:       result.Available,
		AvailableAmount: amount,
		Rate:            result.Rate,
		Confidence:      result.Confidence,
	}, nil
}

// executeParams is the wire shape of a swap execution.
type executeParams struct {
	SwapID         string  `json:"swap_id"`
	QuoteID        string  `json:"quote_id"`
	CurrencyCode   string  `json:"currency_code"`
	Issuer         string  `json:"issuer"`
	Category       string  `json:"category"`
	TargetCurrency string  `json:"target_currency"`
	Amount         string  `json:"amount"`
	Rate           float64 `json:"rate"`
}

// executeResult is the wire shape of a swap execution response.
type executeResult struct {
	OutputAmount  string `json:"output_amount"`
	SettlementRef string `json:"settlement_ref"`
}

// Execute sends the swap exactly once. No transport-level retries.
func (c *Client) Execute(ctx context.Context, spec provider.SwapSpec) (*provider.ExecutionResult, error) {
	params := executeParams{
		SwapID:         spec.SwapID,
		QuoteID:        spec.QuoteID,
		CurrencyCode:   spec.Asset.CurrencyCode,
		Issuer:         spec.Asset.Issuer,
		Category:       spec.Asset.Category,
		TargetCurrency: spec.TargetCurrency,
		Amount:         spec.Amount.String(),
		Rate:           spec.Rate,
	}

	var result executeResult
	if err := c.call(ctx, methodExecuteSwap, params, &result, 0); err != nil {
		var rpcErr *rpcError
		if errors.As(err, &rpcErr) && rpcErr.Code == codeSwapRejected {
			return nil, fmt.Errorf("%w: %s", provider.ErrRejected, rpcErr.Message)
		}
		return nil, err
	}

	output, err := decimal.NewFromString(result.OutputAmount)
	if err != nil {
		return nil, fmt.Errorf("parse output_amount %q: %w", result.OutputAmount, err)
	}

	return &provider.ExecutionResult{
		OutputAmount:  output,
		SettlementRef: result.SettlementRef,
	}, nil
}

// call performs a JSON-RPC call with up to maxRetries retries and
// exponential backoff. RPC-level errors are never retried.
func (c *Client) call(ctx context.Context, method string, params interface{}, result interface{}, maxRetries int) error {
	reqID := c.requestID.Add(1)
	reqBody := rpcRequest{
		JSONRPC: "2.0",
		ID:      reqID,
		Method:  method,
		Params:  params,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	delay := c.retryDelay
	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay = time.Duration(float64(delay) * c.backoffMult)
			if delay > c.maxDelay {
				delay = c.maxDelay
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("http request: %w", err)
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read response: %w", err)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = fmt.Errorf("rate limited (429)")
			continue
		}

		if resp.StatusCode != http.StatusOK {
			lastErr = fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
			continue
		}

		var rpcResp rpcResponse
		if err := json.Unmarshal(respBody, &rpcResp); err != nil {
			lastErr = fmt.Errorf("unmarshal response: %w", err)
			continue
		}

		if rpcResp.Error != nil {
			// RPC errors are not retried
			return rpcResp.Error
		}

		if result != nil && rpcResp.Result != nil {
			if err := json.Unmarshal(rpcResp.Result, result); err != nil {
				return fmt.Errorf("unmarshal result: %w", err)
			}
		}

		return nil
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

var _ provider.LiquidityProvider = (*Client)(nil)
