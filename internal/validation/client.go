package validation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"rwa-swap-engine/internal/domain"
)

// Default client configuration.
const (
	DefaultTimeout    = 5 * time.Second
	DefaultMaxRetries = 2
	DefaultRetryDelay = 150 * time.Millisecond
)

const methodValidate = "token.validate"

// Client calls a token-validation service over HTTP JSON-RPC 2.0.
// Validation is side-effect free, so transport failures are retried.
type Client struct {
	endpoint   string
	client     *http.Client
	maxRetries int
	retryDelay time.Duration
	requestID  atomic.Uint64
}

// ClientOption configures Client.
type ClientOption func(*Client)

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.client.Timeout = d
	}
}

// WithMaxRetries sets maximum retry attempts.
func WithMaxRetries(n int) ClientOption {
	return func(c *Client) {
		c.maxRetries = n
	}
}

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.client = client
	}
}

// NewClient creates a validation service client.
func NewClient(endpoint string, opts ...ClientOption) *Client {
	c := &Client{
		endpoint:   endpoint,
		client:     &http.Client{Timeout: DefaultTimeout},
		maxRetries: DefaultMaxRetries,
		retryDelay: DefaultRetryDelay,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type rpcRequest struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      uint64      `json:"id"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
}

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

type validateParams struct {
	CurrencyCode string `json:"currency_code"`
	Issuer       string `json:"issuer"`
	Category     string `json:"category"`
	Amount       string `json:"amount"`
	OwnerAddress string `json:"owner_address"`
}

type validateResult struct {
	Valid          bool              `json:"valid"`
	DiscountRate   float64           `json:"discount_rate"`
	Confidence     float64           `json:"confidence"`
	CategoryLimits map[string]string `json:"category_limits,omitempty"`
	Reason         string            `json:"reason,omitempty"`
}

// Validate checks the token with the external appraisal service.
func (c *Client) Validate(ctx context.Context, token domain.AssetDescriptor, ownerAddress string) (*Result, error) {
	params := validateParams{
		CurrencyCode: token.CurrencyCode,
		Issuer:       token.Issuer,
		Category:     token.Category,
		Amount:       token.Amount.String(),
		OwnerAddress: ownerAddress,
	}

	var result validateResult
	if err := c.call(ctx, methodValidate, params, &result); err != nil {
		return nil, err
	}

	limits := make(map[string]decimal.Decimal, len(result.CategoryLimits))
	for cat, raw := range result.CategoryLimits {
		v, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("parse category limit %s=%q: %w", cat, raw, err)
		}
		limits[cat] = v
	}

	return &Result{
		Valid:          result.Valid,
		DiscountRate:   result.DiscountRate,
		Confidence:     result.Confidence,
		CategoryLimits: limits,
		Reason:         result.Reason,
	}, nil
}

func (c *Client) call(ctx context.Context, method string, params interface{}, result interface{}) error {
	reqID := c.requestID.Add(1)
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      reqID,
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.retryDelay):
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

var _ Validator = (*Client)(nil)
