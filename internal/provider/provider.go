// Package provider defines the liquidity provider capability interface.
// Each external counterparty implements the same interface and is selected
// polymorphically by the router; calling code never branches on provider name.
package provider

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"rwa-swap-engine/internal/domain"
)

// ErrRejected is returned when a provider explicitly declines a swap.
var ErrRejected = errors.New("provider rejected swap")

// CheckRequest asks a provider whether it can supply liquidity.
type CheckRequest struct {
	Asset          domain.AssetDescriptor
	TargetCurrency string
	Amount         decimal.Decimal // requested target currency amount
}

// LiquidityQuote is a provider's answer to a liquidity check.
type LiquidityQuote struct {
	Provider        string          // responding provider name
	Available       bool            // whether any liquidity is offered
	AvailableAmount decimal.Decimal // amount the provider can supply
	Rate            float64         // offered conversion rate
	Confidence      float64         // provider-reported confidence (0..1]
}

// SwapSpec instructs a provider to execute (part of) a swap.
type SwapSpec struct {
	SwapID         string
	QuoteID        string
	Asset          domain.AssetDescriptor
	TargetCurrency string
	Amount         decimal.Decimal // amount to source from this provider
	Rate           float64         // rate agreed at quote time
}

// ExecutionResult is the outcome of a successful provider execution.
type ExecutionResult struct {
	OutputAmount  decimal.Decimal // target currency actually supplied
	SettlementRef string          // provider-side settlement reference
}

// LiquidityProvider is the single capability interface all providers implement.
type LiquidityProvider interface {
	// Name returns the provider's unique name.
	Name() string

	// Capabilities returns the provider's static bounds. Read-only.
	Capabilities() domain.Capabilities

	// CheckLiquidity reports available liquidity for a request.
	// Safe to call concurrently and free of side effects.
	CheckLiquidity(ctx context.Context, req CheckRequest) (*LiquidityQuote, error)

	// Execute sources liquidity per the spec. A returned error means no
	// funds moved on the provider side; committed failures surface as a
	// settlement problem later, not here.
	Execute(ctx context.Context, spec SwapSpec) (*ExecutionResult, error)
}
