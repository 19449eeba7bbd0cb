// Package stub provides a configurable in-process liquidity provider for
// tests and the in-memory server mode.
package stub

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"rwa-swap-engine/internal/domain"
	"rwa-swap-engine/internal/provider"
)

// Provider is an in-process implementation of provider.LiquidityProvider.
// Zero value is not usable; construct with New.
type Provider struct {
	name string
	caps domain.Capabilities

	mu              sync.Mutex
	available       bool
	availableAmount decimal.Decimal
	rate            float64
	confidence      float64
	checkErr        error
	executeErr      error
	checkDelay      time.Duration
	executeDelay    time.Duration

	checkCalls   atomic.Int64
	executeCalls atomic.Int64
	seq          atomic.Int64
}

// New creates a stub provider offering the given liquidity.
func New(name string, caps domain.Capabilities, availableAmount decimal.Decimal, rate float64) *Provider {
	return &Provider{
		name:            name,
		caps:            caps,
		available:       availableAmount.IsPositive(),
		availableAmount: availableAmount,
		rate:            rate,
		confidence:      1.0,
	}
}

// Name returns the stub's name.
func (p *Provider) Name() string { return p.name }

// Capabilities returns the stub's static bounds.
func (p *Provider) Capabilities() domain.Capabilities { return p.caps }

// SetCheckError makes subsequent liquidity checks fail with err (nil clears).
func (p *Provider) SetCheckError(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.checkErr = err
}

// SetExecuteError makes subsequent executions fail with err (nil clears).
func (p *Provider) SetExecuteError(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.executeErr = err
}

// SetDelays adds artificial latency to checks and executions.
func (p *Provider) SetDelays(check, execute time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.checkDelay = check
	p.executeDelay = execute
}

// SetConfidence overrides the reported confidence.
func (p *Provider) SetConfidence(c float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.confidence = c
}

// CheckCalls returns the number of liquidity checks received.
func (p *Provider) CheckCalls() int64 { return p.checkCalls.Load() }

// ExecuteCalls returns the number of executions received.
func (p *Provider) ExecuteCalls() int64 { return p.executeCalls.Load() }

// CheckLiquidity reports the configured liquidity.
func (p *Provider) CheckLiquidity(ctx context.Context, req provider.CheckRequest) (*provider.LiquidityQuote, error) {
	p.checkCalls.Add(1)

	p.mu.Lock()
	delay := p.checkDelay
	err := p.checkErr
	available := p.available
	amount := p.availableAmount
	rate := p.rate
	confidence := p.confidence
	p.mu.Unlock()

	if delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
	if err != nil {
		return nil, err
	}

	offered := amount
	if req.Amount.LessThan(offered) {
		offered = req.Amount
	}

	return &provider.LiquidityQuote{
		Provider:        p.name,
		Available:       available,
		AvailableAmount: offered,
		Rate:            rate,
		Confidence:      confidence,
	}, nil
}

// Execute fills the spec at the configured rate.
func (p *Provider) Execute(ctx context.Context, spec provider.SwapSpec) (*provider.ExecutionResult, error) {
	p.executeCalls.Add(1)

	p.mu.Lock()
	delay := p.executeDelay
	err := p.executeErr
	rate := p.rate
	p.mu.Unlock()

	if delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
	if err != nil {
		return nil, err
	}

	output := spec.Amount.Mul(decimal.NewFromFloat(rate))
	ref := fmt.Sprintf("%s-stl-%d", p.name, p.seq.Add(1))

	return &provider.ExecutionResult{
		OutputAmount:  output,
		SettlementRef: ref,
	}, nil
}

var _ provider.LiquidityProvider = (*Provider)(nil)
