// Package router selects and executes liquidity routes across external
// providers. Checks fan out concurrently with a per-provider timeout;
// execution walks the chosen route with an ordered fallback chain.
package router

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"rwa-swap-engine/internal/config"
	"rwa-swap-engine/internal/domain"
	"rwa-swap-engine/internal/health"
	"rwa-swap-engine/internal/observability"
	"rwa-swap-engine/internal/provider"
	"rwa-swap-engine/internal/storage"
)

// CheckRequest asks the router for liquidity across all capable providers.
type CheckRequest struct {
	Asset          domain.AssetDescriptor
	TargetCurrency string
	Amount         decimal.Decimal // requested input amount
	Tier           string          // caller's fee tier, drives affinity and fallback order
}

// Candidate is one provider's liquidity offer with its routing score.
type Candidate struct {
	Provider string
	Quote    provider.LiquidityQuote
	Caps     domain.Capabilities
	Score    ScoreBreakdown
}

// LedgerExecutor sources a ledger-venue hop. Implemented by the ledger client;
// nil disables ledger execution.
type LedgerExecutor interface {
	ExecuteHop(ctx context.Context, hop domain.Hop, params ExecuteParams) (*provider.ExecutionResult, error)
}

// Router fans liquidity checks out to providers, scores the offers and
// executes routes with fallback.
type Router struct {
	providers map[string]provider.LiquidityProvider
	order     []string
	monitor   *health.Monitor
	attempts  storage.ProviderAttemptStore
	ledger    LedgerExecutor
	metrics   *observability.Metrics
	cfg       config.RoutingConfig
	logger    *log.Logger
}

// Options configures a Router.
type Options struct {
	Providers []provider.LiquidityProvider
	Monitor   *health.Monitor
	Attempts  storage.ProviderAttemptStore // optional analytics sink
	Ledger    LedgerExecutor               // optional, for ledger-venue hops
	Metrics   *observability.Metrics       // optional
	Config    config.RoutingConfig
	Logger    *log.Logger
}

// New creates a Router.
func New(opts Options) *Router {
	byName := make(map[string]provider.LiquidityProvider, len(opts.Providers))
	order := make([]string, 0, len(opts.Providers))
	for _, p := range opts.Providers {
		byName[p.Name()] = p
		order = append(order, p.Name())
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Router{
		providers: byName,
		order:     order,
		monitor:   opts.Monitor,
		attempts:  opts.Attempts,
		ledger:    opts.Ledger,
		metrics:   opts.Metrics,
		cfg:       opts.Config,
		logger:    logger,
	}
}

// CheckAll queries every capable provider concurrently. Providers failing the
// static capability check are excluded entirely; individual check failures are
// recorded against the provider's health and dropped. Partial results are
// acceptable for quoting.
func (r *Router) CheckAll(ctx context.Context, req CheckRequest) ([]Candidate, error) {
	timeout := time.Duration(r.cfg.ProviderTimeoutSeconds) * time.Second

	var mu sync.Mutex
	var candidates []Candidate
	var records []*domain.ProviderAttempt

	g, gctx := errgroup.WithContext(ctx)

	for _, name := range r.order {
		p := r.providers[name]
		caps := p.Capabilities()

		// Providers that cannot cover the full amount still participate
		// with a partial offer capped at their max.
		checkAmount := req.Amount
		if caps.MaxAmount.IsPositive() && checkAmount.GreaterThan(caps.MaxAmount) {
			checkAmount = caps.MaxAmount
		}
		if !caps.Supports(req.Asset.Category, checkAmount) {
			continue
		}

		name := name
		g.Go(func() error {
			callCtx, cancel := context.WithTimeout(gctx, timeout)
			defer cancel()

			start := time.Now()
			quote, err := p.CheckLiquidity(callCtx, provider.CheckRequest{
				Asset:          req.Asset,
				TargetCurrency: req.TargetCurrency,
				Amount:         checkAmount,
			})
			elapsed := time.Since(start)

			mu.Lock()
			defer mu.Unlock()

			rec := &domain.ProviderAttempt{
				Provider:  name,
				Kind:      domain.AttemptKindCheck,
				LatencyMs: elapsed.Milliseconds(),
				Timestamp: time.Now().UnixMilli(),
			}

			if err != nil {
				r.monitor.RecordAttempt(name, false, elapsed)
				rec.Reason = err.Error()
				records = append(records, rec)
				r.logger.Printf("[router] liquidity check failed provider=%s err=%v", name, err)
				return nil
			}

			r.monitor.RecordAttempt(name, true, elapsed)
			rec.Success = true
			records = append(records, rec)

			if !quote.Available || !quote.AvailableAmount.IsPositive() {
				return nil
			}
			candidates = append(candidates, Candidate{
				Provider: name,
				Quote:    *quote,
				Caps:     caps,
			})
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	r.recordAttempts(ctx, records)
	r.scoreCandidates(candidates, req)
	return candidates, nil
}

// recordAttempts counts attempts in the metrics and writes them to the
// analytics sink, best effort.
func (r *Router) recordAttempts(ctx context.Context, records []*domain.ProviderAttempt) {
	for _, rec := range records {
		r.countAttempt(rec.Provider, rec.Success)
	}
	if r.attempts == nil || len(records) == 0 {
		return
	}
	if err := r.attempts.InsertBulk(ctx, records); err != nil {
		r.logger.Printf("[router] failed to record provider attempts: %v", err)
	}
}

func (r *Router) countAttempt(name string, success bool) {
	if r.metrics == nil {
		return
	}
	result := "success"
	if !success {
		result = "failure"
	}
	r.metrics.ProviderAttempts.WithLabelValues(name, result).Inc()
}
