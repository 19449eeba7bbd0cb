// Package swap orchestrates the quote and execution lifecycle. Quote
// generation composes validation, routing and fee estimation; execution
// drives the state machine pending -> locking -> sourcing -> settling ->
// fee_distribution -> completed, with failed, critical and cancelled
// branches.
package swap

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"rwa-swap-engine/internal/config"
	"rwa-swap-engine/internal/domain"
	"rwa-swap-engine/internal/fees"
	"rwa-swap-engine/internal/idhash"
	"rwa-swap-engine/internal/ledger"
	"rwa-swap-engine/internal/observability"
	"rwa-swap-engine/internal/router"
	"rwa-swap-engine/internal/storage"
	"rwa-swap-engine/internal/validation"
)

// FinalityWaiter blocks until a settlement reference reaches finality.
// Implemented by ledger.FinalityWatcher; nil treats settlements as final
// on submission.
type FinalityWaiter interface {
	WaitForFinality(ctx context.Context, ref string) error
}

// QuoteRequest asks for a priced, time-limited conversion offer.
type QuoteRequest struct {
	UserID         string
	OwnerAddress   string
	Asset          domain.AssetDescriptor
	TargetCurrency string
	Institutional  bool
}

// Machine is the top-level swap orchestrator.
type Machine struct {
	quotes     storage.QuoteStore
	swaps      storage.SwapStore
	validator  validation.Validator
	router     *router.Router
	pathfinder *ledger.Pathfinder // optional ledger-venue quoting
	fees       *fees.Engine
	finality   FinalityWaiter // optional
	metrics    *observability.Metrics
	cfg        *config.Config
	logger     *log.Logger
	now        func() time.Time
}

// Options configures a Machine.
type Options struct {
	Quotes     storage.QuoteStore
	Swaps      storage.SwapStore
	Validator  validation.Validator
	Router     *router.Router
	Pathfinder *ledger.Pathfinder // optional
	Fees       *fees.Engine
	Finality   FinalityWaiter         // optional
	Metrics    *observability.Metrics // optional
	Config     *config.Config
	Logger     *log.Logger
	Now        func() time.Time // test hook, defaults to time.Now
}

// NewMachine creates a Machine.
func NewMachine(opts Options) *Machine {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Machine{
		quotes:     opts.Quotes,
		swaps:      opts.Swaps,
		validator:  opts.Validator,
		router:     opts.Router,
		pathfinder: opts.Pathfinder,
		fees:       opts.Fees,
		finality:   opts.Finality,
		metrics:    opts.Metrics,
		cfg:        opts.Config,
		logger:     logger,
		now:        now,
	}
}

// GenerateQuote validates the token, selects a route and prices the swap.
// The returned quote is active for the configured TTL and single-use.
func (m *Machine) GenerateQuote(ctx context.Context, req QuoteRequest) (*domain.Quote, error) {
	if err := m.validateRequest(req); err != nil {
		m.countRejection("request")
		return nil, err
	}

	verdict, err := m.validator.Validate(ctx, req.Asset, req.OwnerAddress)
	if err != nil {
		return nil, fmt.Errorf("token validation: %w", err)
	}
	if !verdict.Valid {
		m.countRejection("token")
		return nil, &ValidationError{Reason: verdict.Reason}
	}
	if limit, ok := verdict.CategoryLimits[req.Asset.Category]; ok && req.Asset.Amount.GreaterThan(limit) {
		m.countRejection("category_limit")
		return nil, &ValidationError{
			Field:  "amount",
			Reason: fmt.Sprintf("exceeds %s category limit %s", req.Asset.Category, limit),
		}
	}

	tier, err := m.fees.Tier(ctx, req.UserID, req.Asset.Amount, req.Institutional)
	if err != nil {
		return nil, err
	}

	// The appraisal discount is taken off the face value before routing:
	// only the discounted value is sourced.
	discounted := req.Asset.Amount.Mul(decimal.NewFromFloat(verdict.DiscountRate))

	route, err := m.selectRoute(ctx, req, discounted, tier)
	if err != nil {
		m.countRejection("no_route")
		return nil, err
	}
	if route.Slippage > m.cfg.Quote.SlippageTolerance {
		m.countRejection("slippage")
		return nil, &router.InsufficientLiquidityError{
			Requested: discounted,
			Available: route.TotalOutput,
		}
	}

	breakdown, err := m.fees.Estimate(ctx, route.TotalOutput, req.UserID, req.Asset.Category, req.Institutional)
	if err != nil {
		return nil, err
	}

	nowMs := m.now().UnixMilli()
	validUntil := nowMs + int64(m.cfg.Quote.TTLSeconds)*1000
	if validUntil <= nowMs {
		return nil, fmt.Errorf("quote TTL produces no validity window")
	}

	quote := &domain.Quote{
		QuoteID:        idhash.ComputeQuoteID(req.UserID, req.Asset.CurrencyCode, req.TargetCurrency, req.Asset.Amount, nowMs),
		UserID:         req.UserID,
		OwnerAddress:   req.OwnerAddress,
		Asset:          req.Asset,
		TargetCurrency: req.TargetCurrency,
		InputAmount:    req.Asset.Amount,
		OutputAmount:   route.TotalOutput,
		DiscountRate:   verdict.DiscountRate,
		Route:          *route,
		Fees:           *breakdown,
		Status:         domain.QuoteStatusActive,
		CreatedAt:      nowMs,
		ValidUntil:     validUntil,
	}

	if err := m.quotes.Insert(ctx, quote); err != nil {
		return nil, fmt.Errorf("store quote: %w", err)
	}

	if m.metrics != nil {
		m.metrics.QuotesGenerated.Inc()
	}
	m.logger.Printf("[swap] quote generated id=%s user=%s in=%s out=%s tier=%s",
		quote.QuoteID, quote.UserID, quote.InputAmount, quote.OutputAmount, breakdown.Tier)
	return quote, nil
}

func (m *Machine) validateRequest(req QuoteRequest) error {
	if req.UserID == "" {
		return &ValidationError{Field: "user_id", Reason: "must not be empty"}
	}
	if req.TargetCurrency == "" {
		return &ValidationError{Field: "target_currency", Reason: "must not be empty"}
	}
	if !domain.ValidCategory(req.Asset.Category) {
		return &ValidationError{Field: "category", Reason: fmt.Sprintf("unknown category %q", req.Asset.Category)}
	}
	if !req.Asset.Amount.IsPositive() {
		return &ValidationError{Field: "amount", Reason: "must be positive"}
	}
	minV := decimal.NewFromFloat(m.cfg.Quote.MinAssetValue)
	maxV := decimal.NewFromFloat(m.cfg.Quote.MaxAssetValue)
	if req.Asset.Amount.LessThan(minV) || req.Asset.Amount.GreaterThan(maxV) {
		return &ValidationError{Field: "amount", Reason: fmt.Sprintf("outside accepted range [%s, %s]", minV, maxV)}
	}
	if err := ledger.ValidateAddress(req.OwnerAddress); err != nil {
		return &ValidationError{Field: "owner_address", Reason: err.Error()}
	}
	return nil
}

// countRejection increments the quote rejection counter for a reason label.
func (m *Machine) countRejection(reason string) {
	if m.metrics != nil {
		m.metrics.QuotesRejected.WithLabelValues(reason).Inc()
	}
}

// selectRoute asks the providers first and falls back to the ledger's native
// venues when they cannot cover the amount.
func (m *Machine) selectRoute(ctx context.Context, req QuoteRequest, amount decimal.Decimal, tier string) (*domain.Route, error) {
	checkReq := router.CheckRequest{
		Asset:          req.Asset,
		TargetCurrency: req.TargetCurrency,
		Amount:         amount,
		Tier:           tier,
	}

	candidates, err := m.router.CheckAll(ctx, checkReq)
	if err != nil {
		return nil, err
	}

	route, err := m.router.SelectRoute(candidates, checkReq)
	if err == nil {
		return route, nil
	}

	var insufficient *router.InsufficientLiquidityError
	if !errors.As(err, &insufficient) || m.pathfinder == nil {
		return nil, err
	}

	ledgerRoute, ledgerErr := m.pathfinder.FindRoute(ctx, req.Asset.CurrencyCode, req.TargetCurrency, amount)
	if ledgerErr != nil {
		if errors.Is(ledgerErr, ledger.ErrNoRouteFound) {
			// Providers were short and the ledger has nothing either;
			// the provider shortfall is the more actionable error.
			return nil, err
		}
		return nil, ledgerErr
	}
	return ledgerRoute, nil
}

// Execute runs the state machine for a quote. The quote status CAS is the
// exclusivity lock: exactly one call per quote can pass locking.
func (m *Machine) Execute(ctx context.Context, quoteID string) (*domain.Swap, error) {
	quote, err := m.quotes.GetByID(ctx, quoteID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, &ValidationError{Field: "quote_id", Reason: "unknown quote"}
	}
	if err != nil {
		return nil, fmt.Errorf("load quote: %w", err)
	}

	nowMs := m.now().UnixMilli()

	// Expiry is checked before any mutation: an expired quote causes no
	// lock attempt and no provider calls.
	if quote.Expired(nowMs) {
		return nil, &QuoteExpiredError{QuoteID: quoteID, ValidUntil: quote.ValidUntil}
	}
	switch quote.Status {
	case domain.QuoteStatusActive:
	case domain.QuoteStatusExecuted:
		return nil, &AlreadyExecutingError{QuoteID: quoteID}
	case domain.QuoteStatusExpired:
		return nil, &QuoteExpiredError{QuoteID: quoteID, ValidUntil: quote.ValidUntil}
	default:
		return nil, &ValidationError{Field: "quote_id", Reason: fmt.Sprintf("quote is %s", quote.Status)}
	}

	// Acquire the exclusivity lock. Quotes are single-use: the winning
	// execution consumes the quote regardless of how it ends.
	if err := m.quotes.CompareAndSwapStatus(ctx, quoteID, domain.QuoteStatusActive, domain.QuoteStatusExecuted); err != nil {
		if errors.Is(err, storage.ErrStatusConflict) {
			current, getErr := m.quotes.GetByID(ctx, quoteID)
			if getErr == nil && current.Status == domain.QuoteStatusExpired {
				return nil, &QuoteExpiredError{QuoteID: quoteID, ValidUntil: current.ValidUntil}
			}
			return nil, &AlreadyExecutingError{QuoteID: quoteID}
		}
		return nil, fmt.Errorf("acquire quote lock: %w", err)
	}

	if m.metrics != nil {
		m.metrics.SwapsStarted.Inc()
	}
	started := m.now()

	ctx, cancel := context.WithTimeout(ctx, time.Duration(m.cfg.Quote.SwapTimeoutSeconds)*time.Second)
	defer cancel()

	s := &domain.Swap{
		SwapID:    uuid.NewString(),
		QuoteID:   quoteID,
		UserID:    quote.UserID,
		Status:    domain.SwapStatusPending,
		CreatedAt: nowMs,
		UpdatedAt: nowMs,
	}
	s.Steps = append(s.Steps, domain.SwapStep{Status: domain.SwapStatusPending, Timestamp: nowMs})
	if err := m.swaps.Insert(ctx, s); err != nil {
		return nil, fmt.Errorf("store swap: %w", err)
	}

	m.transition(ctx, s, domain.SwapStatusLocking, "quote lock acquired")

	result, err := m.runPipeline(ctx, s, quote)

	if m.metrics != nil {
		m.metrics.SwapsByOutcome.WithLabelValues(s.Status).Inc()
		m.metrics.SwapDuration.Observe(m.now().Sub(started).Seconds())
	}
	return result, err
}

// runPipeline drives sourcing, settlement and fee distribution on a locked
// swap. The swap record is the source of truth for progress; every
// transition is persisted before the next stage runs.
func (m *Machine) runPipeline(ctx context.Context, s *domain.Swap, quote *domain.Quote) (*domain.Swap, error) {
	m.transition(ctx, s, domain.SwapStatusSourcing, fmt.Sprintf("route hops=%d", len(quote.Route.Hops)))

	outcome, err := m.router.Execute(ctx, &quote.Route, router.ExecuteParams{
		SwapID:         s.SwapID,
		QuoteID:        quote.QuoteID,
		Asset:          quote.Asset,
		TargetCurrency: quote.TargetCurrency,
		Tier:           quote.Fees.Tier,
	})
	if outcome != nil {
		s.SettlementRefs = append(s.SettlementRefs, outcome.SettlementRefs...)
		s.Provider = outcome.Provider
		s.OutputAmount = outcome.OutputAmount
	}
	if err != nil {
		if outcome != nil && outcome.Committed {
			// Funds moved on some hops before the chain died. This can
			// no longer be a clean failure.
			return s, m.toCritical(ctx, s, fmt.Sprintf("sourcing failed after partial commitment: %v", err))
		}
		m.fail(ctx, s, err.Error())
		return s, err
	}

	m.transition(ctx, s, domain.SwapStatusSettling, fmt.Sprintf("refs=%d", len(s.SettlementRefs)))

	if m.finality != nil {
		for _, ref := range s.SettlementRefs {
			if err := m.finality.WaitForFinality(ctx, ref); err != nil {
				return s, m.toCritical(ctx, s, fmt.Sprintf("settlement %s: %v", ref, err))
			}
		}
	}

	m.transition(ctx, s, domain.SwapStatusFeeDistribution, "")

	if err := m.fees.Collect(ctx, s.SwapID, s.UserID, quote.Asset.Category, s.OutputAmount, &quote.Fees); err != nil {
		// Funds are already delivered; fee collection is retried by the
		// async worker rather than failing the swap.
		m.logger.Printf("[swap] fee collection deferred swap=%s: %v", s.SwapID, err)
		return s, nil
	}
	m.finishCollected(ctx, s, &quote.Fees)
	return s, nil
}

// finishCollected marks fees as collected and completes the swap.
func (m *Machine) finishCollected(ctx context.Context, s *domain.Swap, b *domain.FeeBreakdown) {
	s.FeesCollected = b.Total
	if m.metrics != nil {
		total, _ := b.Total.Float64()
		m.metrics.FeesCollected.Add(total)
	}
	m.transition(ctx, s, domain.SwapStatusCompleted, fmt.Sprintf("provider=%s output=%s", s.Provider, s.OutputAmount))
	m.logger.Printf("[swap] completed swap=%s provider=%s output=%s fee=%s",
		s.SwapID, s.Provider, s.OutputAmount, s.FeesCollected)
}

// Status returns the current swap record.
func (m *Machine) Status(ctx context.Context, swapID string) (*domain.Swap, error) {
	return m.swaps.GetByID(ctx, swapID)
}

// Cancel cancels an active quote. Only quotes not yet locked can be
// cancelled; anything past locking must run the compensation path instead.
func (m *Machine) Cancel(ctx context.Context, quoteID string) error {
	err := m.quotes.CompareAndSwapStatus(ctx, quoteID, domain.QuoteStatusActive, domain.QuoteStatusCancelled)
	if errors.Is(err, storage.ErrStatusConflict) {
		return &AlreadyExecutingError{QuoteID: quoteID}
	}
	return err
}

// transition advances the swap to the next status and persists it.
func (m *Machine) transition(ctx context.Context, s *domain.Swap, status, detail string) {
	nowMs := m.now().UnixMilli()
	s.Status = status
	s.UpdatedAt = nowMs
	s.Steps = append(s.Steps, domain.SwapStep{Status: status, Timestamp: nowMs, Detail: detail})
	if err := m.swaps.Update(ctx, s); err != nil {
		m.logger.Printf("[swap] failed to persist transition swap=%s status=%s: %v", s.SwapID, status, err)
	}
}

// fail marks the swap failed. Only reachable before any funds commit.
func (m *Machine) fail(ctx context.Context, s *domain.Swap, reason string) {
	s.FailureReason = reason
	m.transition(ctx, s, domain.SwapStatusFailed, reason)
	m.logger.Printf("[swap] failed swap=%s: %s", s.SwapID, reason)
}

// toCritical parks the swap for manual reconciliation and returns the
// critical error carrying the committed settlement references.
func (m *Machine) toCritical(ctx context.Context, s *domain.Swap, reason string) error {
	s.FailureReason = reason
	m.transition(ctx, s, domain.SwapStatusCritical, reason)
	m.logger.Printf("[swap] CRITICAL swap=%s refs=%v steps=%d: %s",
		s.SwapID, s.SettlementRefs, len(s.Steps), reason)
	return &CriticalSettlementError{
		SwapID:         s.SwapID,
		SettlementRefs: append([]string{}, s.SettlementRefs...),
		Reason:         reason,
	}
}
