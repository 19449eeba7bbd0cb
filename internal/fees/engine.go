// Package fees computes and collects platform fees. Rate composition is
// fixed: tier base rate, then volume-bracket discount, then category
// multiplier, then the absolute clamp.
package fees

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"

	"rwa-swap-engine/internal/config"
	"rwa-swap-engine/internal/domain"
	"rwa-swap-engine/internal/storage"
)

// bucket amounts are settled to cents; the remainder bucket absorbs
// whatever rounding leaves over.
const bucketScale = 2

// Engine estimates and collects fees.
type Engine struct {
	tiers        []domain.FeeTier      // ascending MinVolume
	brackets     []domain.VolumeBracket // ascending Threshold
	categoryMult map[string]float64
	minFee       decimal.Decimal
	maxFee       decimal.Decimal
	buckets      []config.BucketConfig
	remainder    string
	windowMs     int64
	volume       storage.VolumeLedger
	collections  storage.FeeCollectionStore
	revenue      storage.FeeRevenueStore // optional analytics sink
	logger       *log.Logger
	now          func() time.Time
}

// Options configures an Engine.
type Options struct {
	Config      *config.Config
	Volume      storage.VolumeLedger
	Collections storage.FeeCollectionStore
	Revenue     storage.FeeRevenueStore // optional
	Logger      *log.Logger
	Now         func() time.Time // test hook, defaults to time.Now
}

// NewEngine creates an Engine from validated configuration.
func NewEngine(opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	fc := opts.Config.Fees
	return &Engine{
		tiers:        opts.Config.FeeTiers(),
		brackets:     opts.Config.VolumeBrackets(),
		categoryMult: fc.CategoryMultipliers,
		minFee:       decimal.NewFromFloat(fc.MinFee),
		maxFee:       decimal.NewFromFloat(fc.MaxFee),
		buckets:      fc.Buckets,
		remainder:    fc.RemainderBucket,
		windowMs:     int64(fc.VolumeWindowDays) * 24 * int64(time.Hour/time.Millisecond),
		volume:       opts.Volume,
		collections:  opts.Collections,
		revenue:      opts.Revenue,
		logger:       logger,
		now:          now,
	}
}

// Estimate computes the fee breakdown for a swap's output amount. The
// trailing volume window includes the current swap, so a swap can lift the
// user into a better tier by itself.
func (e *Engine) Estimate(ctx context.Context, outputAmount decimal.Decimal, userID, assetCategory string, institutional bool) (*domain.FeeBreakdown, error) {
	since := e.now().UnixMilli() - e.windowMs
	trailing, err := e.volume.TrailingVolume(ctx, userID, since)
	if err != nil {
		return nil, fmt.Errorf("trailing volume for %s: %w", userID, err)
	}
	trailing = trailing.Add(outputAmount)

	tier := e.resolveTier(trailing, institutional)
	rate := tier.BaseFeePct

	discount := e.resolveDiscount(trailing)
	rate = rate.Mul(decimal.NewFromInt(1).Sub(discount))

	mult := decimal.NewFromInt(1)
	if m, ok := e.categoryMult[assetCategory]; ok {
		mult = decimal.NewFromFloat(m)
	}
	rate = rate.Mul(mult)

	total := outputAmount.Mul(rate)
	if total.LessThan(e.minFee) {
		total = e.minFee
	}
	if total.GreaterThan(e.maxFee) {
		total = e.maxFee
	}

	breakdown := &domain.FeeBreakdown{
		Total:              total,
		Tier:               tier.Name,
		BaseFeePct:         tier.BaseFeePct,
		VolumeDiscount:     discount,
		CategoryMultiplier: mult,
		EffectiveRate:      rate,
	}
	breakdown.Buckets = e.splitBuckets(total)
	return breakdown, nil
}

// Tier resolves the fee tier a swap of the given size would execute under.
// Routing uses it for tier-affinity scoring before a route exists.
func (e *Engine) Tier(ctx context.Context, userID string, amount decimal.Decimal, institutional bool) (string, error) {
	since := e.now().UnixMilli() - e.windowMs
	trailing, err := e.volume.TrailingVolume(ctx, userID, since)
	if err != nil {
		return "", fmt.Errorf("trailing volume for %s: %w", userID, err)
	}
	return e.resolveTier(trailing.Add(amount), institutional).Name, nil
}

// resolveTier picks the highest tier whose MinVolume the trailing volume
// meets. The institutional flag guarantees at least the institutional tier.
func (e *Engine) resolveTier(trailing decimal.Decimal, institutional bool) domain.FeeTier {
	chosen := e.tiers[0]
	for _, t := range e.tiers {
		if trailing.GreaterThanOrEqual(t.MinVolume) {
			chosen = t
		}
	}
	if institutional && chosen.Name == domain.TierRetail {
		for _, t := range e.tiers {
			if t.Name == domain.TierInstitutional {
				chosen = t
				break
			}
		}
	}
	return chosen
}

// resolveDiscount picks the largest bracket whose threshold the trailing
// volume meets. Zero when no bracket qualifies.
func (e *Engine) resolveDiscount(trailing decimal.Decimal) decimal.Decimal {
	discount := decimal.Zero
	for _, b := range e.brackets {
		if trailing.GreaterThanOrEqual(b.Threshold) {
			discount = b.Discount
		}
	}
	return discount
}

// splitBuckets distributes the total across the configured buckets so the
// amounts sum exactly to the total: every bucket except the remainder bucket
// is rounded, and the remainder bucket takes what is left.
func (e *Engine) splitBuckets(total decimal.Decimal) []domain.FeeBucket {
	out := make([]domain.FeeBucket, len(e.buckets))
	assigned := decimal.Zero
	remainderIdx := 0

	for i, b := range e.buckets {
		if b.Name == e.remainder {
			remainderIdx = i
			continue
		}
		amount := total.Mul(decimal.NewFromFloat(b.Fraction)).Round(bucketScale)
		out[i] = domain.FeeBucket{Name: b.Name, Amount: amount}
		assigned = assigned.Add(amount)
	}

	out[remainderIdx] = domain.FeeBucket{
		Name:   e.buckets[remainderIdx].Name,
		Amount: total.Sub(assigned),
	}
	return out
}

// Collect records the fee for a completed swap. Idempotent: a second call
// for the same swap is a no-op and leaves totals, volume and revenue
// untouched.
func (e *Engine) Collect(ctx context.Context, swapID, userID, assetCategory string, outputAmount decimal.Decimal, b *domain.FeeBreakdown) error {
	atMs := e.now().UnixMilli()

	err := e.collections.Record(ctx, swapID, userID, b, atMs)
	if errors.Is(err, storage.ErrDuplicateKey) {
		e.logger.Printf("[fees] collection already recorded swap=%s", swapID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("record collection: %w", err)
	}

	err = e.volume.Add(ctx, &domain.VolumeEntry{
		UserID:    userID,
		SwapID:    swapID,
		Amount:    outputAmount,
		Timestamp: atMs,
	})
	if err != nil && !errors.Is(err, storage.ErrDuplicateKey) {
		return fmt.Errorf("update volume ledger: %w", err)
	}

	if e.revenue != nil {
		rows := make([]*storage.FeeRevenueRow, 0, len(b.Buckets))
		for _, bucket := range b.Buckets {
			rows = append(rows, &storage.FeeRevenueRow{
				SwapID:    swapID,
				UserID:    userID,
				Tier:      b.Tier,
				Category:  assetCategory,
				Bucket:    bucket.Name,
				Amount:    bucket.Amount,
				Timestamp: atMs,
			})
		}
		if err := e.revenue.InsertBulk(ctx, rows); err != nil {
			// Analytics loss is tolerable; the collection record is the
			// source of truth.
			e.logger.Printf("[fees] failed to record revenue rows swap=%s: %v", swapID, err)
		}
	}

	return nil
}
