package swap

import (
	"context"
	"errors"
	"log"
	"time"

	"rwa-swap-engine/internal/domain"
	"rwa-swap-engine/internal/fees"
	"rwa-swap-engine/internal/storage"
)

// FeeRetryWorker finishes swaps stuck in fee_distribution. A swap lands
// there when liquidity was delivered but the fee collection write failed;
// collection is idempotent, so retrying is always safe.
type FeeRetryWorker struct {
	swaps    storage.SwapStore
	quotes   storage.QuoteStore
	fees     *fees.Engine
	interval time.Duration
	logger   *log.Logger
}

// NewFeeRetryWorker creates a FeeRetryWorker.
func NewFeeRetryWorker(swaps storage.SwapStore, quotes storage.QuoteStore, engine *fees.Engine, interval time.Duration, logger *log.Logger) *FeeRetryWorker {
	if logger == nil {
		logger = log.Default()
	}
	return &FeeRetryWorker{
		swaps:    swaps,
		quotes:   quotes,
		fees:     engine,
		interval: interval,
		logger:   logger,
	}
}

// Run retries on the configured interval until ctx is cancelled.
func (w *FeeRetryWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.RetryOnce(ctx)
		}
	}
}

// RetryOnce attempts fee collection for every swap awaiting distribution.
// Returns the number of swaps completed.
func (w *FeeRetryWorker) RetryOnce(ctx context.Context) int {
	pending, err := w.swaps.ListByStatus(ctx, domain.SwapStatusFeeDistribution)
	if err != nil {
		w.logger.Printf("[feeretry] list swaps: %v", err)
		return 0
	}

	completed := 0
	for _, s := range pending {
		quote, err := w.quotes.GetByID(ctx, s.QuoteID)
		if errors.Is(err, storage.ErrNotFound) {
			w.logger.Printf("[feeretry] swap %s references missing quote %s", s.SwapID, s.QuoteID)
			continue
		}
		if err != nil {
			w.logger.Printf("[feeretry] load quote for swap %s: %v", s.SwapID, err)
			continue
		}

		if err := w.fees.Collect(ctx, s.SwapID, s.UserID, quote.Asset.Category, s.OutputAmount, &quote.Fees); err != nil {
			w.logger.Printf("[feeretry] collection still failing swap=%s: %v", s.SwapID, err)
			continue
		}

		nowMs := time.Now().UnixMilli()
		s.FeesCollected = quote.Fees.Total
		s.Status = domain.SwapStatusCompleted
		s.UpdatedAt = nowMs
		s.Steps = append(s.Steps, domain.SwapStep{
			Status:    domain.SwapStatusCompleted,
			Timestamp: nowMs,
			Detail:    "fee collection retried",
		})
		if err := w.swaps.Update(ctx, s); err != nil {
			w.logger.Printf("[feeretry] persist completion swap=%s: %v", s.SwapID, err)
			continue
		}
		completed++
	}

	if completed > 0 {
		w.logger.Printf("[feeretry] completed %d deferred swaps", completed)
	}
	return completed
}
