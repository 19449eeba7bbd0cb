package storage

import (
	"context"

	"github.com/shopspring/decimal"

	"rwa-swap-engine/internal/domain"
)

// QuoteStore provides durable, read-your-writes access to quotes.
// The status column doubles as the swap exclusivity lock: all status
// transitions go through CompareAndSwapStatus and must be linearizable.
type QuoteStore interface {
	// Insert adds a new quote. Returns ErrDuplicateKey if quote_id exists.
	Insert(ctx context.Context, q *domain.Quote) error

	// GetByID retrieves a quote by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, quoteID string) (*domain.Quote, error)

	// CompareAndSwapStatus atomically transitions the quote from one status
	// to another. Returns ErrStatusConflict if the current status differs
	// from expected, ErrNotFound if the quote does not exist.
	CompareAndSwapStatus(ctx context.Context, quoteID, from, to string) error

	// ListActiveBefore retrieves active quotes whose valid_until is strictly
	// before the given timestamp. Used by the expiry sweeper.
	ListActiveBefore(ctx context.Context, beforeMs int64) ([]*domain.Quote, error)
}

// SwapStore provides access to swap records.
type SwapStore interface {
	// Insert adds a new swap. Returns ErrDuplicateKey if swap_id exists.
	Insert(ctx context.Context, s *domain.Swap) error

	// GetByID retrieves a swap by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, swapID string) (*domain.Swap, error)

	// Update replaces an existing swap record. Returns ErrNotFound if not exists.
	Update(ctx context.Context, s *domain.Swap) error

	// GetByQuoteID retrieves all swaps for a quote, ordered by created_at ASC.
	GetByQuoteID(ctx context.Context, quoteID string) ([]*domain.Swap, error)

	// ListByStatus retrieves swaps in the given status, ordered by created_at ASC.
	// Used by the asynchronous fee-retry worker.
	ListByStatus(ctx context.Context, status string) ([]*domain.Swap, error)
}

// VolumeLedger tracks per-user swap volume for tier and discount resolution.
type VolumeLedger interface {
	// Add appends a volume entry. Returns ErrDuplicateKey if (user_id, swap_id) exists.
	Add(ctx context.Context, e *domain.VolumeEntry) error

	// TrailingVolume returns the summed volume for a user since the given
	// timestamp (inclusive).
	TrailingVolume(ctx context.Context, userID string, sinceMs int64) (decimal.Decimal, error)
}

// FeeCollectionStore records collected fees, keyed by swap_id.
// The duplicate-key rejection is what makes fee collection idempotent.
type FeeCollectionStore interface {
	// Record stores a collected fee breakdown. Returns ErrDuplicateKey if a
	// collection for swap_id was already recorded.
	Record(ctx context.Context, swapID, userID string, b *domain.FeeBreakdown, atMs int64) error

	// TotalCollected returns the summed total fee across all collections.
	TotalCollected(ctx context.Context) (decimal.Decimal, error)
}

// ProviderAttemptStore is the append-only audit trail of provider calls.
type ProviderAttemptStore interface {
	// InsertBulk appends attempt records. Append-only, duplicates are not checked.
	InsertBulk(ctx context.Context, attempts []*domain.ProviderAttempt) error

	// GetByTimeRange retrieves attempts within [start, end] (inclusive),
	// ordered by timestamp ASC.
	GetByTimeRange(ctx context.Context, start, end int64) ([]*domain.ProviderAttempt, error)
}

// FeeRevenueRow is one bucket-level revenue line for analytics.
type FeeRevenueRow struct {
	SwapID    string
	UserID    string
	Tier      string
	Category  string
	Bucket    string
	Amount    decimal.Decimal
	Timestamp int64
}

// FeeRevenueStore is the append-only revenue analytics sink.
type FeeRevenueStore interface {
	// InsertBulk appends revenue rows.
	InsertBulk(ctx context.Context, rows []*FeeRevenueRow) error

	// GetByTimeRange retrieves rows within [start, end] (inclusive),
	// ordered by timestamp ASC.
	GetByTimeRange(ctx context.Context, start, end int64) ([]*FeeRevenueRow, error)
}
