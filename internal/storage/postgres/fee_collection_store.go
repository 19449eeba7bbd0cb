package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"rwa-swap-engine/internal/domain"
	"rwa-swap-engine/internal/storage"
)

// FeeCollectionStore implements storage.FeeCollectionStore using PostgreSQL.
// swap_id is the primary key; a second Record for the same swap fails with
// ErrDuplicateKey, which is what makes collection idempotent under retries.
type FeeCollectionStore struct {
	pool *Pool
}

// NewFeeCollectionStore creates a new FeeCollectionStore.
func NewFeeCollectionStore(pool *Pool) *FeeCollectionStore {
	return &FeeCollectionStore{pool: pool}
}

// Compile-time interface check.
var _ storage.FeeCollectionStore = (*FeeCollectionStore)(nil)

// Record stores a collected fee breakdown.
func (s *FeeCollectionStore) Record(ctx context.Context, swapID, userID string, b *domain.FeeBreakdown, atMs int64) error {
	breakdownJSON, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("marshal fee breakdown: %w", err)
	}

	query := `
		INSERT INTO fee_collections (swap_id, user_id, total, breakdown, collected_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err = s.pool.Exec(ctx, query, swapID, userID, b.Total, breakdownJSON, atMs)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert fee collection: %w", err)
	}
	return nil
}

// TotalCollected returns the summed total fee across all collections.
func (s *FeeCollectionStore) TotalCollected(ctx context.Context) (decimal.Decimal, error) {
	query := `SELECT COALESCE(SUM(total), 0) FROM fee_collections`

	var total decimal.Decimal
	err := s.pool.QueryRow(ctx, query).Scan(&total)
	if err != nil {
		return decimal.Zero, fmt.Errorf("sum fee collections: %w", err)
	}
	return total, nil
}
