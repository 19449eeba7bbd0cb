package postgres

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"rwa-swap-engine/internal/domain"
	"rwa-swap-engine/internal/storage"
)

// VolumeLedger implements storage.VolumeLedger using PostgreSQL.
// The (user_id, swap_id) primary key rejects double counting when a
// completed swap's volume is recorded more than once.
type VolumeLedger struct {
	pool *Pool
}

// NewVolumeLedger creates a new VolumeLedger.
func NewVolumeLedger(pool *Pool) *VolumeLedger {
	return &VolumeLedger{pool: pool}
}

// Compile-time interface check.
var _ storage.VolumeLedger = (*VolumeLedger)(nil)

// Add appends a volume entry. Returns ErrDuplicateKey if (user_id, swap_id) exists.
func (l *VolumeLedger) Add(ctx context.Context, e *domain.VolumeEntry) error {
	query := `
		INSERT INTO volume_ledger (user_id, swap_id, amount, timestamp)
		VALUES ($1, $2, $3, $4)
	`

	_, err := l.pool.Exec(ctx, query, e.UserID, e.SwapID, e.Amount, e.Timestamp)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert volume entry: %w", err)
	}
	return nil
}

// TrailingVolume returns the summed volume for a user since sinceMs (inclusive).
func (l *VolumeLedger) TrailingVolume(ctx context.Context, userID string, sinceMs int64) (decimal.Decimal, error) {
	query := `
		SELECT COALESCE(SUM(amount), 0)
		FROM volume_ledger
		WHERE user_id = $1 AND timestamp >= $2
	`

	var total decimal.Decimal
	err := l.pool.QueryRow(ctx, query, userID, sinceMs).Scan(&total)
	if err != nil {
		return decimal.Zero, fmt.Errorf("sum trailing volume: %w", err)
	}
	return total, nil
}
