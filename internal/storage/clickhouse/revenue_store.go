package clickhouse

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"rwa-swap-engine/internal/storage"
)

// FeeRevenueStore implements storage.FeeRevenueStore using ClickHouse.
// Revenue rows are analytics only; exact-sum accounting lives in the
// PostgreSQL fee_collections table, so Float64 precision is acceptable here.
type FeeRevenueStore struct {
	conn *Conn
}

// NewFeeRevenueStore creates a new FeeRevenueStore.
func NewFeeRevenueStore(conn *Conn) *FeeRevenueStore {
	return &FeeRevenueStore{conn: conn}
}

// Compile-time interface check.
var _ storage.FeeRevenueStore = (*FeeRevenueStore)(nil)

// InsertBulk appends revenue rows.
func (s *FeeRevenueStore) InsertBulk(ctx context.Context, rows []*storage.FeeRevenueRow) error {
	if len(rows) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO fee_revenue (
			swap_id, user_id, tier, category, bucket, amount, timestamp
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, r := range rows {
		amount, _ := r.Amount.Float64()
		err = batch.Append(
			r.SwapID, r.UserID, r.Tier, r.Category, r.Bucket,
			amount, uint64(r.Timestamp),
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByTimeRange retrieves rows within [start, end] (inclusive).
func (s *FeeRevenueStore) GetByTimeRange(ctx context.Context, start, end int64) ([]*storage.FeeRevenueRow, error) {
	query := `
		SELECT swap_id, user_id, tier, category, bucket, amount, timestamp
		FROM fee_revenue
		WHERE timestamp >= ? AND timestamp <= ?
		ORDER BY timestamp ASC
	`

	chrows, err := s.conn.Query(ctx, query, uint64(start), uint64(end))
	if err != nil {
		return nil, fmt.Errorf("query by time range: %w", err)
	}
	defer chrows.Close()

	return scanFeeRevenue(chrows)
}

// scanFeeRevenue scans multiple rows.
func scanFeeRevenue(rows chRows) ([]*storage.FeeRevenueRow, error) {
	var result []*storage.FeeRevenueRow

	for rows.Next() {
		var r storage.FeeRevenueRow
		var amount float64
		var timestamp uint64

		err := rows.Scan(
			&r.SwapID, &r.UserID, &r.Tier, &r.Category, &r.Bucket,
			&amount, &timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("scan fee revenue row: %w", err)
		}

		r.Amount = decimal.NewFromFloat(amount)
		r.Timestamp = int64(timestamp)
		result = append(result, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate fee revenue rows: %w", err)
	}

	return result, nil
}
