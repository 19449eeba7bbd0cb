package clickhouse

import (
	"context"
	"fmt"

	"rwa-swap-engine/internal/domain"
	"rwa-swap-engine/internal/storage"
)

// ProviderAttemptStore implements storage.ProviderAttemptStore using ClickHouse.
// Attempts are append-only; the MergeTree table has no uniqueness constraint.
type ProviderAttemptStore struct {
	conn *Conn
}

// NewProviderAttemptStore creates a new ProviderAttemptStore.
func NewProviderAttemptStore(conn *Conn) *ProviderAttemptStore {
	return &ProviderAttemptStore{conn: conn}
}

// Compile-time interface check.
var _ storage.ProviderAttemptStore = (*ProviderAttemptStore)(nil)

// InsertBulk appends attempt records.
func (s *ProviderAttemptStore) InsertBulk(ctx context.Context, attempts []*domain.ProviderAttempt) error {
	if len(attempts) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO provider_attempts (
			swap_id, provider, kind, success, latency_ms, reason, timestamp
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, a := range attempts {
		var success uint8
		if a.Success {
			success = 1
		}
		err = batch.Append(
			a.SwapID, a.Provider, a.Kind, success,
			a.LatencyMs, a.Reason, uint64(a.Timestamp),
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

// GetByTimeRange retrieves attempts within [start, end] (inclusive).
func (s *ProviderAttemptStore) GetByTimeRange(ctx context.Context, start, end int64) ([]*domain.ProviderAttempt, error) {
	query := `
		SELECT swap_id, provider, kind, success, latency_ms, reason, timestamp
		FROM provider_attempts
		WHERE timestamp >= ? AND timestamp <= ?
		ORDER BY timestamp ASC
	`

	rows, err := s.conn.Query(ctx, query, uint64(start), uint64(end))
	if err != nil {
		return nil, fmt.Errorf("query by time range: %w", err)
	}
	defer rows.Close()

	return scanProviderAttempts(rows)
}

// scanProviderAttempts scans multiple rows.
func scanProviderAttempts(rows chRows) ([]*domain.ProviderAttempt, error) {
	var attempts []*domain.ProviderAttempt

	for rows.Next() {
		var a domain.ProviderAttempt
		var success uint8
		var timestamp uint64

		err := rows.Scan(
			&a.SwapID, &a.Provider, &a.Kind, &success,
			&a.LatencyMs, &a.Reason, &timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("scan provider attempt row: %w", err)
		}

		a.Success = success == 1
		a.Timestamp = int64(timestamp)
		attempts = append(attempts, &a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate provider attempt rows: %w", err)
	}

	return attempts, nil
}
