package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"rwa-swap-engine/internal/domain"
	"rwa-swap-engine/internal/storage"
)

// SwapStore implements storage.SwapStore using PostgreSQL.
type SwapStore struct {
	pool *Pool
}

// NewSwapStore creates a new SwapStore.
func NewSwapStore(pool *Pool) *SwapStore {
	return &SwapStore{pool: pool}
}

// Compile-time interface check.
var _ storage.SwapStore = (*SwapStore)(nil)

// Insert adds a new swap. Returns ErrDuplicateKey if swap_id exists.
func (s *SwapStore) Insert(ctx context.Context, sw *domain.Swap) error {
	stepsJSON, refsJSON, err := marshalSwapJSON(sw)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO swaps (
			swap_id, quote_id, user_id, status, steps, settlement_refs,
			provider, output_amount, fees_collected, failure_reason,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err = s.pool.Exec(ctx, query,
		sw.SwapID,
		sw.QuoteID,
		sw.UserID,
		sw.Status,
		stepsJSON,
		refsJSON,
		sw.Provider,
		sw.OutputAmount,
		sw.FeesCollected,
		sw.FailureReason,
		sw.CreatedAt,
		sw.UpdatedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert swap: %w", err)
	}
	return nil
}

// Update replaces an existing swap record. Returns ErrNotFound if not exists.
func (s *SwapStore) Update(ctx context.Context, sw *domain.Swap) error {
	stepsJSON, refsJSON, err := marshalSwapJSON(sw)
	if err != nil {
		return err
	}

	query := `
		UPDATE swaps SET
			status = $2, steps = $3, settlement_refs = $4, provider = $5,
			output_amount = $6, fees_collected = $7, failure_reason = $8,
			updated_at = $9
		WHERE swap_id = $1
	`

	tag, err := s.pool.Exec(ctx, query,
		sw.SwapID,
		sw.Status,
		stepsJSON,
		refsJSON,
		sw.Provider,
		sw.OutputAmount,
		sw.FeesCollected,
		sw.FailureReason,
		sw.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update swap: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// GetByID retrieves a swap by its ID. Returns ErrNotFound if not exists.
func (s *SwapStore) GetByID(ctx context.Context, swapID string) (*domain.Swap, error) {
	query := swapSelect + ` WHERE swap_id = $1`

	sw, err := scanSwap(s.pool.QueryRow(ctx, query, swapID))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get swap by id: %w", err)
	}
	return sw, nil
}

// GetByQuoteID retrieves all swaps for a quote, ordered by created_at ASC.
func (s *SwapStore) GetByQuoteID(ctx context.Context, quoteID string) ([]*domain.Swap, error) {
	query := swapSelect + `
		WHERE quote_id = $1
		ORDER BY created_at ASC, swap_id ASC
	`
	return s.querySwaps(ctx, query, quoteID)
}

// ListByStatus retrieves swaps in the given status, ordered by created_at ASC.
func (s *SwapStore) ListByStatus(ctx context.Context, status string) ([]*domain.Swap, error) {
	query := swapSelect + `
		WHERE status = $1
		ORDER BY created_at ASC, swap_id ASC
	`
	return s.querySwaps(ctx, query, status)
}

func (s *SwapStore) querySwaps(ctx context.Context, query string, arg any) ([]*domain.Swap, error) {
	rows, err := s.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("query swaps: %w", err)
	}
	defer rows.Close()

	var swaps []*domain.Swap
	for rows.Next() {
		sw, err := scanSwap(rows)
		if err != nil {
			return nil, fmt.Errorf("scan swap row: %w", err)
		}
		swaps = append(swaps, sw)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate swap rows: %w", err)
	}
	return swaps, nil
}

const swapSelect = `
	SELECT swap_id, quote_id, user_id, status, steps, settlement_refs,
	       provider, output_amount, fees_collected, failure_reason,
	       created_at, updated_at
	FROM swaps
`

func marshalSwapJSON(sw *domain.Swap) (steps, refs []byte, err error) {
	steps, err = json.Marshal(sw.Steps)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal steps: %w", err)
	}
	if sw.SettlementRefs == nil {
		refs = []byte("[]")
	} else {
		refs, err = json.Marshal(sw.SettlementRefs)
		if err != nil {
			return nil, nil, fmt.Errorf("marshal settlement refs: %w", err)
		}
	}
	return steps, refs, nil
}

// scanSwap scans one swap row.
func scanSwap(row pgx.Row) (*domain.Swap, error) {
	var sw domain.Swap
	var stepsJSON, refsJSON []byte

	err := row.Scan(
		&sw.SwapID,
		&sw.QuoteID,
		&sw.UserID,
		&sw.Status,
		&stepsJSON,
		&refsJSON,
		&sw.Provider,
		&sw.OutputAmount,
		&sw.FeesCollected,
		&sw.FailureReason,
		&sw.CreatedAt,
		&sw.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(stepsJSON, &sw.Steps); err != nil {
		return nil, fmt.Errorf("unmarshal steps: %w", err)
	}
	if err := json.Unmarshal(refsJSON, &sw.SettlementRefs); err != nil {
		return nil, fmt.Errorf("unmarshal settlement refs: %w", err)
	}
	return &sw, nil
}
