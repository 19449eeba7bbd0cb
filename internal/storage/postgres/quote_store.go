package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"rwa-swap-engine/internal/domain"
	"rwa-swap-engine/internal/storage"
)

// QuoteStore implements storage.QuoteStore using PostgreSQL.
// The status column is the swap exclusivity lock; CompareAndSwapStatus is a
// single conditional UPDATE and therefore linearizable.
type QuoteStore struct {
	pool *Pool
}

// NewQuoteStore creates a new QuoteStore.
func NewQuoteStore(pool *Pool) *QuoteStore {
	return &QuoteStore{pool: pool}
}

// Compile-time interface check.
var _ storage.QuoteStore = (*QuoteStore)(nil)

// Insert adds a new quote. Returns ErrDuplicateKey if quote_id exists.
func (s *QuoteStore) Insert(ctx context.Context, q *domain.Quote) error {
	routeJSON, err := json.Marshal(q.Route)
	if err != nil {
		return fmt.Errorf("marshal route: %w", err)
	}
	feesJSON, err := json.Marshal(q.Fees)
	if err != nil {
		return fmt.Errorf("marshal fees: %w", err)
	}

	query := `
		INSERT INTO quotes (
			quote_id, user_id, owner_address, currency_code, issuer, category,
			target_currency, input_amount, output_amount, discount_rate,
			route, fees, status, created_at, valid_until
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`

	_, err = s.pool.Exec(ctx, query,
		q.QuoteID,
		q.UserID,
		q.OwnerAddress,
		q.Asset.CurrencyCode,
		q.Asset.Issuer,
		q.Asset.Category,
		q.TargetCurrency,
		q.InputAmount,
		q.OutputAmount,
		q.DiscountRate,
		routeJSON,
		feesJSON,
		q.Status,
		q.CreatedAt,
		q.ValidUntil,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert quote: %w", err)
	}
	return nil
}

// GetByID retrieves a quote by its ID. Returns ErrNotFound if not exists.
func (s *QuoteStore) GetByID(ctx context.Context, quoteID string) (*domain.Quote, error) {
	query := quoteSelect + ` WHERE quote_id = $1`

	q, err := scanQuote(s.pool.QueryRow(ctx, query, quoteID))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get quote by id: %w", err)
	}
	return q, nil
}

// CompareAndSwapStatus atomically transitions the quote between statuses.
func (s *QuoteStore) CompareAndSwapStatus(ctx context.Context, quoteID, from, to string) error {
	query := `UPDATE quotes SET status = $3 WHERE quote_id = $1 AND status = $2`

	tag, err := s.pool.Exec(ctx, query, quoteID, from, to)
	if err != nil {
		return fmt.Errorf("cas quote status: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	// Distinguish a missing quote from a lost race.
	var exists bool
	err = s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM quotes WHERE quote_id = $1)`, quoteID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check quote exists: %w", err)
	}
	if !exists {
		return storage.ErrNotFound
	}
	return storage.ErrStatusConflict
}

// ListActiveBefore retrieves active quotes expiring strictly before the
// given timestamp, ordered by valid_until ASC.
func (s *QuoteStore) ListActiveBefore(ctx context.Context, beforeMs int64) ([]*domain.Quote, error) {
	query := quoteSelect + `
		WHERE status = 'active' AND valid_until < $1
		ORDER BY valid_until ASC, quote_id ASC
	`

	rows, err := s.pool.Query(ctx, query, beforeMs)
	if err != nil {
		return nil, fmt.Errorf("list active quotes: %w", err)
	}
	defer rows.Close()

	var quotes []*domain.Quote
	for rows.Next() {
		q, err := scanQuote(rows)
		if err != nil {
			return nil, fmt.Errorf("scan quote row: %w", err)
		}
		quotes = append(quotes, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate quote rows: %w", err)
	}
	return quotes, nil
}

const quoteSelect = `
	SELECT quote_id, user_id, owner_address, currency_code, issuer, category,
	       target_currency, input_amount, output_amount, discount_rate,
	       route, fees, status, created_at, valid_until
	FROM quotes
`

// scanQuote scans one quote row.
func scanQuote(row pgx.Row) (*domain.Quote, error) {
	var q domain.Quote
	var routeJSON, feesJSON []byte

	err := row.Scan(
		&q.QuoteID,
		&q.UserID,
		&q.OwnerAddress,
		&q.Asset.CurrencyCode,
		&q.Asset.Issuer,
		&q.Asset.Category,
		&q.TargetCurrency,
		&q.InputAmount,
		&q.OutputAmount,
		&q.DiscountRate,
		&routeJSON,
		&feesJSON,
		&q.Status,
		&q.CreatedAt,
		&q.ValidUntil,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(routeJSON, &q.Route); err != nil {
		return nil, fmt.Errorf("unmarshal route: %w", err)
	}
	if err := json.Unmarshal(feesJSON, &q.Fees); err != nil {
		return nil, fmt.Errorf("unmarshal fees: %w", err)
	}
	q.Asset.Amount = q.InputAmount
	return &q, nil
}
