package memory

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"rwa-swap-engine/internal/domain"
	"rwa-swap-engine/internal/storage"
)

func newTestQuote(id string, status string, validUntil int64) *domain.Quote {
	return &domain.Quote{
		QuoteID:        id,
		UserID:         "user1",
		TargetCurrency: "USDC",
		InputAmount:    decimal.NewFromInt(100000),
		OutputAmount:   decimal.NewFromInt(136000),
		DiscountRate:   0.70,
		Status:         status,
		CreatedAt:      1704067200000,
		ValidUntil:     validUntil,
	}
}

func TestQuoteStore_InsertAndGet(t *testing.T) {
	store := NewQuoteStore()
	ctx := context.Background()

	q := newTestQuote("q1", domain.QuoteStatusActive, 1704067230000)
	if err := store.Insert(ctx, q); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	got, err := store.GetByID(ctx, "q1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}

	if got.Status != domain.QuoteStatusActive {
		t.Errorf("Status mismatch: got %s", got.Status)
	}
	if !got.OutputAmount.Equal(decimal.NewFromInt(136000)) {
		t.Errorf("OutputAmount mismatch: got %s", got.OutputAmount)
	}
}

func TestQuoteStore_DuplicateKey(t *testing.T) {
	store := NewQuoteStore()
	ctx := context.Background()

	q := newTestQuote("q1", domain.QuoteStatusActive, 2000)
	if err := store.Insert(ctx, q); err != nil {
		t.Fatalf("First insert failed: %v", err)
	}

	err := store.Insert(ctx, q)
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}
}

func TestQuoteStore_GetMissing(t *testing.T) {
	store := NewQuoteStore()

	_, err := store.GetByID(context.Background(), "nope")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestQuoteStore_CompareAndSwapStatus(t *testing.T) {
	store := NewQuoteStore()
	ctx := context.Background()

	q := newTestQuote("q1", domain.QuoteStatusActive, 2000)
	if err := store.Insert(ctx, q); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	err := store.CompareAndSwapStatus(ctx, "q1", domain.QuoteStatusActive, domain.QuoteStatusExecuted)
	if err != nil {
		t.Fatalf("CAS failed: %v", err)
	}

	// Second CAS from active must conflict: the quote is single-use.
	err = store.CompareAndSwapStatus(ctx, "q1", domain.QuoteStatusActive, domain.QuoteStatusExecuted)
	if !errors.Is(err, storage.ErrStatusConflict) {
		t.Errorf("Expected ErrStatusConflict, got %v", err)
	}

	got, _ := store.GetByID(ctx, "q1")
	if got.Status != domain.QuoteStatusExecuted {
		t.Errorf("Expected executed, got %s", got.Status)
	}
}

func TestQuoteStore_CompareAndSwapMissing(t *testing.T) {
	store := NewQuoteStore()

	err := store.CompareAndSwapStatus(context.Background(), "nope", domain.QuoteStatusActive, domain.QuoteStatusExecuted)
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestQuoteStore_ConcurrentCASSingleWinner(t *testing.T) {
	store := NewQuoteStore()
	ctx := context.Background()

	q := newTestQuote("q1", domain.QuoteStatusActive, 2000)
	if err := store.Insert(ctx, q); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	const attempts = 32
	var wg sync.WaitGroup
	wins := make(chan struct{}, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if store.CompareAndSwapStatus(ctx, "q1", domain.QuoteStatusActive, domain.QuoteStatusExecuted) == nil {
				wins <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(wins)

	var n int
	for range wins {
		n++
	}
	if n != 1 {
		t.Errorf("Expected exactly 1 CAS winner, got %d", n)
	}
}

func TestQuoteStore_ListActiveBefore(t *testing.T) {
	store := NewQuoteStore()
	ctx := context.Background()

	quotes := []*domain.Quote{
		newTestQuote("q1", domain.QuoteStatusActive, 1000),
		newTestQuote("q2", domain.QuoteStatusActive, 3000),
		newTestQuote("q3", domain.QuoteStatusExecuted, 1000), // terminal, excluded
		newTestQuote("q4", domain.QuoteStatusActive, 5000),   // not yet expired
	}
	for _, q := range quotes {
		if err := store.Insert(ctx, q); err != nil {
			t.Fatalf("Insert %s failed: %v", q.QuoteID, err)
		}
	}

	result, err := store.ListActiveBefore(ctx, 4000)
	if err != nil {
		t.Fatalf("ListActiveBefore failed: %v", err)
	}

	if len(result) != 2 {
		t.Fatalf("Expected 2 expired-active quotes, got %d", len(result))
	}
	if result[0].QuoteID != "q1" || result[1].QuoteID != "q2" {
		t.Errorf("Unexpected order: %s, %s", result[0].QuoteID, result[1].QuoteID)
	}
}
