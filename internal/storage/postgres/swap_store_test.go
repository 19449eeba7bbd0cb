package postgres

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rwa-swap-engine/internal/domain"
	"rwa-swap-engine/internal/storage"
)

func testSwap(swapID, quoteID string, createdAt int64) *domain.Swap {
	return &domain.Swap{
		SwapID:  swapID,
		QuoteID: quoteID,
		UserID:  "user-1",
		Status:  domain.SwapStatusPending,
		Steps: []domain.SwapStep{
			{Status: domain.SwapStatusPending, Timestamp: createdAt, Detail: "swap created"},
		},
		SettlementRefs: nil,
		OutputAmount:   decimal.Zero,
		FeesCollected:  decimal.Zero,
		CreatedAt:      createdAt,
		UpdatedAt:      createdAt,
	}
}

func TestSwapStore_InsertAndGetByID(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewSwapStore(pool)

	sw := testSwap("swap-1", "quote-1", 1700000000000)
	require.NoError(t, store.Insert(ctx, sw))

	got, err := store.GetByID(ctx, "swap-1")
	require.NoError(t, err)

	assert.Equal(t, sw.SwapID, got.SwapID)
	assert.Equal(t, sw.QuoteID, got.QuoteID)
	assert.Equal(t, domain.SwapStatusPending, got.Status)
	require.Len(t, got.Steps, 1)
	assert.Equal(t, "swap created", got.Steps[0].Detail)
	assert.Empty(t, got.SettlementRefs)
	assert.True(t, got.OutputAmount.IsZero())
}

func TestSwapStore_InsertDuplicate(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewSwapStore(pool)

	sw := testSwap("swap-dup", "quote-1", 1700000000000)
	require.NoError(t, store.Insert(ctx, sw))

	err := store.Insert(ctx, sw)
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestSwapStore_UpdatePersistsProgress(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewSwapStore(pool)

	sw := testSwap("swap-upd", "quote-1", 1700000000000)
	require.NoError(t, store.Insert(ctx, sw))

	sw.Status = domain.SwapStatusCompleted
	sw.Steps = append(sw.Steps,
		domain.SwapStep{Status: domain.SwapStatusSettling, Timestamp: 1700000001000, Detail: "alpha"},
		domain.SwapStep{Status: domain.SwapStatusCompleted, Timestamp: 1700000002000},
	)
	sw.SettlementRefs = []string{"alpha-stl-1"}
	sw.Provider = "alpha"
	sw.OutputAmount = decimal.NewFromFloat(136500.50)
	sw.FeesCollected = decimal.NewFromFloat(341.25)
	sw.UpdatedAt = 1700000002000
	require.NoError(t, store.Update(ctx, sw))

	got, err := store.GetByID(ctx, "swap-upd")
	require.NoError(t, err)

	assert.Equal(t, domain.SwapStatusCompleted, got.Status)
	require.Len(t, got.Steps, 3)
	assert.Equal(t, []string{"alpha-stl-1"}, got.SettlementRefs)
	assert.Equal(t, "alpha", got.Provider)
	assert.True(t, got.OutputAmount.Equal(decimal.NewFromFloat(136500.50)))
	assert.True(t, got.FeesCollected.Equal(decimal.NewFromFloat(341.25)))
	assert.Equal(t, int64(1700000002000), got.UpdatedAt)
}

func TestSwapStore_UpdateMissing(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewSwapStore(pool)

	err := store.Update(ctx, testSwap("swap-missing", "quote-1", 1700000000000))
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSwapStore_GetByQuoteIDOrdering(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewSwapStore(pool)

	require.NoError(t, store.Insert(ctx, testSwap("swap-b", "quote-x", 2000)))
	require.NoError(t, store.Insert(ctx, testSwap("swap-a", "quote-x", 1000)))
	require.NoError(t, store.Insert(ctx, testSwap("swap-other", "quote-y", 500)))

	got, err := store.GetByQuoteID(ctx, "quote-x")
	require.NoError(t, err)

	require.Len(t, got, 2)
	assert.Equal(t, "swap-a", got[0].SwapID)
	assert.Equal(t, "swap-b", got[1].SwapID)
}

func TestSwapStore_ListByStatus(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewSwapStore(pool)

	parked := testSwap("swap-parked", "quote-1", 1000)
	parked.Status = domain.SwapStatusFeeDistribution
	require.NoError(t, store.Insert(ctx, parked))

	done := testSwap("swap-done", "quote-2", 2000)
	done.Status = domain.SwapStatusCompleted
	require.NoError(t, store.Insert(ctx, done))

	got, err := store.ListByStatus(ctx, domain.SwapStatusFeeDistribution)
	require.NoError(t, err)

	require.Len(t, got, 1)
	assert.Equal(t, "swap-parked", got[0].SwapID)
}
