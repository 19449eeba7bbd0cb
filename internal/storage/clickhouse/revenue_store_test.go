package clickhouse

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rwa-swap-engine/internal/domain"
	"rwa-swap-engine/internal/storage"
)

func TestFeeRevenueStore_InsertBulkAndGetByTimeRange(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewFeeRevenueStore(conn)

	rows := []*storage.FeeRevenueRow{
		{SwapID: "swap-1", UserID: "user-1", Tier: domain.TierRetail, Category: domain.CategoryArt, Bucket: "platform", Amount: decimal.NewFromFloat(25.50), Timestamp: 1000},
		{SwapID: "swap-1", UserID: "user-1", Tier: domain.TierRetail, Category: domain.CategoryArt, Bucket: "liquidity", Amount: decimal.NewFromFloat(24.50), Timestamp: 1000},
		{SwapID: "swap-2", UserID: "user-2", Tier: domain.TierEnterprise, Category: domain.CategoryBonds, Bucket: "platform", Amount: decimal.NewFromFloat(60.75), Timestamp: 4000},
	}

	require.NoError(t, store.InsertBulk(ctx, rows))

	got, err := store.GetByTimeRange(ctx, 1000, 2000)
	require.NoError(t, err)

	require.Len(t, got, 2)
	for _, r := range got {
		assert.Equal(t, "swap-1", r.SwapID)
		assert.Equal(t, domain.TierRetail, r.Tier)
	}

	got, err = store.GetByTimeRange(ctx, 0, 10000)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "swap-2", got[2].SwapID)
	assert.InDelta(t, 60.75, got[2].Amount.InexactFloat64(), 1e-9)
}

func TestFeeRevenueStore_InsertBulkEmpty(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewFeeRevenueStore(conn)

	require.NoError(t, store.InsertBulk(ctx, nil))
}
