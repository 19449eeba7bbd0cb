package clickhouse

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rwa-swap-engine/internal/domain"
)

func TestProviderAttemptStore_InsertBulkAndGetByTimeRange(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewProviderAttemptStore(conn)

	attempts := []*domain.ProviderAttempt{
		{SwapID: "swap-1", Provider: "alpha", Kind: domain.AttemptKindCheck, Success: true, LatencyMs: 120, Timestamp: 1000},
		{SwapID: "swap-1", Provider: "alpha", Kind: domain.AttemptKindExecute, Success: false, LatencyMs: 4800, Reason: "timeout", Timestamp: 2000},
		{SwapID: "swap-1", Provider: "beta", Kind: domain.AttemptKindExecute, Success: true, LatencyMs: 900, Timestamp: 3000},
		{SwapID: "swap-2", Provider: "gamma", Kind: domain.AttemptKindCheck, Success: true, LatencyMs: 80, Timestamp: 5000},
	}

	require.NoError(t, store.InsertBulk(ctx, attempts))

	// Inclusive bounds, ordered by timestamp ASC.
	got, err := store.GetByTimeRange(ctx, 2000, 5000)
	require.NoError(t, err)

	require.Len(t, got, 3)
	assert.Equal(t, "alpha", got[0].Provider)
	assert.False(t, got[0].Success)
	assert.Equal(t, "timeout", got[0].Reason)
	assert.Equal(t, int64(4800), got[0].LatencyMs)
	assert.Equal(t, "beta", got[1].Provider)
	assert.True(t, got[1].Success)
	assert.Equal(t, "gamma", got[2].Provider)
	assert.Equal(t, domain.AttemptKindCheck, got[2].Kind)
}

func TestProviderAttemptStore_InsertBulkEmpty(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewProviderAttemptStore(conn)

	require.NoError(t, store.InsertBulk(ctx, nil))

	got, err := store.GetByTimeRange(ctx, 0, 10000)
	require.NoError(t, err)
	assert.Empty(t, got)
}
