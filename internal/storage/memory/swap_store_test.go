package memory

import (
	"context"
	"errors"
	"testing"

	"rwa-swap-engine/internal/domain"
	"rwa-swap-engine/internal/storage"
)

func TestSwapStore_InsertAndGet(t *testing.T) {
	store := NewSwapStore()
	ctx := context.Background()

	swap := &domain.Swap{
		SwapID:    "s1",
		QuoteID:   "q1",
		UserID:    "user1",
		Status:    domain.SwapStatusPending,
		CreatedAt: 1704067200000,
	}

	if err := store.Insert(ctx, swap); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	got, err := store.GetByID(ctx, "s1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Status != domain.SwapStatusPending {
		t.Errorf("Status mismatch: got %s", got.Status)
	}
}

func TestSwapStore_DuplicateKey(t *testing.T) {
	store := NewSwapStore()
	ctx := context.Background()

	swap := &domain.Swap{SwapID: "s1", QuoteID: "q1", CreatedAt: 1000}
	if err := store.Insert(ctx, swap); err != nil {
		t.Fatalf("First insert failed: %v", err)
	}

	err := store.Insert(ctx, swap)
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}
}

func TestSwapStore_Update(t *testing.T) {
	store := NewSwapStore()
	ctx := context.Background()

	swap := &domain.Swap{SwapID: "s1", QuoteID: "q1", Status: domain.SwapStatusPending, CreatedAt: 1000}
	if err := store.Insert(ctx, swap); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	swap.Status = domain.SwapStatusSourcing
	swap.Steps = append(swap.Steps, domain.SwapStep{Status: domain.SwapStatusSourcing, Timestamp: 1001})
	if err := store.Update(ctx, swap); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	got, _ := store.GetByID(ctx, "s1")
	if got.Status != domain.SwapStatusSourcing {
		t.Errorf("Expected sourcing, got %s", got.Status)
	}
	if len(got.Steps) != 1 {
		t.Errorf("Expected 1 step, got %d", len(got.Steps))
	}
}

func TestSwapStore_UpdateMissing(t *testing.T) {
	store := NewSwapStore()

	err := store.Update(context.Background(), &domain.Swap{SwapID: "nope"})
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestSwapStore_GetByQuoteID(t *testing.T) {
	store := NewSwapStore()
	ctx := context.Background()

	swaps := []*domain.Swap{
		{SwapID: "s2", QuoteID: "q1", CreatedAt: 2000},
		{SwapID: "s1", QuoteID: "q1", CreatedAt: 1000},
		{SwapID: "s3", QuoteID: "q2", CreatedAt: 1500},
	}
	for _, s := range swaps {
		if err := store.Insert(ctx, s); err != nil {
			t.Fatalf("Insert %s failed: %v", s.SwapID, err)
		}
	}

	result, err := store.GetByQuoteID(ctx, "q1")
	if err != nil {
		t.Fatalf("GetByQuoteID failed: %v", err)
	}
	if len(result) != 2 {
		t.Fatalf("Expected 2 swaps, got %d", len(result))
	}
	if result[0].SwapID != "s1" {
		t.Errorf("Expected created_at ordering, got %s first", result[0].SwapID)
	}
}

func TestSwapStore_ListByStatus(t *testing.T) {
	store := NewSwapStore()
	ctx := context.Background()

	swaps := []*domain.Swap{
		{SwapID: "s1", QuoteID: "q1", Status: domain.SwapStatusCompleted, CreatedAt: 1000},
		{SwapID: "s2", QuoteID: "q2", Status: domain.SwapStatusFeeDistribution, CreatedAt: 2000},
		{SwapID: "s3", QuoteID: "q3", Status: domain.SwapStatusFeeDistribution, CreatedAt: 1500},
	}
	for _, s := range swaps {
		if err := store.Insert(ctx, s); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	result, err := store.ListByStatus(ctx, domain.SwapStatusFeeDistribution)
	if err != nil {
		t.Fatalf("ListByStatus failed: %v", err)
	}
	if len(result) != 2 {
		t.Fatalf("Expected 2 swaps, got %d", len(result))
	}
	if result[0].SwapID != "s3" {
		t.Errorf("Expected s3 first, got %s", result[0].SwapID)
	}
}

func TestSwapStore_CopyIsolation(t *testing.T) {
	store := NewSwapStore()
	ctx := context.Background()

	swap := &domain.Swap{
		SwapID:  "s1",
		QuoteID: "q1",
		Steps:   []domain.SwapStep{{Status: domain.SwapStatusPending, Timestamp: 1000}},
	}
	if err := store.Insert(ctx, swap); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	// Mutating the caller's copy must not leak into the store.
	swap.Steps[0].Status = domain.SwapStatusFailed

	got, _ := store.GetByID(ctx, "s1")
	if got.Steps[0].Status != domain.SwapStatusPending {
		t.Errorf("Store leaked caller mutation: %s", got.Steps[0].Status)
	}
}
