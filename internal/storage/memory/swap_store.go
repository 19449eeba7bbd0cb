package memory

import (
	"context"
	"sort"
	"sync"

	"rwa-swap-engine/internal/domain"
	"rwa-swap-engine/internal/storage"
)

// SwapStore is an in-memory implementation of storage.SwapStore.
type SwapStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Swap // keyed by swap_id
}

// NewSwapStore creates a new in-memory swap store.
func NewSwapStore() *SwapStore {
	return &SwapStore{
		data: make(map[string]*domain.Swap),
	}
}

// Insert adds a new swap. Returns ErrDuplicateKey if exists.
func (s *SwapStore) Insert(_ context.Context, swap *domain.Swap) error {
	if swap == nil || swap.SwapID == "" || swap.QuoteID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[swap.SwapID]; exists {
		return storage.ErrDuplicateKey
	}

	s.data[swap.SwapID] = copySwap(swap)
	return nil
}

// GetByID retrieves a swap by its ID. Returns ErrNotFound if not exists.
func (s *SwapStore) GetByID(_ context.Context, swapID string) (*domain.Swap, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	swap, ok := s.data[swapID]
	if !ok {
		return nil, storage.ErrNotFound
	}

	return copySwap(swap), nil
}

// Update replaces an existing swap record.
func (s *SwapStore) Update(_ context.Context, swap *domain.Swap) error {
	if swap == nil || swap.SwapID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[swap.SwapID]; !exists {
		return storage.ErrNotFound
	}

	s.data[swap.SwapID] = copySwap(swap)
	return nil
}

// GetByQuoteID retrieves all swaps for a quote, ordered by created_at ASC.
func (s *SwapStore) GetByQuoteID(_ context.Context, quoteID string) ([]*domain.Swap, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Swap
	for _, swap := range s.data {
		if swap.QuoteID == quoteID {
			result = append(result, copySwap(swap))
		}
	}

	sortSwaps(result)
	return result, nil
}

// ListByStatus retrieves swaps in the given status, ordered by created_at ASC.
func (s *SwapStore) ListByStatus(_ context.Context, status string) ([]*domain.Swap, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Swap
	for _, swap := range s.data {
		if swap.Status == status {
			result = append(result, copySwap(swap))
		}
	}

	sortSwaps(result)
	return result, nil
}

// copySwap deep-copies a swap including its step log and settlement refs.
func copySwap(s *domain.Swap) *domain.Swap {
	cp := *s
	cp.Steps = append([]domain.SwapStep(nil), s.Steps...)
	cp.SettlementRefs = append([]string(nil), s.SettlementRefs...)
	return &cp
}

func sortSwaps(swaps []*domain.Swap) {
	sort.Slice(swaps, func(i, j int) bool {
		if swaps[i].CreatedAt != swaps[j].CreatedAt {
			return swaps[i].CreatedAt < swaps[j].CreatedAt
		}
		return swaps[i].SwapID < swaps[j].SwapID
	})
}

var _ storage.SwapStore = (*SwapStore)(nil)
