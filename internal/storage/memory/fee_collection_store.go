package memory

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	"rwa-swap-engine/internal/domain"
	"rwa-swap-engine/internal/storage"
)

// FeeCollectionStore is an in-memory implementation of storage.FeeCollectionStore.
type FeeCollectionStore struct {
	mu   sync.RWMutex
	data map[string]*collection // keyed by swap_id
}

type collection struct {
	userID    string
	breakdown domain.FeeBreakdown
	timestamp int64
}

// NewFeeCollectionStore creates a new in-memory fee collection store.
func NewFeeCollectionStore() *FeeCollectionStore {
	return &FeeCollectionStore{
		data: make(map[string]*collection),
	}
}

// Record stores a collected fee breakdown. Returns ErrDuplicateKey if a
// collection for swap_id was already recorded.
func (s *FeeCollectionStore) Record(_ context.Context, swapID, userID string, b *domain.FeeBreakdown, atMs int64) error {
	if swapID == "" || b == nil {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[swapID]; exists {
		return storage.ErrDuplicateKey
	}

	cp := *b
	cp.Buckets = append([]domain.FeeBucket(nil), b.Buckets...)
	s.data[swapID] = &collection{userID: userID, breakdown: cp, timestamp: atMs}
	return nil
}

// TotalCollected returns the summed total fee across all collections.
func (s *FeeCollectionStore) TotalCollected(_ context.Context) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := decimal.Zero
	for _, c := range s.data {
		total = total.Add(c.breakdown.Total)
	}
	return total, nil
}

var _ storage.FeeCollectionStore = (*FeeCollectionStore)(nil)
