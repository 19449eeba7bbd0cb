package memory

import (
	"context"
	"sort"
	"sync"

	"rwa-swap-engine/internal/domain"
	"rwa-swap-engine/internal/storage"
)

// ProviderAttemptStore is an in-memory implementation of
// storage.ProviderAttemptStore. Append-only.
type ProviderAttemptStore struct {
	mu   sync.RWMutex
	data []*domain.ProviderAttempt
}

// NewProviderAttemptStore creates a new in-memory attempt store.
func NewProviderAttemptStore() *ProviderAttemptStore {
	return &ProviderAttemptStore{}
}

// InsertBulk appends attempt records.
func (s *ProviderAttemptStore) InsertBulk(_ context.Context, attempts []*domain.ProviderAttempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, a := range attempts {
		if a == nil || a.Provider == "" {
			return storage.ErrInvalidInput
		}
		cp := *a
		s.data = append(s.data, &cp)
	}
	return nil
}

// GetByTimeRange retrieves attempts within [start, end], ordered by timestamp ASC.
func (s *ProviderAttemptStore) GetByTimeRange(_ context.Context, start, end int64) ([]*domain.ProviderAttempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.ProviderAttempt
	for _, a := range s.data {
		if a.Timestamp >= start && a.Timestamp <= end {
			cp := *a
			result = append(result, &cp)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Timestamp < result[j].Timestamp
	})

	return result, nil
}

var _ storage.ProviderAttemptStore = (*ProviderAttemptStore)(nil)

// FeeRevenueStore is an in-memory implementation of storage.FeeRevenueStore.
// Append-only.
type FeeRevenueStore struct {
	mu   sync.RWMutex
	data []*storage.FeeRevenueRow
}

// NewFeeRevenueStore creates a new in-memory revenue store.
func NewFeeRevenueStore() *FeeRevenueStore {
	return &FeeRevenueStore{}
}

// InsertBulk appends revenue rows.
func (s *FeeRevenueStore) InsertBulk(_ context.Context, rows []*storage.FeeRevenueRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range rows {
		if r == nil || r.SwapID == "" || r.Bucket == "" {
			return storage.ErrInvalidInput
		}
		cp := *r
		s.data = append(s.data, &cp)
	}
	return nil
}

// GetByTimeRange retrieves rows within [start, end], ordered by timestamp ASC.
func (s *FeeRevenueStore) GetByTimeRange(_ context.Context, start, end int64) ([]*storage.FeeRevenueRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*storage.FeeRevenueRow
	for _, r := range s.data {
		if r.Timestamp >= start && r.Timestamp <= end {
			cp := *r
			result = append(result, &cp)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Timestamp < result[j].Timestamp
	})

	return result, nil
}

var _ storage.FeeRevenueStore = (*FeeRevenueStore)(nil)
