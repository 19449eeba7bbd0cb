package memory

import (
	"context"
	"sort"
	"sync"

	"rwa-swap-engine/internal/domain"
	"rwa-swap-engine/internal/storage"
)

// QuoteStore is an in-memory implementation of storage.QuoteStore.
// CompareAndSwapStatus is linearizable under the store mutex.
type QuoteStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Quote // keyed by quote_id
}

// NewQuoteStore creates a new in-memory quote store.
func NewQuoteStore() *QuoteStore {
	return &QuoteStore{
		data: make(map[string]*domain.Quote),
	}
}

// Insert adds a new quote. Returns ErrDuplicateKey if exists.
func (s *QuoteStore) Insert(_ context.Context, q *domain.Quote) error {
	if q == nil || q.QuoteID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[q.QuoteID]; exists {
		return storage.ErrDuplicateKey
	}

	cp := *q
	s.data[q.QuoteID] = &cp
	return nil
}

// GetByID retrieves a quote by its ID. Returns ErrNotFound if not exists.
func (s *QuoteStore) GetByID(_ context.Context, quoteID string) (*domain.Quote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	q, ok := s.data[quoteID]
	if !ok {
		return nil, storage.ErrNotFound
	}

	cp := *q
	return &cp, nil
}

// CompareAndSwapStatus atomically transitions quote status from -> to.
func (s *QuoteStore) CompareAndSwapStatus(_ context.Context, quoteID, from, to string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	q, ok := s.data[quoteID]
	if !ok {
		return storage.ErrNotFound
	}
	if q.Status != from {
		return storage.ErrStatusConflict
	}

	q.Status = to
	return nil
}

// ListActiveBefore retrieves active quotes with valid_until < beforeMs.
func (s *QuoteStore) ListActiveBefore(_ context.Context, beforeMs int64) ([]*domain.Quote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Quote
	for _, q := range s.data {
		if q.Status == domain.QuoteStatusActive && q.ValidUntil < beforeMs {
			cp := *q
			result = append(result, &cp)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].ValidUntil < result[j].ValidUntil
	})

	return result, nil
}

var _ storage.QuoteStore = (*QuoteStore)(nil)
