package ledger

import (
	"context"
	"fmt"
	"sync"

	"rwa-swap-engine/internal/storage"
)

// StubClient is an in-memory ledger Client for tests and the in-memory
// server mode. Venue state is set explicitly; settlements are recorded.
type StubClient struct {
	mu        sync.Mutex
	pools     map[string]*PoolState
	books     map[string]*Book
	submitErr error
	submitted []SettlementTx
	seq       int
}

// NewStubClient creates an empty StubClient.
func NewStubClient() *StubClient {
	return &StubClient{
		pools: make(map[string]*PoolState),
		books: make(map[string]*Book),
	}
}

func pairKey(base, quote string) string {
	return base + "|" + quote
}

// SetPool installs an AMM pool for the pair.
func (s *StubClient) SetPool(pool *PoolState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pools[pairKey(pool.Base, pool.Quote)] = pool
}

// SetBook installs an order book for the pair.
func (s *StubClient) SetBook(book *Book) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.books[pairKey(book.Base, book.Quote)] = book
}

// SetSubmitError makes subsequent settlement submissions fail.
func (s *StubClient) SetSubmitError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.submitErr = err
}

// Submitted returns the settlements accepted so far.
func (s *StubClient) Submitted() []SettlementTx {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]SettlementTx, len(s.submitted))
	copy(out, s.submitted)
	return out
}

// PoolState returns the configured pool or storage.ErrNotFound.
func (s *StubClient) PoolState(ctx context.Context, base, quote string) (*PoolState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pool, ok := s.pools[pairKey(base, quote)]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *pool
	return &cp, nil
}

// OrderBook returns the configured book or storage.ErrNotFound.
func (s *StubClient) OrderBook(ctx context.Context, base, quote string) (*Book, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	book, ok := s.books[pairKey(base, quote)]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *book
	cp.Bids = append([]Level{}, book.Bids...)
	return &cp, nil
}

// SubmitSettlement records the settlement and returns a synthetic reference.
func (s *StubClient) SubmitSettlement(ctx context.Context, tx SettlementTx) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.submitErr != nil {
		return "", s.submitErr
	}
	s.seq++
	s.submitted = append(s.submitted, tx)
	return fmt.Sprintf("ledger-stl-%d", s.seq), nil
}

var _ Client = (*StubClient)(nil)
