package validation

import (
	"context"
	"sync"

	"rwa-swap-engine/internal/domain"
)

// Stub is a configurable in-process Validator for tests and the in-memory
// server mode. By default every token validates at the configured discount.
type Stub struct {
	mu       sync.Mutex
	result   Result
	err      error
	lastAddr string
}

// NewStub creates a Stub approving everything at the given discount rate.
func NewStub(discountRate float64) *Stub {
	return &Stub{
		result: Result{
			Valid:        true,
			DiscountRate: discountRate,
			Confidence:   1.0,
		},
	}
}

// SetResult replaces the verdict returned by subsequent calls.
func (s *Stub) SetResult(r Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.result = r
}

// SetError makes subsequent calls fail with err (nil clears).
func (s *Stub) SetError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// LastOwnerAddress returns the owner address from the most recent call.
func (s *Stub) LastOwnerAddress() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastAddr
}

// Validate returns the configured verdict.
func (s *Stub) Validate(ctx context.Context, token domain.AssetDescriptor, ownerAddress string) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastAddr = ownerAddress
	if s.err != nil {
		return nil, s.err
	}
	r := s.result
	return &r, nil
}

var _ Validator = (*Stub)(nil)
