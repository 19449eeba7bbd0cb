package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"rwa-swap-engine/internal/domain"
	"rwa-swap-engine/internal/storage"
)

// VolumeLedger is an in-memory implementation of storage.VolumeLedger.
type VolumeLedger struct {
	mu   sync.RWMutex
	data map[string]*domain.VolumeEntry // keyed by user_id|swap_id
}

// NewVolumeLedger creates a new in-memory volume ledger.
func NewVolumeLedger() *VolumeLedger {
	return &VolumeLedger{
		data: make(map[string]*domain.VolumeEntry),
	}
}

func volumeKey(userID, swapID string) string {
	return fmt.Sprintf("%s|%s", userID, swapID)
}

// Add appends a volume entry. Returns ErrDuplicateKey if (user_id, swap_id) exists.
func (l *VolumeLedger) Add(_ context.Context, e *domain.VolumeEntry) error {
	if e == nil || e.UserID == "" || e.SwapID == "" {
		return storage.ErrInvalidInput
	}

	key := volumeKey(e.UserID, e.SwapID)

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.data[key]; exists {
		return storage.ErrDuplicateKey
	}

	cp := *e
	l.data[key] = &cp
	return nil
}

// TrailingVolume sums volume for a user since the given timestamp (inclusive).
func (l *VolumeLedger) TrailingVolume(_ context.Context, userID string, sinceMs int64) (decimal.Decimal, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	total := decimal.Zero
	for _, e := range l.data {
		if e.UserID == userID && e.Timestamp >= sinceMs {
			total = total.Add(e.Amount)
		}
	}
	return total, nil
}

var _ storage.VolumeLedger = (*VolumeLedger)(nil)
