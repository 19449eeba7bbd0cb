package swap

import (
	"context"
	"log"
	"time"

	"rwa-swap-engine/internal/domain"
	"rwa-swap-engine/internal/observability"
	"rwa-swap-engine/internal/storage"
)

// Sweeper expires stale quotes in the background. Each expiry goes through
// the same status CAS as execution, so a sweep can never clobber a quote an
// execution just locked.
type Sweeper struct {
	quotes   storage.QuoteStore
	interval time.Duration
	metrics  *observability.Metrics
	logger   *log.Logger
}

// NewSweeper creates a Sweeper.
func NewSweeper(quotes storage.QuoteStore, interval time.Duration, metrics *observability.Metrics, logger *log.Logger) *Sweeper {
	if logger == nil {
		logger = log.Default()
	}
	return &Sweeper{quotes: quotes, interval: interval, metrics: metrics, logger: logger}
}

// Run sweeps on the configured interval until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.SweepOnce(ctx)
		}
	}
}

// SweepOnce expires every active quote past its validity window. Returns
// the number of quotes expired.
func (s *Sweeper) SweepOnce(ctx context.Context) int {
	nowMs := time.Now().UnixMilli()

	stale, err := s.quotes.ListActiveBefore(ctx, nowMs)
	if err != nil {
		s.logger.Printf("[sweeper] list active quotes: %v", err)
		return 0
	}

	expired := 0
	for _, q := range stale {
		err := s.quotes.CompareAndSwapStatus(ctx, q.QuoteID, domain.QuoteStatusActive, domain.QuoteStatusExpired)
		if err != nil {
			// Lost the race to an execution or another sweep; fine either way.
			continue
		}
		expired++
		if s.metrics != nil {
			s.metrics.QuotesExpired.Inc()
		}
	}

	if expired > 0 {
		s.logger.Printf("[sweeper] expired %d quotes", expired)
	}
	return expired
}
