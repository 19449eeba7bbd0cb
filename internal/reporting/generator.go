package reporting

import (
	"context"
	"fmt"
	"sort"
	"time"

	"rwa-swap-engine/internal/domain"
	"rwa-swap-engine/internal/storage"
)

// Generator produces reports from stored analytics data.
type Generator struct {
	attemptStore storage.ProviderAttemptStore
	revenueStore storage.FeeRevenueStore
	now          func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a new report generator.
func NewGenerator(attemptStore storage.ProviderAttemptStore, revenueStore storage.FeeRevenueStore) *Generator {
	return &Generator{
		attemptStore: attemptStore,
		revenueStore: revenueStore,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Generate produces a report for the [start, end] window (Unix ms, inclusive).
func (g *Generator) Generate(ctx context.Context, start, end int64) (*Report, error) {
	revenueRows, err := g.revenueStore.GetByTimeRange(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("load revenue rows: %w", err)
	}

	attempts, err := g.attemptStore.GetByTimeRange(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("load provider attempts: %w", err)
	}

	summary, byTier := summarizeRevenue(revenueRows)

	return &Report{
		GeneratedAt:    g.now(),
		WindowStart:    start,
		WindowEnd:      end,
		RevenueSummary: summary,
		RevenueByTier:  byTier,
		Providers:      summarizeProviders(attempts),
	}, nil
}

// summarizeRevenue folds bucket-level revenue rows into totals.
func summarizeRevenue(rows []*storage.FeeRevenueRow) (RevenueSummary, []TierRevenueRow) {
	byBucket := make(map[string]float64)
	tierRevenue := make(map[string]float64)
	tierSwaps := make(map[string]map[string]struct{})
	swaps := make(map[string]struct{})

	total := 0.0
	for _, r := range rows {
		amount, _ := r.Amount.Float64()
		total += amount
		byBucket[r.Bucket] += amount
		tierRevenue[r.Tier] += amount

		swaps[r.SwapID] = struct{}{}
		if tierSwaps[r.Tier] == nil {
			tierSwaps[r.Tier] = make(map[string]struct{})
		}
		tierSwaps[r.Tier][r.SwapID] = struct{}{}
	}

	summary := RevenueSummary{
		TotalRevenue: total,
		SwapCount:    len(swaps),
	}
	for bucket, revenue := range byBucket {
		summary.ByBucket = append(summary.ByBucket, BucketRevenueRow{Bucket: bucket, Revenue: revenue})
	}
	sort.Slice(summary.ByBucket, func(i, j int) bool {
		return summary.ByBucket[i].Bucket < summary.ByBucket[j].Bucket
	})

	var tiers []TierRevenueRow
	for tier, revenue := range tierRevenue {
		tiers = append(tiers, TierRevenueRow{
			Tier:      tier,
			Revenue:   revenue,
			SwapCount: len(tierSwaps[tier]),
		})
	}
	sort.Slice(tiers, func(i, j int) bool { return tiers[i].Tier < tiers[j].Tier })

	return summary, tiers
}

// summarizeProviders folds the attempt trail into per-provider rows.
func summarizeProviders(attempts []*domain.ProviderAttempt) []ProviderPerformanceRow {
	type acc struct {
		checks, executes, failures, successes int
		latencySum                            int64
	}
	byProvider := make(map[string]*acc)

	for _, a := range attempts {
		p := byProvider[a.Provider]
		if p == nil {
			p = &acc{}
			byProvider[a.Provider] = p
		}
		switch a.Kind {
		case domain.AttemptKindCheck:
			p.checks++
		case domain.AttemptKindExecute:
			p.executes++
		}
		if a.Success {
			p.successes++
		} else {
			p.failures++
		}
		p.latencySum += a.LatencyMs
	}

	var rows []ProviderPerformanceRow
	for provider, p := range byProvider {
		total := p.checks + p.executes
		row := ProviderPerformanceRow{
			Provider: provider,
			Checks:   p.checks,
			Executes: p.executes,
			Failures: p.failures,
		}
		if total > 0 {
			row.SuccessRate = float64(p.successes) / float64(total)
			row.AvgLatencyMs = float64(p.latencySum) / float64(total)
		}
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Provider < rows[j].Provider })

	return rows
}
