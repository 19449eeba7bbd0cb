// Package reporting builds operator-facing revenue and provider reports
// from the analytics stores.
package reporting

import "time"

// Report is the rendered operations report for one time window.
type Report struct {
	GeneratedAt time.Time
	WindowStart int64 // Unix ms, inclusive
	WindowEnd   int64 // Unix ms, inclusive

	RevenueSummary RevenueSummary
	RevenueByTier  []TierRevenueRow
	Providers      []ProviderPerformanceRow
}

// RevenueSummary aggregates fee revenue across the window.
type RevenueSummary struct {
	TotalRevenue float64
	SwapCount    int
	ByBucket     []BucketRevenueRow
}

// BucketRevenueRow is revenue attributed to one distribution bucket.
type BucketRevenueRow struct {
	Bucket  string
	Revenue float64
}

// TierRevenueRow is revenue attributed to one fee tier.
type TierRevenueRow struct {
	Tier      string
	Revenue   float64
	SwapCount int
}

// ProviderPerformanceRow summarizes one provider's attempts in the window.
type ProviderPerformanceRow struct {
	Provider     string
	Checks       int
	Executes     int
	Failures     int
	SuccessRate  float64 // across all attempt kinds
	AvgLatencyMs float64
}
