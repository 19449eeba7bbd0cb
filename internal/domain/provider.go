package domain

import "github.com/shopspring/decimal"

// Capabilities are the static bounds of a liquidity provider.
// Loaded from configuration, read-only after startup.
type Capabilities struct {
	MinAmount           decimal.Decimal // smallest acceptable swap amount
	MaxAmount           decimal.Decimal // largest acceptable swap amount
	SupportedCategories []string        // asset categories the provider accepts
	SettlementSeconds   int             // estimated settlement time
}

// Supports reports whether the provider can handle the given category and amount.
func (c Capabilities) Supports(category string, amount decimal.Decimal) bool {
	if amount.LessThan(c.MinAmount) || amount.GreaterThan(c.MaxAmount) {
		return false
	}
	for _, sc := range c.SupportedCategories {
		if sc == category {
			return true
		}
	}
	return false
}

// HealthSnapshot is a point-in-time view of a provider's rolling metrics.
// Mutated only by the health monitor after each attempt.
type HealthSnapshot struct {
	Provider     string  // provider name
	SuccessRate  float64 // fraction of recent attempts that succeeded (0..1)
	AvgLatencyMs float64 // average latency over the rolling window
	Uptime       float64 // exponentially decayed availability (0..1)
	Attempts     int     // attempts currently in the window
}

// ProviderAttempt is one execution or liquidity-check attempt against a
// provider. Persisted append-only for audit and reporting.
type ProviderAttempt struct {
	SwapID    string // swap the attempt belongs to, empty for quote checks
	Provider  string // provider name
	Kind      string // "check" | "execute"
	Success   bool   // whether the attempt succeeded
	LatencyMs int64  // observed latency
	Reason    string // failure reason, empty on success
	Timestamp int64  // Unix timestamp in milliseconds
}

// Attempt kind constants
const (
	AttemptKindCheck   = "check"
	AttemptKindExecute = "execute"
)
