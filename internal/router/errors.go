package router

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// InsufficientLiquidityError means no provider combination covers the
// requested amount. The caller must re-quote; nothing was committed.
type InsufficientLiquidityError struct {
	Requested decimal.Decimal
	Available decimal.Decimal
}

func (e *InsufficientLiquidityError) Error() string {
	return fmt.Sprintf("insufficient liquidity: requested %s, available %s", e.Requested, e.Available)
}

// ProviderFailureError is a single provider's failure during execution.
// It is absorbed by the fallback chain and only surfaces when fallback
// is disabled.
type ProviderFailureError struct {
	Provider string
	Reason   string
}

func (e *ProviderFailureError) Error() string {
	return fmt.Sprintf("provider %s failed: %s", e.Provider, e.Reason)
}

// AttemptRecord is one execution attempt in a sourcing session.
type AttemptRecord struct {
	Provider  string
	Success   bool
	Reason    string // failure reason, empty on success
	LatencyMs int64
}

// AllProvidersFailedError means the fallback chain was exhausted. It carries
// the full attempt history for diagnostics.
type AllProvidersFailedError struct {
	Attempts []AttemptRecord
}

func (e *AllProvidersFailedError) Error() string {
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, fmt.Sprintf("%s: %s", a.Provider, a.Reason))
	}
	return fmt.Sprintf("all providers failed after %d attempts [%s]", len(e.Attempts), strings.Join(parts, "; "))
}
