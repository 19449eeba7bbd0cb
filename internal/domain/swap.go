package domain

import "github.com/shopspring/decimal"

// Swap is the stateful execution of a previously issued quote.
// Corresponds to swaps table in PostgreSQL. At most one non-terminal Swap
// may exist per quote at any time; the quote status CAS enforces this.
type Swap struct {
	SwapID         string          // random UUID
	QuoteID        string          // the quote being executed
	UserID         string          // executing user
	Status         string          // see swap status constants
	Steps          []SwapStep      // ordered, append-only step log
	SettlementRefs []string        // provider/ledger settlement references
	Provider       string          // provider that ultimately sourced liquidity
	OutputAmount   decimal.Decimal // realized output amount
	FeesCollected  decimal.Decimal // total platform fee actually collected
	FailureReason  string          // populated for failed/critical swaps
	CreatedAt      int64           // Unix timestamp in milliseconds
	UpdatedAt      int64           // last transition timestamp in milliseconds
}

// SwapStep records a single state-machine transition.
type SwapStep struct {
	Status    string // state entered
	Timestamp int64  // Unix timestamp in milliseconds
	Detail    string // free-form context (provider name, error text, refs)
}

// Swap status constants. Flow:
// pending -> locking -> sourcing -> settling -> fee_distribution -> completed.
// pending/locking/sourcing may go to failed; settling may go to critical;
// pending/locking may go to cancelled. Terminal states have no out-edges.
const (
	SwapStatusPending         = "pending"
	SwapStatusLocking         = "locking"
	SwapStatusSourcing        = "sourcing"
	SwapStatusSettling        = "settling"
	SwapStatusFeeDistribution = "fee_distribution"
	SwapStatusCompleted       = "completed"
	SwapStatusFailed          = "failed"
	SwapStatusCritical        = "critical"
	SwapStatusCancelled       = "cancelled"
)

// TerminalSwapStatus reports whether status is terminal.
func TerminalSwapStatus(status string) bool {
	switch status {
	case SwapStatusCompleted, SwapStatusFailed, SwapStatusCritical, SwapStatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether the swap has reached a terminal state.
func (s *Swap) Terminal() bool {
	return TerminalSwapStatus(s.Status)
}
