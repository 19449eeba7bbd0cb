package domain

import "github.com/shopspring/decimal"

// Quote represents a time-limited, priced offer to convert a source asset
// amount into a target currency amount.
// Corresponds to quotes table in PostgreSQL.
type Quote struct {
	QuoteID        string          // deterministic hash, see idhash
	UserID         string          // requesting user
	OwnerAddress   string          // ledger address holding the asset token
	Asset          AssetDescriptor // source asset
	TargetCurrency string          // currency the user receives
	InputAmount    decimal.Decimal // asset amount in
	OutputAmount   decimal.Decimal // target currency amount out, net of slippage
	DiscountRate   float64         // appraisal discount from token validation (0..1]
	Route          Route           // selected execution route
	Fees           FeeBreakdown    // estimated platform fee
	Status         string          // see quote status constants
	CreatedAt      int64           // Unix timestamp in milliseconds
	ValidUntil     int64           // expiry timestamp in milliseconds
}

// Quote status constants. Transitions are active -> {executed, expired,
// cancelled}, each exactly once; the three right-hand states are terminal.
const (
	QuoteStatusActive    = "active"
	QuoteStatusExecuted  = "executed"
	QuoteStatusExpired   = "expired"
	QuoteStatusCancelled = "cancelled"
)

// Expired reports whether the quote is past its validity window at nowMs.
func (q *Quote) Expired(nowMs int64) bool {
	return nowMs > q.ValidUntil
}

// TerminalQuoteStatus reports whether status is one of the terminal quote states.
func TerminalQuoteStatus(status string) bool {
	switch status {
	case QuoteStatusExecuted, QuoteStatusExpired, QuoteStatusCancelled:
		return true
	}
	return false
}
