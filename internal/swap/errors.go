package swap

import (
	"fmt"
	"strings"
)

// ValidationError is a fatal problem with the request or the token itself.
// Never retried.
type ValidationError struct {
	Field  string // offending field, empty for token-level rejections
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation failed: %s", e.Reason)
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Reason)
}

// QuoteExpiredError means execution was attempted past the quote's TTL.
// The caller must request a fresh quote.
type QuoteExpiredError struct {
	QuoteID    string
	ValidUntil int64
}

func (e *QuoteExpiredError) Error() string {
	return fmt.Sprintf("quote %s expired at %d", e.QuoteID, e.ValidUntil)
}

// AlreadyExecutingError means a concurrent execution holds the quote's
// exclusivity lock. Never retried against the same quote.
type AlreadyExecutingError struct {
	QuoteID string
}

func (e *AlreadyExecutingError) Error() string {
	return fmt.Sprintf("quote %s is already being executed", e.QuoteID)
}

// CriticalSettlementError means a failure occurred after provider funds
// committed. Never auto-retried; the swap record retains the full step
// history and settlement references for manual reconciliation.
type CriticalSettlementError struct {
	SwapID         string
	SettlementRefs []string
	Reason         string
}

func (e *CriticalSettlementError) Error() string {
	return fmt.Sprintf("critical settlement failure swap=%s refs=[%s]: %s",
		e.SwapID, strings.Join(e.SettlementRefs, ","), e.Reason)
}
