// Package ledger quotes and settles swaps against the shared ledger's
// native venues: constant-product pools, order books and two-hop paths
// through intermediate currencies.
package ledger

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

// ErrNoRouteFound means no ledger venue fills the amount within the
// configured slippage ceiling.
var ErrNoRouteFound = errors.New("no ledger route found within slippage tolerance")

// PoolState is a snapshot of a constant-product liquidity pool.
type PoolState struct {
	Base         string          // pool base currency
	Quote        string          // pool quote currency
	BaseReserve  decimal.Decimal // base-side reserve
	QuoteReserve decimal.Decimal // quote-side reserve
	FeePct       float64         // pool fee fraction taken from input
}

// Level is one price level of an order book.
type Level struct {
	Price  float64         // quote per base
	Amount decimal.Decimal // base amount offered at this price
}

// Book is the bid side of an order book for selling base into quote,
// sorted best price first.
type Book struct {
	Base string
	Quote string
	Bids []Level
}

// Depth returns the total base amount across all levels.
func (b *Book) Depth() decimal.Decimal {
	total := decimal.Zero
	for _, l := range b.Bids {
		total = total.Add(l.Amount)
	}
	return total
}

// SettlementTx is a settlement submission against the ledger.
type SettlementTx struct {
	SwapID       string
	Venue        string          // venue constant from domain
	Path         string          // venue path label, e.g. "GOLDRWA>USDC"
	InputAmount  decimal.Decimal
	OutputAmount decimal.Decimal
}

// Client reads on-ledger venue state and submits settlement transactions.
type Client interface {
	// PoolState returns the AMM pool for the pair, or storage.ErrNotFound.
	PoolState(ctx context.Context, base, quote string) (*PoolState, error)

	// OrderBook returns the order book for the pair, or storage.ErrNotFound.
	OrderBook(ctx context.Context, base, quote string) (*Book, error)

	// SubmitSettlement submits a settlement and returns its ledger reference.
	// A returned error means the transaction was not accepted.
	SubmitSettlement(ctx context.Context, tx SettlementTx) (string, error)
}
