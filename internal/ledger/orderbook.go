package ledger

import "github.com/shopspring/decimal"

// bookFill is the result of walking an order book.
type bookFill struct {
	Filled   decimal.Decimal // base amount actually filled
	Out      decimal.Decimal // quote received
	VWAP     float64         // volume-weighted average price
	Slippage float64         // VWAP shortfall against the best level
	Complete bool            // whether the full amount was filled
}

// walkBook fills amountIn against the book's levels best-to-worst,
// deterministically, stopping exactly at the requested amount. It never
// overfills: the final level is taken partially if needed.
func walkBook(book *Book, amountIn decimal.Decimal) bookFill {
	var fill bookFill
	remaining := amountIn

	for _, level := range book.Bids {
		if !remaining.IsPositive() {
			break
		}
		take := level.Amount
		if take.GreaterThan(remaining) {
			take = remaining
		}
		fill.Filled = fill.Filled.Add(take)
		fill.Out = fill.Out.Add(take.Mul(decimal.NewFromFloat(level.Price)))
		remaining = remaining.Sub(take)
	}

	fill.Complete = remaining.IsZero()
	if fill.Filled.IsPositive() {
		vwap, _ := fill.Out.Div(fill.Filled).Float64()
		fill.VWAP = vwap
		if len(book.Bids) > 0 && book.Bids[0].Price > 0 {
			fill.Slippage = 1 - vwap/book.Bids[0].Price
		}
	}
	return fill
}
