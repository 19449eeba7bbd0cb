package ledger

import "github.com/shopspring/decimal"

// ammOutput computes the constant-product output for swapping amountIn of
// base into quote, net of the pool fee, and the fractional slippage against
// the spot price.
func ammOutput(pool *PoolState, amountIn decimal.Decimal) (out decimal.Decimal, slippage float64) {
	if !pool.BaseReserve.IsPositive() || !pool.QuoteReserve.IsPositive() || !amountIn.IsPositive() {
		return decimal.Zero, 0
	}

	inNet := amountIn.Mul(decimal.NewFromFloat(1 - pool.FeePct))

	// x*y = k: out = y*dx / (x+dx)
	out = pool.QuoteReserve.Mul(inNet).Div(pool.BaseReserve.Add(inNet))

	// Slippage relative to executing the whole amount at spot.
	spotOut := amountIn.Mul(pool.QuoteReserve).Div(pool.BaseReserve)
	if spotOut.IsPositive() {
		ratio, _ := out.Div(spotOut).Float64()
		slippage = 1 - ratio
	}
	return out, slippage
}

// ammSpotRate returns the pool's marginal quote-per-base price.
func ammSpotRate(pool *PoolState) float64 {
	if !pool.BaseReserve.IsPositive() {
		return 0
	}
	rate, _ := pool.QuoteReserve.Div(pool.BaseReserve).Float64()
	return rate
}
