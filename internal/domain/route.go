package domain

import "github.com/shopspring/decimal"

// Route is the concrete sequence of venues used to fulfil a swap.
// Hop outputs must cover the requested amount without double-counting
// any single provider's capacity.
type Route struct {
	Hops        []Hop           // ordered execution hops
	TotalInput  decimal.Decimal // sum of hop inputs
	TotalOutput decimal.Decimal // sum of hop outputs
	BlendedRate float64         // output-weighted average rate across hops
	Slippage    float64         // estimated fractional slippage for the route
}

// Hop identifies a single provider or ledger venue within a route.
type Hop struct {
	Venue        string          // see venue constants
	Provider     string          // provider name, or ledger path label
	InputAmount  decimal.Decimal // amount routed through this hop
	OutputAmount decimal.Decimal // expected output from this hop
	Rate         float64         // quoted conversion rate
	Confidence   float64         // provider-reported confidence (0..1]
}

// Venue constants
const (
	VenueProvider  = "provider"  // external liquidity provider
	VenueAMM       = "amm"       // ledger-native constant-product pool
	VenueOrderBook = "orderbook" // ledger-native order book
	VenueTwoHop    = "two_hop"   // ledger-native path via an intermediate
)

// Empty reports whether the route has no hops.
func (r *Route) Empty() bool {
	return len(r.Hops) == 0
}

// Providers returns the ordered list of provider names across hops.
func (r *Route) Providers() []string {
	names := make([]string, 0, len(r.Hops))
	for _, h := range r.Hops {
		names = append(names, h.Provider)
	}
	return names
}
