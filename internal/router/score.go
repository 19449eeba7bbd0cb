package router

import (
	"sort"

	"github.com/shopspring/decimal"

	"rwa-swap-engine/internal/domain"
)

// ScoreBreakdown holds the five normalized routing factors (each 0..100)
// and the weighted total.
type ScoreBreakdown struct {
	Liquidity    float64 // liquidity adequacy
	Cost         float64 // cost efficiency relative to the best offer
	History      float64 // health monitor performance
	TierAffinity float64 // preferred/fallback position for the caller's tier
	Speed        float64 // estimated settlement speed
	Total        float64
}

// scoreCandidates fills in the score of every candidate. Cost and speed are
// normalized against the best offer in the set, so scores are only comparable
// within one check session.
func (r *Router) scoreCandidates(candidates []Candidate, req CheckRequest) {
	if len(candidates) == 0 {
		return
	}

	bestRate := candidates[0].Quote.Rate
	minSettle := candidates[0].Caps.SettlementSeconds
	for _, c := range candidates[1:] {
		if c.Quote.Rate > bestRate {
			bestRate = c.Quote.Rate
		}
		if c.Caps.SettlementSeconds < minSettle {
			minSettle = c.Caps.SettlementSeconds
		}
	}

	prefs := r.cfg.TierPreferences[req.Tier]
	w := r.cfg.Weights

	for i := range candidates {
		c := &candidates[i]

		adequacy, _ := c.Quote.AvailableAmount.Div(req.Amount).Float64()
		if adequacy > 1 {
			adequacy = 1
		}
		c.Score.Liquidity = adequacy * 100

		if bestRate > 0 {
			c.Score.Cost = c.Quote.Rate / bestRate * 100
		}

		snap := r.monitor.Snapshot(c.Provider)
		c.Score.History = (0.6*snap.SuccessRate + 0.4*snap.Uptime) * 100

		c.Score.TierAffinity = tierAffinity(prefs, c.Provider)

		if c.Caps.SettlementSeconds <= 0 {
			c.Score.Speed = 100
		} else {
			c.Score.Speed = float64(minSettle) / float64(c.Caps.SettlementSeconds) * 100
		}

		c.Score.Total = w.Liquidity*c.Score.Liquidity +
			w.Cost*c.Score.Cost +
			w.History*c.Score.History +
			w.TierAffinity*c.Score.TierAffinity +
			w.Speed*c.Score.Speed
	}
}

// tierAffinity scores a provider's position in the tier's ordered preference
// list. First choice scores full, later entries decay, absent scores zero.
func tierAffinity(prefs []string, name string) float64 {
	for i, p := range prefs {
		if p == name {
			score := 100 - float64(i)*20
			if score < 20 {
				score = 20
			}
			return score
		}
	}
	return 0
}

// SelectRoute combines the highest-scoring candidates greedily until the
// requested amount is covered, never drawing more than a provider offered.
// Returns InsufficientLiquidityError when the offers cannot cover the amount.
func (r *Router) SelectRoute(candidates []Candidate, req CheckRequest) (*domain.Route, error) {
	sorted := make([]Candidate, len(candidates))
	copy(sorted, candidates)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Score.Total != sorted[j].Score.Total {
			return sorted[i].Score.Total > sorted[j].Score.Total
		}
		// Ties break toward faster settlement.
		return sorted[i].Caps.SettlementSeconds < sorted[j].Caps.SettlementSeconds
	})

	var available decimal.Decimal
	for _, c := range sorted {
		available = available.Add(c.Quote.AvailableAmount)
	}
	if available.LessThan(req.Amount) {
		return nil, &InsufficientLiquidityError{Requested: req.Amount, Available: available}
	}

	route := &domain.Route{}
	remaining := req.Amount
	weightedRate := decimal.Zero

	for _, c := range sorted {
		if !remaining.IsPositive() {
			break
		}
		take := c.Quote.AvailableAmount
		if take.GreaterThan(remaining) {
			take = remaining
		}
		out := take.Mul(decimal.NewFromFloat(c.Quote.Rate))

		route.Hops = append(route.Hops, domain.Hop{
			Venue:        domain.VenueProvider,
			Provider:     c.Provider,
			InputAmount:  take,
			OutputAmount: out,
			Rate:         c.Quote.Rate,
			Confidence:   c.Quote.Confidence,
		})
		route.TotalInput = route.TotalInput.Add(take)
		route.TotalOutput = route.TotalOutput.Add(out)
		weightedRate = weightedRate.Add(take.Mul(decimal.NewFromFloat(c.Quote.Rate)))
		remaining = remaining.Sub(take)
	}

	blended, _ := weightedRate.Div(route.TotalInput).Float64()
	route.BlendedRate = blended
	return route, nil
}
