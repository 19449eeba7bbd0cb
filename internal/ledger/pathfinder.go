package ledger

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/shopspring/decimal"

	"rwa-swap-engine/internal/config"
	"rwa-swap-engine/internal/domain"
	"rwa-swap-engine/internal/storage"
)

// Confidence model for candidate routes. Order books earn a bonus when
// their depth comfortably covers the request; every extra hop costs.
const (
	confidenceAMM       = 0.95
	confidenceOrderBook = 0.90
	depthBonus          = 0.05
	twoHopPenalty       = 0.85
)

// Pathfinder quotes routes across the ledger's native venues.
type Pathfinder struct {
	client Client
	cfg    config.LedgerConfig
	logger *log.Logger
}

// NewPathfinder creates a Pathfinder.
func NewPathfinder(client Client, cfg config.LedgerConfig, logger *log.Logger) *Pathfinder {
	if logger == nil {
		logger = log.Default()
	}
	return &Pathfinder{client: client, cfg: cfg, logger: logger}
}

// candidate is one quoted route option.
type candidate struct {
	hops       []domain.Hop
	out        decimal.Decimal
	slippage   float64
	confidence float64
}

// score ranks candidates: raw output discounted by slippage, weighted by
// venue confidence.
func (c candidate) score() float64 {
	out, _ := c.out.Float64()
	return (out - 10*c.slippage) * c.confidence
}

// FindRoute quotes the AMM and order book directly, and if neither fills
// within the slippage tolerance, tries a two-hop path through each candidate
// intermediate currency. Returns ErrNoRouteFound when nothing qualifies.
func (p *Pathfinder) FindRoute(ctx context.Context, base, quote string, amount decimal.Decimal) (*domain.Route, error) {
	var candidates []candidate

	direct := p.quotePair(ctx, base, quote, amount)
	for _, c := range direct {
		if c.slippage <= p.cfg.MaxSlippage {
			candidates = append(candidates, c)
		}
	}

	if len(candidates) == 0 {
		candidates = append(candidates, p.twoHopCandidates(ctx, base, quote, amount)...)
	}

	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: %s->%s amount %s", ErrNoRouteFound, base, quote, amount)
	}

	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.score() > best.score() {
			best = c
		}
	}

	// BlendedRate is the pre-slippage rate, so the realized output equals
	// input * rate * (1 - slippage).
	rate, _ := best.out.Div(amount).Float64()
	if best.slippage > 0 && best.slippage < 1 {
		rate /= 1 - best.slippage
	}
	return &domain.Route{
		Hops:        best.hops,
		TotalInput:  amount,
		TotalOutput: best.out,
		BlendedRate: rate,
		Slippage:    best.slippage,
	}, nil
}

// quotePair quotes one currency pair on both direct venues. Missing venues
// are skipped; other read errors are logged and skipped, since partial venue
// visibility must not fail the whole search.
func (p *Pathfinder) quotePair(ctx context.Context, base, quote string, amount decimal.Decimal) []candidate {
	var out []candidate

	pool, err := p.client.PoolState(ctx, base, quote)
	switch {
	case err == nil:
		quoted, slippage := ammOutput(pool, amount)
		if quoted.IsPositive() {
			rate, _ := quoted.Div(amount).Float64()
			out = append(out, candidate{
				hops: []domain.Hop{{
					Venue:        domain.VenueAMM,
					Provider:     fmt.Sprintf("amm:%s>%s", base, quote),
					InputAmount:  amount,
					OutputAmount: quoted,
					Rate:         rate,
					Confidence:   confidenceAMM,
				}},
				out:        quoted,
				slippage:   slippage,
				confidence: confidenceAMM,
			})
		}
	case !errors.Is(err, storage.ErrNotFound):
		p.logger.Printf("[ledger] pool read failed pair=%s/%s err=%v", base, quote, err)
	}

	book, err := p.client.OrderBook(ctx, base, quote)
	switch {
	case err == nil:
		fill := walkBook(book, amount)
		if fill.Complete {
			conf := confidenceOrderBook
			if book.Depth().GreaterThanOrEqual(amount.Mul(decimal.NewFromInt(2))) {
				conf += depthBonus
			}
			out = append(out, candidate{
				hops: []domain.Hop{{
					Venue:        domain.VenueOrderBook,
					Provider:     fmt.Sprintf("book:%s>%s", base, quote),
					InputAmount:  amount,
					OutputAmount: fill.Out,
					Rate:         fill.VWAP,
					Confidence:   conf,
				}},
				out:        fill.Out,
				slippage:   fill.Slippage,
				confidence: conf,
			})
		}
	case !errors.Is(err, storage.ErrNotFound):
		p.logger.Printf("[ledger] order book read failed pair=%s/%s err=%v", base, quote, err)
	}

	return out
}

// twoHopCandidates chains two direct quotes through each configured
// intermediate. A chain qualifies only when its output reaches the
// configured fraction of the naive zero-slippage expectation and stays
// within the slippage ceiling.
func (p *Pathfinder) twoHopCandidates(ctx context.Context, base, quote string, amount decimal.Decimal) []candidate {
	var out []candidate

	for _, mid := range p.cfg.Intermediates {
		if mid == base || mid == quote {
			continue
		}

		first := p.bestOf(p.quotePair(ctx, base, mid, amount))
		if first == nil {
			continue
		}
		second := p.bestOf(p.quotePair(ctx, mid, quote, first.out))
		if second == nil {
			continue
		}

		chainedOut := second.out
		naive := p.naiveExpectation(ctx, base, mid, quote, amount)
		if naive.IsPositive() {
			ratio, _ := chainedOut.Div(naive).Float64()
			if ratio < p.cfg.TwoHopAcceptFraction {
				continue
			}
		}

		slippage := 1 - (1-first.slippage)*(1-second.slippage)
		if slippage > p.cfg.MaxSlippage {
			continue
		}

		conf := first.confidence * second.confidence * twoHopPenalty
		hops := append(append([]domain.Hop{}, first.hops...), second.hops...)
		for i := range hops {
			hops[i].Venue = domain.VenueTwoHop
		}

		out = append(out, candidate{
			hops:       hops,
			out:        chainedOut,
			slippage:   slippage,
			confidence: conf,
		})
	}

	return out
}

// bestOf picks the highest-scoring candidate, nil for an empty set.
func (p *Pathfinder) bestOf(cands []candidate) *candidate {
	if len(cands) == 0 {
		return nil
	}
	best := cands[0]
	for _, c := range cands[1:] {
		if c.score() > best.score() {
			best = c
		}
	}
	return &best
}

// naiveExpectation estimates the zero-slippage output of the chained path
// from pool spot rates. Zero when spot rates are unavailable.
func (p *Pathfinder) naiveExpectation(ctx context.Context, base, mid, quote string, amount decimal.Decimal) decimal.Decimal {
	firstPool, err1 := p.client.PoolState(ctx, base, mid)
	secondPool, err2 := p.client.PoolState(ctx, mid, quote)
	if err1 != nil || err2 != nil {
		return decimal.Zero
	}
	spot := ammSpotRate(firstPool) * ammSpotRate(secondPool)
	return amount.Mul(decimal.NewFromFloat(spot))
}
