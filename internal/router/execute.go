package router

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"rwa-swap-engine/internal/domain"
	"rwa-swap-engine/internal/provider"
)

// ExecuteParams carries swap identity and asset details into sourcing.
type ExecuteParams struct {
	SwapID         string
	QuoteID        string
	Asset          domain.AssetDescriptor
	TargetCurrency string
	Tier           string
}

// Outcome is the result of sourcing a route. On error the outcome still
// reports any hops that committed funds so the caller can decide between
// a clean failure and the critical reconciliation path.
type Outcome struct {
	Provider       string          // provider of the last successful fill
	Providers      []string        // all providers that sourced funds, in order
	OutputAmount   decimal.Decimal // total target currency sourced
	SettlementRefs []string        // provider settlement references, in order
	Attempts       []AttemptRecord // every attempt, success or failure
	Committed      bool            // whether any funds moved
}

// Execute sources the route hop by hop. A failed hop is retried against the
// tier's ordered fallback list, skipping providers already attempted in this
// session, up to the configured attempt budget across the whole session.
// Every attempt updates the health monitor.
func (r *Router) Execute(ctx context.Context, route *domain.Route, params ExecuteParams) (*Outcome, error) {
	timeout := time.Duration(r.cfg.ProviderTimeoutSeconds) * time.Second
	outcome := &Outcome{}
	attempted := make(map[string]bool)
	var records []*domain.ProviderAttempt
	defer func() { r.recordAttempts(ctx, records) }()

	budget := r.cfg.MaxAttempts

	for _, hop := range route.Hops {
		if hop.Venue != domain.VenueProvider {
			if err := r.executeLedgerHop(ctx, hop, params, outcome, &records); err == nil {
				continue
			} else if !r.cfg.FallbackEnabled {
				return outcome, err
			}
			// Ledger failure falls through to the provider fallback chain.
		}

		filled := false
		for _, name := range r.hopCandidates(hop, params.Tier, attempted) {
			if len(outcome.Attempts) >= budget {
				break
			}
			attempted[name] = true

			result, rec := r.tryProvider(ctx, timeout, name, hop, params)
			outcome.Attempts = append(outcome.Attempts, rec)
			records = append(records, &domain.ProviderAttempt{
				SwapID:    params.SwapID,
				Provider:  name,
				Kind:      domain.AttemptKindExecute,
				Success:   rec.Success,
				LatencyMs: rec.LatencyMs,
				Reason:    rec.Reason,
				Timestamp: time.Now().UnixMilli(),
			})

			if rec.Success {
				outcome.Provider = name
				outcome.Providers = append(outcome.Providers, name)
				outcome.OutputAmount = outcome.OutputAmount.Add(result.OutputAmount)
				outcome.SettlementRefs = append(outcome.SettlementRefs, result.SettlementRef)
				outcome.Committed = true
				filled = true
				break
			}

			r.logger.Printf("[router] execution attempt failed swap=%s provider=%s reason=%s",
				params.SwapID, name, rec.Reason)

			if !r.cfg.FallbackEnabled {
				return outcome, &ProviderFailureError{Provider: name, Reason: rec.Reason}
			}
		}

		if !filled {
			return outcome, &AllProvidersFailedError{Attempts: outcome.Attempts}
		}
	}

	return outcome, nil
}

// hopCandidates orders the providers to try for a hop: the routed provider
// first, then the tier's configured fallback list, minus anything already
// attempted in this session.
func (r *Router) hopCandidates(hop domain.Hop, tier string, attempted map[string]bool) []string {
	var names []string
	seen := make(map[string]bool)

	add := func(name string) {
		if name == "" || seen[name] || attempted[name] {
			return
		}
		if _, ok := r.providers[name]; !ok {
			return
		}
		seen[name] = true
		names = append(names, name)
	}

	if hop.Venue == domain.VenueProvider {
		add(hop.Provider)
	}
	for _, name := range r.cfg.TierPreferences[tier] {
		add(name)
	}
	return names
}

// tryProvider issues one execution attempt and records it with the monitor.
func (r *Router) tryProvider(ctx context.Context, timeout time.Duration, name string, hop domain.Hop, params ExecuteParams) (*provider.ExecutionResult, AttemptRecord) {
	p := r.providers[name]

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	result, err := p.Execute(callCtx, provider.SwapSpec{
		SwapID:         params.SwapID,
		QuoteID:        params.QuoteID,
		Asset:          params.Asset,
		TargetCurrency: params.TargetCurrency,
		Amount:         hop.InputAmount,
		Rate:           hop.Rate,
	})
	elapsed := time.Since(start)

	rec := AttemptRecord{Provider: name, LatencyMs: elapsed.Milliseconds()}
	if err != nil {
		r.monitor.RecordAttempt(name, false, elapsed)
		rec.Reason = err.Error()
		return nil, rec
	}
	r.monitor.RecordAttempt(name, true, elapsed)
	rec.Success = true
	return result, rec
}

// executeLedgerHop submits a ledger-venue hop through the ledger executor.
func (r *Router) executeLedgerHop(ctx context.Context, hop domain.Hop, params ExecuteParams, outcome *Outcome, records *[]*domain.ProviderAttempt) error {
	rec := AttemptRecord{Provider: hop.Provider}
	start := time.Now()

	if r.ledger == nil {
		rec.Reason = "no ledger executor configured"
		outcome.Attempts = append(outcome.Attempts, rec)
		return &ProviderFailureError{Provider: hop.Provider, Reason: rec.Reason}
	}

	result, err := r.ledger.ExecuteHop(ctx, hop, params)
	rec.LatencyMs = time.Since(start).Milliseconds()

	*records = append(*records, &domain.ProviderAttempt{
		SwapID:    params.SwapID,
		Provider:  hop.Provider,
		Kind:      domain.AttemptKindExecute,
		Success:   err == nil,
		LatencyMs: rec.LatencyMs,
		Reason:    reasonOf(err),
		Timestamp: time.Now().UnixMilli(),
	})

	if err != nil {
		rec.Reason = err.Error()
		outcome.Attempts = append(outcome.Attempts, rec)
		r.logger.Printf("[router] ledger hop failed swap=%s venue=%s reason=%v", params.SwapID, hop.Venue, err)
		return err
	}

	rec.Success = true
	outcome.Attempts = append(outcome.Attempts, rec)
	outcome.Provider = hop.Provider
	outcome.Providers = append(outcome.Providers, hop.Provider)
	outcome.OutputAmount = outcome.OutputAmount.Add(result.OutputAmount)
	outcome.SettlementRefs = append(outcome.SettlementRefs, result.SettlementRef)
	outcome.Committed = true
	return nil
}

func reasonOf(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
