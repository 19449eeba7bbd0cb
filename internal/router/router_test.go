package router

import (
	"context"
	"errors"
	"log"
	"math"
	"os"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"

	"rwa-swap-engine/internal/config"
	"rwa-swap-engine/internal/domain"
	"rwa-swap-engine/internal/health"
	"rwa-swap-engine/internal/observability"
	"rwa-swap-engine/internal/provider"
	"rwa-swap-engine/internal/provider/stub"
)

func testLogger() *log.Logger {
	return log.New(os.Stderr, "[test] ", log.LstdFlags)
}

func testRoutingConfig() config.RoutingConfig {
	cfg := config.Default().Routing
	cfg.TierPreferences = map[string][]string{
		domain.TierRetail: {"alpha", "beta", "gamma"},
	}
	return cfg
}

func caps(min, max int64, categories ...string) domain.Capabilities {
	if len(categories) == 0 {
		categories = []string{domain.CategoryPreciousMetals}
	}
	return domain.Capabilities{
		MinAmount:           decimal.NewFromInt(min),
		MaxAmount:           decimal.NewFromInt(max),
		SupportedCategories: categories,
		SettlementSeconds:   30,
	}
}

func metalsRequest(amount int64) CheckRequest {
	return CheckRequest{
		Asset:          domain.AssetDescriptor{CurrencyCode: "GOLDRWA", Category: domain.CategoryPreciousMetals},
		TargetCurrency: "USDC",
		Amount:         decimal.NewFromInt(amount),
		Tier:           domain.TierRetail,
	}
}

func newTestRouter(cfg config.RoutingConfig, providers ...provider.LiquidityProvider) (*Router, *health.Monitor) {
	monitor := health.NewMonitor()
	r := New(Options{
		Providers: providers,
		Monitor:   monitor,
		Config:    cfg,
		Logger:    testLogger(),
	})
	return r, monitor
}

func TestCheckAll_PartialOffersCombine(t *testing.T) {
	alpha := stub.New("alpha", caps(100, 75_000), decimal.NewFromInt(75_000), 1.95)
	beta := stub.New("beta", caps(100, 25_000), decimal.NewFromInt(25_000), 1.93)

	r, _ := newTestRouter(testRoutingConfig(), alpha, beta)

	candidates, err := r.CheckAll(context.Background(), metalsRequest(100_000))
	if err != nil {
		t.Fatalf("CheckAll: %v", err)
	}
	if len(candidates) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(candidates))
	}
}

func TestCheckAll_ExcludesIncapableProviders(t *testing.T) {
	metals := stub.New("alpha", caps(100, 500_000), decimal.NewFromInt(500_000), 1.95)
	artOnly := stub.New("beta", caps(100, 500_000, domain.CategoryArt), decimal.NewFromInt(500_000), 2.10)
	tooBig := stub.New("gamma", caps(200_000, 500_000), decimal.NewFromInt(500_000), 1.99)

	r, _ := newTestRouter(testRoutingConfig(), metals, artOnly, tooBig)

	candidates, err := r.CheckAll(context.Background(), metalsRequest(100_000))
	if err != nil {
		t.Fatalf("CheckAll: %v", err)
	}
	if len(candidates) != 1 || candidates[0].Provider != "alpha" {
		t.Fatalf("expected only alpha, got %+v", candidates)
	}
	if artOnly.CheckCalls() != 0 {
		t.Error("category-incapable provider should not be queried")
	}
	if tooBig.CheckCalls() != 0 {
		t.Error("provider below its minimum should not be queried")
	}
}

func TestCheckAll_FailedCheckDropped(t *testing.T) {
	alpha := stub.New("alpha", caps(100, 500_000), decimal.NewFromInt(500_000), 1.95)
	beta := stub.New("beta", caps(100, 500_000), decimal.NewFromInt(500_000), 1.93)
	beta.SetCheckError(errors.New("connection refused"))

	r, monitor := newTestRouter(testRoutingConfig(), alpha, beta)

	candidates, err := r.CheckAll(context.Background(), metalsRequest(100_000))
	if err != nil {
		t.Fatalf("CheckAll: %v", err)
	}
	if len(candidates) != 1 || candidates[0].Provider != "alpha" {
		t.Fatalf("expected only alpha, got %d candidates", len(candidates))
	}

	snap := monitor.Snapshot("beta")
	if snap.Attempts != 1 || snap.SuccessRate != 0 {
		t.Errorf("expected one failed attempt recorded for beta, got %+v", snap)
	}
}

// Two providers offering 75,000 @ 1.95 and 25,000 @ 1.93 against a 100,000
// request must combine with the better-rated provider first and report the
// output-weighted blended rate.
func TestSelectRoute_CombinesProviders(t *testing.T) {
	alpha := stub.New("alpha", caps(100, 75_000), decimal.NewFromInt(75_000), 1.95)
	beta := stub.New("beta", caps(100, 25_000), decimal.NewFromInt(25_000), 1.93)

	r, _ := newTestRouter(testRoutingConfig(), alpha, beta)
	req := metalsRequest(100_000)

	candidates, err := r.CheckAll(context.Background(), req)
	if err != nil {
		t.Fatalf("CheckAll: %v", err)
	}

	route, err := r.SelectRoute(candidates, req)
	if err != nil {
		t.Fatalf("SelectRoute: %v", err)
	}

	if len(route.Hops) != 2 {
		t.Fatalf("expected 2 hops, got %d", len(route.Hops))
	}
	if route.Hops[0].Provider != "alpha" {
		t.Errorf("expected alpha first, got %s", route.Hops[0].Provider)
	}
	if !route.Hops[0].InputAmount.Equal(decimal.NewFromInt(75_000)) {
		t.Errorf("expected 75000 from alpha, got %s", route.Hops[0].InputAmount)
	}
	if !route.Hops[1].InputAmount.Equal(decimal.NewFromInt(25_000)) {
		t.Errorf("expected 25000 from beta, got %s", route.Hops[1].InputAmount)
	}
	if !route.TotalInput.Equal(decimal.NewFromInt(100_000)) {
		t.Errorf("expected total input 100000, got %s", route.TotalInput)
	}

	// (75000*1.95 + 25000*1.93) / 100000
	if math.Abs(route.BlendedRate-1.945) > 1e-9 {
		t.Errorf("expected blended rate 1.945, got %f", route.BlendedRate)
	}
}

func TestSelectRoute_InsufficientLiquidity(t *testing.T) {
	alpha := stub.New("alpha", caps(100, 40_000), decimal.NewFromInt(40_000), 1.95)

	r, _ := newTestRouter(testRoutingConfig(), alpha)
	req := metalsRequest(100_000)

	candidates, err := r.CheckAll(context.Background(), req)
	if err != nil {
		t.Fatalf("CheckAll: %v", err)
	}

	_, err = r.SelectRoute(candidates, req)
	var insufficient *InsufficientLiquidityError
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected InsufficientLiquidityError, got %v", err)
	}
	if !insufficient.Available.Equal(decimal.NewFromInt(40_000)) {
		t.Errorf("expected available 40000, got %s", insufficient.Available)
	}
}

func TestSelectRoute_NeverOverdrawsProvider(t *testing.T) {
	alpha := stub.New("alpha", caps(100, 500_000), decimal.NewFromInt(500_000), 1.95)

	r, _ := newTestRouter(testRoutingConfig(), alpha)
	req := metalsRequest(100_000)

	candidates, err := r.CheckAll(context.Background(), req)
	if err != nil {
		t.Fatalf("CheckAll: %v", err)
	}

	route, err := r.SelectRoute(candidates, req)
	if err != nil {
		t.Fatalf("SelectRoute: %v", err)
	}
	if len(route.Hops) != 1 {
		t.Fatalf("expected single hop, got %d", len(route.Hops))
	}
	if !route.Hops[0].InputAmount.Equal(decimal.NewFromInt(100_000)) {
		t.Errorf("expected exactly the requested 100000, got %s", route.Hops[0].InputAmount)
	}
}

// A failing primary must be absorbed by the tier's fallback chain; the
// outcome reports the fallback provider and the primary's health records
// exactly one failure.
func TestExecute_FallbackSucceeds(t *testing.T) {
	alpha := stub.New("alpha", caps(100, 500_000), decimal.NewFromInt(500_000), 1.95)
	beta := stub.New("beta", caps(100, 500_000), decimal.NewFromInt(500_000), 1.93)
	alpha.SetExecuteError(errors.New("deadline exceeded"))

	r, monitor := newTestRouter(testRoutingConfig(), alpha, beta)

	route := &domain.Route{
		Hops: []domain.Hop{{
			Venue:        domain.VenueProvider,
			Provider:     "alpha",
			InputAmount:  decimal.NewFromInt(100_000),
			OutputAmount: decimal.NewFromInt(195_000),
			Rate:         1.95,
			Confidence:   1.0,
		}},
	}

	outcome, err := r.Execute(context.Background(), route, ExecuteParams{
		SwapID: "s1",
		Tier:   domain.TierRetail,
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if outcome.Provider != "beta" {
		t.Errorf("expected fallback provider beta, got %s", outcome.Provider)
	}
	if len(outcome.Attempts) != 2 {
		t.Fatalf("expected 2 attempts, got %d", len(outcome.Attempts))
	}
	if outcome.Attempts[0].Provider != "alpha" || outcome.Attempts[0].Success {
		t.Errorf("expected failed first attempt on alpha, got %+v", outcome.Attempts[0])
	}
	if !outcome.Committed {
		t.Error("expected committed outcome")
	}
	if len(outcome.SettlementRefs) != 1 {
		t.Errorf("expected 1 settlement ref, got %d", len(outcome.SettlementRefs))
	}

	snap := monitor.Snapshot("alpha")
	if snap.Attempts != 1 || snap.SuccessRate != 0 {
		t.Errorf("expected exactly one recorded failure for alpha, got %+v", snap)
	}
}

func TestExecute_AllProvidersFailed(t *testing.T) {
	alpha := stub.New("alpha", caps(100, 500_000), decimal.NewFromInt(500_000), 1.95)
	beta := stub.New("beta", caps(100, 500_000), decimal.NewFromInt(500_000), 1.93)
	gamma := stub.New("gamma", caps(100, 500_000), decimal.NewFromInt(500_000), 1.90)
	alpha.SetExecuteError(errors.New("down"))
	beta.SetExecuteError(errors.New("down"))
	gamma.SetExecuteError(errors.New("down"))

	r, _ := newTestRouter(testRoutingConfig(), alpha, beta, gamma)

	route := &domain.Route{
		Hops: []domain.Hop{{
			Venue:       domain.VenueProvider,
			Provider:    "alpha",
			InputAmount: decimal.NewFromInt(100_000),
			Rate:        1.95,
		}},
	}

	outcome, err := r.Execute(context.Background(), route, ExecuteParams{SwapID: "s1", Tier: domain.TierRetail})

	var failed *AllProvidersFailedError
	if !errors.As(err, &failed) {
		t.Fatalf("expected AllProvidersFailedError, got %v", err)
	}
	if len(failed.Attempts) != 3 {
		t.Errorf("expected 3 attempts in chain, got %d", len(failed.Attempts))
	}
	if outcome.Committed {
		t.Error("expected no committed funds")
	}
}

func TestExecute_AttemptBudget(t *testing.T) {
	cfg := testRoutingConfig()
	cfg.MaxAttempts = 2

	alpha := stub.New("alpha", caps(100, 500_000), decimal.NewFromInt(500_000), 1.95)
	beta := stub.New("beta", caps(100, 500_000), decimal.NewFromInt(500_000), 1.93)
	gamma := stub.New("gamma", caps(100, 500_000), decimal.NewFromInt(500_000), 1.90)
	alpha.SetExecuteError(errors.New("down"))
	beta.SetExecuteError(errors.New("down"))

	r, _ := newTestRouter(cfg, alpha, beta, gamma)

	route := &domain.Route{
		Hops: []domain.Hop{{
			Venue:       domain.VenueProvider,
			Provider:    "alpha",
			InputAmount: decimal.NewFromInt(100_000),
			Rate:        1.95,
		}},
	}

	_, err := r.Execute(context.Background(), route, ExecuteParams{SwapID: "s1", Tier: domain.TierRetail})

	var failed *AllProvidersFailedError
	if !errors.As(err, &failed) {
		t.Fatalf("expected AllProvidersFailedError, got %v", err)
	}
	if len(failed.Attempts) != 2 {
		t.Errorf("expected budget to cap at 2 attempts, got %d", len(failed.Attempts))
	}
	if gamma.ExecuteCalls() != 0 {
		t.Error("third provider should never be reached")
	}
}

func TestExecute_NoFallbackSurfacesProviderFailure(t *testing.T) {
	cfg := testRoutingConfig()
	cfg.FallbackEnabled = false

	alpha := stub.New("alpha", caps(100, 500_000), decimal.NewFromInt(500_000), 1.95)
	alpha.SetExecuteError(errors.New("down"))
	beta := stub.New("beta", caps(100, 500_000), decimal.NewFromInt(500_000), 1.93)

	r, _ := newTestRouter(cfg, alpha, beta)

	route := &domain.Route{
		Hops: []domain.Hop{{
			Venue:       domain.VenueProvider,
			Provider:    "alpha",
			InputAmount: decimal.NewFromInt(100_000),
			Rate:        1.95,
		}},
	}

	_, err := r.Execute(context.Background(), route, ExecuteParams{SwapID: "s1", Tier: domain.TierRetail})

	var pf *ProviderFailureError
	if !errors.As(err, &pf) {
		t.Fatalf("expected ProviderFailureError, got %v", err)
	}
	if pf.Provider != "alpha" {
		t.Errorf("expected alpha failure, got %s", pf.Provider)
	}
	if beta.ExecuteCalls() != 0 {
		t.Error("fallback disabled must not try other providers")
	}
}

// Every provider call, check or execute, increments the attempt counter
// with its result label.
func TestProviderAttemptMetrics(t *testing.T) {
	alpha := stub.New("alpha", caps(100, 500_000), decimal.NewFromInt(500_000), 1.95)
	beta := stub.New("beta", caps(100, 500_000), decimal.NewFromInt(500_000), 1.93)
	beta.SetCheckError(errors.New("connection refused"))

	metrics := observability.New()
	r := New(Options{
		Providers: []provider.LiquidityProvider{alpha, beta},
		Monitor:   health.NewMonitor(),
		Metrics:   metrics,
		Config:    testRoutingConfig(),
		Logger:    testLogger(),
	})

	if _, err := r.CheckAll(context.Background(), metalsRequest(100_000)); err != nil {
		t.Fatalf("CheckAll: %v", err)
	}
	if got := testutil.ToFloat64(metrics.ProviderAttempts.WithLabelValues("alpha", "success")); got != 1 {
		t.Errorf("expected 1 alpha success, got %f", got)
	}
	if got := testutil.ToFloat64(metrics.ProviderAttempts.WithLabelValues("beta", "failure")); got != 1 {
		t.Errorf("expected 1 beta failure, got %f", got)
	}

	route := &domain.Route{
		Hops: []domain.Hop{{
			Venue:       domain.VenueProvider,
			Provider:    "alpha",
			InputAmount: decimal.NewFromInt(100_000),
			Rate:        1.95,
		}},
	}
	if _, err := r.Execute(context.Background(), route, ExecuteParams{SwapID: "s1", Tier: domain.TierRetail}); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if got := testutil.ToFloat64(metrics.ProviderAttempts.WithLabelValues("alpha", "success")); got != 2 {
		t.Errorf("expected check and execute counted for alpha, got %f", got)
	}
}

func TestScore_TierAffinityOrdering(t *testing.T) {
	if tierAffinity([]string{"a", "b", "c"}, "a") != 100 {
		t.Error("first preference should score 100")
	}
	if tierAffinity([]string{"a", "b", "c"}, "b") != 80 {
		t.Error("second preference should score 80")
	}
	if tierAffinity([]string{"a", "b"}, "x") != 0 {
		t.Error("absent provider should score 0")
	}
}
