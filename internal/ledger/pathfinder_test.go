package ledger

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/shopspring/decimal"

	"rwa-swap-engine/internal/config"
	"rwa-swap-engine/internal/domain"
)

func testLedgerConfig() config.LedgerConfig {
	cfg := config.Default().Ledger
	cfg.Intermediates = []string{"XLM"}
	return cfg
}

func TestAMMOutput(t *testing.T) {
	pool := &PoolState{
		Base:         "GOLDRWA",
		Quote:        "USDC",
		BaseReserve:  decimal.NewFromInt(1_000_000),
		QuoteReserve: decimal.NewFromInt(2_000_000),
		FeePct:       0,
	}

	out, slippage := ammOutput(pool, decimal.NewFromInt(1000))

	// 2_000_000 * 1000 / 1_001_000
	expected := 2_000_000_000.0 / 1_001_000.0
	got, _ := out.Float64()
	if math.Abs(got-expected) > 1e-6 {
		t.Errorf("expected output %.6f, got %.6f", expected, got)
	}
	if slippage <= 0 || slippage >= 0.01 {
		t.Errorf("expected small positive slippage, got %f", slippage)
	}
}

func TestAMMOutput_FeeReducesOutput(t *testing.T) {
	pool := &PoolState{
		BaseReserve:  decimal.NewFromInt(1_000_000),
		QuoteReserve: decimal.NewFromInt(2_000_000),
	}
	free, _ := ammOutput(pool, decimal.NewFromInt(1000))

	pool.FeePct = 0.003
	charged, _ := ammOutput(pool, decimal.NewFromInt(1000))

	if !charged.LessThan(free) {
		t.Errorf("pool fee must reduce output: %s >= %s", charged, free)
	}
}

func TestWalkBook_FillsExactly(t *testing.T) {
	book := &Book{
		Base:  "GOLDRWA",
		Quote: "USDC",
		Bids: []Level{
			{Price: 2.00, Amount: decimal.NewFromInt(50_000)},
			{Price: 1.98, Amount: decimal.NewFromInt(30_000)},
			{Price: 1.95, Amount: decimal.NewFromInt(40_000)},
		},
	}

	fill := walkBook(book, decimal.NewFromInt(100_000))

	if !fill.Complete {
		t.Fatal("expected complete fill")
	}
	if !fill.Filled.Equal(decimal.NewFromInt(100_000)) {
		t.Errorf("expected exactly 100000 filled, got %s", fill.Filled)
	}
	// 50000*2.00 + 30000*1.98 + 20000*1.95
	if !fill.Out.Equal(decimal.NewFromInt(198_400)) {
		t.Errorf("expected output 198400, got %s", fill.Out)
	}
	if math.Abs(fill.VWAP-1.984) > 1e-9 {
		t.Errorf("expected VWAP 1.984, got %f", fill.VWAP)
	}
}

func TestWalkBook_NeverOverfills(t *testing.T) {
	book := &Book{
		Bids: []Level{
			{Price: 2.00, Amount: decimal.NewFromInt(50_000)},
			{Price: 1.98, Amount: decimal.NewFromInt(30_000)},
		},
	}

	fill := walkBook(book, decimal.NewFromInt(130_000))

	if fill.Complete {
		t.Error("expected incomplete fill")
	}
	if !fill.Filled.Equal(decimal.NewFromInt(80_000)) {
		t.Errorf("expected 80000 filled, got %s", fill.Filled)
	}
}

func TestFindRoute_DirectAMM(t *testing.T) {
	client := NewStubClient()
	client.SetPool(&PoolState{
		Base:         "GOLDRWA",
		Quote:        "USDC",
		BaseReserve:  decimal.NewFromInt(10_000_000),
		QuoteReserve: decimal.NewFromInt(20_000_000),
		FeePct:       0.003,
	})

	p := NewPathfinder(client, testLedgerConfig(), nil)

	route, err := p.FindRoute(context.Background(), "GOLDRWA", "USDC", decimal.NewFromInt(10_000))
	if err != nil {
		t.Fatalf("FindRoute: %v", err)
	}
	if len(route.Hops) != 1 || route.Hops[0].Venue != domain.VenueAMM {
		t.Fatalf("expected single AMM hop, got %+v", route.Hops)
	}
	if math.Abs(route.BlendedRate-2.0) > 1e-6 {
		t.Errorf("expected spot rate 2.0, got %f", route.BlendedRate)
	}
	in, _ := route.TotalInput.Float64()
	out, _ := route.TotalOutput.Float64()
	want := in * route.BlendedRate * (1 - route.Slippage)
	if math.Abs(out-want) > 1e-6*want {
		t.Errorf("realized output %f != input*rate*(1-slippage) %f", out, want)
	}
}

func TestFindRoute_PrefersDeeperVenue(t *testing.T) {
	client := NewStubClient()
	// Shallow pool with heavy slippage on this size.
	client.SetPool(&PoolState{
		Base:         "GOLDRWA",
		Quote:        "USDC",
		BaseReserve:  decimal.NewFromInt(200_000),
		QuoteReserve: decimal.NewFromInt(400_000),
		FeePct:       0.003,
	})
	// Deep book that fills at a better average price.
	client.SetBook(&Book{
		Base:  "GOLDRWA",
		Quote: "USDC",
		Bids: []Level{
			{Price: 1.99, Amount: decimal.NewFromInt(100_000)},
		},
	})

	p := NewPathfinder(client, testLedgerConfig(), nil)

	route, err := p.FindRoute(context.Background(), "GOLDRWA", "USDC", decimal.NewFromInt(10_000))
	if err != nil {
		t.Fatalf("FindRoute: %v", err)
	}
	if route.Hops[0].Venue != domain.VenueOrderBook {
		t.Errorf("expected order book venue, got %s", route.Hops[0].Venue)
	}
}

func TestFindRoute_TwoHopWhenNoDirectVenue(t *testing.T) {
	client := NewStubClient()
	client.SetPool(&PoolState{
		Base:         "GOLDRWA",
		Quote:        "XLM",
		BaseReserve:  decimal.NewFromInt(10_000_000),
		QuoteReserve: decimal.NewFromInt(50_000_000),
		FeePct:       0.003,
	})
	client.SetPool(&PoolState{
		Base:         "XLM",
		Quote:        "USDC",
		BaseReserve:  decimal.NewFromInt(50_000_000),
		QuoteReserve: decimal.NewFromInt(20_000_000),
		FeePct:       0.003,
	})

	p := NewPathfinder(client, testLedgerConfig(), nil)

	route, err := p.FindRoute(context.Background(), "GOLDRWA", "USDC", decimal.NewFromInt(10_000))
	if err != nil {
		t.Fatalf("FindRoute: %v", err)
	}
	if len(route.Hops) != 2 {
		t.Fatalf("expected 2 hops, got %d", len(route.Hops))
	}
	for _, hop := range route.Hops {
		if hop.Venue != domain.VenueTwoHop {
			t.Errorf("expected two_hop venue, got %s", hop.Venue)
		}
	}
	// GOLDRWA spot is 5 XLM, XLM spot is 0.4 USDC: 2.0 end to end.
	if math.Abs(route.BlendedRate-2.0) > 1e-6 {
		t.Errorf("expected chained spot rate 2.0, got %f", route.BlendedRate)
	}
	in, _ := route.TotalInput.Float64()
	out, _ := route.TotalOutput.Float64()
	want := in * route.BlendedRate * (1 - route.Slippage)
	if math.Abs(out-want) > 1e-6*want {
		t.Errorf("realized output %f != input*rate*(1-slippage) %f", out, want)
	}
}

func TestFindRoute_NoRoute(t *testing.T) {
	client := NewStubClient()

	p := NewPathfinder(client, testLedgerConfig(), nil)

	_, err := p.FindRoute(context.Background(), "GOLDRWA", "USDC", decimal.NewFromInt(10_000))
	if !errors.Is(err, ErrNoRouteFound) {
		t.Fatalf("expected ErrNoRouteFound, got %v", err)
	}
}

func TestFindRoute_RejectsExcessiveSlippage(t *testing.T) {
	client := NewStubClient()
	// Pool so shallow the trade moves the price far past the 5% ceiling.
	client.SetPool(&PoolState{
		Base:         "GOLDRWA",
		Quote:        "USDC",
		BaseReserve:  decimal.NewFromInt(20_000),
		QuoteReserve: decimal.NewFromInt(40_000),
		FeePct:       0.003,
	})

	p := NewPathfinder(client, testLedgerConfig(), nil)

	_, err := p.FindRoute(context.Background(), "GOLDRWA", "USDC", decimal.NewFromInt(10_000))
	if !errors.Is(err, ErrNoRouteFound) {
		t.Fatalf("expected ErrNoRouteFound, got %v", err)
	}
}
