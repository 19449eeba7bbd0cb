// Package main generates revenue and provider performance reports from the
// analytics stores.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"

	"rwa-swap-engine/internal/domain"
	"rwa-swap-engine/internal/reporting"
	"rwa-swap-engine/internal/storage"
	chstore "rwa-swap-engine/internal/storage/clickhouse"
	"rwa-swap-engine/internal/storage/memory"
)

func main() {
	outputDir := flag.String("output-dir", "output", "Output directory for generated files")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string")
	windowHours := flag.Int("window-hours", 24, "Report window ending now, in hours")
	useFixtures := flag.Bool("use-fixtures", false, "Use in-memory demo data instead of ClickHouse")
	flag.Parse()

	ctx := context.Background()

	if !*useFixtures && *clickhouseDSN == "" {
		fmt.Fprintln(os.Stderr, "Error: --clickhouse-dsn is required when not using fixtures")
		fmt.Fprintln(os.Stderr, "Use --use-fixtures to run with demo data instead")
		os.Exit(1)
	}

	var attemptStore storage.ProviderAttemptStore
	var revenueStore storage.FeeRevenueStore

	if *useFixtures {
		attemptStore, revenueStore = createFixtureStores(ctx)
	} else {
		conn, err := chstore.NewConn(ctx, *clickhouseDSN)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error connecting to clickhouse: %v\n", err)
			os.Exit(1)
		}
		defer conn.Close()
		attemptStore = chstore.NewProviderAttemptStore(conn)
		revenueStore = chstore.NewFeeRevenueStore(conn)
	}

	end := time.Now().UnixMilli()
	start := end - int64(*windowHours)*int64(time.Hour/time.Millisecond)

	gen := reporting.NewGenerator(attemptStore, revenueStore)
	report, err := gen.Generate(ctx, start, end)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error generating report: %v\n", err)
		os.Exit(1)
	}

	if err := os.MkdirAll(*outputDir, 0755); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating output directory: %v\n", err)
		os.Exit(1)
	}

	files := map[string]string{
		"ENGINE_REPORT.md": reporting.RenderMarkdown(report),
		"PROVIDERS.csv":    reporting.RenderProvidersCSV(report.Providers),
		"REVENUE.csv":      reporting.RenderRevenueCSV(report.RevenueByTier),
	}
	for name, content := range files {
		path := filepath.Join(*outputDir, name)
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing %s: %v\n", path, err)
			os.Exit(1)
		}
	}

	fmt.Println("Report generated successfully:")
	fmt.Printf("  - %s/ENGINE_REPORT.md\n", *outputDir)
	fmt.Printf("  - %s/PROVIDERS.csv\n", *outputDir)
	fmt.Printf("  - %s/REVENUE.csv\n", *outputDir)
}

// createFixtureStores creates in-memory stores with demo data.
func createFixtureStores(ctx context.Context) (storage.ProviderAttemptStore, storage.FeeRevenueStore) {
	attemptStore := memory.NewProviderAttemptStore()
	revenueStore := memory.NewFeeRevenueStore()

	now := time.Now().UnixMilli()
	attempts := []*domain.ProviderAttempt{
		{SwapID: "demo-1", Provider: "alpha", Kind: domain.AttemptKindCheck, Success: true, LatencyMs: 110, Timestamp: now - 3600_000},
		{SwapID: "demo-1", Provider: "alpha", Kind: domain.AttemptKindExecute, Success: true, LatencyMs: 820, Timestamp: now - 3599_000},
		{SwapID: "demo-2", Provider: "beta", Kind: domain.AttemptKindCheck, Success: true, LatencyMs: 95, Timestamp: now - 1800_000},
		{SwapID: "demo-2", Provider: "beta", Kind: domain.AttemptKindExecute, Success: false, LatencyMs: 5000, Reason: "timeout", Timestamp: now - 1795_000},
		{SwapID: "demo-2", Provider: "alpha", Kind: domain.AttemptKindExecute, Success: true, LatencyMs: 760, Timestamp: now - 1790_000},
	}
	if err := attemptStore.InsertBulk(ctx, attempts); err != nil {
		fmt.Fprintf(os.Stderr, "Error loading attempt fixtures: %v\n", err)
		os.Exit(1)
	}

	rows := []*storage.FeeRevenueRow{
		{SwapID: "demo-1", UserID: "user-1", Tier: domain.TierRetail, Category: domain.CategoryPreciousMetals, Bucket: "platform", Amount: decimal.NewFromFloat(170.63), Timestamp: now - 3598_000},
		{SwapID: "demo-1", UserID: "user-1", Tier: domain.TierRetail, Category: domain.CategoryPreciousMetals, Bucket: "liquidity_reserve", Amount: decimal.NewFromFloat(102.38), Timestamp: now - 3598_000},
		{SwapID: "demo-2", UserID: "user-2", Tier: domain.TierInstitutional, Category: domain.CategoryBonds, Bucket: "platform", Amount: decimal.NewFromFloat(60.75), Timestamp: now - 1789_000},
	}
	if err := revenueStore.InsertBulk(ctx, rows); err != nil {
		fmt.Fprintf(os.Stderr, "Error loading revenue fixtures: %v\n", err)
		os.Exit(1)
	}

	return attemptStore, revenueStore
}
