// Package main runs the swap engine API server:
// - Quote generation and execution over HTTP
// - Quote expiry sweeper (background)
// - Asynchronous fee-collection retry worker (background)
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/shopspring/decimal"

	"rwa-swap-engine/internal/config"
	"rwa-swap-engine/internal/domain"
	"rwa-swap-engine/internal/fees"
	"rwa-swap-engine/internal/health"
	"rwa-swap-engine/internal/ledger"
	"rwa-swap-engine/internal/observability"
	"rwa-swap-engine/internal/provider"
	"rwa-swap-engine/internal/provider/rpc"
	"rwa-swap-engine/internal/provider/stub"
	"rwa-swap-engine/internal/router"
	"rwa-swap-engine/internal/storage"
	chstore "rwa-swap-engine/internal/storage/clickhouse"
	"rwa-swap-engine/internal/storage/memory"
	"rwa-swap-engine/internal/storage/migrations"
	pgstore "rwa-swap-engine/internal/storage/postgres"
	"rwa-swap-engine/internal/swap"
	"rwa-swap-engine/internal/validation"
)

// Server holds the wired engine and request counters.
type Server struct {
	machine *swap.Machine
	logger  *log.Logger

	mu             sync.Mutex
	started        time.Time
	quotesIssued   int
	swapsExecuted  int
	swapsCancelled int
}

// allStores holds all storage implementations.
type allStores struct {
	quotes      storage.QuoteStore
	swaps       storage.SwapStore
	volume      storage.VolumeLedger
	collections storage.FeeCollectionStore
	attempts    storage.ProviderAttemptStore
	revenue     storage.FeeRevenueStore
}

func main() {
	loadEnvFile()

	configPath := flag.String("config", os.Getenv("ENGINE_CONFIG"), "Path to engine YAML config")
	addr := flag.String("addr", ":8080", "HTTP listen address")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string")
	validationEndpoint := flag.String("validation-endpoint", os.Getenv("VALIDATION_ENDPOINT"), "Token validation JSON-RPC endpoint")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage and stub counterparties")

	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lshortfile)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}
	if !*useMemory && (*postgresDSN == "" || *clickhouseDSN == "") {
		logger.Fatal("--postgres-dsn and --clickhouse-dsn are required (use --use-memory for in-memory storage)")
	}
	if !*useMemory && *validationEndpoint == "" {
		logger.Fatal("--validation-endpoint is required (use --use-memory for the stub validator)")
	}

	ctx, cancel := context.WithCancel(context.Background())

	stores, cleanup, err := createStores(ctx, *postgresDSN, *clickhouseDSN, *useMemory)
	if err != nil {
		logger.Fatalf("Failed to create stores: %v", err)
	}
	defer cleanup()

	// One metrics instance per process; promauto registration is global.
	metrics := observability.New()
	feeEngine := fees.NewEngine(fees.Options{
		Config:      cfg,
		Volume:      stores.volume,
		Collections: stores.collections,
		Revenue:     stores.revenue,
		Logger:      log.New(os.Stdout, "[fees] ", log.LstdFlags),
	})

	machine, err := buildMachine(cfg, stores, *validationEndpoint, *useMemory, metrics, feeEngine, logger)
	if err != nil {
		logger.Fatalf("Failed to build engine: %v", err)
	}

	server := &Server{
		machine: machine,
		logger:  logger,
		started: time.Now(),
	}

	// Background workers.
	sweeper := swap.NewSweeper(stores.quotes,
		time.Duration(cfg.Quote.SweepIntervalSeconds)*time.Second,
		metrics,
		log.New(os.Stdout, "[sweeper] ", log.LstdFlags))
	go sweeper.Run(ctx)

	feeRetry := swap.NewFeeRetryWorker(stores.swaps, stores.quotes, feeEngine,
		time.Duration(cfg.Quote.FeeRetrySeconds)*time.Second,
		log.New(os.Stdout, "[feeretry] ", log.LstdFlags))
	go feeRetry.Run(ctx)

	// Handle shutdown signals.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	httpServer := &http.Server{
		Addr:    *addr,
		Handler: server.routes(),
	}

	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, shutting down...", sig)
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Printf("HTTP shutdown error: %v", err)
		}
	}()

	logger.Printf("Listening on %s (memory mode: %v)", *addr, *useMemory)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("HTTP server error: %v", err)
	}

	logger.Println("Shutdown complete")
}

// createStores creates all required stores. Durable mode applies migrations
// on startup; migrations are idempotent.
func createStores(ctx context.Context, postgresDSN, clickhouseDSN string, useMemory bool) (*allStores, func(), error) {
	if useMemory {
		stores := &allStores{
			quotes:      memory.NewQuoteStore(),
			swaps:       memory.NewSwapStore(),
			volume:      memory.NewVolumeLedger(),
			collections: memory.NewFeeCollectionStore(),
			attempts:    memory.NewProviderAttemptStore(),
			revenue:     memory.NewFeeRevenueStore(),
		}
		return stores, func() {}, nil
	}

	pool, err := pgstore.NewPool(ctx, postgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("migrate postgres: %w", err)
	}

	chConn, err := chstore.NewConn(ctx, clickhouseDSN)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("connect to clickhouse: %w", err)
	}
	if err := migrations.RunClickhouseMigrations(ctx, chConn); err != nil {
		chConn.Close()
		pool.Close()
		return nil, nil, fmt.Errorf("migrate clickhouse: %w", err)
	}

	stores := &allStores{
		quotes:      pgstore.NewQuoteStore(pool),
		swaps:       pgstore.NewSwapStore(pool),
		volume:      pgstore.NewVolumeLedger(pool),
		collections: pgstore.NewFeeCollectionStore(pool),
		attempts:    chstore.NewProviderAttemptStore(chConn),
		revenue:     chstore.NewFeeRevenueStore(chConn),
	}

	cleanup := func() {
		chConn.Close()
		pool.Close()
	}

	return stores, cleanup, nil
}

// buildMachine wires providers, validator, router, ledger and fee engine.
func buildMachine(cfg *config.Config, stores *allStores, validationEndpoint string, useMemory bool, metrics *observability.Metrics, feeEngine *fees.Engine, logger *log.Logger) (*swap.Machine, error) {
	providers, err := buildProviders(cfg, useMemory)
	if err != nil {
		return nil, err
	}

	var ledgerClient ledger.Client
	var pathfinder *ledger.Pathfinder
	var ledgerExec router.LedgerExecutor
	if useMemory {
		// Sandbox venues for local development.
		stubLedger := ledger.NewStubClient()
		seedSandboxVenues(stubLedger)
		ledgerClient = stubLedger
	}
	if ledgerClient != nil {
		pathfinder = ledger.NewPathfinder(ledgerClient, cfg.Ledger,
			log.New(logger.Writer(), "[ledger] ", log.LstdFlags))
		ledgerExec = ledger.NewExecutor(ledgerClient)
	}

	rt := router.New(router.Options{
		Providers: providers,
		Monitor:   health.NewMonitor(),
		Attempts:  stores.attempts,
		Ledger:    ledgerExec,
		Metrics:   metrics,
		Config:    cfg.Routing,
		Logger:    log.New(logger.Writer(), "[router] ", log.LstdFlags),
	})

	var validator validation.Validator
	if useMemory {
		validator = validation.NewStub(0.70)
	} else {
		validator = validation.NewClient(validationEndpoint)
	}

	var finality swap.FinalityWaiter
	if cfg.Ledger.WSEndpoint != "" {
		finality = ledger.NewFinalityWatcher(cfg.Ledger.WSEndpoint,
			time.Duration(cfg.Ledger.FinalityTimeoutSecs)*time.Second,
			log.New(logger.Writer(), "[finality] ", log.LstdFlags))
	}

	return swap.NewMachine(swap.Options{
		Quotes:     stores.quotes,
		Swaps:      stores.swaps,
		Validator:  validator,
		Router:     rt,
		Pathfinder: pathfinder,
		Fees:       feeEngine,
		Finality:   finality,
		Metrics:    metrics,
		Config:     cfg,
		Logger:     log.New(logger.Writer(), "[swap] ", log.LstdFlags),
	}), nil
}

// buildProviders creates a liquidity provider per config entry. Entries
// without an endpoint become stubs, which only makes sense in memory mode.
func buildProviders(cfg *config.Config, useMemory bool) ([]provider.LiquidityProvider, error) {
	var providers []provider.LiquidityProvider
	for _, pc := range cfg.Providers {
		caps := domain.Capabilities{
			MinAmount:           decimal.NewFromFloat(pc.MinAmount),
			MaxAmount:           decimal.NewFromFloat(pc.MaxAmount),
			SupportedCategories: pc.Categories,
			SettlementSeconds:   pc.SettlementSeconds,
		}
		if pc.Endpoint != "" {
			providers = append(providers, rpc.NewClient(pc.Name, pc.Endpoint, caps))
			continue
		}
		if !useMemory {
			return nil, fmt.Errorf("provider %s: endpoint is required outside memory mode", pc.Name)
		}
		providers = append(providers, stub.New(pc.Name, caps, caps.MaxAmount, 1.95))
	}

	if len(providers) == 0 {
		if !useMemory {
			return nil, fmt.Errorf("at least one provider must be configured")
		}
		// Dev sandbox defaults.
		caps := domain.Capabilities{
			MinAmount:           decimal.NewFromInt(100),
			MaxAmount:           decimal.NewFromInt(1_000_000),
			SupportedCategories: domain.KnownCategories,
			SettlementSeconds:   5,
		}
		providers = append(providers,
			stub.New("alpha", caps, decimal.NewFromInt(500_000), 1.95),
			stub.New("beta", caps, decimal.NewFromInt(500_000), 1.93),
		)
	}
	return providers, nil
}

// seedSandboxVenues installs demo AMM pools and order books so the
// pathfinder has routes to find in memory mode.
func seedSandboxVenues(client *ledger.StubClient) {
	client.SetPool(&ledger.PoolState{
		Base: "GOLDRWA", Quote: "USDC",
		BaseReserve:  decimal.NewFromInt(2_000_000),
		QuoteReserve: decimal.NewFromInt(3_900_000),
		FeePct:       0.003,
	})
	client.SetPool(&ledger.PoolState{
		Base: "GOLDRWA", Quote: "XLM",
		BaseReserve:  decimal.NewFromInt(1_000_000),
		QuoteReserve: decimal.NewFromInt(8_000_000),
		FeePct:       0.003,
	})
	client.SetPool(&ledger.PoolState{
		Base: "XLM", Quote: "USDC",
		BaseReserve:  decimal.NewFromInt(10_000_000),
		QuoteReserve: decimal.NewFromInt(2_500_000),
		FeePct:       0.003,
	})
	client.SetBook(&ledger.Book{
		Base: "GOLDRWA", Quote: "USDC",
		Bids: []ledger.Level{
			{Price: 1.96, Amount: decimal.NewFromInt(100_000)},
			{Price: 1.94, Amount: decimal.NewFromInt(250_000)},
			{Price: 1.90, Amount: decimal.NewFromInt(500_000)},
		},
	})
}

// --- HTTP API ---

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", observability.Handler())
	mux.HandleFunc("/status", s.handleStatus)

	mux.HandleFunc("/v1/quotes", s.handleQuotes)
	mux.HandleFunc("/v1/quotes/", s.handleQuoteByID)
	mux.HandleFunc("/v1/swaps", s.handleSwaps)
	mux.HandleFunc("/v1/swaps/", s.handleSwapByID)

	return mux
}

// quoteRequest is the POST /v1/quotes payload.
type quoteRequest struct {
	UserID         string `json:"user_id"`
	OwnerAddress   string `json:"owner_address"`
	CurrencyCode   string `json:"currency_code"`
	Issuer         string `json:"issuer"`
	Amount         string `json:"amount"`
	Category       string `json:"category"`
	TargetCurrency string `json:"target_currency"`
	Institutional  bool   `json:"institutional"`
}

// handleQuotes serves POST /v1/quotes.
func (s *Server) handleQuotes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req quoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "amount must be a decimal string")
		return
	}

	quote, err := s.machine.GenerateQuote(r.Context(), swap.QuoteRequest{
		UserID:       req.UserID,
		OwnerAddress: req.OwnerAddress,
		Asset: domain.AssetDescriptor{
			CurrencyCode: req.CurrencyCode,
			Issuer:       req.Issuer,
			Amount:       amount,
			Category:     req.Category,
		},
		TargetCurrency: req.TargetCurrency,
		Institutional:  req.Institutional,
	})
	if err != nil {
		s.writeEngineError(w, err)
		return
	}

	s.mu.Lock()
	s.quotesIssued++
	s.mu.Unlock()

	writeJSON(w, http.StatusCreated, quoteResponse(quote))
}

// handleQuoteByID serves POST /v1/quotes/{id}/cancel.
func (s *Server) handleQuoteByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/quotes/")
	quoteID, action, _ := strings.Cut(rest, "/")
	if quoteID == "" || action != "cancel" || r.Method != http.MethodPost {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}

	if err := s.machine.Cancel(r.Context(), quoteID); err != nil {
		s.writeEngineError(w, err)
		return
	}

	s.mu.Lock()
	s.swapsCancelled++
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]string{"quote_id": quoteID, "status": domain.QuoteStatusCancelled})
}

// executeRequest is the POST /v1/swaps payload.
type executeRequest struct {
	QuoteID string `json:"quote_id"`
}

// handleSwaps serves POST /v1/swaps.
func (s *Server) handleSwaps(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req executeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.QuoteID == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "quote_id is required")
		return
	}

	sw, err := s.machine.Execute(r.Context(), req.QuoteID)
	if err != nil && sw == nil {
		s.writeEngineError(w, err)
		return
	}

	s.mu.Lock()
	s.swapsExecuted++
	s.mu.Unlock()

	status := http.StatusOK
	if err != nil {
		// Terminal failure with a persisted swap record.
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, swapResponse(sw))
}

// handleSwapByID serves GET /v1/swaps/{id}.
func (s *Server) handleSwapByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	swapID := strings.TrimPrefix(r.URL.Path, "/v1/swaps/")
	if swapID == "" || strings.Contains(swapID, "/") {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}

	sw, err := s.machine.Status(r.Context(), swapID)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, swapResponse(sw))
}

// StatusResponse is the JSON response for /status endpoint.
type StatusResponse struct {
	Status         string `json:"status"`
	Uptime         string `json:"uptime"`
	QuotesIssued   int    `json:"quotes_issued"`
	SwapsExecuted  int    `json:"swaps_executed"`
	SwapsCancelled int    `json:"swaps_cancelled"`
}

// handleStatus returns server status as JSON.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	resp := StatusResponse{
		Status:         "running",
		Uptime:         time.Since(s.started).String(),
		QuotesIssued:   s.quotesIssued,
		SwapsExecuted:  s.swapsExecuted,
		SwapsCancelled: s.swapsCancelled,
	}
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, resp)
}

// quoteResponse shapes a quote for the wire.
func quoteResponse(q *domain.Quote) map[string]any {
	hops := make([]map[string]any, 0, len(q.Route.Hops))
	for _, h := range q.Route.Hops {
		hops = append(hops, map[string]any{
			"venue":         h.Venue,
			"provider":      h.Provider,
			"input_amount":  h.InputAmount.String(),
			"output_amount": h.OutputAmount.String(),
			"rate":          h.Rate,
		})
	}
	buckets := make([]map[string]any, 0, len(q.Fees.Buckets))
	for _, b := range q.Fees.Buckets {
		buckets = append(buckets, map[string]any{"name": b.Name, "amount": b.Amount.String()})
	}
	return map[string]any{
		"quote_id":        q.QuoteID,
		"user_id":         q.UserID,
		"currency_code":   q.Asset.CurrencyCode,
		"category":        q.Asset.Category,
		"target_currency": q.TargetCurrency,
		"input_amount":    q.InputAmount.String(),
		"output_amount":   q.OutputAmount.String(),
		"discount_rate":   q.DiscountRate,
		"blended_rate":    q.Route.BlendedRate,
		"slippage":        q.Route.Slippage,
		"hops":            hops,
		"fee_total":       q.Fees.Total.String(),
		"fee_tier":        q.Fees.Tier,
		"fee_buckets":     buckets,
		"status":          q.Status,
		"created_at":      q.CreatedAt,
		"valid_until":     q.ValidUntil,
	}
}

// swapResponse shapes a swap for the wire.
func swapResponse(sw *domain.Swap) map[string]any {
	steps := make([]map[string]any, 0, len(sw.Steps))
	for _, st := range sw.Steps {
		steps = append(steps, map[string]any{
			"status":    st.Status,
			"timestamp": st.Timestamp,
			"detail":    st.Detail,
		})
	}
	return map[string]any{
		"swap_id":         sw.SwapID,
		"quote_id":        sw.QuoteID,
		"user_id":         sw.UserID,
		"status":          sw.Status,
		"provider":        sw.Provider,
		"output_amount":   sw.OutputAmount.String(),
		"fees_collected":  sw.FeesCollected.String(),
		"settlement_refs": sw.SettlementRefs,
		"failure_reason":  sw.FailureReason,
		"steps":           steps,
		"created_at":      sw.CreatedAt,
		"updated_at":      sw.UpdatedAt,
	}
}

// writeEngineError maps engine error types to HTTP statuses.
func (s *Server) writeEngineError(w http.ResponseWriter, err error) {
	var validationErr *swap.ValidationError
	var expiredErr *swap.QuoteExpiredError
	var executingErr *swap.AlreadyExecutingError
	var criticalErr *swap.CriticalSettlementError
	var liquidityErr *router.InsufficientLiquidityError
	var providersErr *router.AllProvidersFailedError

	switch {
	case errors.As(err, &validationErr):
		writeError(w, http.StatusBadRequest, "validation_error", validationErr.Error())
	case errors.As(err, &expiredErr):
		writeError(w, http.StatusGone, "quote_expired", expiredErr.Error())
	case errors.As(err, &executingErr):
		writeError(w, http.StatusConflict, "already_executing", executingErr.Error())
	case errors.As(err, &liquidityErr):
		writeError(w, http.StatusUnprocessableEntity, "insufficient_liquidity", liquidityErr.Error())
	case errors.As(err, &providersErr):
		writeError(w, http.StatusBadGateway, "all_providers_failed", providersErr.Error())
	case errors.As(err, &criticalErr):
		writeError(w, http.StatusInternalServerError, "critical_settlement", criticalErr.Error())
	case errors.Is(err, ledger.ErrNoRouteFound):
		writeError(w, http.StatusUnprocessableEntity, "no_route_found", err.Error())
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	default:
		s.logger.Printf("Internal error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal", "internal error")
	}
}

// errorResponse is the JSON error envelope.
type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// loadEnvFile loads environment variables from .env file if it exists.
func loadEnvFile() {
	data, err := os.ReadFile(".env")
	if err != nil {
		return
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}
