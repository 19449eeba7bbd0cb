// Package config provides typed, validated configuration for the swap engine.
// Configuration is loaded once at startup and read-only thereafter; any
// out-of-range value fails fast instead of silently defaulting.
package config

import (
	"fmt"
	"math"
	"os"
	"sort"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"rwa-swap-engine/internal/domain"
)

// Config is the full engine configuration.
type Config struct {
	Quote     QuoteConfig      `yaml:"quote"`
	Routing   RoutingConfig    `yaml:"routing"`
	Ledger    LedgerConfig     `yaml:"ledger"`
	Fees      FeesConfig       `yaml:"fees"`
	Providers []ProviderConfig `yaml:"providers"`
}

// QuoteConfig bounds quoting and execution timing.
type QuoteConfig struct {
	TTLSeconds           int     `yaml:"ttl_seconds"`             // quote validity window
	SwapTimeoutSeconds   int     `yaml:"swap_timeout_seconds"`    // pending->completed deadline
	SweepIntervalSeconds int     `yaml:"sweep_interval_seconds"`  // expiry sweep cadence
	MinAssetValue        float64 `yaml:"min_asset_value"`         // validation lower bound
	MaxAssetValue        float64 `yaml:"max_asset_value"`         // validation upper bound
	SlippageTolerance    float64 `yaml:"slippage_tolerance"`      // max acceptable quote slippage
	FeeRetrySeconds      int     `yaml:"fee_retry_seconds"`       // async fee-retry cadence
}

// RoutingConfig controls the liquidity router.
type RoutingConfig struct {
	ProviderTimeoutSeconds int                 `yaml:"provider_timeout_seconds"` // per-provider call bound
	MaxAttempts            int                 `yaml:"max_attempts"`             // primary + fallback total
	FallbackEnabled        bool                `yaml:"fallback_enabled"`
	Weights                ScoreWeights        `yaml:"weights"`
	TierPreferences        map[string][]string `yaml:"tier_preferences"` // ordered preferred/fallback providers per tier
}

// ScoreWeights are the five routing score factors. They must sum to 1.0.
type ScoreWeights struct {
	Liquidity    float64 `yaml:"liquidity"`     // liquidity adequacy
	Cost         float64 `yaml:"cost"`          // cost efficiency
	History      float64 `yaml:"history"`       // health monitor performance
	TierAffinity float64 `yaml:"tier_affinity"` // preferred/fallback for the caller's tier
	Speed        float64 `yaml:"speed"`         // estimated settlement speed
}

// LedgerConfig controls the on-ledger pathfinder.
type LedgerConfig struct {
	MaxSlippage          float64  `yaml:"max_slippage"`            // hard slippage ceiling
	TwoHopAcceptFraction float64  `yaml:"two_hop_accept_fraction"` // min two-hop/single-hop output ratio
	Intermediates        []string `yaml:"intermediates"`           // candidate intermediate currencies
	WSEndpoint           string   `yaml:"ws_endpoint"`             // settlement finality feed
	FinalityTimeoutSecs  int      `yaml:"finality_timeout_seconds"`
}

// FeesConfig defines the fee schedule. Loaded once, never mutated by swaps.
type FeesConfig struct {
	Tiers               []TierConfig       `yaml:"tiers"`
	Brackets            []BracketConfig    `yaml:"brackets"`
	CategoryMultipliers map[string]float64 `yaml:"category_multipliers"`
	MinFee              float64            `yaml:"min_fee"` // absolute clamp floor
	MaxFee              float64            `yaml:"max_fee"` // absolute clamp ceiling
	Buckets             []BucketConfig     `yaml:"buckets"`
	RemainderBucket     string             `yaml:"remainder_bucket"`
	VolumeWindowDays    int                `yaml:"volume_window_days"`
}

// TierConfig is one fee tier row.
type TierConfig struct {
	Name       string  `yaml:"name"`
	BaseFeePct float64 `yaml:"base_fee_pct"`
	MinVolume  float64 `yaml:"min_volume"`
}

// BracketConfig is one volume-discount bracket row.
type BracketConfig struct {
	Threshold float64 `yaml:"threshold"`
	Discount  float64 `yaml:"discount"`
}

// BucketConfig is one fee distribution bucket.
type BucketConfig struct {
	Name     string  `yaml:"name"`
	Fraction float64 `yaml:"fraction"`
}

// ProviderConfig declares an external liquidity provider.
type ProviderConfig struct {
	Name              string   `yaml:"name"`
	Endpoint          string   `yaml:"endpoint"` // JSON-RPC endpoint
	MinAmount         float64  `yaml:"min_amount"`
	MaxAmount         float64  `yaml:"max_amount"`
	Categories        []string `yaml:"categories"`
	SettlementSeconds int      `yaml:"settlement_seconds"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Quote: QuoteConfig{
			TTLSeconds:           30,
			SwapTimeoutSeconds:   60,
			SweepIntervalSeconds: 10,
			MinAssetValue:        100,
			MaxAssetValue:        10_000_000,
			SlippageTolerance:    0.05,
			FeeRetrySeconds:      30,
		},
		Routing: RoutingConfig{
			ProviderTimeoutSeconds: 3,
			MaxAttempts:            3,
			FallbackEnabled:        true,
			Weights: ScoreWeights{
				Liquidity:    0.30,
				Cost:         0.25,
				History:      0.20,
				TierAffinity: 0.15,
				Speed:        0.10,
			},
			TierPreferences: map[string][]string{},
		},
		Ledger: LedgerConfig{
			MaxSlippage:          0.05,
			TwoHopAcceptFraction: 0.90,
			Intermediates:        []string{"XLM", "USDC", "USDT"},
			FinalityTimeoutSecs:  45,
		},
		Fees: FeesConfig{
			Tiers: []TierConfig{
				{Name: domain.TierRetail, BaseFeePct: 0.0050, MinVolume: 0},
				{Name: domain.TierInstitutional, BaseFeePct: 0.0030, MinVolume: 100_000},
				{Name: domain.TierEnterprise, BaseFeePct: 0.0020, MinVolume: 1_000_000},
			},
			Brackets: []BracketConfig{
				{Threshold: 50_000, Discount: 0.05},
				{Threshold: 100_000, Discount: 0.10},
				{Threshold: 500_000, Discount: 0.20},
			},
			CategoryMultipliers: map[string]float64{
				domain.CategoryRealEstate:     1.00,
				domain.CategoryPreciousMetals: 0.90,
				domain.CategoryCommodities:    1.00,
				domain.CategoryArt:            1.15,
				domain.CategoryBonds:          0.95,
			},
			MinFee: 1,
			MaxFee: 10_000,
			Buckets: []BucketConfig{
				{Name: "platform", Fraction: 0.50},
				{Name: "liquidity_reserve", Fraction: 0.30},
				{Name: "treasury", Fraction: 0.15},
				{Name: "referral", Fraction: 0.05},
			},
			RemainderBucket:  "platform",
			VolumeWindowDays: 30,
		},
	}
}

// Load reads configuration from a YAML file, applying defaults for any
// omitted section, and validates it.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks all ranges and cross-field constraints.
func (c *Config) Validate() error {
	if c.Quote.TTLSeconds <= 0 {
		return fmt.Errorf("quote.ttl_seconds must be positive, got %d", c.Quote.TTLSeconds)
	}
	if c.Quote.SwapTimeoutSeconds <= 0 {
		return fmt.Errorf("quote.swap_timeout_seconds must be positive, got %d", c.Quote.SwapTimeoutSeconds)
	}
	if c.Quote.SlippageTolerance < 0 || c.Quote.SlippageTolerance >= 1 {
		return fmt.Errorf("quote.slippage_tolerance must be in [0,1), got %f", c.Quote.SlippageTolerance)
	}
	if c.Quote.MinAssetValue < 0 || c.Quote.MaxAssetValue <= c.Quote.MinAssetValue {
		return fmt.Errorf("quote asset value bounds invalid: [%f, %f]", c.Quote.MinAssetValue, c.Quote.MaxAssetValue)
	}

	if c.Routing.ProviderTimeoutSeconds <= 0 {
		return fmt.Errorf("routing.provider_timeout_seconds must be positive, got %d", c.Routing.ProviderTimeoutSeconds)
	}
	if c.Routing.MaxAttempts < 1 {
		return fmt.Errorf("routing.max_attempts must be >= 1, got %d", c.Routing.MaxAttempts)
	}
	w := c.Routing.Weights
	sum := w.Liquidity + w.Cost + w.History + w.TierAffinity + w.Speed
	if math.Abs(sum-1.0) > 1e-9 {
		return fmt.Errorf("routing.weights must sum to 1.0, got %f", sum)
	}
	for name, v := range map[string]float64{
		"liquidity": w.Liquidity, "cost": w.Cost, "history": w.History,
		"tier_affinity": w.TierAffinity, "speed": w.Speed,
	} {
		if v < 0 {
			return fmt.Errorf("routing.weights.%s must be non-negative, got %f", name, v)
		}
	}

	if c.Ledger.MaxSlippage <= 0 || c.Ledger.MaxSlippage >= 1 {
		return fmt.Errorf("ledger.max_slippage must be in (0,1), got %f", c.Ledger.MaxSlippage)
	}
	if c.Ledger.TwoHopAcceptFraction <= 0 || c.Ledger.TwoHopAcceptFraction > 1 {
		return fmt.Errorf("ledger.two_hop_accept_fraction must be in (0,1], got %f", c.Ledger.TwoHopAcceptFraction)
	}

	if len(c.Fees.Tiers) == 0 {
		return fmt.Errorf("fees.tiers must not be empty")
	}
	for _, t := range c.Fees.Tiers {
		if t.BaseFeePct <= 0 || t.BaseFeePct >= 1 {
			return fmt.Errorf("fees.tiers[%s].base_fee_pct must be in (0,1), got %f", t.Name, t.BaseFeePct)
		}
		if t.MinVolume < 0 {
			return fmt.Errorf("fees.tiers[%s].min_volume must be non-negative, got %f", t.Name, t.MinVolume)
		}
	}
	for _, b := range c.Fees.Brackets {
		if b.Discount < 0 || b.Discount >= 1 {
			return fmt.Errorf("fees.brackets[%f].discount must be in [0,1), got %f", b.Threshold, b.Discount)
		}
	}
	for cat, m := range c.Fees.CategoryMultipliers {
		if !domain.ValidCategory(cat) {
			return fmt.Errorf("fees.category_multipliers: unknown category %q", cat)
		}
		if m <= 0 {
			return fmt.Errorf("fees.category_multipliers[%s] must be positive, got %f", cat, m)
		}
	}
	if c.Fees.MinFee < 0 || c.Fees.MaxFee <= c.Fees.MinFee {
		return fmt.Errorf("fee clamp bounds invalid: [%f, %f]", c.Fees.MinFee, c.Fees.MaxFee)
	}
	if len(c.Fees.Buckets) == 0 {
		return fmt.Errorf("fees.buckets must not be empty")
	}
	var bucketSum float64
	remainderFound := false
	for _, b := range c.Fees.Buckets {
		if b.Fraction < 0 || b.Fraction > 1 {
			return fmt.Errorf("fees.buckets[%s].fraction must be in [0,1], got %f", b.Name, b.Fraction)
		}
		bucketSum += b.Fraction
		if b.Name == c.Fees.RemainderBucket {
			remainderFound = true
		}
	}
	if math.Abs(bucketSum-1.0) > 1e-9 {
		return fmt.Errorf("fees.buckets fractions must sum to 1.0, got %f", bucketSum)
	}
	if !remainderFound {
		return fmt.Errorf("fees.remainder_bucket %q is not a configured bucket", c.Fees.RemainderBucket)
	}
	if c.Fees.VolumeWindowDays <= 0 {
		return fmt.Errorf("fees.volume_window_days must be positive, got %d", c.Fees.VolumeWindowDays)
	}

	seen := make(map[string]bool, len(c.Providers))
	for _, p := range c.Providers {
		if p.Name == "" {
			return fmt.Errorf("providers: name must not be empty")
		}
		if seen[p.Name] {
			return fmt.Errorf("providers: duplicate name %q", p.Name)
		}
		seen[p.Name] = true
		if p.MinAmount < 0 || p.MaxAmount <= p.MinAmount {
			return fmt.Errorf("providers[%s]: amount bounds invalid [%f, %f]", p.Name, p.MinAmount, p.MaxAmount)
		}
		for _, cat := range p.Categories {
			if !domain.ValidCategory(cat) {
				return fmt.Errorf("providers[%s]: unknown category %q", p.Name, cat)
			}
		}
	}

	return nil
}

// FeeTiers converts the tier rows to domain types, sorted by ascending MinVolume.
func (c *Config) FeeTiers() []domain.FeeTier {
	tiers := make([]domain.FeeTier, 0, len(c.Fees.Tiers))
	for _, t := range c.Fees.Tiers {
		tiers = append(tiers, domain.FeeTier{
			Name:       t.Name,
			BaseFeePct: decimal.NewFromFloat(t.BaseFeePct),
			MinVolume:  decimal.NewFromFloat(t.MinVolume),
		})
	}
	sort.Slice(tiers, func(i, j int) bool {
		return tiers[i].MinVolume.LessThan(tiers[j].MinVolume)
	})
	return tiers
}

// VolumeBrackets converts bracket rows to domain types, sorted by ascending threshold.
func (c *Config) VolumeBrackets() []domain.VolumeBracket {
	brackets := make([]domain.VolumeBracket, 0, len(c.Fees.Brackets))
	for _, b := range c.Fees.Brackets {
		brackets = append(brackets, domain.VolumeBracket{
			Threshold: decimal.NewFromFloat(b.Threshold),
			Discount:  decimal.NewFromFloat(b.Discount),
		})
	}
	sort.Slice(brackets, func(i, j int) bool {
		return brackets[i].Threshold.LessThan(brackets[j].Threshold)
	})
	return brackets
}
