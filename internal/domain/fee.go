package domain

import "github.com/shopspring/decimal"

// FeeTier is a static tier definition loaded once at startup.
// The tier sets the base fee percent for a user; tiers are ordered by
// ascending MinVolume when resolving.
type FeeTier struct {
	Name       string          // see tier constants
	BaseFeePct decimal.Decimal // base fee as a fraction (0.0025 = 25 bps)
	MinVolume  decimal.Decimal // minimum 30-day qualifying volume
}

// Tier constants
const (
	TierRetail        = "retail"
	TierInstitutional = "institutional"
	TierEnterprise    = "enterprise"
)

// VolumeBracket is a static volume-discount bracket. The largest bracket
// whose Threshold <= trailing volume applies; Discount reduces the fee rate
// multiplicatively, never the swap amount.
type VolumeBracket struct {
	Threshold decimal.Decimal // minimum trailing volume to qualify
	Discount  decimal.Decimal // fraction removed from the fee rate (0.10 = 10% off)
}

// FeeBucket is one slice of a fee breakdown.
type FeeBucket struct {
	Name   string          // distribution bucket name
	Amount decimal.Decimal // exact amount assigned to this bucket
}

// FeeBreakdown is the result of a fee estimate. Bucket amounts always sum
// exactly to Total; any rounding remainder lands in the designated
// remainder bucket.
type FeeBreakdown struct {
	Total              decimal.Decimal // clamped total platform fee
	Buckets            []FeeBucket     // fixed distribution buckets
	Tier               string          // tier used for the estimate
	BaseFeePct         decimal.Decimal // tier base fee fraction
	VolumeDiscount     decimal.Decimal // bracket discount fraction applied
	CategoryMultiplier decimal.Decimal // per-category adjustment applied
	EffectiveRate      decimal.Decimal // final fee fraction before clamping
}

// BucketSum returns the exact sum of all bucket amounts.
func (b *FeeBreakdown) BucketSum() decimal.Decimal {
	sum := decimal.Zero
	for _, bucket := range b.Buckets {
		sum = sum.Add(bucket.Amount)
	}
	return sum
}

// VolumeEntry is one row of the per-user rolling volume ledger.
type VolumeEntry struct {
	UserID    string          // owning user
	SwapID    string          // swap that produced the volume
	Amount    decimal.Decimal // swap output amount in target currency
	Timestamp int64           // Unix timestamp in milliseconds
}
