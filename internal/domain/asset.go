package domain

import "github.com/shopspring/decimal"

// AssetDescriptor identifies a locked real-world-asset token to be swapped.
type AssetDescriptor struct {
	CurrencyCode string          // asset token currency code (e.g. "GOLDRWA")
	Issuer       string          // ledger address of the issuing authority
	Amount       decimal.Decimal // amount of the asset token to convert
	Category     string          // asset category, see category constants
}

// Asset category constants
const (
	CategoryRealEstate     = "real_estate"
	CategoryPreciousMetals = "precious_metals"
	CategoryCommodities    = "commodities"
	CategoryArt            = "art"
	CategoryBonds          = "bonds"
)

// KnownCategories lists every asset category the engine accepts.
var KnownCategories = []string{
	CategoryRealEstate,
	CategoryPreciousMetals,
	CategoryCommodities,
	CategoryArt,
	CategoryBonds,
}

// ValidCategory reports whether cat is a known asset category.
func ValidCategory(cat string) bool {
	for _, c := range KnownCategories {
		if c == cat {
			return true
		}
	}
	return false
}
