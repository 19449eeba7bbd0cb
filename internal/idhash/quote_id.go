package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/shopspring/decimal"
)

// ComputeQuoteID computes a deterministic quote_id using SHA256.
// Formula: SHA256(user_id|currency_code|target_currency|amount|created_at)
// Returns hex-encoded hash (64 characters).
func ComputeQuoteID(
	userID string,
	currencyCode string,
	targetCurrency string,
	amount decimal.Decimal,
	createdAtMs int64,
) string {
	data := fmt.Sprintf("%s|%s|%s|%s|%d",
		userID,
		currencyCode,
		targetCurrency,
		amount.String(),
		createdAtMs,
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
