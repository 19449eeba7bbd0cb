// Package validation defines the external token-validation collaborator.
// Every quote starts with a validation call; an invalid or inauthentic token
// is fatal for the request and never retried.
package validation

import (
	"context"

	"github.com/shopspring/decimal"

	"rwa-swap-engine/internal/domain"
)

// Result is the validation collaborator's verdict on a token.
type Result struct {
	Valid          bool                       // token is authentic and tradable
	DiscountRate   float64                    // appraisal discount applied to face value (0..1]
	Confidence     float64                    // appraisal confidence (0..1]
	CategoryLimits map[string]decimal.Decimal // per-category max tradable value, if constrained
	Reason         string                     // populated when Valid is false
}

// Validator validates RWA tokens against an external appraisal service.
type Validator interface {
	// Validate checks token authenticity and ownership. Side-effect free.
	Validate(ctx context.Context, token domain.AssetDescriptor, ownerAddress string) (*Result, error)
}
