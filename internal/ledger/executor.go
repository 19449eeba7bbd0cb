package ledger

import (
	"context"
	"fmt"

	"rwa-swap-engine/internal/domain"
	"rwa-swap-engine/internal/provider"
	"rwa-swap-engine/internal/router"
)

// Executor sources ledger-venue hops for the router by submitting
// settlement transactions against the ledger.
type Executor struct {
	client Client
}

// NewExecutor creates an Executor.
func NewExecutor(client Client) *Executor {
	return &Executor{client: client}
}

// ExecuteHop submits the hop as a ledger settlement and returns the
// resulting reference. The quoted output is treated as binding; rate drift
// beyond the quoted slippage is the ledger's to reject.
func (e *Executor) ExecuteHop(ctx context.Context, hop domain.Hop, params router.ExecuteParams) (*provider.ExecutionResult, error) {
	ref, err := e.client.SubmitSettlement(ctx, SettlementTx{
		SwapID:       params.SwapID,
		Venue:        hop.Venue,
		Path:         hop.Provider,
		InputAmount:  hop.InputAmount,
		OutputAmount: hop.OutputAmount,
	})
	if err != nil {
		return nil, fmt.Errorf("submit settlement: %w", err)
	}
	return &provider.ExecutionResult{
		OutputAmount:  hop.OutputAmount,
		SettlementRef: ref,
	}, nil
}

var _ router.LedgerExecutor = (*Executor)(nil)
