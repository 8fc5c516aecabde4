// Package ledger holds the pure credit accounting rules: quoting a batch of
// files into credit units and splitting a debit across the two credit
// buckets. It never touches storage; the entitlements service applies the
// plans it produces.
package ledger

import "github.com/gridline-ai/gridline-backend/internal/models"

// BurnPlan is the exact debit split a reservation produced. PlanDebit +
// RefillDebit always equals the reserved units.
type BurnPlan struct {
	PlanDebit   int64
	RefillDebit int64
}

// Units is the total the plan debits.
func (p BurnPlan) Units() int64 {
	return p.PlanDebit + p.RefillDebit
}

// Reserve checks whether the account balances can cover required units and
// computes the burn order: plan credits first (they expire at the cycle
// boundary), then refill credits for the remainder. Returns an
// insufficient-balance error carrying the shortfall when they cannot. Purely
// advisory: nothing is debited until the entitlements store commits the plan.
func Reserve(planCredits, refillCredits, required int64) (BurnPlan, error) {
	if required <= 0 {
		return BurnPlan{}, models.NewValidationError("required units must be positive", nil)
	}
	if planCredits < 0 || refillCredits < 0 {
		return BurnPlan{}, models.NewInternalError("negative credit balance", nil)
	}

	total := planCredits + refillCredits
	if total < required {
		return BurnPlan{}, models.NewInsufficientBalanceError(required - total)
	}

	planDebit := min(planCredits, required)
	return BurnPlan{
		PlanDebit:   planDebit,
		RefillDebit: required - planDebit,
	}, nil
}
