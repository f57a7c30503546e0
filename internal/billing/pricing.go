package billing

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/sufrahq/backoffice/pkg/db/models"
)

var oneHundred = decimal.NewFromInt(100)

// PricingParams are the inputs to the MRR formula for one subscription.
type PricingParams struct {
	BasePrice           decimal.Decimal
	CustomPrice         *decimal.Decimal
	IncludedBranches    int
	PricePerExtraBranch decimal.Decimal
	DiscountPercentage  decimal.Decimal
	BillableBranches    int
}

// SubscriptionMRR computes the monthly recurring revenue for a subscription.
// The custom negotiated price, when present, replaces the plan base price.
// Branches beyond the plan's included count are charged at the per-branch
// rate; the discount applies to the full total. A subscription with zero
// billable branches still bills the base price.
//
// All arithmetic is exact decimal; only the final result is rounded, to two
// places, half away from zero (half-up for the non-negative amounts handled
// here).
func SubscriptionMRR(p PricingParams) decimal.Decimal {
	base := p.BasePrice
	if p.CustomPrice != nil {
		base = *p.CustomPrice
	}

	total := base
	if p.BillableBranches > p.IncludedBranches {
		extra := decimal.NewFromInt(int64(p.BillableBranches - p.IncludedBranches))
		total = total.Add(extra.Mul(p.PricePerExtraBranch))
	}

	if p.DiscountPercentage.IsPositive() {
		multiplier := decimal.NewFromInt(1).Sub(p.DiscountPercentage.Div(oneHundred))
		total = total.Mul(multiplier)
	}

	return total.Round(2)
}

// BranchBillableAt reports whether the branch is inside its billing window at
// the given date: started on or before it, and not yet ended (an end date
// equal to the evaluation date means the branch stopped billing).
func BranchBillableAt(branch models.Branch, at time.Time) bool {
	day := DateOnly(at)
	if branch.SubscriptionStartDate.After(day) {
		return false
	}
	if branch.SubscriptionEndDate == nil {
		return true
	}
	return branch.SubscriptionEndDate.After(day)
}

// DateOnly truncates t to a UTC calendar date. Billing windows and paid
// dates are date-granular.
func DateOnly(t time.Time) time.Time {
	year, month, day := t.UTC().Date()
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
