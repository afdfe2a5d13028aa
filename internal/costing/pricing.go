package costing

import (
	"fmt"

	"posfinance/internal/model"

	"github.com/shopspring/decimal"
)

// RoundingPolicy is the company price rounding configuration: round to a
// decimal precision first (half-up), then snap to a multiple of the
// configured increment.
type RoundingPolicy struct {
	Enabled   bool
	Method    string // NEAREST, UP, DOWN
	Precision int32
	Increment decimal.Decimal
}

// ApplyRounding rounds a raw price per the policy.
func ApplyRounding(price decimal.Decimal, pol RoundingPolicy) decimal.Decimal {
	if !pol.Enabled {
		return price
	}

	rounded := price.Round(pol.Precision) // half-up for positive amounts

	if !pol.Increment.IsPositive() {
		return rounded
	}
	steps := rounded.Div(pol.Increment)
	switch pol.Method {
	case model.RoundingUp:
		steps = steps.Ceil()
	case model.RoundingDown:
		steps = steps.Floor()
	default: // NEAREST
		steps = steps.Round(0)
	}
	return steps.Mul(pol.Increment)
}

// MarginPolicy is the margin applied on top of the cost basis.
type MarginPolicy struct {
	Type  string // PERCENTAGE, FIXED
	Value decimal.Decimal
}

// SuggestedPrice carries the derivation alongside the final price so the
// caller can show its work.
type SuggestedPrice struct {
	CostBasis    decimal.Decimal
	BeforeRound  decimal.Decimal
	Price        decimal.Decimal
	Method       string
	TierDiscount decimal.Decimal
}

// SuggestPrice derives a selling price: cost basis plus margin, tier
// discount applied multiplicatively after margin, then the rounding policy.
func SuggestPrice(basis decimal.Decimal, margin MarginPolicy, tierDiscountPct decimal.Decimal, method string, rounding RoundingPolicy) (SuggestedPrice, error) {
	var price decimal.Decimal
	switch margin.Type {
	case model.MarginPercentage:
		price = basis.Mul(decimal.NewFromInt(1).Add(margin.Value.Div(hundred)))
	case model.MarginFixed:
		price = basis.Add(margin.Value)
	default:
		return SuggestedPrice{}, fmt.Errorf("unknown margin type %q", margin.Type)
	}

	if tierDiscountPct.IsPositive() {
		price = price.Mul(decimal.NewFromInt(1).Sub(tierDiscountPct.Div(hundred)))
	}

	return SuggestedPrice{
		CostBasis:    basis,
		BeforeRound:  price,
		Price:        ApplyRounding(price, rounding),
		Method:       method,
		TierDiscount: tierDiscountPct,
	}, nil
}

// Price validation reason constants
const (
	PriceOK                  = "OK"
	PriceBelowFloor          = "BELOW_FLOOR"
	PriceBelowCost           = "BELOW_COST"
	PriceBelowCostUnapproved = "BELOW_COST_UNAPPROVED"
)

// PriceValidation is the typed outcome of a price check. Below-cost-but-
// allowed is never granted silently: RequiresApproval surfaces the
// approval the caller must obtain.
type PriceValidation struct {
	Valid            bool            `json:"valid"`
	Reason           string          `json:"reason"`
	RequiresApproval bool            `json:"requires_approval"`
	FloorPrice       decimal.Decimal `json:"floor_price"`
	CostBasis        decimal.Decimal `json:"cost_basis"`
}

// ValidatePrice checks a proposed selling price against the floor price and
// the cost basis under the company's below-cost policy.
func ValidatePrice(proposed, floor, basis decimal.Decimal, allowBelowCost, requiresApproval bool) PriceValidation {
	v := PriceValidation{Reason: PriceOK, FloorPrice: floor, CostBasis: basis}

	if floor.IsPositive() && proposed.LessThan(floor) {
		v.Reason = PriceBelowFloor
		return v
	}

	if proposed.LessThan(basis) {
		if !allowBelowCost {
			v.Reason = PriceBelowCostUnapproved
			return v
		}
		v.Valid = true
		v.Reason = PriceBelowCost
		v.RequiresApproval = requiresApproval
		return v
	}

	v.Valid = true
	return v
}
