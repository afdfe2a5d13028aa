package costing

import (
	"fmt"
	"sort"

	"posfinance/internal/model"

	"github.com/shopspring/decimal"
)

// ErrNoActiveBatches is returned when an item has no stock to derive a
// cost basis from. Callers treat it as "no suggestion available" rather
// than a hard failure.
var ErrNoActiveBatches = fmt.Errorf("no active batches with remaining stock")

var hundred = decimal.NewFromInt(100)

// activeBatches filters to batches that still carry stock.
func activeBatches(batches []model.Batch) []model.Batch {
	out := make([]model.Batch, 0, len(batches))
	for _, b := range batches {
		if b.Active && !b.Depleted && b.RemainingQty.IsPositive() {
			out = append(out, b)
		}
	}
	return out
}

// CostBasis derives a unit cost from the item's batches using the company's
// configured method. Landed costs are always included via the effective
// unit cost.
func CostBasis(batches []model.Batch, method string, percentile decimal.Decimal) (decimal.Decimal, error) {
	active := activeBatches(batches)
	if len(active) == 0 {
		return decimal.Zero, ErrNoActiveBatches
	}

	switch method {
	case model.CostMethodAverage:
		return weightedAverage(active), nil
	case model.CostMethodPercentile:
		return percentileCost(active, percentile)
	case model.CostMethodLatest:
		latest := active[0]
		for _, b := range active[1:] {
			if b.ReceivedAt.After(latest.ReceivedAt) {
				latest = b
			}
		}
		return latest.EffectiveUnitCost(), nil
	case model.CostMethodHighest:
		highest := active[0].EffectiveUnitCost()
		for _, b := range active[1:] {
			if c := b.EffectiveUnitCost(); c.GreaterThan(highest) {
				highest = c
			}
		}
		return highest, nil
	case model.CostMethodLowest:
		lowest := active[0].EffectiveUnitCost()
		for _, b := range active[1:] {
			if c := b.EffectiveUnitCost(); c.LessThan(lowest) {
				lowest = c
			}
		}
		return lowest, nil
	default:
		return decimal.Zero, fmt.Errorf("unknown cost method %q", method)
	}
}

// weightedAverage is the quantity-weighted mean cost over active batches.
func weightedAverage(active []model.Batch) decimal.Decimal {
	var totalCost, totalQty decimal.Decimal
	for _, b := range active {
		totalCost = totalCost.Add(b.EffectiveUnitCost().Mul(b.RemainingQty))
		totalQty = totalQty.Add(b.RemainingQty)
	}
	if totalQty.IsZero() {
		return decimal.Zero
	}
	return totalCost.Div(totalQty)
}

// percentileCost returns the quantity-weighted p-th percentile cost:
// batches sorted by effective unit cost ascending, walking cumulative
// quantity until it reaches p% of total quantity. The first batch whose
// cumulative quantity meets or exceeds the threshold wins ties.
func percentileCost(active []model.Batch, p decimal.Decimal) (decimal.Decimal, error) {
	if p.IsNegative() || p.GreaterThan(hundred) {
		return decimal.Zero, fmt.Errorf("percentile must be between 0 and 100, got %s", p)
	}

	sorted := make([]model.Batch, len(active))
	copy(sorted, active)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].EffectiveUnitCost().LessThan(sorted[j].EffectiveUnitCost())
	})

	var totalQty decimal.Decimal
	for _, b := range sorted {
		totalQty = totalQty.Add(b.RemainingQty)
	}

	threshold := totalQty.Mul(p).Div(hundred)
	var cumulative decimal.Decimal
	for _, b := range sorted {
		cumulative = cumulative.Add(b.RemainingQty)
		if cumulative.GreaterThanOrEqual(threshold) {
			return b.EffectiveUnitCost(), nil
		}
	}
	// p == 100 with rounding drift lands here; the most expensive batch holds.
	return sorted[len(sorted)-1].EffectiveUnitCost(), nil
}

// Summary aggregates the cost fields kept on an ItemPriceRecord.
type Summary struct {
	AverageCost decimal.Decimal
	LastCost    decimal.Decimal
	MinCost     decimal.Decimal
	MaxCost     decimal.Decimal
	TotalQty    decimal.Decimal
}

// Summarize recomputes the derived cost figures for an item from its
// batches. Used after every batch mutation to refresh the price record.
func Summarize(batches []model.Batch) Summary {
	active := activeBatches(batches)
	if len(active) == 0 {
		return Summary{}
	}

	s := Summary{
		AverageCost: weightedAverage(active),
		MinCost:     active[0].EffectiveUnitCost(),
		MaxCost:     active[0].EffectiveUnitCost(),
	}
	latest := active[0]
	for _, b := range active {
		c := b.EffectiveUnitCost()
		if c.LessThan(s.MinCost) {
			s.MinCost = c
		}
		if c.GreaterThan(s.MaxCost) {
			s.MaxCost = c
		}
		if b.ReceivedAt.After(latest.ReceivedAt) {
			latest = b
		}
		s.TotalQty = s.TotalQty.Add(b.RemainingQty)
	}
	s.LastCost = latest.EffectiveUnitCost()
	return s
}
