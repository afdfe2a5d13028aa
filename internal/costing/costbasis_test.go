package costing

import (
	"testing"
	"time"

	"posfinance/internal/model"

	"github.com/shopspring/decimal"
)

func batch(cost float64, qty int64, receivedOffset time.Duration) model.Batch {
	return model.Batch{
		UnitCost:     decimal.NewFromFloat(cost),
		OriginalQty:  decimal.NewFromInt(qty),
		RemainingQty: decimal.NewFromInt(qty),
		ReceivedAt:   time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).Add(receivedOffset),
		Active:       true,
	}
}

func TestPercentileCostConcreteScenario(t *testing.T) {
	// batches [(90, 50), (95, 30), (100, 20)], 90th percentile over 100
	// units: cumulative 50, 80, 100; threshold 90 falls in the third batch.
	batches := []model.Batch{
		batch(90, 50, 0),
		batch(95, 30, time.Hour),
		batch(100, 20, 2*time.Hour),
	}

	cost, err := CostBasis(batches, model.CostMethodPercentile, decimal.NewFromInt(90))
	if err != nil {
		t.Fatalf("CostBasis: %v", err)
	}
	if !cost.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("90th percentile cost = %s, want 100", cost)
	}
}

func TestPercentileCostMonotonic(t *testing.T) {
	batches := []model.Batch{
		batch(90, 50, 0),
		batch(95, 30, time.Hour),
		batch(100, 20, 2*time.Hour),
	}

	prev := decimal.Zero
	for p := int64(0); p <= 100; p += 5 {
		cost, err := CostBasis(batches, model.CostMethodPercentile, decimal.NewFromInt(p))
		if err != nil {
			t.Fatalf("percentile %d: %v", p, err)
		}
		if cost.LessThan(prev) {
			t.Fatalf("percentile %d cost %s < previous %s: not monotonic", p, cost, prev)
		}
		prev = cost
	}
}

func TestPercentileCostTieBreak(t *testing.T) {
	// Threshold exactly at a batch boundary: the first batch whose
	// cumulative quantity meets the threshold wins.
	batches := []model.Batch{
		batch(90, 50, 0),
		batch(95, 50, time.Hour),
	}

	cost, err := CostBasis(batches, model.CostMethodPercentile, decimal.NewFromInt(50))
	if err != nil {
		t.Fatalf("CostBasis: %v", err)
	}
	if !cost.Equal(decimal.NewFromInt(90)) {
		t.Fatalf("50th percentile cost = %s, want 90 (first batch meeting threshold)", cost)
	}
}

func TestCostBasisMethods(t *testing.T) {
	batches := []model.Batch{
		batch(90, 50, 0),
		batch(95, 30, time.Hour),
		batch(100, 20, 2*time.Hour),
	}

	tests := []struct {
		method string
		want   string
	}{
		{model.CostMethodLatest, "100"},
		{model.CostMethodHighest, "100"},
		{model.CostMethodLowest, "90"},
		// (90*50 + 95*30 + 100*20) / 100 = 93.5
		{model.CostMethodAverage, "93.5"},
	}

	for _, tt := range tests {
		got, err := CostBasis(batches, tt.method, decimal.Zero)
		if err != nil {
			t.Fatalf("%s: %v", tt.method, err)
		}
		want, _ := decimal.NewFromString(tt.want)
		if !got.Equal(want) {
			t.Errorf("%s = %s, want %s", tt.method, got, want)
		}
	}
}

func TestCostBasisSkipsDepletedAndInactive(t *testing.T) {
	depleted := batch(10, 50, 0)
	depleted.RemainingQty = decimal.Zero
	depleted.Depleted = true
	inactive := batch(20, 50, 0)
	inactive.Active = false

	batches := []model.Batch{depleted, inactive, batch(90, 10, time.Hour)}

	got, err := CostBasis(batches, model.CostMethodLowest, decimal.Zero)
	if err != nil {
		t.Fatalf("CostBasis: %v", err)
	}
	if !got.Equal(decimal.NewFromInt(90)) {
		t.Fatalf("lowest cost = %s, want 90 (depleted/inactive batches excluded)", got)
	}
}

func TestCostBasisNoActiveBatches(t *testing.T) {
	if _, err := CostBasis(nil, model.CostMethodAverage, decimal.Zero); err != ErrNoActiveBatches {
		t.Fatalf("err = %v, want ErrNoActiveBatches", err)
	}
}

func TestEffectiveUnitCostIncludesLandedCosts(t *testing.T) {
	b := batch(90, 50, 0)
	b.FreightCost = decimal.NewFromInt(250)
	b.DutyCost = decimal.NewFromInt(150)
	b.OtherCost = decimal.NewFromInt(100)

	// 90 + (250+150+100)/50 = 100
	if got := b.EffectiveUnitCost(); !got.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("EffectiveUnitCost = %s, want 100", got)
	}
}

func TestSummarize(t *testing.T) {
	batches := []model.Batch{
		batch(90, 50, 0),
		batch(95, 30, time.Hour),
		batch(100, 20, 2*time.Hour),
	}

	s := Summarize(batches)
	if !s.LastCost.Equal(decimal.NewFromInt(100)) {
		t.Errorf("LastCost = %s, want 100", s.LastCost)
	}
	if !s.MinCost.Equal(decimal.NewFromInt(90)) {
		t.Errorf("MinCost = %s, want 90", s.MinCost)
	}
	if !s.MaxCost.Equal(decimal.NewFromInt(100)) {
		t.Errorf("MaxCost = %s, want 100", s.MaxCost)
	}
	if !s.TotalQty.Equal(decimal.NewFromInt(100)) {
		t.Errorf("TotalQty = %s, want 100", s.TotalQty)
	}
	want, _ := decimal.NewFromString("93.5")
	if !s.AverageCost.Equal(want) {
		t.Errorf("AverageCost = %s, want %s", s.AverageCost, want)
	}
}
